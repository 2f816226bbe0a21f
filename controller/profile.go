package controller

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"instaclone/apperr"
	models "instaclone/model"
	"instaclone/repository"
	"instaclone/session"
)

// ProfileController drives the profile screen: the owner's details, their
// post grid and the follower/following lists.
type ProfileController struct {
	base

	users    repository.UserRepository
	posts    repository.PostRepository
	follows  repository.FollowRepository
	sessions *session.Store

	profile   *Cell[*models.User]
	postList  *Cell[[]*models.Post]
	followers *Cell[[]*models.Follower]
	following *Cell[[]*models.Following]
	status    *Cell[Status]
}

func NewProfileController(users repository.UserRepository, posts repository.PostRepository, follows repository.FollowRepository, sessions *session.Store) *ProfileController {
	return &ProfileController{
		base:      newBase(),
		users:     users,
		posts:     posts,
		follows:   follows,
		sessions:  sessions,
		profile:   NewCell[*models.User](nil),
		postList:  NewCell[[]*models.Post](nil),
		followers: NewCell[[]*models.Follower](nil),
		following: NewCell[[]*models.Following](nil),
		status:    NewCell(Status{}),
	}
}

func (c *ProfileController) Profile() *Cell[*models.User] { return c.profile }

func (c *ProfileController) Posts() *Cell[[]*models.Post] { return c.postList }

func (c *ProfileController) Followers() *Cell[[]*models.Follower] { return c.followers }

func (c *ProfileController) Following() *Cell[[]*models.Following] { return c.following }

func (c *ProfileController) Status() *Cell[Status] { return c.status }

// LoadProfile loads the signed-in user's profile.
func (c *ProfileController) LoadProfile() <-chan error {
	c.status.Set(statusLoading())
	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			c.status.Set(statusError(err))
			return err
		}
		user, err := c.users.GetByID(ctx, selfID)
		if err != nil {
			c.status.Set(statusError(err))
			return err
		}
		c.profile.Set(user)
		c.status.Set(statusSuccess())
		return nil
	})
}

// LoadPosts loads the signed-in user's post grid.
func (c *ProfileController) LoadPosts() <-chan error {
	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			return err
		}
		posts, err := c.posts.GetUserPosts(ctx, selfID)
		if err != nil {
			return err
		}
		c.postList.Set(posts)
		return nil
	})
}

// LoadOtherUserPosts loads another user's grid into the same cell, for the
// profile page reached from search.
func (c *ProfileController) LoadOtherUserPosts(userID uuid.UUID) <-chan error {
	return c.run(func(ctx context.Context) error {
		posts, err := c.posts.GetUserPosts(ctx, userID)
		if err != nil {
			return err
		}
		c.postList.Set(posts)
		return nil
	})
}

// UploadPost creates the post and, on success, prepends it to the grid and
// bumps the profile's post count. The upload itself is not optimistic.
func (c *ProfileController) UploadPost(imageURL, caption string) <-chan error {
	c.status.Set(statusLoading())
	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			c.status.Set(statusError(err))
			return err
		}

		post, err := c.posts.Upload(ctx, selfID, imageURL, caption)
		if err != nil {
			c.status.Set(statusError(err))
			return err
		}

		c.postList.Update(func(posts []*models.Post) []*models.Post {
			return append([]*models.Post{post}, posts...)
		})
		if err := c.users.IncrementPostsCount(ctx, selfID); err != nil {
			c.status.Set(statusError(err))
			return fmt.Errorf("failed to bump posts count: %w", err)
		}

		c.status.Set(statusSuccess())
		return nil
	})
}

// DeletePost removes the post optimistically: it leaves the grid at once
// and comes back if the delete fails.
func (c *ProfileController) DeletePost(postID uuid.UUID) <-chan error {
	snapshot := c.postList.Get()
	c.postList.Set(withoutPost(snapshot, postID))

	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			c.postList.Set(snapshot)
			return err
		}
		if err := c.posts.Delete(ctx, selfID, postID); err != nil {
			c.postList.Set(snapshot)
			return err
		}
		if err := c.users.DecrementPostsCount(ctx, selfID); err != nil {
			return fmt.Errorf("failed to drop posts count: %w", err)
		}
		return nil
	})
}

// LoadFollowers loads the follower list.
func (c *ProfileController) LoadFollowers() <-chan error {
	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			return err
		}
		followers, err := c.follows.GetFollowers(ctx, selfID)
		if err != nil {
			return err
		}
		c.followers.Set(followers)
		return nil
	})
}

// LoadFollowing loads the following list.
func (c *ProfileController) LoadFollowing() <-chan error {
	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			return err
		}
		following, err := c.follows.GetFollowing(ctx, selfID)
		if err != nil {
			return err
		}
		c.following.Set(following)
		return nil
	})
}

// RemoveFollower removes a follower optimistically: the list entry and the
// local follower count drop immediately, and both snapshots are restored if
// the write fails.
func (c *ProfileController) RemoveFollower(followerID uuid.UUID) <-chan error {
	listSnapshot := c.followers.Get()
	profileSnapshot := c.profile.Get()

	c.followers.Set(withoutFollower(listSnapshot, followerID))
	if profileSnapshot != nil {
		c.profile.Set(withFollowerDelta(profileSnapshot, -1))
	}

	return c.run(func(ctx context.Context) error {
		restore := func() {
			c.followers.Set(listSnapshot)
			if profileSnapshot != nil {
				c.profile.Set(profileSnapshot)
			}
		}

		selfID, err := c.selfID(ctx)
		if err != nil {
			restore()
			return err
		}
		if err := c.follows.RemoveFollower(ctx, selfID, followerID); err != nil {
			restore()
			return fmt.Errorf("failed to remove follower: %w", err)
		}
		return nil
	})
}

// UpdateProfile applies the edit-profile form and refreshes the cell with
// the row the update returned.
func (c *ProfileController) UpdateProfile(input *models.UpdateProfileInput) <-chan error {
	c.status.Set(statusLoading())
	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			c.status.Set(statusError(err))
			return err
		}
		user, err := c.users.UpdateProfile(ctx, selfID, input)
		if err != nil {
			c.status.Set(statusError(err))
			return err
		}
		c.profile.Set(user)
		c.status.Set(statusSuccess())
		return nil
	})
}

func (c *ProfileController) selfID(ctx context.Context) (uuid.UUID, error) {
	uid, ok, err := c.sessions.UserID(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return uuid.Nil, apperr.ErrNotAuthenticated
	}
	return uid, nil
}

func withoutPost(posts []*models.Post, id uuid.UUID) []*models.Post {
	out := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func withoutFollower(followers []*models.Follower, id uuid.UUID) []*models.Follower {
	out := make([]*models.Follower, 0, len(followers))
	for _, f := range followers {
		if f.FollowerID != id {
			out = append(out, f)
		}
	}
	return out
}

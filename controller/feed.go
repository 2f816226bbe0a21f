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

// FeedController drives the home screen: the timeline and the follow
// suggestions beneath it.
type FeedController struct {
	base

	posts    repository.PostRepository
	users    repository.UserRepository
	follows  repository.FollowRepository
	sessions *session.Store

	feed        *Cell[[]*models.Post]
	suggestions *Cell[[]*models.User]
	status      *Cell[Status]
}

func NewFeedController(posts repository.PostRepository, users repository.UserRepository, follows repository.FollowRepository, sessions *session.Store) *FeedController {
	return &FeedController{
		base:        newBase(),
		posts:       posts,
		users:       users,
		follows:     follows,
		sessions:    sessions,
		feed:        NewCell[[]*models.Post](nil),
		suggestions: NewCell[[]*models.User](nil),
		status:      NewCell(Status{}),
	}
}

func (c *FeedController) Feed() *Cell[[]*models.Post] { return c.feed }

func (c *FeedController) Suggestions() *Cell[[]*models.User] { return c.suggestions }

func (c *FeedController) Status() *Cell[Status] { return c.status }

// LoadFeed refreshes the timeline.
func (c *FeedController) LoadFeed() <-chan error {
	c.status.Set(statusLoading())
	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			c.status.Set(statusError(err))
			return err
		}
		posts, err := c.posts.GetFeed(ctx, selfID)
		if err != nil {
			c.status.Set(statusError(err))
			return err
		}
		c.feed.Set(posts)
		c.status.Set(statusSuccess())
		return nil
	})
}

// LoadSuggestions refreshes the who-to-follow list.
func (c *FeedController) LoadSuggestions() <-chan error {
	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			return err
		}
		users, err := c.users.GetSuggestions(ctx, selfID, 10)
		if err != nil {
			return err
		}
		c.suggestions.Set(users)
		return nil
	})
}

// FollowUser follows a suggested user optimistically: the suggestion leaves
// the local list immediately and comes back only if the write fails.
func (c *FeedController) FollowUser(user *models.User) <-chan error {
	snapshot := c.suggestions.Get()
	c.suggestions.Set(withoutUser(snapshot, user.ID))

	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			c.suggestions.Set(snapshot)
			return err
		}
		if err := c.follow(ctx, selfID, user); err != nil {
			c.suggestions.Set(snapshot)
			return err
		}
		return nil
	})
}

// follow creates both edge copies and bumps the counters.
func (c *FeedController) follow(ctx context.Context, selfID uuid.UUID, user *models.User) error {
	if err := c.follows.AddEdge(ctx, selfID, user); err != nil {
		return fmt.Errorf("failed to follow user: %w", err)
	}
	if err := c.follows.IncrementCounts(ctx, selfID, user.ID); err != nil {
		return fmt.Errorf("failed to update follow counts: %w", err)
	}
	return nil
}

func (c *FeedController) selfID(ctx context.Context) (uuid.UUID, error) {
	uid, ok, err := c.sessions.UserID(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return uuid.Nil, apperr.ErrNotAuthenticated
	}
	return uid, nil
}

func withoutUser(users []*models.User, id uuid.UUID) []*models.User {
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

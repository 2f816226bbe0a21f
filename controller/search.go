package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"instaclone/apperr"
	models "instaclone/model"
	"instaclone/repository"
	"instaclone/session"
)

// SearchController drives the search screen and the user page it opens:
// prefix search over handles, plus follow state for the viewed user.
type SearchController struct {
	base

	users    repository.UserRepository
	follows  repository.FollowRepository
	sessions *session.Store

	results     *Cell[[]*models.User]
	viewedUser  *Cell[*models.User]
	isFollowing *Cell[bool]
}

func NewSearchController(users repository.UserRepository, follows repository.FollowRepository, sessions *session.Store) *SearchController {
	return &SearchController{
		base:        newBase(),
		users:       users,
		follows:     follows,
		sessions:    sessions,
		results:     NewCell[[]*models.User](nil),
		viewedUser:  NewCell[*models.User](nil),
		isFollowing: NewCell(false),
	}
}

func (c *SearchController) Results() *Cell[[]*models.User] { return c.results }

func (c *SearchController) ViewedUser() *Cell[*models.User] { return c.viewedUser }

func (c *SearchController) IsFollowing() *Cell[bool] { return c.isFollowing }

// SetQuery runs a handle prefix search. The query is lowercased so "Ann"
// and "ann" match the same handles; a blank query clears the results.
func (c *SearchController) SetQuery(query string) <-chan error {
	return c.run(func(ctx context.Context) error {
		prefix := strings.ToLower(strings.TrimSpace(query))
		if prefix == "" {
			c.results.Set(nil)
			return nil
		}
		users, err := c.users.SearchByHandlePrefix(ctx, prefix)
		if err != nil {
			return fmt.Errorf("failed to search users: %w", err)
		}
		c.results.Set(users)
		return nil
	})
}

// LoadUser loads the tapped user's profile into the viewed-user cell.
func (c *SearchController) LoadUser(userID uuid.UUID) <-chan error {
	return c.run(func(ctx context.Context) error {
		user, err := c.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		c.viewedUser.Set(user)
		return nil
	})
}

// CheckIsFollowing refreshes the follow state for the viewed user.
func (c *SearchController) CheckIsFollowing(userID uuid.UUID) <-chan error {
	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			return err
		}
		following, err := c.follows.IsFollowing(ctx, selfID, userID)
		if err != nil {
			return err
		}
		c.isFollowing.Set(following)
		return nil
	})
}

// Follow follows the viewed user optimistically: the local follow flag and
// follower count change immediately and revert if the write fails.
func (c *SearchController) Follow() <-chan error {
	userSnapshot := c.viewedUser.Get()
	followingSnapshot := c.isFollowing.Get()
	if userSnapshot == nil {
		return c.run(func(context.Context) error { return apperr.ErrNotFound })
	}

	c.isFollowing.Set(true)
	c.viewedUser.Set(withFollowerDelta(userSnapshot, +1))

	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			c.revert(userSnapshot, followingSnapshot)
			return err
		}
		if err := c.follows.AddEdge(ctx, selfID, userSnapshot); err != nil {
			c.revert(userSnapshot, followingSnapshot)
			return fmt.Errorf("failed to follow user: %w", err)
		}
		if err := c.follows.IncrementCounts(ctx, selfID, userSnapshot.ID); err != nil {
			c.revert(userSnapshot, followingSnapshot)
			return fmt.Errorf("failed to update follow counts: %w", err)
		}
		return nil
	})
}

// Unfollow is the optimistic inverse of Follow.
func (c *SearchController) Unfollow() <-chan error {
	userSnapshot := c.viewedUser.Get()
	followingSnapshot := c.isFollowing.Get()
	if userSnapshot == nil {
		return c.run(func(context.Context) error { return apperr.ErrNotFound })
	}

	c.isFollowing.Set(false)
	c.viewedUser.Set(withFollowerDelta(userSnapshot, -1))

	return c.run(func(ctx context.Context) error {
		selfID, err := c.selfID(ctx)
		if err != nil {
			c.revert(userSnapshot, followingSnapshot)
			return err
		}
		if err := c.follows.RemoveEdge(ctx, selfID, userSnapshot.ID); err != nil {
			c.revert(userSnapshot, followingSnapshot)
			return fmt.Errorf("failed to unfollow user: %w", err)
		}
		if err := c.follows.DecrementCounts(ctx, selfID, userSnapshot.ID); err != nil {
			c.revert(userSnapshot, followingSnapshot)
			return fmt.Errorf("failed to update follow counts: %w", err)
		}
		return nil
	})
}

func (c *SearchController) revert(user *models.User, following bool) {
	c.viewedUser.Set(user)
	c.isFollowing.Set(following)
}

func (c *SearchController) selfID(ctx context.Context) (uuid.UUID, error) {
	uid, ok, err := c.sessions.UserID(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return uuid.Nil, apperr.ErrNotAuthenticated
	}
	return uid, nil
}

// withFollowerDelta copies the user with an adjusted followers count; the
// stored struct is never mutated in place so snapshots stay valid.
func withFollowerDelta(user *models.User, delta int32) *models.User {
	copied := *user
	copied.FollowersCount += delta
	if copied.FollowersCount < 0 {
		copied.FollowersCount = 0
	}
	return &copied
}

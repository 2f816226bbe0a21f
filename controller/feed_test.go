package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "instaclone/model"
)

func TestLoadFeed(t *testing.T) {
	uid := uuid.New()
	posts := newFakePostRepo()
	posts.feed = []*models.Post{{ID: uuid.New()}, {ID: uuid.New()}}

	c := NewFeedController(posts, newFakeUserRepo(), newFakeFollowRepo(), loggedInSession(t, uid))
	defer c.Close()

	require.NoError(t, waitErr(t, c.LoadFeed()))
	assert.Equal(t, posts.feed, c.Feed().Get())
	assert.Equal(t, PhaseSuccess, c.Status().Get().Phase)
}

func TestLoadSuggestions(t *testing.T) {
	uid := uuid.New()
	users := newFakeUserRepo()
	users.suggestions = []*models.User{userFixture("ann"), userFixture("bob")}

	c := NewFeedController(newFakePostRepo(), users, newFakeFollowRepo(), loggedInSession(t, uid))
	defer c.Close()

	require.NoError(t, waitErr(t, c.LoadSuggestions()))
	assert.Equal(t, users.suggestions, c.Suggestions().Get())
}

func TestFollowUserRemovesSuggestion(t *testing.T) {
	uid := uuid.New()
	ann, bob := userFixture("ann"), userFixture("bob")

	users := newFakeUserRepo()
	users.suggestions = []*models.User{ann, bob}
	follows := newFakeFollowRepo()

	c := NewFeedController(newFakePostRepo(), users, follows, loggedInSession(t, uid))
	defer c.Close()
	require.NoError(t, waitErr(t, c.LoadSuggestions()))

	require.NoError(t, waitErr(t, c.FollowUser(ann)))

	// The suggestion stays removed after success; no re-fetch happens.
	got := c.Suggestions().Get()
	require.Len(t, got, 1)
	assert.Equal(t, bob.ID, got[0].ID)

	following, err := follows.IsFollowing(context.Background(), uid, ann.ID)
	require.NoError(t, err)
	assert.True(t, following)
}

func TestFollowUserRollsBackOnFailure(t *testing.T) {
	uid := uuid.New()
	ann, bob := userFixture("ann"), userFixture("bob")

	users := newFakeUserRepo()
	users.suggestions = []*models.User{ann, bob}
	follows := newFakeFollowRepo()
	follows.addEdgeErr = errors.New("connection refused")

	c := NewFeedController(newFakePostRepo(), users, follows, loggedInSession(t, uid))
	defer c.Close()
	require.NoError(t, waitErr(t, c.LoadSuggestions()))

	// The suggestion disappears immediately, then comes back when the
	// write fails.
	err := waitErr(t, c.FollowUser(ann))
	require.Error(t, err)

	got := c.Suggestions().Get()
	require.Len(t, got, 2)
	assert.Equal(t, ann.ID, got[0].ID)
	assert.Equal(t, bob.ID, got[1].ID)
}

package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	database "instaclone/db"
	"instaclone/events"
	models "instaclone/model"
)

// testDB connects to the database named by TEST_DATABASE_DSN, ensures the
// schema and wipes the tables on cleanup. Tests are skipped when the
// variable is unset.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set, skipping database integration test")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)

	require.NoError(t, (&database.Database{DB: db}).EnsureSchema(context.Background()))

	t.Cleanup(func() {
		_, err := db.Exec(`TRUNCATE auth_credentials, users, user_following,
			user_followers, posts, profile_posts, chats, messages`)
		assert.NoError(t, err)
		db.Close()
	})
	return db
}

func createUser(t *testing.T, db *sqlx.DB, handle string) *models.User {
	t.Helper()
	user := &models.User{
		ID:       uuid.New(),
		Handle:   handle,
		Username: handle,
		Phone:    "555-0100",
		Email:    fmt.Sprintf("%s@example.com", handle),
	}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), user))
	return user
}

func TestFollowRoundTripCounts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	follows := NewFollowRepository(db)

	self := createUser(t, db, "follower_self")
	other := createUser(t, db, "follower_other")

	require.NoError(t, follows.AddEdge(ctx, self.ID, other))
	require.NoError(t, follows.IncrementCounts(ctx, self.ID, other.ID))

	following, err := follows.IsFollowing(ctx, self.ID, other.ID)
	require.NoError(t, err)
	assert.True(t, following)

	selfRow, err := users.GetByID(ctx, self.ID)
	require.NoError(t, err)
	otherRow, err := users.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), selfRow.FollowingCount)
	assert.Equal(t, int32(1), otherRow.FollowersCount)

	// Both edge copies exist.
	followers, err := follows.GetFollowers(ctx, other.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, self.ID, followers[0].FollowerID)
	assert.Equal(t, "follower_self", followers[0].Handle)

	require.NoError(t, follows.RemoveEdge(ctx, self.ID, other.ID))
	require.NoError(t, follows.DecrementCounts(ctx, self.ID, other.ID))

	following, err = follows.IsFollowing(ctx, self.ID, other.ID)
	require.NoError(t, err)
	assert.False(t, following)

	selfRow, err = users.GetByID(ctx, self.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), selfRow.FollowingCount)
}

func TestSearchByHandlePrefixBound(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)

	createUser(t, db, "anna")
	createUser(t, db, "annabel")
	createUser(t, db, "banner")

	// "banner" contains "ann" but does not start with it.
	got, err := users.SearchByHandlePrefix(ctx, "ann")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "anna", got[0].Handle)
	assert.Equal(t, "annabel", got[1].Handle)

	got, err = users.SearchByHandlePrefix(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetSuggestionsExcludesFollowedAndSelf(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	follows := NewFollowRepository(db)

	self := createUser(t, db, "suggest_self")
	followed := createUser(t, db, "suggest_followed")
	fresh := createUser(t, db, "suggest_fresh")

	require.NoError(t, follows.AddEdge(ctx, self.ID, followed))

	got, err := users.GetSuggestions(ctx, self.ID, 10)
	require.NoError(t, err)

	ids := make(map[uuid.UUID]bool)
	for _, u := range got {
		ids[u.ID] = true
	}
	assert.True(t, ids[fresh.ID])
	assert.False(t, ids[self.ID])
	assert.False(t, ids[followed.ID])
}

func TestFeedMembershipAndOrdering(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	follows := NewFollowRepository(db)
	posts := NewPostRepository(db, nil)

	self := createUser(t, db, "feed_self")
	followed := createUser(t, db, "feed_followed")
	stranger := createUser(t, db, "feed_stranger")

	require.NoError(t, follows.AddEdge(ctx, self.ID, followed))

	_, err := posts.Upload(ctx, followed.ID, "https://img/1.jpg", "from followed")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = posts.Upload(ctx, self.ID, "https://img/2.jpg", "my own")
	require.NoError(t, err)
	_, err = posts.Upload(ctx, stranger.ID, "https://img/3.jpg", "not for me")
	require.NoError(t, err)

	feed, err := posts.GetFeed(ctx, self.ID)
	require.NoError(t, err)
	require.Len(t, feed, 2)

	// Own and followed posts only, newest first.
	assert.Equal(t, "my own", feed[0].Caption)
	assert.Equal(t, "from followed", feed[1].Caption)
}

func TestPostUploadWritesBothCopies(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	posts := NewPostRepository(db, nil)

	owner := createUser(t, db, "poster")
	post, err := posts.Upload(ctx, owner.ID, "https://img/1.jpg", "hello")
	require.NoError(t, err)
	assert.Equal(t, "poster", post.UserHandle)

	var globalCount, profileCount int
	require.NoError(t, db.Get(&globalCount, `SELECT COUNT(*) FROM posts WHERE id = $1`, post.ID))
	require.NoError(t, db.Get(&profileCount, `SELECT COUNT(*) FROM profile_posts WHERE id = $1`, post.ID))
	assert.Equal(t, 1, globalCount)
	assert.Equal(t, 1, profileCount)

	require.NoError(t, posts.Delete(ctx, owner.ID, post.ID))
	require.NoError(t, db.Get(&globalCount, `SELECT COUNT(*) FROM posts WHERE id = $1`, post.ID))
	require.NoError(t, db.Get(&profileCount, `SELECT COUNT(*) FROM profile_posts WHERE id = $1`, post.ID))
	assert.Equal(t, 0, globalCount)
	assert.Equal(t, 0, profileCount)
}

func TestSendMessageKeepsPreviewInStep(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	messages := NewMessageRepository(db, events.NewMemoryBus(), zap.NewNop())

	self := createUser(t, db, "chat_self")
	other := createUser(t, db, "chat_other")

	chatID, err := messages.CreateChatIfNotExists(ctx, self.ID, other.ID)
	require.NoError(t, err)

	_, err = messages.SendMessage(ctx, chatID, self.ID, other.ID, "first")
	require.NoError(t, err)
	_, err = messages.SendMessage(ctx, chatID, other.ID, self.ID, "second")
	require.NoError(t, err)

	// The chat preview always equals the tail of the message list.
	history, err := messages.GetMessages(ctx, chatID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	chat, err := messages.GetChat(ctx, chatID)
	require.NoError(t, err)
	assert.Equal(t, history[len(history)-1].Body, chat.LastMessage)

	inbox, err := messages.GetInbox(ctx, self.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "second", inbox[0].LastMessage)
	assert.Equal(t, other.ID, inbox[0].OtherUserID)
	assert.Equal(t, "chat_other", inbox[0].Handle)
}

func TestReconcilerRepairsMirrorsAndCounts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)

	self := createUser(t, db, "recon_self")
	other := createUser(t, db, "recon_other")

	// Simulate a half-finished follow: the following copy exists, the
	// followers mirror and the counters do not.
	_, err := db.Exec(`
		INSERT INTO user_following (user_id, following_id, handle, profile_image, created_at)
		VALUES ($1, $2, $3, '', NOW())
	`, self.ID, other.ID, other.Handle)
	require.NoError(t, err)

	require.NoError(t, NewReconciler(db, nil, zap.NewNop()).Run(ctx))

	var mirror int
	require.NoError(t, db.Get(&mirror, `
		SELECT COUNT(*) FROM user_followers WHERE user_id = $1 AND follower_id = $2
	`, other.ID, self.ID))
	assert.Equal(t, 1, mirror)

	selfRow, err := users.GetByID(ctx, self.ID)
	require.NoError(t, err)
	otherRow, err := users.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), selfRow.FollowingCount)
	assert.Equal(t, int32(1), otherRow.FollowersCount)
}

func TestReconcilerCompletesInterruptedUnfollow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)

	self := createUser(t, db, "unfollow_self")
	other := createUser(t, db, "unfollow_other")

	// Simulate a half-finished unfollow: the following copy is gone, the
	// followers mirror survived.
	_, err := db.Exec(`
		INSERT INTO user_followers (user_id, follower_id, handle, profile_image, created_at)
		VALUES ($1, $2, $3, '', NOW())
	`, other.ID, self.ID, self.Handle)
	require.NoError(t, err)

	require.NoError(t, NewReconciler(db, nil, zap.NewNop()).Run(ctx))

	// The mirror is removed, not resurrected as a following copy.
	var mirror, resurrected int
	require.NoError(t, db.Get(&mirror, `
		SELECT COUNT(*) FROM user_followers WHERE user_id = $1 AND follower_id = $2
	`, other.ID, self.ID))
	require.NoError(t, db.Get(&resurrected, `
		SELECT COUNT(*) FROM user_following WHERE user_id = $1 AND following_id = $2
	`, self.ID, other.ID))
	assert.Equal(t, 0, mirror)
	assert.Equal(t, 0, resurrected)

	selfRow, err := users.GetByID(ctx, self.ID)
	require.NoError(t, err)
	otherRow, err := users.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), selfRow.FollowingCount)
	assert.Equal(t, int32(0), otherRow.FollowersCount)
}

func TestReconcilerRemovesOrphanProfilePosts(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	owner := createUser(t, db, "recon_poster")

	// An interrupted delete removed the global copy only.
	orphan := uuid.New()
	_, err := db.Exec(`
		INSERT INTO profile_posts (id, user_id, user_handle, user_profile_image, image_url, caption, likes, created_at)
		VALUES ($1, $2, $3, '', 'https://img/x.jpg', 'orphan', 0, NOW())
	`, orphan, owner.ID, owner.Handle)
	require.NoError(t, err)

	require.NoError(t, NewReconciler(db, nil, zap.NewNop()).Run(ctx))

	var count int
	require.NoError(t, db.Get(&count, `SELECT COUNT(*) FROM profile_posts WHERE id = $1`, orphan))
	assert.Equal(t, 0, count)
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"instaclone/apperr"
	models "instaclone/model"
)

// maxFeedAuthors is the backend's membership-filter ceiling. The feed query
// fetches the following-set client-side and filters by membership, which
// only holds up while the set stays below this bound.
const maxFeedAuthors = 30

// PostRepository stores each post twice: in the global posts collection and
// in the owner's profile copy. The pair is written best-effort without a
// transaction; the reconciler repairs a partial failure.
type PostRepository interface {
	Upload(ctx context.Context, userID uuid.UUID, imageURL, caption string) (*models.Post, error)
	Delete(ctx context.Context, userID, postID uuid.UUID) error
	GetUserPosts(ctx context.Context, userID uuid.UUID) ([]*models.Post, error)
	GetFeed(ctx context.Context, selfID uuid.UUID) ([]*models.Post, error)
}

type postRepository struct {
	db    *sqlx.DB
	cache *FeedCache // nil disables caching
}

func NewPostRepository(db *sqlx.DB, cache *FeedCache) PostRepository {
	return &postRepository{db: db, cache: cache}
}

const postColumns = `id, user_id, user_handle, user_profile_image, image_url, caption, likes, created_at`

// Upload snapshots the owner's handle and profile image into the post and
// writes the global copy first, then the profile copy.
func (r *postRepository) Upload(ctx context.Context, userID uuid.UUID, imageURL, caption string) (*models.Post, error) {
	var owner struct {
		Handle       string         `db:"handle"`
		ProfileImage sql.NullString `db:"profile_image"`
	}
	err := r.db.GetContext(ctx, &owner,
		`SELECT handle, profile_image FROM users WHERE id = $1`, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load owner: %w", err)
	}

	post := &models.Post{
		ID:               uuid.New(),
		UserID:           userID,
		UserHandle:       owner.Handle,
		UserProfileImage: owner.ProfileImage.String,
		ImageURL:         imageURL,
		Caption:          caption,
		CreatedAt:        time.Now(),
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, post.ID, post.UserID, post.UserHandle, post.UserProfileImage,
		post.ImageURL, post.Caption, post.Likes, post.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO profile_posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, post.ID, post.UserID, post.UserHandle, post.UserProfileImage,
		post.ImageURL, post.Caption, post.Likes, post.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile copy: %w", err)
	}

	r.invalidateFeeds(ctx, userID)
	return post, nil
}

// Delete removes the global copy first, then the profile copy.
func (r *postRepository) Delete(ctx context.Context, userID, postID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("post %s: %w", postID, apperr.ErrNotFound)
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM profile_posts WHERE id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile copy: %w", err)
	}

	r.invalidateFeeds(ctx, userID)
	return nil
}

func (r *postRepository) GetUserPosts(ctx context.Context, userID uuid.UUID) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM profile_posts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var posts []*models.Post
	if err := r.db.SelectContext(ctx, &posts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get user posts: %w", err)
	}

	return posts, nil
}

// GetFeed resolves the caller's following-set, appends the caller, and
// returns posts authored by that set, newest first.
func (r *postRepository) GetFeed(ctx context.Context, selfID uuid.UUID) ([]*models.Post, error) {
	if r.cache != nil {
		if ids, err := r.cache.Get(ctx, selfID, maxFeedAuthors*10); err == nil && len(ids) > 0 {
			posts, err := r.getPostsByIDs(ctx, ids)
			if err == nil && len(posts) > 0 {
				return posts, nil
			}
		}
	}

	var authorIDs []uuid.UUID
	err := r.db.SelectContext(ctx, &authorIDs,
		`SELECT following_id FROM user_following WHERE user_id = $1`, selfID)
	if err != nil {
		return nil, fmt.Errorf("failed to get following ids: %w", err)
	}

	if len(authorIDs) >= maxFeedAuthors {
		authorIDs = authorIDs[:maxFeedAuthors-1]
	}
	authorIDs = append(authorIDs, selfID)

	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE user_id = ANY($1::uuid[])
		ORDER BY created_at DESC
	`

	var posts []*models.Post
	if err := r.db.SelectContext(ctx, &posts, query, pqUUIDArray(authorIDs)); err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	if r.cache != nil {
		go func() {
			_ = r.cache.Store(context.Background(), selfID, posts)
		}()
	}

	return posts, nil
}

func (r *postRepository) getPostsByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE id = ANY($1::uuid[])
		ORDER BY created_at DESC
	`

	var posts []*models.Post
	if err := r.db.SelectContext(ctx, &posts, query, pqUUIDArray(ids)); err != nil {
		return nil, fmt.Errorf("failed to get cached posts: %w", err)
	}
	return posts, nil
}

// invalidateFeeds drops the author's cached feed and, best-effort, the
// feeds of everyone following the author.
func (r *postRepository) invalidateFeeds(ctx context.Context, authorID uuid.UUID) {
	if r.cache == nil {
		return
	}

	_ = r.cache.Invalidate(ctx, authorID)

	var followerIDs []uuid.UUID
	err := r.db.SelectContext(ctx, &followerIDs,
		`SELECT follower_id FROM user_followers WHERE user_id = $1`, authorID)
	if err != nil || len(followerIDs) == 0 {
		return
	}
	_ = r.cache.Invalidate(ctx, followerIDs...)
}

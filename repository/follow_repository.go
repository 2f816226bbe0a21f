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

// FollowRepository maintains the follow graph. Every edge is materialized
// twice, once under the follower's following set and once under the
// followee's followers set, and the two copies are written as an unwrapped
// best-effort pair. A failure between the writes leaves the copies
// inconsistent until the reconciler runs.
type FollowRepository interface {
	AddEdge(ctx context.Context, selfID uuid.UUID, other *models.User) error
	RemoveEdge(ctx context.Context, selfID, otherID uuid.UUID) error
	IncrementCounts(ctx context.Context, selfID, otherID uuid.UUID) error
	DecrementCounts(ctx context.Context, selfID, otherID uuid.UUID) error
	RemoveFollower(ctx context.Context, selfID, followerID uuid.UUID) error
	GetFollowers(ctx context.Context, userID uuid.UUID) ([]*models.Follower, error)
	GetFollowing(ctx context.Context, userID uuid.UUID) ([]*models.Following, error)
	GetFollowingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	IsFollowing(ctx context.Context, selfID, otherID uuid.UUID) (bool, error)
}

type followRepository struct {
	db *sqlx.DB
}

func NewFollowRepository(db *sqlx.DB) FollowRepository {
	return &followRepository{db: db}
}

// AddEdge writes both copies of the edge, snapshotting each party's handle
// and profile image into the other's copy.
func (r *followRepository) AddEdge(ctx context.Context, selfID uuid.UUID, other *models.User) error {
	if selfID == other.ID {
		return fmt.Errorf("users cannot follow themselves")
	}

	var self struct {
		Handle       string         `db:"handle"`
		ProfileImage sql.NullString `db:"profile_image"`
	}
	err := r.db.GetContext(ctx, &self,
		`SELECT handle, profile_image FROM users WHERE id = $1`, selfID)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("user %s: %w", selfID, apperr.ErrNotFound)
		}
		return fmt.Errorf("failed to load own profile: %w", err)
	}

	now := time.Now()
	otherImage := ""
	if other.ProfileImage != nil {
		otherImage = *other.ProfileImage
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_following (user_id, following_id, handle, profile_image, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, following_id) DO NOTHING
	`, selfID, other.ID, other.Handle, otherImage, now)
	if err != nil {
		return fmt.Errorf("failed to write following copy: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_followers (user_id, follower_id, handle, profile_image, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, follower_id) DO NOTHING
	`, other.ID, selfID, self.Handle, self.ProfileImage.String, now)
	if err != nil {
		return fmt.Errorf("failed to write followers copy: %w", err)
	}

	return nil
}

// RemoveEdge deletes both copies of the edge.
func (r *followRepository) RemoveEdge(ctx context.Context, selfID, otherID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_following WHERE user_id = $1 AND following_id = $2`,
		selfID, otherID)
	if err != nil {
		return fmt.Errorf("failed to remove following copy: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM user_followers WHERE user_id = $1 AND follower_id = $2`,
		otherID, selfID)
	if err != nil {
		return fmt.Errorf("failed to remove followers copy: %w", err)
	}

	return nil
}

// IncrementCounts bumps self's following count and the other user's
// followers count with atomic server-side increments.
func (r *followRepository) IncrementCounts(ctx context.Context, selfID, otherID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET following_count = following_count + 1, updated_at = NOW() WHERE id = $1`,
		selfID)
	if err != nil {
		return fmt.Errorf("failed to increment following count: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE users SET followers_count = followers_count + 1, updated_at = NOW() WHERE id = $1`,
		otherID)
	if err != nil {
		return fmt.Errorf("failed to increment followers count: %w", err)
	}

	return nil
}

func (r *followRepository) DecrementCounts(ctx context.Context, selfID, otherID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET following_count = GREATEST(following_count - 1, 0), updated_at = NOW() WHERE id = $1`,
		selfID)
	if err != nil {
		return fmt.Errorf("failed to decrement following count: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE users SET followers_count = GREATEST(followers_count - 1, 0), updated_at = NOW() WHERE id = $1`,
		otherID)
	if err != nil {
		return fmt.Errorf("failed to decrement followers count: %w", err)
	}

	return nil
}

// RemoveFollower is the mirrored removal initiated from the followee side:
// drop followerID from self's followers, drop self from followerID's
// following, and adjust both counters.
func (r *followRepository) RemoveFollower(ctx context.Context, selfID, followerID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET followers_count = GREATEST(followers_count - 1, 0), updated_at = NOW() WHERE id = $1`,
		selfID)
	if err != nil {
		return fmt.Errorf("failed to decrement followers count: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM user_followers WHERE user_id = $1 AND follower_id = $2`,
		selfID, followerID)
	if err != nil {
		return fmt.Errorf("failed to remove followers copy: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE users SET following_count = GREATEST(following_count - 1, 0), updated_at = NOW() WHERE id = $1`,
		followerID)
	if err != nil {
		return fmt.Errorf("failed to decrement following count: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`DELETE FROM user_following WHERE user_id = $1 AND following_id = $2`,
		followerID, selfID)
	if err != nil {
		return fmt.Errorf("failed to remove following copy: %w", err)
	}

	return nil
}

func (r *followRepository) GetFollowers(ctx context.Context, userID uuid.UUID) ([]*models.Follower, error) {
	query := `
		SELECT user_id, follower_id, handle, profile_image, created_at
		FROM user_followers
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var followers []*models.Follower
	if err := r.db.SelectContext(ctx, &followers, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get followers: %w", err)
	}

	return followers, nil
}

func (r *followRepository) GetFollowing(ctx context.Context, userID uuid.UUID) ([]*models.Following, error) {
	query := `
		SELECT user_id, following_id, handle, profile_image, created_at
		FROM user_following
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	var following []*models.Following
	if err := r.db.SelectContext(ctx, &following, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get following: %w", err)
	}

	return following, nil
}

func (r *followRepository) GetFollowingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids,
		`SELECT following_id FROM user_following WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get following ids: %w", err)
	}
	return ids, nil
}

func (r *followRepository) IsFollowing(ctx context.Context, selfID, otherID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM user_following
			WHERE user_id = $1 AND following_id = $2
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, selfID, otherID); err != nil {
		return false, fmt.Errorf("failed to check following status: %w", err)
	}

	return exists, nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Reconciler repairs the denormalized pairs that best-effort writers can
// leave inconsistent: follow-edge mirror copies, post copies and the
// follower/following/post counters. Every step is idempotent, so the pass
// can be re-run at any time.
type Reconciler struct {
	db     *sqlx.DB
	cache  *FeedCache // nil skips cache flushing
	logger *zap.Logger
}

func NewReconciler(db *sqlx.DB, cache *FeedCache, logger *zap.Logger) *Reconciler {
	return &Reconciler{db: db, cache: cache, logger: logger}
}

func (r *Reconciler) Run(ctx context.Context) error {
	repaired := int64(0)

	n, err := r.repairFollowerMirrors(ctx)
	if err != nil {
		return err
	}
	repaired += n

	n, err = r.removeOrphanedFollowerCopies(ctx)
	if err != nil {
		return err
	}
	repaired += n

	n, err = r.repairPostCopies(ctx)
	if err != nil {
		return err
	}
	repaired += n

	if err := r.recountUsers(ctx); err != nil {
		return err
	}

	if repaired > 0 && r.cache != nil {
		if err := r.cache.Flush(ctx); err != nil {
			r.logger.Warn("failed to flush feed cache after repair", zap.Error(err))
		}
	}

	r.logger.Info("reconcile pass complete", zap.Int64("repaired", repaired))
	return nil
}

// repairFollowerMirrors re-creates the followers copies that an interrupted
// follow left missing next to a surviving following copy. The snapshot taken
// at edge creation is gone, so the follower's current handle and image are
// used.
func (r *Reconciler) repairFollowerMirrors(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO user_followers (user_id, follower_id, handle, profile_image, created_at)
		SELECT f.following_id, f.user_id, u.handle, COALESCE(u.profile_image, ''), f.created_at
		FROM user_following f
		JOIN users u ON u.id = f.user_id
		WHERE NOT EXISTS (
			SELECT 1 FROM user_followers w
			WHERE w.user_id = f.following_id AND w.follower_id = f.user_id
		)
		ON CONFLICT (user_id, follower_id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to repair follower mirrors: %w", err)
	}

	n, _ := result.RowsAffected()
	if n > 0 {
		r.logger.Info("repaired follower mirrors", zap.Int64("count", n))
	}
	return n, nil
}

// removeOrphanedFollowerCopies follows the writers' ordering: AddEdge writes
// the following copy first, RemoveEdge deletes it first. A followers copy
// without a following counterpart therefore belongs to an interrupted unfollow
// and is removed. Runs after repairFollowerMirrors so mirrors created in the
// same pass are never touched.
func (r *Reconciler) removeOrphanedFollowerCopies(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM user_followers w
		WHERE NOT EXISTS (
			SELECT 1 FROM user_following f
			WHERE f.user_id = w.follower_id AND f.following_id = w.user_id
		)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to remove orphaned follower copies: %w", err)
	}

	n, _ := result.RowsAffected()
	if n > 0 {
		r.logger.Info("removed orphaned follower copies", zap.Int64("count", n))
	}
	return n, nil
}

// repairPostCopies follows the writers' ordering: uploads write the global
// copy first, deletes remove it first. A missing profile copy is therefore
// re-created from the global one, and a profile copy without a global
// counterpart belongs to an interrupted delete and is removed.
func (r *Reconciler) repairPostCopies(ctx context.Context) (int64, error) {
	created, err := r.db.ExecContext(ctx, `
		INSERT INTO profile_posts (id, user_id, user_handle, user_profile_image, image_url, caption, likes, created_at)
		SELECT id, user_id, user_handle, user_profile_image, image_url, caption, likes, created_at
		FROM posts p
		WHERE NOT EXISTS (SELECT 1 FROM profile_posts pp WHERE pp.id = p.id)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to restore profile copies: %w", err)
	}

	deleted, err := r.db.ExecContext(ctx, `
		DELETE FROM profile_posts pp
		WHERE NOT EXISTS (SELECT 1 FROM posts p WHERE p.id = pp.id)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to remove orphaned profile copies: %w", err)
	}

	c, _ := created.RowsAffected()
	d, _ := deleted.RowsAffected()
	if c+d > 0 {
		r.logger.Info("repaired post copies", zap.Int64("restored", c), zap.Int64("removed", d))
	}
	return c + d, nil
}

// recountUsers rebuilds the denormalized counters from the source tables.
func (r *Reconciler) recountUsers(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users u SET
			followers_count = (SELECT COUNT(*) FROM user_followers w WHERE w.user_id = u.id),
			following_count = (SELECT COUNT(*) FROM user_following f WHERE f.user_id = u.id),
			posts_count     = (SELECT COUNT(*) FROM profile_posts p WHERE p.user_id = u.id)
		WHERE u.followers_count <> (SELECT COUNT(*) FROM user_followers w WHERE w.user_id = u.id)
		   OR u.following_count <> (SELECT COUNT(*) FROM user_following f WHERE f.user_id = u.id)
		   OR u.posts_count     <> (SELECT COUNT(*) FROM profile_posts p WHERE p.user_id = u.id)
	`)
	if err != nil {
		return fmt.Errorf("failed to recount users: %w", err)
	}
	return nil
}

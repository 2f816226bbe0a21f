package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	models "instaclone/model"
)

const feedCacheTTL = time.Hour

// FeedCache keeps each user's feed as a redis sorted set of post ids
// scored by creation time.
type FeedCache struct {
	client *redis.Client
}

func NewFeedCache(client *redis.Client) *FeedCache {
	return &FeedCache{client: client}
}

func feedKey(userID uuid.UUID) string {
	return fmt.Sprintf("feed:%s", userID)
}

// Get returns the cached post ids, newest first. An empty result means a
// cache miss.
func (c *FeedCache) Get(ctx context.Context, userID uuid.UUID, limit int) ([]uuid.UUID, error) {
	raw, err := c.client.ZRevRange(ctx, feedKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read feed cache: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *FeedCache) Store(ctx context.Context, userID uuid.UUID, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	key := feedKey(userID)
	pipe := c.client.Pipeline()

	for _, post := range posts {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(post.CreatedAt.Unix()),
			Member: post.ID.String(),
		})
	}
	pipe.Expire(ctx, key, feedCacheTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache feed: %w", err)
	}
	return nil
}

func (c *FeedCache) Invalidate(ctx context.Context, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = feedKey(id)
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate feed cache: %w", err)
	}
	return nil
}

// Flush drops every cached feed. The reconciler calls this after repairing
// the follow graph so stale feeds are rebuilt on next read.
func (c *FeedCache) Flush(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "feed:*", 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan feed cache: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to flush feed cache: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"fmt"
)

// The follow edges and posts are deliberately stored twice
// (user_following/user_followers, posts/profile_posts). Writers create the
// two copies as an unwrapped pair, so the copies can diverge after a partial
// failure; repository.Reconciler repairs them.
const schema = `
CREATE TABLE IF NOT EXISTS auth_credentials (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS users (
	id              UUID PRIMARY KEY,
	handle          TEXT NOT NULL UNIQUE,
	username        TEXT NOT NULL,
	phone           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL,
	profile_image   TEXT,
	bio             TEXT,
	followers_count INTEGER NOT NULL DEFAULT 0,
	following_count INTEGER NOT NULL DEFAULT 0,
	posts_count     INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS user_following (
	user_id       UUID NOT NULL,
	following_id  UUID NOT NULL,
	handle        TEXT NOT NULL,
	profile_image TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, following_id)
);

CREATE TABLE IF NOT EXISTS user_followers (
	user_id       UUID NOT NULL,
	follower_id   UUID NOT NULL,
	handle        TEXT NOT NULL,
	profile_image TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, follower_id)
);

CREATE TABLE IF NOT EXISTS posts (
	id                 UUID PRIMARY KEY,
	user_id            UUID NOT NULL,
	user_handle        TEXT NOT NULL,
	user_profile_image TEXT NOT NULL DEFAULT '',
	image_url          TEXT NOT NULL,
	caption            TEXT NOT NULL DEFAULT '',
	likes              INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS profile_posts (
	id                 UUID PRIMARY KEY,
	user_id            UUID NOT NULL,
	user_handle        TEXT NOT NULL,
	user_profile_image TEXT NOT NULL DEFAULT '',
	image_url          TEXT NOT NULL,
	caption            TEXT NOT NULL DEFAULT '',
	likes              INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS chats (
	id                TEXT PRIMARY KEY,
	user_a            UUID NOT NULL,
	user_b            UUID NOT NULL,
	last_message      TEXT NOT NULL DEFAULT '',
	last_message_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
	id          UUID PRIMARY KEY,
	chat_id     TEXT NOT NULL,
	sender_id   UUID NOT NULL,
	receiver_id UUID NOT NULL,
	body        TEXT NOT NULL,
	sent_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_posts_user_created ON posts (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_created ON posts (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_profile_posts_user_created ON profile_posts (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_messages_chat_sent ON messages (chat_id, sent_at);
CREATE INDEX IF NOT EXISTS idx_chats_user_a ON chats (user_a);
CREATE INDEX IF NOT EXISTS idx_chats_user_b ON chats (user_b);
CREATE INDEX IF NOT EXISTS idx_user_following_following ON user_following (following_id);
CREATE INDEX IF NOT EXISTS idx_user_followers_follower ON user_followers (follower_id);
`

// EnsureSchema creates all tables and indexes if they do not exist.
func (d *Database) EnsureSchema(ctx context.Context) error {
	if _, err := d.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

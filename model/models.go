package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Handle         string    `json:"handle" db:"handle"`
	Username       string    `json:"username" db:"username"`
	Phone          string    `json:"phone" db:"phone"`
	Email          string    `json:"email" db:"email"`
	ProfileImage   *string   `json:"profile_image,omitempty" db:"profile_image"`
	Bio            *string   `json:"bio,omitempty" db:"bio"`
	FollowersCount int32     `json:"followers_count" db:"followers_count"`
	FollowingCount int32     `json:"following_count" db:"following_count"`
	PostsCount     int32     `json:"posts_count" db:"posts_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Following is the follower-side copy of a follow edge. Handle and
// ProfileImage are snapshots of the followed user taken at edge creation.
type Following struct {
	UserID       uuid.UUID `json:"user_id" db:"user_id"`             // who follows
	FollowingID  uuid.UUID `json:"following_id" db:"following_id"`   // who is followed
	Handle       string    `json:"handle" db:"handle"`               // followed user's handle
	ProfileImage string    `json:"profile_image" db:"profile_image"` // followed user's image
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Follower is the followee-side copy of the same edge, snapshotting the
// follower's handle and image instead.
type Follower struct {
	UserID       uuid.UUID `json:"user_id" db:"user_id"`         // who is followed
	FollowerID   uuid.UUID `json:"follower_id" db:"follower_id"` // who follows
	Handle       string    `json:"handle" db:"handle"`
	ProfileImage string    `json:"profile_image" db:"profile_image"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type Post struct {
	ID               uuid.UUID `json:"id" db:"id"`
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	UserHandle       string    `json:"user_handle" db:"user_handle"`
	UserProfileImage string    `json:"user_profile_image" db:"user_profile_image"`
	ImageURL         string    `json:"image_url" db:"image_url"`
	Caption          string    `json:"caption" db:"caption"`
	Likes            int32     `json:"likes" db:"likes"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

type Chat struct {
	ID              string    `json:"id" db:"id"`
	UserA           uuid.UUID `json:"user_a" db:"user_a"`
	UserB           uuid.UUID `json:"user_b" db:"user_b"`
	LastMessage     string    `json:"last_message" db:"last_message"`
	LastMessageTime time.Time `json:"last_message_time" db:"last_message_time"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Participants returns both member ids of the chat.
func (c *Chat) Participants() []uuid.UUID {
	return []uuid.UUID{c.UserA, c.UserB}
}

// OtherUser returns the participant that is not selfID.
func (c *Chat) OtherUser(selfID uuid.UUID) uuid.UUID {
	if c.UserA == selfID {
		return c.UserB
	}
	return c.UserA
}

// LastChat is one inbox row: a chat plus the other party's current
// handle and profile image resolved at read time.
type LastChat struct {
	ChatID          string    `json:"chat_id"`
	OtherUserID     uuid.UUID `json:"other_user_id"`
	Handle          string    `json:"handle"`
	ProfileImage    *string   `json:"profile_image,omitempty"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
}

type Message struct {
	ID         uuid.UUID `json:"id" db:"id"`
	ChatID     string    `json:"chat_id" db:"chat_id"`
	SenderID   uuid.UUID `json:"sender_id" db:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id" db:"receiver_id"`
	Body       string    `json:"body" db:"body"`
	SentAt     time.Time `json:"sent_at" db:"sent_at"`
}

// SignupInput accumulates the staged signup flow before the account exists.
type SignupInput struct {
	Handle       string  `json:"handle"`
	Username     string  `json:"username"`
	Phone        string  `json:"phone"`
	Email        string  `json:"email"`
	Password     string  `json:"password"`
	ProfileImage *string `json:"profile_image,omitempty"`
	Bio          string  `json:"bio"`
}

type UpdateProfileInput struct {
	Username     *string `json:"username,omitempty"`
	Bio          *string `json:"bio,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

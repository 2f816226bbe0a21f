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

// InboxController drives the chat list. It subscribes the inbox listener on
// construction and keeps the cell current until Close.
type InboxController struct {
	base

	messages repository.MessageRepository
	sessions *session.Store
	selfID   uuid.UUID

	chats *Cell[[]*models.LastChat]
}

func NewInboxController(ctx context.Context, messages repository.MessageRepository, sessions *session.Store) (*InboxController, error) {
	selfID, ok, err := sessions.UserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return nil, apperr.ErrNotAuthenticated
	}

	c := &InboxController{
		base:     newBase(),
		messages: messages,
		sessions: sessions,
		selfID:   selfID,
		chats:    NewCell[[]*models.LastChat](nil),
	}

	listener, err := messages.ListenInbox(c.ctx, selfID)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to listen inbox: %w", err)
	}
	c.onClose = append(c.onClose, func() { _ = listener.Close() })

	go func() {
		for {
			select {
			case <-c.ctx.Done():
				return
			case chats := <-listener.Updates():
				c.chats.Set(chats)
			}
		}
	}()

	return c, nil
}

// Chats exposes the inbox cell, newest chat first.
func (c *InboxController) Chats() *Cell[[]*models.LastChat] { return c.chats }

// OpenChatResult carries the outcome of OpenChat.
type OpenChatResult struct {
	ChatID string
	Err    error
}

// OpenChat makes sure the chat row with the other user exists and delivers
// its id for the chat screen to init with.
func (c *InboxController) OpenChat(otherID uuid.UUID) <-chan OpenChatResult {
	result := make(chan OpenChatResult, 1)
	go func() {
		if err := c.ctx.Err(); err != nil {
			result <- OpenChatResult{Err: err}
			return
		}
		id, err := c.messages.CreateChatIfNotExists(c.ctx, c.selfID, otherID)
		if err != nil {
			result <- OpenChatResult{Err: fmt.Errorf("failed to open chat: %w", err)}
			return
		}
		result <- OpenChatResult{ChatID: id}
	}()
	return result
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"instaclone/apperr"
	"instaclone/events"
	models "instaclone/model"
	"instaclone/realtime"
)

// ChatID derives the chat identifier from the sorted pair of participant
// ids, so the same two users always map to the same chat.
func ChatID(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	return ids[0] + "_" + ids[1]
}

type MessageRepository interface {
	CreateChatIfNotExists(ctx context.Context, selfID, otherID uuid.UUID) (string, error)
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	SendMessage(ctx context.Context, chatID string, senderID, receiverID uuid.UUID, body string) (*models.Message, error)
	GetMessages(ctx context.Context, chatID string) ([]*models.Message, error)
	GetInbox(ctx context.Context, selfID uuid.UUID) ([]*models.LastChat, error)
	ListenMessages(ctx context.Context, chatID string) (*realtime.Listener[[]*models.Message], error)
	ListenInbox(ctx context.Context, selfID uuid.UUID) (*realtime.Listener[[]*models.LastChat], error)
}

type messageRepository struct {
	db     *sqlx.DB
	bus    events.Bus
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, bus events.Bus, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, bus: bus, logger: logger}
}

func (r *messageRepository) CreateChatIfNotExists(ctx context.Context, selfID, otherID uuid.UUID) (string, error) {
	chatID := ChatID(selfID, otherID)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chats (id, user_a, user_b, last_message, last_message_time, created_at)
		VALUES ($1, $2, $3, '', NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`, chatID, selfID, otherID)
	if err != nil {
		return "", fmt.Errorf("failed to create chat: %w", err)
	}

	return chatID, nil
}

func (r *messageRepository) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `
		SELECT id, user_a, user_b, last_message, last_message_time, created_at
		FROM chats
		WHERE id = $1
	`, chatID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("chat %s: %w", chatID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	return &chat, nil
}

// SendMessage inserts the message and updates the parent chat's last-message
// summary in one transaction, the only atomic multi-write in this layer.
// A chat-changed event is published after commit.
func (r *messageRepository) SendMessage(ctx context.Context, chatID string, senderID, receiverID uuid.UUID, body string) (*models.Message, error) {
	msg := &models.Message{
		ID:         uuid.New(),
		ChatID:     chatID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		SentAt:     time.Now(),
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, receiver_id, body, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.ChatID, msg.SenderID, msg.ReceiverID, msg.Body, msg.SentAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE chats SET last_message = $1, last_message_time = $2 WHERE id = $3
	`, msg.Body, msg.SentAt, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to update last message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("chat %s: %w", chatID, apperr.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}

	r.publishChatChanged(chatID, senderID, receiverID)
	return msg, nil
}

func (r *messageRepository) GetMessages(ctx context.Context, chatID string) ([]*models.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, receiver_id, body, sent_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY sent_at ASC
	`

	var messages []*models.Message
	if err := r.db.SelectContext(ctx, &messages, query, chatID); err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	return messages, nil
}

// GetInbox returns every chat that includes selfID, newest activity first,
// with the other party's current handle and profile image resolved.
func (r *messageRepository) GetInbox(ctx context.Context, selfID uuid.UUID) ([]*models.LastChat, error) {
	query := `
		SELECT c.id AS chat_id,
		       CASE WHEN c.user_a = $1 THEN c.user_b ELSE c.user_a END AS other_user_id,
		       u.handle, u.profile_image,
		       c.last_message, c.last_message_time
		FROM chats c
		JOIN users u ON u.id = CASE WHEN c.user_a = $1 THEN c.user_b ELSE c.user_a END
		WHERE c.user_a = $1 OR c.user_b = $1
		ORDER BY c.last_message_time DESC
	`

	rows, err := r.db.QueryxContext(ctx, query, selfID)
	if err != nil {
		return nil, fmt.Errorf("failed to get inbox: %w", err)
	}
	defer rows.Close()

	var inbox []*models.LastChat
	for rows.Next() {
		var lc models.LastChat
		var profileImage sql.NullString
		if err := rows.Scan(&lc.ChatID, &lc.OtherUserID, &lc.Handle, &profileImage,
			&lc.LastMessage, &lc.LastMessageTime); err != nil {
			return nil, fmt.Errorf("failed to scan inbox row: %w", err)
		}
		if profileImage.Valid {
			lc.ProfileImage = &profileImage.String
		}
		inbox = append(inbox, &lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inbox: %w", err)
	}

	return inbox, nil
}

// ListenMessages streams the full message list of one chat on every change.
func (r *messageRepository) ListenMessages(ctx context.Context, chatID string) (*realtime.Listener[[]*models.Message], error) {
	return realtime.Subscribe(ctx, r.bus, events.SubjectChatChanged(chatID), nil,
		func(ctx context.Context) ([]*models.Message, error) {
			return r.GetMessages(ctx, chatID)
		}, r.logger)
}

// ListenInbox streams the full inbox on every change to a chat the user
// participates in.
func (r *messageRepository) ListenInbox(ctx context.Context, selfID uuid.UUID) (*realtime.Listener[[]*models.LastChat], error) {
	accept := func(_ string, data []byte) bool {
		var event events.ChatChangedEvent
		if err := events.Decode(data, &event); err != nil {
			return false
		}
		return event.Involves(selfID)
	}

	return realtime.Subscribe(ctx, r.bus, events.SubjectChatChangedAll, accept,
		func(ctx context.Context) ([]*models.LastChat, error) {
			return r.GetInbox(ctx, selfID)
		}, r.logger)
}

func (r *messageRepository) publishChatChanged(chatID string, participants ...uuid.UUID) {
	event := events.ChatChangedEvent{
		ChatID:       chatID,
		Participants: participants,
		OccurredAt:   time.Now(),
	}

	data, err := events.Encode(event)
	if err != nil {
		r.logger.Warn("failed to encode chat event", zap.Error(err))
		return
	}
	if err := r.bus.Publish(events.SubjectChatChanged(chatID), data); err != nil {
		r.logger.Warn("failed to publish chat event", zap.String("chat_id", chatID), zap.Error(err))
	}
}

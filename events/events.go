package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const chatChangedPrefix = "chat.changed."

// SubjectChatChangedAll matches the change events of every chat.
const SubjectChatChangedAll = chatChangedPrefix + "*"

// SubjectChatChanged returns the subject for one chat's change events.
func SubjectChatChanged(chatID string) string {
	return chatChangedPrefix + chatID
}

// ChatChangedEvent is published after every committed write to a chat
// (new message, chat creation). Listeners reload their snapshot on receipt.
type ChatChangedEvent struct {
	ChatID       string      `json:"chat_id"`
	Participants []uuid.UUID `json:"participants"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// Involves reports whether the event concerns the given user.
func (e *ChatChangedEvent) Involves(userID uuid.UUID) bool {
	for _, p := range e.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

func Encode(event interface{}) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return data, nil
}

func Decode(data []byte, event interface{}) error {
	if err := json.Unmarshal(data, event); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return nil
}

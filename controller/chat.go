package controller

import (
	"context"
	"fmt"
	"sync"

	"instaclone/apperr"
	models "instaclone/model"
	"instaclone/realtime"
	"instaclone/repository"
	"instaclone/session"

	"github.com/google/uuid"
)

// ChatController drives a single conversation. Init wires it to a chat id;
// re-init replaces the previous message subscription.
type ChatController struct {
	base

	messages repository.MessageRepository
	users    repository.UserRepository
	selfID   uuid.UUID

	mu         sync.Mutex
	chatID     string
	gen        int
	listener   *realtime.Listener[[]*models.Message]
	pumpCancel context.CancelFunc

	chat      *Cell[*models.Chat]
	otherUser *Cell[*models.User]
	history   *Cell[[]*models.Message]
}

func NewChatController(ctx context.Context, messages repository.MessageRepository, users repository.UserRepository, sessions *session.Store) (*ChatController, error) {
	selfID, ok, err := sessions.UserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return nil, apperr.ErrNotAuthenticated
	}

	c := &ChatController{
		base:      newBase(),
		messages:  messages,
		users:     users,
		selfID:    selfID,
		chat:      NewCell[*models.Chat](nil),
		otherUser: NewCell[*models.User](nil),
		history:   NewCell[[]*models.Message](nil),
	}
	c.onClose = append(c.onClose, c.dropListener)
	return c, nil
}

func (c *ChatController) Chat() *Cell[*models.Chat] { return c.chat }

func (c *ChatController) OtherUser() *Cell[*models.User] { return c.otherUser }

func (c *ChatController) Messages() *Cell[[]*models.Message] { return c.history }

// Init points the controller at a chat: it loads the chat row and the other
// party, then subscribes the message listener. Calling Init again swaps the
// subscription over to the new chat.
func (c *ChatController) Init(chatID string) <-chan error {
	return c.run(func(ctx context.Context) error {
		chat, err := c.messages.GetChat(ctx, chatID)
		if err != nil {
			return fmt.Errorf("failed to load chat: %w", err)
		}

		other, err := c.users.GetByID(ctx, chat.OtherUser(c.selfID))
		if err != nil {
			return fmt.Errorf("failed to load chat partner: %w", err)
		}

		listener, err := c.messages.ListenMessages(c.ctx, chatID)
		if err != nil {
			return fmt.Errorf("failed to listen messages: %w", err)
		}

		pumpCtx, pumpCancel := context.WithCancel(c.ctx)

		c.mu.Lock()
		oldListener := c.listener
		oldCancel := c.pumpCancel
		c.chatID = chatID
		c.gen++
		gen := c.gen
		c.listener = listener
		c.pumpCancel = pumpCancel
		c.mu.Unlock()
		if oldCancel != nil {
			oldCancel()
		}
		if oldListener != nil {
			oldListener.Close()
		}

		c.chat.Set(chat)
		c.otherUser.Set(other)

		go func() {
			for {
				select {
				case <-pumpCtx.Done():
					return
				case msgs := <-listener.Updates():
					c.applyHistory(gen, msgs)
				}
			}
		}()
		return nil
	})
}

// Send writes a message into the current chat. The listener delivers the
// updated history; nothing is applied locally first.
func (c *ChatController) Send(text string) <-chan error {
	c.mu.Lock()
	chatID := c.chatID
	c.mu.Unlock()

	return c.run(func(ctx context.Context) error {
		if chatID == "" {
			return fmt.Errorf("chat not initialized")
		}
		other := c.otherUser.Get()
		if other == nil {
			return apperr.ErrNotFound
		}
		if _, err := c.messages.SendMessage(ctx, chatID, c.selfID, other.ID, text); err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
		return nil
	})
}

// IsFromMe reports whether the signed-in user sent the message.
func (c *ChatController) IsFromMe(msg *models.Message) bool {
	return msg.SenderID == c.selfID
}

// applyHistory publishes a history snapshot unless the subscription it came
// from has been replaced. A superseded pump may still be holding a snapshot
// from the previous chat when its cancel fires.
func (c *ChatController) applyHistory(gen int, msgs []*models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.history.Set(msgs)
}

func (c *ChatController) dropListener() {
	c.mu.Lock()
	listener := c.listener
	cancel := c.pumpCancel
	c.gen++
	c.listener = nil
	c.pumpCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if listener != nil {
		listener.Close()
	}
}

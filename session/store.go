// Package session persists the logged-in identity and exposes it as an
// observable boolean stream. The store is the single writer; any number of
// screens may observe.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const (
	keyLoggedIn = "is_logged_in"
	keyUserID   = "user_id"
)

type Store struct {
	kv KV

	mu     sync.Mutex
	subs   map[int]chan bool
	nextID int
}

func NewStore(kv KV) *Store {
	return &Store{
		kv:   kv,
		subs: make(map[int]chan bool),
	}
}

// Save durably records logged-in=true together with the user id and
// notifies observers.
func (s *Store) Save(ctx context.Context, userID uuid.UUID) error {
	err := s.kv.SetMulti(ctx, map[string]string{
		keyLoggedIn: "true",
		keyUserID:   userID.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.notify(true)
	return nil
}

// Clear removes all session data and notifies observers.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	s.notify(false)
	return nil
}

func (s *Store) IsLoggedIn(ctx context.Context) (bool, error) {
	val, ok, err := s.kv.Get(ctx, keyLoggedIn)
	if err != nil {
		return false, err
	}
	return ok && val == "true", nil
}

// UserID returns the persisted identity, if any.
func (s *Store) UserID(ctx context.Context) (uuid.UUID, bool, error) {
	val, ok, err := s.kv.Get(ctx, keyUserID)
	if err != nil || !ok {
		return uuid.Nil, false, err
	}

	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt session user id: %w", err)
	}
	return id, true, nil
}

// Observe subscribes to the logged-in flag. The current persisted value is
// delivered first, then every transition. Intermediate values may be
// conflated; the latest value is always delivered. The returned cancel
// function releases the subscription.
func (s *Store) Observe(ctx context.Context) (<-chan bool, func(), error) {
	current, err := s.IsLoggedIn(ctx)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan bool, 1)
	ch <- current

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *Store) notify(loggedIn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		// Drop the stale buffered value so a slow observer still sees
		// the latest state.
		select {
		case ch <- loggedIn:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- loggedIn
		}
	}
}

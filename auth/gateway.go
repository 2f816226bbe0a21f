// Package auth is the credential gateway: it drives the identity service
// and keeps the session store in step with it.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"instaclone/apperr"
	"instaclone/session"
)

// IdentityService is the slice of the identity client the gateway needs.
type IdentityService interface {
	SignIn(ctx context.Context, email, password string) (uuid.UUID, error)
	SignUp(ctx context.Context, email, password string) (uuid.UUID, error)
	SignOut(ctx context.Context) error
	CurrentUser() (uuid.UUID, bool)
}

type Gateway struct {
	identity IdentityService
	sessions *session.Store
}

func NewGateway(identity IdentityService, sessions *session.Store) *Gateway {
	return &Gateway{identity: identity, sessions: sessions}
}

// Login authenticates against the identity service and records the session.
// Any sign-in failure (bad credentials or transport) surfaces as
// ErrAuthFailed; a session write failure surfaces as ErrSessionPersist and
// rolls the identity sign-in back so the caller is not half logged in.
func (g *Gateway) Login(ctx context.Context, email, password string) (uuid.UUID, error) {
	uid, err := g.identity.SignIn(ctx, email, password)
	if err != nil {
		if !errors.Is(err, apperr.ErrAuthFailed) {
			err = fmt.Errorf("%w: %s", apperr.ErrAuthFailed, err)
		}
		return uuid.Nil, err
	}

	if err := g.sessions.Save(ctx, uid); err != nil {
		_ = g.identity.SignOut(ctx)
		return uuid.Nil, fmt.Errorf("%w: %s", apperr.ErrSessionPersist, err)
	}

	return uid, nil
}

// IsAuthenticated consults the identity client's cached session only.
func (g *Gateway) IsAuthenticated() bool {
	_, ok := g.identity.CurrentUser()
	return ok
}

// Logout signs out remotely first; the local session is cleared only when
// that succeeds, so a failed sign-out leaves the caller's state unchanged.
func (g *Gateway) Logout(ctx context.Context) error {
	if err := g.identity.SignOut(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	if err := g.sessions.Clear(ctx); err != nil {
		return fmt.Errorf("%w: %s", apperr.ErrSessionPersist, err)
	}
	return nil
}

// CreateIdentity registers a credential without logging in or touching the
// session store. Profile creation is a separate, explicit step.
func (g *Gateway) CreateIdentity(ctx context.Context, email, password string) (uuid.UUID, error) {
	return g.identity.SignUp(ctx, email, password)
}

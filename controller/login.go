// Package controller holds the per-screen state machines. Each controller
// owns observable cells, spawns command goroutines scoped to its lifetime
// and reports command outcomes through error channels.
package controller

import (
	"context"

	"instaclone/auth"
	"instaclone/session"
)

// LoginController drives the sign-in screen.
type LoginController struct {
	base

	gateway  *auth.Gateway
	sessions *session.Store

	status *Cell[Status]
}

func NewLoginController(gateway *auth.Gateway, sessions *session.Store) *LoginController {
	return &LoginController{
		base:     newBase(),
		gateway:  gateway,
		sessions: sessions,
		status:   NewCell(Status{}),
	}
}

// Status exposes the login state cell.
func (c *LoginController) Status() *Cell[Status] { return c.status }

// Login authenticates and records the session. The returned channel carries
// the outcome; the status cell tracks loading/success/error alongside it.
func (c *LoginController) Login(email, password string) <-chan error {
	c.status.Set(statusLoading())
	return c.run(func(ctx context.Context) error {
		if _, err := c.gateway.Login(ctx, email, password); err != nil {
			c.status.Set(statusError(err))
			return err
		}
		c.status.Set(statusSuccess())
		return nil
	})
}

// ObserveLoggedIn exposes the session store's logged-in stream for the
// splash navigation decision.
func (c *LoginController) ObserveLoggedIn(ctx context.Context) (<-chan bool, func(), error) {
	return c.sessions.Observe(ctx)
}

// Logout signs out and clears the session.
func (c *LoginController) Logout() <-chan error {
	return c.run(func(ctx context.Context) error {
		return c.gateway.Logout(ctx)
	})
}

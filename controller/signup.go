package controller

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"instaclone/apperr"
	"instaclone/auth"
	models "instaclone/model"
	"instaclone/repository"
	"instaclone/session"
)

const minHandleLength = 4

var handlePattern = regexp.MustCompile(`^[a-z0-9._]+$`)

// ValidateHandle reports whether a handle is well formed: lowercase letters,
// digits, dots and underscores, at least four characters.
func ValidateHandle(handle string) bool {
	return len(handle) >= minHandleLength && handlePattern.MatchString(handle)
}

// SignupController accumulates the staged signup flow (handle, then basic
// details, then profile details) and creates the account at the end.
type SignupController struct {
	base

	gateway  *auth.Gateway
	users    repository.UserRepository
	sessions *session.Store

	mu    sync.Mutex
	input models.SignupInput

	status *Cell[Status]
}

func NewSignupController(gateway *auth.Gateway, users repository.UserRepository, sessions *session.Store) *SignupController {
	return &SignupController{
		base:     newBase(),
		gateway:  gateway,
		users:    users,
		sessions: sessions,
		status:   NewCell(Status{}),
	}
}

func (c *SignupController) Status() *Cell[Status] { return c.status }

// SetHandle stages the chosen handle. It rejects malformed handles before
// any I/O happens.
func (c *SignupController) SetHandle(handle string) error {
	if !ValidateHandle(handle) {
		return fmt.Errorf("invalid handle %q", handle)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input.Handle = handle
	return nil
}

// SetBasicDetails stages the second signup step.
func (c *SignupController) SetBasicDetails(username, phone, email, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input.Username = username
	c.input.Phone = phone
	c.input.Email = email
	c.input.Password = password
}

// SetProfileDetails stages the optional final step.
func (c *SignupController) SetProfileDetails(profileImage *string, bio string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input.ProfileImage = profileImage
	c.input.Bio = bio
}

// Input returns a copy of the staged signup state.
func (c *SignupController) Input() models.SignupInput {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// CheckHandleAvailable resolves with nil when the handle is free and
// ErrHandleTaken when another profile already owns it.
func (c *SignupController) CheckHandleAvailable(handle string) <-chan error {
	return c.run(func(ctx context.Context) error {
		taken, err := c.users.HandleExists(ctx, handle)
		if err != nil {
			return fmt.Errorf("failed to check handle: %w", err)
		}
		if taken {
			return apperr.ErrHandleTaken
		}
		return nil
	})
}

// CheckEmailAvailable resolves with nil when the email is unused and
// ErrEmailTaken otherwise.
func (c *SignupController) CheckEmailAvailable(email string) <-chan error {
	return c.run(func(ctx context.Context) error {
		taken, err := c.users.EmailExists(ctx, email)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if taken {
			return apperr.ErrEmailTaken
		}
		return nil
	})
}

// CreateAccount registers the credential, creates the profile row under the
// new identity's id and records the session, completing the staged flow.
func (c *SignupController) CreateAccount() <-chan error {
	c.status.Set(statusLoading())
	return c.run(func(ctx context.Context) error {
		input := c.Input()

		uid, err := c.gateway.CreateIdentity(ctx, input.Email, input.Password)
		if err != nil {
			c.status.Set(statusError(err))
			return err
		}

		user := &models.User{
			ID:           uid,
			Handle:       input.Handle,
			Username:     input.Username,
			Phone:        input.Phone,
			Email:        input.Email,
			ProfileImage: input.ProfileImage,
		}
		if input.Bio != "" {
			user.Bio = &input.Bio
		}
		if err := c.users.Create(ctx, user); err != nil {
			c.status.Set(statusError(err))
			return err
		}

		if err := c.sessions.Save(ctx, uid); err != nil {
			err = fmt.Errorf("%w: %s", apperr.ErrSessionPersist, err)
			c.status.Set(statusError(err))
			return err
		}

		c.status.Set(statusSuccess())
		return nil
	})
}

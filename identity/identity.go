// Package identity is the client of the identity service: credential
// storage, sign-in/sign-up/sign-out and the locally cached signed-in user.
package identity

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"instaclone/apperr"
	"instaclone/pkg/jwt"
)

type Service struct {
	db     *sqlx.DB
	tokens *jwt.Manager
	expiry time.Duration

	mu      sync.RWMutex
	current *cachedSession
}

type cachedSession struct {
	userID uuid.UUID
	token  string
}

func NewService(db *sqlx.DB, tokens *jwt.Manager, accessExpiry time.Duration) *Service {
	return &Service{
		db:     db,
		tokens: tokens,
		expiry: accessExpiry,
	}
}

// SignUp registers a new credential. It does not sign the user in.
func (s *Service) SignUp(ctx context.Context, email, password string) (uuid.UUID, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM auth_credentials WHERE email = $1)`, email)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return uuid.Nil, apperr.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO auth_credentials (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		id, email, string(hash), time.Now(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create credential: %w", err)
	}

	return id, nil
}

// SignIn verifies the credential, issues an access token and caches the
// signed-in user. Bad credentials surface as ErrAuthFailed.
func (s *Service) SignIn(ctx context.Context, email, password string) (uuid.UUID, error) {
	var row struct {
		ID           uuid.UUID `db:"id"`
		PasswordHash string    `db:"password_hash"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT id, password_hash FROM auth_credentials WHERE email = $1`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, apperr.ErrAuthFailed
		}
		return uuid.Nil, fmt.Errorf("failed to look up credential: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)); err != nil {
		return uuid.Nil, apperr.ErrAuthFailed
	}

	token, err := s.tokens.Generate(row.ID.String(), s.expiry)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.mu.Lock()
	s.current = &cachedSession{userID: row.ID, token: token}
	s.mu.Unlock()

	return row.ID, nil
}

// SignOut drops the cached session.
func (s *Service) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return nil
}

// CurrentUser returns the cached signed-in user without any network call.
// An expired token counts as signed out.
func (s *Service) CurrentUser() (uuid.UUID, bool) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()

	if cur == nil {
		return uuid.Nil, false
	}
	if _, err := s.tokens.Verify(cur.token); err != nil {
		return uuid.Nil, false
	}
	return cur.userID, true
}

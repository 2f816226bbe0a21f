package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"instaclone/apperr"
	models "instaclone/model"
)

// handleRangeSentinel closes the lexicographic range for prefix search:
// every handle starting with p sorts inside [p, p+sentinel).
const handleRangeSentinel = ""

// suggestionSample bounds how many users are fetched before the
// already-followed ones are filtered out client-side.
const suggestionSample = 30

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetByIDs(ctx context.Context, userIDs []uuid.UUID) ([]*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	HandleExists(ctx context.Context, handle string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input *models.UpdateProfileInput) (*models.User, error)
	SearchByHandlePrefix(ctx context.Context, prefix string) ([]*models.User, error)
	GetSuggestions(ctx context.Context, selfID uuid.UUID, limit int) ([]*models.User, error)
	IncrementPostsCount(ctx context.Context, userID uuid.UUID) error
	DecrementPostsCount(ctx context.Context, userID uuid.UUID) error
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, handle, username, phone, email, profile_image, bio,
	       followers_count, following_count, posts_count, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Handle = strings.ToLower(user.Handle)

	query := `
		INSERT INTO users (id, handle, username, phone, email, profile_image, bio,
		                   followers_count, following_count, posts_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		user.ID, user.Handle, user.Username, user.Phone, user.Email, user.ProfileImage, user.Bio,
		user.FollowersCount, user.FollowingCount, user.PostsCount,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, userIDs []uuid.UUID) ([]*models.User, error) {
	if len(userIDs) == 0 {
		return []*models.User{}, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[])`

	var users []*models.User
	err := r.db.SelectContext(ctx, &users, query, pqUUIDArray(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}

	return users, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user by email: %w", apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return &user, nil
}

func (r *userRepository) HandleExists(ctx context.Context, handle string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE handle = $1)`, strings.ToLower(handle))
	if err != nil {
		return false, fmt.Errorf("failed to check handle: %w", err)
	}
	return exists, nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, userID uuid.UUID, input *models.UpdateProfileInput) (*models.User, error) {
	query := "UPDATE users SET updated_at = NOW()"
	args := []interface{}{}
	argCount := 1

	if input.Username != nil {
		query += fmt.Sprintf(", username = $%d", argCount)
		args = append(args, *input.Username)
		argCount++
	}

	if input.Bio != nil {
		query += fmt.Sprintf(", bio = $%d", argCount)
		args = append(args, *input.Bio)
		argCount++
	}

	if input.ProfileImage != nil {
		query += fmt.Sprintf(", profile_image = $%d", argCount)
		args = append(args, *input.ProfileImage)
		argCount++
	}

	query += fmt.Sprintf(" WHERE id = $%d RETURNING ", argCount) + userColumns
	args = append(args, userID)

	var user models.User
	err := r.db.GetContext(ctx, &user, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return &user, nil
}

// SearchByHandlePrefix returns users whose handle starts with prefix,
// case-insensitively. The backend only offers range queries, so the prefix
// is lowered and bounded with the max-codepoint sentinel. A blank prefix
// returns nothing.
func (r *userRepository) SearchByHandlePrefix(ctx context.Context, prefix string) ([]*models.User, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []*models.User{}, nil
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE handle >= $1 AND handle < $2
		ORDER BY handle
	`

	var users []*models.User
	err := r.db.SelectContext(ctx, &users, query, prefix, prefix+handleRangeSentinel)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	return users, nil
}

// GetSuggestions fetches a bounded sample in the backend's fixed ordering
// and strips out self and everyone already followed. First-N of a fixed
// order, no relevance signal.
func (r *userRepository) GetSuggestions(ctx context.Context, selfID uuid.UUID, limit int) ([]*models.User, error) {
	var followingIDs []uuid.UUID
	err := r.db.SelectContext(ctx, &followingIDs,
		`SELECT following_id FROM user_following WHERE user_id = $1`, selfID)
	if err != nil {
		return nil, fmt.Errorf("failed to get following ids: %w", err)
	}

	exclude := make(map[uuid.UUID]bool, len(followingIDs)+1)
	for _, id := range followingIDs {
		exclude[id] = true
	}
	exclude[selfID] = true

	query := `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT $1`

	var sample []*models.User
	if err := r.db.SelectContext(ctx, &sample, query, suggestionSample); err != nil {
		return nil, fmt.Errorf("failed to sample users: %w", err)
	}

	suggestions := make([]*models.User, 0, limit)
	for _, u := range sample {
		if exclude[u.ID] {
			continue
		}
		suggestions = append(suggestions, u)
		if len(suggestions) == limit {
			break
		}
	}

	return suggestions, nil
}

func (r *userRepository) IncrementPostsCount(ctx context.Context, userID uuid.UUID) error {
	return r.adjustPostsCount(ctx, userID, "posts_count + 1")
}

func (r *userRepository) DecrementPostsCount(ctx context.Context, userID uuid.UUID) error {
	return r.adjustPostsCount(ctx, userID, "GREATEST(posts_count - 1, 0)")
}

// Counter writes are server-side increments, never read-modify-write.
func (r *userRepository) adjustPostsCount(ctx context.Context, userID uuid.UUID, expr string) error {
	query := `UPDATE users SET posts_count = ` + expr + `, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to adjust posts count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
	}

	return nil
}

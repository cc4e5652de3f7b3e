package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/spec-kit/query-desk/internal/domain"
	"github.com/spec-kit/query-desk/internal/persistence"
	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

// UserRepository defines persistence access for credential records.
type UserRepository interface {
	// InsertIfAbsent stores the user unless the username exists; it reports whether a row was written.
	InsertIfAbsent(ctx context.Context, user *domain.User) (bool, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type userRepository struct {
	db *persistence.Database
}

// NewUserRepository returns a SQL-backed implementation.
func NewUserRepository(db *persistence.Database) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) InsertIfAbsent(ctx context.Context, user *domain.User) (bool, error) {
	const query = `
        INSERT INTO users (username, hashed_password, role)
        VALUES (?, ?, ?)
        ON CONFLICT (username) DO NOTHING`

	res, err := r.db.DB.ExecContext(ctx, r.db.Rebind(query),
		user.Username,
		user.PasswordHash,
		string(user.Role),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `
        SELECT username, hashed_password, role
        FROM users WHERE username=?`

	var (
		user    domain.User
		rawRole string
	)
	if err := r.db.DB.QueryRowContext(ctx, r.db.Rebind(query), username).Scan(
		&user.Username,
		&user.PasswordHash,
		&rawRole,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"username": username})
		}
		return nil, err
	}

	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return nil, apperrors.NewCorruptState("stored role is not recognised", map[string]any{
			"username": username,
			"role":     rawRole,
		})
	}
	user.Role = role
	return &user, nil
}

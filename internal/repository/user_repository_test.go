package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/query-desk/internal/domain"
	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

func TestUserRepository_InsertIfAbsent(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))
	ctx := context.Background()

	inserted, err := repo.InsertIfAbsent(ctx, &domain.User{Username: "Alice", PasswordHash: "h1", Role: domain.RoleClient})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(ctx, &domain.User{Username: "Alice", PasswordHash: "h2", Role: domain.RoleSupport})
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := repo.GetByUsername(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.PasswordHash)
	assert.Equal(t, domain.RoleClient, got.Role)
}

func TestUserRepository_GetByUsername_NotFound(t *testing.T) {
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.GetByUsername(context.Background(), "nobody")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestUserRepository_LegacyLowercaseRole(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.DB.ExecContext(ctx, `INSERT INTO users (username, hashed_password, role) VALUES ('Sasi', 'h', 'support')`)
	require.NoError(t, err)

	got, err := NewUserRepository(db).GetByUsername(ctx, "Sasi")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSupport, got.Role)
}

func TestUserRepository_UnknownRoleIsCorrupt(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, err := db.DB.ExecContext(ctx, `INSERT INTO users (username, hashed_password, role) VALUES ('Root', 'h', 'admin')`)
	require.NoError(t, err)

	_, err = NewUserRepository(db).GetByUsername(ctx, "Root")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCorruptState))
}

package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/query-desk/internal/auth"
	"github.com/spec-kit/query-desk/internal/domain"
	"github.com/spec-kit/query-desk/internal/repository"
	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

// SeedUser is a credential registered at startup.
type SeedUser struct {
	Username string
	Password string
	Role     domain.Role
}

// DefaultSeedUsers are registered on every start; existing usernames are untouched.
var DefaultSeedUsers = []SeedUser{
	{Username: "Alice", Password: "Alice@123", Role: domain.RoleClient},
	{Username: "Sasi", Password: "Sasi@123", Role: domain.RoleSupport},
	{Username: "Eddy", Password: "Eddy@123", Role: domain.RoleSupport},
	{Username: "Mohan", Password: "Mohan@123", Role: domain.RoleSupport},
}

const invalidCredentials = "invalid login credentials"

// CredentialService registers and verifies credentials.
type CredentialService struct {
	users  repository.UserRepository
	hasher *auth.PasswordHasher
	logger *zap.Logger
}

// NewCredentialService builds the service.
func NewCredentialService(users repository.UserRepository, hasher *auth.PasswordHasher, logger *zap.Logger) *CredentialService {
	return &CredentialService{users: users, hasher: hasher, logger: logger}
}

// Register stores a credential unless the username already exists.
// An existing record is never overwritten and is not an error.
func (s *CredentialService) Register(ctx context.Context, username, password string, role domain.Role) error {
	if username == "" {
		return apperrors.NewValidationError("username required", nil)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	inserted, err := s.users.InsertIfAbsent(ctx, &domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return err
	}
	if inserted {
		s.logger.Info("registered user", zap.String("username", username), zap.String("role", string(role)))
	}
	return nil
}

// Verify returns the user when username, password and role all match.
// Every mismatch yields the same UNAUTHORIZED error.
func (s *CredentialService) Verify(ctx context.Context, username, password string, role domain.Role) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		switch {
		case apperrors.HasCode(err, apperrors.CodeNotFound):
			return nil, apperrors.NewUnauthorized(invalidCredentials)
		case apperrors.HasCode(err, apperrors.CodeCorruptState):
			s.logger.Warn("credential record unusable", zap.String("username", username), zap.Error(err))
			return nil, apperrors.NewUnauthorized(invalidCredentials)
		default:
			return nil, err
		}
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}
	if user.Role != role {
		return nil, apperrors.NewUnauthorized(invalidCredentials)
	}
	return user, nil
}

// Seed registers each seed user idempotently.
func (s *CredentialService) Seed(ctx context.Context, seeds []SeedUser) error {
	for _, seed := range seeds {
		if err := s.Register(ctx, seed.Username, seed.Password, seed.Role); err != nil {
			return err
		}
	}
	return nil
}

// Package session keeps server-side login sessions keyed by an opaque id.
package session

import (
	"context"

	"github.com/spec-kit/query-desk/internal/domain"
)

// Store persists sessions. Get returns (nil, nil) for unknown or expired ids.
type Store interface {
	Save(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/query-desk/internal/auth"
	"github.com/spec-kit/query-desk/internal/domain"
	"github.com/spec-kit/query-desk/internal/events"
	"github.com/spec-kit/query-desk/internal/session"
	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

// AccessGate authenticates users, tracks their sessions and is the only
// place where role permissions are enforced.
type AccessGate struct {
	credentials *CredentialService
	queries     *QueryService
	sessions    session.Store
	tokens      *auth.TokenManager
	ttl         time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// GateDependencies bundles collaborators for the access gate.
type GateDependencies struct {
	Credentials *CredentialService
	Queries     *QueryService
	Sessions    session.Store
	Tokens      *auth.TokenManager
	SessionTTL  time.Duration
	Now         func() time.Time
	Logger      *zap.Logger
}

// NewAccessGate builds the gate.
func NewAccessGate(deps GateDependencies) *AccessGate {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessGate{
		credentials: deps.Credentials,
		queries:     deps.Queries,
		sessions:    deps.Sessions,
		tokens:      deps.Tokens,
		ttl:         deps.SessionTTL,
		now:         now,
		logger:      logger,
	}
}

// Login verifies the credential triple and opens a session.
func (g *AccessGate) Login(ctx context.Context, username, password string, role domain.Role) (*domain.Session, string, error) {
	user, err := g.credentials.Verify(ctx, username, password, role)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeUnauthorized) {
			g.logger.Info("login rejected", zap.String("username", username))
		}
		return nil, "", err
	}

	issued := g.now()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		Username:  user.Username,
		Role:      user.Role,
		IssuedAt:  issued,
		ExpiresAt: auth.ExpiryOf(issued, g.ttl),
	}
	if err := g.sessions.Save(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("save session: %w", err)
	}
	token, err := g.tokens.GenerateToken(sess)
	if err != nil {
		_ = g.sessions.Delete(ctx, sess.ID)
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}

	g.logger.Info("login", zap.String("username", sess.Username), zap.String("role", string(sess.Role)))
	return sess, token, nil
}

// Logout discards the session named by token. Unknown or invalid tokens are ignored.
func (g *AccessGate) Logout(ctx context.Context, token string) error {
	claims, err := g.tokens.ParseToken(token)
	if err != nil {
		return nil
	}
	if err := g.sessions.Delete(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	g.logger.Info("logout", zap.String("username", claims.Subject))
	return nil
}

// Current returns the live session for token, or nil when unauthenticated.
func (g *AccessGate) Current(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := g.tokens.ParseToken(token)
	if err != nil {
		return nil, nil
	}
	sess, err := g.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil || sess.Expired(g.now()) {
		return nil, nil
	}
	return sess, nil
}

// Authorize checks that the session may act in role.
func (g *AccessGate) Authorize(sess *domain.Session, role domain.Role) error {
	if sess == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if sess.Role != role {
		return apperrors.NewForbidden(fmt.Sprintf("%s role required", role))
	}
	return nil
}

// NextQueryID previews the next identifier for a client's submission form.
func (g *AccessGate) NextQueryID(ctx context.Context, sess *domain.Session) (string, error) {
	if err := g.Authorize(sess, domain.RoleClient); err != nil {
		return "", err
	}
	return g.queries.NextQueryID(ctx)
}

// SubmitQuery lets a client raise a query.
func (g *AccessGate) SubmitQuery(ctx context.Context, sess *domain.Session, input SubmitInput) (*domain.Query, error) {
	if err := g.Authorize(sess, domain.RoleClient); err != nil {
		return nil, err
	}
	return g.queries.Submit(ctx, actorOf(sess), input)
}

// ClientHistory lists a client's queries by e-mail, most recent first.
// Users carry no e-mail address, so any client may look up any address.
func (g *AccessGate) ClientHistory(ctx context.Context, sess *domain.Session, email string) ([]domain.Query, error) {
	if err := g.Authorize(sess, domain.RoleClient); err != nil {
		return nil, err
	}
	return g.queries.ListByClient(ctx, email)
}

// ListQueries lets support view all queries or those with one status.
func (g *AccessGate) ListQueries(ctx context.Context, sess *domain.Session, status *domain.QueryStatus) ([]domain.Query, error) {
	if err := g.Authorize(sess, domain.RoleSupport); err != nil {
		return nil, err
	}
	return g.queries.List(ctx, status)
}

// OpenQueryIDs lists queries support can still close.
func (g *AccessGate) OpenQueryIDs(ctx context.Context, sess *domain.Session) ([]string, error) {
	if err := g.Authorize(sess, domain.RoleSupport); err != nil {
		return nil, err
	}
	return g.queries.OpenQueryIDs(ctx)
}

// CloseQuery lets support close a query.
func (g *AccessGate) CloseQuery(ctx context.Context, sess *domain.Session, id string) (*domain.Query, error) {
	if err := g.Authorize(sess, domain.RoleSupport); err != nil {
		return nil, err
	}
	return g.queries.Close(ctx, actorOf(sess), id)
}

func actorOf(sess *domain.Session) events.Actor {
	return events.Actor{Username: sess.Username, Role: sess.Role}
}

package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/query-desk/internal/auth"
	"github.com/spec-kit/query-desk/internal/config"
	"github.com/spec-kit/query-desk/internal/events"
	"github.com/spec-kit/query-desk/internal/observability"
	"github.com/spec-kit/query-desk/internal/persistence"
	"github.com/spec-kit/query-desk/internal/repository"
	"github.com/spec-kit/query-desk/internal/session"
	"github.com/spec-kit/query-desk/internal/storage"
)

type testClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newTestClock() *testClock {
	return &testClock{cur: time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)}
}

// Now advances one second per call so every stamp is distinct.
func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

type fixture struct {
	db          *persistence.Database
	users       repository.UserRepository
	queries     repository.QueryRepository
	attachments storage.AttachmentStore
	uploadDir   string
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	credentials *CredentialService
	querySvc    *QueryService
	gate        *AccessGate
	clock       *testClock
}

type fixtureOptions struct {
	recloseOverwrites bool
	legacyHashes      bool
	sessionTTL        time.Duration
	queryRepo         func(repository.QueryRepository) repository.QueryRepository
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()
	dir := t.TempDir()

	db, err := persistence.Open(ctx, config.StoreConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(dir, "queries_database.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, persistence.RunMigrations(ctx, db, logger))

	clock := newTestClock()
	uploadDir := filepath.Join(dir, "uploads")
	attachments, err := storage.NewDiskStore(uploadDir, 1<<20, logger)
	require.NoError(t, err)

	users := repository.NewUserRepository(db)
	var queries repository.QueryRepository = repository.NewQueryRepository(db, repository.QueryRepositoryOptions{
		Now:               clock.Now,
		RecloseOverwrites: opts.recloseOverwrites,
	})
	if opts.queryRepo != nil {
		queries = opts.queryRepo(queries)
	}

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	NewNotificationService(dispatcher, logger, metrics, config.NotificationConfig{}).RegisterHandlers()

	credentials := NewCredentialService(users, auth.NewPasswordHasher(bcrypt.MinCost, opts.legacyHashes), logger)
	querySvc := NewQueryService(QueryDependencies{
		QueryRepo:    queries,
		Attachments:  attachments,
		Dispatcher:   dispatcher,
		Logger:       logger,
		MaxIDRetries: 3,
		Now:          clock.Now,
	})
	gate := NewAccessGate(GateDependencies{
		Credentials: credentials,
		Queries:     querySvc,
		Sessions:    session.NewMemoryStore(clock.Now),
		Tokens:      auth.NewTokenManager("test-secret"),
		SessionTTL:  opts.sessionTTL,
		Now:         clock.Now,
		Logger:      logger,
	})

	require.NoError(t, credentials.Seed(ctx, DefaultSeedUsers))

	return &fixture{
		db:          db,
		users:       users,
		queries:     queries,
		attachments: attachments,
		uploadDir:   uploadDir,
		dispatcher:  dispatcher,
		metrics:     metrics,
		credentials: credentials,
		querySvc:    querySvc,
		gate:        gate,
		clock:       clock,
	}
}

package service

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/query-desk/internal/domain"
	"github.com/spec-kit/query-desk/internal/events"
	"github.com/spec-kit/query-desk/internal/repository"
	"github.com/spec-kit/query-desk/internal/storage"
	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

// QueryService coordinates the query lifecycle.
type QueryService struct {
	queries     repository.QueryRepository
	attachments storage.AttachmentStore
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	maxRetries  int
	now         func() time.Time

	// assign serializes identifier assignment within the process.
	assign sync.Mutex
}

// QueryDependencies bundles collaborators for the query service.
type QueryDependencies struct {
	QueryRepo   repository.QueryRepository
	Attachments storage.AttachmentStore
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	// MaxIDRetries bounds how often a taken identifier is re-drawn.
	MaxIDRetries int
	Now          func() time.Time
}

// SubmitInput describes a client submission.
type SubmitInput struct {
	Email       string
	Mobile      string
	Heading     string
	Description string
	Screenshot  *ScreenshotUpload
}

// ScreenshotUpload is an optional image attached to a submission.
type ScreenshotUpload struct {
	FileName string
	Content  []byte
}

// NewQueryService constructs the service.
func NewQueryService(deps QueryDependencies) *QueryService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retries := deps.MaxIDRetries
	if retries < 0 {
		retries = 0
	}
	return &QueryService{
		queries:     deps.QueryRepo,
		attachments: deps.Attachments,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		maxRetries:  retries,
		now:         now,
	}
}

// NextQueryID previews the identifier the next submission will receive.
func (s *QueryService) NextQueryID(ctx context.Context) (string, error) {
	return s.queries.NextIdentifier(ctx)
}

// Submit stores a new Open query with an optional screenshot.
func (s *QueryService) Submit(ctx context.Context, actor events.Actor, input SubmitInput) (*domain.Query, error) {
	if err := domain.ValidateSubmission(input.Email, input.Mobile, input.Heading, input.Description); err != nil {
		return nil, err
	}
	var staged *storage.StagedFile
	if input.Screenshot != nil {
		var err error
		staged, err = s.attachments.Stage(ctx, input.Screenshot.FileName, bytes.NewReader(input.Screenshot.Content))
		if err != nil {
			return nil, err
		}
		defer s.attachments.Discard(ctx, staged)
	}

	s.assign.Lock()
	defer s.assign.Unlock()

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		id, err := s.queries.NextIdentifier(ctx)
		if err != nil {
			return nil, err
		}

		query := &domain.Query{
			ID:           id,
			ClientEmail:  input.Email,
			ClientMobile: input.Mobile,
			Heading:      input.Heading,
			Description:  input.Description,
		}
		if staged != nil {
			ref := s.attachments.Ref(id, staged)
			query.ScreenshotRef = &ref
		}

		err = s.queries.Insert(ctx, query)
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			s.logger.Warn("query id taken concurrently; retrying", zap.String("query_id", id), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		// The row is stored; only now may the screenshot take the query's name.
		if staged != nil {
			if err := s.attachments.Commit(ctx, staged, *query.ScreenshotRef); err != nil {
				s.logger.Error("screenshot not published for stored query", zap.String("query_id", id), zap.Error(err))
				return nil, err
			}
		}
		s.publish(ctx, events.Event{
			Type:    events.EventQuerySubmitted,
			QueryID: query.ID,
			Actor:   actor,
			Payload: events.QuerySubmittedPayload{
				ClientEmail:   query.ClientEmail,
				Heading:       query.Heading,
				HasScreenshot: query.HasScreenshot(),
			},
		})
		return query, nil
	}

	return nil, apperrors.NewConflict("could not assign a unique query id", map[string]any{"attempts": s.maxRetries + 1})
}

// List returns every query, or only those with the given status, in insertion order.
func (s *QueryService) List(ctx context.Context, status *domain.QueryStatus) ([]domain.Query, error) {
	return s.queries.List(ctx, repository.QueryFilter{Status: status})
}

// ListByClient returns a client's queries, most recent first.
func (s *QueryService) ListByClient(ctx context.Context, email string) ([]domain.Query, error) {
	if email == "" {
		return nil, apperrors.NewValidationError("email required", nil)
	}
	return s.queries.ListByClient(ctx, email)
}

// OpenQueryIDs lists identifiers that can still be closed.
func (s *QueryService) OpenQueryIDs(ctx context.Context) ([]string, error) {
	open := domain.QueryStatusOpen
	queries, err := s.queries.List(ctx, repository.QueryFilter{Status: &open})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(queries))
	for _, q := range queries {
		ids = append(ids, q.ID)
	}
	return ids, nil
}

// Close marks a query Closed.
func (s *QueryService) Close(ctx context.Context, actor events.Actor, id string) (*domain.Query, error) {
	query, err := s.queries.Close(ctx, id)
	if err != nil {
		return nil, err
	}
	payload := events.QueryClosedPayload{ClientEmail: query.ClientEmail, DateRaised: query.DateRaised}
	if query.DateClosed != nil {
		payload.DateClosed = *query.DateClosed
	}
	s.publish(ctx, events.Event{
		Type:    events.EventQueryClosed,
		QueryID: query.ID,
		Actor:   actor,
		Payload: payload,
	})
	return query, nil
}

func (s *QueryService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.String("query_id", event.QueryID), zap.Error(err))
	}
}

package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/query-desk/internal/domain"
	"github.com/spec-kit/query-desk/internal/events"
	"github.com/spec-kit/query-desk/internal/repository"
	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

var clientActor = events.Actor{Username: "Alice", Role: domain.RoleClient}

func validInput(email string) SubmitInput {
	return SubmitInput{Email: email, Mobile: "5550100", Heading: "H", Description: "D"}
}

func TestSubmit_EndToEndLifecycle(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()

	next, err := f.querySvc.NextQueryID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Q5201", next)

	submitted, err := f.querySvc.Submit(ctx, clientActor, validInput("a@x.com"))
	require.NoError(t, err)
	assert.Equal(t, "Q5201", submitted.ID)

	history, err := f.querySvc.ListByClient(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.QueryStatusOpen, history[0].Status)
	assert.Nil(t, history[0].ScreenshotRef)
	assert.Nil(t, history[0].DateClosed)

	_, err = f.querySvc.Close(ctx, events.Actor{Username: "Sasi", Role: domain.RoleSupport}, "Q5201")
	require.NoError(t, err)

	history, err = f.querySvc.ListByClient(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.QueryStatusClosed, history[0].Status)
	assert.NotNil(t, history[0].DateClosed)

	emitted, err := testutil.GatherAndCount(f.metrics.Registry(), "qd_query_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, emitted)
}

func TestSubmit_RejectsMissingFields(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()

	in := validInput("a@x.com")
	in.Description = ""
	_, err := f.querySvc.Submit(ctx, clientActor, in)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	all, err := f.querySvc.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubmit_WithScreenshot(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()

	in := validInput("a@x.com")
	in.Screenshot = &ScreenshotUpload{FileName: "capture.PNG", Content: []byte("img")}
	q, err := f.querySvc.Submit(ctx, clientActor, in)
	require.NoError(t, err)

	require.NotNil(t, q.ScreenshotRef)
	assert.Equal(t, filepath.Join(f.uploadDir, "Q5201_screenshot.PNG"), *q.ScreenshotRef)
	data, err := os.ReadFile(*q.ScreenshotRef)
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))
}

func TestSubmit_RejectsScreenshotTypeBeforeStoring(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()

	in := validInput("a@x.com")
	in.Screenshot = &ScreenshotUpload{FileName: "notes.txt", Content: []byte("x")}
	_, err := f.querySvc.Submit(ctx, clientActor, in)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	all, err := f.querySvc.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// racingRepo simulates another writer claiming each drawn identifier first.
// When rivalShots is set the rival also stores a screenshot under the same name.
type racingRepo struct {
	repository.QueryRepository
	steal      int
	rivalShots string
}

func (r *racingRepo) Insert(ctx context.Context, q *domain.Query) error {
	if r.steal > 0 {
		r.steal--
		rival := &domain.Query{ID: q.ID, ClientEmail: "rival@x.com", ClientMobile: "1", Heading: "r", Description: "r"}
		if r.rivalShots != "" {
			ref := filepath.Join(r.rivalShots, q.ID+"_screenshot.png")
			if err := os.WriteFile(ref, []byte("rival"), 0o644); err != nil {
				return err
			}
			rival.ScreenshotRef = &ref
		}
		if err := r.QueryRepository.Insert(ctx, rival); err != nil {
			return err
		}
	}
	return r.QueryRepository.Insert(ctx, q)
}

func TestSubmit_RetriesTakenIdentifier(t *testing.T) {
	f := newFixture(t, fixtureOptions{queryRepo: func(inner repository.QueryRepository) repository.QueryRepository {
		return &racingRepo{QueryRepository: inner, steal: 2}
	}})
	ctx := context.Background()

	in := validInput("a@x.com")
	in.Screenshot = &ScreenshotUpload{FileName: "s.jpg", Content: []byte("img")}
	q, err := f.querySvc.Submit(ctx, clientActor, in)
	require.NoError(t, err)
	assert.Equal(t, "Q5203", q.ID)

	entries, err := os.ReadDir(f.uploadDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "only the committed screenshot is published")
	assert.Equal(t, "Q5203_screenshot.jpg", entries[0].Name())
}

func TestSubmit_KeepsRivalScreenshot(t *testing.T) {
	var racer *racingRepo
	f := newFixture(t, fixtureOptions{queryRepo: func(inner repository.QueryRepository) repository.QueryRepository {
		racer = &racingRepo{QueryRepository: inner, steal: 1}
		return racer
	}})
	racer.rivalShots = f.uploadDir
	ctx := context.Background()

	in := validInput("a@x.com")
	in.Screenshot = &ScreenshotUpload{FileName: "mine.png", Content: []byte("mine")}
	q, err := f.querySvc.Submit(ctx, clientActor, in)
	require.NoError(t, err)
	assert.Equal(t, "Q5202", q.ID)

	rival, err := f.queries.GetByID(ctx, "Q5201")
	require.NoError(t, err)
	require.NotNil(t, rival.ScreenshotRef)
	data, err := os.ReadFile(*rival.ScreenshotRef)
	require.NoError(t, err)
	assert.Equal(t, "rival", string(data))

	data, err = os.ReadFile(*q.ScreenshotRef)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))

	entries, err := os.ReadDir(f.uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSubmit_GivesUpAfterRetries(t *testing.T) {
	f := newFixture(t, fixtureOptions{queryRepo: func(inner repository.QueryRepository) repository.QueryRepository {
		return &racingRepo{QueryRepository: inner, steal: 100}
	}})

	in := validInput("a@x.com")
	in.Screenshot = &ScreenshotUpload{FileName: "s.png", Content: []byte("img")}
	_, err := f.querySvc.Submit(context.Background(), clientActor, in)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	entries, err := os.ReadDir(f.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged upload is discarded")
}

func TestSubmit_CorruptStoreFails(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()
	_, err := f.db.DB.ExecContext(ctx, `INSERT INTO queries (query_id, status) VALUES ('BROKEN', 'Open')`)
	require.NoError(t, err)

	_, err = f.querySvc.Submit(ctx, clientActor, validInput("a@x.com"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCorruptState))
}

func TestClose_UnknownIdentifier(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	_, err := f.querySvc.Close(context.Background(), clientActor, "Q0001")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestClose_RecloseBehaviour(t *testing.T) {
	support := events.Actor{Username: "Sasi", Role: domain.RoleSupport}

	t.Run("first close wins", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		ctx := context.Background()
		_, err := f.querySvc.Submit(ctx, clientActor, validInput("a@x.com"))
		require.NoError(t, err)

		first, err := f.querySvc.Close(ctx, support, "Q5201")
		require.NoError(t, err)
		second, err := f.querySvc.Close(ctx, support, "Q5201")
		require.NoError(t, err)
		assert.Equal(t, domain.QueryStatusClosed, second.Status)
		assert.True(t, first.DateClosed.Equal(*second.DateClosed))
	})

	t.Run("overwrite in compatibility mode", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{recloseOverwrites: true})
		ctx := context.Background()
		_, err := f.querySvc.Submit(ctx, clientActor, validInput("a@x.com"))
		require.NoError(t, err)

		first, err := f.querySvc.Close(ctx, support, "Q5201")
		require.NoError(t, err)
		second, err := f.querySvc.Close(ctx, support, "Q5201")
		require.NoError(t, err)
		assert.Equal(t, domain.QueryStatusClosed, second.Status)
		assert.True(t, second.DateClosed.After(*first.DateClosed))
	})
}

func TestListByClient_RequiresEmail(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	_, err := f.querySvc.ListByClient(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestOpenQueryIDs(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.querySvc.Submit(ctx, clientActor, validInput("a@x.com"))
		require.NoError(t, err)
	}
	_, err := f.querySvc.Close(ctx, clientActor, "Q5202")
	require.NoError(t, err)

	ids, err := f.querySvc.OpenQueryIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Q5201", "Q5203"}, ids)
}

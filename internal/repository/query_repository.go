package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/query-desk/internal/domain"
	"github.com/spec-kit/query-desk/internal/persistence"
	apperrors "github.com/spec-kit/query-desk/pkg/util"
)

// TimestampLayout is how date_raised and date_closed are persisted.
const TimestampLayout = "2006-01-02 15:04:05"

// QueryFilter narrows List results. Nil fields match everything.
type QueryFilter struct {
	Status      *domain.QueryStatus
	ClientEmail *string
	NewestFirst bool
}

// QueryRepository encapsulates query persistence. It performs no authorization.
type QueryRepository interface {
	NextIdentifier(ctx context.Context) (string, error)
	Insert(ctx context.Context, query *domain.Query) error
	GetByID(ctx context.Context, id string) (*domain.Query, error)
	List(ctx context.Context, filter QueryFilter) ([]domain.Query, error)
	ListByClient(ctx context.Context, email string) ([]domain.Query, error)
	Close(ctx context.Context, id string) (*domain.Query, error)
}

// QueryRepositoryOptions tunes clock and close semantics.
type QueryRepositoryOptions struct {
	Now func() time.Time
	// RecloseOverwrites restamps date_closed when an already closed query is closed again.
	RecloseOverwrites bool
}

type queryRepository struct {
	db                *persistence.Database
	now               func() time.Time
	recloseOverwrites bool
}

// NewQueryRepository instantiates repository.
func NewQueryRepository(db *persistence.Database, opts QueryRepositoryOptions) QueryRepository {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &queryRepository{db: db, now: now, recloseOverwrites: opts.RecloseOverwrites}
}

const querySelect = `
        SELECT query_id, client_email, client_mobile, query_heading, query_description,
               status, date_raised, date_closed, screenshot_path
        FROM queries`

func (r *queryRepository) NextIdentifier(ctx context.Context) (string, error) {
	// Identifiers are Q<digits>: longer means larger, equal lengths compare lexically.
	const query = `SELECT query_id FROM queries ORDER BY LENGTH(query_id) DESC, query_id DESC LIMIT 1`

	var last string
	err := r.db.DB.QueryRowContext(ctx, query).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FormatQueryID(domain.BaselineQueryNumber), nil
	}
	if err != nil {
		return "", err
	}

	n, err := domain.ParseQueryID(last)
	if err != nil {
		return "", apperrors.NewCorruptState("highest stored query id is malformed", map[string]any{
			"query_id": last,
		})
	}
	return domain.FormatQueryID(n + 1), nil
}

func (r *queryRepository) Insert(ctx context.Context, q *domain.Query) error {
	if err := domain.ValidateSubmission(q.ClientEmail, q.ClientMobile, q.Heading, q.Description); err != nil {
		return err
	}
	if _, err := domain.ParseQueryID(q.ID); err != nil {
		return apperrors.NewValidationError("malformed query id", map[string]any{"query_id": q.ID})
	}

	raised := r.now().Truncate(time.Second)
	const query = `
        INSERT INTO queries (query_id, client_email, client_mobile, query_heading,
                             query_description, screenshot_path, status, date_raised)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.DB.ExecContext(ctx, r.db.Rebind(query),
		q.ID,
		q.ClientEmail,
		q.ClientMobile,
		q.Heading,
		q.Description,
		nullableString(q.ScreenshotRef),
		string(domain.QueryStatusOpen),
		raised.Format(TimestampLayout),
	)
	if err != nil {
		if persistence.IsUniqueViolation(err) {
			return apperrors.NewConflict("query id already taken", map[string]any{"query_id": q.ID})
		}
		return err
	}

	q.Status = domain.QueryStatusOpen
	q.DateRaised = raised
	q.DateClosed = nil
	return nil
}

func (r *queryRepository) GetByID(ctx context.Context, id string) (*domain.Query, error) {
	rows, err := r.db.DB.QueryContext(ctx, r.db.Rebind(querySelect+" WHERE query_id=?"), id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result, err := scanQueries(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, apperrors.NewNotFound("query", map[string]any{"query_id": id})
	}
	return &result[0], nil
}

func (r *queryRepository) ListByClient(ctx context.Context, email string) ([]domain.Query, error) {
	return r.List(ctx, QueryFilter{ClientEmail: &email, NewestFirst: true})
}

func (r *queryRepository) List(ctx context.Context, filter QueryFilter) ([]domain.Query, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, "status=?")
	}
	if filter.ClientEmail != nil {
		args = append(args, *filter.ClientEmail)
		clauses = append(clauses, "client_email=?")
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY %s",
		querySelect, strings.Join(clauses, " AND "), r.orderBy(filter.NewestFirst))

	rows, err := r.db.DB.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueries(rows)
}

func (r *queryRepository) orderBy(newestFirst bool) string {
	if r.db.Dialect == persistence.DialectSQLite {
		if newestFirst {
			return "date_raised DESC, rowid DESC"
		}
		return "rowid"
	}
	// Postgres has no stable rowid; raise time and identifier track insertion.
	if newestFirst {
		return "date_raised DESC, LENGTH(query_id) DESC, query_id DESC"
	}
	return "date_raised, LENGTH(query_id), query_id"
}

func (r *queryRepository) Close(ctx context.Context, id string) (*domain.Query, error) {
	query := `UPDATE queries SET status=?, date_closed=COALESCE(date_closed, ?) WHERE query_id=?`
	if r.recloseOverwrites {
		query = `UPDATE queries SET status=?, date_closed=? WHERE query_id=?`
	}

	closedAt := r.now().Truncate(time.Second).Format(TimestampLayout)
	res, err := r.db.DB.ExecContext(ctx, r.db.Rebind(query), string(domain.QueryStatusClosed), closedAt, id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperrors.NewNotFound("query", map[string]any{"query_id": id})
	}
	return r.GetByID(ctx, id)
}

func scanQueries(rows *sql.Rows) ([]domain.Query, error) {
	var result []domain.Query
	for rows.Next() {
		var (
			q                                    domain.Query
			email, mobile, heading, desc, status sql.NullString
			raised, closed, screenshot           sql.NullString
		)
		if err := rows.Scan(
			&q.ID,
			&email,
			&mobile,
			&heading,
			&desc,
			&status,
			&raised,
			&closed,
			&screenshot,
		); err != nil {
			return nil, err
		}
		q.ClientEmail = email.String
		q.ClientMobile = mobile.String
		q.Heading = heading.String
		q.Description = desc.String
		q.Status = domain.QueryStatusOpen
		if status.Valid && status.String != "" {
			q.Status = domain.QueryStatus(status.String)
		}
		if raised.Valid && raised.String != "" {
			t, err := parseTimestamp(raised.String)
			if err != nil {
				return nil, fmt.Errorf("query %s date_raised: %w", q.ID, err)
			}
			q.DateRaised = t
		}
		if closed.Valid && closed.String != "" {
			t, err := parseTimestamp(closed.String)
			if err != nil {
				return nil, fmt.Errorf("query %s date_closed: %w", q.ID, err)
			}
			q.DateClosed = &t
		}
		if screenshot.Valid && screenshot.String != "" {
			ref := screenshot.String
			q.ScreenshotRef = &ref
		}
		result = append(result, q)
	}
	return result, rows.Err()
}

func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimestampLayout, raw, time.Local); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

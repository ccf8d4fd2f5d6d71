package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"importer_server/core/domain"
	"importer_server/core/port/out"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ImportJobAdapter implements out.ImportJobRepository using PostgreSQL.
type ImportJobAdapter struct {
	db *sqlx.DB
}

// NewImportJobAdapter creates a new ImportJobAdapter.
func NewImportJobAdapter(db *sqlx.DB) *ImportJobAdapter {
	return &ImportJobAdapter{db: db}
}

type importJobRow struct {
	ID            uuid.UUID      `db:"id"`
	UserID        uuid.UUID      `db:"user_id"`
	Provider      string         `db:"provider"`
	AccountID     int64          `db:"account_id"`
	AddressBookID string         `db:"address_book_id"`
	State         string         `db:"state"`
	Outcome       sql.NullString `db:"outcome"`
	Fetched       int            `db:"fetched"`
	Batches       int            `db:"batches"`
	Created       int            `db:"created"`
	Failed        int            `db:"failed"`
	Skipped       int            `db:"skipped"`
	ErrorKinds    pq.StringArray `db:"error_kinds"`
	StartedAt     sql.NullTime   `db:"started_at"`
	FinishedAt    sql.NullTime   `db:"finished_at"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r *importJobRow) toDomain() *domain.ImportSummary {
	s := &domain.ImportSummary{
		JobID:         r.ID,
		UserID:        r.UserID,
		Provider:      domain.Provider(r.Provider),
		AccountID:     r.AccountID,
		AddressBookID: r.AddressBookID,
		State:         domain.JobState(r.State),
		Outcome:       domain.Outcome(r.Outcome.String),
		Fetched:       r.Fetched,
		Batches:       r.Batches,
		Created:       r.Created,
		Failed:        r.Failed,
		Skipped:       r.Skipped,
		ErrorKinds:    []string(r.ErrorKinds),
		CreatedAt:     r.CreatedAt,
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		s.StartedAt = &t
	}
	if r.FinishedAt.Valid {
		t := r.FinishedAt.Time
		s.FinishedAt = &t
	}
	return s
}

// Create inserts the accepted job.
func (a *ImportJobAdapter) Create(ctx context.Context, s *domain.ImportSummary) error {
	query := `
		INSERT INTO import_jobs (id, user_id, provider, account_id, address_book_id, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := a.db.ExecContext(ctx, query,
		s.JobID, s.UserID, s.Provider.String(), s.AccountID, s.AddressBookID, string(s.State), s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

// UpdateState records a state transition. started_at is set on the first
// transition out of idle.
func (a *ImportJobAdapter) UpdateState(ctx context.Context, jobID uuid.UUID, state domain.JobState) error {
	query := `
		UPDATE import_jobs
		SET state = $2,
		    started_at = COALESCE(started_at, NOW())
		WHERE id = $1`

	res, err := a.db.ExecContext(ctx, query, jobID, string(state))
	if err != nil {
		return fmt.Errorf("failed to update import job state: %w", err)
	}
	return expectOne(res)
}

// Finish stores the settled summary.
func (a *ImportJobAdapter) Finish(ctx context.Context, s *domain.ImportSummary) error {
	query := `
		UPDATE import_jobs
		SET state = $2, outcome = $3, fetched = $4, batches = $5, created = $6, failed = $7,
		    skipped = $8, error_kinds = $9, finished_at = $10
		WHERE id = $1`

	res, err := a.db.ExecContext(ctx, query,
		s.JobID, string(s.State), string(s.Outcome), s.Fetched, s.Batches, s.Created, s.Failed, s.Skipped,
		pq.Array(s.ErrorKinds), s.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	return expectOne(res)
}

// GetByID returns ErrNotFound when the job does not exist.
func (a *ImportJobAdapter) GetByID(ctx context.Context, jobID uuid.UUID) (*domain.ImportSummary, error) {
	query := `
		SELECT id, user_id, provider, account_id, address_book_id, state, outcome,
		       fetched, batches, created, failed, skipped, error_kinds, started_at, finished_at, created_at
		FROM import_jobs
		WHERE id = $1`

	var row importJobRow
	if err := a.db.GetContext(ctx, &row, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}
	return row.toDomain(), nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ out.ImportJobRepository = (*ImportJobAdapter)(nil)

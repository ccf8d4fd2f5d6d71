package out

import (
	"context"
	"errors"

	"importer_server/core/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("not found")

// AccountRepository loads linked external accounts with decrypted tokens.
type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
}

// ImportJobRepository persists job state and summaries.
type ImportJobRepository interface {
	Create(ctx context.Context, summary *domain.ImportSummary) error
	UpdateState(ctx context.Context, jobID uuid.UUID, state domain.JobState) error
	Finish(ctx context.Context, summary *domain.ImportSummary) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*domain.ImportSummary, error)
}

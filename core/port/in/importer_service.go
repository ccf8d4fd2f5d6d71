package in

import (
	"context"

	"importer_server/core/domain"

	"github.com/google/uuid"
)

// ImportService is the API-facing side of contact import.
type ImportService interface {
	// RequestImport records a job and enqueues it. It returns before the import runs.
	RequestImport(ctx context.Context, req *ImportRequest) (*domain.ImportSummary, error)
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*domain.ImportSummary, error)
}

// ImportRunner executes one import job to completion.
type ImportRunner interface {
	Run(ctx context.Context, job *domain.ImportJob) *domain.ImportSummary
}

type ImportRequest struct {
	UserID        uuid.UUID       `json:"-"`
	Provider      domain.Provider `json:"-"`
	AccountID     int64           `json:"account_id"`
	AddressBookID string          `json:"address_book_id,omitempty"`
	StoreToken    string          `json:"-"`
}

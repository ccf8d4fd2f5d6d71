package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportJob is one import run of one external account into one address book.
// It is immutable once the worker picks it up.
type ImportJob struct {
	ID            uuid.UUID `json:"id"`
	Provider      Provider  `json:"provider"`
	AccountID     int64     `json:"account_id"`
	UserID        uuid.UUID `json:"user_id"`
	AddressBookID string    `json:"address_book_id"`
	// StoreToken authenticates writes to the contact store on the user's behalf.
	StoreToken string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

type JobState string

const (
	JobStateIdle               JobState = "idle"
	JobStateConfigResolving    JobState = "config_resolving"
	JobStateFetching           JobState = "fetching"
	JobStateTranslatingWriting JobState = "translating_writing"
	JobStateSettled            JobState = "settled"
)

// rank orders states so that transitions only move forward.
func (s JobState) rank() int {
	switch s {
	case JobStateIdle:
		return 0
	case JobStateConfigResolving:
		return 1
	case JobStateFetching:
		return 2
	case JobStateTranslatingWriting:
		return 3
	case JobStateSettled:
		return 4
	default:
		return -1
	}
}

// CanTransition reports whether a job may move from s to next.
func (s JobState) CanTransition(next JobState) bool {
	return next.rank() > s.rank() && s.rank() >= 0
}

type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomePartialFailure Outcome = "partial_failure"
	OutcomeAccountFailure Outcome = "account_failure"
	OutcomeAPIFailure     Outcome = "api_failure"
)

// ImportSummary is the persisted record of a job and its result.
type ImportSummary struct {
	JobID         uuid.UUID  `json:"job_id" db:"id"`
	UserID        uuid.UUID  `json:"user_id" db:"user_id"`
	Provider      Provider   `json:"provider" db:"provider"`
	AccountID     int64      `json:"account_id" db:"account_id"`
	AddressBookID string     `json:"address_book_id" db:"address_book_id"`
	State         JobState   `json:"state" db:"state"`
	Outcome       Outcome    `json:"outcome,omitempty" db:"outcome"`
	Fetched       int        `json:"fetched" db:"fetched"`
	Batches       int        `json:"batches" db:"batches"`
	Created       int        `json:"created" db:"created"`
	Failed        int        `json:"failed" db:"failed"`
	Skipped       int        `json:"skipped" db:"skipped"` // ids the provider returned no profile for
	ErrorKinds    []string   `json:"error_kinds,omitempty" db:"-"`
	StartedAt     *time.Time `json:"started_at,omitempty" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// NewImportSummary returns the idle summary recorded when a job is accepted.
func NewImportSummary(job *ImportJob) *ImportSummary {
	return &ImportSummary{
		JobID:         job.ID,
		UserID:        job.UserID,
		Provider:      job.Provider,
		AccountID:     job.AccountID,
		AddressBookID: job.AddressBookID,
		State:         JobStateIdle,
		CreatedAt:     job.CreatedAt,
	}
}

package worker

import (
	"context"
	"errors"
	"fmt"

	"importer_server/core/domain"
	"importer_server/core/port/in"
	"importer_server/core/port/out"
	"importer_server/pkg/logger"

	"github.com/google/uuid"
)

var ErrInvalidJob = errors.New("invalid import job")

// TokenOpener reverses the sealing applied to store tokens at enqueue time.
type TokenOpener interface {
	Open(ciphertext string) (string, error)
}

// ImportProcessor runs contact import jobs taken off the import stream.
type ImportProcessor struct {
	runner in.ImportRunner
	tokens TokenOpener
}

func NewImportProcessor(runner in.ImportRunner, tokens TokenOpener) *ImportProcessor {
	return &ImportProcessor{runner: runner, tokens: tokens}
}

// ProcessImport runs one job to completion. A job that settles with a failure
// outcome is not an error here: its failure event has already been published.
func (p *ImportProcessor) ProcessImport(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[out.ImportJobMessage](msg)
	if err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	job, err := p.toJob(payload)
	if err != nil {
		return err
	}

	log := logger.WithFields(map[string]any{
		"job_id":   job.ID.String(),
		"provider": job.Provider.String(),
		"account":  job.AccountID,
	})
	log.Info("[ImportProcessor] starting import into book %s", job.AddressBookID)

	summary := p.runner.Run(ctx, job)
	if summary == nil {
		return fmt.Errorf("import %s returned no summary", job.ID)
	}

	log.WithFields(map[string]any{
		"outcome": string(summary.Outcome),
		"fetched": summary.Fetched,
		"created": summary.Created,
		"failed":  summary.Failed,
		"skipped": summary.Skipped,
	}).Info("[ImportProcessor] import settled")
	return nil
}

func (p *ImportProcessor) toJob(m *out.ImportJobMessage) (*domain.ImportJob, error) {
	jobID, err := uuid.Parse(m.JobID)
	if err != nil {
		return nil, fmt.Errorf("%w: job_id: %v", ErrInvalidJob, err)
	}
	userID, err := uuid.Parse(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id: %v", ErrInvalidJob, err)
	}
	provider, ok := domain.ParseProvider(m.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrInvalidJob, m.Provider)
	}

	token := m.StoreToken
	if p.tokens != nil {
		if token, err = p.tokens.Open(m.StoreToken); err != nil {
			return nil, fmt.Errorf("%w: store token: %v", ErrInvalidJob, err)
		}
	}

	return &domain.ImportJob{
		ID:            jobID,
		Provider:      provider,
		AccountID:     m.AccountID,
		UserID:        userID,
		AddressBookID: m.AddressBookID,
		StoreToken:    token,
		CreatedAt:     m.CreatedAt,
	}, nil
}

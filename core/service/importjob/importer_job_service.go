package importjob

import (
	"context"
	"errors"
	"time"

	"importer_server/core/domain"
	"importer_server/core/port/in"
	"importer_server/core/port/out"
	"importer_server/pkg/apperr"
	"importer_server/pkg/logger"

	"github.com/google/uuid"
)

// TokenSealer protects the store token while it sits on the job stream.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
}

type Service struct {
	accounts out.AccountRepository
	jobs     out.ImportJobRepository
	producer out.JobProducer
	sealer   TokenSealer
	now      func() time.Time
}

var _ in.ImportService = (*Service)(nil)

func NewService(accounts out.AccountRepository, jobs out.ImportJobRepository, producer out.JobProducer, sealer TokenSealer) *Service {
	return &Service{
		accounts: accounts,
		jobs:     jobs,
		producer: producer,
		sealer:   sealer,
		now:      time.Now,
	}
}

// RequestImport validates the account, records an idle job and enqueues it.
// The import itself runs later on a worker.
func (s *Service) RequestImport(ctx context.Context, req *in.ImportRequest) (*domain.ImportSummary, error) {
	if _, ok := domain.ParseProvider(string(req.Provider)); !ok {
		return nil, apperr.InvalidInput("provider", "unsupported provider")
	}
	if req.AccountID <= 0 {
		return nil, apperr.MissingField("account_id")
	}
	if req.StoreToken == "" {
		return nil, apperr.Unauthorized("missing contact store token")
	}

	account, err := s.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("account")
		}
		return nil, apperr.DatabaseError("load account", err)
	}
	// Foreign accounts look exactly like missing ones.
	if account.UserID != req.UserID {
		return nil, apperr.NotFound("account")
	}
	if account.Provider != req.Provider {
		return nil, apperr.InvalidInput("account_id", "account belongs to another provider")
	}

	bookID := req.AddressBookID
	if bookID == "" {
		bookID = req.UserID.String()
	}

	job := &domain.ImportJob{
		ID:            uuid.New(),
		Provider:      req.Provider,
		AccountID:     account.ID,
		UserID:        req.UserID,
		AddressBookID: bookID,
		StoreToken:    req.StoreToken,
		CreatedAt:     s.now().UTC(),
	}

	sealed, err := s.sealer.Seal(job.StoreToken)
	if err != nil {
		return nil, apperr.InternalWithError(err)
	}

	summary := domain.NewImportSummary(job)
	if err := s.jobs.Create(ctx, summary); err != nil {
		return nil, apperr.DatabaseError("create import job", err)
	}

	msg := &out.ImportJobMessage{
		JobID:         job.ID.String(),
		UserID:        job.UserID.String(),
		Provider:      job.Provider.String(),
		AccountID:     job.AccountID,
		AddressBookID: job.AddressBookID,
		StoreToken:    sealed,
		CreatedAt:     job.CreatedAt,
	}
	if err := s.producer.PublishImportJob(ctx, msg); err != nil {
		logger.WithError(err).Error("[ImportJob] failed to enqueue job %s", job.ID)
		return nil, apperr.QueueError(out.StreamContactImport, err)
	}

	logger.WithFields(map[string]any{
		"job_id":   job.ID.String(),
		"provider": job.Provider.String(),
		"user_id":  job.UserID.String(),
	}).Info("[ImportJob] import queued for account %d", job.AccountID)

	return summary, nil
}

// GetJob returns a job owned by userID.
func (s *Service) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*domain.ImportSummary, error) {
	summary, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("import job")
		}
		return nil, apperr.DatabaseError("load import job", err)
	}
	if summary.UserID != userID {
		return nil, apperr.NotFound("import job")
	}
	return summary, nil
}

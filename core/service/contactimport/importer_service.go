package contactimport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"importer_server/core/domain"
	"importer_server/core/port/out"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxIdentifiers   = 18000
	DefaultBatchSize        = 100
	DefaultBatchConcurrency = 4
	DefaultWriteConcurrency = 8
)

var (
	ErrProviderNotConfigured = errors.New("provider configuration missing or incomplete")
	ErrAccountMismatch       = errors.New("account does not belong to the requesting user")
)

type Options struct {
	MaxIdentifiers   int
	BatchSize        int
	BatchConcurrency int
	WriteConcurrency int
}

func (o Options) withDefaults() Options {
	if o.MaxIdentifiers < 2 {
		o.MaxIdentifiers = DefaultMaxIdentifiers
	}
	if o.BatchSize < 1 || o.BatchSize > DefaultBatchSize {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchConcurrency < 1 {
		o.BatchConcurrency = DefaultBatchConcurrency
	}
	if o.WriteConcurrency < 1 {
		o.WriteConcurrency = DefaultWriteConcurrency
	}
	return o
}

// Service runs import jobs: resolve config, fetch ids, then look up and write
// every batch concurrently, and finally report one outcome per job.
type Service struct {
	configs  out.ProviderConfigRepository
	accounts out.AccountRepository
	graphs   out.SocialGraphFactory
	stores   out.ContactStoreFactory
	events   out.EventPublisher
	jobs     out.ImportJobRepository // optional
	opts     Options
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(
	configs out.ProviderConfigRepository,
	accounts out.AccountRepository,
	graphs out.SocialGraphFactory,
	stores out.ContactStoreFactory,
	events out.EventPublisher,
	jobs out.ImportJobRepository,
	opts Options,
	log zerolog.Logger,
) *Service {
	return &Service{
		configs:  configs,
		accounts: accounts,
		graphs:   graphs,
		stores:   stores,
		events:   events,
		jobs:     jobs,
		opts:     opts.withDefaults(),
		log:      log.With().Str("component", "contact_import").Logger(),
		now:      time.Now,
	}
}

// run carries the mutable state of one job through its stages.
type run struct {
	job     *domain.ImportJob
	account *domain.Account
	summary *domain.ImportSummary
	errs    []*domain.ImportError
	log     zerolog.Logger
}

type batchResult struct {
	created int
	failed  int
	skipped int
	errs    []*domain.ImportError
}

// Run executes one job to completion. It never returns an error: failures are
// recorded on the summary and published as a single job-level event.
func (s *Service) Run(ctx context.Context, job *domain.ImportJob) *domain.ImportSummary {
	started := s.now()
	r := &run{
		job:     job,
		summary: domain.NewImportSummary(job),
		log: s.log.With().
			Str("job_id", job.ID.String()).
			Str("provider", job.Provider.String()).
			Str("user_id", job.UserID.String()).
			Logger(),
	}
	r.summary.StartedAt = &started

	client, store, ok := s.resolve(ctx, r)
	if ok {
		s.importAll(ctx, r, client, store)
	}

	// The job context may be cancelled by a timeout or shutdown. Settling
	// still records the summary and publishes the completion event.
	return s.settle(context.WithoutCancel(ctx), r)
}

// resolve loads provider config and account credentials and opens the client
// session. Any failure here is an account error and no transport call is made.
func (s *Service) resolve(ctx context.Context, r *run) (out.SocialGraphClient, out.ContactStore, bool) {
	s.transition(ctx, r, domain.JobStateConfigResolving)

	cfg, err := s.configs.GetProviderConfig(ctx, r.job.Provider)
	if err != nil {
		r.fail(domain.NewAccountError(fmt.Errorf("load provider config: %w", err)))
		return nil, nil, false
	}
	if !cfg.IsComplete() {
		r.fail(domain.NewAccountError(fmt.Errorf("%s: %w", r.job.Provider, ErrProviderNotConfigured)))
		return nil, nil, false
	}

	account, err := s.accounts.GetByID(ctx, r.job.AccountID)
	if err != nil {
		r.fail(domain.NewAccountError(fmt.Errorf("load account %d: %w", r.job.AccountID, err)))
		return nil, nil, false
	}
	r.account = account
	if account.UserID != r.job.UserID {
		r.fail(domain.NewAccountError(ErrAccountMismatch))
		return nil, nil, false
	}

	client, err := s.graphs.NewClient(ctx, r.job.Provider, cfg, account)
	if err != nil {
		r.fail(domain.NewAccountError(fmt.Errorf("open %s client: %w", r.job.Provider, err)))
		return nil, nil, false
	}

	return client, s.stores.ForToken(r.job.StoreToken), true
}

func (s *Service) importAll(ctx context.Context, r *run, client out.SocialGraphClient, store out.ContactStore) {
	s.transition(ctx, r, domain.JobStateFetching)

	ids, err := FetchIdentifiers(ctx, client, s.opts.MaxIdentifiers)
	if err != nil {
		r.fail(asImportError(err))
		return
	}
	r.summary.Fetched = len(ids)

	batches := Partition(ids, s.opts.BatchSize)
	r.summary.Batches = len(batches)
	r.log.Info().Int("ids", len(ids)).Int("batches", len(batches)).Msg("connections fetched")

	s.transition(ctx, r, domain.JobStateTranslatingWriting)

	writer := NewWriter(store, s.events, s.opts.WriteConcurrency)
	tasks := make([]func(context.Context) (batchResult, error), len(batches))
	for i, batch := range batches {
		tasks[i] = func(ctx context.Context) (batchResult, error) {
			return s.importBatch(ctx, r, client, writer, batch)
		}
	}

	for i, res := range SettleAll(ctx, s.opts.BatchConcurrency, tasks) {
		r.summary.Created += res.Value.created
		r.summary.Failed += res.Value.failed
		r.summary.Skipped += res.Value.skipped
		if res.Err != nil {
			ie := asImportError(res.Err)
			r.log.Error().Err(ie).Int("batch", i).Str("kind", ie.Kind.String()).Msg("batch lookup failed")
			r.errs = append(r.errs, ie)
		}
		for _, ie := range res.Value.errs {
			r.log.Error().Err(ie).Int("batch", i).Str("kind", ie.Kind.String()).Msg("contact write failed")
			r.errs = append(r.errs, ie)
		}
	}
}

// importBatch resolves one batch of ids and writes the resulting contacts. A
// lookup failure fails the whole batch; write failures are per contact.
func (s *Service) importBatch(ctx context.Context, r *run, client out.SocialGraphClient, writer *Writer, ids []string) (batchResult, error) {
	profiles, err := client.LookupBatch(ctx, ids)
	if err != nil {
		return batchResult{failed: len(ids)}, domain.NewAPIClientError(err, out.StatusCode(err))
	}

	requested := make(map[string]bool, len(ids))
	for _, id := range ids {
		requested[id] = false
	}
	contacts := make([]*domain.NormalizedContact, 0, len(profiles))
	for _, p := range profiles {
		if p == nil || p.ID == "" {
			continue
		}
		if seen, ok := requested[p.ID]; ok {
			if seen {
				continue
			}
			requested[p.ID] = true
		}
		contacts = append(contacts, ToContact(r.job.Provider, p))
	}

	skipped := missingIDs(ids, requested)
	if len(skipped) > 0 {
		r.log.Warn().Int("count", len(skipped)).Strs("ids", skipped).Msg("provider returned no profile for ids")
	}

	created, errs := writer.Write(ctx, r.job, contacts)
	return batchResult{created: created, failed: len(errs), skipped: len(skipped), errs: errs}, nil
}

// missingIDs returns the requested ids, in order, that no profile resolved.
func missingIDs(ids []string, resolved map[string]bool) []string {
	var missing []string
	for _, id := range ids {
		if !resolved[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// settle computes the outcome, persists the summary and publishes the
// job-level failure event when anything failed.
func (s *Service) settle(ctx context.Context, r *run) *domain.ImportSummary {
	finished := s.now()
	r.summary.FinishedAt = &finished
	r.summary.State = domain.JobStateSettled

	worst := domain.MostSevere(r.errs)
	r.summary.Outcome = outcomeOf(worst, r.summary.Created)
	for _, e := range r.errs {
		r.summary.ErrorKinds = appendUnique(r.summary.ErrorKinds, domain.Classify(e).Kind.String())
	}

	if s.jobs != nil {
		if err := s.jobs.Finish(ctx, r.summary); err != nil {
			r.log.Warn().Err(err).Msg("failed to persist job summary")
		}
	}

	var logEvent *zerolog.Event
	if worst != nil {
		logEvent = r.log.Warn().Str("kind", worst.Kind.String())
	} else {
		logEvent = r.log.Info()
	}
	logEvent.
		Str("outcome", string(r.summary.Outcome)).
		Int("fetched", r.summary.Fetched).
		Int("created", r.summary.Created).
		Int("failed", r.summary.Failed).
		Int("skipped", r.summary.Skipped).
		Dur("took", finished.Sub(*r.summary.StartedAt)).
		Msg("import settled")

	if worst != nil {
		s.publishFailure(ctx, r, worst)
	}
	return r.summary
}

func (s *Service) publishFailure(ctx context.Context, r *run, worst *domain.ImportError) {
	account := ""
	if r.account != nil {
		account = r.account.Username
	}

	event := &out.ImportFailedEvent{
		Type:     worst.Kind.String(),
		Provider: r.job.Provider.String(),
		Account:  account,
		User:     r.job.UserID.String(),
		JobID:    r.job.ID.String(),
	}
	if err := s.events.Publish(ctx, worst.Kind.String(), event); err != nil {
		r.log.Error().Err(err).Str("topic", worst.Kind.String()).Msg("failed to publish import failure")
	}
}

func (s *Service) transition(ctx context.Context, r *run, next domain.JobState) {
	if !r.summary.State.CanTransition(next) {
		return
	}
	r.summary.State = next
	if s.jobs == nil {
		return
	}
	if err := s.jobs.UpdateState(ctx, r.job.ID, next); err != nil {
		r.log.Warn().Err(err).Str("state", string(next)).Msg("failed to persist job state")
	}
}

func (r *run) fail(err *domain.ImportError) {
	r.log.Error().Err(err).Str("kind", err.Kind.String()).Msg("import aborted")
	r.errs = append(r.errs, err)
}

func outcomeOf(worst *domain.ImportError, created int) domain.Outcome {
	switch {
	case worst == nil:
		return domain.OutcomeSuccess
	case worst.Kind == domain.KindAccount:
		return domain.OutcomeAccountFailure
	case worst.Kind == domain.KindAPIClient && created == 0:
		return domain.OutcomeAPIFailure
	default:
		return domain.OutcomePartialFailure
	}
}

func asImportError(err error) *domain.ImportError {
	if ie, ok := domain.AsImportError(err); ok {
		return ie
	}
	return domain.NewAPIClientError(err, out.StatusCode(err))
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

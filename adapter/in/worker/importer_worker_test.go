package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"importer_server/core/domain"
	"importer_server/core/port/out"
	"importer_server/pkg/crypto"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRunner struct {
	mu   sync.Mutex
	jobs []*domain.ImportJob
}

func (r *fakeRunner) Run(_ context.Context, job *domain.ImportJob) *domain.ImportSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return &domain.ImportSummary{JobID: job.ID, State: domain.JobStateSettled, Outcome: domain.OutcomeSuccess}
}

func jobPayload(t *testing.T, m *out.ImportJobMessage) map[string]any {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	return payload
}

func TestImportProcessor_OpensTokenAndRuns(t *testing.T) {
	sealer, err := crypto.NewSealer("test-key")
	require.NoError(t, err)
	sealed, err := sealer.Seal("dav-token")
	require.NoError(t, err)

	runner := &fakeRunner{}
	proc := NewImportProcessor(runner, sealer)

	jobID, userID := uuid.New(), uuid.New()
	msg := NewMessage(JobContactImport, jobPayload(t, &out.ImportJobMessage{
		JobID:         jobID.String(),
		UserID:        userID.String(),
		Provider:      "twitter",
		AccountID:     7,
		AddressBookID: "book-1",
		StoreToken:    sealed,
	}))

	require.NoError(t, NewHandler(proc).Process(context.Background(), msg))
	require.Len(t, runner.jobs, 1)

	job := runner.jobs[0]
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, userID, job.UserID)
	assert.Equal(t, domain.ProviderTwitter, job.Provider)
	assert.EqualValues(t, 7, job.AccountID)
	assert.Equal(t, "book-1", job.AddressBookID)
	assert.Equal(t, "dav-token", job.StoreToken)
}

func TestImportProcessor_RejectsInvalidJobs(t *testing.T) {
	sealer, err := crypto.NewSealer("test-key")
	require.NoError(t, err)

	valid := out.ImportJobMessage{JobID: uuid.NewString(), UserID: uuid.NewString(), Provider: "google"}
	tests := []struct {
		name   string
		mutate func(m *out.ImportJobMessage)
	}{
		{"bad job id", func(m *out.ImportJobMessage) { m.JobID = "x" }},
		{"bad user id", func(m *out.ImportJobMessage) { m.UserID = "" }},
		{"unknown provider", func(m *out.ImportJobMessage) { m.Provider = "friendster" }},
		{"tampered token", func(m *out.ImportJobMessage) { m.StoreToken = "bm90LXNlYWxlZA" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			runner := &fakeRunner{}

			err := NewImportProcessor(runner, sealer).ProcessImport(context.Background(), NewMessage(JobContactImport, jobPayload(t, &m)))
			assert.ErrorIs(t, err, ErrInvalidJob)
			assert.Empty(t, runner.jobs)
		})
	}
}

func TestHandler_IgnoresUnknownJobTypes(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(NewImportProcessor(runner, nil))

	assert.NoError(t, h.Process(context.Background(), NewMessage("mail.sync", nil)))
	assert.Empty(t, runner.jobs)
}

type processFunc func(ctx context.Context, msg *Message) error

func (f processFunc) Process(ctx context.Context, msg *Message) error { return f(ctx, msg) }

func TestPool_ProcessesAndCounts(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	p := newPool(processFunc(func(_ context.Context, msg *Message) error {
		mu.Lock()
		seen[msg.ID] = true
		mu.Unlock()
		if msg.Type == "bad" {
			return errors.New("boom")
		}
		return nil
	}), &PoolConfig{Workers: 2, WorkerChanSize: 4}, zerolog.Nop())

	assert.ErrorIs(t, p.Submit(NewMessage(JobContactImport, nil)), ErrPoolStopped)

	require.NoError(t, p.Start())
	ok1, ok2, bad := NewMessage(JobContactImport, nil), NewMessage(JobContactImport, nil), NewMessage("bad", nil)
	for _, m := range []*Message{ok1, ok2, bad} {
		require.NoError(t, p.Submit(m))
	}
	p.Stop(5 * time.Second)

	m := p.Metrics()
	assert.EqualValues(t, 2, m.JobsProcessed)
	assert.EqualValues(t, 1, m.JobsFailed)
	assert.Zero(t, m.InFlight)
	assert.Len(t, seen, 3)

	assert.ErrorIs(t, p.Submit(NewMessage(JobContactImport, nil)), ErrPoolStopped)
}

func TestPool_JobTimeout(t *testing.T) {
	p := newPool(processFunc(func(ctx context.Context, _ *Message) error {
		<-ctx.Done()
		return ctx.Err()
	}), &PoolConfig{Workers: 1, JobTimeout: 20 * time.Millisecond}, zerolog.Nop())

	require.NoError(t, p.Start())
	require.NoError(t, p.Submit(NewMessage(JobContactImport, nil)))
	p.Stop(5 * time.Second)

	m := p.Metrics()
	assert.EqualValues(t, 1, m.JobsTimedOut)
	assert.EqualValues(t, 1, m.JobsFailed)
}

type fakeSubmitter struct {
	msgs []*Message
	err  error
}

func (f *fakeSubmitter) Submit(msg *Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestStreamHandler(t *testing.T) {
	sub := &fakeSubmitter{}
	h := &StreamHandler{pool: sub}

	require.NoError(t, h.Handle(context.Background(), out.StreamContactImport, []byte(`{"job_id":"j-1","account_id":3}`)))
	require.Len(t, sub.msgs, 1)
	assert.Equal(t, JobContactImport, sub.msgs[0].Type)
	assert.Equal(t, "j-1", sub.msgs[0].Payload["job_id"])

	assert.Error(t, h.Handle(context.Background(), "mail:sync", []byte(`{}`)))
	assert.Error(t, h.Handle(context.Background(), out.StreamContactImport, []byte(`not json`)))

	sub.err = ErrPoolStopped
	assert.ErrorIs(t, h.Handle(context.Background(), out.StreamContactImport, []byte(`{}`)), ErrPoolStopped)
}

package persistence

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"importer_server/core/domain"
	"importer_server/core/port/out"
	"importer_server/pkg/cache"
	"importer_server/pkg/crypto"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

func TestAccountAdapter_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	sealer, err := crypto.NewSealer("test-key")
	require.NoError(t, err)

	token, err := sealer.Seal("access")
	require.NoError(t, err)
	secret, err := sealer.Seal("secret")
	require.NoError(t, err)

	userID := uuid.New()
	now := time.Now()
	cols := []string{"id", "user_id", "provider", "external_id", "username", "token", "token_secret",
		"refresh_token", "expires_at", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM social_accounts")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(7, userID.String(), "twitter", "12", "ada", token, secret, nil, nil, now, now))

	account, err := NewAccountAdapter(db, sealer).GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, userID, account.UserID)
	assert.Equal(t, domain.ProviderTwitter, account.Provider)
	assert.Equal(t, "access", account.Token)
	assert.Equal(t, "secret", account.TokenSecret)
	assert.Empty(t, account.RefreshToken)
	assert.True(t, account.ExpiresAt.IsZero())
}

func TestAccountAdapter_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	sealer, err := crypto.NewSealer("test-key")
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM social_accounts")).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewAccountAdapter(db, sealer).GetByID(context.Background(), 8)
	assert.ErrorIs(t, err, out.ErrNotFound)
}

func TestImportJobAdapter_Lifecycle(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewImportJobAdapter(db)
	ctx := context.Background()

	job := &domain.ImportJob{ID: uuid.New(), Provider: domain.ProviderGoogle, AccountID: 3, UserID: uuid.New(), AddressBookID: "book", CreatedAt: time.Now()}
	summary := domain.NewImportSummary(job)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO import_jobs")).
		WithArgs(job.ID, job.UserID, "google", int64(3), "book", "idle", job.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(ctx, summary))

	mock.ExpectExec(regexp.QuoteMeta("SET state = $2")).
		WithArgs(job.ID, "fetching").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateState(ctx, job.ID, domain.JobStateFetching))

	finished := time.Now()
	summary.State = domain.JobStateSettled
	summary.Outcome = domain.OutcomePartialFailure
	summary.ErrorKinds = []string{string(domain.KindContactClient)}
	summary.FinishedAt = &finished
	mock.ExpectExec(regexp.QuoteMeta("error_kinds = $9")).
		WithArgs(job.ID, "settled", "partial_failure", 0, 0, 0, 0, 0, sqlmock.AnyArg(), &finished).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Finish(ctx, summary))

	cols := []string{"id", "user_id", "provider", "account_id", "address_book_id", "state", "outcome",
		"fetched", "batches", "created", "failed", "skipped", "error_kinds", "started_at", "finished_at", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM import_jobs")).
		WithArgs(job.ID).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(
			job.ID.String(), job.UserID.String(), "google", 3, "book", "settled", "partial_failure",
			250, 3, 200, 48, 2, "{contact:import:contact:client:error}", job.CreatedAt, finished, job.CreatedAt))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePartialFailure, got.Outcome)
	assert.Equal(t, 250, got.Fetched)
	assert.Equal(t, 2, got.Skipped)
	assert.Equal(t, []string{"contact:import:contact:client:error"}, got.ErrorKinds)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.FinishedAt)
}

func TestImportJobAdapter_UpdateState_Missing(t *testing.T) {
	db, mock := newMockDB(t)

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE import_jobs")).
		WithArgs(id, "fetching").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewImportJobAdapter(db).UpdateState(context.Background(), id, domain.JobStateFetching)
	assert.ErrorIs(t, err, ErrNotFound)
}

type fakeRow struct {
	raw []byte
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.raw
	return nil
}

type fakeQuerier struct {
	row   fakeRow
	calls int
}

func (q *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	q.calls++
	return q.row
}

func TestProviderConfigAdapter(t *testing.T) {
	ctx := context.Background()

	q := &fakeQuerier{row: fakeRow{raw: []byte(`{"consumer_key":"ck","consumer_secret":"cs","callback":"https://cb","retries":3}`)}}
	cfg, err := NewProviderConfigAdapter(q).GetProviderConfig(ctx, domain.ProviderTwitter)
	require.NoError(t, err)
	assert.Equal(t, &out.ProviderConfig{
		Provider:       domain.ProviderTwitter,
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Extra:          map[string]string{"callback": "https://cb"},
	}, cfg)

	cfg, err = NewProviderConfigAdapter(&fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}).GetProviderConfig(ctx, domain.ProviderTwitter)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = NewProviderConfigAdapter(&fakeQuerier{row: fakeRow{err: errors.New("conn reset")}}).GetProviderConfig(ctx, domain.ProviderTwitter)
	assert.Error(t, err)

	_, err = NewProviderConfigAdapter(&fakeQuerier{row: fakeRow{raw: []byte(`not json`)}}).GetProviderConfig(ctx, domain.ProviderTwitter)
	assert.Error(t, err)
}

func TestDecodeProviderConfig_FieldPriority(t *testing.T) {
	raw := []byte(`{"client_id":"cid","consumer_key":"ck","client_secret":"csec","consumer_secret":""}`)

	for i := 0; i < 20; i++ {
		cfg, err := decodeProviderConfig(domain.ProviderGoogle, raw)
		require.NoError(t, err)
		assert.Equal(t, "ck", cfg.ConsumerKey)
		assert.Equal(t, "csec", cfg.ConsumerSecret, "empty preferred field falls back to the alias")
		assert.Nil(t, cfg.Extra)
	}
}

func TestCachedProviderConfigs(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	q := &fakeQuerier{row: fakeRow{raw: []byte(`{"client_id":"id","client_secret":"secret"}`)}}
	repo := NewCachedProviderConfigs(NewProviderConfigAdapter(q), cache.NewRedisCache(client), time.Minute)

	for i := 0; i < 3; i++ {
		cfg, err := repo.GetProviderConfig(ctx, domain.ProviderGoogle)
		require.NoError(t, err)
		assert.Equal(t, "id", cfg.ConsumerKey)
		assert.Equal(t, "secret", cfg.ConsumerSecret)
	}
	assert.Equal(t, 1, q.calls)
	assert.True(t, mr.Exists(providerConfigKeyPrefix+"google"))

	require.NoError(t, repo.Invalidate(ctx, domain.ProviderGoogle))
	_, err := repo.GetProviderConfig(ctx, domain.ProviderGoogle)
	require.NoError(t, err)
	assert.Equal(t, 2, q.calls)
}

func TestCachedProviderConfigs_AbsentIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	repo := NewCachedProviderConfigs(NewProviderConfigAdapter(q), cache.NewRedisCache(client), time.Minute)

	cfg, err := repo.GetProviderConfig(context.Background(), domain.ProviderTwitter)
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.False(t, mr.Exists(providerConfigKeyPrefix+"twitter"))
}

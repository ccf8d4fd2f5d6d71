package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"importer_server/core/domain"
	"importer_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTwitter struct {
	mu           sync.Mutex
	authHeader   []string
	lookupIDs    []string
	status       int
	lookupStatus map[string]int // per oauth_token
}

func (f *fakeTwitter) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ck", user)
		assert.Equal(t, "cs", pass)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"bearer","access_token":"app-token"}`))
	})
	mux.HandleFunc(twitterFriendsPath, func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(`{"errors":[{"code":89,"message":"Invalid or expired token."}]}`))
			return
		}
		assert.Equal(t, "true", r.URL.Query().Get("stringify_ids"))
		switch r.URL.Query().Get("cursor") {
		case "-1":
			_, _ = w.Write([]byte(`{"ids":["1","2"],"next_cursor":1599,"next_cursor_str":"1599"}`))
		case "1599":
			_, _ = w.Write([]byte(`{"ids":["3"],"next_cursor":0,"next_cursor_str":"0"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc(twitterLookupPath, func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		for token, status := range f.lookupStatus {
			if strings.Contains(r.Header.Get("Authorization"), `oauth_token="`+token+`"`) {
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"errors":[{"code":89,"message":"Invalid or expired token."}]}`))
				return
			}
		}
		ids := strings.Split(r.URL.Query().Get("user_id"), ",")
		f.mu.Lock()
		f.lookupIDs = ids
		f.mu.Unlock()

		users := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			users = append(users, map[string]any{
				"id_str":                  id,
				"name":                    "User " + id,
				"screen_name":             "user" + id,
				"description":             "bio",
				"location":                "Paris",
				"url":                     "https://t.co/" + id,
				"profile_image_url_https": "https://pbs.twimg.com/" + id + ".png",
			})
		}
		_ = json.NewEncoder(w).Encode(users)
	})
	return mux
}

func (f *fakeTwitter) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeader = append(f.authHeader, r.Header.Get("Authorization"))
}

func newTwitterTestFactory(t *testing.T, f *fakeTwitter, cfg FactoryConfig) *Factory {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	cfg.TwitterAPIURL = srv.URL
	return NewFactory(cfg)
}

func newTwitterClientFrom(t *testing.T, factory *Factory, account *domain.Account) out.SocialGraphClient {
	t.Helper()
	client, err := factory.NewClient(context.Background(), domain.ProviderTwitter,
		&out.ProviderConfig{Provider: domain.ProviderTwitter, ConsumerKey: "ck", ConsumerSecret: "cs"}, account)
	require.NoError(t, err)
	return client
}

func newTwitterTestClient(t *testing.T, f *fakeTwitter, account *domain.Account) out.SocialGraphClient {
	t.Helper()
	return newTwitterClientFrom(t, newTwitterTestFactory(t, f, FactoryConfig{}), account)
}

type recordingLimiter struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLimiter) Wait(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return nil
}

func TestTwitterClient_UserContext(t *testing.T) {
	f := &fakeTwitter{}
	client := newTwitterTestClient(t, f, &domain.Account{ID: 1, Token: "tok", TokenSecret: "sec"})
	ctx := context.Background()

	page, err := client.ListConnections(ctx, out.CursorStart)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, page.IDs)
	assert.Equal(t, "1599", page.NextCursor)

	page, err = client.ListConnections(ctx, page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, page.IDs)
	assert.Equal(t, out.CursorEnd, page.NextCursor)

	profiles, err := client.LookupBatch(ctx, []string{"1", "2", "3"})
	require.NoError(t, err)
	require.Len(t, profiles, 3)
	assert.Equal(t, []string{"1", "2", "3"}, f.lookupIDs)
	assert.Equal(t, &out.ProfileRecord{
		ID:          "2",
		DisplayName: "User 2",
		ScreenName:  "user2",
		Note:        "bio",
		Location:    "Paris",
		PhotoURL:    "https://pbs.twimg.com/2.png",
		URLs:        []string{"https://t.co/2"},
		ProfileURL:  "https://twitter.com/user2",
	}, profiles[1])

	for _, h := range f.authHeader {
		assert.True(t, strings.HasPrefix(h, "OAuth "), "request is OAuth1 signed: %q", h)
		assert.Contains(t, h, `oauth_token="tok"`)
	}
}

func TestTwitterClient_AppOnly(t *testing.T) {
	f := &fakeTwitter{}
	client := newTwitterTestClient(t, f, &domain.Account{ID: 1})

	_, err := client.ListConnections(context.Background(), out.CursorStart)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bearer app-token"}, f.authHeader)
}

func TestTwitterClient_StatusIsPreserved(t *testing.T) {
	f := &fakeTwitter{status: http.StatusUnauthorized}
	client := newTwitterTestClient(t, f, &domain.Account{ID: 1, Token: "tok", TokenSecret: "sec"})

	_, err := client.ListConnections(context.Background(), out.CursorStart)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, out.StatusCode(err))
	assert.Contains(t, err.Error(), "Invalid or expired token")
}

func TestFactory_RejectsIncompleteInput(t *testing.T) {
	factory := NewFactory(FactoryConfig{})
	ctx := context.Background()
	complete := &out.ProviderConfig{ConsumerKey: "ck", ConsumerSecret: "cs"}

	_, err := factory.NewClient(ctx, domain.ProviderTwitter, &out.ProviderConfig{ConsumerKey: "ck"}, &domain.Account{})
	assert.Error(t, err)

	_, err = factory.NewClient(ctx, domain.ProviderTwitter, complete, &domain.Account{Token: "only-half"})
	assert.Error(t, err)

	_, err = factory.NewClient(ctx, domain.Provider("myspace"), complete, &domain.Account{})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestTwitterClient_ClientErrorsDoNotOpenBreaker(t *testing.T) {
	f := &fakeTwitter{lookupStatus: map[string]int{"revoked": http.StatusUnauthorized}}
	factory := newTwitterTestFactory(t, f, FactoryConfig{})
	ctx := context.Background()

	bad := newTwitterClientFrom(t, factory, &domain.Account{ID: 1, Token: "revoked", TokenSecret: "sec"})
	for i := 0; i < 10; i++ {
		_, err := bad.LookupBatch(ctx, []string{"1"})
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, out.StatusCode(err), "call %d keeps its status", i)
	}

	good := newTwitterClientFrom(t, factory, &domain.Account{ID: 2, Token: "tok", TokenSecret: "sec"})
	profiles, err := good.LookupBatch(ctx, []string{"1", "2"})
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestHealthyResponse(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"unauthorized", out.NewTransportError(401, errors.New("x")), true},
		{"not found", out.NewTransportError(404, errors.New("x")), true},
		{"rate limited", out.NewTransportError(429, errors.New("x")), false},
		{"server error", out.NewTransportError(503, errors.New("x")), false},
		{"network", errors.New("connection reset"), false},
		{"cancelled", fmt.Errorf("do: %w", context.Canceled), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, healthyResponse(tt.err))
		})
	}
}

func TestTwitterClient_FriendsUseTheirOwnLimiter(t *testing.T) {
	lookups, friends := &recordingLimiter{}, &recordingLimiter{}
	factory := newTwitterTestFactory(t, &fakeTwitter{}, FactoryConfig{Limiter: lookups, FriendsLimiter: friends})
	client := newTwitterClientFrom(t, factory, &domain.Account{ID: 1, ExternalID: "12", Token: "tok", TokenSecret: "sec"})
	ctx := context.Background()

	_, err := client.ListConnections(ctx, out.CursorStart)
	require.NoError(t, err)
	_, err = client.LookupBatch(ctx, []string{"1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"twitter:" + twitterFriendsPath + ":12"}, friends.keys)
	assert.Equal(t, []string{"twitter:" + twitterLookupPath + ":12"}, lookups.keys)
}

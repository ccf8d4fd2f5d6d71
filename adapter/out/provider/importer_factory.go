package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"importer_server/core/domain"
	"importer_server/core/port/out"
	"importer_server/pkg/httputil"

	"github.com/dghubble/oauth1"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
)

var ErrUnsupportedProvider = errors.New("unsupported provider")

// FactoryConfig holds provider endpoints. Empty values use the public APIs.
type FactoryConfig struct {
	TwitterAPIURL   string
	TwitterTokenURL string
	GooglePeopleURL string
	Limiter         RateLimiter // users/lookup, and friends/ids when FriendsLimiter is nil
	FriendsLimiter  RateLimiter
}

// Factory opens social graph clients for accounts.
type Factory struct {
	cfg            FactoryConfig
	twitterHTTP    *http.Client
	googleHTTP     *http.Client
	twitterBreaker *gobreaker.CircuitBreaker
	googleBreaker  *gobreaker.CircuitBreaker
}

var _ out.SocialGraphFactory = (*Factory)(nil)

// NewFactory creates a new provider factory.
func NewFactory(cfg FactoryConfig) *Factory {
	if cfg.TwitterAPIURL == "" {
		cfg.TwitterAPIURL = "https://api.twitter.com"
	}
	if cfg.TwitterTokenURL == "" {
		cfg.TwitterTokenURL = strings.TrimRight(cfg.TwitterAPIURL, "/") + "/oauth2/token"
	}
	cfg.TwitterAPIURL = strings.TrimRight(cfg.TwitterAPIURL, "/")

	return &Factory{
		cfg:            cfg,
		twitterHTTP:    httputil.NewClient(httputil.TwitterClientConfig()),
		googleHTTP:     httputil.NewClient(httputil.GoogleClientConfig()),
		twitterBreaker: newBreaker("twitter-api"),
		googleBreaker:  newBreaker("google-people-api"),
	}
}

// NewClient builds a client for the account. It makes no network call; bad
// credentials surface on the first request.
func (f *Factory) NewClient(ctx context.Context, provider domain.Provider, cfg *out.ProviderConfig, account *domain.Account) (out.SocialGraphClient, error) {
	if !cfg.IsComplete() {
		return nil, fmt.Errorf("%s: provider configuration incomplete", provider)
	}
	if account == nil {
		return nil, errors.New("account is required")
	}

	switch provider {
	case domain.ProviderTwitter:
		return f.newTwitterClient(ctx, cfg, account)
	case domain.ProviderGoogle:
		return f.newGoogleClient(ctx, cfg, account)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}

// newTwitterClient signs with OAuth 1.0a user context when the account has a
// token secret and falls back to an app-only bearer token otherwise.
func (f *Factory) newTwitterClient(ctx context.Context, cfg *out.ProviderConfig, account *domain.Account) (*TwitterClient, error) {
	var httpClient *http.Client

	switch {
	case account.Token != "" && account.TokenSecret != "":
		base := context.WithValue(ctx, oauth1.HTTPClient, f.twitterHTTP)
		httpClient = oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret).
			Client(base, oauth1.NewToken(account.Token, account.TokenSecret))
	case account.Token == "" && account.TokenSecret == "":
		cc := &clientcredentials.Config{
			ClientID:     cfg.ConsumerKey,
			ClientSecret: cfg.ConsumerSecret,
			TokenURL:     f.cfg.TwitterTokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		base := context.WithValue(context.Background(), oauth2.HTTPClient, f.twitterHTTP)
		httpClient = cc.Client(base)
	default:
		return nil, errors.New("twitter account has an incomplete token pair")
	}
	httpClient.Timeout = f.twitterHTTP.Timeout

	return &TwitterClient{
		http:    httpClient,
		baseURL: f.cfg.TwitterAPIURL,
		account: accountKey(account),
		limiter: f.cfg.Limiter,
		friends: f.cfg.FriendsLimiter,
		cb:      f.twitterBreaker,
	}, nil
}

func (f *Factory) newGoogleClient(ctx context.Context, cfg *out.ProviderConfig, account *domain.Account) (*GoogleClient, error) {
	if !account.HasUserToken() && account.RefreshToken == "" {
		return nil, errors.New("google account has no token")
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ConsumerKey,
		ClientSecret: cfg.ConsumerSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{people.ContactsReadonlyScope},
	}
	token := &oauth2.Token{
		AccessToken:  account.Token,
		RefreshToken: account.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       account.ExpiresAt,
	}

	base := context.WithValue(context.Background(), oauth2.HTTPClient, f.googleHTTP)
	httpClient := oauth2.NewClient(base, conf.TokenSource(base, token))
	httpClient.Timeout = f.googleHTTP.Timeout

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if f.cfg.GooglePeopleURL != "" {
		opts = append(opts, option.WithEndpoint(f.cfg.GooglePeopleURL))
	}

	svc, err := people.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create people service: %w", err)
	}
	return &GoogleClient{svc: svc, cb: f.googleBreaker}, nil
}

func accountKey(a *domain.Account) string {
	if a.ExternalID != "" {
		return a.ExternalID
	}
	return strconv.FormatInt(a.ID, 10)
}

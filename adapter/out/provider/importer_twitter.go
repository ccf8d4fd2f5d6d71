package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"importer_server/core/port/out"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"
)

const (
	twitterFriendsPath = "/1.1/friends/ids.json"
	twitterLookupPath  = "/1.1/users/lookup.json"
	twitterPageSize    = "5000"
	twitterProfileURL  = "https://twitter.com/"
)

// RateLimiter blocks until a call identified by key may proceed.
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}

// TwitterClient reads followings through the v1.1 REST API. The HTTP client
// it is built with signs requests for one account.
type TwitterClient struct {
	http    *http.Client
	baseURL string
	account string
	limiter RateLimiter // users/lookup
	friends RateLimiter // friends/ids has a much smaller window budget
	cb      *gobreaker.CircuitBreaker
}

var _ out.SocialGraphClient = (*TwitterClient)(nil)

type twitterIDsResponse struct {
	IDs           []string `json:"ids"`
	NextCursorStr string   `json:"next_cursor_str"`
}

type twitterUser struct {
	IDStr                string `json:"id_str"`
	Name                 string `json:"name"`
	ScreenName           string `json:"screen_name"`
	Description          string `json:"description"`
	Location             string `json:"location"`
	URL                  string `json:"url"`
	ProfileImageURLHTTPS string `json:"profile_image_url_https"`
}

type twitterErrorResponse struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ListConnections returns one page of followed account ids.
func (c *TwitterClient) ListConnections(ctx context.Context, cursor string) (*out.ConnectionPage, error) {
	q := url.Values{}
	q.Set("cursor", cursor)
	q.Set("count", twitterPageSize)
	q.Set("stringify_ids", "true")

	var resp twitterIDsResponse
	if err := c.get(ctx, twitterFriendsPath, q, &resp); err != nil {
		return nil, err
	}

	next := resp.NextCursorStr
	if next == "" {
		next = out.CursorEnd
	}
	return &out.ConnectionPage{IDs: resp.IDs, NextCursor: next}, nil
}

// LookupBatch resolves up to 100 user ids. Suspended or deleted users are
// silently absent from the result.
func (c *TwitterClient) LookupBatch(ctx context.Context, ids []string) ([]*out.ProfileRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("user_id", strings.Join(ids, ","))
	q.Set("include_entities", "false")

	var users []twitterUser
	if err := c.get(ctx, twitterLookupPath, q, &users); err != nil {
		return nil, err
	}

	records := make([]*out.ProfileRecord, 0, len(users))
	for _, u := range users {
		records = append(records, u.toRecord())
	}
	return records, nil
}

func (u *twitterUser) toRecord() *out.ProfileRecord {
	rec := &out.ProfileRecord{
		ID:          u.IDStr,
		DisplayName: u.Name,
		ScreenName:  u.ScreenName,
		Note:        u.Description,
		Location:    u.Location,
		PhotoURL:    u.ProfileImageURLHTTPS,
	}
	if u.URL != "" {
		rec.URLs = []string{u.URL}
	}
	if u.ScreenName != "" {
		rec.ProfileURL = twitterProfileURL + u.ScreenName
	}
	return rec
}

func (c *TwitterClient) get(ctx context.Context, path string, q url.Values, dst any) error {
	if limiter := c.limiterFor(path); limiter != nil {
		if err := limiter.Wait(ctx, "twitter:"+path+":"+c.account); err != nil {
			return out.NewTransportError(0, fmt.Errorf("rate limiter: %w", err))
		}
	}

	return execute(c.cb, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return out.NewTransportError(resp.StatusCode, fmt.Errorf("read body: %w", err))
		}
		if resp.StatusCode >= 300 {
			return out.NewTransportError(resp.StatusCode, twitterError(resp.StatusCode, body))
		}
		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	})
}

func (c *TwitterClient) limiterFor(path string) RateLimiter {
	if path == twitterFriendsPath && c.friends != nil {
		return c.friends
	}
	return c.limiter
}

func twitterError(status int, body []byte) error {
	var er twitterErrorResponse
	if json.Unmarshal(body, &er) == nil && len(er.Errors) > 0 {
		return fmt.Errorf("twitter: %s (code %d)", er.Errors[0].Message, er.Errors[0].Code)
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 256 {
		return errors.New("twitter: " + text)
	}
	return fmt.Errorf("twitter: %s", http.StatusText(status))
}

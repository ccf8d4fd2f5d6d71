// Package carddav writes imported contacts to a CardDAV address book server.
package carddav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"importer_server/core/port/out"
	"importer_server/pkg/httputil"

	"github.com/emersion/go-vcard"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/carddav"
)

// TokenHeader carries the caller's credential to the address book server.
const TokenHeader = "ESNToken"

// tokenDoer authenticates every request with the user's token and turns
// error responses into TransportErrors so callers see the status code.
type tokenDoer struct {
	http  *http.Client
	token string
}

var _ webdav.HTTPClient = (*tokenDoer)(nil)

func (d *tokenDoer) Do(req *http.Request) (*http.Response, error) {
	if d.token != "" {
		req.Header.Set(TokenHeader, d.token)
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return nil, out.NewTransportError(0, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, out.NewTransportError(resp.StatusCode, fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, msg))
	}
	return resp, nil
}

// Store creates contacts in the address books of one user.
type Store struct {
	client *carddav.Client
	prefix string
}

var _ out.ContactStore = (*Store)(nil)

// CreateContact PUTs the card at /addressbooks/{book}/contacts/{id}.vcf.
func (s *Store) CreateContact(ctx context.Context, addressBookID, contactID string, card vcard.Card) error {
	if addressBookID == "" || contactID == "" {
		return errors.New("address book and contact id are required")
	}
	p := path.Join(s.prefix, "addressbooks", addressBookID, "contacts", contactID+".vcf")
	if _, err := s.client.PutAddressObject(ctx, p, card); err != nil {
		var te *out.TransportError
		if errors.As(err, &te) {
			return te
		}
		return out.NewTransportError(0, err)
	}
	return nil
}

// Factory opens per-token stores against one server.
type Factory struct {
	endpoint string
	prefix   string
	http     *http.Client
}

var _ out.ContactStoreFactory = (*Factory)(nil)

// NewFactory creates a store factory for the server at endpoint.
func NewFactory(endpoint string) (*Factory, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid dav url %q", endpoint)
	}
	return &Factory{
		endpoint: endpoint,
		prefix:   "/" + strings.Trim(u.Path, "/"),
		http:     httputil.NewClient(httputil.DAVClientConfig()),
	}, nil
}

// ForToken returns a store that authenticates as the token's owner.
func (f *Factory) ForToken(token string) out.ContactStore {
	client, err := carddav.NewClient(&tokenDoer{http: f.http, token: token}, f.endpoint)
	if err != nil {
		return brokenStore{err: fmt.Errorf("carddav client: %w", err)}
	}
	return &Store{client: client, prefix: f.prefix}
}

// brokenStore fails every write so a bad endpoint surfaces per contact.
type brokenStore struct {
	err error
}

func (b brokenStore) CreateContact(context.Context, string, string, vcard.Card) error {
	return out.NewTransportError(0, b.err)
}

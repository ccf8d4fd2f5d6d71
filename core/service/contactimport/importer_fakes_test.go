package contactimport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"importer_server/core/domain"
	"importer_server/core/port/out"

	"github.com/emersion/go-vcard"
	"github.com/google/uuid"
)

// fakeGraph serves a fixed number of sequential ids in pages of pageSize.
type fakeGraph struct {
	mu sync.Mutex

	total    int // -1 means the listing never ends
	pageSize int
	listErr  error
	lookup   func(ids []string) error
	omit     map[string]bool // ids LookupBatch leaves out, like suspended users

	listCalls   int
	lookupCalls int
}

func (g *fakeGraph) ListConnections(_ context.Context, cursor string) (*out.ConnectionPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++

	if g.listErr != nil {
		return nil, g.listErr
	}

	start := 0
	if cursor != out.CursorStart {
		start, _ = strconv.Atoi(cursor)
	}
	end := start + g.pageSize
	if g.total >= 0 && end > g.total {
		end = g.total
	}

	page := &out.ConnectionPage{NextCursor: strconv.Itoa(end)}
	for i := start; i < end; i++ {
		page.IDs = append(page.IDs, "id-"+strconv.Itoa(i))
	}
	if g.total >= 0 && end >= g.total {
		page.NextCursor = out.CursorEnd
	}
	return page, nil
}

func (g *fakeGraph) LookupBatch(_ context.Context, ids []string) ([]*out.ProfileRecord, error) {
	g.mu.Lock()
	g.lookupCalls++
	lookup := g.lookup
	g.mu.Unlock()

	if lookup != nil {
		if err := lookup(ids); err != nil {
			return nil, err
		}
	}

	profiles := make([]*out.ProfileRecord, 0, len(ids))
	for _, id := range ids {
		if g.omit[id] {
			continue
		}
		profiles = append(profiles, &out.ProfileRecord{ID: id, DisplayName: "User " + id, ScreenName: id})
	}
	return profiles, nil
}

func (g *fakeGraph) calls() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listCalls, g.lookupCalls
}

type fakeGraphFactory struct {
	graph *fakeGraph
	err   error
	calls int
}

func (f *fakeGraphFactory) NewClient(_ context.Context, _ domain.Provider, _ *out.ProviderConfig, _ *domain.Account) (out.SocialGraphClient, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.graph, nil
}

type createdContact struct {
	book string
	id   string
	card vcard.Card
}

type fakeStore struct {
	mu      sync.Mutex
	fail    func(card vcard.Card) error
	created []createdContact
	token   string
}

func (s *fakeStore) CreateContact(_ context.Context, book, id string, card vcard.Card) error {
	if s.fail != nil {
		if err := s.fail(card); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, createdContact{book: book, id: id, card: card})
	return nil
}

func (s *fakeStore) ForToken(token string) out.ContactStore {
	s.token = token
	return s
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

type publishedEvent struct {
	topic   string
	payload any
}

// fakePublisher drops events published on a done context when honorCtx is
// set, the way the Redis and AMQP publishers do.
type fakePublisher struct {
	mu       sync.Mutex
	err      error
	honorCtx bool
	events   []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	p.events = append(p.events, publishedEvent{topic: topic, payload: payload})
	return p.err
}

func (p *fakePublisher) byTopic(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var found []publishedEvent
	for _, e := range p.events {
		if e.topic == topic {
			found = append(found, e)
		}
	}
	return found
}

func (p *fakePublisher) failures() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var found []publishedEvent
	for _, e := range p.events {
		if _, ok := e.payload.(*out.ImportFailedEvent); ok {
			found = append(found, e)
		}
	}
	return found
}

type fakeConfigs struct {
	cfg *out.ProviderConfig
	err error
}

func (c *fakeConfigs) GetProviderConfig(_ context.Context, _ domain.Provider) (*out.ProviderConfig, error) {
	return c.cfg, c.err
}

type fakeAccounts struct {
	accounts map[int64]*domain.Account
}

func (a *fakeAccounts) GetByID(_ context.Context, id int64) (*domain.Account, error) {
	if acc, ok := a.accounts[id]; ok {
		return acc, nil
	}
	return nil, fmt.Errorf("account %d: %w", id, errNotFound)
}

var errNotFound = errors.New("not found")

type fakeJobs struct {
	mu       sync.Mutex
	honorCtx bool
	states   []domain.JobState
	finished *domain.ImportSummary
}

func (j *fakeJobs) Create(context.Context, *domain.ImportSummary) error { return nil }

func (j *fakeJobs) UpdateState(_ context.Context, _ uuid.UUID, state domain.JobState) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.states = append(j.states, state)
	return nil
}

func (j *fakeJobs) Finish(ctx context.Context, summary *domain.ImportSummary) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	j.finished = summary
	return nil
}

func (j *fakeJobs) GetByID(context.Context, uuid.UUID) (*domain.ImportSummary, error) {
	return nil, errNotFound
}

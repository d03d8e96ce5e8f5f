package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	bunrepo "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-entity-repository/cache"
	"github.com/goliatone/go-entity-repository/dataprovider"
	"github.com/goliatone/go-entity-repository/events"
	"github.com/goliatone/go-entity-repository/pkg/testsupport"
)

type topic struct {
	bun.BaseModel `bun:"table:topics,alias:topic"`

	ID      int64  `bun:"id,pk,autoincrement" json:"id"`
	Name    string `bun:"name,notnull" json:"name"`
	Deleted bool   `bun:"deleted,notnull" json:"deleted"`
}

func (t *topic) GetID() int64        { return t.ID }
func (t *topic) IsDeleted() bool     { return t.Deleted }
func (t *topic) SetDeleted(del bool) { t.Deleted = del }

type tag struct {
	bun.BaseModel `bun:"table:tags,alias:tag"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Label string `bun:"label,notnull"`
}

func (t *tag) GetID() int64 { return t.ID }

const schemaTopics = `CREATE TABLE topics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	deleted BOOLEAN NOT NULL DEFAULT FALSE
)`

const schemaTags = `CREATE TABLE tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	label TEXT NOT NULL
)`

// spyProvider counts calls into the wrapped provider.
type spyProvider[T any] struct {
	dataprovider.Provider[T]

	mu           sync.Mutex
	selects      int
	counts       int
	txs          int
	writes       int
	failOnSelect func()
	updateErr    error
}

func (s *spyProvider[T]) Select(ctx context.Context, q *bun.SelectQuery) ([]T, error) {
	s.mu.Lock()
	s.selects++
	fail := s.failOnSelect
	s.mu.Unlock()
	if fail != nil {
		fail()
	}
	return s.Provider.Select(ctx, q)
}

func (s *spyProvider[T]) Count(ctx context.Context, q *bun.SelectQuery) (int, error) {
	s.mu.Lock()
	s.counts++
	s.mu.Unlock()
	return s.Provider.Count(ctx, q)
}

func (s *spyProvider[T]) InTx(ctx context.Context, fn func(ctx context.Context, tx dataprovider.Provider[T]) error) error {
	s.mu.Lock()
	s.txs++
	s.mu.Unlock()
	return s.Provider.InTx(ctx, fn)
}

func (s *spyProvider[T]) InsertEntity(ctx context.Context, entity T) error {
	s.wrote()
	return s.Provider.InsertEntity(ctx, entity)
}

func (s *spyProvider[T]) UpdateEntity(ctx context.Context, entity T) error {
	s.wrote()
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.Provider.UpdateEntity(ctx, entity)
}

func (s *spyProvider[T]) DeleteEntity(ctx context.Context, entity T) error {
	s.wrote()
	return s.Provider.DeleteEntity(ctx, entity)
}

func (s *spyProvider[T]) BulkDeleteWhere(ctx context.Context, criteria bunrepo.DeleteCriteria) (int64, error) {
	s.wrote()
	return s.Provider.BulkDeleteWhere(ctx, criteria)
}

func (s *spyProvider[T]) wrote() {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
}

func (s *spyProvider[T]) snapshot() (selects, counts, txs, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selects, s.counts, s.txs, s.writes
}

type notification struct {
	kind events.Kind
	id   int64
}

// spyPublisher records notifications and fails the call numbered failAt (1-based).
type spyPublisher struct {
	mu     sync.Mutex
	calls  []notification
	failAt int
	err    error
}

func (p *spyPublisher) record(kind events.Kind, entity any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, notification{kind: kind, id: entity.(Entity).GetID()})
	if p.failAt > 0 && len(p.calls) == p.failAt {
		return p.err
	}
	return nil
}

func (p *spyPublisher) EntityInserted(_ context.Context, e any) error {
	return p.record(events.KindInserted, e)
}

func (p *spyPublisher) EntityUpdated(_ context.Context, e any) error {
	return p.record(events.KindUpdated, e)
}

func (p *spyPublisher) EntityDeleted(_ context.Context, e any) error {
	return p.record(events.KindDeleted, e)
}

func (p *spyPublisher) notifications() []notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]notification(nil), p.calls...)
}

var errBoom = errors.New("boom")

type topicFixture struct {
	db        *bun.DB
	provider  *spyProvider[*topic]
	publisher *spyPublisher
	repo      *Repository[*topic]
}

// newTopicFixture seeds testdata/topics.json: ids 1-3 live, id 4 soft-deleted.
func newTopicFixture(t *testing.T, opts ...Option) *topicFixture {
	t.Helper()

	db := testsupport.NewSQLiteDB(t, schemaTopics)
	var seed []*topic
	testsupport.SeedFixture(t, db, testsupport.FixturePath("topics.json"), &seed)

	f := &topicFixture{
		db:        db,
		provider:  &spyProvider[*topic]{Provider: dataprovider.NewBunProvider[*topic](db)},
		publisher: &spyPublisher{},
	}
	opts = append([]Option{WithNamespace("app")}, opts...)
	f.repo = New[*topic](f.provider, nil, f.publisher, opts...)
	return f
}

func (f *topicFixture) withCache(svc cache.CacheService, pub events.Publisher) {
	if pub == nil {
		pub = f.publisher
	}
	f.repo = New[*topic](f.provider, svc, pub, WithNamespace("app"))
}

func newTagRepo(t *testing.T) (*Repository[*tag], *spyPublisher) {
	t.Helper()

	db := testsupport.NewSQLiteDB(t, schemaTags)
	pub := &spyPublisher{}
	return New[*tag](dataprovider.NewBunProvider[*tag](db), nil, pub), pub
}

func topicIDs(items []*topic) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package cache

import (
	"context"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-entity-repository/internal/cacheinfra"
)

// Stats is a snapshot of hit and miss counts.
type Stats struct {
	Hits   int64
	Misses int64
}

// Total returns the number of lookups.
func (s Stats) Total() int64 { return s.Hits + s.Misses }

type counters struct {
	hits   *xsync.Counter
	misses *xsync.Counter
}

func newCounters() *counters {
	return &counters{hits: xsync.NewCounter(), misses: xsync.NewCounter()}
}

func (c *counters) snapshot() Stats {
	return Stats{Hits: c.hits.Value(), Misses: c.misses.Value()}
}

// Instrumented wraps a CacheService and counts hits and misses, overall and
// per key prefix. A lookup is a miss when the wrapped service ran fetchFn.
type Instrumented struct {
	next     CacheService
	depth    int
	total    *counters
	byPrefix *xsync.MapOf[string, *counters]
}

// InstrumentedOption configures an Instrumented service.
type InstrumentedOption func(*Instrumented)

// WithPrefixDepth sets how many leading key segments group the per prefix
// counters. The default of 2 groups by namespace and entity.
func WithPrefixDepth(depth int) InstrumentedOption {
	return func(i *Instrumented) {
		if depth > 0 {
			i.depth = depth
		}
	}
}

// NewInstrumented wraps next.
func NewInstrumented(next CacheService, opts ...InstrumentedOption) *Instrumented {
	i := &Instrumented{
		next:     next,
		depth:    2,
		total:    newCounters(),
		byPrefix: xsync.NewMapOf[string, *counters](),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Instrumented) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	if err := cacheinfra.ValidateFetchFn(fetchFn); err != nil {
		return nil, err
	}

	var missed atomic.Bool
	fn := reflect.ValueOf(fetchFn)
	// same signature as fetchFn so backends can still see the result type
	tracked := reflect.MakeFunc(fn.Type(), func(args []reflect.Value) []reflect.Value {
		missed.Store(true)
		return fn.Call(args)
	}).Interface()

	result, err := i.next.GetOrFetch(ctx, key, tracked)

	c := i.countersFor(key)
	if missed.Load() {
		i.total.misses.Inc()
		c.misses.Inc()
	} else if err == nil {
		i.total.hits.Inc()
		c.hits.Inc()
	}

	return result, err
}

func (i *Instrumented) Delete(ctx context.Context, key string) error {
	return i.next.Delete(ctx, key)
}

func (i *Instrumented) DeleteByPrefix(ctx context.Context, prefix string) error {
	return i.next.DeleteByPrefix(ctx, prefix)
}

func (i *Instrumented) InvalidateKeys(ctx context.Context, keys []string) error {
	return i.next.InvalidateKeys(ctx, keys)
}

// Stats returns the overall counters.
func (i *Instrumented) Stats() Stats {
	return i.total.snapshot()
}

// PrefixStats returns the counters for one prefix as produced by Prefix.
func (i *Instrumented) PrefixStats(prefix string) Stats {
	c, ok := i.byPrefix.Load(prefix)
	if !ok {
		return Stats{}
	}
	return c.snapshot()
}

// AllPrefixStats returns a snapshot of every prefix seen so far.
func (i *Instrumented) AllPrefixStats() map[string]Stats {
	out := make(map[string]Stats, i.byPrefix.Size())
	i.byPrefix.Range(func(prefix string, c *counters) bool {
		out[prefix] = c.snapshot()
		return true
	})
	return out
}

func (i *Instrumented) countersFor(key string) *counters {
	c, _ := i.byPrefix.LoadOrCompute(i.prefixOf(key), newCounters)
	return c
}

func (i *Instrumented) prefixOf(key string) string {
	end := 0
	for n := 0; n < i.depth; n++ {
		idx := strings.Index(key[end:], KeySeparator)
		if idx < 0 {
			return key
		}
		end += idx + len(KeySeparator)
	}
	return key[:end]
}

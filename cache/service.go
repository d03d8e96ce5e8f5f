package cache

import (
	"context"
	"errors"

	"github.com/goliatone/go-entity-repository/internal/cacheinfra"
)

// ErrInvalidResultType is returned by GetOrFetch when the cached value cannot be
// converted to the type requested by the caller.
var ErrInvalidResultType = errors.New("cache: cached value has unexpected type")

// KeySerializer builds a cache key from a method name + arbitrary args.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn is the function signature CacheService expects when fetching from the source of truth.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService exposes the read-through caching operations entity repositories need.
// Invalidation lives on the same interface so whoever owns write access to the
// cache (event handlers, maintenance jobs) can drop stale entries.
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error)
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	InvalidateKeys(ctx context.Context, keys []string) error
}

// GetOrFetch is a type-safe wrapper function that provides generic support for CacheService.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T

	result, err := service.GetOrFetch(ctx, key, fetchFn)
	if err != nil {
		return zero, err
	}

	// nil interface: a nil pointer/interface value was cached
	if result == nil {
		return zero, nil
	}

	typed, ok := result.(T)
	if !ok {
		return zero, ErrInvalidResultType
	}
	return typed, nil
}

// NewNopService returns a CacheService that never stores anything; every read
// goes to the source of truth.
func NewNopService() CacheService {
	return cacheinfra.NewNopService()
}

package cacheinfra

import (
	"context"
	"strings"

	"github.com/viccon/sturdyc"
)

// sturdycService keeps entries in process memory. Values are stored as
// returned by the fetch function, so readers share them.
type sturdycService struct {
	client *sturdyc.Client[any]
}

// NewSturdycService creates the in-process cache backend.
func NewSturdycService(cfg Config) (*sturdycService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &sturdycService{
		client: sturdyc.New[any](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage, cfg.sturdycOptions()...),
	}, nil
}

// GetOrFetch returns the value stored under key, populating it with fetchFn on a miss.
// Concurrent misses for one key are coalesced by sturdyc.
func (s *sturdycService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	if err := ValidateFetchFn(fetchFn); err != nil {
		return nil, err
	}

	return s.client.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
		return callFetchFunctionWithReflection(ctx, fetchFn)
	})
}

func (s *sturdycService) Delete(ctx context.Context, key string) error {
	return s.InvalidateKeys(ctx, []string{key})
}

// DeleteByPrefix drops every key under prefix. Keys written while the scan
// runs may survive.
func (s *sturdycService) DeleteByPrefix(ctx context.Context, prefix string) error {
	var matched []string
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
	}
	return s.InvalidateKeys(ctx, matched)
}

func (s *sturdycService) InvalidateKeys(ctx context.Context, keys []string) error {
	for _, key := range keys {
		s.client.Delete(key)
	}
	return nil
}

// Size reports the number of entries held.
func (s *sturdycService) Size() int {
	return s.client.Size()
}

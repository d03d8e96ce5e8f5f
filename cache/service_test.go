package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

// mockCacheService for testing GetOrFetch function
type mockCacheService struct {
	result any
	err    error
}

func (m *mockCacheService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	return m.result, m.err
}

func (m *mockCacheService) Delete(ctx context.Context, key string) error {
	return nil
}

func (m *mockCacheService) DeleteByPrefix(ctx context.Context, prefix string) error {
	return nil
}

func (m *mockCacheService) InvalidateKeys(ctx context.Context, keys []string) error {
	return nil
}

func TestGetOrFetch_NilInterface(t *testing.T) {
	// a cached "not found" entity comes back as a nil interface
	mock := &mockCacheService{}

	type identified interface {
		GetID() int64
	}

	result, err := GetOrFetch[identified](context.Background(), mock, "app::topic::by_id::7::true", func(ctx context.Context) (identified, error) {
		return nil, nil
	})

	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}

	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetOrFetch_NilPointerNoPanic(t *testing.T) {
	mock := &mockCacheService{result: (*string)(nil)}

	result, err := GetOrFetch[*string](context.Background(), mock, "test-key", func(ctx context.Context) (*string, error) {
		return nil, nil
	})

	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}

	if result != nil {
		t.Errorf("expected nil result but got: %v", result)
	}
}

func TestGetOrFetch_TypeAssertionFailure(t *testing.T) {
	// another repository stored a different type under the same key
	mock := &mockCacheService{result: "wrong-type"}

	result, err := GetOrFetch[int](context.Background(), mock, "test-key", func(ctx context.Context) (int, error) {
		return 42, nil
	})

	if !errors.Is(err, ErrInvalidResultType) {
		t.Errorf("expected ErrInvalidResultType but got: %v", err)
	}

	if result != 0 {
		t.Errorf("expected zero value (0) but got: %v", result)
	}
}

func TestGetOrFetch_ValidResult(t *testing.T) {
	expectedValue := "test-value"
	mock := &mockCacheService{result: expectedValue}

	result, err := GetOrFetch[string](context.Background(), mock, "test-key", func(ctx context.Context) (string, error) {
		return expectedValue, nil
	})

	if err != nil {
		t.Errorf("expected no error but got: %v", err)
	}

	if result != expectedValue {
		t.Errorf("expected '%s' but got: '%s'", expectedValue, result)
	}
}

func TestGetOrFetch_PropagatesError(t *testing.T) {
	expected := errors.New("store failure")
	mock := &mockCacheService{err: expected}

	_, err := GetOrFetch[int](context.Background(), mock, "k", func(ctx context.Context) (int, error) {
		return 0, nil
	})
	if !errors.Is(err, expected) {
		t.Errorf("expected %v, got %v", expected, err)
	}
}

func TestNewNopService_NeverCaches(t *testing.T) {
	svc := NewNopService()
	calls := 0

	for i := 0; i < 2; i++ {
		got, err := GetOrFetch[int](context.Background(), svc, "k", func(ctx context.Context) (int, error) {
			calls++
			return 42, nil
		})
		if err != nil || got != 42 {
			t.Fatalf("unexpected result %v, %v", got, err)
		}
	}

	if calls != 2 {
		t.Errorf("expected fetch on every call, got %d calls", calls)
	}
}

func TestNewCacheService_PopulatesOnce(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 10
	cfg.NumShards = 1

	svc, err := NewCacheService(cfg)
	if err != nil {
		t.Fatalf("NewCacheService: %v", err)
	}

	calls := 0
	fetch := func(ctx context.Context) ([]string, error) {
		calls++
		return []string{"go", "sql"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetOrFetch[[]string](context.Background(), svc, "app::topic::all::true", fetch)
		if err != nil || len(got) != 2 {
			t.Fatalf("unexpected result %v, %v", got, err)
		}
	}
	if calls != 1 {
		t.Errorf("expected one fetch, got %d", calls)
	}

	if err := svc.DeleteByPrefix(context.Background(), "app::topic::"); err != nil {
		t.Fatalf("DeleteByPrefix: %v", err)
	}
	if _, err := GetOrFetch[[]string](context.Background(), svc, "app::topic::all::true", fetch); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected refetch after invalidation, got %d calls", calls)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}

	cfg.EarlyRefresh = &EarlyRefreshConfig{MinAsyncRefreshTime: time.Minute, MaxAsyncRefreshTime: time.Second}
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid early refresh window to fail validation")
	}

	if _, err := NewRedisCacheService(nil, RedisConfig{}); err == nil {
		t.Error("expected empty redis config to fail validation")
	}
}

package cacheinfra

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
)

// fakeRedis is an in-memory stand-in for the handful of commands the
// Redis backend issues.
type fakeRedis struct {
	mu       sync.Mutex
	data     map[string][]byte
	ttls     map[string]int64
	commands []string
	getErr   error
	scan     []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]int64{}}
}

func (f *fakeRedis) GetContext(ctx context.Context) (redis.Conn, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &fakeConn{store: f}, nil
}

func (f *fakeRedis) count(cmd string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.commands {
		if c == cmd {
			n++
		}
	}
	return n
}

type fakeConn struct {
	store *fakeRedis
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Err() error { return nil }

func (c *fakeConn) Flush() error { return nil }

func (c *fakeConn) Send(string, ...any) error {
	return errors.New("fake: pipelining not supported")
}

func (c *fakeConn) Receive() (any, error) {
	return nil, errors.New("fake: pipelining not supported")
}

func (c *fakeConn) ReceiveContext(ctx context.Context) (any, error) {
	return c.Receive()
}

func (c *fakeConn) DoContext(ctx context.Context, cmd string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Do(cmd, args...)
}

func (c *fakeConn) Do(cmd string, args ...any) (any, error) {
	s := c.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, cmd)

	switch cmd {
	case "GET":
		v, ok := s.data[args[0].(string)]
		if !ok {
			return nil, nil
		}
		return v, nil
	case "SET":
		key := args[0].(string)
		s.data[key] = args[1].([]byte)
		if len(args) == 4 && args[2] == "PX" {
			s.ttls[key] = args[3].(int64)
		}
		return "OK", nil
	case "DEL":
		n := int64(0)
		for _, a := range args {
			if _, ok := s.data[a.(string)]; ok {
				delete(s.data, a.(string))
				n++
			}
		}
		return n, nil
	case "SCAN":
		cursor := args[0].(int)
		if cursor == 0 {
			prefix := strings.TrimSuffix(unescapeGlob(args[2].(string)), "*")
			s.scan = s.scan[:0]
			for k := range s.data {
				if strings.HasPrefix(k, prefix) {
					s.scan = append(s.scan, k)
				}
			}
			sort.Strings(s.scan)
		}
		// one key per page so the cursor loop is exercised
		if cursor >= len(s.scan) {
			return []any{[]byte("0"), []any{}}, nil
		}
		next := cursor + 1
		if next >= len(s.scan) {
			next = 0
		}
		return []any{[]byte(strconv.Itoa(next)), []any{[]byte(s.scan[cursor])}}, nil
	}

	return nil, errors.New("fake: unsupported command " + cmd)
}

func unescapeGlob(s string) string {
	return strings.NewReplacer(`\\`, `\`, `\*`, "*", `\?`, "?", `\[`, "[", `\]`, "]").Replace(s)
}

type cachedTopic struct {
	ID      int64
	Name    string
	Deleted bool
}

func TestRedisService_GetOrFetch(t *testing.T) {
	store := newFakeRedis()
	service, err := NewRedisService(store, RedisConfig{TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewRedisService: %v", err)
	}

	ctx := context.Background()
	var calls int
	fetchFn := func(ctx context.Context) ([]*cachedTopic, error) {
		calls++
		return []*cachedTopic{{ID: 3, Name: "go"}, {ID: 1, Name: "sql", Deleted: true}}, nil
	}

	first, err := service.GetOrFetch(ctx, "app::topic::all::true", fetchFn)
	if err != nil {
		t.Fatalf("first GetOrFetch: %v", err)
	}
	second, err := service.GetOrFetch(ctx, "app::topic::all::true", fetchFn)
	if err != nil {
		t.Fatalf("second GetOrFetch: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected one fetch, got %d", calls)
	}

	if ttl := store.ttls["app::topic::all::true"]; ttl != time.Minute.Milliseconds() {
		t.Errorf("expected PX %d, got %d", time.Minute.Milliseconds(), ttl)
	}

	for _, result := range []any{first, second} {
		topics, ok := result.([]*cachedTopic)
		if !ok {
			t.Fatalf("expected []*cachedTopic, got %T", result)
		}
		if len(topics) != 2 || topics[0].ID != 3 || topics[1].Name != "sql" || !topics[1].Deleted {
			t.Errorf("unexpected decoded value %+v", topics)
		}
	}
}

func TestRedisService_FetchErrorNotStored(t *testing.T) {
	store := newFakeRedis()
	service, _ := NewRedisService(store, RedisConfig{})

	expected := errors.New("boom")
	_, err := service.GetOrFetch(context.Background(), "k", func(ctx context.Context) (int, error) {
		return 0, expected
	})
	if !errors.Is(err, expected) {
		t.Fatalf("expected %v, got %v", expected, err)
	}
	if store.count("SET") != 0 {
		t.Error("expected nothing to be stored after a failed fetch")
	}
}

func TestRedisService_ConnectionError(t *testing.T) {
	store := newFakeRedis()
	store.getErr = errors.New("dial tcp: refused")
	service, _ := NewRedisService(store, RedisConfig{})

	_, err := service.GetOrFetch(context.Background(), "k", func(ctx context.Context) (int, error) {
		t.Fatal("fetch must not run without a connection")
		return 0, nil
	})
	if err == nil {
		t.Fatal("expected connection error")
	}
}

func TestRedisService_CanceledContext(t *testing.T) {
	store := newFakeRedis()
	service, _ := NewRedisService(store, RedisConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.GetOrFetch(ctx, "k", func(ctx context.Context) (int, error) {
		t.Fatal("fetch must not run on a canceled context")
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled from GET, got %v", err)
	}
	if err := service.DeleteByPrefix(ctx, "app::"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled from SCAN, got %v", err)
	}
	if err := service.InvalidateKeys(ctx, []string{"k"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled from DEL, got %v", err)
	}
	if n := len(store.commands); n != 0 {
		t.Errorf("expected no command to reach redis, got %d", n)
	}
}

func TestRedisService_Invalidation(t *testing.T) {
	store := newFakeRedis()
	service, _ := NewRedisService(store, RedisConfig{ScanCount: 1})
	ctx := context.Background()

	for _, key := range []string{"app::topic::all::true", "app::topic::by_id::1::true", "app::topic_store::all::true", "app::store::all::true"} {
		k := key
		if _, err := service.GetOrFetch(ctx, k, func(ctx context.Context) (string, error) { return k, nil }); err != nil {
			t.Fatalf("populate: %v", err)
		}
	}

	if err := service.DeleteByPrefix(ctx, "app::topic::"); err != nil {
		t.Fatalf("DeleteByPrefix: %v", err)
	}

	if _, ok := store.data["app::topic::all::true"]; ok {
		t.Error("expected app::topic::all::true to be removed")
	}
	if _, ok := store.data["app::topic_store::all::true"]; !ok {
		t.Error("expected app::topic_store::all::true to survive the prefix delete")
	}

	if err := service.InvalidateKeys(ctx, []string{"app::topic_store::all::true"}); err != nil {
		t.Fatalf("InvalidateKeys: %v", err)
	}
	if err := service.Delete(ctx, "app::store::all::true"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(store.data) != 0 {
		t.Errorf("expected empty store, got %v", store.data)
	}
}

func TestRedisConfig_Validate(t *testing.T) {
	if err := DefaultRedisConfig().Validate(); err != nil {
		t.Errorf("expected default redis config to be valid, got %v", err)
	}

	cfg := DefaultRedisConfig()
	cfg.Addr = ""
	var cfgErr *ConfigError
	if err := cfg.Validate(); !errors.As(err, &cfgErr) || cfgErr.Field != "Redis.Addr" {
		t.Errorf("expected Redis.Addr error, got %v", err)
	}
}

func TestEscapeGlob(t *testing.T) {
	got := escapeGlob("app::topic::by_ids::slice[2]:{1,2}*")
	want := `app::topic::by_ids::slice\[2\]:{1,2}\*`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

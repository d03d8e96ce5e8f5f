package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/vmihailenco/msgpack/v5"
)

// NewRedisPool builds a redigo pool for cfg.
func NewRedisPool(cfg RedisConfig) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		MaxActive:   cfg.MaxActive,
		IdleTimeout: cfg.IdleTimeout,
		Wait:        true,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			opts := []redis.DialOption{redis.DialDatabase(cfg.DB)}
			if cfg.Password != "" {
				opts = append(opts, redis.DialPassword(cfg.Password))
			}
			return redis.DialContext(ctx, "tcp", cfg.Addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// ConnSource hands out Redis connections. *redis.Pool satisfies it.
type ConnSource interface {
	GetContext(ctx context.Context) (redis.Conn, error)
}

// redisService stores msgpack encoded values in Redis.
//
// Concurrent misses on the same key each run fetchFn; Redis has no
// in-process request coalescing.
type redisService struct {
	conns     ConnSource
	ttl       time.Duration
	scanCount int
}

// NewRedisService creates the shared cache backend on top of conns.
func NewRedisService(conns ConnSource, cfg RedisConfig) (*redisService, error) {
	if conns == nil {
		return nil, &ConfigError{Field: "Redis", Message: "connection source cannot be nil"}
	}
	if cfg.TTL < 0 {
		return nil, &ConfigError{Field: "Redis.TTL", Message: "must be non-negative"}
	}

	scanCount := cfg.ScanCount
	if scanCount <= 0 {
		scanCount = 100
	}

	return &redisService{conns: conns, ttl: cfg.TTL, scanCount: scanCount}, nil
}

func (s *redisService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	if err := ValidateFetchFn(fetchFn); err != nil {
		return nil, err
	}

	conn, err := s.conns.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	data, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", key))
	switch {
	case err == nil:
		return decodeValue(data, fetchResultType(fetchFn))
	case !errors.Is(err, redis.ErrNil):
		return nil, err
	}

	result, err := callFetchFunctionWithReflection(ctx, fetchFn)
	if err != nil {
		return nil, err
	}

	encoded, err := msgpack.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("cacheinfra: encode %q: %w", key, err)
	}

	args := redis.Args{}.Add(key, encoded)
	if s.ttl > 0 {
		args = args.Add("PX", s.ttl.Milliseconds())
	}

	if _, err := redis.DoContext(conn, ctx, "SET", args...); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *redisService) Delete(ctx context.Context, key string) error {
	return s.InvalidateKeys(ctx, []string{key})
}

// DeleteByPrefix walks the keyspace with SCAN and removes every match.
func (s *redisService) DeleteByPrefix(ctx context.Context, prefix string) error {
	conn, err := s.conns.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	pattern := escapeGlob(prefix) + "*"
	cursor := 0

	for {
		values, err := redis.Values(redis.DoContext(conn, ctx, "SCAN", cursor, "MATCH", pattern, "COUNT", s.scanCount))
		if err != nil {
			return err
		}
		if len(values) != 2 {
			return fmt.Errorf("cacheinfra: unexpected SCAN reply of %d elements", len(values))
		}

		cursor, err = redis.Int(values[0], nil)
		if err != nil {
			return err
		}

		keys, err := redis.Strings(values[1], nil)
		if err != nil {
			return err
		}

		if len(keys) > 0 {
			if _, err := redis.DoContext(conn, ctx, "DEL", redis.Args{}.AddFlat(keys)...); err != nil {
				return err
			}
		}

		if cursor == 0 {
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *redisService) InvalidateKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	conn, err := s.conns.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = redis.DoContext(conn, ctx, "DEL", redis.Args{}.AddFlat(keys)...)
	return err
}

func decodeValue(data []byte, typ reflect.Type) (any, error) {
	target := reflect.New(typ)
	if err := msgpack.Unmarshal(data, target.Interface()); err != nil {
		return nil, fmt.Errorf("cacheinfra: decode %s: %w", typ, err)
	}
	return target.Elem().Interface(), nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}

package cache

import (
	"context"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/goliatone/go-entity-repository/internal/cacheinfra"
)

// Config configures the in-process cache backend.
type Config struct {
	Capacity             int
	NumShards            int
	TTL                  time.Duration
	EvictionPercentage   int
	EarlyRefresh         *EarlyRefreshConfig
	MissingRecordStorage bool
	EvictionInterval     time.Duration
}

// EarlyRefreshConfig mirrors the underlying sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return fromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewCacheService builds the in-process (sturdyc) cache service.
func NewCacheService(cfg Config) (CacheService, error) {
	svc, err := cacheinfra.NewSturdycService(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// RedisConfig configures the shared Redis cache backend.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxIdle     int
	MaxActive   int
	IdleTimeout time.Duration
	TTL         time.Duration
	ScanCount   int
}

// DefaultRedisConfig returns a RedisConfig for a local server.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig(cacheinfra.DefaultRedisConfig())
}

// Validate checks whether the configuration values are valid.
func (c RedisConfig) Validate() error {
	return cacheinfra.RedisConfig(c).Validate()
}

// ConnSource hands out Redis connections. *redis.Pool satisfies it.
type ConnSource interface {
	GetContext(ctx context.Context) (redis.Conn, error)
}

// NewRedisPool builds a redigo connection pool for cfg.
func NewRedisPool(cfg RedisConfig) *redis.Pool {
	return cacheinfra.NewRedisPool(cacheinfra.RedisConfig(cfg))
}

// NewRedisCacheService builds a cache service storing msgpack encoded values in Redis.
func NewRedisCacheService(conns ConnSource, cfg RedisConfig) (CacheService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	svc, err := cacheinfra.NewRedisService(conns, cacheinfra.RedisConfig(cfg))
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func (c Config) toInternal() cacheinfra.Config {
	cfg := cacheinfra.Config{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
	if c.EarlyRefresh != nil {
		early := cacheinfra.EarlyRefreshConfig(*c.EarlyRefresh)
		cfg.EarlyRefresh = &early
	}
	return cfg
}

func fromInternal(in cacheinfra.Config) Config {
	cfg := Config{
		Capacity:             in.Capacity,
		NumShards:            in.NumShards,
		TTL:                  in.TTL,
		EvictionPercentage:   in.EvictionPercentage,
		MissingRecordStorage: in.MissingRecordStorage,
		EvictionInterval:     in.EvictionInterval,
	}
	if in.EarlyRefresh != nil {
		early := EarlyRefreshConfig(*in.EarlyRefresh)
		cfg.EarlyRefresh = &early
	}
	return cfg
}

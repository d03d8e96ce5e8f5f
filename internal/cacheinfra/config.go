package cacheinfra

import (
	"time"

	"github.com/viccon/sturdyc"
)

// Config tunes the in-process sturdyc backend.
type Config struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	// EarlyRefresh is nil by default. Entity keys live until a write
	// invalidates them, and a background refresh would re-run the query.
	EarlyRefresh         *EarlyRefreshConfig
	MissingRecordStorage bool
	// EvictionInterval of zero keeps the sturdyc default.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig mirrors sturdyc.WithEarlyRefreshes.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                30 * time.Minute,
		EvictionPercentage: 10,
	}
}

func (c Config) Validate() error {
	rules := []rule{
		{"Capacity", c.Capacity > 0, "must be greater than 0"},
		{"NumShards", c.NumShards > 0, "must be greater than 0"},
		{"TTL", c.TTL > 0, "must be greater than 0"},
		{"EvictionPercentage", c.EvictionPercentage >= 1 && c.EvictionPercentage <= 100, "must be between 1 and 100"},
	}
	if er := c.EarlyRefresh; er != nil {
		rules = append(rules,
			rule{"EarlyRefresh.MinAsyncRefreshTime", er.MinAsyncRefreshTime >= 0, "must be non-negative"},
			rule{"EarlyRefresh.MaxAsyncRefreshTime", er.MaxAsyncRefreshTime >= er.MinAsyncRefreshTime, "must not be lower than MinAsyncRefreshTime"},
			rule{"EarlyRefresh.SyncRefreshTime", er.SyncRefreshTime >= 0, "must be non-negative"},
			rule{"EarlyRefresh.RetryBaseDelay", er.RetryBaseDelay >= 0, "must be non-negative"},
		)
	}
	return firstViolation(rules)
}

// sturdycOptions returns the optional settings. The sizing fields go to
// sturdyc.New directly.
func (c Config) sturdycOptions() []sturdyc.Option {
	var opts []sturdyc.Option
	if er := c.EarlyRefresh; er != nil {
		opts = append(opts, sturdyc.WithEarlyRefreshes(er.MinAsyncRefreshTime, er.MaxAsyncRefreshTime, er.SyncRefreshTime, er.RetryBaseDelay))
	}
	if c.MissingRecordStorage {
		opts = append(opts, sturdyc.WithMissingRecordStorage())
	}
	if c.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return opts
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxIdle     int
	MaxActive   int
	IdleTimeout time.Duration
	// TTL applied to every stored entry. Zero keeps entries until invalidated.
	TTL time.Duration
	// ScanCount is the COUNT hint used while scanning for prefix deletes.
	ScanCount int
}

// DefaultRedisConfig points at a local server.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        "localhost:6379",
		MaxIdle:     10,
		MaxActive:   50,
		IdleTimeout: 240 * time.Second,
		TTL:         30 * time.Minute,
		ScanCount:   100,
	}
}

func (c RedisConfig) Validate() error {
	return firstViolation([]rule{
		{"Redis.Addr", c.Addr != "", "cannot be empty"},
		{"Redis.DB", c.DB >= 0, "must be non-negative"},
		{"Redis.TTL", c.TTL >= 0, "must be non-negative"},
		{"Redis.MaxIdle", c.MaxIdle >= 0 && c.MaxActive >= 0, "pool sizes must be non-negative"},
	})
}

// ConfigError names the first setting that failed validation.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "cacheinfra: invalid " + e.Field + ": " + e.Message
}

type rule struct {
	field string
	ok    bool
	msg   string
}

func firstViolation(rules []rule) error {
	for _, r := range rules {
		if !r.ok {
			return &ConfigError{Field: r.field, Message: r.msg}
		}
	}
	return nil
}

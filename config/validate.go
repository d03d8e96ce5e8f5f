package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-entity-repository/cache"
	"github.com/goliatone/go-entity-repository/dataprovider"
)

// Validate checks every section and reports all failures at once.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Log),
		validation.Field(&c.Database),
		validation.Field(&c.Cache),
		validation.Field(&c.Events),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid configuration").
			WithTextCode("INVALID_CONFIG")
	}
	return nil
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.Required, validation.In("json", "console")),
	)
}

func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(dataprovider.DriverPostgres, dataprovider.DriverSQLite)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
		validation.Field(&c.MaxIdleConns, validation.Min(0)),
		validation.Field(&c.ConnMaxLifetime, validation.Min(0)),
		validation.Field(&c.SlowThreshold, validation.Min(0)),
	)
}

func (c CacheConfig) Validate() error {
	memory := c.Backend == BackendMemory
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendRedis, BackendNone)),
		validation.Field(&c.Capacity, validation.When(memory, validation.Required, validation.Min(1))),
		validation.Field(&c.NumShards, validation.When(memory, validation.Required, validation.Min(1))),
		validation.Field(&c.TTL, validation.When(memory, validation.Required)),
		validation.Field(&c.EvictionPercentage, validation.When(memory, validation.Min(0), validation.Max(100))),
		validation.Field(&c.Redis, validation.Skip.When(c.Backend != BackendRedis)),
	)
}

func (c RedisConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.TTL, validation.Required),
		validation.Field(&c.ScanCount, validation.Min(0)),
	)
}

func (c EventsConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AMQP),
	)
}

func (c AMQPConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Exchange, validation.When(c.Enabled(), validation.Required)),
	)
}

// CacheConfig converts the in-process cache settings.
func (c CacheConfig) CacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Capacity = c.Capacity
	cfg.NumShards = c.NumShards
	cfg.TTL = c.TTL
	cfg.EvictionPercentage = c.EvictionPercentage
	return cfg
}

// RedisCacheConfig converts the redis settings.
func (c CacheConfig) RedisCacheConfig() cache.RedisConfig {
	return cache.RedisConfig(c.Redis)
}

// ProviderConfig converts the database settings.
func (c DatabaseConfig) ProviderConfig() dataprovider.DatabaseConfig {
	return dataprovider.DatabaseConfig(c)
}

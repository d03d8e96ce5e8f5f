package di

import (
	"context"
	"errors"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-repository/cache"
	"github.com/goliatone/go-entity-repository/config"
	"github.com/goliatone/go-entity-repository/dataprovider"
	"github.com/goliatone/go-entity-repository/events"
	"github.com/goliatone/go-entity-repository/events/amqpevents"
	"github.com/goliatone/go-entity-repository/internal/logging"
	"github.com/goliatone/go-entity-repository/repository"
)

// Container wires the shared pieces every repository needs: the database
// handle, the cache backend, the key serializer and the event dispatcher.
// Repositories built from the same container share all of them.
type Container struct {
	config        config.Config
	logger        *zap.Logger
	db            *bun.DB
	cacheService  cache.CacheService
	stats         *cache.Instrumented
	keySerializer cache.KeySerializer
	dispatcher    *events.Dispatcher
	amqpChannel   amqpevents.Channel

	closers []func() error
}

// Option customises NewContainer.
type Option func(*Container)

// WithLogger uses l instead of building one from the log settings.
func WithLogger(l *zap.Logger) Option {
	return func(c *Container) {
		c.logger = l
	}
}

// WithDB uses an already open database. The container does not close it.
func WithDB(db *bun.DB) Option {
	return func(c *Container) {
		c.db = db
	}
}

// WithAMQPChannel publishes events on ch instead of dialing the configured broker.
func WithAMQPChannel(ch amqpevents.Channel) Option {
	return func(c *Container) {
		c.amqpChannel = ch
	}
}

// NewContainer builds a container from cfg. Anything opened before a failure
// is closed again.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		config:        cfg,
		keySerializer: cache.NewDefaultKeySerializer(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		logger, err := logging.New(cfg.Log, "entityrepo")
		if err != nil {
			return nil, err
		}
		c.logger = logger
	}

	if err := c.init(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.logger.Info("DI/READY",
		zap.String("namespace", cfg.Namespace),
		zap.String("cache", cfg.Cache.Backend),
		zap.Int("handlers", c.dispatcher.Len()),
	)
	return c, nil
}

// NewContainerWithDefaults loads the configuration from the defaults and
// the ENTITYREPO_ environment before building the container.
func NewContainerWithDefaults(ctx context.Context, opts ...Option) (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewContainer(ctx, *cfg, opts...)
}

func (c *Container) init(ctx context.Context) error {
	if c.db == nil {
		db, err := dataprovider.Open(ctx, c.config.Database.ProviderConfig(), c.logger)
		if err != nil {
			return err
		}
		c.db = db
		c.closers = append(c.closers, db.Close)
	}

	svc, err := c.buildCache()
	if err != nil {
		return err
	}
	if c.config.Cache.Instrumented {
		c.stats = cache.NewInstrumented(svc)
		svc = c.stats
	}
	c.cacheService = svc

	return c.buildDispatcher()
}

func (c *Container) buildCache() (cache.CacheService, error) {
	switch c.config.Cache.Backend {
	case config.BackendRedis:
		rc := c.config.Cache.RedisCacheConfig()
		pool := cache.NewRedisPool(rc)
		c.closers = append(c.closers, pool.Close)
		return cache.NewRedisCacheService(pool, rc)
	case config.BackendNone:
		return cache.NewNopService(), nil
	default:
		return cache.NewCacheService(c.config.Cache.CacheConfig())
	}
}

func (c *Container) buildDispatcher() error {
	ev := c.config.Events
	c.dispatcher = events.NewDispatcher()

	// invalidation runs first so later handlers observe fresh reads
	if ev.InvalidateCache && c.config.Cache.Backend != config.BackendNone {
		c.dispatcher.Subscribe(events.CacheInvalidator(c.cacheService, c.config.Namespace))
	}
	if ev.Log {
		c.dispatcher.Subscribe(events.LogHandler(c.logger))
	}

	if c.amqpChannel == nil && ev.AMQP.Enabled() {
		conn, err := amqpevents.Dial(amqpevents.Config{
			URL:      ev.AMQP.URL,
			Exchange: ev.AMQP.Exchange,
			Durable:  ev.AMQP.Durable,
		}, c.logger)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, conn.Close)
		c.amqpChannel = conn.Channel()
	}
	if c.amqpChannel != nil {
		c.dispatcher.Subscribe(amqpevents.NewPublisher(c.amqpChannel, ev.AMQP.Exchange,
			amqpevents.WithLogger(c.logger),
			amqpevents.WithRoutingPrefix(ev.AMQP.RoutingPrefix),
		))
	}
	return nil
}

// DB returns the shared database handle.
func (c *Container) DB() *bun.DB {
	return c.db
}

// CacheService returns the shared cache backend.
func (c *Container) CacheService() cache.CacheService {
	return c.cacheService
}

// CacheStats returns the hit/miss counters, or nil when the cache is not
// instrumented.
func (c *Container) CacheStats() *cache.Instrumented {
	return c.stats
}

// KeySerializer returns the shared key serializer.
func (c *Container) KeySerializer() cache.KeySerializer {
	return c.keySerializer
}

// Dispatcher returns the event dispatcher repositories publish to.
// Extra handlers can be subscribed at any time.
func (c *Container) Dispatcher() *events.Dispatcher {
	return c.dispatcher
}

func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns a copy of the configuration the container was built from.
func (c *Container) Config() config.Config {
	return c.config
}

// Close releases what the container opened, in reverse order.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	return errors.Join(errs...)
}

// NewRepository builds a repository for T on the container's database, cache
// and dispatcher. Options are applied after the container defaults.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewRepository[*Topic](container)
func NewRepository[T repository.Entity](c *Container, opts ...repository.Option) *repository.Repository[T] {
	base := []repository.Option{
		repository.WithLogger(c.logger),
		repository.WithNamespace(c.config.Namespace),
		repository.WithKeySerializer(c.keySerializer),
	}
	provider := dataprovider.NewBunProvider[T](c.db)
	return repository.New[T](provider, c.cacheService, c.dispatcher, append(base, opts...)...)
}

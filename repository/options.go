package repository

import (
	bunrepo "github.com/goliatone/go-repository-bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-repository/cache"
)

const (
	DefaultIDColumn      = "id"
	DefaultDeletedColumn = "deleted"
)

type settings struct {
	logger        *zap.Logger
	entityName    string
	namespace     string
	serializer    cache.KeySerializer
	idColumn      string
	deletedColumn string
}

// Option configures a Repository at construction.
type Option func(*settings)

// WithLogger sets the repository logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEntityName overrides the entity segment of cache keys, which otherwise
// derives from the model type name.
func WithEntityName(name string) Option {
	return func(s *settings) {
		s.entityName = name
	}
}

// WithNamespace sets the leading segment of every cache key.
func WithNamespace(ns string) Option {
	return func(s *settings) {
		s.namespace = ns
	}
}

// WithKeySerializer replaces the default cache key serializer.
func WithKeySerializer(ks cache.KeySerializer) Option {
	return func(s *settings) {
		s.serializer = ks
	}
}

// WithIDColumn names the primary key column used by id lookups.
func WithIDColumn(col string) Option {
	return func(s *settings) {
		if col != "" {
			s.idColumn = col
		}
	}
}

// WithDeletedColumn names the soft-delete flag column.
func WithDeletedColumn(col string) Option {
	return func(s *settings) {
		if col != "" {
			s.deletedColumn = col
		}
	}
}

type readConfig struct {
	keyFn          KeyFunc
	includeDeleted bool
	criteria       []bunrepo.SelectCriteria
}

// ReadOption tunes a single read.
type ReadOption func(*readConfig)

func newReadConfig(opts []ReadOption) readConfig {
	cfg := readConfig{includeDeleted: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithCache caches the read under the key fn selects.
func WithCache(fn KeyFunc) ReadOption {
	return func(c *readConfig) {
		c.keyFn = fn
	}
}

// WithDefaultCache caches the read under the operation's default key.
func WithDefaultCache() ReadOption {
	return WithCache(func(*cache.Keys) cache.Key { return cache.Key{} })
}

// IncludeDeleted controls whether soft-deleted rows are returned.
func IncludeDeleted(include bool) ReadOption {
	return func(c *readConfig) {
		c.includeDeleted = include
	}
}

// ExcludeDeleted hides soft-deleted rows.
func ExcludeDeleted() ReadOption {
	return IncludeDeleted(false)
}

// WithQuery applies criteria to the query after the soft-delete filter.
// Default cache keys ignore criteria; pair it with WithCache and an explicit key.
func WithQuery(criteria ...bunrepo.SelectCriteria) ReadOption {
	return func(c *readConfig) {
		c.criteria = append(c.criteria, criteria...)
	}
}

type writeConfig struct {
	publish bool
}

// WriteOption tunes a single mutation.
type WriteOption func(*writeConfig)

func newWriteConfig(opts []WriteOption) writeConfig {
	cfg := writeConfig{publish: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEvents controls whether the mutation notifies the publisher.
func WithEvents(publish bool) WriteOption {
	return func(c *writeConfig) {
		c.publish = publish
	}
}

// WithoutEvents skips publisher notification.
func WithoutEvents() WriteOption {
	return WithEvents(false)
}

package repository

import (
	"context"

	bunrepo "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-entity-repository/cache"
	"github.com/goliatone/go-entity-repository/dataprovider"
	"github.com/goliatone/go-entity-repository/events"
)

// Default key operations.
const (
	OpByID  = "by_id"
	OpByIDs = "by_ids"
	OpAll   = "all"
)

// Repository mediates between services and the store for entities of type T,
// adding read-through caching, soft-delete filtering, transactional batches
// and mutation events. It holds no mutable state and is safe for concurrent use.
type Repository[T Entity] struct {
	provider      dataprovider.Provider[T]
	cache         cache.CacheService
	publisher     events.Publisher
	keys          *cache.Keys
	logger        *zap.Logger
	idColumn      string
	deletedColumn string
	softDelete    bool
}

var (
	_ Reader[Entity] = (*Repository[Entity])(nil)
	_ Writer[Entity] = (*Repository[Entity])(nil)
)

// New returns a repository over provider. A nil cacheService disables
// caching and a nil publisher drops every notification.
func New[T Entity](provider dataprovider.Provider[T], cacheService cache.CacheService, publisher events.Publisher, opts ...Option) *Repository[T] {
	if provider == nil {
		panic("repository: nil provider")
	}

	s := settings{
		logger:        zap.NewNop(),
		idColumn:      DefaultIDColumn,
		deletedColumn: DefaultDeletedColumn,
	}
	for _, opt := range opts {
		opt(&s)
	}

	var zero T
	if s.entityName == "" {
		s.entityName = events.NameOf(zero)
	}
	if cacheService == nil {
		cacheService = cache.NewNopService()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	_, softDelete := any(zero).(SoftDeletable)

	return &Repository[T]{
		provider:      provider,
		cache:         cacheService,
		publisher:     publisher,
		keys:          cache.NewKeys(s.namespace, s.entityName, s.serializer),
		logger:        s.logger.With(zap.String("entity", s.entityName)),
		idColumn:      s.idColumn,
		deletedColumn: s.deletedColumn,
		softDelete:    softDelete,
	}
}

// EntityName returns the entity segment of this repository's cache keys.
func (r *Repository[T]) EntityName() string {
	return r.keys.Entity()
}

// CachePrefix returns the prefix shared by every key this repository caches under.
func (r *Repository[T]) CachePrefix() string {
	return r.keys.Prefix()
}

// Keys returns the key builder handed to KeyFuncs.
func (r *Repository[T]) Keys() *cache.Keys {
	return r.keys
}

// SoftDelete reports whether T carries a deleted flag.
func (r *Repository[T]) SoftDelete() bool {
	return r.softDelete
}

// GetByID returns the entity with id, or the zero T when id is zero or no row matches.
func (r *Repository[T]) GetByID(ctx context.Context, id int64, opts ...ReadOption) (T, error) {
	var zero T
	if id == 0 {
		return zero, nil
	}

	cfg := newReadConfig(opts)
	defaultKey := func() cache.Key { return r.keys.For(OpByID, id, cfg.includeDeleted) }

	return readThrough(ctx, r.cache, r.keys, cfg.keyFn, defaultKey, func(ctx context.Context) (T, error) {
		q := r.provider.Table().Where("?TableAlias.? = ?", bun.Ident(r.idColumn), id)
		items, err := r.provider.Select(ctx, r.applyRead(q, cfg).Limit(1))
		if err != nil || len(items) == 0 {
			return zero, err
		}
		return items[0], nil
	})
}

// GetByIDs returns the entities matching ids in input order. Unknown ids are
// skipped and a repeated id appears once, at its first position.
func (r *Repository[T]) GetByIDs(ctx context.Context, ids []int64, opts ...ReadOption) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}

	cfg := newReadConfig(opts)
	defaultKey := func() cache.Key { return r.keys.For(OpByIDs, ids, cfg.includeDeleted) }

	return readThrough(ctx, r.cache, r.keys, cfg.keyFn, defaultKey, func(ctx context.Context) ([]T, error) {
		distinct := uniqueIDs(ids)

		q := r.provider.Table().Where("?TableAlias.? IN (?)", bun.Ident(r.idColumn), bun.In(distinct))
		items, err := r.provider.Select(ctx, r.applyRead(q, cfg))
		if err != nil {
			return nil, err
		}

		byID := make(map[int64]T, len(items))
		for _, item := range items {
			byID[item.GetID()] = item
		}

		out := make([]T, 0, len(items))
		for _, id := range distinct {
			if item, ok := byID[id]; ok {
				out = append(out, item)
			}
		}
		return out, nil
	})
}

// GetAll returns every entity the read options select.
func (r *Repository[T]) GetAll(ctx context.Context, opts ...ReadOption) ([]T, error) {
	cfg := newReadConfig(opts)
	defaultKey := func() cache.Key { return r.keys.For(OpAll, cfg.includeDeleted) }

	return readThrough(ctx, r.cache, r.keys, cfg.keyFn, defaultKey, func(ctx context.Context) ([]T, error) {
		return r.provider.Select(ctx, r.applyRead(r.provider.Table(), cfg))
	})
}

// GetAllPaged returns one page of entities ordered by the caller's criteria,
// then by id. It never reads from or writes to the cache.
func (r *Repository[T]) GetAllPaged(ctx context.Context, req PageRequest, opts ...ReadOption) (*Page[T], error) {
	if req.PageIndex < 0 {
		return nil, invalidArgument(TextCodeInvalidPage, "get all paged: page index must not be negative")
	}

	cfg := newReadConfig(opts)

	total, err := r.provider.Count(ctx, r.applyRead(r.provider.Table(), cfg))
	if err != nil {
		return nil, err
	}

	if req.CountOnly || total == 0 || pastLastPage(req, total) {
		return newPage[T](nil, req, total), nil
	}

	q := r.applyRead(r.provider.Table(), cfg).
		OrderExpr("?TableAlias.? ASC", bun.Ident(r.idColumn))
	if req.PageSize > 0 {
		q = q.Limit(req.PageSize).Offset(req.PageIndex * req.PageSize)
	}

	items, err := r.provider.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	return newPage(items, req, total), nil
}

// LoadOriginalCopy re-reads the stored row behind entity, skipping the cache
// and the soft-delete filter. It returns the zero T for unsaved or vanished rows.
func (r *Repository[T]) LoadOriginalCopy(ctx context.Context, entity T) (T, error) {
	var zero T
	if isNil(entity) {
		return zero, errNilEntity("load original copy")
	}
	id := entity.GetID()
	if id == 0 {
		return zero, nil
	}

	q := r.provider.Table().Where("?TableAlias.? = ?", bun.Ident(r.idColumn), id).Limit(1)
	items, err := r.provider.Select(ctx, q)
	if err != nil || len(items) == 0 {
		return zero, err
	}
	return items[0], nil
}

func (r *Repository[T]) applyRead(q *bun.SelectQuery, cfg readConfig) *bun.SelectQuery {
	q = r.filterDeleted(q, cfg.includeDeleted)
	for _, criteria := range cfg.criteria {
		if criteria != nil {
			q = criteria(q)
		}
	}
	return q
}

// Insert stores entity and notifies the publisher.
func (r *Repository[T]) Insert(ctx context.Context, entity T, opts ...WriteOption) error {
	if isNil(entity) {
		return errNilEntity("insert")
	}
	if err := r.provider.InsertEntity(ctx, entity); err != nil {
		return err
	}
	return r.notify(ctx, newWriteConfig(opts), events.KindInserted, []T{entity})
}

// InsertMany stores entities in one transaction, then notifies once per
// entity in input order.
func (r *Repository[T]) InsertMany(ctx context.Context, entities []T, opts ...WriteOption) error {
	if len(entities) == 0 {
		return nil
	}
	if err := checkBatch("insert many", entities); err != nil {
		return err
	}

	err := r.provider.InTx(ctx, func(ctx context.Context, tx dataprovider.Provider[T]) error {
		return tx.InsertEntities(ctx, entities)
	})
	if err != nil {
		return err
	}
	return r.notify(ctx, newWriteConfig(opts), events.KindInserted, entities)
}

// Update stores the current state of entity and notifies the publisher.
func (r *Repository[T]) Update(ctx context.Context, entity T, opts ...WriteOption) error {
	if isNil(entity) {
		return errNilEntity("update")
	}
	if err := r.provider.UpdateEntity(ctx, entity); err != nil {
		return err
	}
	return r.notify(ctx, newWriteConfig(opts), events.KindUpdated, []T{entity})
}

// UpdateMany stores entities in one transaction, then notifies once per
// entity in input order.
func (r *Repository[T]) UpdateMany(ctx context.Context, entities []T, opts ...WriteOption) error {
	if len(entities) == 0 {
		return nil
	}
	if err := checkBatch("update many", entities); err != nil {
		return err
	}

	err := r.provider.InTx(ctx, func(ctx context.Context, tx dataprovider.Provider[T]) error {
		return tx.UpdateEntities(ctx, entities)
	})
	if err != nil {
		return err
	}
	return r.notify(ctx, newWriteConfig(opts), events.KindUpdated, entities)
}

// Delete flags a soft-deletable entity as deleted and updates it; any other
// entity is removed from the store.
func (r *Repository[T]) Delete(ctx context.Context, entity T, opts ...WriteOption) error {
	if isNil(entity) {
		return errNilEntity("delete")
	}

	if r.softDelete {
		restore := markDeleted([]T{entity})
		if err := r.provider.UpdateEntity(ctx, entity); err != nil {
			restore()
			return err
		}
	} else if err := r.provider.DeleteEntity(ctx, entity); err != nil {
		return err
	}

	return r.notify(ctx, newWriteConfig(opts), events.KindDeleted, []T{entity})
}

// DeleteMany deletes entities in one transaction, as a bulk update of the
// deleted flag or a bulk physical delete, then notifies in input order.
func (r *Repository[T]) DeleteMany(ctx context.Context, entities []T, opts ...WriteOption) error {
	if len(entities) == 0 {
		return nil
	}
	if err := checkBatch("delete many", entities); err != nil {
		return err
	}

	var restore func()
	if r.softDelete {
		restore = markDeleted(entities)
	}

	err := r.provider.InTx(ctx, func(ctx context.Context, tx dataprovider.Provider[T]) error {
		if r.softDelete {
			return tx.UpdateEntities(ctx, entities)
		}
		return tx.BulkDeleteEntities(ctx, entities)
	})
	if err != nil {
		if restore != nil {
			restore()
		}
		return err
	}
	return r.notify(ctx, newWriteConfig(opts), events.KindDeleted, entities)
}

// DeleteWhere physically removes the rows criteria matches, in one
// transaction, and returns how many were removed. Nothing is notified.
func (r *Repository[T]) DeleteWhere(ctx context.Context, criteria bunrepo.DeleteCriteria) (int64, error) {
	if criteria == nil {
		return 0, invalidArgument(TextCodeNilCriteria, "delete where: criteria must not be nil")
	}

	var affected int64
	err := r.provider.InTx(ctx, func(ctx context.Context, tx dataprovider.Provider[T]) error {
		n, err := tx.BulkDeleteWhere(ctx, criteria)
		affected = n
		return err
	})
	if err != nil {
		return 0, err
	}

	r.logger.Debug("REPO/DELETE WHERE", zap.Int64("affected", affected))
	return affected, nil
}

// Truncate removes every row regardless of the deleted flag. Nothing is notified.
func (r *Repository[T]) Truncate(ctx context.Context, resetIdentity bool) error {
	if err := r.provider.Truncate(ctx, resetIdentity); err != nil {
		return err
	}
	r.logger.Info("REPO/TRUNCATE", zap.Bool("reset_identity", resetIdentity))
	return nil
}

// notify publishes one event per entity in order and stops at the first failure.
func (r *Repository[T]) notify(ctx context.Context, cfg writeConfig, kind events.Kind, entities []T) error {
	if !cfg.publish {
		return nil
	}

	for i, entity := range entities {
		var err error
		switch kind {
		case events.KindInserted:
			err = r.publisher.EntityInserted(ctx, entity)
		case events.KindUpdated:
			err = r.publisher.EntityUpdated(ctx, entity)
		case events.KindDeleted:
			err = r.publisher.EntityDeleted(ctx, entity)
		}
		if err != nil {
			r.logger.Error("REPO/NOTIFY FAILED",
				zap.String("kind", string(kind)),
				zap.Int("index", i),
				zap.Int("pending", len(entities)-i),
				zap.Error(err),
			)
			return &PublishError{Kind: kind, Index: i, Entity: entity, Err: err}
		}
	}
	return nil
}

// readThrough runs fetch directly when keyFn is nil and through the cache otherwise.
func readThrough[R any](ctx context.Context, svc cache.CacheService, keys *cache.Keys, keyFn KeyFunc, defaultKey func() cache.Key, fetch cache.FetchFn[R]) (R, error) {
	if keyFn == nil {
		return fetch(ctx)
	}

	key := keyFn(keys)
	if key.IsZero() {
		key = defaultKey()
	}
	return cache.GetOrFetch(ctx, svc, key.Value, fetch)
}

func checkBatch[T Entity](op string, entities []T) error {
	for i, entity := range entities {
		if isNil(entity) {
			return errNilInBatch(op, i)
		}
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

package dataprovider

import (
	"context"
	"fmt"
	"reflect"

	bunrepo "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// BunProvider implements Provider on top of a bun.IDB.
type BunProvider[T any] struct {
	db   bun.IDB
	tx   *bun.Tx
	zero T
}

// NewBunProvider returns a provider for T, which must be a pointer to a
// struct registered as a bun model.
func NewBunProvider[T any](db bun.IDB) *BunProvider[T] {
	var zero T
	if t := reflect.TypeOf(zero); t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("dataprovider: %T is not a pointer to a model struct", zero))
	}
	return &BunProvider[T]{db: db}
}

// DB returns the handle queries run against: the transaction when bound to one.
func (p *BunProvider[T]) DB() bun.IDB {
	if p.tx != nil {
		return p.tx
	}
	return p.db
}

// TableName returns the unquoted table name of T.
func (p *BunProvider[T]) TableName() string {
	return p.DB().Dialect().Tables().Get(reflect.TypeOf(p.zero)).Name
}

func (p *BunProvider[T]) Table() *bun.SelectQuery {
	return p.DB().NewSelect().Model(p.zero)
}

func (p *BunProvider[T]) Select(ctx context.Context, q *bun.SelectQuery) ([]T, error) {
	items := make([]T, 0)
	if err := q.Scan(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *BunProvider[T]) Count(ctx context.Context, q *bun.SelectQuery) (int, error) {
	return q.Count(ctx)
}

func (p *BunProvider[T]) InsertEntity(ctx context.Context, entity T) error {
	_, err := p.DB().NewInsert().Model(entity).Exec(ctx)
	return err
}

func (p *BunProvider[T]) InsertEntities(ctx context.Context, entities []T) error {
	if len(entities) == 0 {
		return nil
	}
	_, err := p.DB().NewInsert().Model(&entities).Exec(ctx)
	return err
}

func (p *BunProvider[T]) UpdateEntity(ctx context.Context, entity T) error {
	_, err := p.DB().NewUpdate().Model(entity).WherePK().Exec(ctx)
	return err
}

// UpdateEntities issues a single bulk UPDATE on PostgreSQL. Other dialects
// lack the VALUES join bun relies on, so rows are updated one by one in the
// same transaction.
func (p *BunProvider[T]) UpdateEntities(ctx context.Context, entities []T) error {
	if len(entities) == 0 {
		return nil
	}

	if p.DB().Dialect().Name() == dialect.PG {
		_, err := p.DB().NewUpdate().Model(&entities).Bulk().Exec(ctx)
		return err
	}

	return p.InTx(ctx, func(ctx context.Context, tx Provider[T]) error {
		for _, entity := range entities {
			if err := tx.UpdateEntity(ctx, entity); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *BunProvider[T]) DeleteEntity(ctx context.Context, entity T) error {
	_, err := p.DB().NewDelete().Model(entity).WherePK().Exec(ctx)
	return err
}

func (p *BunProvider[T]) BulkDeleteEntities(ctx context.Context, entities []T) error {
	if len(entities) == 0 {
		return nil
	}
	_, err := p.DB().NewDelete().Model(&entities).WherePK().Exec(ctx)
	return err
}

func (p *BunProvider[T]) BulkDeleteWhere(ctx context.Context, criteria bunrepo.DeleteCriteria) (int64, error) {
	q := criteria(p.DB().NewDelete().Model(p.zero))

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (p *BunProvider[T]) Truncate(ctx context.Context, resetIdentity bool) error {
	db := p.DB()

	q := db.NewTruncateTable().Model(p.zero)
	if !resetIdentity {
		q = q.ContinueIdentity()
	}
	if _, err := q.Exec(ctx); err != nil {
		return err
	}

	if resetIdentity && db.Dialect().Name() == dialect.SQLite {
		return p.resetSQLiteSequence(ctx, db)
	}
	return nil
}

// resetSQLiteSequence clears the AUTOINCREMENT counter. sqlite_sequence only
// exists once some table declared AUTOINCREMENT.
func (p *BunProvider[T]) resetSQLiteSequence(ctx context.Context, db bun.IDB) error {
	exists, err := db.NewSelect().
		TableExpr("sqlite_master").
		Where("type = 'table'").
		Where("name = 'sqlite_sequence'").
		Exists(ctx)
	if err != nil || !exists {
		return err
	}

	_, err = db.NewDelete().
		TableExpr("sqlite_sequence").
		Where("name = ?", p.TableName()).
		Exec(ctx)
	return err
}

func (p *BunProvider[T]) InTx(ctx context.Context, fn func(ctx context.Context, tx Provider[T]) error) error {
	if p.tx != nil {
		return fn(ctx, p)
	}

	// RunInTx rolls back from a deferred call, so panics in fn release the tx too.
	return p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &BunProvider[T]{db: p.db, tx: &tx})
	})
}

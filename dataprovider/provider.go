// Package dataprovider executes entity queries and mutations against a
// relational store through bun.
//
// A Provider never filters, caches or publishes anything; it is the raw CRUD
// and transaction layer the repository package composes.
package dataprovider

import (
	"context"

	bunrepo "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Provider is the store contract for entities of type T, where T is a
// pointer to a bun model.
type Provider[T any] interface {
	// Table starts a select over T's table. Nothing runs until Select or Count.
	Table() *bun.SelectQuery
	// Select materialises the rows q matches.
	Select(ctx context.Context, q *bun.SelectQuery) ([]T, error)
	// Count runs a COUNT over q without loading rows.
	Count(ctx context.Context, q *bun.SelectQuery) (int, error)

	InsertEntity(ctx context.Context, entity T) error
	InsertEntities(ctx context.Context, entities []T) error
	UpdateEntity(ctx context.Context, entity T) error
	UpdateEntities(ctx context.Context, entities []T) error
	DeleteEntity(ctx context.Context, entity T) error
	BulkDeleteEntities(ctx context.Context, entities []T) error
	// BulkDeleteWhere deletes the rows matched by criteria and reports how many were removed.
	BulkDeleteWhere(ctx context.Context, criteria bunrepo.DeleteCriteria) (int64, error)
	// Truncate removes every row. resetIdentity restarts the id sequence where the dialect allows it.
	Truncate(ctx context.Context, resetIdentity bool) error

	// InTx runs fn with a provider bound to one transaction. The transaction
	// commits when fn returns nil and rolls back otherwise, including on panic.
	// Calling InTx on a provider already bound to a transaction reuses it.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Provider[T]) error) error
}

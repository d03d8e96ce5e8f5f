package repository

import (
	"context"
	"reflect"

	bunrepo "github.com/goliatone/go-repository-bun"

	"github.com/goliatone/go-entity-repository/cache"
)

// Entity is a persisted record with a numeric identifier. Zero means the
// entity has not been stored yet.
type Entity interface {
	GetID() int64
}

// SoftDeletable entities are flagged as deleted instead of being removed.
type SoftDeletable interface {
	Entity
	IsDeleted() bool
	SetDeleted(deleted bool)
}

// KeyFunc selects the cache key for a read. A nil KeyFunc disables caching,
// a KeyFunc returning the zero Key caches under the operation's default key.
type KeyFunc func(keys *cache.Keys) cache.Key

// PageRequest selects one page of GetAllPaged results.
type PageRequest struct {
	PageIndex int
	// PageSize <= 0 returns every row on a single page.
	PageSize  int
	CountOnly bool
}

// Page is one page of results plus the totals needed to navigate.
type Page[T any] struct {
	Items      []T
	PageIndex  int
	PageSize   int
	TotalCount int
	TotalPages int
}

// HasPrevious reports whether a page exists before this one.
func (p *Page[T]) HasPrevious() bool {
	return p.PageIndex > 0
}

// HasNext reports whether a page exists after this one.
func (p *Page[T]) HasNext() bool {
	return p.PageIndex+1 < p.TotalPages
}

func newPage[T any](items []T, req PageRequest, total int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	page := &Page[T]{
		Items:      items,
		PageIndex:  req.PageIndex,
		PageSize:   req.PageSize,
		TotalCount: total,
	}
	switch {
	case total > 0 && req.PageSize > 0:
		page.TotalPages = (total-1)/req.PageSize + 1
	case total > 0:
		page.TotalPages = 1
	}
	return page
}

// pastLastPage reports whether req starts after the last of total rows.
// An unbounded request only has index 0. Division keeps huge indexes from
// overflowing the offset.
func pastLastPage(req PageRequest, total int) bool {
	if req.PageIndex == 0 {
		return false
	}
	if req.PageSize <= 0 || total <= 0 {
		return true
	}
	return req.PageIndex > (total-1)/req.PageSize
}

// Reader is the read side of a Repository.
type Reader[T Entity] interface {
	GetByID(ctx context.Context, id int64, opts ...ReadOption) (T, error)
	GetByIDs(ctx context.Context, ids []int64, opts ...ReadOption) ([]T, error)
	GetAll(ctx context.Context, opts ...ReadOption) ([]T, error)
	GetAllPaged(ctx context.Context, req PageRequest, opts ...ReadOption) (*Page[T], error)
	LoadOriginalCopy(ctx context.Context, entity T) (T, error)
}

// Writer is the write side of a Repository.
type Writer[T Entity] interface {
	Insert(ctx context.Context, entity T, opts ...WriteOption) error
	InsertMany(ctx context.Context, entities []T, opts ...WriteOption) error
	Update(ctx context.Context, entity T, opts ...WriteOption) error
	UpdateMany(ctx context.Context, entities []T, opts ...WriteOption) error
	Delete(ctx context.Context, entity T, opts ...WriteOption) error
	DeleteMany(ctx context.Context, entities []T, opts ...WriteOption) error
	DeleteWhere(ctx context.Context, criteria bunrepo.DeleteCriteria) (int64, error)
	Truncate(ctx context.Context, resetIdentity bool) error
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

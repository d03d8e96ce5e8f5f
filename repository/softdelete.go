package repository

import "github.com/uptrace/bun"

// filterDeleted hides soft-deleted rows unless the caller asked for them or
// T has no deleted flag.
func (r *Repository[T]) filterDeleted(q *bun.SelectQuery, includeDeleted bool) *bun.SelectQuery {
	if !r.softDelete || includeDeleted {
		return q
	}
	return q.Where("?TableAlias.? = ?", bun.Ident(r.deletedColumn), false)
}

// markDeleted flags every entity as deleted and returns a function restoring
// the previous flags.
func markDeleted[T Entity](entities []T) (restore func()) {
	previous := make([]bool, len(entities))
	for i, entity := range entities {
		sd := any(entity).(SoftDeletable)
		previous[i] = sd.IsDeleted()
		sd.SetDeleted(true)
	}
	return func() {
		for i, entity := range entities {
			any(entity).(SoftDeletable).SetDeleted(previous[i])
		}
	}
}

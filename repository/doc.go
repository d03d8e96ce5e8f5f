/*
Package repository provides a generic entity repository over a
dataprovider.Provider.

A Repository[T] adds four things to raw store access:

  - Read-through caching. A read is cached only when the caller passes
    WithCache or WithDefaultCache. The KeyFunc receives the repository's
    cache.Keys builder; returning the zero Key selects the operation's default
    key, for example "app::topic::by_id::42::true". Mutations never write to
    the cache. Stale entries are dropped by whoever owns invalidation, usually
    an events.CacheInvalidator subscribed to the same publisher.

  - Soft deletion. When T implements SoftDeletable, Delete sets the flag and
    updates the row instead of removing it, and reads given ExcludeDeleted
    filter flagged rows out. Reads include deleted rows unless told otherwise.

  - Transactional batches. InsertMany, UpdateMany, DeleteMany and DeleteWhere
    run inside one provider transaction. Empty batches return immediately.

  - Mutation events. After a mutation commits, the publisher is told about
    every entity in input order. A failing notification stops the loop and
    comes back as a *PublishError; the stored data is not rolled back.

Basic usage:

	provider := dataprovider.NewBunProvider[*Topic](db)
	repo := repository.New[*Topic](provider, cacheService, dispatcher,
		repository.WithNamespace("app"),
	)

	topic, err := repo.GetByID(ctx, 42, repository.WithDefaultCache(), repository.ExcludeDeleted())
	page, err := repo.GetAllPaged(ctx, repository.PageRequest{PageIndex: 0, PageSize: 20})
*/
package repository

// Package cache is the cache facade used by entity repositories.
//
// # Overview
//
// The package exports:
//
//   - CacheService: read-through GetOrFetch plus the invalidation primitives
//     (Delete, DeleteByPrefix, InvalidateKeys)
//   - KeySerializer: renders an operation name and its arguments into a key
//   - Keys: prepares keys for one namespace and entity
//   - Instrumented: a CacheService decorator counting hits and misses
//
// Three backends are available: NewCacheService (in-process, sturdyc),
// NewRedisCacheService (shared, msgpack values in Redis) and NewNopService
// (never caches).
//
// # Keys
//
// Keys have the shape namespace::entity::operation::arg::arg. Every key of
// one entity shares the namespace::entity:: prefix, so dropping everything a
// repository cached is a single DeleteByPrefix call:
//
//	keys := cache.NewKeys("app", cache.EntityName(&Topic{}), nil)
//	key := keys.For("by_id", int64(7), false) // app::topic::by_id::7::false
//	_ = svc.DeleteByPrefix(ctx, keys.Prefix())
//
// Arguments whose rendering exceeds DefaultMaxArgLength (large id lists,
// wide structs) are replaced by an xxhash digest of the rendering.
//
// # Function arguments
//
// Functions and channels render as their code pointer, which is stable only
// within one process and identical for every closure created from the same
// literal. Do not pass query criteria closures as key arguments; name the
// query in the operation segment instead.
//
// # Population
//
// A key is populated once by its fetch function and otherwise left alone
// until it is invalidated. Mutations never write to the cache.
//
//	topics, err := cache.GetOrFetch(ctx, svc, key.Value, func(ctx context.Context) ([]*Topic, error) {
//		return loadTopics(ctx)
//	})
package cache

// Package cachestore provides the storage backends for cached query results.
//
// The package defines a Store interface over get/put/clear operations keyed
// by a cache identifier, together with the built-in providers: a table-backed
// store that persists entries in the database being queried, a Redis-backed
// store for shared low-latency caching, and an in-memory store used by tests
// and single-process deployments.
//
// Usage:
//
//	store := cachestore.NewMemoryStore()
//	if err := store.Connect(ctx); err != nil {
//	    // handle
//	}
//	defer store.Disconnect(ctx)
//	err := store.Put(ctx, &cachestore.Entry{Identifier: "users:active", ...})
package cachestore

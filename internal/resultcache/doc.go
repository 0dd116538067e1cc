// Package resultcache caches materialized query results for a configurable
// time window, serving repeat reads from a storage provider instead of
// re-executing them against the database.
//
// The controller is the single entry point: given a query, a per-call cache
// directive, and an executor closure that runs the real query, GetOrExecute
// answers from the cache when a fresh-enough entry exists and otherwise runs
// the executor and stores its result. Identity is either a caller-supplied
// identifier or a fingerprint of the normalized query text and its bound
// parameters. Expiry is purely time-based; nothing invalidates entries on
// writes.
//
// Usage:
//
//	ctrl, err := resultcache.New(resultcache.Options{
//	    Store:      cachestore.NewMemoryStore(),
//	    DefaultTTL: time.Second,
//	})
//	...
//	res, err := ctrl.GetOrExecute(ctx,
//	    resultcache.Query{Text: sqlText, Params: args},
//	    resultcache.Directive{Enabled: true},
//	    func(ctx context.Context) (any, error) { return runQuery(ctx) },
//	)
package resultcache

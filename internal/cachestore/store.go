package cachestore

import (
	"context"
	"errors"
	"time"
)

// ErrStoreClosed is returned by store operations issued after Disconnect
// (or before Connect, for providers that require a connection).
var ErrStoreClosed = errors.New("cachestore: store is closed")

// Entry is the persisted unit of the result cache: one materialized query
// result (or count) under a unique identifier.
type Entry struct {
	// Identifier is either caller-supplied or a derived query fingerprint.
	// Unique within a store; writes to an existing identifier replace the
	// prior entry.
	Identifier string
	// Query is the normalized query text. Informational only; it is not
	// part of the entry's identity.
	Query string
	// Payload is the serialized result.
	Payload []byte
	// Time is the entry creation time in milliseconds since the epoch.
	Time int64
	// Duration is the entry TTL in milliseconds.
	Duration int64
}

// ExpiresAt returns the instant at which the entry expires.
func (e *Entry) ExpiresAt() time.Time {
	return time.UnixMilli(e.Time + e.Duration)
}

// ExpiredAt reports whether the entry is logically absent at the given
// instant. Expired entries must be treated as misses even while physically
// present in storage.
func (e *Entry) ExpiredAt(now time.Time) bool {
	return e.Time+e.Duration <= now.UnixMilli()
}

// Store is the provider contract for cached query results. Implementations
// must be safe for concurrent use by multiple callers.
//
// Get reports a plain miss as (nil, nil); only infrastructure failures are
// errors. Put has upsert semantics keyed by Entry.Identifier.
type Store interface {
	// Connect prepares the store for use. It is bound to the owning
	// database connection's lifecycle and must be called before the first
	// Get or Put.
	Connect(ctx context.Context) error
	// Disconnect releases the store's resources. Operations issued after
	// Disconnect fail with ErrStoreClosed.
	Disconnect(ctx context.Context) error
	// Get returns the entry for the identifier, or (nil, nil) on a miss.
	Get(ctx context.Context, identifier string) (*Entry, error)
	// Put inserts or replaces the entry under Entry.Identifier.
	Put(ctx context.Context, entry *Entry) error
	// Clear removes the entry for the identifier, if present.
	Clear(ctx context.Context, identifier string) error
	// ClearAll removes every entry in the store.
	ClearAll(ctx context.Context) error
}

func cloneEntry(e *Entry) *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Payload = append([]byte(nil), e.Payload...)
	return &clone
}

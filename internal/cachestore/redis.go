package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions tunes a RedisStore.
type RedisOptions struct {
	// Client is an existing redis client to reuse. When nil, a universal
	// client is built from Addrs and DB and owned by the store.
	Client redis.UniversalClient
	// Addrs lists the redis endpoints; ignored when Client is set.
	Addrs []string
	// DB selects the redis logical database; ignored when Client is set.
	DB int
	// Prefix namespaces every key written by the store.
	Prefix string
}

// RedisStore implements Store over redis. Entries are stored JSON-encoded
// under their identifier, with the redis key TTL mirroring the entry TTL so
// redis reclaims expired entries on its own.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	ownsClient bool

	mu     sync.RWMutex
	closed bool
}

// redisEntry is the on-wire format for redis values.
type redisEntry struct {
	Query    string `json:"query"`
	Payload  []byte `json:"result"`
	Time     int64  `json:"time"`
	Duration int64  `json:"duration"`
}

// NewRedisStore creates a redis-backed store.
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := opts.Client
	owns := false
	if client == nil {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: opts.Addrs,
			DB:    opts.DB,
		})
		owns = true
	}
	return &RedisStore{client: client, prefix: opts.Prefix, ownsClient: owns}
}

// Connect verifies the redis endpoint is reachable.
func (r *RedisStore) Connect(ctx context.Context) error {
	if err := r.usable(); err != nil {
		return err
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cachestore: redis ping: %w", err)
	}
	return nil
}

// Disconnect rejects further operations and closes the client when the store
// owns it.
func (r *RedisStore) Disconnect(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.ownsClient {
		return r.client.Close()
	}
	return nil
}

func (r *RedisStore) usable() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrStoreClosed
	}
	return nil
}

func (r *RedisStore) key(identifier string) string {
	if r.prefix == "" {
		return identifier
	}
	return r.prefix + ":" + identifier
}

// Get returns the entry for the identifier, or (nil, nil) when absent.
// A value that no longer decodes is deleted and reported as a miss.
func (r *RedisStore) Get(ctx context.Context, identifier string) (*Entry, error) {
	if err := r.usable(); err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, r.key(identifier)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cachestore: redis get %q: %w", identifier, err)
	}

	var raw redisEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		_ = r.client.Del(ctx, r.key(identifier)).Err()
		return nil, nil
	}
	return &Entry{
		Identifier: identifier,
		Query:      raw.Query,
		Payload:    raw.Payload,
		Time:       raw.Time,
		Duration:   raw.Duration,
	}, nil
}

// Put upserts the entry. The redis TTL is set to the remaining entry
// lifetime so redis expires the key without a sweeper.
func (r *RedisStore) Put(ctx context.Context, entry *Entry) error {
	if err := r.usable(); err != nil {
		return err
	}

	data, err := json.Marshal(redisEntry{
		Query:    entry.Query,
		Payload:  entry.Payload,
		Time:     entry.Time,
		Duration: entry.Duration,
	})
	if err != nil {
		return fmt.Errorf("cachestore: encode %q: %w", entry.Identifier, err)
	}

	ttl := time.Until(entry.ExpiresAt())
	if ttl <= 0 {
		ttl = time.Duration(entry.Duration) * time.Millisecond
	}
	if err := r.client.Set(ctx, r.key(entry.Identifier), data, ttl).Err(); err != nil {
		return fmt.Errorf("cachestore: redis set %q: %w", entry.Identifier, err)
	}
	return nil
}

// Clear removes the entry for the identifier, if present.
func (r *RedisStore) Clear(ctx context.Context, identifier string) error {
	if err := r.usable(); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.key(identifier)).Err(); err != nil {
		return fmt.Errorf("cachestore: redis del %q: %w", identifier, err)
	}
	return nil
}

// ClearAll removes every entry under the store's prefix. With no prefix the
// whole selected database is flushed.
func (r *RedisStore) ClearAll(ctx context.Context) error {
	if err := r.usable(); err != nil {
		return err
	}

	if r.prefix == "" {
		if err := r.client.FlushDB(ctx).Err(); err != nil {
			return fmt.Errorf("cachestore: redis flush: %w", err)
		}
		return nil
	}

	iter := r.client.Scan(ctx, 0, r.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("cachestore: redis del %q: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cachestore: redis scan: %w", err)
	}
	return nil
}

// Ensure RedisStore implements Store interface
var _ Store = (*RedisStore)(nil)

package resultcache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AmirulAndalib/typeorm/internal/cachestore"
	"github.com/AmirulAndalib/typeorm/internal/logging"
	"github.com/AmirulAndalib/typeorm/internal/sqlnorm"
)

// DefaultTTL is the system-wide entry lifetime used when neither the
// controller options nor the directive override it.
const DefaultTTL = time.Second

// Query carries what the persistence layer knows about the statement being
// executed: its text and the ordered bound parameter values. Both feed the
// implicit fingerprint; the normalized text is also persisted on the entry
// for debuggability.
type Query struct {
	Text   string
	Params []any
}

// Executor runs the underlying query on a cache miss and returns the
// materialized result (a row-set, a count; the controller does not care).
type Executor func(ctx context.Context) (any, error)

// Options configures a Controller.
type Options struct {
	// Store is the storage provider. Required.
	Store cachestore.Store
	// Codec serializes results; defaults to JSONCodec.
	Codec Codec
	// DefaultTTL is the entry lifetime when the directive carries none.
	// Zero means DefaultTTL; negative is a ConfigurationError.
	DefaultTTL time.Duration
	// Now supplies the controller's clock; defaults to time.Now. Injected
	// so TTL boundaries are testable.
	Now func() time.Time
	// Logger receives hit/miss debug output and degraded-mode warnings;
	// defaults to a nop logger.
	Logger logging.Logger
	// IgnoreStoreErrors degrades store failures to forced misses (reads)
	// and skipped writes instead of failing the call. Intended for
	// external providers whose unavailability should not fail queries.
	IgnoreStoreErrors bool
	// Coalesce collapses concurrent GetOrExecute calls for the same
	// identifier into a single store lookup and executor run.
	Coalesce bool
}

// Controller orchestrates the result cache: it resolves identifiers, decides
// hit or miss, enforces TTL, and moves payloads through the Codec. All
// methods are safe for concurrent use.
type Controller struct {
	store             cachestore.Store
	codec             Codec
	defaultTTL        time.Duration
	now               func() time.Time
	logger            logging.Logger
	ignoreStoreErrors bool
	group             *singleflight.Group
}

// New validates the options and builds a Controller.
func New(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, &ConfigurationError{Field: "store", Reason: "required"}
	}
	if opts.DefaultTTL < 0 {
		return nil, &ConfigurationError{Field: "default ttl", Reason: "must be a positive duration"}
	}

	c := &Controller{
		store:             opts.Store,
		codec:             opts.Codec,
		defaultTTL:        opts.DefaultTTL,
		now:               opts.Now,
		logger:            opts.Logger,
		ignoreStoreErrors: opts.IgnoreStoreErrors,
	}
	if c.codec == nil {
		c.codec = JSONCodec{}
	}
	if c.defaultTTL == 0 {
		c.defaultTTL = DefaultTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if opts.Coalesce {
		c.group = &singleflight.Group{}
	}
	return c, nil
}

// Connect readies the underlying store. It must be called before the first
// GetOrExecute, alongside the owning database connection's establishment.
func (c *Controller) Connect(ctx context.Context) error {
	return c.store.Connect(ctx)
}

// Disconnect tears the store down. Calls after Disconnect fail.
func (c *Controller) Disconnect(ctx context.Context) error {
	return c.store.Disconnect(ctx)
}

// Clear evicts one entry by identifier.
func (c *Controller) Clear(ctx context.Context, identifier string) error {
	return c.store.Clear(ctx, identifier)
}

// ClearAll evicts every entry.
func (c *Controller) ClearAll(ctx context.Context) error {
	return c.store.ClearAll(ctx)
}

// GetOrExecute is the sole query entry point.
//
// With a disabled directive the executor runs directly and the store is
// never touched. Otherwise the identifier is the directive's, or a
// fingerprint of the query; a stored entry that has not expired is decoded
// and returned without running the executor, and anything else runs the
// executor and, on success, upserts a fresh entry. Executor errors propagate
// unchanged and never write an entry.
//
// Two failure modes return the fresh result together with a non-nil error:
// a payload that cannot be encoded (SerializationError) and a failed cache
// write when IgnoreStoreErrors is off (StoreError). In both the result is
// valid; only the caching side effect was lost.
func (c *Controller) GetOrExecute(ctx context.Context, query Query, directive Directive, exec Executor) (any, error) {
	if !directive.Enabled {
		return exec(ctx)
	}
	if err := directive.validate(); err != nil {
		return nil, err
	}

	ttl := directive.resolveTTL(c.defaultTTL)
	identifier := directive.Identifier
	text := query.Text
	if identifier == "" {
		text = sqlnorm.Normalize(query.Text)
		identifier = fingerprintNormalized(text, query.Params)
	}

	if c.group != nil {
		res, err, _ := c.group.Do(identifier, func() (any, error) {
			return c.lookupOrExecute(ctx, identifier, text, ttl, exec)
		})
		return res, err
	}
	return c.lookupOrExecute(ctx, identifier, text, ttl, exec)
}

func (c *Controller) lookupOrExecute(ctx context.Context, identifier, text string, ttl time.Duration, exec Executor) (any, error) {
	entry, err := c.store.Get(ctx, identifier)
	if err != nil {
		if !c.ignoreStoreErrors || errors.Is(err, cachestore.ErrStoreClosed) {
			return nil, &StoreError{Op: "get", Identifier: identifier, Err: err}
		}
		c.logger.Warn("cache read failed, treating as miss", "identifier", identifier, "error", err)
		entry = nil
	}

	if entry != nil && !entry.ExpiredAt(c.now()) {
		result, decodeErr := c.codec.Unmarshal(entry.Payload)
		if decodeErr == nil {
			c.logger.Debug("cache hit", "identifier", identifier)
			return result, nil
		}
		// Incompatible stored shape. Forced miss: fall through and
		// let the fresh write replace it.
		c.logger.Warn("cached payload failed to decode, re-executing", "identifier", identifier, "error", decodeErr)
	}

	result, err := exec(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := c.codec.Marshal(result)
	if err != nil {
		return result, &SerializationError{Identifier: identifier, Err: err}
	}

	now := c.now()
	fresh := &cachestore.Entry{
		Identifier: identifier,
		Query:      text,
		Payload:    payload,
		Time:       now.UnixMilli(),
		Duration:   ttl.Milliseconds(),
	}
	if err := c.store.Put(ctx, fresh); err != nil {
		if !c.ignoreStoreErrors || errors.Is(err, cachestore.ErrStoreClosed) {
			return result, &StoreError{Op: "put", Identifier: identifier, Err: err}
		}
		c.logger.Warn("cache write failed, returning uncached result", "identifier", identifier, "error", err)
	}
	return result, nil
}

package resultcache

import "time"

// Directive is the per-call cache configuration attached by the caller.
//
// The zero value disables caching. An enabled directive without an
// Identifier has one derived by fingerprinting; an explicit Identifier is
// used verbatim, deliberately allowing distinct queries to share one entry.
type Directive struct {
	// Enabled turns caching on for this call.
	Enabled bool
	// Identifier, when non-empty, is used as the cache key instead of a
	// derived fingerprint.
	Identifier string
	// TTL overrides the controller's default entry lifetime. Nil means
	// use the default; a value of zero or less is a ConfigurationError.
	TTL *time.Duration
}

// TTL is a convenience for building a Directive TTL override in place.
func TTL(d time.Duration) *time.Duration { return &d }

func (d Directive) validate() error {
	if d.TTL != nil && *d.TTL <= 0 {
		return &ConfigurationError{Field: "directive ttl", Reason: "must be a positive duration"}
	}
	return nil
}

func (d Directive) resolveTTL(fallback time.Duration) time.Duration {
	if d.TTL != nil {
		return *d.TTL
	}
	return fallback
}

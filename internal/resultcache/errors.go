package resultcache

import "fmt"

// ConfigurationError reports an invalid directive or controller option. It is
// surfaced before any store interaction and is never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("resultcache: invalid %s: %s", e.Field, e.Reason)
}

// StoreError reports a cache store failure during a controller operation.
// For a put failure the executor has already run; the fresh result is
// returned alongside the error.
type StoreError struct {
	Op         string
	Identifier string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("resultcache: store %s for %q: %v", e.Op, e.Identifier, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// SerializationError reports a payload that could not be serialized. Decode
// failures on read are handled internally as forced misses; this error is
// only returned for encode failures on write, and the fresh result is
// returned alongside it.
type SerializationError struct {
	Identifier string
	Err        error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("resultcache: serialize payload for %q: %v", e.Identifier, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

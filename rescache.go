// Package rescache provides an asynchronous single-value resource cache
// with request coalescing and priority propagation.
//
// The core lives in pkg/cache and is re-exported here: use
// rescache.New to build a cache, pkg/fetch for ready-made fetch hooks,
// pkg/instrument for Prometheus metrics and OpenTelemetry tracing, and
// pkg/cachehttp to expose a cache over HTTP.
//
// Example:
//
//	profile := rescache.New[string, []byte, Profile]().
//	    Fetcher(fetch.HTTP[string, Profile](nil, profileURL)).
//	    Transformer(decodeProfile)
//
//	profile.Request().Priority(5).Get(func(p *Profile) {
//	    // p is nil when the fetch produced nothing
//	})
package rescache

import (
	"github.com/vango-dev/rescache/pkg/cache"
)

// =============================================================================
// Core types
// =============================================================================

// Cache is the asynchronous resource cache. See pkg/cache.
type Cache[P, I, R any] = cache.Cache[P, I, R]

// State is the full lifecycle state of a cache at one instant.
type State[P, I, R any] = cache.State[P, I, R]

// Status is the snapshot reported by Cache.Check.
type Status[P, I, R any] = cache.Status[P, I, R]

// Request configures one registration or load before submitting it.
type Request[P, I, R any] = cache.Request[P, I, R]

// Handle identifies one observer registration.
type Handle = cache.Handle

// Priority is an urgency hint; higher is more urgent.
type Priority = cache.Priority

// Kind identifies the lifecycle phase of a cache.
type Kind = cache.Kind

// Lifecycle kinds. These are re-exports: use rescache.Empty,
// rescache.Fetching, etc.
const (
	Empty      Kind = cache.Empty      // No fetch yet, or the value was discarded
	Fetching   Kind = cache.Fetching   // Fetch in flight, producing an input
	Processing Kind = cache.Processing // Transforming the input into the resource
	Fetched    Kind = cache.Fetched    // Resource (possibly absent) cached and ready
	Invalid    Kind = cache.Invalid    // Terminal; the cache accepts no more work
)

// =============================================================================
// Hooks
// =============================================================================

// Fetcher produces the input for a cycle.
type Fetcher[P, I, R any] = cache.Fetcher[P, I, R]

// Transformer converts a cycle's input into the final resource.
type Transformer[P, I, R any] = cache.Transformer[P, I, R]

// CommitFunc intercepts every transition and may reshape or veto it.
type CommitFunc[P, I, R any] = cache.CommitFunc[P, I, R]

// InvalidateFunc produces the final value delivered on invalidation.
type InvalidateFunc[R any] = cache.InvalidateFunc[R]

// DeliverFunc receives a resolved resource; nil means absent.
type DeliverFunc[R any] = cache.DeliverFunc[R]

// TransitionFunc receives every state transition as an (old, new) pair.
type TransitionFunc[P, I, R any] = cache.TransitionFunc[P, I, R]

// =============================================================================
// Constructors
// =============================================================================

// New creates an empty cache. Configuration chains:
//
//	c := rescache.New[string, []byte, Report]().
//	    Fetcher(fetchReport).
//	    DefaultPriority(1)
func New[P, I, R any]() *Cache[P, I, R] {
	return cache.New[P, I, R]()
}

// NextHandle returns a fresh unique registration handle.
func NextHandle() Handle {
	return cache.NextHandle()
}

// Package cache provides an asynchronous single-value resource cache with
// request coalescing and priority propagation.
//
// A Cache[P, I, R] lazily resolves one logical resource of type R, in two
// asynchronous stages: a Fetcher turns the current parameter P into an
// intermediate input I, and a Transformer turns the input into the
// resource. Either stage defaults to a passthrough. The resolved value
// fans out to every registered callback, and concurrent demand while a
// cycle is in flight coalesces into that one cycle.
//
// # Lifecycle
//
// The cache moves through Empty → Fetching → Processing → Fetched, plus a
// terminal Invalid state. Each cycle carries a unique task id; when a
// cycle is superseded (Reload, Clear, a forced parameter change) the old
// cycle's completion no longer matches the live task id and is silently
// dropped. There is no cancellation of the underlying operation, only of
// its effect.
//
// # Registrations
//
// Three registries exist, each entry identified by a Handle:
//
//   - one-shot Get callbacks, fulfilled at most once per handle and then
//     retired to a history set
//   - persistent Observe callbacks, re-invoked on every delivery
//   - ObserveState callbacks, invoked with (old, new) on every transition
//
// Every entry carries a priority; the cache's effective priority is the
// maximum across all live entries and is re-broadcast into an in-flight
// cycle whenever it changes, so a Fetcher scheduling work externally can
// see urgency rise and fall while it runs.
//
// # Absence, not errors
//
// There is no error type: a fetch that fails and a fetch that legitimately
// finds nothing both deliver a nil resource. Retry is the caller's choice,
// via Reload.
package cache

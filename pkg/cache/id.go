package cache

import "sync/atomic"

// Handle identifies one observer registration. Handles minted by NextHandle
// are unique for the lifetime of the process; callers may also mint their
// own scheme as long as they keep handles unique per cache.
type Handle uint64

// Priority is an urgency hint. Higher is more urgent. The effective
// priority of a cache is the maximum across its live registrations.
type Priority int

// globalHandleCounter is the source of unique handles for all caches.
var globalHandleCounter uint64

// NextHandle returns a fresh unique handle.
// Handles are monotonically increasing and never reused.
func NextHandle() Handle {
	return Handle(atomic.AddUint64(&globalHandleCounter, 1))
}

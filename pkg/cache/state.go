package cache

// Kind identifies the lifecycle phase of a cache.
type Kind int

const (
	// Empty means no fetch has happened, or the cached value was discarded.
	Empty Kind = iota

	// Fetching means a fetch is in flight to produce an input.
	Fetching

	// Processing means an input is being transformed into a resource.
	Processing

	// Fetched means a resource (possibly absent) is cached and ready.
	Fetched

	// Invalid is terminal: the cache no longer accepts work.
	Invalid
)

// String returns the kind name, for logging and metric labels.
func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Fetching:
		return "fetching"
	case Processing:
		return "processing"
	case Fetched:
		return "fetched"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// State is the full lifecycle state of a cache at one instant.
//
// Only the fields relevant to Kind are meaningful: TaskID and the priority
// pair are set for Fetching and Processing, Parameter for Fetching, Input
// for Processing, and Resource for Fetched and Invalid. Optional values are
// pointers; nil means absent.
type State[P, I, R any] struct {
	Kind Kind

	// TaskID is the token minted for the current fetch/transform cycle.
	// A completion whose task id no longer matches the live state is stale
	// and gets dropped.
	TaskID uint64

	// Priority is the aggregate priority of all live observers, propagated
	// into the in-flight cycle. HasPriority is false when no observer is
	// registered, in which case Priority carries no meaning.
	Priority    Priority
	HasPriority bool

	Parameter *P
	Input     *I
	Resource  *R
}

// InFlight reports whether a fetch/transform cycle is active.
func (s State[P, I, R]) InFlight() bool {
	return s.Kind == Fetching || s.Kind == Processing
}

// Status is the synchronous snapshot reported by Cache.Check.
type Status[P, I, R any] struct {
	State       State[P, I, R]
	Priority    Priority
	HasPriority bool
	Parameter   *P
	Input       *I
	Resource    *R
}

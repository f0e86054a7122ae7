package cache

import "sort"

// DeliverFunc receives the resolved resource. A nil resource means the
// fetch produced nothing; the cache does not distinguish failure from a
// legitimately empty result.
type DeliverFunc[R any] func(resource *R)

// TransitionFunc receives every state transition as an (old, new) pair.
type TransitionFunc[P, I, R any] func(old, new State[P, I, R])

// deliverEntry is one registration in the one-shot or persistent registry.
type deliverEntry[R any] struct {
	handle   Handle
	priority Priority
	fn       DeliverFunc[R]
}

// stateEntry is one registration in the state-observer registry.
type stateEntry[P, I, R any] struct {
	handle   Handle
	priority Priority
	fn       TransitionFunc[P, I, R]
}

func removeDeliverEntry[R any](entries []deliverEntry[R], h Handle) []deliverEntry[R] {
	for i, e := range entries {
		if e.handle == h {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

func removeStateEntry[P, I, R any](entries []stateEntry[P, I, R], h Handle) []stateEntry[P, I, R] {
	for i, e := range entries {
		if e.handle == h {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

// byPriority returns a copy sorted in descending priority order.
// The sort is stable so ties keep registration order.
func byPriority[R any](entries []deliverEntry[R]) []deliverEntry[R] {
	sorted := make([]deliverEntry[R], len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority > sorted[j].priority
	})
	return sorted
}

func stateByPriority[P, I, R any](entries []stateEntry[P, I, R]) []stateEntry[P, I, R] {
	sorted := make([]stateEntry[P, I, R], len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority > sorted[j].priority
	})
	return sorted
}

// Package dispatch provides a serialized execution queue.
//
// A Queue runs submitted functions one at a time, in submission order,
// without a dedicated goroutine: the first submitter drains the queue on
// its own goroutine, and functions submitted while a drain is in progress
// (including re-entrant submissions from inside a running job) are
// appended and picked up by the active drainer.
//
// This gives the ordering guarantees a single-owner state machine needs:
// no two jobs ever run concurrently, and a job submitted from within
// another job runs after the current job completes rather than
// interleaving with it.
package dispatch

package cache

import (
	"log/slog"

	"github.com/vango-dev/rescache/pkg/dispatch"
)

// Fetcher produces the input for a cycle. It is invoked on the cache's
// queue and must not block: do the actual work on another goroutine and
// call done (from any goroutine) with the input, or nil for absence. The
// state passed in exposes the cycle's task id, parameter, and priority.
type Fetcher[P, I, R any] func(s State[P, I, R], done func(input *I))

// Transformer converts the input of a cycle into the final resource.
// Same calling convention as Fetcher; it consumes s.Input.
type Transformer[P, I, R any] func(s State[P, I, R], done func(resource *R))

// CommitFunc intercepts every transition. It receives the current and the
// proposed state and returns the state to apply. Returning ok=false vetoes
// the transition: state stays unchanged and no side effects run.
type CommitFunc[P, I, R any] func(old, proposed State[P, I, R]) (next State[P, I, R], ok bool)

// InvalidateFunc produces the final resource value delivered to waiters
// when the cache is invalidated mid-cycle.
type InvalidateFunc[R any] func() *R

// Cache lazily fetches a single resource, memoizes it, and fans the result
// out to registered callbacks. Concurrent demand coalesces into one
// underlying fetch; a superseded cycle's completion is discarded by task-id
// comparison rather than cancelled.
//
// Configuration is chained after New and must finish before the first
// operation:
//
//	c := cache.New[string, []byte, *Profile]().
//	    Fetcher(fetchProfile).
//	    Transformer(decodeProfile).
//	    DefaultPriority(1)
//
// All operations are safe for concurrent use; they funnel through a single
// serialized queue, so no two transitions ever race and callbacks
// registered during a delivery run after that delivery completes.
type Cache[P, I, R any] struct {
	queue  *dispatch.Queue
	logger *slog.Logger

	fetcher     Fetcher[P, I, R]
	transformer Transformer[P, I, R]
	commit      CommitFunc[P, I, R]
	invalidate  InvalidateFunc[R]

	defaultPriority Priority

	// Everything below is owned by the queue.
	state     State[P, I, R]
	parameter *P
	input     *I
	resource  *R

	gets           []deliverEntry[R]
	observers      []deliverEntry[R]
	stateObservers []stateEntry[P, I, R]
	history        map[Handle]struct{}

	taskSeq          uint64
	startedFetch     uint64
	startedTransform uint64
}

// New creates an empty cache. Without a Fetcher the parameter is passed
// through as the input (when P and I coincide), and without a Transformer
// the input is passed through as the resource (when I and R coincide);
// a non-converting passthrough yields absence.
func New[P, I, R any]() *Cache[P, I, R] {
	return &Cache[P, I, R]{
		queue:   dispatch.New(),
		logger:  slog.Default(),
		history: make(map[Handle]struct{}),
	}
}

// Fetcher sets the fetch hook.
func (c *Cache[P, I, R]) Fetcher(f Fetcher[P, I, R]) *Cache[P, I, R] {
	c.fetcher = f
	return c
}

// Transformer sets the transform hook.
func (c *Cache[P, I, R]) Transformer(t Transformer[P, I, R]) *Cache[P, I, R] {
	c.transformer = t
	return c
}

// Commit sets the transition-intercept hook.
func (c *Cache[P, I, R]) Commit(fn CommitFunc[P, I, R]) *Cache[P, I, R] {
	c.commit = fn
	return c
}

// OnInvalidate sets the hook producing the final value delivered when the
// cache is invalidated. Without it the current cached resource is used.
func (c *Cache[P, I, R]) OnInvalidate(fn InvalidateFunc[R]) *Cache[P, I, R] {
	c.invalidate = fn
	return c
}

// DefaultPriority sets the priority used for registrations that do not
// specify one.
func (c *Cache[P, I, R]) DefaultPriority(p Priority) *Cache[P, I, R] {
	c.defaultPriority = p
	return c
}

// Logger sets the logger.
func (c *Cache[P, I, R]) Logger(l *slog.Logger) *Cache[P, I, R] {
	c.logger = l
	return c
}

// Queue sets the serialized queue the cache runs on. Several caches may
// share one queue to serialize across instances.
func (c *Cache[P, I, R]) Queue(q *dispatch.Queue) *Cache[P, I, R] {
	c.queue = q
	return c
}

// Get registers a one-shot callback with default settings.
// See Request for per-registration handle, parameter, and priority.
func (c *Cache[P, I, R]) Get(fn DeliverFunc[R]) Handle {
	return c.Request().Get(fn)
}

// Observe registers a persistent callback with default settings.
func (c *Cache[P, I, R]) Observe(fn DeliverFunc[R]) Handle {
	return c.Request().Observe(fn)
}

// ObserveState registers a transition callback with default settings.
func (c *Cache[P, I, R]) ObserveState(fn TransitionFunc[P, I, R]) Handle {
	return c.Request().ObserveState(fn)
}

// Forget removes a handle from all registries and from the delivery
// history, allowing it to register and be delivered to again.
func (c *Cache[P, I, R]) Forget(h Handle) {
	c.queue.Do(func() { c.forget(h) })
}

// ForgetAll removes every registration and clears the delivery history.
func (c *Cache[P, I, R]) ForgetAll() {
	c.queue.Do(func() { c.forgetAll() })
}

// Check reports the current state tuple without side effects. The callback
// runs on the cache's queue; when the queue is idle it runs before Check
// returns.
func (c *Cache[P, I, R]) Check(fn func(Status[P, I, R])) {
	c.queue.Do(func() {
		p, ok := c.aggregatePriority()
		fn(Status[P, I, R]{
			State:       c.state,
			Priority:    p,
			HasPriority: ok,
			Parameter:   c.parameter,
			Input:       c.input,
			Resource:    c.resource,
		})
	})
}

// Load begins a fetch cycle if the cache is empty, and is a no-op
// otherwise.
func (c *Cache[P, I, R]) Load() {
	c.Request().Load()
}

// Reload unconditionally begins a new fetch cycle, superseding any cycle
// in flight. No-op once invalidated.
func (c *Cache[P, I, R]) Reload() {
	c.Request().Reload()
}

// Clear resets the cached parameter, input, and resource to absent and
// returns the cache to Empty. Registrations survive.
func (c *Cache[P, I, R]) Clear() {
	c.queue.Do(func() { c.clear() })
}

// Expire discards the cached input and resource and returns the cache to
// Empty, keeping the parameter and all registrations. No-op when already
// Empty or invalidated.
func (c *Cache[P, I, R]) Expire() {
	c.queue.Do(func() { c.expire() })
}

// Invalidate terminally shuts the cache down: the invalidate hook's value
// (or the current resource) is delivered to all waiters one last time,
// every registration is forgotten, and all further operations are no-ops.
func (c *Cache[P, I, R]) Invalidate() {
	c.queue.Do(func() { c.invalidateNow() })
}

// SetParameter injects a parameter and begins a fetch cycle with it.
func (c *Cache[P, I, R]) SetParameter(p P) {
	c.queue.Do(func() { c.setParameter(p) })
}

// SetInput injects an input, bypassing the fetch stage: the cache moves
// straight to Processing and runs the transformer on it.
func (c *Cache[P, I, R]) SetInput(i I) {
	c.queue.Do(func() { c.setInput(i) })
}

// SetResource injects a resource (nil for absence), bypassing both stages:
// the cache moves straight to Fetched and delivers.
func (c *Cache[P, I, R]) SetResource(r *R) {
	c.queue.Do(func() { c.setResource(r) })
}

// --- queue-owned internals ---

func (c *Cache[P, I, R]) get(h Handle, param *P, prio Priority, callNow bool, fn DeliverFunc[R]) {
	if c.state.Kind == Invalid {
		return
	}
	if _, spent := c.history[h]; spent && !callNow {
		return
	}
	if callNow {
		fn(c.resource)
		return
	}
	if c.state.Kind == Fetched && param == nil {
		c.history[h] = struct{}{}
		fn(c.resource)
		return
	}

	c.gets = append(c.gets, deliverEntry[R]{handle: h, priority: prio, fn: fn})

	switch c.state.Kind {
	case Empty, Fetched:
		// Fetched is only reachable here with a parameter override,
		// which forces a new cycle with that parameter.
		c.startCycle(param)
	case Fetching, Processing:
		if param != nil {
			c.parameter = param
		}
		c.refreshPriority()
	}
}

func (c *Cache[P, I, R]) observe(h Handle, param *P, prio Priority, callNow bool, fn DeliverFunc[R]) {
	if c.state.Kind == Invalid {
		return
	}
	if param != nil {
		c.parameter = param
	}
	c.observers = append(c.observers, deliverEntry[R]{handle: h, priority: prio, fn: fn})
	if callNow || c.state.Kind == Fetched {
		fn(c.resource)
	}
	c.refreshPriority()
}

func (c *Cache[P, I, R]) observeState(h Handle, prio Priority, callNow bool, fn TransitionFunc[P, I, R]) {
	if c.state.Kind == Invalid {
		return
	}
	c.stateObservers = append(c.stateObservers, stateEntry[P, I, R]{handle: h, priority: prio, fn: fn})
	if callNow {
		fn(c.state, c.state)
	}
	c.refreshPriority()
}

func (c *Cache[P, I, R]) forget(h Handle) {
	c.gets = removeDeliverEntry(c.gets, h)
	c.observers = removeDeliverEntry(c.observers, h)
	c.stateObservers = removeStateEntry(c.stateObservers, h)
	delete(c.history, h)
	c.refreshPriority()
}

func (c *Cache[P, I, R]) forgetAll() {
	c.gets = nil
	c.observers = nil
	c.stateObservers = nil
	c.history = make(map[Handle]struct{})
	c.refreshPriority()
}

func (c *Cache[P, I, R]) load(param *P) {
	if c.state.Kind != Empty {
		return
	}
	c.startCycle(param)
}

func (c *Cache[P, I, R]) reload(param *P) {
	if c.state.Kind == Invalid {
		return
	}
	c.startCycle(param)
}

func (c *Cache[P, I, R]) clear() {
	if c.state.Kind == Invalid {
		return
	}
	c.parameter = nil
	c.input = nil
	c.resource = nil
	c.transition(State[P, I, R]{Kind: Empty})
	c.restartForPending()
}

func (c *Cache[P, I, R]) expire() {
	if c.state.Kind == Empty || c.state.Kind == Invalid {
		return
	}
	c.input = nil
	c.resource = nil
	c.transition(State[P, I, R]{Kind: Empty})
	c.restartForPending()
}

// restartForPending begins a new cycle when one-shot gets were registered
// before the cache was returned to Empty. Their demand is still live.
func (c *Cache[P, I, R]) restartForPending() {
	if c.state.Kind == Empty && len(c.gets) > 0 {
		c.startCycle(nil)
	}
}

func (c *Cache[P, I, R]) invalidateNow() {
	if c.state.Kind == Invalid {
		return
	}
	res := c.resource
	if c.invalidate != nil {
		res = c.invalidate()
	}
	c.transition(State[P, I, R]{Kind: Invalid, Resource: res})
}

func (c *Cache[P, I, R]) setParameter(p P) {
	if c.state.Kind == Invalid {
		return
	}
	c.startCycle(&p)
}

func (c *Cache[P, I, R]) setInput(i I) {
	if c.state.Kind == Invalid {
		return
	}
	prio, ok := c.aggregatePriority()
	c.taskSeq++
	c.transition(State[P, I, R]{
		Kind:        Processing,
		TaskID:      c.taskSeq,
		Priority:    prio,
		HasPriority: ok,
		Input:       &i,
	})
}

func (c *Cache[P, I, R]) setResource(r *R) {
	if c.state.Kind == Invalid {
		return
	}
	c.transition(State[P, I, R]{Kind: Fetched, Resource: r})
}

// startCycle mints a task id and enters Fetching. A cycle already in
// flight is superseded: its completion will fail the task-id check.
func (c *Cache[P, I, R]) startCycle(param *P) {
	if param != nil {
		c.parameter = param
	}
	prio, ok := c.aggregatePriority()
	c.taskSeq++
	c.transition(State[P, I, R]{
		Kind:        Fetching,
		TaskID:      c.taskSeq,
		Priority:    prio,
		HasPriority: ok,
		Parameter:   c.parameter,
	})
}

// transition is the sole mutator of state.
func (c *Cache[P, I, R]) transition(proposed State[P, I, R]) {
	old := c.state
	next := proposed
	if c.commit != nil {
		var ok bool
		next, ok = c.commit(old, proposed)
		if !ok {
			c.logger.Debug("transition vetoed", "from", old.Kind, "to", proposed.Kind)
			return
		}
	}
	c.state = next

	switch next.Kind {
	case Fetching:
		if next.Parameter != nil {
			c.parameter = next.Parameter
		}
	case Processing:
		c.input = next.Input
	case Fetched, Invalid:
		c.resource = next.Resource
	}

	c.logger.Debug("state transition",
		"from", old.Kind, "to", next.Kind, "task", next.TaskID)

	for _, e := range stateByPriority(c.stateObservers) {
		e.fn(old, next)
	}

	switch next.Kind {
	case Invalid:
		c.deliver(next.Resource)
		c.forgetAll()
	case Fetching:
		if next.TaskID != c.startedFetch {
			c.startedFetch = next.TaskID
			c.callFetcher(next)
		}
	case Processing:
		if next.TaskID != c.startedTransform {
			c.startedTransform = next.TaskID
			c.callTransformer(next)
		}
	case Fetched:
		c.deliver(next.Resource)
	}
}

func (c *Cache[P, I, R]) callFetcher(st State[P, I, R]) {
	f := c.fetcher
	if f == nil {
		f = passthroughFetch[P, I, R]
	}
	task := st.TaskID
	f(st, func(input *I) {
		c.queue.Do(func() { c.completeFetch(task, input) })
	})
}

func (c *Cache[P, I, R]) callTransformer(st State[P, I, R]) {
	t := c.transformer
	if t == nil {
		t = passthroughTransform[P, I, R]
	}
	task := st.TaskID
	t(st, func(res *R) {
		c.queue.Do(func() { c.completeTransform(task, res) })
	})
}

func (c *Cache[P, I, R]) completeFetch(task uint64, input *I) {
	if c.state.Kind != Fetching || c.state.TaskID != task {
		c.logger.Debug("stale fetch completion dropped", "task", task)
		return
	}
	c.transition(State[P, I, R]{
		Kind:        Processing,
		TaskID:      task,
		Priority:    c.state.Priority,
		HasPriority: c.state.HasPriority,
		Input:       input,
	})
}

func (c *Cache[P, I, R]) completeTransform(task uint64, res *R) {
	if c.state.Kind != Processing || c.state.TaskID != task {
		c.logger.Debug("stale transform completion dropped", "task", task)
		return
	}
	c.transition(State[P, I, R]{Kind: Fetched, Resource: res})
}

// deliver fires all one-shot and persistent callbacks in descending
// priority order. One-shot entries migrate to the history set first, so a
// delivered handle cannot re-register or receive a duplicate.
func (c *Cache[P, I, R]) deliver(res *R) {
	pending := c.gets
	c.gets = nil
	for _, e := range pending {
		c.history[e.handle] = struct{}{}
	}

	all := make([]deliverEntry[R], 0, len(pending)+len(c.observers))
	all = append(all, pending...)
	all = append(all, c.observers...)
	for _, e := range byPriority(all) {
		e.fn(res)
	}

	c.refreshPriority()
}

// refreshPriority re-broadcasts a changed aggregate priority into an
// in-flight state via a same-kind transition.
func (c *Cache[P, I, R]) refreshPriority() {
	if !c.state.InFlight() {
		return
	}
	prio, ok := c.aggregatePriority()
	if prio == c.state.Priority && ok == c.state.HasPriority {
		return
	}
	next := c.state
	next.Priority = prio
	next.HasPriority = ok
	c.transition(next)
}

func (c *Cache[P, I, R]) aggregatePriority() (Priority, bool) {
	var best Priority
	found := false
	scan := func(entries []deliverEntry[R]) {
		for _, e := range entries {
			if !found || e.priority > best {
				best = e.priority
				found = true
			}
		}
	}
	scan(c.gets)
	scan(c.observers)
	for _, e := range c.stateObservers {
		if !found || e.priority > best {
			best = e.priority
			found = true
		}
	}
	return best, found
}

func passthroughFetch[P, I, R any](s State[P, I, R], done func(*I)) {
	if s.Parameter == nil {
		done(nil)
		return
	}
	if v, ok := any(*s.Parameter).(I); ok {
		done(&v)
		return
	}
	done(nil)
}

func passthroughTransform[P, I, R any](s State[P, I, R], done func(*R)) {
	if s.Input == nil {
		done(nil)
		return
	}
	if v, ok := any(*s.Input).(R); ok {
		done(&v)
		return
	}
	done(nil)
}

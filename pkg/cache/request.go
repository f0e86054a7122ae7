package cache

// Request configures one registration or load before submitting it.
// Settings chain, in the same style the cache's own configuration does:
//
//	h := c.Request().Priority(5).Parameter("eu-west").Get(func(r *Report) { ... })
//
// A Request is single-use and not safe for concurrent mutation; build a
// fresh one per call.
type Request[P, I, R any] struct {
	c           *Cache[P, I, R]
	handle      Handle
	parameter   *P
	priority    Priority
	hasPriority bool
	callNow     bool
}

// Request starts a configured registration against the cache.
func (c *Cache[P, I, R]) Request() *Request[P, I, R] {
	return &Request[P, I, R]{c: c}
}

// Handle supplies the registration handle instead of minting a fresh one.
// Re-using a handle that already received a one-shot delivery makes Get a
// no-op until the handle is forgotten.
func (r *Request[P, I, R]) Handle(h Handle) *Request[P, I, R] {
	r.handle = h
	return r
}

// Parameter overrides the cache's parameter for this call.
func (r *Request[P, I, R]) Parameter(p P) *Request[P, I, R] {
	r.parameter = &p
	return r
}

// Priority sets this registration's priority instead of the cache default.
func (r *Request[P, I, R]) Priority(p Priority) *Request[P, I, R] {
	r.priority = p
	r.hasPriority = true
	return r
}

// CallNow makes Get and Observe invoke the callback immediately with the
// current resource (which may be absent); Get then skips registering, and
// ObserveState invokes the callback once with the current state on both
// sides.
func (r *Request[P, I, R]) CallNow() *Request[P, I, R] {
	r.callNow = true
	return r
}

func (r *Request[P, I, R]) resolved() (Handle, Priority) {
	h := r.handle
	if h == 0 {
		h = NextHandle()
	}
	prio := r.c.defaultPriority
	if r.hasPriority {
		prio = r.priority
	}
	return h, prio
}

// Get registers a one-shot callback, fulfilled at most once per handle,
// and returns the handle for a later Forget. It triggers a fetch when the
// cache is empty. Spent handles (already delivered to) are no-ops unless
// CallNow is set. No-op once the cache is invalidated.
func (r *Request[P, I, R]) Get(fn DeliverFunc[R]) Handle {
	h, prio := r.resolved()
	c, param, callNow := r.c, r.parameter, r.callNow
	c.queue.Do(func() { c.get(h, param, prio, callNow, fn) })
	return h
}

// Observe registers a persistent callback, re-invoked on every future
// delivery, and returns the handle. It does not trigger a fetch by itself.
// No-op once the cache is invalidated.
func (r *Request[P, I, R]) Observe(fn DeliverFunc[R]) Handle {
	h, prio := r.resolved()
	c, param, callNow := r.c, r.parameter, r.callNow
	c.queue.Do(func() { c.observe(h, param, prio, callNow, fn) })
	return h
}

// ObserveState registers a callback fired with (old, new) on every state
// transition, in descending priority order across state observers, and
// returns the handle. No-op once the cache is invalidated.
func (r *Request[P, I, R]) ObserveState(fn TransitionFunc[P, I, R]) Handle {
	h, prio := r.resolved()
	c, callNow := r.c, r.callNow
	c.queue.Do(func() { c.observeState(h, prio, callNow, fn) })
	return h
}

// Load begins a fetch cycle if the cache is empty, using the request's
// parameter override when present.
func (r *Request[P, I, R]) Load() {
	c, param := r.c, r.parameter
	c.queue.Do(func() { c.load(param) })
}

// Reload unconditionally begins a new fetch cycle, using the request's
// parameter override when present. No-op once the cache is invalidated.
func (r *Request[P, I, R]) Reload() {
	c, param := r.c, r.parameter
	c.queue.Do(func() { c.reload(param) })
}

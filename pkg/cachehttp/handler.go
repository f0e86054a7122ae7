package cachehttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/rescache/pkg/cache"
)

// Handler serves one cache over HTTP. Configuration chains after
// NewHandler, in the same style the cache's own configuration does.
type Handler[P, I, R any] struct {
	cache       *cache.Cache[P, I, R]
	timeout     time.Duration
	priority    cache.Priority
	hasPriority bool
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewHandler creates a handler for c with a 30 second delivery timeout.
func NewHandler[P, I, R any](c *cache.Cache[P, I, R]) *Handler[P, I, R] {
	return &Handler[P, I, R]{
		cache:   c,
		timeout: 30 * time.Second,
		logger:  slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Timeout sets how long a request waits for a delivery before answering
// 504.
func (h *Handler[P, I, R]) Timeout(d time.Duration) *Handler[P, I, R] {
	h.timeout = d
	return h
}

// Priority sets the priority used for the per-request registrations.
func (h *Handler[P, I, R]) Priority(p cache.Priority) *Handler[P, I, R] {
	h.priority = p
	h.hasPriority = true
	return h
}

// Logger sets the logger.
func (h *Handler[P, I, R]) Logger(l *slog.Logger) *Handler[P, I, R] {
	h.logger = l
	return h
}

// CheckOrigin sets the WebSocket origin check for the watch endpoint.
func (h *Handler[P, I, R]) CheckOrigin(fn func(*http.Request) bool) *Handler[P, I, R] {
	h.upgrader.CheckOrigin = fn
	return h
}

// Routes returns the handler's endpoints on a chi router:
//
//	GET  /         the resource as JSON
//	POST /refresh  begin a new fetch cycle
//	GET  /watch    WebSocket stream of state transitions
func (h *Handler[P, I, R]) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeResource)
	r.Post("/refresh", h.ServeRefresh)
	r.Get("/watch", h.ServeWatch)
	return r
}

// ServeResource answers with the cached resource, fetching it on demand.
// Concurrent requests while a fetch is in flight coalesce into that one
// fetch. 404 when the resource resolves absent, 504 when the delivery
// timeout elapses, 410 once the cache is invalidated.
func (h *Handler[P, I, R]) ServeResource(w http.ResponseWriter, r *http.Request) {
	if h.status().State.Kind == cache.Invalid {
		http.Error(w, "cache invalidated", http.StatusGone)
		return
	}

	delivered := make(chan *R, 1)
	req := h.cache.Request()
	if h.hasPriority {
		req = req.Priority(h.priority)
	}
	handle := req.Get(func(res *R) { delivered <- res })
	// Forgetting after the response also drops the per-request handle
	// from the cache's history, which would otherwise grow forever.
	defer h.cache.Forget(handle)

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case res := <-delivered:
		if res == nil {
			http.Error(w, "resource unavailable", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			h.logger.Error("response encode error", "error", err)
		}
	case <-timer.C:
		http.Error(w, "timed out waiting for resource", http.StatusGatewayTimeout)
	case <-r.Context().Done():
		// Client went away; the deferred Forget cancels the delivery
		// intent. The underlying fetch keeps running for the next caller.
	}
}

// ServeRefresh begins a new fetch cycle and answers 202. The refreshed
// value reaches persistent observers and later requests.
func (h *Handler[P, I, R]) ServeRefresh(w http.ResponseWriter, r *http.Request) {
	if h.status().State.Kind == cache.Invalid {
		http.Error(w, "cache invalidated", http.StatusGone)
		return
	}
	h.cache.Reload()
	w.WriteHeader(http.StatusAccepted)
}

// status waits for a Check round trip through the cache's queue.
func (h *Handler[P, I, R]) status() cache.Status[P, I, R] {
	ch := make(chan cache.Status[P, I, R], 1)
	h.cache.Check(func(s cache.Status[P, I, R]) { ch <- s })
	return <-ch
}

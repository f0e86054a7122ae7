package cachehttp

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/rescache/pkg/cache"
)

const (
	watchWriteTimeout      = 10 * time.Second
	watchHeartbeatInterval = 30 * time.Second

	// watchBuffer bounds the frame queue between the cache's queue and
	// the WebSocket writer. A slow consumer loses frames instead of
	// stalling the cache.
	watchBuffer = 64
)

// StateFrame is the wire form of one cache state.
type StateFrame struct {
	Kind     string `json:"kind"`
	TaskID   uint64 `json:"task_id,omitempty"`
	Priority *int   `json:"priority,omitempty"`
}

// TransitionFrame is the wire form of one state transition.
type TransitionFrame struct {
	Old StateFrame `json:"old"`
	New StateFrame `json:"new"`
}

func frameFor[P, I, R any](s cache.State[P, I, R]) StateFrame {
	f := StateFrame{
		Kind:   s.Kind.String(),
		TaskID: s.TaskID,
	}
	if s.HasPriority {
		p := int(s.Priority)
		f.Priority = &p
	}
	return f
}

// ServeWatch upgrades to a WebSocket and streams every state transition
// as a TransitionFrame until the client disconnects. 410 once the cache
// is invalidated.
func (h *Handler[P, I, R]) ServeWatch(w http.ResponseWriter, r *http.Request) {
	if h.status().State.Kind == cache.Invalid {
		http.Error(w, "cache invalidated", http.StatusGone)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("watch upgrade error", "error", err)
		return
	}
	defer conn.Close()

	frames := make(chan TransitionFrame, watchBuffer)
	handle := h.cache.ObserveState(func(old, next cache.State[P, I, R]) {
		select {
		case frames <- TransitionFrame{Old: frameFor(old), New: frameFor(next)}:
		default:
			// drop for a slow consumer
		}
	})
	defer h.cache.Forget(handle)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(watchHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case f := <-frames:
			conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := conn.WriteJSON(f); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseNormalClosure) {
					h.logger.Error("watch write error", "error", err)
				}
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}

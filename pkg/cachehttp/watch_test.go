package cachehttp

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/rescache/pkg/cache"
)

func TestWatchStreamsTransitions(t *testing.T) {
	c := reportCache(nil)
	h := NewHandler(c).Logger(quietLogger())
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The server registers its observer after the upgrade completes;
	// give it a moment before triggering a transition.
	time.Sleep(100 * time.Millisecond)
	c.SetResource(&report{Name: "pushed", Rows: 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame TransitionFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Old.Kind != "empty" {
		t.Errorf("old kind = %q, want empty", frame.Old.Kind)
	}
	if frame.New.Kind != "fetched" {
		t.Errorf("new kind = %q, want fetched", frame.New.Kind)
	}
}

func TestWatchStopsOnClientClose(t *testing.T) {
	c := reportCache(nil)
	h := NewHandler(c).Logger(quietLogger())
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	time.Sleep(100 * time.Millisecond)
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	// The observer registered for this watch is forgotten once the
	// handler returns. Transitions afterwards must not stall the
	// cache's queue even though nobody reads them.
	time.Sleep(100 * time.Millisecond)
	for i := 0; i < watchBuffer+8; i++ {
		c.SetResource(&report{Name: "after-close", Rows: i})
	}

	done := make(chan struct{})
	c.Check(func(cache.Status[string, report, report]) { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cache queue stalled after client close")
	}
}

package dispatch

import (
	"io"
	"log/slog"
	"sync"
	"testing"
)

func TestDoRunsSynchronouslyWhenIdle(t *testing.T) {
	q := New()

	ran := false
	q.Do(func() { ran = true })

	if !ran {
		t.Fatal("job should have run before Do returned")
	}
}

func TestReentrantSubmissionIsDeferred(t *testing.T) {
	q := New()

	var order []string
	q.Do(func() {
		order = append(order, "outer-start")
		q.Do(func() {
			order = append(order, "inner")
		})
		order = append(order, "outer-end")
	})

	want := []string{"outer-start", "outer-end", "inner"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestReentrantJobsRunInFIFOOrder(t *testing.T) {
	q := New()

	var order []int
	q.Do(func() {
		for i := 1; i <= 3; i++ {
			i := i
			q.Do(func() { order = append(order, i) })
		}
	})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("order = %v, want [1 2 3]", order)
	}
}

func TestNoConcurrentExecution(t *testing.T) {
	q := New()

	var mu sync.Mutex
	active := 0
	maxActive := 0
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				q.Do(func() {
					mu.Lock()
					active++
					if active > maxActive {
						maxActive = active
					}
					counter++
					active--
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()

	// All jobs submitted while another goroutine was draining were queued;
	// the drainer may still be working after Wait returns. Flush with one
	// final synchronous job.
	done := make(chan struct{})
	q.Do(func() { close(done) })
	<-done

	if maxActive != 1 {
		t.Errorf("max concurrent jobs = %d, want 1", maxActive)
	}
	if counter != 1000 {
		t.Errorf("jobs run = %d, want 1000", counter)
	}
}

func TestPanicDoesNotStrandQueuedJobs(t *testing.T) {
	q := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ran := false
	q.Do(func() {
		q.Do(func() { panic("boom") })
		q.Do(func() { ran = true })
	})

	if !ran {
		t.Fatal("job behind a panicking job never ran")
	}
}

func TestNilJobIgnored(t *testing.T) {
	q := New()
	q.Do(nil)

	ran := false
	q.Do(func() { ran = true })
	if !ran {
		t.Fatal("queue unusable after nil submission")
	}
}

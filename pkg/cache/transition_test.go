package cache

import (
	"testing"

	"github.com/vango-dev/rescache/pkg/dispatch"
)

func TestStateObserversFireInPriorityOrder(t *testing.T) {
	c := strCache(nil)

	var order []string
	c.Request().Priority(1).ObserveState(func(_, _ State[string, string, string]) {
		order = append(order, "low")
	})
	c.Request().Priority(5).ObserveState(func(_, _ State[string, string, string]) {
		order = append(order, "high")
	})

	c.SetResource(sp("v"))

	if len(order) != 2 || order[0] != "high" || order[1] != "low" {
		t.Fatalf("notification order = %v, want [high low]", order)
	}
}

func TestDeliveryOrderCombinesGetsAndObservers(t *testing.T) {
	f := &manualFetcher[string, string, string]{}
	c := strCache(f)

	var order []string
	c.Request().Priority(2).Get(func(*string) { order = append(order, "get-2") })
	c.Request().Priority(7).Observe(func(*string) { order = append(order, "obs-7") })
	c.Request().Priority(4).Get(func(*string) { order = append(order, "get-4") })

	f.resolve(0, sp("v"))

	want := []string{"obs-7", "get-4", "get-2"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestStateObserverSeesOldAndNew(t *testing.T) {
	f := &manualFetcher[string, string, string]{}
	c := strCache(f)

	var pairs [][2]Kind
	c.ObserveState(func(old, next State[string, string, string]) {
		pairs = append(pairs, [2]Kind{old.Kind, next.Kind})
	})

	c.Load()
	f.resolve(0, sp("v"))

	want := [][2]Kind{
		{Empty, Fetching},
		{Fetching, Processing},
		{Processing, Fetched},
	}
	if len(pairs) != len(want) {
		t.Fatalf("transitions = %v, want %v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Fatalf("transition %d = %v, want %v", i, pairs[i], want[i])
		}
	}
}

func TestObserveStateCallNow(t *testing.T) {
	c := strCache(nil)
	c.SetResource(sp("v"))

	var old, next Kind = -1, -1
	c.Request().CallNow().ObserveState(func(o, n State[string, string, string]) {
		old, next = o.Kind, n.Kind
	})

	if old != Fetched || next != Fetched {
		t.Fatalf("callNow state pair = (%v, %v), want (fetched, fetched)", old, next)
	}
}

func TestCommitVetoBlocksTransitionAndSideEffects(t *testing.T) {
	f := &manualFetcher[string, string, string]{}
	c := strCache(f).Commit(func(old, proposed State[string, string, string]) (State[string, string, string], bool) {
		if proposed.Kind == Fetching {
			return State[string, string, string]{}, false
		}
		return proposed, true
	})

	notified := false
	c.ObserveState(func(_, _ State[string, string, string]) { notified = true })

	c.Load()

	if len(f.calls) != 0 {
		t.Error("fetcher invoked despite vetoed transition")
	}
	if notified {
		t.Error("state observers notified despite veto")
	}
	if st := checkStatus(t, c); st.State.Kind != Empty {
		t.Errorf("state = %v, want empty", st.State.Kind)
	}
}

func TestCommitCanReshapeTransition(t *testing.T) {
	f := &manualFetcher[string, string, string]{}
	c := strCache(f).Commit(func(old, proposed State[string, string, string]) (State[string, string, string], bool) {
		// Clamp every in-flight priority to at most 3.
		if proposed.InFlight() && proposed.HasPriority && proposed.Priority > 3 {
			proposed.Priority = 3
		}
		return proposed, true
	})

	c.Request().Priority(9).Get(func(*string) {})

	if st := checkStatus(t, c); st.State.Priority != 3 {
		t.Fatalf("in-flight priority = %d, want clamped to 3", st.State.Priority)
	}
}

func TestSetInputRunsTransformer(t *testing.T) {
	tr := func(s State[string, string, string], done func(*string)) {
		v := "transformed:" + *s.Input
		done(&v)
	}
	c := New[string, string, string]().Logger(quietLogger()).Transformer(tr)

	var got *string
	c.Observe(func(r *string) { got = r })
	c.SetInput("raw")

	if got == nil || *got != "transformed:raw" {
		t.Fatalf("resource = %v, want transformed:raw", got)
	}
}

func TestSetResourceAbsent(t *testing.T) {
	f := &manualFetcher[string, string, string]{}
	c := strCache(f)

	delivered := false
	var got *string
	c.Get(func(r *string) {
		delivered = true
		got = r
	})
	// The pending get is waiting on the fetch; inject absence directly.
	c.SetResource(nil)

	if !delivered {
		t.Fatal("no delivery for absent resource")
	}
	if got != nil {
		t.Fatalf("resource = %q, want absent", *got)
	}
	if st := checkStatus(t, c); st.State.Kind != Fetched {
		t.Errorf("state = %v, want fetched", st.State.Kind)
	}
}

func TestObserveParameterSteersNextCycle(t *testing.T) {
	f := &manualFetcher[string, string, string]{}
	c := strCache(f)

	c.Request().Parameter("from-observer").Observe(func(*string) {})
	if len(f.calls) != 0 {
		t.Fatal("observe started a fetch")
	}

	c.Load()
	if len(f.calls) != 1 {
		t.Fatalf("fetcher invoked %d times, want 1", len(f.calls))
	}
	if p := f.calls[0].Parameter; p == nil || *p != "from-observer" {
		t.Fatalf("fetch parameter = %v, want from-observer", p)
	}
}

func TestForgetAllDropsEverything(t *testing.T) {
	f := &manualFetcher[string, string, string]{}
	c := strCache(f)

	delivered := 0
	h := c.Request().Priority(8).Get(func(*string) { delivered++ })
	c.Observe(func(*string) { delivered++ })

	c.ForgetAll()

	if st := checkStatus(t, c); st.State.HasPriority {
		t.Error("aggregate priority still defined after ForgetAll")
	}

	f.resolve(0, sp("v"))
	if delivered != 0 {
		t.Errorf("deliveries after ForgetAll = %d, want 0", delivered)
	}

	// History was cleared too: the old handle may register again.
	c.Request().Handle(h).Get(func(*string) { delivered++ })
	if delivered != 1 {
		t.Errorf("re-registered handle deliveries = %d, want 1", delivered)
	}
}

func TestReloadRestartsFromFetched(t *testing.T) {
	f := &manualFetcher[string, string, string]{}
	c := strCache(f)

	values := []string{}
	c.Observe(func(r *string) {
		if r != nil {
			values = append(values, *r)
		}
	})

	c.Load()
	f.resolve(0, sp("a"))
	c.Reload()
	f.resolve(1, sp("b"))

	if len(values) != 2 || values[0] != "a" || values[1] != "b" {
		t.Fatalf("observed values = %v, want [a b]", values)
	}
}

func TestSharedQueueSerializesAcrossCaches(t *testing.T) {
	q := dispatch.New(dispatch.WithLogger(quietLogger()))
	a := New[string, string, string]().Logger(quietLogger()).Queue(q)
	b := New[string, string, string]().Logger(quietLogger()).Queue(q)

	var order []string
	a.ObserveState(func(_, _ State[string, string, string]) { order = append(order, "a") })
	b.ObserveState(func(_, _ State[string, string, string]) { order = append(order, "b") })

	a.SetResource(sp("x"))
	b.SetResource(sp("y"))

	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v, want [a b]", order)
	}
}

package strata

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNotifyTierOrder(t *testing.T) {
	s := mustStore(t, map[string]any{
		"user": map[string]any{"name": "Ada", "age": 36},
	})

	var (
		mu    sync.Mutex
		order []string
	)
	tag := func(label string) Callback {
		return func(any) {
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
		}
	}

	// Registered out of tier order on purpose.
	if _, err := s.Subscribe("user", tag("ancestor")); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := s.Subscribe("", tag("root")); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := s.Subscribe("user.name", tag("exact")); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := s.Set("user.name", "Grace"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	want := []string{"root", "exact", "ancestor"}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != len(want) {
		t.Fatalf("delivered %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("delivered %v, want %v", order, want)
		}
	}
}

func TestNotifyRootSubscriberGetsRootWrapper(t *testing.T) {
	s := mustStore(t, map[string]any{"count": 0})

	rec := &recorder{}
	if _, err := s.Subscribe("", rec.cb); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := s.Set("count", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	node, ok := rec.last().(*Node)
	if !ok {
		t.Fatalf("root payload = %T, want *Node", rec.last())
	}
	if node != s.State() {
		t.Errorf("root payload is not the store's root wrapper")
	}
}

func TestNotifyDescendantsReceiveCurrentValues(t *testing.T) {
	s := mustStore(t, map[string]any{
		"user": map[string]any{"name": "Ada", "age": 36},
	})

	nameRec := &recorder{}
	ageRec := &recorder{}
	if _, err := s.Subscribe("user.name", nameRec.cb); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := s.Subscribe("user.age", ageRec.cb); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Replacing the parent wholesale reaches both leaf subscribers with
	// their values under the new parent.
	if err := s.Set("user", map[string]any{"name": "Grace"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	sv, ok := nameRec.last().(StateValue)
	if !ok || sv.Value != "Grace" {
		t.Errorf("name payload = %#v, want StateValue{Grace}", nameRec.last())
	}
	// The age key no longer resolves under the new parent.
	if ageRec.count() != 1 || ageRec.last() != nil {
		t.Errorf("age payload = %#v, want plain nil", ageRec.last())
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	s := mustStore(t, map[string]any{"count": 0})

	first := &recorder{}
	second := &recorder{}
	unsub, err := s.Subscribe("count", first.cb)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := s.Subscribe("count", second.cb); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	unsub()
	unsub()
	unsub()

	if err := s.Set("count", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if first.count() != 0 {
		t.Errorf("unsubscribed callback fired %d times", first.count())
	}
	if second.count() != 1 {
		t.Errorf("surviving callback fired %d times, want 1", second.count())
	}
}

func TestSubscribeRejectsMalformedPath(t *testing.T) {
	s := mustStore(t, map[string]any{"count": 0})

	if _, err := s.Subscribe("a..b", func(any) {}); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Subscribe(a..b) = %v, want ErrInvalidPath", err)
	}
}

func TestReentrantCallback(t *testing.T) {
	s := mustStore(t, map[string]any{"count": 0, "echo": 0})

	echoRec := &recorder{}
	if _, err := s.Subscribe("echo", echoRec.cb); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// A subscriber that writes back into the store must not deadlock.
	if _, err := s.Subscribe("count", func(change any) {
		sv := change.(StateValue)
		if err := s.Set("echo", sv.Value); err != nil {
			t.Errorf("nested Set: %v", err)
		}
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := s.Set("count", 7); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got, _ := s.Get("echo"); got != 7 {
		t.Errorf("echo = %v, want 7", got)
	}
	if echoRec.count() != 1 {
		t.Errorf("nested notification fired %d times, want 1", echoRec.count())
	}
}

// tally implements Instrument for assertions on the hook protocol.
type tally struct {
	mu        sync.Mutex
	mutations int
	added     int
	removed   int
	active    int
	delivered int
	waves     int
	elapsed   time.Duration
}

func (c *tally) MutationObserved(string, Kind) {
	c.mu.Lock()
	c.mutations++
	c.mu.Unlock()
}

func (c *tally) SubscriptionAdded(_ string, active int) {
	c.mu.Lock()
	c.added++
	c.active = active
	c.mu.Unlock()
}

func (c *tally) SubscriptionRemoved(_ string, active int) {
	c.mu.Lock()
	c.removed++
	c.active = active
	c.mu.Unlock()
}

func (c *tally) NotifyCompleted(_ string, delivered int, elapsed time.Duration) {
	c.mu.Lock()
	c.waves++
	c.delivered += delivered
	c.elapsed += elapsed
	c.mu.Unlock()
}

func TestInstrumentHooks(t *testing.T) {
	in := &tally{}
	s, err := New("test", map[string]any{"count": 0}, WithInstrument(in))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	unsub, err := s.Subscribe("count", func(any) {})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := s.Subscribe("", func(any) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := s.Set("count", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	unsub()

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.added != 2 || in.removed != 1 || in.active != 1 {
		t.Errorf("subscriptions: added=%d removed=%d active=%d, want 2/1/1", in.added, in.removed, in.active)
	}
	if in.mutations != 1 {
		t.Errorf("mutations = %d, want 1", in.mutations)
	}
	if in.waves != 1 || in.delivered != 2 {
		t.Errorf("waves=%d delivered=%d, want 1/2", in.waves, in.delivered)
	}
}

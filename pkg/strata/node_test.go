package strata

import (
	"reflect"
	"sync"
	"testing"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// recorder collects notification payloads for assertions.
type recorder struct {
	mu    sync.Mutex
	calls []any
}

func (r *recorder) cb(change any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, change)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) last() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

// mustStore builds a store or fails the test.
func mustStore(t *testing.T, initial any) *Store {
	t.Helper()
	s, err := New("test", initial)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// mustNode resolves a path to a composite wrapper or fails the test.
func mustNode(t *testing.T, s *Store, path string) *Node {
	t.Helper()
	v, err := s.Get(path)
	if err != nil {
		t.Fatalf("Get(%q): %v", path, err)
	}
	n, ok := v.(*Node)
	if !ok {
		t.Fatalf("Get(%q) = %T, want *Node", path, v)
	}
	return n
}

func TestWrapKinds(t *testing.T) {
	om := orderedmap.New[string, any]()
	om.Set("u1", map[string]any{"name": "Ada"})

	s := mustStore(t, map[string]any{
		"user":    map[string]any{"name": "Ada"},
		"items":   []any{"a", "b"},
		"userMap": om,
		"created": time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})

	if got := mustNode(t, s, "user").Kind(); got != KindObject {
		t.Errorf("user kind = %v, want object", got)
	}
	if got := mustNode(t, s, "items").Kind(); got != KindArray {
		t.Errorf("items kind = %v, want array", got)
	}
	if got := mustNode(t, s, "userMap").Kind(); got != KindMap {
		t.Errorf("userMap kind = %v, want map", got)
	}
	if got := mustNode(t, s, "created").Kind(); got != KindDate {
		t.Errorf("created kind = %v, want date", got)
	}
}

func TestWrapDeepCopies(t *testing.T) {
	source := map[string]any{"user": map[string]any{"name": "Ada"}}
	s := mustStore(t, source)

	// Mutating the caller's map must not leak into the store.
	source["user"].(map[string]any)["name"] = "mutated"

	got, _ := s.Get("user.name")
	if got != "Ada" {
		t.Errorf("store saw external mutation: %v", got)
	}
}

func TestWrapIdempotent(t *testing.T) {
	s := mustStore(t, map[string]any{"user": map[string]any{"name": "Ada"}})

	first := mustNode(t, s, "user")
	second := mustNode(t, s, "user")
	if first != second {
		t.Errorf("repeated reads returned different wrappers")
	}

	// Re-assigning the wrapper at its own path keeps identity.
	if err := s.Set("user", first); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := mustNode(t, s, "user"); got != first {
		t.Errorf("re-wrapping at the same path created a new wrapper")
	}
}

func TestWrapAtDifferentPathClones(t *testing.T) {
	s := mustStore(t, map[string]any{"user": map[string]any{"name": "Ada"}})

	user := mustNode(t, s, "user")
	if err := s.Set("copy", user); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clone := mustNode(t, s, "copy")
	if clone == user {
		t.Fatalf("node shared between two paths")
	}

	// The clone is independent data.
	if err := s.Set("copy.name", "Grace"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := s.Get("user.name"); got != "Ada" {
		t.Errorf("mutating the clone changed the original: %v", got)
	}
}

func TestLeafReadsReturnStateValue(t *testing.T) {
	s := mustStore(t, map[string]any{"user": map[string]any{"name": "Ada"}})
	user := mustNode(t, s, "user")

	got := user.Get("name")
	sv, ok := got.(StateValue)
	if !ok {
		t.Fatalf("Get(name) = %T, want StateValue", got)
	}
	if sv.Value != "Ada" || sv.Key != "user.name" || sv.IsAbsent() {
		t.Errorf("unexpected StateValue: %+v", sv)
	}
	if sv.Root != s.State() {
		t.Errorf("StateValue root is not the tree root")
	}

	missing := user.Get("missing")
	if mv, ok := missing.(StateValue); !ok || !mv.IsAbsent() {
		t.Errorf("missing key = %#v, want absent StateValue", missing)
	}
}

func TestObjectSetNotifiesExactPath(t *testing.T) {
	s := mustStore(t, map[string]any{"user": map[string]any{"name": "Ada"}})

	rec := &recorder{}
	if _, err := s.Subscribe("user.name", rec.cb); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := s.Set("user.name", "Grace"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if rec.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", rec.count())
	}
	sv, ok := rec.last().(StateValue)
	if !ok || sv.Value != "Grace" || sv.Key != "user.name" {
		t.Errorf("payload = %#v, want StateValue{Grace user.name}", rec.last())
	}
}

func TestDeleteNotifiesOnlyWhenPresent(t *testing.T) {
	s := mustStore(t, map[string]any{"user": map[string]any{"name": "Ada"}})

	rec := &recorder{}
	if _, err := s.Subscribe("user.name", rec.cb); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := s.Delete("user.name"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", rec.count())
	}
	if sv, ok := rec.last().(StateValue); !ok || !sv.IsAbsent() {
		t.Errorf("payload = %#v, want absent StateValue", rec.last())
	}

	// Deleting a key that no longer exists notifies nobody.
	if err := s.Delete("user.name"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("delete of missing key notified, count = %d", rec.count())
	}
}

func TestDeletedParentNotifiesChildrenWithNil(t *testing.T) {
	s := mustStore(t, map[string]any{
		"user": map[string]any{"name": "Ada", "age": 36},
	})

	rec := &recorder{}
	if _, err := s.Subscribe("user.name", rec.cb); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := s.Delete("user"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if rec.count() != 1 {
		t.Fatalf("expected 1 notification, got %d", rec.count())
	}
	if rec.last() != nil {
		t.Errorf("child of deleted parent received %#v, want plain nil", rec.last())
	}
}

func TestDateNode(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := mustStore(t, map[string]any{"created": start})

	created := mustNode(t, s, "created")
	if !created.Time().Equal(start) {
		t.Errorf("Time = %v, want %v", created.Time(), start)
	}

	rec := &recorder{}
	if _, err := s.Subscribe("created", rec.cb); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	next := start.Add(24 * time.Hour)
	created.SetTime(next)

	if !created.Time().Equal(next) {
		t.Errorf("Time after SetTime = %v, want %v", created.Time(), next)
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 notification, got %d", rec.count())
	}
}

func TestSnapshotExcludesFunctions(t *testing.T) {
	s := mustStore(t, map[string]any{
		"name":  "Ada",
		"greet": func() string { return "hi" },
		"items": []any{"a", func() {}, "c"},
	})

	data := s.Data().(map[string]any)
	if _, present := data["greet"]; present {
		t.Errorf("function-valued key survived the snapshot")
	}
	if data["name"] != "Ada" {
		t.Errorf("name = %v", data["name"])
	}

	items, ok := data["items"].([]any)
	if !ok || len(items) != 3 {
		t.Fatalf("items = %#v, want 3 slots", data["items"])
	}
	if items[0] != "a" || items[1] != nil || items[2] != "c" {
		t.Errorf("function slot not nil-preserved: %#v", items)
	}

	// Raw keeps functions.
	raw := s.State().Raw().(map[string]any)
	if _, present := raw["greet"]; !present {
		t.Errorf("Raw dropped a function leaf")
	}
}

func TestResolve(t *testing.T) {
	s := mustStore(t, map[string]any{
		"user": map[string]any{"name": "Ada"},
	})

	v, err := s.State().Resolve("user.name")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if sv, ok := v.(StateValue); !ok || sv.Value != "Ada" {
		t.Errorf("Resolve leaf = %#v", v)
	}

	v, err = s.State().Resolve("user.missing.deeper")
	if err != nil || v != nil {
		t.Errorf("Resolve through missing = %#v, %v; want nil, nil", v, err)
	}
}

func TestNormalizeTypedContainers(t *testing.T) {
	s := mustStore(t, map[string]any{
		"tags":   []string{"x", "y"},
		"scores": map[string]int{"a": 1},
	})

	tags := mustNode(t, s, "tags")
	if tags.Kind() != KindArray || tags.Len() != 2 {
		t.Errorf("typed slice not normalized: kind=%v len=%d", tags.Kind(), tags.Len())
	}
	if got, _ := s.Get("scores.a"); got != 1 {
		t.Errorf("typed map not normalized: %v", got)
	}
	if !reflect.DeepEqual(tags.Raw(), []any{"x", "y"}) {
		t.Errorf("Raw = %#v", tags.Raw())
	}
}

package devtools

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/strata-dev/strata/pkg/strata"
)

func newTestServer(t *testing.T) (*httptest.Server, *strata.Store) {
	t.Helper()

	store, err := strata.New("cart", map[string]any{
		"items": []any{"a", "b"},
		"user":  map[string]any{"name": "Ada"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	reg := strata.NewRegistry()
	if err := reg.Add(store); err != nil {
		t.Fatalf("Add: %v", err)
	}

	ts := httptest.NewServer(New(reg).Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestStoreListing(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Stores []string `json:"stores"`
	}
	if status := getJSON(t, ts.URL+"/stores", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(body.Stores) != 1 || body.Stores[0] != "cart" {
		t.Errorf("stores = %v, want [cart]", body.Stores)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	var body struct {
		Name string         `json:"name"`
		Data map[string]any `json:"data"`
	}
	if status := getJSON(t, ts.URL+"/stores/cart", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body.Name != "cart" {
		t.Errorf("name = %q", body.Name)
	}
	if user, ok := body.Data["user"].(map[string]any); !ok || user["name"] != "Ada" {
		t.Errorf("data = %#v", body.Data)
	}

	if status := getJSON(t, ts.URL+"/stores/missing", nil); status != http.StatusNotFound {
		t.Errorf("missing store status = %d, want 404", status)
	}
}

func TestValueEndpoint(t *testing.T) {
	ts, store := newTestServer(t)

	var body struct {
		Path  string `json:"path"`
		Value any    `json:"value"`
	}
	if status := getJSON(t, ts.URL+"/stores/cart/value?path=user.name", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body.Value != "Ada" {
		t.Errorf("value = %v, want Ada", body.Value)
	}

	// Composites come back as snapshots, not wrapper internals.
	var composite struct {
		Value []any `json:"value"`
	}
	if status := getJSON(t, ts.URL+"/stores/cart/value?path=items", &composite); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(composite.Value) != 2 || composite.Value[0] != "a" {
		t.Errorf("composite value = %#v", composite.Value)
	}

	resp, err := http.Post(ts.URL+"/stores/cart/value?path=user.name", "application/json", strings.NewReader(`"Grace"`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST status = %d", resp.StatusCode)
	}
	if got, _ := store.Get("user.name"); got != "Grace" {
		t.Errorf("store after POST = %v, want Grace", got)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	ts, _ := newTestServer(t)

	if status := getJSON(t, ts.URL+"/stores/cart/value?path=a..b", nil); status != http.StatusBadRequest {
		t.Errorf("malformed path status = %d, want 400", status)
	}

	resp, err := http.Post(ts.URL+"/stores/cart/value?path=items[9]", "application/json", strings.NewReader(`"x"`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad index status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/stores/cart/value?path=$name", "application/json", strings.NewReader(`"x"`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("reserved property status = %d, want 403", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/stores/cart/value?path=user.name", "application/json", strings.NewReader(`not json`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid body status = %d, want 400", resp.StatusCode)
	}
}

func TestWatchStreamsFrames(t *testing.T) {
	ts, store := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stores/cart/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	resp.Body.Close()

	// The server sends one frame immediately on connect.
	var initial Frame
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("reading initial frame: %v", err)
	}
	if initial.Store != "cart" {
		t.Errorf("initial frame store = %q", initial.Store)
	}

	if err := store.Set("user.name", "Grace"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var next Frame
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("reading change frame: %v", err)
	}
	if next.Seq <= initial.Seq {
		t.Errorf("seq did not advance: %d then %d", initial.Seq, next.Seq)
	}
	data, ok := next.Data.(map[string]any)
	if !ok {
		t.Fatalf("frame data = %T", next.Data)
	}
	if user, ok := data["user"].(map[string]any); !ok || user["name"] != "Grace" {
		t.Errorf("frame data = %#v", data)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

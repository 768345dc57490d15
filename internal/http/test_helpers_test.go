package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atriumhub/atrium/internal/bus"
	"github.com/atriumhub/atrium/internal/hub"
	"github.com/atriumhub/atrium/internal/notify"
	"github.com/atriumhub/atrium/internal/storage"
)

// testEnv bundles a Service + httptest.Server for handler tests, backed by
// an in-memory Store.
type testEnv struct {
	srv   *httptest.Server
	hub   *hub.Hub
	store storage.Store
	bus   *bus.Bus
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewInMemory()
	h := hub.New(store)
	b := bus.New()
	n := notify.New(store, h, b)
	svc := New(h, store, n, b, nil, "")
	srv := httptest.NewServer(NewRouter(svc, nil))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, hub: h, store: store, bus: b}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}

package httpapi

import (
	"net/http"
	"testing"

	"github.com/atriumhub/atrium/internal/bus"
	"github.com/atriumhub/atrium/internal/hub"
	"github.com/atriumhub/atrium/internal/notify"
	"github.com/atriumhub/atrium/internal/sharedfs"
	"github.com/atriumhub/atrium/internal/storage"
	"net/http/httptest"
)

func newFSTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewInMemory()
	h := hub.New(store)
	b := bus.New()
	n := notify.New(store, h, b)
	fs, err := sharedfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("sharedfs.New: %v", err)
	}
	svc := New(h, store, n, b, fs, "")
	srv := httptest.NewServer(NewRouter(svc, nil))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, hub: h, store: store, bus: b}
}

func TestFSWriteReadListDeleteOverHTTP(t *testing.T) {
	env := newFSTestEnv(t)

	resp := env.post(t, "/api/fs/write", fsWriteRequest{Path: "notes.txt", Content: "hello"})
	requireStatus(t, resp, http.StatusOK)

	resp = env.get(t, "/api/fs/read?path=notes.txt")
	requireStatus(t, resp, http.StatusOK)
	got := decodeJSON[struct {
		Content string `json:"content"`
	}](t, resp)
	if got.Content != "hello" {
		t.Fatalf("expected roundtrip content, got %q", got.Content)
	}

	resp = env.get(t, "/api/fs/list?path=")
	requireStatus(t, resp, http.StatusOK)
	listed := decodeJSON[struct {
		Entries []sharedfs.Entry `json:"entries"`
	}](t, resp)
	if len(listed.Entries) != 1 || listed.Entries[0].Path != "notes.txt" {
		t.Fatalf("unexpected list result: %+v", listed.Entries)
	}

	resp = env.post(t, "/api/fs/delete", fsDeleteRequest{Path: "notes.txt"})
	requireStatus(t, resp, http.StatusOK)

	resp = env.get(t, "/api/fs/read?path=notes.txt")
	requireStatus(t, resp, http.StatusNotFound)
}

func TestFSPathEscapeRejected(t *testing.T) {
	env := newFSTestEnv(t)
	resp := env.post(t, "/api/fs/write", fsWriteRequest{Path: "../escape.txt", Content: "x"})
	requireStatus(t, resp, http.StatusBadRequest)
}

func TestFSDisabledReturnsError(t *testing.T) {
	env := newTestEnv(t) // fs is nil in the default test env
	resp := env.get(t, "/api/fs/read?path=notes.txt")
	requireStatus(t, resp, http.StatusInternalServerError)
}

package httpapi

import (
	"net/http"
	"testing"

	"github.com/atriumhub/atrium/internal/core"
)

func TestMemoryStoreAndGetRoundtrip(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/memory/a1", storeMemoryRequest{Key: "k", Value: "v"})
	requireStatus(t, resp, http.StatusOK)

	resp = env.get(t, "/api/memory/a1")
	requireStatus(t, resp, http.StatusOK)
	got := decodeJSON[struct {
		Entries []core.MemoryEntry `json:"entries"`
	}](t, resp)
	if len(got.Entries) != 1 || got.Entries[0].Value != "v" {
		t.Fatalf("unexpected memory entries: %+v", got.Entries)
	}
}

func TestMemoryMissingKeyRejected(t *testing.T) {
	env := newTestEnv(t)
	resp := env.post(t, "/api/memory/a1", storeMemoryRequest{Value: "v"})
	requireStatus(t, resp, http.StatusBadRequest)
}

func TestMemoryExpiresInHidesEntryOnceExpired(t *testing.T) {
	env := newTestEnv(t)
	negative := int64(-1)
	resp := env.post(t, "/api/memory/a1", storeMemoryRequest{Key: "k", Value: "v", ExpiresIn: &negative})
	requireStatus(t, resp, http.StatusOK)

	resp = env.get(t, "/api/memory/a1")
	got := decodeJSON[struct {
		Entries []core.MemoryEntry `json:"entries"`
	}](t, resp)
	if len(got.Entries) != 0 {
		t.Fatalf("expected already-expired entry to be absent, got %+v", got.Entries)
	}
}

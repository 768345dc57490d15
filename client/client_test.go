package client

import (
	"context"
	"testing"
	"time"
)

func TestSendFailsWithoutServer(t *testing.T) {
	c := New("http://127.0.0.1:1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, _, err := c.Send(ctx, "agent-1", "hello", nil); err == nil {
		t.Fatalf("expected failure without a reachable hub")
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:7338/")
	if c.BaseURL != "http://localhost:7338" {
		t.Fatalf("expected trailing slash trimmed, got %q", c.BaseURL)
	}
}

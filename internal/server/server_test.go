package server

import "testing"

func TestNewRequiresAddr(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without addr")
	}
}

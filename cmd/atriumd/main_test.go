package main

import (
	"bytes"
	"testing"

	"github.com/atriumhub/atrium/internal/cli"
)

func TestRootCommandListsServeAndBootstrap(t *testing.T) {
	cmd := cli.NewRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute --help: %v", err)
	}
	for _, want := range []string{"serve", "bootstrap"} {
		if !bytes.Contains(out.Bytes(), []byte(want)) {
			t.Fatalf("expected help output to mention %q, got %q", want, out.String())
		}
	}
}

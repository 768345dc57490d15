package sharedfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/atriumhub/atrium/internal/core"
)

func TestWriteReadRoundtrip(t *testing.T) {
	ctx := context.Background()
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := fs.Write(ctx, "notes/todo.txt", []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := fs.Read(ctx, "notes/todo.txt")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestWriteCreatesParentDirs(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := fs.Write(ctx, "a/b/c/deep.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "a", "b", "c", "deep.txt")); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}

func TestPathEscapeViaDotDotRejected(t *testing.T) {
	ctx := context.Background()
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = fs.Read(ctx, "../../etc/passwd")
	if !errors.Is(err, core.ErrPathEscape) {
		t.Fatalf("expected path escape error, got %v", err)
	}
}

func TestPathEscapeViaAbsolutePathRejected(t *testing.T) {
	ctx := context.Background()
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = fs.Read(ctx, "/etc/passwd")
	if !errors.Is(err, core.ErrPathEscape) {
		t.Fatalf("expected path escape error, got %v", err)
	}
}

func TestPathEscapeViaSymlinkRejected(t *testing.T) {
	ctx := context.Background()
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0644); err != nil {
		t.Fatalf("seed outside file: %v", err)
	}
	root := t.TempDir()
	fs, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "escape")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	_, err = fs.Read(ctx, "escape/secret.txt")
	if !errors.Is(err, core.ErrPathEscape) {
		t.Fatalf("expected path escape error, got %v", err)
	}
}

func TestDeleteRemovesFile(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	fs, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := fs.Write(ctx, "gone.txt", []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := fs.Delete(ctx, "gone.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "gone.txt")); !os.IsNotExist(err) {
		t.Fatalf("expected file to be gone, stat err=%v", err)
	}
}

func TestListFiltersByGlobPattern(t *testing.T) {
	ctx := context.Background()
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, name := range []string{"a.txt", "b.txt", "c.md"} {
		if err := fs.Write(ctx, name, []byte("x")); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	entries, err := fs.List(ctx, "", "*.txt")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 .txt entries, got %d: %+v", len(entries), entries)
	}
	for _, e := range entries {
		if e.SizeHuman == "" {
			t.Fatalf("expected a human-readable size, got empty for %+v", e)
		}
	}
}

func TestListWithoutPatternReturnsEverything(t *testing.T) {
	ctx := context.Background()
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, name := range []string{"a.txt", "b.md"} {
		if err := fs.Write(ctx, name, []byte("x")); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	entries, err := fs.List(ctx, "", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

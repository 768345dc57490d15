package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/atriumhub/atrium/internal/bus"
	"github.com/atriumhub/atrium/internal/core"
)

type fixedRooms struct {
	names []string
}

func (f fixedRooms) ActiveRoomNames() []string { return f.names }

type fakeAppender struct {
	mu       sync.Mutex
	appended []core.Message
}

func (a *fakeAppender) AppendTransientMessage(ctx context.Context, msg core.Message) (core.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.appended = append(a.appended, msg)
	return msg, nil
}

func (a *fakeAppender) snapshot() []core.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.Message, len(a.appended))
	copy(out, a.appended)
	return out
}

type collector struct {
	mu     sync.Mutex
	events []core.Event
}

func (c *collector) Deliver(event core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *collector) snapshot() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Event, len(c.events))
	copy(out, c.events)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcherPublishesCreateToActiveRooms(t *testing.T) {
	root := t.TempDir()
	b := bus.New()
	lab := &collector{}
	b.SubscribeRoom("lab", lab)

	appender := &fakeAppender{}
	w, err := New(root, b, fixedRooms{names: []string{"lab"}}, appender, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(lab.snapshot()) > 0 })

	events := lab.snapshot()
	found := false
	for _, e := range events {
		if e.Message != nil && e.Message.Metadata["filePath"] == "notes.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a file_change event for notes.txt, got %+v", events)
	}

	waitFor(t, 2*time.Second, func() bool { return len(appender.snapshot()) > 0 })
	appended := appender.snapshot()
	if appended[0].Room != "lab" || appended[0].Metadata["filePath"] != "notes.txt" {
		t.Fatalf("expected file_change to be appended to the lab room log, got %+v", appended)
	}
}

func TestWatcherIgnoresDotPrefixedPaths(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	b := bus.New()
	lab := &collector{}
	b.SubscribeRoom("lab", lab)

	w, err := New(root, b, fixedRooms{names: []string{"lab"}}, &fakeAppender{}, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if len(lab.snapshot()) != 0 {
		t.Fatalf("expected no events for dot-prefixed path, got %+v", lab.snapshot())
	}
}

func TestWatcherFansOutToEveryActiveRoom(t *testing.T) {
	root := t.TempDir()
	b := bus.New()
	lab := &collector{}
	ops := &collector{}
	b.SubscribeRoom("lab", lab)
	b.SubscribeRoom("ops", ops)

	w, err := New(root, b, fixedRooms{names: []string{"lab", "ops"}}, &fakeAppender{}, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "shared.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(lab.snapshot()) > 0 && len(ops.snapshot()) > 0
	})
}

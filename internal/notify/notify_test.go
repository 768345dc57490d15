package notify

import (
	"context"
	"testing"

	"github.com/atriumhub/atrium/internal/bus"
	"github.com/atriumhub/atrium/internal/core"
	"github.com/atriumhub/atrium/internal/mention"
	"github.com/atriumhub/atrium/internal/storage"
)

type fakeResolver struct {
	agents map[string]core.Agent // by id
	byName map[string]string     // "room\x00name" -> id
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{agents: map[string]core.Agent{}, byName: map[string]string{}}
}

func (f *fakeResolver) add(room, id, name string) {
	f.agents[id] = core.Agent{ID: id, Name: name, Room: room}
	f.byName[room+"\x00"+name] = id
}

func (f *fakeResolver) AgentByID(id string) (core.Agent, bool) {
	a, ok := f.agents[id]
	return a, ok
}

func (f *fakeResolver) AgentByName(room, name string) (core.Agent, bool) {
	id, ok := f.byName[room+"\x00"+name]
	if !ok {
		return core.Agent{}, false
	}
	return f.AgentByID(id)
}

func TestNotifyCreatesOneNotificationPerResolvedRecipient(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemory()
	resolver := newFakeResolver()
	resolver.add("lab", "a2", "Bob")

	n := New(store, resolver, bus.New())

	content := "hello @Bob and @Bob again, also @Nobody"
	msg := core.Message{Room: "lab", AgentName: "Alice", Content: content, Mentions: mention.Parse(content)}

	created, err := n.Notify(ctx, msg)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected exactly one notification despite duplicate mention, got %d", len(created))
	}
	if created[0].AgentID != "a2" {
		t.Fatalf("expected notification for a2, got %q", created[0].AgentID)
	}

	unread, err := store.ListNotifications(ctx, "a2", true)
	if err != nil || len(unread) != 1 {
		t.Fatalf("expected one unread notification persisted, got %v err=%v", unread, err)
	}
}

func TestNotifyDropsUnresolvedMentions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemory()
	resolver := newFakeResolver()
	n := New(store, resolver, bus.New())

	msg := core.Message{Room: "lab", AgentName: "Alice", Content: "hi @ghost", Mentions: []string{"ghost"}}
	created, err := n.Notify(ctx, msg)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("expected no notification for unknown agent, got %d", len(created))
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemory()
	resolver := newFakeResolver()
	resolver.add("lab", "a2", "Bob")
	n := New(store, resolver, bus.New())

	created, err := n.Notify(ctx, core.Message{Room: "lab", AgentName: "Alice", Content: "hi @Bob", Mentions: []string{"Bob"}})
	if err != nil || len(created) != 1 {
		t.Fatalf("notify: %v %v", err, created)
	}

	changed, err := n.MarkRead(ctx, created[0].ID)
	if err != nil || !changed {
		t.Fatalf("first mark read: changed=%v err=%v", changed, err)
	}
	changed, err = n.MarkRead(ctx, created[0].ID)
	if err != nil || changed {
		t.Fatalf("second mark read should report no change: changed=%v err=%v", changed, err)
	}
}

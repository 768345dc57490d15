package bus

import (
	"sync"
	"testing"

	"github.com/atriumhub/atrium/internal/core"
)

type recorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *recorder) Deliver(event core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestPublishOnlyReachesRoomSubscribers(t *testing.T) {
	b := New()
	inRoom := &recorder{}
	otherRoom := &recorder{}
	b.SubscribeRoom("lab", inRoom)
	b.SubscribeRoom("other", otherRoom)

	b.Publish("lab", core.Event{Kind: core.EventMessage})

	if inRoom.count() != 1 {
		t.Fatalf("expected subscriber in room to receive event, got %d", inRoom.count())
	}
	if otherRoom.count() != 0 {
		t.Fatalf("expected subscriber in other room to receive nothing, got %d", otherRoom.count())
	}
}

func TestPublishToAgentTargetsOnlyThatAgent(t *testing.T) {
	b := New()
	recipient := &recorder{}
	bystander := &recorder{}
	b.SubscribeAgent("a1", recipient)
	b.SubscribeAgent("a2", bystander)

	b.PublishToAgent("a1", core.Event{Kind: core.EventNotification})

	if recipient.count() != 1 {
		t.Fatalf("expected recipient to get the notification, got %d", recipient.count())
	}
	if bystander.count() != 0 {
		t.Fatalf("expected bystander to get nothing, got %d", bystander.count())
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	sub := &recorder{}
	b.SubscribeRoom("lab", sub)
	b.Unsubscribe(sub)

	b.Publish("lab", core.Event{Kind: core.EventMessage})

	if sub.count() != 0 {
		t.Fatalf("expected no events after unsubscribe, got %d", sub.count())
	}
}

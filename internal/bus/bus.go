// Package bus implements the hub's event fanout: typed publish keyed by
// room or by agent, decoupling the publishers (API surface, File watcher,
// Notifier) from the push transport subscriber. This is the re-architecture
// called for once the request path and the push emitter stop being coupled
// directly to each other.
package bus

import (
	"sync"

	"github.com/atriumhub/atrium/internal/core"
)

// Subscriber receives events the bus fans out to it. Implementations must
// not block; Deliver is called while the bus holds only a read lock over
// its subscriber lists.
type Subscriber interface {
	Deliver(event core.Event)
}

// Bus is a per-room and per-agent pub/sub registry. The zero value is not
// usable; construct with New.
type Bus struct {
	mu     sync.RWMutex
	rooms  map[string]map[Subscriber]struct{}
	agents map[string]map[Subscriber]struct{}
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{
		rooms:  make(map[string]map[Subscriber]struct{}),
		agents: make(map[string]map[Subscriber]struct{}),
	}
}

// SubscribeRoom registers sub to receive every event published to room.
func (b *Bus) SubscribeRoom(room string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.rooms[room]
	if !ok {
		set = make(map[Subscriber]struct{})
		b.rooms[room] = set
	}
	set[sub] = struct{}{}
}

// SubscribeAgent registers sub to receive events targeted at agentID
// (notifications).
func (b *Bus) SubscribeAgent(agentID string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.agents[agentID]
	if !ok {
		set = make(map[Subscriber]struct{})
		b.agents[agentID] = set
	}
	set[sub] = struct{}{}
}

// Unsubscribe removes sub from every room and agent subscription. Safe to
// call more than once.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for room, set := range b.rooms {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.rooms, room)
		}
	}
	for agentID, set := range b.agents {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.agents, agentID)
		}
	}
}

// Publish fans event out to every subscriber of room, in the order accepted
// by the caller (the bus holds no internal queue that would reorder across
// calls on the same goroutine).
func (b *Bus) Publish(room string, event core.Event) {
	event.Room = room
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.rooms[room] {
		sub.Deliver(event)
	}
}

// PublishToAgent delivers event only to subscribers registered for
// agentID, used for notification events which target one recipient rather
// than a room.
func (b *Bus) PublishToAgent(agentID string, event core.Event) {
	event.TargetAgent = agentID
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.agents[agentID] {
		sub.Deliver(event)
	}
}

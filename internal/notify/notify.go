// Package notify turns a persisted Message's resolved mentions into
// Notification rows: persist, then best-effort push to a connected
// recipient.
package notify

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atriumhub/atrium/internal/bus"
	"github.com/atriumhub/atrium/internal/core"
	"github.com/atriumhub/atrium/internal/hub"
	"github.com/atriumhub/atrium/internal/storage"
)

const mentionPromptLen = 100
const resolutionCacheSize = 256

// AgentResolver looks an agent up by display name within a room or by its
// globally unique id, the same contract internal/hub.Hub exposes.
type AgentResolver interface {
	AgentByName(room, name string) (core.Agent, bool)
	AgentByID(id string) (core.Agent, bool)
}

// Notifier implements spec.md §4.4. It caches name->agent-id resolutions
// per room so a hot room with repeat mentions doesn't re-scan the agent set
// for every message.
type Notifier struct {
	store    storage.Store
	resolver AgentResolver
	bus      *bus.Bus
	cache    *lru.Cache[string, string] // "room\x00name" -> agentID
}

// New creates a Notifier. resolver is typically an *internal/hub.Hub.
func New(store storage.Store, resolver AgentResolver, b *bus.Bus) *Notifier {
	cache, _ := lru.New[string, string](resolutionCacheSize)
	return &Notifier{store: store, resolver: resolver, bus: b, cache: cache}
}

func cacheKey(room, name string) string {
	return room + "\x00" + name
}

// resolve looks up name in room, through the cache first. A cached id that
// no longer resolves through the hub (the agent left, or a different agent
// has since joined under the same name) is dropped and re-resolved by name,
// so a stale entry never outlives the agent it named.
func (n *Notifier) resolve(room, name string) (core.Agent, bool) {
	key := cacheKey(room, name)
	if id, ok := n.cache.Get(key); ok {
		if agent, ok := n.resolver.AgentByID(id); ok && agent.Room == room && agent.Name == name {
			return agent, true
		}
		n.cache.Remove(key)
	}
	agent, ok := n.resolver.AgentByName(room, name)
	if ok {
		n.cache.Add(key, agent.ID)
	}
	return agent, ok
}

// Notify resolves msg's mentions against the current agent set, persists
// one Notification per distinct resolved recipient, and pushes it if the
// recipient is subscribed. Unresolved names are silently dropped.
func (n *Notifier) Notify(ctx context.Context, msg core.Message) ([]core.Notification, error) {
	if len(msg.Mentions) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var created []core.Notification
	prefix := msg.Content
	if len(prefix) > mentionPromptLen {
		prefix = prefix[:mentionPromptLen]
	}

	for _, name := range msg.Mentions {
		agent, ok := n.resolve(msg.Room, name)
		if !ok {
			continue
		}
		if _, already := seen[agent.ID]; already {
			continue
		}
		seen[agent.ID] = struct{}{}

		notification := core.Notification{
			AgentID:   agent.ID,
			Room:      msg.Room,
			Message:   fmt.Sprintf("%s mentioned you: %s…", msg.AgentName, prefix),
			Type:      "mention",
			CreatedAt: time.Now().UTC(),
		}
		saved, err := n.store.CreateNotification(ctx, notification)
		if err != nil {
			return created, fmt.Errorf("persist notification for %q: %w", agent.ID, err)
		}
		created = append(created, saved)

		if n.bus != nil {
			n.bus.PublishToAgent(agent.ID, core.Event{Kind: core.EventNotification, Notification: &saved})
		}
	}
	return created, nil
}

// MarkRead sets isRead=true for id, idempotently.
func (n *Notifier) MarkRead(ctx context.Context, id string) (bool, error) {
	return n.store.MarkNotificationRead(ctx, id)
}

var _ AgentResolver = (*hub.Hub)(nil)

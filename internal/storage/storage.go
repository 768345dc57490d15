// Package storage defines the durable persistence contract (Store) and an
// in-memory implementation used by tests and the embeddable package.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atriumhub/atrium/internal/core"
)

// Store is the durable backing contract every entity kind in §3 maps onto:
// upserts and filtered reads per kind, plus full hydration at startup. A
// store error on a mutating path is reported to the caller; the in-memory
// write (see internal/hub) is applied only after the store write succeeds.
type Store interface {
	UpsertRoom(ctx context.Context, room core.Room) (core.Room, error)
	ListRooms(ctx context.Context) ([]core.Room, error)
	GetRoom(ctx context.Context, name string) (core.Room, error)

	UpsertAgent(ctx context.Context, agent core.Agent) (core.Agent, error)
	GetAgent(ctx context.Context, id string) (core.Agent, error)
	ListAgentsByRoom(ctx context.Context, room string) ([]core.Agent, error)

	AppendMessage(ctx context.Context, msg core.Message) (core.Message, error)
	ListMessages(ctx context.Context, room string, since time.Time, limit int) ([]core.Message, error)

	UpsertTask(ctx context.Context, task core.Task) (core.Task, error)
	GetTask(ctx context.Context, id string) (core.Task, error)
	ListTasks(ctx context.Context, room string) ([]core.Task, error)

	UpsertMemory(ctx context.Context, entry core.MemoryEntry) (core.MemoryEntry, error)
	ListMemory(ctx context.Context, agentID, key, typ string, now time.Time) ([]core.MemoryEntry, error)
	SweepExpiredMemory(ctx context.Context, now time.Time) ([]core.MemoryEntry, error)

	CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error)
	ListNotifications(ctx context.Context, agentID string, unreadOnly bool) ([]core.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) (bool, error)

	OpenSession(ctx context.Context, sess core.Session) (core.Session, error)
	CloseSession(ctx context.Context, sessionID string) error
	ActiveSessionsForAgent(ctx context.Context, agentID string) ([]core.Session, error)

	Close() error
}

// InMemory is a minimal in-memory Store for tests and embedded use without
// a database file. Grounded on the same "maps guarded by nothing because
// the caller already holds the hub lock" assumption the ancestor's
// in-memory store made; InMemory adds its own mutex since storage.Store may
// be used standalone.
type InMemory struct {
	mu            sync.Mutex
	rooms         map[string]core.Room
	agents        map[string]core.Agent
	messages      map[string][]core.Message
	tasks         map[string]core.Task
	memory        []core.MemoryEntry
	notifications map[string]core.Notification
	sessions      map[string]core.Session
}

func NewInMemory() *InMemory {
	return &InMemory{
		rooms:         make(map[string]core.Room),
		agents:        make(map[string]core.Agent),
		messages:      make(map[string][]core.Message),
		tasks:         make(map[string]core.Task),
		notifications: make(map[string]core.Notification),
		sessions:      make(map[string]core.Session),
	}
}

func (m *InMemory) UpsertRoom(_ context.Context, room core.Room) (core.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rooms[room.Name]; ok && room.CreatedAt.IsZero() {
		room.CreatedAt = existing.CreatedAt
	}
	m.rooms[room.Name] = room
	return room, nil
}

func (m *InMemory) ListRooms(_ context.Context) ([]core.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *InMemory) GetRoom(_ context.Context, name string) (core.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[name]
	if !ok {
		return core.Room{}, fmt.Errorf("room %q: %w", name, core.ErrNotFound)
	}
	return r, nil
}

func (m *InMemory) UpsertAgent(_ context.Context, agent core.Agent) (core.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.ID] = agent
	return agent, nil
}

func (m *InMemory) GetAgent(_ context.Context, id string) (core.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return core.Agent{}, fmt.Errorf("agent %q: %w", id, core.ErrNotFound)
	}
	return a, nil
}

func (m *InMemory) ListAgentsByRoom(_ context.Context, room string) ([]core.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Agent
	for _, a := range m.agents {
		if a.Room == room {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *InMemory) AppendMessage(_ context.Context, msg core.Message) (core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	m.messages[msg.Room] = append(m.messages[msg.Room], msg)
	return msg, nil
}

func (m *InMemory) ListMessages(_ context.Context, room string, since time.Time, limit int) ([]core.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.messages[room]
	var filtered []core.Message
	for _, msg := range all {
		if !since.IsZero() && !msg.Timestamp.After(since) {
			continue
		}
		filtered = append(filtered, msg)
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

func (m *InMemory) UpsertTask(_ context.Context, task core.Task) (core.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	m.tasks[task.ID] = task
	return task, nil
}

func (m *InMemory) GetTask(_ context.Context, id string) (core.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return core.Task{}, fmt.Errorf("task %q: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (m *InMemory) ListTasks(_ context.Context, room string) ([]core.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Task
	for _, t := range m.tasks {
		if t.Room == room {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *InMemory) UpsertMemory(_ context.Context, entry core.MemoryEntry) (core.MemoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Type == "" {
		entry.Type = "note"
	}
	for i, e := range m.memory {
		if e.ID == entry.ID {
			m.memory[i] = entry
			return entry, nil
		}
	}
	m.memory = append(m.memory, entry)
	return entry, nil
}

func (m *InMemory) ListMemory(_ context.Context, agentID, key, typ string, now time.Time) ([]core.MemoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.MemoryEntry
	for _, e := range m.memory {
		if e.AgentID != agentID || e.Expired(now) {
			continue
		}
		if key != "" && e.Key != key {
			continue
		}
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *InMemory) SweepExpiredMemory(_ context.Context, now time.Time) ([]core.MemoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []core.MemoryEntry
	var expired []core.MemoryEntry
	for _, e := range m.memory {
		if e.Expired(now) {
			expired = append(expired, e)
			continue
		}
		kept = append(kept, e)
	}
	m.memory = kept
	return expired, nil
}

func (m *InMemory) CreateNotification(_ context.Context, n core.Notification) (core.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Type == "" {
		n.Type = "mention"
	}
	m.notifications[n.ID] = n
	return n, nil
}

func (m *InMemory) ListNotifications(_ context.Context, agentID string, unreadOnly bool) ([]core.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Notification
	for _, n := range m.notifications {
		if n.AgentID != agentID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > 50 {
		out = out[:50]
	}
	return out, nil
}

func (m *InMemory) MarkNotificationRead(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return false, fmt.Errorf("notification %q: %w", id, core.ErrNotFound)
	}
	if n.IsRead {
		return false, nil
	}
	n.IsRead = true
	m.notifications[id] = n
	return true, nil
}

func (m *InMemory) OpenSession(_ context.Context, sess core.Session) (core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.ConnectedAt.IsZero() {
		sess.ConnectedAt = time.Now().UTC()
	}
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *InMemory) CloseSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	sess.DisconnectedAt = &now
	m.sessions[sessionID] = sess
	return nil
}

func (m *InMemory) ActiveSessionsForAgent(_ context.Context, agentID string) ([]core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Session
	for _, s := range m.sessions {
		if s.AgentID == agentID && s.DisconnectedAt == nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *InMemory) Close() error { return nil }

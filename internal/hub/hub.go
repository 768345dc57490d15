// Package hub holds the in-process authoritative model: rooms, their
// present agents, message logs, and tasks, hydrated from storage.Store at
// boot and written through on every mutation.
package hub

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atriumhub/atrium/internal/core"
	"github.com/atriumhub/atrium/internal/names"
	"github.com/atriumhub/atrium/internal/storage"
)

// messageLogCap bounds how many recent messages a room keeps in memory;
// anything older is still retrievable from Store. A plain ring buffer is
// used instead of an LRU cache because eviction must follow insertion
// order, not recency of access.
const messageLogCap = 500

// room is the per-room state, guarded by its own lock so independent rooms
// never contend with each other.
type room struct {
	mu       sync.RWMutex
	name     string
	agentIDs map[string]struct{}
	messages []core.Message // capped ring, oldest first
	tasks    map[string]core.Task
}

func newRoom(name string) *room {
	return &room{
		name:     name,
		agentIDs: make(map[string]struct{}),
		tasks:    make(map[string]core.Task),
	}
}

func (r *room) appendMessage(msg core.Message) {
	r.messages = append(r.messages, msg)
	if len(r.messages) > messageLogCap {
		r.messages = r.messages[len(r.messages)-messageLogCap:]
	}
}

// Hub is the in-memory authoritative model. All mutation goes through its
// methods, which persist to Store before updating memory, per §5's
// "persist then publish" ordering rule.
type Hub struct {
	store storage.Store

	regMu  sync.RWMutex
	rooms  map[string]*room
	agents map[string]core.Agent // by agent id
}

// New creates a Hub backed by store. Call Hydrate before serving traffic.
func New(store storage.Store) *Hub {
	return &Hub{
		store:  store,
		rooms:  make(map[string]*room),
		agents: make(map[string]core.Agent),
	}
}

// Hydrate loads rooms, their message logs, their tasks and their non-offline
// agents from Store. Memories and notifications are read from Store per
// request.
func (h *Hub) Hydrate(ctx context.Context) error {
	rooms, err := h.store.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("hydrate rooms: %w", err)
	}
	for _, rm := range rooms {
		r := newRoom(rm.Name)
		msgs, err := h.store.ListMessages(ctx, rm.Name, time.Time{}, messageLogCap)
		if err != nil {
			return fmt.Errorf("hydrate messages for %q: %w", rm.Name, err)
		}
		r.messages = msgs
		tasks, err := h.store.ListTasks(ctx, rm.Name)
		if err != nil {
			return fmt.Errorf("hydrate tasks for %q: %w", rm.Name, err)
		}
		for _, t := range tasks {
			r.tasks[t.ID] = t
		}
		h.regMu.Lock()
		h.rooms[rm.Name] = r
		h.regMu.Unlock()

		agents, err := h.store.ListAgentsByRoom(ctx, rm.Name)
		if err != nil {
			return fmt.Errorf("hydrate agents for %q: %w", rm.Name, err)
		}
		for _, a := range agents {
			if a.Status == core.AgentOffline {
				continue
			}
			h.regMu.Lock()
			h.agents[a.ID] = a
			h.regMu.Unlock()
			r.mu.Lock()
			r.agentIDs[a.ID] = struct{}{}
			r.mu.Unlock()
		}
	}
	return nil
}

func (h *Hub) getOrCreateRoom(ctx context.Context, name string) (*room, error) {
	h.regMu.RLock()
	r, ok := h.rooms[name]
	h.regMu.RUnlock()
	if ok {
		return r, nil
	}

	h.regMu.Lock()
	defer h.regMu.Unlock()
	if r, ok := h.rooms[name]; ok {
		return r, nil
	}
	if _, err := h.store.UpsertRoom(ctx, core.Room{Name: name, CreatedAt: time.Now().UTC(), IsActive: true}); err != nil {
		return nil, fmt.Errorf("persist room %q: %w", name, err)
	}
	r = newRoom(name)
	h.rooms[name] = r
	return r, nil
}

// JoinRoom upserts room and agent, adds the agent to the room's present
// set, and appends a system "<name> joined" message. Idempotent on repeat
// calls with the same (agentID, roomName).
func (h *Hub) JoinRoom(ctx context.Context, roomName, agentID, agentName string, capabilities map[string]any) (core.Room, []core.Agent, error) {
	if agentName == "" {
		agentName = names.Generate()
	}
	r, err := h.getOrCreateRoom(ctx, roomName)
	if err != nil {
		return core.Room{}, nil, err
	}

	now := time.Now().UTC()
	agent := core.Agent{
		ID: agentID, Name: agentName, Room: roomName, Capabilities: capabilities,
		Status: core.AgentOnline, JoinedAt: now, LastActive: now,
	}
	h.regMu.RLock()
	if existing, ok := h.agents[agentID]; ok {
		agent.JoinedAt = existing.JoinedAt
	}
	h.regMu.RUnlock()

	if _, err := h.store.UpsertAgent(ctx, agent); err != nil {
		return core.Room{}, nil, fmt.Errorf("persist agent %q: %w", agentID, err)
	}

	h.regMu.Lock()
	h.agents[agentID] = agent
	h.regMu.Unlock()

	r.mu.Lock()
	_, alreadyPresent := r.agentIDs[agentID]
	r.agentIDs[agentID] = struct{}{}
	r.mu.Unlock()

	if !alreadyPresent {
		sysMsg := core.Message{
			Room: roomName, AgentName: "System", Content: agentName + " joined",
			Type: core.MessageSystem, Timestamp: time.Now().UTC(),
		}
		if _, err := h.AppendMessage(ctx, sysMsg); err != nil {
			return core.Room{}, nil, fmt.Errorf("append join message: %w", err)
		}
	}

	roomSnapshot, err := h.store.GetRoom(ctx, roomName)
	if err != nil {
		return core.Room{}, nil, fmt.Errorf("reload room %q: %w", roomName, err)
	}
	roster, err := h.ListAgents(ctx, roomName)
	if err != nil {
		return core.Room{}, nil, err
	}
	return roomSnapshot, roster, nil
}

// LeaveRoom marks the agent offline, retains its row in Store, and removes
// it from the room's present set so agentCount reflects the departure
// immediately.
func (h *Hub) LeaveRoom(ctx context.Context, agentID string) error {
	h.regMu.RLock()
	agent, ok := h.agents[agentID]
	h.regMu.RUnlock()
	if !ok {
		return fmt.Errorf("agent %q: %w", agentID, core.ErrNotFound)
	}

	agent.Status = core.AgentOffline
	if _, err := h.store.UpsertAgent(ctx, agent); err != nil {
		return fmt.Errorf("persist agent leave %q: %w", agentID, err)
	}

	h.regMu.Lock()
	delete(h.agents, agentID)
	h.regMu.Unlock()

	h.regMu.RLock()
	r, ok := h.rooms[agent.Room]
	h.regMu.RUnlock()
	if ok {
		r.mu.Lock()
		delete(r.agentIDs, agentID)
		r.mu.Unlock()

		sysMsg := core.Message{
			Room: agent.Room, AgentName: "System", Content: agent.Name + " left",
			Type: core.MessageSystem, Timestamp: time.Now().UTC(),
		}
		if _, err := h.AppendMessage(ctx, sysMsg); err != nil {
			return fmt.Errorf("append leave message: %w", err)
		}
	}
	return nil
}

// AppendMessage persists msg, then appends it to the room's in-memory log
// and refreshes the sender's lastActive, per the State invariant in §4.2.
func (h *Hub) AppendMessage(ctx context.Context, msg core.Message) (core.Message, error) {
	r, err := h.getOrCreateRoom(ctx, msg.Room)
	if err != nil {
		return core.Message{}, err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	saved, err := h.store.AppendMessage(ctx, msg)
	if err != nil {
		return core.Message{}, fmt.Errorf("persist message: %w", err)
	}

	r.mu.Lock()
	r.appendMessage(saved)
	r.mu.Unlock()

	if saved.AgentID != "" {
		h.regMu.Lock()
		if agent, ok := h.agents[saved.AgentID]; ok {
			agent.LastActive = saved.Timestamp
			h.agents[saved.AgentID] = agent
		}
		h.regMu.Unlock()
	}

	return saved, nil
}

// AppendTransientMessage appends msg to roomName's in-memory log without
// writing it to Store, for messages that only need to survive until the
// process restarts (for example the watcher's file_change notices).
func (h *Hub) AppendTransientMessage(ctx context.Context, msg core.Message) (core.Message, error) {
	r, err := h.getOrCreateRoom(ctx, msg.Room)
	if err != nil {
		return core.Message{}, err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	r.mu.Lock()
	r.appendMessage(msg)
	r.mu.Unlock()

	return msg, nil
}

// History returns the room's messages, optionally filtered to those after
// since, capped at limit (0 or negative falls back to the in-memory cap).
func (h *Hub) History(ctx context.Context, roomName string, since time.Time, limit int) ([]core.Message, error) {
	h.regMu.RLock()
	r, ok := h.rooms[roomName]
	h.regMu.RUnlock()
	if !ok {
		return nil, nil
	}

	r.mu.RLock()
	all := make([]core.Message, len(r.messages))
	copy(all, r.messages)
	r.mu.RUnlock()

	var out []core.Message
	for _, m := range all {
		if !since.IsZero() && !m.Timestamp.After(since) {
			continue
		}
		out = append(out, m)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// CreateTask persists and tracks a new task for roomName, status=todo.
func (h *Hub) CreateTask(ctx context.Context, task core.Task) (core.Task, error) {
	r, err := h.getOrCreateRoom(ctx, task.Room)
	if err != nil {
		return core.Task{}, err
	}
	if task.Status == "" {
		task.Status = core.TaskTodo
	}
	if task.Priority == "" {
		task.Priority = core.PriorityMedium
	}

	saved, err := h.store.UpsertTask(ctx, task)
	if err != nil {
		return core.Task{}, fmt.Errorf("persist task: %w", err)
	}

	r.mu.Lock()
	r.tasks[saved.ID] = saved
	r.mu.Unlock()
	return saved, nil
}

// UpdateTask merges partial fields into the task identified by id and
// refreshes updatedAt.
func (h *Hub) UpdateTask(ctx context.Context, id string, status *core.TaskStatus, assignee *string, priority *core.TaskPriority) (core.Task, error) {
	existing, err := h.store.GetTask(ctx, id)
	if err != nil {
		return core.Task{}, err
	}
	if status != nil {
		existing.Status = *status
	}
	if assignee != nil {
		existing.Assignee = *assignee
	}
	if priority != nil {
		existing.Priority = *priority
	}

	saved, err := h.store.UpsertTask(ctx, existing)
	if err != nil {
		return core.Task{}, fmt.Errorf("persist task update: %w", err)
	}

	h.regMu.RLock()
	r, ok := h.rooms[saved.Room]
	h.regMu.RUnlock()
	if ok {
		r.mu.Lock()
		r.tasks[saved.ID] = saved
		r.mu.Unlock()
	}
	return saved, nil
}

// ListTasks returns roomName's tasks from the in-memory index.
func (h *Hub) ListTasks(ctx context.Context, roomName string) ([]core.Task, error) {
	h.regMu.RLock()
	r, ok := h.rooms[roomName]
	h.regMu.RUnlock()
	if !ok {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// AgentByID looks up an agent by its globally unique id.
func (h *Hub) AgentByID(id string) (core.Agent, bool) {
	h.regMu.RLock()
	defer h.regMu.RUnlock()
	a, ok := h.agents[id]
	return a, ok
}

// AgentByName performs a linear scan for an agent by display name within
// roomName; §4.2 permits this given expected scale.
func (h *Hub) AgentByName(roomName, name string) (core.Agent, bool) {
	h.regMu.RLock()
	defer h.regMu.RUnlock()
	for _, a := range h.agents {
		if a.Room == roomName && a.Name == name {
			return a, true
		}
	}
	return core.Agent{}, false
}

// ListAgents returns the agents currently present in roomName.
func (h *Hub) ListAgents(ctx context.Context, roomName string) ([]core.Agent, error) {
	h.regMu.RLock()
	r, ok := h.rooms[roomName]
	h.regMu.RUnlock()
	if !ok {
		return nil, nil
	}

	r.mu.RLock()
	ids := make([]string, 0, len(r.agentIDs))
	for id := range r.agentIDs {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	h.regMu.RLock()
	out := make([]core.Agent, 0, len(ids))
	for _, id := range ids {
		if a, ok := h.agents[id]; ok {
			out = append(out, a)
		}
	}
	h.regMu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListRooms returns every known room with its live agentCount.
func (h *Hub) ListRooms(ctx context.Context) ([]core.Room, map[string]int, error) {
	rooms, err := h.store.ListRooms(ctx)
	if err != nil {
		return nil, nil, err
	}
	counts := make(map[string]int, len(rooms))
	for _, rm := range rooms {
		h.regMu.RLock()
		r, ok := h.rooms[rm.Name]
		h.regMu.RUnlock()
		if !ok {
			continue
		}
		r.mu.RLock()
		counts[rm.Name] = len(r.agentIDs)
		r.mu.RUnlock()
	}
	return rooms, counts, nil
}

// Stats gathers the totals and per-room summary used by the /api/stats
// endpoint.
func (h *Hub) Stats(ctx context.Context) (totalAgents, totalTasks int, perRoom []RoomStat, err error) {
	rooms, counts, err := h.ListRooms(ctx)
	if err != nil {
		return 0, 0, nil, err
	}
	perRoom = make([]RoomStat, 0, len(rooms))
	for _, rm := range rooms {
		h.regMu.RLock()
		r, ok := h.rooms[rm.Name]
		h.regMu.RUnlock()
		msgCount := 0
		if ok {
			r.mu.RLock()
			msgCount = len(r.messages)
			totalTasks += len(r.tasks)
			r.mu.RUnlock()
		}
		perRoom = append(perRoom, RoomStat{
			Name: rm.Name, AgentCount: counts[rm.Name], MessageCount: msgCount, IsActive: rm.IsActive,
		})
	}
	h.regMu.RLock()
	totalAgents = len(h.agents)
	h.regMu.RUnlock()
	return totalAgents, totalTasks, perRoom, nil
}

// ActiveRoomNames returns the names of every room with at least one
// present agent, the set the File watcher fans synthetic messages out to.
func (h *Hub) ActiveRoomNames() []string {
	h.regMu.RLock()
	defer h.regMu.RUnlock()
	var out []string
	for name, r := range h.rooms {
		r.mu.RLock()
		active := len(r.agentIDs) > 0
		r.mu.RUnlock()
		if active {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// RoomStat is one row of the /api/stats per-room breakdown.
type RoomStat struct {
	Name         string `json:"name"`
	AgentCount   int    `json:"agentCount"`
	MessageCount int    `json:"messageCount"`
	IsActive     bool   `json:"isActive"`
}

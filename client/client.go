// Package client provides a Go client for the Atrium coordination hub.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.HTTP = httpClient
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Room mirrors the hub's room entity.
type Room struct {
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"createdAt"`
	IsActive  bool           `json:"isActive"`
	Settings  map[string]any `json:"settings,omitempty"`
}

// Agent mirrors the hub's agent entity.
type Agent struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Room         string            `json:"room,omitempty"`
	Capabilities map[string]any    `json:"capabilities,omitempty"`
	Status       string            `json:"status"`
	JoinedAt     time.Time         `json:"joinedAt"`
	LastActive   time.Time         `json:"lastActive"`
	Connected    bool              `json:"connected"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Message mirrors one entry in a room's log.
type Message struct {
	ID        string         `json:"id"`
	Room      string         `json:"room"`
	AgentID   string         `json:"agentId,omitempty"`
	AgentName string         `json:"agentName"`
	Content   string         `json:"content"`
	Type      string         `json:"type"`
	Mentions  []string       `json:"mentions,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Task mirrors a unit of coordination work scoped to a room.
type Task struct {
	ID          string    `json:"id"`
	Room        string    `json:"room"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Assignee    string    `json:"assignee,omitempty"`
	Creator     string    `json:"creator"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MemoryEntry mirrors an opaque per-agent note, optionally time-boxed.
type MemoryEntry struct {
	ID        string     `json:"id"`
	AgentID   string     `json:"agentId"`
	Room      string     `json:"room,omitempty"`
	Key       string     `json:"key"`
	Value     string     `json:"value"`
	Type      string     `json:"type"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Notification mirrors a per-recipient record created by a resolved mention.
type Notification struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	Room      string    `json:"room"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// FSEntry mirrors one row of a shared-filesystem listing.
type FSEntry struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"sizeHuman"`
	IsDir     bool      `json:"isDir"`
	ModTime   time.Time `json:"modTime"`
}

// Stats mirrors the hub's aggregate counters.
type Stats struct {
	TotalRooms      int        `json:"totalRooms"`
	TotalAgents     int        `json:"totalAgents"`
	TotalTasks      int        `json:"totalTasks"`
	SharedDirectory string     `json:"sharedDirectory"`
	Rooms           []RoomStat `json:"rooms"`
}

// RoomStat is one room's entry in Stats.
type RoomStat struct {
	Name         string `json:"name"`
	AgentCount   int    `json:"agentCount"`
	MessageCount int    `json:"messageCount"`
	IsActive     bool   `json:"isActive"`
}

// JoinRoom registers an agent as present in room, creating the room if it
// does not exist yet.
func (c *Client) JoinRoom(ctx context.Context, room, agentID, agentName string, capabilities map[string]any) (Room, []Agent, error) {
	req := struct {
		AgentID      string         `json:"agentId"`
		AgentName    string         `json:"agentName"`
		Capabilities map[string]any `json:"capabilities,omitempty"`
	}{AgentID: agentID, AgentName: agentName, Capabilities: capabilities}

	var out struct {
		Success bool    `json:"success"`
		Room    Room    `json:"room"`
		Agents  []Agent `json:"agents"`
	}
	if err := c.postInto(ctx, "/api/join/"+url.PathEscape(room), req, &out); err != nil {
		return Room{}, nil, err
	}
	return out.Room, out.Agents, nil
}

// LeaveRoom removes agentID from its current room's roster.
func (c *Client) LeaveRoom(ctx context.Context, agentID string) error {
	return c.postInto(ctx, "/api/leave/"+url.PathEscape(agentID), nil, nil)
}

// ListRooms returns every room the hub knows about, with its current
// roster.
func (c *Client) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	var out struct {
		Rooms []RoomSummary `json:"rooms"`
	}
	if err := c.getInto(ctx, "/api/rooms", &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

// RoomSummary is one room's entry in a ListRooms response.
type RoomSummary struct {
	Name       string    `json:"name"`
	AgentCount int       `json:"agentCount"`
	Agents     []Agent   `json:"agents"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ListAgents returns the present roster of room.
func (c *Client) ListAgents(ctx context.Context, room string) ([]Agent, error) {
	var out struct {
		Agents []Agent `json:"agents"`
	}
	if err := c.getInto(ctx, "/api/agents/"+url.PathEscape(room), &out); err != nil {
		return nil, err
	}
	return out.Agents, nil
}

// Send posts a chat message as agentID into its current room, returning the
// persisted message id and the @mentions the hub resolved.
func (c *Client) Send(ctx context.Context, agentID, content string, metadata map[string]any) (string, []string, error) {
	req := struct {
		AgentID  string         `json:"agentId"`
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}{AgentID: agentID, Content: content, Metadata: metadata}

	var out struct {
		Success   bool     `json:"success"`
		MessageID string   `json:"messageId"`
		Mentions  []string `json:"mentions"`
	}
	if err := c.postInto(ctx, "/api/send", req, &out); err != nil {
		return "", nil, err
	}
	return out.MessageID, out.Mentions, nil
}

// History returns room's message log since the given time, up to limit
// entries (0 returns none; a negative or absent limit applies the hub's
// default).
func (c *Client) History(ctx context.Context, room string, since time.Time, limit int) ([]Message, error) {
	endpoint := "/api/messages/" + url.PathEscape(room)
	values := url.Values{}
	if !since.IsZero() {
		values.Set("since", since.Format(time.RFC3339Nano))
	}
	values.Set("limit", fmt.Sprintf("%d", limit))
	endpoint += "?" + values.Encode()

	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.getInto(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Broadcast posts a system-formatted message to every agent in room.
func (c *Client) Broadcast(ctx context.Context, room, from, content string) (string, error) {
	req := struct {
		Content string `json:"content"`
		From    string `json:"from,omitempty"`
	}{Content: content, From: from}

	var out struct {
		Success   bool   `json:"success"`
		MessageID string `json:"messageId"`
	}
	if err := c.postInto(ctx, "/api/broadcast/"+url.PathEscape(room), req, &out); err != nil {
		return "", err
	}
	return out.MessageID, nil
}

// CreateTask creates a task in room.
func (c *Client) CreateTask(ctx context.Context, room, title, description, assignee, creator, priority string) (Task, error) {
	req := struct {
		RoomName    string `json:"roomName"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Assignee    string `json:"assignee,omitempty"`
		Creator     string `json:"creator"`
		Priority    string `json:"priority,omitempty"`
	}{RoomName: room, Title: title, Description: description, Assignee: assignee, Creator: creator, Priority: priority}

	var out struct {
		Success bool `json:"success"`
		Task    Task `json:"task"`
	}
	if err := c.postInto(ctx, "/api/tasks", req, &out); err != nil {
		return Task{}, err
	}
	return out.Task, nil
}

// ListTasks returns every task in room.
func (c *Client) ListTasks(ctx context.Context, room string) ([]Task, error) {
	var out struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.getInto(ctx, "/api/tasks/"+url.PathEscape(room), &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// UpdateTask patches status, assignee, and/or priority on an existing task.
// A nil pointer leaves the corresponding field unchanged.
func (c *Client) UpdateTask(ctx context.Context, taskID string, status, assignee, priority *string) (Task, error) {
	req := struct {
		Status   *string `json:"status,omitempty"`
		Assignee *string `json:"assignee,omitempty"`
		Priority *string `json:"priority,omitempty"`
	}{Status: status, Assignee: assignee, Priority: priority}

	var out struct {
		Success bool `json:"success"`
		Task    Task `json:"task"`
	}
	if err := c.postInto(ctx, "/api/tasks/"+url.PathEscape(taskID)+"/update", req, &out); err != nil {
		return Task{}, err
	}
	return out.Task, nil
}

// StoreMemory upserts a memory entry for agentID. expiresIn, if non-nil, is
// seconds from now until the entry is logically gone.
func (c *Client) StoreMemory(ctx context.Context, agentID, key, value, typ string, expiresIn *int64) (MemoryEntry, error) {
	req := struct {
		Key       string `json:"key"`
		Value     string `json:"value"`
		Type      string `json:"type,omitempty"`
		ExpiresIn *int64 `json:"expiresIn,omitempty"`
	}{Key: key, Value: value, Type: typ, ExpiresIn: expiresIn}

	var out struct {
		Success bool        `json:"success"`
		Entry   MemoryEntry `json:"entry"`
	}
	if err := c.postInto(ctx, "/api/memory/"+url.PathEscape(agentID), req, &out); err != nil {
		return MemoryEntry{}, err
	}
	return out.Entry, nil
}

// GetMemory returns agentID's unexpired memory entries, optionally filtered
// by key and/or type.
func (c *Client) GetMemory(ctx context.Context, agentID, key, typ string) ([]MemoryEntry, error) {
	endpoint := "/api/memory/" + url.PathEscape(agentID)
	values := url.Values{}
	if key != "" {
		values.Set("key", key)
	}
	if typ != "" {
		values.Set("type", typ)
	}
	if len(values) > 0 {
		endpoint += "?" + values.Encode()
	}

	var out struct {
		Entries []MemoryEntry `json:"entries"`
	}
	if err := c.getInto(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// ListNotifications returns agentID's notifications, optionally limited to
// unread ones.
func (c *Client) ListNotifications(ctx context.Context, agentID string, unreadOnly bool) ([]Notification, error) {
	endpoint := "/api/notifications/" + url.PathEscape(agentID)
	if unreadOnly {
		endpoint += "?unreadOnly=true"
	}
	var out struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.getInto(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// MarkNotificationRead marks a notification read, reporting whether this
// call was the one that changed it.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) (bool, error) {
	var out struct {
		Success bool `json:"success"`
		Updated bool `json:"updated"`
	}
	if err := c.postInto(ctx, "/api/notifications/"+url.PathEscape(id)+"/read", nil, &out); err != nil {
		return false, err
	}
	return out.Updated, nil
}

// GetStats returns the hub's aggregate counters.
func (c *Client) GetStats(ctx context.Context) (Stats, error) {
	var out Stats
	if err := c.getInto(ctx, "/api/stats", &out); err != nil {
		return Stats{}, err
	}
	return out, nil
}

// FSRead returns the contents of path within the hub's shared directory.
func (c *Client) FSRead(ctx context.Context, path string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	values := url.Values{}
	values.Set("path", path)
	if err := c.getInto(ctx, "/api/fs/read?"+values.Encode(), &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// FSWrite writes content to path within the hub's shared directory,
// creating any missing parent directories.
func (c *Client) FSWrite(ctx context.Context, path, content string) error {
	req := struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}{Path: path, Content: content}
	return c.postInto(ctx, "/api/fs/write", req, nil)
}

// FSList lists entries under path, optionally filtered by a glob pattern.
func (c *Client) FSList(ctx context.Context, path, pattern string) ([]FSEntry, error) {
	values := url.Values{}
	values.Set("path", path)
	if pattern != "" {
		values.Set("pattern", pattern)
	}
	var out struct {
		Entries []FSEntry `json:"entries"`
	}
	if err := c.getInto(ctx, "/api/fs/list?"+values.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// FSDelete removes the file or directory at path within the hub's shared
// directory.
func (c *Client) FSDelete(ctx context.Context, path string) error {
	req := struct {
		Path string `json:"path"`
	}{Path: path}
	return c.postInto(ctx, "/api/fs/delete", req, nil)
}

func (c *Client) postInto(ctx context.Context, path string, payload, out any) error {
	var body bytes.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = *bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doInto(req, out)
}

func (c *Client) getInto(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.doInto(req, out)
}

func (c *Client) doInto(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("%s: %s", req.URL.Path, errBody.Error)
		}
		return fmt.Errorf("%s: status %d", req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

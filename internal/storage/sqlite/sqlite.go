// Package sqlite is the durable Store implementation: an embedded
// relational database file via the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/atriumhub/atrium/internal/core"
)

//go:embed schema.sql
var schema string

const timeFormat = time.RFC3339Nano

// Store is the sqlite-backed implementation of storage.Store.
type Store struct {
	db dbHandle
}

// New opens (creating if necessary) the database file at path and applies
// the schema.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: &queryLogger{inner: db}}, nil
}

// NewInMemory opens a transient in-process database, used by tests.
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: &queryLogger{inner: db}}, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) UpsertRoom(_ context.Context, room core.Room) (core.Room, error) {
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC()
	}
	settingsJSON, _ := json.Marshal(room.Settings)
	_, err := s.db.Exec(
		`INSERT INTO rooms (name, created_at, is_active, settings_json) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET is_active=excluded.is_active, settings_json=excluded.settings_json`,
		room.Name, room.CreatedAt.Format(timeFormat), boolToInt(room.IsActive), string(settingsJSON),
	)
	if err != nil {
		return core.Room{}, fmt.Errorf("upsert room: %w: %w", err, core.ErrStore)
	}
	return room, nil
}

func (s *Store) ListRooms(_ context.Context) ([]core.Room, error) {
	rows, err := s.db.Query(`SELECT name, created_at, is_active, settings_json FROM rooms ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w: %w", err, core.ErrStore)
	}
	defer rows.Close()
	var out []core.Room
	for rows.Next() {
		var name, createdAt, settingsJSON string
		var isActive int
		if err := rows.Scan(&name, &createdAt, &isActive, &settingsJSON); err != nil {
			return nil, fmt.Errorf("scan room: %w: %w", err, core.ErrStore)
		}
		room := core.Room{Name: name, IsActive: isActive != 0}
		room.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		_ = json.Unmarshal([]byte(settingsJSON), &room.Settings)
		out = append(out, room)
	}
	return out, rows.Err()
}

func (s *Store) GetRoom(_ context.Context, name string) (core.Room, error) {
	row := s.db.QueryRow(`SELECT name, created_at, is_active, settings_json FROM rooms WHERE name = ?`, name)
	var rname, createdAt, settingsJSON string
	var isActive int
	if err := row.Scan(&rname, &createdAt, &isActive, &settingsJSON); err != nil {
		if err == sql.ErrNoRows {
			return core.Room{}, fmt.Errorf("room %q: %w", name, core.ErrNotFound)
		}
		return core.Room{}, fmt.Errorf("get room: %w: %w", err, core.ErrStore)
	}
	room := core.Room{Name: rname, IsActive: isActive != 0}
	room.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	_ = json.Unmarshal([]byte(settingsJSON), &room.Settings)
	return room, nil
}

func (s *Store) UpsertAgent(_ context.Context, agent core.Agent) (core.Agent, error) {
	if agent.JoinedAt.IsZero() {
		agent.JoinedAt = time.Now().UTC()
	}
	if agent.LastActive.IsZero() {
		agent.LastActive = agent.JoinedAt
	}
	capsJSON, _ := json.Marshal(agent.Capabilities)
	metaJSON, _ := json.Marshal(agent.Metadata)
	_, err := s.db.Exec(
		`INSERT INTO agents (id, name, room, capabilities_json, status, joined_at, last_active, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, room=excluded.room, capabilities_json=excluded.capabilities_json,
		   status=excluded.status, last_active=excluded.last_active, metadata_json=excluded.metadata_json`,
		agent.ID, agent.Name, agent.Room, string(capsJSON), string(agent.Status),
		agent.JoinedAt.Format(timeFormat), agent.LastActive.Format(timeFormat), string(metaJSON),
	)
	if err != nil {
		return core.Agent{}, fmt.Errorf("upsert agent: %w: %w", err, core.ErrStore)
	}
	return agent, nil
}

func (s *Store) GetAgent(_ context.Context, id string) (core.Agent, error) {
	row := s.db.QueryRow(`SELECT id, name, room, capabilities_json, status, joined_at, last_active, metadata_json FROM agents WHERE id = ?`, id)
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return core.Agent{}, fmt.Errorf("agent %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Agent{}, fmt.Errorf("get agent: %w: %w", err, core.ErrStore)
	}
	return agent, nil
}

func (s *Store) ListAgentsByRoom(_ context.Context, room string) ([]core.Agent, error) {
	rows, err := s.db.Query(`SELECT id, name, room, capabilities_json, status, joined_at, last_active, metadata_json FROM agents WHERE room = ? ORDER BY id`, room)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w: %w", err, core.ErrStore)
	}
	defer rows.Close()
	var out []core.Agent
	for rows.Next() {
		agent, err := scanAgentRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w: %w", err, core.ErrStore)
		}
		out = append(out, agent)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(row scanner) (core.Agent, error)      { return scanAgentCommon(row) }
func scanAgentRows(rows scanner) (core.Agent, error) { return scanAgentCommon(rows) }

func scanAgentCommon(row scanner) (core.Agent, error) {
	var id, name, roomName, capsJSON, status, joinedAt, lastActive, metaJSON string
	if err := row.Scan(&id, &name, &roomName, &capsJSON, &status, &joinedAt, &lastActive, &metaJSON); err != nil {
		return core.Agent{}, err
	}
	agent := core.Agent{ID: id, Name: name, Room: roomName, Status: core.AgentStatus(status)}
	agent.JoinedAt, _ = time.Parse(timeFormat, joinedAt)
	agent.LastActive, _ = time.Parse(timeFormat, lastActive)
	_ = json.Unmarshal([]byte(capsJSON), &agent.Capabilities)
	_ = json.Unmarshal([]byte(metaJSON), &agent.Metadata)
	return agent, nil
}

func (s *Store) AppendMessage(_ context.Context, msg core.Message) (core.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	mentionsJSON, _ := json.Marshal(msg.Mentions)
	metaJSON, _ := json.Marshal(msg.Metadata)
	_, err := s.db.Exec(
		`INSERT INTO messages (id, room, agent_id, agent_name, content, type, mentions_json, metadata_json, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Room, msg.AgentID, msg.AgentName, msg.Content, string(msg.Type), string(mentionsJSON), string(metaJSON), msg.Timestamp.Format(timeFormat),
	)
	if err != nil {
		return core.Message{}, fmt.Errorf("append message: %w: %w", err, core.ErrStore)
	}
	return msg, nil
}

func (s *Store) ListMessages(_ context.Context, room string, since time.Time, limit int) ([]core.Message, error) {
	query := `SELECT id, room, agent_id, agent_name, content, type, mentions_json, metadata_json, timestamp
	          FROM messages WHERE room = ?`
	args := []any{room}
	if !since.IsZero() {
		query += ` AND timestamp > ?`
		args = append(args, since.Format(timeFormat))
	}
	query += ` ORDER BY timestamp ASC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w: %w", err, core.ErrStore)
	}
	defer rows.Close()
	var out []core.Message
	for rows.Next() {
		var id, roomName, agentID, agentName, content, typ, mentionsJSON, metaJSON, ts string
		if err := rows.Scan(&id, &roomName, &agentID, &agentName, &content, &typ, &mentionsJSON, &metaJSON, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w: %w", err, core.ErrStore)
		}
		msg := core.Message{ID: id, Room: roomName, AgentID: agentID, AgentName: agentName, Content: content, Type: core.MessageType(typ)}
		msg.Timestamp, _ = time.Parse(timeFormat, ts)
		_ = json.Unmarshal([]byte(mentionsJSON), &msg.Mentions)
		_ = json.Unmarshal([]byte(metaJSON), &msg.Metadata)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w: %w", err, core.ErrStore)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *Store) UpsertTask(_ context.Context, task core.Task) (core.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, room, title, description, assignee, creator, priority, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, description=excluded.description, assignee=excluded.assignee,
		   priority=excluded.priority, status=excluded.status, updated_at=excluded.updated_at`,
		task.ID, task.Room, task.Title, task.Description, task.Assignee, task.Creator,
		string(task.Priority), string(task.Status), task.CreatedAt.Format(timeFormat), task.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return core.Task{}, fmt.Errorf("upsert task: %w: %w", err, core.ErrStore)
	}
	return task, nil
}

func (s *Store) GetTask(_ context.Context, id string) (core.Task, error) {
	row := s.db.QueryRow(`SELECT id, room, title, description, assignee, creator, priority, status, created_at, updated_at FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return core.Task{}, fmt.Errorf("task %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Task{}, fmt.Errorf("get task: %w: %w", err, core.ErrStore)
	}
	return task, nil
}

func (s *Store) ListTasks(_ context.Context, room string) ([]core.Task, error) {
	rows, err := s.db.Query(`SELECT id, room, title, description, assignee, creator, priority, status, created_at, updated_at FROM tasks WHERE room = ? ORDER BY created_at`, room)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w: %w", err, core.ErrStore)
	}
	defer rows.Close()
	var out []core.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w: %w", err, core.ErrStore)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func scanTask(row scanner) (core.Task, error) {
	var id, room, title, description, assignee, creator, priority, status, createdAt, updatedAt string
	if err := row.Scan(&id, &room, &title, &description, &assignee, &creator, &priority, &status, &createdAt, &updatedAt); err != nil {
		return core.Task{}, err
	}
	task := core.Task{
		ID: id, Room: room, Title: title, Description: description, Assignee: assignee, Creator: creator,
		Priority: core.TaskPriority(priority), Status: core.TaskStatus(status),
	}
	task.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	task.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	return task, nil
}

func (s *Store) UpsertMemory(_ context.Context, entry core.MemoryEntry) (core.MemoryEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Type == "" {
		entry.Type = "note"
	}
	var expiresAt sql.NullString
	if entry.ExpiresAt != nil {
		expiresAt = sql.NullString{String: entry.ExpiresAt.Format(timeFormat), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO agent_memory (id, agent_id, room, key, value, type, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET value=excluded.value, type=excluded.type, expires_at=excluded.expires_at`,
		entry.ID, entry.AgentID, entry.Room, entry.Key, entry.Value, entry.Type, entry.CreatedAt.Format(timeFormat), expiresAt,
	)
	if err != nil {
		return core.MemoryEntry{}, fmt.Errorf("upsert memory: %w: %w", err, core.ErrStore)
	}
	return entry, nil
}

func (s *Store) ListMemory(_ context.Context, agentID, key, typ string, now time.Time) ([]core.MemoryEntry, error) {
	query := `SELECT id, agent_id, room, key, value, type, created_at, expires_at FROM agent_memory
	          WHERE agent_id = ? AND (expires_at IS NULL OR expires_at > ?)`
	args := []any{agentID, now.Format(timeFormat)}
	if key != "" {
		query += ` AND key = ?`
		args = append(args, key)
	}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memory: %w: %w", err, core.ErrStore)
	}
	defer rows.Close()
	var out []core.MemoryEntry
	for rows.Next() {
		entry, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w: %w", err, core.ErrStore)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) SweepExpiredMemory(_ context.Context, now time.Time) ([]core.MemoryEntry, error) {
	rows, err := s.db.Query(`SELECT id, agent_id, room, key, value, type, created_at, expires_at FROM agent_memory WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("sweep query: %w: %w", err, core.ErrStore)
	}
	var expired []core.MemoryEntry
	for rows.Next() {
		entry, err := scanMemory(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expired memory: %w: %w", err, core.ErrStore)
		}
		expired = append(expired, entry)
	}
	rows.Close()
	if len(expired) == 0 {
		return nil, nil
	}
	if _, err := s.db.Exec(`DELETE FROM agent_memory WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.Format(timeFormat)); err != nil {
		return nil, fmt.Errorf("sweep delete: %w: %w", err, core.ErrStore)
	}
	return expired, nil
}

func scanMemory(row scanner) (core.MemoryEntry, error) {
	var id, agentID, room, key, value, typ, createdAt string
	var expiresAt sql.NullString
	if err := row.Scan(&id, &agentID, &room, &key, &value, &typ, &createdAt, &expiresAt); err != nil {
		return core.MemoryEntry{}, err
	}
	entry := core.MemoryEntry{ID: id, AgentID: agentID, Room: room, Key: key, Value: value, Type: typ}
	entry.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	if expiresAt.Valid {
		t, _ := time.Parse(timeFormat, expiresAt.String)
		entry.ExpiresAt = &t
	}
	return entry, nil
}

func (s *Store) CreateNotification(_ context.Context, n core.Notification) (core.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Type == "" {
		n.Type = "mention"
	}
	_, err := s.db.Exec(
		`INSERT INTO notifications (id, agent_id, room, message, type, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.AgentID, n.Room, n.Message, n.Type, boolToInt(n.IsRead), n.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return core.Notification{}, fmt.Errorf("create notification: %w: %w", err, core.ErrStore)
	}
	return n, nil
}

func (s *Store) ListNotifications(_ context.Context, agentID string, unreadOnly bool) ([]core.Notification, error) {
	query := `SELECT id, agent_id, room, message, type, is_read, created_at FROM notifications WHERE agent_id = ?`
	args := []any{agentID}
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC LIMIT 50`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w: %w", err, core.ErrStore)
	}
	defer rows.Close()
	var out []core.Notification
	for rows.Next() {
		var id, aid, room, message, typ, createdAt string
		var isRead int
		if err := rows.Scan(&id, &aid, &room, &message, &typ, &isRead, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w: %w", err, core.ErrStore)
		}
		n := core.Notification{ID: id, AgentID: aid, Room: room, Message: message, Type: typ, IsRead: isRead != 0}
		n.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) (bool, error) {
	res, err := s.db.Exec(`UPDATE notifications SET is_read = 1 WHERE id = ? AND is_read = 0`, id)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w: %w", err, core.ErrStore)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w: %w", err, core.ErrStore)
	}
	return n > 0, nil
}

func (s *Store) OpenSession(_ context.Context, sess core.Session) (core.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.ConnectedAt.IsZero() {
		sess.ConnectedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO sessions (id, agent_id, room, connected_at) VALUES (?, ?, ?, ?)`,
		sess.ID, sess.AgentID, sess.Room, sess.ConnectedAt.Format(timeFormat))
	if err != nil {
		return core.Session{}, fmt.Errorf("open session: %w: %w", err, core.ErrStore)
	}
	return sess, nil
}

func (s *Store) CloseSession(_ context.Context, sessionID string) error {
	_, err := s.db.Exec(`UPDATE sessions SET disconnected_at = ? WHERE id = ?`, time.Now().UTC().Format(timeFormat), sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w: %w", err, core.ErrStore)
	}
	return nil
}

func (s *Store) ActiveSessionsForAgent(_ context.Context, agentID string) ([]core.Session, error) {
	rows, err := s.db.Query(`SELECT id, agent_id, room, connected_at FROM sessions WHERE agent_id = ? AND disconnected_at IS NULL`, agentID)
	if err != nil {
		return nil, fmt.Errorf("active sessions: %w: %w", err, core.ErrStore)
	}
	defer rows.Close()
	var out []core.Session
	for rows.Next() {
		var id, agentIDCol, room, connectedAt string
		if err := rows.Scan(&id, &agentIDCol, &room, &connectedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w: %w", err, core.ErrStore)
		}
		sess := core.Session{ID: id, AgentID: agentIDCol, Room: room}
		sess.ConnectedAt, _ = time.Parse(timeFormat, connectedAt)
		out = append(out, sess)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

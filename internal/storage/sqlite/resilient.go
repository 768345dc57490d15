package sqlite

import (
	"context"
	"time"

	"github.com/atriumhub/atrium/internal/core"
	"github.com/atriumhub/atrium/internal/storage"
)

// ResilientStore wraps a storage.Store with a circuit breaker and
// retry-on-lock, so that transient sqlite contention doesn't surface as a
// hard failure to internal/hub.
type ResilientStore struct {
	inner storage.Store
	cb    *CircuitBreaker
}

// NewResilientStore wraps inner with a circuit breaker (5 failures trips it,
// 10s before it probes half-open) and database-is-locked retry.
func NewResilientStore(inner storage.Store) *ResilientStore {
	return &ResilientStore{
		inner: inner,
		cb:    NewCircuitBreaker(5, 10*time.Second),
	}
}

// OnStateChange exposes the underlying breaker's hook so callers can log trips.
func (r *ResilientStore) OnStateChange(fn func(from, to BreakerState)) {
	r.cb.OnStateChange(fn)
}

func (r *ResilientStore) Close() error { return r.inner.Close() }

func (r *ResilientStore) UpsertRoom(ctx context.Context, room core.Room) (core.Room, error) {
	var out core.Room
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.UpsertRoom(ctx, room)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) ListRooms(ctx context.Context) ([]core.Room, error) {
	var out []core.Room
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.ListRooms(ctx)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) GetRoom(ctx context.Context, name string) (core.Room, error) {
	var out core.Room
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.GetRoom(ctx, name)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) UpsertAgent(ctx context.Context, agent core.Agent) (core.Agent, error) {
	var out core.Agent
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.UpsertAgent(ctx, agent)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) GetAgent(ctx context.Context, id string) (core.Agent, error) {
	var out core.Agent
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.GetAgent(ctx, id)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) ListAgentsByRoom(ctx context.Context, room string) ([]core.Agent, error) {
	var out []core.Agent
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.ListAgentsByRoom(ctx, room)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) AppendMessage(ctx context.Context, msg core.Message) (core.Message, error) {
	var out core.Message
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.AppendMessage(ctx, msg)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) ListMessages(ctx context.Context, room string, since time.Time, limit int) ([]core.Message, error) {
	var out []core.Message
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.ListMessages(ctx, room, since, limit)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) UpsertTask(ctx context.Context, task core.Task) (core.Task, error) {
	var out core.Task
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.UpsertTask(ctx, task)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) GetTask(ctx context.Context, id string) (core.Task, error) {
	var out core.Task
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.GetTask(ctx, id)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) ListTasks(ctx context.Context, room string) ([]core.Task, error) {
	var out []core.Task
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.ListTasks(ctx, room)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) UpsertMemory(ctx context.Context, entry core.MemoryEntry) (core.MemoryEntry, error) {
	var out core.MemoryEntry
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.UpsertMemory(ctx, entry)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) ListMemory(ctx context.Context, agentID, key, typ string, now time.Time) ([]core.MemoryEntry, error) {
	var out []core.MemoryEntry
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.ListMemory(ctx, agentID, key, typ, now)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) SweepExpiredMemory(ctx context.Context, now time.Time) ([]core.MemoryEntry, error) {
	var out []core.MemoryEntry
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.SweepExpiredMemory(ctx, now)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	var out core.Notification
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.CreateNotification(ctx, n)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) ListNotifications(ctx context.Context, agentID string, unreadOnly bool) ([]core.Notification, error) {
	var out []core.Notification
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.ListNotifications(ctx, agentID, unreadOnly)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) MarkNotificationRead(ctx context.Context, id string) (bool, error) {
	var out bool
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.MarkNotificationRead(ctx, id)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) OpenSession(ctx context.Context, sess core.Session) (core.Session, error) {
	var out core.Session
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.OpenSession(ctx, sess)
			return e
		})
	})
	return out, err
}

func (r *ResilientStore) CloseSession(ctx context.Context, sessionID string) error {
	return r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			return r.inner.CloseSession(ctx, sessionID)
		})
	})
}

func (r *ResilientStore) ActiveSessionsForAgent(ctx context.Context, agentID string) ([]core.Session, error) {
	var out []core.Session
	err := r.cb.Execute(func() error {
		return RetryOnDBLock(ctx, func() error {
			var e error
			out, e = r.inner.ActiveSessionsForAgent(ctx, agentID)
			return e
		})
	})
	return out, err
}

package sqlite

import (
	"context"
	"log"
	"time"

	"github.com/atriumhub/atrium/internal/core"
	"github.com/atriumhub/atrium/internal/storage"
)

// Broadcaster is the interface for emitting housekeeping events to connected
// push sessions.
type Broadcaster interface {
	PublishToAgent(agentID string, event core.Event)
}

// Sweeper runs a background goroutine that periodically deletes expired
// agent_memory rows and notifies the owning agent of each one removed.
type Sweeper struct {
	store    storage.Store
	bus      Broadcaster
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a new Sweeper. Call Start() to begin sweeping.
func NewSweeper(store storage.Store, bus Broadcaster, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		bus:      bus,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep goroutine.
func (sw *Sweeper) Start(ctx context.Context) {
	ctx, sw.cancel = context.WithCancel(ctx)

	go func() {
		defer close(sw.done)

		sw.runSweep(ctx)

		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sw.runSweep(ctx)
			}
		}
	}()
}

// Stop cancels the sweep goroutine and waits for it to finish.
func (sw *Sweeper) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	<-sw.done
}

func (sw *Sweeper) runSweep(ctx context.Context) {
	expired, err := sw.store.SweepExpiredMemory(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("sweeper: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	log.Printf("sweeper: expired %d memory entr(y/ies)", len(expired))

	if sw.bus == nil {
		return
	}
	for _, e := range expired {
		sw.bus.PublishToAgent(e.AgentID, core.Event{
			Kind: core.EventNotification,
			Room: e.Room,
			Notification: &core.Notification{
				AgentID: e.AgentID,
				Room:    e.Room,
				Message: "memory entry \"" + e.Key + "\" expired",
				Type:    "memory_expired",
			},
		})
	}
}

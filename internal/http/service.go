// Package httpapi is the request/response surface (§4.8): one handler file
// per concern, each a thin wrapper over the Hub/Notifier/Bus/SharedFS the
// Service holds.
package httpapi

import (
	"time"

	"github.com/atriumhub/atrium/internal/bus"
	"github.com/atriumhub/atrium/internal/hub"
	"github.com/atriumhub/atrium/internal/notify"
	"github.com/atriumhub/atrium/internal/sharedfs"
	"github.com/atriumhub/atrium/internal/storage"
)

// Service holds every dependency a handler needs. Constructed once at
// startup and shared across all requests.
type Service struct {
	hub       *hub.Hub
	store     storage.Store
	notify    *notify.Notifier
	bus       *bus.Bus
	fs        *sharedfs.FS
	sharedDir string
	startedAt time.Time
}

// New creates a Service. fs may be nil if the shared filesystem is disabled.
func New(h *hub.Hub, store storage.Store, n *notify.Notifier, b *bus.Bus, fs *sharedfs.FS, sharedDir string) *Service {
	return &Service{hub: h, store: store, notify: n, bus: b, fs: fs, sharedDir: sharedDir, startedAt: time.Now().UTC()}
}

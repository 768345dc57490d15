// Package embedded provides an embeddable Atrium hub for in-process use,
// for host applications that want a coordination hub without a separate
// daemon process.
package embedded

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/atriumhub/atrium/internal/bus"
	httpapi "github.com/atriumhub/atrium/internal/http"
	"github.com/atriumhub/atrium/internal/hub"
	"github.com/atriumhub/atrium/internal/logging"
	"github.com/atriumhub/atrium/internal/notify"
	"github.com/atriumhub/atrium/internal/server"
	"github.com/atriumhub/atrium/internal/sharedfs"
	"github.com/atriumhub/atrium/internal/storage/sqlite"
	"github.com/atriumhub/atrium/internal/watch"
	"github.com/atriumhub/atrium/internal/ws"
)

// Config configures the embedded hub.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// If empty, defaults to ~/.atrium/data.db
	DBPath string

	// SharedDir is the sandboxed directory agents read/write/watch through.
	// If empty, defaults to ~/.atrium/shared.
	SharedDir string

	// Port is the HTTP port to listen on.
	// If 0, defaults to 7338.
	Port int

	// Host is the host to bind to.
	// If empty, defaults to localhost (127.0.0.1).
	Host string

	// SweepInterval controls how often expired agent memory is swept.
	// If zero, defaults to 60s.
	SweepInterval time.Duration
}

// Server is an embedded Atrium hub: store, in-memory model, push gateway
// and file watcher, fronted by one HTTP server.
type Server struct {
	cfg     Config
	store   *sqlite.Store
	hub     *hub.Hub
	bus     *bus.Bus
	sweeper *sqlite.Sweeper
	watcher *watch.Watcher
	srv     *server.Server
	started bool
	mu      sync.Mutex
}

// New creates a new embedded hub. Call Start to begin serving.
func New(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".atrium", "data.db")
	}
	if cfg.SharedDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		cfg.SharedDir = filepath.Join(home, ".atrium", "shared")
	}
	if cfg.Port == 0 {
		cfg.Port = 7338
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	h := hub.New(store)
	if err := h.Hydrate(context.Background()); err != nil {
		store.Close()
		return nil, fmt.Errorf("hydrate hub: %w", err)
	}

	b := bus.New()
	n := notify.New(store, h, b)
	log := logging.New(logging.LevelInfo)

	fs, err := sharedfs.New(cfg.SharedDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init shared dir: %w", err)
	}

	watcher, err := watch.New(cfg.SharedDir, b, h, h, nil)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init file watcher: %w", err)
	}

	gateway := ws.New(b, store, nil, log)
	svc := httpapi.New(h, store, n, b, fs, cfg.SharedDir)
	router := httpapi.NewRouter(svc, gateway.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	httpSrv, err := server.New(server.Config{Addr: addr, Handler: router})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	sweeper := sqlite.NewSweeper(store, b, cfg.SweepInterval)

	return &Server{
		cfg:     cfg,
		store:   store,
		hub:     h,
		bus:     b,
		sweeper: sweeper,
		watcher: watcher,
		srv:     httpSrv,
	}, nil
}

// Start starts the embedded hub's background workers and HTTP server.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	ctx := context.Background()
	s.sweeper.Start(ctx)
	s.watcher.Start(ctx)

	go func() {
		if err := s.srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "atrium hub error: %v\n", err)
		}
	}()

	time.Sleep(50 * time.Millisecond)
	return nil
}

// Stop stops the embedded hub gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.watcher.Stop()
	s.sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return err
	}
	return s.store.Close()
}

// Addr returns the hub's configured host:port.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// URL returns the base URL for the hub.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s", s.Addr())
}

// Store returns the underlying store for direct access if needed.
func (s *Server) Store() *sqlite.Store {
	return s.store
}

// Hub returns the in-memory authoritative model for direct access if needed.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atriumhub/atrium/internal/bus"
	"github.com/atriumhub/atrium/internal/config"
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

func newServeCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Atrium hub: HTTP API, push sessions, and the shared file watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			log := logging.New(logging.ParseLevel(cfg.LogLevel))

			dbPath := filepath.Join(cfg.DataDir, "atrium.db")
			inner, err := sqlite.New(dbPath)
			if err != nil {
				return fmt.Errorf("open store %q: %w", dbPath, err)
			}
			store := sqlite.NewResilientStore(inner)
			store.OnStateChange(func(from, to sqlite.BreakerState) {
				log.Warnf(logging.Op("", "", "circuit_breaker"), "store circuit %s -> %s", from, to)
			})
			defer store.Close()

			h := hub.New(store)
			ctx := cmd.Context()
			if err := h.Hydrate(ctx); err != nil {
				return fmt.Errorf("hydrate hub: %w", err)
			}

			b := bus.New()
			n := notify.New(store, h, b)

			fs, err := sharedfs.New(cfg.SharedDir)
			if err != nil {
				return fmt.Errorf("open shared dir %q: %w", cfg.SharedDir, err)
			}

			watcher, err := watch.New(cfg.SharedDir, b, h, h, cfg.Settings.WatcherIgnoreGlobs)
			if err != nil {
				return fmt.Errorf("start watcher on %q: %w", cfg.SharedDir, err)
			}
			watcher.Start(ctx)
			defer watcher.Stop()

			sweeper := sqlite.NewSweeper(store, b, cfg.Settings.SweepInterval)
			sweeper.Start(ctx)
			defer sweeper.Stop()

			gateway := ws.New(b, store, nil, log)
			svc := httpapi.New(h, store, n, b, fs, cfg.SharedDir)
			router := httpapi.NewRouter(svc, gateway.Handler())

			addr := fmt.Sprintf(":%d", cfg.Port)
			srv, err := server.New(server.Config{Addr: addr, SocketPath: socketPath, Handler: router})
			if err != nil {
				return fmt.Errorf("init http server: %w", err)
			}

			log.Infof(logging.Op("", "", "serve"), "listening on %s", addr)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-sigCtx.Done():
				log.Infof(logging.Op("", "", "serve"), "shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "optional unix socket path to also listen on")
	return cmd
}

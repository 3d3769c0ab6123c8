package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/synapse/internal/config"
	"github.com/alfredjeanlab/synapse/internal/engine"
	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/graph"
	"github.com/alfredjeanlab/synapse/internal/hooks"
	"github.com/alfredjeanlab/synapse/internal/presence"
	"github.com/alfredjeanlab/synapse/internal/server"
	"github.com/alfredjeanlab/synapse/internal/store"
	"github.com/alfredjeanlab/synapse/internal/store/file"
	"github.com/alfredjeanlab/synapse/internal/store/memory"
	"github.com/alfredjeanlab/synapse/internal/store/postgres"
	"github.com/alfredjeanlab/synapse/internal/store/s3"
	"github.com/alfredjeanlab/synapse/internal/store/sqlite"
	synsync "github.com/alfredjeanlab/synapse/internal/sync"
	"github.com/alfredjeanlab/synapse/internal/tabs/playwright"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the engine with its HTTP and gRPC servers",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// The server is the engine; there is nothing to dial.
	PersistentPreRunE: skipConnect,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := context.Background()

		// Optional in-process NATS server.
		var ns *natsserver.Server
		if port, _ := cmd.Flags().GetInt("embed-nats"); port != 0 {
			ns, err = startEmbeddedNATS(port)
			if err != nil {
				return err
			}
			cfg.NATSURL = ns.ClientURL()
			logger.Info("embedded NATS started", "url", cfg.NATSURL)
		}

		backend, err := openBackend(ctx, cfg)
		if err != nil {
			shutdownNATS(ns)
			return err
		}
		st := store.New(backend)
		logger.Info("graph store opened", "store", cfg.Store)

		// Event fan-out: in-process hub for SSE/WebSocket, plus NATS when set.
		hub := server.NewHub(logger)
		publisher := events.NewMultiPublisher(hub)
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL, cfg.NATSPrefix)
			if err != nil {
				_ = publisher.Close()
				st.Close()
				shutdownNATS(ns)
				return err
			}
			publisher.Add(pub)
			logger.Info("NATS events enabled", "nats_url", cfg.NATSURL, "prefix", cfg.NATSPrefix)
		} else {
			logger.Info("NATS events disabled (SYNAPSE_NATS_URL not set)")
		}

		mgr, err := graph.Open(ctx, st, graph.Options{Publisher: publisher, Logger: logger})
		if err != nil {
			_ = publisher.Close()
			st.Close()
			shutdownNATS(ns)
			return err
		}

		factory, err := playwright.NewFactory(playwright.Options{
			Headless: cfg.Headless,
			Install:  cfg.InstallBrowser,
			Logger:   logger,
		})
		if err != nil {
			_ = publisher.Close()
			st.Close()
			shutdownNATS(ns)
			return err
		}

		eng := engine.New(mgr, factory, engine.Options{
			Publisher:         publisher,
			Logger:            logger,
			PositionDebounce:  cfg.PositionDebounce,
			RetentionInterval: cfg.CleanupInterval,
			Retention:         cfg.Retention,
		})
		if err := eng.Start(ctx); err != nil {
			_ = factory.Close()
			_ = publisher.Close()
			st.Close()
			shutdownNATS(ns)
			return err
		}

		tracker := presence.New(logger)
		tracker.StartReaper(&presence.ReaperConfig{
			DeadThreshold: cfg.WindowTimeout,
			OnDead: func(windowID, sessionID string) {
				if err := eng.DetachWindow(context.Background(), windowID); err != nil {
					logger.Warn("failed to detach idle window", "window_id", windowID, "error", err)
				}
			},
		})

		srv := server.New(eng, hub, server.Options{Logger: logger, Presence: tracker})
		grpcServer := server.NewGRPCServer(srv)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			tracker.Stop()
			_ = eng.Stop(ctx)
			_ = factory.Close()
			_ = publisher.Close()
			st.Close()
			shutdownNATS(ns)
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startSync(ctx, cfg, eng, logger)

		hookCtx, stopHooks := context.WithCancel(ctx)
		defer stopHooks()
		hookDone := startHooks(hookCtx, cfg, hub, logger)

		logger.Info("synapse engine started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"data_dir", cfg.DataDir,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}
		tracker.Stop()
		stopHooks()
		<-hookDone

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Closing the hub ends open event streams so Shutdown can finish.
		_ = hub.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := eng.Stop(shutdownCtx); err != nil {
			logger.Error("engine stop error", "err", err)
		}
		// One last export with the positions flushed by Stop.
		if scheduler != nil {
			if err := scheduler.SyncNow(shutdownCtx); err != nil {
				logger.Error("final sync failed", "err", err)
			}
		}
		if err := factory.Close(); err != nil {
			logger.Error("error closing browser", "err", err)
		}
		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}
		shutdownNATS(ns)

		logger.Info("shutdown complete")
		return nil
	},
}

// openBackend picks the storage backend named by cfg.Store.
func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreFile:
		return file.New(cfg.GraphFile())
	case config.StoreSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return sqlite.New(cfg.SQLitePath())
	case config.StorePostgres:
		return postgres.New(cfg.DatabaseURL)
	case config.StoreS3:
		return s3.New(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3Endpoint)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// startSync starts the backup scheduler when an interval and at least one
// destination are configured.
func startSync(ctx context.Context, cfg *config.Config, src synsync.SnapshotSource, logger *slog.Logger) *synsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}
	var dests []synsync.Destination
	if cfg.SyncS3Bucket != "" {
		d, err := synsync.NewS3Destination(ctx, cfg.SyncS3Bucket, cfg.SyncS3Key, cfg.SyncS3Region, cfg.SyncS3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("sync destination enabled", "destination", d.String())
		}
	}
	if cfg.SyncGitRepo != "" {
		d := synsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch)
		dests = append(dests, d)
		logger.Info("sync destination enabled", "destination", d.String())
	}
	if len(dests) == 0 {
		logger.Warn("sync interval set but no destinations configured")
		return nil
	}
	s := synsync.NewScheduler(src, dests, cfg.SyncInterval, logger)
	s.Start()
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return s
}

func startEmbeddedNATS(port int) (*natsserver.Server, error) {
	if port < 0 {
		port = natsserver.RANDOM_PORT
	}
	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("embedded NATS: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS not ready")
	}
	return ns, nil
}

func shutdownNATS(ns *natsserver.Server) {
	if ns != nil {
		ns.Shutdown()
	}
}

func init() {
	serveCmd.Flags().Bool("debug", false, "log at debug level")
	serveCmd.Flags().Int("embed-nats", 0, "run an in-process NATS server on this port (-1 picks a free port)")
}

// startHooks runs the configured event hooks off the in-process hub. The
// returned channel closes once the runner has stopped.
func startHooks(ctx context.Context, cfg *config.Config, sub events.Subscriber, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	hs := make([]hooks.Hook, 0, len(cfg.Hooks))
	for _, h := range cfg.Hooks {
		hs = append(hs, hooks.Hook{Topic: h.Topic, Command: h.Command, Timeout: h.Timeout, Dir: h.Dir})
	}
	runner := hooks.NewRunner(hs, logger)
	if runner.Len() == 0 {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		if err := runner.Run(ctx, sub); err != nil {
			logger.Error("event hooks stopped", "err", err)
		}
	}()
	return done
}

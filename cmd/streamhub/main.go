package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/streamhub/internal/api"
	"github.com/your-org/streamhub/internal/api/ws"
	"github.com/your-org/streamhub/internal/config"
	"github.com/your-org/streamhub/internal/events"
	"github.com/your-org/streamhub/internal/ffmpeg"
	"github.com/your-org/streamhub/internal/loop"
	"github.com/your-org/streamhub/internal/media"
	"github.com/your-org/streamhub/internal/observability"
	"github.com/your-org/streamhub/internal/queue"
	"github.com/your-org/streamhub/internal/registry"
	"github.com/your-org/streamhub/internal/scheduler"
	"github.com/your-org/streamhub/internal/storage"
	"github.com/your-org/streamhub/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting streamhub", "port", cfg.Server.Port)

	for _, dir := range []string{cfg.Media.UploadDir, cfg.Media.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("create media directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Optional media archive
	var archive *storage.ArchiveStore
	if cfg.Archive.Enabled() {
		archive, err = storage.NewArchiveStore(cfg.Archive)
		if err != nil {
			slog.Error("connect to archive", "error", err)
			os.Exit(1)
		}
		if err := archive.EnsureBucket(context.Background()); err != nil {
			slog.Warn("ensure archive bucket", "error", err)
		}
	}

	// Optional NATS event mirror
	var producer *queue.Producer
	if cfg.NATS.URL != "" {
		producer, err = queue.NewProducer(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStream(context.Background()); err != nil {
			slog.Warn("ensure nats stream", "error", err)
		}
	}

	// Core wiring
	bus := events.NewBus()
	hub := ws.NewHub()
	go hub.Run()

	builder := ffmpeg.NewBuilder(cfg.Media.TempDir, cfg.Encoder)
	runner := ffmpeg.NewExecRunner()
	loops := loop.NewManager(db)
	reg := registry.New(db, runner, builder, loops, bus, cfg.Registry.ProbeInterval)
	engine := scheduler.NewEngine(db, reg, bus)
	fetcher := media.NewFetcher(db, cfg.Media.UploadDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge lifecycle events to the WebSocket hub and the NATS mirror.
	evtCh, unsubscribe := bus.Subscribe()
	defer unsubscribe()
	go func() {
		for evt := range evtCh {
			hub.BroadcastEvent(&dto.WSEvent{Type: evt.Type, Data: evt.Data})
			if producer != nil {
				if err := producer.PublishEvent(ctx, evt); err != nil {
					slog.Warn("mirror event to nats", "type", evt.Type, "error", err)
				}
			}
		}
	}()

	if err := engine.Start(ctx); err != nil {
		slog.Error("start schedule engine", "error", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey:    cfg.Server.APIKey,
		DB:        db,
		Registry:  reg,
		Scheduler: engine,
		Loops:     loops,
		Fetcher:   fetcher,
		Hub:       hub,
		Archive:   archive,
		Producer:  producer,
		Media:     cfg.Media,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-gctx.Done():
			return nil
		}

		slog.Info("shutting down...")
		engine.Stop()
		reg.StopAll(context.Background())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("streamhub stopped")
}

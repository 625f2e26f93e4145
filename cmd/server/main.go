// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/rinkside/internal/api/roster"
	"github.com/codr1/rinkside/internal/config"
	"github.com/codr1/rinkside/internal/db"
	"github.com/codr1/rinkside/internal/ratelimit"
	"github.com/codr1/rinkside/internal/rosters"
	"github.com/codr1/rinkside/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.App.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Features.EnableDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the app config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load configuration")
	}
	setupLogger(cfg)

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	locker, closeRedis, err := newLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRedis()

	if err := roster.InitHandlers(database, roster.Options{
		Tracker:       trackerConfig(cfg),
		SubmitTimeout: cfg.Reorder.SubmitTimeoutDuration(),
		Locker:        locker,
		DragBoards:    cfg.Features.EnableDragBoards,
	}); err != nil {
		return fmt.Errorf("init roster handlers: %w", err)
	}
	defer roster.Shutdown()

	store, err := rosters.NewStore(database)
	if err != nil {
		return err
	}
	sched, err := scheduler.New()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	if _, err := sched.RegisterCompaction(store, cfg.Scheduler.CompactionCron, 0); err != nil {
		return fmt.Errorf("register compaction: %w", err)
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop scheduler")
		}
	}()

	limiter := ratelimit.New(&ratelimit.Config{
		Window:       time.Minute,
		MaxPerWindow: cfg.RateLimit.SubmitsPerMinute,
		TrustProxy:   cfg.RateLimit.TrustProxy,
	})
	defer limiter.Close()

	server := newServer(cfg, limiter)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// cmd/server/server.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/codr1/rinkside/internal/api"
	"github.com/codr1/rinkside/internal/api/roster"
	"github.com/codr1/rinkside/internal/config"
	"github.com/codr1/rinkside/internal/draglock"
	"github.com/codr1/rinkside/internal/ratelimit"
	"github.com/codr1/rinkside/internal/reorder"
)

func newServer(cfg *config.Config, limiter *ratelimit.Limiter) *http.Server {
	router := http.NewServeMux()

	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	registerRoutes(router, limiter)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, limiter *ratelimit.Limiter) {
	limited := func(h http.HandlerFunc) http.Handler {
		return limiter.Middleware(h)
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Roster grid
	mux.HandleFunc("GET /api/v1/events/{id}/roster", roster.HandleRoster)
	mux.Handle("PUT /api/v1/events/{id}/roster/order", limited(roster.HandleRosterOrder))
	mux.Handle("DELETE /api/v1/events/{id}/roster/{registration_id}/team", limited(roster.HandleRosterUnassign))
	mux.HandleFunc("POST /api/v1/events/{id}/roster/drag/{action}", roster.HandleRosterDrag)

	// Waitlist
	mux.HandleFunc("GET /api/v1/events/{id}/waitlist", roster.HandleWaitlist)
	mux.Handle("PUT /api/v1/events/{id}/waitlist/order", limited(roster.HandleWaitlistOrder))
	mux.HandleFunc("POST /api/v1/events/{id}/waitlist/drag/{action}", roster.HandleWaitlistDrag)
}

func trackerConfig(cfg *config.Config) reorder.TrackerConfig {
	return reorder.TrackerConfig{
		LongPress: cfg.Reorder.LongPress(),
		MaxDrift:  cfg.Reorder.MaxDriftPx,
		Geometry: reorder.Geometry{
			ContainerTop: cfg.Reorder.ContainerTop,
			RowHeight:    cfg.Reorder.RowHeight,
			ScreenWidth:  cfg.Reorder.ScreenWidth,
		},
	}
}

// newLocker connects the cross-instance submission gate when redis is
// enabled. Without redis a nil locker and a no-op close are returned.
func newLocker(ctx context.Context, cfg *config.Config) (*draglock.Locker, func(), error) {
	if !cfg.Redis.Enabled {
		log.Info().Msg("Redis disabled; reorder submissions are not gated across instances")
		return nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	closeClient := func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close redis client")
		}
	}

	locker, err := draglock.New(ctx, &draglock.Config{
		RedisClient: client,
		KeyPrefix:   cfg.Redis.KeyPrefix,
		TTL:         cfg.Redis.LockTTL(),
	})
	if err != nil {
		closeClient()
		return nil, nil, fmt.Errorf("connect redis at %s: %w", cfg.Redis.Addr, err)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis submission gate enabled")
	return locker, closeClient, nil
}

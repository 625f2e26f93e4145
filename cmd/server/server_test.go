package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/codr1/rinkside/internal/api/roster"
	"github.com/codr1/rinkside/internal/config"
	"github.com/codr1/rinkside/internal/ratelimit"
	"github.com/codr1/rinkside/internal/testutil"
)

func newTestRouter(t *testing.T, limit int) http.Handler {
	t.Helper()

	cfg := config.Defaults()
	database := testutil.NewTestDB(t)
	if err := roster.InitHandlers(database, roster.Options{Tracker: trackerConfig(cfg), DragBoards: true}); err != nil {
		t.Fatalf("init handlers: %v", err)
	}
	t.Cleanup(roster.Shutdown)
	testutil.SeedEvent(t, database, "Route skate")

	limiter := ratelimit.New(&ratelimit.Config{Window: time.Minute, MaxPerWindow: limit})
	t.Cleanup(limiter.Close)

	mux := http.NewServeMux()
	registerRoutes(mux, limiter)
	return mux
}

func TestRoutes(t *testing.T) {
	router := newTestRouter(t, 100)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{method: http.MethodGet, path: "/health", want: http.StatusOK},
		{method: http.MethodGet, path: "/api/v1/events/1/roster", want: http.StatusOK},
		{method: http.MethodGet, path: "/api/v1/events/1/waitlist", want: http.StatusOK},
		{method: http.MethodGet, path: "/api/v1/events/2/roster", want: http.StatusNotFound},
		{method: http.MethodPost, path: "/api/v1/events/1/roster", want: http.StatusMethodNotAllowed},
		{method: http.MethodPost, path: "/api/v1/events/1/roster/drag/cancel", want: http.StatusOK},
		{method: http.MethodPost, path: "/api/v1/events/1/waitlist/drag/tick", want: http.StatusOK},
		{method: http.MethodPut, path: "/api/v1/events/1/waitlist/order", body: `{"items":[]}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.method, tt.path), func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestOrderRoutesAreRateLimited(t *testing.T) {
	router := newTestRouter(t, 1)

	send := func() int {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/events/1/waitlist/order", bytes.NewBufferString(`{"items":[]}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := send(); code != http.StatusBadRequest {
		t.Fatalf("first status = %d", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", code)
	}
}

func TestNewLocker(t *testing.T) {
	cfg := config.Defaults()
	locker, closeFn, err := newLocker(context.Background(), cfg)
	if err != nil || locker != nil {
		t.Fatalf("disabled redis: locker=%v err=%v", locker, err)
	}
	closeFn()

	mr := miniredis.RunT(t)
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = mr.Addr()
	locker, closeFn, err = newLocker(context.Background(), cfg)
	if err != nil || locker == nil {
		t.Fatalf("enabled redis: locker=%v err=%v", locker, err)
	}
	defer closeFn()

	lease, err := locker.Acquire(context.Background(), "event:1:roster")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !mr.Exists(lease.Key()) {
		t.Fatalf("lease key %q missing", lease.Key())
	}
}

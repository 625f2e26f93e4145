// internal/api/roster/handlers.go
package roster

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/rinkside/internal/api/apiutil"
	"github.com/codr1/rinkside/internal/api/htmx"
	appdb "github.com/codr1/rinkside/internal/db"
	"github.com/codr1/rinkside/internal/draglock"
	"github.com/codr1/rinkside/internal/reorder"
	"github.com/codr1/rinkside/internal/rosters"
)

const (
	rosterQueryTimeout   = 5 * time.Second
	defaultSubmitTimeout = 5 * time.Second

	rosterChangedEvent   = "rosterChanged"
	waitlistChangedEvent = "waitlistChanged"
)

// Options configures the roster handlers.
type Options struct {
	// Tracker is the gesture configuration for server-hosted drag boards.
	Tracker reorder.TrackerConfig
	// SubmitTimeout bounds one persistence call.
	SubmitTimeout time.Duration
	// Locker gates submissions across instances; nil disables it.
	Locker *draglock.Locker
	// DragBoards enables the pointer-event endpoints.
	DragBoards bool
}

type handlerState struct {
	store  *rosters.Store
	opts   Options
	boards *boardRegistry
}

var (
	stateMu sync.RWMutex
	state   *handlerState
)

// InitHandlers must be called during server startup before handling requests.
// Calling it again replaces the store and discards existing boards.
func InitHandlers(database *appdb.DB, opts Options) error {
	store, err := rosters.NewStore(database)
	if err != nil {
		return err
	}
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}

	stateMu.Lock()
	defer stateMu.Unlock()
	if state != nil {
		state.boards.closeAll()
	}
	state = &handlerState{
		store:  store,
		opts:   opts,
		boards: newBoardRegistry(),
	}
	return nil
}

// Shutdown closes every drag board. Persistence calls already running finish
// on their own.
func Shutdown() {
	stateMu.Lock()
	defer stateMu.Unlock()
	if state != nil {
		state.boards.closeAll()
	}
}

func loadState() *handlerState {
	stateMu.RLock()
	defer stateMu.RUnlock()
	return state
}

type rosterResponse struct {
	EventID    int64              `json:"eventId"`
	Slots      []reorder.GridSlot `json:"slots"`
	Unassigned []reorder.Entrant  `json:"unassigned,omitempty"`
}

type waitlistResponse struct {
	EventID int64                `json:"eventId"`
	Slots   []reorder.LinearSlot `json:"slots"`
}

type rosterOrderRequest struct {
	Items []reorder.RosterItem `json:"items"`
}

type waitlistOrderRequest struct {
	Items []reorder.WaitlistItem `json:"items"`
}

// GET /api/v1/events/{id}/roster
func HandleRoster(w http.ResponseWriter, r *http.Request) {
	s, eventID, ok := requestContext(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), rosterQueryTimeout)
	defer cancel()

	entrants, err := s.store.LoadRoster(ctx, eventID)
	if err != nil {
		apiutil.WriteError(w, r, storeError(err, "load roster"), "Failed to load roster")
		return
	}
	writeRoster(w, r, eventID, entrants, nil)
}

// PUT /api/v1/events/{id}/roster/order
func HandleRosterOrder(w http.ResponseWriter, r *http.Request) {
	s, eventID, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req rosterOrderRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.SubmitTimeout)
	defer cancel()

	if err := s.applyRoster(ctx, eventID, req.Items); err != nil {
		apiutil.WriteError(w, r, storeError(err, "apply roster order"), "Failed to apply roster order")
		return
	}

	entrants, err := s.store.LoadRoster(ctx, eventID)
	if err != nil {
		apiutil.WriteError(w, r, storeError(err, "load roster"), "Failed to load roster")
		return
	}
	s.boards.refreshGrid(eventID, entrants)
	writeRoster(w, r, eventID, entrants, htmx.Trigger(rosterChangedEvent))
}

// DELETE /api/v1/events/{id}/roster/{registration_id}/team
func HandleRosterUnassign(w http.ResponseWriter, r *http.Request) {
	s, eventID, ok := requestContext(w, r)
	if !ok {
		return
	}
	registrationID, err := apiutil.PathID(r, "registration_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.SubmitTimeout)
	defer cancel()

	err = s.withGate(ctx, rosterScope(eventID), func() error {
		return s.store.UnassignTeam(ctx, eventID, registrationID)
	})
	if err != nil {
		apiutil.WriteError(w, r, storeError(err, "unassign team"), "Failed to remove player from team")
		return
	}

	entrants, err := s.store.LoadRoster(ctx, eventID)
	if err != nil {
		apiutil.WriteError(w, r, storeError(err, "load roster"), "Failed to load roster")
		return
	}
	s.boards.refreshGrid(eventID, entrants)
	writeRoster(w, r, eventID, entrants, htmx.Trigger(rosterChangedEvent))
}

// GET /api/v1/events/{id}/waitlist
func HandleWaitlist(w http.ResponseWriter, r *http.Request) {
	s, eventID, ok := requestContext(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), rosterQueryTimeout)
	defer cancel()

	entrants, err := s.store.LoadWaitlist(ctx, eventID)
	if err != nil {
		apiutil.WriteError(w, r, storeError(err, "load waitlist"), "Failed to load waitlist")
		return
	}
	writeWaitlist(w, r, eventID, entrants, nil)
}

// PUT /api/v1/events/{id}/waitlist/order
func HandleWaitlistOrder(w http.ResponseWriter, r *http.Request) {
	s, eventID, ok := requestContext(w, r)
	if !ok {
		return
	}

	var req waitlistOrderRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.SubmitTimeout)
	defer cancel()

	if err := s.applyWaitlist(ctx, eventID, req.Items); err != nil {
		apiutil.WriteError(w, r, storeError(err, "apply waitlist order"), "Failed to apply waitlist order")
		return
	}

	entrants, err := s.store.LoadWaitlist(ctx, eventID)
	if err != nil {
		apiutil.WriteError(w, r, storeError(err, "load waitlist"), "Failed to load waitlist")
		return
	}
	s.boards.refreshWaitlist(eventID, entrants)
	writeWaitlist(w, r, eventID, entrants, htmx.Trigger(waitlistChangedEvent))
}

func (s *handlerState) applyRoster(ctx context.Context, eventID int64, items []reorder.RosterItem) error {
	return s.withGate(ctx, rosterScope(eventID), func() error {
		return s.store.ApplyRosterOrder(ctx, eventID, items)
	})
}

func (s *handlerState) applyWaitlist(ctx context.Context, eventID int64, items []reorder.WaitlistItem) error {
	return s.withGate(ctx, waitlistScope(eventID), func() error {
		return s.store.ApplyWaitlistOrder(ctx, eventID, items)
	})
}

// withGate runs fn while holding the cross-instance lease for scope.
func (s *handlerState) withGate(ctx context.Context, scope string, fn func() error) error {
	if s.opts.Locker == nil {
		return fn()
	}
	lease, err := s.opts.Locker.Acquire(ctx, scope)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("scope", scope).Msg("Failed to release reorder lease")
		}
	}()
	return fn()
}

func rosterScope(eventID int64) string {
	return fmt.Sprintf("event:%d:roster", eventID)
}

func waitlistScope(eventID int64) string {
	return fmt.Sprintf("event:%d:waitlist", eventID)
}

func requestContext(w http.ResponseWriter, r *http.Request) (*handlerState, int64, bool) {
	s := loadState()
	if s == nil {
		log.Ctx(r.Context()).Error().Msg("Roster handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return nil, 0, false
	}
	eventID, err := apiutil.PathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid event ID", http.StatusBadRequest)
		return nil, 0, false
	}
	return s, eventID, true
}

// storeError maps store and lock failures to client-visible errors.
func storeError(err error, action string) error {
	switch {
	case errors.Is(err, rosters.ErrEventNotFound):
		return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Event not found", Err: err}
	case errors.Is(err, rosters.ErrEntrantNotFound):
		return apiutil.HandlerError{Status: http.StatusNotFound, Message: "Player not found for event", Err: err}
	case errors.Is(err, rosters.ErrInvalidBatch):
		return apiutil.HandlerError{Status: http.StatusBadRequest, Message: err.Error(), Err: err}
	case errors.Is(err, rosters.ErrStaleBatch):
		return apiutil.HandlerError{Status: http.StatusConflict, Message: "Roster changed; reload and try again", Err: err}
	case errors.Is(err, rosters.ErrEventClosed):
		return apiutil.HandlerError{Status: http.StatusConflict, Message: "Event is closed for changes", Err: err}
	case errors.Is(err, rosters.ErrNotAssigned):
		return apiutil.HandlerError{Status: http.StatusConflict, Message: "Player is not on a team", Err: err}
	case errors.Is(err, draglock.ErrLocked):
		return apiutil.HandlerError{Status: http.StatusConflict, Message: "Another change is in progress", Err: err}
	default:
		return apiutil.HandlerError{Status: http.StatusInternalServerError, Message: "Failed to " + action, Err: err}
	}
}

func writeRoster(w http.ResponseWriter, r *http.Request, eventID int64, entrants []reorder.Entrant, headers map[string]string) {
	slots := reorder.BuildGridSlots(entrants)
	var unassigned []reorder.Entrant
	for _, entrant := range entrants {
		if entrant.Group.Column() < 0 {
			unassigned = append(unassigned, entrant)
		}
	}

	if htmx.IsRequest(r) {
		renderHTMLComponent(r.Context(), w, rosterGridComponent(eventID, slots, unassigned), headers, "Failed to render roster grid", "Failed to render roster")
		return
	}
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, rosterResponse{EventID: eventID, Slots: slots, Unassigned: unassigned}); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Int64("event_id", eventID).Msg("Failed to write roster response")
	}
}

func writeWaitlist(w http.ResponseWriter, r *http.Request, eventID int64, entrants []reorder.Entrant, headers map[string]string) {
	slots := reorder.BuildLinearSlots(entrants)

	if htmx.IsRequest(r) {
		renderHTMLComponent(r.Context(), w, waitlistComponent(eventID, slots), headers, "Failed to render waitlist", "Failed to render waitlist")
		return
	}
	for key, value := range headers {
		w.Header().Set(key, value)
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, waitlistResponse{EventID: eventID, Slots: slots}); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Int64("event_id", eventID).Msg("Failed to write waitlist response")
	}
}

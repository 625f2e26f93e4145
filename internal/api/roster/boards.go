package roster

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/rinkside/internal/api/apiutil"
	"github.com/codr1/rinkside/internal/reorder"
)

// boardRegistry holds one server-hosted drag board per event and variant.
// Boards serialise pointer events through their own mutex.
type boardRegistry struct {
	mu        sync.Mutex
	grids     map[int64]*reorder.GridRoster
	waitlists map[int64]*reorder.Waitlist
}

func newBoardRegistry() *boardRegistry {
	return &boardRegistry{
		grids:     make(map[int64]*reorder.GridRoster),
		waitlists: make(map[int64]*reorder.Waitlist),
	}
}

func (b *boardRegistry) grid(ctx context.Context, s *handlerState, eventID int64) (*reorder.GridRoster, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if grid, ok := b.grids[eventID]; ok {
		return grid, nil
	}

	entrants, err := s.store.LoadRoster(ctx, eventID)
	if err != nil {
		return nil, err
	}
	logger := log.Logger.With().Int64("event_id", eventID).Logger()
	grid, err := reorder.NewGridRoster(reorder.GridConfig{
		Tracker: s.opts.Tracker,
		OnRosterChange: func(ctx context.Context, items []reorder.RosterItem) error {
			ctx, cancel := context.WithTimeout(ctx, s.opts.SubmitTimeout)
			defer cancel()
			return s.applyRoster(ctx, eventID, items)
		},
		OnItemPress: tapLogger(logger, "roster"),
		Logger:      &logger,
	}, entrants)
	if err != nil {
		return nil, err
	}
	b.grids[eventID] = grid
	return grid, nil
}

func (b *boardRegistry) waitlist(ctx context.Context, s *handlerState, eventID int64) (*reorder.Waitlist, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if waitlist, ok := b.waitlists[eventID]; ok {
		return waitlist, nil
	}

	entrants, err := s.store.LoadWaitlist(ctx, eventID)
	if err != nil {
		return nil, err
	}
	logger := log.Logger.With().Int64("event_id", eventID).Logger()
	waitlist, err := reorder.NewWaitlist(reorder.WaitlistConfig{
		Tracker: s.opts.Tracker,
		OnReorder: func(ctx context.Context, items []reorder.WaitlistItem) error {
			ctx, cancel := context.WithTimeout(ctx, s.opts.SubmitTimeout)
			defer cancel()
			return s.applyWaitlist(ctx, eventID, items)
		},
		OnItemPress: tapLogger(logger, "waitlist"),
		Logger:      &logger,
	}, entrants)
	if err != nil {
		return nil, err
	}
	b.waitlists[eventID] = waitlist
	return waitlist, nil
}

func (b *boardRegistry) refreshGrid(eventID int64, entrants []reorder.Entrant) {
	b.mu.Lock()
	grid, ok := b.grids[eventID]
	b.mu.Unlock()
	if ok {
		grid.SetEntrants(entrants)
	}
}

func (b *boardRegistry) refreshWaitlist(eventID int64, entrants []reorder.Entrant) {
	b.mu.Lock()
	waitlist, ok := b.waitlists[eventID]
	b.mu.Unlock()
	if ok {
		waitlist.SetEntrants(entrants)
	}
}

func (b *boardRegistry) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, grid := range b.grids {
		grid.Close()
		delete(b.grids, id)
	}
	for id, waitlist := range b.waitlists {
		waitlist.Close()
		delete(b.waitlists, id)
	}
}

func tapLogger(logger zerolog.Logger, board string) reorder.ItemPressFunc {
	return func(entrant reorder.Entrant) {
		logger.Info().Str("board", board).Int64("entrant_id", entrant.ID).Msg("Entrant tapped")
	}
}

type pointerRequest struct {
	EntrantID int64    `json:"entrantId,omitempty"`
	X         *float64 `json:"x"`
	Y         *float64 `json:"y"`
}

func (p pointerRequest) point() (reorder.Point, error) {
	if p.X == nil {
		return reorder.Point{}, apiutil.FieldError{Field: "x", Reason: "is required"}
	}
	if p.Y == nil {
		return reorder.Point{}, apiutil.FieldError{Field: "y", Reason: "is required"}
	}
	return reorder.Point{X: *p.X, Y: *p.Y}, nil
}

type releaseResponse struct {
	Kind      string              `json:"kind"`
	EntrantID int64               `json:"entrantId,omitempty"`
	Target    reorder.HoverTarget `json:"target"`
	Committed bool                `json:"committed"`
	Pending   bool                `json:"pending,omitempty"`
	Items     any                 `json:"items,omitempty"`
	Error     string              `json:"error,omitempty"`
}

type boardResponse struct {
	Phase     string               `json:"phase"`
	Busy      bool                 `json:"busy,omitempty"`
	Overlay   reorder.Overlay      `json:"overlay"`
	Hover     *reorder.HoverTarget `json:"hover,omitempty"`
	Activated bool                 `json:"activated,omitempty"`
	Release   *releaseResponse     `json:"release,omitempty"`
	GridSlots []reorder.GridSlot   `json:"gridSlots,omitempty"`
	ListSlots []reorder.LinearSlot `json:"listSlots,omitempty"`
}

func newReleaseResponse(release reorder.Release) *releaseResponse {
	resp := &releaseResponse{
		Kind:      release.Kind.String(),
		EntrantID: release.Entrant.ID,
		Target:    release.Target,
	}
	if release.Err != nil {
		resp.Error = release.Err.Error()
	}
	return resp
}

// POST /api/v1/events/{id}/roster/drag/{action}
func HandleRosterDrag(w http.ResponseWriter, r *http.Request) {
	s, eventID, ok := requestContext(w, r)
	if !ok {
		return
	}
	if !s.opts.DragBoards {
		http.NotFound(w, r)
		return
	}
	logger := log.Ctx(r.Context()).With().Int64("event_id", eventID).Str("board", "roster").Logger()

	grid, err := s.boards.grid(r.Context(), s, eventID)
	if err != nil {
		apiutil.WriteError(w, r, storeError(err, "open roster board"), "Failed to open roster board")
		return
	}

	status := http.StatusOK
	var resp boardResponse
	switch action := r.PathValue("action"); action {
	case "press":
		req, at, ok := decodePointer(w, r)
		if !ok {
			return
		}
		if grid.Phase() == reorder.PhaseIdle {
			// Pick up changes made by other writers before a new gesture.
			if entrants, err := s.store.LoadRoster(r.Context(), eventID); err == nil {
				grid.SetEntrants(entrants)
			} else {
				logger.Warn().Err(err).Msg("Failed to refresh roster board")
			}
		}
		if err := grid.Press(req.EntrantID, at); err != nil {
			writeGestureError(w, r, err)
			return
		}
	case "tick":
		resp.Activated = grid.Tick()
	case "move":
		_, at, ok := decodePointer(w, r)
		if !ok {
			return
		}
		if hover, ok := grid.Move(at); ok {
			resp.Hover = &hover
		}
	case "release":
		_, at, ok := decodePointer(w, r)
		if !ok {
			return
		}
		result, err := grid.Release(r.Context(), at)
		resp.Release = newReleaseResponse(result.Release)
		resp.Release.Committed = result.Committed && err == nil
		if result.Committed {
			resp.Release.Items = result.Items
		}
		if err != nil {
			herr := storeError(err, "apply roster order")
			var handlerErr apiutil.HandlerError
			if errors.As(herr, &handlerErr) {
				status = handlerErr.Status
				resp.Release.Error = handlerErr.Message
			}
			logger.Warn().Err(err).Msg("Roster drop not persisted")
		}
		if result.Committed {
			if entrants, err := s.store.LoadRoster(r.Context(), eventID); err == nil {
				grid.SetEntrants(entrants)
			} else {
				logger.Error().Err(err).Msg("Failed to reload roster after drop")
			}
		}
	case "cancel":
		grid.Cancel()
	default:
		http.Error(w, "Unknown drag action", http.StatusNotFound)
		return
	}

	resp.Phase = grid.Phase().String()
	resp.Overlay = grid.Overlay()
	resp.GridSlots = grid.Slots()
	if err := apiutil.WriteJSON(w, status, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write board response")
	}
}

// POST /api/v1/events/{id}/waitlist/drag/{action}
//
// A release answers as soon as the optimistic order is applied; add
// ?wait=true to block until the store confirms or the order rolls back.
func HandleWaitlistDrag(w http.ResponseWriter, r *http.Request) {
	s, eventID, ok := requestContext(w, r)
	if !ok {
		return
	}
	if !s.opts.DragBoards {
		http.NotFound(w, r)
		return
	}
	logger := log.Ctx(r.Context()).With().Int64("event_id", eventID).Str("board", "waitlist").Logger()

	waitlist, err := s.boards.waitlist(r.Context(), s, eventID)
	if err != nil {
		apiutil.WriteError(w, r, storeError(err, "open waitlist board"), "Failed to open waitlist board")
		return
	}

	status := http.StatusOK
	var resp boardResponse
	switch action := r.PathValue("action"); action {
	case "press":
		req, at, ok := decodePointer(w, r)
		if !ok {
			return
		}
		if waitlist.Phase() == reorder.PhaseIdle && !waitlist.Busy() {
			if entrants, err := s.store.LoadWaitlist(r.Context(), eventID); err == nil {
				waitlist.SetEntrants(entrants)
			} else {
				logger.Warn().Err(err).Msg("Failed to refresh waitlist board")
			}
		}
		if err := waitlist.Press(req.EntrantID, at); err != nil {
			writeGestureError(w, r, err)
			return
		}
	case "tick":
		resp.Activated = waitlist.Tick()
	case "move":
		_, at, ok := decodePointer(w, r)
		if !ok {
			return
		}
		if hover, ok := waitlist.Move(at); ok {
			resp.Hover = &hover
		}
	case "release":
		_, at, ok := decodePointer(w, r)
		if !ok {
			return
		}
		result, err := waitlist.Release(r.Context(), at)
		if err != nil {
			writeGestureError(w, r, err)
			return
		}
		resp.Release = newReleaseResponse(result.Release)
		if result.Pending != nil {
			resp.Release.Items = result.Pending.Items
			resp.Release.Pending = true
			if r.URL.Query().Get("wait") == "true" {
				ctx, cancel := context.WithTimeout(r.Context(), s.opts.SubmitTimeout)
				werr := result.Pending.Wait(ctx)
				cancel()
				resp.Release.Pending = false
				if werr != nil {
					herr := storeError(werr, "apply waitlist order")
					var handlerErr apiutil.HandlerError
					if errors.As(herr, &handlerErr) {
						status = handlerErr.Status
						resp.Release.Error = handlerErr.Message
					}
					logger.Warn().Err(werr).Msg("Waitlist drop rolled back")
				} else {
					resp.Release.Committed = true
				}
			}
		}
	case "cancel":
		waitlist.Cancel()
	default:
		http.Error(w, "Unknown drag action", http.StatusNotFound)
		return
	}

	resp.Phase = waitlist.Phase().String()
	resp.Busy = waitlist.Busy()
	resp.Overlay = waitlist.Overlay()
	resp.ListSlots = waitlist.Slots()
	if err := apiutil.WriteJSON(w, status, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write board response")
	}
}

func decodePointer(w http.ResponseWriter, r *http.Request) (pointerRequest, reorder.Point, bool) {
	var req pointerRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return req, reorder.Point{}, false
	}
	at, err := req.point()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, reorder.Point{}, false
	}
	return req, at, true
}

func writeGestureError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reorder.ErrSessionActive):
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusConflict, Message: "A drag is already in progress", Err: err}, "")
	case errors.Is(err, reorder.ErrUnknownEntrant):
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusNotFound, Message: "Player is not on this board", Err: err}, "")
	case errors.Is(err, reorder.ErrClosed):
		apiutil.WriteError(w, r, apiutil.HandlerError{Status: http.StatusServiceUnavailable, Message: "Board is closed", Err: err}, "")
	default:
		apiutil.WriteError(w, r, err, "Failed to handle drag")
	}
}

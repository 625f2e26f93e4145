package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// RosterChangeFunc persists a full roster batch.
type RosterChangeFunc func(ctx context.Context, items []RosterItem) error

// ItemPressFunc receives plain taps on an entrant cell.
type ItemPressFunc func(entrant Entrant)

// GridConfig configures a GridRoster.
type GridConfig struct {
	Tracker        TrackerConfig
	OnRosterChange RosterChangeFunc
	OnItemPress    ItemPressFunc
	Logger         *zerolog.Logger
}

// GridResult describes what a release did.
type GridResult struct {
	Release   Release
	Items     []RosterItem
	Committed bool
}

// GridRoster reorders players across two teams. It holds no optimistic copy:
// its layout changes only when the caller supplies a new snapshot.
type GridRoster struct {
	mu             sync.Mutex
	tracker        *Tracker
	entrants       []Entrant
	slots          []GridSlot
	onRosterChange RosterChangeFunc
	onItemPress    ItemPressFunc
	logger         zerolog.Logger
	closed         bool
	// inFlight keeps the activation gate shut until OnRosterChange returns.
	inFlight bool
}

// NewGridRoster builds a grid component over the initial snapshot.
func NewGridRoster(cfg GridConfig, entrants []Entrant) (*GridRoster, error) {
	if cfg.OnRosterChange == nil {
		return nil, errors.New("grid roster requires an OnRosterChange callback")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	cfg.Tracker.Columns = 2
	if cfg.Tracker.Logger == nil {
		cfg.Tracker.Logger = &logger
	}
	tracker, err := NewTracker(cfg.Tracker)
	if err != nil {
		return nil, fmt.Errorf("create grid tracker: %w", err)
	}
	g := &GridRoster{
		tracker:        tracker,
		onRosterChange: cfg.OnRosterChange,
		onItemPress:    cfg.OnItemPress,
		logger:         logger.With().Str("component", "grid_roster").Logger(),
	}
	g.entrants = cloneEntrants(entrants)
	g.slots = BuildGridSlots(g.entrants)
	return g, nil
}

// SetEntrants replaces the snapshot. An active drag is cancelled because its
// captured entrant may no longer match the new data.
func (g *GridRoster) SetEntrants(entrants []Entrant) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tracker.Cancel() {
		g.logger.Debug().Msg("Cancelled drag on snapshot change")
	}
	g.entrants = cloneEntrants(entrants)
	g.slots = BuildGridSlots(g.entrants)
}

// Slots returns the current layout.
func (g *GridRoster) Slots() []GridSlot {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GridSlot, len(g.slots))
	copy(out, g.slots)
	return out
}

// Entrants returns a copy of the current snapshot.
func (g *GridRoster) Entrants() []Entrant {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneEntrants(g.entrants)
}

// Phase returns the tracker phase.
func (g *GridRoster) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tracker.Phase()
}

// Overlay returns the drag overlay state.
func (g *GridRoster) Overlay() Overlay {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tracker.Overlay()
}

// Press starts a potential drag on the cell showing entrantID.
func (g *GridRoster) Press(entrantID int64, at Point) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if g.inFlight {
		return ErrSessionActive
	}
	row, column, ok := locateInGrid(g.slots, entrantID)
	if !ok {
		return fmt.Errorf("press entrant %d: %w", entrantID, ErrUnknownEntrant)
	}
	entrant := *g.slots[row].Cells[column]
	return g.tracker.Press(PressTarget{Entrant: entrant, Row: row, Column: column}, len(g.slots), at)
}

// Tick fires the long-press timer.
func (g *GridRoster) Tick() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tracker.Tick()
}

// Move handles a pointer-move tick.
func (g *GridRoster) Move(at Point) (HoverTarget, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tracker.Move(at)
}

// Busy reports whether a roster submission is still running.
func (g *GridRoster) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// Cancel aborts the gesture without mutation.
func (g *GridRoster) Cancel() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tracker.Cancel()
}

// Close tears down any drag and rejects further gestures.
func (g *GridRoster) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tracker.Cancel()
	g.closed = true
}

// Release resolves the gesture. A valid drop is planned against the pre-drag
// snapshot and handed to OnRosterChange once; its error is returned as is.
// No new press is accepted until the callback returns.
func (g *GridRoster) Release(ctx context.Context, at Point) (GridResult, error) {
	g.mu.Lock()
	release := g.tracker.Release(at, func(session DragSession, target HoverTarget) error {
		return ValidateGridTarget(session.Entrant, target)
	})
	result := GridResult{Release: release}

	var (
		items   []RosterItem
		changed bool
		err     error
	)
	if release.Kind == ReleaseDrop {
		items, changed, err = PlanGridCommit(g.entrants, release.Entrant.ID, release.Target)
		if err == nil && changed {
			g.inFlight = true
		}
	}
	g.mu.Unlock()

	switch release.Kind {
	case ReleaseTap:
		if g.onItemPress != nil {
			g.onItemPress(release.Entrant)
		}
		return result, nil
	case ReleaseRejected:
		g.logger.Debug().
			Err(release.Err).
			Int64("entrant_id", release.Entrant.ID).
			Int("target_row", release.Target.Row).
			Int("target_column", release.Target.Column).
			Msg("Drop rejected")
		return result, nil
	case ReleaseDrop:
	default:
		return result, nil
	}

	if err != nil {
		return result, err
	}
	if !changed {
		return result, nil
	}
	defer func() {
		g.mu.Lock()
		g.inFlight = false
		g.mu.Unlock()
	}()
	result.Items = items
	result.Committed = true

	g.logger.Debug().
		Int64("entrant_id", release.Entrant.ID).
		Int("target_row", release.Target.Row).
		Int("target_column", release.Target.Column).
		Int("batch_size", len(items)).
		Msg("Submitting roster batch")
	if err := g.onRosterChange(ctx, items); err != nil {
		return result, fmt.Errorf("roster change: %w", err)
	}
	return result, nil
}

package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ReorderFunc persists a full waitlist batch. A returned error rolls back the
// optimistic order.
type ReorderFunc func(ctx context.Context, items []WaitlistItem) error

// WaitlistConfig configures a Waitlist.
type WaitlistConfig struct {
	Tracker     TrackerConfig
	OnReorder   ReorderFunc
	OnItemPress ItemPressFunc
	Logger      *zerolog.Logger
}

// Pending tracks an asynchronous waitlist persistence call.
type Pending struct {
	Items []WaitlistItem
	done  chan struct{}
	err   error
}

// Done is closed when the persistence call has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the call settles or ctx ends.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitlistResult describes what a release did. Pending is nil unless a batch
// was submitted.
type WaitlistResult struct {
	Release Release
	Pending *Pending
}

// Waitlist reorders a single list with optimistic update and rollback.
// confirmed is the last server-confirmed order; rendered is what is shown.
type Waitlist struct {
	mu          sync.Mutex
	tracker     *Tracker
	confirmed   []Entrant
	rendered    []Entrant
	generation  uint64
	inFlight    bool
	closed      bool
	onReorder   ReorderFunc
	onItemPress ItemPressFunc
	logger      zerolog.Logger
}

// NewWaitlist builds a linear component over the initial snapshot.
func NewWaitlist(cfg WaitlistConfig, entrants []Entrant) (*Waitlist, error) {
	if cfg.OnReorder == nil {
		return nil, errors.New("waitlist requires an OnReorder callback")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	cfg.Tracker.Columns = 1
	if cfg.Tracker.Logger == nil {
		cfg.Tracker.Logger = &logger
	}
	tracker, err := NewTracker(cfg.Tracker)
	if err != nil {
		return nil, fmt.Errorf("create waitlist tracker: %w", err)
	}
	w := &Waitlist{
		tracker:     tracker,
		onReorder:   cfg.OnReorder,
		onItemPress: cfg.OnItemPress,
		logger:      logger.With().Str("component", "waitlist_reorder").Logger(),
	}
	w.confirmed = cloneEntrants(entrants)
	w.rendered = w.confirmed
	return w, nil
}

// SetEntrants replaces the confirmed snapshot and cancels any active drag.
// A persistence call still in flight no longer touches state when it settles.
func (w *Waitlist) SetEntrants(entrants []Entrant) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tracker.Cancel() {
		w.logger.Debug().Msg("Cancelled drag on snapshot change")
	}
	w.generation++
	w.confirmed = cloneEntrants(entrants)
	w.rendered = w.confirmed
}

// Slots returns the rendered layout.
func (w *Waitlist) Slots() []LinearSlot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return BuildLinearSlots(w.rendered)
}

// Rendered returns a copy of the rendered order.
func (w *Waitlist) Rendered() []Entrant {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneEntrants(w.rendered)
}

// Phase returns the tracker phase.
func (w *Waitlist) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.Phase()
}

// Overlay returns the drag overlay state.
func (w *Waitlist) Overlay() Overlay {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.Overlay()
}

// Busy reports whether a submission is still in flight.
func (w *Waitlist) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

// Press starts a potential drag on the entry showing entrantID. The gate stays
// closed while a previous submission is in flight.
func (w *Waitlist) Press(entrantID int64, at Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.inFlight {
		return ErrSessionActive
	}
	for i, entrant := range w.rendered {
		if entrant.ID == entrantID {
			return w.tracker.Press(PressTarget{Entrant: entrant, Row: i}, len(w.rendered), at)
		}
	}
	return fmt.Errorf("press entrant %d: %w", entrantID, ErrUnknownEntrant)
}

// Tick fires the long-press timer.
func (w *Waitlist) Tick() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.Tick()
}

// Move handles a pointer-move tick.
func (w *Waitlist) Move(at Point) (HoverTarget, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.Move(at)
}

// Cancel aborts the gesture without mutation.
func (w *Waitlist) Cancel() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tracker.Cancel()
}

// Close tears down any drag and rejects further gestures.
func (w *Waitlist) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tracker.Cancel()
	w.closed = true
}

// Release resolves the gesture. A valid drop is applied to the rendered order
// immediately and persisted asynchronously; failure restores the confirmed
// order.
func (w *Waitlist) Release(ctx context.Context, at Point) (WaitlistResult, error) {
	w.mu.Lock()
	release := w.tracker.Release(at, nil)
	result := WaitlistResult{Release: release}
	if release.Kind != ReleaseDrop {
		w.mu.Unlock()
		if release.Kind == ReleaseTap && w.onItemPress != nil {
			w.onItemPress(release.Entrant)
		}
		return result, nil
	}

	items, reordered, changed, err := PlanLinearCommit(w.confirmed, release.Session.SourceRow, release.Target.Row)
	if err != nil || !changed {
		w.mu.Unlock()
		return result, err
	}

	w.rendered = reordered
	w.inFlight = true
	generation := w.generation
	w.mu.Unlock()

	pending := &Pending{Items: items, done: make(chan struct{})}
	result.Pending = pending

	w.logger.Debug().
		Int64("entrant_id", release.Entrant.ID).
		Int("source_index", release.Session.SourceRow).
		Int("target_index", release.Target.Row).
		Msg("Applied optimistic waitlist order")

	go w.persist(context.WithoutCancel(ctx), pending, reordered, generation)
	return result, nil
}

func (w *Waitlist) persist(ctx context.Context, pending *Pending, reordered []Entrant, generation uint64) {
	err := w.onReorder(ctx, pending.Items)

	w.mu.Lock()
	w.inFlight = false
	if generation == w.generation {
		if err != nil {
			w.rendered = w.confirmed
		} else {
			w.confirmed = reordered
		}
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn().Err(err).Int("batch_size", len(pending.Items)).Msg("Waitlist reorder failed; rolled back")
		pending.err = fmt.Errorf("waitlist reorder: %w", err)
	}
	close(pending.done)
}

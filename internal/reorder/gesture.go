package reorder

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultLongPress = 200 * time.Millisecond
	DefaultMaxDrift  = 10.0
	DefaultRowHeight = 56.0
)

// Phase is the gesture tracker state.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseDragging
	PhaseResolving
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDragging:
		return "dragging"
	case PhaseResolving:
		return "resolving"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Clock is injected so long-press timing can be driven from tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Point is an absolute pointer position in screen coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) valid() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Geometry describes the container the slots are laid out in.
type Geometry struct {
	ContainerTop float64 `json:"containerTop" yaml:"container_top"`
	RowHeight    float64 `json:"rowHeight" yaml:"row_height"`
	ScreenWidth  float64 `json:"screenWidth" yaml:"screen_width"`
}

// TrackerConfig configures a Tracker. Zero values take defaults.
type TrackerConfig struct {
	LongPress time.Duration
	MaxDrift  float64
	Geometry  Geometry
	// Columns is 2 for the team grid and 1 for a single list.
	Columns int
	Clock   Clock
	Logger  *zerolog.Logger
}

// PressTarget identifies the cell a press landed on.
type PressTarget struct {
	Entrant Entrant
	Row     int
	Column  int
}

// DragSession is the state of one in-progress drag.
type DragSession struct {
	ID           uuid.UUID `json:"id"`
	Entrant      Entrant   `json:"entrant"`
	SourceRow    int       `json:"sourceRow"`
	SourceColumn int       `json:"sourceColumn"`
	Start        Point     `json:"start"`
	Offset       Point     `json:"offset"`
	SlotCount    int       `json:"slotCount"`
	StartedAt    time.Time `json:"startedAt"`
}

// HoverTarget is the slot currently under the pointer.
type HoverTarget struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Overlay is what a renderer needs while a drag is in flight: a placeholder at
// the source cell and a floating copy translated by Offset.
type Overlay struct {
	Active       bool  `json:"active"`
	EntrantID    int64 `json:"entrantId,omitempty"`
	SourceRow    int   `json:"sourceRow"`
	SourceColumn int   `json:"sourceColumn"`
	Offset       Point `json:"offset"`
}

// ReleaseKind classifies how a gesture ended.
type ReleaseKind uint8

const (
	ReleaseNone ReleaseKind = iota
	ReleaseTap
	ReleaseDrop
	ReleaseRejected
)

func (k ReleaseKind) String() string {
	switch k {
	case ReleaseTap:
		return "tap"
	case ReleaseDrop:
		return "drop"
	case ReleaseRejected:
		return "rejected"
	default:
		return "none"
	}
}

// Release is the outcome of ending a gesture.
type Release struct {
	Kind    ReleaseKind
	Entrant Entrant
	Session DragSession
	Target  HoverTarget
	Err     error
}

// Validator decides whether a resolved target is acceptable.
type Validator func(session DragSession, target HoverTarget) error

type pendingPress struct {
	target    PressTarget
	origin    Point
	at        time.Time
	slotCount int
}

// Tracker turns a pointer gesture into a source-to-target mapping. It is not
// safe for concurrent use; owners serialise calls.
type Tracker struct {
	longPress time.Duration
	maxDrift  float64
	geometry  Geometry
	columns   int
	clock     Clock
	logger    zerolog.Logger

	phase      Phase
	press      *pendingPress
	session    *DragSession
	hover      HoverTarget
	hoverValid bool
}

// NewTracker validates cfg and returns an idle tracker.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.LongPress <= 0 {
		cfg.LongPress = DefaultLongPress
	}
	if cfg.MaxDrift <= 0 {
		cfg.MaxDrift = DefaultMaxDrift
	}
	if cfg.Geometry.RowHeight <= 0 {
		cfg.Geometry.RowHeight = DefaultRowHeight
	}
	if cfg.Columns == 0 {
		cfg.Columns = 1
	}
	if cfg.Columns != 1 && cfg.Columns != 2 {
		return nil, errors.New("tracker columns must be 1 or 2")
	}
	if cfg.Columns == 2 && cfg.Geometry.ScreenWidth <= 0 {
		return nil, errors.New("grid tracker requires a screen width")
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Tracker{
		longPress: cfg.LongPress,
		maxDrift:  cfg.MaxDrift,
		geometry:  cfg.Geometry,
		columns:   cfg.Columns,
		clock:     cfg.Clock,
		logger:    logger.With().Str("component", "gesture_tracker").Logger(),
		phase:     PhaseIdle,
	}, nil
}

// Phase returns the current tracker phase.
func (t *Tracker) Phase() Phase {
	return t.phase
}

// GateOpen reports whether a new press may begin a drag.
func (t *Tracker) GateOpen() bool {
	return t.session == nil
}

// Session returns a copy of the active drag session.
func (t *Tracker) Session() (DragSession, bool) {
	if t.session == nil {
		return DragSession{}, false
	}
	return *t.session, true
}

// Hover returns the latest hover target while dragging.
func (t *Tracker) Hover() (HoverTarget, bool) {
	if t.session == nil || !t.hoverValid {
		return HoverTarget{}, false
	}
	return t.hover, true
}

// Overlay returns the render state of the drag overlay.
func (t *Tracker) Overlay() Overlay {
	if t.session == nil {
		return Overlay{}
	}
	return Overlay{
		Active:       true,
		EntrantID:    t.session.Entrant.ID,
		SourceRow:    t.session.SourceRow,
		SourceColumn: t.session.SourceColumn,
		Offset:       t.session.Offset,
	}
}

// Press records a touch on an entrant cell. It becomes a drag once held past
// the long-press threshold, or a tap if released before.
func (t *Tracker) Press(target PressTarget, slotCount int, at Point) error {
	if t.session != nil {
		return ErrSessionActive
	}
	if !at.valid() || slotCount <= 0 {
		return ErrInvalidTarget
	}
	t.press = &pendingPress{
		target:    target,
		origin:    at,
		at:        t.clock.Now(),
		slotCount: slotCount,
	}
	return nil
}

// Tick fires the long-press timer. It reports whether a drag started.
func (t *Tracker) Tick() bool {
	if t.press == nil || t.session != nil {
		return false
	}
	if t.clock.Now().Sub(t.press.at) < t.longPress {
		return false
	}
	t.activate()
	return true
}

// Move handles one pointer-move tick. While idle the move is rejected; a
// pending press that drifts too far is abandoned.
func (t *Tracker) Move(at Point) (HoverTarget, bool) {
	if t.session == nil {
		if t.press == nil {
			return HoverTarget{}, false
		}
		if !t.Tick() {
			if !at.valid() || distance(t.press.origin, at) > t.maxDrift {
				t.press = nil
			}
			return HoverTarget{}, false
		}
	}

	t.session.Offset = Point{X: at.X - t.session.Start.X, Y: at.Y - t.session.Start.Y}
	target, ok := t.targetAt(at, t.session.SlotCount)
	t.hover, t.hoverValid = target, ok
	return target, ok
}

// Release ends the gesture at the given point.
func (t *Tracker) Release(at Point, validate Validator) Release {
	if t.session == nil {
		if t.press == nil {
			return Release{Kind: ReleaseNone}
		}
		if !t.Tick() {
			entrant := t.press.target.Entrant
			t.press = nil
			return Release{Kind: ReleaseTap, Entrant: entrant}
		}
	}

	t.Move(at)
	t.setPhase(PhaseResolving)
	session := *t.session
	target, ok := t.hover, t.hoverValid

	var err error
	switch {
	case !ok:
		err = ErrInvalidTarget
	case validate != nil:
		err = validate(session, target)
	}
	if err != nil {
		t.setPhase(PhaseCancelled)
		t.teardown()
		return Release{Kind: ReleaseRejected, Entrant: session.Entrant, Session: session, Target: target, Err: err}
	}

	t.teardown()
	return Release{Kind: ReleaseDrop, Entrant: session.Entrant, Session: session, Target: target}
}

// Cancel aborts any press or drag with no data mutation. It is idempotent and
// reports whether anything was cancelled.
func (t *Tracker) Cancel() bool {
	if t.session == nil && t.press == nil {
		return false
	}
	if t.session != nil {
		t.setPhase(PhaseCancelled)
	}
	t.teardown()
	return true
}

func (t *Tracker) activate() {
	press := t.press
	t.press = nil
	t.session = &DragSession{
		ID:           uuid.New(),
		Entrant:      press.target.Entrant,
		SourceRow:    press.target.Row,
		SourceColumn: press.target.Column,
		Start:        press.origin,
		SlotCount:    press.slotCount,
		StartedAt:    t.clock.Now(),
	}
	t.hover = HoverTarget{Row: press.target.Row, Column: press.target.Column}
	t.hoverValid = true
	t.setPhase(PhaseDragging)
}

func (t *Tracker) teardown() {
	t.press = nil
	t.session = nil
	t.hover = HoverTarget{}
	t.hoverValid = false
	t.setPhase(PhaseIdle)
}

func (t *Tracker) setPhase(next Phase) {
	if t.phase == next {
		return
	}
	event := t.logger.Debug().Str("from", t.phase.String()).Str("to", next.String())
	if t.session != nil {
		event = event.Str("session_id", t.session.ID.String()).Int64("entrant_id", t.session.Entrant.ID)
	}
	event.Msg("Gesture phase changed")
	t.phase = next
}

// targetAt maps an absolute point to a slot. Rows are clamped to the layout;
// the column follows the screen midpoint.
func (t *Tracker) targetAt(at Point, slotCount int) (HoverTarget, bool) {
	if !at.valid() || slotCount <= 0 {
		return HoverTarget{}, false
	}
	// Clamp before converting; huge offsets overflow int.
	f := math.Floor((at.Y - t.geometry.ContainerTop) / t.geometry.RowHeight)
	f = math.Max(0, math.Min(f, float64(slotCount-1)))
	row := int(f)

	column := 0
	if t.columns == 2 && at.X >= t.geometry.ScreenWidth/2 {
		column = 1
	}
	return HoverTarget{Row: row, Column: column}, true
}

func distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func clamp(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}
	return value
}

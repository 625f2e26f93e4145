// Package reorder implements drag-and-drop reordering of event rosters and
// waitlists: slot derivation, pointer gesture tracking, and commit planning with
// optimistic update and rollback.
package reorder

import (
	"errors"
)

// PositionType constrains which grid row an entrant may occupy.
type PositionType string

const (
	PositionGoalie PositionType = "goalie"
	PositionSkater PositionType = "skater"
)

// Group is the team column an entrant is assigned to in the grid variant.
type Group string

const (
	GroupA Group = "A"
	GroupB Group = "B"
)

// Column returns the grid column index for the group (A=0, B=1), or -1.
func (g Group) Column() int {
	switch g {
	case GroupA:
		return 0
	case GroupB:
		return 1
	default:
		return -1
	}
}

// GroupForColumn is the inverse of Group.Column.
func GroupForColumn(column int) Group {
	if column == 1 {
		return GroupB
	}
	return GroupA
}

var (
	ErrUnknownEntrant = errors.New("entrant not found in snapshot")
	ErrInvalidTarget  = errors.New("invalid drop target")
	ErrTypeMismatch   = errors.New("drop target does not match position type")
	ErrSessionActive  = errors.New("drag session already active")
	ErrClosed         = errors.New("reorder component closed")
)

// Entrant is a participant eligible for slot placement. Meta carries display
// data (payment status, badges) and is never inspected here.
type Entrant struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Position PositionType      `json:"position,omitempty"`
	Group    Group             `json:"group,omitempty"`
	Order    *int              `json:"order,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

// IsGoalie reports whether the entrant is restricted to the goalie row.
func (e Entrant) IsGoalie() bool {
	return e.Position == PositionGoalie
}

// RosterItem is one instruction of a grid commit batch.
type RosterItem struct {
	EntrantID  int64 `json:"entrantId"`
	Group      Group `json:"group"`
	OrderIndex int   `json:"orderIndex"`
}

// WaitlistItem is one instruction of a linear commit batch. Position is 1-based.
type WaitlistItem struct {
	EntrantID int64 `json:"entrantId"`
	Position  int   `json:"position"`
}

// IntPtr is a convenience for building entrants with an order index.
func IntPtr(v int) *int {
	return &v
}

// cloneEntrants is a shallow copy: the slice never shares a backing array with
// the caller's, but Meta maps are shared and treated as read-only.
func cloneEntrants(entrants []Entrant) []Entrant {
	out := make([]Entrant, len(entrants))
	copy(out, entrants)
	return out
}

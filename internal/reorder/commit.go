package reorder

import (
	"fmt"
	"sort"
)

// ValidateGridTarget enforces the position-type constraint: goalies only land
// on the goalie row and skaters never do.
func ValidateGridTarget(entrant Entrant, target HoverTarget) error {
	if target.Column < 0 || target.Column > 1 || target.Row < 0 {
		return ErrInvalidTarget
	}
	if entrant.IsGoalie() != (target.Row == GoalieRow) {
		return fmt.Errorf("%w: %s to row %d", ErrTypeMismatch, positionLabel(entrant), target.Row)
	}
	return nil
}

func positionLabel(entrant Entrant) string {
	if entrant.IsGoalie() {
		return string(PositionGoalie)
	}
	return string(PositionSkater)
}

// PlanGridCommit computes the full roster batch for moving entrantID to target,
// starting from the pre-drag snapshot. It reports changed=false when the drop
// lands on the entrant's own slot; no batch is produced then.
func PlanGridCommit(snapshot []Entrant, entrantID int64, target HoverTarget) (items []RosterItem, changed bool, err error) {
	lists := PartitionGrid(snapshot)

	entrant, sourceColumn, sourceIndex, found := findInLists(lists, entrantID)
	if !found {
		return nil, false, fmt.Errorf("plan grid commit for entrant %d: %w", entrantID, ErrUnknownEntrant)
	}
	if err := ValidateGridTarget(entrant, target); err != nil {
		return nil, false, fmt.Errorf("plan grid commit for entrant %d: %w", entrantID, err)
	}

	sourceRow := GoalieRow
	if !entrant.IsGoalie() {
		sourceRow = sourceIndex + 1
	}
	if sourceColumn == target.Column && sourceRow == target.Row {
		return nil, false, nil
	}

	entrant.Group = GroupForColumn(target.Column)
	if entrant.IsGoalie() {
		lists.Goalies[sourceColumn] = removeAt(lists.Goalies[sourceColumn], sourceIndex)
		lists.Goalies[target.Column] = insertAt(lists.Goalies[target.Column], 0, entrant)
	} else {
		lists.Skaters[sourceColumn] = removeAt(lists.Skaters[sourceColumn], sourceIndex)
		dest := lists.Skaters[target.Column]
		lists.Skaters[target.Column] = insertAt(dest, clamp(target.Row-1, 0, len(dest)), entrant)
	}

	return lists.Items(), true, nil
}

// Items numbers every list. Within a group goalies come first and skaters
// continue after them, so each group is contiguous from zero.
func (lists GridLists) Items() []RosterItem {
	total := 0
	for column := 0; column < 2; column++ {
		total += len(lists.Goalies[column]) + len(lists.Skaters[column])
	}
	items := make([]RosterItem, 0, total)
	for column := 0; column < 2; column++ {
		group := GroupForColumn(column)
		for i, entrant := range lists.Goalies[column] {
			items = append(items, RosterItem{EntrantID: entrant.ID, Group: group, OrderIndex: i})
		}
		offset := len(lists.Goalies[column])
		for i, entrant := range lists.Skaters[column] {
			items = append(items, RosterItem{EntrantID: entrant.ID, Group: group, OrderIndex: offset + i})
		}
	}
	return items
}

func findInLists(lists GridLists, entrantID int64) (Entrant, int, int, bool) {
	for column := 0; column < 2; column++ {
		for i, entrant := range lists.Goalies[column] {
			if entrant.ID == entrantID {
				return entrant, column, i, true
			}
		}
		for i, entrant := range lists.Skaters[column] {
			if entrant.ID == entrantID {
				return entrant, column, i, true
			}
		}
	}
	return Entrant{}, 0, 0, false
}

// PlanLinearCommit moves the entry at source to target and renumbers the list
// from 1. changed is false when source equals target.
func PlanLinearCommit(order []Entrant, source, target int) (items []WaitlistItem, reordered []Entrant, changed bool, err error) {
	if source < 0 || source >= len(order) || target < 0 || target >= len(order) {
		return nil, nil, false, fmt.Errorf("plan linear commit %d -> %d of %d: %w", source, target, len(order), ErrInvalidTarget)
	}
	if source == target {
		return nil, nil, false, nil
	}

	moved := order[source]
	reordered = removeAt(cloneEntrants(order), source)
	reordered = insertAt(reordered, target, moved)

	items = make([]WaitlistItem, len(reordered))
	for i := range reordered {
		reordered[i].Order = IntPtr(i + 1)
		items[i] = WaitlistItem{EntrantID: reordered[i].ID, Position: i + 1}
	}
	return items, reordered, true, nil
}

// ApplyRosterItems returns a copy of entrants with the batch's groups and order
// indices applied. Entrants absent from the batch are unchanged.
func ApplyRosterItems(entrants []Entrant, items []RosterItem) []Entrant {
	byID := make(map[int64]RosterItem, len(items))
	for _, item := range items {
		byID[item.EntrantID] = item
	}
	out := cloneEntrants(entrants)
	for i := range out {
		if item, ok := byID[out[i].ID]; ok {
			out[i].Group = item.Group
			out[i].Order = IntPtr(item.OrderIndex)
		}
	}
	return out
}

// ApplyWaitlistItems returns entrants sorted by the batch positions. Entrants
// absent from the batch keep their relative order after the listed ones.
func ApplyWaitlistItems(entrants []Entrant, items []WaitlistItem) []Entrant {
	positions := make(map[int64]int, len(items))
	for _, item := range items {
		positions[item.EntrantID] = item.Position
	}
	out := cloneEntrants(entrants)
	for i := range out {
		if pos, ok := positions[out[i].ID]; ok {
			out[i].Order = IntPtr(pos)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, iok := positions[out[i].ID]
		pj, jok := positions[out[j].ID]
		switch {
		case iok && jok:
			return pi < pj
		default:
			return iok && !jok
		}
	})
	return out
}

func removeAt(list []Entrant, index int) []Entrant {
	out := make([]Entrant, 0, len(list))
	out = append(out, list[:index]...)
	return append(out, list[index+1:]...)
}

func insertAt(list []Entrant, index int, entrant Entrant) []Entrant {
	out := make([]Entrant, 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, entrant)
	return append(out, list[index:]...)
}

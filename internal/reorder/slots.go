package reorder

import (
	"sort"
)

// SlotKind distinguishes the fixed goalie row from skater rows.
type SlotKind string

const (
	SlotGoalie SlotKind = "goalie"
	SlotSkater SlotKind = "skater"
)

// GoalieRow is the row index of the single goalie slot.
const GoalieRow = 0

// GridSlot is one row of the two-team grid. Cells are indexed by column.
type GridSlot struct {
	Kind  SlotKind    `json:"kind"`
	Row   int         `json:"row"`
	Cells [2]*Entrant `json:"cells"`
}

// LinearSlot is one position of the waitlist.
type LinearSlot struct {
	Index   int     `json:"index"`
	Entrant Entrant `json:"entrant"`
}

// GridLists holds the four position-sorted lists, indexed by column.
type GridLists struct {
	Goalies [2][]Entrant
	Skaters [2][]Entrant
}

// PartitionGrid splits entrants by group and position type and sorts each list
// by order index. Unset orders sort last; ties keep input order. Entrants
// without a team are not placed.
func PartitionGrid(entrants []Entrant) GridLists {
	var lists GridLists
	for _, entrant := range entrants {
		column := entrant.Group.Column()
		if column < 0 {
			continue
		}
		if entrant.IsGoalie() {
			lists.Goalies[column] = append(lists.Goalies[column], entrant)
		} else {
			lists.Skaters[column] = append(lists.Skaters[column], entrant)
		}
	}
	for column := 0; column < 2; column++ {
		sortByOrder(lists.Goalies[column])
		sortByOrder(lists.Skaters[column])
	}
	return lists
}

func sortByOrder(list []Entrant) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].Order, list[j].Order
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}

// SkaterRowCount is the number of skater rows the grid shows; never below one.
func (l GridLists) SkaterRowCount() int {
	return max(len(l.Skaters[0]), len(l.Skaters[1]), 1)
}

// BuildGridSlots derives the grid layout: one goalie row followed by skater
// rows. Only the first goalie of each side is shown.
func BuildGridSlots(entrants []Entrant) []GridSlot {
	lists := PartitionGrid(entrants)
	skaterRows := lists.SkaterRowCount()

	slots := make([]GridSlot, 0, 1+skaterRows)
	goalie := GridSlot{Kind: SlotGoalie, Row: GoalieRow}
	for column := 0; column < 2; column++ {
		if len(lists.Goalies[column]) > 0 {
			entrant := lists.Goalies[column][0]
			goalie.Cells[column] = &entrant
		}
	}
	slots = append(slots, goalie)

	for i := 0; i < skaterRows; i++ {
		slot := GridSlot{Kind: SlotSkater, Row: i + 1}
		for column := 0; column < 2; column++ {
			if i < len(lists.Skaters[column]) {
				entrant := lists.Skaters[column][i]
				slot.Cells[column] = &entrant
			}
		}
		slots = append(slots, slot)
	}
	return slots
}

// BuildLinearSlots maps the waitlist order one entrant per index.
func BuildLinearSlots(entrants []Entrant) []LinearSlot {
	slots := make([]LinearSlot, len(entrants))
	for i, entrant := range entrants {
		slots[i] = LinearSlot{Index: i, Entrant: entrant}
	}
	return slots
}

// locateInGrid finds the displayed row and column of an entrant. Surplus
// goalies are not displayed and report found=false.
func locateInGrid(slots []GridSlot, entrantID int64) (row, column int, found bool) {
	for _, slot := range slots {
		for c, cell := range slot.Cells {
			if cell != nil && cell.ID == entrantID {
				return slot.Row, c, true
			}
		}
	}
	return 0, 0, false
}

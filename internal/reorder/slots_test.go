package reorder

import (
	"testing"
)

func skater(id int64, group Group, order int) Entrant {
	return Entrant{ID: id, Name: "Skater", Position: PositionSkater, Group: group, Order: IntPtr(order)}
}

func goalie(id int64, group Group, order int) Entrant {
	return Entrant{ID: id, Name: "Goalie", Position: PositionGoalie, Group: group, Order: IntPtr(order)}
}

func cellID(slot GridSlot, column int) int64 {
	if slot.Cells[column] == nil {
		return 0
	}
	return slot.Cells[column].ID
}

func TestBuildGridSlotsCount(t *testing.T) {
	tests := []struct {
		name     string
		entrants []Entrant
		want     int
	}{
		{name: "empty", entrants: nil, want: 2},
		{name: "goalies only", entrants: []Entrant{goalie(1, GroupA, 0), goalie(2, GroupB, 0)}, want: 2},
		{name: "uneven teams", entrants: []Entrant{skater(1, GroupA, 0), skater(2, GroupA, 1), skater(3, GroupA, 2), skater(4, GroupB, 0)}, want: 4},
		{name: "team b larger", entrants: []Entrant{skater(1, GroupA, 0), skater(2, GroupB, 0), skater(3, GroupB, 1)}, want: 3},
		{name: "unassigned ignored", entrants: []Entrant{{ID: 9, Position: PositionSkater}}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := BuildGridSlots(tt.entrants)
			if len(slots) != tt.want {
				t.Fatalf("slot count = %d, want %d", len(slots), tt.want)
			}
			if slots[0].Kind != SlotGoalie || slots[0].Row != 0 {
				t.Fatalf("first slot = %+v, want goalie row 0", slots[0])
			}
			for i, slot := range slots[1:] {
				if slot.Kind != SlotSkater || slot.Row != i+1 {
					t.Fatalf("slot %d = %+v, want skater row %d", i+1, slot, i+1)
				}
			}
		})
	}
}

func TestBuildGridSlotsOrdering(t *testing.T) {
	entrants := []Entrant{
		{ID: 1, Position: PositionSkater, Group: GroupA},
		skater(2, GroupA, 5),
		skater(3, GroupA, 1),
		skater(4, GroupA, 1),
		goalie(5, GroupB, 1),
		goalie(6, GroupB, 0),
	}

	slots := BuildGridSlots(entrants)

	if got := cellID(slots[0], 1); got != 6 {
		t.Fatalf("team B goalie = %d, want 6", got)
	}
	if got := cellID(slots[0], 0); got != 0 {
		t.Fatalf("team A goalie = %d, want empty", got)
	}
	want := []int64{3, 4, 2, 1}
	for i, id := range want {
		if got := cellID(slots[i+1], 0); got != id {
			t.Fatalf("row %d team A = %d, want %d", i+1, got, id)
		}
	}
	if len(slots) != 5 {
		t.Fatalf("surplus goalie must not add rows, got %d slots", len(slots))
	}
}

func TestBuildGridSlotsDoesNotMutateInput(t *testing.T) {
	entrants := []Entrant{skater(2, GroupA, 1), skater(1, GroupA, 0)}
	BuildGridSlots(entrants)
	if entrants[0].ID != 2 || entrants[1].ID != 1 {
		t.Fatalf("input reordered: %+v", entrants)
	}
}

func TestBuildLinearSlots(t *testing.T) {
	entrants := []Entrant{{ID: 7}, {ID: 3}, {ID: 9}}
	slots := BuildLinearSlots(entrants)
	if len(slots) != 3 {
		t.Fatalf("slot count = %d, want 3", len(slots))
	}
	for i, slot := range slots {
		if slot.Index != i || slot.Entrant.ID != entrants[i].ID {
			t.Fatalf("slot %d = %+v", i, slot)
		}
	}
}

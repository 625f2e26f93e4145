package rosters

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	dbgen "github.com/codr1/rinkside/internal/db/generated"
	"github.com/codr1/rinkside/internal/reorder"
	"github.com/codr1/rinkside/internal/testutil"
)

func newTestStore(t *testing.T) (*Store, *testStoreDB) {
	t.Helper()
	database := testutil.NewTestDB(t)
	store, err := NewStore(database)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, &testStoreDB{t: t, store: store}
}

type testStoreDB struct {
	t     *testing.T
	store *Store
}

func (d *testStoreDB) event(name string) int64 {
	return testutil.SeedEvent(d.t, d.store.db, name).ID
}

func (d *testStoreDB) player(eventID int64, name, position, team string, order int) int64 {
	return testutil.SeedRegistration(d.t, d.store.db, eventID, name, position, team, order).ID
}

func (d *testStoreDB) waitlisted(eventID int64, name string) int64 {
	return testutil.SeedWaitlist(d.t, d.store.db, eventID, name).ID
}

func rosterByID(t *testing.T, store *Store, eventID int64) map[int64]reorder.Entrant {
	t.Helper()
	entrants, err := store.LoadRoster(context.Background(), eventID)
	if err != nil {
		t.Fatalf("load roster: %v", err)
	}
	out := make(map[int64]reorder.Entrant, len(entrants))
	for _, entrant := range entrants {
		out[entrant.ID] = entrant
	}
	return out
}

func TestApplyRosterOrderPersistsCommitBatch(t *testing.T) {
	store, seed := newTestStore(t)
	ctx := context.Background()
	eventID := seed.event("Friday skate")
	p1 := seed.player(eventID, "P1", "skater", "A", 0)
	p2 := seed.player(eventID, "P2", "skater", "A", 1)
	p3 := seed.player(eventID, "P3", "skater", "A", 2)
	p4 := seed.player(eventID, "P4", "skater", "B", 0)
	seed.player(eventID, "Late", "skater", "", -1)

	snapshot, err := store.LoadRoster(ctx, eventID)
	if err != nil {
		t.Fatalf("load roster: %v", err)
	}
	items, changed, err := reorder.PlanGridCommit(snapshot, p1, reorder.HoverTarget{Row: 2, Column: 1})
	if err != nil || !changed {
		t.Fatalf("plan: changed=%v err=%v", changed, err)
	}

	if err := store.ApplyRosterOrder(ctx, eventID, items); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got := rosterByID(t, store, eventID)
	want := map[int64]struct {
		group reorder.Group
		order int
	}{
		p2: {reorder.GroupA, 0},
		p3: {reorder.GroupA, 1},
		p4: {reorder.GroupB, 0},
		p1: {reorder.GroupB, 1},
	}
	for id, w := range want {
		entrant := got[id]
		if entrant.Group != w.group || entrant.Order == nil || *entrant.Order != w.order {
			t.Fatalf("entrant %d = group %q order %v, want %s/%d", id, entrant.Group, entrant.Order, w.group, w.order)
		}
	}

	logs, err := store.AuditLog(ctx, eventID)
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}
	if len(logs) != 1 || logs[0].Kind != auditKindRoster {
		t.Fatalf("audit log = %+v", logs)
	}
	var after []placement
	if err := json.Unmarshal([]byte(logs[0].AfterState.String), &after); err != nil {
		t.Fatalf("decode after state: %v", err)
	}
	if len(after) != len(items) {
		t.Fatalf("after state has %d entries, want %d", len(after), len(items))
	}
}

func TestApplyRosterOrderRejectsBadBatches(t *testing.T) {
	store, seed := newTestStore(t)
	ctx := context.Background()
	eventID := seed.event("Sunday skate")
	otherEvent := seed.event("Other skate")
	p1 := seed.player(eventID, "P1", "skater", "A", 0)
	p2 := seed.player(eventID, "P2", "skater", "B", 0)
	unassigned := seed.player(eventID, "Bench", "skater", "", -1)
	foreign := seed.player(otherEvent, "Foreign", "skater", "A", 0)

	tests := []struct {
		name    string
		items   []reorder.RosterItem
		wantErr error
	}{
		{
			name:    "empty",
			wantErr: ErrInvalidBatch,
		},
		{
			name: "duplicate entrant",
			items: []reorder.RosterItem{
				{EntrantID: p1, Group: reorder.GroupA, OrderIndex: 0},
				{EntrantID: p1, Group: reorder.GroupB, OrderIndex: 0},
			},
			wantErr: ErrInvalidBatch,
		},
		{
			name: "gap in group",
			items: []reorder.RosterItem{
				{EntrantID: p1, Group: reorder.GroupA, OrderIndex: 1},
				{EntrantID: p2, Group: reorder.GroupB, OrderIndex: 0},
			},
			wantErr: ErrInvalidBatch,
		},
		{
			name: "unknown group",
			items: []reorder.RosterItem{
				{EntrantID: p1, Group: "C", OrderIndex: 0},
			},
			wantErr: ErrInvalidBatch,
		},
		{
			name: "other event's player",
			items: []reorder.RosterItem{
				{EntrantID: p1, Group: reorder.GroupA, OrderIndex: 0},
				{EntrantID: p2, Group: reorder.GroupB, OrderIndex: 0},
				{EntrantID: foreign, Group: reorder.GroupB, OrderIndex: 1},
			},
			wantErr: ErrEntrantNotFound,
		},
		{
			name: "missing assigned player",
			items: []reorder.RosterItem{
				{EntrantID: p1, Group: reorder.GroupA, OrderIndex: 0},
			},
			wantErr: ErrStaleBatch,
		},
		{
			name: "unassigned player",
			items: []reorder.RosterItem{
				{EntrantID: p1, Group: reorder.GroupA, OrderIndex: 0},
				{EntrantID: p2, Group: reorder.GroupB, OrderIndex: 0},
				{EntrantID: unassigned, Group: reorder.GroupB, OrderIndex: 1},
			},
			wantErr: ErrStaleBatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.ApplyRosterOrder(ctx, eventID, tt.items)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Nothing was written by the rejected batches.
	got := rosterByID(t, store, eventID)
	if *got[p1].Order != 0 || got[p1].Group != reorder.GroupA {
		t.Fatalf("p1 changed: %+v", got[p1])
	}
	logs, err := store.AuditLog(ctx, eventID)
	if err != nil || len(logs) != 0 {
		t.Fatalf("audit log = %v err=%v", logs, err)
	}
}

func TestApplyRosterOrderEventState(t *testing.T) {
	store, seed := newTestStore(t)
	ctx := context.Background()

	batch := []reorder.RosterItem{{EntrantID: 1, Group: reorder.GroupA, OrderIndex: 0}}
	if err := store.ApplyRosterOrder(ctx, 999, batch); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("missing event err = %v", err)
	}

	eventID := seed.event("Done")
	p1 := seed.player(eventID, "P1", "skater", "A", 0)
	if _, err := store.db.Queries.UpdateEventStatus(ctx, dbgen.UpdateEventStatusParams{Status: "completed", ID: eventID}); err != nil {
		t.Fatalf("update status: %v", err)
	}
	batch = []reorder.RosterItem{{EntrantID: p1, Group: reorder.GroupB, OrderIndex: 0}}
	if err := store.ApplyRosterOrder(ctx, eventID, batch); !errors.Is(err, ErrEventClosed) {
		t.Fatalf("closed event err = %v", err)
	}
}

func TestApplyWaitlistOrder(t *testing.T) {
	store, seed := newTestStore(t)
	ctx := context.Background()
	eventID := seed.event("Waitlisted skate")
	w1 := seed.waitlisted(eventID, "W1")
	w2 := seed.waitlisted(eventID, "W2")
	w3 := seed.waitlisted(eventID, "W3")
	w4 := seed.waitlisted(eventID, "W4")

	order, err := store.LoadWaitlist(ctx, eventID)
	if err != nil {
		t.Fatalf("load waitlist: %v", err)
	}
	items, _, changed, err := reorder.PlanLinearCommit(order, 3, 0)
	if err != nil || !changed {
		t.Fatalf("plan: changed=%v err=%v", changed, err)
	}
	if err := store.ApplyWaitlistOrder(ctx, eventID, items); err != nil {
		t.Fatalf("apply: %v", err)
	}

	after, err := store.LoadWaitlist(ctx, eventID)
	if err != nil {
		t.Fatalf("reload waitlist: %v", err)
	}
	var ids []int64
	for i, entrant := range after {
		ids = append(ids, entrant.ID)
		if *entrant.Order != i+1 {
			t.Fatalf("entrant %d position = %d, want %d", entrant.ID, *entrant.Order, i+1)
		}
	}
	if !reflect.DeepEqual(ids, []int64{w4, w1, w2, w3}) {
		t.Fatalf("order = %v", ids)
	}

	tests := []struct {
		name    string
		items   []reorder.WaitlistItem
		wantErr error
	}{
		{name: "partial", items: []reorder.WaitlistItem{{EntrantID: w1, Position: 1}}, wantErr: ErrStaleBatch},
		{name: "zero position", items: []reorder.WaitlistItem{{EntrantID: w1, Position: 0}}, wantErr: ErrInvalidBatch},
		{name: "repeated position", items: []reorder.WaitlistItem{
			{EntrantID: w1, Position: 1},
			{EntrantID: w2, Position: 1},
		}, wantErr: ErrInvalidBatch},
		{name: "unknown entry", items: []reorder.WaitlistItem{{EntrantID: 4242, Position: 1}}, wantErr: ErrEntrantNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.ApplyWaitlistOrder(ctx, eventID, tt.items); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnassignTeamCompactsFormerTeam(t *testing.T) {
	store, seed := newTestStore(t)
	ctx := context.Background()
	eventID := seed.event("Thursday skate")
	g := seed.player(eventID, "G", "goalie", "A", 0)
	s1 := seed.player(eventID, "S1", "skater", "A", 1)
	s2 := seed.player(eventID, "S2", "skater", "A", 2)
	s3 := seed.player(eventID, "S3", "skater", "A", 3)
	b1 := seed.player(eventID, "B1", "skater", "B", 0)

	if err := store.UnassignTeam(ctx, eventID, s2); err != nil {
		t.Fatalf("unassign: %v", err)
	}

	got := rosterByID(t, store, eventID)
	if got[s2].Group != "" || got[s2].Order != nil {
		t.Fatalf("unassigned player still placed: %+v", got[s2])
	}
	wantOrders := map[int64]int{g: 0, s1: 1, s3: 2, b1: 0}
	for id, want := range wantOrders {
		if got[id].Order == nil || *got[id].Order != want {
			t.Fatalf("entrant %d order = %v, want %d", id, got[id].Order, want)
		}
	}

	if err := store.UnassignTeam(ctx, eventID, s2); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("second unassign err = %v", err)
	}
	if err := store.UnassignTeam(ctx, eventID, 4242); !errors.Is(err, ErrEntrantNotFound) {
		t.Fatalf("unknown registration err = %v", err)
	}
}

func TestCompactEvent(t *testing.T) {
	store, seed := newTestStore(t)
	ctx := context.Background()
	eventID := seed.event("Gappy skate")
	a1 := seed.player(eventID, "A1", "skater", "A", 3)
	a2 := seed.player(eventID, "A2", "skater", "A", 7)
	a3 := seed.player(eventID, "A3", "skater", "A", -1)
	w1 := seed.waitlisted(eventID, "W1")
	w2 := seed.waitlisted(eventID, "W2")
	w3 := seed.waitlisted(eventID, "W3")
	if _, err := store.db.Queries.DeleteWaitlistEntry(ctx, dbgen.DeleteWaitlistEntryParams{ID: w2, EventID: eventID}); err != nil {
		t.Fatalf("delete waitlist entry: %v", err)
	}

	changed, err := store.CompactEvent(ctx, eventID)
	if err != nil || !changed {
		t.Fatalf("compact: changed=%v err=%v", changed, err)
	}

	got := rosterByID(t, store, eventID)
	for id, want := range map[int64]int{a1: 0, a2: 1, a3: 2} {
		if got[id].Order == nil || *got[id].Order != want {
			t.Fatalf("entrant %d order = %v, want %d", id, got[id].Order, want)
		}
	}
	waitlist, err := store.LoadWaitlist(ctx, eventID)
	if err != nil {
		t.Fatalf("load waitlist: %v", err)
	}
	if len(waitlist) != 2 || waitlist[0].ID != w1 || waitlist[1].ID != w3 || *waitlist[1].Order != 2 {
		t.Fatalf("waitlist after compaction = %+v", waitlist)
	}

	changed, err = store.CompactEvent(ctx, eventID)
	if err != nil || changed {
		t.Fatalf("second compact: changed=%v err=%v", changed, err)
	}

	compacted, err := store.CompactActiveEvents(ctx)
	if err != nil || compacted != 0 {
		t.Fatalf("compact active: %d err=%v", compacted, err)
	}
}

func TestLoadRosterMeta(t *testing.T) {
	store, seed := newTestStore(t)
	eventID := seed.event("Meta skate")
	id := seed.player(eventID, "Goalie", "goalie", "B", 0)

	got := rosterByID(t, store, eventID)[id]
	if !got.IsGoalie() || got.Group != reorder.GroupB || got.Meta[MetaPaymentStatus] != "paid" {
		t.Fatalf("entrant = %+v", got)
	}

	if _, err := store.LoadRoster(context.Background(), 999); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("missing event err = %v", err)
	}
}

func TestNewStoreRequiresDatabase(t *testing.T) {
	if _, err := NewStore(nil); err == nil {
		t.Fatal("expected error for nil database")
	}
}

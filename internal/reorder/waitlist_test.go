package reorder

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

// gatedReorder blocks each call until the test releases it with a result.
type gatedReorder struct {
	calls   chan []WaitlistItem
	results chan error
}

func newGatedReorder() *gatedReorder {
	return &gatedReorder{calls: make(chan []WaitlistItem, 4), results: make(chan error, 4)}
}

func (g *gatedReorder) reorder(ctx context.Context, items []WaitlistItem) error {
	g.calls <- items
	return <-g.results
}

func waitlistEntrants() []Entrant {
	return []Entrant{
		{ID: 1, Name: "W1", Order: IntPtr(1)},
		{ID: 2, Name: "W2", Order: IntPtr(2)},
		{ID: 3, Name: "W3", Order: IntPtr(3)},
		{ID: 4, Name: "W4", Order: IntPtr(4)},
	}
}

func renderedIDs(w *Waitlist) []int64 {
	var ids []int64
	for _, slot := range w.Slots() {
		ids = append(ids, slot.Entrant.ID)
	}
	return ids
}

func newTestWaitlist(t *testing.T, sink *gatedReorder) (*Waitlist, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	w, err := NewWaitlist(WaitlistConfig{
		Tracker: TrackerConfig{
			LongPress: 200 * time.Millisecond,
			Geometry:  testGeometry,
			Clock:     clock,
		},
		OnReorder: sink.reorder,
	}, waitlistEntrants())
	if err != nil {
		t.Fatalf("new waitlist: %v", err)
	}
	return w, clock
}

func dragWaitlist(t *testing.T, w *Waitlist, clock *fakeClock, entrantID int64, fromRow, toRow int) WaitlistResult {
	t.Helper()
	if err := w.Press(entrantID, rowPoint(fromRow, 0)); err != nil {
		t.Fatalf("press %d: %v", entrantID, err)
	}
	clock.Advance(250 * time.Millisecond)
	w.Move(rowPoint(toRow, 0))
	result, err := w.Release(context.Background(), rowPoint(toRow, 0))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	return result
}

func TestWaitlistOptimisticCommit(t *testing.T) {
	sink := newGatedReorder()
	w, clock := newTestWaitlist(t, sink)

	result := dragWaitlist(t, w, clock, 4, 3, 0)
	if result.Pending == nil {
		t.Fatal("expected a pending submission")
	}

	items := <-sink.calls
	want := []WaitlistItem{
		{EntrantID: 4, Position: 1},
		{EntrantID: 1, Position: 2},
		{EntrantID: 2, Position: 3},
		{EntrantID: 3, Position: 4},
	}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("batch = %+v, want %+v", items, want)
	}

	if got := renderedIDs(w); !reflect.DeepEqual(got, []int64{4, 1, 2, 3}) {
		t.Fatalf("optimistic order = %v", got)
	}
	if !w.Busy() {
		t.Fatal("expected in-flight submission")
	}
	if err := w.Press(1, rowPoint(1, 0)); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("press during submission err = %v", err)
	}

	sink.results <- nil
	if err := result.Pending.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := renderedIDs(w); !reflect.DeepEqual(got, []int64{4, 1, 2, 3}) {
		t.Fatalf("order after confirm = %v", got)
	}
	if w.Busy() {
		t.Fatal("still busy after confirm")
	}
}

func TestWaitlistRollbackOnFailure(t *testing.T) {
	sink := newGatedReorder()
	w, clock := newTestWaitlist(t, sink)
	before := renderedIDs(w)

	result := dragWaitlist(t, w, clock, 1, 0, 2)
	<-sink.calls
	if got := renderedIDs(w); !reflect.DeepEqual(got, []int64{2, 3, 1, 4}) {
		t.Fatalf("optimistic order = %v", got)
	}

	failure := errors.New("rejected by server")
	sink.results <- failure
	err := result.Pending.Wait(context.Background())
	if !errors.Is(err, failure) {
		t.Fatalf("wait err = %v", err)
	}
	if got := renderedIDs(w); !reflect.DeepEqual(got, before) {
		t.Fatalf("order after rollback = %v, want %v", got, before)
	}

	// Gate reopens after the failed call settles.
	if err := w.Press(2, rowPoint(0, 0)); err != nil {
		t.Fatalf("press after rollback: %v", err)
	}
}

func TestWaitlistSecondDragBuildsOnConfirmedOrder(t *testing.T) {
	sink := newGatedReorder()
	w, clock := newTestWaitlist(t, sink)

	first := dragWaitlist(t, w, clock, 4, 3, 0)
	<-sink.calls
	sink.results <- nil
	if err := first.Pending.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	second := dragWaitlist(t, w, clock, 3, 3, 1)
	items := <-sink.calls
	sink.results <- nil
	if err := second.Pending.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	want := []WaitlistItem{
		{EntrantID: 4, Position: 1},
		{EntrantID: 3, Position: 2},
		{EntrantID: 1, Position: 3},
		{EntrantID: 2, Position: 4},
	}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("second batch = %+v, want %+v", items, want)
	}
}

func TestWaitlistSnapshotDuringSubmission(t *testing.T) {
	sink := newGatedReorder()
	w, clock := newTestWaitlist(t, sink)

	result := dragWaitlist(t, w, clock, 2, 1, 0)
	<-sink.calls

	fresh := []Entrant{{ID: 9, Order: IntPtr(1)}, {ID: 2, Order: IntPtr(2)}}
	w.SetEntrants(fresh)

	sink.results <- errors.New("conflict")
	_ = result.Pending.Wait(context.Background())
	if got := renderedIDs(w); !reflect.DeepEqual(got, []int64{9, 2}) {
		t.Fatalf("rendered = %v, want fresh snapshot", got)
	}
}

func TestWaitlistNoopAndTap(t *testing.T) {
	sink := newGatedReorder()
	var taps []int64
	clock := newFakeClock()
	w, err := NewWaitlist(WaitlistConfig{
		Tracker:     TrackerConfig{Geometry: testGeometry, Clock: clock},
		OnReorder:   sink.reorder,
		OnItemPress: func(entrant Entrant) { taps = append(taps, entrant.ID) },
	}, waitlistEntrants())
	if err != nil {
		t.Fatalf("new waitlist: %v", err)
	}

	result := dragWaitlist(t, w, clock, 2, 1, 1)
	if result.Pending != nil || result.Release.Kind != ReleaseDrop {
		t.Fatalf("same-index drop = %+v", result)
	}
	select {
	case items := <-sink.calls:
		t.Fatalf("unexpected submission %v", items)
	default:
	}

	if err := w.Press(3, rowPoint(2, 0)); err != nil {
		t.Fatalf("press: %v", err)
	}
	if _, err := w.Release(context.Background(), rowPoint(2, 0)); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !reflect.DeepEqual(taps, []int64{3}) {
		t.Fatalf("taps = %v", taps)
	}
}

func TestNewWaitlistRequiresCallback(t *testing.T) {
	if _, err := NewWaitlist(WaitlistConfig{}, nil); err == nil {
		t.Fatal("expected error without OnReorder")
	}
}

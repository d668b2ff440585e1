package whisk

import (
	"errors"
	"testing"
)

func lineSegment(t *testing.T, x0, y0, x1, y1 float64) *Segment {
	t.Helper()
	seg, err := NewSegment([]Point{{X: x0, Y: y0}, {X: (x0 + x1) / 2, Y: (y0 + y1) / 2}, {X: x1, Y: y1}})
	if err != nil {
		t.Fatalf("can't build segment: %v", err)
	}
	return seg
}

func TestAssignMovesSegmentBetweenTrajectories(t *testing.T) {
	store := NewTrajectoryStore(100)
	seg := lineSegment(t, 10, 10, 50, 10)

	if err := store.Assign(3, 10, seg); err != nil {
		t.Fatalf("assign to traj 3: %v", err)
	}
	if err := store.Assign(5, 10, seg); err != nil {
		t.Fatalf("assign to traj 5: %v", err)
	}

	if _, ok := store.Segment(3, 10); ok {
		t.Error("trajectory 3 should have lost the segment in frame 10")
	}
	got, ok := store.Segment(5, 10)
	if !ok {
		t.Fatal("trajectory 5 should own the segment in frame 10")
	}
	if got.ID() != seg.ID() {
		t.Errorf("trajectory 5 owns segment %v, want %v", got.ID(), seg.ID())
	}
	// Trajectory 3 lost its only segment, so the id itself is gone.
	ids := store.IDs()
	if len(ids) != 1 || ids[0] != 5 {
		t.Errorf("expected only trajectory 5 to remain, got %v", ids)
	}
}

func TestAssignReplaceReleasesOldSegment(t *testing.T) {
	store := NewTrajectoryStore(10)
	old := lineSegment(t, 0, 0, 10, 0)
	replacement := lineSegment(t, 0, 5, 10, 5)

	if err := store.Assign(1, 0, old); err != nil {
		t.Fatal(err)
	}
	if err := store.Assign(1, 0, replacement); err != nil {
		t.Fatal(err)
	}

	got, ok := store.Segment(1, 0)
	if !ok || got.ID() != replacement.ID() {
		t.Fatal("replacement segment should be the one assigned")
	}
	if _, owned := store.Owner(0, old.ID()); owned {
		t.Error("old segment should have no owner after being replaced")
	}
}

func TestClearIsIdempotentAndDropsEmptyTrajectories(t *testing.T) {
	store := NewTrajectoryStore(10)
	seg := lineSegment(t, 0, 0, 10, 0)
	if err := store.Assign(2, 4, seg); err != nil {
		t.Fatal(err)
	}

	if err := store.Clear(2, 4); err != nil {
		t.Fatalf("clear: %v", err)
	}
	found, _, err := store.FindNearestSegment(4, Point{X: 5, Y: 0}, 3.0)
	if err != nil {
		t.Fatal(err)
	}
	if found != nil {
		t.Error("cleared segment still discoverable in frame")
	}
	if store.Len() != 0 {
		t.Errorf("empty trajectory should be dropped, store has %d", store.Len())
	}

	// Clearing a gap is a no-op, not an error.
	if err := store.Clear(2, 4); err != nil {
		t.Errorf("second clear should be a no-op, got %v", err)
	}
}

func TestDeleteInFrameMatchesClear(t *testing.T) {
	store := NewTrajectoryStore(10)
	if err := store.Assign(1, 0, lineSegment(t, 0, 0, 5, 0)); err != nil {
		t.Fatal(err)
	}
	if err := store.Assign(1, 1, lineSegment(t, 0, 1, 5, 1)); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteInFrame(1, 0); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Segment(1, 0); ok {
		t.Error("segment in frame 0 should be deleted")
	}
	if _, ok := store.Segment(1, 1); !ok {
		t.Error("segment in frame 1 must survive a delete in frame 0")
	}
	if store.Len() != 1 {
		t.Errorf("trajectory with remaining segments must be retained, store has %d", store.Len())
	}
}

func TestFrameRangeErrors(t *testing.T) {
	store := NewTrajectoryStore(10)
	seg := lineSegment(t, 0, 0, 5, 0)

	if err := store.Assign(1, -1, seg); !errors.Is(err, ErrFrameRange) {
		t.Errorf("assign at frame -1: got %v, want ErrFrameRange", err)
	}
	if err := store.Assign(1, 10, seg); !errors.Is(err, ErrFrameRange) {
		t.Errorf("assign at frame 10: got %v, want ErrFrameRange", err)
	}
	if err := store.Clear(1, 99); !errors.Is(err, ErrFrameRange) {
		t.Errorf("clear at frame 99: got %v, want ErrFrameRange", err)
	}
	if _, _, err := store.NextGap(1, -5, Forward); !errors.Is(err, ErrFrameRange) {
		t.Errorf("next gap from frame -5: got %v, want ErrFrameRange", err)
	}
	if _, _, err := store.FindNearestSegment(10, Point{}, 1.0); !errors.Is(err, ErrFrameRange) {
		t.Errorf("find in frame 10: got %v, want ErrFrameRange", err)
	}
	if store.Len() != 0 {
		t.Error("failed operations must leave the store unchanged")
	}
}

func TestFindNearestSegmentTieBreak(t *testing.T) {
	store := NewTrajectoryStore(10)
	// Two parallel segments equidistant from the probe point.
	if err := store.Assign(7, 0, lineSegment(t, 0, 10, 20, 10)); err != nil {
		t.Fatal(err)
	}
	if err := store.Assign(2, 0, lineSegment(t, 0, 30, 20, 30)); err != nil {
		t.Fatal(err)
	}

	_, id, err := store.FindNearestSegment(0, Point{X: 10, Y: 20}, 15.0)
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Errorf("equidistant segments must tie-break to the lowest id, got %d", id)
	}

	// Nothing within a tight radius.
	found, _, err := store.FindNearestSegment(0, Point{X: 10, Y: 20}, 5.0)
	if err != nil {
		t.Fatal(err)
	}
	if found != nil {
		t.Error("no segment passes within radius 5 of the probe")
	}
}

func TestNextGapVisitsEveryGapInOrder(t *testing.T) {
	store := NewTrajectoryStore(6)
	for _, f := range []int{0, 1, 3, 4} {
		if err := store.Assign(1, f, lineSegment(t, 0, float64(f), 5, float64(f))); err != nil {
			t.Fatal(err)
		}
	}

	// Gaps are frames 2 and 5. Scanning forward and advancing past each
	// hit visits them exactly once in increasing order.
	var visited []int
	from := 0
	for from < store.FrameCount() {
		gap, found, err := store.NextGap(1, from, Forward)
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			break
		}
		visited = append(visited, gap)
		from = gap + 1
	}
	want := []int{2, 5}
	if len(visited) != len(want) {
		t.Fatalf("visited gaps %v, want %v", visited, want)
	}
	for i := range want {
		if visited[i] != want[i] {
			t.Fatalf("visited gaps %v, want %v", visited, want)
		}
	}

	// A frame that is itself a gap is returned as-is.
	gap, found, err := store.NextGap(1, 2, Forward)
	if err != nil || !found || gap != 2 {
		t.Errorf("gap search from a gap frame: got (%d, %v, %v), want (2, true, nil)", gap, found, err)
	}

	// Backward from frame 4 the first gap is 2.
	gap, found, err = store.NextGap(1, 4, Backward)
	if err != nil || !found || gap != 2 {
		t.Errorf("backward gap search: got (%d, %v, %v), want (2, true, nil)", gap, found, err)
	}
}

func TestNextGapNoneWhenComplete(t *testing.T) {
	store := NewTrajectoryStore(3)
	for f := 0; f < 3; f++ {
		if err := store.Assign(1, f, lineSegment(t, 0, float64(f), 5, float64(f))); err != nil {
			t.Fatal(err)
		}
	}
	if _, found, err := store.NextGap(1, 0, Forward); err != nil || found {
		t.Errorf("complete trajectory has no forward gap, got found=%v err=%v", found, err)
	}
	if _, found, err := store.NextGap(1, 2, Backward); err != nil || found {
		t.Errorf("complete trajectory has no backward gap, got found=%v err=%v", found, err)
	}
}

func TestNextGapAnyTrajectory(t *testing.T) {
	store := NewTrajectoryStore(4)
	// Trajectory 1 is complete; trajectory 2 misses frame 1 only.
	for f := 0; f < 4; f++ {
		if err := store.Assign(1, f, lineSegment(t, 0, float64(f), 5, float64(f))); err != nil {
			t.Fatal(err)
		}
		if f == 1 {
			continue
		}
		if err := store.Assign(2, f, lineSegment(t, 0, float64(f)+10, 5, float64(f)+10)); err != nil {
			t.Fatal(err)
		}
	}
	gap, found, err := store.NextGapAnyTrajectory(0, Forward)
	if err != nil || !found || gap != 1 {
		t.Errorf("any-trajectory gap: got (%d, %v, %v), want (1, true, nil)", gap, found, err)
	}

	empty := NewTrajectoryStore(4)
	if _, found, err := empty.NextGapAnyTrajectory(0, Forward); err != nil || found {
		t.Errorf("empty store has no trajectories to have gaps, got found=%v err=%v", found, err)
	}
}

func TestRecordsExportOrder(t *testing.T) {
	store := NewTrajectoryStore(10)
	if err := store.Assign(5, 2, lineSegment(t, 0, 0, 5, 0)); err != nil {
		t.Fatal(err)
	}
	if err := store.Assign(1, 2, lineSegment(t, 0, 1, 5, 1)); err != nil {
		t.Fatal(err)
	}
	if err := store.Assign(1, 0, lineSegment(t, 0, 2, 5, 2)); err != nil {
		t.Fatal(err)
	}

	records := store.Records()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	wantOrder := []struct{ frame, traj int }{{0, 1}, {2, 1}, {2, 5}}
	for i, want := range wantOrder {
		if records[i].Frame != want.frame || records[i].TrajectoryID != want.traj {
			t.Errorf("record %d: got (frame %d, traj %d), want (frame %d, traj %d)",
				i, records[i].Frame, records[i].TrajectoryID, want.frame, want.traj)
		}
	}
}

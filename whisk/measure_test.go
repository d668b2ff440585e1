package whisk

import (
	"math"
	"testing"
)

func TestMeasureSegmentOrientationMarker(t *testing.T) {
	seg := lineSegment(t, 10, 50, 90, 50)

	known := MeasureSegment(seg, FaceLeft)
	if !known.KnownOrientation {
		t.Error("face hint set: orientation must be known")
	}
	if known.FollicleX != 10 {
		t.Errorf("left follicle x: got %g, want 10", known.FollicleX)
	}

	unknown := MeasureSegment(seg, FaceUnset)
	if unknown.KnownOrientation {
		t.Error("face hint unset: measures must carry the unknown-orientation marker")
	}
}

func TestBuildMeasurementsVelocities(t *testing.T) {
	store := NewTrajectoryStore(10)
	// Consecutive frames 0 and 1, then a gap, then frame 3.
	if err := store.Assign(1, 0, lineSegment(t, 0, 0, 10, 0)); err != nil {
		t.Fatal(err)
	}
	if err := store.Assign(1, 1, lineSegment(t, 0, 0, 14, 0)); err != nil {
		t.Fatal(err)
	}
	if err := store.Assign(1, 3, lineSegment(t, 0, 0, 20, 0)); err != nil {
		t.Fatal(err)
	}

	ms := BuildMeasurements(store, FaceLeft)
	if len(ms) != 3 {
		t.Fatalf("expected 3 measurements, got %d", len(ms))
	}
	for i, want := range []int{0, 1, 3} {
		if ms[i].Frame != want {
			t.Fatalf("measurements out of order: got frame %d at index %d, want %d", ms[i].Frame, i, want)
		}
	}

	if ms[0].VelocityValid {
		t.Error("first frame of a trajectory has no velocity")
	}
	if !ms[1].VelocityValid {
		t.Error("consecutive frames must produce a valid velocity")
	}
	if math.Abs(ms[1].Velocity.Length-4.0) > eps {
		t.Errorf("length velocity: got %g, want 4", ms[1].Velocity.Length)
	}
	if ms[2].VelocityValid {
		t.Error("a measurement following a gap must not claim a valid velocity")
	}
}

func TestBuildMeasurementsSortedByTrajectoryThenFrame(t *testing.T) {
	store := NewTrajectoryStore(10)
	if err := store.Assign(4, 0, lineSegment(t, 0, 0, 10, 0)); err != nil {
		t.Fatal(err)
	}
	if err := store.Assign(2, 5, lineSegment(t, 0, 1, 10, 1)); err != nil {
		t.Fatal(err)
	}
	if err := store.Assign(2, 1, lineSegment(t, 0, 2, 10, 2)); err != nil {
		t.Fatal(err)
	}

	ms := BuildMeasurements(store, FaceLeft)
	want := []struct{ traj, frame int }{{2, 1}, {2, 5}, {4, 0}}
	if len(ms) != len(want) {
		t.Fatalf("expected %d measurements, got %d", len(want), len(ms))
	}
	for i, w := range want {
		if ms[i].TrajectoryID != w.traj || ms[i].Frame != w.frame {
			t.Errorf("index %d: got (traj %d, frame %d), want (traj %d, frame %d)",
				i, ms[i].TrajectoryID, ms[i].Frame, w.traj, w.frame)
		}
	}
}

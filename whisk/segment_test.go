package whisk

import (
	"math"
	"testing"
)

func TestNewSegmentRequiresTwoPoints(t *testing.T) {
	if _, err := NewSegment([]Point{{X: 1, Y: 1}}); err == nil {
		t.Error("a single point is not a backbone")
	}
	if _, err := NewSegment(nil); err == nil {
		t.Error("an empty backbone must be rejected")
	}
	if _, err := NewSegment([]Point{{X: 0, Y: 0}, {X: 1, Y: 0}}); err != nil {
		t.Errorf("two points are enough: %v", err)
	}
}

func TestSegmentIsolatedFromCallerSlice(t *testing.T) {
	pts := []Point{{X: 0, Y: 0}, {X: 10, Y: 0}}
	seg, err := NewSegment(pts)
	if err != nil {
		t.Fatal(err)
	}
	pts[0].X = 999
	if seg.Points()[0].X != 0 {
		t.Error("segment must copy the backbone on construction")
	}
}

func TestSegmentLengthAndExtent(t *testing.T) {
	seg, err := NewSegment([]Point{{X: 0, Y: 0}, {X: 3, Y: 4}})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(seg.Length()-5.0) > eps {
		t.Errorf("length: got %v, want 5", seg.Length())
	}
	if math.Abs(seg.Extent()-5.0) > eps {
		t.Errorf("extent: got %v, want 5", seg.Extent())
	}

	// An L-shaped backbone is longer than its chord.
	bent, err := NewSegment([]Point{{X: 0, Y: 0}, {X: 3, Y: 0}, {X: 3, Y: 4}})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(bent.Length()-7.0) > eps {
		t.Errorf("bent length: got %v, want 7", bent.Length())
	}
	if math.Abs(bent.Extent()-5.0) > eps {
		t.Errorf("bent extent: got %v, want 5", bent.Extent())
	}
}

func TestFollicleResolvedByFaceHint(t *testing.T) {
	seg := lineSegment(t, 10, 50, 90, 50)

	left := seg.Follicle(FaceLeft)
	if left.X != 10 {
		t.Errorf("face left: follicle at x=%g, want 10", left.X)
	}
	right := seg.Follicle(FaceRight)
	if right.X != 90 {
		t.Errorf("face right: follicle at x=%g, want 90", right.X)
	}
	if tip := seg.Tip(FaceLeft); tip.X != 90 {
		t.Errorf("face left: tip at x=%g, want 90", tip.X)
	}

	vertical := lineSegment(t, 50, 10, 50, 90)
	if top := vertical.Follicle(FaceTop); top.Y != 10 {
		t.Errorf("face top: follicle at y=%g, want 10", top.Y)
	}
	if bottom := vertical.Follicle(FaceBottom); bottom.Y != 90 {
		t.Errorf("face bottom: follicle at y=%g, want 90", bottom.Y)
	}
}

func TestRootAngle(t *testing.T) {
	seg := lineSegment(t, 10, 50, 90, 50)
	if a := seg.RootAngleDeg(FaceLeft); math.Abs(a) > eps {
		t.Errorf("angle away from a left follicle along +x: got %g, want 0", a)
	}
	if a := math.Abs(seg.RootAngleDeg(FaceRight)); math.Abs(a-180.0) > eps {
		t.Errorf("angle away from a right follicle: got %g, want 180", a)
	}
}

func TestMeanCurvature(t *testing.T) {
	straight := lineSegment(t, 0, 0, 100, 0)
	if c := straight.MeanCurvature(); c > eps {
		t.Errorf("straight backbone curvature: got %g, want 0", c)
	}

	bent, err := NewSegment([]Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}})
	if err != nil {
		t.Fatal(err)
	}
	if c := bent.MeanCurvature(); c <= 0 {
		t.Errorf("right-angle bend must have positive curvature, got %g", c)
	}
}

func TestSegmentDistanceTo(t *testing.T) {
	seg := lineSegment(t, 0, 0, 10, 0)
	if d := seg.DistanceTo(Point{X: 5, Y: 4}); math.Abs(d-4.0) > eps {
		t.Errorf("distance: got %g, want 4", d)
	}
	if d := seg.DistanceTo(Point{X: 5, Y: 0}); d > eps {
		t.Errorf("on-backbone distance: got %g, want 0", d)
	}
}

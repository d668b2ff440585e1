package whisk

import (
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Segment is the traced backbone of one whisker in one frame.
// It is immutable once built: re-tracing a whisker in a frame produces a
// new Segment with a new identifier rather than mutating an old one.
type Segment struct {
	id     uuid.UUID
	points []Point
}

// NewSegment builds a segment from an ordered backbone polyline.
// At least two points are required.
func NewSegment(points []Point) (*Segment, error) {
	if len(points) < 2 {
		return nil, errors.Errorf("segment needs at least 2 backbone points, got %d", len(points))
	}
	owned := make([]Point, len(points))
	copy(owned, points)
	return &Segment{
		id:     uuid.New(),
		points: owned,
	}, nil
}

// ID returns the segment's identifier
func (seg *Segment) ID() uuid.UUID {
	return seg.id
}

// Points returns the backbone polyline. Be careful: this is not a copy, but a reference to it
func (seg *Segment) Points() []Point {
	return seg.points
}

// Len returns the number of backbone points
func (seg *Segment) Len() int {
	return len(seg.points)
}

// Length returns the integrated path length of the backbone in pixels.
func (seg *Segment) Length() float64 {
	total := 0.0
	for i := 1; i < len(seg.points); i++ {
		total += euclideanDistance(seg.points[i-1], seg.points[i])
	}
	return total
}

// Extent returns the straight-line distance between the backbone ends.
func (seg *Segment) Extent() float64 {
	return euclideanDistance(seg.points[0], seg.points[len(seg.points)-1])
}

// Follicle returns the backbone end nearest the face side named by hint.
// With an unset hint the first backbone point is returned; callers that
// need an oriented follicle must check hint.Known() themselves.
func (seg *Segment) Follicle(hint FaceHint) Point {
	first := seg.points[0]
	last := seg.points[len(seg.points)-1]
	if facewardIsFirst(first, last, hint) {
		return first
	}
	return last
}

// Tip returns the backbone end opposite the follicle.
func (seg *Segment) Tip(hint FaceHint) Point {
	first := seg.points[0]
	last := seg.points[len(seg.points)-1]
	if facewardIsFirst(first, last, hint) {
		return last
	}
	return first
}

func facewardIsFirst(first, last Point, hint FaceHint) bool {
	switch hint {
	case FaceLeft:
		return first.X <= last.X
	case FaceRight:
		return first.X >= last.X
	case FaceTop:
		return first.Y <= last.Y
	case FaceBottom:
		return first.Y >= last.Y
	default:
		return true
	}
}

// RootAngleDeg returns the backbone direction at the follicle, in degrees,
// measured from the positive x axis pointing away from the follicle.
func (seg *Segment) RootAngleDeg(hint FaceHint) float64 {
	follicle := seg.Follicle(hint)
	var next Point
	if follicle == seg.points[0] {
		next = seg.points[1]
	} else {
		next = seg.points[len(seg.points)-2]
	}
	return math.Atan2(next.Y-follicle.Y, next.X-follicle.X) * 180.0 / math.Pi
}

// MeanCurvature returns the mean absolute turn per unit arc length (1/px).
func (seg *Segment) MeanCurvature() float64 {
	if len(seg.points) < 3 {
		return 0.0
	}
	total := 0.0
	arc := 0.0
	for i := 1; i < len(seg.points)-1; i++ {
		a := seg.points[i-1]
		b := seg.points[i]
		c := seg.points[i+1]
		t1 := math.Atan2(b.Y-a.Y, b.X-a.X)
		t2 := math.Atan2(c.Y-b.Y, c.X-b.X)
		dt := math.Abs(angleDiff(t2, t1))
		total += dt
		arc += euclideanDistance(a, b)
	}
	arc += euclideanDistance(seg.points[len(seg.points)-2], seg.points[len(seg.points)-1])
	if arc == 0 {
		return 0.0
	}
	return total / arc
}

// angleDiff wraps a-b into (-pi, pi].
func angleDiff(a, b float64) float64 {
	d := a - b
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d <= -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// DistanceTo returns the minimum distance from p to the backbone polyline.
func (seg *Segment) DistanceTo(p Point) float64 {
	best := math.MaxFloat64
	for i := 1; i < len(seg.points); i++ {
		d := pointToSegmentDistance(p, seg.points[i-1], seg.points[i])
		if d < best {
			best = d
		}
	}
	return best
}

// featureVector projects the segment to the measures the auto linker
// matches on: length, root angle, mean curvature and follicle position.
func (seg *Segment) featureVector(hint FaceHint) []float64 {
	f := seg.Follicle(hint)
	return []float64{
		seg.Length(),
		seg.RootAngleDeg(hint),
		seg.MeanCurvature(),
		f.X,
		f.Y,
	}
}

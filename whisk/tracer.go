package whisk

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// ErrNoRidge is returned when no whisker-like ridge exists within the
// search radius of the seed. It is a recoverable, operator-reported
// condition: retry with a different seed or a larger radius.
var ErrNoRidge = errors.New("no ridge found near seed")

// Tracer extracts a whisker backbone from a frame. Whiskers image as
// thin dark ridges on a brighter background; the tracer finds the
// strongest such ridge near an operator seed and walks it outward in
// both directions, re-estimating the local orientation from the image at
// every step.
//
// Trace is a pure function of its inputs: it never touches the
// trajectory store, and the caller decides what to do with the result.
type Tracer struct {
	// MinSNR is the minimum ridge contrast, in standard deviations below
	// the local mean intensity, for a pixel to count as on-whisker.
	MinSNR float64
	// MaxSteps bounds the walk length per direction.
	MaxSteps int
	// Recenter is the perpendicular search half-width (px) used to stay
	// on the ridge crest while walking.
	Recenter int
}

// NewTracer returns a tracer with production defaults.
func NewTracer() *Tracer {
	return &Tracer{
		MinSNR:   2.0,
		MaxSteps: 2000,
		Recenter: 2,
	}
}

// Trace derives a backbone segment from a seed point. The seed must lie
// within the frame and radius must be positive. Returns ErrNoRidge when
// nothing whisker-like lies within radius of the seed.
func (tr *Tracer) Trace(frame *image.Gray, seed Point, radius float64) (*Segment, error) {
	if radius <= 0 {
		return nil, errors.Errorf("trace radius must be positive, got %g", radius)
	}
	bounds := frame.Bounds()
	sx, sy := int(math.Round(seed.X)), int(math.Round(seed.Y))
	if !image.Pt(sx, sy).In(bounds) {
		return nil, errors.Errorf("seed (%g, %g) outside frame %v", seed.X, seed.Y, bounds)
	}

	start, ok := tr.findRidgeStart(frame, sx, sy, int(math.Ceil(radius)))
	if !ok {
		return nil, errors.Wrapf(ErrNoRidge, "seed (%g, %g) radius %g", seed.X, seed.Y, radius)
	}

	dir := tr.orientationAt(frame, start, Point{X: 1, Y: 0})
	forward := tr.walk(frame, start, dir)
	backward := tr.walk(frame, start, Point{X: -dir.X, Y: -dir.Y})

	// Concatenate tip-to-tip: backward leg reversed, then the start
	// point, then the forward leg.
	points := make([]Point, 0, len(forward)+len(backward)+1)
	for i := len(backward) - 1; i >= 0; i-- {
		points = append(points, backward[i])
	}
	points = append(points, start)
	points = append(points, forward...)
	if len(points) < 2 {
		return nil, errors.Wrapf(ErrNoRidge, "ridge at (%g, %g) too short to trace", start.X, start.Y)
	}
	return NewSegment(points)
}

// findRidgeStart scans the radius neighbourhood of the seed for the
// darkest pixel and checks it stands out from the local intensity
// distribution strongly enough to be a ridge.
func (tr *Tracer) findRidgeStart(frame *image.Gray, sx, sy, radius int) (Point, bool) {
	bounds := frame.Bounds()
	samples := make([]float64, 0, (2*radius+1)*(2*radius+1))
	bestVal := math.MaxFloat64
	bestX, bestY := sx, sy
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			x, y := sx+dx, sy+dy
			if !image.Pt(x, y).In(bounds) {
				continue
			}
			v := float64(frame.GrayAt(x, y).Y)
			samples = append(samples, v)
			if v < bestVal {
				bestVal = v
				bestX, bestY = x, y
			}
		}
	}
	if len(samples) == 0 {
		return Point{}, false
	}
	mean, std := stat.MeanStdDev(samples, nil)
	if std == 0 || (mean-bestVal)/std < tr.MinSNR {
		return Point{}, false
	}
	return Point{X: float64(bestX), Y: float64(bestY)}, true
}

// walk follows the ridge from start in direction dir, one pixel per
// step, re-centring perpendicular to the walk and re-estimating the
// orientation at each step. It stops when the ridge contrast drops below
// MinSNR, the walk exits the frame, or MaxSteps is reached. The start
// point itself is not included.
func (tr *Tracer) walk(frame *image.Gray, start, dir Point) []Point {
	bounds := frame.Bounds()
	var points []Point
	pos := start
	for step := 0; step < tr.MaxSteps; step++ {
		ahead := Point{X: pos.X + dir.X, Y: pos.Y + dir.Y}
		next, ok := tr.recenter(frame, ahead, dir)
		if !ok {
			break
		}
		nx, ny := int(math.Round(next.X)), int(math.Round(next.Y))
		if !image.Pt(nx, ny).In(bounds) {
			break
		}
		if !tr.onRidge(frame, nx, ny) {
			break
		}
		points = append(points, next)
		dir = tr.orientationAt(frame, next, dir)
		pos = next
	}
	return points
}

// recenter picks the darkest pixel among small perpendicular offsets of
// the step target, keeping the walk on the ridge crest.
func (tr *Tracer) recenter(frame *image.Gray, ahead, dir Point) (Point, bool) {
	bounds := frame.Bounds()
	perpX, perpY := -dir.Y, dir.X
	bestVal := math.MaxFloat64
	var best Point
	found := false
	for o := -tr.Recenter; o <= tr.Recenter; o++ {
		c := Point{X: ahead.X + float64(o)*perpX, Y: ahead.Y + float64(o)*perpY}
		x, y := int(math.Round(c.X)), int(math.Round(c.Y))
		if !image.Pt(x, y).In(bounds) {
			continue
		}
		v := float64(frame.GrayAt(x, y).Y)
		if v < bestVal {
			bestVal = v
			best = c
			found = true
		}
	}
	return best, found
}

// onRidge checks the pixel's contrast against its local 7x7 window.
func (tr *Tracer) onRidge(frame *image.Gray, x, y int) bool {
	bounds := frame.Bounds()
	var samples []float64
	for dy := -3; dy <= 3; dy++ {
		for dx := -3; dx <= 3; dx++ {
			px, py := x+dx, y+dy
			if !image.Pt(px, py).In(bounds) {
				continue
			}
			samples = append(samples, float64(frame.GrayAt(px, py).Y))
		}
	}
	if len(samples) < 4 {
		return false
	}
	mean, std := stat.MeanStdDev(samples, nil)
	if std == 0 {
		return false
	}
	return (mean-float64(frame.GrayAt(x, y).Y))/std >= tr.MinSNR
}

// orientationAt estimates the local ridge direction from the structure
// tensor of the image gradients in a 5x5 window. The gradient energy of
// a thin line concentrates perpendicular to it, so the ridge runs along
// the tensor's minor eigenvector. The previous direction fixes the sign
// and carries the walk through degenerate (flat) windows.
func (tr *Tracer) orientationAt(frame *image.Gray, at, prev Point) Point {
	cx, cy := int(math.Round(at.X)), int(math.Round(at.Y))
	var jxx, jxy, jyy float64
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			x, y := cx+dx, cy+dy
			gx := sampleClamped(frame, x+1, y) - sampleClamped(frame, x-1, y)
			gy := sampleClamped(frame, x, y+1) - sampleClamped(frame, x, y-1)
			jxx += gx * gx
			jxy += gx * gy
			jyy += gy * gy
		}
	}
	if jxx+jyy == 0 {
		return prev
	}
	// Major eigenvector angle of the symmetric tensor; the ridge is
	// perpendicular to it.
	theta := 0.5 * math.Atan2(2*jxy, jxx-jyy)
	ridge := Point{X: -math.Sin(theta), Y: math.Cos(theta)}
	if ridge.X*prev.X+ridge.Y*prev.Y < 0 {
		ridge.X, ridge.Y = -ridge.X, -ridge.Y
	}
	return ridge
}

func sampleClamped(frame *image.Gray, x, y int) float64 {
	bounds := frame.Bounds()
	x = clampInt(x, bounds.Min.X, bounds.Max.X-1)
	y = clampInt(y, bounds.Min.Y, bounds.Max.Y-1)
	return float64(frame.GrayAt(x, y).Y)
}

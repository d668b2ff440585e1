package whisk

import (
	"image"
	"math"
)

// Point is a 2D image-space coordinate (pixels).
type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

func NewPointFrom(point image.Point) Point {
	return Point{
		X: float64(point.X),
		Y: float64(point.Y),
	}
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}

// pointToSegmentDistance returns the distance from p to the line segment a-b.
func pointToSegmentDistance(p, a, b Point) float64 {
	abX := b.X - a.X
	abY := b.Y - a.Y
	lenSq := abX*abX + abY*abY
	if lenSq == 0 {
		return euclideanDistance(p, a)
	}
	t := ((p.X-a.X)*abX + (p.Y-a.Y)*abY) / lenSq
	t = clampFloat64(t, 0.0, 1.0)
	proj := Point{X: a.X + t*abX, Y: a.Y + t*abY}
	return euclideanDistance(p, proj)
}

func clampFloat64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

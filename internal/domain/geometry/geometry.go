// Package geometry holds the plane primitives shared by the scorer and the
// drawing session: sampled points, strokes and a few distance helpers.
package geometry

import "math"

// Point is a pointer sample in screen coordinates. Timestamp is the capture
// time in milliseconds, fractional as browsers report it, and is never used
// for geometry.
type Point struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp float64 `json:"timestamp"`
}

// Vec is a bare coordinate pair, used for derived positions such as a centroid.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pos drops the timestamp.
func (p Point) Pos() Vec { return Vec{X: p.X, Y: p.Y} }

// SamePosition reports whether two samples sit on the same coordinates.
func (p Point) SamePosition(q Point) bool { return p.X == q.X && p.Y == q.Y }

// Finite reports whether both coordinates are finite numbers.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Distance is the Euclidean distance between two positions.
func Distance(a, b Vec) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Centroid returns the arithmetic mean of the points. It returns the zero
// Vec for an empty slice.
func Centroid(points []Point) Vec {
	if len(points) == 0 {
		return Vec{}
	}
	var sx, sy float64
	for _, p := range points {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(points))
	return Vec{X: sx / n, Y: sy / n}
}

// Scale multiplies every coordinate by c, keeping timestamps.
func Scale(points []Point, c float64) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{X: p.X * c, Y: p.Y * c, Timestamp: p.Timestamp}
	}
	return out
}

// Span returns the time between the first and last sample in milliseconds.
func Span(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	return points[len(points)-1].Timestamp - points[0].Timestamp
}

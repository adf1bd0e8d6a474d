package geometry

import "errors"

// ErrStrokeFrozen is returned when appending to a finalized stroke.
var ErrStrokeFrozen = errors.New("stroke is finalized")

// Stroke accumulates samples in drawing order. It is append-only until
// Finalize is called. A Stroke is not safe for concurrent use.
type Stroke struct {
	points []Point
	frozen bool
}

// NewStroke returns an empty stroke with room for capacity samples.
func NewStroke(capacity int) *Stroke {
	if capacity < 0 {
		capacity = 0
	}
	return &Stroke{points: make([]Point, 0, capacity)}
}

// Append adds a sample to the end of the stroke.
func (s *Stroke) Append(p Point) error {
	if s.frozen {
		return ErrStrokeFrozen
	}
	s.points = append(s.points, p)
	return nil
}

// Len returns the number of samples.
func (s *Stroke) Len() int { return len(s.points) }

// First returns the first sample; ok is false when the stroke is empty.
func (s *Stroke) First() (Point, bool) {
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[0], true
}

// Last returns the most recent sample; ok is false when the stroke is empty.
func (s *Stroke) Last() (Point, bool) {
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[len(s.points)-1], true
}

// Snapshot returns a copy of the samples collected so far.
func (s *Stroke) Snapshot() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Finalize freezes the stroke and returns a copy of its samples. Calling it
// again returns the same samples.
func (s *Stroke) Finalize() []Point {
	s.frozen = true
	return s.Snapshot()
}

// Frozen reports whether Finalize has been called.
func (s *Stroke) Frozen() bool { return s.frozen }

// Package circularity scores how close a freehand stroke is to a circle.
//
// The score rewards a constant distance from the stroke's centroid and
// penalizes a gap between the first and last sample. It is a pure function
// of its input: a Scorer holds only immutable tuning and is safe for
// concurrent use.
package circularity

import (
	"fmt"
	"math"
	"strings"

	"github.com/fununcle/perfectcircle/internal/domain/geometry"
)

// Mode selects the sample threshold used for a stroke.
type Mode int

const (
	// Final scores a released stroke.
	Final Mode = iota
	// Live scores a stroke that is still being drawn.
	Live
)

func (m Mode) String() string {
	if m == Live {
		return "live"
	}
	return "final"
}

// ParseMode accepts "live" or "final"; empty means final.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "final":
		return Final, nil
	case "live":
		return Live, nil
	}
	return Final, fmt.Errorf("unknown scoring mode %q", s)
}

// Outcome classifies a Result.
type Outcome int

const (
	// Scored is a normal circularity score.
	Scored Outcome = iota
	// InsufficientSamples: the stroke is shorter than the mode threshold.
	InsufficientSamples
	// Degenerate: the stroke is a dot and received the fixed floor score.
	Degenerate
	// NonFinite: a coordinate was NaN or infinite. The stroke is rejected.
	NonFinite
)

func (o Outcome) String() string {
	switch o {
	case Scored:
		return "scored"
	case InsufficientSamples:
		return "insufficient_samples"
	case Degenerate:
		return "degenerate"
	case NonFinite:
		return "non_finite"
	}
	return "unknown"
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Result is the score of one stroke plus the geometry callers draw as feedback.
type Result struct {
	Score          float64      `json:"score"`
	Centroid       geometry.Vec `json:"centroid"`
	AverageRadius  float64      `json:"average_radius"`
	ClosureGap     float64      `json:"closure_gap"`
	DeviationRatio float64      `json:"deviation_ratio"`
	Outcome        Outcome      `json:"outcome"`
	Samples        int          `json:"samples"`
}

// Accepted reports whether the stroke produced a usable score.
func (r Result) Accepted() bool {
	return r.Outcome == Scored || r.Outcome == Degenerate
}

// Scorer computes circularity scores.
type Scorer interface {
	Score(points []geometry.Point, mode Mode) Result
}

// CentroidScorer implements Scorer with the centroid and mean absolute
// radius deviation method.
type CentroidScorer struct {
	cfg Config
}

// New builds a scorer from the defaults adjusted by opts.
func New(opts ...Option) (*CentroidScorer, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CentroidScorer{cfg: cfg}, nil
}

// Config returns the tuning in use.
func (s *CentroidScorer) Config() Config { return s.cfg }

// Score rates points as a circle. A trailing sample that repeats the first
// position is the closing vertex of an auto-closed stroke; it counts toward
// the sample threshold but not toward the centroid or radius statistics.
func (s *CentroidScorer) Score(points []geometry.Point, mode Mode) Result {
	n := len(points)
	if n < s.cfg.MinPoints(mode) {
		return Result{Outcome: InsufficientSamples, Samples: n}
	}
	for _, p := range points {
		if !p.Finite() {
			return Result{Outcome: NonFinite, Samples: n}
		}
	}

	first, last := points[0], points[n-1]
	sample := points
	if n > 1 && last.SamePosition(first) {
		sample = points[:n-1]
	}

	centroid := geometry.Centroid(sample)
	radii := make([]float64, len(sample))
	var radiusSum float64
	for i, p := range sample {
		radii[i] = geometry.Distance(p.Pos(), centroid)
		radiusSum += radii[i]
	}
	avgRadius := radiusSum / float64(len(sample))
	gap := geometry.Distance(first.Pos(), last.Pos())

	// Finite inputs can still overflow the sums.
	if !finite(centroid.X, centroid.Y, avgRadius, gap) {
		return Result{Outcome: NonFinite, Samples: n}
	}

	res := Result{
		Centroid:      centroid,
		AverageRadius: avgRadius,
		ClosureGap:    gap,
		Samples:       n,
	}

	if avgRadius < s.cfg.DegenerateRadiusPx {
		res.Outcome = Degenerate
		res.Score = s.cfg.DegenerateFloorScore
		return res
	}

	var deviationSum float64
	for _, r := range radii {
		deviationSum += math.Abs(r - avgRadius)
	}
	ratio := deviationSum / float64(len(radii)) / avgRadius

	base := math.Max(s.cfg.BaseFloor, 1-ratio*s.cfg.DeviationSensitivity)
	base -= math.Min(s.cfg.ClosurePenaltyMax, gap/avgRadius*s.cfg.ClosurePenaltyWeight)

	if !finite(ratio, base) {
		return Result{Outcome: NonFinite, Samples: n}
	}

	res.Outcome = Scored
	res.DeviationRatio = ratio
	res.Score = math.Max(s.cfg.MinScoreFloorPercent, math.Min(100, base*100))
	return res
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

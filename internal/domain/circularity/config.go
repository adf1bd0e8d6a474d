package circularity

import (
	"errors"
	"fmt"
)

// Default tuning values. They are the most lenient set seen in play.
const (
	DefaultMinPointsLive        = 10
	DefaultMinPointsFinal       = 50
	DefaultDegenerateRadiusPx   = 10.0
	DefaultDegenerateFloorScore = 10.0
	DefaultDeviationSensitivity = 2.0
	DefaultBaseFloor            = 0.1
	DefaultClosurePenaltyWeight = 0.1
	DefaultClosurePenaltyMax    = 0.2
	DefaultMinScoreFloorPercent = 10.0
)

// ErrInvalidConfig is returned by Validate and New.
var ErrInvalidConfig = errors.New("invalid scorer config")

// Config holds the scorer tuning policy.
type Config struct {
	// MinPointsLive is the smallest stroke scored while drawing.
	MinPointsLive int
	// MinPointsFinal is the smallest stroke scored on release.
	MinPointsFinal int
	// DegenerateRadiusPx: strokes with a smaller average radius are dots.
	DegenerateRadiusPx float64
	// DegenerateFloorScore is the fixed score given to dots, in percent.
	DegenerateFloorScore float64
	// DeviationSensitivity multiplies the deviation ratio; larger is stricter.
	DeviationSensitivity float64
	// BaseFloor is the lowest base score (0..1) before the closure penalty.
	BaseFloor float64
	// ClosurePenaltyWeight scales closureGap/averageRadius.
	ClosurePenaltyWeight float64
	// ClosurePenaltyMax caps the closure penalty (0..1).
	ClosurePenaltyMax float64
	// MinScoreFloorPercent is the lowest score of a completed attempt.
	MinScoreFloorPercent float64
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		MinPointsLive:        DefaultMinPointsLive,
		MinPointsFinal:       DefaultMinPointsFinal,
		DegenerateRadiusPx:   DefaultDegenerateRadiusPx,
		DegenerateFloorScore: DefaultDegenerateFloorScore,
		DeviationSensitivity: DefaultDeviationSensitivity,
		BaseFloor:            DefaultBaseFloor,
		ClosurePenaltyWeight: DefaultClosurePenaltyWeight,
		ClosurePenaltyMax:    DefaultClosurePenaltyMax,
		MinScoreFloorPercent: DefaultMinScoreFloorPercent,
	}
}

// MinPoints returns the sample threshold for a mode.
func (c Config) MinPoints(mode Mode) int {
	if mode == Live {
		return c.MinPointsLive
	}
	return c.MinPointsFinal
}

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	switch {
	case c.MinPointsLive < 1:
		return fmt.Errorf("%w: min points live must be positive", ErrInvalidConfig)
	case c.MinPointsFinal < 1:
		return fmt.Errorf("%w: min points final must be positive", ErrInvalidConfig)
	case !(c.DegenerateRadiusPx > 0):
		return fmt.Errorf("%w: degenerate radius must be positive", ErrInvalidConfig)
	case !inRange(c.DegenerateFloorScore, 0, 100):
		return fmt.Errorf("%w: degenerate floor score must be within [0,100]", ErrInvalidConfig)
	case !(c.DeviationSensitivity > 0):
		return fmt.Errorf("%w: deviation sensitivity must be positive", ErrInvalidConfig)
	case !inRange(c.BaseFloor, 0, 1):
		return fmt.Errorf("%w: base floor must be within [0,1]", ErrInvalidConfig)
	case !(c.ClosurePenaltyWeight >= 0):
		return fmt.Errorf("%w: closure penalty weight must not be negative", ErrInvalidConfig)
	case !inRange(c.ClosurePenaltyMax, 0, 1):
		return fmt.Errorf("%w: closure penalty max must be within [0,1]", ErrInvalidConfig)
	case !inRange(c.MinScoreFloorPercent, 0, 100):
		return fmt.Errorf("%w: min score floor must be within [0,100]", ErrInvalidConfig)
	}
	return nil
}

// inRange is false for NaN.
func inRange(v, lo, hi float64) bool { return v >= lo && v <= hi }

// Option adjusts a Config before the scorer is built.
type Option func(*Config)

// WithConfig replaces the whole tuning set.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

// WithDeviationSensitivity sets k.
func WithDeviationSensitivity(k float64) Option {
	return func(c *Config) { c.DeviationSensitivity = k }
}

// WithClosurePenalty sets the closure penalty weight and cap.
func WithClosurePenalty(weight, maxPenalty float64) Option {
	return func(c *Config) {
		c.ClosurePenaltyWeight = weight
		c.ClosurePenaltyMax = maxPenalty
	}
}

// WithMinPoints sets the live and final sample thresholds.
func WithMinPoints(live, final int) Option {
	return func(c *Config) {
		c.MinPointsLive = live
		c.MinPointsFinal = final
	}
}

// WithDegenerate sets the dot radius threshold and the score it receives.
func WithDegenerate(radiusPx, floorScore float64) Option {
	return func(c *Config) {
		c.DegenerateRadiusPx = radiusPx
		c.DegenerateFloorScore = floorScore
	}
}

// WithFloors sets the base floor (0..1) and the final score floor (percent).
func WithFloors(base, minScorePercent float64) Option {
	return func(c *Config) {
		c.BaseFloor = base
		c.MinScoreFloorPercent = minScorePercent
	}
}

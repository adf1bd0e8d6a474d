// Package config defines service configuration structures and loading hooks.
//
// Values are layered by Load: defaults from New, then an optional YAML file,
// then CIRCLE_ environment variables.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/fununcle/perfectcircle/internal/domain/circularity"
	"github.com/fununcle/perfectcircle/internal/domain/session"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// AllowedOrigins lists the CORS origins of browser clients.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// QueueSize bounds the in-memory attempt queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the attempt ID cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Store selects the best score backend: memory or sqlite.
	Store string `koanf:"store"`

	// SQLitePath is the database file used by the sqlite store.
	SQLitePath string `koanf:"sqlite_path"`

	// Scorer tuning.
	MinPointsLive        int     `koanf:"min_points_live"`
	MinPointsFinal       int     `koanf:"min_points_final"`
	DegenerateRadiusPx   float64 `koanf:"degenerate_radius_px"`
	DegenerateFloorScore float64 `koanf:"degenerate_floor_score"`
	DeviationSensitivity float64 `koanf:"deviation_sensitivity"`
	BaseFloor            float64 `koanf:"base_floor"`
	ClosurePenaltyWeight float64 `koanf:"closure_penalty_weight"`
	ClosurePenaltyMax    float64 `koanf:"closure_penalty_max"`
	MinScoreFloorPercent float64 `koanf:"min_score_floor_percent"`

	// Session policy.
	LiveEvery           int     `koanf:"live_every"`
	AutoCloseMinPoints  int     `koanf:"auto_close_min_points"`
	AutoCloseDistancePx float64 `koanf:"auto_close_distance_px"`
	MinDurationMS       int     `koanf:"min_duration_ms"`
	CelebrateAt         float64 `koanf:"celebrate_at"`
	SessionTTLMS        int     `koanf:"session_ttl_ms"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		AllowedOrigins:       []string{"*"},
		QueueSize:            10_000,
		WorkerCount:          runtime.NumCPU() * 2,
		DedupeSize:           50_000,
		MaxLeaderboardLimit:  100,
		Store:                StoreMemory,
		SQLitePath:           "perfectcircle.db",
		MinPointsLive:        circularity.DefaultMinPointsLive,
		MinPointsFinal:       circularity.DefaultMinPointsFinal,
		DegenerateRadiusPx:   circularity.DefaultDegenerateRadiusPx,
		DegenerateFloorScore: circularity.DefaultDegenerateFloorScore,
		DeviationSensitivity: circularity.DefaultDeviationSensitivity,
		BaseFloor:            circularity.DefaultBaseFloor,
		ClosurePenaltyWeight: circularity.DefaultClosurePenaltyWeight,
		ClosurePenaltyMax:    circularity.DefaultClosurePenaltyMax,
		MinScoreFloorPercent: circularity.DefaultMinScoreFloorPercent,
		LiveEvery:            session.DefaultLiveEvery,
		AutoCloseMinPoints:   session.DefaultAutoCloseMinPoints,
		AutoCloseDistancePx:  session.DefaultAutoCloseDistancePx,
		MinDurationMS:        0,
		CelebrateAt:          0,
		SessionTTLMS:         int((10 * time.Minute).Milliseconds()),
	}
}

// Scorer returns the scorer tuning carried by the config.
func (c *Config) Scorer() circularity.Config {
	return circularity.Config{
		MinPointsLive:        c.MinPointsLive,
		MinPointsFinal:       c.MinPointsFinal,
		DegenerateRadiusPx:   c.DegenerateRadiusPx,
		DegenerateFloorScore: c.DegenerateFloorScore,
		DeviationSensitivity: c.DeviationSensitivity,
		BaseFloor:            c.BaseFloor,
		ClosurePenaltyWeight: c.ClosurePenaltyWeight,
		ClosurePenaltyMax:    c.ClosurePenaltyMax,
		MinScoreFloorPercent: c.MinScoreFloorPercent,
	}
}

// ScorerOptions returns the options that build the configured scorer.
func (c *Config) ScorerOptions() []circularity.Option {
	return []circularity.Option{circularity.WithConfig(c.Scorer())}
}

// SessionOptions returns the drawing policy applied to every session.
func (c *Config) SessionOptions() []session.Option {
	return []session.Option{
		session.WithLiveEvery(c.LiveEvery),
		session.WithAutoClose(c.AutoCloseMinPoints, c.AutoCloseDistancePx),
		session.WithMinDuration(time.Duration(c.MinDurationMS) * time.Millisecond),
		session.WithCelebrateAt(c.CelebrateAt),
	}
}

// SessionTTL returns how long an idle session is kept.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMS) * time.Millisecond
}

// Validate reports the first field outside its allowed range.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize < 1:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.LiveEvery < 1:
		return fmt.Errorf("%w: live_every must be positive", ErrInvalidConfig)
	case c.AutoCloseMinPoints < 1:
		return fmt.Errorf("%w: auto_close_min_points must be positive", ErrInvalidConfig)
	case !(c.AutoCloseDistancePx > 0):
		return fmt.Errorf("%w: auto_close_distance_px must be positive", ErrInvalidConfig)
	case c.MinDurationMS < 0:
		return fmt.Errorf("%w: min_duration_ms must not be negative", ErrInvalidConfig)
	case c.SessionTTLMS < 1:
		return fmt.Errorf("%w: session_ttl_ms must be positive", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Store) {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}

	if err := c.Scorer().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Package drawsim drives a running circle service with synthetic players:
// it draws noisy circles, submits them as attempts, waits for the workers
// to drain the queue and checks the leaderboard against local scoring.
package drawsim

import (
	"errors"
	"fmt"
	"time"

	"github.com/fununcle/perfectcircle/internal/domain/geometry"
)

// Defaults used by the CLI.
const (
	DefaultBaseURL           = "http://localhost:9080"
	DefaultPlayers           = 200
	DefaultAttemptsPerPlayer = 5
	DefaultPoints            = 120
	DefaultTopN              = 20
	DefaultTimeout           = 10 * time.Second
	DefaultWait              = 30 * time.Second
	DefaultRetries           = 3

	pollInterval   = 200 * time.Millisecond
	retryBackoff   = 50 * time.Millisecond
	scoreTolerance = 1e-6
	workerChanMult = 2
	minRadiusPx    = 60.0
	maxRadiusPx    = 240.0
	sampleEveryMs  = 16
)

// ErrInvalidConfig is returned by Run for unusable settings.
var ErrInvalidConfig = errors.New("invalid drawsim config")

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL           string        // Base URL of the service
	Players           int           // Number of synthetic players
	AttemptsPerPlayer int           // Attempts drawn by each player
	Points            int           // Samples per stroke
	Duplicates        int           // Attempts re-sent to exercise idempotency
	TopN              int           // Leaderboard entries to fetch
	Workers           int           // Concurrent HTTP workers
	Retries           int           // Retries on 429 backpressure
	Timeout           time.Duration // HTTP request timeout
	Wait              time.Duration // How long to wait for the queue to drain
	Seed              uint64        // Stroke generator seed; 0 picks one from the clock
	CheckScores       bool          // Compare stored bests with local scoring; needs default tuning
	Verbose           bool          // Log every failure
}

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is empty", ErrInvalidConfig)
	case c.Players < 1 || c.AttemptsPerPlayer < 1:
		return fmt.Errorf("%w: players and attempts must be positive", ErrInvalidConfig)
	case c.Points < 1:
		return fmt.Errorf("%w: points must be positive", ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.TopN < 1:
		return fmt.Errorf("%w: top must be positive", ErrInvalidConfig)
	}
	return nil
}

// Attempt is the body of POST /attempts.
type Attempt struct {
	AttemptID string           `json:"attempt_id"`
	PlayerID  string           `json:"player_id"`
	Points    []geometry.Point `json:"points"`
	TS        string           `json:"ts"`
}

// Entry mirrors a leaderboard entry.
type Entry struct {
	Rank      int     `json:"rank"`
	PlayerID  string  `json:"player_id"`
	Score     float64 `json:"score"`
	AttemptID string  `json:"attempt_id"`
}

// AckResponse is the response to an attempt submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// serviceStats is the subset of GET /stats the runner polls.
type serviceStats struct {
	QueueLength int `json:"queue_length"`
	Players     int `json:"players"`
}

// Stats holds run statistics.
type Stats struct {
	AttemptsGenerated   int
	AttemptsSubmitted   int
	AttemptsAccepted    int
	AttemptsDuplicate   int
	AttemptsRejected    int
	AttemptsFailed      int
	HighScoresRetrieved int
	LeaderboardEntries  int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}

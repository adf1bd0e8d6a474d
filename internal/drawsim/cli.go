package drawsim

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fununcle/perfectcircle/pkg/logger"
)

// File permission constants.
const logFilePermission = 0o600

// SetupLogging initializes the global logger writing to stdout and, when
// logFile is set, to that file too.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
		closer = f
	}
	if err := logger.InitWith(logger.Options{Output: out}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("log_file", logFile))
	}
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ShowHelp prints usage information.
func ShowHelp() {
	fmt.Fprintf(os.Stdout, `drawsim: synthetic players for the circle service
==================================================

Draws noisy circles for a set of players, submits them to POST /attempts,
waits for the worker pool to drain and verifies GET /highscore and
GET /leaderboard.

Usage:
  go run ./cmd/drawsim [options]

Options:
  -url string        Base URL of the service (default %q)
  -players int       Number of synthetic players (default %d)
  -attempts int      Attempts per player (default %d)
  -points int        Samples per stroke (default %d)
  -duplicates int    Attempts re-sent to exercise idempotency (default 0)
  -top int           Leaderboard entries to fetch (default %d)
  -workers int       Concurrent HTTP workers (default CPU cores * 2)
  -retries int       Retries on 429 backpressure (default %d)
  -timeout duration  HTTP request timeout (default %s)
  -wait duration     Time allowed for the queue to drain (default %s)
  -seed uint         Stroke generator seed, 0 = clock (default 0)
  -check-scores      Compare stored bests with local scoring (default true)
  -log string        Also write the log to this file
  -verbose           Enable debug logging
  -help              Show this help message

Examples:
  go run ./cmd/drawsim -players 1000 -attempts 10 -workers 32
  go run ./cmd/drawsim -url http://localhost:8080 -duplicates 100 -seed 42
`, DefaultBaseURL, DefaultPlayers, DefaultAttemptsPerPlayer, DefaultPoints, DefaultTopN,
		DefaultRetries, DefaultTimeout, DefaultWait)
}

// Deadline is the overall run budget derived from the per-phase timeouts.
func (c *Config) Deadline() time.Duration {
	return c.Wait + 10*c.Timeout + time.Minute
}

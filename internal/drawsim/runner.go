package drawsim

import (
	"context"
	"fmt"
	"time"

	"github.com/fununcle/perfectcircle/pkg/logger"
)

// Run executes a complete simulation against config.BaseURL.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting drawsim",
		logger.String("base_url", config.BaseURL),
		logger.Int("players", config.Players),
		logger.Int("attempts_per_player", config.AttemptsPerPlayer),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	attempts, err := generateAttempts(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("attempt generation failed: %w", err)
	}

	submitAttempts(ctx, config, attempts, stats)

	players := uniquePlayers(attempts)
	if err := waitForDrain(ctx, config); err != nil {
		return stats, fmt.Errorf("waiting for workers: %w", err)
	}

	highScores, err := retrieveHighScores(ctx, config, players, stats)
	if err != nil {
		return stats, fmt.Errorf("high score retrieval failed: %w", err)
	}

	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	if err := verifyLeaderboard(leaderboard); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}
	if config.CheckScores {
		complete := stats.AttemptsRejected == 0 && stats.AttemptsFailed == 0
		if err := verifyResults(ctx, attempts, highScores, leaderboard, complete); err != nil {
			return stats, fmt.Errorf("result verification failed: %w", err)
		}
	}
	displayTopPerformers(ctx, leaderboard)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	resp, err := newHTTPClient(config.Timeout).Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != 200 {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// waitForDrain polls GET /stats until the attempt queue is empty twice in
// a row, or config.Wait elapses.
func waitForDrain(ctx context.Context, config *Config) error {
	ctx, cancel := context.WithTimeout(ctx, config.Wait)
	defer cancel()

	client := newHTTPClient(config.Timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	empty := 0
	for {
		var s serviceStats
		if err := client.getJSON(ctx, config.BaseURL+"/stats", &s); err != nil {
			return err
		}
		if s.QueueLength == 0 {
			empty++
		} else {
			empty = 0
		}
		if empty >= 2 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func uniquePlayers(attempts []Attempt) []string {
	seen := make(map[string]struct{}, len(attempts))
	out := make([]string, 0, len(attempts))
	for _, a := range attempts {
		if _, ok := seen[a.PlayerID]; ok {
			continue
		}
		seen[a.PlayerID] = struct{}{}
		out = append(out, a.PlayerID)
	}
	return out
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, perSecond float64
	if stats.AttemptsSubmitted > 0 {
		acceptRate = float64(stats.AttemptsAccepted) / float64(stats.AttemptsSubmitted) * 100
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.AttemptsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("attempts_generated", stats.AttemptsGenerated),
		logger.Int("attempts_submitted", stats.AttemptsSubmitted),
		logger.Int("attempts_accepted", stats.AttemptsAccepted),
		logger.Int("attempts_duplicate", stats.AttemptsDuplicate),
		logger.Int("attempts_rejected", stats.AttemptsRejected),
		logger.Int("attempts_failed", stats.AttemptsFailed),
		logger.Int("high_scores_retrieved", stats.HighScoresRetrieved),
		logger.Int("leaderboard_entries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("accept_rate", acceptRate),
		logger.Float64("attempts_per_second", perSecond))
}

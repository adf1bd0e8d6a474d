package drawsim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/fununcle/perfectcircle/pkg/logger"
)

// retrieveHighScores fetches GET /highscore/{player} for every player
// concurrently. Players the service does not know are skipped.
func retrieveHighScores(ctx context.Context, config *Config, players []string, stats *Stats) ([]Entry, error) {
	log := logger.Get()
	log.Info(ctx, "retrieving high scores", logger.Int("players", len(players)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	entries := make([]Entry, len(players))
	found := make([]bool, len(players))
	var missing, failed atomic.Int64

	ch := make(chan int, config.Workers*workerChanMult)
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range ch {
				u := fmt.Sprintf("%s/highscore/%s", config.BaseURL, url.PathEscape(players[idx]))
				err := client.getJSON(ctx, u, &entries[idx])
				var se *statusError
				switch {
				case err == nil:
					found[idx] = true
				case errors.As(err, &se) && se.code == http.StatusNotFound:
					missing.Add(1)
				default:
					failed.Add(1)
					if config.Verbose {
						log.Warn(ctx, "high score lookup failed", logger.String("player_id", players[idx]), logger.Error(err))
					}
				}
			}
		}()
	}

	go func() {
		defer close(ch)
		for i := range players {
			select {
			case <-ctx.Done():
				return
			case ch <- i:
			}
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled during high score retrieval: %w", err)
	}

	out := make([]Entry, 0, len(players))
	for i, ok := range found {
		if ok {
			out = append(out, entries[i])
		}
	}
	stats.HighScoresRetrieved = len(out)
	log.Info(ctx, "high score retrieval completed",
		logger.Int("retrieved", len(out)),
		logger.Int("missing", int(missing.Load())),
		logger.Int("failed", int(failed.Load())))
	if n := failed.Load(); n > 0 {
		return out, fmt.Errorf("%d high score lookups failed", n)
	}
	return out, nil
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	client := newHTTPClient(config.Timeout)
	u := fmt.Sprintf("%s/leaderboard?limit=%d", config.BaseURL, config.TopN)

	var leaderboard []Entry
	if err := client.getJSON(ctx, u, &leaderboard); err != nil {
		return nil, err
	}
	stats.LeaderboardEntries = len(leaderboard)
	logger.Get().Info(ctx, "retrieved leaderboard", logger.Int("entries", len(leaderboard)))
	return leaderboard, nil
}

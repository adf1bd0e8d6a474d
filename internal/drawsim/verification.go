package drawsim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fununcle/perfectcircle/internal/domain/circularity"
	"github.com/fununcle/perfectcircle/pkg/logger"
)

// ErrMismatch is returned when the service disagrees with local scoring.
var ErrMismatch = errors.New("leaderboard mismatch")

// expectedBest scores every attempt locally with the default tuning and
// returns the best score per player along with every score seen.
func expectedBest(attempts []Attempt) (best map[string]float64, seen map[string][]float64, err error) {
	scorer, err := circularity.New()
	if err != nil {
		return nil, nil, err
	}
	best = make(map[string]float64)
	seen = make(map[string][]float64)
	for _, a := range attempts {
		res := scorer.Score(a.Points, circularity.Final)
		if !res.Accepted() {
			continue
		}
		seen[a.PlayerID] = append(seen[a.PlayerID], res.Score)
		if cur, ok := best[a.PlayerID]; !ok || res.Score > cur {
			best[a.PlayerID] = res.Score
		}
	}
	return best, seen, nil
}

// verifyResults checks that every stored best is one of the player's
// attempt scores and no better than the local best. With localCheck set the
// server must reach the local best.
func verifyResults(ctx context.Context, attempts []Attempt, highScores, leaderboard []Entry, localCheck bool) error {
	best, seen, err := expectedBest(attempts)
	if err != nil {
		return fmt.Errorf("local scorer: %w", err)
	}

	var problems []error
	for _, e := range highScores {
		want, ok := best[e.PlayerID]
		if !ok {
			problems = append(problems, fmt.Errorf("%w: unexpected player %s", ErrMismatch, e.PlayerID))
			continue
		}
		if !containsScore(seen[e.PlayerID], e.Score) {
			problems = append(problems, fmt.Errorf("%w: %s has score %.6f which no attempt produced", ErrMismatch, e.PlayerID, e.Score))
		}
		if e.Score > want+scoreTolerance || (localCheck && e.Score < want-scoreTolerance) {
			problems = append(problems, fmt.Errorf("%w: %s best %.6f, expected %.6f", ErrMismatch, e.PlayerID, e.Score, want))
		}
	}

	if len(leaderboard) > 0 && len(highScores) > 0 {
		top := highScores[0].Score
		for _, e := range highScores[1:] {
			top = math.Max(top, e.Score)
		}
		if leaderboard[0].Score < top-scoreTolerance {
			problems = append(problems, fmt.Errorf("%w: leaderboard top %.6f, best player %.6f", ErrMismatch, leaderboard[0].Score, top))
		}
	}

	if len(problems) > 0 {
		return errors.Join(problems...)
	}
	logger.Get().Info(ctx, "verification passed", logger.Int("players", len(highScores)))
	return nil
}

// verifyLeaderboard checks descending order and competition ranks.
func verifyLeaderboard(leaderboard []Entry) error {
	for i, e := range leaderboard {
		if i == 0 {
			if e.Rank != 1 {
				return fmt.Errorf("%w: first entry has rank %d", ErrMismatch, e.Rank)
			}
			continue
		}
		prev := leaderboard[i-1]
		switch {
		case e.Score > prev.Score:
			return fmt.Errorf("%w: entry %d scores above entry %d", ErrMismatch, i, i-1)
		case e.Score == prev.Score && e.Rank != prev.Rank:
			return fmt.Errorf("%w: tied entries %d and %d have ranks %d and %d", ErrMismatch, i-1, i, prev.Rank, e.Rank)
		case e.Score < prev.Score && e.Rank != i+1:
			return fmt.Errorf("%w: entry %d has rank %d, want %d", ErrMismatch, i, e.Rank, i+1)
		}
	}
	return nil
}

func containsScore(scores []float64, v float64) bool {
	for _, s := range scores {
		if math.Abs(s-v) <= scoreTolerance {
			return true
		}
	}
	return false
}

// displayTopPerformers logs the first ten leaderboard entries.
func displayTopPerformers(ctx context.Context, leaderboard []Entry) {
	entries := append([]Entry(nil), leaderboard...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	for _, e := range entries[:min(10, len(entries))] {
		logger.Get().Info(ctx, "top performer",
			logger.Int("rank", e.Rank),
			logger.String("player_id", e.PlayerID),
			logger.Float64("score", e.Score))
	}
}

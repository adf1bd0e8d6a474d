// Package repository stores each player's best circle and ranks players by it.
package repository

import (
	"context"
	"math"
	"time"
)

// Record is a candidate best attempt for a player.
type Record struct {
	PlayerID   string
	Score      float64
	AttemptID  string
	Samples    int
	RecordedAt time.Time
}

// Entry represents a leaderboard row.
type Entry struct {
	Rank       int
	PlayerID   string
	Score      float64
	AttemptID  string
	Samples    int
	RecordedAt time.Time
}

// Store provides read/write access to the best scores.
type Store interface {
	// UpdateBest stores rec if its score beats the player's current best.
	// Returns true if the store updated the score, false otherwise.
	UpdateBest(ctx context.Context, rec Record) (bool, error)

	// Rank returns the current rank and best for a player.
	// Returns ErrNotFound if the player is unknown.
	Rank(ctx context.Context, playerID string) (Entry, error)

	// TopN returns the top-N entries ordered by score desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of players tracked.
	Count(ctx context.Context) (int, error)

	// Close releases background resources.
	Close() error
}

func validate(rec Record) error {
	if rec.PlayerID == "" {
		return ErrInvalidRecord
	}
	if math.IsNaN(rec.Score) || rec.Score < 0 || rec.Score > 100 {
		return ErrInvalidRecord
	}
	return nil
}

// assignRanks gives equal scores the same rank; the next distinct score
// ranks by its position (1, 2, 2, 4).
func assignRanks(entries []Entry, first int) {
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = first + i
	}
}

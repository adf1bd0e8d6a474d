package drawsim

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/fununcle/perfectcircle/internal/domain/geometry"
	"github.com/fununcle/perfectcircle/pkg/logger"
)

// Skill bands: radial wobble and closure gap as fractions of the radius.
var skills = []struct {
	wobble float64
	gap    float64
}{
	{wobble: 0.005, gap: 0.00}, // steady hand
	{wobble: 0.02, gap: 0.02},
	{wobble: 0.05, gap: 0.05},
	{wobble: 0.10, gap: 0.10},
	{wobble: 0.20, gap: 0.30}, // scribbler
}

// player is a synthetic player with a fixed skill band.
type player struct {
	id     string
	wobble float64
	gap    float64
}

// generateAttempts draws AttemptsPerPlayer strokes for each of Players
// players. Player and attempt IDs are random UUIDs.
func generateAttempts(ctx context.Context, config *Config, stats *Stats) ([]Attempt, error) {
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	logger.Get().Info(ctx, "generating attempts",
		logger.Int("players", config.Players),
		logger.Int("attempts_per_player", config.AttemptsPerPlayer),
		logger.Int("points", config.Points))

	attempts := make([]Attempt, 0, config.Players*config.AttemptsPerPlayer)
	now := time.Now().UTC()
	for i := 0; i < config.Players; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		band := skills[rng.IntN(len(skills))]
		p := player{id: uuid.NewString(), wobble: band.wobble, gap: band.gap}
		for j := 0; j < config.AttemptsPerPlayer; j++ {
			attempts = append(attempts, Attempt{
				AttemptID: uuid.NewString(),
				PlayerID:  p.id,
				Points:    drawCircle(rng, p, config.Points),
				TS:        now.Add(time.Duration(j) * time.Second).Format(time.RFC3339),
			})
		}
	}

	// Interleave players so the queue sees a realistic mix.
	rng.Shuffle(len(attempts), func(i, j int) { attempts[i], attempts[j] = attempts[j], attempts[i] })

	stats.AttemptsGenerated = len(attempts)
	return attempts, nil
}

// drawCircle samples n points of a hand-drawn circle: a random center and
// radius, gaussian radial wobble and an angular sweep short of a full turn
// by the player's closure gap.
func drawCircle(rng *rand.Rand, p player, n int) []geometry.Point {
	r := minRadiusPx + rng.Float64()*(maxRadiusPx-minRadiusPx)
	cx := 300 + rng.Float64()*400
	cy := 300 + rng.Float64()*400
	start := rng.Float64() * 2 * math.Pi

	gap := p.gap * r * (0.5 + rng.Float64())
	sweep := 2 * math.Pi
	if gap > 0 {
		sweep -= 2 * math.Asin(math.Min(1, gap/(2*r)))
	}

	pts := make([]geometry.Point, n)
	for i := range pts {
		frac := 0.0
		if n > 1 {
			frac = float64(i) / float64(n-1)
		}
		theta := start + frac*sweep
		rr := r * (1 + p.wobble*rng.NormFloat64())
		pts[i] = geometry.Point{
			X:         cx + rr*math.Cos(theta),
			Y:         cy + rr*math.Sin(theta),
			Timestamp: float64(i * sampleEveryMs),
		}
	}
	return pts
}

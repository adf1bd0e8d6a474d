package drawsim

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/fununcle/perfectcircle/internal/adapters/http/api"
	service "github.com/fununcle/perfectcircle/internal/app"
	"github.com/fununcle/perfectcircle/internal/domain/circularity"
	"github.com/fununcle/perfectcircle/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestDrawCircle(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		rng := rand.New(rand.NewPCG(1, 2))
		scorer, err := circularity.New()
		So(err, ShouldBeNil)

		Convey("When a steady player draws", func() {
			pts := drawCircle(rng, player{id: "p", wobble: 0.001}, 120)

			Convey("Then the stroke has the requested samples in time order", func() {
				So(pts, ShouldHaveLength, 120)
				So(pts[0].Timestamp, ShouldEqual, 0.0)
				So(pts[119].Timestamp, ShouldEqual, float64(119*sampleEveryMs))
			})

			Convey("And it scores near perfect", func() {
				So(scorer.Score(pts, circularity.Final).Score, ShouldBeGreaterThan, 98.0)
			})
		})

		Convey("When a scribbler draws", func() {
			steady := scorer.Score(drawCircle(rng, player{wobble: 0.005}, 120), circularity.Final)
			messy := scorer.Score(drawCircle(rng, player{wobble: 0.2, gap: 0.3}, 120), circularity.Final)

			Convey("Then the score is lower", func() {
				So(messy.Score, ShouldBeLessThan, steady.Score)
				So(messy.ClosureGap, ShouldBeGreaterThan, 0.0)
			})
		})
	})
}

func TestGenerateAttempts(t *testing.T) {
	Convey("Given a small run", t, func() {
		cfg := &Config{Players: 4, AttemptsPerPlayer: 3, Points: 60, Seed: 9}
		stats := &Stats{}

		attempts, err := generateAttempts(context.Background(), cfg, stats)

		Convey("Then every player gets its attempts with unique IDs", func() {
			So(err, ShouldBeNil)
			So(attempts, ShouldHaveLength, 12)
			So(stats.AttemptsGenerated, ShouldEqual, 12)
			So(uniquePlayers(attempts), ShouldHaveLength, 4)

			ids := map[string]bool{}
			for _, a := range attempts {
				ids[a.AttemptID] = true
				So(a.Points, ShouldHaveLength, 60)
				_, perr := time.Parse(time.RFC3339, a.TS)
				So(perr, ShouldBeNil)
			}
			So(ids, ShouldHaveLength, 12)
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := generateAttempts(ctx, cfg, stats)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestVerifyLeaderboard(t *testing.T) {
	Convey("Given leaderboards", t, func() {
		Convey("Then competition ranks pass", func() {
			So(verifyLeaderboard([]Entry{
				{Rank: 1, Score: 99}, {Rank: 2, Score: 90}, {Rank: 2, Score: 90}, {Rank: 4, Score: 80},
			}), ShouldBeNil)
			So(verifyLeaderboard(nil), ShouldBeNil)
		})

		Convey("Then unsorted entries fail", func() {
			err := verifyLeaderboard([]Entry{{Rank: 1, Score: 50}, {Rank: 2, Score: 60}})
			So(errors.Is(err, ErrMismatch), ShouldBeTrue)
		})

		Convey("Then dense ranks fail", func() {
			err := verifyLeaderboard([]Entry{
				{Rank: 1, Score: 99}, {Rank: 2, Score: 90}, {Rank: 2, Score: 90}, {Rank: 3, Score: 80},
			})
			So(errors.Is(err, ErrMismatch), ShouldBeTrue)
		})
	})
}

func TestVerifyResults(t *testing.T) {
	Convey("Given locally scored attempts", t, func() {
		rng := rand.New(rand.NewPCG(3, 4))
		attempts := []Attempt{
			{AttemptID: "a1", PlayerID: "ada", Points: drawCircle(rng, player{wobble: 0.01}, 80)},
			{AttemptID: "a2", PlayerID: "ada", Points: drawCircle(rng, player{wobble: 0.1}, 80)},
		}
		best, seen, err := expectedBest(attempts)
		So(err, ShouldBeNil)
		So(seen["ada"], ShouldHaveLength, 2)

		Convey("Then the true best passes", func() {
			hs := []Entry{{Rank: 1, PlayerID: "ada", Score: best["ada"]}}
			So(verifyResults(context.Background(), attempts, hs, hs, true), ShouldBeNil)
		})

		Convey("Then an invented score fails", func() {
			hs := []Entry{{Rank: 1, PlayerID: "ada", Score: best["ada"] + 1}}
			So(errors.Is(verifyResults(context.Background(), attempts, hs, hs, false), ErrMismatch), ShouldBeTrue)
		})

		Convey("Then a stale best fails only when every attempt landed", func() {
			worst := seen["ada"][0]
			if seen["ada"][1] < worst {
				worst = seen["ada"][1]
			}
			hs := []Entry{{Rank: 1, PlayerID: "ada", Score: worst}}
			So(verifyResults(context.Background(), attempts, hs, hs, false), ShouldBeNil)
			So(verifyResults(context.Background(), attempts, hs, hs, true), ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running circle service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(4), service.WithQueueSize(64))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		srv := httptest.NewServer(api.NewServer(svc).Handler(ctx))
		defer srv.Close()

		cfg := &Config{
			BaseURL:           srv.URL,
			Players:           12,
			AttemptsPerPlayer: 3,
			Points:            80,
			Duplicates:        5,
			TopN:              20,
			Workers:           4,
			Retries:           20,
			Timeout:           5 * time.Second,
			Wait:              10 * time.Second,
			Seed:              42,
			CheckScores:       true,
		}

		Convey("When the simulation runs", func() {
			stats, err := Run(ctx, cfg)

			Convey("Then every attempt lands and the leaderboard verifies", func() {
				So(err, ShouldBeNil)
				So(stats.AttemptsSubmitted, ShouldEqual, 36+5)
				So(stats.AttemptsAccepted, ShouldEqual, 36)
				So(stats.AttemptsDuplicate, ShouldEqual, 5)
				So(stats.HighScoresRetrieved, ShouldEqual, 12)
				So(stats.LeaderboardEntries, ShouldEqual, 12)
			})
		})

		Convey("When the configuration is unusable", func() {
			cfg.Workers = 0
			_, err := Run(ctx, cfg)
			So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/fununcle/perfectcircle/internal/app"
	"github.com/fununcle/perfectcircle/internal/adapters/repository"
	"github.com/fununcle/perfectcircle/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// gatedStore holds every UpdateBest until the gate is closed.
type gatedStore struct {
	repository.Store
	gate   chan struct{}
	stored atomic.Int64
}

func newGatedStore(ctx context.Context) *gatedStore {
	return &gatedStore{Store: repository.NewTreapStore(ctx), gate: make(chan struct{})}
}

func (g *gatedStore) UpdateBest(ctx context.Context, rec repository.Record) (bool, error) {
	<-g.gate
	g.stored.Add(1)
	return g.Store.UpdateBest(ctx, rec)
}

func TestServiceIntegration_Attempts(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc := startService(service.WithQueueSize(100), service.WithDedupeSize(100))
		defer svc.Stop(ctx)

		Convey("When attempts are submitted", func() {
			for i := 0; i < 10; i++ {
				dup, err := svc.SubmitAttempt(ctx, model.Attempt{
					AttemptID: fmt.Sprintf("a%d", i),
					PlayerID:  fmt.Sprintf("p%d", i%3),
					Points:    loop(60+i, 100+float64(i)),
				})
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)
			}

			Convey("Then the leaderboard fills asynchronously", func() {
				So(waitFor(func() bool { return svc.GetStats(ctx).Players == 3 }), ShouldBeTrue)
				top, err := svc.TopN(ctx, 10)
				So(err, ShouldBeNil)
				So(top, ShouldHaveLength, 3)
				So(top[0].Rank, ShouldEqual, 1)
			})

			Convey("And a resubmitted attempt is a duplicate", func() {
				dup, err := svc.SubmitAttempt(ctx, model.Attempt{AttemptID: "a3", PlayerID: "p0", Points: loop(60, 100)})
				So(err, ShouldBeNil)
				So(dup, ShouldBeTrue)
			})
		})

		Convey("When an attempt is malformed", func() {
			_, noID := svc.SubmitAttempt(ctx, model.Attempt{PlayerID: "p", Points: loop(60, 100)})
			_, noPoints := svc.SubmitAttempt(ctx, model.Attempt{AttemptID: "x", PlayerID: "p"})

			Convey("Then it is rejected before queueing", func() {
				So(errors.Is(noID, service.ErrInvalidAttempt), ShouldBeTrue)
				So(errors.Is(noPoints, service.ErrEmptyStroke), ShouldBeTrue)
			})
		})

		Convey("When an unknown player is looked up", func() {
			_, err := svc.HighScore(ctx, "ghost")

			Convey("Then it is not found", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service whose queue is saturated", t, func() {
		ctx := context.Background()
		store := newGatedStore(ctx)
		svc := service.New(service.WithWorkerCount(1), service.WithQueueSize(1), service.WithStore("gated", store))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)
		defer close(store.gate)

		var backpressure error
		last := ""
		for i := 0; i < 500 && backpressure == nil; i++ {
			last = fmt.Sprintf("flood-%d", i)
			_, backpressure = svc.SubmitAttempt(ctx, model.Attempt{AttemptID: last, PlayerID: "p", Points: loop(60, 100)})
		}

		Convey("Then submissions report backpressure and can be retried", func() {
			So(errors.Is(backpressure, service.ErrBackpressure), ShouldBeTrue)
			dup, err := svc.SubmitAttempt(ctx, model.Attempt{AttemptID: last, PlayerID: "p", Points: loop(60, 100)})
			So(dup, ShouldBeFalse)
			So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)
		})
	})
}

func TestServiceIntegration_DrainOnStop(t *testing.T) {
	Convey("Given accepted attempts still queued when the start context ends", t, func() {
		store := newGatedStore(context.Background())
		startCtx, cancel := context.WithCancel(context.Background())
		svc := service.New(service.WithWorkerCount(1), service.WithQueueSize(256), service.WithStore("gated", store))
		So(svc.Start(startCtx), ShouldBeNil)

		const accepted = 200
		for i := 0; i < accepted; i++ {
			_, err := svc.SubmitAttempt(context.Background(), model.Attempt{
				AttemptID: fmt.Sprintf("drain-%d", i),
				PlayerID:  fmt.Sprintf("p%d", i),
				Points:    loop(60, 100),
			})
			So(err, ShouldBeNil)
		}
		cancel()
		time.Sleep(20 * time.Millisecond)

		Convey("When the service stops", func() {
			close(store.gate)
			svc.Stop(context.Background())

			Convey("Then every accepted attempt reached the store", func() {
				So(store.stored.Load(), ShouldEqual, int64(accepted))
			})
		})
	})
}

func TestServiceIntegration_SQLite(t *testing.T) {
	Convey("Given a service backed by SQLite", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "scores.db")
		store, err := repository.NewSQLiteStore(ctx, path)
		So(err, ShouldBeNil)
		svc := startService(service.WithStore("sqlite", store))

		_, err = svc.SubmitAttempt(ctx, model.Attempt{AttemptID: "a1", PlayerID: "p1", Points: loop(80, 120)})
		So(err, ShouldBeNil)
		So(waitFor(func() bool { _, err := svc.HighScore(ctx, "p1"); return err == nil }), ShouldBeTrue)
		So(svc.GetStats(ctx).Store, ShouldEqual, "sqlite")
		svc.Stop(ctx)

		Convey("When a new service opens the same file", func() {
			reopened, err := repository.NewSQLiteStore(ctx, path)
			So(err, ShouldBeNil)
			again := startService(service.WithStore("sqlite", reopened))
			defer again.Stop(ctx)

			Convey("Then the best score is still there", func() {
				e, err := again.HighScore(ctx, "p1")
				So(err, ShouldBeNil)
				So(e.Score, ShouldAlmostEqual, 100, 1e-6)
				So(e.AttemptID, ShouldEqual, "a1")
			})
		})
	})
}

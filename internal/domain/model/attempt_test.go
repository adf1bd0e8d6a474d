package model_test

import (
	"testing"
	"time"

	"github.com/fununcle/perfectcircle/internal/domain/geometry"
	model "github.com/fununcle/perfectcircle/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestAttempt(t *testing.T) {
	convey.Convey("Given an Attempt struct", t, func() {
		convey.Convey("When creating a new attempt", func() {
			ts := time.Now()
			points := []geometry.Point{
				{X: 10, Y: 0, Timestamp: 0},
				{X: 0, Y: 10, Timestamp: 16},
				{X: -10, Y: 0, Timestamp: 32},
			}

			attempt := model.Attempt{
				AttemptID: "attempt-123",
				PlayerID:  "player-456",
				Points:    points,
				TS:        ts,
			}

			convey.Convey("Then it should have the correct values", func() {
				convey.So(attempt.AttemptID, convey.ShouldEqual, "attempt-123")
				convey.So(attempt.PlayerID, convey.ShouldEqual, "player-456")
				convey.So(attempt.Points, convey.ShouldHaveLength, 3)
				convey.So(attempt.TS, convey.ShouldEqual, ts)
			})

			convey.Convey("Then the stroke keeps drawing order", func() {
				convey.So(geometry.Span(attempt.Points), convey.ShouldEqual, 32.0)
				convey.So(attempt.Points[0].SamePosition(points[0]), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When creating an attempt with zero values", func() {
			attempt := model.Attempt{}

			convey.Convey("Then it should have default values", func() {
				convey.So(attempt.AttemptID, convey.ShouldEqual, "")
				convey.So(attempt.PlayerID, convey.ShouldEqual, "")
				convey.So(attempt.Points, convey.ShouldBeNil)
				convey.So(attempt.TS, convey.ShouldEqual, time.Time{})
			})
		})
	})
}

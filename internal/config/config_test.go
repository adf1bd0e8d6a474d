package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/fununcle/perfectcircle/internal/config"
	"github.com/fununcle/perfectcircle/internal/domain/circularity"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.SessionTTL(), convey.ShouldEqual, 10*time.Minute)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the scorer tuning matches the scorer defaults", func() {
			convey.So(cfg.Scorer(), convey.ShouldResemble, circularity.DefaultConfig())
		})

		convey.Convey("Then its options build a working scorer", func() {
			scorer, err := circularity.New(cfg.ScorerOptions()...)
			convey.So(err, convey.ShouldBeNil)
			convey.So(scorer.Config(), convey.ShouldResemble, cfg.Scorer())
			convey.So(cfg.SessionOptions(), convey.ShouldHaveLength, 4)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When the store is unknown", func() {
			cfg.Store = "redis"
			err := cfg.Validate()

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "unknown store")
			})
		})

		convey.Convey("When the sqlite store has no path", func() {
			cfg.Store = config.StoreSQLite
			cfg.SQLitePath = ""

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the scorer tuning is out of range", func() {
			cfg.BaseFloor = 2
			err := cfg.Validate()

			convey.Convey("Then both sentinels are reachable", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(errors.Is(err, circularity.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the session policy is invalid", func() {
			cfg.LiveEvery = 0

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})
	})
}

package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/judgeboard/internal/config"
	"github.com/okian/judgeboard/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StorageDriver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.MaxInFlight, convey.ShouldEqual, 8)
			convey.So(cfg.FetchTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.StorageTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.RefreshInterval(), convey.ShouldEqual, time.Hour)
			convey.So(cfg.ShutdownTimeout(), convey.ShouldEqual, 15*time.Second)
			convey.So(cfg.Scoring, convey.ShouldResemble, scoring.DefaultWeights())
			convey.So(config.Validate(cfg), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When the storage driver is unknown", func() {
			cfg.StorageDriver = "postgres"
			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When sqlite has no database path", func() {
			cfg.DatabasePath = ""
			convey.So(errors.Is(config.Validate(cfg), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When memory storage has no database path", func() {
			cfg.StorageDriver = "memory"
			cfg.DatabasePath = ""
			convey.So(config.Validate(cfg), convey.ShouldBeNil)
		})

		convey.Convey("When concurrency is zero", func() {
			cfg.MaxInFlight = 0
			convey.So(config.Validate(cfg), convey.ShouldNotBeNil)
		})

		convey.Convey("When a scoring divisor is zero", func() {
			cfg.Scoring.RatingDivisor = 0
			convey.So(config.Validate(cfg), convey.ShouldNotBeNil)
		})

		convey.Convey("When a base URL is not a URL", func() {
			cfg.CodeforcesBaseURL = "codeforces"
			convey.So(config.Validate(cfg), convey.ShouldNotBeNil)
		})
	})
}

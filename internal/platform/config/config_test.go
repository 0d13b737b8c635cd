package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"perfreview/internal/platform/config"
)

func TestLoad(t *testing.T) {
	convey.Convey("Given the configuration loader", t, func() {
		ctx := context.Background()
		clearEnv(t)

		convey.Convey("When nothing overrides the defaults", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then the in-memory store and default queue settings are used", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreMemory)
				convey.So(cfg.QueueCapacity, convey.ShouldEqual, 1024)
				convey.So(cfg.QueueMaxAttempts, convey.ShouldEqual, 5)
				convey.So(cfg.QueueRedeliveryDelay, convey.ShouldEqual, time.Second)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeTrue)
				convey.So(cfg.RateLimitPerMinute, convey.ShouldEqual, 600)
				convey.So(cfg.TrustProxyHeaders, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When environment variables are set", func() {
			t.Setenv("PERFREVIEW_ADDR", ":9090")
			t.Setenv("PERFREVIEW_QUEUE_WORKERS", "16")
			t.Setenv("PERFREVIEW_QUEUE_REDELIVERY_DELAY", "250ms")
			t.Setenv("PERFREVIEW_STORE_DRIVER", "SQLite")
			t.Setenv("PERFREVIEW_METRICS_ENABLED", "false")

			cfg, err := config.Load(ctx)

			convey.Convey("Then they override the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueWorkers, convey.ShouldEqual, 16)
				convey.So(cfg.QueueRedeliveryDelay, convey.ShouldEqual, 250*time.Millisecond)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StoreSQLite)
				convey.So(cfg.MetricsEnabled, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a YAML file is provided", func() {
			path := filepath.Join(t.TempDir(), "perfreview.yaml")
			content := "addr: \":7070\"\nqueue_capacity: 42\nstore_driver: postgres\ndatabase_url: postgres://localhost/perf\n"
			convey.So(os.WriteFile(path, []byte(content), 0o600), convey.ShouldBeNil)
			t.Setenv("PERFREVIEW_CONFIG", path)

			convey.Convey("And an environment variable overrides one of its keys", func() {
				t.Setenv("PERFREVIEW_QUEUE_CAPACITY", "7")

				cfg, err := config.Load(ctx)

				convey.Convey("Then the environment wins over the file", func() {
					convey.So(err, convey.ShouldBeNil)
					convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
					convey.So(cfg.QueueCapacity, convey.ShouldEqual, 7)
					convey.So(cfg.StoreDriver, convey.ShouldEqual, config.StorePostgres)
					convey.So(cfg.DatabaseURL, convey.ShouldEqual, "postgres://localhost/perf")
				})
			})
		})

		convey.Convey("When the YAML file does not exist", func() {
			t.Setenv("PERFREVIEW_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the shutdown timeout is set to zero", func() {
			t.Setenv("PERFREVIEW_SHUTDOWN_TIMEOUT", "0s")

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When proxy headers are trusted", func() {
			t.Setenv("PERFREVIEW_TRUST_PROXY_HEADERS", "true")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the flag is loaded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.TrustProxyHeaders, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the postgres store has no database url", func() {
			t.Setenv("PERFREVIEW_STORE_DRIVER", "postgres")

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given a default configuration", t, func() {
		cfg := config.New()

		convey.Convey("It is valid as is", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("An unknown store driver is rejected", func() {
			cfg.StoreDriver = "cassandra"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("The mongo store needs a uri", func() {
			cfg.StoreDriver = config.StoreMongo
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			cfg.MongoURI = "mongodb://localhost:27017"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Queue settings must be positive", func() {
			cfg.QueueWorkers = 0
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("Tiny body limits are rejected", func() {
			cfg.MaxBodyBytes = 10
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("The shutdown timeout must be positive", func() {
			cfg.ShutdownTimeout = 0
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			cfg.ShutdownTimeout = -time.Second
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("A zero rate limit disables throttling but a negative one is rejected", func() {
			cfg.RateLimitPerMinute = 0
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			cfg.RateLimitPerMinute = -1
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PERFREVIEW_CONFIG", "PERFREVIEW_ADDR", "PERFREVIEW_QUEUE_WORKERS", "PERFREVIEW_QUEUE_CAPACITY",
		"PERFREVIEW_QUEUE_REDELIVERY_DELAY", "PERFREVIEW_STORE_DRIVER", "PERFREVIEW_METRICS_ENABLED",
		"PERFREVIEW_DATABASE_URL", "PERFREVIEW_SHUTDOWN_TIMEOUT", "PERFREVIEW_TRUST_PROXY_HEADERS",
	} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/pokerank/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueCapacity, convey.ShouldEqual, 1024)
				convey.So(cfg.SessionID, convey.ShouldEqual, "default")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("POKERANK_ADDR", ":8080")
			_ = os.Setenv("POKERANK_DEBOUNCE_MS", "250")
			_ = os.Setenv("POKERANK_EPSILON_UP", "0.5")
			_ = os.Setenv("POKERANK_PERSISTENCE_DRIVER", "sqlite")
			_ = os.Setenv("POKERANK_PERSISTENCE_DSN", "ratings.db")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DebounceMS, convey.ShouldEqual, 250)
				convey.So(cfg.EpsilonUp, convey.ShouldEqual, 0.5)
				convey.So(cfg.PersistenceDriver, convey.ShouldEqual, "sqlite")
				convey.So(cfg.PersistenceDSN, convey.ShouldEqual, "ratings.db")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
# placement tuning
addr: ":9090"
default_score: 50
cascade_delta: 0.05
catalog_path: "pokedex.yaml"
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("POKERANK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge the file over the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DefaultScore, convey.ShouldEqual, 50.0)
				convey.So(cfg.CascadeDelta, convey.ShouldEqual, 0.05)
				convey.So(cfg.CatalogPath, convey.ShouldEqual, "pokedex.yaml")
				convey.So(cfg.EpsilonDown, convey.ShouldEqual, 0.1)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
queue_capacity: 64
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("POKERANK_CONFIG", tmpFile)
			_ = os.Setenv("POKERANK_ADDR", ":8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueCapacity, convey.ShouldEqual, 64)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("POKERANK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("POKERANK_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the file empties a required value", func() {
			tmpFile := createTempConfigFile(`
addr: ""
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("POKERANK_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("POKERANK_QUEUE_CAPACITY", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"POKERANK_CONFIG",
		"POKERANK_ADDR",
		"POKERANK_DEBOUNCE_MS",
		"POKERANK_EPSILON_UP",
		"POKERANK_PERSISTENCE_DRIVER",
		"POKERANK_PERSISTENCE_DSN",
		"POKERANK_QUEUE_CAPACITY",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "pokerank-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}

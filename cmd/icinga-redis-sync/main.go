// Command icinga-redis-sync projects a monitoring configuration and runtime-state object graph
// into a Redis-compatible store for a downstream UI/API to read.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/icinga/icinga-redis-sync/config"
	"github.com/icinga/icinga-redis-sync/configobject"
	"github.com/icinga/icinga-redis-sync/database"
	"github.com/icinga/icinga-redis-sync/logging"
	icingaredis "github.com/icinga/icinga-redis-sync/redis"
	"github.com/icinga/icinga-redis-sync/redissync"
)

const defaultConfigPath = "/etc/icinga-redis-sync/config.yml"

// Flags are the command-line flags accepted by this binary, parsed via config.ParseFlags.
type Flags struct {
	Config string `short:"c" long:"config" description:"Path to the config file (default: /etc/icinga-redis-sync/config.yml)"`
}

func (f Flags) GetConfigPath() string {
	if f.Config == "" {
		return defaultConfigPath
	}

	return f.Config
}

func (f Flags) IsExplicitConfigPath() bool {
	return f.Config != ""
}

// Config is the top-level process configuration, loaded from YAML and/or environment variables
// via config.Load.
type Config struct {
	EnvID       string          `yaml:"environment_id" env:"ENVIRONMENT_ID"`
	Concurrency int             `yaml:"concurrency" env:"CONCURRENCY" default:"8"`
	Redis       icingaredis.Config `yaml:"redis"`
	Database    database.Config `yaml:"database"`
	Logging     logging.Config  `yaml:"logging"`
}

func (c *Config) Validate() error {
	if c.EnvID == "" {
		return errors.New("environment_id must be set")
	}

	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}

	if err := c.Redis.Validate(); err != nil {
		return errors.WithStack(err)
	}

	if err := c.Database.Validate(); err != nil {
		return errors.WithStack(err)
	}

	return c.Logging.Validate()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var flags Flags
	if err := config.ParseFlags(&flags); err != nil {
		return errors.Wrap(err, "can't parse flags")
	}

	var cfg Config
	if err := config.Load(&cfg, config.LoadOptions{Flags: flags}); err != nil {
		return errors.Wrap(err, "can't load config")
	}

	logs, err := logging.NewLoggingFromConfig("icinga-redis-sync", cfg.Logging)
	if err != nil {
		return errors.Wrap(err, "can't configure logging")
	}

	logger := logs.GetLogger()

	redisClient, err := icingaredis.NewClientFromConfig(&cfg.Redis, logs.GetChildLogger("redis"))
	if err != nil {
		return errors.Wrap(err, "can't create redis client")
	}

	db, err := database.NewDbFromConfig(&cfg.Database, logs.GetChildLogger("database"), database.RetryConnectorCallbacks{})
	if err != nil {
		return errors.Wrap(err, "can't create database connection")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	writer := redissync.Writer{
		EnvID: cfg.EnvID,
		// A production deployment substitutes its own configobject.System; MemSystem here is an
		// empty placeholder so the binary is runnable standalone.
		System:      configobject.NewMemSystem(nil),
		Conn:        redissync.ClientConnection{Client: redisClient},
		Keyset:      redissync.DefaultKeyset,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
		Registry:    redissync.NewRegistry(db, logs.GetChildLogger("registry"), cfg.Logging.Interval),
	}

	logger.Infow("starting icinga-redis-sync", "environment_id", cfg.EnvID)

	return writer.Run(ctx)
}

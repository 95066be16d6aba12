package main

import (
	"log/slog"
	"os"

	"github.com/danielpatrickdp/arenalearn/internal/checkpoint"
	"github.com/danielpatrickdp/arenalearn/internal/config"
	"github.com/danielpatrickdp/arenalearn/internal/logging"
)

// loadConfig resolves --config, then $ARENA_CONFIG, then defaults. --db wins
// over everything for the store path.
func loadConfig() (config.Config, error) {
	var cfg config.Config
	var err error
	if rootFlags.config != "" {
		cfg, err = config.Load(rootFlags.config)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return config.Config{}, err
	}
	if rootFlags.db != "" {
		cfg.Store.Path = rootFlags.db
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Logging())
}

func openStore(cfg config.Config) (*checkpoint.Store, error) {
	return checkpoint.NewStore(cfg.Store.Path)
}

package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/danielpatrickdp/arenalearn/internal/arena"
	"github.com/danielpatrickdp/arenalearn/internal/eval"
	"github.com/danielpatrickdp/arenalearn/internal/logging"
	"github.com/danielpatrickdp/arenalearn/internal/qlearn"
	"github.com/danielpatrickdp/arenalearn/internal/replay"
	"github.com/danielpatrickdp/arenalearn/internal/reward"
	"github.com/danielpatrickdp/arenalearn/internal/train"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

var validate = validator.New(validator.WithRequiredStructEnabled())

// #region types
// Config is the whole arenalearn configuration document.
type Config struct {
	Agent       AgentConfig               `yaml:"agent"`
	Buffer      BufferConfig              `yaml:"buffer"`
	Trainer     train.Config              `yaml:"trainer"`
	Exploration train.ExplorationSchedule `yaml:"exploration"`
	Reward      reward.Table              `yaml:"reward"`
	Eval        eval.EvalConfig           `yaml:"eval"`
	Arena       arena.Config              `yaml:"arena"`
	Store       StoreConfig               `yaml:"store"`
	Server      ServerConfig              `yaml:"server"`
	Log         LogConfig                 `yaml:"log"`
}

// AgentConfig mirrors qlearn.Config.
type AgentConfig struct {
	LearningRate    float64 `yaml:"learning_rate" validate:"gt=0,lte=1"`
	DiscountFactor  float64 `yaml:"discount_factor" validate:"gte=0,lte=1"`
	ExplorationRate float64 `yaml:"exploration_rate" validate:"gte=0,lte=1"`
}

// BufferConfig mirrors the tunable parts of replay.Config.
type BufferConfig struct {
	Capacity        int     `yaml:"capacity" validate:"gt=0"`
	Alpha           float64 `yaml:"alpha" validate:"gte=0,lte=1"`
	BetaStart       float64 `yaml:"beta_start" validate:"gte=0,lte=1"`
	BetaIncrement   float64 `yaml:"beta_increment" validate:"gte=0"`
	PriorityEpsilon float64 `yaml:"priority_epsilon" validate:"gt=0"`
}

// StoreConfig locates the checkpoint database.
type StoreConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// ServerConfig holds listen addresses. Empty disables the listener.
type ServerConfig struct {
	GRPCAddr    string `yaml:"grpc_addr" validate:"omitempty,hostname_port"`
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// #endregion types

// #region defaults
// Default mirrors every package default.
func Default() Config {
	q := qlearn.DefaultConfig()
	r := replay.DefaultConfig(10000)
	return Config{
		Agent: AgentConfig{
			LearningRate:    q.LearningRate,
			DiscountFactor:  q.DiscountFactor,
			ExplorationRate: q.ExplorationRate,
		},
		Buffer: BufferConfig{
			Capacity:        r.Capacity,
			Alpha:           r.Alpha,
			BetaStart:       r.BetaStart,
			BetaIncrement:   r.BetaIncrement,
			PriorityEpsilon: r.PriorityEpsilon,
		},
		Trainer:     train.DefaultConfig(),
		Exploration: train.ExplorationSchedule{Start: 1.0, End: q.ExplorationRate, Steps: 2000},
		Reward:      reward.DefaultTable(),
		Eval:        eval.DefaultEvalConfig(),
		Arena:       arena.DefaultConfig(),
		Store:       StoreConfig{Path: "arenalearn.db"},
		Server:      ServerConfig{GRPCAddr: "localhost:50061"},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

// #endregion defaults

// #region load
// Load overlays the YAML file at path on Default, applies ARENA_DB, and
// validates. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.Store.Path = envOr("ARENA_DB", cfg.Store.Path)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by ARENA_CONFIG, if set.
func LoadFromEnv() (Config, error) {
	return Load(envOr("ARENA_CONFIG", ""))
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Reward.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Trainer.BatchSize > c.Buffer.Capacity {
		return fmt.Errorf("%w: batch size %d exceeds buffer capacity %d", ErrInvalid, c.Trainer.BatchSize, c.Buffer.Capacity)
	}
	return nil
}

// #endregion load

// #region conversions
// QLearn returns the agent hyperparameters.
func (c Config) QLearn() qlearn.Config {
	return qlearn.Config{
		LearningRate:    c.Agent.LearningRate,
		DiscountFactor:  c.Agent.DiscountFactor,
		ExplorationRate: c.Agent.ExplorationRate,
	}
}

// Replay returns the buffer configuration.
func (c Config) Replay() replay.Config {
	r := replay.DefaultConfig(c.Buffer.Capacity)
	r.Alpha = c.Buffer.Alpha
	r.BetaStart = c.Buffer.BetaStart
	r.BetaIncrement = c.Buffer.BetaIncrement
	r.PriorityEpsilon = c.Buffer.PriorityEpsilon
	return r
}

// Logging returns the handler options.
func (c Config) Logging() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}

// #endregion conversions

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers

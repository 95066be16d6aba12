package train

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/arenalearn/internal/replay"
)

var ErrInvalidConfig = errors.New("invalid trainer config")

// #region config
// Config holds batch and pacing parameters for the trainer.
type Config struct {
	BatchSize      int     `yaml:"batch_size" validate:"gt=0"`
	MinBufferSize  int     `yaml:"min_buffer_size" validate:"gte=0"`
	StepsPerSecond float64 `yaml:"steps_per_second" validate:"gte=0"` // 0 = unpaced
	Burst          int     `yaml:"burst" validate:"gte=0"`
	MaxSteps       int     `yaml:"max_steps" validate:"gte=0"` // 0 = until cancelled

	// TrainEvery makes Observe run one Step per this many accepted
	// experiences, tying learning to production. 0 leaves stepping to Run.
	TrainEvery int `yaml:"train_every" validate:"gte=0"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:      32,
		MinBufferSize:  64,
		StepsPerSecond: 50,
		Burst:          1,
		TrainEvery:     4,
	}
}

// #endregion config

// #region decision
// Decision records what a training step did.
type Decision struct {
	Action string // "train" | "skip"
	Reason string
}

// #endregion decision

// #region metrics
// Metrics captures telemetry from one training step.
type Metrics struct {
	BatchSize   int
	Beta        float64
	MeanAbsTD   float64
	MaxAbsTD    float64
	MaxPriority float64
	Epsilon     float64
	Stale       int // sampled slots overwritten before their priority update
	Duration    time.Duration
}

// #endregion metrics

// #region step-result
// StepResult bundles everything returned by Trainer.Step.
type StepResult struct {
	Step     int
	Decision Decision
	Metrics  Metrics
	AbsTD    []float64 `json:"-"`
}

// #endregion step-result

// #region hooks
// Recorder receives per-step telemetry. *metrics.Collector satisfies it.
type Recorder interface {
	ObserveStep(decision string, absTDs []float64)
	SetBufferStats(stats replay.Stats)
	SetAgentStats(epsilon float64, entries int)
}

// StepSink persists step results, e.g. into the training log.
type StepSink interface {
	RecordStep(res StepResult) error
}

// #endregion hooks

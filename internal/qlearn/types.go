package qlearn

import "errors"

// #region errors
var (
	ErrInvalidConfig  = errors.New("invalid agent config")
	ErrInvalidState   = errors.New("state is absent or invalid")
	ErrUnknownAction  = errors.New("action not in the agent's action set")
	ErrInvalidReward  = errors.New("reward must be finite")
	ErrInvalidWeight  = errors.New("importance weight must be in (0, 1]")
	ErrInvalidEpsilon = errors.New("exploration rate must be in [0, 1]")
)

// #endregion errors

// #region keys
// State is the constraint on state identifiers: an immutable, comparable value
// that reports whether it describes a real observation. The zero value of a
// State type should be invalid so that an unset state is rejected.
type State interface {
	comparable
	Valid() bool
}

// Key addresses one entry of the value table.
type Key[S State, A comparable] struct {
	State  S
	Action A
}

// Entry is one exported value-table row, used for checkpoints and inspection.
type Entry[S State, A comparable] struct {
	State  S       `json:"state"`
	Action A       `json:"action"`
	Value  float64 `json:"value"`
}

// #endregion keys

// #region config
// Config holds the learning hyperparameters of an Agent.
type Config struct {
	LearningRate    float64 // alpha in (0, 1]
	DiscountFactor  float64 // gamma in [0, 1]
	ExplorationRate float64 // epsilon in [0, 1], mutable after construction
}

// DefaultConfig returns sensible defaults for tabular arena training.
func DefaultConfig() Config {
	return Config{
		LearningRate:    0.1,
		DiscountFactor:  0.95,
		ExplorationRate: 0.1,
	}
}

// #endregion config

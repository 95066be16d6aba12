package replay

import "errors"

// #region errors
var (
	ErrEmptyBuffer      = errors.New("replay buffer is empty")
	ErrInvalidBatchSize = errors.New("batch size must be positive")
	ErrZeroTotal        = errors.New("total priority is not positive")
	ErrLengthMismatch   = errors.New("leaf indices and td errors differ in length")
	ErrInvalidTDError   = errors.New("td error must be finite")
	ErrInvalidConfig    = errors.New("invalid replay config")
	ErrUnwrittenSlot    = errors.New("slot has never been written")
)

// #endregion errors

// #region experience
// Experience is one observed transition. It is immutable once added to a Buffer.
type Experience[S, A any] struct {
	State     S       `json:"state"`
	Action    A       `json:"action"`
	Reward    float64 `json:"reward"`
	NextState S       `json:"next_state"`
	Terminal  bool    `json:"terminal"`
}

// #endregion experience

// #region config
// Config holds the prioritization and annealing constants of a Buffer.
type Config struct {
	Capacity           int
	Alpha              float64 // prioritization exponent: 0 uniform, 1 fully greedy
	BetaStart          float64 // initial importance-sampling exponent
	BetaIncrement      float64 // added to beta on every SampleBatch call
	BetaMax            float64
	PriorityEpsilon    float64 // floor added to |td| so no entry reaches zero priority
	InitialMaxPriority float64
}

// DefaultConfig returns the standard prioritized replay constants.
func DefaultConfig(capacity int) Config {
	return Config{
		Capacity:           capacity,
		Alpha:              0.6,
		BetaStart:          0.4,
		BetaIncrement:      0.001,
		BetaMax:            1.0,
		PriorityEpsilon:    0.01,
		InitialMaxPriority: 1.0,
	}
}

// #endregion config

// #region batch
// Batch is the result of one prioritized draw. The three slices are parallel.
type Batch[S, A any] struct {
	Experiences []Experience[S, A]
	LeafIndices []int
	Weights     []float64 // importance-sampling weights, max exactly 1.0
	Beta        float64   // exponent used for this draw

	// write generation of each sampled slot, checked by UpdateBatch
	generations []uint64
}

// Len returns the number of samples in the batch.
func (b Batch[S, A]) Len() int { return len(b.Experiences) }

// #endregion batch

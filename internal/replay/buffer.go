package replay

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/danielpatrickdp/arenalearn/internal/sumtree"
)

// #region buffer
// Buffer is a fixed-capacity prioritized experience replay memory. A single
// mutex guards the experience array, the sum-tree and the sampling RNG, so
// producers calling Add never interleave with a batch draw.
type Buffer[S, A any] struct {
	mu          sync.Mutex
	config      Config
	tree        *sumtree.Tree
	experiences []Experience[S, A]
	generations []uint64 // bumped on every write to a slot
	size        int
	maxPriority float64
	beta        float64
	rng         *rand.Rand
}

// New builds an empty buffer. A nil rng gets a randomly seeded PCG source.
func New[S, A any](config Config, rng *rand.Rand) (*Buffer[S, A], error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	tree, err := sumtree.New(config.Capacity)
	if err != nil {
		return nil, fmt.Errorf("new sum tree: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Buffer[S, A]{
		config:      config,
		tree:        tree,
		experiences: make([]Experience[S, A], config.Capacity),
		generations: make([]uint64, config.Capacity),
		maxPriority: config.InitialMaxPriority,
		beta:        config.BetaStart,
		rng:         rng,
	}, nil
}

// #endregion buffer

// #region add
// Add stores exp at the next write slot with the current max priority, so a new
// experience is sampled at least once before its real error is known.
func (b *Buffer[S, A]) Add(exp Experience[S, A]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	slot := b.tree.Cursor()
	b.experiences[slot] = exp
	b.generations[slot]++
	// maxPriority is always finite and positive, Insert cannot fail here.
	_, _ = b.tree.Insert(b.maxPriority)
	if b.size < b.config.Capacity {
		b.size++
	}
}

// #endregion add

// #region sample
// SampleBatch draws batchSize experiences by stratified prioritized sampling:
// [0, total) is cut into equal segments and one value is drawn uniformly in each.
// Beta is annealed before the draw. Weights are (N*P(i))^-beta normalized by the
// batch maximum, with N the current size.
func (b *Buffer[S, A]) SampleBatch(batchSize int) (Batch[S, A], error) {
	if batchSize <= 0 {
		return Batch[S, A]{}, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return Batch[S, A]{}, ErrEmptyBuffer
	}
	total := b.tree.Total()
	if !(total > 0) || math.IsInf(total, 0) {
		return Batch[S, A]{}, fmt.Errorf("%w: %g", ErrZeroTotal, total)
	}

	b.beta = math.Min(b.beta+b.config.BetaIncrement, b.config.BetaMax)

	batch := Batch[S, A]{
		Experiences: make([]Experience[S, A], batchSize),
		LeafIndices: make([]int, batchSize),
		Weights:     make([]float64, batchSize),
		Beta:        b.beta,
		generations: make([]uint64, batchSize),
	}

	segment := total / float64(batchSize)
	n := float64(b.size)
	maxWeight := 0.0
	for i := 0; i < batchSize; i++ {
		lo := segment * float64(i)
		value := lo + b.rng.Float64()*segment
		if value >= total {
			value = math.Nextafter(total, 0)
		}
		leaf, priority, data := b.tree.Sample(value)

		prob := priority / total
		weight := math.Pow(n*prob, -b.beta)

		batch.Experiences[i] = b.experiences[data]
		batch.LeafIndices[i] = leaf
		batch.Weights[i] = weight
		batch.generations[i] = b.generations[data]
		if weight > maxWeight {
			maxWeight = weight
		}
	}

	if !(maxWeight > 0) || math.IsInf(maxWeight, 0) {
		return Batch[S, A]{}, fmt.Errorf("%w: sampled a zero-priority slot", ErrZeroTotal)
	}
	for i := range batch.Weights {
		batch.Weights[i] /= maxWeight
	}
	return batch, nil
}

// #endregion sample

// #region update-priorities
// UpdatePriorities sets p = (|td| + eps)^alpha for each leaf. Leaves must belong
// to written slots. The whole batch is validated before any leaf is touched, so
// a rejected call leaves the tree as it was.
func (b *Buffer[S, A]) UpdatePriorities(leafIndices []int, tdErrors []float64) error {
	if err := checkTDErrors(leafIndices, tdErrors); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLeavesLocked(leafIndices); err != nil {
		return err
	}
	for i, leaf := range leafIndices {
		b.setPriorityLocked(leaf, tdErrors[i])
	}
	return nil
}

// UpdateBatch applies tdErrors to the leaves of batch, skipping any slot that
// a producer overwrote after the draw so the new experience keeps its max
// priority seed. It returns the number of skipped leaves.
func (b *Buffer[S, A]) UpdateBatch(batch Batch[S, A], tdErrors []float64) (int, error) {
	if err := checkTDErrors(batch.LeafIndices, tdErrors); err != nil {
		return 0, err
	}
	if len(batch.generations) != len(batch.LeafIndices) {
		return 0, fmt.Errorf("%w: batch was not drawn by SampleBatch", ErrLengthMismatch)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkLeavesLocked(batch.LeafIndices); err != nil {
		return 0, err
	}
	stale := 0
	for i, leaf := range batch.LeafIndices {
		if b.generations[b.tree.DataIndex(leaf)] != batch.generations[i] {
			stale++
			continue
		}
		b.setPriorityLocked(leaf, tdErrors[i])
	}
	return stale, nil
}

func checkTDErrors(leafIndices []int, tdErrors []float64) error {
	if len(leafIndices) != len(tdErrors) {
		return fmt.Errorf("%w: %d leaves, %d errors", ErrLengthMismatch, len(leafIndices), len(tdErrors))
	}
	for i, td := range tdErrors {
		if math.IsNaN(td) || math.IsInf(td, 0) {
			return fmt.Errorf("%w: index %d is %g", ErrInvalidTDError, i, td)
		}
	}
	return nil
}

func (b *Buffer[S, A]) checkLeavesLocked(leafIndices []int) error {
	for _, leaf := range leafIndices {
		if _, err := b.tree.Priority(leaf); err != nil {
			return fmt.Errorf("update priorities: %w", err)
		}
		// slots fill in order, so before the first wrap only [0, size) is written
		if data := b.tree.DataIndex(leaf); data >= b.size {
			return fmt.Errorf("update priorities: %w: slot %d, size %d", ErrUnwrittenSlot, data, b.size)
		}
	}
	return nil
}

func (b *Buffer[S, A]) setPriorityLocked(leaf int, tdError float64) {
	p := b.priority(tdError)
	// leaf and p were validated, Update cannot fail here.
	_ = b.tree.Update(leaf, p)
	if p > b.maxPriority {
		b.maxPriority = p
	}
}

// Priority returns the priority a td error maps to under this buffer's constants.
func (b *Buffer[S, A]) Priority(tdError float64) float64 {
	return b.priority(tdError)
}

func (b *Buffer[S, A]) priority(tdError float64) float64 {
	return math.Pow(math.Abs(tdError)+b.config.PriorityEpsilon, b.config.Alpha)
}

// #endregion update-priorities

// #region accessors
// Size returns the number of valid entries, saturating at capacity.
func (b *Buffer[S, A]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the fixed capacity.
func (b *Buffer[S, A]) Capacity() int { return b.config.Capacity }

// Beta returns the current importance-sampling exponent.
func (b *Buffer[S, A]) Beta() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.beta
}

// MaxPriority returns the largest priority ever assigned (or the initial seed).
func (b *Buffer[S, A]) MaxPriority() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxPriority
}

// TotalPriority returns the sum of all leaf priorities.
func (b *Buffer[S, A]) TotalPriority() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tree.Total()
}

// Stats is a consistent point-in-time view of the buffer counters.
type Stats struct {
	Size          int
	Capacity      int
	Beta          float64
	MaxPriority   float64
	TotalPriority float64
}

// Stats reads all counters under one lock.
func (b *Buffer[S, A]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Size:          b.size,
		Capacity:      b.config.Capacity,
		Beta:          b.beta,
		MaxPriority:   b.maxPriority,
		TotalPriority: b.tree.Total(),
	}
}

// #endregion accessors

// #region validation
func validateConfig(c Config) error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity %d must be positive", ErrInvalidConfig, c.Capacity)
	case !inRange(c.Alpha, 0, 1):
		return fmt.Errorf("%w: alpha %g not in [0, 1]", ErrInvalidConfig, c.Alpha)
	case !inRange(c.BetaStart, 0, 1):
		return fmt.Errorf("%w: beta start %g not in [0, 1]", ErrInvalidConfig, c.BetaStart)
	case !inRange(c.BetaMax, c.BetaStart, 1):
		return fmt.Errorf("%w: beta max %g not in [beta start, 1]", ErrInvalidConfig, c.BetaMax)
	case !(c.BetaIncrement >= 0) || math.IsInf(c.BetaIncrement, 0):
		return fmt.Errorf("%w: beta increment %g must be finite and non-negative", ErrInvalidConfig, c.BetaIncrement)
	case !(c.PriorityEpsilon > 0) || math.IsInf(c.PriorityEpsilon, 0):
		return fmt.Errorf("%w: priority epsilon %g must be finite and positive", ErrInvalidConfig, c.PriorityEpsilon)
	case !(c.InitialMaxPriority > 0) || math.IsInf(c.InitialMaxPriority, 0):
		return fmt.Errorf("%w: initial max priority %g must be finite and positive", ErrInvalidConfig, c.InitialMaxPriority)
	}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// #endregion validation

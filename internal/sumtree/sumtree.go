package sumtree

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// #region errors
var (
	ErrInvalidCapacity = errors.New("capacity must be positive")
	ErrInvalidPriority = errors.New("priority must be finite and non-negative")
	ErrLeafOutOfRange  = errors.New("leaf index out of range")
)

// #endregion errors

// #region tree
// Tree is an implicit binary sum-tree laid over a circular buffer of priorities.
// The leaf row is padded to a power of two, width w: nodes [0, w-1) are internal
// and nodes [w-1, 2w-1) are leaves, of which the first capacity hold slots in
// order. Padding leaves stay zero. Every internal node holds the sum of its two
// children, so the root is the total and cumulative order follows slot order.
//
// Tree is not safe for concurrent use; the owning replay buffer serializes access.
type Tree struct {
	capacity int
	width    int
	nodes    []float64
	cursor   int
}

// New allocates a zeroed tree with room for capacity leaves.
func New(capacity int) (*Tree, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	width := 1
	if capacity > 1 {
		width = 1 << bits.Len(uint(capacity-1))
	}
	return &Tree{
		capacity: capacity,
		width:    width,
		nodes:    make([]float64, 2*width-1),
	}, nil
}

// #endregion tree

// #region accessors
// Capacity returns the number of leaves.
func (t *Tree) Capacity() int { return t.capacity }

// Cursor returns the data index the next Insert will write.
func (t *Tree) Cursor() int { return t.cursor }

// Total returns the sum of all leaf priorities.
func (t *Tree) Total() float64 { return t.nodes[0] }

// LeafIndex maps a data slot to its leaf node index.
func (t *Tree) LeafIndex(dataIndex int) int { return dataIndex + t.width - 1 }

// DataIndex maps a leaf node index to its data slot.
func (t *Tree) DataIndex(leaf int) int { return leaf - (t.width - 1) }

// Priority returns the priority stored at leaf.
func (t *Tree) Priority(leaf int) (float64, error) {
	if err := t.checkLeaf(leaf); err != nil {
		return 0, err
	}
	return t.nodes[leaf], nil
}

// #endregion accessors

// #region insert
// Insert writes priority at the cursor's leaf and advances the cursor, wrapping
// over the oldest entry once the buffer is full. It returns the written leaf.
func (t *Tree) Insert(priority float64) (int, error) {
	if err := checkPriority(priority); err != nil {
		return 0, err
	}
	leaf := t.LeafIndex(t.cursor)
	t.set(leaf, priority)
	t.cursor = (t.cursor + 1) % t.capacity
	return leaf, nil
}

// #endregion insert

// #region update
// Update replaces the priority at leaf and propagates the difference to the root.
func (t *Tree) Update(leaf int, priority float64) error {
	if err := t.checkLeaf(leaf); err != nil {
		return err
	}
	if err := checkPriority(priority); err != nil {
		return err
	}
	t.set(leaf, priority)
	return nil
}

func (t *Tree) set(leaf int, priority float64) {
	delta := priority - t.nodes[leaf]
	t.nodes[leaf] = priority
	for idx := leaf; idx > 0; {
		idx = (idx - 1) / 2
		t.nodes[idx] += delta
	}
}

// #endregion update

// #region sample
// Sample walks from the root to the leaf whose cumulative range contains value.
// value should lie in [0, Total()); the result is undefined when Total() is zero.
// A child with zero weight is skipped while its sibling still carries weight, so
// rounding at segment edges never lands on an empty slot.
func (t *Tree) Sample(value float64) (leaf int, priority float64, dataIndex int) {
	idx := 0
	for idx < t.width-1 {
		left, right := 2*idx+1, 2*idx+2
		lw, rw := t.nodes[left], t.nodes[right]
		if (value <= lw && lw > 0) || rw <= 0 {
			idx = left
			continue
		}
		value -= lw
		idx = right
	}
	return idx, t.nodes[idx], t.DataIndex(idx)
}

// #endregion sample

// #region validate
// Validate checks that every internal node equals the sum of its children within
// a relative tolerance. Intended for tests and diagnostics.
func (t *Tree) Validate() error {
	for idx := t.width - 2; idx >= 0; idx-- {
		sum := t.nodes[2*idx+1] + t.nodes[2*idx+2]
		if !approxEqual(t.nodes[idx], sum) {
			return fmt.Errorf("node %d holds %g, children sum to %g", idx, t.nodes[idx], sum)
		}
	}
	for leaf := t.width - 1; leaf < len(t.nodes); leaf++ {
		if t.nodes[leaf] < 0 || math.IsNaN(t.nodes[leaf]) {
			return fmt.Errorf("leaf %d holds invalid priority %g", leaf, t.nodes[leaf])
		}
		if t.DataIndex(leaf) >= t.capacity && t.nodes[leaf] != 0 {
			return fmt.Errorf("padding leaf %d holds %g", leaf, t.nodes[leaf])
		}
	}
	return nil
}

// #endregion validate

// #region helpers
func (t *Tree) checkLeaf(leaf int) error {
	lo, hi := t.width-1, t.width-1+t.capacity
	if leaf < lo || leaf >= hi {
		return fmt.Errorf("%w: %d not in [%d, %d)", ErrLeafOutOfRange, leaf, lo, hi)
	}
	return nil
}

func checkPriority(p float64) error {
	if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return fmt.Errorf("%w: %g", ErrInvalidPriority, p)
	}
	return nil
}

func approxEqual(a, b float64) bool {
	diff := math.Abs(a - b)
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return diff <= 1e-9*scale
}

// #endregion helpers

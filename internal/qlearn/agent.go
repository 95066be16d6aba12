package qlearn

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/danielpatrickdp/arenalearn/internal/replay"
)

// #region agent
// Agent is a tabular Q-learning agent over a fixed, ordered action set.
//
// The value table is guarded by one RWMutex: DecideAction and QValue share the
// read lock, Learn holds the write lock for the whole read-target-write cycle so
// no reader sees a half-applied update.
type Agent[S State, A comparable] struct {
	mu      sync.RWMutex
	values  map[Key[S, A]]float64
	config  Config
	actions []A
	index   map[A]int

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New validates config and the action enumeration and returns an empty agent.
// Enumeration order is the tie-break order of the greedy policy.
func New[S State, A comparable](config Config, actions []A, rng *rand.Rand) (*Agent[S, A], error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: empty action set", ErrInvalidConfig)
	}
	index := make(map[A]int, len(actions))
	for i, a := range actions {
		if _, dup := index[a]; dup {
			return nil, fmt.Errorf("%w: duplicate action %v", ErrInvalidConfig, a)
		}
		index[a] = i
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Agent[S, A]{
		values:  make(map[Key[S, A]]float64),
		config:  config,
		actions: append([]A(nil), actions...),
		index:   index,
		rng:     rng,
	}, nil
}

// #endregion agent

// #region decide
// DecideAction picks an action epsilon-greedily. With probability epsilon it
// returns a uniformly random action, otherwise the highest-valued one, ties going
// to the earliest action in enumeration order.
func (a *Agent[S, A]) DecideAction(state S) (A, error) {
	var zero A
	if !state.Valid() {
		return zero, ErrInvalidState
	}

	a.mu.RLock()
	epsilon := a.config.ExplorationRate
	a.mu.RUnlock()

	a.rngMu.Lock()
	explore := epsilon > 0 && a.rng.Float64() < epsilon
	var pick int
	if explore {
		pick = a.rng.IntN(len(a.actions))
	}
	a.rngMu.Unlock()

	if explore {
		return a.actions[pick], nil
	}
	return a.Greedy(state)
}

// Greedy returns argmax_a Q(state, a) without exploration.
func (a *Agent[S, A]) Greedy(state S) (A, error) {
	var zero A
	if !state.Valid() {
		return zero, ErrInvalidState
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	best, _ := a.argmaxLocked(state)
	return a.actions[best], nil
}

// #endregion decide

// #region values
// QValue returns the stored estimate, or 0.0 for a pair never written. It never
// inserts into the table.
func (a *Agent[S, A]) QValue(state S, action A) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.values[Key[S, A]{State: state, Action: action}]
}

// QValues returns the estimates for state in action enumeration order.
func (a *Agent[S, A]) QValues(state S) []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]float64, len(a.actions))
	for i, act := range a.actions {
		out[i] = a.values[Key[S, A]{State: state, Action: act}]
	}
	return out
}

// Actions returns a copy of the action enumeration.
func (a *Agent[S, A]) Actions() []A {
	return append([]A(nil), a.actions...)
}

// Len returns the number of written (state, action) entries.
func (a *Agent[S, A]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.values)
}

// #endregion values

// #region learn
// Learn applies Q(s,a) += alpha * (r + gamma * max_a' Q(s',a') - Q(s,a)) and
// returns the bracketed temporal-difference error.
func (a *Agent[S, A]) Learn(state S, action A, reward float64, next S) (float64, error) {
	return a.learn(state, action, reward, next, false, 1)
}

// LearnExperience applies the same rule to a replayed experience with its
// importance-sampling weight in (0, 1] scaling the step size. Terminal
// experiences bootstrap from nothing: the target is the reward alone.
func (a *Agent[S, A]) LearnExperience(exp replay.Experience[S, A], weight float64) (float64, error) {
	return a.learn(exp.State, exp.Action, exp.Reward, exp.NextState, exp.Terminal, weight)
}

func (a *Agent[S, A]) learn(state S, action A, reward float64, next S, terminal bool, weight float64) (float64, error) {
	if !state.Valid() {
		return 0, ErrInvalidState
	}
	if !terminal && !next.Valid() {
		return 0, fmt.Errorf("%w: next state", ErrInvalidState)
	}
	if _, ok := a.index[action]; !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnknownAction, action)
	}
	if math.IsNaN(reward) || math.IsInf(reward, 0) {
		return 0, fmt.Errorf("%w: %g", ErrInvalidReward, reward)
	}
	// batch weights are max-normalized into (0, 1]
	if !(weight > 0 && weight <= 1) {
		return 0, fmt.Errorf("%w: %g", ErrInvalidWeight, weight)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	target := reward
	if !terminal {
		_, maxNext := a.argmaxLocked(next)
		target += a.config.DiscountFactor * maxNext
	}
	key := Key[S, A]{State: state, Action: action}
	current := a.values[key]
	tdError := target - current
	a.values[key] = current + a.config.LearningRate*weight*tdError
	return tdError, nil
}

// #endregion learn

// #region exploration
// SetExplorationRate replaces epsilon, e.g. from an external decay schedule.
func (a *Agent[S, A]) SetExplorationRate(epsilon float64) error {
	if !(epsilon >= 0 && epsilon <= 1) {
		return fmt.Errorf("%w: got %g", ErrInvalidEpsilon, epsilon)
	}
	a.mu.Lock()
	a.config.ExplorationRate = epsilon
	a.mu.Unlock()
	return nil
}

// ExplorationRate returns the current epsilon.
func (a *Agent[S, A]) ExplorationRate() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.ExplorationRate
}

// Config returns the agent's current hyperparameters.
func (a *Agent[S, A]) Config() Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// #endregion exploration

// #region snapshot
// Snapshot copies the value table for checkpointing. Rows come out in no
// particular order.
func (a *Agent[S, A]) Snapshot() []Entry[S, A] {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Entry[S, A], 0, len(a.values))
	for k, v := range a.values {
		out = append(out, Entry[S, A]{State: k.State, Action: k.Action, Value: v})
	}
	return out
}

// Restore replaces the value table with entries. Entries are validated first;
// on error the table is left untouched.
func (a *Agent[S, A]) Restore(entries []Entry[S, A]) error {
	values := make(map[Key[S, A]]float64, len(entries))
	for i, e := range entries {
		if !e.State.Valid() {
			return fmt.Errorf("restore entry %d: %w", i, ErrInvalidState)
		}
		if _, ok := a.index[e.Action]; !ok {
			return fmt.Errorf("restore entry %d: %w: %v", i, ErrUnknownAction, e.Action)
		}
		if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
			return fmt.Errorf("restore entry %d: non-finite value %g", i, e.Value)
		}
		values[Key[S, A]{State: e.State, Action: e.Action}] = e.Value
	}
	a.mu.Lock()
	a.values = values
	a.mu.Unlock()
	return nil
}

// #endregion snapshot

// #region helpers
// argmaxLocked returns the index and value of the best action for state.
// Caller holds a.mu.
func (a *Agent[S, A]) argmaxLocked(state S) (int, float64) {
	best := 0
	bestVal := a.values[Key[S, A]{State: state, Action: a.actions[0]}]
	for i := 1; i < len(a.actions); i++ {
		v := a.values[Key[S, A]{State: state, Action: a.actions[i]}]
		if v > bestVal {
			best, bestVal = i, v
		}
	}
	return best, bestVal
}

func validateConfig(c Config) error {
	switch {
	case !(c.LearningRate > 0 && c.LearningRate <= 1):
		return fmt.Errorf("%w: learning rate %g not in (0, 1]", ErrInvalidConfig, c.LearningRate)
	case !(c.DiscountFactor >= 0 && c.DiscountFactor <= 1):
		return fmt.Errorf("%w: discount factor %g not in [0, 1]", ErrInvalidConfig, c.DiscountFactor)
	case !(c.ExplorationRate >= 0 && c.ExplorationRate <= 1):
		return fmt.Errorf("%w: exploration rate %g not in [0, 1]", ErrInvalidConfig, c.ExplorationRate)
	}
	return nil
}

// #endregion helpers

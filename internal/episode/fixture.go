package episode

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/danielpatrickdp/arenalearn/internal/reward"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Transitions     []FixtureTransition     `json:"transitions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureTransition mirrors Transition with JSON tags.
type FixtureTransition struct {
	ID        string        `json:"id"`
	State     game.State    `json:"state"`
	Action    game.Action   `json:"action"`
	Events    reward.Events `json:"events"`
	NextState game.State    `json:"next_state"`
	Terminal  bool          `json:"terminal"`
}

// FixtureExpectedResult captures the expected decision per transition.
type FixtureExpectedResult struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// FixtureConfig bundles all sub-configs for a replay run. Omitted sections
// keep DefaultConfig values.
type FixtureConfig struct {
	Seed    uint64               `json:"seed"`
	Agent   *FixtureAgentConfig  `json:"agent"`
	Buffer  *FixtureBufferConfig `json:"buffer"`
	Trainer *FixtureTrainConfig  `json:"trainer"`
	Reward  *reward.Table        `json:"reward"`
}

// FixtureAgentConfig mirrors qlearn.Config with JSON tags.
type FixtureAgentConfig struct {
	LearningRate    float64 `json:"learning_rate"`
	DiscountFactor  float64 `json:"discount_factor"`
	ExplorationRate float64 `json:"exploration_rate"`
}

// FixtureBufferConfig mirrors the tunable parts of replay.Config.
type FixtureBufferConfig struct {
	Capacity      int     `json:"capacity"`
	Alpha         float64 `json:"alpha"`
	BetaStart     float64 `json:"beta_start"`
	BetaIncrement float64 `json:"beta_increment"`
}

// FixtureTrainConfig mirrors the batch parts of train.Config.
type FixtureTrainConfig struct {
	BatchSize     int `json:"batch_size"`
	MinBufferSize int `json:"min_buffer_size"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToTransition converts a FixtureTransition to a domain Transition.
func (ft *FixtureTransition) ToTransition() Transition {
	return Transition{
		ID:        ft.ID,
		State:     ft.State,
		Action:    ft.Action,
		Events:    ft.Events,
		NextState: ft.NextState,
		Terminal:  ft.Terminal,
	}
}

// ToTransitions converts every fixture transition.
func (f *Fixture) ToTransitions() []Transition {
	out := make([]Transition, len(f.Transitions))
	for i := range f.Transitions {
		out[i] = f.Transitions[i].ToTransition()
	}
	return out
}

// ToConfig overlays the fixture's sections on DefaultConfig.
func (fc *FixtureConfig) ToConfig() Config {
	c := DefaultConfig()
	if fc.Seed != 0 {
		c.Seed = fc.Seed
	}
	if a := fc.Agent; a != nil {
		c.Agent.LearningRate = a.LearningRate
		c.Agent.DiscountFactor = a.DiscountFactor
		c.Agent.ExplorationRate = a.ExplorationRate
	}
	if b := fc.Buffer; b != nil {
		c.Buffer.Capacity = b.Capacity
		c.Buffer.Alpha = b.Alpha
		c.Buffer.BetaStart = b.BetaStart
		c.Buffer.BetaIncrement = b.BetaIncrement
	}
	if t := fc.Trainer; t != nil {
		c.Trainer.BatchSize = t.BatchSize
		c.Trainer.MinBufferSize = t.MinBufferSize
	}
	if fc.Reward != nil {
		c.Reward = *fc.Reward
	}
	return c
}

// #endregion fixture-loader

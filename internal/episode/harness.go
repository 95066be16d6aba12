package episode

import (
	"fmt"
	"math/rand/v2"

	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/danielpatrickdp/arenalearn/internal/qlearn"
	"github.com/danielpatrickdp/arenalearn/internal/replay"
	"github.com/danielpatrickdp/arenalearn/internal/reward"
	"github.com/danielpatrickdp/arenalearn/internal/train"
)

// #region types
// Transition is a single recorded bot step for replay.
type Transition struct {
	ID        string
	State     game.State
	Action    game.Action
	Events    reward.Events
	NextState game.State
	Terminal  bool
}

// Config bundles agent, buffer, trainer and reward settings for a replay run.
// Seed fixes both random streams so a run is reproducible.
type Config struct {
	Agent   qlearn.Config
	Buffer  replay.Config
	Trainer train.Config
	Reward  reward.Table
	Seed    uint64
}

// DefaultConfig returns sensible defaults for all pipeline stages.
func DefaultConfig() Config {
	tc := train.DefaultConfig()
	tc.BatchSize = 8
	tc.MinBufferSize = 2
	return Config{
		Agent:   qlearn.DefaultConfig(),
		Buffer:  replay.DefaultConfig(256),
		Trainer: tc,
		Reward:  reward.DefaultTable(),
		Seed:    1,
	}
}

// Result captures the outcome of replaying one transition through the pipeline.
type Result struct {
	ID     string
	Action string // "train" | "skip" | "reject"
	Reason string
	Reward float64

	// Trainer stage (nil if the transition was rejected)
	Step *train.StepResult

	// Value of the replayed (state, action) after the step
	QValue float64
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalTransitions int
	Trained          int
	Skipped          int
	Rejected         int
	TotalReward      float64
	TableEntries     int
	FinalBeta        float64
}

// Run is a finished replay: per-transition results plus the trained agent
// and buffer for inspection.
type Run struct {
	Results []Result
	Agent   *qlearn.Agent[game.State, game.Action]
	Buffer  *replay.Buffer[game.State, game.Action]
}

// #endregion types

// #region replay
// Replay iterates through transitions, applying the full pipeline per step:
// shape reward → store → train. Operates entirely in-memory.
func Replay(transitions []Transition, config Config) (Run, error) {
	shaper, err := reward.New(config.Reward)
	if err != nil {
		return Run{}, fmt.Errorf("reward: %w", err)
	}
	buf, err := replay.New[game.State, game.Action](config.Buffer, rand.New(rand.NewPCG(config.Seed, 1)))
	if err != nil {
		return Run{}, fmt.Errorf("buffer: %w", err)
	}
	agent, err := qlearn.New[game.State](config.Agent, game.Actions(), rand.New(rand.NewPCG(config.Seed, 2)))
	if err != nil {
		return Run{}, fmt.Errorf("agent: %w", err)
	}
	// Replay steps once per transition itself.
	tc := config.Trainer
	tc.TrainEvery = 0
	trainer, err := train.New(buf, agent, tc)
	if err != nil {
		return Run{}, fmt.Errorf("trainer: %w", err)
	}

	results := make([]Result, 0, len(transitions))
	for _, tr := range transitions {
		// 1. Shape
		r := shaper.Total(tr.Events)
		exp := replay.Experience[game.State, game.Action]{
			State:     tr.State,
			Action:    tr.Action,
			Reward:    r,
			NextState: tr.NextState,
			Terminal:  tr.Terminal,
		}

		// 2. Store
		if err := trainer.Observe(exp); err != nil {
			results = append(results, Result{
				ID:     tr.ID,
				Action: "reject",
				Reason: err.Error(),
				Reward: r,
			})
			continue
		}

		// 3. Train
		step, err := trainer.Step()
		if err != nil {
			return Run{}, fmt.Errorf("transition %s: %w", tr.ID, err)
		}
		results = append(results, Result{
			ID:     tr.ID,
			Action: step.Decision.Action,
			Reason: step.Decision.Reason,
			Reward: r,
			Step:   &step,
			QValue: agent.QValue(tr.State, tr.Action),
		})
	}

	return Run{Results: results, Agent: agent, Buffer: buf}, nil
}

// Summarize computes aggregate stats from a replay run.
func Summarize(run Run) Summary {
	s := Summary{TotalTransitions: len(run.Results)}
	for _, r := range run.Results {
		s.TotalReward += r.Reward
		switch r.Action {
		case "train":
			s.Trained++
		case "skip":
			s.Skipped++
		case "reject":
			s.Rejected++
		}
	}
	if run.Agent != nil {
		s.TableEntries = run.Agent.Len()
	}
	if run.Buffer != nil {
		s.FinalBeta = run.Buffer.Beta()
	}
	return s
}

// #endregion replay

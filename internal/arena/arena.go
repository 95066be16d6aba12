package arena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/danielpatrickdp/arenalearn/internal/reward"
	"golang.org/x/sync/errgroup"
)

var ErrInvalidConfig = errors.New("invalid arena config")

// #region config
// Config sizes an arena run.
type Config struct {
	Bots        int             `yaml:"bots" validate:"gt=0"`
	TicksPerBot int             `yaml:"ticks_per_bot" validate:"gt=0"`
	Seed        uint64          `yaml:"seed"`
	Thresholds  game.Thresholds `yaml:"-"`
}

// DefaultConfig returns a small four-bot arena.
func DefaultConfig() Config {
	return Config{
		Bots:        4,
		TicksPerBot: 2000,
		Seed:        1,
		Thresholds:  game.DefaultThresholds(),
	}
}

// #endregion config

// #region stats
// Stats aggregates what the bots did during a run.
type Stats struct {
	Ticks       int
	Kills       int
	Deaths      int
	TotalReward float64
	Actions     map[game.Action]int
}

func newStats() Stats {
	return Stats{Actions: make(map[game.Action]int)}
}

func (s *Stats) add(a game.Action, r float64, ev reward.Events) {
	s.Ticks++
	s.TotalReward += r
	s.Actions[a]++
	if ev.Combat.MadeKill {
		s.Kills++
	}
	if ev.Combat.Died {
		s.Deaths++
	}
}

func (s *Stats) merge(o Stats) {
	s.Ticks += o.Ticks
	s.Kills += o.Kills
	s.Deaths += o.Deaths
	s.TotalReward += o.TotalReward
	for a, n := range o.Actions {
		s.Actions[a] += n
	}
}

// #endregion stats

// #region arena
// Background is a consumer that runs until its context is cancelled, such as
// *train.Trainer.
type Background interface {
	Run(ctx context.Context) error
}

// Arena runs bots concurrently against a shared policy and sink while an
// optional background consumer trains.
type Arena struct {
	config  Config
	policy  Policy
	sink    Sink
	shaper  reward.Shaper
	trainer Background
	logger  *slog.Logger
}

// New validates config and builds an arena. trainer and logger may be nil.
func New(config Config, policy Policy, sink Sink, shaper reward.Shaper, trainer Background, logger *slog.Logger) (*Arena, error) {
	if config.Bots <= 0 || config.TicksPerBot <= 0 {
		return nil, fmt.Errorf("%w: bots=%d ticks=%d", ErrInvalidConfig, config.Bots, config.TicksPerBot)
	}
	if policy == nil || sink == nil {
		return nil, fmt.Errorf("%w: policy and sink are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Arena{
		config:  config,
		policy:  policy,
		sink:    sink,
		shaper:  shaper,
		trainer: trainer,
		logger:  logger,
	}, nil
}

// Run ticks every bot TicksPerBot times. Producers share one errgroup: the
// first failure cancels the rest. The background consumer is stopped once the
// producers finish and its error, if any, is returned after theirs.
func (a *Arena) Run(ctx context.Context) (Stats, error) {
	bots := make([]*bot, a.config.Bots)
	for i := range bots {
		bots[i] = newBot(i, a.config.Seed, a.policy, a.sink, a.shaper, a.config.Thresholds)
	}

	trainCtx, stopTrainer := context.WithCancel(ctx)
	defer stopTrainer()
	trainDone := make(chan error, 1)
	if a.trainer != nil {
		go func() { trainDone <- a.trainer.Run(trainCtx) }()
	} else {
		trainDone <- nil
	}

	a.logger.Info("arena started", "bots", a.config.Bots, "ticks_per_bot", a.config.TicksPerBot)
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range bots {
		g.Go(func() error { return b.run(gctx, a.config.TicksPerBot) })
	}
	err := g.Wait()

	stopTrainer()
	trainErr := <-trainDone

	total := newStats()
	for _, b := range bots {
		total.merge(b.stats)
	}
	a.logger.Info("arena finished",
		"ticks", total.Ticks,
		"kills", total.Kills,
		"deaths", total.Deaths,
		"total_reward", total.TotalReward,
	)

	if err != nil {
		return total, err
	}
	if trainErr != nil {
		return total, fmt.Errorf("trainer: %w", trainErr)
	}
	return total, nil
}

// #endregion arena

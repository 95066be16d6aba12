package train

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielpatrickdp/arenalearn/internal/qlearn"
	"github.com/danielpatrickdp/arenalearn/internal/replay"
	"golang.org/x/time/rate"
)

// #region trainer
// Trainer couples a replay buffer and an agent: every step samples a batch,
// applies importance-weighted updates, and feeds |td| back as priorities.
type Trainer[S qlearn.State, A comparable] struct {
	buffer *replay.Buffer[S, A]
	agent  *qlearn.Agent[S, A]
	config Config

	mu       sync.Mutex // serializes Step
	step     int
	trained  int
	schedule *ExplorationSchedule

	observed atomic.Int64

	logger   *slog.Logger
	recorder Recorder
	sink     StepSink
}

// Option configures optional trainer hooks.
type Option[S qlearn.State, A comparable] func(*Trainer[S, A])

// WithLogger sets the structured logger.
func WithLogger[S qlearn.State, A comparable](l *slog.Logger) Option[S, A] {
	return func(t *Trainer[S, A]) { t.logger = l }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder[S qlearn.State, A comparable](r Recorder) Option[S, A] {
	return func(t *Trainer[S, A]) { t.recorder = r }
}

// WithSink attaches a step sink.
func WithSink[S qlearn.State, A comparable](s StepSink) Option[S, A] {
	return func(t *Trainer[S, A]) { t.sink = s }
}

// WithSchedule applies an exploration schedule after each trained step.
func WithSchedule[S qlearn.State, A comparable](s ExplorationSchedule) Option[S, A] {
	return func(t *Trainer[S, A]) { t.schedule = &s }
}

// New builds a trainer. buffer and agent may be shared with producers.
func New[S qlearn.State, A comparable](buffer *replay.Buffer[S, A], agent *qlearn.Agent[S, A], config Config, opts ...Option[S, A]) (*Trainer[S, A], error) {
	if buffer == nil || agent == nil {
		return nil, fmt.Errorf("%w: buffer and agent are required", ErrInvalidConfig)
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size %d", ErrInvalidConfig, config.BatchSize)
	}
	if config.MinBufferSize < 0 || config.Burst < 0 || config.MaxSteps < 0 || config.TrainEvery < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrInvalidConfig)
	}
	if !(config.StepsPerSecond >= 0) || math.IsInf(config.StepsPerSecond, 0) {
		return nil, fmt.Errorf("%w: steps per second %g", ErrInvalidConfig, config.StepsPerSecond)
	}
	t := &Trainer[S, A]{buffer: buffer, agent: agent, config: config}
	for _, o := range opts {
		o(t)
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	if t.schedule != nil {
		if err := agent.SetExplorationRate(t.schedule.At(0)); err != nil {
			return nil, fmt.Errorf("%w: exploration schedule: %v", ErrInvalidConfig, err)
		}
	}
	return t, nil
}

// #endregion trainer

// #region observe
// Observe stores one transition after checking its states, so a bad
// experience is rejected at the producer instead of failing a later batch.
// With TrainEvery set, every TrainEvery-th accepted experience also runs a
// Step on the caller's goroutine.
func (t *Trainer[S, A]) Observe(exp replay.Experience[S, A]) error {
	if !exp.State.Valid() {
		return fmt.Errorf("observe: %w", qlearn.ErrInvalidState)
	}
	if !exp.Terminal && !exp.NextState.Valid() {
		return fmt.Errorf("observe next state: %w", qlearn.ErrInvalidState)
	}
	if math.IsNaN(exp.Reward) || math.IsInf(exp.Reward, 0) {
		return fmt.Errorf("observe: %w", qlearn.ErrInvalidReward)
	}
	t.buffer.Add(exp)

	if n := t.config.TrainEvery; n > 0 && t.observed.Add(1)%int64(n) == 0 {
		if _, err := t.Step(); err != nil {
			return fmt.Errorf("observe: %w", err)
		}
	}
	return nil
}

// #endregion observe

// #region step
// Step runs one training step. It skips while the buffer holds fewer than
// max(MinBufferSize, 1) experiences.
func (t *Trainer[S, A]) Step() (StepResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	t.step++
	res := StepResult{Step: t.step}

	size := t.buffer.Size()
	if size == 0 || size < t.config.MinBufferSize {
		res.Decision = Decision{
			Action: "skip",
			Reason: fmt.Sprintf("buffer holds %d of %d required", size, max(t.config.MinBufferSize, 1)),
		}
		res.Metrics = Metrics{Beta: t.buffer.Beta(), MaxPriority: t.buffer.MaxPriority(), Epsilon: t.agent.ExplorationRate()}
		res.Metrics.Duration = time.Since(start)
		t.finish(res)
		return res, nil
	}

	batch, err := t.buffer.SampleBatch(t.config.BatchSize)
	if err != nil {
		return StepResult{}, fmt.Errorf("sample batch: %w", err)
	}

	tds := make([]float64, batch.Len())
	absTD := make([]float64, batch.Len())
	var sum, peak float64
	for i, exp := range batch.Experiences {
		td, err := t.agent.LearnExperience(exp, batch.Weights[i])
		if err != nil {
			return StepResult{}, fmt.Errorf("learn sample %d: %w", i, err)
		}
		tds[i] = td
		absTD[i] = math.Abs(td)
		sum += absTD[i]
		peak = math.Max(peak, absTD[i])
	}

	stale, err := t.buffer.UpdateBatch(batch, tds)
	if err != nil {
		return StepResult{}, fmt.Errorf("update priorities: %w", err)
	}

	t.trained++
	if t.schedule != nil {
		if err := t.agent.SetExplorationRate(t.schedule.At(t.trained)); err != nil {
			return StepResult{}, fmt.Errorf("exploration schedule: %w", err)
		}
	}

	res.Decision = Decision{
		Action: "train",
		Reason: fmt.Sprintf("batch of %d, mean |td| %.6f", batch.Len(), sum/float64(batch.Len())),
	}
	res.AbsTD = absTD
	res.Metrics = Metrics{
		BatchSize:   batch.Len(),
		Beta:        batch.Beta,
		MeanAbsTD:   sum / float64(batch.Len()),
		MaxAbsTD:    peak,
		MaxPriority: t.buffer.MaxPriority(),
		Epsilon:     t.agent.ExplorationRate(),
		Stale:       stale,
		Duration:    time.Since(start),
	}
	t.finish(res)
	return res, nil
}

// finish publishes a result to the optional hooks. Sink failures are logged,
// not returned: the agent has already learned from the batch.
func (t *Trainer[S, A]) finish(res StepResult) {
	if t.recorder != nil {
		t.recorder.ObserveStep(res.Decision.Action, res.AbsTD)
		t.recorder.SetBufferStats(t.buffer.Stats())
		t.recorder.SetAgentStats(t.agent.ExplorationRate(), t.agent.Len())
	}
	if t.sink != nil {
		if err := t.sink.RecordStep(res); err != nil {
			t.logger.Warn("record step failed", "step", res.Step, "error", err)
		}
	}
	t.logger.Debug("train step",
		"step", res.Step,
		"decision", res.Decision.Action,
		"batch", res.Metrics.BatchSize,
		"beta", res.Metrics.Beta,
		"mean_abs_td", res.Metrics.MeanAbsTD,
	)
}

// Trained returns the number of steps that learned from a batch.
func (t *Trainer[S, A]) Trained() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trained
}

// Steps returns the number of steps taken so far, skipped ones included.
func (t *Trainer[S, A]) Steps() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.step
}

// #endregion step

// #region run
// Run steps the trainer at the configured rate until ctx is done or MaxSteps
// is reached. Cancellation is a normal stop and returns nil.
func (t *Trainer[S, A]) Run(ctx context.Context) error {
	limit := rate.Inf
	if t.config.StepsPerSecond > 0 {
		limit = rate.Limit(t.config.StepsPerSecond)
	}
	limiter := rate.NewLimiter(limit, max(t.config.Burst, 1))

	t.logger.Info("trainer started",
		"batch_size", t.config.BatchSize,
		"min_buffer_size", t.config.MinBufferSize,
		"steps_per_second", t.config.StepsPerSecond,
	)
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				t.logger.Info("trainer stopped", "steps", t.Steps(), "trained", t.Trained())
				return nil
			}
			return fmt.Errorf("rate limiter: %w", err)
		}
		res, err := t.Step()
		if err != nil {
			t.logger.Error("train step failed", "error", err)
			return err
		}
		if t.config.MaxSteps > 0 && res.Step >= t.config.MaxSteps {
			t.logger.Info("trainer reached max steps", "steps", res.Step, "trained", t.Trained())
			return nil
		}
	}
}

// #endregion run

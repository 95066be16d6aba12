package train

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/danielpatrickdp/arenalearn/internal/qlearn"
	"github.com/danielpatrickdp/arenalearn/internal/replay"
)

// #region helpers
var (
	calm    = game.State{Health: game.BandHigh, EnemyRange: game.BandHigh}
	engaged = game.State{Health: game.BandMid, EnemyRange: game.BandLow}
)

func fixture(t *testing.T, cfg Config, opts ...Option[game.State, game.Action]) (*Trainer[game.State, game.Action], *replay.Buffer[game.State, game.Action], *qlearn.Agent[game.State, game.Action]) {
	t.Helper()
	buf, err := replay.New[game.State, game.Action](replay.DefaultConfig(64), rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("replay.New: %v", err)
	}
	agent, err := qlearn.New[game.State](qlearn.Config{LearningRate: 0.5, DiscountFactor: 0.9, ExplorationRate: 0.2}, game.Actions(), rand.New(rand.NewPCG(3, 4)))
	if err != nil {
		t.Fatalf("qlearn.New: %v", err)
	}
	tr, err := New(buf, agent, cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr, buf, agent
}

type fakeRecorder struct {
	decisions []string
	samples   int
	sizes     []int
	entries   []int
}

func (f *fakeRecorder) ObserveStep(decision string, absTDs []float64) {
	f.decisions = append(f.decisions, decision)
	f.samples += len(absTDs)
}
func (f *fakeRecorder) SetBufferStats(s replay.Stats)        { f.sizes = append(f.sizes, s.Size) }
func (f *fakeRecorder) SetAgentStats(_ float64, entries int) { f.entries = append(f.entries, entries) }

type fakeSink struct {
	results []StepResult
	err     error
}

func (f *fakeSink) RecordStep(res StepResult) error {
	f.results = append(f.results, res)
	return f.err
}

// #endregion helpers

func TestNewRejectsConfig(t *testing.T) {
	buf, _ := replay.New[game.State, game.Action](replay.DefaultConfig(4), nil)
	agent, _ := qlearn.New[game.State](qlearn.DefaultConfig(), game.Actions(), nil)
	bad := []Config{
		{BatchSize: 0},
		{BatchSize: 4, MinBufferSize: -1},
		{BatchSize: 4, StepsPerSecond: math.NaN()},
		{BatchSize: 4, StepsPerSecond: -1},
		{BatchSize: 4, TrainEvery: -1},
	}
	for _, c := range bad {
		if _, err := New(buf, agent, c); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("config %+v: expected ErrInvalidConfig, got %v", c, err)
		}
	}
	if _, err := New[game.State, game.Action](nil, agent, DefaultConfig()); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("nil buffer: expected ErrInvalidConfig, got %v", err)
	}
}

func TestStepSkipsBelowMinimum(t *testing.T) {
	tr, _, agent := fixture(t, Config{BatchSize: 4, MinBufferSize: 2})

	res, err := tr.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Decision.Action != "skip" {
		t.Fatalf("expected skip on empty buffer, got %s", res.Decision.Action)
	}

	if err := tr.Observe(replay.Experience[game.State, game.Action]{State: calm, Action: game.ActionExplore, Terminal: true}); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	res, _ = tr.Step()
	if res.Decision.Action != "skip" {
		t.Fatalf("expected skip with 1 of 2, got %s", res.Decision.Action)
	}
	if res.Step != 2 {
		t.Fatalf("expected step 2, got %d", res.Step)
	}
	if agent.Len() != 0 {
		t.Fatalf("skipped steps must not learn, table has %d entries", agent.Len())
	}
}

func TestStepAppliesWeightedUpdatesAndPriorities(t *testing.T) {
	tr, buf, agent := fixture(t, Config{BatchSize: 4})
	exp := replay.Experience[game.State, game.Action]{State: engaged, Action: game.ActionAttack, Reward: 10, Terminal: true}
	if err := tr.Observe(exp); err != nil {
		t.Fatalf("Observe: %v", err)
	}

	res, err := tr.Step()
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Decision.Action != "train" {
		t.Fatalf("expected train, got %s (%s)", res.Decision.Action, res.Decision.Reason)
	}

	// One stored experience drawn four times with weight 1:
	// Q goes 0 -> 5 -> 7.5 -> 8.75 -> 9.375, td = 10, 5, 2.5, 1.25.
	if got := agent.QValue(engaged, game.ActionAttack); math.Abs(got-9.375) > 1e-12 {
		t.Fatalf("expected Q=9.375, got %v", got)
	}
	if res.Metrics.BatchSize != 4 {
		t.Fatalf("expected batch 4, got %d", res.Metrics.BatchSize)
	}
	if math.Abs(res.Metrics.MaxAbsTD-10) > 1e-12 || math.Abs(res.Metrics.MeanAbsTD-4.6875) > 1e-12 {
		t.Fatalf("unexpected td metrics: %+v", res.Metrics)
	}
	if math.Abs(res.Metrics.Beta-0.401) > 1e-12 {
		t.Fatalf("expected beta 0.401, got %v", res.Metrics.Beta)
	}

	// The last update to the shared leaf wins; max priority keeps the largest.
	if want := math.Pow(1.25+0.01, 0.6); math.Abs(buf.TotalPriority()-want) > 1e-12 {
		t.Fatalf("expected total %v, got %v", want, buf.TotalPriority())
	}
	if want := math.Pow(10+0.01, 0.6); math.Abs(buf.MaxPriority()-want) > 1e-12 {
		t.Fatalf("expected max priority %v, got %v", want, buf.MaxPriority())
	}
}

func TestObserveRejectsInvalid(t *testing.T) {
	tr, buf, _ := fixture(t, DefaultConfig())
	bad := []replay.Experience[game.State, game.Action]{
		{State: game.State{}, Action: game.ActionAttack, Terminal: true},
		{State: calm, Action: game.ActionAttack, NextState: game.State{}},
		{State: calm, Action: game.ActionAttack, Reward: math.Inf(-1), Terminal: true},
	}
	for i, exp := range bad {
		if err := tr.Observe(exp); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
	if buf.Size() != 0 {
		t.Fatalf("rejected experiences must not be stored, size %d", buf.Size())
	}
}

func TestHooksAndSchedule(t *testing.T) {
	rec := &fakeRecorder{}
	sink := &fakeSink{err: errors.New("disk full")}
	sched := ExplorationSchedule{Start: 0.6, End: 0.0, Steps: 2}
	tr, _, agent := fixture(t, Config{BatchSize: 2, MinBufferSize: 1},
		WithRecorder[game.State, game.Action](rec),
		WithSink[game.State, game.Action](sink),
		WithSchedule[game.State, game.Action](sched),
	)
	if got := agent.ExplorationRate(); got != 0.6 {
		t.Fatalf("New should seed epsilon with the schedule start, got %v", got)
	}

	tr.Step() // skip
	if got := agent.ExplorationRate(); got != 0.6 {
		t.Fatalf("skipped steps must not advance the schedule, got %v", got)
	}
	tr.Observe(replay.Experience[game.State, game.Action]{State: calm, Action: game.ActionExplore, Reward: 1, NextState: engaged})
	if _, err := tr.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	if len(rec.decisions) != 2 || rec.decisions[0] != "skip" || rec.decisions[1] != "train" {
		t.Fatalf("unexpected decisions %v", rec.decisions)
	}
	if rec.samples != 2 {
		t.Fatalf("expected 2 observed samples, got %d", rec.samples)
	}
	if rec.sizes[1] != 1 || rec.entries[1] != 1 {
		t.Fatalf("expected size 1 and 1 entry, got %v %v", rec.sizes, rec.entries)
	}
	if len(sink.results) != 2 {
		t.Fatalf("sink errors must not stop recording, got %d results", len(sink.results))
	}
	if tr.Steps() != 2 || tr.Trained() != 1 {
		t.Fatalf("expected 2 steps and 1 trained, got %d and %d", tr.Steps(), tr.Trained())
	}
	if got := agent.ExplorationRate(); math.Abs(got-0.3) > 1e-12 {
		t.Fatalf("one trained step is halfway through the schedule, got %v", got)
	}

	if _, err := tr.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if got := agent.ExplorationRate(); got != 0 {
		t.Fatalf("schedule should reach 0 after 2 trained steps, got %v", got)
	}
}

func TestObserveTrainsEveryN(t *testing.T) {
	tr, _, _ := fixture(t, Config{BatchSize: 2, MinBufferSize: 2, TrainEvery: 3})
	exp := replay.Experience[game.State, game.Action]{State: engaged, Action: game.ActionAttack, Reward: 1, Terminal: true}

	for i := 1; i <= 9; i++ {
		if err := tr.Observe(exp); err != nil {
			t.Fatalf("Observe %d: %v", i, err)
		}
		if want := i / 3; tr.Steps() != want {
			t.Fatalf("after %d observes expected %d steps, got %d", i, want, tr.Steps())
		}
	}
	if tr.Trained() != 3 {
		t.Fatalf("buffer was past the minimum for every step, trained %d", tr.Trained())
	}
}

func TestObserveWithoutTrainEveryNeverSteps(t *testing.T) {
	tr, _, _ := fixture(t, Config{BatchSize: 2})
	exp := replay.Experience[game.State, game.Action]{State: calm, Action: game.ActionRetreat, Terminal: true}
	for range 10 {
		if err := tr.Observe(exp); err != nil {
			t.Fatalf("Observe: %v", err)
		}
	}
	if tr.Steps() != 0 {
		t.Fatalf("expected no steps, got %d", tr.Steps())
	}
}

func TestObserveTrainEveryConcurrentProducers(t *testing.T) {
	tr, buf, _ := fixture(t, Config{BatchSize: 4, MinBufferSize: 4, TrainEvery: 2})
	exp := replay.Experience[game.State, game.Action]{State: engaged, Action: game.ActionAttack, Reward: 2, NextState: calm}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if err := tr.Observe(exp); err != nil {
					t.Errorf("Observe: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if tr.Steps() != 100 {
		t.Fatalf("200 observes at TrainEvery=2 should step 100 times, got %d", tr.Steps())
	}
	if tr.Trained() == 0 {
		t.Fatal("expected trained steps once the buffer filled")
	}
	if total := buf.TotalPriority(); !(total > 0) || math.IsInf(total, 0) {
		t.Fatalf("expected a finite positive total, got %v", total)
	}
}

func TestScheduleAt(t *testing.T) {
	s := ExplorationSchedule{Start: 1, End: 0.1, Steps: 10}
	cases := map[int]float64{-1: 1, 0: 1, 5: 0.55, 10: 0.1, 99: 0.1}
	for step, want := range cases {
		if got := s.At(step); math.Abs(got-want) > 1e-12 {
			t.Fatalf("At(%d): expected %v, got %v", step, want, got)
		}
	}
	if got := (ExplorationSchedule{Start: 1, End: 0.3}).At(0); got != 0.3 {
		t.Fatalf("zero-length schedule should hold End, got %v", got)
	}
}

func TestRunStopsAtMaxSteps(t *testing.T) {
	tr, _, _ := fixture(t, Config{BatchSize: 2, MaxSteps: 5})
	tr.Observe(replay.Experience[game.State, game.Action]{State: calm, Action: game.ActionAttack, Reward: 1, Terminal: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tr.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Steps() != 5 {
		t.Fatalf("expected 5 steps, got %d", tr.Steps())
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	tr, _, _ := fixture(t, Config{BatchSize: 2, StepsPerSecond: 1000})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

package arena

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/danielpatrickdp/arenalearn/internal/replay"
	"github.com/danielpatrickdp/arenalearn/internal/reward"
	bt "github.com/joeycumines/go-behaviortree"
)

// #region interfaces
// Policy picks an action for a state. *qlearn.Agent satisfies it.
type Policy interface {
	DecideAction(state game.State) (game.Action, error)
}

// Sink accepts finished transitions. *train.Trainer satisfies it.
type Sink interface {
	Observe(exp replay.Experience[game.State, game.Action]) error
}

// #endregion interfaces

// #region bot
// bot owns one world and ticks a behavior tree over it:
// observe -> decide -> act -> record.
type bot struct {
	id     int
	world  *world
	rng    *rand.Rand
	policy Policy
	sink   Sink
	shaper reward.Shaper
	th     game.Thresholds
	tree   bt.Node

	// blackboard for the current tick
	state  game.State
	action game.Action
	events reward.Events
	died   bool

	stats Stats
}

func newBot(id int, seed uint64, policy Policy, sink Sink, shaper reward.Shaper, th game.Thresholds) *bot {
	b := &bot{
		id:     id,
		world:  newWorld(),
		rng:    rand.New(rand.NewPCG(seed, uint64(id))),
		policy: policy,
		sink:   sink,
		shaper: shaper,
		th:     th,
		stats:  newStats(),
	}
	b.tree = bt.New(
		bt.Sequence,
		bt.New(b.observe),
		bt.New(b.decide),
		bt.New(b.act),
		bt.New(b.record),
	)
	return b
}

// #endregion bot

// #region leaves
func (b *bot) observe([]bt.Node) (bt.Status, error) {
	b.state = game.Discretize(b.world.observe(), b.th)
	return bt.Success, nil
}

func (b *bot) decide([]bt.Node) (bt.Status, error) {
	a, err := b.policy.DecideAction(b.state)
	if err != nil {
		return bt.Failure, fmt.Errorf("decide: %w", err)
	}
	b.action = a
	return bt.Success, nil
}

func (b *bot) act([]bt.Node) (bt.Status, error) {
	b.events, b.died = b.world.step(b.action, b.rng)
	return bt.Success, nil
}

func (b *bot) record([]bt.Node) (bt.Status, error) {
	r := b.shaper.Total(b.events)
	exp := replay.Experience[game.State, game.Action]{
		State:     b.state,
		Action:    b.action,
		Reward:    r,
		NextState: game.Discretize(b.world.observe(), b.th),
		Terminal:  b.died,
	}
	if err := b.sink.Observe(exp); err != nil {
		return bt.Failure, fmt.Errorf("record: %w", err)
	}
	b.stats.add(b.action, r, b.events)
	return bt.Success, nil
}

// #endregion leaves

// #region run
func (b *bot) run(ctx context.Context, ticks int) error {
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		status, err := b.tree.Tick()
		if err != nil {
			return fmt.Errorf("bot %d tick %d: %w", b.id, i, err)
		}
		if status != bt.Success {
			return fmt.Errorf("bot %d tick %d: tree returned %v", b.id, i, status)
		}
	}
	return nil
}

// #endregion run

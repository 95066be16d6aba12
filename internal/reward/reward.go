package reward

import (
	"fmt"
	"math"
)

// #region shaper
// Shaper maps categorized game outcomes to scalar rewards. It holds only an
// immutable table and is safe to share across goroutines.
type Shaper struct {
	table Table
}

// New validates table and returns a shaper over it.
func New(table Table) (Shaper, error) {
	if err := table.Validate(); err != nil {
		return Shaper{}, err
	}
	return Shaper{table: table}, nil
}

// Default returns a shaper over DefaultTable.
func Default() Shaper {
	return Shaper{table: DefaultTable()}
}

// Table returns the magnitudes in use.
func (s Shaper) Table() Table { return s.table }

// #endregion shaper

// #region combat
// Combat weighs damage dealt against damage received and adds the kill bonus
// and death penalty. Negative or non-finite damage counts as zero.
func (s Shaper) Combat(damageDealt, damageReceived float64, madeKill, died bool) float64 {
	r := s.table.DamageDealtWeight*amount(damageDealt) - s.table.DamageReceivedWeight*amount(damageReceived)
	if madeKill {
		r += s.table.KillBonus
	}
	if died {
		r -= s.table.DeathPenalty
	}
	return r
}

// #endregion combat

// #region movement
// Movement penalizes a stuck step, rewards discovering new ground, and pays a
// per-second rate for sustained movement up to MaxMovementSeconds. A stuck step
// earns no movement pay.
func (s Shaper) Movement(isStuck, discoveredNewArea bool, secondsOfMovement float64) float64 {
	var r float64
	if isStuck {
		r -= s.table.StuckPenalty
	} else {
		r += s.table.MovementPerSecond * math.Min(amount(secondsOfMovement), s.table.MaxMovementSeconds)
	}
	if discoveredNewArea {
		r += s.table.ExplorationBonus
	}
	return r
}

// #endregion movement

// #region social
// Social applies fixed bonuses and penalties for cooperative outcomes.
func (s Shaper) Social(helpedPlayer, hinderedPlayer, successfulTeamAction bool) float64 {
	var r float64
	if helpedPlayer {
		r += s.table.HelpBonus
	}
	if hinderedPlayer {
		r -= s.table.HinderPenalty
	}
	if successfulTeamAction {
		r += s.table.TeamActionBonus
	}
	return r
}

// #endregion social

// #region total
// Total sums the three categories for one step.
func (s Shaper) Total(ev Events) float64 {
	return s.Combat(ev.Combat.DamageDealt, ev.Combat.DamageReceived, ev.Combat.MadeKill, ev.Combat.Died) +
		s.Movement(ev.Movement.Stuck, ev.Movement.DiscoveredNewArea, ev.Movement.SecondsMoving) +
		s.Social(ev.Social.HelpedPlayer, ev.Social.HinderedPlayer, ev.Social.TeamAction)
}

// #endregion total

// #region validate
// Validate reports the first negative or non-finite magnitude.
func (t Table) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"damage_dealt_weight", t.DamageDealtWeight},
		{"damage_received_weight", t.DamageReceivedWeight},
		{"kill_bonus", t.KillBonus},
		{"death_penalty", t.DeathPenalty},
		{"stuck_penalty", t.StuckPenalty},
		{"exploration_bonus", t.ExplorationBonus},
		{"movement_per_second", t.MovementPerSecond},
		{"max_movement_seconds", t.MaxMovementSeconds},
		{"help_bonus", t.HelpBonus},
		{"hinder_penalty", t.HinderPenalty},
		{"team_action_bonus", t.TeamActionBonus},
	}
	for _, f := range fields {
		if !(f.value >= 0) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s = %g", ErrInvalidTable, f.name, f.value)
		}
	}
	return nil
}

func amount(v float64) float64 {
	if !(v > 0) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// #endregion validate

package reward

import "errors"

// ErrInvalidTable is returned when a reward magnitude is negative or non-finite.
var ErrInvalidTable = errors.New("invalid reward table")

// #region table
// Table holds the reward and penalty magnitudes. All values are non-negative;
// the sign of each term is fixed by the scoring function.
type Table struct {
	DamageDealtWeight    float64 `json:"damage_dealt_weight" yaml:"damage_dealt_weight"`
	DamageReceivedWeight float64 `json:"damage_received_weight" yaml:"damage_received_weight"`
	KillBonus            float64 `json:"kill_bonus" yaml:"kill_bonus"`
	DeathPenalty         float64 `json:"death_penalty" yaml:"death_penalty"`

	StuckPenalty       float64 `json:"stuck_penalty" yaml:"stuck_penalty"`
	ExplorationBonus   float64 `json:"exploration_bonus" yaml:"exploration_bonus"`
	MovementPerSecond  float64 `json:"movement_per_second" yaml:"movement_per_second"`
	MaxMovementSeconds float64 `json:"max_movement_seconds" yaml:"max_movement_seconds"`

	HelpBonus       float64 `json:"help_bonus" yaml:"help_bonus"`
	HinderPenalty   float64 `json:"hinder_penalty" yaml:"hinder_penalty"`
	TeamActionBonus float64 `json:"team_action_bonus" yaml:"team_action_bonus"`
}

// DefaultTable returns the standard arena reward magnitudes.
func DefaultTable() Table {
	return Table{
		DamageDealtWeight:    0.1,
		DamageReceivedWeight: 0.15,
		KillBonus:            5.0,
		DeathPenalty:         10.0,

		StuckPenalty:       2.0,
		ExplorationBonus:   1.5,
		MovementPerSecond:  0.05,
		MaxMovementSeconds: 10.0,

		HelpBonus:       2.0,
		HinderPenalty:   3.0,
		TeamActionBonus: 4.0,
	}
}

// #endregion table

// #region events
// Combat carries the combat facts of one step.
type Combat struct {
	DamageDealt    float64 `json:"damage_dealt"`
	DamageReceived float64 `json:"damage_received"`
	MadeKill       bool    `json:"made_kill"`
	Died           bool    `json:"died"`
}

// Movement carries the movement facts of one step.
type Movement struct {
	Stuck             bool    `json:"stuck"`
	DiscoveredNewArea bool    `json:"discovered_new_area"`
	SecondsMoving     float64 `json:"seconds_moving"`
}

// Social carries the cooperative/adversarial facts of one step.
type Social struct {
	HelpedPlayer   bool `json:"helped_player"`
	HinderedPlayer bool `json:"hindered_player"`
	TeamAction     bool `json:"team_action"`
}

// Events groups every category that may apply to a single step.
type Events struct {
	Combat   Combat   `json:"combat"`
	Movement Movement `json:"movement"`
	Social   Social   `json:"social"`
}

// #endregion events

package game

import (
	"fmt"
	"strings"
)

// #region action
// Action is the closed set of high-level decisions a bot can take.
type Action uint8

const (
	ActionAttack Action = iota
	ActionRetreat
	ActionExplore
	ActionAssist
)

var actionNames = [...]string{"attack", "retreat", "explore", "assist"}

// Actions returns the enumeration in its canonical order.
func Actions() []Action {
	return []Action{ActionAttack, ActionRetreat, ActionExplore, ActionAssist}
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

// MarshalText encodes the action by name.
func (a Action) MarshalText() ([]byte, error) {
	if int(a) >= len(actionNames) {
		return nil, fmt.Errorf("unknown action %d", uint8(a))
	}
	return []byte(actionNames[a]), nil
}

// UnmarshalText decodes an action name.
func (a *Action) UnmarshalText(b []byte) error {
	act, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = act
	return nil
}

// ParseAction resolves a case-insensitive action name.
func ParseAction(name string) (Action, error) {
	for i, n := range actionNames {
		if strings.EqualFold(n, name) {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// #endregion action

// #region bands
// Band is a coarse bucket for a continuous reading. BandUnknown marks an unset
// field and makes the whole state invalid.
type Band uint8

const (
	BandUnknown Band = iota
	BandLow
	BandMid
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandMid:
		return "mid"
	case BandHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseBand resolves a band name; anything unrecognized is BandUnknown.
func ParseBand(name string) Band {
	switch strings.ToLower(name) {
	case "low":
		return BandLow
	case "mid":
		return BandMid
	case "high":
		return BandHigh
	default:
		return BandUnknown
	}
}

// #endregion bands

// #region state
// State is the discretized situation of one bot. It is a plain value: equal
// descriptors are equal keys, and nothing in it points at live game objects.
type State struct {
	Health     Band `json:"health"`
	EnemyRange Band `json:"enemy_range"` // low = close
	AllyNearby bool `json:"ally_nearby"`
	Stuck      bool `json:"stuck"`
}

// Valid reports whether every band is set.
func (s State) Valid() bool {
	return s.Health != BandUnknown && s.EnemyRange != BandUnknown
}

func (s State) String() string {
	return fmt.Sprintf("hp=%s enemy=%s ally=%t stuck=%t", s.Health, s.EnemyRange, s.AllyNearby, s.Stuck)
}

// #endregion state

// #region observation
// Observation is the raw per-tick reading the host supplies for one bot.
type Observation struct {
	Health        float64 // 0..MaxHealth
	MaxHealth     float64
	EnemyDistance float64 // world units, negative when no enemy is visible
	AllyDistance  float64 // world units, negative when no ally is visible
	TicksStuck    int
}

// Thresholds tune Discretize.
type Thresholds struct {
	LowHealth  float64 // fraction of max health
	HighHealth float64
	NearEnemy  float64 // distance
	FarEnemy   float64
	AllyRadius float64
	StuckAfter int // ticks without progress
}

// DefaultThresholds returns the standard arena bucketing.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowHealth:  0.3,
		HighHealth: 0.7,
		NearEnemy:  3,
		FarEnemy:   8,
		AllyRadius: 4,
		StuckAfter: 3,
	}
}

// Discretize buckets an observation into a State.
func Discretize(obs Observation, th Thresholds) State {
	s := State{Health: BandMid, EnemyRange: BandHigh}

	if obs.MaxHealth > 0 {
		frac := obs.Health / obs.MaxHealth
		switch {
		case frac < th.LowHealth:
			s.Health = BandLow
		case frac >= th.HighHealth:
			s.Health = BandHigh
		}
	}

	if obs.EnemyDistance >= 0 {
		switch {
		case obs.EnemyDistance <= th.NearEnemy:
			s.EnemyRange = BandLow
		case obs.EnemyDistance <= th.FarEnemy:
			s.EnemyRange = BandMid
		}
	}

	s.AllyNearby = obs.AllyDistance >= 0 && obs.AllyDistance <= th.AllyRadius
	s.Stuck = obs.TicksStuck >= th.StuckAfter
	return s
}

// #endregion observation

package arena

import (
	"math/rand/v2"

	"github.com/danielpatrickdp/arenalearn/internal/game"
	"github.com/danielpatrickdp/arenalearn/internal/reward"
)

// #region constants
const (
	maxHealth      = 100.0
	enemyMaxHealth = 60.0
	meleeRange     = 3.0
	spawnDistance  = 10.0
	allyRange      = 4.0
	maxAllyDrift   = 12.0
	stuckChance    = 0.2
)

// #endregion constants

// #region world
// world is one bot's private skirmish: a single enemy that closes in, an ally
// that drifts, and a strip of numbered areas to explore.
type world struct {
	health      float64
	enemyHealth float64
	enemyDist   float64
	allyDist    float64
	ticksStuck  int
	area        int
	visited     map[int]bool
}

func newWorld() *world {
	w := &world{}
	w.reset()
	return w
}

func (w *world) reset() {
	*w = world{
		health:      maxHealth,
		enemyHealth: enemyMaxHealth,
		enemyDist:   spawnDistance,
		allyDist:    6,
		visited:     map[int]bool{0: true},
	}
}

func (w *world) observe() game.Observation {
	return game.Observation{
		Health:        w.health,
		MaxHealth:     maxHealth,
		EnemyDistance: w.enemyDist,
		AllyDistance:  w.allyDist,
		TicksStuck:    w.ticksStuck,
	}
}

// step applies the bot's action, then the enemy's turn. died reports a
// terminal step; the world has already been reset when it returns true.
func (w *world) step(a game.Action, rng *rand.Rand) (ev reward.Events, died bool) {
	engaged := w.enemyDist <= meleeRange
	allyClose := w.allyDist <= allyRange
	stuck := false

	switch a {
	case game.ActionAttack:
		if engaged {
			dealt := 10 + 10*rng.Float64()
			ev.Combat.DamageDealt = dealt
			w.enemyHealth -= dealt
		} else {
			if w.allyDist <= 1.5 {
				ev.Social.HinderedPlayer = true // charged through the ally
			}
			w.enemyDist = max(w.enemyDist-2, 1)
			ev.Movement.SecondsMoving = 1
		}
	case game.ActionRetreat:
		w.enemyDist += 3
		ev.Movement.SecondsMoving = 1
	case game.ActionExplore:
		if rng.Float64() < stuckChance {
			stuck = true
			break
		}
		w.area++
		if !w.visited[w.area] {
			w.visited[w.area] = true
			ev.Movement.DiscoveredNewArea = true
		}
		w.enemyDist = max(1, w.enemyDist+6*rng.Float64()-3)
		ev.Movement.SecondsMoving = 2
	case game.ActionAssist:
		if allyClose {
			ev.Social.HelpedPlayer = true
			if engaged {
				w.enemyHealth -= 15
				ev.Social.TeamAction = true
			}
		} else {
			w.allyDist = max(1, w.allyDist-2)
			ev.Movement.SecondsMoving = 1
		}
	}

	if stuck {
		w.ticksStuck++
		ev.Movement.Stuck = true
	} else if ev.Movement.SecondsMoving > 0 {
		w.ticksStuck = 0
	}

	// Enemy turn.
	switch {
	case w.enemyHealth <= 0:
		ev.Combat.MadeKill = true
		w.enemyHealth = enemyMaxHealth
		w.enemyDist = spawnDistance
	case w.enemyDist <= meleeRange:
		received := 5 + 10*rng.Float64()
		if allyClose {
			received *= 0.5
		}
		ev.Combat.DamageReceived = received
		w.health -= received
	default:
		w.enemyDist = max(1, w.enemyDist-1)
	}

	w.allyDist = min(maxAllyDrift, max(1, w.allyDist+2*rng.Float64()-1))

	if w.health <= 0 {
		ev.Combat.Died = true
		w.reset()
		return ev, true
	}
	return ev, false
}

// #endregion world

package reward

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func TestCombat(t *testing.T) {
	s := Default()
	cases := []struct {
		name            string
		dealt, received float64
		kill, died      bool
		want            float64
	}{
		{"idle", 0, 0, false, false, 0},
		{"trade", 30, 20, false, false, 0.1*30 - 0.15*20},
		{"kill", 50, 0, true, false, 5 + 5},
		{"death", 0, 40, false, true, -6 - 10},
		{"kill and death", 10, 10, true, true, 1 - 1.5 + 5 - 10},
		{"negative damage ignored", -20, math.NaN(), false, false, 0},
	}
	for _, c := range cases {
		if got := s.Combat(c.dealt, c.received, c.kill, c.died); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestMovement(t *testing.T) {
	s := Default()
	cases := []struct {
		name         string
		stuck, found bool
		seconds      float64
		want         float64
	}{
		{"still", false, false, 0, 0},
		{"moving", false, false, 4, 0.2},
		{"moving capped", false, false, 60, 0.5},
		{"stuck", true, false, 5, -2},
		{"explore", false, true, 2, 1.5 + 0.1},
		{"stuck but found area", true, true, 3, -2 + 1.5},
	}
	for _, c := range cases {
		if got := s.Movement(c.stuck, c.found, c.seconds); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestSocial(t *testing.T) {
	s := Default()
	if got := s.Social(false, false, false); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := s.Social(true, false, true); got != 6 {
		t.Fatalf("expected help+team = 6, got %v", got)
	}
	if got := s.Social(false, true, false); got != -3 {
		t.Fatalf("expected hinder = -3, got %v", got)
	}
}

func TestTotalSumsCategories(t *testing.T) {
	s := Default()
	ev := Events{
		Combat:   Combat{DamageDealt: 20, MadeKill: true},
		Movement: Movement{DiscoveredNewArea: true, SecondsMoving: 2},
		Social:   Social{TeamAction: true},
	}
	want := s.Combat(20, 0, true, false) + s.Movement(false, true, 2) + s.Social(false, false, true)
	if got := s.Total(ev); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNewRejectsInvalidTable(t *testing.T) {
	tbl := DefaultTable()
	tbl.KillBonus = -1
	if _, err := New(tbl); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("expected ErrInvalidTable, got %v", err)
	}
	tbl = DefaultTable()
	tbl.StuckPenalty = math.Inf(1)
	if _, err := New(tbl); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("expected ErrInvalidTable for inf, got %v", err)
	}
}

func TestCustomTable(t *testing.T) {
	tbl := Table{KillBonus: 1, DeathPenalty: 1}
	s, err := New(tbl)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s.Combat(100, 100, true, false); got != 1 {
		t.Fatalf("zero weights should ignore damage: got %v", got)
	}
	if got := s.Movement(true, true, 10); got != 0 {
		t.Fatalf("all-zero movement table should score 0, got %v", got)
	}
}

func TestShaperConcurrentUse(t *testing.T) {
	s := Default()
	want := s.Combat(10, 5, true, false)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if got := s.Combat(10, 5, true, false); got != want {
					t.Errorf("concurrent call returned %v, expected %v", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}

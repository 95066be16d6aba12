package game

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestZeroStateInvalid(t *testing.T) {
	if (State{}).Valid() {
		t.Fatal("zero state must be invalid")
	}
	if (State{Health: BandLow}).Valid() {
		t.Fatal("state without enemy range must be invalid")
	}
	if !(State{Health: BandLow, EnemyRange: BandHigh}).Valid() {
		t.Fatal("fully banded state must be valid")
	}
}

func TestStateUsableAsKey(t *testing.T) {
	m := map[State]int{}
	a := State{Health: BandMid, EnemyRange: BandLow, AllyNearby: true}
	b := State{Health: BandMid, EnemyRange: BandLow, AllyNearby: true}
	m[a] = 1
	m[b]++
	if len(m) != 1 || m[a] != 2 {
		t.Fatalf("equal states should share a key, got %v", m)
	}
}

func TestActionTextRoundTrip(t *testing.T) {
	for _, a := range Actions() {
		b, err := json.Marshal(a)
		if err != nil {
			t.Fatalf("marshal %v: %v", a, err)
		}
		var got Action
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if got != a {
			t.Fatalf("round trip: expected %v, got %v", a, got)
		}
	}

	if _, err := ParseAction("dance"); err == nil {
		t.Fatal("expected error for unknown action")
	}
	got, err := ParseAction("RETREAT")
	if err != nil {
		t.Fatalf("ParseAction: %v", err)
	}
	if got != ActionRetreat {
		t.Fatalf("expected retreat, got %v", got)
	}
}

func TestActionsCanonicalOrder(t *testing.T) {
	want := []Action{ActionAttack, ActionRetreat, ActionExplore, ActionAssist}
	if got := Actions(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if s := ActionAssist.String(); s != "assist" {
		t.Fatalf("expected assist, got %q", s)
	}
	if s := Action(9).String(); s != "action(9)" {
		t.Fatalf("expected action(9), got %q", s)
	}
}

func TestDiscretize(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		name string
		obs  Observation
		want State
	}{
		{
			name: "healthy with nothing around",
			obs:  Observation{Health: 100, MaxHealth: 100, EnemyDistance: -1, AllyDistance: -1},
			want: State{Health: BandHigh, EnemyRange: BandHigh},
		},
		{
			name: "hurt and engaged",
			obs:  Observation{Health: 20, MaxHealth: 100, EnemyDistance: 2, AllyDistance: 3},
			want: State{Health: BandLow, EnemyRange: BandLow, AllyNearby: true},
		},
		{
			name: "mid range and stuck",
			obs:  Observation{Health: 50, MaxHealth: 100, EnemyDistance: 5, AllyDistance: 10, TicksStuck: 4},
			want: State{Health: BandMid, EnemyRange: BandMid, Stuck: true},
		},
		{
			name: "unknown max health",
			obs:  Observation{EnemyDistance: 20, AllyDistance: -1},
			want: State{Health: BandMid, EnemyRange: BandHigh},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Discretize(c.obs, th)
			if got != c.want {
				t.Fatalf("expected %v, got %v", c.want, got)
			}
			if !got.Valid() {
				t.Fatalf("discretized state %v is invalid", got)
			}
		})
	}
}

func TestParseBand(t *testing.T) {
	for _, b := range []Band{BandLow, BandMid, BandHigh} {
		if got := ParseBand(b.String()); got != b {
			t.Fatalf("ParseBand(%q): expected %v, got %v", b.String(), b, got)
		}
	}
	if got := ParseBand("HUGE"); got != BandUnknown {
		t.Fatalf("expected unknown band, got %v", got)
	}
	if got := ParseBand("High"); got != BandHigh {
		t.Fatalf("expected high band, got %v", got)
	}
}

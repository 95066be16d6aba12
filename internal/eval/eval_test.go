package eval

import (
	"math"
	"strings"
	"testing"
)

func metric(r EvalResult, name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

func TestEvalPassesOnSmallTable(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run([]float64{0, 1.5, -3})

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	if len(result.Metrics) != 4 {
		t.Fatalf("expected 4 metrics, got %d", len(result.Metrics))
	}
	m, _ := metric(result, "mean_abs_value")
	if m.Value != 1.5 {
		t.Fatalf("expected mean |Q| 1.5, got %v", m.Value)
	}
}

func TestEvalFailsOnNonFinite(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run([]float64{1, math.NaN(), math.Inf(-1)})

	if result.Passed {
		t.Fatal("expected fail on non-finite values")
	}
	m, ok := metric(result, "non_finite_values")
	if !ok || m.Value != 2 || m.Pass {
		t.Fatalf("unexpected metric %+v", m)
	}
	if !strings.Contains(result.Reason, "2 non-finite") {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestEvalFailsOnMagnitudeSpike(t *testing.T) {
	config := DefaultEvalConfig()
	config.MaxAbsValue = 5.0
	h := NewEvalHarness(config)

	result := h.Run([]float64{1, -6})

	if result.Passed {
		t.Fatal("expected fail on |Q| spike")
	}
	m, _ := metric(result, "max_abs_value")
	if m.Value != 6 {
		t.Fatalf("expected max |Q| 6, got %v", m.Value)
	}
}

func TestEvalFailsOnEmptyTable(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())

	result := h.Run(nil)

	if result.Passed {
		t.Fatal("expected fail on empty table with MinEntries=1")
	}
	if !strings.Contains(result.Reason, "below minimum") {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestEvalMultipleFailuresCounted(t *testing.T) {
	config := EvalConfig{MaxAbsValue: 1, MinEntries: 5}
	h := NewEvalHarness(config)

	result := h.Run([]float64{2, math.NaN()})

	if result.Passed {
		t.Fatal("expected fail")
	}
	if !strings.HasPrefix(result.Reason, "eval failed: 3 checks:") {
		t.Fatalf("expected 3 failed checks, got %q", result.Reason)
	}
}

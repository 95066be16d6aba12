package eval

import (
	"fmt"
	"math"
)

// #region eval-harness
// EvalHarness validates learned values before they are checkpointed.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks a table's values. Returns pass/fail with metrics.
func (h *EvalHarness) Run(values []float64) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Every value finite
	var nonFinite int
	var maxAbs, sumAbs float64
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			nonFinite++
			continue
		}
		a := math.Abs(v)
		sumAbs += a
		maxAbs = math.Max(maxAbs, a)
	}
	finitePass := nonFinite == 0
	metrics = append(metrics, EvalMetric{
		Name:  "non_finite_values",
		Value: float64(nonFinite),
		Pass:  finitePass,
	})
	if !finitePass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("%d non-finite values", nonFinite))
	}

	// 2. Magnitude bound
	boundPass := maxAbs <= h.config.MaxAbsValue
	metrics = append(metrics, EvalMetric{
		Name:  "max_abs_value",
		Value: maxAbs,
		Pass:  boundPass,
	})
	if !boundPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("max |Q| %.4f exceeds %.4f", maxAbs, h.config.MaxAbsValue))
	}

	// 3. Table size
	sizePass := len(values) >= h.config.MinEntries
	metrics = append(metrics, EvalMetric{
		Name:  "entries",
		Value: float64(len(values)),
		Pass:  sizePass,
	})
	if !sizePass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("%d entries below minimum %d", len(values), h.config.MinEntries))
	}

	// 4. Mean magnitude: informational only
	var meanAbs float64
	if finite := len(values) - nonFinite; finite > 0 {
		meanAbs = sumAbs / float64(finite)
	}
	metrics = append(metrics, EvalMetric{
		Name:  "mean_abs_value",
		Value: meanAbs,
		Pass:  true,
	})

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

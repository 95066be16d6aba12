package eval

// #region eval-config
// EvalConfig holds thresholds for validating a value table before checkpoint.
type EvalConfig struct {
	MaxAbsValue float64 `yaml:"max_abs_value" validate:"gt=0"` // reject if any |Q| exceeds this
	MinEntries  int     `yaml:"min_entries" validate:"gte=0"`  // reject tables smaller than this
}

// DefaultEvalConfig returns bounds that comfortably hold the default reward
// table discounted at 0.95 (|r| <= ~20, so |Q| <= ~400).
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxAbsValue: 1000.0,
		MinEntries:  1,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of table validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result

package logging

import "time"

// #region step-entry
// StepEntry is a single row in the training_log table.
type StepEntry struct {
	RunID       string
	Step        int
	Decision    string // "train" | "skip"
	Reason      string
	MetricsJSON string
	CreatedAt   time.Time
}

// #endregion step-entry

// #region options
// Options selects the handler built by New.
type Options struct {
	Level  string // debug | info | warn | error
	Format string // text | json
}

// #endregion options

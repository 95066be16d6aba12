package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/arenalearn/internal/train"
)

// #region log-step
// LogStep writes a trainer step to the training_log table.
func LogStep(db *sql.DB, entry StepEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO training_log (run_id, step, decision, reason, metrics_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Step,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.MetricsJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log step: %w", err)
	}
	return nil
}

// #endregion log-step

// #region step-logger
// StepLogger adapts LogStep to the trainer's sink hook. Skipped steps are
// dropped unless KeepSkips is set, so idle warm-up does not flood the table.
type StepLogger struct {
	DB        *sql.DB
	RunID     string
	KeepSkips bool
}

// RecordStep implements train.StepSink.
func (l StepLogger) RecordStep(res train.StepResult) error {
	if res.Decision.Action == "skip" && !l.KeepSkips {
		return nil
	}
	metricsJSON, err := json.Marshal(stepMetrics{
		BatchSize:   res.Metrics.BatchSize,
		Beta:        res.Metrics.Beta,
		MeanAbsTD:   res.Metrics.MeanAbsTD,
		MaxAbsTD:    res.Metrics.MaxAbsTD,
		MaxPriority: res.Metrics.MaxPriority,
		Epsilon:     res.Metrics.Epsilon,
		DurationUs:  res.Metrics.Duration.Microseconds(),
	})
	if err != nil {
		return fmt.Errorf("marshal step metrics: %w", err)
	}
	return LogStep(l.DB, StepEntry{
		RunID:       l.RunID,
		Step:        res.Step,
		Decision:    res.Decision.Action,
		Reason:      res.Decision.Reason,
		MetricsJSON: string(metricsJSON),
	})
}

type stepMetrics struct {
	BatchSize   int     `json:"batch_size"`
	Beta        float64 `json:"beta"`
	MeanAbsTD   float64 `json:"mean_abs_td"`
	MaxAbsTD    float64 `json:"max_abs_td"`
	MaxPriority float64 `json:"max_priority"`
	Epsilon     float64 `json:"epsilon"`
	DurationUs  int64   `json:"duration_us"`
}

// #endregion step-logger

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers

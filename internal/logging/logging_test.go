package logging

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/arenalearn/internal/train"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE training_log (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id       TEXT NOT NULL,
		step         INTEGER NOT NULL,
		decision     TEXT NOT NULL,
		reason       TEXT,
		metrics_json TEXT,
		created_at   TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-step-tests
func TestLogStep_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := StepEntry{
		RunID:       "run-1",
		Step:        7,
		Decision:    "train",
		Reason:      "batch of 32",
		MetricsJSON: `{"beta":0.41}`,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogStep(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var runID, decision string
	var step int
	db.QueryRow("SELECT run_id, step, decision FROM training_log").Scan(&runID, &step, &decision)
	if runID != "run-1" || step != 7 || decision != "train" {
		t.Errorf("unexpected row: %q %d %q", runID, step, decision)
	}
}

func TestLogStep_ZeroCreatedAtAndNulls(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	if err := LogStep(db, StepEntry{RunID: "r", Step: 1, Decision: "skip"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	var reason, metrics sql.NullString
	db.QueryRow("SELECT created_at, reason, metrics_json FROM training_log").Scan(&createdAtStr, &reason, &metrics)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
	if reason.Valid || metrics.Valid {
		t.Error("expected empty optional fields to be stored as NULL")
	}
}

func TestLogStep_ClosedDB(t *testing.T) {
	db := setupDB(t)
	db.Close()
	if err := LogStep(db, StepEntry{RunID: "r", Decision: "train"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-step-tests

// #region step-logger-tests
func TestStepLogger_RecordStep(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	l := StepLogger{DB: db, RunID: "run-9"}

	if err := l.RecordStep(train.StepResult{Step: 1, Decision: train.Decision{Action: "skip"}}); err != nil {
		t.Fatalf("skip: %v", err)
	}
	res := train.StepResult{
		Step:     2,
		Decision: train.Decision{Action: "train", Reason: "batch of 4"},
		Metrics:  train.Metrics{BatchSize: 4, Beta: 0.402, MeanAbsTD: 1.5, Duration: 3 * time.Millisecond},
	}
	if err := l.RecordStep(res); err != nil {
		t.Fatalf("train: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM training_log").Scan(&count)
	if count != 1 {
		t.Fatalf("expected skips to be dropped, got %d rows", count)
	}

	var raw string
	db.QueryRow("SELECT metrics_json FROM training_log WHERE step = 2").Scan(&raw)
	var m stepMetrics
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("unmarshal metrics: %v", err)
	}
	if m.BatchSize != 4 || m.Beta != 0.402 || m.DurationUs != 3000 {
		t.Errorf("unexpected metrics %+v", m)
	}

	l.KeepSkips = true
	l.RecordStep(train.StepResult{Step: 3, Decision: train.Decision{Action: "skip"}})
	db.QueryRow("SELECT COUNT(*) FROM training_log").Scan(&count)
	if count != 2 {
		t.Fatalf("expected skip kept, got %d rows", count)
	}
}

// #endregion step-logger-tests

// #region logger-tests
func TestNew_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Level: "warn", Format: "json"})
	log.Info("hidden")
	log.Warn("shown", "k", 1)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered at warn level: %s", out)
	}
	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", out, err)
	}
	if rec["msg"] != "shown" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNew_DefaultsToTextInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{Level: "loud"})
	log.Debug("nope")
	log.Info("yes")
	out := buf.String()
	if strings.Contains(out, "nope") || !strings.Contains(out, "msg=yes") {
		t.Errorf("unexpected output %q", out)
	}
}

// #endregion logger-tests

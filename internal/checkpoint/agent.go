package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/arenalearn/internal/eval"
	"github.com/danielpatrickdp/arenalearn/internal/qlearn"
)

// #region save-agent
// SaveAgent snapshots agent, validates the values with harness, and commits a
// child of the active version. A failed eval commits nothing and returns
// ErrRejected alongside the result. A nil harness skips validation.
func SaveAgent[S qlearn.State, A comparable](s *Store, agent *qlearn.Agent[S, A], harness *eval.EvalHarness, note string) (Version, eval.EvalResult, error) {
	entries := agent.Snapshot()

	result := eval.EvalResult{Passed: true, Reason: "eval skipped"}
	if harness != nil {
		values := make([]float64, len(entries))
		for i, e := range entries {
			values[i] = e.Value
		}
		result = harness.Run(values)
		if !result.Passed {
			return Version{}, result, fmt.Errorf("%w: %s", ErrRejected, result.Reason)
		}
	}

	rows, err := EncodeEntries(entries)
	if err != nil {
		return Version{}, result, err
	}
	metricsJSON, err := json.Marshal(result)
	if err != nil {
		return Version{}, result, fmt.Errorf("marshal eval result: %w", err)
	}

	var parentID string
	cur, err := s.Current()
	switch {
	case err == nil:
		parentID = cur.VersionID
	case !errors.Is(err, ErrNoActive):
		return Version{}, result, err
	}

	v, err := s.Commit(parentID, rows, note, string(metricsJSON))
	return v, result, err
}

// #endregion save-agent

// #region load-agent
// LoadAgent replaces agent's table with the given version, or the active one
// when versionID is empty.
func LoadAgent[S qlearn.State, A comparable](s *Store, agent *qlearn.Agent[S, A], versionID string) (Version, error) {
	var v Version
	var err error
	if versionID == "" {
		v, err = s.Current()
	} else {
		v, err = s.GetVersion(versionID)
	}
	if err != nil {
		return Version{}, err
	}

	rows, err := s.Load(v.VersionID)
	if err != nil {
		return Version{}, err
	}
	entries, err := DecodeRows[S, A](rows)
	if err != nil {
		return Version{}, err
	}
	if err := agent.Restore(entries); err != nil {
		return Version{}, fmt.Errorf("restore %s: %w", v.VersionID, err)
	}
	return v, nil
}

// #endregion load-agent

// #region codec
// EncodeEntries turns table entries into storable rows.
func EncodeEntries[S qlearn.State, A comparable](entries []qlearn.Entry[S, A]) ([]Row, error) {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		st, err := json.Marshal(e.State)
		if err != nil {
			return nil, fmt.Errorf("encode state: %w", err)
		}
		act, err := json.Marshal(e.Action)
		if err != nil {
			return nil, fmt.Errorf("encode action: %w", err)
		}
		rows = append(rows, Row{State: st, Action: act, Value: e.Value})
	}
	return rows, nil
}

// DecodeRows is the inverse of EncodeEntries.
func DecodeRows[S qlearn.State, A comparable](rows []Row) ([]qlearn.Entry[S, A], error) {
	entries := make([]qlearn.Entry[S, A], 0, len(rows))
	for _, r := range rows {
		var e qlearn.Entry[S, A]
		if err := json.Unmarshal(r.State, &e.State); err != nil {
			return nil, fmt.Errorf("decode state %s: %w", r.State, err)
		}
		if err := json.Unmarshal(r.Action, &e.Action); err != nil {
			return nil, fmt.Errorf("decode action %s: %w", r.Action, err)
		}
		e.Value = r.Value
		entries = append(entries, e)
	}
	return entries, nil
}

// #endregion codec

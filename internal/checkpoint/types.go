package checkpoint

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("checkpoint version not found")
	ErrNoActive = errors.New("no active checkpoint")
	ErrRejected = errors.New("checkpoint rejected by eval")
)

// #region version
// Version describes one committed snapshot of a value table.
type Version struct {
	VersionID   string
	ParentID    string
	Note        string
	Entries     int
	CreatedAt   time.Time
	MetricsJSON string
}

// #endregion version

// #region row
// Row is one stored (state, action) value. Keys are kept as JSON so any
// marshalable state and action types round-trip.
type Row struct {
	State  json.RawMessage
	Action json.RawMessage
	Value  float64
}

// #endregion row

package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS checkpoint_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	note          TEXT,
	entry_count   INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES checkpoint_versions(version_id)
);

CREATE TABLE IF NOT EXISTS checkpoint_entries (
	version_id    TEXT NOT NULL,
	state_key     TEXT NOT NULL,
	action_key    TEXT NOT NULL,
	value         REAL NOT NULL,
	PRIMARY KEY (version_id, state_key, action_key),
	FOREIGN KEY (version_id) REFERENCES checkpoint_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_checkpoint (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES checkpoint_versions(version_id)
);

CREATE TABLE IF NOT EXISTS training_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	step          INTEGER NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	metrics_json  TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store manages versioned value-table snapshots in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
var openDB = func(path string) (*sql.DB, error) { return sql.Open("sqlite", path) }

// NewStore opens a SQLite database and runs migrations. The handle is closed
// again if any setup statement fails.
func NewStore(dbPath string) (*Store, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region commit
// Commit inserts a new version holding rows and moves the active pointer to it
// atomically. parentID may be empty for a root version.
func (s *Store) Commit(parentID string, rows []Row, note, metricsJSON string) (Version, error) {
	v := Version{
		VersionID:   uuid.New().String(),
		ParentID:    parentID,
		Note:        note,
		Entries:     len(rows),
		CreatedAt:   time.Now().UTC(),
		MetricsJSON: metricsJSON,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Version{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO checkpoint_versions (version_id, parent_id, note, entry_count, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.VersionID, nullIfEmpty(parentID), nullIfEmpty(note), v.Entries,
		v.CreatedAt.Format(time.RFC3339Nano), nullIfEmpty(metricsJSON),
	)
	if err != nil {
		return Version{}, fmt.Errorf("insert version: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO checkpoint_entries (version_id, state_key, action_key, value) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return Version{}, fmt.Errorf("prepare entries: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(v.VersionID, string(r.State), string(r.Action), r.Value); err != nil {
			return Version{}, fmt.Errorf("insert entry: %w", err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO active_checkpoint (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		v.VersionID,
	)
	if err != nil {
		return Version{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Version{}, fmt.Errorf("commit: %w", err)
	}
	return v, nil
}

// #endregion commit

// #region get-current
// Current reads the active version. Returns ErrNoActive on a fresh store.
func (s *Store) Current() (Version, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_checkpoint WHERE id = 1`).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, ErrNoActive
	}
	if err != nil {
		return Version{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a version's metadata by ID.
func (s *Store) GetVersion(id string) (Version, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, note, entry_count, created_at, metrics_json
		 FROM checkpoint_versions WHERE version_id = ?`, id,
	)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Version{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Version{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return v, nil
}

// #endregion get-version

// #region load
// Load returns the rows of a version.
func (s *Store) Load(id string) ([]Row, error) {
	if _, err := s.GetVersion(id); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		`SELECT state_key, action_key, value FROM checkpoint_entries
		 WHERE version_id = ? ORDER BY state_key, action_key`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var stateKey, actionKey string
		var r Row
		if err := rows.Scan(&stateKey, &actionKey, &r.Value); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		r.State = []byte(stateKey)
		r.Action = []byte(actionKey)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion load

// #region rollback
// Rollback sets the active pointer to a previous version.
func (s *Store) Rollback(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM checkpoint_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, targetVersionID)
	}

	_, err = s.db.Exec(
		`INSERT INTO active_checkpoint (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		targetVersionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent versions, newest first.
func (s *Store) ListVersions(limit int) ([]Version, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, note, entry_count, created_at, metrics_json
		 FROM checkpoint_versions ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// #endregion list-versions

// #region helpers
type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(sc scanner) (Version, error) {
	var v Version
	var parentID, note, metricsJSON sql.NullString
	var createdStr string
	if err := sc.Scan(&v.VersionID, &parentID, &note, &v.Entries, &createdStr, &metricsJSON); err != nil {
		return Version{}, err
	}
	v.ParentID = parentID.String
	v.Note = note.String
	v.MetricsJSON = metricsJSON.String
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return v, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers

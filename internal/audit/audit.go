// Package audit is an append-only trail of supervisor-level actions,
// persisted to a local SQLite database distinct from the JSON App
// Registry — an operational side-log, never consulted for correctness
// decisions, adapted from the platform's own SQLite-backed audit store.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Action is the kind of supervisor action being recorded.
type Action string

const (
	ActionDeploy        Action = "deploy"
	ActionDelete        Action = "delete"
	ActionStart         Action = "start"
	ActionStop          Action = "stop"
	ActionRestart       Action = "restart"
	ActionRollback      Action = "rollback"
	ActionWebhookDeploy Action = "webhook_redeploy"
	ActionCrashLoop     Action = "crash_loop"
	ActionEnvUpdate     Action = "env_update"
)

// Entry is a single recorded action.
type Entry struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	App       string         `json:"app"`
	Action    Action         `json:"action"`
	Meta      map[string]any `json:"meta,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	app TEXT NOT NULL,
	action TEXT NOT NULL,
	meta TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_entries_app ON audit_entries(app);
`

// Logger records actions into a SQLite-backed audit trail.
type Logger struct {
	db *sql.DB
}

// Open creates (or reopens) the audit database under dataDir/audit.db and
// ensures its schema exists.
func Open(dataDir string) (*Logger, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: failed to create data dir: %w", err)
	}

	dsn := filepath.Join(dataDir, "audit.db") + "?_journal_mode=WAL&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: failed to apply schema: %w", err)
	}

	return &Logger{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Logger) Close() error {
	return l.db.Close()
}

// Record persists one audit entry. Failures are logged, never surfaced —
// a missed audit line must never abort a supervisor operation.
func (l *Logger) Record(ctx context.Context, app string, action Action, meta map[string]any) {
	var metaJSON []byte
	if meta != nil {
		var err error
		metaJSON, err = json.Marshal(meta)
		if err != nil {
			log.Error().Err(err).Msg("audit: failed to marshal entry metadata")
			return
		}
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_entries (timestamp, app, action, meta) VALUES (?, ?, ?, ?)`,
		time.Now(), app, string(action), string(metaJSON),
	)
	if err != nil {
		log.Error().Err(err).Str("app", app).Str("action", string(action)).Msg("audit: failed to record entry")
	}
}

// Recent returns the most recent entries across all apps, newest first.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, timestamp, app, action, meta FROM audit_entries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var metaJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.App, &e.Action, &metaJSON); err != nil {
			return nil, fmt.Errorf("audit: failed to scan entry: %w", err)
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &e.Meta); err != nil {
				log.Warn().Err(err).Int64("id", e.ID).Msg("audit: failed to decode entry metadata")
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ForApp returns the most recent entries for a single app, newest first.
func (l *Logger) ForApp(ctx context.Context, app string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, timestamp, app, action, meta FROM audit_entries WHERE app = ? ORDER BY id DESC LIMIT ?`,
		app, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var metaJSON sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.App, &e.Action, &metaJSON); err != nil {
			return nil, fmt.Errorf("audit: failed to scan entry: %w", err)
		}
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &e.Meta); err != nil {
				log.Warn().Err(err).Int64("id", e.ID).Msg("audit: failed to decode entry metadata")
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ambientlearn/watcher/internal/domain"
	"github.com/ambientlearn/watcher/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		stopped_at INTEGER,
		phase TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	CREATE TABLE IF NOT EXISTS envelopes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		delivered INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_envelopes_created ON envelopes(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession records a session entering Active.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
	INSERT INTO sessions (session_id, user_id, started_at, stopped_at, phase)
	VALUES (?, ?, ?, NULL, ?)
	ON CONFLICT(session_id) DO UPDATE SET phase = excluded.phase`

	_, err := s.db.ExecContext(ctx, query,
		session.SessionID, session.UserID, session.StartedAt.Unix(), session.Phase,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// CloseSession records a session leaving Active.
func (s *SQLiteStore) CloseSession(ctx context.Context, sessionID string, stoppedAt time.Time, phase string) error {
	query := `UPDATE sessions SET stopped_at = ?, phase = ? WHERE session_id = ?`
	_, err := s.db.ExecContext(ctx, query, stoppedAt.Unix(), phase, sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// JournalEnvelope appends one dispatched envelope. Lock conflicts get a
// single retry; anything else is returned to the caller to ignore.
func (s *SQLiteStore) JournalEnvelope(ctx context.Context, env *domain.ContextEnvelope, delivered bool) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	query := `INSERT INTO envelopes (session_id, payload_json, delivered, created_at) VALUES (?, ?, ?, ?)`
	args := []any{env.SessionID, string(payload), boolToInt(delivered), time.Now().Unix()}

	_, err = s.db.ExecContext(ctx, query, args...)
	if shared.IsSQLiteConflictError(err) {
		_, err = s.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("journal envelope: %w", err)
	}
	return nil
}

// RecentEnvelopes returns the newest journaled envelopes, newest first.
func (s *SQLiteStore) RecentEnvelopes(ctx context.Context, limit int) ([]domain.EnvelopeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, session_id, payload_json, delivered, created_at
	FROM envelopes ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query envelopes: %w", err)
	}
	defer rows.Close()

	var records []domain.EnvelopeRecord
	for rows.Next() {
		var rec domain.EnvelopeRecord
		var delivered int
		var created int64
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Payload, &delivered, &created); err != nil {
			return nil, fmt.Errorf("scan envelope row: %w", err)
		}
		rec.Delivered = delivered != 0
		rec.CreatedAt = time.Unix(created, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

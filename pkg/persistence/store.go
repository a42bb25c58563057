// Package persistence provides the SQLite-backed session store. Each session
// is stored as a JSON snapshot, last write wins.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-free SQLite driver

	"reqpilot/pkg/assistant"
	"reqpilot/pkg/logx"
)

// ErrSessionNotFound is returned by Load when no snapshot exists for the
// session id.
var ErrSessionNotFound = errors.New("session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id  TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	state_json  TEXT NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);
`

// Store persists session state in SQLite. Construct one per process and pass
// it where it is needed; there is no package-level instance.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// NewStore opens (and creates if necessary) the database at dbPath and
// ensures the schema exists.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000", dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, logger: logx.NewLogger("persistence")}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the stored state for the session, or ErrSessionNotFound.
func (s *Store) Load(ctx context.Context, sessionID string) (*assistant.State, error) {
	var stateJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	var state assistant.State
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &state, nil
}

// Save upserts the session snapshot.
func (s *Store) Save(ctx context.Context, state *assistant.State) error {
	if state == nil || state.SessionID == "" {
		return fmt.Errorf("cannot save session without an id")
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", state.SessionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, state_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			user_id = excluded.user_id,
			state_json = excluded.state_json,
			updated_at = excluded.updated_at`,
		state.SessionID, state.UserID, string(stateJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", state.SessionID, err)
	}

	s.logger.Debug("saved session %s (%d transcript messages)", state.SessionID, len(state.Transcript))
	return nil
}

// Reset deletes any stored snapshot and returns a fresh state reusing the
// session and user ids.
func (s *Store) Reset(ctx context.Context, sessionID, userID string) (*assistant.State, error) {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("failed to reset session %s: %w", sessionID, err)
	}

	s.logger.Info("reset session %s", sessionID)
	return assistant.NewState(sessionID, userID), nil
}

// ListSessions returns the ids of all stored sessions, most recently updated
// first.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

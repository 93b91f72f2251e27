// Package history persists answered queries. The sink is fire-and-forget
// glue behind core.HistorySink: losing it never loses an answer, and a
// missing database file just means history starts empty.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"chatpilot/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_history (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	question   TEXT NOT NULL,
	answer     TEXT NOT NULL,
	elapsed    REAL NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chat_history_created_at ON chat_history(created_at);
`

// SQLiteSink implements core.HistorySink on a local SQLite file.
type SQLiteSink struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteSink opens (or creates) the history database at path and
// ensures the schema. WAL mode keeps concurrent saves cheap.
func NewSQLiteSink(path string, logger *slog.Logger) (*SQLiteSink, error) {
	if path == "" {
		path = ".cache/chatpilot.db"
	}
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &SQLiteSink{db: db, logger: logger}, nil
}

// Save implements core.HistorySink. Errors are logged, never returned:
// the response path has already completed by the time this runs.
func (s *SQLiteSink) Save(question string, answer core.Response, elapsedSeconds float64) {
	payload, err := json.Marshal(answer)
	if err != nil {
		s.logger.Warn("history marshal failed", "error", err)
		return
	}
	if _, err := s.db.Exec(
		"INSERT INTO chat_history (question, answer, elapsed) VALUES (?, ?, ?)",
		question, string(payload), elapsedSeconds,
	); err != nil {
		s.logger.Warn("history save failed", "error", err)
	}
}

// Entry is one persisted exchange.
type Entry struct {
	Question  string
	Answer    core.Response
	Elapsed   float64
	CreatedAt time.Time
}

// Recent returns the latest n entries, newest first.
func (s *SQLiteSink) Recent(n int) ([]Entry, error) {
	rows, err := s.db.Query(
		"SELECT question, answer, elapsed, created_at FROM chat_history ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&e.Question, &payload, &e.Elapsed, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Answer); err != nil {
			return nil, fmt.Errorf("malformed history payload: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

var _ core.HistorySink = (*SQLiteSink)(nil)

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"surveyor/internal/logging"
	"surveyor/internal/question"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the durable backend. One writer connection keeps writes
// serialized; WAL mode lets readers proceed alongside. Entries survive
// process restart, which is what makes interrupted batches resumable.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (creating if needed) the database at path and ensures
// the schema exists.
func NewSQLite(path string) (*SQLite, error) {
	timer := logging.StartTimer(logging.CategoryStorage, "NewSQLite")
	defer timer.Stop()

	if path == "" {
		return nil, errors.New("sqlite storage requires a database path")
	}
	logging.Storage("Opening answer store at %s", path)

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StorageDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StorageDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StorageDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &SQLite{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS answers (
		question        TEXT PRIMARY KEY,
		template        TEXT NOT NULL,
		word_set        TEXT NOT NULL,
		payload         TEXT,
		structured      TEXT,
		parsing_success INTEGER NOT NULL DEFAULT 0,
		parsing_error   TEXT NOT NULL DEFAULT '',
		retries_used    INTEGER NOT NULL DEFAULT 0,
		error           TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_answers_template ON answers(template);
	CREATE INDEX IF NOT EXISTS idx_answers_error ON answers(error);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, q question.Question) (question.QueryResponse, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT template, word_set, payload, structured,
		       parsing_success, parsing_error, retries_used, error, created_at
		FROM answers WHERE question = ?`, q.Value)

	r := record{Value: q.Value}
	err := row.Scan(&r.Template, &r.WordSetJSON, &r.Payload, &r.Structured,
		&r.ParsingSuccess, &r.ParsingError, &r.RetriesUsed, &r.Error, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return question.QueryResponse{}, false, nil
	}
	if err != nil {
		return question.QueryResponse{}, false, fmt.Errorf("failed to read answer: %w", err)
	}
	return r.decodeResponse(), true, nil
}

func (s *SQLite) Put(ctx context.Context, q question.Question, resp question.QueryResponse) error {
	r, err := encodeRecord(q, resp)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO answers
			(question, template, word_set, payload, structured,
			 parsing_success, parsing_error, retries_used, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Value, r.Template, r.WordSetJSON, r.Payload, r.Structured,
		r.ParsingSuccess, r.ParsingError, r.RetriesUsed, r.Error, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store answer: %w", err)
	}
	logging.StorageDebug("Stored answer for %q (error=%q)", r.Value, r.Error)
	return nil
}

func (s *SQLite) Delete(ctx context.Context, q question.Question) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM answers WHERE question = ?`, q.Value); err != nil {
		return fmt.Errorf("failed to delete answer: %w", err)
	}
	return nil
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM answers`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count answers: %w", err)
	}
	return count, nil
}

func (s *SQLite) Questions(ctx context.Context) ([]question.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, template, word_set FROM answers ORDER BY created_at, question`)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate answers: %w", err)
	}
	defer rows.Close()

	var questions []question.Question
	for rows.Next() {
		var r record
		if err := rows.Scan(&r.Value, &r.Template, &r.WordSetJSON); err != nil {
			return nil, fmt.Errorf("failed to scan answer row: %w", err)
		}
		q, err := r.decodeQuestion()
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Clear removes every stored entry.
func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM answers`); err != nil {
		return fmt.Errorf("failed to clear answers: %w", err)
	}
	logging.Storage("Cleared all stored answers")
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error { return s.db.Close() }

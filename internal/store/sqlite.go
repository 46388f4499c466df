// Package store provides storage backends for SlimLine.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	"github.com/BTreeMap/SlimLine/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore is the SQLite implementation of Store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// AddUsage appends a record to the usage log.
func (s *SQLiteStore) AddUsage(rec models.UsageRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO usage_log (id, user_id, direction, mode, body, time) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Direction, rec.Mode, rec.Body, rec.Time)
	if err != nil {
		slog.Error("SQLiteStore AddUsage failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to insert usage record for %s: %w", rec.UserID, err)
	}
	slog.Debug("SQLiteStore AddUsage succeeded", "userID", rec.UserID, "mode", rec.Mode, "direction", rec.Direction)
	return nil
}

// GetUsageByUser returns the most recent records for a user, newest first.
func (s *SQLiteStore) GetUsageByUser(userID string, limit int) ([]models.UsageRecord, error) {
	query := `SELECT id, user_id, direction, mode, body, time FROM usage_log WHERE user_id = ? ORDER BY time DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetUsageByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query usage log: %w", err)
	}
	defer rows.Close()
	return scanUsageRows(rows)
}

// GetUsageBetween returns all records with start <= time < end, oldest first.
func (s *SQLiteStore) GetUsageBetween(start, end int64) ([]models.UsageRecord, error) {
	rows, err := s.db.Query(`SELECT id, user_id, direction, mode, body, time FROM usage_log WHERE time >= ? AND time < ? ORDER BY time ASC`, start, end)
	if err != nil {
		slog.Error("SQLiteStore GetUsageBetween query failed", "error", err)
		return nil, fmt.Errorf("failed to query usage log: %w", err)
	}
	defer rows.Close()
	return scanUsageRows(rows)
}

// AddQuizQuestion inserts a question into the quiz bank.
func (s *SQLiteStore) AddQuizQuestion(q models.QuizQuestion) error {
	if err := q.Validate(); err != nil {
		return err
	}
	choicesJSON, err := json.Marshal(q.Choices)
	if err != nil {
		slog.Error("SQLiteStore AddQuizQuestion marshal failed", "error", err, "questionID", q.ID)
		return err
	}
	_, err = s.db.Exec(`INSERT OR IGNORE INTO quiz_questions (id, question, choices, answer, explanation) VALUES (?, ?, ?, ?, ?)`,
		q.ID, q.Question, string(choicesJSON), q.Answer, q.Explanation)
	if err != nil {
		slog.Error("SQLiteStore AddQuizQuestion failed", "error", err, "questionID", q.ID)
		return fmt.Errorf("failed to insert quiz question %s: %w", q.ID, err)
	}
	slog.Debug("SQLiteStore AddQuizQuestion succeeded", "questionID", q.ID)
	return nil
}

// GetQuizQuestion retrieves a single question by ID, or nil if absent.
func (s *SQLiteStore) GetQuizQuestion(id string) (*models.QuizQuestion, error) {
	row := s.db.QueryRow(`SELECT id, question, choices, answer, explanation FROM quiz_questions WHERE id = ?`, id)
	q, err := scanQuizQuestion(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetQuizQuestion not found", "questionID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetQuizQuestion failed", "error", err, "questionID", id)
		return nil, err
	}
	return q, nil
}

// PickQuizQuestions returns up to limit questions whose IDs are not in excludeIDs.
func (s *SQLiteStore) PickQuizQuestions(excludeIDs []string, limit int) ([]models.QuizQuestion, error) {
	query := `SELECT id, question, choices, answer, explanation FROM quiz_questions`
	var args []interface{}
	if len(excludeIDs) > 0 {
		placeholders := strings.Repeat("?,", len(excludeIDs))
		query += ` WHERE id NOT IN (` + placeholders[:len(placeholders)-1] + `)`
		for _, id := range excludeIDs {
			args = append(args, id)
		}
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore PickQuizQuestions query failed", "error", err)
		return nil, fmt.Errorf("failed to query quiz questions: %w", err)
	}
	defer rows.Close()

	var questions []models.QuizQuestion
	for rows.Next() {
		var q models.QuizQuestion
		var choicesJSON string
		if err := rows.Scan(&q.ID, &q.Question, &choicesJSON, &q.Answer, &q.Explanation); err != nil {
			slog.Error("SQLiteStore PickQuizQuestions scan failed", "error", err)
			return nil, err
		}
		if err := json.Unmarshal([]byte(choicesJSON), &q.Choices); err != nil {
			slog.Error("SQLiteStore PickQuizQuestions choices unmarshal failed", "error", err, "questionID", q.ID)
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore PickQuizQuestions rows iteration failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLiteStore PickQuizQuestions succeeded", "count", len(questions))
	return questions, nil
}

// CountQuizQuestions returns the size of the quiz bank.
func (s *SQLiteStore) CountQuizQuestions() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM quiz_questions`).Scan(&count); err != nil {
		slog.Error("SQLiteStore CountQuizQuestions failed", "error", err)
		return 0, err
	}
	return count, nil
}

// SaveQuizState stores or updates a user's quiz session state.
func (s *SQLiteStore) SaveQuizState(state models.QuizState) error {
	askedJSON, err := marshalAskedIDs(state.AskedIDs)
	if err != nil {
		slog.Error("SQLiteStore SaveQuizState marshal failed", "error", err, "userID", state.UserID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO quiz_states (user_id, question_id, question_num, score, asked_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		state.UserID, state.QuestionID, state.QuestionNum, state.Score, askedJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveQuizState failed", "error", err, "userID", state.UserID)
		return err
	}
	slog.Debug("SQLiteStore SaveQuizState succeeded", "userID", state.UserID, "questionNum", state.QuestionNum)
	return nil
}

// GetQuizState retrieves a user's quiz session state, or nil if absent.
func (s *SQLiteStore) GetQuizState(userID string) (*models.QuizState, error) {
	var state models.QuizState
	var askedJSON sql.NullString
	err := s.db.QueryRow(`SELECT user_id, question_id, question_num, score, asked_ids, created_at, updated_at FROM quiz_states WHERE user_id = ?`, userID).
		Scan(&state.UserID, &state.QuestionID, &state.QuestionNum, &state.Score, &askedJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetQuizState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetQuizState failed", "error", err, "userID", userID)
		return nil, err
	}
	state.AskedIDs = unmarshalAskedIDs(askedJSON.String, userID)
	slog.Debug("SQLiteStore GetQuizState found", "userID", userID, "questionNum", state.QuestionNum)
	return &state, nil
}

// DeleteQuizState removes a user's quiz session state.
func (s *SQLiteStore) DeleteQuizState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM quiz_states WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteQuizState failed", "error", err, "userID", userID)
		return err
	}
	slog.Debug("SQLiteStore DeleteQuizState succeeded", "userID", userID)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

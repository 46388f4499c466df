// Package store provides storage backends for SlimLine.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	_ "embed"

	"github.com/BTreeMap/SlimLine/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore is the PostgreSQL implementation of Store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// AddUsage appends a record to the usage log.
func (s *PostgresStore) AddUsage(rec models.UsageRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO usage_log (id, user_id, direction, mode, body, time) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.UserID, rec.Direction, rec.Mode, rec.Body, rec.Time)
	if err != nil {
		slog.Error("PostgresStore AddUsage failed", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to insert usage record for %s: %w", rec.UserID, err)
	}
	slog.Debug("PostgresStore AddUsage succeeded", "userID", rec.UserID, "mode", rec.Mode, "direction", rec.Direction)
	return nil
}

// GetUsageByUser returns the most recent records for a user, newest first.
func (s *PostgresStore) GetUsageByUser(userID string, limit int) ([]models.UsageRecord, error) {
	query := `SELECT id, user_id, direction, mode, body, time FROM usage_log WHERE user_id = $1 ORDER BY time DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetUsageByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query usage log: %w", err)
	}
	defer rows.Close()
	return scanUsageRows(rows)
}

// GetUsageBetween returns all records with start <= time < end, oldest first.
func (s *PostgresStore) GetUsageBetween(start, end int64) ([]models.UsageRecord, error) {
	rows, err := s.db.Query(`SELECT id, user_id, direction, mode, body, time FROM usage_log WHERE time >= $1 AND time < $2 ORDER BY time ASC`, start, end)
	if err != nil {
		slog.Error("PostgresStore GetUsageBetween query failed", "error", err)
		return nil, fmt.Errorf("failed to query usage log: %w", err)
	}
	defer rows.Close()
	return scanUsageRows(rows)
}

// AddQuizQuestion inserts a question into the quiz bank.
func (s *PostgresStore) AddQuizQuestion(q models.QuizQuestion) error {
	if err := q.Validate(); err != nil {
		return err
	}
	choicesJSON, err := json.Marshal(q.Choices)
	if err != nil {
		slog.Error("PostgresStore AddQuizQuestion marshal failed", "error", err, "questionID", q.ID)
		return err
	}
	_, err = s.db.Exec(`INSERT INTO quiz_questions (id, question, choices, answer, explanation) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
		q.ID, q.Question, string(choicesJSON), q.Answer, q.Explanation)
	if err != nil {
		slog.Error("PostgresStore AddQuizQuestion failed", "error", err, "questionID", q.ID)
		return fmt.Errorf("failed to insert quiz question %s: %w", q.ID, err)
	}
	slog.Debug("PostgresStore AddQuizQuestion succeeded", "questionID", q.ID)
	return nil
}

// GetQuizQuestion retrieves a single question by ID, or nil if absent.
func (s *PostgresStore) GetQuizQuestion(id string) (*models.QuizQuestion, error) {
	row := s.db.QueryRow(`SELECT id, question, choices, answer, explanation FROM quiz_questions WHERE id = $1`, id)
	q, err := scanQuizQuestion(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetQuizQuestion not found", "questionID", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetQuizQuestion failed", "error", err, "questionID", id)
		return nil, err
	}
	return q, nil
}

// PickQuizQuestions returns up to limit questions whose IDs are not in excludeIDs.
func (s *PostgresStore) PickQuizQuestions(excludeIDs []string, limit int) ([]models.QuizQuestion, error) {
	query := `SELECT id, question, choices, answer, explanation FROM quiz_questions`
	var args []interface{}
	if len(excludeIDs) > 0 {
		placeholders := make([]string, len(excludeIDs))
		for i, id := range excludeIDs {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args = append(args, id)
		}
		query += ` WHERE id NOT IN (` + strings.Join(placeholders, ", ") + `)`
	}
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore PickQuizQuestions query failed", "error", err)
		return nil, fmt.Errorf("failed to query quiz questions: %w", err)
	}
	defer rows.Close()

	var questions []models.QuizQuestion
	for rows.Next() {
		var q models.QuizQuestion
		var choicesJSON string
		if err := rows.Scan(&q.ID, &q.Question, &choicesJSON, &q.Answer, &q.Explanation); err != nil {
			slog.Error("PostgresStore PickQuizQuestions scan failed", "error", err)
			return nil, err
		}
		if err := json.Unmarshal([]byte(choicesJSON), &q.Choices); err != nil {
			slog.Error("PostgresStore PickQuizQuestions choices unmarshal failed", "error", err, "questionID", q.ID)
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore PickQuizQuestions rows iteration failed", "error", err)
		return nil, err
	}
	slog.Debug("PostgresStore PickQuizQuestions succeeded", "count", len(questions))
	return questions, nil
}

// CountQuizQuestions returns the size of the quiz bank.
func (s *PostgresStore) CountQuizQuestions() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM quiz_questions`).Scan(&count); err != nil {
		slog.Error("PostgresStore CountQuizQuestions failed", "error", err)
		return 0, err
	}
	return count, nil
}

// SaveQuizState stores or updates a user's quiz session state.
func (s *PostgresStore) SaveQuizState(state models.QuizState) error {
	askedJSON, err := marshalAskedIDs(state.AskedIDs)
	if err != nil {
		slog.Error("PostgresStore SaveQuizState marshal failed", "error", err, "userID", state.UserID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO quiz_states (user_id, question_id, question_num, score, asked_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			question_id = EXCLUDED.question_id,
			question_num = EXCLUDED.question_num,
			score = EXCLUDED.score,
			asked_ids = EXCLUDED.asked_ids,
			updated_at = EXCLUDED.updated_at`,
		state.UserID, state.QuestionID, state.QuestionNum, state.Score, askedJSON, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveQuizState failed", "error", err, "userID", state.UserID)
		return err
	}
	slog.Debug("PostgresStore SaveQuizState succeeded", "userID", state.UserID, "questionNum", state.QuestionNum)
	return nil
}

// GetQuizState retrieves a user's quiz session state, or nil if absent.
func (s *PostgresStore) GetQuizState(userID string) (*models.QuizState, error) {
	var state models.QuizState
	var askedJSON sql.NullString
	err := s.db.QueryRow(`SELECT user_id, question_id, question_num, score, asked_ids, created_at, updated_at FROM quiz_states WHERE user_id = $1`, userID).
		Scan(&state.UserID, &state.QuestionID, &state.QuestionNum, &state.Score, &askedJSON, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetQuizState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetQuizState failed", "error", err, "userID", userID)
		return nil, err
	}
	state.AskedIDs = unmarshalAskedIDs(askedJSON.String, userID)
	slog.Debug("PostgresStore GetQuizState found", "userID", userID, "questionNum", state.QuestionNum)
	return &state, nil
}

// DeleteQuizState removes a user's quiz session state.
func (s *PostgresStore) DeleteQuizState(userID string) error {
	_, err := s.db.Exec(`DELETE FROM quiz_states WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteQuizState failed", "error", err, "userID", userID)
		return err
	}
	slog.Debug("PostgresStore DeleteQuizState succeeded", "userID", userID)
	return nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}

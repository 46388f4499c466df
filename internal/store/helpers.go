// Package store provides storage backends for SlimLine.
//
// This file holds row scanning helpers shared by the SQL backends.
package store

import (
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/BTreeMap/SlimLine/internal/models"
)

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUsageRows reads all usage records from an open result set.
func scanUsageRows(rows *sql.Rows) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Direction, &rec.Mode, &rec.Body, &rec.Time); err != nil {
			slog.Error("store scanUsageRows scan failed", "error", err)
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("store scanUsageRows rows iteration failed", "error", err)
		return nil, err
	}
	return records, nil
}

// scanQuizQuestion reads one quiz question, decoding the choices JSON column.
func scanQuizQuestion(row rowScanner) (*models.QuizQuestion, error) {
	var q models.QuizQuestion
	var choicesJSON string
	if err := row.Scan(&q.ID, &q.Question, &choicesJSON, &q.Answer, &q.Explanation); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(choicesJSON), &q.Choices); err != nil {
		return nil, err
	}
	return &q, nil
}

// marshalAskedIDs encodes the asked-question list for storage.
func marshalAskedIDs(ids []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalAskedIDs decodes the asked-question list, tolerating corrupt data.
func unmarshalAskedIDs(data, userID string) []string {
	if data == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		slog.Error("store unmarshalAskedIDs failed", "error", err, "userID", userID)
		// Continue with an empty list rather than failing the session lookup
		return nil
	}
	return ids
}

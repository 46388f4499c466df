// Package store provides storage backends for SlimLine.
//
// It persists the usage log, the quiz question bank, and per-user quiz
// session state. SQLite and PostgreSQL backends share one Store interface;
// an in-memory implementation backs tests and local development.
package store

import (
	"strings"

	"github.com/BTreeMap/SlimLine/internal/models"
)

// Store defines the persistence operations shared by all backends.
type Store interface {
	// AddUsage appends a record to the usage log.
	AddUsage(rec models.UsageRecord) error
	// GetUsageByUser returns the most recent records for a user, newest first.
	GetUsageByUser(userID string, limit int) ([]models.UsageRecord, error)
	// GetUsageBetween returns all records with start <= time < end, oldest first.
	GetUsageBetween(start, end int64) ([]models.UsageRecord, error)

	// AddQuizQuestion inserts a question into the quiz bank.
	AddQuizQuestion(q models.QuizQuestion) error
	// GetQuizQuestion retrieves a single question by ID, or nil if absent.
	GetQuizQuestion(id string) (*models.QuizQuestion, error)
	// PickQuizQuestions returns up to limit questions whose IDs are not in excludeIDs.
	PickQuizQuestions(excludeIDs []string, limit int) ([]models.QuizQuestion, error)
	// CountQuizQuestions returns the size of the quiz bank.
	CountQuizQuestions() (int, error)

	// SaveQuizState stores or updates a user's quiz session state.
	SaveQuizState(state models.QuizState) error
	// GetQuizState retrieves a user's quiz session state, or nil if absent.
	GetQuizState(userID string) (*models.QuizState, error)
	// DeleteQuizState removes a user's quiz session state.
	DeleteQuizState(userID string) error

	// Close releases the backend's resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite".
// PostgreSQL DSNs use the postgres:// scheme or key=value connection
// strings; anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}

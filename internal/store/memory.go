// Package store provides storage backends for SlimLine.
//
// This file implements the in-memory store used by tests and local development.
package store

import (
	"sort"
	"sync"

	"github.com/BTreeMap/SlimLine/internal/models"
)

// InMemoryStore is a mutex-guarded Store implementation with no persistence.
type InMemoryStore struct {
	mu         sync.RWMutex
	usage      []models.UsageRecord
	questions  []models.QuizQuestion
	quizStates map[string]models.QuizState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		quizStates: make(map[string]models.QuizState),
	}
}

// AddUsage appends a record to the usage log.
func (s *InMemoryStore) AddUsage(rec models.UsageRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, rec)
	return nil
}

// GetUsageByUser returns the most recent records for a user, newest first.
func (s *InMemoryStore) GetUsageByUser(userID string, limit int) ([]models.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UsageRecord
	for _, rec := range s.usage {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time > out[j].Time })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetUsageBetween returns all records with start <= time < end, oldest first.
func (s *InMemoryStore) GetUsageBetween(start, end int64) ([]models.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UsageRecord
	for _, rec := range s.usage {
		if rec.Time >= start && rec.Time < end {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

// AddQuizQuestion inserts a question into the quiz bank.
func (s *InMemoryStore) AddQuizQuestion(q models.QuizQuestion) error {
	if err := q.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.questions {
		if existing.ID == q.ID {
			return nil // bank already has this question
		}
	}
	s.questions = append(s.questions, q)
	return nil
}

// GetQuizQuestion retrieves a single question by ID, or nil if absent.
func (s *InMemoryStore) GetQuizQuestion(id string) (*models.QuizQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.questions {
		if q.ID == id {
			cp := q
			return &cp, nil
		}
	}
	return nil, nil
}

// PickQuizQuestions returns up to limit questions whose IDs are not in excludeIDs.
func (s *InMemoryStore) PickQuizQuestions(excludeIDs []string, limit int) ([]models.QuizQuestion, error) {
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.QuizQuestion
	for _, q := range s.questions {
		if excluded[q.ID] {
			continue
		}
		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// CountQuizQuestions returns the size of the quiz bank.
func (s *InMemoryStore) CountQuizQuestions() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions), nil
}

// SaveQuizState stores or updates a user's quiz session state.
func (s *InMemoryStore) SaveQuizState(state models.QuizState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizStates[state.UserID] = state
	return nil
}

// GetQuizState retrieves a user's quiz session state, or nil if absent.
func (s *InMemoryStore) GetQuizState(userID string) (*models.QuizState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.quizStates[userID]
	if !ok {
		return nil, nil
	}
	cp := state
	return &cp, nil
}

// DeleteQuizState removes a user's quiz session state.
func (s *InMemoryStore) DeleteQuizState(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quizStates, userID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

// Package models defines quiz state structures for SlimLine flows.
package models

import (
	"errors"
	"time"
)

// QuizChoiceCount is the fixed number of choices per quiz question.
const QuizChoiceCount = 4

// Quiz validation errors
var (
	ErrEmptyQuestion    = errors.New("question text cannot be empty")
	ErrWrongChoiceCount = errors.New("quiz question must have exactly four choices")
	ErrEmptyChoice      = errors.New("quiz choice cannot be empty")
	ErrAnswerOutOfRange = errors.New("answer must be between 1 and 4")
	ErrEmptyExplanation = errors.New("explanation cannot be empty")
)

// QuizQuestion is one entry in the quiz bank.
type QuizQuestion struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	Answer      int      `json:"answer"` // 1-based index into Choices, matching user replies
	Explanation string   `json:"explanation"`
}

// Validate performs validation on a QuizQuestion before it enters the bank.
func (q *QuizQuestion) Validate() error {
	if q.Question == "" {
		return ErrEmptyQuestion
	}
	if len(q.Choices) != QuizChoiceCount {
		return ErrWrongChoiceCount
	}
	for _, c := range q.Choices {
		if c == "" {
			return ErrEmptyChoice
		}
	}
	if q.Answer < 1 || q.Answer > QuizChoiceCount {
		return ErrAnswerOutOfRange
	}
	if q.Explanation == "" {
		return ErrEmptyExplanation
	}
	return nil
}

// QuizState is the persisted progress of one user's quiz session.
type QuizState struct {
	UserID      string    `json:"user_id"`
	QuestionID  string    `json:"question_id"`  // question currently awaiting an answer
	QuestionNum int       `json:"question_num"` // 1-based position within the session
	Score       int       `json:"score"`
	AskedIDs    []string  `json:"asked_ids,omitempty"` // questions already served this session
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Package models defines the core data structures for SlimLine.
//
// It includes types for inbound chat messages, usage log records, and the
// JSON envelope shared by all HTTP endpoints.
package models

import (
	"errors"
	"time"
)

// ChatMode identifies which conversational flow handles a message.
type ChatMode string

const (
	// ModeCalorie is the free-text calorie lookup flow (default mode).
	ModeCalorie ChatMode = "calorie"
	// ModeQuiz is the nutrition quiz flow.
	ModeQuiz ChatMode = "quiz"
	// ModeArticle is the article browsing flow.
	ModeArticle ChatMode = "article"
	// ModeSummary is the administrative daily summary flow.
	ModeSummary ChatMode = "summary"
	// ModeHelp returns the static usage guide.
	ModeHelp ChatMode = "help"
)

// IsValidChatMode checks if the given chat mode is supported.
func IsValidChatMode(m ChatMode) bool {
	switch m {
	case ModeCalorie, ModeQuiz, ModeArticle, ModeSummary, ModeHelp:
		return true
	default:
		return false
	}
}

// MessageDirection marks a usage record as inbound or outbound.
type MessageDirection string

const (
	// DirectionIn is a message received from a user.
	DirectionIn MessageDirection = "in"
	// DirectionOut is a reply sent by the bot.
	DirectionOut MessageDirection = "out"
)

// Validation constants for input validation
const (
	// MaxMessageBodyLength defines the maximum body length stored in the usage log.
	MaxMessageBodyLength = 4096
	// MaxSendBodyLength defines the maximum body length accepted by POST /send.
	MaxSendBodyLength = 2000
)

// Error variables for better error handling and testability
var (
	ErrEmptyUserID      = errors.New("user id cannot be empty")
	ErrEmptyBody        = errors.New("body cannot be empty")
	ErrBodyTooLong      = errors.New("body exceeds maximum length")
	ErrInvalidMode      = errors.New("invalid chat mode")
	ErrInvalidDirection = errors.New("invalid message direction")
)

// IncomingMessage is a parsed inbound text event from the LINE webhook.
type IncomingMessage struct {
	UserID     string `json:"user_id"`
	Text       string `json:"text"`
	ReplyToken string `json:"reply_token,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// UsageRecord is one entry in the usage log.
type UsageRecord struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Direction MessageDirection `json:"direction"`
	Mode      ChatMode         `json:"mode"`
	Body      string           `json:"body"`
	Time      int64            `json:"time"`
}

// Validate performs validation on a UsageRecord before it is stored.
func (r *UsageRecord) Validate() error {
	if r.UserID == "" {
		return ErrEmptyUserID
	}
	if r.Direction != DirectionIn && r.Direction != DirectionOut {
		return ErrInvalidDirection
	}
	if !IsValidChatMode(r.Mode) {
		return ErrInvalidMode
	}
	if len(r.Body) > MaxMessageBodyLength {
		return ErrBodyTooLong
	}
	return nil
}

// SendRequest is the payload for the admin push endpoint (POST /send).
type SendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Validate performs validation on a SendRequest.
func (s *SendRequest) Validate() error {
	if s.To == "" {
		return ErrEmptyUserID
	}
	if s.Body == "" {
		return ErrEmptyBody
	}
	if len(s.Body) > MaxSendBodyLength {
		return ErrBodyTooLong
	}
	return nil
}

// Article is one entry in the curated reading list.
type Article struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Blurb string `json:"blurb"`
}

// SummaryReport aggregates one day of usage log activity.
type SummaryReport struct {
	Date          string           `json:"date"` // YYYY-MM-DD in the report timezone
	TotalMessages int              `json:"total_messages"`
	UniqueUsers   int              `json:"unique_users"`
	ModeCounts    map[ChatMode]int `json:"mode_counts"`
	TopFoods      []FoodCount      `json:"top_foods,omitempty"`
}

// FoodCount is a calorie-mode query and how often it was asked.
type FoodCount struct {
	Food  string `json:"food"`
	Count int    `json:"count"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// NewUsageRecord builds a usage record stamped with the current time.
func NewUsageRecord(id, userID string, dir MessageDirection, mode ChatMode, body string) UsageRecord {
	return UsageRecord{
		ID:        id,
		UserID:    userID,
		Direction: dir,
		Mode:      mode,
		Body:      body,
		Time:      time.Now().Unix(),
	}
}

package models

import (
	"strings"
	"testing"
)

func TestUsageRecordValidate(t *testing.T) {
	rec := UsageRecord{ID: "1", UserID: "U123", Direction: DirectionIn, Mode: ModeCalorie, Body: "カレーライス", Time: 1}
	if err := rec.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec.UserID = ""
	if err := rec.Validate(); err != ErrEmptyUserID {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}

	rec.UserID = "U123"
	rec.Direction = "sideways"
	if err := rec.Validate(); err != ErrInvalidDirection {
		t.Errorf("expected ErrInvalidDirection, got %v", err)
	}

	rec.Direction = DirectionOut
	rec.Mode = "astrology"
	if err := rec.Validate(); err != ErrInvalidMode {
		t.Errorf("expected ErrInvalidMode, got %v", err)
	}

	rec.Mode = ModeQuiz
	rec.Body = strings.Repeat("a", MaxMessageBodyLength+1)
	if err := rec.Validate(); err != ErrBodyTooLong {
		t.Errorf("expected ErrBodyTooLong, got %v", err)
	}
}

func TestSendRequestValidate(t *testing.T) {
	req := SendRequest{To: "U123", Body: "hello"}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req.To = ""
	if err := req.Validate(); err != ErrEmptyUserID {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}

	req.To = "U123"
	req.Body = ""
	if err := req.Validate(); err != ErrEmptyBody {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}

	req.Body = strings.Repeat("b", MaxSendBodyLength+1)
	if err := req.Validate(); err != ErrBodyTooLong {
		t.Errorf("expected ErrBodyTooLong, got %v", err)
	}
}

func TestIsValidChatMode(t *testing.T) {
	for _, m := range []ChatMode{ModeCalorie, ModeQuiz, ModeArticle, ModeSummary, ModeHelp} {
		if !IsValidChatMode(m) {
			t.Errorf("expected %s to be valid", m)
		}
	}
	if IsValidChatMode("karaoke") {
		t.Error("expected unknown mode to be invalid")
	}
}

func TestQuizQuestionValidate(t *testing.T) {
	q := QuizQuestion{
		ID:          "q1",
		Question:    "大盛りご飯一杯はおよそ何kcal？",
		Choices:     []string{"約150kcal", "約240kcal", "約350kcal", "約500kcal"},
		Answer:      3,
		Explanation: "大盛り（約200g）はおよそ350kcalです。",
	}
	if err := q.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := q
	bad.Question = ""
	if err := bad.Validate(); err != ErrEmptyQuestion {
		t.Errorf("expected ErrEmptyQuestion, got %v", err)
	}

	bad = q
	bad.Choices = q.Choices[:3]
	if err := bad.Validate(); err != ErrWrongChoiceCount {
		t.Errorf("expected ErrWrongChoiceCount, got %v", err)
	}

	bad = q
	bad.Choices = []string{"a", "", "c", "d"}
	if err := bad.Validate(); err != ErrEmptyChoice {
		t.Errorf("expected ErrEmptyChoice, got %v", err)
	}

	bad = q
	bad.Answer = 0
	if err := bad.Validate(); err != ErrAnswerOutOfRange {
		t.Errorf("expected ErrAnswerOutOfRange, got %v", err)
	}
	bad.Answer = 5
	if err := bad.Validate(); err != ErrAnswerOutOfRange {
		t.Errorf("expected ErrAnswerOutOfRange, got %v", err)
	}

	bad = q
	bad.Explanation = ""
	if err := bad.Validate(); err != ErrEmptyExplanation {
		t.Errorf("expected ErrEmptyExplanation, got %v", err)
	}
}

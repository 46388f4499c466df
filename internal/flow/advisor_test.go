package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestAdviseReturnsLLMReply(t *testing.T) {
	gen := &fakeGenerator{replies: []string{"ラーメンは一杯約500kcalです。置き換えなら…"}}
	a := NewCalorieAdvisor(gen)

	reply, err := a.Advise(context.Background(), "ラーメン")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != gen.replies[0] {
		t.Errorf("expected LLM reply, got %q", reply)
	}
	if !strings.Contains(gen.lastUserPrompt, "ラーメン") {
		t.Errorf("food name missing from user prompt: %q", gen.lastUserPrompt)
	}
	if !strings.Contains(gen.lastSystemPrompt, "置き換えダイエット") {
		t.Errorf("system prompt not applied: %q", gen.lastSystemPrompt)
	}
	if gen.lastMaxTokens != advisorMaxTokens {
		t.Errorf("expected max tokens %d, got %d", advisorMaxTokens, gen.lastMaxTokens)
	}
}

func TestAdviseFallsBackOnError(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("rate limited")}}
	a := NewCalorieAdvisor(gen)

	reply, err := a.Advise(context.Background(), "カレーライス")
	if err != nil {
		t.Fatalf("advisor must not propagate LLM errors, got %v", err)
	}
	if reply != advisorFallbackMessage {
		t.Errorf("expected fallback message, got %q", reply)
	}
}

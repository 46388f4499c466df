// Package flow provides the calorie advisor flow.
package flow

import (
	"context"
	"fmt"
	"log/slog"
)

// advisorSystemPrompt frames the LLM as a replacement-diet specialist.
// The reply format (calories plus two swap suggestions, 150-200 characters,
// friendly register) is part of the product, not just a style hint.
const advisorSystemPrompt = `あなたは置き換えダイエットの専門家です。
ユーザーが食材の名前を送ってきたら、以下の形式で回答してください。

1. その食品のカロリー（一般的な1人前）
2. 置き換えアドバイス（食材の名前を変えることでカロリーを抑える具体的な提案を2つ）

回答は150〜200文字程度で簡潔にまとめてください。
親しみやすい口調で答えてください。`

// advisorMaxTokens bounds the advisor completion length.
const advisorMaxTokens = 500

// advisorFallbackMessage is sent when the LLM call fails. The webhook reply
// must never surface an internal error to the user.
const advisorFallbackMessage = "エラーが発生しました。しばらくしてからもう一度お試しください🙏"

// CalorieAdvisor answers free-text food names with calorie estimates and
// lower-calorie swap suggestions.
type CalorieAdvisor struct {
	gen Generator
}

// NewCalorieAdvisor creates a calorie advisor backed by the given generator.
func NewCalorieAdvisor(gen Generator) *CalorieAdvisor {
	return &CalorieAdvisor{gen: gen}
}

// Advise produces the calorie reply for a food name. LLM failures are logged
// and converted into a fallback reply; the returned error is always nil so
// the webhook path stays healthy.
func (a *CalorieAdvisor) Advise(ctx context.Context, foodName string) (string, error) {
	slog.Debug("CalorieAdvisor.Advise: querying LLM", "food", foodName)

	userPrompt := fmt.Sprintf("「%s」のカロリーと、カロリーを抑える方法を教えて", foodName)
	reply, err := a.gen.GeneratePrompt(ctx, advisorSystemPrompt, userPrompt, advisorMaxTokens)
	if err != nil {
		slog.Error("CalorieAdvisor.Advise: LLM call failed", "error", err, "food", foodName)
		return advisorFallbackMessage, nil
	}

	slog.Debug("CalorieAdvisor.Advise: reply generated", "food", foodName, "reply_length", len(reply))
	return reply, nil
}

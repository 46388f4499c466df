// Package flow implements the conversational flows of SlimLine: free-text
// calorie lookup, the nutrition quiz, article browsing, and the
// administrative daily summary. The router inspects inbound text and
// dispatches to the flow for the detected mode.
package flow

import (
	"context"
	"strings"

	"github.com/BTreeMap/SlimLine/internal/models"
)

// Generator defines how flows obtain LLM completions.
// Implemented by genai.Client.
type Generator interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string, maxTokens int64) (string, error)
}

// Keyword sets per mode. Japanese keywords match as prefixes so that
// compound commands like「記事 2」work; English keywords match
// case-insensitively.
var (
	quizKeywords    = []string{"クイズ", "quiz"}
	articleKeywords = []string{"記事", "articles", "article"}
	summaryKeywords = []string{"まとめ", "summary"}
	helpKeywords    = []string{"ヘルプ", "使い方", "help"}
	cancelKeywords  = []string{"やめる", "中断", "stop", "cancel"}
)

// DetectMode classifies inbound text into a chat mode by keyword prefix.
// Unmatched text falls through to the calorie lookup flow.
func DetectMode(text string) models.ChatMode {
	switch {
	case matchesKeyword(text, quizKeywords):
		return models.ModeQuiz
	case matchesKeyword(text, articleKeywords):
		return models.ModeArticle
	case matchesKeyword(text, summaryKeywords):
		return models.ModeSummary
	case matchesKeyword(text, helpKeywords):
		return models.ModeHelp
	default:
		return models.ModeCalorie
	}
}

// IsCancelKeyword reports whether text is a quiz cancel command.
func IsCancelKeyword(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, kw := range cancelKeywords {
		if strings.EqualFold(trimmed, kw) {
			return true
		}
	}
	return false
}

// matchesKeyword reports whether text starts with any of the given keywords.
func matchesKeyword(text string, keywords []string) bool {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, kw := range keywords {
		if strings.HasPrefix(trimmed, kw) || strings.HasPrefix(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// stripKeywordPrefix removes a matched keyword prefix and surrounding space,
// returning the command argument (e.g.「記事 2」→「2」).
func stripKeywordPrefix(text string, keywords []string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, kw := range keywords {
		if strings.HasPrefix(trimmed, kw) {
			return strings.TrimSpace(trimmed[len(kw):])
		}
		lkw := strings.ToLower(kw)
		if strings.HasPrefix(lower, lkw) {
			return strings.TrimSpace(trimmed[len(lkw):])
		}
	}
	return trimmed
}

// fullWidthDigits converts full-width digits to ASCII so replies like「２」parse.
var fullWidthDigits = strings.NewReplacer(
	"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
	"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
)

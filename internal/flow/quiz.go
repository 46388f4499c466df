// Package flow provides the stateful nutrition quiz flow.
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/SlimLine/internal/models"
	"github.com/BTreeMap/SlimLine/internal/store"
	"github.com/google/uuid"
)

// DefaultQuizLength is the number of questions per quiz session.
const DefaultQuizLength = 5

// quizGenMaxTokens bounds the question generation completion length.
const quizGenMaxTokens = 1200

const quizGenSystemPrompt = `あなたは栄養学クイズの作成者です。
指示された問数の4択クイズをJSON配列だけで出力してください。
各要素は question, choices（4つの文字列）, answer（1〜4の正解番号）, explanation を持ちます。
JSON以外のテキストやコードフェンスは出力しないでください。`

// QuizFlow runs the per-user quiz session state machine. Session state and
// the question bank live in the store; new questions are generated by the
// LLM when the bank runs low, with a built-in seed set as fallback.
type QuizFlow struct {
	store  store.Store
	gen    Generator
	length int
}

// NewQuizFlow creates a quiz flow with the default session length.
func NewQuizFlow(st store.Store, gen Generator) *QuizFlow {
	return &QuizFlow{
		store:  st,
		gen:    gen,
		length: DefaultQuizLength,
	}
}

// Start begins a new quiz session and returns the first question.
func (f *QuizFlow) Start(ctx context.Context, userID string) (string, error) {
	slog.Debug("QuizFlow.Start: starting session", "userID", userID)

	if err := f.ensureBank(ctx); err != nil {
		// A thin bank is not fatal; the session just runs shorter.
		slog.Warn("QuizFlow.Start: failed to refill question bank", "error", err)
	}

	q, err := f.pickQuestion(nil)
	if err != nil {
		return "", err
	}
	if q == nil {
		slog.Error("QuizFlow.Start: question bank is empty", "userID", userID)
		return "クイズの準備ができていません。しばらくしてからもう一度お試しください🙏", nil
	}

	now := time.Now()
	state := models.QuizState{
		UserID:      userID,
		QuestionID:  q.ID,
		QuestionNum: 1,
		Score:       0,
		AskedIDs:    []string{q.ID},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.store.SaveQuizState(state); err != nil {
		return "", fmt.Errorf("failed to save quiz state: %w", err)
	}

	intro := fmt.Sprintf("🍎 栄養クイズを始めます！全%d問です。\n「やめる」でいつでも中断できます。\n\n", f.length)
	return intro + renderQuestion(*q, 1), nil
}

// Answer grades a reply to the current question and advances the session.
func (f *QuizFlow) Answer(ctx context.Context, userID, text string) (string, error) {
	state, err := f.store.GetQuizState(userID)
	if err != nil {
		return "", fmt.Errorf("failed to load quiz state: %w", err)
	}
	if state == nil {
		// Session vanished (e.g. expired by an admin); start over.
		slog.Debug("QuizFlow.Answer: no active session, restarting", "userID", userID)
		return f.Start(ctx, userID)
	}

	q, err := f.store.GetQuizQuestion(state.QuestionID)
	if err != nil {
		return "", fmt.Errorf("failed to load current question: %w", err)
	}
	if q == nil {
		slog.Error("QuizFlow.Answer: current question missing from bank", "userID", userID, "questionID", state.QuestionID)
		if err := f.store.DeleteQuizState(userID); err != nil {
			slog.Error("QuizFlow.Answer: failed to reset broken session", "error", err, "userID", userID)
		}
		return "クイズの状態が失われました。「クイズ」でもう一度始めてください。", nil
	}

	choice, ok := parseChoice(text)
	if !ok {
		slog.Debug("QuizFlow.Answer: unparsable answer, re-prompting", "userID", userID, "text", text)
		return "1〜4の番号で答えてください。\n\n" + renderQuestion(*q, state.QuestionNum), nil
	}

	var feedback string
	if choice == q.Answer {
		state.Score++
		feedback = "⭕ 正解！\n" + q.Explanation
	} else {
		feedback = fmt.Sprintf("❌ 不正解… 正解は%d番でした。\n%s", q.Answer, q.Explanation)
	}
	slog.Debug("QuizFlow.Answer: graded", "userID", userID, "questionNum", state.QuestionNum, "correct", choice == q.Answer)

	if state.QuestionNum >= f.length {
		return f.finishSession(userID, state, feedback)
	}

	next, err := f.pickQuestion(state.AskedIDs)
	if err != nil {
		return "", err
	}
	if next == nil {
		// Bank exhausted mid-session; end early with the score so far.
		slog.Warn("QuizFlow.Answer: bank exhausted, ending session early", "userID", userID, "questionNum", state.QuestionNum)
		return f.finishSession(userID, state, feedback)
	}

	state.QuestionID = next.ID
	state.QuestionNum++
	state.AskedIDs = append(state.AskedIDs, next.ID)
	state.UpdatedAt = time.Now()
	if err := f.store.SaveQuizState(*state); err != nil {
		return "", fmt.Errorf("failed to save quiz state: %w", err)
	}

	return feedback + "\n\n" + renderQuestion(*next, state.QuestionNum), nil
}

// Cancel ends an active session.
func (f *QuizFlow) Cancel(ctx context.Context, userID string) (string, error) {
	if err := f.store.DeleteQuizState(userID); err != nil {
		return "", fmt.Errorf("failed to delete quiz state: %w", err)
	}
	slog.Info("QuizFlow.Cancel: session cancelled", "userID", userID)
	return "クイズを中断しました。また「クイズ」と送れば再開できます！", nil
}

// finishSession removes the session state and appends the score summary.
func (f *QuizFlow) finishSession(userID string, state *models.QuizState, feedback string) (string, error) {
	if err := f.store.DeleteQuizState(userID); err != nil {
		return "", fmt.Errorf("failed to delete quiz state: %w", err)
	}
	slog.Info("QuizFlow: session finished", "userID", userID, "score", state.Score, "questions", state.QuestionNum)
	summary := fmt.Sprintf("\n\n🎉 クイズ終了！結果は %d問中 %d問正解でした。\nまた「クイズ」でチャレンジしてね！", state.QuestionNum, state.Score)
	return feedback + summary, nil
}

// pickQuestion selects a random unasked question, or nil when none remain.
func (f *QuizFlow) pickQuestion(excludeIDs []string) (*models.QuizQuestion, error) {
	candidates, err := f.store.PickQuizQuestions(excludeIDs, f.length*2)
	if err != nil {
		return nil, fmt.Errorf("failed to pick quiz questions: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	// Top-level rand is safe for concurrent webhook goroutines.
	q := candidates[rand.IntN(len(candidates))]
	return &q, nil
}

// ensureBank tops up the question bank via the LLM, falling back to the
// built-in seed set when generation fails.
func (f *QuizFlow) ensureBank(ctx context.Context) error {
	count, err := f.store.CountQuizQuestions()
	if err != nil {
		return fmt.Errorf("failed to count quiz questions: %w", err)
	}
	if count >= f.length {
		return nil
	}

	need := f.length - count
	questions, err := f.generateQuestions(ctx, need)
	if err != nil {
		slog.Warn("QuizFlow.ensureBank: generation failed, seeding built-in questions", "error", err)
		questions = seedQuestions()
	}

	for _, q := range questions {
		if err := f.store.AddQuizQuestion(q); err != nil {
			slog.Error("QuizFlow.ensureBank: failed to insert question", "error", err, "questionID", q.ID)
		}
	}
	return nil
}

// generatedQuestion is the JSON shape the LLM is asked to produce.
type generatedQuestion struct {
	Question    string   `json:"question"`
	Choices     []string `json:"choices"`
	Answer      int      `json:"answer"`
	Explanation string   `json:"explanation"`
}

// generateQuestions asks the LLM for n new quiz questions.
func (f *QuizFlow) generateQuestions(ctx context.Context, n int) ([]models.QuizQuestion, error) {
	userPrompt := fmt.Sprintf("栄養・カロリー・置き換えダイエットに関する4択クイズを%d問作成してください。", n)
	raw, err := f.gen.GeneratePrompt(ctx, quizGenSystemPrompt, userPrompt, quizGenMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("quiz generation failed: %w", err)
	}

	var generated []generatedQuestion
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &generated); err != nil {
		return nil, fmt.Errorf("quiz generation returned invalid JSON: %w", err)
	}

	var questions []models.QuizQuestion
	for _, g := range generated {
		q := models.QuizQuestion{
			ID:          uuid.NewString(),
			Question:    g.Question,
			Choices:     g.Choices,
			Answer:      g.Answer,
			Explanation: g.Explanation,
		}
		if err := q.Validate(); err != nil {
			slog.Warn("QuizFlow.generateQuestions: dropping invalid generated question", "error", err)
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("quiz generation produced no valid questions")
	}
	slog.Info("QuizFlow.generateQuestions: generated questions", "requested", n, "valid", len(questions))
	return questions, nil
}

// stripCodeFence removes a Markdown code fence if the model wrapped its JSON
// in one despite instructions.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// parseChoice parses a 1-4 answer, accepting full-width digits.
func parseChoice(text string) (int, bool) {
	normalized := fullWidthDigits.Replace(strings.TrimSpace(text))
	n, err := strconv.Atoi(normalized)
	if err != nil || n < 1 || n > models.QuizChoiceCount {
		return 0, false
	}
	return n, true
}

// renderQuestion formats a question with numbered choices.
func renderQuestion(q models.QuizQuestion, num int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Q%d. %s\n", num, q.Question)
	for i, c := range q.Choices {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	b.WriteString("（1〜4の番号で答えてください）")
	return b.String()
}

// seedQuestions is the built-in question set used when LLM generation is
// unavailable. IDs are stable so repeated seeding is a no-op.
func seedQuestions() []models.QuizQuestion {
	return []models.QuizQuestion{
		{
			ID:          "seed-1",
			Question:    "ご飯一杯（150g）はおよそ何kcal？",
			Choices:     []string{"約100kcal", "約240kcal", "約400kcal", "約550kcal"},
			Answer:      2,
			Explanation: "ご飯一杯（150g）はおよそ240kcalです。",
		},
		{
			ID:          "seed-2",
			Question:    "同じ量で最もカロリーが低いのはどれ？",
			Choices:     []string{"ポテトチップス", "チョコレート", "こんにゃくゼリー", "バターロール"},
			Answer:      3,
			Explanation: "こんにゃくゼリーは水分と食物繊維が中心で、同じ量なら圧倒的に低カロリーです。",
		},
		{
			ID:          "seed-3",
			Question:    "脂質1gあたりのエネルギーはおよそ何kcal？",
			Choices:     []string{"約4kcal", "約7kcal", "約9kcal", "約12kcal"},
			Answer:      3,
			Explanation: "脂質は1gあたり約9kcalで、糖質・たんぱく質（約4kcal）の倍以上です。",
		},
		{
			ID:          "seed-4",
			Question:    "カレーライスを置き換えてカロリーを抑えるのに最も効果的なのは？",
			Choices:     []string{"福神漬けを減らす", "ご飯を白米から雑穀米にする", "ご飯の量を半分にして野菜を足す", "辛さを控えめにする"},
			Answer:      3,
			Explanation: "カレーライスのカロリーの多くはご飯由来なので、量を減らして野菜でかさ増しするのが効果的です。",
		},
		{
			ID:          "seed-5",
			Question:    "鶏肉で最も低カロリーな部位はどれ？",
			Choices:     []string{"もも（皮つき）", "むね（皮つき）", "ささみ", "手羽先"},
			Answer:      3,
			Explanation: "ささみは脂質が非常に少なく、100gあたり約100kcalと鶏肉の中で最も低カロリーです。",
		},
		{
			ID:          "seed-6",
			Question:    "間食を選ぶならカロリーを抑えやすいのはどれ？",
			Choices:     []string{"ドーナツ", "素焼きナッツひとつかみ", "ショートケーキ", "菓子パン"},
			Answer:      2,
			Explanation: "素焼きナッツは少量で満足感が得やすく、砂糖や小麦を使う菓子類より摂取カロリーを抑えやすいです。",
		},
	}
}

// Package flow provides the message router.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/SlimLine/internal/models"
	"github.com/BTreeMap/SlimLine/internal/store"
)

// helpText is the static usage guide.
const helpText = `🍽 SlimLineの使い方
・食べ物の名前を送るとカロリーと置き換え提案を返します
・「クイズ」で栄養クイズ（全5問）が始まります
・「記事」でおすすめ記事一覧、「記事 2」で2番目の記事
・クイズ中は「やめる」で中断できます`

// adminOnlyMessage is returned when a non-admin requests the daily summary.
const adminOnlyMessage = "このコマンドは管理者のみ利用できます🙇"

// followWelcomeMessage greets users who add the bot as a friend.
const followWelcomeMessage = "友だち追加ありがとうございます🍽\n食べ物の名前を送るとカロリーと置き換え提案をお返しします。\n「ヘルプ」で使い方が見られます。"

// Router inspects inbound text and dispatches to the flow for the detected
// mode. A user with an active quiz session is routed to the quiz flow
// regardless of keywords, except for the cancel command.
type Router struct {
	store   store.Store
	advisor *CalorieAdvisor
	quiz    *QuizFlow
	article *ArticleFlow
	summary *SummaryFlow
	admins  map[string]bool
}

// NewRouter wires a router from its flows. adminIDs lists the LINE user IDs
// allowed to request the daily summary.
func NewRouter(st store.Store, advisor *CalorieAdvisor, quiz *QuizFlow, article *ArticleFlow, summary *SummaryFlow, adminIDs []string) *Router {
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		if id != "" {
			admins[id] = true
		}
	}
	return &Router{
		store:   st,
		advisor: advisor,
		quiz:    quiz,
		article: article,
		summary: summary,
		admins:  admins,
	}
}

// IsAdmin reports whether the user may use administrative commands.
func (r *Router) IsAdmin(userID string) bool {
	return r.admins[userID]
}

// WelcomeMessage returns the greeting for new followers.
func (r *Router) WelcomeMessage() string {
	return followWelcomeMessage
}

// Route dispatches an inbound message and returns the mode that handled it
// along with the reply text.
func (r *Router) Route(ctx context.Context, msg models.IncomingMessage) (models.ChatMode, string, error) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return models.ModeHelp, helpText, nil
	}

	// Quiz stickiness: an active session consumes everything except cancel.
	state, err := r.store.GetQuizState(msg.UserID)
	if err != nil {
		return "", "", fmt.Errorf("failed to check quiz session: %w", err)
	}
	if state != nil {
		slog.Debug("Router.Route: active quiz session", "userID", msg.UserID, "questionNum", state.QuestionNum)
		if IsCancelKeyword(text) {
			reply, err := r.quiz.Cancel(ctx, msg.UserID)
			return models.ModeQuiz, reply, err
		}
		reply, err := r.quiz.Answer(ctx, msg.UserID, text)
		return models.ModeQuiz, reply, err
	}

	mode := DetectMode(text)
	slog.Debug("Router.Route: mode detected", "userID", msg.UserID, "mode", mode)

	switch mode {
	case models.ModeQuiz:
		reply, err := r.quiz.Start(ctx, msg.UserID)
		return mode, reply, err
	case models.ModeArticle:
		return mode, r.article.Respond(text), nil
	case models.ModeSummary:
		if !r.IsAdmin(msg.UserID) {
			slog.Warn("Router.Route: summary requested by non-admin", "userID", msg.UserID)
			return mode, adminOnlyMessage, nil
		}
		reply, err := r.summary.RespondToday(ctx)
		return mode, reply, err
	case models.ModeHelp:
		return mode, helpText, nil
	default:
		reply, err := r.advisor.Advise(ctx, text)
		return models.ModeCalorie, reply, err
	}
}

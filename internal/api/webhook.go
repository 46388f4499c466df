// Package api provides the LINE webhook callback handler.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/BTreeMap/SlimLine/internal/models"
)

// callbackHandler receives LINE webhook callbacks (POST /callback).
// The platform requires a fast 200, so events are acknowledged immediately
// and processed asynchronously.
func (s *Server) callbackHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.callbackHandler: processing webhook", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.callbackHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	cb, err := webhook.ParseRequest(s.channelSecret, r)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			slog.Warn("Server.callbackHandler: invalid webhook signature")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		slog.Error("Server.callbackHandler: failed to parse webhook request", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)

	events := make([]webhook.EventInterface, len(cb.Events))
	copy(events, cb.Events)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Server.callbackHandler: panic in event processing", "panic", rec)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), DefaultEventTimeout)
		defer cancel()
		for _, event := range events {
			s.processEvent(ctx, event)
		}
	}()
}

// processEvent dispatches a single webhook event.
func (s *Server) processEvent(ctx context.Context, event webhook.EventInterface) {
	switch e := event.(type) {
	case webhook.MessageEvent:
		s.processMessageEvent(ctx, e)
	case webhook.FollowEvent:
		s.processFollowEvent(ctx, e)
	default:
		slog.Debug("Server.processEvent: ignoring unsupported event type", "eventType", fmt.Sprintf("%T", event))
	}
}

// processMessageEvent routes an inbound text message and replies with the
// flow's answer. Both directions are recorded in the usage log.
func (s *Server) processMessageEvent(ctx context.Context, e webhook.MessageEvent) {
	src, ok := e.Source.(webhook.UserSource)
	if !ok {
		slog.Debug("Server.processMessageEvent: ignoring non-user source")
		return
	}
	text, ok := e.Message.(webhook.TextMessageContent)
	if !ok {
		slog.Debug("Server.processMessageEvent: ignoring non-text message", "messageType", e.Message.GetType(), "userID", src.UserId)
		return
	}

	msg := models.IncomingMessage{
		UserID:     src.UserId,
		Text:       text.Text,
		ReplyToken: e.ReplyToken,
		Timestamp:  e.Timestamp,
	}

	mode, reply, err := s.router.Route(ctx, msg)
	if err != nil {
		slog.Error("Server.processMessageEvent: routing failed", "error", err, "userID", msg.UserID)
		return
	}

	s.recordUsage(msg.UserID, models.DirectionIn, mode, msg.Text)
	if err := s.replier.Reply(ctx, msg.ReplyToken, []string{reply}); err != nil {
		slog.Error("Server.processMessageEvent: failed to send reply", "error", err, "userID", msg.UserID)
		return
	}
	s.recordUsage(msg.UserID, models.DirectionOut, mode, reply)

	slog.Info("Server.processMessageEvent: message handled", "userID", msg.UserID, "mode", mode)
}

// processFollowEvent greets users who add the bot as a friend.
func (s *Server) processFollowEvent(ctx context.Context, e webhook.FollowEvent) {
	src, ok := e.Source.(webhook.UserSource)
	if !ok {
		return
	}
	welcome := s.router.WelcomeMessage()
	if err := s.replier.Reply(ctx, e.ReplyToken, []string{welcome}); err != nil {
		slog.Error("Server.processFollowEvent: failed to send welcome", "error", err, "userID", src.UserId)
		return
	}
	s.recordUsage(src.UserId, models.DirectionOut, models.ModeHelp, welcome)
	slog.Info("Server.processFollowEvent: new follower greeted", "userID", src.UserId)
}

// recordUsage appends one row to the usage log. Logging failures are
// reported but never interrupt message handling.
func (s *Server) recordUsage(userID string, direction models.MessageDirection, mode models.ChatMode, body string) {
	rec := models.NewUsageRecord(uuid.NewString(), userID, direction, mode, body)
	if err := s.st.AddUsage(rec); err != nil {
		slog.Error("Server.recordUsage: failed to record usage", "error", err, "userID", userID, "direction", direction)
	}
}

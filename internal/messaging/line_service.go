// Package messaging provides the LINE implementation of the Service interface.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// lineUserIDRegex matches LINE user identifiers ("U" + 32 hex characters).
var lineUserIDRegex = regexp.MustCompile(`^U[0-9a-f]{32}$`)

// lineMessagingAPI defines the subset of the LINE messaging API used by the service.
type lineMessagingAPI interface {
	PushMessage(request *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error)
	ReplyMessage(request *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

// LineService implements the Service interface using the LINE messaging API.
type LineService struct {
	client lineMessagingAPI
}

// NewLineService creates a LineService from a channel access token.
func NewLineService(channelToken string) (*LineService, error) {
	if channelToken == "" {
		return nil, fmt.Errorf("LINE channel access token must be provided")
	}
	client, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE messaging API client: %w", err)
	}
	slog.Debug("LineService initialized")
	return &LineService{client: client}, nil
}

// NewLineServiceWithClient creates a LineService with an injected API client.
// Used by tests to substitute a fake client.
func NewLineServiceWithClient(client lineMessagingAPI) *LineService {
	return &LineService{client: client}
}

// ValidateAndCanonicalizeRecipient validates a LINE user ID.
// LINE user IDs are "U" followed by 32 lowercase hex characters.
func (s *LineService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	canonical := strings.TrimSpace(recipient)
	if canonical == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	if !lineUserIDRegex.MatchString(canonical) {
		return "", fmt.Errorf("invalid LINE user ID: %q", recipient)
	}
	return canonical, nil
}

// SendMessage pushes a text message to a LINE user.
func (s *LineService) SendMessage(ctx context.Context, to string, body string) error {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("LineService SendMessage validation error", "error", err, "to", to)
		return err
	}

	_, err = s.client.PushMessage(&messaging_api.PushMessageRequest{
		To:       canonicalTo,
		Messages: []messaging_api.MessageInterface{messaging_api.TextMessage{Text: body}},
	}, "")
	if err != nil {
		slog.Error("LineService SendMessage push failed", "error", err, "to", canonicalTo)
		return fmt.Errorf("failed to push LINE message to %s: %w", canonicalTo, err)
	}
	slog.Debug("LineService SendMessage succeeded", "to", canonicalTo, "body_length", len(body))
	return nil
}

// Reply sends text messages using a webhook reply token. Reply tokens are
// single-use and expire quickly, so failures are expected on redelivery.
func (s *LineService) Reply(ctx context.Context, replyToken string, bodies []string) error {
	if replyToken == "" {
		return fmt.Errorf("reply token cannot be empty")
	}
	if len(bodies) == 0 {
		return fmt.Errorf("no messages to reply with")
	}

	messages := make([]messaging_api.MessageInterface, 0, len(bodies))
	for _, body := range bodies {
		messages = append(messages, messaging_api.TextMessage{Text: body})
	}

	_, err := s.client.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	if err != nil {
		slog.Error("LineService Reply failed", "error", err)
		return fmt.Errorf("failed to reply to LINE message: %w", err)
	}
	slog.Debug("LineService Reply succeeded", "message_count", len(messages))
	return nil
}

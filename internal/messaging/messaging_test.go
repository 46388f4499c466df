package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// fakeLineAPI records pushed and replied messages.
type fakeLineAPI struct {
	pushed   []*messaging_api.PushMessageRequest
	replied  []*messaging_api.ReplyMessageRequest
	pushErr  error
	replyErr error
}

func (f *fakeLineAPI) PushMessage(req *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error) {
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	f.pushed = append(f.pushed, req)
	return &messaging_api.PushMessageResponse{}, nil
}

func (f *fakeLineAPI) ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error) {
	if f.replyErr != nil {
		return nil, f.replyErr
	}
	f.replied = append(f.replied, req)
	return &messaging_api.ReplyMessageResponse{}, nil
}

const validLineUserID = "U0123456789abcdef0123456789abcdef"

func TestLineValidateAndCanonicalizeRecipient(t *testing.T) {
	s := NewLineServiceWithClient(&fakeLineAPI{})

	got, err := s.ValidateAndCanonicalizeRecipient("  " + validLineUserID + "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != validLineUserID {
		t.Errorf("expected trimmed ID, got %q", got)
	}

	for _, bad := range []string{"", "12345", "Uxyz", "u0123456789abcdef0123456789abcdef"} {
		if _, err := s.ValidateAndCanonicalizeRecipient(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestLineSendMessage(t *testing.T) {
	fake := &fakeLineAPI{}
	s := NewLineServiceWithClient(fake)

	if err := s.SendMessage(context.Background(), validLineUserID, "こんにちは"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.pushed) != 1 {
		t.Fatalf("expected 1 push, got %d", len(fake.pushed))
	}
	if fake.pushed[0].To != validLineUserID {
		t.Errorf("unexpected recipient: %s", fake.pushed[0].To)
	}

	if err := s.SendMessage(context.Background(), "bogus", "x"); err == nil {
		t.Error("expected validation error for bogus recipient")
	}
}

func TestLineReply(t *testing.T) {
	fake := &fakeLineAPI{}
	s := NewLineServiceWithClient(fake)

	if err := s.Reply(context.Background(), "token123", []string{"一つ目", "二つ目"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.replied) != 1 {
		t.Fatalf("expected 1 reply call, got %d", len(fake.replied))
	}
	if len(fake.replied[0].Messages) != 2 {
		t.Errorf("expected 2 messages in reply, got %d", len(fake.replied[0].Messages))
	}

	if err := s.Reply(context.Background(), "", []string{"x"}); err == nil {
		t.Error("expected error for empty reply token")
	}
	if err := s.Reply(context.Background(), "token", nil); err == nil {
		t.Error("expected error for empty message list")
	}

	fake.replyErr = errors.New("token expired")
	if err := s.Reply(context.Background(), "token", []string{"x"}); err == nil {
		t.Error("expected error when reply API fails")
	}
}

// fakeSMSSender records sent SMS messages.
type fakeSMSSender struct {
	to   []string
	body []string
	err  error
}

func (f *fakeSMSSender) SendSMS(ctx context.Context, to string, body string) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.body = append(f.body, body)
	return nil
}

func TestTwilioValidateAndCanonicalizeRecipient(t *testing.T) {
	s := NewTwilioService(&fakeSMSSender{})

	got, err := s.ValidateAndCanonicalizeRecipient("+81 90-1234-5678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "819012345678" {
		t.Errorf("expected digits only, got %q", got)
	}

	if _, err := s.ValidateAndCanonicalizeRecipient(""); err == nil {
		t.Error("expected error for empty recipient")
	}
	if _, err := s.ValidateAndCanonicalizeRecipient("abc"); err == nil {
		t.Error("expected error for non-numeric recipient")
	}
	if _, err := s.ValidateAndCanonicalizeRecipient("12345"); err == nil {
		t.Error("expected error for too-short number")
	}
}

func TestTwilioSendMessage(t *testing.T) {
	fake := &fakeSMSSender{}
	s := NewTwilioService(fake)

	if err := s.SendMessage(context.Background(), "+819012345678", "daily summary"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.to) != 1 || fake.to[0] != "+819012345678" {
		t.Errorf("unexpected SMS recipients: %v", fake.to)
	}

	s.Stop()
	if err := s.SendMessage(context.Background(), "+819012345678", "x"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped after Stop, got %v", err)
	}
}

// Package messaging provides the Twilio SMS implementation of the Service interface.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/BTreeMap/SlimLine/internal/twiliosms"
)

// phoneNumberRegex strips everything except digits.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// MinPhoneNumberDigits is the minimum digit count accepted for a phone number.
const MinPhoneNumberDigits = 6

// TwilioService implements the Service interface using the Twilio SMS API.
// It serves the operator summary channel when Twilio credentials are configured.
type TwilioService struct {
	client  twiliosms.Sender
	mu      sync.RWMutex
	stopped bool
}

// NewTwilioService creates a new TwilioService around an SMS sender.
func NewTwilioService(client twiliosms.Sender) *TwilioService {
	return &TwilioService{client: client}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a phone number.
// It removes all non-numeric characters and validates the result has at least
// MinPhoneNumberDigits digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinPhoneNumberDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinPhoneNumberDigits)
	}

	if recipient != canonical {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// SendMessage sends an SMS via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}

	if err := s.client.SendSMS(ctx, "+"+canonicalTo, body); err != nil {
		slog.Error("TwilioService SendMessage failed", "error", err, "to", canonicalTo)
		return err
	}
	slog.Debug("TwilioService SendMessage succeeded", "to", canonicalTo)
	return nil
}

// Stop marks the service stopped; subsequent sends fail with ErrServiceStopped.
func (s *TwilioService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

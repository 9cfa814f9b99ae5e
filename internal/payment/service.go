package payment

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/depositdefender/defender/internal/config"
)

// checkoutSessionPlaceholder is substituted by the provider on redirect
const checkoutSessionPlaceholder = "{CHECKOUT_SESSION_ID}"

// Checkout is what a client needs to start paying
type Checkout struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// Verification is the outcome of polling a session
type Verification struct {
	Verified bool   `json:"verified"`
	LetterID string `json:"letterId,omitempty"`
}

// Service prices the unlock and talks to the provider
type Service struct {
	provider    Provider
	baseURL     string
	currency    string
	unitAmount  int64
	name        string
	description string
}

// NewService wraps a provider; a nil provider makes every call ErrNotConfigured
func NewService(provider Provider, cfg config.PaymentConfig, baseURL string) *Service {
	return &Service{
		provider:    provider,
		baseURL:     strings.TrimRight(baseURL, "/"),
		currency:    cfg.Currency,
		unitAmount:  cfg.UnitAmount,
		name:        cfg.ProductName,
		description: cfg.ProductDescription,
	}
}

// Configured reports whether a provider is available
func (s *Service) Configured() bool {
	return s.provider != nil
}

// SuccessURL is where the provider sends the client after paying
func (s *Service) SuccessURL(letterID string) string {
	return s.baseURL + "/success?session_id=" + checkoutSessionPlaceholder +
		"&letter_id=" + url.QueryEscape(letterID)
}

// CreateSession starts a checkout tagged with the letter id
func (s *Service) CreateSession(ctx context.Context, letterID string) (*Checkout, error) {
	if s.provider == nil {
		return nil, ErrNotConfigured
	}

	sess, err := s.provider.CreateSession(ctx, CheckoutRequest{
		LetterID:           letterID,
		ProductName:        s.name,
		ProductDescription: s.description,
		Currency:           s.currency,
		UnitAmount:         s.unitAmount,
		SuccessURL:         s.SuccessURL(letterID),
		CancelURL:          s.baseURL,
	})
	if err != nil {
		return nil, err
	}
	return &Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

// VerifySession reports verified only when the provider says the session is paid.
// An unknown session is unverified rather than an error.
func (s *Service) VerifySession(ctx context.Context, sessionID string) (*Verification, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSessionID
	}
	if s.provider == nil {
		return nil, ErrNotConfigured
	}

	sess, err := s.provider.GetSession(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return &Verification{Verified: false}, nil
	}
	if err != nil {
		return nil, err
	}

	v := &Verification{Verified: sess.Paid}
	if sess.Paid {
		v.LetterID = sess.LetterID
	}
	return v, nil
}

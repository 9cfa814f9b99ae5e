// Package payment creates and verifies single-item checkout sessions.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/depositdefender/defender/internal/config"
)

var (
	// ErrMissingSessionID is returned when verification is asked for nothing
	ErrMissingSessionID = errors.New("session id is required")

	// ErrNotConfigured wraps config.ErrMissingCredential so callers can report it as configuration
	ErrNotConfigured = fmt.Errorf("STRIPE_SECRET_KEY: %w", config.ErrMissingCredential)

	// ErrSessionNotFound means the provider does not know the session
	ErrSessionNotFound = errors.New("payment session not found")
)

// Provider is a hosted checkout backend
type Provider interface {
	Name() string
	CreateSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}

// CheckoutRequest describes one fixed-price, single-item checkout
type CheckoutRequest struct {
	LetterID           string
	ProductName        string
	ProductDescription string
	Currency           string
	UnitAmount         int64
	SuccessURL         string
	CancelURL          string
}

// Session is the provider-neutral view of a checkout session
type Session struct {
	ID       string
	URL      string
	Paid     bool
	LetterID string
}

// NewProvider creates a provider from config; an empty provider name disables payments
func NewProvider(cfg config.PaymentConfig) (Provider, error) {
	switch cfg.Provider {
	case "stripe":
		p, err := NewStripeProvider(cfg.SecretKey, cfg.APIURL)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s (supported: stripe)", cfg.Provider)
	}
}

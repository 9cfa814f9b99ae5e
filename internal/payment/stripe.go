package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/depositdefender/defender/internal/config"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/checkout/session"
)

const metadataLetterID = "letterId"

// StripeProvider implements Provider with Stripe Checkout
type StripeProvider struct {
	client *session.Client
}

// NewStripeProvider builds a client; apiURL overrides the Stripe API host when set
func NewStripeProvider(secretKey, apiURL string) (*StripeProvider, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY: %w", config.ErrMissingCredential)
	}

	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if apiURL != "" {
		backendCfg.URL = stripe.String(apiURL)
	}

	return &StripeProvider{
		client: &session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: secretKey,
		},
	}, nil
}

func (p *StripeProvider) Name() string {
	return "stripe"
}

func (p *StripeProvider) CreateSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.ProductName),
						Description: stripe.String(req.ProductDescription),
					},
					UnitAmount: stripe.Int64(req.UnitAmount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata(metadataLetterID, req.LetterID)

	s, err := p.client.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout create failed: %w", err)
	}
	return toSession(s), nil
}

func (p *StripeProvider) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.client.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && (stripeErr.HTTPStatusCode == http.StatusNotFound || stripeErr.Code == stripe.ErrorCodeResourceMissing) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("stripe checkout retrieve failed: %w", err)
	}
	return toSession(s), nil
}

func toSession(s *stripe.CheckoutSession) *Session {
	return &Session{
		ID:       s.ID,
		URL:      s.URL,
		Paid:     s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		LetterID: s.Metadata[metadataLetterID],
	}
}

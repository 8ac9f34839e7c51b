package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe authorizer operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

// ErrAuthorizationDeclined is returned when Stripe rejects the charge or
// leaves the intent in a state that requires further customer action.
var ErrAuthorizationDeclined = errors.New("payments: authorization declined")

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeAuthorizerConfig configures the StripeAuthorizer.
type StripeAuthorizerConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    StripeLogger
	Clock     func() time.Time

	// Intents overrides the Stripe client, used by tests.
	Intents stripePaymentIntentAPI
}

// StripeAuthorizer places an authorization hold against a stored payment
// method. Capture and refund flows are settled out of band by the payments
// back office, so the adapter only needs intent creation.
type StripeAuthorizer struct {
	intents stripePaymentIntentAPI
	account string
	clock   func() time.Time
	logger  StripeLogger
}

// NewStripeAuthorizer constructs a StripeAuthorizer from the given configuration.
func NewStripeAuthorizer(cfg StripeAuthorizerConfig) (*StripeAuthorizer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: api key is required")
	}

	intents := cfg.Intents
	if intents == nil {
		sc := client.New(apiKey, cfg.Backends)
		intents = sc.PaymentIntents
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeAuthorizer{
		intents: intents,
		account: strings.TrimSpace(cfg.AccountID),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Authorize places a manual-capture hold for amount against paymentRef.
// paymentRef must be a Stripe payment method identifier.
func (a *StripeAuthorizer) Authorize(ctx context.Context, paymentRef string, amount int64, currency string) error {
	if a == nil {
		return errors.New("stripe: authorizer is nil")
	}
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return errors.New("stripe: payment reference is required")
	}
	if amount <= 0 {
		return fmt.Errorf("stripe: amount must be positive, got %d", amount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(strings.ToLower(currency)),
		PaymentMethod: stripe.String(paymentRef),
		Confirm:       stripe.Bool(true),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
	}
	params.Context = ctx
	if a.account != "" {
		params.SetStripeAccount(a.account)
	}

	started := a.clock()
	intent, err := a.intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			a.logger(ctx, "payments.stripe.authorize.declined", map[string]any{
				"paymentRef": paymentRef,
				"code":       string(stripeErr.Code),
			})
			return fmt.Errorf("%w: %s", ErrAuthorizationDeclined, stripeErr.Code)
		}
		return fmt.Errorf("stripe: create payment intent: %w", err)
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusRequiresCapture, stripe.PaymentIntentStatusSucceeded:
		a.logger(ctx, "payments.stripe.authorize.held", map[string]any{
			"paymentIntent": intent.ID,
			"amount":        intent.Amount,
			"currency":      string(intent.Currency),
			"elapsedMs":     a.clock().Sub(started).Milliseconds(),
		})
		return nil
	default:
		a.logger(ctx, "payments.stripe.authorize.incomplete", map[string]any{
			"paymentIntent": intent.ID,
			"status":        string(intent.Status),
		})
		return fmt.Errorf("%w: intent %s is %s", ErrAuthorizationDeclined, intent.ID, intent.Status)
	}
}

package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v78"
)

type stubIntentAPI struct {
	newFunc func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func (s *stubIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.newFunc(params)
}

func TestStripeAuthorizerHoldsFunds(t *testing.T) {
	var captured *stripe.PaymentIntentParams
	authorizer, err := NewStripeAuthorizer(StripeAuthorizerConfig{
		Intents: &stubIntentAPI{
			newFunc: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
				captured = params
				return &stripe.PaymentIntent{
					ID:       "pi_123",
					Amount:   18700,
					Currency: stripe.CurrencyUSD,
					Status:   stripe.PaymentIntentStatusRequiresCapture,
				}, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("NewStripeAuthorizer returned error: %v", err)
	}

	if err := authorizer.Authorize(context.Background(), "pm_card", 18700, "USD"); err != nil {
		t.Fatalf("Authorize returned error: %v", err)
	}

	if captured == nil {
		t.Fatal("expected payment intent creation")
	}
	if got := *captured.Amount; got != 18700 {
		t.Fatalf("expected amount 18700, got %d", got)
	}
	if got := *captured.Currency; got != "usd" {
		t.Fatalf("expected lowercase currency, got %q", got)
	}
	if got := *captured.CaptureMethod; got != string(stripe.PaymentIntentCaptureMethodManual) {
		t.Fatalf("expected manual capture, got %q", got)
	}
	if captured.Confirm == nil || !*captured.Confirm {
		t.Fatal("expected intent to be confirmed on creation")
	}
}

func TestStripeAuthorizerCardDecline(t *testing.T) {
	authorizer, err := NewStripeAuthorizer(StripeAuthorizerConfig{
		Intents: &stubIntentAPI{
			newFunc: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
				return nil, &stripe.Error{
					Type: stripe.ErrorTypeCard,
					Code: stripe.ErrorCodeCardDeclined,
				}
			},
		},
	})
	if err != nil {
		t.Fatalf("NewStripeAuthorizer returned error: %v", err)
	}

	err = authorizer.Authorize(context.Background(), "pm_card", 5000, "USD")
	if !errors.Is(err, ErrAuthorizationDeclined) {
		t.Fatalf("expected ErrAuthorizationDeclined, got %v", err)
	}
}

func TestStripeAuthorizerIncompleteIntent(t *testing.T) {
	authorizer, err := NewStripeAuthorizer(StripeAuthorizerConfig{
		Intents: &stubIntentAPI{
			newFunc: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
				return &stripe.PaymentIntent{
					ID:     "pi_456",
					Status: stripe.PaymentIntentStatusRequiresAction,
				}, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("NewStripeAuthorizer returned error: %v", err)
	}

	err = authorizer.Authorize(context.Background(), "pm_card", 5000, "USD")
	if !errors.Is(err, ErrAuthorizationDeclined) {
		t.Fatalf("expected ErrAuthorizationDeclined, got %v", err)
	}
}

func TestStripeAuthorizerValidatesInput(t *testing.T) {
	if _, err := NewStripeAuthorizer(StripeAuthorizerConfig{}); err == nil {
		t.Fatal("expected error without api key or client override")
	}

	authorizer, err := NewStripeAuthorizer(StripeAuthorizerConfig{
		Intents: &stubIntentAPI{
			newFunc: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
				t.Fatal("no intent may be created for invalid input")
				return nil, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("NewStripeAuthorizer returned error: %v", err)
	}

	if err := authorizer.Authorize(context.Background(), "  ", 100, "USD"); err == nil {
		t.Fatal("expected error for empty payment reference")
	}
	if err := authorizer.Authorize(context.Background(), "pm_card", 0, "USD"); err == nil {
		t.Fatal("expected error for non-positive amount")
	}
}

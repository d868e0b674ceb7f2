// Package payment wraps the Stripe SDK behind the gateway the application
// services use for webhook verification and checkout-session reads.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/govcon/backend/internal/domain/shared"
)

// CheckoutSession is the slice of a Stripe checkout session the entitlement
// flow needs
type CheckoutSession struct {
	ID                string
	Email             string
	Name              string
	AmountTotal       int64
	Created           time.Time
	ProviderProductID string
	Metadata          map[string]string
}

// StripeGateway talks to both the live and test Stripe accounts. Webhook
// signature verification tries the live secret first and falls back to the
// test secret, which is how test-mode events are told apart.
type StripeGateway struct {
	live *client.API
	test *client.API

	liveWebhookSecret string
	testWebhookSecret string
}

// StripeConfig holds the API keys and webhook signing secrets for both modes
type StripeConfig struct {
	LiveSecretKey     string
	TestSecretKey     string
	LiveWebhookSecret string
	TestWebhookSecret string
}

// NewStripeGateway creates a gateway from the configured keys. Missing test
// keys are tolerated; test-mode operations then fail with ErrNotConfigured.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.LiveSecretKey == "" {
		return nil, fmt.Errorf("stripe live secret key is required")
	}

	g := &StripeGateway{
		liveWebhookSecret: cfg.LiveWebhookSecret,
		testWebhookSecret: cfg.TestWebhookSecret,
	}
	g.live = &client.API{}
	g.live.Init(cfg.LiveSecretKey, nil)
	if cfg.TestSecretKey != "" {
		g.test = &client.API{}
		g.test.Init(cfg.TestSecretKey, nil)
	}
	return g, nil
}

// VerifySignature checks the webhook payload against the live signing secret,
// then the test one. The returned bool reports whether the event came from
// test mode.
func (g *StripeGateway) VerifySignature(payload []byte, signature string) (stripe.Event, bool, error) {
	if g.liveWebhookSecret != "" {
		event, err := webhook.ConstructEvent(payload, signature, g.liveWebhookSecret)
		if err == nil {
			return event, false, nil
		}
	}
	if g.testWebhookSecret != "" {
		event, err := webhook.ConstructEvent(payload, signature, g.testWebhookSecret)
		if err == nil {
			return event, true, nil
		}
	}
	return stripe.Event{}, false, fmt.Errorf("webhook signature verification failed")
}

func (g *StripeGateway) api(testMode bool) (*client.API, error) {
	if testMode {
		if g.test == nil {
			return nil, shared.ErrNotConfigured
		}
		return g.test, nil
	}
	return g.live, nil
}

// SessionProductID fetches the first line item of a checkout session and
// returns its Stripe product ID. Sessions without line items return "".
func (g *StripeGateway) SessionProductID(ctx context.Context, sessionID string, testMode bool) (string, error) {
	api, err := g.api(testMode)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx
	params.AddExpand("data.price.product")
	params.Limit = stripe.Int64(1)

	iter := api.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		item := iter.LineItem()
		if item.Price != nil && item.Price.Product != nil {
			return item.Price.Product.ID, nil
		}
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to list line items for session %s: %w", sessionID, err)
	}
	return "", nil
}

// ListCompletedSessions walks every paid checkout session created at or after
// since, resolving each session's product ID. Used by the admin backfill.
func (g *StripeGateway) ListCompletedSessions(ctx context.Context, since time.Time, testMode bool) ([]CheckoutSession, error) {
	api, err := g.api(testMode)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionListParams{}
	params.Context = ctx
	params.Filters.AddFilter("limit", "", "100")
	if !since.IsZero() {
		params.CreatedRange = &stripe.RangeQueryParams{GreaterThanOrEqual: since.Unix()}
	}

	var sessions []CheckoutSession
	iter := api.CheckoutSessions.List(params)
	for iter.Next() {
		s := iter.CheckoutSession()
		if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			continue
		}
		cs := CheckoutSession{
			ID:          s.ID,
			AmountTotal: s.AmountTotal,
			Created:     time.Unix(s.Created, 0),
			Metadata:    s.Metadata,
		}
		if s.CustomerDetails != nil {
			cs.Email = s.CustomerDetails.Email
			cs.Name = s.CustomerDetails.Name
		}
		if cs.Email == "" {
			cs.Email = s.CustomerEmail
		}
		productID, err := g.SessionProductID(ctx, s.ID, testMode)
		if err != nil {
			return nil, err
		}
		cs.ProviderProductID = productID
		sessions = append(sessions, cs)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checkout sessions: %w", err)
	}
	return sessions, nil
}

package entitlement

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/domain/shared"
)

// PaymentGateway is the slice of the Stripe gateway the webhook flow needs
type PaymentGateway interface {
	VerifySignature(payload []byte, signature string) (stripe.Event, bool, error)
	SessionProductID(ctx context.Context, sessionID string, testMode bool) (string, error)
}

// WebhookOutcome tells the handler what happened to an event. Every outcome
// maps to a 200 response; Stripe only needs to know delivery succeeded.
// Received is true on every acknowledged event and Duplicate marks replays,
// which is the contract webhook monitoring tooling reads.
type WebhookOutcome struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Status    string `json:"status"`
	EventType string `json:"event_type,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	Product   string `json:"product,omitempty"`
	Bundle    bool   `json:"bundle,omitempty"`
	Email     string `json:"email,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeRefunded  = "refunded"
	OutcomeSkipped   = "skipped"
)

// WebhookService turns verified Stripe events into ledger rows and grants
type WebhookService struct {
	gateway   PaymentGateway
	guard     shared.EventGuard
	purchases entitlement.PurchaseRepository
	grants    *GrantService
	catalog   *catalog.Catalog
	logger    *zap.Logger
}

// NewWebhookService creates a webhook service
func NewWebhookService(
	gateway PaymentGateway,
	guard shared.EventGuard,
	purchases entitlement.PurchaseRepository,
	grants *GrantService,
	cat *catalog.Catalog,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		gateway:   gateway,
		guard:     guard,
		purchases: purchases,
		grants:    grants,
		catalog:   cat,
		logger:    logger,
	}
}

// HandleEvent verifies the payload signature and dispatches by event type.
// Unknown event types are acknowledged without action so Stripe stops
// retrying them.
func (s *WebhookService) HandleEvent(ctx context.Context, payload []byte, signature string) (*WebhookOutcome, error) {
	outcome, err := s.dispatch(ctx, payload, signature)
	if outcome != nil {
		outcome.Received = true
		outcome.Duplicate = outcome.Status == OutcomeDuplicate
	}
	return outcome, err
}

func (s *WebhookService) dispatch(ctx context.Context, payload []byte, signature string) (*WebhookOutcome, error) {
	event, testMode, err := s.gateway.VerifySignature(payload, signature)
	if err != nil {
		return nil, shared.ErrUnauthorized
	}

	if !s.guard.MarkSeen(event.ID) {
		s.logger.Info("webhook event already seen, skipping",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return &WebhookOutcome{Status: OutcomeDuplicate, EventType: string(event.Type)}, nil
	}

	switch event.Type {
	case "checkout.session.completed":
		outcome, err := s.handleCheckoutCompleted(ctx, event, testMode)
		if err != nil {
			// let a retried delivery through the fast-path guard
			s.guard.Forget(event.ID)
		}
		return outcome, err
	case "charge.refunded":
		outcome, err := s.handleChargeRefunded(ctx, event)
		if err != nil {
			s.guard.Forget(event.ID)
		}
		return outcome, err
	default:
		s.logger.Debug("ignoring webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
		return &WebhookOutcome{Status: OutcomeIgnored, EventType: string(event.Type)}, nil
	}
}

func (s *WebhookService) handleCheckoutCompleted(ctx context.Context, event stripe.Event, testMode bool) (*WebhookOutcome, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, shared.NewDomainError("INVALID_EVENT", "malformed checkout session payload")
	}

	emailAddr := ""
	name := ""
	if session.CustomerDetails != nil {
		emailAddr = session.CustomerDetails.Email
		name = session.CustomerDetails.Name
	}
	if emailAddr == "" {
		emailAddr = session.CustomerEmail
	}
	if emailAddr == "" {
		// answered with a client error so Stripe retries; the email may
		// appear on a later delivery of the same session
		s.logger.Warn("checkout session has no customer email",
			zap.String("session_id", session.ID))
		return nil, shared.NewDomainError("INVALID_EVENT", "checkout session has no customer email")
	}
	emailAddr = entitlement.NormalizeEmail(emailAddr)

	// the ledger is the authoritative duplicate guard; the lookup fails
	// open so a transient read error cannot drop a real purchase
	if existing, err := s.purchases.FindByOrderID(ctx, session.ID); err == nil && existing != nil {
		s.logger.Info("order already recorded, skipping",
			zap.String("order_id", session.ID),
			zap.String("email", emailAddr))
		return &WebhookOutcome{Status: OutcomeDuplicate, EventType: string(event.Type), OrderID: session.ID}, nil
	} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
		s.logger.Warn("duplicate check failed, proceeding",
			zap.String("order_id", session.ID), zap.Error(err))
	}

	productID, err := s.resolveProduct(ctx, &session, testMode)
	if err != nil {
		return nil, err
	}
	if productID == "" {
		s.logger.Warn("checkout session resolved to no known product, skipping",
			zap.String("session_id", session.ID),
			zap.String("email", emailAddr))
		return &WebhookOutcome{Status: OutcomeSkipped, EventType: string(event.Type), OrderID: session.ID, Detail: "unknown product"}, nil
	}

	purchase := entitlement.NewPurchase(emailAddr, productID, s.catalog.DisplayName(productID), session.ID, session.AmountTotal)
	if err := s.purchases.Insert(ctx, purchase); err != nil {
		if errors.Is(err, shared.ErrDuplicateOrder) {
			return &WebhookOutcome{Status: OutcomeDuplicate, EventType: string(event.Type), OrderID: session.ID}, nil
		}
		return nil, err
	}

	if _, err := s.grants.ApplyGrant(ctx, emailAddr, name, productID); err != nil {
		// the purchase is recorded; the repair tools can re-apply the grant
		s.logger.Error("failed to apply grant after recording purchase",
			zap.String("order_id", session.ID),
			zap.String("email", emailAddr),
			zap.Error(err))
	}

	s.logger.Info("purchase processed",
		zap.String("order_id", session.ID),
		zap.String("email", emailAddr),
		zap.String("product_id", string(productID)),
		zap.Bool("test_mode", testMode))
	return &WebhookOutcome{
		Status:    OutcomeProcessed,
		EventType: string(event.Type),
		OrderID:   session.ID,
		Product:   string(productID),
		Bundle:    s.catalog.IsBundle(productID),
		Email:     emailAddr,
	}, nil
}

// resolveProduct maps a checkout session to a catalog product: explicit
// product_id metadata wins, then the Stripe product ID on the first line item
func (s *WebhookService) resolveProduct(ctx context.Context, session *stripe.CheckoutSession, testMode bool) (catalog.ProductID, error) {
	if raw, ok := session.Metadata["product_id"]; ok {
		if product, found := s.catalog.Get(catalog.ProductID(raw)); found {
			return product.ID, nil
		}
	}

	providerID, err := s.gateway.SessionProductID(ctx, session.ID, testMode)
	if err != nil {
		return "", err
	}
	if id, ok := s.catalog.ResolveProviderProduct(providerID); ok {
		return id, nil
	}
	return "", nil
}

// handleChargeRefunded flips the ledger row to refunded. Access already
// granted stays in place; revocation is a manual support decision.
func (s *WebhookService) handleChargeRefunded(ctx context.Context, event stripe.Event) (*WebhookOutcome, error) {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return nil, shared.NewDomainError("INVALID_EVENT", "malformed charge payload")
	}

	orderID := charge.Metadata["order_id"]
	emailAddr := ""
	if charge.BillingDetails != nil {
		emailAddr = entitlement.NormalizeEmail(charge.BillingDetails.Email)
	}
	if orderID == "" || emailAddr == "" {
		s.logger.Warn("refund event missing order reference or email, skipping",
			zap.String("event_id", event.ID),
			zap.String("charge_id", charge.ID))
		return &WebhookOutcome{Status: OutcomeSkipped, EventType: string(event.Type), Detail: "missing order reference"}, nil
	}

	if err := s.purchases.MarkRefunded(ctx, orderID, emailAddr); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("refund for unknown order, skipping",
				zap.String("order_id", orderID),
				zap.String("email", emailAddr))
			return &WebhookOutcome{Status: OutcomeSkipped, EventType: string(event.Type), OrderID: orderID, Detail: "order not found"}, nil
		}
		return nil, err
	}

	s.logger.Info("purchase marked refunded",
		zap.String("order_id", orderID),
		zap.String("email", emailAddr))
	return &WebhookOutcome{Status: OutcomeRefunded, EventType: string(event.Type), OrderID: orderID}, nil
}

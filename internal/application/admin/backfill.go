// Package admin holds the operator-facing repair and audit tools: ledger
// backfill from the payment provider, legacy cleanup, flag repair, drift
// verification, revenue reporting, and bulk access mail.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appent "github.com/govcon/backend/internal/application/entitlement"
	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/domain/shared"
	"github.com/govcon/backend/internal/infrastructure/payment"
)

// SessionLister is the payment-provider read the backfill needs
type SessionLister interface {
	ListCompletedSessions(ctx context.Context, since time.Time, testMode bool) ([]payment.CheckoutSession, error)
}

// BackfillService rebuilds missing ledger rows from the provider's completed
// checkout sessions and re-applies the grants those rows entitle
type BackfillService struct {
	sessions  SessionLister
	purchases entitlement.PurchaseRepository
	grants    *appent.GrantService
	catalog   *catalog.Catalog
	logger    *zap.Logger
}

// NewBackfillService creates a backfill service
func NewBackfillService(
	sessions SessionLister,
	purchases entitlement.PurchaseRepository,
	grants *appent.GrantService,
	cat *catalog.Catalog,
	logger *zap.Logger,
) *BackfillService {
	return &BackfillService{
		sessions:  sessions,
		purchases: purchases,
		grants:    grants,
		catalog:   cat,
		logger:    logger,
	}
}

// BackfillResult summarizes one backfill run
type BackfillResult struct {
	Scanned        int      `json:"scanned"`
	Inserted       int      `json:"inserted"`
	AlreadyPresent int      `json:"already_present"`
	UnknownProduct int      `json:"unknown_product"`
	NoEmail        int      `json:"no_email"`
	GrantsApplied  int      `json:"grants_applied"`
	DryRun         bool     `json:"dry_run"`
	InsertedOrders []string `json:"inserted_orders,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// Run scans paid sessions created in the last days days and records any the
// ledger is missing. With dryRun it only reports what would be inserted.
func (s *BackfillService) Run(ctx context.Context, days int, testMode, dryRun bool) (*BackfillResult, error) {
	days = clampDays(days)
	since := time.Now().AddDate(0, 0, -days)

	sessions, err := s.sessions.ListCompletedSessions(ctx, since, testMode)
	if err != nil {
		return nil, err
	}

	result := &BackfillResult{DryRun: dryRun}
	for _, session := range sessions {
		result.Scanned++

		if session.Email == "" {
			result.NoEmail++
			continue
		}
		productID, ok := s.resolveSessionProduct(session)
		if !ok {
			result.UnknownProduct++
			s.logger.Warn("backfill session has no known product",
				zap.String("session_id", session.ID),
				zap.String("provider_product_id", session.ProviderProductID))
			continue
		}

		if _, err := s.purchases.FindByOrderID(ctx, session.ID); err == nil {
			result.AlreadyPresent++
			continue
		} else if !errors.Is(err, shared.ErrNotFound) {
			// one bad row must not abort the batch
			s.logger.Error("backfill duplicate check failed",
				zap.String("session_id", session.ID), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: duplicate check failed: %v", session.ID, err))
			continue
		}

		if dryRun {
			result.Inserted++
			result.InsertedOrders = append(result.InsertedOrders, session.ID)
			continue
		}

		purchase := entitlement.NewPurchase(session.Email, productID, s.catalog.DisplayName(productID), session.ID, session.AmountTotal)
		purchase.CreatedAt = session.Created
		purchase.UpdatedAt = session.Created
		if err := s.purchases.Insert(ctx, purchase); err != nil {
			if errors.Is(err, shared.ErrDuplicateOrder) {
				result.AlreadyPresent++
				continue
			}
			s.logger.Error("backfill insert failed",
				zap.String("session_id", session.ID), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: insert failed: %v", session.ID, err))
			continue
		}
		result.Inserted++
		result.InsertedOrders = append(result.InsertedOrders, session.ID)

		if _, err := s.grants.ApplyGrant(ctx, session.Email, session.Name, productID); err != nil {
			s.logger.Error("backfill grant failed",
				zap.String("order_id", session.ID),
				zap.String("email", session.Email),
				zap.Error(err))
			continue
		}
		result.GrantsApplied++
	}

	s.logger.Info("backfill complete",
		zap.Int("scanned", result.Scanned),
		zap.Int("inserted", result.Inserted),
		zap.Bool("dry_run", dryRun))
	return result, nil
}

func (s *BackfillService) resolveSessionProduct(session payment.CheckoutSession) (catalog.ProductID, bool) {
	if raw, ok := session.Metadata["product_id"]; ok {
		if product, found := s.catalog.Get(catalog.ProductID(raw)); found {
			return product.ID, true
		}
	}
	return s.catalog.ResolveProviderProduct(session.ProviderProductID)
}

// clampDays bounds a lookback window to 1..90 days, defaulting to 14
func clampDays(days int) int {
	if days <= 0 {
		return 14
	}
	if days > 90 {
		return 90
	}
	return days
}

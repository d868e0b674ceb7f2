package admin

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
)

// legacyProductFixes maps retired provider product IDs that were recorded
// raw into the ledger to the catalog products they actually sold
var legacyProductFixes = map[string]catalog.ProductID{
	"prod_Tj4VbFiOz1VzyL": catalog.ProductContractorDatabase,
	"prod_TmMbpcfofGpDZd": catalog.ProductRecompete,
}

// CleanupService repairs ledger rows recorded under raw provider IDs and
// removes rows that resolve to no product at all
type CleanupService struct {
	purchases entitlement.PurchaseRepository
	catalog   *catalog.Catalog
	logger    *zap.Logger
}

// NewCleanupService creates a cleanup service
func NewCleanupService(purchases entitlement.PurchaseRepository, cat *catalog.Catalog, logger *zap.Logger) *CleanupService {
	return &CleanupService{purchases: purchases, catalog: cat, logger: logger}
}

// CleanupAction describes one planned or applied change to a ledger row
type CleanupAction struct {
	PurchaseID uuid.UUID         `json:"purchase_id"`
	OrderID    string            `json:"order_id"`
	Email      string            `json:"email"`
	OldProduct string            `json:"old_product"`
	NewProduct catalog.ProductID `json:"new_product,omitempty"`
	Action     string            `json:"action"` // "reassign" or "delete"
}

// CleanupResult summarizes one cleanup run
type CleanupResult struct {
	Scanned    int             `json:"scanned"`
	Reassigned int             `json:"reassigned"`
	Deleted    int64           `json:"deleted"`
	DryRun     bool            `json:"dry_run"`
	Actions    []CleanupAction `json:"actions"`
}

// Run fixes the known legacy IDs with targeted lookups, then walks the whole
// ledger for anything else the catalog cannot resolve: resolvable provider
// IDs are reassigned, the rest deleted. With dryRun, changes are reported
// but not applied.
func (s *CleanupService) Run(ctx context.Context, dryRun bool) (*CleanupResult, error) {
	result := &CleanupResult{DryRun: dryRun, Actions: []CleanupAction{}}
	handled := map[uuid.UUID]bool{}

	for raw, fixed := range legacyProductFixes {
		rows, err := s.purchases.FindByProductID(ctx, raw)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			handled[row.ID] = true
			result.Actions = append(result.Actions, CleanupAction{
				PurchaseID: row.ID,
				OrderID:    row.OrderID,
				Email:      row.UserEmail,
				OldProduct: raw,
				NewProduct: fixed,
				Action:     "reassign",
			})
			if !dryRun {
				if err := s.purchases.ReassignProduct(ctx, row.ID, fixed, s.catalog.DisplayName(fixed)); err != nil {
					return nil, err
				}
			}
			result.Reassigned++
		}
	}

	rows, err := s.purchases.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	var deleteIDs []uuid.UUID

	for _, row := range rows {
		result.Scanned++
		if handled[row.ID] || s.catalog.Known(row.ProductID) {
			continue
		}

		raw := string(row.ProductID)
		// unknown IDs that resolve through the provider mapping are fixed too
		if fixed, ok := s.catalog.ResolveProviderProduct(raw); ok {
			result.Actions = append(result.Actions, CleanupAction{
				PurchaseID: row.ID,
				OrderID:    row.OrderID,
				Email:      row.UserEmail,
				OldProduct: raw,
				NewProduct: fixed,
				Action:     "reassign",
			})
			if !dryRun {
				if err := s.purchases.ReassignProduct(ctx, row.ID, fixed, s.catalog.DisplayName(fixed)); err != nil {
					return nil, err
				}
			}
			result.Reassigned++
			continue
		}

		result.Actions = append(result.Actions, CleanupAction{
			PurchaseID: row.ID,
			OrderID:    row.OrderID,
			Email:      row.UserEmail,
			OldProduct: raw,
			Action:     "delete",
		})
		deleteIDs = append(deleteIDs, row.ID)
	}

	if len(deleteIDs) > 0 {
		if dryRun {
			result.Deleted = int64(len(deleteIDs))
		} else {
			deleted, err := s.purchases.DeleteByIDs(ctx, deleteIDs)
			if err != nil {
				return nil, err
			}
			result.Deleted = deleted
		}
	}

	s.logger.Info("cleanup complete",
		zap.Int("scanned", result.Scanned),
		zap.Int("reassigned", result.Reassigned),
		zap.Int64("deleted", result.Deleted),
		zap.Bool("dry_run", dryRun))
	return result, nil
}

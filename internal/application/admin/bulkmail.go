package admin

import (
	"context"

	"go.uber.org/zap"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/infrastructure/email"
)

// BulkMailService re-sends contractor database access links in bulk. The
// roster is derived from the ledger: every account whose completed purchases
// entitle it to the contractor database. Tokens are minted only for accounts
// that never received one.
type BulkMailService struct {
	purchases entitlement.PurchaseRepository
	cache     entitlement.AccessCache
	mailer    email.Mailer
	catalog   *catalog.Catalog
	baseURL   string
	logger    *zap.Logger
}

// NewBulkMailService creates a bulk mail service
func NewBulkMailService(
	purchases entitlement.PurchaseRepository,
	cache entitlement.AccessCache,
	mailer email.Mailer,
	cat *catalog.Catalog,
	baseURL string,
	logger *zap.Logger,
) *BulkMailService {
	return &BulkMailService{
		purchases: purchases,
		cache:     cache,
		mailer:    mailer,
		catalog:   cat,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// BulkMailResult summarizes one bulk send
type BulkMailResult struct {
	Recipients   []string `json:"recipients"`
	Sent         int      `json:"sent"`
	Failed       int      `json:"failed"`
	TokensMinted int      `json:"tokens_minted"`
	DryRun       bool     `json:"dry_run"`
}

// SendDatabaseAccessEmails mails every database-entitled buyer their access
// link. With dryRun the roster is computed and returned without minting
// tokens or sending anything.
func (s *BulkMailService) SendDatabaseAccessEmails(ctx context.Context, dryRun bool) (*BulkMailResult, error) {
	rows, err := s.purchases.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var roster []string
	for _, row := range rows {
		if row.Status != entitlement.PurchaseCompleted {
			continue
		}
		if !s.grantsDatabaseAccess(row.ProductID) {
			continue
		}
		addr := entitlement.NormalizeEmail(row.UserEmail)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		roster = append(roster, addr)
	}

	result := &BulkMailResult{Recipients: roster, DryRun: dryRun}
	if dryRun {
		return result, nil
	}

	for _, addr := range roster {
		token, minted, err := s.cache.GrantDatabaseAccess(ctx, addr)
		if err != nil {
			s.logger.Error("failed to ensure database token",
				zap.String("email", addr), zap.Error(err))
			result.Failed++
			continue
		}
		if minted {
			result.TokensMinted++
		}
		subject, body := email.DatabaseAccessEmail(s.baseURL, token)
		if err := s.mailer.Send(ctx, addr, subject, body); err != nil {
			s.logger.Error("failed to send database access email",
				zap.String("email", addr), zap.Error(err))
			result.Failed++
			continue
		}
		result.Sent++
	}

	s.logger.Info("bulk database access mail complete",
		zap.Int("recipients", len(roster)),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *BulkMailService) grantsDatabaseAccess(id catalog.ProductID) bool {
	for _, g := range entitlement.ResolveGrants(s.catalog, id) {
		if g.Product == catalog.ProductContractorDatabase {
			return true
		}
	}
	return false
}

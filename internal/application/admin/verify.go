package admin

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/domain/shared"
)

// VerifyService is a read-only drift audit: for each account it compares the
// flags and cache entries the ledger says should exist against what the
// stores actually hold. Nothing is written.
type VerifyService struct {
	purchases entitlement.PurchaseRepository
	profiles  entitlement.ProfileRepository
	cache     entitlement.AccessCache
	catalog   *catalog.Catalog
	logger    *zap.Logger
}

// NewVerifyService creates a verify service
func NewVerifyService(
	purchases entitlement.PurchaseRepository,
	profiles entitlement.ProfileRepository,
	cache entitlement.AccessCache,
	cat *catalog.Catalog,
	logger *zap.Logger,
) *VerifyService {
	return &VerifyService{
		purchases: purchases,
		profiles:  profiles,
		cache:     cache,
		catalog:   cat,
		logger:    logger,
	}
}

// EmailAudit is the drift picture for one account
type EmailAudit struct {
	Email           string   `json:"email"`
	Purchases       int      `json:"purchases"`
	ProfileExists   bool     `json:"profile_exists"`
	ExpectedFlags   []string `json:"expected_flags"`
	ActualFlags     []string `json:"actual_flags"`
	MissingFlags    []string `json:"missing_flags"`
	ExpectedCaches  []string `json:"expected_caches"`
	MissingCaches   []string `json:"missing_caches"`
	Consistent      bool     `json:"consistent"`
	Error           string   `json:"error,omitempty"`
}

// VerifyResult summarizes one audit run
type VerifyResult struct {
	Audits       []EmailAudit `json:"audits"`
	DriftedCount int          `json:"drifted_count"`
}

// Run audits the given emails, or every customer in the ledger when none
// are given. An account whose stores cannot be read is reported as drifted
// with the error; the batch keeps going.
func (s *VerifyService) Run(ctx context.Context, emails []string) (*VerifyResult, error) {
	if len(emails) == 0 {
		var err error
		emails, err = customerEmails(ctx, s.purchases)
		if err != nil {
			return nil, err
		}
	}

	result := &VerifyResult{Audits: make([]EmailAudit, 0, len(emails))}
	for _, raw := range emails {
		addr := entitlement.NormalizeEmail(raw)
		audit, err := s.auditEmail(ctx, addr)
		if err != nil {
			s.logger.Error("access audit failed",
				zap.String("email", addr), zap.Error(err))
			result.DriftedCount++
			result.Audits = append(result.Audits, EmailAudit{Email: addr, Error: err.Error()})
			continue
		}
		if !audit.Consistent {
			result.DriftedCount++
		}
		result.Audits = append(result.Audits, *audit)
	}
	return result, nil
}

func (s *VerifyService) auditEmail(ctx context.Context, emailAddr string) (*EmailAudit, error) {
	audit := &EmailAudit{
		Email:          emailAddr,
		ExpectedFlags:  []string{},
		ActualFlags:    []string{},
		MissingFlags:   []string{},
		ExpectedCaches: []string{},
		MissingCaches:  []string{},
	}

	purchases, err := s.purchases.FindByEmail(ctx, emailAddr, entitlement.PurchaseCompleted)
	if err != nil {
		return nil, err
	}
	audit.Purchases = len(purchases)

	expected := entitlement.FlagSet{}
	familySet := map[entitlement.CacheFamily]bool{}
	for _, p := range purchases {
		expected.Add(entitlement.FlagsForPurchase(s.catalog, p.ProductID))
		for _, fam := range entitlement.FamiliesForPurchase(s.catalog, p.ProductID) {
			familySet[fam] = true
		}
	}
	audit.ExpectedFlags = expected.Names()

	profile, err := s.profiles.GetByEmail(ctx, emailAddr)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	actual := entitlement.FlagSet{}
	if profile != nil {
		audit.ProfileExists = true
		actual = profile.Flags
		audit.ActualFlags = actual.Names()
	}
	for _, f := range entitlement.AllFlags {
		if expected[f] && !actual[f] {
			audit.MissingFlags = append(audit.MissingFlags, string(f))
		}
	}

	for fam := range familySet {
		audit.ExpectedCaches = append(audit.ExpectedCaches, string(fam))
		has, err := s.cache.HasAccess(ctx, fam, emailAddr)
		if err != nil {
			return nil, err
		}
		if !has {
			audit.MissingCaches = append(audit.MissingCaches, string(fam))
		}
	}

	audit.Consistent = len(audit.MissingFlags) == 0 && len(audit.MissingCaches) == 0
	if !audit.Consistent {
		s.logger.Warn("access drift detected",
			zap.String("email", emailAddr),
			zap.Strings("missing_flags", audit.MissingFlags),
			zap.Strings("missing_caches", audit.MissingCaches))
	}
	return audit, nil
}

package admin

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
)

// testAccountEmails are the synthetic accounts used to exercise the purchase
// flow end to end. Default repair and audit runs skip them so the tools work
// the real customer population.
var testAccountEmails = map[string]bool{
	"eric@govcongiants.com":  true,
	"evankoffdev@gmail.com":  true,
	"test@gmail.com":         true,
	"test1@gmail.com":        true,
	"test2@gmail.com":        true,
}

// customerEmails enumerates the distinct buyer emails in the ledger,
// excluding the test accounts
func customerEmails(ctx context.Context, repo entitlement.PurchaseRepository) ([]string, error) {
	rows, err := repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var emails []string
	for _, row := range rows {
		addr := entitlement.NormalizeEmail(row.UserEmail)
		if addr == "" || seen[addr] || testAccountEmails[addr] {
			continue
		}
		seen[addr] = true
		emails = append(emails, addr)
	}
	sort.Strings(emails)
	return emails, nil
}

// RepairService recomputes an account's profile flags and cache entries from
// its completed purchases. It never sends email and never clears a flag.
type RepairService struct {
	purchases entitlement.PurchaseRepository
	profiles  entitlement.ProfileRepository
	cache     entitlement.AccessCache
	catalog   *catalog.Catalog
	logger    *zap.Logger
}

// NewRepairService creates a repair service
func NewRepairService(
	purchases entitlement.PurchaseRepository,
	profiles entitlement.ProfileRepository,
	cache entitlement.AccessCache,
	cat *catalog.Catalog,
	logger *zap.Logger,
) *RepairService {
	return &RepairService{
		purchases: purchases,
		profiles:  profiles,
		cache:     cache,
		catalog:   cat,
		logger:    logger,
	}
}

// EmailRepair reports what the repair did for one account
type EmailRepair struct {
	Email          string   `json:"email"`
	Purchases      int      `json:"purchases"`
	FlagsApplied   []string `json:"flags_applied"`
	FamiliesFilled []string `json:"families_filled"`
	Skipped        bool     `json:"skipped,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// RepairResult summarizes one repair run
type RepairResult struct {
	DryRun  bool          `json:"dry_run"`
	Repairs []EmailRepair `json:"repairs"`
}

// Run repairs the given emails, or every customer in the ledger when none
// are given. One account's failure is recorded and the batch moves on. With
// dryRun the computed flags and families are reported without touching the
// profile store or cache.
func (s *RepairService) Run(ctx context.Context, emails []string, dryRun bool) (*RepairResult, error) {
	if len(emails) == 0 {
		var err error
		emails, err = customerEmails(ctx, s.purchases)
		if err != nil {
			return nil, err
		}
	}

	result := &RepairResult{DryRun: dryRun, Repairs: make([]EmailRepair, 0, len(emails))}
	for _, raw := range emails {
		addr := entitlement.NormalizeEmail(raw)
		repair, err := s.repairEmail(ctx, addr, dryRun)
		if err != nil {
			s.logger.Error("flag repair failed",
				zap.String("email", addr), zap.Error(err))
			result.Repairs = append(result.Repairs, EmailRepair{Email: addr, Error: err.Error()})
			continue
		}
		result.Repairs = append(result.Repairs, *repair)
	}
	return result, nil
}

func (s *RepairService) repairEmail(ctx context.Context, emailAddr string, dryRun bool) (*EmailRepair, error) {
	repair := &EmailRepair{Email: emailAddr, FlagsApplied: []string{}, FamiliesFilled: []string{}}

	purchases, err := s.purchases.FindByEmail(ctx, emailAddr, entitlement.PurchaseCompleted)
	if err != nil {
		return nil, err
	}
	repair.Purchases = len(purchases)
	if len(purchases) == 0 {
		repair.Skipped = true
		repair.Reason = "no completed purchases"
		return repair, nil
	}

	flags := entitlement.FlagSet{}
	familySet := map[entitlement.CacheFamily]catalog.ProductID{}
	for _, p := range purchases {
		flags.Add(entitlement.FlagsForPurchase(s.catalog, p.ProductID))
		for _, fam := range entitlement.FamiliesForPurchase(s.catalog, p.ProductID) {
			if _, seen := familySet[fam]; !seen {
				familySet[fam] = p.ProductID
			}
		}
	}
	repair.FlagsApplied = flags.Names()

	if !dryRun && len(flags) > 0 {
		if _, err := s.profiles.GetOrCreate(ctx, emailAddr, ""); err != nil {
			return nil, err
		}
		if _, err := s.profiles.SetFlags(ctx, emailAddr, flags); err != nil {
			return nil, err
		}
	}

	for fam, productID := range familySet {
		has, err := s.cache.HasAccess(ctx, fam, emailAddr)
		if err != nil {
			return nil, err
		}
		if has {
			continue
		}
		repair.FamiliesFilled = append(repair.FamiliesFilled, string(fam))
		if dryRun {
			continue
		}
		if fam == entitlement.FamilyDatabaseAccess {
			if _, _, err := s.cache.GrantDatabaseAccess(ctx, emailAddr); err != nil {
				return nil, err
			}
			continue
		}
		entry := entitlement.CacheEntry{Email: emailAddr, ProductID: string(productID)}
		if fam == entitlement.FamilyContentGenerator {
			tier := entitlement.ContentTierEngine
			if flags[entitlement.FlagContentFullFix] {
				tier = entitlement.ContentTierFullFix
			}
			entry.Tier = string(tier)
		}
		if err := s.cache.Grant(ctx, fam, emailAddr, entry); err != nil {
			return nil, err
		}
	}

	s.logger.Info("access flags repaired",
		zap.String("email", emailAddr),
		zap.Strings("flags", repair.FlagsApplied),
		zap.Strings("families_filled", repair.FamiliesFilled),
		zap.Bool("dry_run", dryRun))
	return repair, nil
}

// Package entitlement contains the application services that turn verified
// purchases into durable access across the ledger, profile flags, and the
// fast-access cache.
package entitlement

import (
	"context"

	"go.uber.org/zap"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/infrastructure/email"
)

// GrantService applies the access a purchase entitles a buyer to: profile
// flags first, then cache entries, then notification emails. Flag and cache
// writes are monotonic, so re-applying a grant is safe.
type GrantService struct {
	catalog  *catalog.Catalog
	profiles entitlement.ProfileRepository
	cache    entitlement.AccessCache
	mailer   email.Mailer
	baseURL  string
	logger   *zap.Logger
}

// NewGrantService creates a grant service
func NewGrantService(
	cat *catalog.Catalog,
	profiles entitlement.ProfileRepository,
	cache entitlement.AccessCache,
	mailer email.Mailer,
	baseURL string,
	logger *zap.Logger,
) *GrantService {
	return &GrantService{
		catalog:  cat,
		profiles: profiles,
		cache:    cache,
		mailer:   mailer,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// GrantResult reports what ApplyGrant touched
type GrantResult struct {
	Flags         entitlement.FlagSet
	Families      []entitlement.CacheFamily
	DatabaseToken string
	TokenMinted   bool
	EmailsSent    int
}

// ApplyGrant gives email every entitlement productID carries. The profile
// write is the authoritative step; cache and email failures are logged and
// do not fail the grant, since the repair tools can reconcile them later.
func (s *GrantService) ApplyGrant(ctx context.Context, emailAddr, name string, productID catalog.ProductID) (*GrantResult, error) {
	emailAddr = entitlement.NormalizeEmail(emailAddr)
	result := &GrantResult{}

	flags := entitlement.FlagsForPurchase(s.catalog, productID)
	if len(flags) == 0 {
		s.logger.Warn("purchase resolved to no access flags",
			zap.String("email", emailAddr),
			zap.String("product_id", string(productID)))
		return result, nil
	}

	profile, err := s.profiles.GetOrCreate(ctx, emailAddr, name)
	if err != nil {
		return nil, err
	}
	applied, err := s.profiles.SetFlags(ctx, profile.Email, flags)
	if err != nil {
		return nil, err
	}
	result.Flags = applied

	s.applyCacheGrants(ctx, emailAddr, productID, result)
	s.sendAccessEmails(ctx, emailAddr, productID, result)

	s.logger.Info("grant applied",
		zap.String("email", emailAddr),
		zap.String("product_id", string(productID)),
		zap.Strings("flags", applied.Names()),
		zap.Int("emails_sent", result.EmailsSent))
	return result, nil
}

func (s *GrantService) applyCacheGrants(ctx context.Context, emailAddr string, productID catalog.ProductID, result *GrantResult) {
	families := entitlement.FamiliesForPurchase(s.catalog, productID)
	result.Families = families

	grants := entitlement.ResolveGrants(s.catalog, productID)
	tierByFamily := make(map[entitlement.CacheFamily]string)
	for _, g := range grants {
		if fam, ok := entitlement.FamilyForProduct(g.Product); ok && g.ContentTier != "" {
			tierByFamily[fam] = string(g.ContentTier)
		}
	}

	for _, family := range families {
		if family == entitlement.FamilyDatabaseAccess {
			token, minted, err := s.cache.GrantDatabaseAccess(ctx, emailAddr)
			if err != nil {
				s.logger.Error("failed to grant database access",
					zap.String("email", emailAddr), zap.Error(err))
				continue
			}
			result.DatabaseToken = token
			result.TokenMinted = minted
			continue
		}
		entry := entitlement.CacheEntry{
			Email:     emailAddr,
			ProductID: string(productID),
			Tier:      tierByFamily[family],
		}
		if err := s.cache.Grant(ctx, family, emailAddr, entry); err != nil {
			s.logger.Error("failed to write access cache entry",
				zap.String("email", emailAddr),
				zap.String("family", string(family)),
				zap.Error(err))
		}
	}
}

// sendAccessEmails delivers the onboarding emails a purchase calls for. The
// database link email goes out only when the token was freshly minted, which
// keeps replayed events from re-sending the single-use link.
func (s *GrantService) sendAccessEmails(ctx context.Context, emailAddr string, productID catalog.ProductID, result *GrantResult) {
	send := func(subject, body string) {
		if err := s.mailer.Send(ctx, emailAddr, subject, body); err != nil {
			s.logger.Error("failed to send access email",
				zap.String("email", emailAddr),
				zap.String("subject", subject),
				zap.Error(err))
			return
		}
		result.EmailsSent++
	}

	if result.TokenMinted && result.DatabaseToken != "" {
		subject, body := email.DatabaseAccessEmail(s.baseURL, result.DatabaseToken)
		send(subject, body)
	}

	switch productID {
	case catalog.ProductHunterPro:
		subject, body := email.HunterProWelcomeEmail(s.baseURL)
		send(subject, body)
	case catalog.BundleUltimate:
		subject, body := email.UltimateBundleWelcomeEmail(s.baseURL)
		send(subject, body)
	case catalog.ProductContractorDatabase:
		// the database link mail above is the access mail
	default:
		subject, body := email.ProductAccessEmail(s.baseURL, s.catalog.DisplayName(productID))
		send(subject, body)
	}
}

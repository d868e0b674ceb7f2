package entitlement

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/domain/shared"
)

// AccessService answers access questions for downstream product apps. The
// profile flags are the source of truth; the cache is consulted as a
// fallback for accounts granted before profiles existed.
type AccessService struct {
	catalog   *catalog.Catalog
	profiles  entitlement.ProfileRepository
	purchases entitlement.PurchaseRepository
	cache     entitlement.AccessCache
	logger    *zap.Logger
}

// NewAccessService creates an access service
func NewAccessService(
	cat *catalog.Catalog,
	profiles entitlement.ProfileRepository,
	purchases entitlement.PurchaseRepository,
	cache entitlement.AccessCache,
	logger *zap.Logger,
) *AccessService {
	return &AccessService{
		catalog:   cat,
		profiles:  profiles,
		purchases: purchases,
		cache:     cache,
		logger:    logger,
	}
}

// ProductAccess names one product an account can use, with the content tier
// where the product has tiers
type ProductAccess struct {
	ProductID   catalog.ProductID `json:"product_id"`
	DisplayName string            `json:"display_name"`
	Tier        string            `json:"tier,omitempty"`
}

// ActivationResult is what a product app needs to activate an account
type ActivationResult struct {
	Email      string          `json:"email"`
	Name       string          `json:"name,omitempty"`
	LicenseKey string          `json:"license_key,omitempty"`
	Products   []ProductAccess `json:"products"`
	Source     string          `json:"source"`
}

// AccessSummary is the full access picture for one email
type AccessSummary struct {
	Email         string                 `json:"email"`
	LicenseKey    string                 `json:"license_key,omitempty"`
	Flags         []string               `json:"flags"`
	Products      []ProductAccess        `json:"products"`
	Purchases     []entitlement.Purchase `json:"purchases"`
	CacheFamilies []string               `json:"cache_families"`
}

// ActivateByEmail resolves everything an email is entitled to, profile
// first, cache second. A premium or full-fix entitlement suppresses its
// standard counterpart so product apps activate the highest tier only.
func (s *AccessService) ActivateByEmail(ctx context.Context, emailAddr string) (*ActivationResult, error) {
	emailAddr = entitlement.NormalizeEmail(emailAddr)
	if emailAddr == "" {
		return nil, shared.ErrInvalidInput
	}

	profile, err := s.profiles.GetByEmail(ctx, emailAddr)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if profile != nil && profile.HasAnyFlag() {
		return &ActivationResult{
			Email:      profile.Email,
			Name:       profile.Name,
			LicenseKey: profile.LicenseKey,
			Products:   s.productsFromFlags(profile.Flags),
			Source:     "profile",
		}, nil
	}

	products, err := s.productsFromCache(ctx, emailAddr)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, shared.ErrNotFound
	}
	result := &ActivationResult{
		Email:    emailAddr,
		Products: products,
		Source:   "cache",
	}
	if profile != nil {
		result.Name = profile.Name
		result.LicenseKey = profile.LicenseKey
	}
	return result, nil
}

// AccessCheck is the answer to one product access question. AccessType is
// "direct" or "bundle"; BundleID names the purchased bundle when access came
// through one.
type AccessCheck struct {
	ProductID  catalog.ProductID `json:"productId"`
	HasAccess  bool              `json:"hasAccess"`
	AccessType string            `json:"accessType,omitempty"`
	BundleID   catalog.ProductID `json:"bundleId,omitempty"`
}

// CheckAccess reports whether email can use product. For bundles, access
// means access to every member. Access is affirmed by profile flags, the
// cache, or a completed ledger purchase covering the product, so a recorded
// purchase whose grant step failed still answers yes. When access to an
// atomic product traces back to a purchased bundle the result says which one.
func (s *AccessService) CheckAccess(ctx context.Context, emailAddr string, productID catalog.ProductID) (*AccessCheck, error) {
	emailAddr = entitlement.NormalizeEmail(emailAddr)
	product, ok := s.catalog.Get(productID)
	if !ok {
		return nil, shared.ErrInvalidInput
	}

	result := &AccessCheck{ProductID: product.ID}

	grants := entitlement.ResolveGrants(s.catalog, product.ID)
	profile, err := s.profiles.GetByEmail(ctx, emailAddr)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	purchases := s.completedPurchases(ctx, emailAddr)
	ledgerFlags := entitlement.FlagSet{}
	for _, p := range purchases {
		ledgerFlags.Add(entitlement.FlagsForPurchase(s.catalog, p.ProductID))
	}

	for _, g := range grants {
		has, err := s.hasGrant(ctx, emailAddr, profile, ledgerFlags, g)
		if err != nil {
			return nil, err
		}
		if !has {
			return result, nil
		}
	}
	result.HasAccess = true
	result.AccessType = "direct"

	if !product.IsBundle() {
		if bundleID, viaBundle := s.bundleSource(purchases, product.ID); viaBundle {
			result.AccessType = "bundle"
			result.BundleID = bundleID
		}
	}
	return result, nil
}

// completedPurchases reads the ledger for access derivation. A failed read
// degrades to the other stores rather than failing the question.
func (s *AccessService) completedPurchases(ctx context.Context, emailAddr string) []entitlement.Purchase {
	purchases, err := s.purchases.FindByEmail(ctx, emailAddr, entitlement.PurchaseCompleted)
	if err != nil {
		s.logger.Warn("ledger lookup failed during access derivation",
			zap.String("email", emailAddr),
			zap.Error(err),
		)
		return nil
	}
	return purchases
}

// bundleSource looks for a completed bundle purchase covering productID.
func (s *AccessService) bundleSource(purchases []entitlement.Purchase, productID catalog.ProductID) (catalog.ProductID, bool) {
	for _, p := range purchases {
		if p.ProductID == productID {
			// A direct purchase outranks any bundle source
			return "", false
		}
	}
	for _, p := range purchases {
		for _, member := range s.catalog.BundleMembers(p.ProductID) {
			if member == productID {
				return p.ProductID, true
			}
		}
		// Premium assassin inside a bundle also covers the standard check
		if productID == catalog.ProductAssassinStandard {
			for _, member := range s.catalog.BundleMembers(p.ProductID) {
				if member == catalog.ProductAssassinPremium {
					return p.ProductID, true
				}
			}
		}
	}
	return "", false
}

func (s *AccessService) hasGrant(ctx context.Context, emailAddr string, profile *entitlement.UserProfile, ledgerFlags entitlement.FlagSet, g entitlement.Grant) (bool, error) {
	flag := requiredFlag(g)
	if profile != nil && profile.HasFlag(flag) {
		return true, nil
	}
	if ledgerFlags[flag] {
		return true, nil
	}
	family, ok := entitlement.FamilyForProduct(g.Product)
	if !ok {
		return false, nil
	}
	return s.cache.HasAccess(ctx, family, emailAddr)
}

// requiredFlag is the one flag that proves a grant is held. The standard
// companion flags a premium grant also sets are not sufficient evidence.
func requiredFlag(g entitlement.Grant) entitlement.AccessFlag {
	if g.Product == catalog.ProductContentGenerator && g.ContentTier == entitlement.ContentTierFullFix {
		return entitlement.FlagContentFullFix
	}
	switch g.Product {
	case catalog.ProductHunterPro:
		return entitlement.FlagHunterPro
	case catalog.ProductContractorDatabase:
		return entitlement.FlagContractorDB
	case catalog.ProductRecompete:
		return entitlement.FlagRecompete
	case catalog.ProductAssassinStandard:
		return entitlement.FlagAssassinStandard
	case catalog.ProductAssassinPremium:
		return entitlement.FlagAssassinPremium
	case catalog.ProductContentGenerator:
		return entitlement.FlagContentStandard
	}
	return ""
}

// GetAccessForEmail collects the full access picture: flags, resolved
// products, ledger history, and cache presence
func (s *AccessService) GetAccessForEmail(ctx context.Context, emailAddr string) (*AccessSummary, error) {
	emailAddr = entitlement.NormalizeEmail(emailAddr)
	if emailAddr == "" {
		return nil, shared.ErrInvalidInput
	}

	summary := &AccessSummary{Email: emailAddr, Flags: []string{}, Products: []ProductAccess{}, CacheFamilies: []string{}}

	profile, err := s.profiles.GetByEmail(ctx, emailAddr)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if profile != nil {
		summary.LicenseKey = profile.LicenseKey
		summary.Flags = profile.Flags.Names()
	}

	purchases, err := s.purchases.FindByEmail(ctx, emailAddr, "")
	if err != nil {
		return nil, err
	}
	summary.Purchases = purchases

	// accessible products merge both sources: profile flags and completed
	// ledger rows bundle-expanded, so a purchase whose grant step failed
	// still shows up
	combined := entitlement.FlagSet{}
	if profile != nil {
		combined.Add(profile.Flags)
	}
	var bundles []catalog.ProductID
	for _, p := range purchases {
		if p.Status != entitlement.PurchaseCompleted {
			continue
		}
		combined.Add(entitlement.FlagsForPurchase(s.catalog, p.ProductID))
		if s.catalog.IsBundle(p.ProductID) {
			bundles = append(bundles, p.ProductID)
		}
	}
	summary.Products = s.productsFromFlags(combined)
	for _, bundleID := range bundles {
		if !containsProduct(summary.Products, bundleID) {
			summary.Products = append(summary.Products, ProductAccess{
				ProductID:   bundleID,
				DisplayName: s.catalog.DisplayName(bundleID),
			})
		}
	}

	for _, family := range []entitlement.CacheFamily{
		entitlement.FamilyHunterPro,
		entitlement.FamilyDatabaseAccess,
		entitlement.FamilyRecompete,
		entitlement.FamilyMarketAssassin,
		entitlement.FamilyContentGenerator,
	} {
		has, err := s.cache.HasAccess(ctx, family, emailAddr)
		if err != nil {
			return nil, err
		}
		if has {
			summary.CacheFamilies = append(summary.CacheFamilies, string(family))
		}
	}

	// an unknown email is an empty summary, not an error; callers show
	// "no purchases" rather than a lookup failure
	return summary, nil
}

func containsProduct(products []ProductAccess, id catalog.ProductID) bool {
	for _, p := range products {
		if p.ProductID == id {
			return true
		}
	}
	return false
}

// productsFromFlags derives the activatable product list from profile flags,
// keeping only the highest tier per product line
func (s *AccessService) productsFromFlags(flags entitlement.FlagSet) []ProductAccess {
	var products []ProductAccess
	add := func(id catalog.ProductID, tier string) {
		products = append(products, ProductAccess{
			ProductID:   id,
			DisplayName: s.catalog.DisplayName(id),
			Tier:        tier,
		})
	}

	if flags[entitlement.FlagHunterPro] {
		add(catalog.ProductHunterPro, "")
	}
	if flags[entitlement.FlagContractorDB] {
		add(catalog.ProductContractorDatabase, "")
	}
	if flags[entitlement.FlagRecompete] {
		add(catalog.ProductRecompete, "")
	}
	switch {
	case flags[entitlement.FlagAssassinPremium]:
		add(catalog.ProductAssassinPremium, "")
	case flags[entitlement.FlagAssassinStandard]:
		add(catalog.ProductAssassinStandard, "")
	}
	switch {
	case flags[entitlement.FlagContentFullFix]:
		add(catalog.ProductContentGenerator, string(entitlement.ContentTierFullFix))
	case flags[entitlement.FlagContentStandard]:
		add(catalog.ProductContentGenerator, string(entitlement.ContentTierEngine))
	}
	return products
}

// productsFromCache derives products from whichever cache families hold an
// entry for email
func (s *AccessService) productsFromCache(ctx context.Context, emailAddr string) ([]ProductAccess, error) {
	var products []ProductAccess

	type familyProduct struct {
		family  entitlement.CacheFamily
		product catalog.ProductID
	}
	checks := []familyProduct{
		{entitlement.FamilyHunterPro, catalog.ProductHunterPro},
		{entitlement.FamilyDatabaseAccess, catalog.ProductContractorDatabase},
		{entitlement.FamilyRecompete, catalog.ProductRecompete},
	}
	for _, check := range checks {
		has, err := s.cache.HasAccess(ctx, check.family, emailAddr)
		if err != nil {
			return nil, err
		}
		if has {
			products = append(products, ProductAccess{
				ProductID:   check.product,
				DisplayName: s.catalog.DisplayName(check.product),
			})
		}
	}

	maEntry, err := s.cache.GetEntry(ctx, entitlement.FamilyMarketAssassin, emailAddr)
	if err != nil {
		return nil, err
	}
	if maEntry != nil {
		id := catalog.ProductAssassinStandard
		if maEntry.ProductID == string(catalog.ProductAssassinPremium) || maEntry.ProductID == string(catalog.BundleUltimate) {
			id = catalog.ProductAssassinPremium
		}
		products = append(products, ProductAccess{ProductID: id, DisplayName: s.catalog.DisplayName(id)})
	}

	cgEntry, err := s.cache.GetEntry(ctx, entitlement.FamilyContentGenerator, emailAddr)
	if err != nil {
		return nil, err
	}
	if cgEntry != nil {
		tier := cgEntry.Tier
		if tier == "" {
			tier = string(entitlement.ContentTierEngine)
		}
		products = append(products, ProductAccess{
			ProductID:   catalog.ProductContentGenerator,
			DisplayName: s.catalog.DisplayName(catalog.ProductContentGenerator),
			Tier:        tier,
		})
	}
	return products, nil
}

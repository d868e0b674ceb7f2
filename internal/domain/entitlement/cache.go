package entitlement

import (
	"context"
	"time"

	"github.com/govcon/backend/internal/domain/catalog"
)

// CacheFamily is the key namespace one product uses in the fast-access
// cache. Entries live at "<family>:<normalized email>"; presence of the key
// is itself the access signal.
type CacheFamily string

const (
	FamilyHunterPro        CacheFamily = "ospro"
	FamilyDatabaseAccess   CacheFamily = "dbaccess"
	FamilyRecompete        CacheFamily = "recompete"
	FamilyMarketAssassin   CacheFamily = "ma"
	FamilyContentGenerator CacheFamily = "contentgen"
)

// FamilyDatabaseToken is the token-indirection namespace for the single-use
// contractor database link: "dbtoken:<token>" -> entry carrying the email.
const FamilyDatabaseToken CacheFamily = "dbtoken"

// CacheEntry is the stored value for one cache grant.
type CacheEntry struct {
	Email     string    `json:"email"`
	Tier      string    `json:"tier,omitempty"`
	Token     string    `json:"token,omitempty"`
	ProductID string    `json:"productId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// FamilyForProduct returns the cache key family for an atomic product, or
// false for products with no cache representation (bundles).
func FamilyForProduct(id catalog.ProductID) (CacheFamily, bool) {
	switch id {
	case catalog.ProductHunterPro:
		return FamilyHunterPro, true
	case catalog.ProductContractorDatabase:
		return FamilyDatabaseAccess, true
	case catalog.ProductRecompete:
		return FamilyRecompete, true
	case catalog.ProductAssassinStandard, catalog.ProductAssassinPremium:
		return FamilyMarketAssassin, true
	case catalog.ProductContentGenerator:
		return FamilyContentGenerator, true
	}
	return "", false
}

// FamiliesForPurchase returns every cache family a purchase of id should
// have populated, expanding bundles.
func FamiliesForPurchase(cat *catalog.Catalog, id catalog.ProductID) []CacheFamily {
	seen := map[CacheFamily]bool{}
	var families []CacheFamily
	for _, g := range ResolveGrants(cat, id) {
		if fam, ok := FamilyForProduct(g.Product); ok && !seen[fam] {
			seen[fam] = true
			families = append(families, fam)
		}
	}
	return families
}

// AccessCache is the fast-access store port. Grants are idempotent:
// re-granting an existing entry is a no-op, and a database token is only
// minted if none exists yet.
type AccessCache interface {
	// Grant writes entry under family for email unless one already exists.
	Grant(ctx context.Context, family CacheFamily, email string, entry CacheEntry) error

	// GrantDatabaseAccess ensures a contractor-database grant exists,
	// minting the single-use token only on first grant. created reports
	// whether a new token was minted.
	GrantDatabaseAccess(ctx context.Context, email string) (token string, created bool, err error)

	// HasAccess reports whether an entry exists for email under family.
	HasAccess(ctx context.Context, family CacheFamily, email string) (bool, error)

	// GetEntry returns the entry for email under family, or nil if absent.
	GetEntry(ctx context.Context, family CacheFamily, email string) (*CacheEntry, error)

	// ListFamily enumerates every entry under family (admin use).
	ListFamily(ctx context.Context, family CacheFamily) ([]CacheEntry, error)
}

package admin

import (
	"context"
	"sort"

	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/domain/shared"
)

// listableFamilies are the cache namespaces the listing endpoint exposes.
// The token indirection namespace is deliberately absent; tokens are
// single-use links and are never enumerated.
var listableFamilies = map[string]entitlement.CacheFamily{
	string(entitlement.FamilyHunterPro):        entitlement.FamilyHunterPro,
	string(entitlement.FamilyDatabaseAccess):   entitlement.FamilyDatabaseAccess,
	string(entitlement.FamilyRecompete):        entitlement.FamilyRecompete,
	string(entitlement.FamilyMarketAssassin):   entitlement.FamilyMarketAssassin,
	string(entitlement.FamilyContentGenerator): entitlement.FamilyContentGenerator,
}

// ListingService enumerates cache grants for support inspection
type ListingService struct {
	cache entitlement.AccessCache
}

// NewListingService creates a listing service
func NewListingService(cache entitlement.AccessCache) *ListingService {
	return &ListingService{cache: cache}
}

// FamilyListing is the enumerated contents of one cache namespace
type FamilyListing struct {
	Family  string                   `json:"family"`
	Count   int                      `json:"count"`
	Entries []entitlement.CacheEntry `json:"entries"`
}

// ListAccess enumerates every entry under the named family, sorted by email
func (s *ListingService) ListAccess(ctx context.Context, family string) (*FamilyListing, error) {
	fam, ok := listableFamilies[family]
	if !ok {
		return nil, shared.ErrInvalidInput
	}

	entries, err := s.cache.ListFamily(ctx, fam)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Email < entries[j].Email })
	if entries == nil {
		entries = []entitlement.CacheEntry{}
	}
	return &FamilyListing{Family: family, Count: len(entries), Entries: entries}, nil
}

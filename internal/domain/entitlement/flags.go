package entitlement

import "github.com/govcon/backend/internal/domain/catalog"

// AccessFlag names one boolean access column on a user profile. Flags are
// monotonic: they are only ever set to true, never cleared.
type AccessFlag string

const (
	FlagHunterPro        AccessFlag = "access_hunter_pro"
	FlagContentStandard  AccessFlag = "access_content_standard"
	FlagContentFullFix   AccessFlag = "access_content_full_fix"
	FlagAssassinStandard AccessFlag = "access_assassin_standard"
	FlagAssassinPremium  AccessFlag = "access_assassin_premium"
	FlagRecompete        AccessFlag = "access_recompete"
	FlagContractorDB     AccessFlag = "access_contractor_db"
)

// AllFlags lists every access flag in declaration order.
var AllFlags = []AccessFlag{
	FlagHunterPro,
	FlagContentStandard,
	FlagContentFullFix,
	FlagAssassinStandard,
	FlagAssassinPremium,
	FlagRecompete,
	FlagContractorDB,
}

// FlagSet is a set of flags to apply. Only true entries are meaningful;
// merges never clear a flag.
type FlagSet map[AccessFlag]bool

// Add merges other into s.
func (s FlagSet) Add(other FlagSet) {
	for f, v := range other {
		if v {
			s[f] = true
		}
	}
}

// Names returns the set's flags as sorted-stable strings (declaration order).
func (s FlagSet) Names() []string {
	out := make([]string, 0, len(s))
	for _, f := range AllFlags {
		if s[f] {
			out = append(out, string(f))
		}
	}
	return out
}

// FlagsForGrant returns the profile flags one atomic grant sets. A premium or
// full-fix tier always carries its standard flag too, so the
// premium-implies-standard invariant holds after every write rather than
// being inferred at read time.
func FlagsForGrant(g Grant) FlagSet {
	switch g.Product {
	case catalog.ProductHunterPro:
		return FlagSet{FlagHunterPro: true}
	case catalog.ProductContractorDatabase:
		return FlagSet{FlagContractorDB: true}
	case catalog.ProductRecompete:
		return FlagSet{FlagRecompete: true}
	case catalog.ProductAssassinStandard:
		return FlagSet{FlagAssassinStandard: true}
	case catalog.ProductAssassinPremium:
		return FlagSet{FlagAssassinPremium: true, FlagAssassinStandard: true}
	case catalog.ProductContentGenerator:
		if g.ContentTier == ContentTierFullFix {
			return FlagSet{FlagContentFullFix: true, FlagContentStandard: true}
		}
		return FlagSet{FlagContentStandard: true}
	}
	return FlagSet{}
}

// FlagsForPurchase returns every flag a purchase of id should have set,
// expanding bundles through the same grant table used by the live flow.
func FlagsForPurchase(cat *catalog.Catalog, id catalog.ProductID) FlagSet {
	flags := FlagSet{}
	for _, g := range ResolveGrants(cat, id) {
		flags.Add(FlagsForGrant(g))
	}
	return flags
}

package entitlement

import "github.com/govcon/backend/internal/domain/catalog"

// ContentTier is the quality level of the content generator product. The
// Ultimate bundle grants the full-fix tier; every other purchase path grants
// the standard engine.
type ContentTier string

const (
	ContentTierEngine  ContentTier = "content-engine"
	ContentTierFullFix ContentTier = "full-fix"
)

// Grant is one atomic product to be applied to a customer. ContentTier is
// only meaningful when Product is the content generator.
type Grant struct {
	Product     catalog.ProductID
	ContentTier ContentTier
}

// ResolveGrants computes the atomic grants a purchase of id confers. Bundles
// expand to their members (members are never bundles themselves, so no
// recursion is needed); an atomic product yields itself; an unrecognized id
// yields nil so webhook processing can log and skip rather than fail.
func ResolveGrants(cat *catalog.Catalog, id catalog.ProductID) []Grant {
	if !cat.Known(id) {
		return nil
	}

	contentTier := ContentTierEngine
	if id == catalog.BundleUltimate {
		contentTier = ContentTierFullFix
	}

	members := cat.BundleMembers(id)
	if len(members) == 0 {
		members = []catalog.ProductID{id}
	}

	grants := make([]Grant, 0, len(members))
	for _, m := range members {
		g := Grant{Product: m}
		if m == catalog.ProductContentGenerator {
			g.ContentTier = contentTier
		}
		grants = append(grants, g)
	}
	return grants
}

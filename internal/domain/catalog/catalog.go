package catalog

import "sync"

// Catalog is the static product catalog. It is built once at process start
// and never mutated afterwards, so lookups are safe for concurrent use.
type Catalog struct {
	byID       map[ProductID]Product
	byProvider map[string]ProductID
	ordered    []ProductID
}

// products is the authoritative catalog table. Provider IDs come from the
// Stripe dashboard; a product keeps its historical IDs so old transactions
// still resolve.
var products = []Product{
	{
		ID:          ProductContentGenerator,
		DisplayName: "Content Reaper",
		Price:       197,
	},
	{
		ID:          ProductContractorDatabase,
		DisplayName: "Federal Contractor Database",
		Price:       497,
		ProviderIDs: []string{"prod_Tj551jheCp9wdQ"},
	},
	{
		ID:          ProductRecompete,
		DisplayName: "Recompete Contracts Tracker",
		Price:       397,
	},
	{
		ID:          ProductAssassinStandard,
		DisplayName: "Federal Market Assassin (Standard)",
		Price:       297,
		ProviderIDs: []string{"prod_TlWsJM5a0JEvs7"},
	},
	{
		ID:          ProductAssassinPremium,
		DisplayName: "Federal Market Assassin (Premium)",
		Price:       497,
		ProviderIDs: []string{"prod_TiOjPpnyLnO3eb"},
	},
	{
		ID:          ProductHunterPro,
		DisplayName: "Opportunity Hunter Pro",
		Price:       49,
		ProviderIDs: []string{"prod_TlVBTsPCtgmKuY"},
	},
	{
		ID:            BundleStarter,
		DisplayName:   "GovCon Starter Bundle",
		Price:         697,
		BundleMembers: []ProductID{ProductHunterPro, ProductRecompete, ProductContractorDatabase},
	},
	{
		ID:            BundleProGiant,
		DisplayName:   "Pro Giant Bundle",
		Price:         997,
		BundleMembers: []ProductID{ProductContractorDatabase, ProductRecompete, ProductAssassinStandard, ProductContentGenerator},
	},
	{
		ID:            BundleUltimate,
		DisplayName:   "Ultimate GovCon Bundle",
		Price:         1497,
		ProviderIDs:   []string{"prod_TrU0CviMWdDTnj"},
		BundleMembers: []ProductID{ProductContentGenerator, ProductContractorDatabase, ProductRecompete, ProductAssassinPremium},
	},
}

var (
	defaultCatalog *Catalog
	buildOnce      sync.Once
)

// Default returns the process-wide catalog, building it on first use.
func Default() *Catalog {
	buildOnce.Do(func() {
		defaultCatalog = New(products)
	})
	return defaultCatalog
}

// New builds a catalog from the given product list.
func New(entries []Product) *Catalog {
	c := &Catalog{
		byID:       make(map[ProductID]Product, len(entries)),
		byProvider: make(map[string]ProductID),
		ordered:    make([]ProductID, 0, len(entries)),
	}
	for _, p := range entries {
		c.byID[p.ID] = p
		c.ordered = append(c.ordered, p.ID)
		for _, pid := range p.ProviderIDs {
			c.byProvider[pid] = p.ID
		}
	}
	return c
}

// Get returns the catalog entry for id.
func (c *Catalog) Get(id ProductID) (Product, bool) {
	p, ok := c.byID[id]
	return p, ok
}

// Known reports whether id is a recognized catalog entry.
func (c *Catalog) Known(id ProductID) bool {
	_, ok := c.byID[id]
	return ok
}

// ResolveProviderProduct maps a provider-specific product identifier to the
// internal product ID. All registered variants are checked.
func (c *Catalog) ResolveProviderProduct(providerID string) (ProductID, bool) {
	id, ok := c.byProvider[providerID]
	return id, ok
}

// BundleMembers returns the member products of a bundle, or an empty list if
// id is not a bundle or unknown.
func (c *Catalog) BundleMembers(id ProductID) []ProductID {
	p, ok := c.byID[id]
	if !ok || !p.IsBundle() {
		return nil
	}
	members := make([]ProductID, len(p.BundleMembers))
	copy(members, p.BundleMembers)
	return members
}

// IsBundle reports whether id is a known bundle.
func (c *Catalog) IsBundle(id ProductID) bool {
	p, ok := c.byID[id]
	return ok && p.IsBundle()
}

// DisplayName returns the friendly product name, falling back to the raw id
// for unknown products. It never fails.
func (c *Catalog) DisplayName(id ProductID) string {
	if p, ok := c.byID[id]; ok {
		return p.DisplayName
	}
	return string(id)
}

// ProductIDs returns all catalog entries in declaration order.
func (c *Catalog) ProductIDs() []ProductID {
	ids := make([]ProductID, len(c.ordered))
	copy(ids, c.ordered)
	return ids
}

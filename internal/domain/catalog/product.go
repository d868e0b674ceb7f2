package catalog

// ProductID identifies a catalog entry by its stable internal slug.
type ProductID string

// Atomic products
const (
	ProductContentGenerator   ProductID = "ai-content-generator"
	ProductContractorDatabase ProductID = "contractor-database"
	ProductRecompete          ProductID = "recompete-contracts"
	ProductAssassinStandard   ProductID = "market-assassin-standard"
	ProductAssassinPremium    ProductID = "market-assassin-premium"
	ProductHunterPro          ProductID = "opportunity-hunter-pro"
)

// Bundles
const (
	BundleStarter  ProductID = "govcon-starter-bundle"
	BundleProGiant ProductID = "pro-giant-bundle"
	BundleUltimate ProductID = "ultimate-govcon-bundle"
)

// Product is an immutable catalog entry. A product may carry more than one
// provider identifier (separate live/test catalog entries or pricing
// variants). BundleMembers is empty for non-bundles and never contains a
// bundle itself.
type Product struct {
	ID            ProductID
	DisplayName   string
	Price         int // USD, list price
	ProviderIDs   []string
	BundleMembers []ProductID
}

// IsBundle reports whether the product grants a fixed set of other products.
func (p Product) IsBundle() bool {
	return len(p.BundleMembers) > 0
}

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	t.Run("knows all nine products", func(t *testing.T) {
		assert.Len(t, c.ProductIDs(), 9)
	})

	t.Run("same instance on repeated calls", func(t *testing.T) {
		assert.Same(t, c, Default())
	})
}

func TestCatalog_ResolveProviderProduct(t *testing.T) {
	c := Default()

	cases := []struct {
		providerID string
		want       ProductID
	}{
		{"prod_Tj551jheCp9wdQ", ProductContractorDatabase},
		{"prod_TlVBTsPCtgmKuY", ProductHunterPro},
		{"prod_TlWsJM5a0JEvs7", ProductAssassinStandard},
		{"prod_TiOjPpnyLnO3eb", ProductAssassinPremium},
		{"prod_TrU0CviMWdDTnj", BundleUltimate},
	}
	for _, tc := range cases {
		got, ok := c.ResolveProviderProduct(tc.providerID)
		require.True(t, ok, tc.providerID)
		assert.Equal(t, tc.want, got)
	}

	t.Run("unknown provider id", func(t *testing.T) {
		_, ok := c.ResolveProviderProduct("prod_doesnotexist")
		assert.False(t, ok)
	})
}

func TestCatalog_BundleMembers(t *testing.T) {
	c := Default()

	t.Run("starter bundle", func(t *testing.T) {
		assert.Equal(t, []ProductID{ProductHunterPro, ProductRecompete, ProductContractorDatabase},
			c.BundleMembers(BundleStarter))
	})

	t.Run("pro giant bundle", func(t *testing.T) {
		assert.Equal(t, []ProductID{ProductContractorDatabase, ProductRecompete, ProductAssassinStandard, ProductContentGenerator},
			c.BundleMembers(BundleProGiant))
	})

	t.Run("ultimate bundle", func(t *testing.T) {
		assert.Equal(t, []ProductID{ProductContentGenerator, ProductContractorDatabase, ProductRecompete, ProductAssassinPremium},
			c.BundleMembers(BundleUltimate))
	})

	t.Run("no member is itself a bundle", func(t *testing.T) {
		for _, id := range c.ProductIDs() {
			for _, m := range c.BundleMembers(id) {
				assert.False(t, c.IsBundle(m), "bundle %s contains nested bundle %s", id, m)
			}
		}
	})

	t.Run("atomic product has no members", func(t *testing.T) {
		assert.Empty(t, c.BundleMembers(ProductRecompete))
	})

	t.Run("unknown id has no members", func(t *testing.T) {
		assert.Empty(t, c.BundleMembers("not-a-product"))
	})
}

func TestCatalog_DisplayName(t *testing.T) {
	c := Default()

	assert.Equal(t, "Content Reaper", c.DisplayName(ProductContentGenerator))
	assert.Equal(t, "Federal Contractor Database", c.DisplayName(ProductContractorDatabase))
	assert.Equal(t, "Ultimate GovCon Bundle", c.DisplayName(BundleUltimate))

	t.Run("falls back to raw id for unknown products", func(t *testing.T) {
		assert.Equal(t, "prod_mystery", c.DisplayName("prod_mystery"))
	})
}

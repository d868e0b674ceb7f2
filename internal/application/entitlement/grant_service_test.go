package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/infrastructure/cache"
	"github.com/govcon/backend/internal/infrastructure/email"
)

func newGrantFixture() (*GrantService, *fakeProfileRepo, *cache.InMemoryAccessCache, *email.RecorderMailer) {
	profiles := newFakeProfileRepo()
	accessCache := cache.NewInMemoryAccessCache()
	mailer := &email.RecorderMailer{}
	svc := NewGrantService(catalog.Default(), profiles, accessCache, mailer, "https://govcongiants.example", zap.NewNop())
	return svc, profiles, accessCache, mailer
}

func TestGrantService_ApplyGrant_UltimateBundle(t *testing.T) {
	svc, profiles, accessCache, mailer := newGrantFixture()
	ctx := context.Background()

	result, err := svc.ApplyGrant(ctx, "Buyer@Example.com", "Pat Buyer", catalog.BundleUltimate)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"access_content_standard",
		"access_content_full_fix",
		"access_assassin_standard",
		"access_assassin_premium",
		"access_recompete",
		"access_contractor_db",
	}, result.Flags.Names())

	profile, err := profiles.GetByEmail(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.True(t, profile.HasFlag(entitlement.FlagAssassinPremium))
	assert.True(t, profile.HasFlag(entitlement.FlagContentFullFix))
	assert.NotEmpty(t, profile.LicenseKey)

	// content generator cache carries the full-fix tier
	entry, err := accessCache.GetEntry(ctx, entitlement.FamilyContentGenerator, "buyer@example.com")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "full-fix", entry.Tier)

	has, err := accessCache.HasAccess(ctx, entitlement.FamilyDatabaseAccess, "buyer@example.com")
	require.NoError(t, err)
	assert.True(t, has)

	assert.True(t, result.TokenMinted)
	assert.NotEmpty(t, result.DatabaseToken)

	// database link email plus the bundle welcome
	require.Len(t, mailer.Sent, 2)
	assert.Contains(t, mailer.Sent[0].Subject, "Database")
	assert.Contains(t, mailer.Sent[1].Subject, "Ultimate GovCon Bundle")
}

func TestGrantService_ApplyGrant_TokenEmailSentOnce(t *testing.T) {
	svc, _, _, mailer := newGrantFixture()
	ctx := context.Background()

	first, err := svc.ApplyGrant(ctx, "buyer@example.com", "", catalog.ProductContractorDatabase)
	require.NoError(t, err)
	assert.True(t, first.TokenMinted)
	require.Len(t, mailer.Sent, 1)

	// re-applying the same grant must not re-send the single-use link
	second, err := svc.ApplyGrant(ctx, "buyer@example.com", "", catalog.ProductContractorDatabase)
	require.NoError(t, err)
	assert.False(t, second.TokenMinted)
	assert.Equal(t, first.DatabaseToken, second.DatabaseToken)
	assert.Len(t, mailer.Sent, 1)
}

func TestGrantService_ApplyGrant_HunterProWelcome(t *testing.T) {
	svc, _, accessCache, mailer := newGrantFixture()
	ctx := context.Background()

	result, err := svc.ApplyGrant(ctx, "hunter@example.com", "", catalog.ProductHunterPro)
	require.NoError(t, err)
	assert.Equal(t, []string{"access_hunter_pro"}, result.Flags.Names())

	has, err := accessCache.HasAccess(ctx, entitlement.FamilyHunterPro, "hunter@example.com")
	require.NoError(t, err)
	assert.True(t, has)

	require.Len(t, mailer.Sent, 1)
	assert.Contains(t, mailer.Sent[0].Subject, "Opportunity Hunter Pro")
}

func TestGrantService_ApplyGrant_GenericAccessMail(t *testing.T) {
	svc, _, _, mailer := newGrantFixture()
	ctx := context.Background()

	_, err := svc.ApplyGrant(ctx, "buyer@example.com", "", catalog.ProductRecompete)
	require.NoError(t, err)

	require.Len(t, mailer.Sent, 1)
	assert.Contains(t, mailer.Sent[0].Subject, "Recompete")
}

func TestGrantService_ApplyGrant_UnknownProduct(t *testing.T) {
	svc, profiles, _, mailer := newGrantFixture()
	ctx := context.Background()

	result, err := svc.ApplyGrant(ctx, "buyer@example.com", "", catalog.ProductID("prod_unknown"))
	require.NoError(t, err)
	assert.Empty(t, result.Flags)
	assert.Empty(t, mailer.Sent)

	_, err = profiles.GetByEmail(ctx, "buyer@example.com")
	assert.Error(t, err)
}

func TestGrantService_ApplyGrant_PremiumImpliesStandard(t *testing.T) {
	svc, profiles, _, _ := newGrantFixture()
	ctx := context.Background()

	_, err := svc.ApplyGrant(ctx, "ma@example.com", "", catalog.ProductAssassinPremium)
	require.NoError(t, err)

	profile, err := profiles.GetByEmail(ctx, "ma@example.com")
	require.NoError(t, err)
	assert.True(t, profile.HasFlag(entitlement.FlagAssassinPremium))
	assert.True(t, profile.HasFlag(entitlement.FlagAssassinStandard))
}

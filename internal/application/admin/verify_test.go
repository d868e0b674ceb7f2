package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/infrastructure/cache"
)

func TestVerify_ReportsDrift(t *testing.T) {
	ctx := context.Background()
	purchases := newFakePurchaseRepo()
	profiles := newFakeProfileRepo()
	accessCache := cache.NewInMemoryAccessCache()
	svc := NewVerifyService(purchases, profiles, accessCache, catalog.Default(), zap.NewNop())

	// drifted account: ledger says hunter pro, no flags or cache anywhere
	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("drift@example.com", catalog.ProductHunterPro, "Opportunity Hunter Pro", "cs_1", 9700)))

	// consistent account: flags and cache match the ledger
	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("good@example.com", catalog.ProductRecompete, "Recompete Contracts Tracker", "cs_2", 39700)))
	_, err := profiles.GetOrCreate(ctx, "good@example.com", "")
	require.NoError(t, err)
	_, err = profiles.SetFlags(ctx, "good@example.com", entitlement.FlagSet{entitlement.FlagRecompete: true})
	require.NoError(t, err)
	require.NoError(t, accessCache.Grant(ctx, entitlement.FamilyRecompete, "good@example.com",
		entitlement.CacheEntry{ProductID: "recompete-contracts"}))

	result, err := svc.Run(ctx, []string{"drift@example.com", "good@example.com"})
	require.NoError(t, err)
	require.Len(t, result.Audits, 2)
	assert.Equal(t, 1, result.DriftedCount)

	drift := result.Audits[0]
	assert.False(t, drift.Consistent)
	assert.False(t, drift.ProfileExists)
	assert.Equal(t, []string{"access_hunter_pro"}, drift.MissingFlags)
	assert.Equal(t, []string{"ospro"}, drift.MissingCaches)

	good := result.Audits[1]
	assert.True(t, good.Consistent)
	assert.True(t, good.ProfileExists)
	assert.Empty(t, good.MissingFlags)
	assert.Empty(t, good.MissingCaches)
}

func TestVerify_WritesNothing(t *testing.T) {
	ctx := context.Background()
	purchases := newFakePurchaseRepo()
	profiles := newFakeProfileRepo()
	accessCache := cache.NewInMemoryAccessCache()
	svc := NewVerifyService(purchases, profiles, accessCache, catalog.Default(), zap.NewNop())

	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("drift@example.com", catalog.ProductHunterPro, "Opportunity Hunter Pro", "cs_1", 9700)))

	_, err := svc.Run(ctx, []string{"drift@example.com"})
	require.NoError(t, err)

	_, err = profiles.GetByEmail(ctx, "drift@example.com")
	assert.Error(t, err)
	has, err := accessCache.HasAccess(ctx, entitlement.FamilyHunterPro, "drift@example.com")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestVerify_ContinuesPastFailedAccount(t *testing.T) {
	ctx := context.Background()
	purchases := newFakePurchaseRepo()
	ledger := &flakyLedger{fakePurchaseRepo: purchases, failEmail: "broken@example.com"}
	svc := NewVerifyService(ledger, newFakeProfileRepo(), cache.NewInMemoryAccessCache(), catalog.Default(), zap.NewNop())

	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("fine@example.com", catalog.ProductHunterPro, "Opportunity Hunter Pro", "cs_1", 9700)))

	result, err := svc.Run(ctx, []string{"broken@example.com", "fine@example.com"})
	require.NoError(t, err)
	require.Len(t, result.Audits, 2)
	assert.Equal(t, "ledger offline", result.Audits[0].Error)
	assert.False(t, result.Audits[1].Consistent)
	assert.Equal(t, 2, result.DriftedCount)
}

func TestVerify_DefaultsToLedgerPopulation(t *testing.T) {
	ctx := context.Background()
	purchases := newFakePurchaseRepo()
	svc := NewVerifyService(purchases, newFakeProfileRepo(), cache.NewInMemoryAccessCache(), catalog.Default(), zap.NewNop())

	// a drifted real customer must show up in a no-argument audit; the
	// synthetic test account must not
	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("customer@example.com", catalog.ProductRecompete, "Recompete Contracts Tracker", "cs_1", 39700)))
	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("test@gmail.com", catalog.ProductHunterPro, "Opportunity Hunter Pro", "cs_2", 9700)))

	result, err := svc.Run(ctx, nil)
	require.NoError(t, err)
	require.Len(t, result.Audits, 1)
	assert.Equal(t, "customer@example.com", result.Audits[0].Email)
	assert.False(t, result.Audits[0].Consistent)
	assert.Equal(t, 1, result.DriftedCount)
}

package admin

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/govcon/backend/internal/domain/catalog"
	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/infrastructure/cache"
)

func TestRepair_RebuildsFlagsAndCache(t *testing.T) {
	ctx := context.Background()
	purchases := newFakePurchaseRepo()
	profiles := newFakeProfileRepo()
	accessCache := cache.NewInMemoryAccessCache()
	svc := NewRepairService(purchases, profiles, accessCache, catalog.Default(), zap.NewNop())

	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("eric@govcongiants.com", catalog.BundleUltimate, "Ultimate GovCon Bundle", "cs_1", 149700)))

	result, err := svc.Run(ctx, []string{"Eric@GovConGiants.com"}, false)
	require.NoError(t, err)
	require.Len(t, result.Repairs, 1)

	repair := result.Repairs[0]
	assert.Equal(t, "eric@govcongiants.com", repair.Email)
	assert.Equal(t, 1, repair.Purchases)
	assert.Contains(t, repair.FlagsApplied, "access_assassin_premium")
	assert.Contains(t, repair.FlagsApplied, "access_content_full_fix")

	profile, err := profiles.GetByEmail(ctx, "eric@govcongiants.com")
	require.NoError(t, err)
	assert.True(t, profile.HasFlag(entitlement.FlagContractorDB))

	cgEntry, err := accessCache.GetEntry(ctx, entitlement.FamilyContentGenerator, "eric@govcongiants.com")
	require.NoError(t, err)
	require.NotNil(t, cgEntry)
	assert.Equal(t, "full-fix", cgEntry.Tier)

	has, err := accessCache.HasAccess(ctx, entitlement.FamilyDatabaseAccess, "eric@govcongiants.com")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRepair_DefaultsToLedgerPopulation(t *testing.T) {
	ctx := context.Background()
	purchases := newFakePurchaseRepo()
	profiles := newFakeProfileRepo()
	accessCache := cache.NewInMemoryAccessCache()
	svc := NewRepairService(purchases, profiles, accessCache, catalog.Default(), zap.NewNop())

	// a drifted real customer and a synthetic test account
	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("customer@example.com", catalog.ProductRecompete, "Recompete Contracts Tracker", "cs_1", 39700)))
	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("eric@govcongiants.com", catalog.ProductHunterPro, "Opportunity Hunter Pro", "cs_2", 9700)))

	// no explicit emails: every ledger customer is repaired, test accounts excluded
	result, err := svc.Run(ctx, nil, false)
	require.NoError(t, err)
	require.Len(t, result.Repairs, 1)
	assert.Equal(t, "customer@example.com", result.Repairs[0].Email)

	profile, err := profiles.GetByEmail(ctx, "customer@example.com")
	require.NoError(t, err)
	assert.True(t, profile.HasFlag(entitlement.FlagRecompete))

	// the test account is untouched unless named explicitly
	_, err = profiles.GetByEmail(ctx, "eric@govcongiants.com")
	assert.Error(t, err)

	result, err = svc.Run(ctx, []string{"eric@govcongiants.com"}, false)
	require.NoError(t, err)
	require.Len(t, result.Repairs, 1)
	assert.Equal(t, 1, result.Repairs[0].Purchases)
}

func TestRepair_SkipsAccountsWithoutPurchases(t *testing.T) {
	ctx := context.Background()
	svc := NewRepairService(newFakePurchaseRepo(), newFakeProfileRepo(), cache.NewInMemoryAccessCache(), catalog.Default(), zap.NewNop())

	result, err := svc.Run(ctx, []string{"nobody@example.com"}, false)
	require.NoError(t, err)
	require.Len(t, result.Repairs, 1)
	assert.True(t, result.Repairs[0].Skipped)
	assert.Equal(t, "no completed purchases", result.Repairs[0].Reason)
}

func TestRepair_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	purchases := newFakePurchaseRepo()
	profiles := newFakeProfileRepo()
	accessCache := cache.NewInMemoryAccessCache()
	svc := NewRepairService(purchases, profiles, accessCache, catalog.Default(), zap.NewNop())

	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("test@gmail.com", catalog.ProductRecompete, "Recompete Contracts Tracker", "cs_1", 39700)))

	result, err := svc.Run(ctx, []string{"test@gmail.com"}, true)
	require.NoError(t, err)
	require.Len(t, result.Repairs, 1)
	assert.Contains(t, result.Repairs[0].FlagsApplied, "access_recompete")
	assert.Contains(t, result.Repairs[0].FamiliesFilled, "recompete")

	_, err = profiles.GetByEmail(ctx, "test@gmail.com")
	assert.Error(t, err)

	has, err := accessCache.HasAccess(ctx, entitlement.FamilyRecompete, "test@gmail.com")
	require.NoError(t, err)
	assert.False(t, has)
}

// flakyLedger fails reads for one email so batch continuation can be tested
type flakyLedger struct {
	*fakePurchaseRepo
	failEmail string
}

func (r *flakyLedger) FindByEmail(ctx context.Context, email string, status entitlement.PurchaseStatus) ([]entitlement.Purchase, error) {
	if entitlement.NormalizeEmail(email) == r.failEmail {
		return nil, fmt.Errorf("ledger offline")
	}
	return r.fakePurchaseRepo.FindByEmail(ctx, email, status)
}

func TestRepair_ContinuesPastFailedAccount(t *testing.T) {
	ctx := context.Background()
	purchases := newFakePurchaseRepo()
	profiles := newFakeProfileRepo()
	ledger := &flakyLedger{fakePurchaseRepo: purchases, failEmail: "broken@example.com"}
	svc := NewRepairService(ledger, profiles, cache.NewInMemoryAccessCache(), catalog.Default(), zap.NewNop())

	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("fine@example.com", catalog.ProductHunterPro, "Opportunity Hunter Pro", "cs_1", 9700)))

	result, err := svc.Run(ctx, []string{"broken@example.com", "fine@example.com"}, false)
	require.NoError(t, err)
	require.Len(t, result.Repairs, 2)
	assert.Equal(t, "ledger offline", result.Repairs[0].Error)
	assert.Empty(t, result.Repairs[1].Error)
	assert.Contains(t, result.Repairs[1].FlagsApplied, "access_hunter_pro")
}

func TestRepair_IgnoresRefundedPurchases(t *testing.T) {
	ctx := context.Background()
	purchases := newFakePurchaseRepo()
	svc := NewRepairService(purchases, newFakeProfileRepo(), cache.NewInMemoryAccessCache(), catalog.Default(), zap.NewNop())

	require.NoError(t, purchases.Insert(ctx,
		entitlement.NewPurchase("test@gmail.com", catalog.ProductRecompete, "Recompete Contracts Tracker", "cs_1", 39700)))
	require.NoError(t, purchases.MarkRefunded(ctx, "cs_1", "test@gmail.com"))

	result, err := svc.Run(ctx, []string{"test@gmail.com"}, false)
	require.NoError(t, err)
	assert.True(t, result.Repairs[0].Skipped)
}

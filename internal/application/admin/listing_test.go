package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govcon/backend/internal/domain/entitlement"
	"github.com/govcon/backend/internal/domain/shared"
	"github.com/govcon/backend/internal/infrastructure/cache"
)

func TestListing_SortedByEmail(t *testing.T) {
	ctx := context.Background()
	accessCache := cache.NewInMemoryAccessCache()
	svc := NewListingService(accessCache)

	for _, addr := range []string{"charlie@example.com", "alice@example.com", "bob@example.com"} {
		require.NoError(t, accessCache.Grant(ctx, entitlement.FamilyRecompete, addr,
			entitlement.CacheEntry{ProductID: "recompete-contracts"}))
	}

	listing, err := svc.ListAccess(ctx, "recompete")
	require.NoError(t, err)
	assert.Equal(t, 3, listing.Count)
	require.Len(t, listing.Entries, 3)
	assert.Equal(t, "alice@example.com", listing.Entries[0].Email)
	assert.Equal(t, "bob@example.com", listing.Entries[1].Email)
	assert.Equal(t, "charlie@example.com", listing.Entries[2].Email)
}

func TestListing_EmptyFamily(t *testing.T) {
	svc := NewListingService(cache.NewInMemoryAccessCache())

	listing, err := svc.ListAccess(context.Background(), "ospro")
	require.NoError(t, err)
	assert.Zero(t, listing.Count)
	assert.NotNil(t, listing.Entries)
}

func TestListing_RejectsUnknownAndTokenFamilies(t *testing.T) {
	svc := NewListingService(cache.NewInMemoryAccessCache())

	_, err := svc.ListAccess(context.Background(), "bogus")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	// the token namespace is never listable
	_, err = svc.ListAccess(context.Background(), "dbtoken")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-bridge/internal/domain"
	"solana-bridge/internal/storage"
	pgstore "solana-bridge/internal/storage/postgres"
)

func testRequest(id string, createdAt int64) *domain.BridgeRequest {
	return &domain.BridgeRequest{
		RequestID:        id,
		Mint:             "So11111111111111111111111111111111111111112",
		UserTokenAccount: "ATA1111111111111111111111111111111111111111",
		Amount:           1,
		TxSignature:      "sig-" + id,
		Slot:             12345,
		Status:           domain.RequestPending,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func TestRequestStore_InsertAndGet(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := pgstore.NewRequestStore(pool)

	r := testRequest("12345", 1704067200000)
	require.NoError(t, store.Insert(ctx, r))

	got, err := store.GetByID(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	err = store.Insert(ctx, r)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRequestStore_UpdateAndGetByStatus(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := pgstore.NewRequestStore(pool)

	require.NoError(t, store.Insert(ctx, testRequest("b", 200)))
	require.NoError(t, store.Insert(ctx, testRequest("a", 100)))
	require.NoError(t, store.Insert(ctx, testRequest("c", 300)))

	require.NoError(t, store.Update(ctx, "b", &storage.RequestUpdate{
		Status:      domain.RequestMinted,
		Attempts:    2,
		WrappedMint: ptr("wrapped-mint"),
		UpdatedAt:   400,
	}))
	// A later update without a mint keeps the recorded one
	require.NoError(t, store.Update(ctx, "b", &storage.RequestUpdate{
		Status:    domain.RequestMinted,
		Attempts:  2,
		UpdatedAt: 500,
	}))

	got, err := store.GetByID(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestMinted, got.Status)
	require.NotNil(t, got.WrappedMint)
	assert.Equal(t, "wrapped-mint", *got.WrappedMint)
	assert.Equal(t, int64(500), got.UpdatedAt)

	pending, err := store.GetByStatus(ctx, domain.RequestPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "a", pending[0].RequestID)
	assert.Equal(t, "c", pending[1].RequestID)

	limited, err := store.GetByStatus(ctx, domain.RequestPending, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	err = store.Update(ctx, "missing", &storage.RequestUpdate{Status: domain.RequestFailed})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWrappedAssetStore_InsertAndGet(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := pgstore.NewWrappedAssetStore(pool)

	a := &domain.WrappedAsset{
		Mint:                    "mintA",
		DestinationTokenAccount: "destA",
		RequestID:               "12345",
		TxSignature:             "sigA",
		Slot:                    7,
		CreatedAt:               1704067200000,
	}
	require.NoError(t, store.Insert(ctx, a))
	assert.ErrorIs(t, store.Insert(ctx, a), storage.ErrDuplicateKey)

	byMint, err := store.GetByMint(ctx, "mintA")
	require.NoError(t, err)
	assert.Equal(t, a, byMint)

	byRequest, err := store.GetByRequestID(ctx, "12345")
	require.NoError(t, err)
	assert.Equal(t, "mintA", byRequest.Mint)

	_, err = store.GetByRequestID(ctx, "other")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProgressStore_NeverMovesBackwards(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := pgstore.NewProgressStore(pool)

	_, err := store.GetLastProcessed(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetLastProcessed(ctx, &storage.Progress{Slot: 200, Signature: "Sig200"}))
	require.NoError(t, store.SetLastProcessed(ctx, &storage.Progress{Slot: 100, Signature: "Sig100"}))

	got, err := store.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), got.Slot)
	assert.Equal(t, "Sig200", got.Signature)
}

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-bridge/internal/domain"
	"solana-bridge/internal/storage"
)

func TestWrappedAssetStore(t *testing.T) {
	store := NewWrappedAssetStore()
	ctx := context.Background()

	a := &domain.WrappedAsset{
		Mint:                    "mintA",
		DestinationTokenAccount: "destA",
		RequestID:               "12345",
		TxSignature:             "sigA",
		Slot:                    7,
	}
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, a); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	byMint, err := store.GetByMint(ctx, "mintA")
	if err != nil || byMint.RequestID != "12345" {
		t.Fatalf("GetByMint: %+v, %v", byMint, err)
	}
	byReq, err := store.GetByRequestID(ctx, "12345")
	if err != nil || byReq.Mint != "mintA" {
		t.Fatalf("GetByRequestID: %+v, %v", byReq, err)
	}
	if _, err := store.GetByRequestID(ctx, "other"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestEventArchive_SkipsArchivedKeys(t *testing.T) {
	archive := NewEventArchive()
	ctx := context.Background()

	events := []*domain.EventRecord{
		{TxSignature: "sig2", EventIndex: 0, Slot: 20, Name: "TokenMintedEvent", RequestID: "r"},
		{TxSignature: "sig1", EventIndex: 1, Slot: 10, Name: "NewRequestEvent", RequestID: "r"},
		{TxSignature: "sig1", EventIndex: 0, Slot: 10, Name: "NewRequestEvent", RequestID: "other"},
	}
	if err := archive.Append(ctx, events); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := archive.Append(ctx, events[:1]); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if archive.Len() != 3 {
		t.Fatalf("expected 3 archived events, got %d", archive.Len())
	}

	got, err := archive.GetByRequestID(ctx, "r")
	if err != nil {
		t.Fatalf("GetByRequestID failed: %v", err)
	}
	if len(got) != 2 || got[0].TxSignature != "sig1" || got[1].TxSignature != "sig2" {
		t.Errorf("unexpected order: %+v", got)
	}

	if err := archive.Append(ctx, []*domain.EventRecord{{}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestProgressStore(t *testing.T) {
	store := NewProgressStore()
	ctx := context.Background()

	if _, err := store.GetLastProcessed(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	for _, p := range []storage.Progress{{Slot: 10, Signature: "a"}, {Slot: 20, Signature: "b"}, {Slot: 15, Signature: "c"}} {
		p := p
		if err := store.SetLastProcessed(ctx, &p); err != nil {
			t.Fatalf("SetLastProcessed failed: %v", err)
		}
	}

	got, err := store.GetLastProcessed(ctx)
	if err != nil {
		t.Fatalf("GetLastProcessed failed: %v", err)
	}
	if got.Slot != 20 || got.Signature != "b" {
		t.Errorf("progress moved backwards: %+v", got)
	}
}

func TestSeenCache_Expiry(t *testing.T) {
	cache := NewSeenCache(time.Minute)
	now := time.Unix(1700000000, 0)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := cache.MarkSeen(ctx, "sig:0")
	if err != nil || !first {
		t.Fatalf("expected first sighting, got %v, %v", first, err)
	}
	first, _ = cache.MarkSeen(ctx, "sig:0")
	if first {
		t.Errorf("expected redelivery to be detected")
	}

	now = now.Add(2 * time.Minute)
	first, _ = cache.MarkSeen(ctx, "sig:0")
	if !first {
		t.Errorf("expected key to expire after ttl")
	}

	if _, err := cache.MarkSeen(ctx, ""); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestSeenCache_Forget(t *testing.T) {
	cache := NewSeenCache(0)
	ctx := context.Background()

	if first, _ := cache.MarkSeen(ctx, "sig:1"); !first {
		t.Fatal("expected first sighting")
	}
	if err := cache.Forget(ctx, "sig:1"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if first, _ := cache.MarkSeen(ctx, "sig:1"); !first {
		t.Error("expected forgotten key to count as first sighting")
	}
	if err := cache.Forget(ctx, "never-seen"); err != nil {
		t.Errorf("Forget unknown key: %v", err)
	}
}

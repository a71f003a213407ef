package memory

import (
	"context"
	"sync"

	"solana-bridge/internal/domain"
	"solana-bridge/internal/storage"
)

// WrappedAssetStore is an in-memory implementation of storage.WrappedAssetStore.
type WrappedAssetStore struct {
	mu        sync.RWMutex
	data      map[string]*domain.WrappedAsset // keyed by mint
	byRequest map[string]string               // request_id -> mint
}

// NewWrappedAssetStore creates a new in-memory wrapped asset store.
func NewWrappedAssetStore() *WrappedAssetStore {
	return &WrappedAssetStore{
		data:      make(map[string]*domain.WrappedAsset),
		byRequest: make(map[string]string),
	}
}

// Insert adds a new wrapped asset. Returns ErrDuplicateKey if mint exists.
func (s *WrappedAssetStore) Insert(_ context.Context, a *domain.WrappedAsset) error {
	if a == nil || a.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.Mint]; exists {
		return storage.ErrDuplicateKey
	}
	assetCopy := *a
	s.data[a.Mint] = &assetCopy
	if a.RequestID != "" {
		if _, taken := s.byRequest[a.RequestID]; !taken {
			s.byRequest[a.RequestID] = a.Mint
		}
	}
	return nil
}

// GetByMint retrieves a wrapped asset by mint. Returns ErrNotFound if not exists.
func (s *WrappedAssetStore) GetByMint(_ context.Context, mint string) (*domain.WrappedAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	assetCopy := *a
	return &assetCopy, nil
}

// GetByRequestID retrieves the first wrapped asset minted for a request.
func (s *WrappedAssetStore) GetByRequestID(_ context.Context, requestID string) (*domain.WrappedAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mint, exists := s.byRequest[requestID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	assetCopy := *s.data[mint]
	return &assetCopy, nil
}

// Verify interface compliance at compile time.
var _ storage.WrappedAssetStore = (*WrappedAssetStore)(nil)

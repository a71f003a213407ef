package memory

import (
	"context"
	"sort"
	"sync"

	"solana-bridge/internal/domain"
	"solana-bridge/internal/storage"
)

// RequestStore is an in-memory implementation of storage.RequestStore.
type RequestStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BridgeRequest // keyed by request_id
}

// NewRequestStore creates a new in-memory request store.
func NewRequestStore() *RequestStore {
	return &RequestStore{
		data: make(map[string]*domain.BridgeRequest),
	}
}

// Insert adds a new request. Returns ErrDuplicateKey if request_id exists.
func (s *RequestStore) Insert(_ context.Context, r *domain.BridgeRequest) error {
	if r == nil || r.RequestID == "" || !r.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RequestID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.RequestID] = copyRequest(r)
	return nil
}

// GetByID retrieves a request by its id. Returns ErrNotFound if not exists.
func (s *RequestStore) GetByID(_ context.Context, requestID string) (*domain.BridgeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[requestID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRequest(r), nil
}

// GetByStatus retrieves up to limit requests in status, ordered by created_at ASC.
func (s *RequestStore) GetByStatus(_ context.Context, status domain.RequestStatus, limit int) ([]*domain.BridgeRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BridgeRequest
	for _, r := range s.data {
		if r.Status == status {
			result = append(result, copyRequest(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].RequestID < result[j].RequestID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Update applies u to a request. Returns ErrNotFound if not exists.
func (s *RequestStore) Update(_ context.Context, requestID string, u *storage.RequestUpdate) error {
	if u == nil || !u.Status.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.data[requestID]
	if !exists {
		return storage.ErrNotFound
	}
	r.Status = u.Status
	r.Attempts = u.Attempts
	r.LastError = u.LastError
	r.UpdatedAt = u.UpdatedAt
	if u.WrappedMint != nil {
		mint := *u.WrappedMint
		r.WrappedMint = &mint
	}
	return nil
}

// copyRequest prevents callers from mutating stored records.
func copyRequest(r *domain.BridgeRequest) *domain.BridgeRequest {
	c := *r
	if r.WrappedMint != nil {
		mint := *r.WrappedMint
		c.WrappedMint = &mint
	}
	return &c
}

// Verify interface compliance at compile time.
var _ storage.RequestStore = (*RequestStore)(nil)

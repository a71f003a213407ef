package storage

import (
	"context"
	"errors"

	"solana-bridge/internal/domain"
)

// Errors shared by every store implementation.
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidInput rejects records missing their key fields.
	ErrInvalidInput = errors.New("invalid input")
)

// RequestStore provides access to bridge_requests storage.
type RequestStore interface {
	// Insert adds a new request. Returns ErrDuplicateKey if request_id exists.
	Insert(ctx context.Context, r *domain.BridgeRequest) error

	// GetByID retrieves a request by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, requestID string) (*domain.BridgeRequest, error)

	// GetByStatus retrieves up to limit requests in status, ordered by created_at ASC.
	// A non-positive limit returns all of them.
	GetByStatus(ctx context.Context, status domain.RequestStatus, limit int) ([]*domain.BridgeRequest, error)

	// Update applies u to a request. Returns ErrNotFound if not exists.
	Update(ctx context.Context, requestID string, u *RequestUpdate) error
}

// RequestUpdate is a status transition of a request.
type RequestUpdate struct {
	Status      domain.RequestStatus
	Attempts    int
	LastError   string
	WrappedMint *string // left unchanged when nil
	UpdatedAt   int64
}

// WrappedAssetStore provides access to wrapped_assets storage.
type WrappedAssetStore interface {
	// Insert adds a new wrapped asset. Returns ErrDuplicateKey if mint exists.
	Insert(ctx context.Context, a *domain.WrappedAsset) error

	// GetByMint retrieves a wrapped asset by mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.WrappedAsset, error)

	// GetByRequestID retrieves the wrapped asset minted for a request.
	// Returns ErrNotFound if not exists.
	GetByRequestID(ctx context.Context, requestID string) (*domain.WrappedAsset, error)
}

// EventArchive is the append-only log of every decoded bridge event.
type EventArchive interface {
	// Append adds events. Events already archived under the same
	// (tx_signature, event_index) are skipped.
	Append(ctx context.Context, events []*domain.EventRecord) error

	// GetByRequestID retrieves the events of a request, ordered by slot and
	// event index ASC.
	GetByRequestID(ctx context.Context, requestID string) ([]*domain.EventRecord, error)
}

// SeenCache remembers transport keys for a bounded time so redelivered
// notifications are dropped.
type SeenCache interface {
	// MarkSeen records key and reports whether this is its first sighting.
	MarkSeen(ctx context.Context, key string) (bool, error)

	// Forget removes key so its next sighting counts as the first again.
	// Forgetting an unknown key is not an error.
	Forget(ctx context.Context, key string) error
}

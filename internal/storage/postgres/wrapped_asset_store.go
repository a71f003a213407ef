package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"solana-bridge/internal/domain"
	"solana-bridge/internal/storage"
)

// WrappedAssetStore implements storage.WrappedAssetStore using PostgreSQL.
type WrappedAssetStore struct {
	pool *Pool
}

// NewWrappedAssetStore creates a new WrappedAssetStore.
func NewWrappedAssetStore(pool *Pool) *WrappedAssetStore {
	return &WrappedAssetStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WrappedAssetStore = (*WrappedAssetStore)(nil)

// Insert adds a new wrapped asset. Returns ErrDuplicateKey if mint exists.
func (s *WrappedAssetStore) Insert(ctx context.Context, a *domain.WrappedAsset) error {
	if a == nil || a.Mint == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO wrapped_assets (
			mint, destination_token_account, request_id, tx_signature, slot, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`, a.Mint, a.DestinationTokenAccount, a.RequestID, a.TxSignature, a.Slot, a.CreatedAt)
	return storeError("insert wrapped asset", err)
}

// GetByMint retrieves a wrapped asset by mint. Returns ErrNotFound if not exists.
func (s *WrappedAssetStore) GetByMint(ctx context.Context, mint string) (*domain.WrappedAsset, error) {
	return s.getOne(ctx, "mint = $1", mint)
}

// GetByRequestID retrieves the first wrapped asset minted for a request.
func (s *WrappedAssetStore) GetByRequestID(ctx context.Context, requestID string) (*domain.WrappedAsset, error) {
	return s.getOne(ctx, "request_id = $1", requestID)
}

func (s *WrappedAssetStore) getOne(ctx context.Context, where string, arg string) (*domain.WrappedAsset, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT mint, destination_token_account, request_id, tx_signature, slot, created_at
		FROM wrapped_assets
		WHERE `+where+`
		ORDER BY slot ASC
		LIMIT 1
	`, arg)

	a, err := scanWrappedAsset(row)
	if err != nil {
		return nil, storeError("get wrapped asset", err)
	}
	return a, nil
}

func scanWrappedAsset(row pgx.Row) (*domain.WrappedAsset, error) {
	var a domain.WrappedAsset
	err := row.Scan(&a.Mint, &a.DestinationTokenAccount, &a.RequestID, &a.TxSignature, &a.Slot, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

package postgres

import (
	"context"

	"solana-bridge/internal/storage"
)

// ProgressStore is a PostgreSQL implementation of storage.ProgressStore
// backed by the single-row relayer_progress table.
type ProgressStore struct {
	pool *Pool
}

// NewProgressStore creates a new PostgreSQL progress store.
func NewProgressStore(pool *Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProgressStore = (*ProgressStore)(nil)

// GetLastProcessed returns the last processed slot and signature.
func (s *ProgressStore) GetLastProcessed(ctx context.Context) (*storage.Progress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT slot, signature
		FROM relayer_progress
		LIMIT 1
	`)

	var (
		slot     int64
		progress storage.Progress
	)
	if err := row.Scan(&slot, &progress.Signature); err != nil {
		return nil, storeError("get progress", err)
	}
	progress.Slot = uint64(slot)
	return &progress, nil
}

// SetLastProcessed saves the last processed slot and signature.
// Uses upsert; an older slot never overwrites a newer one.
func (s *ProgressStore) SetLastProcessed(ctx context.Context, progress *storage.Progress) error {
	if progress == nil {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO relayer_progress (id, slot, signature, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET slot = EXCLUDED.slot,
		    signature = EXCLUDED.signature,
		    updated_at = NOW()
		WHERE relayer_progress.slot <= EXCLUDED.slot
	`, int64(progress.Slot), progress.Signature)
	return storeError("set progress", err)
}

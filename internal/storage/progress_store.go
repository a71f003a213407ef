package storage

import "context"

// Progress represents the last processed position in the chain.
type Progress struct {
	Slot      uint64 // last processed Solana slot
	Signature string // last processed transaction signature
}

// ProgressStore provides persistence for relayer position.
// This enables backfill after restarts without reprocessing from genesis.
type ProgressStore interface {
	// GetLastProcessed returns the last processed slot and signature.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context) (*Progress, error)

	// SetLastProcessed saves the last processed slot and signature.
	// Progress never moves backwards: a lower slot is ignored.
	SetLastProcessed(ctx context.Context, progress *Progress) error
}

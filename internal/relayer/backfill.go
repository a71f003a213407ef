package relayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-bridge/internal/solana"
	"solana-bridge/internal/storage"
)

const backfillPageSize = 1000

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	Transactions int
	Failed       int // skipped because the transaction failed on chain
	Errors       int // replayed but not fully stored; see Process
	Duration     time.Duration
}

// Backfill replays the bridge transactions confirmed since the last saved
// progress, oldest first, through Process. Without saved progress it
// replays every signature the RPC node still returns.
func (r *Relayer) Backfill(ctx context.Context) (*BackfillResult, error) {
	if r.rpc == nil {
		return nil, errors.New("backfill: no rpc client configured")
	}
	start := time.Now()
	result := &BackfillResult{}

	until := ""
	if r.progress != nil {
		p, err := r.progress.GetLastProcessed(ctx)
		switch {
		case err == nil:
			until = p.Signature
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("load progress: %w", err)
		}
	}

	// Collect newest first, then replay in chain order.
	var pending []solana.SignatureInfo
	before := ""
	for {
		page, err := r.rpc.GetSignaturesForAddress(ctx, r.programID, &solana.SignaturesOpts{
			Before: before,
			Until:  until,
			Limit:  backfillPageSize,
		})
		if err != nil {
			return result, fmt.Errorf("get signatures: %w", err)
		}
		pending = append(pending, page...)
		if len(page) < backfillPageSize {
			break
		}
		before = page[len(page)-1].Signature
	}

	r.logger.Info("backfill started", zap.Int("signatures", len(pending)), zap.String("until", until))

	for i := len(pending) - 1; i >= 0; i-- {
		sig := pending[i]
		if sig.Failed() {
			result.Failed++
			continue
		}
		tx, err := r.rpc.GetTransaction(ctx, sig.Signature)
		if err != nil {
			return result, fmt.Errorf("get transaction %s: %w", sig.Signature, err)
		}
		if tx == nil || tx.Meta == nil {
			continue
		}
		err = r.Process(ctx, solana.LogNotification{
			Signature: tx.Signature,
			Slot:      tx.Slot,
			Logs:      tx.Meta.LogMessages,
			Err:       tx.Meta.Err,
		})
		if err != nil {
			result.Errors++
		}
		result.Transactions++
	}

	result.Duration = time.Since(start)
	r.logger.Info("backfill complete",
		zap.Int("transactions", result.Transactions),
		zap.Int("failed", result.Failed),
		zap.Int("errors", result.Errors),
		zap.Duration("duration", result.Duration))
	return result, nil
}

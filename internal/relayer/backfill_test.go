package relayer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-bridge/internal/domain"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/solana/stub"
	"solana-bridge/internal/storage"
	"solana-bridge/internal/storage/memory"
)

func addTx(rpc *stub.RPCClient, n solana.LogNotification) {
	rpc.AddTransaction(&solana.Transaction{
		Slot:      n.Slot,
		Signature: n.Signature,
		Meta:      &solana.TransactionMeta{Err: n.Err, LogMessages: n.Logs},
	}, solana.BridgeProgramID)
}

func TestBackfill_ReplaysSinceProgress(t *testing.T) {
	ctx := context.Background()
	rpc := stub.NewRPCClient()
	addTx(rpc, notification("sig-1", 10, lockEvent("req-1")))
	addTx(rpc, notification("sig-2", 11, lockEvent("req-2")))
	failed := notification("sig-3", 12, lockEvent("req-3"))
	failed.Err = "custom program error: 0x1"
	addTx(rpc, failed)
	addTx(rpc, notification("sig-4", 13, mintEvent("req-2")))

	requests := memory.NewRequestStore()
	progress := memory.NewProgressStore()
	require.NoError(t, progress.SetLastProcessed(ctx, &storage.Progress{Slot: 10, Signature: "sig-1"}))

	var handled []string
	r, err := New(Options{
		Source:   &fakeSource{},
		RPC:      rpc,
		Requests: requests,
		Assets:   memory.NewWrappedAssetStore(),
		Progress: progress,
		Handler: HandlerFunc(func(_ context.Context, req *domain.BridgeRequest) error {
			handled = append(handled, req.RequestID)
			return nil
		}),
	})
	require.NoError(t, err)

	result, err := r.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Transactions)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []string{"req-2"}, handled)

	_, err = requests.GetByID(ctx, "req-1")
	assert.ErrorIs(t, err, storage.ErrNotFound, "already processed before the saved progress")

	req, err := requests.GetByID(ctx, "req-2")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestMinted, req.Status)

	p, err := progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sig-4", p.Signature)
}

func TestBackfill_RequiresRPC(t *testing.T) {
	r, err := New(Options{
		Source:   &fakeSource{},
		Requests: memory.NewRequestStore(),
		Assets:   memory.NewWrappedAssetStore(),
	})
	require.NoError(t, err)

	_, err = r.Backfill(context.Background())
	assert.Error(t, err)
}

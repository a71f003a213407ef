package relayer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-bridge/internal/client"
	"solana-bridge/internal/domain"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/storage/memory"
)

func TestRelayer_MintsLockedRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := client.NewLocalLedger(solana.BridgeProgramID, ledger.Options{})
	defer l.Close()

	c, err := client.New(client.Config{Seed: 42}, l, l)
	require.NoError(t, err)

	backend, err := solana.NewKeypair()
	require.NoError(t, err)
	user, err := solana.NewKeypair()
	require.NoError(t, err)
	recipient, err := solana.NewKeypair()
	require.NoError(t, err)

	_, err = c.InitializeBridge(ctx, backend)
	require.NoError(t, err)

	origin, err := pda.SplitEVMOrigin("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)

	requests := memory.NewRequestStore()
	assets := memory.NewWrappedAssetStore()
	r, err := New(Options{
		Source:   l,
		Requests: requests,
		Assets:   assets,
		Archive:  memory.NewEventArchive(),
		Seen:     memory.NewSeenCache(time.Minute),
		Handler: &MintHandler{
			Client:    c,
			Backend:   backend,
			Recipient: recipient.PublicKey(),
			Origin:    origin,
			Name:      "Wrapped",
			Symbol:    "WRP",
			URI:       "ipfs://wrapped",
		},
		RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	ch, err := r.Subscribe(ctx)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- r.Consume(ctx, ch) }()

	mint, err := c.CreateMint(ctx, backend, 0)
	require.NoError(t, err)
	account, err := c.CreateTokenAccount(ctx, backend, user.PublicKey(), mint)
	require.NoError(t, err)
	_, err = c.MintTo(ctx, backend, mint, account, 1)
	require.NoError(t, err)
	_, err = c.Approve(ctx, user, account, 1)
	require.NoError(t, err)
	_, err = c.NewRequest(ctx, user, mint, account, "req-42")
	require.NoError(t, err)

	var req *domain.BridgeRequest
	require.Eventually(t, func() bool {
		req, err = requests.GetByID(ctx, "req-42")
		return err == nil && req.Status == domain.RequestMinted
	}, 5*time.Second, 10*time.Millisecond)

	require.NotNil(t, req.WrappedMint)
	wrapped, err := solana.PublicKeyFromBase58(*req.WrappedMint)
	require.NoError(t, err)

	want, err := pda.MintAddress(solana.BridgeProgramID, origin, AssetID("req-42"))
	require.NoError(t, err)
	assert.Equal(t, want.Key, wrapped)

	asset, err := assets.GetByMint(ctx, wrapped.String())
	require.NoError(t, err)
	balance, err := c.Balance(ctx, solana.MustPublicKey(asset.DestinationTokenAccount))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), balance)

	// A retried handler finds the mint in place and does nothing.
	h := &MintHandler{Client: c, Backend: backend, Recipient: recipient.PublicKey(), Origin: origin, Name: "Wrapped"}
	require.NoError(t, h.HandleRequest(ctx, req))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

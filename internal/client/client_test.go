package client

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-bridge/internal/bridge"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
)

type env struct {
	ledger  *ledger.Ledger
	client  *Client
	backend solana.Keypair
}

func newEnv(t *testing.T, seed uint64) *env {
	t.Helper()
	l := NewLocalLedger(solana.BridgeProgramID, ledger.Options{})
	t.Cleanup(func() { _ = l.Close() })

	c, err := New(Config{Seed: seed}, l, l)
	require.NoError(t, err)
	return &env{ledger: l, client: c, backend: keypair(t)}
}

func keypair(t *testing.T) solana.Keypair {
	t.Helper()
	kp, err := solana.NewKeypair()
	require.NoError(t, err)
	return kp
}

func randomSeed(t *testing.T) uint64 {
	t.Helper()
	var b [8]byte
	_, err := rand.Read(b[:])
	require.NoError(t, err)
	return binary.LittleEndian.Uint64(b[:])
}

// fundUser mints one whole token of a fresh zero-decimal mint to user.
func (e *env) fundUser(t *testing.T, user solana.Keypair) (mint, account solana.PublicKey) {
	t.Helper()
	ctx := context.Background()
	mint, err := e.client.CreateMint(ctx, e.backend, 0)
	require.NoError(t, err)
	account, err = e.client.CreateTokenAccount(ctx, e.backend, user.PublicKey(), mint)
	require.NoError(t, err)
	_, err = e.client.MintTo(ctx, e.backend, mint, account, 1)
	require.NoError(t, err)
	return mint, account
}

func TestBridgeLifecycle(t *testing.T) {
	ctx := context.Background()
	seed := randomSeed(t)
	e := newEnv(t, seed)
	c := e.client

	// A: the registry records the seed and the initializing backend.
	_, err := c.InitializeBridge(ctx, e.backend)
	require.NoError(t, err)

	reg, err := c.Registry(ctx)
	require.NoError(t, err)
	assert.Equal(t, seed, reg.Seed)
	assert.Equal(t, e.backend.PublicKey(), reg.Backend)

	// B: an approved token moves into escrow and the lock event is
	// observed exactly once by a listener attached beforehand.
	user := keypair(t)
	mint, account := e.fundUser(t, user)

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	notifications, err := e.ledger.SubscribeLogs(subCtx, solana.LogsFilter{Mentions: []string{c.ProgramID().String()}})
	require.NoError(t, err)

	_, err = c.Approve(ctx, user, account, 1)
	require.NoError(t, err)
	_, err = c.NewRequest(ctx, user, mint, solana.PublicKey{}, "12345")
	require.NoError(t, err)

	escrow, err := c.EscrowAddress(mint)
	require.NoError(t, err)
	assertBalance(t, c, account, 0)
	assertBalance(t, c, escrow, 1)

	var observed []bridge.NewRequestEvent
	for drained := false; !drained; {
		select {
		case n := <-notifications:
			require.Nil(t, n.Err)
			events, err := bridge.ParseEvents(c.ProgramID(), n.Logs)
			require.NoError(t, err)
			for _, ev := range events {
				if req, ok := ev.(bridge.NewRequestEvent); ok {
					observed = append(observed, req)
				}
			}
		default:
			drained = true
		}
	}
	require.Len(t, observed, 1)
	assert.Equal(t, "12345", observed[0].RequestID)
	assert.Equal(t, mint, observed[0].Mint)
	assert.Equal(t, account, observed[0].UserTokenAccount)

	// C: the backend mints the wrapped asset to a recipient.
	recipient := keypair(t).PublicKey()
	origin, err := pda.SplitOrigin("0x" + strings.Repeat("0", 40))
	require.NoError(t, err)

	receipt, addrs, err := c.CreateNFT(ctx, e.backend, recipient, bridge.CreateNFTArgs{
		ID:        7,
		Origin:    origin,
		Name:      "Test NFT",
		Symbol:    "TEST",
		URI:       "ipfs://bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi",
		RequestID: "12345",
	})
	require.NoError(t, err)
	assertBalance(t, c, addrs.Destination, 1)

	meta, err := c.Metadata(ctx, addrs.Mint)
	require.NoError(t, err)
	assert.Equal(t, "Test NFT", meta.Data.Name)
	assert.Equal(t, "TEST", meta.Data.Symbol)

	edition, err := c.MasterEdition(ctx, addrs.Mint)
	require.NoError(t, err)
	assert.Zero(t, edition.Supply)

	minted, err := c.Mint(ctx, addrs.Mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), minted.Supply)
	assert.Zero(t, minted.Decimals)

	events, err := c.Events(receipt)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, bridge.TokenMintedEvent{
		Mint:                    addrs.Mint,
		DestinationTokenAccount: addrs.Destination,
		RequestID:               "12345",
	}, events[0])

	// D: burning empties the escrow; a second burn has nothing to burn.
	_, err = c.BurnToken(ctx, e.backend, mint)
	require.NoError(t, err)
	assertBalance(t, c, escrow, 0)

	_, err = c.BurnToken(ctx, e.backend, mint)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridge.ErrInsufficientBalance), "got %v", err)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpBurnToken, opErr.Op)
}

func assertBalance(t *testing.T, c *Client, account solana.PublicKey, want uint64) {
	t.Helper()
	got, err := c.Balance(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, want, got, "balance of %s", account)
}

func TestCreateNFT_RequiresBackend(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 1)
	_, err := e.client.InitializeBridge(ctx, e.backend)
	require.NoError(t, err)

	origin, err := pda.SplitOrigin("0x" + strings.Repeat("ab", 20))
	require.NoError(t, err)
	_, addrs, err := e.client.CreateNFT(ctx, keypair(t), keypair(t).PublicKey(), bridge.CreateNFTArgs{
		ID:     1,
		Origin: origin,
		Name:   "x",
	})
	require.Error(t, err)

	be, ok := BridgeError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, bridge.ErrUnauthorized.Code, be.Code)

	_, err = e.client.Mint(ctx, addrs.Mint)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestNewRequest_WithoutApproval(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 2)
	_, err := e.client.InitializeBridge(ctx, e.backend)
	require.NoError(t, err)

	user := keypair(t)
	mint, account := e.fundUser(t, user)

	_, err = e.client.NewRequest(ctx, user, mint, account, "no-approval")
	assert.ErrorIs(t, err, bridge.ErrInsufficientDelegation)
	assertBalance(t, e.client, account, 1)
}

func TestNewRequest_SignerMustOwnAccount(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 4)
	_, err := e.client.InitializeBridge(ctx, e.backend)
	require.NoError(t, err)

	user := keypair(t)
	mint, account := e.fundUser(t, user)
	_, err = e.client.Approve(ctx, user, account, 1)
	require.NoError(t, err)

	_, err = e.client.NewRequest(ctx, keypair(t), mint, account, "not-mine")
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpNewRequest, opErr.Op)
	assert.ErrorIs(t, err, bridge.ErrUnauthorized)
	assertBalance(t, e.client, account, 1)
}

func TestInitializeBridge_Twice(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 3)
	_, err := e.client.InitializeBridge(ctx, e.backend)
	require.NoError(t, err)

	_, err = e.client.InitializeBridge(ctx, keypair(t))
	assert.ErrorIs(t, err, bridge.ErrAccountAlreadyInitialized)

	reg, err := e.client.Registry(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.backend.PublicKey(), reg.Backend)
}

func TestRegistry_WrongOwner(t *testing.T) {
	e := newEnv(t, 4)
	e.ledger.SetAccount(ledger.Account{Key: e.client.Bridge(), Owner: solana.SystemProgramID, Data: make([]byte, 49)})

	_, err := e.client.Registry(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedOwner)
}

func TestReadOnlyClient(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, 5)
	_, err := e.client.InitializeBridge(ctx, e.backend)
	require.NoError(t, err)

	ro, err := New(Config{Seed: 5}, nil, e.ledger)
	require.NoError(t, err)

	reg, err := ro.Registry(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.backend.PublicKey(), reg.Backend)

	_, err = ro.BurnToken(ctx, e.backend, keypair(t).PublicKey())
	assert.ErrorIs(t, err, ErrReadOnly)
}

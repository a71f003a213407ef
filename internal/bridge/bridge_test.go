package bridge

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-bridge/internal/ledger"
	"solana-bridge/internal/metadata"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/token"
)

var programID = solana.BridgeProgramID

type harness struct {
	t       *testing.T
	ledger  *ledger.Ledger
	backend solana.Keypair
	seed    uint64
	bridge  solana.PublicKey
	nonce   atomic.Uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	l := ledger.New(ledger.Options{})
	l.Register(solana.TokenProgramID, token.Program{})
	l.Register(solana.AssociatedTokenProgramID, token.AssociatedProgram{})
	l.Register(solana.MetadataProgramID, metadata.Program{})
	l.Register(programID, NewProgram())
	t.Cleanup(func() { _ = l.Close() })

	h := &harness{t: t, ledger: l, backend: newKeypair(t), seed: 4242}
	ix, err := InitializeBridge(programID, h.seed, h.backend.PublicKey())
	require.NoError(t, err)
	_, err = h.submit([]solana.Keypair{h.backend}, ix)
	require.NoError(t, err)

	addr, err := pda.BridgeAddress(programID, h.seed)
	require.NoError(t, err)
	h.bridge = addr.Key
	return h
}

func newKeypair(t *testing.T) solana.Keypair {
	t.Helper()
	kp, err := solana.NewKeypair()
	require.NoError(t, err)
	return kp
}

func (h *harness) submit(signers []solana.Keypair, ixs ...ledger.Instruction) (*ledger.Receipt, error) {
	h.t.Helper()
	tx := ledger.NewTransaction(h.nonce.Add(1), ixs...)
	require.NoError(h.t, tx.Sign(signers...))
	return h.ledger.Submit(context.Background(), tx)
}

// fundUser creates a fungible mint and a user token account holding amount.
func (h *harness) fundUser(user solana.Keypair, amount uint64) (mint, account solana.PublicKey) {
	h.t.Helper()
	mintKP := newKeypair(h.t)
	auth := h.backend.PublicKey()
	mint = mintKP.PublicKey()
	ata, err := pda.AssociatedTokenAddress(user.PublicKey(), mint)
	require.NoError(h.t, err)

	_, err = h.submit([]solana.Keypair{h.backend, mintKP},
		ledger.CreateAccount(auth, mint, 0, token.MintSize, solana.TokenProgramID),
		token.InitializeMint2(mint, 6, auth, nil),
		token.CreateAssociatedAccount(auth, ata.Key, user.PublicKey(), mint),
		token.MintTo(mint, ata.Key, auth, amount),
	)
	require.NoError(h.t, err)
	return mint, ata.Key
}

func (h *harness) balance(key solana.PublicKey) uint64 {
	h.t.Helper()
	acc, err := h.ledger.GetAccount(key)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0
	}
	require.NoError(h.t, err)
	a, err := token.DecodeAccount(acc.Data)
	require.NoError(h.t, err)
	return a.Amount
}

func (h *harness) lock(user solana.Keypair, mint, account solana.PublicKey, requestID string) (*ledger.Receipt, error) {
	h.t.Helper()
	ix, err := NewRequest(programID, NewRequestAccounts{
		Bridge:           h.bridge,
		Mint:             mint,
		UserTokenAccount: account,
		Owner:            user.PublicKey(),
	}, requestID)
	require.NoError(h.t, err)
	return h.submit([]solana.Keypair{user}, ix)
}

func (h *harness) approve(user solana.Keypair, account solana.PublicKey, amount uint64) {
	h.t.Helper()
	_, err := h.submit([]solana.Keypair{user}, token.Approve(account, h.bridge, user.PublicKey(), amount))
	require.NoError(h.t, err)
}

func testOrigin(t *testing.T) pda.Origin {
	t.Helper()
	o, err := pda.SplitOrigin("0x" + strings.Repeat("0", 40))
	require.NoError(t, err)
	return o
}

func nftArgs(t *testing.T, id uint64) CreateNFTArgs {
	return CreateNFTArgs{
		ID:        id,
		Origin:    testOrigin(t),
		Name:      "Test NFT",
		Symbol:    "TEST",
		URI:       "ipfs://bafy/test.json",
		RequestID: "12345",
	}
}

func (h *harness) mintNFT(signer solana.Keypair, recipient solana.PublicKey, args CreateNFTArgs) (*ledger.Receipt, CreateNFTAddresses, error) {
	h.t.Helper()
	ix, addrs, err := CreateNFT(programID, CreateNFTAccounts{
		Bridge:    h.bridge,
		Backend:   signer.PublicKey(),
		Recipient: recipient,
	}, args)
	require.NoError(h.t, err)
	receipt, err := h.submit([]solana.Keypair{signer}, ix)
	return receipt, addrs, err
}

func TestInitializeBridge(t *testing.T) {
	h := newHarness(t)

	acc, err := h.ledger.GetAccount(h.bridge)
	require.NoError(t, err)
	assert.Equal(t, programID, acc.Owner)

	reg, err := DecodeRegistry(acc.Data)
	require.NoError(t, err)
	assert.Equal(t, h.seed, reg.Seed)
	assert.Equal(t, h.backend.PublicKey(), reg.Backend)

	ix, err := InitializeBridge(programID, h.seed, h.backend.PublicKey())
	require.NoError(t, err)
	_, err = h.submit([]solana.Keypair{h.backend}, ix)
	assert.ErrorIs(t, err, ErrAccountAlreadyInitialized)

	other := newKeypair(t)
	_, err = h.submit([]solana.Keypair{other}, mustInit(t, h.seed, other.PublicKey()))
	assert.ErrorIs(t, err, ErrAccountAlreadyInitialized, "a different signer cannot take over the seed")
}

func mustInit(t *testing.T, seed uint64, signer solana.PublicKey) ledger.Instruction {
	t.Helper()
	ix, err := InitializeBridge(programID, seed, signer)
	require.NoError(t, err)
	return ix
}

func TestNewRequest_LocksOneToken(t *testing.T) {
	h := newHarness(t)
	user := newKeypair(t)
	mint, account := h.fundUser(user, 1)
	h.approve(user, account, 1)

	receipt, err := h.lock(user, mint, account, "12345")
	require.NoError(t, err)

	escrow, err := pda.AssociatedTokenAddress(h.bridge, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), h.balance(account))
	assert.Equal(t, uint64(1), h.balance(escrow.Key))

	events, err := ParseEvents(programID, receipt.Logs)
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev, ok := events[0].(NewRequestEvent)
	require.True(t, ok)
	assert.Equal(t, "12345", ev.RequestID)
	assert.Equal(t, mint, ev.Mint)
	assert.Equal(t, account, ev.UserTokenAccount)
	assert.Equal(t, uint64(1), ev.Amount)
}

func TestNewRequest_SecondLockReusesEscrow(t *testing.T) {
	h := newHarness(t)
	user := newKeypair(t)
	mint, account := h.fundUser(user, 2)

	h.approve(user, account, 1)
	_, err := h.lock(user, mint, account, "a")
	require.NoError(t, err)

	h.approve(user, account, 1)
	_, err = h.lock(user, mint, account, "b")
	require.NoError(t, err)

	escrow, err := pda.AssociatedTokenAddress(h.bridge, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), h.balance(escrow.Key))
}

func TestNewRequest_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(h *harness, user solana.Keypair, account solana.PublicKey)
		signer  func(h *harness) solana.Keypair // default: the owner
		mint    func(h *harness) solana.PublicKey // default: the funded mint
		wantErr error
	}{
		{
			name:    "no approval",
			wantErr: ErrInsufficientDelegation,
		},
		{
			name: "approval of zero",
			setup: func(h *harness, user solana.Keypair, account solana.PublicKey) {
				h.approve(user, account, 0)
			},
			wantErr: ErrInsufficientDelegation,
		},
		{
			name: "approval to another delegate",
			setup: func(h *harness, user solana.Keypair, account solana.PublicKey) {
				other := newKeypair(h.t).PublicKey()
				_, err := h.submit([]solana.Keypair{user}, token.Approve(account, other, user.PublicKey(), 1))
				require.NoError(h.t, err)
			},
			wantErr: ErrInsufficientDelegation,
		},
		{
			name: "wrong mint",
			setup: func(h *harness, user solana.Keypair, account solana.PublicKey) {
				h.approve(user, account, 1)
			},
			mint: func(h *harness) solana.PublicKey {
				other, _ := h.fundUser(newKeypair(h.t), 1)
				return other
			},
			wantErr: ErrInvalidMint,
		},
		{
			name: "signer does not own the account",
			setup: func(h *harness, user solana.Keypair, account solana.PublicKey) {
				h.approve(user, account, 1)
			},
			signer:  func(h *harness) solana.Keypair { return newKeypair(h.t) },
			wantErr: ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			user := newKeypair(t)
			mint, account := h.fundUser(user, 1)
			if tt.setup != nil {
				tt.setup(h, user, account)
			}
			signer := user
			if tt.signer != nil {
				signer = tt.signer(h)
			}
			if tt.mint != nil {
				mint = tt.mint(h)
			}

			_, err := h.lock(signer, mint, account, tt.name)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, uint64(1), h.balance(account), "failed requests leave the balance untouched")
		})
	}
}

func TestNewRequest_ThirdPartyRejected(t *testing.T) {
	h := newHarness(t)
	victim := newKeypair(t)
	mint, account := h.fundUser(victim, 1)
	h.approve(victim, account, 1)

	attacker := newKeypair(t)
	_, err := h.lock(attacker, mint, account, "attacker-chosen-id")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, KindAuthorization, ErrUnauthorized.Kind())

	escrow, err := pda.AssociatedTokenAddress(h.bridge, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), h.balance(account))
	assert.Equal(t, uint64(0), h.balance(escrow.Key))

	// The approval is still there for the owner's own request.
	receipt, err := h.lock(victim, mint, account, "owner-id")
	require.NoError(t, err)
	events, err := ParseEvents(programID, receipt.Logs)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "owner-id", events[0].(NewRequestEvent).RequestID)
}

func TestCreateNFT(t *testing.T) {
	h := newHarness(t)
	recipient := newKeypair(t).PublicKey()

	receipt, addrs, err := h.mintNFT(h.backend, recipient, nftArgs(t, 7))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), h.balance(addrs.Destination))

	mintAcc, err := h.ledger.GetAccount(addrs.Mint)
	require.NoError(t, err)
	m, err := token.DecodeMint(mintAcc.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.Supply)
	assert.Equal(t, uint8(0), m.Decimals)

	metaAcc, err := h.ledger.GetAccount(addrs.Metadata)
	require.NoError(t, err)
	md, err := metadata.DecodeMetadata(metaAcc.Data)
	require.NoError(t, err)
	assert.Equal(t, "Test NFT", md.Data.Name)
	assert.False(t, md.IsMutable)

	edAcc, err := h.ledger.GetAccount(addrs.MasterEdition)
	require.NoError(t, err)
	ed, err := metadata.DecodeMasterEdition(edAcc.Data)
	require.NoError(t, err)
	require.NotNil(t, ed.MaxSupply)
	assert.Equal(t, uint64(0), *ed.MaxSupply)

	events, err := ParseEvents(programID, receipt.Logs)
	require.NoError(t, err)
	require.Len(t, events, 1)
	minted, ok := events[0].(TokenMintedEvent)
	require.True(t, ok)
	assert.Equal(t, addrs.Mint, minted.Mint)
	assert.Equal(t, addrs.Destination, minted.DestinationTokenAccount)
	assert.Equal(t, "12345", minted.Correlation())
}

func TestCreateNFT_MintAlreadyExists(t *testing.T) {
	h := newHarness(t)
	recipient := newKeypair(t).PublicKey()

	_, _, err := h.mintNFT(h.backend, recipient, nftArgs(t, 7))
	require.NoError(t, err)

	_, _, err = h.mintNFT(h.backend, newKeypair(t).PublicKey(), nftArgs(t, 7))
	assert.ErrorIs(t, err, ErrMintAlreadyExists)
}

func TestCreateNFT_Errors(t *testing.T) {
	h := newHarness(t)
	recipient := newKeypair(t).PublicKey()

	_, _, err := h.mintNFT(newKeypair(t), recipient, nftArgs(t, 1))
	assert.ErrorIs(t, err, ErrUnauthorized)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindAuthorization, e.Kind())

	big := nftArgs(t, 2)
	big.Name = strings.Repeat("n", metadata.MaxNameLength+1)
	_, _, err = h.mintNFT(h.backend, recipient, big)
	assert.ErrorIs(t, err, ErrMetadataTooLarge)
}

func TestCreateNFT_OriginSeedTooLong(t *testing.T) {
	h := newHarness(t)
	recipient := newKeypair(t).PublicKey()

	// Build against a valid origin, then swap in an oversized fragment so the
	// program rather than the client rejects it.
	ix, _, err := CreateNFT(programID, CreateNFTAccounts{
		Bridge: h.bridge, Backend: h.backend.PublicKey(), Recipient: recipient,
	}, nftArgs(t, 3))
	require.NoError(t, err)
	bad := nftArgs(t, 3)
	bad.Origin.High = strings.Repeat("f", pda.MaxSeedLength+1)
	ix.Data = bad.encode()

	_, err = h.submit([]solana.Keypair{h.backend}, ix)
	assert.ErrorIs(t, err, ErrOriginSeedTooLong)
}

func TestBurnToken(t *testing.T) {
	h := newHarness(t)
	user := newKeypair(t)
	mint, account := h.fundUser(user, 1)
	h.approve(user, account, 1)
	_, err := h.lock(user, mint, account, "12345")
	require.NoError(t, err)

	escrow, err := pda.AssociatedTokenAddress(h.bridge, mint)
	require.NoError(t, err)

	burn := func(signer solana.Keypair) error {
		ix, err := BurnToken(programID, h.bridge, mint, signer.PublicKey())
		require.NoError(t, err)
		_, err = h.submit([]solana.Keypair{signer}, ix)
		return err
	}

	assert.ErrorIs(t, burn(user), ErrUnauthorized)
	assert.Equal(t, uint64(1), h.balance(escrow.Key))

	require.NoError(t, burn(h.backend))
	assert.Equal(t, uint64(0), h.balance(escrow.Key))

	mintAcc, err := h.ledger.GetAccount(mint)
	require.NoError(t, err)
	m, err := token.DecodeMint(mintAcc.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), m.Supply)

	err = burn(h.backend)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindResource, e.Kind())
}

func TestBurnToken_NoEscrow(t *testing.T) {
	h := newHarness(t)
	mint, _ := h.fundUser(newKeypair(t), 1)

	ix, err := BurnToken(programID, h.bridge, mint, h.backend.PublicKey())
	require.NoError(t, err)
	_, err = h.submit([]solana.Keypair{h.backend}, ix)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestErrorLogLine(t *testing.T) {
	h := newHarness(t)
	ix, err := BurnToken(programID, h.bridge, solana.PublicKey{1}, h.backend.PublicKey())
	require.NoError(t, err)
	receipt, err := h.submit([]solana.Keypair{h.backend}, ix)
	require.Error(t, err)
	require.NotNil(t, receipt)
	assert.Contains(t, strings.Join(receipt.Logs, "\n"), "Error Code: InsufficientBalance. Error Number: 6006.")
}

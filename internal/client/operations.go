package client

import (
	"context"

	"solana-bridge/internal/bridge"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/token"
)

// Operation names used in errors, logs and metrics.
const (
	OpInitializeBridge   = "initialize_bridge"
	OpApprove            = "approve"
	OpNewRequest         = "new_request"
	OpCreateNFT          = "create_nft"
	OpBurnToken          = "burn_token"
	OpCreateMint         = "create_mint"
	OpCreateTokenAccount = "create_token_account"
	OpMintTo             = "mint_to"
)

// InitializeBridge creates the registry. backend pays and becomes the only
// key allowed to mint and burn.
func (c *Client) InitializeBridge(ctx context.Context, backend solana.Keypair) (*ledger.Receipt, error) {
	ix, err := bridge.InitializeBridge(c.programID, c.seed, backend.PublicKey())
	if err != nil {
		return nil, &OpError{Op: OpInitializeBridge, Err: err}
	}
	return c.submit(ctx, OpInitializeBridge, []solana.Keypair{backend}, ix)
}

// Approve delegates amount of account to the registry so it can be locked.
func (c *Client) Approve(ctx context.Context, owner solana.Keypair, account solana.PublicKey, amount uint64) (*ledger.Receipt, error) {
	ix := token.Approve(account, c.bridge.Key, owner.PublicKey(), amount)
	return c.submit(ctx, OpApprove, []solana.Keypair{owner}, ix)
}

// NewRequest locks one token of mint from account into escrow and emits
// NewRequestEvent with requestID. owner must own account; it signs and funds
// escrow creation. A zero account means the owner's associated token account.
func (c *Client) NewRequest(ctx context.Context, owner solana.Keypair, mint, account solana.PublicKey, requestID string) (*ledger.Receipt, error) {
	if account.IsZero() {
		ata, err := pda.AssociatedTokenAddress(owner.PublicKey(), mint)
		if err != nil {
			return nil, &OpError{Op: OpNewRequest, Err: err}
		}
		account = ata.Key
	}
	ix, err := bridge.NewRequest(c.programID, bridge.NewRequestAccounts{
		Bridge:           c.bridge.Key,
		Mint:             mint,
		UserTokenAccount: account,
		Owner:            owner.PublicKey(),
	}, requestID)
	if err != nil {
		return nil, &OpError{Op: OpNewRequest, Err: err}
	}
	return c.submit(ctx, OpNewRequest, []solana.Keypair{owner}, ix)
}

// CreateNFT mints the wrapped asset described by args to recipient and
// returns the addresses it created.
func (c *Client) CreateNFT(ctx context.Context, backend solana.Keypair, recipient solana.PublicKey, args bridge.CreateNFTArgs) (*ledger.Receipt, bridge.CreateNFTAddresses, error) {
	ix, addrs, err := bridge.CreateNFT(c.programID, bridge.CreateNFTAccounts{
		Bridge:    c.bridge.Key,
		Backend:   backend.PublicKey(),
		Recipient: recipient,
	}, args)
	if err != nil {
		return nil, bridge.CreateNFTAddresses{}, &OpError{Op: OpCreateNFT, Err: err}
	}
	receipt, err := c.submit(ctx, OpCreateNFT, []solana.Keypair{backend}, ix)
	return receipt, addrs, err
}

// BurnToken burns everything held in escrow for mint.
func (c *Client) BurnToken(ctx context.Context, backend solana.Keypair, mint solana.PublicKey) (*ledger.Receipt, error) {
	ix, err := bridge.BurnToken(c.programID, c.bridge.Key, mint, backend.PublicKey())
	if err != nil {
		return nil, &OpError{Op: OpBurnToken, Err: err}
	}
	return c.submit(ctx, OpBurnToken, []solana.Keypair{backend}, ix)
}

// EscrowAddress returns the registry's token account for mint.
func (c *Client) EscrowAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, err := pda.AssociatedTokenAddress(c.bridge.Key, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Key, nil
}

package client

import (
	"context"

	"solana-bridge/internal/ledger"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/token"
)

// CreateMint creates a token mint under a fresh keypair with authority as
// its mint and freeze authority.
func (c *Client) CreateMint(ctx context.Context, authority solana.Keypair, decimals uint8) (solana.PublicKey, error) {
	mintKP, err := solana.NewKeypair()
	if err != nil {
		return solana.PublicKey{}, &OpError{Op: OpCreateMint, Err: err}
	}
	mint := mintKP.PublicKey()
	auth := authority.PublicKey()

	_, err = c.submit(ctx, OpCreateMint, []solana.Keypair{authority, mintKP},
		ledger.CreateAccount(auth, mint, 0, token.MintSize, solana.TokenProgramID),
		token.InitializeMint2(mint, decimals, auth, &auth),
	)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return mint, nil
}

// CreateTokenAccount creates owner's associated token account for mint.
func (c *Client) CreateTokenAccount(ctx context.Context, payer solana.Keypair, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, err := pda.AssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, &OpError{Op: OpCreateTokenAccount, Err: err}
	}
	ix := token.CreateAssociatedAccount(payer.PublicKey(), ata.Key, owner, mint)
	if _, err := c.submit(ctx, OpCreateTokenAccount, []solana.Keypair{payer}, ix); err != nil {
		return solana.PublicKey{}, err
	}
	return ata.Key, nil
}

// MintTo mints amount of mint into destination.
func (c *Client) MintTo(ctx context.Context, authority solana.Keypair, mint, destination solana.PublicKey, amount uint64) (*ledger.Receipt, error) {
	ix := token.MintTo(mint, destination, authority.PublicKey(), amount)
	return c.submit(ctx, OpMintTo, []solana.Keypair{authority}, ix)
}

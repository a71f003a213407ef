package bridge

import (
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/token"
)

// burnToken burns the whole escrow balance of a mint, with the registry
// signing as the escrow owner.
func (p *Program) burnToken(ctx *ledger.Context, accounts []ledger.AccountMeta) error {
	if err := needAccounts(accounts, 5); err != nil {
		return err
	}
	bridgeKey, mintKey, escrowKey, backend := accounts[0].Key, accounts[1].Key, accounts[2].Key, accounts[3].Key

	reg, auth, err := loadRegistry(ctx, bridgeKey)
	if err != nil {
		return err
	}
	if err := requireBackend(ctx, reg, backend); err != nil {
		return err
	}

	escrow, err := pda.AssociatedTokenAddress(auth.Address, mintKey)
	if err != nil {
		return wrap(ErrCanonicalAddressNotFound, "%v", err)
	}
	if escrow.Key != escrowKey {
		return wrap(ErrInvalidEscrowAccount, "expected %s", escrow.Key)
	}
	if !ctx.Exists(escrowKey) {
		return wrap(ErrInsufficientBalance, "escrow %s does not exist", escrowKey)
	}

	acc, err := ctx.Load(escrowKey)
	if err != nil {
		return err
	}
	if acc.Owner != solana.TokenProgramID {
		return wrap(ErrInvalidEscrowAccount, "%s is not a token account", escrowKey)
	}
	held, err := token.DecodeAccount(acc.Data)
	if err != nil {
		return wrap(ErrInvalidEscrowAccount, "%v", err)
	}
	if held.Mint != mintKey {
		return wrap(ErrInvalidMint, "escrow holds %s", held.Mint)
	}
	if held.Amount == 0 {
		return wrap(ErrInsufficientBalance, "escrow %s is empty", escrowKey)
	}

	burn := token.Burn(escrowKey, mintKey, auth.Address, held.Amount)
	if err := ctx.InvokeSigned(burn, auth.SignerSeeds()); err != nil {
		return err
	}
	ctx.Log("burned %d of %s from escrow", held.Amount, mintKey)
	return nil
}

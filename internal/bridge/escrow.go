package bridge

import (
	"solana-bridge/internal/borsh"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/token"
)

// lockAmount is the number of units moved per request.
const lockAmount = 1

// newRequest moves one token from the user's account into the bridge's
// associated token account for the mint, with the registry signing as the
// approved delegate, and emits NewRequestEvent. The token account owner must
// sign, so only the owner chooses the request id bound to its tokens.
func (p *Program) newRequest(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 8); err != nil {
		return err
	}
	requestID := r.String()
	if r.Err() != nil {
		return wrap(ErrInvalidInstruction, "new_request args: %v", r.Err())
	}
	bridgeKey, mintKey, userKey, escrowKey, owner :=
		accounts[0].Key, accounts[1].Key, accounts[2].Key, accounts[3].Key, accounts[4].Key

	_, auth, err := loadRegistry(ctx, bridgeKey)
	if err != nil {
		return err
	}

	mintAcc, err := ctx.Load(mintKey)
	if err != nil {
		return err
	}
	if mintAcc.Owner != solana.TokenProgramID {
		return wrap(ErrInvalidMint, "%s is not a token mint", mintKey)
	}

	userAcc, err := ctx.Load(userKey)
	if err != nil {
		return err
	}
	if userAcc.Owner != solana.TokenProgramID {
		return wrap(ErrInvalidTokenAccount, "%s", userKey)
	}
	user, err := token.DecodeAccount(userAcc.Data)
	if err != nil || user.State == token.StateUninitialized {
		return wrap(ErrInvalidTokenAccount, "%s", userKey)
	}
	if user.Owner != owner || !ctx.IsSigner(owner) {
		return wrap(ErrUnauthorized, "token account %s is owned by %s, which did not sign", userKey, user.Owner)
	}
	if user.Mint != mintKey {
		return wrap(ErrInvalidMint, "token account %s holds %s, not %s", userKey, user.Mint, mintKey)
	}
	if user.Delegate == nil || *user.Delegate != auth.Address || user.DelegatedAmount < lockAmount {
		return wrap(ErrInsufficientDelegation, "token account %s", userKey)
	}
	if user.Amount < lockAmount {
		return wrap(ErrInsufficientBalance, "token account %s", userKey)
	}

	escrow, err := pda.AssociatedTokenAddress(auth.Address, mintKey)
	if err != nil {
		return wrap(ErrCanonicalAddressNotFound, "%v", err)
	}
	if escrow.Key != escrowKey {
		return wrap(ErrInvalidEscrowAccount, "expected %s", escrow.Key)
	}

	if err := ctx.Invoke(token.CreateAssociatedAccountIdempotent(owner, escrowKey, auth.Address, mintKey)); err != nil {
		return err
	}
	transfer := token.Transfer(userKey, escrowKey, auth.Address, lockAmount)
	if err := ctx.InvokeSigned(transfer, auth.SignerSeeds()); err != nil {
		return err
	}

	ctx.EmitData(NewRequestEvent{
		Mint:             mintKey,
		UserTokenAccount: userKey,
		RequestID:        requestID,
		Amount:           lockAmount,
	}.Encode())
	return nil
}

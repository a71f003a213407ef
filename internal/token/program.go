package token

import (
	"fmt"

	"solana-bridge/internal/borsh"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/solana"
)

// Program is the token program. Register it at solana.TokenProgramID.
type Program struct{}

var _ ledger.Program = Program{}

// Process dispatches on the instruction tag.
func (p Program) Process(ctx *ledger.Context, accounts []ledger.AccountMeta, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidInstruction
	}
	r := borsh.NewReader(data[1:])

	var err error
	switch data[0] {
	case tagInitializeMint2:
		err = p.initializeMint(ctx, accounts, r)
	case tagInitializeAccount3:
		err = p.initializeAccount(ctx, accounts, r)
	case tagTransfer:
		err = p.transfer(ctx, accounts, r)
	case tagApprove:
		err = p.approve(ctx, accounts, r)
	case tagMintTo:
		err = p.mintTo(ctx, accounts, r)
	case tagBurn:
		err = p.burn(ctx, accounts, r)
	case tagSetAuthority:
		err = p.setAuthority(ctx, accounts, r)
	default:
		return fmt.Errorf("%w: tag %d", ErrInvalidInstruction, data[0])
	}
	return err
}

func needAccounts(accounts []ledger.AccountMeta, n int) error {
	if len(accounts) < n {
		return fmt.Errorf("%w: expected %d accounts, got %d", ErrInvalidInstruction, n, len(accounts))
	}
	return nil
}

func loadOwned(ctx *ledger.Context, key solana.PublicKey) (ledger.Account, error) {
	acc, err := ctx.Load(key)
	if err != nil {
		return ledger.Account{}, err
	}
	if acc.Owner != solana.TokenProgramID {
		return ledger.Account{}, fmt.Errorf("%w: %s", ErrInvalidAccountOwner, key)
	}
	return acc, nil
}

func loadMint(ctx *ledger.Context, key solana.PublicKey) (ledger.Account, *Mint, error) {
	acc, err := loadOwned(ctx, key)
	if err != nil {
		return acc, nil, err
	}
	m, err := DecodeMint(acc.Data)
	if err != nil {
		return acc, nil, err
	}
	if !m.IsInitialized {
		return acc, nil, fmt.Errorf("%w: mint %s", ErrUninitialized, key)
	}
	return acc, m, nil
}

func loadTokenAccount(ctx *ledger.Context, key solana.PublicKey) (ledger.Account, *Account, error) {
	acc, err := loadOwned(ctx, key)
	if err != nil {
		return acc, nil, err
	}
	a, err := DecodeAccount(acc.Data)
	if err != nil {
		return acc, nil, err
	}
	switch a.State {
	case StateUninitialized:
		return acc, nil, fmt.Errorf("%w: account %s", ErrUninitialized, key)
	case StateFrozen:
		return acc, nil, fmt.Errorf("%w: %s", ErrAccountFrozen, key)
	}
	return acc, a, nil
}

// checkAuthority verifies that signer matches expected and signed.
func checkAuthority(ctx *ledger.Context, expected *solana.PublicKey, signer solana.PublicKey) error {
	if expected == nil || *expected != signer {
		return ErrOwnerMismatch
	}
	if !ctx.IsSigner(signer) {
		return ledger.ErrMissingRequiredSigner
	}
	return nil
}

func (Program) initializeMint(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 1); err != nil {
		return err
	}
	decimals := r.U8()
	authority := r.PublicKey()
	var freeze *solana.PublicKey
	if r.Bool() {
		k := r.PublicKey()
		freeze = &k
	}
	if r.Err() != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, r.Err())
	}

	acc, err := loadOwned(ctx, accounts[0].Key)
	if err != nil {
		return err
	}
	if len(acc.Data) != MintSize {
		return fmt.Errorf("%w: mint data is %d bytes", ErrInvalidAccountData, len(acc.Data))
	}
	if existing, _ := DecodeMint(acc.Data); existing != nil && existing.IsInitialized {
		return fmt.Errorf("%w: mint %s", ErrAlreadyInUse, acc.Key)
	}

	m := Mint{
		MintAuthority:   &authority,
		Decimals:        decimals,
		IsInitialized:   true,
		FreezeAuthority: freeze,
	}
	acc.Data = m.Encode()
	return ctx.Store(acc)
}

func (Program) initializeAccount(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 2); err != nil {
		return err
	}
	owner := r.PublicKey()
	if r.Err() != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, r.Err())
	}

	acc, err := loadOwned(ctx, accounts[0].Key)
	if err != nil {
		return err
	}
	if len(acc.Data) != AccountSize {
		return fmt.Errorf("%w: token account data is %d bytes", ErrInvalidAccountData, len(acc.Data))
	}
	if existing, _ := DecodeAccount(acc.Data); existing != nil && existing.State != StateUninitialized {
		return fmt.Errorf("%w: account %s", ErrAlreadyInUse, acc.Key)
	}
	mintKey := accounts[1].Key
	if _, _, err := loadMint(ctx, mintKey); err != nil {
		return err
	}

	a := Account{Mint: mintKey, Owner: owner, State: StateInitialized}
	acc.Data = a.Encode()
	return ctx.Store(acc)
}

func (Program) transfer(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 3); err != nil {
		return err
	}
	amount := r.U64()
	if r.Err() != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, r.Err())
	}
	srcKey, dstKey, authority := accounts[0].Key, accounts[1].Key, accounts[2].Key

	srcAcc, src, err := loadTokenAccount(ctx, srcKey)
	if err != nil {
		return err
	}
	dstAcc, dst, err := loadTokenAccount(ctx, dstKey)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	if src.Amount < amount {
		return ErrInsufficientFunds
	}
	if err := spendAuthority(ctx, src, authority, amount); err != nil {
		return err
	}
	if srcKey == dstKey {
		srcAcc.Data = src.Encode()
		return ctx.Store(srcAcc)
	}
	if dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}

	src.Amount -= amount
	dst.Amount += amount
	srcAcc.Data = src.Encode()
	dstAcc.Data = dst.Encode()
	if err := ctx.Store(srcAcc); err != nil {
		return err
	}
	return ctx.Store(dstAcc)
}

// spendAuthority checks that authority may move amount out of a, consuming
// delegated allowance when authority is the delegate.
func spendAuthority(ctx *ledger.Context, a *Account, authority solana.PublicKey, amount uint64) error {
	if a.Delegate != nil && *a.Delegate == authority && authority != a.Owner {
		if !ctx.IsSigner(authority) {
			return ledger.ErrMissingRequiredSigner
		}
		if a.DelegatedAmount < amount {
			return ErrInsufficientFunds
		}
		a.DelegatedAmount -= amount
		if a.DelegatedAmount == 0 {
			a.Delegate = nil
		}
		return nil
	}
	return checkAuthority(ctx, &a.Owner, authority)
}

func (Program) approve(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 3); err != nil {
		return err
	}
	amount := r.U64()
	if r.Err() != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, r.Err())
	}
	srcKey, delegate, owner := accounts[0].Key, accounts[1].Key, accounts[2].Key

	acc, a, err := loadTokenAccount(ctx, srcKey)
	if err != nil {
		return err
	}
	if err := checkAuthority(ctx, &a.Owner, owner); err != nil {
		return err
	}
	a.Delegate = &delegate
	a.DelegatedAmount = amount
	acc.Data = a.Encode()
	return ctx.Store(acc)
}

func (Program) mintTo(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 3); err != nil {
		return err
	}
	amount := r.U64()
	if r.Err() != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, r.Err())
	}
	mintKey, dstKey, authority := accounts[0].Key, accounts[1].Key, accounts[2].Key

	mintAcc, m, err := loadMint(ctx, mintKey)
	if err != nil {
		return err
	}
	dstAcc, dst, err := loadTokenAccount(ctx, dstKey)
	if err != nil {
		return err
	}
	if dst.Mint != mintKey {
		return ErrMintMismatch
	}
	if m.MintAuthority == nil {
		return ErrFixedSupply
	}
	if err := checkAuthority(ctx, m.MintAuthority, authority); err != nil {
		return err
	}
	if m.Supply+amount < m.Supply || dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}

	m.Supply += amount
	dst.Amount += amount
	mintAcc.Data = m.Encode()
	dstAcc.Data = dst.Encode()
	if err := ctx.Store(mintAcc); err != nil {
		return err
	}
	return ctx.Store(dstAcc)
}

func (Program) burn(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 3); err != nil {
		return err
	}
	amount := r.U64()
	if r.Err() != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, r.Err())
	}
	accKey, mintKey, authority := accounts[0].Key, accounts[1].Key, accounts[2].Key

	acc, a, err := loadTokenAccount(ctx, accKey)
	if err != nil {
		return err
	}
	mintAcc, m, err := loadMint(ctx, mintKey)
	if err != nil {
		return err
	}
	if a.Mint != mintKey {
		return ErrMintMismatch
	}
	if a.Amount < amount {
		return ErrInsufficientFunds
	}
	if err := spendAuthority(ctx, a, authority, amount); err != nil {
		return err
	}

	a.Amount -= amount
	m.Supply -= amount
	acc.Data = a.Encode()
	mintAcc.Data = m.Encode()
	if err := ctx.Store(acc); err != nil {
		return err
	}
	return ctx.Store(mintAcc)
}

func (Program) setAuthority(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 2); err != nil {
		return err
	}
	kind := AuthorityType(r.U8())
	var next *solana.PublicKey
	if r.Bool() {
		k := r.PublicKey()
		next = &k
	}
	if r.Err() != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, r.Err())
	}
	targetKey, current := accounts[0].Key, accounts[1].Key

	acc, err := loadOwned(ctx, targetKey)
	if err != nil {
		return err
	}

	switch len(acc.Data) {
	case MintSize:
		m, err := DecodeMint(acc.Data)
		if err != nil {
			return err
		}
		switch kind {
		case AuthorityMintTokens:
			if m.MintAuthority == nil {
				return ErrFixedSupply
			}
			if err := checkAuthority(ctx, m.MintAuthority, current); err != nil {
				return err
			}
			m.MintAuthority = next
		case AuthorityFreezeAccount:
			if err := checkAuthority(ctx, m.FreezeAuthority, current); err != nil {
				return err
			}
			m.FreezeAuthority = next
		default:
			return ErrAuthorityType
		}
		acc.Data = m.Encode()
	case AccountSize:
		_, a, err := loadTokenAccount(ctx, targetKey)
		if err != nil {
			return err
		}
		switch kind {
		case AuthorityAccountOwner:
			if err := checkAuthority(ctx, &a.Owner, current); err != nil {
				return err
			}
			if next == nil {
				return ErrInvalidInstruction
			}
			a.Owner = *next
			a.Delegate = nil
			a.DelegatedAmount = 0
		case AuthorityCloseAccount:
			expected := a.Owner
			if a.CloseAuthority != nil {
				expected = *a.CloseAuthority
			}
			if err := checkAuthority(ctx, &expected, current); err != nil {
				return err
			}
			a.CloseAuthority = next
		default:
			return ErrAuthorityType
		}
		acc.Data = a.Encode()
	default:
		return ErrInvalidAccountData
	}
	return ctx.Store(acc)
}

// Package token implements the fungible/non-fungible token program and the
// associated token account program. Account layouts are byte-compatible with
// SPL Token so the decoders also work on accounts fetched over RPC.
package token

import (
	"fmt"

	"solana-bridge/internal/borsh"
	"solana-bridge/internal/solana"
)

const (
	// MintSize is the length of a mint account.
	MintSize = 82
	// AccountSize is the length of a token account.
	AccountSize = 165
)

// AccountState is the lifecycle state of a token account.
type AccountState uint8

const (
	StateUninitialized AccountState = iota
	StateInitialized
	StateFrozen
)

// Mint describes a token type.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

// Encode serializes the mint into MintSize bytes.
func (m *Mint) Encode() []byte {
	return borsh.NewWriter(MintSize).
		COptionKey(m.MintAuthority).
		U64(m.Supply).
		U8(m.Decimals).
		Bool(m.IsInitialized).
		COptionKey(m.FreezeAuthority).
		Bytes()
}

// DecodeMint parses mint account data.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("%w: mint data is %d bytes", ErrInvalidAccountData, len(data))
	}
	r := borsh.NewReader(data)
	m := &Mint{
		MintAuthority:   r.COptionKey(),
		Supply:          r.U64(),
		Decimals:        r.U8(),
		IsInitialized:   r.Bool(),
		FreezeAuthority: r.COptionKey(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode mint: %w", err)
	}
	return m, nil
}

// Account is a balance of one mint held for an owner.
type Account struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

// Encode serializes the account into AccountSize bytes.
func (a *Account) Encode() []byte {
	return borsh.NewWriter(AccountSize).
		PublicKey(a.Mint).
		PublicKey(a.Owner).
		U64(a.Amount).
		COptionKey(a.Delegate).
		U8(uint8(a.State)).
		COptionU64(a.IsNative).
		U64(a.DelegatedAmount).
		COptionKey(a.CloseAuthority).
		Bytes()
}

// DecodeAccount parses token account data.
func DecodeAccount(data []byte) (*Account, error) {
	if len(data) != AccountSize {
		return nil, fmt.Errorf("%w: token account data is %d bytes", ErrInvalidAccountData, len(data))
	}
	r := borsh.NewReader(data)
	a := &Account{
		Mint:            r.PublicKey(),
		Owner:           r.PublicKey(),
		Amount:          r.U64(),
		Delegate:        r.COptionKey(),
		State:           AccountState(r.U8()),
		IsNative:        r.COptionU64(),
		DelegatedAmount: r.U64(),
		CloseAuthority:  r.COptionKey(),
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode token account: %w", err)
	}
	return a, nil
}

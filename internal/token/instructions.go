package token

import (
	"solana-bridge/internal/borsh"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/solana"
)

// Instruction tags, matching SPL Token.
const (
	tagTransfer           uint8 = 3
	tagApprove            uint8 = 4
	tagSetAuthority       uint8 = 6
	tagMintTo             uint8 = 7
	tagBurn               uint8 = 8
	tagInitializeAccount3 uint8 = 18
	tagInitializeMint2    uint8 = 20
)

// AuthorityType selects which authority SetAuthority changes.
type AuthorityType uint8

const (
	AuthorityMintTokens AuthorityType = iota
	AuthorityFreezeAccount
	AuthorityAccountOwner
	AuthorityCloseAccount
)

func writeOptionalKey(w *borsh.Writer, k *solana.PublicKey) {
	if k == nil {
		w.U8(0)
		return
	}
	w.U8(1).PublicKey(*k)
}

// InitializeMint2 initializes a pre-allocated mint account.
func InitializeMint2(mint solana.PublicKey, decimals uint8, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) ledger.Instruction {
	w := borsh.NewWriter(67).U8(tagInitializeMint2).U8(decimals).PublicKey(mintAuthority)
	writeOptionalKey(w, freezeAuthority)
	return ledger.Instruction{
		ProgramID: solana.TokenProgramID,
		Accounts:  []ledger.AccountMeta{ledger.Writable(mint)},
		Data:      w.Bytes(),
	}
}

// InitializeAccount3 initializes a pre-allocated token account for owner.
func InitializeAccount3(account, mint, owner solana.PublicKey) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: solana.TokenProgramID,
		Accounts:  []ledger.AccountMeta{ledger.Writable(account), ledger.Readonly(mint)},
		Data:      borsh.NewWriter(33).U8(tagInitializeAccount3).PublicKey(owner).Bytes(),
	}
}

// Transfer moves amount from source to destination. authority is the
// source owner or its delegate.
func Transfer(source, destination, authority solana.PublicKey, amount uint64) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: solana.TokenProgramID,
		Accounts: []ledger.AccountMeta{
			ledger.Writable(source),
			ledger.Writable(destination),
			ledger.Signer(authority),
		},
		Data: borsh.NewWriter(9).U8(tagTransfer).U64(amount).Bytes(),
	}
}

// Approve lets delegate move up to amount from source.
func Approve(source, delegate, owner solana.PublicKey, amount uint64) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: solana.TokenProgramID,
		Accounts: []ledger.AccountMeta{
			ledger.Writable(source),
			ledger.Readonly(delegate),
			ledger.Signer(owner),
		},
		Data: borsh.NewWriter(9).U8(tagApprove).U64(amount).Bytes(),
	}
}

// MintTo creates amount new tokens in destination.
func MintTo(mint, destination, authority solana.PublicKey, amount uint64) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: solana.TokenProgramID,
		Accounts: []ledger.AccountMeta{
			ledger.Writable(mint),
			ledger.Writable(destination),
			ledger.Signer(authority),
		},
		Data: borsh.NewWriter(9).U8(tagMintTo).U64(amount).Bytes(),
	}
}

// Burn destroys amount tokens held in account.
func Burn(account, mint, authority solana.PublicKey, amount uint64) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: solana.TokenProgramID,
		Accounts: []ledger.AccountMeta{
			ledger.Writable(account),
			ledger.Writable(mint),
			ledger.Signer(authority),
		},
		Data: borsh.NewWriter(9).U8(tagBurn).U64(amount).Bytes(),
	}
}

// SetAuthority replaces or clears an authority of a mint or token account.
func SetAuthority(target, current solana.PublicKey, kind AuthorityType, newAuthority *solana.PublicKey) ledger.Instruction {
	w := borsh.NewWriter(35).U8(tagSetAuthority).U8(uint8(kind))
	writeOptionalKey(w, newAuthority)
	return ledger.Instruction{
		ProgramID: solana.TokenProgramID,
		Accounts:  []ledger.AccountMeta{ledger.Writable(target), ledger.Signer(current)},
		Data:      w.Bytes(),
	}
}

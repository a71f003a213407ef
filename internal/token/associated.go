package token

import (
	"fmt"

	"solana-bridge/internal/ledger"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
)

const (
	ataCreate           uint8 = 0
	ataCreateIdempotent uint8 = 1
)

// AssociatedProgram creates canonical token accounts at
// pda.AssociatedTokenAddress(owner, mint). Register it at
// solana.AssociatedTokenProgramID.
type AssociatedProgram struct{}

var _ ledger.Program = AssociatedProgram{}

// CreateAssociatedAccount builds a Create instruction, which fails if the
// account exists.
func CreateAssociatedAccount(payer, ata, owner, mint solana.PublicKey) ledger.Instruction {
	return associatedInstruction(ataCreate, payer, ata, owner, mint)
}

// CreateAssociatedAccountIdempotent builds a CreateIdempotent instruction,
// which succeeds without change if a matching account exists.
func CreateAssociatedAccountIdempotent(payer, ata, owner, mint solana.PublicKey) ledger.Instruction {
	return associatedInstruction(ataCreateIdempotent, payer, ata, owner, mint)
}

func associatedInstruction(tag uint8, payer, ata, owner, mint solana.PublicKey) ledger.Instruction {
	return ledger.Instruction{
		ProgramID: solana.AssociatedTokenProgramID,
		Accounts: []ledger.AccountMeta{
			ledger.WritableSigner(payer),
			ledger.Writable(ata),
			ledger.Readonly(owner),
			ledger.Readonly(mint),
			ledger.Readonly(solana.SystemProgramID),
			ledger.Readonly(solana.TokenProgramID),
		},
		Data: []byte{tag},
	}
}

// Process handles Create and CreateIdempotent.
func (AssociatedProgram) Process(ctx *ledger.Context, accounts []ledger.AccountMeta, data []byte) error {
	if err := needAccounts(accounts, 6); err != nil {
		return err
	}
	tag := ataCreate
	if len(data) > 0 {
		tag = data[0]
	}
	if tag != ataCreate && tag != ataCreateIdempotent {
		return fmt.Errorf("%w: associated token tag %d", ErrInvalidInstruction, tag)
	}
	payer, ataKey, owner, mint := accounts[0].Key, accounts[1].Key, accounts[2].Key, accounts[3].Key

	expected, err := pda.AssociatedTokenAddress(owner, mint)
	if err != nil {
		return err
	}
	if expected.Key != ataKey {
		return ErrInvalidAssociatedKey
	}

	if ctx.Exists(ataKey) {
		if tag == ataCreate {
			return fmt.Errorf("%w: %s", ErrAlreadyInUse, ataKey)
		}
		acc, err := ctx.Load(ataKey)
		if err != nil {
			return err
		}
		if acc.Owner != solana.TokenProgramID {
			return fmt.Errorf("%w: %s", ErrInvalidAccountOwner, ataKey)
		}
		existing, err := DecodeAccount(acc.Data)
		if err != nil {
			return err
		}
		if existing.Owner != owner || existing.Mint != mint {
			return fmt.Errorf("%w: %s", ErrAlreadyInUse, ataKey)
		}
		return nil
	}

	seeds := [][]byte{owner[:], solana.TokenProgramID[:], mint[:], {expected.Bump}}
	if err := ctx.InvokeSigned(ledger.CreateAccount(payer, ataKey, 0, AccountSize, solana.TokenProgramID), seeds); err != nil {
		return err
	}
	return ctx.Invoke(InitializeAccount3(ataKey, mint, owner))
}

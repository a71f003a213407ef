package ledger

import (
	"fmt"

	"solana-bridge/internal/borsh"
	"solana-bridge/internal/solana"
)

const systemCreateAccount uint32 = 0

// systemProgram implements account creation. Lamports are recorded on the
// new account but balances are not debited.
type systemProgram struct{}

func (systemProgram) Process(ctx *Context, accounts []AccountMeta, data []byte) error {
	r := borsh.NewReader(data)
	tag := r.U32()
	if r.Err() != nil {
		return ErrInvalidInstruction
	}

	switch tag {
	case systemCreateAccount:
		lamports := r.U64()
		space := r.U64()
		owner := r.PublicKey()
		if r.Err() != nil {
			return fmt.Errorf("%w: create account: %v", ErrInvalidInstruction, r.Err())
		}
		if len(accounts) < 2 {
			return fmt.Errorf("%w: create account needs 2 accounts", ErrInvalidInstruction)
		}
		from, to := accounts[0].Key, accounts[1].Key
		if !ctx.IsSigner(from) || !ctx.IsSigner(to) {
			return ErrMissingRequiredSigner
		}
		if ctx.Exists(to) {
			return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, to)
		}
		return ctx.Store(Account{
			Key:      to,
			Owner:    owner,
			Lamports: lamports,
			Data:     make([]byte, space),
		})
	default:
		return fmt.Errorf("%w: system instruction %d", ErrInvalidInstruction, tag)
	}
}

// CreateAccount builds a system instruction that allocates space bytes at
// newAccount and assigns it to owner. Both from and newAccount must sign;
// a derived newAccount signs through InvokeSigned.
func CreateAccount(from, newAccount solana.PublicKey, lamports, space uint64, owner solana.PublicKey) Instruction {
	data := borsh.NewWriter(52).
		U32(systemCreateAccount).
		U64(lamports).
		U64(space).
		PublicKey(owner).
		Bytes()
	return Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts:  []AccountMeta{WritableSigner(from), WritableSigner(newAccount)},
		Data:      data,
	}
}

// Package bridge implements the custodial bridge program: the per-deployment
// registry, locking tokens into bridge escrow, minting wrapped assets under
// the backend authority, and burning escrowed supply.
package bridge

import (
	"solana-bridge/internal/borsh"
	"solana-bridge/internal/ledger"
)

// Program is the bridge program. Register it at its deployment address.
type Program struct{}

// NewProgram returns the bridge program.
func NewProgram() *Program {
	return &Program{}
}

var _ ledger.Program = (*Program)(nil)

// Process dispatches on the 8-byte instruction discriminator. Program
// errors are also written to the logs in the form clients parse.
func (p *Program) Process(ctx *ledger.Context, accounts []ledger.AccountMeta, data []byte) error {
	err := p.dispatch(ctx, accounts, data)
	if err != nil {
		if e, ok := AsError(err); ok {
			ctx.Log("AnchorError occurred. Error Code: %s. Error Number: %d. Error Message: %s.", e.Name, e.Code, e.Msg)
		}
	}
	return err
}

func (p *Program) dispatch(ctx *ledger.Context, accounts []ledger.AccountMeta, data []byte) error {
	if len(data) < 8 {
		return wrap(ErrInvalidInstruction, "instruction data is %d bytes", len(data))
	}
	var disc [8]byte
	copy(disc[:], data[:8])
	name, ok := discriminators[disc]
	if !ok {
		return wrap(ErrInvalidInstruction, "unknown discriminator %x", disc)
	}
	ctx.Log("Instruction: %s", name)

	r := borsh.NewReader(data[8:])
	switch name {
	case InstructionInitializeBridge:
		return p.initializeBridge(ctx, accounts, r)
	case InstructionNewRequest:
		return p.newRequest(ctx, accounts, r)
	case InstructionCreateNFT:
		return p.createNFT(ctx, accounts, r)
	case InstructionBurnToken:
		return p.burnToken(ctx, accounts)
	}
	return wrap(ErrInvalidInstruction, "unhandled instruction %s", name)
}

func needAccounts(accounts []ledger.AccountMeta, n int) error {
	if len(accounts) < n {
		return wrap(ErrInvalidInstruction, "expected %d accounts, got %d", n, len(accounts))
	}
	return nil
}

package client

import (
	"solana-bridge/internal/bridge"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/metadata"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/token"
)

// NewLocalLedger returns an in-process ledger with the token, associated
// token, metadata and bridge programs registered. The bridge is installed
// at programID.
func NewLocalLedger(programID solana.PublicKey, opts ledger.Options) *ledger.Ledger {
	l := ledger.New(opts)
	l.Register(solana.TokenProgramID, token.Program{})
	l.Register(solana.AssociatedTokenProgramID, token.AssociatedProgram{})
	l.Register(solana.MetadataProgramID, metadata.Program{})
	l.Register(programID, bridge.NewProgram())
	return l
}

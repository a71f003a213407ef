package domain

// WrappedAsset is a mint created by create_nft.
// Corresponds to wrapped_assets table in PostgreSQL.
type WrappedAsset struct {
	Mint                    string // PRIMARY KEY
	DestinationTokenAccount string // recipient's token account
	RequestID               string // correlation id carried by the event
	TxSignature             string // mint transaction signature
	Slot                    int64  // Solana slot number
	CreatedAt               int64  // record creation timestamp (ms)
}

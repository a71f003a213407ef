package domain

// RequestStatus is the lifecycle state of a bridge request.
type RequestStatus string

const (
	RequestPending    RequestStatus = "PENDING"    // lock observed, not yet handled
	RequestDispatched RequestStatus = "DISPATCHED" // handler accepted it
	RequestMinted     RequestStatus = "MINTED"     // wrapped asset minted for it
	RequestFailed     RequestStatus = "FAILED"     // handler gave up
)

// String returns the string representation of RequestStatus.
func (s RequestStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid value.
func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestPending, RequestDispatched, RequestMinted, RequestFailed:
		return true
	}
	return false
}

// BridgeRequest is a lock observed on chain, keyed by its request id.
// Corresponds to bridge_requests table in PostgreSQL.
type BridgeRequest struct {
	RequestID        string        // PRIMARY KEY, caller-chosen correlation id
	Mint             string        // locked token mint
	UserTokenAccount string        // account the token was taken from
	Amount           uint64        // units locked
	TxSignature      string        // lock transaction signature
	Slot             int64         // Solana slot number
	Status           RequestStatus // PENDING | DISPATCHED | MINTED | FAILED
	Attempts         int           // handler attempts so far
	LastError        string        // last handler error, empty on success
	WrappedMint      *string       // mint created for this request (nullable)
	CreatedAt        int64         // record creation timestamp (ms)
	UpdatedAt        int64         // last status change (ms)
}

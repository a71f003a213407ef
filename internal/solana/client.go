package solana

import "context"

// RPCClient is the read side of the JSON-RPC HTTP interface the bridge
// tooling uses. *HTTPClient implements it against a node.
type RPCClient interface {
	// GetAccountInfo fetches an account. It returns nil, nil when the
	// account does not exist.
	GetAccountInfo(ctx context.Context, key PublicKey) (*AccountInfo, error)

	// GetTransaction returns a confirmed transaction with its log lines, or
	// nil, nil when the node does not know the signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress lists signatures mentioning address, newest first.
	GetSignaturesForAddress(ctx context.Context, address PublicKey, opts *SignaturesOpts) ([]SignatureInfo, error)

	GetSlot(ctx context.Context) (int64, error)
}

// WSClient streams program logs. *LogsClient implements it over a node's
// websocket; the in-process ledger implements it directly.
type WSClient interface {
	// SubscribeLogs delivers every transaction matching filter until ctx is
	// done, then closes the channel.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	Close() error
}

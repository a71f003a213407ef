package solana

// AccountInfo is a fetched account with its data decoded from base64.
type AccountInfo struct {
	Lamports   uint64
	Owner      PublicKey
	Data       []byte
	Executable bool
}

// Transaction is a confirmed transaction as returned by getTransaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // unix seconds
	Meta      *TransactionMeta
}

// TransactionMeta carries the execution outcome and program logs.
type TransactionMeta struct {
	Err         interface{} `json:"err"` // nil on success
	LogMessages []string    `json:"logMessages"`
}

// Failed reports whether the transaction was rolled back.
func (m *TransactionMeta) Failed() bool { return m != nil && m.Err != nil }

// SignatureInfo is one entry of getSignaturesForAddress.
type SignatureInfo struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// Failed reports whether the transaction was rolled back.
func (s SignatureInfo) Failed() bool { return s.Err != nil }

// SignaturesOpts pages getSignaturesForAddress. Results run newest first,
// strictly older than Before and strictly newer than Until.
type SignaturesOpts struct {
	Before string
	Until  string
	Limit  int // node maximum is 1000
}

// LogsFilter selects transactions for a logs subscription. An empty
// Mentions matches every transaction.
type LogsFilter struct {
	Mentions []string
}

// LogNotification is one transaction delivered by a logs subscription.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{} // non-nil for failed transactions
}

// Failed reports whether the transaction was rolled back.
func (n LogNotification) Failed() bool { return n.Err != nil }

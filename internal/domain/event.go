package domain

import "strconv"

// EventRecord is one decoded bridge event, archived append-only.
// Corresponds to bridge_events table in ClickHouse.
type EventRecord struct {
	TxSignature string // transaction signature
	EventIndex  int    // position among the bridge events of the transaction
	Slot        int64  // Solana slot number
	Name        string // NewRequestEvent | TokenMintedEvent
	RequestID   string // correlation id
	Mint        string // mint named by the event
	Account     string // user or destination token account
	Amount      uint64 // units locked, zero for mint events
	ObservedAt  int64  // Unix timestamp in milliseconds
}

// Key returns the transport identity of the event, used to drop redeliveries.
func (e *EventRecord) Key() string {
	return EventKey(e.TxSignature, e.EventIndex)
}

// EventKey identifies the index-th bridge event of a transaction.
func EventKey(signature string, index int) string {
	return signature + ":" + strconv.Itoa(index)
}

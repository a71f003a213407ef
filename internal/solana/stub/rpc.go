// Package stub provides an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"errors"
	"sync"

	"solana-bridge/internal/solana"
)

// ErrNotFound is returned when a transaction is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu           sync.RWMutex
	Accounts     map[solana.PublicKey]*solana.AccountInfo
	Transactions map[string]*solana.Transaction
	Signatures   map[solana.PublicKey][]solana.SignatureInfo // newest first
	Slot         int64
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:     make(map[solana.PublicKey]*solana.AccountInfo),
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[solana.PublicKey][]solana.SignatureInfo),
	}
}

var _ solana.RPCClient = (*RPCClient)(nil)

// GetAccountInfo returns the stored account, or nil if absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, key solana.PublicKey) (*solana.AccountInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Accounts[key], nil
}

// GetTransaction retrieves a transaction by signature from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.Transactions[signature]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

// GetSignaturesForAddress pages through the signatures recorded for
// address, newest first, honouring Before, Until and Limit.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address solana.PublicKey, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sigs := c.Signatures[address]
	if opts == nil {
		return append([]solana.SignatureInfo(nil), sigs...), nil
	}

	start := 0
	if opts.Before != "" {
		start = len(sigs)
		for i, s := range sigs {
			if s.Signature == opts.Before {
				start = i + 1
				break
			}
		}
	}

	var out []solana.SignatureInfo
	for _, s := range sigs[start:] {
		if s.Signature == opts.Until {
			break
		}
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
		out = append(out, s)
	}
	return out, nil
}

// GetSlot returns the highest slot recorded so far.
func (c *RPCClient) GetSlot(context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Slot, nil
}

// SetAccount stores an account.
func (c *RPCClient) SetAccount(key solana.PublicKey, info *solana.AccountInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[key] = info
}

// AddTransaction stores tx and records its signature as the newest for
// every address in mentions.
func (c *RPCClient) AddTransaction(tx *solana.Transaction, mentions ...solana.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx
	if tx.Slot > c.Slot {
		c.Slot = tx.Slot
	}
	info := solana.SignatureInfo{Signature: tx.Signature, Slot: tx.Slot}
	if tx.Meta != nil {
		info.Err = tx.Meta.Err
	}
	for _, addr := range mentions {
		c.Signatures[addr] = append([]solana.SignatureInfo{info}, c.Signatures[addr]...)
	}
}

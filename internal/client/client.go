// Package client builds, signs and submits bridge and token instructions
// and decodes the accounts they produce. All configuration is explicit: a
// Client is bound to one program id and one registry seed.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solana-bridge/internal/bridge"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/observability"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
)

// Submitter executes signed transactions.
type Submitter interface {
	Submit(ctx context.Context, tx *ledger.Transaction) (*ledger.Receipt, error)
}

// AccountReader fetches accounts. It returns nil, nil for a missing account.
// Both *ledger.Ledger and *solana.HTTPClient satisfy it.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, key solana.PublicKey) (*solana.AccountInfo, error)
}

// Config binds a Client to a bridge deployment.
type Config struct {
	// ProgramID is the bridge program. Default: solana.BridgeProgramID.
	ProgramID solana.PublicKey
	// Seed selects the registry instance.
	Seed uint64
	// Logger. Default: zap.NewNop().
	Logger *zap.Logger
}

// Client submits bridge operations for one registry.
type Client struct {
	programID solana.PublicKey
	seed      uint64
	bridge    pda.Address
	submitter Submitter
	reader    AccountReader
	logger    *zap.Logger
	nonce     atomic.Uint64
}

// New creates a client. The registry address is derived once here.
func New(cfg Config, submitter Submitter, reader AccountReader) (*Client, error) {
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = solana.BridgeProgramID
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	addr, err := pda.BridgeAddress(cfg.ProgramID, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("derive registry: %w", err)
	}
	c := &Client{
		programID: cfg.ProgramID,
		seed:      cfg.Seed,
		bridge:    addr,
		submitter: submitter,
		reader:    reader,
		logger:    cfg.Logger.With(zap.Stringer("bridge", addr.Key)),
	}
	c.nonce.Store(uint64(time.Now().UnixNano()))
	return c, nil
}

// ProgramID returns the bridge program id.
func (c *Client) ProgramID() solana.PublicKey { return c.programID }

// Seed returns the registry seed.
func (c *Client) Seed() uint64 { return c.seed }

// Bridge returns the registry address, which is also the escrow owner and
// the delegate users approve.
func (c *Client) Bridge() solana.PublicKey { return c.bridge.Key }

// ErrReadOnly is returned by operations on a client created without a
// Submitter.
var ErrReadOnly = errors.New("client has no submitter")

// OpError reports a failed client operation.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// BridgeError extracts the program error code from err, if any.
func BridgeError(err error) (*bridge.Error, bool) {
	return bridge.AsError(err)
}

// submit signs and submits ixs as one transaction, records metrics and
// wraps failures in *OpError.
func (c *Client) submit(ctx context.Context, op string, signers []solana.Keypair, ixs ...ledger.Instruction) (*ledger.Receipt, error) {
	start := time.Now()
	receipt, err := c.send(ctx, signers, ixs)
	observability.RecordInstruction(op, time.Since(start).Seconds(), err)

	if err != nil {
		fields := []zap.Field{zap.String("op", op), zap.Error(err)}
		var txErr *ledger.TransactionError
		if errors.As(err, &txErr) {
			fields = append(fields, zap.String("signature", txErr.Signature))
		}
		c.logger.Warn("operation failed", fields...)
		return receipt, &OpError{Op: op, Err: err}
	}
	c.logger.Debug("operation confirmed",
		zap.String("op", op),
		zap.String("signature", receipt.Signature),
		zap.Uint64("slot", receipt.Slot))
	return receipt, nil
}

func (c *Client) send(ctx context.Context, signers []solana.Keypair, ixs []ledger.Instruction) (*ledger.Receipt, error) {
	if c.submitter == nil {
		return nil, ErrReadOnly
	}
	tx := ledger.NewTransaction(c.nonce.Add(1), ixs...)
	if err := tx.Sign(signers...); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return c.submitter.Submit(ctx, tx)
}

// Events decodes the bridge events of a receipt.
func (c *Client) Events(receipt *ledger.Receipt) ([]bridge.Event, error) {
	if receipt == nil {
		return nil, nil
	}
	return bridge.ParseEvents(c.programID, receipt.Logs)
}

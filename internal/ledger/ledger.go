// Package ledger is an in-process host ledger: it stores accounts, executes
// signed transactions atomically against registered programs, serializes
// conflicting transactions with per-account locks, and publishes program
// logs to subscribers.
package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"solana-bridge/internal/solana"
)

// MaxInvokeDepth bounds nested cross-program invocations.
const MaxInvokeDepth = 4

// Program processes instructions addressed to its program id.
type Program interface {
	Process(ctx *Context, accounts []AccountMeta, data []byte) error
}

// ProgramFunc adapts a function to Program.
type ProgramFunc func(ctx *Context, accounts []AccountMeta, data []byte) error

// Process calls f.
func (f ProgramFunc) Process(ctx *Context, accounts []AccountMeta, data []byte) error {
	return f(ctx, accounts, data)
}

// Options configures a Ledger.
type Options struct {
	// Logger receives transaction-level diagnostics. Default: zap.NewNop().
	Logger *zap.Logger
	// SubscriptionBuffer is the channel size of each log subscription.
	// Submit never waits on a subscriber: a notification for a full buffer
	// is dropped and counted by Dropped. Default: 10000.
	SubscriptionBuffer int
}

// Ledger holds accounts and programs.
type Ledger struct {
	mu         sync.RWMutex
	accounts   map[solana.PublicKey]Account
	programs   map[solana.PublicKey]Program
	writeLocks map[solana.PublicKey]struct{}
	readLocks  map[solana.PublicKey]int
	processed  map[string]struct{}
	slot       uint64
	closed     bool

	subsMu  sync.Mutex
	subs    map[uint64]*subscription
	nextSub uint64

	bufSize int
	dropped atomic.Uint64
	logger  *zap.Logger
}

var _ solana.WSClient = (*Ledger)(nil)

// New creates a ledger with the system program registered.
func New(opts Options) *Ledger {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.SubscriptionBuffer <= 0 {
		opts.SubscriptionBuffer = 10000
	}
	l := &Ledger{
		accounts:   make(map[solana.PublicKey]Account),
		programs:   make(map[solana.PublicKey]Program),
		writeLocks: make(map[solana.PublicKey]struct{}),
		readLocks:  make(map[solana.PublicKey]int),
		processed:  make(map[string]struct{}),
		subs:       make(map[uint64]*subscription),
		bufSize:    opts.SubscriptionBuffer,
		logger:     opts.Logger,
	}
	l.programs[solana.SystemProgramID] = systemProgram{}
	return l
}

// Register installs a program at id, replacing any previous one.
func (l *Ledger) Register(id solana.PublicKey, p Program) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.programs[id] = p
}

// SetAccount writes an account directly, bypassing programs. Used for
// genesis state and test fixtures.
func (l *Ledger) SetAccount(acc Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[acc.Key] = acc.clone()
}

// GetAccount returns a copy of the committed account at key.
func (l *Ledger) GetAccount(key solana.PublicKey) (Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[key]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return acc.clone(), nil
}

// GetAccountInfo returns the committed account at key in the shape the RPC
// client returns it, or nil when no account exists.
func (l *Ledger) GetAccountInfo(ctx context.Context, key solana.PublicKey) (*solana.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acc, err := l.GetAccount(key)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &solana.AccountInfo{
		Lamports: acc.Lamports,
		Owner:    acc.Owner,
		Data:     acc.Data,
	}, nil
}

// Slot returns the slot of the last committed transaction.
func (l *Ledger) Slot() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slot
}

// Submit verifies, locks and executes tx. Either every instruction applies
// or none does. A transaction that touches an account locked by another
// in-flight transaction fails with ErrAccountInUse without executing; the
// caller may resubmit. Instruction failures are returned as
// *TransactionError together with a receipt carrying the logs.
func (l *Ledger) Submit(ctx context.Context, tx *Transaction) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tx.verify(); err != nil {
		return nil, err
	}

	sig := tx.ID()
	keys := lockSet(tx)
	if err := l.acquire(sig, keys); err != nil {
		return nil, err
	}
	defer l.release(keys)

	state := newTxState(l)
	var txErr error
	for i, ix := range tx.Instructions {
		if err := l.execute(state, ix, nil, nil, 1); err != nil {
			txErr = &TransactionError{Signature: sig, Instruction: i, Err: err}
			break
		}
	}

	slot := l.commit(state, txErr == nil)
	receipt := &Receipt{Signature: sig, Slot: slot, Logs: state.logs, Err: txErr}

	if txErr != nil {
		l.logger.Debug("transaction failed",
			zap.String("signature", sig),
			zap.Uint64("slot", slot),
			zap.Error(txErr))
	} else {
		l.logger.Debug("transaction committed",
			zap.String("signature", sig),
			zap.Uint64("slot", slot),
			zap.Int("writes", len(state.writes)))
	}

	l.publish(keys, receipt)
	return receipt, txErr
}

// lockSet maps every referenced account to whether it is written.
func lockSet(tx *Transaction) map[solana.PublicKey]bool {
	keys := make(map[solana.PublicKey]bool)
	for _, ix := range tx.Instructions {
		if _, ok := keys[ix.ProgramID]; !ok {
			keys[ix.ProgramID] = false
		}
		for _, m := range ix.Accounts {
			keys[m.Key] = keys[m.Key] || m.IsWritable
		}
	}
	return keys
}

func (l *Ledger) acquire(sig string, keys map[solana.PublicKey]bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if _, ok := l.processed[sig]; ok {
		return ErrAlreadyProcessed
	}
	for key, writable := range keys {
		if _, locked := l.writeLocks[key]; locked {
			return ErrAccountInUse
		}
		if writable && l.readLocks[key] > 0 {
			return ErrAccountInUse
		}
	}
	for key, writable := range keys {
		if writable {
			l.writeLocks[key] = struct{}{}
		} else {
			l.readLocks[key]++
		}
	}
	l.processed[sig] = struct{}{}
	return nil
}

func (l *Ledger) release(keys map[solana.PublicKey]bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, writable := range keys {
		if writable {
			delete(l.writeLocks, key)
			continue
		}
		if l.readLocks[key] <= 1 {
			delete(l.readLocks, key)
		} else {
			l.readLocks[key]--
		}
	}
}

func (l *Ledger) commit(state *txState, apply bool) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slot++
	if apply {
		for key, acc := range state.writes {
			l.accounts[key] = acc
		}
	}
	return l.slot
}

func (l *Ledger) program(id solana.PublicKey) (Program, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.programs[id]
	return p, ok
}

// execute runs one instruction. pdaSigners holds keys granted signer status
// by the invoking program; caller is nil for top-level instructions.
func (l *Ledger) execute(state *txState, ix Instruction, caller *Context, pdaSigners map[solana.PublicKey]bool, depth int) error {
	p, ok := l.program(ix.ProgramID)
	if !ok {
		return ErrUnknownProgram
	}

	metas := make(map[solana.PublicKey]AccountMeta, len(ix.Accounts))
	for _, m := range ix.Accounts {
		if caller != nil {
			granted, ok := caller.metas[m.Key]
			if !ok {
				return ErrMissingAccount
			}
			if m.IsSigner && !granted.IsSigner && !pdaSigners[m.Key] {
				return ErrPrivilegeEscalation
			}
			if m.IsWritable && !granted.IsWritable {
				return ErrPrivilegeEscalation
			}
		}
		prev := metas[m.Key]
		metas[m.Key] = AccountMeta{
			Key:        m.Key,
			IsSigner:   prev.IsSigner || m.IsSigner,
			IsWritable: prev.IsWritable || m.IsWritable,
		}
	}

	ctx := &Context{
		state:     state,
		programID: ix.ProgramID,
		metas:     metas,
		depth:     depth,
	}

	state.appendLog(programInvokeLog(ix.ProgramID, depth))
	if err := p.Process(ctx, ix.Accounts, ix.Data); err != nil {
		state.appendLog(programFailedLog(ix.ProgramID, err))
		return err
	}
	state.appendLog(programSuccessLog(ix.ProgramID))
	return nil
}

// txState is the copy-on-write overlay of one transaction.
type txState struct {
	ledger *Ledger
	writes map[solana.PublicKey]Account
	logs   []string
}

func newTxState(l *Ledger) *txState {
	return &txState{ledger: l, writes: make(map[solana.PublicKey]Account)}
}

func (s *txState) load(key solana.PublicKey) (Account, bool) {
	if acc, ok := s.writes[key]; ok {
		return acc.clone(), true
	}
	s.ledger.mu.RLock()
	acc, ok := s.ledger.accounts[key]
	s.ledger.mu.RUnlock()
	if !ok {
		return Account{Key: key, Owner: solana.SystemProgramID}, false
	}
	return acc.clone(), true
}

func (s *txState) store(acc Account) {
	s.writes[acc.Key] = acc.clone()
}

func (s *txState) appendLog(line string) {
	s.logs = append(s.logs, line)
}

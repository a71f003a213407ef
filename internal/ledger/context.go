package ledger

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
)

// Context is the execution frame of one instruction. Programs read and write
// accounts only through it, which is where ownership and privilege rules are
// enforced.
type Context struct {
	state     *txState
	programID solana.PublicKey
	metas     map[solana.PublicKey]AccountMeta
	depth     int
}

// ProgramID returns the id of the executing program.
func (c *Context) ProgramID() solana.PublicKey {
	return c.programID
}

// Depth returns the invocation depth, 1 for top-level instructions.
func (c *Context) Depth() int {
	return c.depth
}

// IsSigner reports whether key signed this instruction, directly or as a
// derived address of the invoking program.
func (c *Context) IsSigner(key solana.PublicKey) bool {
	return c.metas[key].IsSigner
}

// IsWritable reports whether key was passed writable.
func (c *Context) IsWritable(key solana.PublicKey) bool {
	return c.metas[key].IsWritable
}

// Load returns a copy of the account at key. Accounts that do not exist yet
// are returned empty and owned by the system program.
func (c *Context) Load(key solana.PublicKey) (Account, error) {
	if _, ok := c.metas[key]; !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrMissingAccount, key)
	}
	acc, _ := c.state.load(key)
	return acc, nil
}

// Exists reports whether an account has been created at key.
func (c *Context) Exists(key solana.PublicKey) bool {
	acc, ok := c.state.load(key)
	if !ok {
		return false
	}
	return len(acc.Data) > 0 || acc.Owner != solana.SystemProgramID || acc.Lamports > 0
}

// Store writes acc. The account must be writable in this frame. Only the
// owning program may change data or reassign the owner.
func (c *Context) Store(acc Account) error {
	meta, ok := c.metas[acc.Key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingAccount, acc.Key)
	}
	if !meta.IsWritable {
		return fmt.Errorf("%w: %s", ErrReadonlyAccount, acc.Key)
	}

	current, _ := c.state.load(acc.Key)
	if current.Owner != c.programID {
		if !bytes.Equal(current.Data, acc.Data) {
			return fmt.Errorf("%w: %s", ErrExternalDataModified, acc.Key)
		}
		if current.Owner != acc.Owner {
			return fmt.Errorf("%w: %s", ErrOwnerChange, acc.Key)
		}
	}
	c.state.store(acc)
	return nil
}

// Invoke calls another program with the caller's privileges.
func (c *Context) Invoke(ix Instruction) error {
	return c.InvokeSigned(ix)
}

// InvokeSigned calls another program. Each seed set must derive, under the
// calling program, an address that is then treated as a signer of ix.
func (c *Context) InvokeSigned(ix Instruction, signerSeeds ...[][]byte) error {
	if c.depth >= MaxInvokeDepth {
		return ErrCallDepth
	}
	if _, ok := c.metas[ix.ProgramID]; !ok {
		return fmt.Errorf("%w: program %s", ErrMissingAccount, ix.ProgramID)
	}

	var granted map[solana.PublicKey]bool
	if len(signerSeeds) > 0 {
		granted = make(map[solana.PublicKey]bool, len(signerSeeds))
		for _, seeds := range signerSeeds {
			addr, err := pda.CreateProgramAddress(seeds, c.programID)
			if err != nil {
				return fmt.Errorf("signer seeds: %w", err)
			}
			granted[addr] = true
		}
	}
	return c.state.ledger.execute(c.state, ix, c, granted, c.depth+1)
}

// Log appends a "Program log:" line.
func (c *Context) Log(format string, args ...any) {
	c.state.appendLog("Program log: " + fmt.Sprintf(format, args...))
}

// EmitData appends a "Program data:" line carrying base64(data).
func (c *Context) EmitData(data []byte) {
	c.state.appendLog("Program data: " + base64.StdEncoding.EncodeToString(data))
}

func programInvokeLog(id solana.PublicKey, depth int) string {
	return fmt.Sprintf("Program %s invoke [%d]", id, depth)
}

func programSuccessLog(id solana.PublicKey) string {
	return fmt.Sprintf("Program %s success", id)
}

func programFailedLog(id solana.PublicKey, err error) string {
	return fmt.Sprintf("Program %s failed: %v", id, err)
}

package ledger

import (
	"errors"
	"fmt"
)

// Common ledger errors.
var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrAccountInUse          = errors.New("account in use by another transaction")
	ErrAlreadyProcessed      = errors.New("transaction already processed")
	ErrNoSigners             = errors.New("transaction has no signers")
	ErrMissingSignature      = errors.New("missing signature for required signer")
	ErrInvalidSignature      = errors.New("invalid signature")
	ErrUnknownSigner         = errors.New("keypair is not a required signer")
	ErrUnknownProgram        = errors.New("program not registered")
	ErrMissingAccount        = errors.New("account not passed to instruction")
	ErrReadonlyAccount       = errors.New("instruction modified a read-only account")
	ErrExternalDataModified  = errors.New("instruction modified data of an account it does not own")
	ErrOwnerChange           = errors.New("instruction changed the owner of an account it does not own")
	ErrPrivilegeEscalation   = errors.New("cross-program invocation with unauthorized signer or writable account")
	ErrCallDepth             = errors.New("cross-program invocation call depth too deep")
	ErrMissingRequiredSigner = errors.New("missing required signature for instruction")
	ErrAccountAlreadyInUse   = errors.New("account already in use")
	ErrInvalidInstruction    = errors.New("invalid instruction data")
	ErrClosed                = errors.New("ledger closed")
)

// TransactionError is returned by Submit when an instruction fails. The
// transaction is rolled back as a whole.
type TransactionError struct {
	Signature   string
	Instruction int
	Err         error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: instruction %d: %v", e.Signature, e.Instruction, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

package bridge

import (
	"errors"
	"fmt"
)

// Kind classifies a bridge error by how a caller should react to it.
type Kind int

const (
	// KindInput covers malformed instructions and arguments.
	KindInput Kind = iota
	// KindAuthorization errors are fatal and never retried.
	KindAuthorization
	// KindState errors indicate reused seeds or ids; retrying the same inputs fails again.
	KindState
	// KindResource errors clear once the caller supplies the missing approval or balance.
	KindResource
	// KindDerivation errors are configuration failures of the seed space.
	KindDerivation
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindResource:
		return "resource"
	case KindDerivation:
		return "derivation"
	default:
		return "input"
	}
}

// Error is a program error with a stable numeric code.
type Error struct {
	Code uint32
	Name string
	Msg  string
	kind Kind
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

// Kind returns the error class.
func (e *Error) Kind() Kind {
	return e.kind
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrorCodeOffset is the first custom program error code.
const ErrorCodeOffset = 6000

// Program errors.
var (
	ErrUnauthorized              = &Error{6000, "Unauthorized", "required signer is missing or not authorized", KindAuthorization}
	ErrAccountAlreadyInitialized = &Error{6001, "AccountAlreadyInitialized", "bridge registry already exists for this seed", KindState}
	ErrMintAlreadyExists         = &Error{6002, "MintAlreadyExists", "wrapped asset mint already exists for this origin and id", KindState}
	ErrMetadataTooLarge          = &Error{6003, "MetadataTooLarge", "name, symbol or uri exceeds the metadata format limit", KindInput}
	ErrInsufficientDelegation    = &Error{6004, "InsufficientDelegation", "bridge is not approved to transfer one token", KindResource}
	ErrInvalidMint               = &Error{6005, "InvalidMint", "mint does not match the token account", KindInput}
	ErrInsufficientBalance       = &Error{6006, "InsufficientBalance", "account holds no tokens of this mint", KindResource}
	ErrCanonicalAddressNotFound  = &Error{6007, "CanonicalAddressNotFound", "no canonical bump for the derivation seeds", KindDerivation}
	ErrInvalidBridgeAccount      = &Error{6008, "InvalidBridgeAccount", "account is not a bridge registry of this program", KindInput}
	ErrInvalidEscrowAccount      = &Error{6009, "InvalidEscrowAccount", "escrow is not the bridge's associated token account", KindInput}
	ErrOriginSeedTooLong         = &Error{6010, "OriginSeedTooLong", "origin fragment exceeds the seed length limit", KindInput}
	ErrInvalidInstruction        = &Error{6011, "InvalidInstruction", "unknown instruction or malformed arguments", KindInput}
	ErrInvalidTokenAccount       = &Error{6012, "InvalidTokenAccount", "account is not an initialized token account", KindInput}
)

var allErrors = []*Error{
	ErrUnauthorized,
	ErrAccountAlreadyInitialized,
	ErrMintAlreadyExists,
	ErrMetadataTooLarge,
	ErrInsufficientDelegation,
	ErrInvalidMint,
	ErrInsufficientBalance,
	ErrCanonicalAddressNotFound,
	ErrInvalidBridgeAccount,
	ErrInvalidEscrowAccount,
	ErrOriginSeedTooLong,
	ErrInvalidInstruction,
	ErrInvalidTokenAccount,
}

// ErrorByCode returns the program error with code, or nil.
func ErrorByCode(code uint32) *Error {
	for _, e := range allErrors {
		if e.Code == code {
			return e
		}
	}
	return nil
}

// AsError extracts the program error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func wrap(e *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", e, fmt.Sprintf(format, args...))
}

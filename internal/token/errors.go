package token

import "errors"

// Token program errors.
var (
	ErrInsufficientFunds    = errors.New("token: insufficient funds")
	ErrMintMismatch         = errors.New("token: account not associated with this mint")
	ErrOwnerMismatch        = errors.New("token: owner does not match")
	ErrFixedSupply          = errors.New("token: fixed supply")
	ErrAlreadyInUse         = errors.New("token: account or mint already in use")
	ErrUninitialized        = errors.New("token: state is uninitialized")
	ErrAccountFrozen        = errors.New("token: account is frozen")
	ErrOverflow             = errors.New("token: operation overflowed")
	ErrAuthorityType        = errors.New("token: authority type not supported for this account")
	ErrInvalidAccountData   = errors.New("token: invalid account data")
	ErrInvalidAccountOwner  = errors.New("token: account not owned by the token program")
	ErrInvalidInstruction   = errors.New("token: invalid instruction")
	ErrInvalidAssociatedKey = errors.New("token: address does not match the associated token account derivation")
)

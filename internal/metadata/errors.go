package metadata

import "errors"

// Metadata program errors.
var (
	ErrAlreadyInitialized   = errors.New("metadata: account already initialized")
	ErrUninitialized        = errors.New("metadata: account not initialized")
	ErrInvalidMetadataKey   = errors.New("metadata: address does not match metadata derivation")
	ErrInvalidEditionKey    = errors.New("metadata: address does not match edition derivation")
	ErrNameTooLong          = errors.New("metadata: name too long")
	ErrSymbolTooLong        = errors.New("metadata: symbol too long")
	ErrURITooLong           = errors.New("metadata: uri too long")
	ErrInvalidBasisPoints   = errors.New("metadata: seller fee basis points above 10000")
	ErrInvalidCreators      = errors.New("metadata: invalid creators")
	ErrInvalidMintAuthority = errors.New("metadata: mint authority is not the signer")
	ErrUpdateAuthority      = errors.New("metadata: update authority is incorrect")
	ErrEditionDecimals      = errors.New("metadata: edition mint decimals should be zero")
	ErrEditionSupply        = errors.New("metadata: editions must have exactly one token")
	ErrMintMismatch         = errors.New("metadata: mint does not match metadata record")
	ErrUnsupportedField     = errors.New("metadata: field not supported")
	ErrInvalidInstruction   = errors.New("metadata: invalid instruction")
	ErrInvalidMintAccount   = errors.New("metadata: mint is not a token program mint")
)

package metadata

import (
	"fmt"

	"solana-bridge/internal/borsh"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/token"
)

// Program is the metadata program. Register it at solana.MetadataProgramID.
type Program struct{}

var _ ledger.Program = Program{}

// Process dispatches on the instruction tag.
func (p Program) Process(ctx *ledger.Context, accounts []ledger.AccountMeta, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidInstruction
	}
	r := borsh.NewReader(data[1:])
	switch data[0] {
	case tagCreateMetadataAccountV3:
		return p.createMetadata(ctx, accounts, r)
	case tagCreateMasterEditionV3:
		return p.createMasterEdition(ctx, accounts, r)
	default:
		return fmt.Errorf("%w: tag %d", ErrInvalidInstruction, data[0])
	}
}

func needAccounts(accounts []ledger.AccountMeta, n int) error {
	if len(accounts) < n {
		return fmt.Errorf("%w: expected %d accounts, got %d", ErrInvalidInstruction, n, len(accounts))
	}
	return nil
}

func loadMint(ctx *ledger.Context, key solana.PublicKey) (*token.Mint, error) {
	acc, err := ctx.Load(key)
	if err != nil {
		return nil, err
	}
	if acc.Owner != solana.TokenProgramID {
		return nil, ErrInvalidMintAccount
	}
	m, err := token.DecodeMint(acc.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMintAccount, err)
	}
	if !m.IsInitialized {
		return nil, ErrInvalidMintAccount
	}
	return m, nil
}

func loadMetadata(ctx *ledger.Context, key solana.PublicKey) (ledger.Account, *Metadata, error) {
	acc, err := ctx.Load(key)
	if err != nil {
		return acc, nil, err
	}
	if acc.Owner != solana.MetadataProgramID {
		return acc, nil, ErrUninitialized
	}
	md, err := DecodeMetadata(acc.Data)
	if err != nil {
		return acc, nil, err
	}
	return acc, md, nil
}

func (Program) createMetadata(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 6); err != nil {
		return err
	}
	d, err := readData(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}
	isMutable := r.Bool()
	if r.Bool() {
		return ErrUnsupportedField
	}
	if r.Err() != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, r.Err())
	}

	metaKey, mintKey, mintAuthority, payer, updateAuthority :=
		accounts[0].Key, accounts[1].Key, accounts[2].Key, accounts[3].Key, accounts[4].Key

	if err := d.Validate(); err != nil {
		return err
	}
	for _, c := range d.Creators {
		if c.Verified && !ctx.IsSigner(c.Address) {
			return ErrInvalidCreators
		}
	}

	expected, err := pda.MetadataAddress(mintKey)
	if err != nil {
		return err
	}
	if expected.Key != metaKey {
		return ErrInvalidMetadataKey
	}
	if ctx.Exists(metaKey) {
		return ErrAlreadyInitialized
	}

	m, err := loadMint(ctx, mintKey)
	if err != nil {
		return err
	}
	if m.MintAuthority == nil || *m.MintAuthority != mintAuthority || !ctx.IsSigner(mintAuthority) {
		return ErrInvalidMintAuthority
	}

	seeds := [][]byte{[]byte(pda.NamespaceMetadata), solana.MetadataProgramID[:], mintKey[:], {expected.Bump}}
	if err := ctx.InvokeSigned(ledger.CreateAccount(payer, metaKey, 0, MaxMetadataLen, solana.MetadataProgramID), seeds); err != nil {
		return err
	}

	standard := TokenStandardFungible
	if m.Decimals == 0 {
		standard = TokenStandardFungibleAsset
	}
	record := Metadata{
		UpdateAuthority: updateAuthority,
		Mint:            mintKey,
		Data:            d,
		IsMutable:       isMutable,
		TokenStandard:   &standard,
	}
	acc, err := ctx.Load(metaKey)
	if err != nil {
		return err
	}
	acc.Data = record.Encode()
	return ctx.Store(acc)
}

func (Program) createMasterEdition(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 8); err != nil {
		return err
	}
	maxSupply := r.OptionU64()
	if r.Err() != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, r.Err())
	}
	editionKey, mintKey, updateAuthority, mintAuthority, payer, metaKey :=
		accounts[0].Key, accounts[1].Key, accounts[2].Key, accounts[3].Key, accounts[4].Key, accounts[5].Key

	expected, err := pda.MasterEditionAddress(mintKey)
	if err != nil {
		return err
	}
	if expected.Key != editionKey {
		return ErrInvalidEditionKey
	}
	if ctx.Exists(editionKey) {
		return ErrAlreadyInitialized
	}

	metaAcc, md, err := loadMetadata(ctx, metaKey)
	if err != nil {
		return err
	}
	if md.Mint != mintKey {
		return ErrMintMismatch
	}
	if md.UpdateAuthority != updateAuthority || !ctx.IsSigner(updateAuthority) {
		return ErrUpdateAuthority
	}

	m, err := loadMint(ctx, mintKey)
	if err != nil {
		return err
	}
	if m.MintAuthority == nil || *m.MintAuthority != mintAuthority || !ctx.IsSigner(mintAuthority) {
		return ErrInvalidMintAuthority
	}
	if m.Decimals != 0 {
		return ErrEditionDecimals
	}
	if m.Supply != 1 {
		return ErrEditionSupply
	}

	seeds := [][]byte{
		[]byte(pda.NamespaceMetadata), solana.MetadataProgramID[:], mintKey[:],
		[]byte(pda.NamespaceEdition), {expected.Bump},
	}
	if err := ctx.InvokeSigned(ledger.CreateAccount(payer, editionKey, 0, MaxMasterEditionLen, solana.MetadataProgramID), seeds); err != nil {
		return err
	}
	edAcc, err := ctx.Load(editionKey)
	if err != nil {
		return err
	}
	edAcc.Data = (&MasterEdition{MaxSupply: maxSupply}).Encode()
	if err := ctx.Store(edAcc); err != nil {
		return err
	}

	if err := ctx.Invoke(token.SetAuthority(mintKey, mintAuthority, token.AuthorityMintTokens, &editionKey)); err != nil {
		return err
	}
	if m.FreezeAuthority != nil {
		if *m.FreezeAuthority != mintAuthority {
			return ErrInvalidMintAuthority
		}
		if err := ctx.Invoke(token.SetAuthority(mintKey, mintAuthority, token.AuthorityFreezeAccount, &editionKey)); err != nil {
			return err
		}
	}

	nonFungible := TokenStandardNonFungible
	bump := expected.Bump
	md.TokenStandard = &nonFungible
	md.EditionNonce = &bump
	metaAcc.Data = md.Encode()
	return ctx.Store(metaAcc)
}

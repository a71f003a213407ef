package bridge

import (
	"solana-bridge/internal/borsh"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/metadata"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/token"
)

// editionMaxSupply is the number of prints allowed beyond the original.
const editionMaxSupply uint64 = 0

// createNFT creates the wrapped-asset mint derived from (origin, id), mints
// one token to the recipient's associated token account, writes immutable
// metadata and a master edition that caps supply at one, and emits
// TokenMintedEvent.
func (p *Program) createNFT(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 11); err != nil {
		return err
	}
	args, err := decodeCreateNFTArgs(r)
	if err != nil {
		return wrap(ErrInvalidInstruction, "create_nft args: %v", err)
	}
	bridgeKey, backend, mintKey, destKey, recipient, editionKey, metaKey :=
		accounts[0].Key, accounts[1].Key, accounts[2].Key, accounts[3].Key,
		accounts[4].Key, accounts[5].Key, accounts[6].Key

	reg, _, err := loadRegistry(ctx, bridgeKey)
	if err != nil {
		return err
	}
	if err := requireBackend(ctx, reg, backend); err != nil {
		return err
	}

	if err := args.Origin.Validate(); err != nil {
		return wrap(ErrOriginSeedTooLong, "%v", err)
	}
	if len(args.Name) > metadata.MaxNameLength ||
		len(args.Symbol) > metadata.MaxSymbolLength ||
		len(args.URI) > metadata.MaxURILength {
		return wrap(ErrMetadataTooLarge, "name %d, symbol %d, uri %d bytes", len(args.Name), len(args.Symbol), len(args.URI))
	}

	mint, err := pda.MintAddress(ctx.ProgramID(), args.Origin, args.ID)
	if err != nil {
		return wrap(ErrCanonicalAddressNotFound, "%v", err)
	}
	if mint.Key != mintKey {
		return wrap(ErrInvalidMint, "expected mint %s for id %d", mint.Key, args.ID)
	}
	if ctx.Exists(mintKey) {
		return wrap(ErrMintAlreadyExists, "mint %s (id %d, origin %s)", mintKey, args.ID, args.Origin)
	}

	mintSeeds := append(pda.MintSeeds(args.Origin, args.ID), []byte{mint.Bump})
	createMint := ledger.CreateAccount(backend, mintKey, 0, token.MintSize, solana.TokenProgramID)
	if err := ctx.InvokeSigned(createMint, mintSeeds); err != nil {
		return err
	}
	if err := ctx.Invoke(token.InitializeMint2(mintKey, 0, backend, &backend)); err != nil {
		return err
	}
	if err := ctx.Invoke(token.CreateAssociatedAccountIdempotent(backend, destKey, recipient, mintKey)); err != nil {
		return err
	}
	if err := ctx.Invoke(token.MintTo(mintKey, destKey, backend, 1)); err != nil {
		return err
	}

	err = ctx.Invoke(metadata.CreateMetadataAccountV3(metadata.CreateMetadataArgs{
		Metadata:        metaKey,
		Mint:            mintKey,
		MintAuthority:   backend,
		Payer:           backend,
		UpdateAuthority: backend,
		Data: metadata.Data{
			Name:   args.Name,
			Symbol: args.Symbol,
			URI:    args.URI,
		},
		IsMutable: false,
	}))
	if err != nil {
		return err
	}

	maxSupply := editionMaxSupply
	err = ctx.Invoke(metadata.CreateMasterEditionV3(metadata.CreateMasterEditionArgs{
		Edition:         editionKey,
		Mint:            mintKey,
		UpdateAuthority: backend,
		MintAuthority:   backend,
		Payer:           backend,
		Metadata:        metaKey,
		MaxSupply:       &maxSupply,
	}))
	if err != nil {
		return err
	}

	ctx.EmitData(TokenMintedEvent{
		Mint:                    mintKey,
		DestinationTokenAccount: destKey,
		RequestID:               args.RequestID,
	}.Encode())
	return nil
}

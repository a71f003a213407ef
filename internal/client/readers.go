package client

import (
	"context"
	"errors"
	"fmt"

	"solana-bridge/internal/bridge"
	"solana-bridge/internal/metadata"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
	"solana-bridge/internal/token"
)

// Reader errors.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrUnexpectedOwner = errors.New("account owned by unexpected program")
)

func (c *Client) fetch(ctx context.Context, key, owner solana.PublicKey) ([]byte, error) {
	info, err := c.reader.GetAccountInfo(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	if info.Owner != owner {
		return nil, fmt.Errorf("%w: %s is owned by %s", ErrUnexpectedOwner, key, info.Owner)
	}
	return info.Data, nil
}

// Registry reads the client's registry.
func (c *Client) Registry(ctx context.Context) (*bridge.Registry, error) {
	return c.RegistryAt(ctx, c.bridge.Key)
}

// RegistryAt reads the registry stored at key.
func (c *Client) RegistryAt(ctx context.Context, key solana.PublicKey) (*bridge.Registry, error) {
	data, err := c.fetch(ctx, key, c.programID)
	if err != nil {
		return nil, err
	}
	return bridge.DecodeRegistry(data)
}

// Mint reads a token mint.
func (c *Client) Mint(ctx context.Context, key solana.PublicKey) (*token.Mint, error) {
	data, err := c.fetch(ctx, key, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	return token.DecodeMint(data)
}

// TokenAccount reads a token account.
func (c *Client) TokenAccount(ctx context.Context, key solana.PublicKey) (*token.Account, error) {
	data, err := c.fetch(ctx, key, solana.TokenProgramID)
	if err != nil {
		return nil, err
	}
	return token.DecodeAccount(data)
}

// Balance returns the amount held by a token account, or zero if it does
// not exist.
func (c *Client) Balance(ctx context.Context, key solana.PublicKey) (uint64, error) {
	acc, err := c.TokenAccount(ctx, key)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

// Metadata reads the metadata record of mint.
func (c *Client) Metadata(ctx context.Context, mint solana.PublicKey) (*metadata.Metadata, error) {
	addr, err := pda.MetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	return c.MetadataAt(ctx, addr.Key)
}

// MetadataAt reads the metadata record stored at key.
func (c *Client) MetadataAt(ctx context.Context, key solana.PublicKey) (*metadata.Metadata, error) {
	data, err := c.fetch(ctx, key, solana.MetadataProgramID)
	if err != nil {
		return nil, err
	}
	return metadata.DecodeMetadata(data)
}

// MasterEdition reads the master edition of mint.
func (c *Client) MasterEdition(ctx context.Context, mint solana.PublicKey) (*metadata.MasterEdition, error) {
	addr, err := pda.MasterEditionAddress(mint)
	if err != nil {
		return nil, err
	}
	data, err := c.fetch(ctx, addr.Key, solana.MetadataProgramID)
	if err != nil {
		return nil, err
	}
	return metadata.DecodeMasterEdition(data)
}

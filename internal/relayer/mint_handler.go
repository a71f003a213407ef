package relayer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"solana-bridge/internal/bridge"
	"solana-bridge/internal/client"
	"solana-bridge/internal/domain"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
)

// MintHandler mints one wrapped asset per request through the bridge's
// create_nft operation, signed by the registry backend.
type MintHandler struct {
	Client    *client.Client
	Backend   solana.Keypair
	Recipient solana.PublicKey
	Origin    pda.Origin
	Name      string
	Symbol    string
	URI       string
}

// AssetID maps a request id to the wrapped asset id, so a request always
// derives the same mint.
func AssetID(requestID string) uint64 {
	sum := sha256.Sum256([]byte(requestID))
	return binary.LittleEndian.Uint64(sum[:8])
}

// HandleRequest mints the wrapped asset for req. A mint that already
// exists is treated as done, so retries are safe.
func (h *MintHandler) HandleRequest(ctx context.Context, req *domain.BridgeRequest) error {
	id := AssetID(req.RequestID)

	mint, err := pda.MintAddress(h.Client.ProgramID(), h.Origin, id)
	if err != nil {
		return fmt.Errorf("derive mint: %w", err)
	}
	if _, err := h.Client.Mint(ctx, mint.Key); err == nil {
		return nil
	} else if !errors.Is(err, client.ErrAccountNotFound) {
		return err
	}

	_, _, err = h.Client.CreateNFT(ctx, h.Backend, h.Recipient, bridge.CreateNFTArgs{
		ID:        id,
		Origin:    h.Origin,
		Name:      h.Name,
		Symbol:    h.Symbol,
		URI:       h.URI,
		RequestID: req.RequestID,
	})
	return err
}

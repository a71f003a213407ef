package pda

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"solana-bridge/internal/solana"
)

// Seed namespaces. The namespace is always the first seed, so addresses in
// different namespaces never share a preimage prefix.
const (
	NamespaceBridge   = "bridge"
	NamespaceMint     = "mint"
	NamespaceMetadata = "metadata"
	NamespaceEdition  = "edition"
)

// Address is a derived address together with its canonical bump.
type Address struct {
	Key  solana.PublicKey
	Bump uint8
}

// U64Seed encodes v as the 8-byte little-endian seed used for numeric inputs.
func U64Seed(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// BridgeSeeds returns the registry seeds, without bump.
func BridgeSeeds(seed uint64) [][]byte {
	return [][]byte{[]byte(NamespaceBridge), U64Seed(seed)}
}

// BridgeAddress derives the registry address for seed under programID.
func BridgeAddress(programID solana.PublicKey, seed uint64) (Address, error) {
	key, bump, err := FindProgramAddress(BridgeSeeds(seed), programID)
	if err != nil {
		return Address{}, fmt.Errorf("derive bridge address for seed %d: %w", seed, err)
	}
	return Address{Key: key, Bump: bump}, nil
}

// MintSeeds returns the wrapped-asset mint seeds, without bump.
func MintSeeds(origin Origin, id uint64) [][]byte {
	return [][]byte{[]byte(NamespaceMint), []byte(origin.High), []byte(origin.Low), U64Seed(id)}
}

// MintAddress derives the wrapped-asset mint for (origin, id) under programID.
func MintAddress(programID solana.PublicKey, origin Origin, id uint64) (Address, error) {
	if err := origin.Validate(); err != nil {
		return Address{}, err
	}
	key, bump, err := FindProgramAddress(MintSeeds(origin, id), programID)
	if err != nil {
		return Address{}, fmt.Errorf("derive mint address for id %d: %w", id, err)
	}
	return Address{Key: key, Bump: bump}, nil
}

// MetadataAddress derives the metadata record of mint under the metadata program.
func MetadataAddress(mint solana.PublicKey) (Address, error) {
	seeds := [][]byte{
		[]byte(NamespaceMetadata),
		solana.MetadataProgramID[:],
		mint[:],
	}
	key, bump, err := FindProgramAddress(seeds, solana.MetadataProgramID)
	if err != nil {
		return Address{}, fmt.Errorf("derive metadata address for %s: %w", mint, err)
	}
	return Address{Key: key, Bump: bump}, nil
}

// MasterEditionAddress derives the master edition record of mint.
func MasterEditionAddress(mint solana.PublicKey) (Address, error) {
	seeds := [][]byte{
		[]byte(NamespaceMetadata),
		solana.MetadataProgramID[:],
		mint[:],
		[]byte(NamespaceEdition),
	}
	key, bump, err := FindProgramAddress(seeds, solana.MetadataProgramID)
	if err != nil {
		return Address{}, fmt.Errorf("derive master edition address for %s: %w", mint, err)
	}
	return Address{Key: key, Bump: bump}, nil
}

// AssociatedTokenAddress derives the canonical token account of owner for mint.
func AssociatedTokenAddress(owner, mint solana.PublicKey) (Address, error) {
	seeds := [][]byte{owner[:], solana.TokenProgramID[:], mint[:]}
	key, bump, err := FindProgramAddress(seeds, solana.AssociatedTokenProgramID)
	if err != nil {
		return Address{}, fmt.Errorf("derive associated token address for %s/%s: %w", owner, mint, err)
	}
	return Address{Key: key, Bump: bump}, nil
}

// Origin is a source-chain address split into two seed fragments.
type Origin struct {
	High string
	Low  string
}

// Validate checks that both fragments fit in a seed.
func (o Origin) Validate() error {
	if len(o.High) > MaxSeedLength {
		return fmt.Errorf("%w: origin high is %d bytes", ErrMaxSeedLengthExceeded, len(o.High))
	}
	if len(o.Low) > MaxSeedLength {
		return fmt.Errorf("%w: origin low is %d bytes", ErrMaxSeedLengthExceeded, len(o.Low))
	}
	return nil
}

// String joins the fragments.
func (o Origin) String() string {
	return o.High + o.Low
}

// SplitOrigin encodes a source-chain address as two seed fragments.
//
// Addresses of up to 2*MaxSeedLength bytes are split at len/2 (rounded down),
// which reproduces the addresses of deployments that split a hex EVM address
// in half. Longer addresses are hashed with sha256 and the 64-character hex
// digest is split instead, so any input yields fragments of at most 32 bytes.
func SplitOrigin(address string) (Origin, error) {
	if address == "" {
		return Origin{}, fmt.Errorf("pda: empty origin address")
	}
	if len(address) > 2*MaxSeedLength {
		sum := sha256.Sum256([]byte(address))
		address = hex.EncodeToString(sum[:])
	}
	mid := len(address) / 2
	return Origin{High: address[:mid], Low: address[mid:]}, nil
}

// SplitEVMOrigin validates a 0x-prefixed EVM address, lowercases it and splits it.
func SplitEVMOrigin(address string) (Origin, error) {
	if !common.IsHexAddress(address) {
		return Origin{}, fmt.Errorf("pda: invalid EVM address %q", address)
	}
	canonical := strings.ToLower(common.HexToAddress(address).Hex())
	return SplitOrigin(canonical)
}

package bridge

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"solana-bridge/internal/borsh"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
)

// RegistrySize is the length of a registry account: discriminator,
// backend, seed, bump.
const RegistrySize = 8 + 32 + 8 + 1

var registryDiscriminator = accountDiscriminator("Bridge")

func accountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:8]
}

// Registry is the per-deployment bridge record. It is written once by
// initialize_bridge and never changes.
type Registry struct {
	Backend solana.PublicKey
	Seed    uint64
	Bump    uint8
}

// Encode serializes the registry with its account discriminator.
func (r *Registry) Encode() []byte {
	return borsh.NewWriter(RegistrySize).
		Raw(registryDiscriminator).
		PublicKey(r.Backend).
		U64(r.Seed).
		U8(r.Bump).
		Bytes()
}

// DecodeRegistry parses registry account data.
func DecodeRegistry(data []byte) (*Registry, error) {
	if len(data) < RegistrySize || !bytes.Equal(data[:8], registryDiscriminator) {
		return nil, wrap(ErrInvalidBridgeAccount, "bad discriminator or length %d", len(data))
	}
	r := borsh.NewReader(data[8:])
	reg := &Registry{Backend: r.PublicKey(), Seed: r.U64(), Bump: r.U8()}
	if err := r.Err(); err != nil {
		return nil, wrap(ErrInvalidBridgeAccount, "%v", err)
	}
	return reg, nil
}

// Authority is the registry's derived signing capability. It carries no
// secret: it is the seed list that derives the registry address, which the
// ledger accepts in place of a signature when the bridge program invokes
// the token program.
type Authority struct {
	Address solana.PublicKey
	seeds   [][]byte
}

// Authority rebuilds the signing capability from the stored seed and bump
// and checks that it derives the expected address.
func (r *Registry) Authority(programID, address solana.PublicKey) (Authority, error) {
	seeds := append(pda.BridgeSeeds(r.Seed), []byte{r.Bump})
	derived, err := pda.CreateProgramAddress(seeds, programID)
	if err != nil {
		return Authority{}, wrap(ErrInvalidBridgeAccount, "%v", err)
	}
	if derived != address {
		return Authority{}, wrap(ErrInvalidBridgeAccount, "registry %s does not derive from seed %d", address, r.Seed)
	}
	return Authority{Address: derived, seeds: seeds}, nil
}

// SignerSeeds returns the seeds to pass to InvokeSigned.
func (a Authority) SignerSeeds() [][]byte {
	out := make([][]byte, len(a.seeds))
	copy(out, a.seeds)
	return out
}

// loadRegistry reads and validates the registry passed at key.
func loadRegistry(ctx *ledger.Context, key solana.PublicKey) (*Registry, Authority, error) {
	acc, err := ctx.Load(key)
	if err != nil {
		return nil, Authority{}, err
	}
	if acc.Owner != ctx.ProgramID() {
		return nil, Authority{}, wrap(ErrInvalidBridgeAccount, "%s is owned by %s", key, acc.Owner)
	}
	reg, err := DecodeRegistry(acc.Data)
	if err != nil {
		return nil, Authority{}, err
	}
	auth, err := reg.Authority(ctx.ProgramID(), key)
	if err != nil {
		return nil, Authority{}, err
	}
	return reg, auth, nil
}

// requireBackend checks that the registry backend signed.
func requireBackend(ctx *ledger.Context, reg *Registry, signer solana.PublicKey) error {
	if signer != reg.Backend || !ctx.IsSigner(signer) {
		return fmt.Errorf("%w: %s", ErrUnauthorized, signer)
	}
	return nil
}

func (p *Program) initializeBridge(ctx *ledger.Context, accounts []ledger.AccountMeta, r *borsh.Reader) error {
	if err := needAccounts(accounts, 3); err != nil {
		return err
	}
	seed := r.U64()
	if r.Err() != nil {
		return wrap(ErrInvalidInstruction, "initialize_bridge args: %v", r.Err())
	}
	bridgeKey, signer := accounts[0].Key, accounts[1].Key

	if !ctx.IsSigner(signer) {
		return ledger.ErrMissingRequiredSigner
	}
	addr, err := pda.BridgeAddress(ctx.ProgramID(), seed)
	if err != nil {
		return wrap(ErrCanonicalAddressNotFound, "%v", err)
	}
	if addr.Key != bridgeKey {
		return wrap(ErrInvalidBridgeAccount, "expected %s for seed %d", addr.Key, seed)
	}
	if ctx.Exists(bridgeKey) {
		return wrap(ErrAccountAlreadyInitialized, "seed %d", seed)
	}

	seeds := append(pda.BridgeSeeds(seed), []byte{addr.Bump})
	if err := ctx.InvokeSigned(ledger.CreateAccount(signer, bridgeKey, 0, RegistrySize, ctx.ProgramID()), seeds); err != nil {
		return err
	}

	acc, err := ctx.Load(bridgeKey)
	if err != nil {
		return err
	}
	reg := Registry{Backend: signer, Seed: seed, Bump: addr.Bump}
	acc.Data = reg.Encode()
	if err := ctx.Store(acc); err != nil {
		return err
	}
	ctx.Log("bridge %s initialized with seed %d", bridgeKey, seed)
	return nil
}

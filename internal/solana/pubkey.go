package solana

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/mr-tron/base58"
)

// PublicKeyLength is the size of an account address in bytes.
const PublicKeyLength = 32

// PublicKey is a 32-byte account address, printed in base58.
type PublicKey [PublicKeyLength]byte

// PublicKeyFromBase58 decodes a base58 address.
func PublicKeyFromBase58(s string) (PublicKey, error) {
	var k PublicKey
	decoded, err := base58.Decode(s)
	if err != nil {
		return k, fmt.Errorf("decode public key %q: %w", s, err)
	}
	if len(decoded) != PublicKeyLength {
		return k, fmt.Errorf("invalid public key length %d for %q", len(decoded), s)
	}
	copy(k[:], decoded)
	return k, nil
}

// MustPublicKey decodes a base58 address and panics on failure.
// Intended for compile-time constants.
func MustPublicKey(s string) PublicKey {
	k, err := PublicKeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return k
}

// PublicKeyFromBytes copies b into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var k PublicKey
	if len(b) != PublicKeyLength {
		return k, fmt.Errorf("invalid public key length %d", len(b))
	}
	copy(k[:], b)
	return k, nil
}

// String returns the base58 encoding.
func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

// Bytes returns a copy of the raw key bytes.
func (k PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeyLength)
	copy(b, k[:])
	return b
}

// IsZero reports whether the key is all zeroes (the system program address).
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// MarshalText implements encoding.TextMarshaler.
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := PublicKeyFromBase58(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Keypair is an ed25519 signing key held by a wallet or key-custody service.
type Keypair struct {
	private ed25519.PrivateKey
}

// NewKeypair generates a random keypair.
func NewKeypair() (Keypair, error) {
	return NewKeypairFromReader(rand.Reader)
}

// NewKeypairFromReader generates a keypair using entropy from r.
func NewKeypairFromReader(r io.Reader) (Keypair, error) {
	_, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Keypair{private: priv}, nil
}

// KeypairFromSeed derives a keypair from a 32-byte seed.
func KeypairFromSeed(seed []byte) (Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("invalid seed length %d", len(seed))
	}
	return Keypair{private: ed25519.NewKeyFromSeed(seed)}, nil
}

// PublicKey returns the address of the keypair.
func (kp Keypair) PublicKey() PublicKey {
	var k PublicKey
	copy(k[:], kp.private.Public().(ed25519.PublicKey))
	return k
}

// Sign signs message with the private key.
func (kp Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(kp.private, message)
}

// Verify reports whether sig is a valid signature of message by key.
func Verify(key PublicKey, message, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(key[:]), message, sig)
}

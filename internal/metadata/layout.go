// Package metadata implements the token metadata program: a name, symbol and
// URI record per mint, and the master edition record that caps a mint's
// supply. Layouts follow Metaplex Token Metadata (MetadataV1, MasterEditionV2).
package metadata

import (
	"fmt"
	"strings"

	"solana-bridge/internal/borsh"
	"solana-bridge/internal/solana"
)

// Field and account size limits.
const (
	MaxNameLength       = 32
	MaxSymbolLength     = 10
	MaxURILength        = 200
	MaxCreators         = 5
	MaxMetadataLen      = 679
	MaxMasterEditionLen = 282
)

// Account discriminators (first byte).
const (
	KeyMasterEditionV2 uint8 = 6
	KeyMetadataV1      uint8 = 4
)

// TokenStandard values stored on the metadata record.
const (
	TokenStandardNonFungible   uint8 = 0
	TokenStandardFungibleAsset uint8 = 1
	TokenStandardFungible      uint8 = 2
)

// Creator is a royalty recipient.
type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// Data is the user-supplied portion of a metadata record.
type Data struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
}

// Validate checks field lengths and creator shares.
func (d Data) Validate() error {
	if len(d.Name) > MaxNameLength {
		return fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(d.Name))
	}
	if len(d.Symbol) > MaxSymbolLength {
		return fmt.Errorf("%w: %d bytes", ErrSymbolTooLong, len(d.Symbol))
	}
	if len(d.URI) > MaxURILength {
		return fmt.Errorf("%w: %d bytes", ErrURITooLong, len(d.URI))
	}
	if d.SellerFeeBasisPoints > 10000 {
		return ErrInvalidBasisPoints
	}
	if d.Creators != nil {
		if len(d.Creators) == 0 || len(d.Creators) > MaxCreators {
			return ErrInvalidCreators
		}
		total := 0
		for _, c := range d.Creators {
			total += int(c.Share)
		}
		if total != 100 {
			return ErrInvalidCreators
		}
	}
	return nil
}

// Metadata is the on-chain metadata record.
type Metadata struct {
	UpdateAuthority     solana.PublicKey
	Mint                solana.PublicKey
	Data                Data
	PrimarySaleHappened bool
	IsMutable           bool
	EditionNonce        *uint8
	TokenStandard       *uint8
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat("\x00", n-len(s))
}

// Encode serializes the record, zero-padded to MaxMetadataLen. Strings are
// padded to their maximum length as Metaplex does.
func (m *Metadata) Encode() []byte {
	w := borsh.NewWriter(MaxMetadataLen).
		U8(KeyMetadataV1).
		PublicKey(m.UpdateAuthority).
		PublicKey(m.Mint).
		String(pad(m.Data.Name, MaxNameLength)).
		String(pad(m.Data.Symbol, MaxSymbolLength)).
		String(pad(m.Data.URI, MaxURILength)).
		U16(m.Data.SellerFeeBasisPoints)
	if m.Data.Creators == nil {
		w.U8(0)
	} else {
		w.U8(1).U32(uint32(len(m.Data.Creators)))
		for _, c := range m.Data.Creators {
			w.PublicKey(c.Address).Bool(c.Verified).U8(c.Share)
		}
	}
	w.Bool(m.PrimarySaleHappened).
		Bool(m.IsMutable).
		OptionU8(m.EditionNonce).
		OptionU8(m.TokenStandard).
		U8(0). // collection
		U8(0). // uses
		U8(0). // collection details
		U8(0)  // programmable config

	out := w.Bytes()
	if len(out) < MaxMetadataLen {
		out = append(out, make([]byte, MaxMetadataLen-len(out))...)
	}
	return out
}

// DecodeMetadata parses a metadata account. Trailing fields after the
// token standard are ignored.
func DecodeMetadata(data []byte) (*Metadata, error) {
	r := borsh.NewReader(data)
	if key := r.U8(); r.Err() == nil && key != KeyMetadataV1 {
		return nil, fmt.Errorf("%w: key %d", ErrUninitialized, key)
	}
	m := &Metadata{
		UpdateAuthority: r.PublicKey(),
		Mint:            r.PublicKey(),
	}
	m.Data.Name = strings.TrimRight(r.String(), "\x00")
	m.Data.Symbol = strings.TrimRight(r.String(), "\x00")
	m.Data.URI = strings.TrimRight(r.String(), "\x00")
	m.Data.SellerFeeBasisPoints = r.U16()
	if r.Bool() {
		n := r.U32()
		if n > MaxCreators {
			return nil, fmt.Errorf("decode metadata: %d creators", n)
		}
		m.Data.Creators = make([]Creator, 0, n)
		for i := uint32(0); i < n; i++ {
			m.Data.Creators = append(m.Data.Creators, Creator{
				Address:  r.PublicKey(),
				Verified: r.Bool(),
				Share:    r.U8(),
			})
		}
	}
	m.PrimarySaleHappened = r.Bool()
	m.IsMutable = r.Bool()
	if r.Remaining() > 0 {
		m.EditionNonce = r.OptionU8()
	}
	if r.Remaining() > 0 {
		m.TokenStandard = r.OptionU8()
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

// MasterEdition caps the supply of prints of a mint.
type MasterEdition struct {
	Supply    uint64
	MaxSupply *uint64
}

// Encode serializes the record, zero-padded to MaxMasterEditionLen.
func (e *MasterEdition) Encode() []byte {
	out := borsh.NewWriter(MaxMasterEditionLen).
		U8(KeyMasterEditionV2).
		U64(e.Supply).
		OptionU64(e.MaxSupply).
		Bytes()
	return append(out, make([]byte, MaxMasterEditionLen-len(out))...)
}

// DecodeMasterEdition parses a master edition account.
func DecodeMasterEdition(data []byte) (*MasterEdition, error) {
	r := borsh.NewReader(data)
	if key := r.U8(); r.Err() == nil && key != KeyMasterEditionV2 {
		return nil, fmt.Errorf("%w: key %d", ErrUninitialized, key)
	}
	e := &MasterEdition{Supply: r.U64(), MaxSupply: r.OptionU64()}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode master edition: %w", err)
	}
	return e, nil
}

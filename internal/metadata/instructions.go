package metadata

import (
	"solana-bridge/internal/borsh"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/solana"
)

const (
	tagCreateMasterEditionV3   uint8 = 17
	tagCreateMetadataAccountV3 uint8 = 33
)

// CreateMetadataArgs are the inputs of CreateMetadataAccountV3.
type CreateMetadataArgs struct {
	Metadata        solana.PublicKey
	Mint            solana.PublicKey
	MintAuthority   solana.PublicKey
	Payer           solana.PublicKey
	UpdateAuthority solana.PublicKey
	Data            Data
	IsMutable       bool
}

func writeData(w *borsh.Writer, d Data) {
	w.String(d.Name).String(d.Symbol).String(d.URI).U16(d.SellerFeeBasisPoints)
	if d.Creators == nil {
		w.U8(0)
	} else {
		w.U8(1).U32(uint32(len(d.Creators)))
		for _, c := range d.Creators {
			w.PublicKey(c.Address).Bool(c.Verified).U8(c.Share)
		}
	}
	w.U8(0) // collection
	w.U8(0) // uses
}

func readData(r *borsh.Reader) (Data, error) {
	d := Data{
		Name:                 r.String(),
		Symbol:               r.String(),
		URI:                  r.String(),
		SellerFeeBasisPoints: r.U16(),
	}
	if r.Bool() {
		n := r.U32()
		if n > MaxCreators {
			return d, ErrInvalidCreators
		}
		d.Creators = make([]Creator, 0, n)
		for i := uint32(0); i < n; i++ {
			d.Creators = append(d.Creators, Creator{Address: r.PublicKey(), Verified: r.Bool(), Share: r.U8()})
		}
	}
	if r.Bool() || r.Bool() {
		return d, ErrUnsupportedField
	}
	return d, r.Err()
}

// CreateMetadataAccountV3 creates the metadata record of a mint. The mint
// authority must sign.
func CreateMetadataAccountV3(a CreateMetadataArgs) ledger.Instruction {
	w := borsh.NewWriter(256).U8(tagCreateMetadataAccountV3)
	writeData(w, a.Data)
	w.Bool(a.IsMutable).U8(0) // collection details

	return ledger.Instruction{
		ProgramID: solana.MetadataProgramID,
		Accounts: []ledger.AccountMeta{
			ledger.Writable(a.Metadata),
			ledger.Readonly(a.Mint),
			ledger.Signer(a.MintAuthority),
			ledger.WritableSigner(a.Payer),
			ledger.Signer(a.UpdateAuthority),
			ledger.Readonly(solana.SystemProgramID),
		},
		Data: w.Bytes(),
	}
}

// CreateMasterEditionArgs are the inputs of CreateMasterEditionV3.
type CreateMasterEditionArgs struct {
	Edition         solana.PublicKey
	Mint            solana.PublicKey
	UpdateAuthority solana.PublicKey
	MintAuthority   solana.PublicKey
	Payer           solana.PublicKey
	Metadata        solana.PublicKey
	MaxSupply       *uint64
}

// CreateMasterEditionV3 creates the master edition of a one-token mint and
// hands its mint and freeze authority to the edition.
func CreateMasterEditionV3(a CreateMasterEditionArgs) ledger.Instruction {
	data := borsh.NewWriter(10).U8(tagCreateMasterEditionV3).OptionU64(a.MaxSupply).Bytes()
	return ledger.Instruction{
		ProgramID: solana.MetadataProgramID,
		Accounts: []ledger.AccountMeta{
			ledger.Writable(a.Edition),
			ledger.Writable(a.Mint),
			ledger.Signer(a.UpdateAuthority),
			ledger.Signer(a.MintAuthority),
			ledger.WritableSigner(a.Payer),
			ledger.Writable(a.Metadata),
			ledger.Readonly(solana.TokenProgramID),
			ledger.Readonly(solana.SystemProgramID),
		},
		Data: data,
	}
}

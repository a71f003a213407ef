package bridge

import (
	"crypto/sha256"

	"solana-bridge/internal/borsh"
	"solana-bridge/internal/ledger"
	"solana-bridge/internal/pda"
	"solana-bridge/internal/solana"
)

// Instruction names, as hashed into their discriminators.
const (
	InstructionInitializeBridge = "initialize_bridge"
	InstructionNewRequest       = "new_request"
	InstructionCreateNFT        = "create_nft"
	InstructionBurnToken        = "burn_token"
)

func instructionDiscriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

var discriminators = map[[8]byte]string{
	instructionDiscriminator(InstructionInitializeBridge): InstructionInitializeBridge,
	instructionDiscriminator(InstructionNewRequest):       InstructionNewRequest,
	instructionDiscriminator(InstructionCreateNFT):        InstructionCreateNFT,
	instructionDiscriminator(InstructionBurnToken):        InstructionBurnToken,
}

func newData(name string) *borsh.Writer {
	d := instructionDiscriminator(name)
	return borsh.NewWriter(64).Raw(d[:])
}

// InitializeBridge creates the registry for seed. signer pays and becomes
// the backend.
func InitializeBridge(programID solana.PublicKey, seed uint64, signer solana.PublicKey) (ledger.Instruction, error) {
	addr, err := pda.BridgeAddress(programID, seed)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			ledger.Writable(addr.Key),
			ledger.WritableSigner(signer),
			ledger.Readonly(solana.SystemProgramID),
		},
		Data: newData(InstructionInitializeBridge).U64(seed).Bytes(),
	}, nil
}

// NewRequestAccounts are the accounts of new_request. Owner owns
// UserTokenAccount; it signs and pays for escrow creation.
type NewRequestAccounts struct {
	Bridge           solana.PublicKey
	Mint             solana.PublicKey
	UserTokenAccount solana.PublicKey
	Owner            solana.PublicKey
}

// NewRequest locks one token from the user's account into the bridge escrow.
// The owner must have approved the bridge for at least one token.
func NewRequest(programID solana.PublicKey, a NewRequestAccounts, requestID string) (ledger.Instruction, error) {
	escrow, err := pda.AssociatedTokenAddress(a.Bridge, a.Mint)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			ledger.Readonly(a.Bridge),
			ledger.Readonly(a.Mint),
			ledger.Writable(a.UserTokenAccount),
			ledger.Writable(escrow.Key),
			ledger.WritableSigner(a.Owner),
			ledger.Readonly(solana.TokenProgramID),
			ledger.Readonly(solana.AssociatedTokenProgramID),
			ledger.Readonly(solana.SystemProgramID),
		},
		Data: newData(InstructionNewRequest).String(requestID).Bytes(),
	}, nil
}

// CreateNFTArgs are the arguments of create_nft.
type CreateNFTArgs struct {
	ID        uint64
	Origin    pda.Origin
	Name      string
	Symbol    string
	URI       string
	RequestID string
}

func (a CreateNFTArgs) encode() []byte {
	return newData(InstructionCreateNFT).
		U64(a.ID).
		String(a.Origin.High).
		String(a.Origin.Low).
		String(a.Name).
		String(a.Symbol).
		String(a.URI).
		String(a.RequestID).
		Bytes()
}

func decodeCreateNFTArgs(r *borsh.Reader) (CreateNFTArgs, error) {
	a := CreateNFTArgs{ID: r.U64()}
	a.Origin.High = r.String()
	a.Origin.Low = r.String()
	a.Name = r.String()
	a.Symbol = r.String()
	a.URI = r.String()
	a.RequestID = r.String()
	return a, r.Err()
}

// CreateNFTAccounts are the accounts of create_nft.
type CreateNFTAccounts struct {
	Bridge    solana.PublicKey
	Backend   solana.PublicKey
	Recipient solana.PublicKey
}

// CreateNFTAddresses are the accounts create_nft derives and creates.
type CreateNFTAddresses struct {
	Mint          solana.PublicKey
	Destination   solana.PublicKey
	Metadata      solana.PublicKey
	MasterEdition solana.PublicKey
}

// DeriveNFTAddresses computes the mint, the recipient's token account, the
// metadata record and the master edition for (origin, id).
func DeriveNFTAddresses(programID solana.PublicKey, origin pda.Origin, id uint64, recipient solana.PublicKey) (CreateNFTAddresses, error) {
	mint, err := pda.MintAddress(programID, origin, id)
	if err != nil {
		return CreateNFTAddresses{}, err
	}
	dest, err := pda.AssociatedTokenAddress(recipient, mint.Key)
	if err != nil {
		return CreateNFTAddresses{}, err
	}
	meta, err := pda.MetadataAddress(mint.Key)
	if err != nil {
		return CreateNFTAddresses{}, err
	}
	edition, err := pda.MasterEditionAddress(mint.Key)
	if err != nil {
		return CreateNFTAddresses{}, err
	}
	return CreateNFTAddresses{
		Mint:          mint.Key,
		Destination:   dest.Key,
		Metadata:      meta.Key,
		MasterEdition: edition.Key,
	}, nil
}

// CreateNFT mints the wrapped asset for (args.Origin, args.ID) to the
// recipient. Only the registry backend may sign it.
func CreateNFT(programID solana.PublicKey, a CreateNFTAccounts, args CreateNFTArgs) (ledger.Instruction, CreateNFTAddresses, error) {
	addrs, err := DeriveNFTAddresses(programID, args.Origin, args.ID, a.Recipient)
	if err != nil {
		return ledger.Instruction{}, CreateNFTAddresses{}, err
	}
	ix := ledger.Instruction{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			ledger.Readonly(a.Bridge),
			ledger.WritableSigner(a.Backend),
			ledger.Writable(addrs.Mint),
			ledger.Writable(addrs.Destination),
			ledger.Readonly(a.Recipient),
			ledger.Writable(addrs.MasterEdition),
			ledger.Writable(addrs.Metadata),
			ledger.Readonly(solana.TokenProgramID),
			ledger.Readonly(solana.AssociatedTokenProgramID),
			ledger.Readonly(solana.MetadataProgramID),
			ledger.Readonly(solana.SystemProgramID),
		},
		Data: args.encode(),
	}
	return ix, addrs, nil
}

// BurnToken burns the bridge's escrowed balance of mint. Only the registry
// backend may sign it.
func BurnToken(programID, bridge, mint, backend solana.PublicKey) (ledger.Instruction, error) {
	escrow, err := pda.AssociatedTokenAddress(bridge, mint)
	if err != nil {
		return ledger.Instruction{}, err
	}
	return ledger.Instruction{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			ledger.Readonly(bridge),
			ledger.Writable(mint),
			ledger.Writable(escrow.Key),
			ledger.Signer(backend),
			ledger.Readonly(solana.TokenProgramID),
		},
		Data: newData(InstructionBurnToken).Bytes(),
	}, nil
}

package ledger

import (
	"fmt"

	"github.com/mr-tron/base58"

	"solana-bridge/internal/borsh"
	"solana-bridge/internal/solana"
)

// Account is the state stored at an address.
type Account struct {
	Key      solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

func (a Account) clone() Account {
	c := a
	if a.Data != nil {
		c.Data = make([]byte, len(a.Data))
		copy(c.Data, a.Data)
	}
	return c
}

// AccountMeta declares how an instruction uses an account.
type AccountMeta struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Writable returns a writable, non-signer meta.
func Writable(key solana.PublicKey) AccountMeta {
	return AccountMeta{Key: key, IsWritable: true}
}

// Readonly returns a read-only, non-signer meta.
func Readonly(key solana.PublicKey) AccountMeta {
	return AccountMeta{Key: key}
}

// Signer returns a read-only signer meta.
func Signer(key solana.PublicKey) AccountMeta {
	return AccountMeta{Key: key, IsSigner: true}
}

// WritableSigner returns a writable signer meta.
func WritableSigner(key solana.PublicKey) AccountMeta {
	return AccountMeta{Key: key, IsSigner: true, IsWritable: true}
}

// Instruction is a single program call.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// Signature pairs a signer with its ed25519 signature over the message.
type Signature struct {
	Signer solana.PublicKey
	Bytes  []byte
}

// Transaction is an ordered list of instructions executed atomically.
// Nonce distinguishes otherwise identical transactions.
type Transaction struct {
	Instructions []Instruction
	Nonce        uint64
	Signatures   []Signature
}

// NewTransaction builds an unsigned transaction.
func NewTransaction(nonce uint64, instructions ...Instruction) *Transaction {
	return &Transaction{Instructions: instructions, Nonce: nonce}
}

// Signers returns required signers in order of first appearance.
func (tx *Transaction) Signers() []solana.PublicKey {
	var out []solana.PublicKey
	seen := make(map[solana.PublicKey]bool)
	for _, ix := range tx.Instructions {
		for _, m := range ix.Accounts {
			if m.IsSigner && !seen[m.Key] {
				seen[m.Key] = true
				out = append(out, m.Key)
			}
		}
	}
	return out
}

// Message returns the bytes covered by signatures.
func (tx *Transaction) Message() []byte {
	w := borsh.NewWriter(256).U64(tx.Nonce).U32(uint32(len(tx.Instructions)))
	for _, ix := range tx.Instructions {
		w.PublicKey(ix.ProgramID).U32(uint32(len(ix.Accounts)))
		for _, m := range ix.Accounts {
			w.PublicKey(m.Key).Bool(m.IsSigner).Bool(m.IsWritable)
		}
		w.U32(uint32(len(ix.Data))).Raw(ix.Data)
	}
	return w.Bytes()
}

// Sign adds signatures from the given keypairs. Every keypair must be a
// required signer.
func (tx *Transaction) Sign(keypairs ...solana.Keypair) error {
	required := make(map[solana.PublicKey]bool)
	for _, k := range tx.Signers() {
		required[k] = true
	}

	msg := tx.Message()
	for _, kp := range keypairs {
		pub := kp.PublicKey()
		if !required[pub] {
			return fmt.Errorf("%w: %s", ErrUnknownSigner, pub)
		}
		sig := Signature{Signer: pub, Bytes: kp.Sign(msg)}
		replaced := false
		for i := range tx.Signatures {
			if tx.Signatures[i].Signer == pub {
				tx.Signatures[i] = sig
				replaced = true
			}
		}
		if !replaced {
			tx.Signatures = append(tx.Signatures, sig)
		}
	}
	return nil
}

// ID returns the transaction signature id: base58 of the first required
// signer's signature, or "" if that signature is missing.
func (tx *Transaction) ID() string {
	signers := tx.Signers()
	if len(signers) == 0 {
		return ""
	}
	for _, s := range tx.Signatures {
		if s.Signer == signers[0] {
			return base58.Encode(s.Bytes)
		}
	}
	return ""
}

func (tx *Transaction) verify() error {
	signers := tx.Signers()
	if len(signers) == 0 {
		return ErrNoSigners
	}
	msg := tx.Message()
	for _, signer := range signers {
		var sig []byte
		for _, s := range tx.Signatures {
			if s.Signer == signer {
				sig = s.Bytes
				break
			}
		}
		if sig == nil {
			return fmt.Errorf("%w: %s", ErrMissingSignature, signer)
		}
		if !solana.Verify(signer, msg, sig) {
			return fmt.Errorf("%w: %s", ErrInvalidSignature, signer)
		}
	}
	return nil
}

// Receipt is the result of a processed transaction.
type Receipt struct {
	Signature string
	Slot      uint64
	Logs      []string
	Err       error
}

package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"xdao.co/attest/address"
	"xdao.co/attest/keys"
)

const messageDomain = "xdao-attest-tx-v1"

// AccountMeta names one account an instruction touches.
type AccountMeta struct {
	Key        address.Address
	IsSigner   bool
	IsWritable bool
}

func Writable(key address.Address) AccountMeta { return AccountMeta{Key: key, IsWritable: true} }
func Readonly(key address.Address) AccountMeta { return AccountMeta{Key: key} }

// WritableSigner marks key as both signer and writable.
func WritableSigner(key address.Address) AccountMeta {
	return AccountMeta{Key: key, IsSigner: true, IsWritable: true}
}

func ReadonlySigner(key address.Address) AccountMeta {
	return AccountMeta{Key: key, IsSigner: true}
}

// Instruction invokes one program with an ordered account list and opaque data.
type Instruction struct {
	ProgramID address.Address
	Accounts  []AccountMeta
	Data      []byte
}

// Transaction is the unit of atomic execution.
type Transaction struct {
	ID           uuid.UUID
	Instructions []Instruction
	Signatures   []keys.Signature
}

// NewTransaction returns an unsigned transaction with a fresh ID.
func NewTransaction(instructions ...Instruction) *Transaction {
	return &Transaction{ID: uuid.New(), Instructions: instructions}
}

// Message is the canonical byte string every signature covers. It binds the
// transaction ID, each program, every account with its flags, and the data.
func (t *Transaction) Message() []byte {
	buf := []byte(messageDomain)
	buf = append(buf, t.ID[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(t.Instructions)))
	for _, ix := range t.Instructions {
		buf = append(buf, ix.ProgramID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ix.Accounts)))
		for _, m := range ix.Accounts {
			buf = append(buf, m.Key[:]...)
			var flags byte
			if m.IsSigner {
				flags |= 1
			}
			if m.IsWritable {
				flags |= 2
			}
			buf = append(buf, flags)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ix.Data)))
		buf = append(buf, ix.Data...)
	}
	return buf
}

// Sign appends a signature from each signer. Sign after the instructions are final.
func (t *Transaction) Sign(signers ...keys.Signer) error {
	msg := t.Message()
	for _, s := range signers {
		sig, err := keys.SignWith(s, msg)
		if err != nil {
			return fmt.Errorf("ledger: sign as %s: %w", s.Address(), err)
		}
		t.Signatures = append(t.Signatures, sig)
	}
	return nil
}

// verify checks every attached signature and that each account marked as a
// signer is covered by one.
func (t *Transaction) verify() error {
	if len(t.Instructions) == 0 {
		return ErrEmptyTransaction
	}
	msg := t.Message()
	signed := make(map[address.Address]bool, len(t.Signatures))
	for i, sig := range t.Signatures {
		addr, err := sig.Address()
		if err != nil {
			return fmt.Errorf("ledger: signature %d: %w", i, err)
		}
		if err := sig.Verify(msg); err != nil {
			return fmt.Errorf("ledger: signature %d by %s: %w", i, addr, err)
		}
		signed[addr] = true
	}
	for i, ix := range t.Instructions {
		for _, m := range ix.Accounts {
			if m.IsSigner && !signed[m.Key] {
				return fmt.Errorf("%w: instruction %d account %s", ErrMissingSignature, i, m.Key)
			}
		}
	}
	return nil
}

package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/bits"

	"xdao.co/attest/address"
)

const systemTransfer = 0

// systemProgram moves lamports between accounts it owns. Account allocation
// is reached through Env rather than instructions.
type systemProgram struct{}

func (systemProgram) ID() address.Address { return address.SystemProgramID }

func (systemProgram) Process(_ context.Context, inv *Invocation) error {
	if len(inv.Data) != 9 || inv.Data[0] != systemTransfer {
		return fmt.Errorf("ledger: system program: malformed instruction")
	}
	if len(inv.Accounts) != 2 {
		return fmt.Errorf("ledger: system program: transfer takes 2 accounts, got %d", len(inv.Accounts))
	}
	from, to := inv.Accounts[0], inv.Accounts[1]
	amount := binary.LittleEndian.Uint64(inv.Data[1:])
	if !from.IsSigner {
		return fmt.Errorf("%w: %s", ErrNotSigner, from.Key)
	}
	if !from.IsWritable || !to.IsWritable {
		return ErrNotWritable
	}
	if from.Owner != address.SystemProgramID {
		return fmt.Errorf("%w: %s", ErrNotOwner, from.Key)
	}
	if from.Lamports < amount {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, amount, from.Lamports)
	}
	if from == to {
		return nil
	}
	sum, carry := bits.Add64(to.Lamports, amount, 0)
	if carry != 0 {
		return ErrBalanceOverflow
	}
	from.Lamports -= amount
	to.Lamports = sum
	return nil
}

// Transfer builds a system-program instruction moving lamports from one
// signer to another account.
func Transfer(from, to address.Address, lamports uint64) Instruction {
	data := make([]byte, 9)
	data[0] = systemTransfer
	binary.LittleEndian.PutUint64(data[1:], lamports)
	return Instruction{
		ProgramID: address.SystemProgramID,
		Accounts:  []AccountMeta{WritableSigner(from), Writable(to)},
		Data:      data,
	}
}

package ledger

import (
	"context"

	"github.com/google/uuid"

	"xdao.co/attest/address"
)

// Program is on-ledger code. Process must leave accounts untouched when it
// returns an error; the ledger discards the whole transaction either way.
type Program interface {
	ID() address.Address
	Process(ctx context.Context, inv *Invocation) error
}

// AccountInfo is a program's view of one account. Duplicate keys within an
// instruction share one AccountInfo.
type AccountInfo struct {
	Key        address.Address
	IsSigner   bool
	IsWritable bool
	Owner      address.Address
	Lamports   uint64
	Data       []byte
	Executable bool
}

// IsUnallocated reports whether the account was never allocated or has been
// closed. A pre-funded address with no owner program still counts.
func (a *AccountInfo) IsUnallocated() bool {
	return len(a.Data) == 0 && !a.Executable && a.Owner == address.SystemProgramID
}

// Invocation carries one instruction to a program.
type Invocation struct {
	ProgramID address.Address
	Accounts  []*AccountInfo
	Data      []byte
	Env       Env
}

// Env is the host surface available during an instruction.
type Env interface {
	// Now returns the ledger clock in Unix seconds.
	Now() int64
	// TxID identifies the running transaction.
	TxID() uuid.UUID
	// CreateAccount funds target with Rent(space) from payer, assigns it to
	// owner and allocates space zeroed bytes. target must be the address the
	// calling program derives from seeds.
	CreateAccount(payer, target *AccountInfo, space int, owner address.Address, seeds [][]byte) error
	// Resize changes the data length of an account owned by the calling
	// program, moving the rent difference between payer and account.
	Resize(payer, account *AccountInfo, space int) error
	// EmitEvent appends record to the transaction's event log. authority must
	// be the calling program's event authority.
	EmitEvent(authority *AccountInfo, record []byte) error
}

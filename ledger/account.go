package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"xdao.co/attest/address"
)

const (
	// MaxAccountSize bounds the data of one account.
	MaxAccountSize = 10 << 20

	// accountOverhead is charged on top of the data length when computing rent.
	accountOverhead = 128
	// lamportsPerByteYear and exemptionYears give the rent-exempt minimum.
	lamportsPerByteYear = 3480
	exemptionYears      = 2
)

// Rent returns the minimum balance an account holding space bytes must keep.
func Rent(space int) uint64 {
	return uint64(accountOverhead+space) * lamportsPerByteYear * exemptionYears
}

// Account is the stored state at one address.
type Account struct {
	Owner      address.Address
	Lamports   uint64
	Data       []byte
	Executable bool
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Data = bytes.Clone(a.Data)
	return &c
}

// MarshalBinary encodes owner, lamports, executable flag and data.
func (a *Account) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, address.Size+8+1+len(a.Data))
	buf = append(buf, a.Owner[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, a.Lamports)
	if a.Executable {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return append(buf, a.Data...), nil
}

// UnmarshalAccount decodes the MarshalBinary form.
func UnmarshalAccount(b []byte) (*Account, error) {
	const header = address.Size + 8 + 1
	if len(b) < header {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedAccount, len(b))
	}
	a := &Account{Lamports: binary.LittleEndian.Uint64(b[address.Size:])}
	copy(a.Owner[:], b[:address.Size])
	switch b[address.Size+8] {
	case 0:
	case 1:
		a.Executable = true
	default:
		return nil, fmt.Errorf("%w: executable flag %d", ErrMalformedAccount, b[address.Size+8])
	}
	if len(b) > header {
		a.Data = bytes.Clone(b[header:])
	}
	return a, nil
}

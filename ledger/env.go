package ledger

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/google/uuid"

	"xdao.co/attest/address"
)

type snapshot struct {
	owner      address.Address
	lamports   uint64
	data       []byte
	executable bool
	writable   bool
}

func snap(a *AccountInfo) snapshot {
	return snapshot{
		owner:      a.Owner,
		lamports:   a.Lamports,
		data:       bytes.Clone(a.Data),
		executable: a.Executable,
		writable:   a.IsWritable,
	}
}

func (s snapshot) equal(a *AccountInfo) bool {
	return s.owner == a.Owner && s.lamports == a.Lamports && s.executable == a.Executable && bytes.Equal(s.data, a.Data)
}

// env is the Env of one instruction. Privileged operations re-snapshot the
// accounts they touch so the post-instruction audit only judges the program's
// own writes.
type env struct {
	program address.Address
	now     int64
	txID    uuid.UUID
	before  map[*AccountInfo]snapshot
	events  *[][]byte
}

var _ Env = (*env)(nil)

func (e *env) Now() int64      { return e.now }
func (e *env) TxID() uuid.UUID { return e.txID }

func (e *env) refresh(accts ...*AccountInfo) {
	for _, a := range accts {
		if _, ok := e.before[a]; ok {
			e.before[a] = snap(a)
		}
	}
}

func (e *env) CreateAccount(payer, target *AccountInfo, space int, owner address.Address, seeds [][]byte) error {
	if space < 0 || space > MaxAccountSize {
		return fmt.Errorf("%w: %d bytes", ErrAccountTooLarge, space)
	}
	if !payer.IsSigner {
		return fmt.Errorf("%w: payer %s", ErrNotSigner, payer.Key)
	}
	if !payer.IsWritable || !target.IsWritable {
		return ErrNotWritable
	}
	derived, err := address.Create(e.program, seeds...)
	if err != nil {
		return err
	}
	if derived != target.Key {
		return fmt.Errorf("%w: %s", ErrSeedMismatch, target.Key)
	}
	if !target.IsUnallocated() {
		return fmt.Errorf("%w: %s", ErrAccountInUse, target.Key)
	}

	// A pre-funded target keeps its balance; the payer covers the shortfall.
	var need uint64
	if rent := Rent(space); target.Lamports < rent {
		need = rent - target.Lamports
	}
	if payer.Lamports < need {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, need, payer.Lamports)
	}
	sum, carry := bits.Add64(target.Lamports, need, 0)
	if carry != 0 {
		return ErrBalanceOverflow
	}
	payer.Lamports -= need
	target.Lamports = sum
	target.Owner = owner
	target.Data = make([]byte, space)
	e.refresh(payer, target)
	return nil
}

func (e *env) Resize(payer, account *AccountInfo, space int) error {
	if space < 0 || space > MaxAccountSize {
		return fmt.Errorf("%w: %d bytes", ErrAccountTooLarge, space)
	}
	if account.Owner != e.program {
		return fmt.Errorf("%w: %s", ErrNotOwner, account.Key)
	}
	if !payer.IsWritable || !account.IsWritable {
		return ErrNotWritable
	}

	rent := Rent(space)
	switch {
	case account.Lamports < rent:
		if !payer.IsSigner {
			return fmt.Errorf("%w: payer %s", ErrNotSigner, payer.Key)
		}
		need := rent - account.Lamports
		if payer.Lamports < need {
			return fmt.Errorf("%w: need %d, have %d", ErrInsufficientFunds, need, payer.Lamports)
		}
		payer.Lamports -= need
		account.Lamports += need
	case account.Lamports > rent:
		refund := account.Lamports - rent
		sum, carry := bits.Add64(payer.Lamports, refund, 0)
		if carry != 0 {
			return ErrBalanceOverflow
		}
		payer.Lamports = sum
		account.Lamports = rent
	}

	data := make([]byte, space)
	copy(data, account.Data)
	account.Data = data
	e.refresh(payer, account)
	return nil
}

func (e *env) EmitEvent(authority *AccountInfo, record []byte) error {
	want, err := address.Derive(e.program, address.KindEventAuthority)
	if err != nil {
		return err
	}
	if authority == nil || authority.Key != want {
		return ErrEventAuthority
	}
	*e.events = append(*e.events, bytes.Clone(record))
	return nil
}

// audit checks the program's writes against the pre-instruction snapshots.
func (e *env) audit() error {
	var beforeHi, beforeLo, afterHi, afterLo uint64
	var carry uint64
	for a, s := range e.before {
		beforeLo, carry = bits.Add64(beforeLo, s.lamports, 0)
		beforeHi += carry
		afterLo, carry = bits.Add64(afterLo, a.Lamports, 0)
		afterHi += carry

		if s.equal(a) {
			continue
		}
		if s.executable {
			return fmt.Errorf("%w: %s", ErrExecutableModified, a.Key)
		}
		if !s.writable {
			return fmt.Errorf("%w: %s", ErrReadonlyModified, a.Key)
		}
		if a.Executable {
			return fmt.Errorf("%w: %s", ErrExecutableModified, a.Key)
		}
		if s.owner != e.program {
			if s.owner != a.Owner || !bytes.Equal(s.data, a.Data) {
				return fmt.Errorf("%w: %s", ErrExternalModified, a.Key)
			}
			if a.Lamports < s.lamports {
				return fmt.Errorf("%w: %s", ErrExternalDebit, a.Key)
			}
		}
	}
	if beforeHi != afterHi || beforeLo != afterLo {
		return ErrUnbalanced
	}
	return nil
}

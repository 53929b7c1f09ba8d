// Package address defines registry identities and their deterministic derivation.
//
// An Address is 32 opaque bytes. Signer identities are public keys (or a hash
// of one, for key types wider than 32 bytes); entity accounts are derived from
// a program address and an ordered list of seeds. Derivation is the only index
// the registry has: an account is "the credential named X of authority A"
// because its address re-derives from exactly those inputs.
package address

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
)

// Size is the byte length of every Address.
const Size = 32

// Address is a 32-byte account identity.
type Address [Size]byte

// Zero is the all-zero address. It doubles as the system program address and as
// the "not tokenized" token-binding value.
var Zero Address

var ErrInvalidAddress = errors.New("address: invalid address")

// FromBytes copies b into an Address. b must be exactly Size bytes.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidAddress, Size, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Parse decodes the base58 text form of an address.
func Parse(s string) (Address, error) {
	if s == "" {
		return Zero, fmt.Errorf("%w: empty string", ErrInvalidAddress)
	}
	b := base58.Decode(s)
	if len(b) == 0 {
		return Zero, fmt.Errorf("%w: not base58: %q", ErrInvalidAddress, s)
	}
	return FromBytes(b)
}

// MustParse is like Parse but panics on error. Use it for compile-time constants only.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string { return base58.Encode(a[:]) }

func (a Address) Bytes() []byte { return a[:] }

func (a Address) IsZero() bool { return a == Zero }

func (a Address) Equal(b Address) bool { return a == b }

// Compare orders addresses bytewise.
func (a Address) Compare(b Address) int { return bytes.Compare(a[:], b[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

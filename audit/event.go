// Package audit defines the registry's audit records and the append-only log
// that stores them.
//
// Every record is content addressed (CIDv1, raw, sha2-256), so an indexer
// that holds a record's CID can fetch it from any CAS replica and verify it.
package audit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"xdao.co/attest/address"
)

// Discriminator is the first byte of every event record.
const Discriminator = 0xE4

// Kind is the operation an event reports.
type Kind uint8

const (
	KindClose  Kind = 0
	KindCreate Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindClose:
		return "close"
	case KindCreate:
		return "create"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	ErrDiscriminator = errors.New("audit: not an event record")
	ErrUnknownKind   = errors.New("audit: unknown event kind")
	ErrTruncated     = errors.New("audit: truncated event record")
	ErrTrailingData  = errors.New("audit: trailing bytes after event record")
)

// Event is an audit record. For closures Payload holds the attestation data
// as it was before the account was destroyed.
type Event struct {
	Kind        Kind
	Program     address.Address
	Credential  address.Address
	Schema      address.Address
	Attestation address.Address
	Signer      address.Address
	Payload     []byte
}

const eventFixedSize = 1 + 1 + 5*address.Size + 4

func (e *Event) MarshalBinary() ([]byte, error) {
	if e.Kind > KindCreate {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, e.Kind)
	}
	if uint64(len(e.Payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("audit: payload too large (%d bytes)", len(e.Payload))
	}
	buf := make([]byte, 0, eventFixedSize+len(e.Payload))
	buf = append(buf, Discriminator, byte(e.Kind))
	for _, a := range []address.Address{e.Program, e.Credential, e.Schema, e.Attestation, e.Signer} {
		buf = append(buf, a[:]...)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Payload)))
	return append(buf, e.Payload...), nil
}

// Unmarshal decodes an event record, rejecting unknown kinds and any bytes
// past the payload.
func Unmarshal(b []byte) (*Event, error) {
	if len(b) == 0 || b[0] != Discriminator {
		return nil, ErrDiscriminator
	}
	if len(b) < eventFixedSize {
		return nil, ErrTruncated
	}
	e := &Event{Kind: Kind(b[1])}
	if e.Kind > KindCreate {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, b[1])
	}
	off := 2
	for _, a := range []*address.Address{&e.Program, &e.Credential, &e.Schema, &e.Attestation, &e.Signer} {
		copy(a[:], b[off:off+address.Size])
		off += address.Size
	}
	n := uint64(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	rest := uint64(len(b) - off)
	switch {
	case n > rest:
		return nil, ErrTruncated
	case n < rest:
		return nil, ErrTrailingData
	}
	e.Payload = append([]byte(nil), b[off:]...)
	return e, nil
}

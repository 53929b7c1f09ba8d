// Package state defines the stored form of registry entities.
//
// Every entity account starts with a one-byte discriminator followed by its
// fields in declaration order: addresses as 32 raw bytes, integers
// little-endian, strings and byte slices with a u32 length prefix. Sizes are
// computed by the entity before allocation; the host never guesses them.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"xdao.co/attest/address"
)

// Discriminator identifies the entity kind stored in an account.
type Discriminator uint8

const (
	DiscriminatorCredential Discriminator = iota
	DiscriminatorSchema
	DiscriminatorAttestation
)

func (d Discriminator) String() string {
	switch d {
	case DiscriminatorCredential:
		return "credential"
	case DiscriminatorSchema:
		return "schema"
	case DiscriminatorAttestation:
		return "attestation"
	default:
		return fmt.Sprintf("discriminator(%d)", uint8(d))
	}
}

var (
	ErrDiscriminator = errors.New("state: wrong discriminator")
	ErrTruncated     = errors.New("state: data truncated")
	ErrTrailingData  = errors.New("state: trailing data")
	ErrInvalid       = errors.New("state: invalid entity")
)

const (
	prefixSize = 4
	i64Size    = 8
)

type decoder struct {
	data []byte
	off  int
	err  error
}

func newDecoder(data []byte, want Discriminator) *decoder {
	d := &decoder{data: data}
	got := d.u8()
	if d.err == nil && Discriminator(got) != want {
		d.err = fmt.Errorf("%w: want %s, got %s", ErrDiscriminator, want, Discriminator(got))
	}
	return d
}

func (d *decoder) take(n uint64) []byte {
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.data)-d.off) {
		d.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, d.off, len(d.data)-d.off)
		return nil
	}
	b := d.data[d.off : d.off+int(n)]
	d.off += int(n)
	return b
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u32() uint32 {
	b := d.take(prefixSize)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) i64() int64 {
	b := d.take(i64Size)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (d *decoder) flag() bool {
	v := d.u8()
	if d.err == nil && v > 1 {
		d.err = fmt.Errorf("%w: bool byte %d", ErrInvalid, v)
	}
	return v == 1
}

func (d *decoder) address() address.Address {
	var a address.Address
	copy(a[:], d.take(address.Size))
	return a
}

func (d *decoder) bytes() []byte {
	n := d.u32()
	return append([]byte(nil), d.take(uint64(n))...)
}

func (d *decoder) text() string { return string(d.bytes()) }

func (d *decoder) addresses() []address.Address {
	n := d.u32()
	if d.err != nil {
		return nil
	}
	if uint64(n)*address.Size > uint64(len(d.data)-d.off) {
		d.err = fmt.Errorf("%w: %d addresses at offset %d", ErrTruncated, n, d.off)
		return nil
	}
	out := make([]address.Address, n)
	for i := range out {
		out[i] = d.address()
	}
	return out
}

func (d *decoder) texts() []string {
	n := d.u32()
	if d.err != nil {
		return nil
	}
	// each string needs at least its prefix
	if uint64(n)*prefixSize > uint64(len(d.data)-d.off) {
		d.err = fmt.Errorf("%w: %d strings at offset %d", ErrTruncated, n, d.off)
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = d.text()
	}
	return out
}

// finish reports the first decode error, or trailing bytes.
func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.data) {
		return fmt.Errorf("%w: %d bytes after offset %d", ErrTrailingData, len(d.data)-d.off, d.off)
	}
	return nil
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

package program

import (
	"encoding/binary"
	"errors"
	"fmt"

	"xdao.co/attest/address"
	"xdao.co/attest/layout"
)

// Op is the first byte of every instruction.
type Op uint8

const (
	OpCreateCredential Op = iota
	OpCreateSchema
	OpChangeSchemaStatus
	OpChangeAuthorizedSigners
	OpChangeSchemaDescription
	OpChangeSchemaVersion
	OpCreateAttestation
	OpCloseAttestation
	OpCreateTokenizedAttestation
	numOps
)

var opNames = [...]string{
	"create_credential",
	"create_schema",
	"change_schema_status",
	"change_authorized_signers",
	"change_schema_description",
	"change_schema_version",
	"create_attestation",
	"close_attestation",
	"create_tokenized_attestation",
}

func (o Op) String() string {
	if o < numOps {
		return opNames[o]
	}
	return "unknown"
}

var (
	errArgsTruncated = errors.New("argument buffer truncated")
	errArgsTrailing  = errors.New("trailing bytes after arguments")
)

type CreateCredentialArgs struct {
	Name    string
	Signers []address.Address
}

type CreateSchemaArgs struct {
	Name        string
	Description string
	FieldNames  []string
	Layout      layout.Layout
}

type ChangeSchemaStatusArgs struct {
	Paused bool
}

type ChangeAuthorizedSignersArgs struct {
	Signers []address.Address
}

type ChangeSchemaDescriptionArgs struct {
	Description string
}

type ChangeSchemaVersionArgs struct {
	FieldNames []string
	Layout     layout.Layout
}

// CreateAttestationArgs is shared by the plain and tokenized create
// operations. Expiry is Unix seconds; zero means no expiry.
type CreateAttestationArgs struct {
	Nonce  address.Address
	Data   []byte
	Expiry int64
}

func (a CreateCredentialArgs) encode() []byte {
	buf := []byte{byte(OpCreateCredential)}
	buf = appendString(buf, a.Name)
	return appendAddresses(buf, a.Signers)
}

func (a CreateSchemaArgs) encode() []byte {
	buf := []byte{byte(OpCreateSchema)}
	buf = appendString(buf, a.Name)
	buf = appendString(buf, a.Description)
	buf = appendStrings(buf, a.FieldNames)
	return appendBytes(buf, a.Layout.Bytes())
}

func (a ChangeSchemaStatusArgs) encode() []byte {
	if a.Paused {
		return []byte{byte(OpChangeSchemaStatus), 1}
	}
	return []byte{byte(OpChangeSchemaStatus), 0}
}

func (a ChangeAuthorizedSignersArgs) encode() []byte {
	return appendAddresses([]byte{byte(OpChangeAuthorizedSigners)}, a.Signers)
}

func (a ChangeSchemaDescriptionArgs) encode() []byte {
	return appendString([]byte{byte(OpChangeSchemaDescription)}, a.Description)
}

func (a ChangeSchemaVersionArgs) encode() []byte {
	buf := appendStrings([]byte{byte(OpChangeSchemaVersion)}, a.FieldNames)
	return appendBytes(buf, a.Layout.Bytes())
}

func (a CreateAttestationArgs) encode(op Op) []byte {
	buf := []byte{byte(op)}
	buf = append(buf, a.Nonce[:]...)
	buf = appendBytes(buf, a.Data)
	return binary.LittleEndian.AppendUint64(buf, uint64(a.Expiry))
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

func appendString(buf []byte, s string) []byte { return appendBytes(buf, []byte(s)) }

func appendStrings(buf []byte, ss []string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ss)))
	for _, s := range ss {
		buf = appendString(buf, s)
	}
	return buf
}

func appendAddresses(buf []byte, as []address.Address) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(as)))
	for _, a := range as {
		buf = append(buf, a[:]...)
	}
	return buf
}

// argReader bounds-checks every read against the buffer. The first failure
// sticks and later reads return zero values.
type argReader struct {
	b   []byte
	err error
}

func (r *argReader) take(n uint64) []byte {
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.b)) {
		r.err = errArgsTruncated
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *argReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *argReader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *argReader) i64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (r *argReader) address() address.Address {
	var a address.Address
	copy(a[:], r.take(address.Size))
	return a
}

func (r *argReader) bytes() []byte {
	n := r.u32()
	return append([]byte(nil), r.take(uint64(n))...)
}

func (r *argReader) text() string { return string(r.take(uint64(r.u32()))) }

func (r *argReader) texts() []string {
	n := r.u32()
	// Each entry needs at least its length prefix.
	if r.err == nil && uint64(n)*4 > uint64(len(r.b)) {
		r.err = errArgsTruncated
	}
	if r.err != nil {
		return nil
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		out = append(out, r.text())
	}
	return out
}

func (r *argReader) addresses() []address.Address {
	n := r.u32()
	if r.err == nil && uint64(n)*address.Size > uint64(len(r.b)) {
		r.err = errArgsTruncated
	}
	if r.err != nil {
		return nil
	}
	out := make([]address.Address, n)
	for i := range out {
		out[i] = r.address()
	}
	return out
}

func (r *argReader) layout() layout.Layout {
	codes := r.take(uint64(r.u32()))
	if codes == nil {
		return nil
	}
	l := make(layout.Layout, len(codes))
	for i, c := range codes {
		l[i] = layout.Type(c)
	}
	return l
}

func (r *argReader) finish() error {
	if r.err != nil {
		return r.err
	}
	if len(r.b) != 0 {
		return fmt.Errorf("%w: %d bytes", errArgsTrailing, len(r.b))
	}
	return nil
}

func malformedArgs(err error) error {
	return wrapError(KindMalformed, "ATTEST-ARGS-002", "malformed instruction arguments", err)
}

func decodeCreateCredential(b []byte) (CreateCredentialArgs, error) {
	r := &argReader{b: b}
	a := CreateCredentialArgs{Name: r.text(), Signers: r.addresses()}
	if err := r.finish(); err != nil {
		return a, malformedArgs(err)
	}
	return a, nil
}

func decodeCreateSchema(b []byte) (CreateSchemaArgs, error) {
	r := &argReader{b: b}
	a := CreateSchemaArgs{Name: r.text(), Description: r.text(), FieldNames: r.texts(), Layout: r.layout()}
	if err := r.finish(); err != nil {
		return a, malformedArgs(err)
	}
	return a, nil
}

func decodeChangeSchemaStatus(b []byte) (ChangeSchemaStatusArgs, error) {
	r := &argReader{b: b}
	v := r.u8()
	if err := r.finish(); err != nil {
		return ChangeSchemaStatusArgs{}, malformedArgs(err)
	}
	if v > 1 {
		return ChangeSchemaStatusArgs{}, malformedArgs(fmt.Errorf("paused flag %d", v))
	}
	return ChangeSchemaStatusArgs{Paused: v == 1}, nil
}

func decodeChangeAuthorizedSigners(b []byte) (ChangeAuthorizedSignersArgs, error) {
	r := &argReader{b: b}
	a := ChangeAuthorizedSignersArgs{Signers: r.addresses()}
	if err := r.finish(); err != nil {
		return a, malformedArgs(err)
	}
	return a, nil
}

func decodeChangeSchemaDescription(b []byte) (ChangeSchemaDescriptionArgs, error) {
	r := &argReader{b: b}
	a := ChangeSchemaDescriptionArgs{Description: r.text()}
	if err := r.finish(); err != nil {
		return a, malformedArgs(err)
	}
	return a, nil
}

func decodeChangeSchemaVersion(b []byte) (ChangeSchemaVersionArgs, error) {
	r := &argReader{b: b}
	a := ChangeSchemaVersionArgs{FieldNames: r.texts(), Layout: r.layout()}
	if err := r.finish(); err != nil {
		return a, malformedArgs(err)
	}
	return a, nil
}

func decodeCreateAttestation(b []byte) (CreateAttestationArgs, error) {
	r := &argReader{b: b}
	a := CreateAttestationArgs{Nonce: r.address(), Data: r.bytes(), Expiry: r.i64()}
	if err := r.finish(); err != nil {
		return a, malformedArgs(err)
	}
	return a, nil
}

func decodeNoArgs(b []byte) error {
	if len(b) != 0 {
		return malformedArgs(fmt.Errorf("%w: %d bytes", errArgsTrailing, len(b)))
	}
	return nil
}

package state

import (
	"encoding/binary"

	"xdao.co/attest/address"
)

// attestationFixedSize covers every attestation field except the data bytes.
const attestationFixedSize = 1 + 3*address.Size + prefixSize + address.Size + i64Size + address.Size

// Attestation is one signed claim under a (credential, schema, nonce) triple.
type Attestation struct {
	Nonce        address.Address
	Credential   address.Address
	Schema       address.Address
	Data         []byte
	Signer       address.Address
	Expiry       int64
	TokenAccount address.Address
}

// AttestationSize is the stored size of an attestation carrying dataLen bytes.
func AttestationSize(dataLen int) int { return attestationFixedSize + dataLen }

func (a *Attestation) Size() int { return AttestationSize(len(a.Data)) }

// IsTokenized reports whether the attestation is bound to a token account.
func (a *Attestation) IsTokenized() bool { return !a.TokenAccount.IsZero() }

// Expired reports whether expiry lies before now. Zero never expires, and an
// expiry equal to now is still valid.
func Expired(expiry, now int64) bool { return expiry != 0 && expiry < now }

func (a *Attestation) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, a.Size())
	buf = append(buf, byte(DiscriminatorAttestation))
	buf = append(buf, a.Nonce[:]...)
	buf = append(buf, a.Credential[:]...)
	buf = append(buf, a.Schema[:]...)
	buf = appendBytes(buf, a.Data)
	buf = append(buf, a.Signer[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(a.Expiry))
	buf = append(buf, a.TokenAccount[:]...)
	return buf, nil
}

// UnmarshalAttestation decodes attestation account data.
func UnmarshalAttestation(data []byte) (*Attestation, error) {
	d := newDecoder(data, DiscriminatorAttestation)
	a := &Attestation{
		Nonce:      d.address(),
		Credential: d.address(),
		Schema:     d.address(),
		Data:       d.bytes(),
	}
	a.Signer = d.address()
	a.Expiry = d.i64()
	a.TokenAccount = d.address()
	if err := d.finish(); err != nil {
		return nil, err
	}
	return a, nil
}

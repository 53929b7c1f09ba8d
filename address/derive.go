package address

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

const (
	// MaxSeedLen bounds each derivation seed. Names used as seeds inherit this bound.
	MaxSeedLen = 32
	// MaxSeeds bounds the number of seeds in one derivation, kind tag included.
	MaxSeeds = 16

	derivationDomain = "xdao-attest-derived-address-v1"
)

// Kind tags. Each entity kind derives in its own domain so that no credential
// address can ever equal a schema or attestation address.
const (
	KindCredential     = "credential"
	KindSchema         = "schema"
	KindAttestation    = "attestation"
	KindEventAuthority = "__event_authority"
)

var (
	ErrMaxSeedLength = errors.New("address: seed exceeds maximum length")
	ErrTooManySeeds  = errors.New("address: too many seeds")
)

// ProgramID is the address of the attestation registry program.
var ProgramID = MustParse("22zoJMtdu4tQc2PzL74ZUT7FrwgB1Udec8DdW4yw4BdG")

// SystemProgramID is the host ledger's storage allocator.
var SystemProgramID = Zero

// Create derives the canonical address for seeds under program.
//
// The digest covers a fixed domain string, the seed count, every seed
// length-prefixed, and the program address, so distinct seed tuples never
// share an encoding ("ab","c" and "a","bc" differ).
func Create(program Address, seeds ...[]byte) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Zero, fmt.Errorf("%w: %d > %d", ErrTooManySeeds, len(seeds), MaxSeeds)
	}
	h := sha256.New()
	_, _ = h.Write([]byte(derivationDomain))
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(seeds)))
	_, _ = h.Write(n[:])
	for i, s := range seeds {
		if len(s) > MaxSeedLen {
			return Zero, fmt.Errorf("%w: seed %d is %d bytes", ErrMaxSeedLength, i, len(s))
		}
		binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
		_, _ = h.Write(n[:])
		_, _ = h.Write(s)
	}
	_, _ = h.Write(program[:])
	var out Address
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Derive is Create with a kind tag as the first seed.
func Derive(program Address, kind string, parts ...[]byte) (Address, error) {
	seeds := make([][]byte, 0, len(parts)+1)
	seeds = append(seeds, []byte(kind))
	seeds = append(seeds, parts...)
	return Create(program, seeds...)
}

// CredentialSeeds returns the seed tuple of a credential account.
func CredentialSeeds(authority Address, name string) [][]byte {
	return [][]byte{[]byte(KindCredential), authority.Bytes(), []byte(name)}
}

// SchemaSeeds returns the seed tuple of a schema account.
func SchemaSeeds(credential Address, name string, version uint8) [][]byte {
	return [][]byte{[]byte(KindSchema), credential.Bytes(), []byte(name), {version}}
}

// AttestationSeeds returns the seed tuple of an attestation account.
func AttestationSeeds(credential, schema, nonce Address) [][]byte {
	return [][]byte{[]byte(KindAttestation), credential.Bytes(), schema.Bytes(), nonce.Bytes()}
}

func CredentialAddress(program, authority Address, name string) (Address, error) {
	return Create(program, CredentialSeeds(authority, name)...)
}

func SchemaAddress(program, credential Address, name string, version uint8) (Address, error) {
	return Create(program, SchemaSeeds(credential, name, version)...)
}

func AttestationAddress(program, credential, schema, nonce Address) (Address, error) {
	return Create(program, AttestationSeeds(credential, schema, nonce)...)
}

var eventAuthority = sync.OnceValue(func() Address {
	a, err := Derive(ProgramID, KindEventAuthority)
	if err != nil {
		panic(err)
	}
	return a
})

// EventAuthority returns the single identity allowed to emit audit events for ProgramID.
func EventAuthority() Address { return eventAuthority() }

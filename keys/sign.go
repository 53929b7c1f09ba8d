package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"xdao.co/attest/address"
)

// Algorithm names a signature scheme.
type Algorithm string

const (
	Ed25519    Algorithm = "ed25519"
	Dilithium3 Algorithm = "dilithium3"
)

var (
	ErrUnsupportedAlg  = errors.New("keys: unsupported signature algorithm")
	ErrInvalidKey      = errors.New("keys: invalid public key")
	ErrInvalidSig      = errors.New("keys: signature invalid")
	ErrSignerMismatch  = errors.New("keys: public key does not match signer address")
	ErrMissingPrivate  = errors.New("keys: missing private key")
	dilithiumAddrLabel = []byte("xdao-attest-dilithium3-address-v1")
)

// Signer produces signatures for one identity.
type Signer interface {
	Address() address.Address
	Algorithm() Algorithm
	PublicKey() []byte
	Sign(message []byte) ([]byte, error)
}

// Signature is a detached signature as carried in a transaction.
type Signature struct {
	Algorithm Algorithm
	PublicKey []byte
	Value     []byte
}

// Address returns the signer identity the signature claims.
func (s Signature) Address() (address.Address, error) {
	return AddressFor(s.Algorithm, s.PublicKey)
}

// Verify checks the signature over message.
func (s Signature) Verify(message []byte) error {
	switch s.Algorithm {
	case Ed25519:
		if len(s.PublicKey) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: ed25519 key is %d bytes", ErrInvalidKey, len(s.PublicKey))
		}
		digest := sha256.Sum256(message)
		if !ed25519.Verify(ed25519.PublicKey(s.PublicKey), digest[:], s.Value) {
			return ErrInvalidSig
		}
		return nil
	case Dilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(s.PublicKey); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidKey, err)
		}
		digest := sha3.Sum256(message)
		if len(s.Value) != mode3.SignatureSize || !mode3.Verify(&pk, digest[:], s.Value) {
			return ErrInvalidSig
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAlg, s.Algorithm)
	}
}

// AddressFor maps a public key to its signer address.
func AddressFor(alg Algorithm, pub []byte) (address.Address, error) {
	switch alg {
	case Ed25519:
		if len(pub) != ed25519.PublicKeySize {
			return address.Zero, fmt.Errorf("%w: ed25519 key is %d bytes", ErrInvalidKey, len(pub))
		}
		return address.FromBytes(pub)
	case Dilithium3:
		if len(pub) != mode3.PublicKeySize {
			return address.Zero, fmt.Errorf("%w: dilithium3 key is %d bytes", ErrInvalidKey, len(pub))
		}
		h := sha3.New256()
		_, _ = h.Write(dilithiumAddrLabel)
		_, _ = h.Write(pub)
		return address.FromBytes(h.Sum(nil))
	default:
		return address.Zero, fmt.Errorf("%w: %q", ErrUnsupportedAlg, alg)
	}
}

// SignEd25519SHA256 returns an ed25519 signature over sha256(message).
func SignEd25519SHA256(message []byte, privateKey ed25519.PrivateKey) []byte {
	digest := sha256.Sum256(message)
	return ed25519.Sign(privateKey, digest[:])
}

// SignDilithium3 returns a dilithium3 signature over sha3-256(message).
func SignDilithium3(message []byte, privateKey *mode3.PrivateKey) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrMissingPrivate
	}
	digest := sha3.Sum256(message)
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(privateKey, digest[:], sig)
	return sig, nil
}

// SignWith produces the transaction signature of signer over message.
func SignWith(signer Signer, message []byte) (Signature, error) {
	v, err := signer.Sign(message)
	if err != nil {
		return Signature{}, err
	}
	return Signature{Algorithm: signer.Algorithm(), PublicKey: signer.PublicKey(), Value: v}, nil
}

// Ed25519Signer signs with an ed25519 private key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	addr address.Address
}

// NewEd25519Signer wraps an ed25519 private key.
func NewEd25519Signer(priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed25519 private key is %d bytes", ErrInvalidKey, len(priv))
	}
	addr, err := address.FromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv, addr: addr}, nil
}

// Ed25519FromSeed builds a signer from a 32-byte seed.
func Ed25519FromSeed(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	return NewEd25519Signer(ed25519.NewKeyFromSeed(seed))
}

// GenerateEd25519 returns a signer with a fresh key from rand.
func GenerateEd25519(rand io.Reader) (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return NewEd25519Signer(priv)
}

func (s *Ed25519Signer) Address() address.Address { return s.addr }
func (s *Ed25519Signer) Algorithm() Algorithm     { return Ed25519 }
func (s *Ed25519Signer) PublicKey() []byte        { return s.addr.Bytes() }

func (s *Ed25519Signer) Sign(message []byte) ([]byte, error) {
	return SignEd25519SHA256(message, s.priv), nil
}

// Dilithium3Signer signs with a dilithium3 private key.
type Dilithium3Signer struct {
	pub  *mode3.PublicKey
	priv *mode3.PrivateKey
	raw  []byte
	addr address.Address
}

// GenerateDilithium3 returns a signer with a fresh dilithium3 keypair.
func GenerateDilithium3(rand io.Reader) (*Dilithium3Signer, error) {
	pub, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	raw, err := pub.MarshalBinary()
	if err != nil {
		return nil, err
	}
	addr, err := AddressFor(Dilithium3, raw)
	if err != nil {
		return nil, err
	}
	return &Dilithium3Signer{pub: pub, priv: priv, raw: raw, addr: addr}, nil
}

func (s *Dilithium3Signer) Address() address.Address { return s.addr }
func (s *Dilithium3Signer) Algorithm() Algorithm     { return Dilithium3 }
func (s *Dilithium3Signer) PublicKey() []byte        { return append([]byte(nil), s.raw...) }

func (s *Dilithium3Signer) Sign(message []byte) ([]byte, error) {
	return SignDilithium3(message, s.priv)
}

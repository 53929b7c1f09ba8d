package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deterministicReader struct{ b byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func TestSignEd25519SHA256_Verifies(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	msg := []byte("hello")
	sig := SignEd25519SHA256(msg, priv)

	digest := sha256.Sum256(msg)
	assert.True(t, ed25519.Verify(pub, digest[:], sig), "signature did not verify")
}

func TestSignatureVerify_Ed25519(t *testing.T) {
	s, err := GenerateEd25519(&deterministicReader{})
	require.NoError(t, err)

	msg := []byte("transaction message")
	sig, err := SignWith(s, msg)
	require.NoError(t, err)
	require.NoError(t, sig.Verify(msg))

	addr, err := sig.Address()
	require.NoError(t, err)
	assert.Equal(t, s.Address(), addr)

	assert.ErrorIs(t, sig.Verify([]byte("other message")), ErrInvalidSig)
}

func TestSignatureVerify_Dilithium3(t *testing.T) {
	s, err := GenerateDilithium3(&deterministicReader{})
	require.NoError(t, err)

	msg := []byte("transaction message")
	sig, err := SignWith(s, msg)
	require.NoError(t, err)
	require.Len(t, sig.Value, mode3.SignatureSize)
	require.NoError(t, sig.Verify(msg))

	addr, err := sig.Address()
	require.NoError(t, err)
	assert.Equal(t, s.Address(), addr)

	sig.Value[0] ^= 0xff
	assert.ErrorIs(t, sig.Verify(msg), ErrInvalidSig)
}

func TestSignatureUnsupportedAlgorithm(t *testing.T) {
	sig := Signature{Algorithm: "rsa", PublicKey: []byte{1}, Value: []byte{2}}
	assert.ErrorIs(t, sig.Verify(nil), ErrUnsupportedAlg)
	_, err := sig.Address()
	assert.ErrorIs(t, err, ErrUnsupportedAlg)
}

func TestAddressForRejectsWrongKeySize(t *testing.T) {
	_, err := AddressFor(Ed25519, make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = AddressFor(Dilithium3, make([]byte, 32))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

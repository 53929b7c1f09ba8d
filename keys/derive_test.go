package keys

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveRoleSeedDeterministic(t *testing.T) {
	root := make([]byte, ed25519.SeedSize)
	for i := range root {
		root[i] = byte(i)
	}

	a, err := DeriveRoleSeed(root, "issuer")
	require.NoError(t, err)
	b, err := DeriveRoleSeed(root, "issuer")
	require.NoError(t, err)
	assert.Equal(t, a, b, "expected deterministic derivation")

	c, err := DeriveRoleSeed(root, "closer")
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "expected different roles to derive different seeds")
}

func TestDeriveRoleSeedRejectsBadInput(t *testing.T) {
	_, err := DeriveRoleSeed([]byte{1, 2, 3}, "issuer")
	assert.Error(t, err)

	_, err = DeriveRoleSeed(make([]byte, ed25519.SeedSize), "bad role")
	assert.Error(t, err)
}

func TestRoleSignerAddressIsPublicKey(t *testing.T) {
	seed, err := DeriveRoleSeed(make([]byte, ed25519.SeedSize), "issuer")
	require.NoError(t, err)
	s, err := Ed25519FromSeed(seed)
	require.NoError(t, err)

	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	assert.Equal(t, []byte(pub), s.Address().Bytes())
}

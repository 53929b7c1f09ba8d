package program

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/attest/address"
	"xdao.co/attest/layout"
)

func TestInstructionArgsDecode(t *testing.T) {
	a, b := nonce(1), nonce(2)

	cc := CreateCredentialArgs{Name: "ORG", Signers: []address.Address{a, b}}
	gotCC, err := decodeCreateCredential(cc.encode()[1:])
	require.NoError(t, err)
	assert.Equal(t, cc, gotCC)

	cs := CreateSchemaArgs{Name: "person", Description: "d", FieldNames: []string{"name", "age"}, Layout: personLayout}
	gotCS, err := decodeCreateSchema(cs.encode()[1:])
	require.NoError(t, err)
	assert.Equal(t, cs, gotCS)

	for _, paused := range []bool{true, false} {
		got, err := decodeChangeSchemaStatus(ChangeSchemaStatusArgs{Paused: paused}.encode()[1:])
		require.NoError(t, err)
		assert.Equal(t, paused, got.Paused)
	}

	cv := ChangeSchemaVersionArgs{FieldNames: []string{"x"}, Layout: layout.Layout{layout.Bytes32}}
	gotCV, err := decodeChangeSchemaVersion(cv.encode()[1:])
	require.NoError(t, err)
	assert.Equal(t, cv, gotCV)

	ca := CreateAttestationArgs{Nonce: a, Data: []byte{1, 2, 3}, Expiry: -5}
	enc := ca.encode(OpCreateTokenizedAttestation)
	assert.Equal(t, byte(OpCreateTokenizedAttestation), enc[0])
	gotCA, err := decodeCreateAttestation(enc[1:])
	require.NoError(t, err)
	assert.Equal(t, ca, gotCA)
}

func TestChangeSchemaStatusRejectsBadFlag(t *testing.T) {
	_, err := decodeChangeSchemaStatus([]byte{2})
	assert.Equal(t, "ATTEST-ARGS-002", RuleID(err))
}

func TestDecodeAddressesRejectsHugeCount(t *testing.T) {
	_, err := decodeChangeAuthorizedSigners([]byte{0xff, 0xff, 0xff, 0xff})
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMalformed))
	assert.ErrorIs(t, err, errArgsTruncated)
}

func TestDecodeNoArgs(t *testing.T) {
	assert.NoError(t, decodeNoArgs(nil))
	err := decodeNoArgs([]byte{0})
	assert.ErrorIs(t, err, errArgsTrailing)
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "create_attestation", OpCreateAttestation.String())
	assert.Equal(t, "create_tokenized_attestation", OpCreateTokenizedAttestation.String())
	assert.Equal(t, "unknown", Op(200).String())
}

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("boom")
	err := wrapError(KindInternal, "ATTEST-HOST-001", "allocate", cause)
	assert.Equal(t, "ATTEST-HOST-001: allocate: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(cause))
	assert.Equal(t, "", RuleID(cause))
}

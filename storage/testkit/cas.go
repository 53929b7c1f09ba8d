// Package testkit holds the conformance suite every storage.CAS backend must pass.
package testkit

import (
	"context"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/attest/cidutil"
	"xdao.co/attest/storage"
)

// NewCAS constructs a fresh, empty CAS instance for a test.
// The returned CAS MUST be isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := []byte("audit record bytes")

		id, err := cas.Put(ctx, want)
		require.NoError(t, err)
		wantID, err := cidutil.Sum(want)
		require.NoError(t, err)
		assert.True(t, id.Equals(wantID), "Put CID mismatch: got %s want %s", id, wantID)

		got, err := cas.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.True(t, cidutil.Matches(id, got), "Get returned bytes not matching requested CID")
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("same bytes")

		id1, err := cas.Put(ctx, b)
		require.NoError(t, err)
		id2, err := cas.Put(ctx, b)
		require.NoError(t, err)
		assert.True(t, id1.Equals(id2), "Put not idempotent: %s vs %s", id1, id2)
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("missing")
		id, err := cidutil.Sum(b)
		require.NoError(t, err)

		ok, err := cas.Has(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, "Has returned true for missing CID")

		_, err = cas.Get(ctx, id)
		assert.True(t, storage.IsNotFound(err), "Get missing: got err=%v want ErrNotFound", err)

		_, err = cas.Put(ctx, b)
		require.NoError(t, err)
		ok, err = cas.Has(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, "Has returned false after Put")
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		var undef cid.Cid
		ok, _ := cas.Has(ctx, undef)
		assert.False(t, ok, "Has should be false for undefined CID")
		_, err := cas.Get(ctx, undef)
		assert.Error(t, err, "Get should fail for undefined CID")
	})
}

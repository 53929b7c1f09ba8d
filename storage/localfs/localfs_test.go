package localfs

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/attest/cidutil"
	"xdao.co/attest/storage"
	"xdao.co/attest/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		cas, err := New(t.TempDir())
		require.NoError(t, err)
		return cas
	})
}

func TestLocalFS_RejectMutationByOverwrite(t *testing.T) {
	ctx := context.Background()
	cas, err := New(t.TempDir())
	require.NoError(t, err)

	orig := []byte("original")
	id, err := cas.Put(ctx, orig)
	require.NoError(t, err)

	// Corrupt the stored object out-of-band.
	path := cas.pathFor(id)
	require.NoError(t, os.Chmod(path, 0o644))
	require.NoError(t, os.WriteFile(path, []byte("corrupted"), 0o644))

	_, err = cas.Get(ctx, id)
	assert.ErrorIs(t, err, storage.ErrCIDMismatch)

	// Put must not "repair" or overwrite the corrupted object.
	_, err = cas.Put(ctx, orig)
	assert.ErrorIs(t, err, storage.ErrImmutable)

	assert.True(t, cidutil.Matches(id, orig))
}

func TestLocalFS_RequiresRoot(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestLocalFS_ReadOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	rw, err := New(dir)
	require.NoError(t, err)
	id, err := rw.Put(ctx, []byte("record"))
	require.NoError(t, err)

	ro, err := New(dir, ReadOnly())
	require.NoError(t, err)
	got, err := ro.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("record"), got)

	_, err = ro.Put(ctx, []byte("other"))
	assert.ErrorIs(t, err, storage.ErrReadOnly)

	_, err = New(dir+"/missing", ReadOnly())
	assert.Error(t, err)
}

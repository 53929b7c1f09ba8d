package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/attest/address"
	"xdao.co/attest/ledger"
)

// newStore connects to the Redis named by ATTEST_REDIS_ADDR under a
// per-test prefix.
func newStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("ATTEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ATTEST_REDIS_ADDR not set")
	}
	s, closeFn, err := Dial(context.Background(), addr, WithPrefix("attest-test:"+uuid.NewString()+":"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	key := address.MustParse("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")

	_, err := s.Get(ctx, key)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	want := &ledger.Account{Owner: address.ProgramID, Lamports: 99, Data: []byte("credential")}
	require.NoError(t, s.Commit(ctx, map[address.Address]*ledger.Account{key: want}, nil))
	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.Commit(ctx, nil, []address.Address{key}))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestLedgerOverRedis(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	l := ledger.New(s)
	key := address.MustParse("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

	require.NoError(t, l.Airdrop(ctx, key, 1_000))
	bal, err := l.Balance(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), bal)
}

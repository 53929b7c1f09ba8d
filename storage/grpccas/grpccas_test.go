package grpccas

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/attest/cidutil"
	"xdao.co/attest/storage"
	"xdao.co/attest/storage/memcas"
	"xdao.co/attest/storage/testkit"
)

func serve(t *testing.T, srv *Server) *Client {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	RegisterCASServer(s, srv)
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)}})
	require.NoError(t, err)
	client.Timeout = 2 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCCAS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		return serve(t, &Server{CAS: memcas.New()})
	})
}

func TestGRPCCAS_ReadOnlyServer(t *testing.T) {
	ctx := context.Background()
	backing := memcas.New()
	record := []byte("close event")
	id, err := backing.Put(ctx, record)
	require.NoError(t, err)

	client := serve(t, &Server{CAS: backing, ReadOnly: true})

	got, err := client.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, record, got)

	_, err = client.Put(ctx, []byte("forged"))
	assert.ErrorIs(t, err, storage.ErrReadOnly)
	assert.Equal(t, 1, backing.Len())
}

type substituting struct{ storage.CAS }

func (substituting) Get(context.Context, cid.Cid) ([]byte, error) { return []byte("substituted"), nil }

func TestGRPCCAS_ClientDetectsSubstitution(t *testing.T) {
	ctx := context.Background()
	want, err := cidutil.Sum([]byte("genuine"))
	require.NoError(t, err)

	// Server wraps a store that returns the wrong bytes; the server itself
	// refuses to serve them.
	client := serve(t, &Server{CAS: substituting{memcas.New()}})
	_, err = client.Get(ctx, want)
	assert.ErrorIs(t, err, storage.ErrCIDMismatch)
}

func TestGRPCCAS_Head(t *testing.T) {
	ctx := context.Background()
	backing := memcas.New()
	batch, err := backing.Put(ctx, []byte("batch"))
	require.NoError(t, err)

	var head cid.Cid
	client := serve(t, &Server{CAS: backing, ReadOnly: true, HeadFunc: func(context.Context) (cid.Cid, error) {
		return head, nil
	}})

	got, err := client.Head(ctx)
	require.NoError(t, err)
	assert.False(t, got.Defined())

	head = batch
	got, err = client.Head(ctx)
	require.NoError(t, err)
	assert.True(t, batch.Equals(got))
}

func TestGRPCCAS_HeadUnconfigured(t *testing.T) {
	client := serve(t, &Server{CAS: memcas.New()})
	_, err := client.Head(context.Background())
	assert.Error(t, err)
}

func TestCheckHead(t *testing.T) {
	ctx := context.Background()
	backing := memcas.New()
	batch, err := backing.Put(ctx, []byte("batch"))
	require.NoError(t, err)

	var head cid.Cid
	client := serve(t, &Server{CAS: backing, ReadOnly: true, HeadFunc: func(context.Context) (cid.Cid, error) {
		return head, nil
	}})
	assert.ErrorContains(t, checkHead(client), "audit log is empty")

	head = batch
	assert.NoError(t, checkHead(client))

	assert.Error(t, checkHead(serve(t, &Server{CAS: memcas.New()})))
}

func TestFeedFlagsRequireTarget(t *testing.T) {
	var f feedFlags
	_, _, err := f.open()
	assert.ErrorContains(t, err, "missing --grpc-target")
}

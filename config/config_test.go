package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/attest/audit"
	"xdao.co/attest/ledger"
	"xdao.co/attest/storage"
	"xdao.co/attest/storage/casregistry"
	_ "xdao.co/attest/storage/localfs"
	"xdao.co/attest/storage/memcas"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "attest.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFile(t *testing.T) {
	p := writeConfig(t, `{
		"listen": "127.0.0.1:7777",
		"log_level": "debug",
		"emit_create_events": true,
		"accounts": {"backend": "redis", "redis_addr": "127.0.0.1:6379", "redis_prefix": "t:"},
		"events": {"write_policy": "all", "backends": [{"name": "memory", "id": "a"}, {"name": "memory", "id": "b"}]}
	}`)
	cfg, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7777", cfg.Listen)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.True(t, cfg.EmitCreateEvents)
	assert.Equal(t, AccountsRedis, cfg.Accounts.Backend)
	assert.Equal(t, "t:", cfg.Accounts.RedisPrefix)
	assert.Len(t, cfg.Events.Backends, 2)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile("")
	assert.Error(t, err)

	_, err = LoadFile(writeConfig(t, `{not json`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	mem := Events{Backends: []Backend{{Name: "memory"}}}
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"minimal", Config{Events: mem}, true},
		{"no events backend", Config{}, false},
		{"unnamed backend", Config{Events: Events{Backends: []Backend{{}}}}, false},
		{"duplicate id", Config{Events: Events{Backends: []Backend{{Name: "memory"}, {Name: "memory"}}}}, false},
		{"distinct ids", Config{Events: Events{Backends: []Backend{{Name: "memory"}, {Name: "memory", ID: "two"}}}}, true},
		{"bad write policy", Config{Events: Events{WritePolicy: "some", Backends: mem.Backends}}, false},
		{"redis without addr", Config{Accounts: Accounts{Backend: AccountsRedis}, Events: mem}, false},
		{"unknown accounts backend", Config{Accounts: Accounts{Backend: "sql"}, Events: mem}, false},
		{"bad log level", Config{LogLevel: "loud", Events: mem}, false},
		{"warn level", Config{LogLevel: "WARN", Events: mem}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Config{}.Level())
}

func TestEventsOpenWritePolicies(t *testing.T) {
	dir := t.TempDir()
	single := Events{Backends: []Backend{{Name: "localfs", Config: map[string]string{"localfs-dir": dir}}}}
	cas, closeFn, err := single.Open(casregistry.UsageDaemon)
	require.NoError(t, err)
	defer closeFn()
	_, isMulti := cas.(storage.MultiCAS)
	assert.False(t, isMulti)

	first := Events{Backends: []Backend{{Name: "memory", ID: "a"}, {Name: "memory", ID: "b"}}}
	cas, _, err = first.Open(casregistry.UsageDaemon)
	require.NoError(t, err)
	assert.IsType(t, storage.MultiCAS{}, cas)

	all := first
	all.WritePolicy = WriteAll
	cas, _, err = all.Open(casregistry.UsageDaemon)
	require.NoError(t, err)
	require.IsType(t, storage.ReplicatingCAS{}, cas)
	rep := cas.(storage.ReplicatingCAS)
	assert.Equal(t, "a", rep.Backends[0].Name)
	assert.Equal(t, "b", rep.Backends[1].Name)
}

func TestEventsOpenUnknownBackend(t *testing.T) {
	_, _, err := Events{Backends: []Backend{{Name: "nope"}}}.Open(casregistry.UsageCLI)
	assert.Error(t, err)

	_, _, err = Events{Backends: []Backend{{Name: "localfs"}}}.Open(casregistry.UsageCLI)
	assert.Error(t, err, "localfs without a directory")
}

func TestHeadRoundTrip(t *testing.T) {
	e := Events{HeadFile: filepath.Join(t.TempDir(), "head")}
	head, err := e.Head()
	require.NoError(t, err)
	assert.False(t, head.Defined())

	id, err := memcas.New().Put(context.Background(), []byte("batch"))
	require.NoError(t, err)
	require.NoError(t, e.SaveHead(id))

	got, err := e.Head()
	require.NoError(t, err)
	assert.True(t, id.Equals(got))

	assert.NoError(t, Events{}.SaveHead(id))
	got, err = Events{}.Head()
	require.NoError(t, err)
	assert.Equal(t, cid.Undef, got)
}

func TestOpenLogReplaysFromHead(t *testing.T) {
	ctx := context.Background()
	e := Events{
		HeadFile: filepath.Join(t.TempDir(), "head"),
		Backends: []Backend{{Name: "localfs", Config: map[string]string{"localfs-dir": t.TempDir()}}},
	}
	log, closeFn, err := e.OpenLog(ctx, casregistry.UsageCLI)
	require.NoError(t, err)
	assert.Equal(t, 0, log.Len())

	rec := eventRecord(t)
	_, err = log.Append(ctx, uuid.New(), [][]byte{rec})
	require.NoError(t, err)
	require.NoError(t, e.SaveHead(log.Head()))
	require.NoError(t, closeFn())

	reopened, closeFn, err := e.OpenLog(ctx, casregistry.UsageCLI)
	require.NoError(t, err)
	defer closeFn()
	assert.Equal(t, 1, reopened.Len())
	assert.True(t, log.Head().Equals(reopened.Head()))
}

func TestOpenAccountsMemory(t *testing.T) {
	store, closeFn, err := Config{}.OpenAccounts(context.Background())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &ledger.MemoryStore{}, store)
}

func eventRecord(t *testing.T) []byte {
	t.Helper()
	b, err := (&audit.Event{Kind: audit.KindClose, Payload: []byte("x")}).MarshalBinary()
	require.NoError(t, err)
	return b
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/attest/address"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestUsage(t *testing.T) {
	code, _, errOut := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Usage:")

	code, out, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "xdao-attest selftest")

	code, _, errOut = runCLI(t, "bogus")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command: bogus")
}

func TestAddressCommands(t *testing.T) {
	authority := "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	code, out, errOut := runCLI(t, "address", "credential", "--authority", authority, "--name", "ORG")
	require.Equal(t, 0, code, errOut)
	want, err := address.CredentialAddress(address.ProgramID, address.MustParse(authority), "ORG")
	require.NoError(t, err)
	assert.Equal(t, want.String()+"\n", out)

	code, out, errOut = runCLI(t, "address", "schema", "--credential", want.String(), "--name", "person", "--version", "2")
	require.Equal(t, 0, code, errOut)
	schema, err := address.SchemaAddress(address.ProgramID, want, "person", 2)
	require.NoError(t, err)
	assert.Equal(t, schema.String()+"\n", out)

	code, out, _ = runCLI(t, "address", "event-authority")
	require.Equal(t, 0, code)
	assert.Equal(t, address.EventAuthority().String()+"\n", out)

	code, _, _ = runCLI(t, "address", "schema", "--credential", want.String(), "--name", "person", "--version", "256")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "address", "credential", "--authority", "not-base58!")
	assert.Equal(t, 2, code)
}

func TestKeyDerive(t *testing.T) {
	seed := strings.Repeat("01", 32)
	code, a, _ := runCLI(t, "key", "derive", "--seed-hex", seed, "--role", "issuer")
	require.Equal(t, 0, code)
	code, b, _ := runCLI(t, "key", "derive", "--seed-hex", seed, "--role", "closer")
	require.Equal(t, 0, code)
	assert.NotEqual(t, a, b)
	_, err := address.Parse(strings.TrimSpace(a))
	assert.NoError(t, err)

	code, _, _ = runCLI(t, "key", "derive", "--seed-hex", "00", "--role", "issuer")
	assert.Equal(t, 1, code)
}

func TestLayoutCommands(t *testing.T) {
	code, out, errOut := runCLI(t, "layout", "encode", "--layout", "string,u8", "--value", "alice", "--value", "30")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "05000000616c6963651e\n", out)

	code, out, _ = runCLI(t, "layout", "validate", "--layout", "string,u8", "--data-hex", "05000000616c6963651e")
	assert.Equal(t, 0, code)
	assert.Equal(t, "OK\n", out)

	code, _, errOut = runCLI(t, "layout", "validate", "--layout", "string,u8", "--data-hex", "05000000616c696365")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid")

	code, out, _ = runCLI(t, "layout", "decode", "--layout", "string,u8", "--data-hex", "05000000616c6963651e")
	require.Equal(t, 0, code)
	assert.Equal(t, "0\tstring\t\"alice\"\n1\tu8\t30\n", out)

	code, out, errOut = runCLI(t, "layout", "encode", "--layout", "vec<u16>,bool,char", "--value", "1,2", "--value", "true", "--value", "x")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "020000000100020001"+"78000000\n", out)

	code, _, _ = runCLI(t, "layout", "encode", "--layout", "u8", "--value", "256")
	assert.Equal(t, 1, code)

	code, _, _ = runCLI(t, "layout", "encode", "--layout", "float", "--value", "1")
	assert.Equal(t, 2, code)
}

func TestSelftestAndEvents(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "attest.json")
	cfg := `{
		"emit_create_events": true,
		"log_level": "error",
		"events": {
			"head_file": "` + filepath.Join(dir, "head") + `",
			"backends": [{"name": "localfs", "config": {"localfs-dir": "` + filepath.Join(dir, "cas") + `"}}]
		}
	}`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	code, out, errOut := runCLI(t, "selftest", "--config", cfgPath)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "close attestation tx")
	assert.True(t, strings.HasSuffix(out, "OK\n"))

	eventCIDs := regexp.MustCompile(`event (\S+)`).FindAllStringSubmatch(out, -1)
	require.Len(t, eventCIDs, 2, "create and close events")

	code, out, errOut = runCLI(t, "events", "list", "--config", cfgPath)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, 2, strings.Count(out, "batch "))
	assert.Contains(t, out, " close attestation=")
	assert.Contains(t, out, " create attestation=")
	assert.Less(t, strings.Index(out, " close "), strings.Index(out, " create "), "newest first")

	closeCID := eventCIDs[1][1]
	code, out, errOut = runCLI(t, "events", "decode", "--backend", "localfs", "--localfs-dir", filepath.Join(dir, "cas"), "--cid", closeCID)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "kind: close\n")
	assert.Contains(t, out, "payload: 05000000616c6963651e\n")

	code, _, _ = runCLI(t, "events", "decode", "--backend", "localfs", "--localfs-dir", filepath.Join(dir, "cas"), "--cid", "nope")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "events", "list", "--backend", "memory")
	assert.Equal(t, 2, code, "no head")
}

func TestSelftestRequiresConfig(t *testing.T) {
	code, _, errOut := runCLI(t, "selftest")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "missing --config")
}

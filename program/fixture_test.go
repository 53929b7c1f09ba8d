package program

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"xdao.co/attest/address"
	"xdao.co/attest/audit"
	"xdao.co/attest/keys"
	"xdao.co/attest/layout"
	"xdao.co/attest/ledger"
	"xdao.co/attest/state"
	"xdao.co/attest/storage/memcas"
)

const (
	testNow      = int64(1_700_000_000)
	startBalance = uint64(1_000_000_000)
)

var personLayout = layout.Layout{layout.String, layout.U8}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	ledger   *ledger.Ledger
	store    *gatedStore
	clock    *ledger.ManualClock
	events   *audit.Log
	cas      *memcas.CAS
	registry *prometheus.Registry

	payer, authority, s1, s2 *keys.Ed25519Signer

	credential address.Address
	schema     address.Address
}

// gatedStore is a MemoryStore whose commits fail while commitErr is set.
type gatedStore struct {
	*ledger.MemoryStore
	commitErr error
}

func (s *gatedStore) Commit(ctx context.Context, updates map[address.Address]*ledger.Account, deletes []address.Address) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	return s.MemoryStore.Commit(ctx, updates, deletes)
}

func signer(t *testing.T, b byte) *keys.Ed25519Signer {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = b
	}
	s, err := keys.Ed25519FromSeed(seed)
	require.NoError(t, err)
	return s
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		clock:     ledger.NewManualClock(testNow),
		cas:       memcas.New(),
		store:     &gatedStore{MemoryStore: ledger.NewMemoryStore()},
		registry:  prometheus.NewRegistry(),
		payer:     signer(t, 1),
		authority: signer(t, 2),
		s1:        signer(t, 3),
		s2:        signer(t, 4),
	}
	f.events = audit.NewLog(f.cas)
	f.ledger = ledger.New(f.store, ledger.WithClock(f.clock), ledger.WithEventSink(f.events))
	opts = append([]Option{WithMetrics(NewMetrics(f.registry))}, opts...)
	require.NoError(t, f.ledger.Register(New(opts...)))
	for _, s := range []*keys.Ed25519Signer{f.payer, f.authority, f.s1, f.s2} {
		require.NoError(t, f.ledger.Airdrop(f.ctx, s.Address(), startBalance))
	}

	var err error
	f.credential, err = address.CredentialAddress(address.ProgramID, f.authority.Address(), "ORG")
	require.NoError(t, err)
	f.schema, err = address.SchemaAddress(address.ProgramID, f.credential, "person", FirstSchemaVersion)
	require.NoError(t, err)
	return f
}

func (f *fixture) exec(signers []keys.Signer, ixs ...ledger.Instruction) (*ledger.Receipt, error) {
	f.t.Helper()
	tx := ledger.NewTransaction(ixs...)
	require.NoError(f.t, tx.Sign(signers...))
	return f.ledger.Execute(f.ctx, tx)
}

func (f *fixture) mustExec(signers []keys.Signer, ixs ...ledger.Instruction) *ledger.Receipt {
	f.t.Helper()
	rcpt, err := f.exec(signers, ixs...)
	require.NoError(f.t, err)
	return rcpt
}

func (f *fixture) balance(a address.Address) uint64 {
	f.t.Helper()
	b, err := f.ledger.Balance(f.ctx, a)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) account(a address.Address) *ledger.Account {
	f.t.Helper()
	acct, err := f.ledger.Account(f.ctx, a)
	require.NoError(f.t, err)
	return acct
}

func (f *fixture) createCredential(signers ...address.Address) {
	f.t.Helper()
	f.mustExec([]keys.Signer{f.payer, f.authority}, CreateCredential(
		CreateCredentialAccounts{Payer: f.payer.Address(), Credential: f.credential, Authority: f.authority.Address()},
		CreateCredentialArgs{Name: "ORG", Signers: signers},
	))
}

func (f *fixture) createSchema() {
	f.t.Helper()
	f.mustExec([]keys.Signer{f.payer, f.authority}, CreateSchema(
		CreateSchemaAccounts{Payer: f.payer.Address(), Authority: f.authority.Address(), Credential: f.credential, Schema: f.schema},
		CreateSchemaArgs{Name: "person", Description: "a person", FieldNames: []string{"name", "age"}, Layout: personLayout},
	))
}

// setup creates credential ORG with signer S1 and the person schema.
func (f *fixture) setup() {
	f.t.Helper()
	f.createCredential(f.s1.Address())
	f.createSchema()
}

func nonce(b byte) address.Address {
	var n address.Address
	for i := range n {
		n[i] = b
	}
	return n
}

func (f *fixture) attestationAddress(n address.Address) address.Address {
	f.t.Helper()
	a, err := address.AttestationAddress(address.ProgramID, f.credential, f.schema, n)
	require.NoError(f.t, err)
	return a
}

func personData(t *testing.T, name string, age int) []byte {
	t.Helper()
	b, err := layout.Encode(personLayout, []any{name, age})
	require.NoError(t, err)
	return b
}

func (f *fixture) createAttestationIx(by *keys.Ed25519Signer, n address.Address, expiry int64) ledger.Instruction {
	return CreateAttestation(
		CreateAttestationAccounts{
			Payer:       f.payer.Address(),
			Signer:      by.Address(),
			Credential:  f.credential,
			Schema:      f.schema,
			Attestation: f.attestationAddress(n),
		},
		CreateAttestationArgs{Nonce: n, Data: personData(f.t, "alice", 30), Expiry: expiry},
	)
}

func (f *fixture) createAttestation(by *keys.Ed25519Signer, n address.Address, expiry int64) error {
	f.t.Helper()
	_, err := f.exec([]keys.Signer{f.payer, by}, f.createAttestationIx(by, n, expiry))
	return err
}

func (f *fixture) closeAttestation(by *keys.Ed25519Signer, payer, att, token address.Address) error {
	f.t.Helper()
	_, err := f.exec([]keys.Signer{by}, CloseAttestation(CloseAttestationAccounts{
		Payer: payer, Signer: by.Address(), Credential: f.credential, Attestation: att, Token: token,
	}))
	return err
}

func (f *fixture) storedAttestation(a address.Address) *state.Attestation {
	f.t.Helper()
	att, err := state.UnmarshalAttestation(f.account(a).Data)
	require.NoError(f.t, err)
	return att
}

func requireRule(t *testing.T, err error, kind Kind, rule string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, string(kind), string(KindOf(err)), "err: %v", err)
	require.Equal(t, rule, RuleID(err), "err: %v", err)
}

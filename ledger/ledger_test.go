package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/attest/address"
	"xdao.co/attest/cidutil"
	"xdao.co/attest/keys"
)

var stubID = address.MustParse("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

// stub is a small program whose instruction byte selects one host behavior.
type stub struct{}

func (stub) ID() address.Address { return stubID }

func (stub) Process(_ context.Context, inv *Invocation) error {
	a := inv.Accounts
	switch inv.Data[0] {
	case 0: // create: payer, target
		return inv.Env.CreateAccount(a[0], a[1], 8, stubID, [][]byte{[]byte("stub")})
	case 1: // write own data
		a[0].Data[0] = 0xAB
		return nil
	case 2: // debit a foreign account
		a[0].Lamports--
		a[1].Lamports++
		return nil
	case 3: // emit
		return inv.Env.EmitEvent(a[0], []byte("event"))
	case 4: // resize: payer, target
		return inv.Env.Resize(a[0], a[1], int(inv.Data[1]))
	case 5: // mint from nothing
		a[0].Lamports++
		return nil
	case 6: // close own account into payer: target, payer
		a[1].Lamports += a[0].Lamports
		a[0].Lamports = 0
		a[0].Data = nil
		a[0].Owner = address.SystemProgramID
		return nil
	case 7:
		return errors.New("stub: refused")
	}
	return errors.New("stub: unknown op")
}

type fixture struct {
	ctx    context.Context
	ledger *Ledger
	store  *MemoryStore
	payer  *keys.Ed25519Signer
	target address.Address
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := NewMemoryStore()
	l := New(store, append([]Option{WithClock(NewManualClock(1_000))}, opts...)...)
	require.NoError(t, l.Register(stub{}))
	payer, err := keys.Ed25519FromSeed(make([]byte, ed25519.SeedSize))
	require.NoError(t, err)
	target, err := address.Create(stubID, []byte("stub"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, l.Airdrop(ctx, payer.Address(), 10_000_000))
	return &fixture{ctx: ctx, ledger: l, store: store, payer: payer, target: target}
}

func (f *fixture) run(t *testing.T, metas []AccountMeta, data ...byte) (*Receipt, error) {
	t.Helper()
	tx := NewTransaction(Instruction{ProgramID: stubID, Accounts: metas, Data: data})
	require.NoError(t, tx.Sign(f.payer))
	return f.ledger.Execute(f.ctx, tx)
}

func (f *fixture) create(t *testing.T) {
	t.Helper()
	_, err := f.run(t, []AccountMeta{WritableSigner(f.payer.Address()), Writable(f.target)}, 0)
	require.NoError(t, err)
}

func TestCreateAccountChargesRent(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	acct, err := f.ledger.Account(f.ctx, f.target)
	require.NoError(t, err)
	assert.Equal(t, stubID, acct.Owner)
	assert.Equal(t, Rent(8), acct.Lamports)
	assert.Len(t, acct.Data, 8)

	bal, err := f.ledger.Balance(f.ctx, f.payer.Address())
	require.NoError(t, err)
	assert.Equal(t, 10_000_000-Rent(8), bal)
}

func TestCreateAccountTwiceFails(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	_, err := f.run(t, []AccountMeta{WritableSigner(f.payer.Address()), Writable(f.target)}, 0)
	assert.ErrorIs(t, err, ErrAccountInUse)
}

func TestCreateAccountOnPrefundedAddress(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Airdrop(f.ctx, f.target, 100))
	f.create(t)

	acct, err := f.ledger.Account(f.ctx, f.target)
	require.NoError(t, err)
	assert.Equal(t, stubID, acct.Owner)
	assert.Equal(t, Rent(8), acct.Lamports)

	bal, err := f.ledger.Balance(f.ctx, f.payer.Address())
	require.NoError(t, err)
	assert.Equal(t, 10_000_000-(Rent(8)-100), bal)
}

func TestCreateAccountPrefundedAboveRent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Airdrop(f.ctx, f.target, Rent(8)+5))
	f.create(t)

	acct, err := f.ledger.Account(f.ctx, f.target)
	require.NoError(t, err)
	assert.Equal(t, Rent(8)+5, acct.Lamports)

	bal, err := f.ledger.Balance(f.ctx, f.payer.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), bal)
}

func TestCreateAccountSeedMismatch(t *testing.T) {
	f := newFixture(t)
	other := address.MustParse("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")
	_, err := f.run(t, []AccountMeta{WritableSigner(f.payer.Address()), Writable(other)}, 0)
	assert.ErrorIs(t, err, ErrSeedMismatch)
}

func TestCreateAccountInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	poor, err := keys.Ed25519FromSeed(bytesOf(7, ed25519.SeedSize))
	require.NoError(t, err)
	require.NoError(t, f.ledger.Airdrop(f.ctx, poor.Address(), 10))

	tx := NewTransaction(Instruction{
		ProgramID: stubID,
		Accounts:  []AccountMeta{WritableSigner(poor.Address()), Writable(f.target)},
		Data:      []byte{0},
	})
	require.NoError(t, tx.Sign(poor))
	_, err = f.ledger.Execute(f.ctx, tx)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestMissingSignatureRejected(t *testing.T) {
	f := newFixture(t)
	tx := NewTransaction(Instruction{
		ProgramID: stubID,
		Accounts:  []AccountMeta{WritableSigner(f.payer.Address()), Writable(f.target)},
		Data:      []byte{0},
	})
	_, err := f.ledger.Execute(f.ctx, tx)
	assert.ErrorIs(t, err, ErrMissingSignature)
}

func TestTamperedTransactionRejected(t *testing.T) {
	f := newFixture(t)
	tx := NewTransaction(Instruction{
		ProgramID: stubID,
		Accounts:  []AccountMeta{WritableSigner(f.payer.Address()), Writable(f.target)},
		Data:      []byte{0},
	})
	require.NoError(t, tx.Sign(f.payer))
	tx.Instructions[0].Data = []byte{1}
	_, err := f.ledger.Execute(f.ctx, tx)
	assert.ErrorIs(t, err, keys.ErrInvalidSig)
}

func TestUnknownProgram(t *testing.T) {
	f := newFixture(t)
	tx := NewTransaction(Instruction{ProgramID: f.target, Data: []byte{0}})
	_, err := f.ledger.Execute(f.ctx, tx)
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

func TestOwnerMayWriteData(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	_, err := f.run(t, []AccountMeta{Writable(f.target)}, 1)
	require.NoError(t, err)
	acct, err := f.ledger.Account(f.ctx, f.target)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), acct.Data[0])
}

func TestReadonlyWriteRejected(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	_, err := f.run(t, []AccountMeta{Readonly(f.target)}, 1)
	assert.ErrorIs(t, err, ErrReadonlyModified)
}

func TestForeignDebitRejected(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	_, err := f.run(t, []AccountMeta{WritableSigner(f.payer.Address()), Writable(f.target)}, 2)
	assert.ErrorIs(t, err, ErrExternalDebit)
}

func TestUnbalancedRejected(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	_, err := f.run(t, []AccountMeta{Writable(f.target)}, 5)
	assert.ErrorIs(t, err, ErrUnbalanced)
}

func TestCloseIntoPayerPurgesAccount(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	before, err := f.ledger.Balance(f.ctx, f.payer.Address())
	require.NoError(t, err)

	_, err = f.run(t, []AccountMeta{Writable(f.target), WritableSigner(f.payer.Address())}, 6)
	require.NoError(t, err)

	_, err = f.ledger.Account(f.ctx, f.target)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	after, err := f.ledger.Balance(f.ctx, f.payer.Address())
	require.NoError(t, err)
	assert.Equal(t, before+Rent(8), after)
}

func TestFailedInstructionRollsBackTransaction(t *testing.T) {
	f := newFixture(t)
	tx := NewTransaction(
		Instruction{ProgramID: stubID, Accounts: []AccountMeta{WritableSigner(f.payer.Address()), Writable(f.target)}, Data: []byte{0}},
		Instruction{ProgramID: stubID, Data: []byte{7}},
	)
	require.NoError(t, tx.Sign(f.payer))
	_, err := f.ledger.Execute(f.ctx, tx)
	require.Error(t, err)

	_, err = f.ledger.Account(f.ctx, f.target)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	bal, err := f.ledger.Balance(f.ctx, f.payer.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), bal)
}

func TestResizeMovesRent(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	payer := WritableSigner(f.payer.Address())

	_, err := f.run(t, []AccountMeta{payer, Writable(f.target)}, 4, 40)
	require.NoError(t, err)
	acct, err := f.ledger.Account(f.ctx, f.target)
	require.NoError(t, err)
	assert.Len(t, acct.Data, 40)
	assert.Equal(t, Rent(40), acct.Lamports)

	_, err = f.run(t, []AccountMeta{payer, Writable(f.target)}, 4, 4)
	require.NoError(t, err)
	acct, err = f.ledger.Account(f.ctx, f.target)
	require.NoError(t, err)
	assert.Equal(t, Rent(4), acct.Lamports)

	bal, err := f.ledger.Balance(f.ctx, f.payer.Address())
	require.NoError(t, err)
	assert.Equal(t, 10_000_000-Rent(4), bal)
}

type recordingSink struct {
	txID      uuid.UUID
	records   [][]byte
	published []uuid.UUID
	discarded []uuid.UUID
	err       error
}

func (s *recordingSink) Stage(_ context.Context, txID uuid.UUID, records [][]byte) ([]cid.Cid, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.txID = txID
	s.records = append(s.records, records...)
	ids := make([]cid.Cid, len(records))
	for i, r := range records {
		id, err := cidutil.Sum(r)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func (s *recordingSink) Publish(txID uuid.UUID) { s.published = append(s.published, txID) }
func (s *recordingSink) Discard(txID uuid.UUID) { s.discarded = append(s.discarded, txID) }

// failingStore fails every Commit once err is set.
type failingStore struct {
	*MemoryStore
	err error
}

func (s *failingStore) Commit(ctx context.Context, updates map[address.Address]*Account, deletes []address.Address) error {
	if s.err != nil {
		return s.err
	}
	return s.MemoryStore.Commit(ctx, updates, deletes)
}

func TestEmitEventRequiresProgramEventAuthority(t *testing.T) {
	sink := &recordingSink{}
	f := newFixture(t, WithEventSink(sink))
	authority, err := address.Derive(stubID, address.KindEventAuthority)
	require.NoError(t, err)

	rcpt, err := f.run(t, []AccountMeta{Readonly(authority)}, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("event")}, rcpt.Events)
	assert.Len(t, rcpt.EventIDs, 1)
	assert.Equal(t, rcpt.TxID, sink.txID)
	assert.Equal(t, []uuid.UUID{rcpt.TxID}, sink.published)
	assert.Empty(t, sink.discarded)

	// The registry's own event authority belongs to a different program.
	_, err = f.run(t, []AccountMeta{Readonly(address.EventAuthority())}, 3)
	assert.ErrorIs(t, err, ErrEventAuthority)
}

func TestSinkFailureAbortsCommit(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	f := newFixture(t, WithEventSink(sink))
	authority, err := address.Derive(stubID, address.KindEventAuthority)
	require.NoError(t, err)

	tx := NewTransaction(
		Instruction{ProgramID: stubID, Accounts: []AccountMeta{WritableSigner(f.payer.Address()), Writable(f.target)}, Data: []byte{0}},
		Instruction{ProgramID: stubID, Accounts: []AccountMeta{Readonly(authority)}, Data: []byte{3}},
	)
	require.NoError(t, tx.Sign(f.payer))
	_, err = f.ledger.Execute(f.ctx, tx)
	require.Error(t, err)
	_, err = f.ledger.Account(f.ctx, f.target)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestCommitFailureDiscardsStagedEvents(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{MemoryStore: NewMemoryStore()}
	sink := &recordingSink{}
	l := New(store, WithClock(NewManualClock(1_000)), WithEventSink(sink))
	require.NoError(t, l.Register(stub{}))
	payer, err := keys.Ed25519FromSeed(make([]byte, ed25519.SeedSize))
	require.NoError(t, err)
	require.NoError(t, l.Airdrop(ctx, payer.Address(), 10_000_000))
	authority, err := address.Derive(stubID, address.KindEventAuthority)
	require.NoError(t, err)

	store.err = errors.New("commit failed")
	tx := NewTransaction(Instruction{ProgramID: stubID, Accounts: []AccountMeta{Readonly(authority)}, Data: []byte{3}})
	require.NoError(t, tx.Sign(payer))
	_, err = l.Execute(ctx, tx)
	require.ErrorContains(t, err, "commit failed")

	assert.Len(t, sink.records, 1)
	assert.Empty(t, sink.published)
	assert.Equal(t, []uuid.UUID{tx.ID}, sink.discarded)
}

func TestSystemTransfer(t *testing.T) {
	f := newFixture(t)
	to := address.MustParse("4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T")
	tx := NewTransaction(Transfer(f.payer.Address(), to, 500))
	require.NoError(t, tx.Sign(f.payer))
	_, err := f.ledger.Execute(f.ctx, tx)
	require.NoError(t, err)

	bal, err := f.ledger.Balance(f.ctx, to)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), bal)
}

func TestAirdropOverflow(t *testing.T) {
	f := newFixture(t)
	err := f.ledger.Airdrop(f.ctx, f.payer.Address(), math.MaxUint64)
	assert.ErrorIs(t, err, ErrBalanceOverflow)
}

func TestProgramAccountsAreExecutable(t *testing.T) {
	f := newFixture(t)
	acct, err := f.ledger.Account(f.ctx, stubID)
	require.NoError(t, err)
	assert.True(t, acct.Executable)
	assert.ErrorIs(t, f.ledger.SetAccount(f.ctx, stubID, &Account{}), ErrExecutableModified)
}

func TestDilithiumSigner(t *testing.T) {
	f := newFixture(t)
	pq, err := keys.GenerateDilithium3(rand.Reader)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Airdrop(f.ctx, pq.Address(), 1_000))

	tx := NewTransaction(Transfer(pq.Address(), f.payer.Address(), 1_000))
	require.NoError(t, tx.Sign(pq))
	_, err = f.ledger.Execute(f.ctx, tx)
	require.NoError(t, err)

	_, err = f.ledger.Account(f.ctx, pq.Address())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountEncoding(t *testing.T) {
	a := &Account{Owner: stubID, Lamports: 42, Data: []byte{1, 2, 3}, Executable: true}
	b, err := a.MarshalBinary()
	require.NoError(t, err)
	got, err := UnmarshalAccount(b)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = UnmarshalAccount(b[:10])
	assert.ErrorIs(t, err, ErrMalformedAccount)
}

func bytesOf(v byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}

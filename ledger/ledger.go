package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"sync"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"

	"xdao.co/attest/address"
)

// EventSink receives the events of a transaction in two phases. Stage runs
// before the accounts are committed and a Stage error aborts the
// transaction. Publish follows a successful commit, Discard a failed one, so
// a sink never exposes events of a transaction that did not commit.
type EventSink interface {
	Stage(ctx context.Context, txID uuid.UUID, records [][]byte) ([]cid.Cid, error)
	Publish(txID uuid.UUID)
	Discard(txID uuid.UUID)
}

// Receipt describes a committed transaction.
type Receipt struct {
	TxID     uuid.UUID
	Events   [][]byte
	EventIDs []cid.Cid
}

// Ledger executes transactions one at a time against an AccountStore.
type Ledger struct {
	mu       sync.Mutex
	store    AccountStore
	programs map[address.Address]Program
	clock    Clock
	sink     EventSink
	log      *slog.Logger
}

type Option func(*Ledger)

func WithLogger(l *slog.Logger) Option {
	return func(led *Ledger) {
		if l != nil {
			led.log = l
		}
	}
}

func WithClock(c Clock) Option {
	return func(led *Ledger) {
		if c != nil {
			led.clock = c
		}
	}
}

// WithEventSink routes emitted events to s. Without a sink events are only
// returned in the Receipt.
func WithEventSink(s EventSink) Option {
	return func(led *Ledger) { led.sink = s }
}

// New returns a ledger over store with the system program registered.
func New(store AccountStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		programs: make(map[address.Address]Program),
		clock:    SystemClock{},
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	l.programs[address.SystemProgramID] = systemProgram{}
	return l
}

// Register makes p callable. Program IDs are unique.
func (l *Ledger) Register(p Program) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := p.ID()
	if _, ok := l.programs[id]; ok {
		return fmt.Errorf("ledger: program %s already registered", id)
	}
	l.programs[id] = p
	return nil
}

// Account returns the stored account at key.
func (l *Ledger) Account(ctx context.Context, key address.Address) (*Account, error) {
	if _, ok := l.program(key); ok {
		return programAccount(), nil
	}
	return l.store.Get(ctx, key)
}

// Balance returns the lamports at key; absent accounts hold zero.
func (l *Ledger) Balance(ctx context.Context, key address.Address) (uint64, error) {
	a, err := l.Account(ctx, key)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return a.Lamports, nil
}

// Airdrop credits lamports to key out of thin air. It exists for tests and
// local deployments.
func (l *Ledger) Airdrop(ctx context.Context, key address.Address, lamports uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.programs[key]; ok {
		return fmt.Errorf("%w: %s", ErrExecutableModified, key)
	}
	a, err := l.load(ctx, key)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(a.Lamports, lamports, 0)
	if carry != 0 {
		return ErrBalanceOverflow
	}
	a.Lamports = sum
	return l.store.Commit(ctx, map[address.Address]*Account{key: a}, nil)
}

// SetAccount overwrites the account at key. It exists for tests that need
// states no transaction can reach, such as corrupt data.
func (l *Ledger) SetAccount(ctx context.Context, key address.Address, a *Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.programs[key]; ok {
		return fmt.Errorf("%w: %s", ErrExecutableModified, key)
	}
	return l.store.Commit(ctx, map[address.Address]*Account{key: a.Clone()}, nil)
}

func (l *Ledger) program(key address.Address) (Program, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.programs[key]
	return p, ok
}

func programAccount() *Account {
	return &Account{Owner: address.SystemProgramID, Lamports: 1, Executable: true}
}

// load returns the account at key, or an empty system-owned account.
func (l *Ledger) load(ctx context.Context, key address.Address) (*Account, error) {
	if _, ok := l.programs[key]; ok {
		return programAccount(), nil
	}
	a, err := l.store.Get(ctx, key)
	if errors.Is(err, ErrAccountNotFound) {
		return &Account{Owner: address.SystemProgramID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: load %s: %w", key, err)
	}
	return a, nil
}

// Execute runs every instruction of tx in order. Either all of them succeed
// and their effects and events are committed, or nothing is.
func (l *Ledger) Execute(ctx context.Context, tx *Transaction) (*Receipt, error) {
	if tx == nil {
		return nil, ErrEmptyTransaction
	}
	if err := tx.verify(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.log.With("tx", tx.ID.String())
	working := make(map[address.Address]*Account)
	touched := make(map[address.Address]bool)
	var events [][]byte
	now := l.clock.Now()

	for i, ix := range tx.Instructions {
		prog, ok := l.programs[ix.ProgramID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
		}

		infos := make(map[address.Address]*AccountInfo, len(ix.Accounts))
		view := make([]*AccountInfo, 0, len(ix.Accounts))
		for _, m := range ix.Accounts {
			info, ok := infos[m.Key]
			if !ok {
				a, found := working[m.Key]
				if !found {
					var err error
					if a, err = l.load(ctx, m.Key); err != nil {
						return nil, err
					}
					working[m.Key] = a
				}
				info = &AccountInfo{
					Key:        m.Key,
					Owner:      a.Owner,
					Lamports:   a.Lamports,
					Data:       append([]byte(nil), a.Data...),
					Executable: a.Executable,
				}
				infos[m.Key] = info
			}
			info.IsSigner = info.IsSigner || m.IsSigner
			info.IsWritable = info.IsWritable || m.IsWritable
			view = append(view, info)
		}

		e := &env{
			program: ix.ProgramID,
			now:     now,
			txID:    tx.ID,
			before:  make(map[*AccountInfo]snapshot, len(infos)),
			events:  &events,
		}
		for _, info := range infos {
			e.before[info] = snap(info)
		}

		inv := &Invocation{ProgramID: ix.ProgramID, Accounts: view, Data: ix.Data, Env: e}
		if err := prog.Process(ctx, inv); err != nil {
			log.Debug("instruction failed", "index", i, "program", ix.ProgramID.String(), "err", err)
			return nil, fmt.Errorf("ledger: instruction %d: %w", i, err)
		}
		if err := e.audit(); err != nil {
			return nil, fmt.Errorf("ledger: instruction %d: %w", i, err)
		}

		for key, info := range infos {
			if info.Executable || !info.IsWritable {
				continue
			}
			working[key] = &Account{
				Owner:      info.Owner,
				Lamports:   info.Lamports,
				Data:       info.Data,
				Executable: info.Executable,
			}
			touched[key] = true
		}
	}

	rcpt := &Receipt{TxID: tx.ID, Events: events}
	staged := len(events) > 0 && l.sink != nil
	if staged {
		ids, err := l.sink.Stage(ctx, tx.ID, events)
		if err != nil {
			return nil, fmt.Errorf("ledger: event sink: %w", err)
		}
		rcpt.EventIDs = ids
	}

	updates := make(map[address.Address]*Account, len(touched))
	var deletes []address.Address
	for key := range touched {
		a := working[key]
		if a.Lamports == 0 {
			deletes = append(deletes, key)
			continue
		}
		updates[key] = a
	}
	if err := l.store.Commit(ctx, updates, deletes); err != nil {
		if staged {
			l.sink.Discard(tx.ID)
		}
		return nil, fmt.Errorf("ledger: commit: %w", err)
	}
	if staged {
		l.sink.Publish(tx.ID)
	}
	log.Debug("transaction committed", "instructions", len(tx.Instructions), "updated", len(updates), "purged", len(deletes), "events", len(events))
	return rcpt, nil
}

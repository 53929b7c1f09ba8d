package audit

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/ipfs/go-cid"

	"xdao.co/attest/storage"
)

// BatchDiscriminator is the first byte of a batch record.
const BatchDiscriminator = 0xE5

var ErrMalformedBatch = errors.New("audit: malformed batch record")

// Batch links the events of one transaction to the previous batch, forming a
// hash chain whose head CID commits to the whole history.
type Batch struct {
	ID     cid.Cid
	TxID   uuid.UUID
	Prev   cid.Cid
	Events []cid.Cid
}

func (b *Batch) marshal() []byte {
	buf := []byte{BatchDiscriminator}
	buf = append(buf, b.TxID[:]...)
	buf = appendCID(buf, b.Prev)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b.Events)))
	for _, id := range b.Events {
		buf = appendCID(buf, id)
	}
	return buf
}

func appendCID(buf []byte, id cid.Cid) []byte {
	if !id.Defined() {
		return binary.LittleEndian.AppendUint32(buf, 0)
	}
	raw := id.Bytes()
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(raw)))
	return append(buf, raw...)
}

func unmarshalBatch(id cid.Cid, b []byte) (*Batch, error) {
	if len(b) < 1+16 || b[0] != BatchDiscriminator {
		return nil, ErrMalformedBatch
	}
	out := &Batch{ID: id}
	copy(out.TxID[:], b[1:17])
	rest := b[17:]

	readCID := func() (cid.Cid, error) {
		if len(rest) < 4 {
			return cid.Undef, ErrMalformedBatch
		}
		n := uint64(binary.LittleEndian.Uint32(rest))
		rest = rest[4:]
		if n > uint64(len(rest)) {
			return cid.Undef, ErrMalformedBatch
		}
		raw := rest[:n]
		rest = rest[n:]
		if n == 0 {
			return cid.Undef, nil
		}
		c, err := cid.Cast(raw)
		if err != nil {
			return cid.Undef, fmt.Errorf("%w: %w", ErrMalformedBatch, err)
		}
		return c, nil
	}

	var err error
	if out.Prev, err = readCID(); err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, ErrMalformedBatch
	}
	count := binary.LittleEndian.Uint32(rest)
	rest = rest[4:]
	for i := uint32(0); i < count; i++ {
		c, err := readCID()
		if err != nil {
			return nil, err
		}
		if !c.Defined() {
			return nil, ErrMalformedBatch
		}
		out.Events = append(out.Events, c)
	}
	if len(rest) != 0 {
		return nil, ErrMalformedBatch
	}
	return out, nil
}

// Entry indexes one stored event.
type Entry struct {
	Seq   uint64
	TxID  uuid.UUID
	ID    cid.Cid
	Batch cid.Cid
}

// ErrPendingBatch is returned by Stage while another batch awaits Publish or
// Discard.
var ErrPendingBatch = errors.New("audit: a staged batch is pending")

// Log is an append-only event log over a CAS. It satisfies ledger.EventSink.
//
// Writes are two-phase: Stage stores the records and the batch block, and
// only Publish moves the head. A discarded batch stays in the CAS but is
// unreachable from any head.
type Log struct {
	cas storage.CAS
	log *slog.Logger

	mu      sync.RWMutex
	head    cid.Cid
	entries []Entry
	pending *Batch
}

type Option func(*Log)

func WithLogger(l *slog.Logger) Option {
	return func(lg *Log) {
		if l != nil {
			lg.log = l
		}
	}
}

// NewLog returns an empty log writing to cas.
func NewLog(cas storage.CAS, opts ...Option) *Log {
	l := &Log{cas: cas, log: slog.Default()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Open rebuilds a log from the batch chain ending at head.
func Open(ctx context.Context, cas storage.CAS, head cid.Cid, opts ...Option) (*Log, error) {
	l := NewLog(cas, opts...)
	if !head.Defined() {
		return l, nil
	}
	var batches []*Batch
	if err := Walk(ctx, cas, head, func(b *Batch) error {
		batches = append(batches, b)
		return nil
	}); err != nil {
		return nil, err
	}
	for i := len(batches) - 1; i >= 0; i-- {
		l.index(batches[i])
	}
	l.head = head
	return l, nil
}

func (l *Log) index(b *Batch) {
	for _, id := range b.Events {
		l.entries = append(l.entries, Entry{Seq: uint64(len(l.entries)), TxID: b.TxID, ID: id, Batch: b.ID})
	}
}

// Stage stores records and a batch linking them to the current head, and
// returns the record CIDs. The head is unchanged until Publish(txID). Every
// record must decode as an Event.
func (l *Log) Stage(ctx context.Context, txID uuid.UUID, records [][]byte) ([]cid.Cid, error) {
	for i, r := range records {
		if _, err := Unmarshal(r); err != nil {
			return nil, fmt.Errorf("audit: record %d: %w", i, err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending != nil {
		return nil, fmt.Errorf("%w: tx %s", ErrPendingBatch, l.pending.TxID)
	}

	ids := make([]cid.Cid, 0, len(records))
	for _, r := range records {
		id, err := l.cas.Put(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("audit: store event: %w", err)
		}
		ids = append(ids, id)
	}
	b := &Batch{TxID: txID, Prev: l.head, Events: ids}
	bid, err := l.cas.Put(ctx, b.marshal())
	if err != nil {
		return nil, fmt.Errorf("audit: store batch: %w", err)
	}
	b.ID = bid
	l.pending = b
	return ids, nil
}

// Publish makes the batch staged for txID the new head. It is a no-op when
// nothing is staged for txID.
func (l *Log) Publish(txID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.pending
	if b == nil || b.TxID != txID {
		return
	}
	l.pending = nil
	l.head = b.ID
	l.index(b)
	l.log.Debug("audit batch published", "tx", txID.String(), "batch", b.ID.String(), "events", len(b.Events))
}

// Discard drops the batch staged for txID without moving the head.
func (l *Log) Discard(txID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil || l.pending.TxID != txID {
		return
	}
	l.log.Debug("audit batch discarded", "tx", txID.String(), "batch", l.pending.ID.String())
	l.pending = nil
}

// Append stages and publishes in one step, for writers that have no
// separate commit.
func (l *Log) Append(ctx context.Context, txID uuid.UUID, records [][]byte) ([]cid.Cid, error) {
	ids, err := l.Stage(ctx, txID, records)
	if err != nil {
		return nil, err
	}
	l.Publish(txID)
	return ids, nil
}

// Head returns the newest batch CID, or cid.Undef for an empty log.
func (l *Log) Head() cid.Cid {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.head
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns the index from seq onwards.
func (l *Log) Entries(seq uint64) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if seq >= uint64(len(l.entries)) {
		return nil
	}
	return append([]Entry(nil), l.entries[seq:]...)
}

// Event fetches and decodes one record.
func (l *Log) Event(ctx context.Context, id cid.Cid) (*Event, error) {
	return Fetch(ctx, l.cas, id)
}

// Fetch reads an event record from any CAS.
func Fetch(ctx context.Context, cas storage.CAS, id cid.Cid) (*Event, error) {
	b, err := cas.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return Unmarshal(b)
}

// Walk visits batches from head back to the first one.
func Walk(ctx context.Context, cas storage.CAS, head cid.Cid, fn func(*Batch) error) error {
	seen := make(map[cid.Cid]struct{})
	for id := head; id.Defined(); {
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: cycle at %s", ErrMalformedBatch, id)
		}
		seen[id] = struct{}{}
		raw, err := cas.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("audit: batch %s: %w", id, err)
		}
		b, err := unmarshalBatch(id, raw)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
		id = b.Prev
	}
	return nil
}

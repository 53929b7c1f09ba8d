// Package program is the attestation registry: it admits or rejects every
// mutation of credentials, schemas and attestations.
//
// Each operation decodes its fixed account list and arguments, runs an
// ordered list of Checks, and only then mutates accounts. A rejected
// operation returns a *Error and leaves every account as it found it.
package program

import (
	"context"
	"log/slog"
	"time"

	"xdao.co/attest/address"
	"xdao.co/attest/ledger"
)

// FirstSchemaVersion is the version CreateSchema assigns.
const FirstSchemaVersion = 1

// Processor implements ledger.Program for the registry.
type Processor struct {
	id           address.Address
	log          *slog.Logger
	metrics      *Metrics
	createEvents bool
}

var _ ledger.Program = (*Processor)(nil)

type Option func(*Processor)

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithCreateEvents makes CreateAttestation emit an audit event. Closures
// always emit one.
func WithCreateEvents(enabled bool) Option {
	return func(p *Processor) { p.createEvents = enabled }
}

func New(opts ...Option) *Processor {
	p := &Processor{id: address.ProgramID, log: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Processor) ID() address.Address { return p.id }

func (p *Processor) Process(ctx context.Context, inv *ledger.Invocation) error {
	start := time.Now()
	op, err := p.dispatch(inv)
	p.metrics.Observe(op, start, err)
	if err != nil {
		p.log.InfoContext(ctx, "operation rejected", "op", op.String(), "tx", inv.Env.TxID().String(),
			"kind", string(KindOf(err)), "rule", RuleID(err), "err", err)
		return err
	}
	p.log.DebugContext(ctx, "operation applied", "op", op.String(), "tx", inv.Env.TxID().String())
	return nil
}

func (p *Processor) dispatch(inv *ledger.Invocation) (Op, error) {
	if len(inv.Data) == 0 {
		return numOps, newError(KindMalformed, "ATTEST-ARGS-001", "empty instruction data")
	}
	op, args := Op(inv.Data[0]), inv.Data[1:]
	switch op {
	case OpCreateCredential:
		return op, p.createCredential(inv, args)
	case OpCreateSchema:
		return op, p.createSchema(inv, args)
	case OpChangeSchemaStatus:
		return op, p.changeSchemaStatus(inv, args)
	case OpChangeAuthorizedSigners:
		return op, p.changeAuthorizedSigners(inv, args)
	case OpChangeSchemaDescription:
		return op, p.changeSchemaDescription(inv, args)
	case OpChangeSchemaVersion:
		return op, p.changeSchemaVersion(inv, args)
	case OpCreateAttestation:
		return op, p.createAttestation(inv, args, false)
	case OpCloseAttestation:
		return op, p.closeAttestation(inv, args)
	case OpCreateTokenizedAttestation:
		return op, p.createAttestation(inv, args, true)
	default:
		return op, newError(KindMalformed, "ATTEST-ARGS-001", "unknown instruction")
	}
}

// write replaces the data of an account whose size already matches.
func write(a *ledger.AccountInfo, data []byte) error {
	if len(a.Data) != len(data) {
		return newError(KindInternal, "ATTEST-INTERNAL-002", "account size does not match encoded entity")
	}
	copy(a.Data, data)
	return nil
}

func hostError(ruleID, msg string, err error) error {
	return wrapError(KindInternal, ruleID, msg, err)
}

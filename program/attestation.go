package program

import (
	"fmt"
	"math/bits"

	"xdao.co/attest/address"
	"xdao.co/attest/audit"
	"xdao.co/attest/layout"
	"xdao.co/attest/ledger"
	"xdao.co/attest/state"
)

// expiryCheck rejects a stale expiry.
func expiryCheck(expiry, now int64) Check {
	return Check{ID: "ATTEST-EXP-001", Apply: func() error {
		if state.Expired(expiry, now) {
			return newError(KindBusinessRule, "ATTEST-EXP-001", fmt.Sprintf("expiry %d is before current time %d", expiry, now))
		}
		return nil
	}}
}

func (p *Processor) createAttestation(inv *ledger.Invocation, raw []byte, tokenized bool) error {
	a, err := parseCreateAttestationAccounts(inv.Accounts, tokenized)
	if err != nil {
		return err
	}
	args, err := decodeCreateAttestation(raw)
	if err != nil {
		return err
	}

	var (
		cred   *state.Credential
		schema *state.Schema
	)
	checks := []Check{
		signerCheck("ATTEST-SIG-001", "payer", a.payer),
		signerCheck("ATTEST-SIG-002", "signer", a.signer),
		ownedCheck("ATTEST-OWN-001", "credential", a.credential, p.id),
		ownedCheck("ATTEST-OWN-002", "schema", a.schema, p.id),
		uninitializedCheck("ATTEST-OWN-004", "attestation", a.attestation),
		writableCheck("ATTEST-MUT-001", "payer", a.payer),
		writableCheck("ATTEST-MUT-004", "attestation", a.attestation),
		distinctCheck("ATTEST-ACCT-002", a.payer, a.attestation),
		systemCheck(a.system),
		eventAuthorityCheck(a.eventAuthority),
		programCheck(a.program, p.id),
		loadCredential(a.credential, &cred),
		loadSchema(a.schema, &schema),
		memberCheck(a.signer, &cred),
		schemaBindingCheck(a.credential, &schema),
		credentialDerivedCheck(p.id, a.credential, &cred),
		schemaDerivedCheck(p.id, a.schema, &schema),
	}
	if tokenized {
		checks = append(checks, Check{ID: "ATTEST-BIND-006", Apply: func() error {
			if a.token.Key.IsZero() {
				return newError(KindBinding, "ATTEST-BIND-006", "token reference is the default address")
			}
			return nil
		}}, Check{ID: "ATTEST-BIND-007", Apply: func() error {
			if a.token.Key == a.attestation.Key || a.token.Owner == p.id {
				return newError(KindBinding, "ATTEST-BIND-007", fmt.Sprintf("token reference %s is a registry account", a.token.Key))
			}
			return nil
		}})
	}
	checks = append(checks,
		Check{ID: "ATTEST-SCH-001", Apply: func() error {
			if schema.IsPaused {
				return newError(KindBusinessRule, "ATTEST-SCH-001", "schema is paused")
			}
			return nil
		}},
		expiryCheck(args.Expiry, inv.Env.Now()),
		Check{ID: "ATTEST-LAYOUT-001", Apply: func() error {
			if err := layout.Validate(schema.Layout, args.Data); err != nil {
				return wrapError(KindBusinessRule, "ATTEST-LAYOUT-001", "data does not conform to schema layout", err)
			}
			return nil
		}},
		Check{ID: "ATTEST-DRV-003", Apply: func() error {
			want, err := address.AttestationAddress(p.id, a.credential.Key, a.schema.Key, args.Nonce)
			if err != nil {
				return wrapError(KindOwnership, "ATTEST-DRV-003", "derive attestation address", err)
			}
			if want != a.attestation.Key {
				return newError(KindOwnership, "ATTEST-DRV-003", "attestation account does not match derived address")
			}
			return nil
		}},
	)
	if err := runChecks(checks); err != nil {
		return err
	}

	att := &state.Attestation{
		Nonce:      args.Nonce,
		Credential: a.credential.Key,
		Schema:     a.schema.Key,
		Data:       args.Data,
		Signer:     a.signer.Key,
		Expiry:     args.Expiry,
	}
	if tokenized {
		att.TokenAccount = a.token.Key
	}
	data, err := att.MarshalBinary()
	if err != nil {
		return hostError("ATTEST-INTERNAL-002", "encode attestation", err)
	}

	if p.createEvents {
		if err := p.emit(inv.Env, a.eventAuthority, audit.KindCreate, att, a.attestation.Key, a.signer.Key); err != nil {
			return err
		}
	}
	seeds := address.AttestationSeeds(a.credential.Key, a.schema.Key, args.Nonce)
	if err := inv.Env.CreateAccount(a.payer, a.attestation, len(data), p.id, seeds); err != nil {
		return hostError("ATTEST-HOST-001", "allocate attestation", err)
	}
	return write(a.attestation, data)
}

// tokenCheck requires the supplied token account to match the stored binding
// exactly: both present and equal, or both absent.
func tokenCheck(token *ledger.AccountInfo, att **state.Attestation) Check {
	return Check{ID: "ATTEST-BIND-003", Apply: func() error {
		stored := (*att).TokenAccount
		switch {
		case token == nil && stored.IsZero():
			return nil
		case token == nil:
			return newError(KindBinding, "ATTEST-BIND-004", "tokenized attestation closed without its token account")
		case stored.IsZero():
			return newError(KindBinding, "ATTEST-BIND-005", "token account supplied for a non-tokenized attestation")
		case token.Key != stored:
			return newError(KindBinding, "ATTEST-BIND-003", fmt.Sprintf("token account %s does not match %s", token.Key, stored))
		}
		return nil
	}}
}

func (p *Processor) closeAttestation(inv *ledger.Invocation, raw []byte) error {
	a, err := parseCloseAttestationAccounts(inv.Accounts)
	if err != nil {
		return err
	}
	if err := decodeNoArgs(raw); err != nil {
		return err
	}

	var (
		cred     *state.Credential
		att      *state.Attestation
		proceeds uint64
	)
	err = runChecks([]Check{
		signerCheck("ATTEST-SIG-002", "signer", a.signer),
		ownedCheck("ATTEST-OWN-001", "credential", a.credential, p.id),
		ownedCheck("ATTEST-OWN-003", "attestation", a.attestation, p.id),
		writableCheck("ATTEST-MUT-001", "payer", a.payer),
		writableCheck("ATTEST-MUT-004", "attestation", a.attestation),
		distinctCheck("ATTEST-ACCT-002", a.payer, a.attestation),
		eventAuthorityCheck(a.eventAuthority),
		systemCheck(a.system),
		programCheck(a.program, p.id),
		loadCredential(a.credential, &cred),
		loadAttestation(a.attestation, &att),
		memberCheck(a.signer, &cred),
		{ID: "ATTEST-BIND-002", Apply: func() error {
			if att.Credential != a.credential.Key {
				return newError(KindBinding, "ATTEST-BIND-002", fmt.Sprintf("attestation belongs to credential %s, not %s", att.Credential, a.credential.Key))
			}
			return nil
		}},
		credentialDerivedCheck(p.id, a.credential, &cred),
		{ID: "ATTEST-DRV-003", Apply: func() error {
			want, err := address.AttestationAddress(p.id, att.Credential, att.Schema, att.Nonce)
			if err != nil {
				return wrapError(KindOwnership, "ATTEST-DRV-003", "derive attestation address", err)
			}
			if want != a.attestation.Key {
				return newError(KindOwnership, "ATTEST-DRV-003", "attestation account does not match derived address")
			}
			return nil
		}},
		tokenCheck(a.token, &att),
		{ID: "ATTEST-ARITH-001", Apply: func() error {
			sum, carry := bits.Add64(a.payer.Lamports, a.attestation.Lamports, 0)
			if carry != 0 {
				return newError(KindArithmetic, "ATTEST-ARITH-001", "payer balance overflow")
			}
			proceeds = sum
			return nil
		}},
	})
	if err != nil {
		return err
	}

	if err := p.emit(inv.Env, a.eventAuthority, audit.KindClose, att, a.attestation.Key, a.signer.Key); err != nil {
		return err
	}
	a.payer.Lamports = proceeds
	a.attestation.Lamports = 0
	a.attestation.Data = nil
	a.attestation.Owner = address.SystemProgramID
	return nil
}

func (p *Processor) emit(env ledger.Env, authority *ledger.AccountInfo, kind audit.Kind, att *state.Attestation, key, signer address.Address) error {
	ev := &audit.Event{
		Kind:        kind,
		Program:     p.id,
		Credential:  att.Credential,
		Schema:      att.Schema,
		Attestation: key,
		Signer:      signer,
		Payload:     att.Data,
	}
	record, err := ev.MarshalBinary()
	if err != nil {
		return wrapError(KindInternal, "ATTEST-EVT-001", "encode audit event", err)
	}
	if err := env.EmitEvent(authority, record); err != nil {
		return wrapError(KindInternal, "ATTEST-EVT-001", "emit audit event", err)
	}
	return nil
}

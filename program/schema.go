package program

import (
	"fmt"

	"xdao.co/attest/address"
	"xdao.co/attest/layout"
	"xdao.co/attest/ledger"
	"xdao.co/attest/state"
)

func schemaDefinitionCheck(fieldNames []string, l layout.Layout) Check {
	return Check{ID: "ATTEST-ARGS-005", Apply: func() error {
		if err := l.Check(); err != nil {
			return wrapError(KindMalformed, "ATTEST-ARGS-005", "invalid layout", err)
		}
		if len(fieldNames) != len(l) {
			return newError(KindMalformed, "ATTEST-ARGS-005", fmt.Sprintf("layout has %d fields, %d names", len(l), len(fieldNames)))
		}
		return nil
	}}
}

func (p *Processor) createSchema(inv *ledger.Invocation, raw []byte) error {
	a, err := parseCreateSchemaAccounts(inv.Accounts)
	if err != nil {
		return err
	}
	args, err := decodeCreateSchema(raw)
	if err != nil {
		return err
	}

	var cred *state.Credential
	err = runChecks([]Check{
		signerCheck("ATTEST-SIG-001", "payer", a.payer),
		signerCheck("ATTEST-SIG-002", "authority", a.authority),
		ownedCheck("ATTEST-OWN-001", "credential", a.credential, p.id),
		uninitializedCheck("ATTEST-OWN-004", "schema", a.schema),
		writableCheck("ATTEST-MUT-001", "payer", a.payer),
		writableCheck("ATTEST-MUT-003", "schema", a.schema),
		distinctCheck("ATTEST-ACCT-002", a.payer, a.schema),
		systemCheck(a.system),
		loadCredential(a.credential, &cred),
		memberCheck(a.authority, &cred),
		credentialDerivedCheck(p.id, a.credential, &cred),
		validNameCheck(args.Name),
		schemaDefinitionCheck(args.FieldNames, args.Layout),
		{ID: "ATTEST-DRV-002", Apply: func() error {
			want, err := address.SchemaAddress(p.id, a.credential.Key, args.Name, FirstSchemaVersion)
			if err != nil {
				return wrapError(KindOwnership, "ATTEST-DRV-002", "derive schema address", err)
			}
			if want != a.schema.Key {
				return newError(KindOwnership, "ATTEST-DRV-002", "schema account does not match derived address")
			}
			return nil
		}},
	})
	if err != nil {
		return err
	}

	schema := &state.Schema{
		Credential:  a.credential.Key,
		Name:        args.Name,
		Version:     FirstSchemaVersion,
		Description: args.Description,
		FieldNames:  args.FieldNames,
		Layout:      args.Layout,
	}
	data, err := schema.MarshalBinary()
	if err != nil {
		return hostError("ATTEST-INTERNAL-002", "encode schema", err)
	}
	seeds := address.SchemaSeeds(a.credential.Key, args.Name, FirstSchemaVersion)
	if err := inv.Env.CreateAccount(a.payer, a.schema, len(data), p.id, seeds); err != nil {
		return hostError("ATTEST-HOST-001", "allocate schema", err)
	}
	return write(a.schema, data)
}

func (p *Processor) changeSchemaStatus(inv *ledger.Invocation, raw []byte) error {
	a, err := parseChangeSchemaStatusAccounts(inv.Accounts)
	if err != nil {
		return err
	}
	args, err := decodeChangeSchemaStatus(raw)
	if err != nil {
		return err
	}

	var (
		cred   *state.Credential
		schema *state.Schema
	)
	err = runChecks([]Check{
		signerCheck("ATTEST-SIG-002", "authority", a.authority),
		ownedCheck("ATTEST-OWN-001", "credential", a.credential, p.id),
		ownedCheck("ATTEST-OWN-002", "schema", a.schema, p.id),
		writableCheck("ATTEST-MUT-003", "schema", a.schema),
		loadCredential(a.credential, &cred),
		loadSchema(a.schema, &schema),
		authorityCheck(a.authority, &cred),
		credentialDerivedCheck(p.id, a.credential, &cred),
		schemaBindingCheck(a.credential, &schema),
		schemaDerivedCheck(p.id, a.schema, &schema),
	})
	if err != nil {
		return err
	}

	schema.IsPaused = args.Paused
	data, err := schema.MarshalBinary()
	if err != nil {
		return hostError("ATTEST-INTERNAL-002", "encode schema", err)
	}
	return write(a.schema, data)
}

func (p *Processor) changeSchemaDescription(inv *ledger.Invocation, raw []byte) error {
	a, err := parseChangeSchemaDescriptionAccounts(inv.Accounts)
	if err != nil {
		return err
	}
	args, err := decodeChangeSchemaDescription(raw)
	if err != nil {
		return err
	}

	var (
		cred   *state.Credential
		schema *state.Schema
	)
	err = runChecks([]Check{
		signerCheck("ATTEST-SIG-001", "payer", a.payer),
		signerCheck("ATTEST-SIG-002", "authority", a.authority),
		ownedCheck("ATTEST-OWN-001", "credential", a.credential, p.id),
		ownedCheck("ATTEST-OWN-002", "schema", a.schema, p.id),
		writableCheck("ATTEST-MUT-001", "payer", a.payer),
		writableCheck("ATTEST-MUT-003", "schema", a.schema),
		distinctCheck("ATTEST-ACCT-002", a.payer, a.schema),
		systemCheck(a.system),
		loadCredential(a.credential, &cred),
		loadSchema(a.schema, &schema),
		authorityCheck(a.authority, &cred),
		credentialDerivedCheck(p.id, a.credential, &cred),
		schemaBindingCheck(a.credential, &schema),
		schemaDerivedCheck(p.id, a.schema, &schema),
	})
	if err != nil {
		return err
	}

	schema.Description = args.Description
	data, err := schema.MarshalBinary()
	if err != nil {
		return hostError("ATTEST-INTERNAL-002", "encode schema", err)
	}
	if err := inv.Env.Resize(a.payer, a.schema, len(data)); err != nil {
		return hostError("ATTEST-HOST-002", "resize schema", err)
	}
	return write(a.schema, data)
}

// changeSchemaVersion creates version+1 of a schema with a new layout. The
// existing version stays in place and usable.
func (p *Processor) changeSchemaVersion(inv *ledger.Invocation, raw []byte) error {
	a, err := parseChangeSchemaVersionAccounts(inv.Accounts)
	if err != nil {
		return err
	}
	args, err := decodeChangeSchemaVersion(raw)
	if err != nil {
		return err
	}

	var (
		cred     *state.Credential
		existing *state.Schema
	)
	err = runChecks([]Check{
		signerCheck("ATTEST-SIG-001", "payer", a.payer),
		signerCheck("ATTEST-SIG-002", "authority", a.authority),
		ownedCheck("ATTEST-OWN-001", "credential", a.credential, p.id),
		ownedCheck("ATTEST-OWN-002", "schema", a.existing, p.id),
		uninitializedCheck("ATTEST-OWN-004", "new schema", a.schema),
		writableCheck("ATTEST-MUT-001", "payer", a.payer),
		writableCheck("ATTEST-MUT-003", "new schema", a.schema),
		distinctCheck("ATTEST-ACCT-002", a.payer, a.schema),
		systemCheck(a.system),
		loadCredential(a.credential, &cred),
		loadSchema(a.existing, &existing),
		authorityCheck(a.authority, &cred),
		credentialDerivedCheck(p.id, a.credential, &cred),
		schemaBindingCheck(a.credential, &existing),
		schemaDerivedCheck(p.id, a.existing, &existing),
		{ID: "ATTEST-ARITH-002", Apply: func() error {
			if existing.Version == ^uint8(0) {
				return newError(KindArithmetic, "ATTEST-ARITH-002", "schema version overflow")
			}
			return nil
		}},
		schemaDefinitionCheck(args.FieldNames, args.Layout),
		{ID: "ATTEST-DRV-004", Apply: func() error {
			want, err := address.SchemaAddress(p.id, a.credential.Key, existing.Name, existing.Version+1)
			if err != nil {
				return wrapError(KindOwnership, "ATTEST-DRV-004", "derive schema address", err)
			}
			if want != a.schema.Key {
				return newError(KindOwnership, "ATTEST-DRV-004", "new schema account does not match derived address")
			}
			return nil
		}},
	})
	if err != nil {
		return err
	}

	next := &state.Schema{
		Credential:  a.credential.Key,
		Name:        existing.Name,
		Version:     existing.Version + 1,
		Description: existing.Description,
		FieldNames:  args.FieldNames,
		Layout:      args.Layout,
	}
	data, err := next.MarshalBinary()
	if err != nil {
		return hostError("ATTEST-INTERNAL-002", "encode schema", err)
	}
	seeds := address.SchemaSeeds(a.credential.Key, next.Name, next.Version)
	if err := inv.Env.CreateAccount(a.payer, a.schema, len(data), p.id, seeds); err != nil {
		return hostError("ATTEST-HOST-001", "allocate schema", err)
	}
	return write(a.schema, data)
}

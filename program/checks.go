package program

import (
	"fmt"

	"xdao.co/attest/address"
	"xdao.co/attest/ledger"
	"xdao.co/attest/state"
)

// Check is an explicit, named admission check.
//
// ID must be stable across versions. The error Apply returns carries ID as its
// RuleID, or a sibling RuleID when one check separates several outcomes.
// Apply must not mutate accounts; it may record decoded entities for later
// checks in the same list.
type Check struct {
	ID    string
	Apply func() error
}

// runChecks evaluates checks in order and returns the first failure. Every
// operation lists its checks as: signers, ownership, writability, plumbing
// identities, decoding, then domain rules.
func runChecks(checks []Check) error {
	for _, c := range checks {
		if c.Apply == nil {
			return newError(KindInternal, "ATTEST-INTERNAL-001", "nil check Apply")
		}
		if err := c.Apply(); err != nil {
			return err
		}
	}
	return nil
}

func signerCheck(id, role string, a *ledger.AccountInfo) Check {
	return Check{ID: id, Apply: func() error {
		if !a.IsSigner {
			return newError(KindAuthorization, id, fmt.Sprintf("%s %s did not sign", role, a.Key))
		}
		return nil
	}}
}

func ownedCheck(id, role string, a *ledger.AccountInfo, program address.Address) Check {
	return Check{ID: id, Apply: func() error {
		if a.Owner != program {
			return newError(KindOwnership, id, fmt.Sprintf("%s %s not owned by registry", role, a.Key))
		}
		return nil
	}}
}

// uninitializedCheck requires an account no program has claimed. Lamports
// sent to the address beforehand do not count as initialization.
func uninitializedCheck(id, role string, a *ledger.AccountInfo) Check {
	return Check{ID: id, Apply: func() error {
		if !a.IsUnallocated() {
			return newError(KindOwnership, id, fmt.Sprintf("%s %s already initialized", role, a.Key))
		}
		return nil
	}}
}

func writableCheck(id, role string, a *ledger.AccountInfo) Check {
	return Check{ID: id, Apply: func() error {
		if !a.IsWritable {
			return newError(KindOwnership, id, fmt.Sprintf("%s %s not writable", role, a.Key))
		}
		return nil
	}}
}

func identityCheck(id, role string, a *ledger.AccountInfo, want address.Address) Check {
	return Check{ID: id, Apply: func() error {
		if a.Key != want {
			return newError(KindAuthorization, id, fmt.Sprintf("%s account is %s, want %s", role, a.Key, want))
		}
		return nil
	}}
}

func systemCheck(a *ledger.AccountInfo) Check {
	return identityCheck("ATTEST-SYS-001", "system program", a, address.SystemProgramID)
}

func eventAuthorityCheck(a *ledger.AccountInfo) Check {
	return identityCheck("ATTEST-SYS-002", "event authority", a, address.EventAuthority())
}

func programCheck(a *ledger.AccountInfo, program address.Address) Check {
	return identityCheck("ATTEST-SYS-003", "program", a, program)
}

func distinctCheck(id string, a, b *ledger.AccountInfo) Check {
	return Check{ID: id, Apply: func() error {
		if a.Key == b.Key {
			return newError(KindMalformed, id, fmt.Sprintf("account %s supplied in two roles", a.Key))
		}
		return nil
	}}
}

func loadCredential(a *ledger.AccountInfo, out **state.Credential) Check {
	return Check{ID: "ATTEST-DATA-001", Apply: func() error {
		c, err := state.UnmarshalCredential(a.Data)
		if err != nil {
			return wrapError(KindStructural, "ATTEST-DATA-001", fmt.Sprintf("credential %s", a.Key), err)
		}
		*out = c
		return nil
	}}
}

func loadSchema(a *ledger.AccountInfo, out **state.Schema) Check {
	return Check{ID: "ATTEST-DATA-002", Apply: func() error {
		s, err := state.UnmarshalSchema(a.Data)
		if err != nil {
			return wrapError(KindStructural, "ATTEST-DATA-002", fmt.Sprintf("schema %s", a.Key), err)
		}
		*out = s
		return nil
	}}
}

func loadAttestation(a *ledger.AccountInfo, out **state.Attestation) Check {
	return Check{ID: "ATTEST-DATA-003", Apply: func() error {
		at, err := state.UnmarshalAttestation(a.Data)
		if err != nil {
			return wrapError(KindStructural, "ATTEST-DATA-003", fmt.Sprintf("attestation %s", a.Key), err)
		}
		*out = at
		return nil
	}}
}

// memberCheck enforces dual authority: the signer signed (checked earlier)
// and belongs to the credential.
func memberCheck(signer *ledger.AccountInfo, cred **state.Credential) Check {
	return Check{ID: "ATTEST-AUTH-001", Apply: func() error {
		if !(*cred).IsAuthorized(signer.Key) {
			return newError(KindAuthorization, "ATTEST-AUTH-001", fmt.Sprintf("signer %s not authorized by credential", signer.Key))
		}
		return nil
	}}
}

func authorityCheck(authority *ledger.AccountInfo, cred **state.Credential) Check {
	return Check{ID: "ATTEST-AUTH-002", Apply: func() error {
		if (*cred).Authority != authority.Key {
			return newError(KindAuthorization, "ATTEST-AUTH-002", fmt.Sprintf("%s is not the credential authority", authority.Key))
		}
		return nil
	}}
}

// credentialDerivedCheck re-derives the credential address from its stored
// authority and name.
func credentialDerivedCheck(program address.Address, a *ledger.AccountInfo, cred **state.Credential) Check {
	return Check{ID: "ATTEST-DRV-001", Apply: func() error {
		want, err := address.CredentialAddress(program, (*cred).Authority, (*cred).Name)
		if err != nil {
			return wrapError(KindOwnership, "ATTEST-DRV-001", "derive credential address", err)
		}
		if want != a.Key {
			return newError(KindOwnership, "ATTEST-DRV-001", fmt.Sprintf("credential %s does not match derived %s", a.Key, want))
		}
		return nil
	}}
}

func schemaDerivedCheck(program address.Address, a *ledger.AccountInfo, schema **state.Schema) Check {
	return Check{ID: "ATTEST-DRV-002", Apply: func() error {
		s := *schema
		want, err := address.SchemaAddress(program, s.Credential, s.Name, s.Version)
		if err != nil {
			return wrapError(KindOwnership, "ATTEST-DRV-002", "derive schema address", err)
		}
		if want != a.Key {
			return newError(KindOwnership, "ATTEST-DRV-002", fmt.Sprintf("schema %s does not match derived %s", a.Key, want))
		}
		return nil
	}}
}

// schemaBindingCheck requires the schema to name the supplied credential.
func schemaBindingCheck(credential *ledger.AccountInfo, schema **state.Schema) Check {
	return Check{ID: "ATTEST-BIND-001", Apply: func() error {
		if (*schema).Credential != credential.Key {
			return newError(KindBinding, "ATTEST-BIND-001", fmt.Sprintf("schema belongs to credential %s, not %s", (*schema).Credential, credential.Key))
		}
		return nil
	}}
}

package program

import (
	"xdao.co/attest/address"
	"xdao.co/attest/ledger"
	"xdao.co/attest/state"
)

func validNameCheck(name string) Check {
	return Check{ID: "ATTEST-ARGS-003", Apply: func() error {
		if err := state.CheckName(name); err != nil {
			return wrapError(KindMalformed, "ATTEST-ARGS-003", "invalid name", err)
		}
		return nil
	}}
}

func validSignersCheck(signers []address.Address) Check {
	return Check{ID: "ATTEST-ARGS-004", Apply: func() error {
		if err := state.CheckSigners(signers); err != nil {
			return wrapError(KindMalformed, "ATTEST-ARGS-004", "invalid signer set", err)
		}
		return nil
	}}
}

func (p *Processor) createCredential(inv *ledger.Invocation, raw []byte) error {
	a, err := parseCreateCredentialAccounts(inv.Accounts)
	if err != nil {
		return err
	}
	args, err := decodeCreateCredential(raw)
	if err != nil {
		return err
	}

	err = runChecks([]Check{
		signerCheck("ATTEST-SIG-001", "payer", a.payer),
		signerCheck("ATTEST-SIG-002", "authority", a.authority),
		uninitializedCheck("ATTEST-OWN-004", "credential", a.credential),
		writableCheck("ATTEST-MUT-001", "payer", a.payer),
		writableCheck("ATTEST-MUT-002", "credential", a.credential),
		distinctCheck("ATTEST-ACCT-002", a.payer, a.credential),
		systemCheck(a.system),
		validNameCheck(args.Name),
		validSignersCheck(args.Signers),
		{ID: "ATTEST-DRV-001", Apply: func() error {
			want, err := address.CredentialAddress(p.id, a.authority.Key, args.Name)
			if err != nil {
				return wrapError(KindOwnership, "ATTEST-DRV-001", "derive credential address", err)
			}
			if want != a.credential.Key {
				return newError(KindOwnership, "ATTEST-DRV-001", "credential account does not match derived address")
			}
			return nil
		}},
	})
	if err != nil {
		return err
	}

	cred := &state.Credential{Authority: a.authority.Key, Name: args.Name, AuthorizedSigners: args.Signers}
	data, err := cred.MarshalBinary()
	if err != nil {
		return hostError("ATTEST-INTERNAL-002", "encode credential", err)
	}
	seeds := address.CredentialSeeds(a.authority.Key, args.Name)
	if err := inv.Env.CreateAccount(a.payer, a.credential, len(data), p.id, seeds); err != nil {
		return hostError("ATTEST-HOST-001", "allocate credential", err)
	}
	return write(a.credential, data)
}

func (p *Processor) changeAuthorizedSigners(inv *ledger.Invocation, raw []byte) error {
	a, err := parseChangeAuthorizedSignersAccounts(inv.Accounts)
	if err != nil {
		return err
	}
	args, err := decodeChangeAuthorizedSigners(raw)
	if err != nil {
		return err
	}

	var cred *state.Credential
	err = runChecks([]Check{
		signerCheck("ATTEST-SIG-001", "payer", a.payer),
		signerCheck("ATTEST-SIG-002", "authority", a.authority),
		ownedCheck("ATTEST-OWN-001", "credential", a.credential, p.id),
		writableCheck("ATTEST-MUT-001", "payer", a.payer),
		writableCheck("ATTEST-MUT-002", "credential", a.credential),
		distinctCheck("ATTEST-ACCT-002", a.payer, a.credential),
		systemCheck(a.system),
		loadCredential(a.credential, &cred),
		authorityCheck(a.authority, &cred),
		credentialDerivedCheck(p.id, a.credential, &cred),
		validSignersCheck(args.Signers),
	})
	if err != nil {
		return err
	}

	cred.AuthorizedSigners = args.Signers
	data, err := cred.MarshalBinary()
	if err != nil {
		return hostError("ATTEST-INTERNAL-002", "encode credential", err)
	}
	if err := inv.Env.Resize(a.payer, a.credential, len(data)); err != nil {
		return hostError("ATTEST-HOST-002", "resize credential", err)
	}
	return write(a.credential, data)
}

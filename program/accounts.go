package program

import (
	"fmt"

	"xdao.co/attest/address"
	"xdao.co/attest/ledger"
)

// Typed account views, one per operation. Positions are fixed; parse rejects
// any other count before a single account is inspected.

type createCredentialAccounts struct {
	payer, credential, authority, system *ledger.AccountInfo
}

type createSchemaAccounts struct {
	payer, authority, credential, schema, system *ledger.AccountInfo
}

type changeSchemaStatusAccounts struct {
	authority, credential, schema *ledger.AccountInfo
}

type changeAuthorizedSignersAccounts struct {
	payer, authority, credential, system *ledger.AccountInfo
}

type changeSchemaDescriptionAccounts struct {
	payer, authority, credential, schema, system *ledger.AccountInfo
}

type changeSchemaVersionAccounts struct {
	payer, authority, credential, existing, schema, system *ledger.AccountInfo
}

type createAttestationAccounts struct {
	payer, signer, credential, schema, attestation, system, eventAuthority, program *ledger.AccountInfo
	// token is set only for the tokenized variant.
	token *ledger.AccountInfo
}

type closeAttestationAccounts struct {
	payer, signer, credential, attestation, eventAuthority, system, program *ledger.AccountInfo
	// token is nil when the caller supplied no token reference.
	token *ledger.AccountInfo
}

func wrongCount(got int, want string) error {
	return newError(KindMalformed, "ATTEST-ACCT-001", fmt.Sprintf("expected %s accounts, got %d", want, got))
}

func parseCreateCredentialAccounts(a []*ledger.AccountInfo) (*createCredentialAccounts, error) {
	if len(a) != 4 {
		return nil, wrongCount(len(a), "4")
	}
	return &createCredentialAccounts{payer: a[0], credential: a[1], authority: a[2], system: a[3]}, nil
}

func parseCreateSchemaAccounts(a []*ledger.AccountInfo) (*createSchemaAccounts, error) {
	if len(a) != 5 {
		return nil, wrongCount(len(a), "5")
	}
	return &createSchemaAccounts{payer: a[0], authority: a[1], credential: a[2], schema: a[3], system: a[4]}, nil
}

func parseChangeSchemaStatusAccounts(a []*ledger.AccountInfo) (*changeSchemaStatusAccounts, error) {
	if len(a) != 3 {
		return nil, wrongCount(len(a), "3")
	}
	return &changeSchemaStatusAccounts{authority: a[0], credential: a[1], schema: a[2]}, nil
}

func parseChangeAuthorizedSignersAccounts(a []*ledger.AccountInfo) (*changeAuthorizedSignersAccounts, error) {
	if len(a) != 4 {
		return nil, wrongCount(len(a), "4")
	}
	return &changeAuthorizedSignersAccounts{payer: a[0], authority: a[1], credential: a[2], system: a[3]}, nil
}

func parseChangeSchemaDescriptionAccounts(a []*ledger.AccountInfo) (*changeSchemaDescriptionAccounts, error) {
	if len(a) != 5 {
		return nil, wrongCount(len(a), "5")
	}
	return &changeSchemaDescriptionAccounts{payer: a[0], authority: a[1], credential: a[2], schema: a[3], system: a[4]}, nil
}

func parseChangeSchemaVersionAccounts(a []*ledger.AccountInfo) (*changeSchemaVersionAccounts, error) {
	if len(a) != 6 {
		return nil, wrongCount(len(a), "6")
	}
	return &changeSchemaVersionAccounts{
		payer: a[0], authority: a[1], credential: a[2], existing: a[3], schema: a[4], system: a[5],
	}, nil
}

func parseCreateAttestationAccounts(a []*ledger.AccountInfo, tokenized bool) (*createAttestationAccounts, error) {
	want := 8
	if tokenized {
		want = 9
	}
	if len(a) != want {
		return nil, wrongCount(len(a), fmt.Sprint(want))
	}
	out := &createAttestationAccounts{
		payer: a[0], signer: a[1], credential: a[2], schema: a[3], attestation: a[4],
		system: a[5], eventAuthority: a[6], program: a[7],
	}
	if tokenized {
		out.token = a[8]
	}
	return out, nil
}

func parseCloseAttestationAccounts(a []*ledger.AccountInfo) (*closeAttestationAccounts, error) {
	if len(a) != 7 && len(a) != 8 {
		return nil, wrongCount(len(a), "7 or 8")
	}
	out := &closeAttestationAccounts{
		payer: a[0], signer: a[1], credential: a[2], attestation: a[3],
		eventAuthority: a[4], system: a[5], program: a[6],
	}
	if len(a) == 8 {
		out.token = a[7]
	}
	return out, nil
}

// Client-side account lists. Builders fill in the system program, event
// authority and program accounts.

type CreateCredentialAccounts struct {
	Payer, Credential, Authority address.Address
}

type CreateSchemaAccounts struct {
	Payer, Authority, Credential, Schema address.Address
}

type ChangeSchemaStatusAccounts struct {
	Authority, Credential, Schema address.Address
}

type ChangeAuthorizedSignersAccounts struct {
	Payer, Authority, Credential address.Address
}

type ChangeSchemaDescriptionAccounts struct {
	Payer, Authority, Credential, Schema address.Address
}

type ChangeSchemaVersionAccounts struct {
	Payer, Authority, Credential, Existing, Schema address.Address
}

type CreateAttestationAccounts struct {
	Payer, Signer, Credential, Schema, Attestation address.Address
}

// CloseAttestationAccounts names the accounts of a close. A zero Token omits
// the token account from the instruction.
type CloseAttestationAccounts struct {
	Payer, Signer, Credential, Attestation, Token address.Address
}

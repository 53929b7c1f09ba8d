package program

import (
	"xdao.co/attest/address"
	"xdao.co/attest/ledger"
)

func instruction(data []byte, metas ...ledger.AccountMeta) ledger.Instruction {
	return ledger.Instruction{ProgramID: address.ProgramID, Accounts: metas, Data: data}
}

func CreateCredential(a CreateCredentialAccounts, args CreateCredentialArgs) ledger.Instruction {
	return instruction(args.encode(),
		ledger.WritableSigner(a.Payer),
		ledger.Writable(a.Credential),
		ledger.ReadonlySigner(a.Authority),
		ledger.Readonly(address.SystemProgramID),
	)
}

func CreateSchema(a CreateSchemaAccounts, args CreateSchemaArgs) ledger.Instruction {
	return instruction(args.encode(),
		ledger.WritableSigner(a.Payer),
		ledger.ReadonlySigner(a.Authority),
		ledger.Readonly(a.Credential),
		ledger.Writable(a.Schema),
		ledger.Readonly(address.SystemProgramID),
	)
}

func ChangeSchemaStatus(a ChangeSchemaStatusAccounts, args ChangeSchemaStatusArgs) ledger.Instruction {
	return instruction(args.encode(),
		ledger.ReadonlySigner(a.Authority),
		ledger.Readonly(a.Credential),
		ledger.Writable(a.Schema),
	)
}

func ChangeAuthorizedSigners(a ChangeAuthorizedSignersAccounts, args ChangeAuthorizedSignersArgs) ledger.Instruction {
	return instruction(args.encode(),
		ledger.WritableSigner(a.Payer),
		ledger.ReadonlySigner(a.Authority),
		ledger.Writable(a.Credential),
		ledger.Readonly(address.SystemProgramID),
	)
}

func ChangeSchemaDescription(a ChangeSchemaDescriptionAccounts, args ChangeSchemaDescriptionArgs) ledger.Instruction {
	return instruction(args.encode(),
		ledger.WritableSigner(a.Payer),
		ledger.ReadonlySigner(a.Authority),
		ledger.Readonly(a.Credential),
		ledger.Writable(a.Schema),
		ledger.Readonly(address.SystemProgramID),
	)
}

func ChangeSchemaVersion(a ChangeSchemaVersionAccounts, args ChangeSchemaVersionArgs) ledger.Instruction {
	return instruction(args.encode(),
		ledger.WritableSigner(a.Payer),
		ledger.ReadonlySigner(a.Authority),
		ledger.Readonly(a.Credential),
		ledger.Readonly(a.Existing),
		ledger.Writable(a.Schema),
		ledger.Readonly(address.SystemProgramID),
	)
}

func createAttestationMetas(a CreateAttestationAccounts) []ledger.AccountMeta {
	return []ledger.AccountMeta{
		ledger.WritableSigner(a.Payer),
		ledger.ReadonlySigner(a.Signer),
		ledger.Readonly(a.Credential),
		ledger.Readonly(a.Schema),
		ledger.Writable(a.Attestation),
		ledger.Readonly(address.SystemProgramID),
		ledger.Readonly(address.EventAuthority()),
		ledger.Readonly(address.ProgramID),
	}
}

func CreateAttestation(a CreateAttestationAccounts, args CreateAttestationArgs) ledger.Instruction {
	return instruction(args.encode(OpCreateAttestation), createAttestationMetas(a)...)
}

// CreateTokenizedAttestation binds the new attestation to token.
func CreateTokenizedAttestation(a CreateAttestationAccounts, token address.Address, args CreateAttestationArgs) ledger.Instruction {
	metas := append(createAttestationMetas(a), ledger.Readonly(token))
	return instruction(args.encode(OpCreateTokenizedAttestation), metas...)
}

func CloseAttestation(a CloseAttestationAccounts) ledger.Instruction {
	metas := []ledger.AccountMeta{
		ledger.Writable(a.Payer),
		ledger.ReadonlySigner(a.Signer),
		ledger.Readonly(a.Credential),
		ledger.Writable(a.Attestation),
		ledger.Readonly(address.EventAuthority()),
		ledger.Readonly(address.SystemProgramID),
		ledger.Readonly(address.ProgramID),
	}
	if !a.Token.IsZero() {
		metas = append(metas, ledger.Readonly(a.Token))
	}
	return instruction([]byte{byte(OpCloseAttestation)}, metas...)
}

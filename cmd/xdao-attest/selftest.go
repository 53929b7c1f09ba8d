package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"xdao.co/attest/address"
	"xdao.co/attest/config"
	"xdao.co/attest/keys"
	"xdao.co/attest/layout"
	"xdao.co/attest/ledger"
	"xdao.co/attest/program"
	"xdao.co/attest/storage/casregistry"
)

const selftestFunding = 1_000_000_000

func cmdSelftest(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("selftest", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var configPath string
	fs.StringVar(&configPath, "config", "", "Config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if configPath == "" {
		fmt.Fprintln(errOut, "missing --config")
		return 2
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	if err := selftest(context.Background(), cfg, out, errOut); err != nil {
		fmt.Fprintf(errOut, "selftest: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

// selftest runs one credential, schema, attestation and closure against the
// configured stores with fresh random keys, then persists the log head.
func selftest(ctx context.Context, cfg config.Config, out, errOut io.Writer) error {
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.Level()}))

	store, closeStore, err := cfg.OpenAccounts(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	events, closeEvents, err := cfg.Events.OpenLog(ctx, casregistry.UsageCLI)
	if err != nil {
		return err
	}
	defer closeEvents()

	l := ledger.New(store, ledger.WithLogger(logger), ledger.WithEventSink(events))
	if err := l.Register(program.New(program.WithLogger(logger), program.WithCreateEvents(cfg.EmitCreateEvents))); err != nil {
		return err
	}

	payer, err := keys.GenerateEd25519(rand.Reader)
	if err != nil {
		return err
	}
	authority, err := keys.GenerateEd25519(rand.Reader)
	if err != nil {
		return err
	}
	issuer, err := keys.GenerateDilithium3(rand.Reader)
	if err != nil {
		return err
	}
	if err := l.Airdrop(ctx, payer.Address(), selftestFunding); err != nil {
		return err
	}

	credential, err := address.CredentialAddress(address.ProgramID, authority.Address(), "SELFTEST")
	if err != nil {
		return err
	}
	schema, err := address.SchemaAddress(address.ProgramID, credential, "person", program.FirstSchemaVersion)
	if err != nil {
		return err
	}
	var nonce address.Address
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}
	attestation, err := address.AttestationAddress(address.ProgramID, credential, schema, nonce)
	if err != nil {
		return err
	}
	personLayout := layout.Layout{layout.String, layout.U8}
	data, err := layout.Encode(personLayout, []any{"alice", 30})
	if err != nil {
		return err
	}

	steps := []struct {
		name    string
		signers []keys.Signer
		ix      ledger.Instruction
	}{
		{"create credential", []keys.Signer{payer, authority}, program.CreateCredential(
			program.CreateCredentialAccounts{Payer: payer.Address(), Credential: credential, Authority: authority.Address()},
			program.CreateCredentialArgs{Name: "SELFTEST", Signers: []address.Address{issuer.Address()}},
		)},
		{"create schema", []keys.Signer{payer, authority}, program.CreateSchema(
			program.CreateSchemaAccounts{Payer: payer.Address(), Authority: authority.Address(), Credential: credential, Schema: schema},
			program.CreateSchemaArgs{Name: "person", Description: "selftest", FieldNames: []string{"name", "age"}, Layout: personLayout},
		)},
		{"create attestation", []keys.Signer{payer, issuer}, program.CreateAttestation(
			program.CreateAttestationAccounts{Payer: payer.Address(), Signer: issuer.Address(), Credential: credential, Schema: schema, Attestation: attestation},
			program.CreateAttestationArgs{Nonce: nonce, Data: data},
		)},
		{"close attestation", []keys.Signer{issuer}, program.CloseAttestation(
			program.CloseAttestationAccounts{Payer: payer.Address(), Signer: issuer.Address(), Credential: credential, Attestation: attestation},
		)},
	}
	for _, s := range steps {
		tx := ledger.NewTransaction(s.ix)
		if err := tx.Sign(s.signers...); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		rcpt, err := l.Execute(ctx, tx)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		_, _ = fmt.Fprintf(out, "%s tx %s\n", s.name, rcpt.TxID)
		for _, id := range rcpt.EventIDs {
			_, _ = fmt.Fprintf(out, "  event %s\n", id)
		}
	}

	if _, err := l.Account(ctx, attestation); err == nil {
		return fmt.Errorf("attestation %s still present after close", attestation)
	}
	if err := cfg.Events.SaveHead(events.Head()); err != nil {
		return fmt.Errorf("save head: %w", err)
	}
	_, _ = fmt.Fprintf(out, "head %s\n", events.Head())
	return nil
}

package main

import (
	"flag"
	"fmt"
	"io"
	"math"

	"xdao.co/attest/address"
)

func programHint() string { return address.ProgramID.String() }

func cmdAddress(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-attest address <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: credential, schema, attestation, event-authority")
		return 2
	}

	fs := flag.NewFlagSet("address "+args[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	var (
		program    addrFlag
		authority  addrFlag
		credential addrFlag
		schema     addrFlag
		nonce      addrFlag
		name       string
		version    uint
	)
	program.a = address.ProgramID
	fs.Var(&program, "program", "Registry program address")

	switch args[0] {
	case "credential":
		fs.Var(&authority, "authority", "Credential authority")
		fs.StringVar(&name, "name", "", "Credential name")
	case "schema":
		fs.Var(&credential, "credential", "Credential address")
		fs.StringVar(&name, "name", "", "Schema name")
		fs.UintVar(&version, "version", 1, "Schema version")
	case "attestation":
		fs.Var(&credential, "credential", "Credential address")
		fs.Var(&schema, "schema", "Schema address")
		fs.Var(&nonce, "nonce", "Attestation nonce")
	case "event-authority":
	default:
		fmt.Fprintf(errOut, "unknown address subcommand: %s\n", args[0])
		return 2
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(errOut, "unexpected arguments: %v\n", fs.Args())
		return 2
	}

	var (
		a   address.Address
		err error
	)
	switch args[0] {
	case "credential":
		if !authority.set || name == "" {
			fmt.Fprintln(errOut, "usage: xdao-attest address credential --authority <addr> --name <name>")
			return 2
		}
		a, err = address.CredentialAddress(program.a, authority.a, name)
	case "schema":
		if !credential.set || name == "" {
			fmt.Fprintln(errOut, "usage: xdao-attest address schema --credential <addr> --name <name> [--version <n>]")
			return 2
		}
		if version > math.MaxUint8 {
			fmt.Fprintf(errOut, "invalid --version: %d exceeds %d\n", version, math.MaxUint8)
			return 2
		}
		a, err = address.SchemaAddress(program.a, credential.a, name, uint8(version))
	case "attestation":
		if !credential.set || !schema.set || !nonce.set {
			fmt.Fprintln(errOut, "usage: xdao-attest address attestation --credential <addr> --schema <addr> --nonce <addr>")
			return 2
		}
		a, err = address.AttestationAddress(program.a, credential.a, schema.a, nonce.a)
	case "event-authority":
		a, err = address.Derive(program.a, address.KindEventAuthority)
	}
	if err != nil {
		fmt.Fprintf(errOut, "derive: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, a)
	return 0
}

// addrFlag parses a base58 address and records whether it was given.
type addrFlag struct {
	a   address.Address
	set bool
}

func (f *addrFlag) String() string {
	if f == nil {
		return ""
	}
	return f.a.String()
}

func (f *addrFlag) Set(s string) error {
	a, err := address.Parse(s)
	if err != nil {
		return err
	}
	f.a, f.set = a, true
	return nil
}

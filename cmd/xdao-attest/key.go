package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"xdao.co/attest/keys"
)

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 || args[0] != "derive" {
		fmt.Fprintln(errOut, "usage: xdao-attest key derive --seed-hex <64hex> --role <role>")
		return 2
	}
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var seedHex, role string
	fs.StringVar(&seedHex, "seed-hex", "", "Root ed25519 seed as 64 hex chars")
	fs.StringVar(&role, "role", "", "Signer role (letters, digits, '-', '_')")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if seedHex == "" || role == "" {
		fmt.Fprintln(errOut, "missing --seed-hex or --role")
		return 2
	}
	root, err := hex.DecodeString(seedHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", err)
		return 2
	}
	seed, err := keys.DeriveRoleSeed(root, role)
	if err != nil {
		fmt.Fprintf(errOut, "derive: %v\n", err)
		return 1
	}
	signer, err := keys.Ed25519FromSeed(seed)
	if err != nil {
		fmt.Fprintf(errOut, "derive: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, signer.Address())
	return 0
}

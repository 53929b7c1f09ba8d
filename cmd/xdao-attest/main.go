package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	_ "xdao.co/attest/storage/grpccas"
	_ "xdao.co/attest/storage/localfs"
	_ "xdao.co/attest/storage/memcas"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "address":
		return cmdAddress(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "layout":
		return cmdLayout(args[1:], out, errOut)
	case "events":
		return cmdEvents(args[1:], out, errOut)
	case "selftest":
		return cmdSelftest(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "xdao-attest: attestation registry tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  xdao-attest address credential --authority <addr> --name <name>")
	fmt.Fprintln(w, "  xdao-attest address schema --credential <addr> --name <name> [--version <n>]")
	fmt.Fprintln(w, "  xdao-attest address attestation --credential <addr> --schema <addr> --nonce <addr>")
	fmt.Fprintln(w, "  xdao-attest address event-authority")
	fmt.Fprintln(w, "  xdao-attest key derive --seed-hex <64hex> --role <role>")
	fmt.Fprintln(w, "  xdao-attest layout encode --layout <t,t,...> --value <v> [--value ...]")
	fmt.Fprintln(w, "  xdao-attest layout validate --layout <t,t,...> --data-hex <hex>")
	fmt.Fprintln(w, "  xdao-attest layout decode --layout <t,t,...> --data-hex <hex>")
	fmt.Fprintln(w, "  xdao-attest events list (--config <file> | --backend <name> [backend flags]) [--head <cid>]")
	fmt.Fprintln(w, "  xdao-attest events decode (--config <file> | --backend <name> [backend flags]) --cid <cid>")
	fmt.Fprintln(w, "  xdao-attest selftest --config <file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - addresses are base58; the registry program is "+programHint())
	fmt.Fprintln(w, "  - layout type names: u8..u128, i8..i128, bool, char, string, vec<T>, bytes32")
	fmt.Fprintln(w, "  - vec values are comma separated; vec<u8> and bytes32 take hex")
	fmt.Fprintln(w, "  - events list prints batches newest first")
}

// stringList collects a repeated flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

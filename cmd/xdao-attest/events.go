package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"

	"xdao.co/attest/audit"
	"xdao.co/attest/cidutil"
	"xdao.co/attest/config"
	"xdao.co/attest/storage"
	"xdao.co/attest/storage/casregistry"
)

// sourceFlags selects the event CAS either from a config file or from a
// single casregistry backend given on the command line.
type sourceFlags struct {
	configPath   string
	backend      string
	listBackends bool
}

func (s *sourceFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&s.configPath, "config", "", "Config file (events section)")
	fs.StringVar(&s.backend, "backend", "", "CAS backend name (instead of --config)")
	fs.BoolVar(&s.listBackends, "list-backends", false, "List supported backends and exit")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

// open returns the CAS and, when a config file names one, the persisted head.
func (s *sourceFlags) open() (storage.CAS, cid.Cid, func() error, error) {
	switch {
	case s.configPath != "" && s.backend != "":
		return nil, cid.Undef, nil, fmt.Errorf("use either --config or --backend")
	case s.configPath != "":
		cfg, err := config.LoadFile(s.configPath)
		if err != nil {
			return nil, cid.Undef, nil, err
		}
		head, err := cfg.Events.Head()
		if err != nil {
			return nil, cid.Undef, nil, err
		}
		cas, closeFn, err := cfg.Events.Open(casregistry.UsageCLI)
		return cas, head, closeFn, err
	case s.backend != "":
		cas, closeFn, err := casregistry.Open(s.backend, casregistry.UsageCLI)
		return cas, cid.Undef, closeFn, err
	default:
		return nil, cid.Undef, nil, fmt.Errorf("missing --config or --backend")
	}
}

// headSource is a CAS that can report the newest audit batch, such as a gRPC
// client talking to xdao-attest-eventd.
type headSource interface {
	Head(context.Context) (cid.Cid, error)
}

func printBackends(w io.Writer) {
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

func cmdEvents(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-attest events <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: list, decode")
		return 2
	}
	sub := args[0]
	if sub != "list" && sub != "decode" {
		fmt.Fprintf(errOut, "unknown events subcommand: %s\n", sub)
		return 2
	}

	fs := flag.NewFlagSet("events "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var (
		src    sourceFlags
		cidStr string
	)
	src.add(fs)
	if sub == "list" {
		fs.StringVar(&cidStr, "head", "", "Newest batch CID (default: the config head file or the daemon's head)")
	} else {
		fs.StringVar(&cidStr, "cid", "", "Event record CID")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if src.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(errOut, "unexpected arguments: %v\n", fs.Args())
		return 2
	}

	cas, head, closeFn, err := src.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	var id cid.Cid
	if cidStr != "" {
		id, err = cidutil.Parse(cidStr)
		if err != nil {
			fmt.Fprintln(errOut, storage.ErrInvalidCID)
			return 2
		}
	}

	ctx := context.Background()
	if sub == "decode" {
		if !id.Defined() {
			fmt.Fprintln(errOut, "missing --cid")
			return 2
		}
		ev, err := audit.Fetch(ctx, cas, id)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		printEvent(out, id, ev)
		return 0
	}

	if id.Defined() {
		head = id
	}
	if hs, ok := cas.(headSource); ok && !head.Defined() {
		if head, err = hs.Head(ctx); err != nil {
			fmt.Fprintf(errOut, "head: %v\n", err)
			return 1
		}
	}
	if !head.Defined() {
		fmt.Fprintln(errOut, "missing --head")
		return 2
	}
	err = audit.Walk(ctx, cas, head, func(b *audit.Batch) error {
		_, _ = fmt.Fprintf(out, "batch %s tx %s events %d\n", b.ID, b.TxID, len(b.Events))
		for _, eid := range b.Events {
			ev, err := audit.Fetch(ctx, cas, eid)
			if err != nil {
				return fmt.Errorf("event %s: %w", eid, err)
			}
			_, _ = fmt.Fprintf(out, "  %s %s attestation=%s signer=%s payload=%dB\n",
				eid, ev.Kind, ev.Attestation, ev.Signer, len(ev.Payload))
		}
		return nil
	})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func printEvent(w io.Writer, id cid.Cid, ev *audit.Event) {
	_, _ = fmt.Fprintf(w, "cid: %s\n", id)
	_, _ = fmt.Fprintf(w, "kind: %s\n", ev.Kind)
	_, _ = fmt.Fprintf(w, "program: %s\n", ev.Program)
	_, _ = fmt.Fprintf(w, "credential: %s\n", ev.Credential)
	_, _ = fmt.Fprintf(w, "schema: %s\n", ev.Schema)
	_, _ = fmt.Fprintf(w, "attestation: %s\n", ev.Attestation)
	_, _ = fmt.Fprintf(w, "signer: %s\n", ev.Signer)
	_, _ = fmt.Fprintf(w, "payload: %s\n", hex.EncodeToString(ev.Payload))
}

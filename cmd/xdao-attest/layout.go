package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"xdao.co/attest/address"
	"xdao.co/attest/layout"
)

func cmdLayout(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-attest layout <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: encode, validate, decode")
		return 2
	}
	sub := args[0]
	switch sub {
	case "encode", "validate", "decode":
	default:
		fmt.Fprintf(errOut, "unknown layout subcommand: %s\n", sub)
		return 2
	}

	fs := flag.NewFlagSet("layout "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var (
		types   string
		dataHex string
		values  stringList
	)
	fs.StringVar(&types, "layout", "", "Comma separated type names, e.g. string,u8")
	if sub == "encode" {
		fs.Var(&values, "value", "Field value (repeatable, in layout order)")
	} else {
		fs.StringVar(&dataHex, "data-hex", "", "Encoded data as hex")
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	l, err := parseLayout(types)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --layout: %v\n", err)
		return 2
	}

	if sub == "encode" {
		if len(values) != len(l) {
			fmt.Fprintf(errOut, "layout has %d fields, got %d --value\n", len(l), len(values))
			return 2
		}
		parsed := make([]any, len(l))
		for i, t := range l {
			v, err := parseValue(t, values[i])
			if err != nil {
				fmt.Fprintf(errOut, "field %d (%s): %v\n", i, t, err)
				return 2
			}
			parsed[i] = v
		}
		data, err := layout.Encode(l, parsed)
		if err != nil {
			fmt.Fprintf(errOut, "encode: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, hex.EncodeToString(data))
		return 0
	}

	data, err := hex.DecodeString(dataHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --data-hex: %v\n", err)
		return 2
	}
	if sub == "validate" {
		if err := layout.Validate(l, data); err != nil {
			fmt.Fprintf(errOut, "invalid: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, "OK")
		return 0
	}
	decoded, err := layout.Decode(l, data)
	if err != nil {
		fmt.Fprintf(errOut, "invalid: %v\n", err)
		return 1
	}
	for i, v := range decoded {
		_, _ = fmt.Fprintf(out, "%d\t%s\t%s\n", i, l[i], formatValue(l[i], v))
	}
	return 0
}

func parseLayout(s string) (layout.Layout, error) {
	if strings.TrimSpace(s) == "" {
		return layout.Layout{}, nil
	}
	parts := strings.Split(s, ",")
	l := make(layout.Layout, 0, len(parts))
	for _, p := range parts {
		t, err := layout.ParseType(strings.ToLower(strings.TrimSpace(p)))
		if err != nil {
			return nil, err
		}
		l = append(l, t)
	}
	return l, nil
}

// parseValue converts command-line text to the Go value layout.Encode takes
// for t.
func parseValue(t layout.Type, s string) (any, error) {
	switch {
	case t == layout.String:
		return s, nil
	case t == layout.VecU8:
		return hex.DecodeString(s)
	case t == layout.Bytes32:
		return parseBytes32(s)
	case t.IsVec():
		out := []any{}
		if s != "" {
			for _, e := range strings.Split(s, ",") {
				v, err := parseScalar(t.Elem(), strings.TrimSpace(e))
				if err != nil {
					return nil, err
				}
				out = append(out, v)
			}
		}
		return out, nil
	default:
		return parseScalar(t, s)
	}
}

func parseScalar(t layout.Type, s string) (any, error) {
	switch t {
	case layout.Bool:
		return strconv.ParseBool(s)
	case layout.Char:
		r, n := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError || n != len(s) {
			return nil, fmt.Errorf("want exactly one character, got %q", s)
		}
		return r, nil
	case layout.U8, layout.U16, layout.U32, layout.U64:
		return strconv.ParseUint(s, 0, 64)
	case layout.I8, layout.I16, layout.I32, layout.I64:
		return strconv.ParseInt(s, 0, 64)
	case layout.U128, layout.I128:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", layout.ErrUnknownType, t)
}

// parseBytes32 accepts 64 hex chars or a base58 address.
func parseBytes32(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) == 64 {
		if b, err := hex.DecodeString(s); err == nil {
			copy(out[:], b)
			return out, nil
		}
	}
	a, err := address.Parse(s)
	if err != nil {
		return out, fmt.Errorf("want 64 hex chars or base58: %w", err)
	}
	return [32]byte(a), nil
}

func formatValue(t layout.Type, v any) string {
	switch x := v.(type) {
	case []byte:
		return hex.EncodeToString(x)
	case [32]byte:
		return hex.EncodeToString(x[:])
	case string:
		return strconv.Quote(x)
	case rune:
		if t == layout.Char {
			return strconv.QuoteRune(x)
		}
	}
	return fmt.Sprint(v)
}

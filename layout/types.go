// Package layout encodes and validates schema data against an ordered list of type codes.
//
// A layout is a sequence of one-byte type codes. Data conforming to a layout is
// the concatenation of each field's encoding in layout order, little-endian,
// with u32 length prefixes for variable-width fields. The codec is purely
// syntactic: it checks that bytes have the right shape and never interprets
// field values.
package layout

import (
	"errors"
	"fmt"
)

// Type is a layout type code.
type Type uint8

const (
	U8 Type = iota
	U16
	U32
	U64
	U128
	I8
	I16
	I32
	I64
	I128
	Bool
	Char
	String
	VecU8
	VecU16
	VecU32
	VecU64
	VecU128
	VecI8
	VecI16
	VecI32
	VecI64
	VecI128
	VecBool
	VecChar
	Bytes32

	numTypes
)

// lengthPrefixSize is the width of every length or element-count prefix.
const lengthPrefixSize = 4

var (
	ErrUnknownType   = errors.New("layout: unknown type code")
	ErrUnderflow     = errors.New("layout: data ends before field")
	ErrLengthPrefix  = errors.New("layout: length prefix exceeds remaining data")
	ErrTrailingBytes = errors.New("layout: trailing bytes after last field")
	ErrValueCount    = errors.New("layout: value count does not match layout")
	ErrValueType     = errors.New("layout: value has wrong type for field")
	ErrValueRange    = errors.New("layout: value out of range for field")
	ErrMissingField  = errors.New("layout: missing named value")
)

var typeNames = [numTypes]string{
	"u8", "u16", "u32", "u64", "u128",
	"i8", "i16", "i32", "i64", "i128",
	"bool", "char", "string",
	"vec<u8>", "vec<u16>", "vec<u32>", "vec<u64>", "vec<u128>",
	"vec<i8>", "vec<i16>", "vec<i32>", "vec<i64>", "vec<i128>",
	"vec<bool>", "vec<char>",
	"bytes32",
}

// widths of the fixed primitives, indexed by Type; 0 for variable-width types.
var widths = [numTypes]int{
	1, 2, 4, 8, 16,
	1, 2, 4, 8, 16,
	1, 4, 0,
	0, 0, 0, 0, 0,
	0, 0, 0, 0, 0,
	0, 0,
	32,
}

func (t Type) Valid() bool { return t < numTypes }

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("type(%d)", uint8(t))
	}
	return typeNames[t]
}

// Width returns the encoded size of a fixed-width type. ok is false for
// variable-width and unknown types.
func (t Type) Width() (width int, ok bool) {
	if !t.Valid() || widths[t] == 0 {
		return 0, false
	}
	return widths[t], true
}

// IsVec reports whether t is a length-prefixed sequence of a primitive.
func (t Type) IsVec() bool { return t >= VecU8 && t <= VecChar }

// Elem returns the element type of a vec type.
func (t Type) Elem() Type {
	if !t.IsVec() {
		return t
	}
	return t - VecU8
}

// ParseType maps a type name (as printed by String) to its code.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Layout is an ordered list of field type codes.
type Layout []Type

// FromBytes interprets raw type codes. Unknown codes are rejected.
func FromBytes(b []byte) (Layout, error) {
	l := make(Layout, len(b))
	for i, c := range b {
		l[i] = Type(c)
	}
	if err := l.Check(); err != nil {
		return nil, err
	}
	return l, nil
}

// Bytes returns the raw type codes.
func (l Layout) Bytes() []byte {
	out := make([]byte, len(l))
	for i, t := range l {
		out[i] = byte(t)
	}
	return out
}

// Check reports the first unknown type code.
func (l Layout) Check() error {
	for i, t := range l {
		if !t.Valid() {
			return fmt.Errorf("%w: field %d has code %d", ErrUnknownType, i, uint8(t))
		}
	}
	return nil
}

// MinSize is the smallest encoding any data conforming to l can have:
// fixed widths plus one empty length prefix per variable-width field.
func (l Layout) MinSize() int {
	n := 0
	for _, t := range l {
		if w, ok := t.Width(); ok {
			n += w
			continue
		}
		n += lengthPrefixSize
	}
	return n
}

func (l Layout) String() string {
	s := "["
	for i, t := range l {
		if i > 0 {
			s += ", "
		}
		s += t.String()
	}
	return s + "]"
}

package layout

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"reflect"
)

// Validate checks that data is exactly one encoding of l. It fails when data
// ends inside a field, when a length prefix claims more bytes than remain, or
// when bytes remain after the last field.
func Validate(l Layout, data []byte) error {
	if err := l.Check(); err != nil {
		return err
	}
	r := reader{data: data}
	for i, t := range l {
		if _, _, err := r.field(t); err != nil {
			return fmt.Errorf("field %d (%s): %w", i, t, err)
		}
	}
	if r.off != len(data) {
		return fmt.Errorf("%w: %d of %d bytes consumed", ErrTrailingBytes, r.off, len(data))
	}
	return nil
}

// Decode validates data against l and returns one Go value per field.
//
// Value types: u8..u64 as uint8..uint64, i8..i64 as int8..int64, u128/i128 as
// *big.Int, bool, char as rune, string, bytes32 as [32]byte, vec<u8> as []byte
// and the other vecs as slices of their element type.
func Decode(l Layout, data []byte) ([]any, error) {
	if err := l.Check(); err != nil {
		return nil, err
	}
	r := reader{data: data}
	out := make([]any, 0, len(l))
	for i, t := range l {
		raw, n, err := r.field(t)
		if err != nil {
			return nil, fmt.Errorf("field %d (%s): %w", i, t, err)
		}
		out = append(out, decodeField(t, raw, n))
	}
	if r.off != len(data) {
		return nil, fmt.Errorf("%w: %d of %d bytes consumed", ErrTrailingBytes, r.off, len(data))
	}
	return out, nil
}

// Encode produces the encoding of values under l. values must hold one entry
// per field, in layout order. Integer fields accept any Go integer type (and
// *big.Int) as long as the value fits the field.
func Encode(l Layout, values []any) ([]byte, error) {
	if err := l.Check(); err != nil {
		return nil, err
	}
	if len(values) != len(l) {
		return nil, fmt.Errorf("%w: layout has %d fields, got %d values", ErrValueCount, len(l), len(values))
	}
	var buf []byte
	for i, t := range l {
		var err error
		buf, err = appendField(buf, t, values[i])
		if err != nil {
			return nil, fmt.Errorf("field %d (%s): %w", i, t, err)
		}
	}
	return buf, nil
}

// EncodeNamed is Encode with values looked up by field name.
func EncodeNamed(l Layout, names []string, values map[string]any) ([]byte, error) {
	if len(names) != len(l) {
		return nil, fmt.Errorf("%w: layout has %d fields, got %d names", ErrValueCount, len(l), len(names))
	}
	ordered := make([]any, len(names))
	for i, name := range names {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingField, name)
		}
		ordered[i] = v
	}
	return Encode(l, ordered)
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int { return len(r.data) - r.off }

func (r *reader) take(n int) ([]byte, error) {
	if n > r.remaining() {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrUnderflow, n, r.remaining())
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// field consumes one field of type t. It returns the field body (without its
// length prefix) and, for vecs, the element count.
func (r *reader) field(t Type) ([]byte, int, error) {
	if w, ok := t.Width(); ok {
		b, err := r.take(w)
		return b, 1, err
	}
	p, err := r.take(lengthPrefixSize)
	if err != nil {
		return nil, 0, err
	}
	count := uint64(binary.LittleEndian.Uint32(p))
	size := count
	if t.IsVec() {
		w, _ := t.Elem().Width()
		size = count * uint64(w)
	}
	if size > uint64(r.remaining()) {
		return nil, 0, fmt.Errorf("%w: prefix claims %d bytes, have %d", ErrLengthPrefix, size, r.remaining())
	}
	b, err := r.take(int(size))
	return b, int(count), err
}

func decodeField(t Type, raw []byte, count int) any {
	switch {
	case t == String:
		return string(raw)
	case t == Bytes32:
		var out [32]byte
		copy(out[:], raw)
		return out
	case t == VecU8:
		return append([]byte(nil), raw...)
	case t.IsVec():
		return decodeVec(t.Elem(), raw, count)
	default:
		return decodeScalar(t, raw)
	}
}

func decodeVec(elem Type, raw []byte, count int) any {
	switch elem {
	case U16:
		return collect[uint16](elem, raw, count)
	case U32:
		return collect[uint32](elem, raw, count)
	case U64:
		return collect[uint64](elem, raw, count)
	case U128, I128:
		return collect[*big.Int](elem, raw, count)
	case I8:
		return collect[int8](elem, raw, count)
	case I16:
		return collect[int16](elem, raw, count)
	case I32:
		return collect[int32](elem, raw, count)
	case I64:
		return collect[int64](elem, raw, count)
	case Bool:
		return collect[bool](elem, raw, count)
	case Char:
		return collect[rune](elem, raw, count)
	default:
		return collect[uint8](elem, raw, count)
	}
}

func collect[T any](elem Type, raw []byte, count int) []T {
	w, _ := elem.Width()
	out := make([]T, count)
	for i := range out {
		out[i] = decodeScalar(elem, raw[i*w:(i+1)*w]).(T)
	}
	return out
}

func decodeScalar(t Type, b []byte) any {
	switch t {
	case U8:
		return b[0]
	case U16:
		return binary.LittleEndian.Uint16(b)
	case U32:
		return binary.LittleEndian.Uint32(b)
	case U64:
		return binary.LittleEndian.Uint64(b)
	case I8:
		return int8(b[0])
	case I16:
		return int16(binary.LittleEndian.Uint16(b))
	case I32:
		return int32(binary.LittleEndian.Uint32(b))
	case I64:
		return int64(binary.LittleEndian.Uint64(b))
	case U128, I128:
		v := new(big.Int).SetBytes(reversed(b))
		if t == I128 && b[15]&0x80 != 0 {
			v.Sub(v, pow2(128))
		}
		return v
	case Bool:
		return b[0] != 0
	case Char:
		return rune(binary.LittleEndian.Uint32(b))
	}
	return nil
}

func appendField(buf []byte, t Type, v any) ([]byte, error) {
	switch {
	case t == String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: want string, got %T", ErrValueType, v)
		}
		if uint64(len(s)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: string too long", ErrValueRange)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
		return append(buf, s...), nil
	case t == Bytes32:
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || (rv.Kind() != reflect.Array && rv.Kind() != reflect.Slice) ||
			rv.Type().Elem().Kind() != reflect.Uint8 {
			return nil, fmt.Errorf("%w: want [32]byte, got %T", ErrValueType, v)
		}
		if rv.Len() != 32 {
			return nil, fmt.Errorf("%w: want 32 bytes, got %d", ErrValueRange, rv.Len())
		}
		for i := 0; i < 32; i++ {
			buf = append(buf, byte(rv.Index(i).Uint()))
		}
		return buf, nil
	case t.IsVec():
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || rv.Kind() != reflect.Slice {
			return nil, fmt.Errorf("%w: want slice, got %T", ErrValueType, v)
		}
		if uint64(rv.Len()) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: vec too long", ErrValueRange)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(rv.Len()))
		for i := 0; i < rv.Len(); i++ {
			var err error
			buf, err = appendScalar(buf, t.Elem(), rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return buf, nil
	default:
		return appendScalar(buf, t, v)
	}
}

// intBits describes the integer fields: bit width and signedness.
var intBits = map[Type]struct {
	bits   uint
	signed bool
}{
	U8: {8, false}, U16: {16, false}, U32: {32, false}, U64: {64, false}, U128: {128, false},
	I8: {8, true}, I16: {16, true}, I32: {32, true}, I64: {64, true}, I128: {128, true},
	Char: {32, false},
}

func appendScalar(buf []byte, t Type, v any) ([]byte, error) {
	if t == Bool {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: want bool, got %T", ErrValueType, v)
		}
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	}
	w, ok := intBits[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t)
	}
	n, ok := toBig(v)
	if !ok {
		return nil, fmt.Errorf("%w: want integer, got %T", ErrValueType, v)
	}
	if w.signed {
		limit := pow2(w.bits - 1)
		if n.Cmp(new(big.Int).Neg(limit)) < 0 || n.Cmp(limit) >= 0 {
			return nil, fmt.Errorf("%w: %s does not fit %s", ErrValueRange, n, t)
		}
		if n.Sign() < 0 {
			n.Add(n, pow2(w.bits))
		}
	} else if n.Sign() < 0 || n.BitLen() > int(w.bits) {
		return nil, fmt.Errorf("%w: %s does not fit %s", ErrValueRange, n, t)
	}
	be := n.FillBytes(make([]byte, w.bits/8))
	return append(buf, reversed(be)...), nil
}

func toBig(v any) (*big.Int, bool) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil, false
		}
		return new(big.Int).Set(x), true
	case int:
		return big.NewInt(int64(x)), true
	case int8:
		return big.NewInt(int64(x)), true
	case int16:
		return big.NewInt(int64(x)), true
	case int32:
		return big.NewInt(int64(x)), true
	case int64:
		return big.NewInt(x), true
	case uint:
		return new(big.Int).SetUint64(uint64(x)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(x)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(x)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(x)), true
	case uint64:
		return new(big.Int).SetUint64(x), true
	}
	return nil, false
}

func pow2(bits uint) *big.Int { return new(big.Int).Lsh(big.NewInt(1), bits) }

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

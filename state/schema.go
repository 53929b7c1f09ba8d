package state

import (
	"encoding/binary"
	"fmt"

	"xdao.co/attest/address"
	"xdao.co/attest/layout"
)

// Schema is a named, versioned field layout under a credential.
type Schema struct {
	Credential  address.Address
	Name        string
	Version     uint8
	Description string
	FieldNames  []string
	Layout      layout.Layout
	IsPaused    bool
}

func (s *Schema) Validate() error {
	if err := CheckName(s.Name); err != nil {
		return err
	}
	if len(s.Layout) != len(s.FieldNames) {
		return fmt.Errorf("%w: layout has %d fields, %d names", ErrInvalid, len(s.Layout), len(s.FieldNames))
	}
	return s.Layout.Check()
}

// SchemaSize is the stored size of a schema.
func SchemaSize(name, description string, fieldNames []string, fields int) int {
	n := 1 + address.Size + prefixSize + len(name) + 1 + prefixSize + len(description)
	n += prefixSize
	for _, f := range fieldNames {
		n += prefixSize + len(f)
	}
	return n + prefixSize + fields + 1
}

func (s *Schema) Size() int { return SchemaSize(s.Name, s.Description, s.FieldNames, len(s.Layout)) }

func (s *Schema) MarshalBinary() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 0, s.Size())
	buf = append(buf, byte(DiscriminatorSchema))
	buf = append(buf, s.Credential[:]...)
	buf = appendString(buf, s.Name)
	buf = append(buf, s.Version)
	buf = appendString(buf, s.Description)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.FieldNames)))
	for _, f := range s.FieldNames {
		buf = appendString(buf, f)
	}
	buf = appendBytes(buf, s.Layout.Bytes())
	buf = appendBool(buf, s.IsPaused)
	return buf, nil
}

// UnmarshalSchema decodes schema account data. Unknown layout codes are
// reported as ErrInvalid.
func UnmarshalSchema(data []byte) (*Schema, error) {
	d := newDecoder(data, DiscriminatorSchema)
	s := &Schema{
		Credential:  d.address(),
		Name:        d.text(),
		Version:     d.u8(),
		Description: d.text(),
		FieldNames:  d.texts(),
	}
	codes := d.bytes()
	s.IsPaused = d.flag()
	if err := d.finish(); err != nil {
		return nil, err
	}
	l, err := layout.FromBytes(codes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	s.Layout = l
	if len(s.Layout) != len(s.FieldNames) {
		return nil, fmt.Errorf("%w: layout has %d fields, %d names", ErrInvalid, len(s.Layout), len(s.FieldNames))
	}
	return s, nil
}

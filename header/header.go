/*
Package header implements a generic codec for fixed-layout binary
structures.

A Layout is an ordered list of named fields, each with a fixed byte width
and one of three types; integer fields are little-endian. The total size
of a layout is the sum of its field widths and never varies. An integer
field may additionally carry a set of named bit flags which can be queried
and toggled independently of the rest of the field.
*/
package header

import (
	"encoding/binary"
	"fmt"
)

// FieldType describes how the bytes of a field are interpreted.
type FieldType int

const (
	// Uint is a little-endian unsigned integer of 1, 2, 4 or 8 bytes
	Uint FieldType = iota
	// Bytes is a fixed-length byte string; callers pad to width
	Bytes
	// Pad is reserved space, always zero-filled on encode
	Pad
)

// Field is a single named region within a Layout. Pad fields have no name.
type Field struct {
	Name string
	Type FieldType
	Size int
}

// Layout is an ordered sequence of fields plus an optional flag map per
// integer field. Layouts are immutable once constructed.
type Layout struct {
	Fields []Field

	// Flags maps an integer field name to its named bit indices
	Flags map[string]map[string]uint

	size int
}

// New returns a Layout over the given fields.
func New(fields ...Field) *Layout {
	l := &Layout{Fields: fields}
	for _, f := range fields {
		l.size += f.Size
	}
	return l
}

// WithFlags declares named bit indices for the integer field name and
// returns the same layout for chaining.
func (l *Layout) WithFlags(name string, flags map[string]uint) *Layout {
	if l.Flags == nil {
		l.Flags = make(map[string]map[string]uint)
	}
	l.Flags[name] = flags
	return l
}

// Size returns the fixed byte size of the layout.
func (l *Layout) Size() int {
	return l.size
}

// Values holds decoded field values keyed by field name. Uint fields are
// stored as uint64, Bytes fields as []byte. Fields absent from the map
// encode as zero.
type Values map[string]interface{}

// Uint returns the named integer field, or zero if unset.
func (v Values) Uint(name string) uint64 {
	u, _ := v[name].(uint64)
	return u
}

// Bytes returns the named byte-string field, or nil if unset.
func (v Values) Bytes(name string) []byte {
	b, _ := v[name].([]byte)
	return b
}

func getUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	}
	panic(fmt.Sprintf("header: unsupported integer width %d", len(b)))
}

func putUint(b []byte, u uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(u)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(u))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(u))
	case 8:
		binary.LittleEndian.PutUint64(b, u)
	default:
		panic(fmt.Sprintf("header: unsupported integer width %d", len(b)))
	}
}

// Decode reads the layout from the front of b. It fails with
// *TruncatedError if b is shorter than the layout; excess bytes are
// ignored.
func (l *Layout) Decode(b []byte) (Values, error) {
	if len(b) < l.size {
		return nil, &TruncatedError{Need: l.size, Have: len(b)}
	}
	v := make(Values, len(l.Fields))
	off := 0
	for _, f := range l.Fields {
		switch f.Type {
		case Uint:
			v[f.Name] = getUint(b[off : off+f.Size])
		case Bytes:
			s := make([]byte, f.Size)
			copy(s, b[off:off+f.Size])
			v[f.Name] = s
		}
		off += f.Size
	}
	return v, nil
}

// Encode serializes v according to the layout. The result is always
// exactly Size() bytes; padding and unset fields are zero-filled. An
// integer that does not fit its field width fails with *OverflowError,
// as does a byte string longer than its field.
func (l *Layout) Encode(v Values) ([]byte, error) {
	b := make([]byte, l.size)
	off := 0
	for _, f := range l.Fields {
		switch f.Type {
		case Uint:
			u := v.Uint(f.Name)
			if f.Size < 8 && u >= 1<<uint(f.Size*8) {
				return nil, &OverflowError{Field: f.Name, Value: u, Size: f.Size}
			}
			putUint(b[off:off+f.Size], u)
		case Bytes:
			s := v.Bytes(f.Name)
			if len(s) > f.Size {
				return nil, &OverflowError{Field: f.Name, Value: uint64(len(s)), Size: f.Size}
			}
			copy(b[off:off+f.Size], s)
		}
		off += f.Size
	}
	return b, nil
}

func (l *Layout) flagBit(field, name string) (uint, error) {
	if m, ok := l.Flags[field]; ok {
		if bit, ok := m[name]; ok {
			return bit, nil
		}
	}
	return 0, &UnknownFlagError{Field: field, Flag: name}
}

// Flag reports whether the named bit of the integer field is set.
func (l *Layout) Flag(v Values, field, name string) (bool, error) {
	bit, err := l.flagBit(field, name)
	if err != nil {
		return false, err
	}
	return v.Uint(field)&(1<<bit) != 0, nil
}

// SetFlag sets or clears the named bit of the integer field.
func (l *Layout) SetFlag(v Values, field, name string, on bool) error {
	bit, err := l.flagBit(field, name)
	if err != nil {
		return err
	}
	u := v.Uint(field)
	if on {
		u |= 1 << bit
	} else {
		u &^= 1 << bit
	}
	v[field] = u
	return nil
}

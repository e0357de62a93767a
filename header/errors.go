package header

import "fmt"

// TruncatedError is returned by Decode when fewer bytes are available
// than the layout requires.
type TruncatedError struct {
	Need int
	Have int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("header: truncated input, need %d bytes, have %d", e.Need, e.Have)
}

// OverflowError is returned by Encode when a value does not fit its
// field width.
type OverflowError struct {
	Field string
	Value uint64
	Size  int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("header: value %d overflows %d-byte field %q", e.Value, e.Size, e.Field)
}

// UnknownFlagError is returned by the flag accessors for a name not in
// the field's flag map.
type UnknownFlagError struct {
	Field string
	Flag  string
}

func (e *UnknownFlagError) Error() string {
	return fmt.Sprintf("header: unknown flag %q on field %q", e.Flag, e.Field)
}

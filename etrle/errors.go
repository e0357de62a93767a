package etrle

import "fmt"

// MalformedRunError is returned by Decompress when a literal run's
// declared length exceeds the remaining buffer. Offset is the position
// of the offending control byte within the compressed stream.
type MalformedRunError struct {
	Offset    int
	Length    int
	Remaining int
}

func (e *MalformedRunError) Error() string {
	return fmt.Sprintf("etrle: control byte at %d declares %d literal bytes, %d remain", e.Offset, e.Length, e.Remaining)
}

package pixel

import "fmt"

// SpecError is returned by Validate for a packing scheme that cannot be
// serialized.
type SpecError struct {
	Spec   Spec
	Reason string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("pixel: invalid spec %+v: %s", e.Spec, e.Reason)
}

// ComponentError is returned by Pack for a component value outside the
// 0 to 255 range.
type ComponentError struct {
	Value int
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("pixel: component value %d out of range", e.Value)
}

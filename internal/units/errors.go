package units

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownUnit       = errors.New("unknown unit")
	ErrUnknownDimension  = errors.New("unknown dimension")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidDefinition = errors.New("invalid unit definition")
	ErrNonFinite         = errors.New("non-finite value")
)

// UnitError reports an unknown unit, an unknown dimension, or an attempt to
// convert between dimensions. errors.Is matches the Err* sentinels.
type UnitError struct {
	Unit   string
	From   string
	To     string
	Reason string
	kind   error
}

func (e *UnitError) Error() string {
	switch {
	case e.From != "" || e.To != "":
		return fmt.Sprintf("unit error: %s -> %s: %s", e.From, e.To, e.Reason)
	case e.Unit != "":
		return fmt.Sprintf("unit error: %q: %s", e.Unit, e.Reason)
	default:
		return "unit error: " + e.Reason
	}
}

func (e *UnitError) Unwrap() error {
	return e.kind
}

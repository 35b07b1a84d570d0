package partition

import "fmt"

// ErrorKind classifies definition-time failures.
type ErrorKind int

const (
	// ErrInvalidSpec is a structural error in the input specification.
	ErrInvalidSpec ErrorKind = iota
	// ErrTypeMismatch is a type or collation incompatibility in a bound
	// or step value.
	ErrTypeMismatch
	// ErrArithmeticDomain is a degenerate or overflowing EVERY
	// progression.
	ErrArithmeticDomain
	// ErrNullBound is a NULL literal where a concrete range bound is
	// required.
	ErrNullBound
	// ErrDuplicateDefault is a second default partition or default
	// encoding directive.
	ErrDuplicateDefault
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidSpec:
		return "invalid specification"
	case ErrTypeMismatch:
		return "type mismatch"
	case ErrArithmeticDomain:
		return "arithmetic domain error"
	case ErrNullBound:
		return "null bound"
	case ErrDuplicateDefault:
		return "duplicate default"
	default:
		return "unknown"
	}
}

// SpecError is the error type every generation failure surfaces as. It
// carries the offending element's name and source location when known.
type SpecError struct {
	Kind      ErrorKind
	Message   string
	Partition string
	Loc       Location
	Err       error
}

func (e *SpecError) Error() string { return e.Message }

func (e *SpecError) Unwrap() error { return e.Err }

func specErrorf(kind ErrorKind, loc Location, format string, args ...any) *SpecError {
	return &SpecError{Kind: kind, Message: fmt.Sprintf(format, args...), Loc: loc}
}

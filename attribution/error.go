package attribution

import (
	"errors"
	"fmt"
)

// Error definitions for the attribution package.
var (
	// ErrMissingMethod is returned when no attribution method is
	// resolvable: none was supplied and no default is configured.
	ErrMissingMethod = errors.New("attribution: no attribution method configured and none supplied")

	// ErrUnknownMethod is returned when a method name has no registered
	// factory.
	ErrUnknownMethod = errors.New("attribution: unknown attribution method")
)

// LengthMismatchError reports texts and reference texts of differing
// lengths.
type LengthMismatchError struct {
	InputLen     int
	ReferenceLen int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("attribution: length mismatch for texts and reference texts: input length %d, reference length %d", e.InputLen, e.ReferenceLen)
}

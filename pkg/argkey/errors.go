package argkey

import (
	"errors"
	"fmt"
)

// Sentinel errors for argument handling.
var (
	// ErrUnsupportedArgument matches every *UnsupportedArgumentError via errors.Is.
	ErrUnsupportedArgument = errors.New("argkey: unsupported argument")

	// ErrMalformedArguments is returned by the normalization helpers when the
	// raw arguments cannot be shaped into a mapping.
	ErrMalformedArguments = errors.New("argkey: malformed arguments")
)

// UnsupportedArgumentError reports a value outside the argument domain.
type UnsupportedArgumentError struct {
	// Path locates the value inside the argument graph, e.g. "$.filter[2]".
	Path string

	// Type is the Go type of the offending value.
	Type string

	// Reason says why the value was rejected.
	Reason string
}

func (e *UnsupportedArgumentError) Error() string {
	return fmt.Sprintf("argkey: unsupported argument at %s (%s): %s", e.Path, e.Type, e.Reason)
}

// Is reports whether target is ErrUnsupportedArgument.
func (e *UnsupportedArgumentError) Is(target error) bool {
	return target == ErrUnsupportedArgument
}

func unsupported(path string, v any, reason string) *UnsupportedArgumentError {
	return &UnsupportedArgumentError{
		Path:   path,
		Type:   fmt.Sprintf("%T", v),
		Reason: reason,
	}
}

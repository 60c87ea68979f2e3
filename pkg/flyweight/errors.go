package flyweight

import (
	"errors"
	"fmt"

	"github.com/vnykmshr/flyweight-go/pkg/argkey"
)

// Sentinel errors returned by caches and registries. Factory errors are
// never wrapped: callers receive exactly the value the factory returned.
var (
	// ErrNilFactory is returned when GetOrCreate is called without a factory
	ErrNilFactory = errors.New("flyweight: nil factory")

	// ErrNilInstance is returned when a factory reports success but yields no instance
	ErrNilInstance = errors.New("flyweight: factory returned a nil instance")

	// ErrClosed is returned by operations on a closed cache or registry
	ErrClosed = errors.New("flyweight: closed")

	// ErrConstructionInFlight is returned by TryGetOrCreate when another
	// caller is already constructing the instance for the same key
	ErrConstructionInFlight = errors.New("flyweight: construction in flight")

	// ErrPartitionTypeMismatch is returned when a type id is requested with
	// an instance type other than the one it was first registered with
	ErrPartitionTypeMismatch = errors.New("flyweight: partition type mismatch")

	// ErrInvalidConfig is returned for configuration that fails validation
	ErrInvalidConfig = errors.New("flyweight: invalid config")

	// ErrUnsupportedArgument matches every argument-domain rejection
	ErrUnsupportedArgument = argkey.ErrUnsupportedArgument
)

// UnsupportedArgumentError reports the path and type of a value that has no
// defined equivalence.
type UnsupportedArgumentError = argkey.UnsupportedArgumentError

// PanicError is returned to every caller joined to a construction whose
// factory panicked. Value holds the recovered panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("flyweight: factory panicked: %v", e.Value)
}

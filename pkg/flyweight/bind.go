package flyweight

import (
	"github.com/vnykmshr/flyweight-go/pkg/argkey"
)

// Constructor is a shared-instance constructor produced by Bind
type Constructor[T any] func(args ...any) (*T, error)

// Bind returns a Constructor that keys its arguments by their
// argkey.Normalize form and interns the result in c. The factory receives
// the caller's arguments unchanged, as the []any passed to the Constructor.
func Bind[T any](c *Cache[T], factory Factory[T]) Constructor[T] {
	return func(args ...any) (*T, error) {
		m, err := argkey.Normalize(args...)
		if err != nil {
			return nil, err
		}
		if factory == nil {
			return c.GetOrCreate(m, nil)
		}
		return c.GetOrCreate(m, func(any) (*T, error) {
			return factory(args)
		})
	}
}

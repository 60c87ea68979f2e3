package argkey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
)

// Normalize shapes raw constructor arguments into a Map. A single mapping
// argument is copied; anything else is read as alternating name/value pairs.
// No arguments yield an empty Map.
func Normalize(args ...any) (Map, error) {
	if len(args) == 1 {
		if m, ok := args[0].(map[string]any); ok {
			out := make(Map, len(m))
			maps.Copy(out, m)
			return out, nil
		}
	}
	return FromPairs(args...)
}

// FromPairs builds a Map from alternating name/value elements. Names must be
// strings; a repeated name keeps its last value.
func FromPairs(pairs ...any) (Map, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of name/value elements (%d)", ErrMalformedArguments, len(pairs))
	}

	m := make(Map, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		name, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("%w: name at position %d is %T, want string", ErrMalformedArguments, i, pairs[i])
		}
		m[name] = pairs[i+1]
	}
	return m, nil
}

// FromJSON decodes a single JSON document into an argument value. Numbers
// are kept as json.Number so large integers stay exact.
func FromJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedArguments, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrMalformedArguments)
	}
	return v, nil
}

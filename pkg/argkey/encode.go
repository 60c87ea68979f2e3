package argkey

import (
	"sort"
	"strconv"
	"strings"
)

// MaxDepth is the deepest container nesting Encode accepts. Deeper graphs,
// including self-referential ones, are rejected.
const MaxDepth = 64

// Map is a mapping argument value.
type Map = map[string]any

// List is a sequence argument value.
type List = []any

// Encode returns the canonical key for v.
func Encode(v any) (string, error) {
	var b strings.Builder
	if err := encodeTo(&b, v, "$", 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

// MustEncode is like Encode but panics on error.
func MustEncode(v any) string {
	key, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return key
}

func encodeTo(b *strings.Builder, v any, path string, depth int) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")

	case bool:
		b.WriteString(strconv.FormatBool(val))

	case string:
		b.WriteString(strconv.Quote(val))

	case []any:
		if depth+1 > MaxDepth {
			return unsupported(path, v, "nesting exceeds MaxDepth")
		}
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := encodeTo(b, item, path+"["+strconv.Itoa(i)+"]", depth+1); err != nil {
				return err
			}
		}
		b.WriteByte(']')

	case map[string]any:
		if depth+1 > MaxDepth {
			return unsupported(path, v, "nesting exceeds MaxDepth")
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			if err := encodeTo(b, val[k], path+"."+k, depth+1); err != nil {
				return err
			}
		}
		b.WriteByte('}')

	default:
		num, ok, err := canonicalNumber(v)
		if !ok {
			return unsupported(path, v, "opaque value has no defined equivalence")
		}
		if err != nil {
			return unsupported(path, v, err.Error())
		}
		b.WriteByte('#')
		b.WriteString(num)
	}
	return nil
}

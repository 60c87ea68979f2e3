package argkey

import (
	"testing"
)

func FuzzEncodeJSON(f *testing.F) {
	seeds := []string{
		`null`,
		`{"a":1,"b":[true,false,null]}`,
		`[1,2.5,-0,1e30,"x"]`,
		`{"nested":{"z":{"y":{"x":"deep"}}}}`,
		`"é\u0000"`,
	}
	for _, s := range seeds {
		f.Add([]byte(s))
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		v, err := FromJSON(data)
		if err != nil {
			return
		}

		first, err := Encode(v)
		if err != nil {
			return
		}

		second, err := Encode(v)
		if err != nil {
			t.Fatalf("second encode failed after first succeeded: %v", err)
		}
		if first != second {
			t.Fatalf("non-deterministic key: %q vs %q", first, second)
		}

		// Re-decoding the same document must land on the same key.
		again, err := FromJSON(data)
		if err != nil {
			t.Fatalf("re-decode failed: %v", err)
		}
		if k := MustEncode(again); k != first {
			t.Fatalf("key changed across decodes: %q vs %q", first, k)
		}
	})
}

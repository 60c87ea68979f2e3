// Package argkey converts construction arguments into canonical string keys.
//
// An argument value is one of: nil, bool, a Go numeric kind or json.Number,
// string, []any (List) or map[string]any (Map), nested arbitrarily. Two
// values produce the same key if and only if they are equivalent:
//
//   - mapping key order is irrelevant (keys are sorted bytewise)
//   - sequence order is significant
//   - numbers compare by numeric value, not by Go kind or textual form
//
// Anything outside that domain (pointers, structs, channels, funcs, typed
// slices such as []string, NaN, ±Inf) is rejected with an
// *UnsupportedArgumentError rather than stringified, because there is no
// defined equivalence for it.
//
// # Key format
//
// Keys are readable and self-delimiting:
//
//	null  true  false  #42  #0.5  "text"  [#1,#2]  {"a":#1,"b":"x"}
//
// # Numbers
//
// Integral values encode as exact decimal integers whatever their source:
// 1, int8(1), uint64(1), 1.0 and json.Number("1e0") all encode as #1.
// A native float stands for its shortest round-tripping decimal; a json.Number
// stands for the exact decimal it spells, at any size or precision. So 0.5
// and json.Number("5e-1") share a key, while json.Number("1.00000000000000000001")
// and 1 do not. Integers past 400 digits use exponent form (#1e+401), and
// non-integers follow strconv's 'g' layout (#1e-07, #1.2345675e+06). -0 encodes as #0. float32 values are widened
// exactly, therefore float32(0.1) and 0.1 are different numbers.
//
// # Normalization
//
// Hosts usually accept either a mapping or a flat list of name/value pairs.
// Normalize turns both shapes into a Map before encoding:
//
//	a, _ := argkey.Normalize("color", "red", "size", 3)
//	b, _ := argkey.Normalize(map[string]any{"size": 3, "color": "red"})
//	argkey.MustEncode(a) == argkey.MustEncode(b) // true
package argkey

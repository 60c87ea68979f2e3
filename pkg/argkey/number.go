package argkey

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"
)

var (
	errNonFinite       = errors.New("number is not finite")
	errMalformedNumber = errors.New("malformed json.Number")
	errExponentRange   = errors.New("json.Number exponent out of range")
)

// maxExactInt is the bound below which an integral float64 converts to int64
// without going through math/big.
const maxExactInt = 1 << 62

// canonicalNumber reports whether v is a number and, if so, its canonical
// decimal form.
func canonicalNumber(v any) (string, bool, error) {
	switch n := v.(type) {
	case int:
		return strconv.FormatInt(int64(n), 10), true, nil
	case int8:
		return strconv.FormatInt(int64(n), 10), true, nil
	case int16:
		return strconv.FormatInt(int64(n), 10), true, nil
	case int32:
		return strconv.FormatInt(int64(n), 10), true, nil
	case int64:
		return strconv.FormatInt(n, 10), true, nil
	case uint:
		return strconv.FormatUint(uint64(n), 10), true, nil
	case uint8:
		return strconv.FormatUint(uint64(n), 10), true, nil
	case uint16:
		return strconv.FormatUint(uint64(n), 10), true, nil
	case uint32:
		return strconv.FormatUint(uint64(n), 10), true, nil
	case uint64:
		return strconv.FormatUint(n, 10), true, nil
	case float32:
		s, err := formatFloat(float64(n))
		return s, true, err
	case float64:
		s, err := formatFloat(n)
		return s, true, err
	case json.Number:
		s, err := formatJSONNumber(n)
		return s, true, err
	default:
		return "", false, nil
	}
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", errNonFinite
	}
	if f == 0 {
		return "0", nil // folds -0
	}
	if f != math.Trunc(f) {
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	}
	if math.Abs(f) < maxExactInt {
		return strconv.FormatInt(int64(f), 10), nil
	}
	i, _ := new(big.Float).SetFloat64(f).Int(nil)
	return i.String(), nil
}

// maxExpandedDigits bounds how far an integral json.Number is written out in
// full. Larger magnitudes, beyond any Go numeric kind, use exponent form.
const maxExpandedDigits = 400

// maxExponentDigits bounds the exponent of a json.Number literal.
const maxExponentDigits = 15

// formatJSONNumber encodes the exact decimal value of n. It produces the same
// text as formatFloat whenever n denotes the same value as a float64's
// shortest form, so json.Number("0.5") and 0.5 share a key while
// json.Number("1.00000000000000000001") and 1 do not.
func formatJSONNumber(n json.Number) (string, error) {
	s := string(n)
	if !isJSONNumber(s) {
		return "", errMalformedNumber
	}

	neg := s[0] == '-'
	if neg {
		s = s[1:]
	}
	mant, exp := s, ""
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mant, exp = s[:i], s[i+1:]
	}
	intPart, fracPart, _ := strings.Cut(mant, ".")

	e := int64(0)
	if exp != "" {
		if len(strings.TrimLeft(strings.TrimLeft(exp, "+-"), "0")) > maxExponentDigits {
			return "", errExponentRange
		}
		var err error
		if e, err = strconv.ParseInt(strings.TrimPrefix(exp, "+"), 10, 64); err != nil {
			return "", errExponentRange
		}
	}

	// value = 0.digits * 10^point
	digits := intPart + fracPart
	point := int64(len(intPart)) + e
	trimmed := strings.TrimLeft(digits, "0")
	point -= int64(len(digits) - len(trimmed))
	digits = strings.TrimRight(trimmed, "0")
	if digits == "" {
		return "0", nil
	}

	out := formatDecimal(digits, point)
	if neg {
		out = "-" + out
	}
	return out, nil
}

// formatDecimal writes 0.digits * 10^point, digits having no leading or
// trailing zeros. Non-integral values follow strconv's 'g' layout.
func formatDecimal(digits string, point int64) string {
	n := int64(len(digits))
	sciExp := point - 1

	if point >= n {
		if point <= maxExpandedDigits {
			return digits + strings.Repeat("0", int(point-n))
		}
		return scientific(digits, sciExp)
	}
	if sciExp < -4 || sciExp >= 6 {
		return scientific(digits, sciExp)
	}
	if point > 0 {
		return digits[:point] + "." + digits[point:]
	}
	return "0." + strings.Repeat("0", int(-point)) + digits
}

func scientific(digits string, exp int64) string {
	var b strings.Builder
	b.WriteString(digits[:1])
	if len(digits) > 1 {
		b.WriteByte('.')
		b.WriteString(digits[1:])
	}
	b.WriteByte('e')
	if exp < 0 {
		b.WriteByte('-')
		exp = -exp
	} else {
		b.WriteByte('+')
	}
	if exp < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatInt(exp, 10))
	return b.String()
}

func isJSONNumber(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	return json.Valid([]byte(s))
}

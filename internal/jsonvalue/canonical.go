package jsonvalue

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Canonical converts v to the generic form like Interface, but numbers are
// kept exact as json.Number in CanonicalNumber form. Two values that hold
// the same data convert to equal forms whatever their formatting.
func (v Value) Canonical() any {
	switch v.kind {
	case Number:
		return json.Number(CanonicalNumber(v.text))
	case Array:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Canonical()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.members))
		for _, m := range v.members {
			out[m.Key] = m.Value.Canonical()
		}
		return out
	}
	return v.Interface()
}

// CanonicalNumber rewrites a JSON number literal as its significant digits
// followed by a decimal exponent, without leading or trailing zeros:
// "100", "1e2" and "100.0" all become "1e2", "1.5" becomes "15e-1" and any
// zero becomes "0". Literals that are not JSON numbers are returned as is.
func CanonicalNumber(lit string) string {
	s := lit
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	exp := 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		e, err := strconv.Atoi(s[i+1:])
		if err != nil {
			return lit
		}
		exp, s = e, s[:i]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	digits := intPart + frac
	if digits == "" || strings.Trim(digits, "0123456789") != "" {
		return lit
	}
	exp -= len(frac)

	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0"
	}
	trimmed := strings.TrimRight(digits, "0")
	exp += len(digits) - len(trimmed)

	if exp == 0 {
		return sign + trimmed
	}
	return sign + trimmed + "e" + strconv.Itoa(exp)
}

package value

import (
	"encoding/hex"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Parse interprets user text as a value of dt: decimal integers, decimal-point
// floats (plus nan and inf), hex byte pairs for arrays and raw text for
// strings. It never truncates.
func Parse(text string, dt DataType) (Value, error) {
	switch dt.kind {
	case U8, U16, U32, U64:
		s := strings.TrimSpace(text)
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "+"), 10, dt.size*8)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return Value{}, outOfRange(text, dt)
			}
			if strings.HasPrefix(s, "-") && isDigits(s[1:]) {
				return Value{}, outOfRange(text, dt)
			}
			return Value{}, malformed(text, dt)
		}
		return FromUint64(dt, n)

	case S8, S16, S32, S64:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, dt.size*8)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return Value{}, outOfRange(text, dt)
			}
			return Value{}, malformed(text, dt)
		}
		return FromInt64(dt, n)

	case F32, F64:
		s := strings.TrimSpace(text)
		if f, ok := parseNonFinite(s); ok {
			return FromFloat64(dt, f)
		}
		if !isDecimalFloat(s) {
			return Value{}, malformed(text, dt)
		}
		f, err := strconv.ParseFloat(s, dt.size*8)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) && (math.IsInf(f, 0)) {
				return Value{}, outOfRange(text, dt)
			}
			if !errors.Is(err, strconv.ErrRange) {
				return Value{}, malformed(text, dt)
			}
			// underflow to a (sub)normal is accepted as the nearest value
		}
		return FromFloat64(dt, f)

	case ArrayOfBytes:
		raw, err := parseHexBytes(text)
		if err != nil || len(raw) == 0 {
			return Value{}, malformed(text, dt)
		}
		return sized(text, dt, raw)

	case FixedString:
		if text == "" {
			return Value{}, malformed(text, dt)
		}
		return sized(text, dt, []byte(text))
	}

	return Value{}, malformed(text, dt)
}

// sized applies the width rule for variable kinds: an unsized type takes the
// input length, a sized type requires an exact match
func sized(text string, dt DataType, raw []byte) (Value, error) {
	if dt.size != 0 && dt.size != len(raw) {
		return Value{}, malformed(text, dt)
	}
	return FromBytes(dt, raw)
}

// parseHexBytes accepts "de ad be ef", "de,ad,be,ef", "0xde 0xad" and "deadbeef"
func parseHexBytes(text string) ([]byte, error) {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	var out []byte
	for _, part := range parts {
		part = strings.TrimPrefix(strings.ToLower(part), "0x")
		if len(part)%2 != 0 {
			return nil, hex.ErrLength
		}
		b, err := hex.DecodeString(part)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// parseNonFinite accepts the NaN and Inf spellings Format produces, in any case
func parseNonFinite(s string) (float64, bool) {
	switch strings.ToLower(s) {
	case "nan":
		return math.NaN(), true
	case "inf", "+inf", "infinity", "+infinity":
		return math.Inf(1), true
	case "-inf", "-infinity":
		return math.Inf(-1), true
	}
	return 0, false
}

// isDecimalFloat rejects the hex, inf, nan and underscore forms strconv would accept
func isDecimalFloat(s string) bool {
	if s == "" {
		return false
	}
	digits := 0
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.', c == 'e', c == 'E':
		case c == '+' || c == '-':
			if i != 0 && s[i-1] != 'e' && s[i-1] != 'E' {
				return false
			}
		default:
			return false
		}
	}
	return digits > 0
}

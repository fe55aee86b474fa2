package value

import (
	"encoding/hex"
	"strconv"
	"strings"
)

// Format renders v so that Parse(Format(v), v.Type()) yields an equal Value.
// NaN payloads are the exception: every NaN parses back as the same quiet NaN.
func Format(v Value) string {
	switch v.dt.kind {
	case U8, U16, U32, U64:
		return strconv.FormatUint(decodeUint(v.data), 10)
	case S8, S16, S32, S64:
		return strconv.FormatInt(decodeInt(v.data), 10)
	case F32:
		return strconv.FormatFloat(decodeFloat(v.data), 'g', -1, 32)
	case F64:
		return strconv.FormatFloat(decodeFloat(v.data), 'g', -1, 64)
	case ArrayOfBytes:
		parts := make([]string, len(v.data))
		for i, b := range v.data {
			parts[i] = hex.EncodeToString([]byte{b})
		}
		return strings.Join(parts, " ")
	case FixedString:
		return string(v.data)
	}
	return hex.EncodeToString(v.data)
}

package value

import (
	"bytes"
	"fmt"
	"math"
)

// Ordering is the result of comparing two values of the same type
type Ordering int8

const (
	Less      Ordering = -1
	Equal     Ordering = 0
	Greater   Ordering = 1
	Unordered Ordering = 2 // at least one float operand is NaN
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	case Unordered:
		return "unordered"
	}
	return fmt.Sprintf("ordering(%d)", int8(o))
}

// Compare orders a against b. Values of different data types are never compared.
func Compare(a, b Value) (Ordering, error) {
	if a.dt != b.dt {
		return Unordered, fmt.Errorf("%w: %s vs %s", ErrTypeMismatch, a.dt, b.dt)
	}
	return CompareBytes(a.dt, a.data, b.data)
}

// CompareBytes orders two raw buffers interpreted as dt without building Values
func CompareBytes(dt DataType, a, b []byte) (Ordering, error) {
	if len(a) != dt.size || len(b) != dt.size {
		return Unordered, fmt.Errorf("%w: %d/%d bytes for %s", ErrSizeMismatch, len(a), len(b), dt)
	}

	switch dt.kind {
	case U8, U16, U32, U64:
		return order(decodeUint(a), decodeUint(b)), nil
	case S8, S16, S32, S64:
		return order(decodeInt(a), decodeInt(b)), nil
	case F32, F64:
		fa, fb := decodeFloat(a), decodeFloat(b)
		if math.IsNaN(fa) || math.IsNaN(fb) {
			return Unordered, nil
		}
		return order(fa, fb), nil
	case ArrayOfBytes, FixedString:
		return Ordering(bytes.Compare(a, b)), nil
	}
	return Unordered, fmt.Errorf("compare: unknown kind %s", dt.kind)
}

func order[T int64 | uint64 | float64](a, b T) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	}
	return Equal
}

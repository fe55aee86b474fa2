package value

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// ByteOrder is the byte order of every supported target
var ByteOrder = binary.LittleEndian

// Value is an immutable DataType plus exactly DataType.Size() bytes
type Value struct {
	dt   DataType
	data []byte
}

// FromBytes builds a Value from raw memory. An unsized variable type takes its width from raw.
func FromBytes(dt DataType, raw []byte) (Value, error) {
	if dt.IsVariable() && dt.size == 0 {
		if len(raw) == 0 {
			return Value{}, fmt.Errorf("%w: empty %s", ErrSizeMismatch, dt.kind)
		}
		dt.size = len(raw)
	}
	if len(raw) != dt.size || dt.size == 0 {
		return Value{}, fmt.Errorf("%w: %d bytes for %s", ErrSizeMismatch, len(raw), dt)
	}
	return Value{dt: dt, data: bytes.Clone(raw)}, nil
}

// FromUint64 encodes an unsigned integer; it fails if v does not fit the width
func FromUint64(dt DataType, v uint64) (Value, error) {
	if !dt.IsInteger() {
		return Value{}, fmt.Errorf("%w: %s is not an integer type", ErrTypeMismatch, dt)
	}
	if dt.IsSigned() {
		if v > math.MaxInt64 {
			return Value{}, outOfRange(fmt.Sprint(v), dt)
		}
		return FromInt64(dt, int64(v))
	}
	bits := dt.size * 8
	if bits < 64 && v>>bits != 0 {
		return Value{}, outOfRange(fmt.Sprint(v), dt)
	}
	return Value{dt: dt, data: putUint(dt.size, v)}, nil
}

// FromInt64 encodes a signed integer; it fails if v does not fit the width
func FromInt64(dt DataType, v int64) (Value, error) {
	if !dt.IsInteger() {
		return Value{}, fmt.Errorf("%w: %s is not an integer type", ErrTypeMismatch, dt)
	}
	if !dt.IsSigned() {
		if v < 0 {
			return Value{}, outOfRange(fmt.Sprint(v), dt)
		}
		return FromUint64(dt, uint64(v))
	}
	bits := dt.size * 8
	if bits < 64 {
		lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
		if v < lo || v > hi {
			return Value{}, outOfRange(fmt.Sprint(v), dt)
		}
	}
	return Value{dt: dt, data: putUint(dt.size, uint64(v))}, nil
}

// FromFloat64 encodes a float; F32 values that overflow float32 are out of range
func FromFloat64(dt DataType, v float64) (Value, error) {
	switch dt.kind {
	case F32:
		if !math.IsInf(v, 0) && !math.IsNaN(v) && math.Abs(v) > math.MaxFloat32 {
			return Value{}, outOfRange(fmt.Sprint(v), dt)
		}
		return Value{dt: dt, data: putUint(4, uint64(math.Float32bits(float32(v))))}, nil
	case F64:
		return Value{dt: dt, data: putUint(8, math.Float64bits(v))}, nil
	}
	return Value{}, fmt.Errorf("%w: %s is not a floating point type", ErrTypeMismatch, dt)
}

func putUint(size int, v uint64) []byte {
	b := make([]byte, 8)
	ByteOrder.PutUint64(b, v)
	return b[:size]
}

func (v Value) Type() DataType {
	return v.dt
}

func (v Value) Size() int {
	return len(v.data)
}

// IsZero reports whether v is the zero Value (no type, no bytes)
func (v Value) IsZero() bool {
	return v.data == nil
}

// Bytes returns a copy of the raw bytes
func (v Value) Bytes() []byte {
	return bytes.Clone(v.data)
}

// Equal reports identical type and bytes
func (v Value) Equal(o Value) bool {
	return v.dt == o.dt && bytes.Equal(v.data, o.data)
}

// Uint64 returns the value of an unsigned integer type
func (v Value) Uint64() uint64 {
	return decodeUint(v.data)
}

// Int64 returns the value of a signed integer type
func (v Value) Int64() int64 {
	return decodeInt(v.data)
}

// Float64 returns the value of a floating point type
func (v Value) Float64() float64 {
	return decodeFloat(v.data)
}

func (v Value) String() string {
	return Format(v)
}

func decodeUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(ByteOrder.Uint16(b))
	case 4:
		return uint64(ByteOrder.Uint32(b))
	case 8:
		return ByteOrder.Uint64(b)
	}
	return 0
}

func decodeInt(b []byte) int64 {
	switch len(b) {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(ByteOrder.Uint16(b)))
	case 4:
		return int64(int32(ByteOrder.Uint32(b)))
	case 8:
		return int64(ByteOrder.Uint64(b))
	}
	return 0
}

func decodeFloat(b []byte) float64 {
	switch len(b) {
	case 4:
		return float64(math.Float32frombits(ByteOrder.Uint32(b)))
	case 8:
		return math.Float64frombits(ByteOrder.Uint64(b))
	}
	return 0
}

// Package value is the typed value model used by scans and cheats: a closed
// set of data types over raw little-endian bytes.
package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of scannable data types
type Kind uint8

const (
	U8 Kind = iota
	S8
	U16
	S16
	U32
	S32
	U64
	S64
	F32
	F64
	ArrayOfBytes
	FixedString
)

func (k Kind) String() string {
	switch k {
	case U8:
		return "u8"
	case S8:
		return "s8"
	case U16:
		return "u16"
	case S16:
		return "s16"
	case U32:
		return "u32"
	case S32:
		return "s32"
	case U64:
		return "u64"
	case S64:
		return "s64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case ArrayOfBytes:
		return "aob"
	case FixedString:
		return "string"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// fixedSize returns the byte width of numeric kinds and 0 for variable kinds
func (k Kind) fixedSize() int {
	switch k {
	case U8, S8:
		return 1
	case U16, S16:
		return 2
	case U32, S32, F32:
		return 4
	case U64, S64, F64:
		return 8
	case ArrayOfBytes, FixedString:
		return 0
	}
	return -1
}

// ParseKind maps a type name ("u32", "float", "aob", ...) to its Kind
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "u8", "byte", "uint8":
		return U8, nil
	case "s8", "i8", "int8":
		return S8, nil
	case "u16", "uint16":
		return U16, nil
	case "s16", "i16", "int16":
		return S16, nil
	case "u32", "uint32":
		return U32, nil
	case "s32", "i32", "int32", "int":
		return S32, nil
	case "u64", "uint64":
		return U64, nil
	case "s64", "i64", "int64":
		return S64, nil
	case "f32", "float", "float32":
		return F32, nil
	case "f64", "double", "float64":
		return F64, nil
	case "aob", "bytes", "array":
		return ArrayOfBytes, nil
	case "string", "str":
		return FixedString, nil
	}
	return 0, fmt.Errorf("unknown data type %q", name)
}

// DataType is a Kind with its byte width. It is comparable: two DataTypes are
// the same type iff kind and size match.
type DataType struct {
	kind Kind
	size int
}

// TypeOf returns the DataType of a fixed-width kind. Variable kinds get size 0,
// meaning the width is taken from parsed input.
func TypeOf(k Kind) DataType {
	size := k.fixedSize()
	if size < 0 {
		size = 0
	}
	return DataType{kind: k, size: size}
}

// ArrayOf returns an ArrayOfBytes type n bytes wide (0 = sized by input)
func ArrayOf(n int) DataType {
	return DataType{kind: ArrayOfBytes, size: max(n, 0)}
}

// StringOf returns a FixedString type n bytes wide (0 = sized by input)
func StringOf(n int) DataType {
	return DataType{kind: FixedString, size: max(n, 0)}
}

// ParseDataType resolves a type name. Variable kinds come back unsized unless
// a width is given as in "aob[4]" or "string[16]".
func ParseDataType(name string) (DataType, error) {
	base, width := strings.TrimSpace(name), ""
	if open := strings.IndexByte(base, '['); open > 0 && strings.HasSuffix(base, "]") {
		base, width = base[:open], base[open+1:len(base)-1]
	}

	k, err := ParseKind(base)
	if err != nil {
		return DataType{}, err
	}
	dt := TypeOf(k)
	if width == "" {
		return dt, nil
	}

	n, err := strconv.Atoi(width)
	if err != nil || n < 0 || !dt.IsVariable() {
		return DataType{}, fmt.Errorf("invalid data type width in %q", name)
	}
	dt.size = n
	return dt, nil
}

func (dt DataType) Kind() Kind {
	return dt.kind
}

func (dt DataType) Size() int {
	return dt.size
}

func (dt DataType) IsSigned() bool {
	switch dt.kind {
	case S8, S16, S32, S64, F32, F64:
		return true
	}
	return false
}

func (dt DataType) IsFloatingPoint() bool {
	return dt.kind == F32 || dt.kind == F64
}

func (dt DataType) IsInteger() bool {
	return dt.kind <= S64
}

// IsVariable reports whether the width was chosen at construction
func (dt DataType) IsVariable() bool {
	return dt.kind == ArrayOfBytes || dt.kind == FixedString
}

// Alignment is the address step used by fast scanning
func (dt DataType) Alignment() int {
	if dt.IsVariable() || dt.size <= 0 {
		return 1
	}
	return dt.size
}

func (dt DataType) String() string {
	if dt.IsVariable() {
		return fmt.Sprintf("%s[%d]", dt.kind, dt.size)
	}
	return dt.kind.String()
}

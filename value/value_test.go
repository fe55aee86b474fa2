package value

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestParseU32(t *testing.T) {
	v, err := Parse("42", TypeOf(U32))
	if err != nil {
		t.Fatalf("unexpected error (%s)", err)
	}
	if !bytes.Equal(v.Bytes(), []byte{42, 0, 0, 0}) {
		t.Errorf("expecting little-endian 42, got % x", v.Bytes())
	}
	if Format(v) != "42" {
		t.Errorf("expecting \"42\", got %q", Format(v))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		text string
		dt   DataType
		want error
	}{
		{"256", TypeOf(U8), ErrOutOfRange},
		{"-1", TypeOf(U16), ErrOutOfRange},
		{"128", TypeOf(S8), ErrOutOfRange},
		{"-129", TypeOf(S8), ErrOutOfRange},
		{"18446744073709551616", TypeOf(U64), ErrOutOfRange},
		{"1e39", TypeOf(F32), ErrOutOfRange},
		{"abc", TypeOf(U32), ErrMalformed},
		{"1.5", TypeOf(S32), ErrMalformed},
		{"", TypeOf(S64), ErrMalformed},
		{"0x10", TypeOf(F64), ErrMalformed},
		{"nanx", TypeOf(F64), ErrMalformed},
		{"-nan", TypeOf(F32), ErrMalformed},
		{"1,5", TypeOf(F32), ErrMalformed},
		{"zz", ArrayOf(0), ErrMalformed},
		{"abc", ArrayOf(0), ErrMalformed},
		{"de ad", ArrayOf(3), ErrMalformed},
		{"", StringOf(0), ErrMalformed},
	}

	for _, tt := range tests {
		_, err := Parse(tt.text, tt.dt)
		if !errors.Is(err, tt.want) {
			t.Errorf("Parse(%q, %s): expecting %v, got %v", tt.text, tt.dt, tt.want, err)
		}
		var pe *ParseError
		if err != nil && !errors.As(err, &pe) {
			t.Errorf("Parse(%q, %s): error is not a *ParseError", tt.text, tt.dt)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		text string
		dt   DataType
	}{
		{"0", TypeOf(U8)},
		{"255", TypeOf(U8)},
		{"-128", TypeOf(S8)},
		{"65535", TypeOf(U16)},
		{"-32768", TypeOf(S16)},
		{"4294967295", TypeOf(U32)},
		{"-2147483648", TypeOf(S32)},
		{"18446744073709551615", TypeOf(U64)},
		{"-9223372036854775808", TypeOf(S64)},
		{"3.14", TypeOf(F32)},
		{"-0.1", TypeOf(F64)},
		{"1e+21", TypeOf(F64)},
		{"100", TypeOf(F32)},
		{"de ad be ef", ArrayOf(0)},
		{"DEADBEEF", ArrayOf(4)},
		{"Player One", StringOf(0)},
	}

	for _, tt := range tests {
		v, err := Parse(tt.text, tt.dt)
		if err != nil {
			t.Errorf("Parse(%q, %s): unexpected error (%s)", tt.text, tt.dt, err)
			continue
		}
		if v.Size() != v.Type().Size() {
			t.Errorf("%q: value holds %d bytes for a %d byte type", tt.text, v.Size(), v.Type().Size())
		}
		again, err := Parse(Format(v), v.Type())
		if err != nil {
			t.Errorf("re-parse of %q (formatted %q): unexpected error (%s)", tt.text, Format(v), err)
			continue
		}
		if !again.Equal(v) {
			t.Errorf("round trip of %q: %q != %q", tt.text, Format(again), Format(v))
		}
	}
}

func TestVariableSizing(t *testing.T) {
	v, err := Parse("de,ad,be,ef,01", ArrayOf(0))
	if err != nil {
		t.Fatalf("unexpected error (%s)", err)
	}
	if v.Type() != ArrayOf(5) {
		t.Errorf("expecting aob[5], got %s", v.Type())
	}

	s, err := Parse("hero", StringOf(0))
	if err != nil {
		t.Fatalf("unexpected error (%s)", err)
	}
	if s.Type().Size() != 4 || Format(s) != "hero" {
		t.Errorf("unexpected string value %s (%s)", s, s.Type())
	}
}

func TestCompare(t *testing.T) {
	mustParse := func(text string, dt DataType) Value {
		t.Helper()
		v, err := Parse(text, dt)
		if err != nil {
			t.Fatalf("Parse(%q): %s", text, err)
		}
		return v
	}

	tests := []struct {
		a, b Value
		want Ordering
	}{
		{mustParse("1", TypeOf(U32)), mustParse("2", TypeOf(U32)), Less},
		{mustParse("4000000000", TypeOf(U32)), mustParse("2", TypeOf(U32)), Greater},
		{mustParse("-1", TypeOf(S32)), mustParse("2", TypeOf(S32)), Less},
		{mustParse("-1", TypeOf(S8)), mustParse("-1", TypeOf(S8)), Equal},
		{mustParse("1.5", TypeOf(F32)), mustParse("-1.5", TypeOf(F32)), Greater},
		{mustParse("0", TypeOf(F64)), mustParse("-0", TypeOf(F64)), Equal},
		{mustParse("01 02", ArrayOf(2)), mustParse("01 03", ArrayOf(2)), Less},
		{mustParse("abc", StringOf(3)), mustParse("abb", StringOf(3)), Greater},
	}

	for _, tt := range tests {
		got, err := Compare(tt.a, tt.b)
		if err != nil {
			t.Errorf("Compare(%s, %s): unexpected error (%s)", tt.a, tt.b, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Compare(%s, %s): expecting %s, got %s", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestCompareTypeMismatch(t *testing.T) {
	a, _ := Parse("1", TypeOf(U32))
	pairs := []Value{}
	for _, dt := range []DataType{TypeOf(S32), TypeOf(U16), TypeOf(F32), ArrayOf(4)} {
		raw := make([]byte, dt.Size())
		b, err := FromBytes(dt, raw)
		if err != nil {
			t.Fatalf("FromBytes(%s): %s", dt, err)
		}
		pairs = append(pairs, b)
	}

	for _, b := range pairs {
		if _, err := Compare(a, b); !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("Compare(u32, %s): expecting type mismatch, got %v", b.Type(), err)
		}
	}

	// strings of different widths are different types
	s3, _ := Parse("abc", StringOf(0))
	s4, _ := Parse("abcd", StringOf(0))
	if _, err := Compare(s3, s4); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expecting type mismatch between string widths, got %v", err)
	}
}

func TestCompareNaN(t *testing.T) {
	nan, _ := FromBytes(TypeOf(F32), []byte{0x00, 0x00, 0xc0, 0x7f})
	one, _ := Parse("1", TypeOf(F32))
	got, err := Compare(nan, one)
	if err != nil || got != Unordered {
		t.Errorf("expecting unordered, got %s (%v)", got, err)
	}
}

func TestFromIntegers(t *testing.T) {
	if _, err := FromUint64(TypeOf(U8), 256); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expecting out of range, got %v", err)
	}
	if _, err := FromInt64(TypeOf(U8), -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expecting out of range, got %v", err)
	}
	v, err := FromInt64(TypeOf(S16), -2)
	if err != nil || v.Int64() != -2 || !bytes.Equal(v.Bytes(), []byte{0xfe, 0xff}) {
		t.Errorf("unexpected s16 encoding % x (%v)", v.Bytes(), err)
	}
	if _, err := FromUint64(TypeOf(F32), 1); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expecting type mismatch, got %v", err)
	}
}

func TestNonFiniteFloatsRoundTrip(t *testing.T) {
	for _, dt := range []DataType{TypeOf(F32), TypeOf(F64)} {
		for _, bits := range []uint64{0x7ff8000000000000, 0xfff0000000000000, 0x7ff0000000000000} {
			f := math.Float64frombits(bits)
			v, err := FromFloat64(dt, f)
			if err != nil {
				t.Fatalf("FromFloat64(%s, %v): %v", dt, f, err)
			}

			back, err := Parse(Format(v), dt)
			if err != nil {
				t.Fatalf("Parse(%q, %s): %v", Format(v), dt, err)
			}
			got := back.Float64()
			if math.IsNaN(f) != math.IsNaN(got) || (!math.IsNaN(f) && got != f) {
				t.Errorf("%s: %v formatted as %q parsed back as %v", dt, f, Format(v), got)
			}
		}
	}

	if v, err := Parse("-INF", TypeOf(F32)); err != nil || !math.IsInf(v.Float64(), -1) {
		t.Errorf("Parse(-INF) = %v, %v", v, err)
	}
}

func TestParseKind(t *testing.T) {
	for _, name := range []string{"u8", "s8", "u16", "s16", "u32", "s32", "u64", "s64", "f32", "f64", "aob", "string"} {
		k, err := ParseKind(name)
		if err != nil {
			t.Errorf("ParseKind(%q): unexpected error (%s)", name, err)
			continue
		}
		if k.String() != name {
			t.Errorf("ParseKind(%q) = %s", name, k)
		}
	}
	if k, _ := ParseKind("Double"); k != F64 {
		t.Errorf("expecting double alias for f64")
	}
	if _, err := ParseKind("u128"); err == nil {
		t.Errorf("expecting failure for u128")
	}

	if TypeOf(U32).Alignment() != 4 || ArrayOf(8).Alignment() != 1 {
		t.Errorf("unexpected alignments")
	}
}

func TestParseDataType(t *testing.T) {
	tests := []struct {
		name string
		want DataType
		fail bool
	}{
		{name: "u32", want: TypeOf(U32)},
		{name: "aob", want: ArrayOf(0)},
		{name: "aob[4]", want: ArrayOf(4)},
		{name: "string[16]", want: StringOf(16)},
		{name: "u32[4]", fail: true},
		{name: "aob[x]", fail: true},
		{name: "nope", fail: true},
	}

	for _, test := range tests {
		dt, err := ParseDataType(test.name)
		if test.fail {
			if err == nil {
				t.Errorf("ParseDataType(%q): expecting failure, got %s", test.name, dt)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDataType(%q): unexpected error (%s)", test.name, err)
			continue
		}
		if dt != test.want {
			t.Errorf("ParseDataType(%q) = %s, want %s", test.name, dt, test.want)
		}
	}

	// String output parses back to the same type
	for _, dt := range []DataType{TypeOf(S16), ArrayOf(3), StringOf(5)} {
		if back, err := ParseDataType(dt.String()); err != nil || back != dt {
			t.Errorf("ParseDataType(%q) = %s, %v", dt.String(), back, err)
		}
	}
}

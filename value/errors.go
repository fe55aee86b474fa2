package value

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is matched by parse errors for text that is not a value of the requested type
	ErrMalformed = errors.New("malformed value")

	// ErrOutOfRange is matched by parse errors for values that do not fit the type's bit width
	ErrOutOfRange = errors.New("value out of range")

	// ErrTypeMismatch is returned when two values of different data types are compared
	ErrTypeMismatch = errors.New("data type mismatch")

	// ErrSizeMismatch is returned when raw bytes do not match the data type width
	ErrSizeMismatch = errors.New("byte length does not match data type size")
)

// ParseError reports user input that could not be turned into a Value
type ParseError struct {
	Text string
	Type DataType
	Err  error // ErrMalformed or ErrOutOfRange
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q as %s: %v", e.Text, e.Type, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func malformed(text string, dt DataType) error {
	return &ParseError{Text: text, Type: dt, Err: ErrMalformed}
}

func outOfRange(text string, dt DataType) error {
	return &ParseError{Text: text, Type: dt, Err: ErrOutOfRange}
}

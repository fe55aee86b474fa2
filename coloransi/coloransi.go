// Package coloransi paints terminal output with ANSI SGR sequences. A
// disabled Painter returns text unchanged so the same rendering code serves
// terminals, pipes and tests.
package coloransi

import (
	"fmt"
	"strings"
)

// ColorCode is an ANSI foreground code, or an RGB triple in the upper 24 bits
type ColorCode uint32

const (
	Black   ColorCode = 30
	Red     ColorCode = 31
	Green   ColorCode = 32
	Yellow  ColorCode = 33
	Blue    ColorCode = 34
	Magenta ColorCode = 35
	Cyan    ColorCode = 36
	White   ColorCode = 37

	BrightBlack ColorCode = Black + 60
	BrightRed   ColorCode = Red + 60
	BrightBlue  ColorCode = Blue + 60

	backgroundOffset ColorCode = 10
)

func RGB(r, g, b uint8) ColorCode {
	return ColorCode(uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8)
}

var Orange = RGB(255, 140, 0)

func (c ColorCode) IsRGB() bool {
	return c > 0xFF
}

func (c ColorCode) foreground() string {
	if c.IsRGB() {
		return fmt.Sprintf("\033[38;2;%d;%d;%dm", (c>>24)&0xFF, (c>>16)&0xFF, (c>>8)&0xFF)
	}
	return fmt.Sprintf("\033[%dm", c)
}

func (c ColorCode) background() string {
	if c.IsRGB() {
		return fmt.Sprintf("\033[48;2;%d;%d;%dm", (c>>24)&0xFF, (c>>16)&0xFF, (c>>8)&0xFF)
	}
	return fmt.Sprintf("\033[%dm", c+backgroundOffset)
}

const reset = "\033[0m"

// Painter wraps text in colour sequences when Enabled
type Painter struct {
	Enabled bool
}

func (p Painter) Foreground(fg ColorCode, v ...interface{}) string {
	text := join(v)
	if !p.Enabled {
		return text
	}
	return fg.foreground() + text + reset
}

func (p Painter) Color(fg, bg ColorCode, v ...interface{}) string {
	text := join(v)
	if !p.Enabled {
		return text
	}
	return fg.foreground() + bg.background() + text + reset
}

func join(v []interface{}) string {
	args := make([]string, len(v))
	for i, arg := range v {
		args[i] = fmt.Sprint(arg)
	}
	return strings.Join(args, " ")
}

// VisibleLength is the printed width of s, ignoring escape sequences
func VisibleLength(s string) int {
	length := 0
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\033':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			length++
		}
	}
	return length
}

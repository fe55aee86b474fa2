// Package hexdump renders target memory as address / hex / ascii lines
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"memcheat/coloransi"
	"memcheat/process/memory_map"
)

// Options controls one dump
type Options struct {
	// BytesPerLine defaults to 16
	BytesPerLine int

	// Address of data[0]
	StartAddress uint64

	// Highlight marks every occurrence of the pattern
	Highlight []byte

	// Regions enables pointer hints: 8 byte words at line offsets 0 and 8
	// that land inside one of them are printed after the ascii column
	Regions []memory_map.Region

	Painter coloransi.Painter
}

// Dump writes data to w. Zero bytes are dimmed and non-printable bytes show
// as red dots.
//
//	00007ffd12345670  0a 00 00 00 14 00 00 00 | 0a 00 00 00 63 00 00 00 | ........ ....c... | 0x55d0c3a01000
func Dump(w io.Writer, data []byte, opts Options) error {
	if opts.BytesPerLine <= 0 {
		opts.BytesPerLine = 16
	}

	marked := highlightMask(data, opts.Highlight)

	for offset := 0; offset < len(data); offset += opts.BytesPerLine {
		end := min(offset+opts.BytesPerLine, len(data))
		if err := line(w, data[offset:end], marked[offset:end], opts.StartAddress+uint64(offset), opts); err != nil {
			return err
		}
	}
	return nil
}

// String is Dump into a string
func String(data []byte, opts Options) string {
	var buf bytes.Buffer
	Dump(&buf, data, opts)
	return buf.String()
}

func highlightMask(data, pattern []byte) []bool {
	marked := make([]bool, len(data))
	if len(pattern) == 0 {
		return marked
	}
	for i := 0; i+len(pattern) <= len(data); i++ {
		if bytes.Equal(data[i:i+len(pattern)], pattern) {
			for j := range pattern {
				marked[i+j] = true
			}
		}
	}
	return marked
}

func line(w io.Writer, data []byte, marked []bool, addr uint64, opts Options) error {
	p := opts.Painter
	half := opts.BytesPerLine / 2
	split := opts.BytesPerLine >= 8

	var sb strings.Builder
	sb.WriteString(p.Foreground(coloransi.Cyan, fmt.Sprintf("%016x", addr)))
	sb.WriteString("  ")

	for i := 0; i < opts.BytesPerLine; i++ {
		if i > 0 {
			if split && i == half {
				sb.WriteString(" | ")
			} else {
				sb.WriteByte(' ')
			}
		}
		if i >= len(data) {
			sb.WriteString("  ")
			continue
		}

		hex := fmt.Sprintf("%02x", data[i])
		switch {
		case marked[i]:
			sb.WriteString(p.Color(coloransi.Yellow, coloransi.Black, hex))
		case data[i] == 0:
			sb.WriteString(p.Foreground(coloransi.BrightBlack, hex))
		default:
			sb.WriteString(p.Foreground(coloransi.Green, hex))
		}
	}

	sb.WriteString(" | ")
	for i, b := range data {
		if split && i == half {
			sb.WriteByte(' ')
		}
		switch {
		case marked[i] && isPrint(b):
			sb.WriteString(p.Color(coloransi.Yellow, coloransi.Black, string(rune(b))))
		case b == 0:
			sb.WriteString(p.Foreground(coloransi.BrightBlack, "."))
		case !isPrint(b):
			sb.WriteString(p.Foreground(coloransi.Red, "."))
		default:
			sb.WriteByte(b)
		}
	}

	if hints := pointerHints(data, opts.Regions); len(hints) > 0 {
		sb.WriteString(strings.Repeat(" ", opts.BytesPerLine-len(data)))
		sb.WriteString(" |")
		for _, h := range hints {
			sb.WriteByte(' ')
			sb.WriteString(p.Foreground(coloransi.Yellow, fmt.Sprintf("0x%x", h)))
		}
	}

	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

func isPrint(b byte) bool {
	return b >= 0x20 && b < 0x7f
}

func pointerHints(data []byte, regions []memory_map.Region) []uint64 {
	if len(regions) == 0 {
		return nil
	}

	var hints []uint64
	for off := 0; off+8 <= len(data) && off <= 8; off += 8 {
		ptr := binary.LittleEndian.Uint64(data[off:])
		for _, r := range regions {
			if r.Contains(ptr) {
				hints = append(hints, ptr)
				break
			}
		}
	}
	return hints
}

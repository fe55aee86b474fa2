package coloransi

import "testing"

func TestDisabledPainterIsPlain(t *testing.T) {
	p := Painter{}
	if got := p.Foreground(Red, "a", 1); got != "a 1" {
		t.Fatalf("Foreground = %q", got)
	}
	if got := p.Color(Red, Black, "x"); got != "x" {
		t.Fatalf("Color = %q", got)
	}
}

func TestPainter(t *testing.T) {
	p := Painter{Enabled: true}

	if got := p.Foreground(Red, "x"); got != "\033[31mx\033[0m" {
		t.Fatalf("Foreground = %q", got)
	}
	if got := p.Color(Yellow, Black, "x"); got != "\033[33m\033[40mx\033[0m" {
		t.Fatalf("Color = %q", got)
	}
	if got := p.Foreground(RGB(1, 2, 3), "x"); got != "\033[38;2;1;2;3mx\033[0m" {
		t.Fatalf("RGB = %q", got)
	}
}

func TestVisibleLength(t *testing.T) {
	p := Painter{Enabled: true}
	s := p.Foreground(Green, "abc") + "de" + p.Color(Orange, Black, "f")
	if n := VisibleLength(s); n != 6 {
		t.Fatalf("VisibleLength = %d", n)
	}
}

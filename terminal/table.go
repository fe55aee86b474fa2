package terminal

import (
	"fmt"
	"io"
	"strings"

	"memcheat/coloransi"
)

// column of a table; format colours a cell after its width is measured
type column struct {
	header string
	right  bool
	format func(string) string
}

type table struct {
	columns []column
	rows    [][]string
	widths  []int
}

func newTable(cols ...column) *table {
	t := &table{
		columns: cols,
		widths:  make([]int, len(cols)),
	}
	for i, col := range cols {
		t.widths[i] = len(col.header)
	}
	return t
}

func (t *table) add(cells ...string) {
	row := make([]string, len(t.columns))
	for i := range row {
		row[i] = "-"
		if i < len(cells) && cells[i] != "" {
			row[i] = cells[i]
		}
		t.widths[i] = max(t.widths[i], coloransi.VisibleLength(row[i]))
	}
	t.rows = append(t.rows, row)
}

func (t *table) render(w io.Writer) error {
	headers := make([]string, len(t.columns))
	rules := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = t.pad(i, col.header)
		rules[i] = strings.Repeat("-", t.widths[i])
	}
	if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(headers, "  "), " ")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Join(rules, "  ")); err != nil {
		return err
	}

	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = t.pad(i, cell)
			if f := t.columns[i].format; f != nil {
				cells[i] = strings.Replace(cells[i], cell, f(cell), 1)
			}
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " ")); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) pad(i int, s string) string {
	n := t.widths[i] - coloransi.VisibleLength(s)
	if n <= 0 {
		return s
	}
	if t.columns[i].right {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}

// Package stats contains statistics calculations and reporting.
package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/dungeonlog/internal/projection"
)

const (
	columnGap  = "  "
	bestMarker = "*"
)

// column describes one column of a report table. Ranked columns keep a
// marker cell after every value, so a starred best value stays aligned with
// the rest of its column.
type column struct {
	title  string
	right  bool
	ranked bool
}

type cell struct {
	text string
	best bool
}

func plain(value string) cell {
	return cell{text: value}
}

// rankedCell marks value when e holds the best m.
func rankedCell(value string, e projection.Entry, m projection.Metric) cell {
	return cell{text: value, best: e.Best.Has(m)}
}

type reportTable struct {
	columns []column
	rows    [][]cell
}

func newReportTable(columns ...column) *reportTable {
	return &reportTable{columns: columns}
}

// add appends a row. Missing cells render empty and extra cells are dropped.
func (t *reportTable) add(cells ...cell) {
	row := make([]cell, len(t.columns))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

func (t *reportTable) lines() []string {
	if len(t.columns) == 0 {
		return nil
	}
	header := make([]cell, len(t.columns))
	for i, col := range t.columns {
		header[i] = plain(col.title)
	}

	widths := make([]int, len(t.columns))
	for _, row := range append([][]cell{header}, t.rows...) {
		for i, c := range row {
			widths[i] = max(widths[i], t.cellWidth(i, c))
		}
	}

	out := make([]string, 0, len(t.rows)+1)
	out = append(out, t.format(header, widths))
	for _, row := range t.rows {
		out = append(out, t.format(row, widths))
	}
	return out
}

func (t *reportTable) cellWidth(i int, c cell) int {
	w := displayWidth(c.text)
	if t.columns[i].ranked {
		w += displayWidth(bestMarker)
	}
	return w
}

func (t *reportTable) format(row []cell, widths []int) string {
	var b strings.Builder
	for i, c := range row {
		if i > 0 {
			b.WriteString(columnGap)
		}
		value := c.text
		if t.columns[i].ranked {
			if c.best {
				value += bestMarker
			} else {
				value += strings.Repeat(" ", displayWidth(bestMarker))
			}
		}
		pad := strings.Repeat(" ", max(widths[i]-displayWidth(value), 0))
		if t.columns[i].right {
			b.WriteString(pad + value)
		} else {
			b.WriteString(value + pad)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// displayWidth counts terminal cells, so player and mob names in wide
// scripts line up.
func displayWidth(value string) int {
	return runewidth.StringWidth(value)
}

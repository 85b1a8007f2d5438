package stats

import (
	"testing"

	"github.com/verte-zerg/dungeonlog/internal/projection"
)

func TestReportTableAlignsWideModeNames(t *testing.T) {
	table := newReportTable(
		column{title: "Mode"},
		column{title: "Runs", right: true},
		column{title: "Fame", right: true},
	)
	table.add(plain("Solo"), plain("3"), plain("1,200"))
	table.add(plain("ハード"), plain("12"), plain("9"))

	lines := table.lines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Mode    Runs   Fame" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "Solo       3  1,200" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "ハード    12      9" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestReportTableKeepsBestMarkerOutOfTheDigits(t *testing.T) {
	best := projection.Entry{Hash: "a1"}
	best.Best = 1 << uint(projection.MetricFame)
	other := projection.Entry{Hash: "b2"}

	table := newReportTable(
		column{title: "Hash"},
		column{title: "Fame", right: true, ranked: true},
	)
	table.add(plain(best.Hash), rankedCell("300", best, projection.MetricFame))
	table.add(plain(other.Hash), rankedCell("1,200", other, projection.MetricFame))

	lines := table.lines()
	want := []string{
		"Hash   Fame",
		"a1      300*",
		"b2    1,200",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestReportTableShortRowsRenderEmpty(t *testing.T) {
	table := newReportTable(column{title: "A"}, column{title: "B", right: true})
	table.add(plain("x"))
	lines := table.lines()
	if len(lines) != 2 || lines[1] != "x" {
		t.Fatalf("unexpected lines %q", lines)
	}
	if newReportTable().lines() != nil {
		t.Fatalf("a table without columns renders nothing")
	}
}

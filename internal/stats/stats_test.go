package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/dungeonlog/internal/model"
)

func TestSparklineFlatAndRange(t *testing.T) {
	if got := Sparkline([]float64{2, 2, 2}); got != "+++" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
	got := Sparkline([]float64{0, 10})
	if got[0] != ' ' || got[1] != '@' {
		t.Fatalf("unexpected sparkline %q", got)
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestResample(t *testing.T) {
	got := Resample([]float64{1, 3, 5, 7}, 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 6 {
		t.Fatalf("unexpected resample %v", got)
	}
	if got := Resample([]float64{1, 2}, 10); len(got) != 2 {
		t.Fatalf("short input should be kept")
	}
}

func TestFormatters(t *testing.T) {
	if got := FormatAmount(1234567.4); got != "1,234,567" {
		t.Fatalf("unexpected amount %q", got)
	}
	if got := FormatAmount(999); got != "999" {
		t.Fatalf("unexpected amount %q", got)
	}
	if got := FormatDuration(65 * time.Second); got != "1:05" {
		t.Fatalf("unexpected duration %q", got)
	}
	if got := FormatDuration(time.Hour + 2*time.Minute + 3*time.Second); got != "1:02:03" {
		t.Fatalf("unexpected duration %q", got)
	}
	chests := map[model.ChestRarity]int{model.RarityRare: 2}
	if got := FormatChests(chests); got != "Standard 0, Uncommon 0, Rare 2, Legendary 0" {
		t.Fatalf("unexpected chests %q", got)
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	st := model.Stats{Runs: 3, Fame: 12000, Chests: map[model.ChestRarity]int{}}
	if err := RenderSummary(&buf, "Total", st); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Runs: 3") || !strings.Contains(out, "Fame: 12,000") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

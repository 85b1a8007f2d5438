// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/dungeonlog/internal/model"
	"github.com/verte-zerg/dungeonlog/internal/projection"
)

const sparkChars = " .:-=+*#%@"

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Resample averages values into at most width buckets.
func Resample(values []float64, width int) []float64 {
	if width <= 0 || len(values) <= width {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, width)
	for i := 0; i < width; i++ {
		start := i * len(values) / width
		end := (i + 1) * len(values) / width
		if end <= start {
			end = start + 1
		}
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

// RenderSummary prints one statistics block.
func RenderSummary(w io.Writer, title string, st model.Stats) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	lines := []string{
		fmt.Sprintf("Runs: %d", st.Runs),
		fmt.Sprintf("Fame: %s", FormatAmount(st.Fame)),
		fmt.Sprintf("Silver: %s", FormatAmount(st.Silver)),
		fmt.Sprintf("ReSpec: %s", FormatAmount(st.ReSpec)),
		fmt.Sprintf("Faction flags: %s", FormatAmount(st.FactionFlags)),
		fmt.Sprintf("Faction coins: %s", FormatAmount(st.FactionCoins)),
		"Chests: " + FormatChests(st.Chests),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, ""); err != nil {
		return err
	}
	return nil
}

// RenderModes prints the per-mode breakdown.
func RenderModes(w io.Writer, modes []ModeSummary) error {
	if len(modes) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "By Mode"); err != nil {
		return err
	}
	table := newReportTable(
		column{title: "Mode"},
		column{title: "Runs", right: true},
		column{title: "Fame", right: true},
		column{title: "Silver", right: true},
		column{title: "Avg Time", right: true},
		column{title: "Fame/h", right: true},
	)
	for _, m := range modes {
		table.add(
			plain(string(m.Mode)),
			plain(fmt.Sprintf("%d", m.Runs)),
			plain(FormatAmount(m.Fame)),
			plain(FormatAmount(m.Silver)),
			plain(FormatDuration(m.AvgTime)),
			plain(FormatAmount(m.FamePerHour)),
		)
	}
	return writeLines(w, table.lines())
}

// RenderRunTable prints the run list. Best values carry a '*' suffix.
func RenderRunTable(w io.Writer, entries []projection.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Runs"); err != nil {
		return err
	}
	table := newReportTable(
		column{title: "#", right: true},
		column{title: "Hash"},
		column{title: "Entered"},
		column{title: "Mode"},
		column{title: "Faction"},
		column{title: "Time", right: true, ranked: true},
		column{title: "Fame", right: true, ranked: true},
		column{title: "Fame/h", right: true, ranked: true},
		column{title: "Silver", right: true, ranked: true},
		column{title: "Silver/h", right: true, ranked: true},
		column{title: "Chests", right: true},
		column{title: "Died"},
	)
	for _, e := range entries {
		died := ""
		if e.DiedInDungeon {
			died = "yes"
		}
		table.add(
			plain(fmt.Sprintf("%d", e.RunNumber)),
			plain(e.Hash),
			plain(e.EnterTime.Local().Format("2006-01-02 15:04")),
			plain(string(e.Mode)),
			plain(string(e.Faction)),
			rankedCell(FormatDuration(e.TotalRunTime), e, projection.MetricTime),
			rankedCell(FormatAmount(e.Rewards.Fame), e, projection.MetricFame),
			rankedCell(FormatAmount(e.PerHour.Fame), e, projection.MetricFamePerHour),
			rankedCell(FormatAmount(e.Rewards.Silver), e, projection.MetricSilver),
			rankedCell(FormatAmount(e.PerHour.Silver), e, projection.MetricSilverPerHour),
			plain(fmt.Sprintf("%d", len(e.EventObjects))),
			plain(died),
		)
	}
	return writeLines(w, table.lines())
}

// RenderTrend prints a fame per hour sparkline, oldest run first.
func RenderTrend(w io.Writer, values []float64, window, width int) error {
	if len(values) < 2 {
		return nil
	}
	line := Sparkline(Resample(MovingAverage(values, window), width))
	_, err := fmt.Fprintf(w, "Fame/h trend\n%s\n\n", line)
	return err
}

// Render prints the whole report sized to width columns.
func Render(w io.Writer, report Report, width int) error {
	if err := RenderSummary(w, "Last 24h", report.Day); err != nil {
		return err
	}
	if err := RenderSummary(w, "Total", report.Total); err != nil {
		return err
	}
	if err := RenderModes(w, report.Modes); err != nil {
		return err
	}
	if err := RenderTrend(w, report.Trend, report.TrendWindow, width); err != nil {
		return err
	}
	return RenderRunTable(w, report.Entries)
}

// FormatAmount renders a reward with thousands separators.
func FormatAmount(v float64) string {
	n := int64(math.Round(v))
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String()
}

// FormatDuration renders d as h:mm:ss or m:ss.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatChests renders chest counts by rarity in ascending order.
func FormatChests(chests map[model.ChestRarity]int) string {
	parts := make([]string, 0, len(model.Rarities))
	for _, r := range model.Rarities {
		parts = append(parts, fmt.Sprintf("%s %d", r, chests[r]))
	}
	return strings.Join(parts, ", ")
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

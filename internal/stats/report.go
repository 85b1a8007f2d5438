// Package stats contains statistics calculations and reporting.
package stats

import (
	"context"
	"os"
	"sort"
	"time"

	"golang.org/x/term"

	"github.com/verte-zerg/dungeonlog/internal/model"
	"github.com/verte-zerg/dungeonlog/internal/projection"
	"github.com/verte-zerg/dungeonlog/internal/store"
	"github.com/verte-zerg/dungeonlog/internal/tracker"
)

const terminalWidthBackup = 80

// Config selects the runs a report covers.
type Config struct {
	Since       *time.Time
	Last        int
	Filter      model.ModeFilter
	TrendWindow int
}

// ModeSummary aggregates the done runs of one mode.
type ModeSummary struct {
	Mode        model.Mode
	Runs        int
	Fame        float64
	Silver      float64
	AvgTime     time.Duration
	FamePerHour float64
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Day         model.Stats
	Total       model.Stats
	Modes       []ModeSummary
	Entries     []projection.Entry
	Trend       []float64
	TrendWindow int
}

// BuildReport loads runs from repo and prepares them for rendering.
func BuildReport(ctx context.Context, repo store.Repository, cfg Config, now time.Time) (Report, error) {
	runs, err := repo.Load(ctx)
	if err != nil {
		return Report{}, err
	}
	return NewReport(runs, cfg, now), nil
}

// NewReport prepares runs for rendering.
func NewReport(runs []model.DungeonRun, cfg Config, now time.Time) Report {
	runs = selectRuns(runs, cfg)

	cs := projection.NewSync().Reconcile(runs, now, cfg.Filter)
	byHash := make(map[string]projection.Entry, len(cs.Ops))
	for _, op := range cs.Ops {
		if op.Entry != nil {
			byHash[op.Hash] = *op.Entry
		}
	}
	entries := make([]projection.Entry, 0, len(cs.Order))
	for _, hash := range cs.Order {
		entries = append(entries, byHash[hash])
	}

	trend := make([]float64, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Status == model.StatusDone {
			trend = append(trend, entries[i].PerHour.Fame)
		}
	}

	return Report{
		Day:         tracker.DayStats(runs, now, cfg.Filter),
		Total:       tracker.TotalStats(runs, cfg.Filter),
		Modes:       modeSummaries(entries),
		Entries:     entries,
		Trend:       trend,
		TrendWindow: cfg.TrendWindow,
	}
}

// selectRuns applies the since bound and keeps the last N runs by entry time.
func selectRuns(runs []model.DungeonRun, cfg Config) []model.DungeonRun {
	out := make([]model.DungeonRun, 0, len(runs))
	for _, run := range runs {
		if cfg.Since != nil && !run.EnterTime.After(*cfg.Since) {
			continue
		}
		out = append(out, run)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnterTime.After(out[j].EnterTime)
	})
	if cfg.Last > 0 && len(out) > cfg.Last {
		out = out[:cfg.Last]
	}
	return out
}

func modeSummaries(entries []projection.Entry) []ModeSummary {
	byMode := map[model.Mode]*ModeSummary{}
	times := map[model.Mode]time.Duration{}
	for _, e := range entries {
		if e.Status != model.StatusDone {
			continue
		}
		sum, ok := byMode[e.Mode]
		if !ok {
			sum = &ModeSummary{Mode: e.Mode}
			byMode[e.Mode] = sum
		}
		sum.Runs++
		sum.Fame += e.Rewards.Fame
		sum.Silver += e.Rewards.Silver
		times[e.Mode] += e.TotalRunTime
	}
	out := make([]ModeSummary, 0, len(byMode))
	for _, mode := range model.Modes {
		sum, ok := byMode[mode]
		if !ok {
			continue
		}
		total := times[mode]
		sum.AvgTime = total / time.Duration(sum.Runs)
		sum.FamePerHour = model.PerHour(sum.Fame, total)
		out = append(out, *sum)
	}
	return out
}

// TerminalWidth returns the width of stdout, or a fallback when it is not a
// terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

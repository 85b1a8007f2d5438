package tracker

import (
	"time"

	"github.com/verte-zerg/dungeonlog/internal/model"
)

// dayWindow is the lookback of the day statistics.
const dayWindow = 24 * time.Hour

func selected(run *model.DungeonRun, since *time.Time, filter model.ModeFilter) bool {
	if since != nil && !run.EnterTime.After(*since) {
		return false
	}
	return filter.Allows(run.Mode)
}

// CountRuns counts runs entered after since.
func CountRuns(runs []model.DungeonRun, since *time.Time, filter model.ModeFilter) int {
	count := 0
	for i := range runs {
		if selected(&runs[i], since, filter) {
			count++
		}
	}
	return count
}

// SumValue adds up the accumulator of kind over runs entered after since.
func SumValue(runs []model.DungeonRun, since *time.Time, filter model.ModeFilter, kind model.ValueKind) float64 {
	var sum float64
	for i := range runs {
		if selected(&runs[i], since, filter) {
			sum += runs[i].Rewards.Value(kind)
		}
	}
	return sum
}

// SumFame adds up fame over runs entered after since.
func SumFame(runs []model.DungeonRun, since *time.Time, filter model.ModeFilter) float64 {
	return SumValue(runs, since, filter, model.ValueFame)
}

// SumReSpec adds up respec points over runs entered after since.
func SumReSpec(runs []model.DungeonRun, since *time.Time, filter model.ModeFilter) float64 {
	return SumValue(runs, since, filter, model.ValueReSpec)
}

// SumSilver adds up silver over runs entered after since.
func SumSilver(runs []model.DungeonRun, since *time.Time, filter model.ModeFilter) float64 {
	return SumValue(runs, since, filter, model.ValueSilver)
}

// CountChests counts event objects of rarity over runs entered after since.
func CountChests(runs []model.DungeonRun, since *time.Time, filter model.ModeFilter, rarity model.ChestRarity) int {
	count := 0
	for i := range runs {
		if !selected(&runs[i], since, filter) {
			continue
		}
		for _, obj := range runs[i].EventObjects {
			if obj.Rarity == rarity {
				count++
			}
		}
	}
	return count
}

// Summarize computes every statistic for one window in a single pass.
func Summarize(runs []model.DungeonRun, since *time.Time, filter model.ModeFilter) model.Stats {
	st := model.Stats{Chests: make(map[model.ChestRarity]int, len(model.Rarities))}
	for _, r := range model.Rarities {
		st.Chests[r] = 0
	}
	for i := range runs {
		run := &runs[i]
		if !selected(run, since, filter) {
			continue
		}
		st.Runs++
		st.Fame += run.Rewards.Fame
		st.ReSpec += run.Rewards.ReSpec
		st.Silver += run.Rewards.Silver
		st.FactionFlags += run.Rewards.FactionFlags
		st.FactionCoins += run.Rewards.FactionCoins
		for _, obj := range run.EventObjects {
			if _, ok := st.Chests[obj.Rarity]; ok {
				st.Chests[obj.Rarity]++
			}
		}
	}
	return st
}

// DayStats summarizes runs entered in the 24 hours before now.
func DayStats(runs []model.DungeonRun, now time.Time, filter model.ModeFilter) model.Stats {
	since := now.Add(-dayWindow)
	return Summarize(runs, &since, filter)
}

// TotalStats summarizes every run.
func TotalStats(runs []model.DungeonRun, filter model.ModeFilter) model.Stats {
	return Summarize(runs, nil, filter)
}

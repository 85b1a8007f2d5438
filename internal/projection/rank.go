package projection

import "github.com/verte-zerg/dungeonlog/internal/model"

var valueMetrics = []Metric{
	MetricFame,
	MetricReSpec,
	MetricSilver,
	MetricFactionFlags,
	MetricFactionCoins,
	MetricFamePerHour,
	MetricReSpecPerHour,
	MetricSilverPerHour,
	MetricFactionFlagsPerHour,
	MetricFactionCoinsPerHour,
}

// Rank recomputes the best-value flags over entries. For each metric the first
// done entry holding the maximum positive value is flagged; for time, the first
// done entry with a boss chest holding the minimum run time.
func Rank(entries []*Entry) {
	for _, m := range valueMetrics {
		rankMax(entries, m)
	}
	rankBestTime(entries)
}

func rankMax(entries []*Entry, m Metric) {
	best := -1
	for i, e := range entries {
		e.Best.clear(m)
		if e.Status != model.StatusDone {
			continue
		}
		v := e.Value(m)
		if !(v > 0) {
			continue
		}
		if best < 0 || v > entries[best].Value(m) {
			best = i
		}
	}
	if best >= 0 {
		entries[best].Best.set(m)
	}
}

func rankBestTime(entries []*Entry) {
	best := -1
	for i, e := range entries {
		e.Best.clear(MetricTime)
		if e.Status != model.StatusDone || !e.HasBossChest() {
			continue
		}
		if best < 0 || e.TotalRunTime < entries[best].TotalRunTime {
			best = i
		}
	}
	if best >= 0 {
		entries[best].Best.set(MetricTime)
	}
}

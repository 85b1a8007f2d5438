// Package projection maintains the display-facing read model of tracked runs.
package projection

import (
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/dungeonlog/internal/model"
)

// Metric identifies a rankable value of a run.
type Metric int

// Ranked metrics. MetricTime ranks the minimum, every other metric the maximum.
const (
	MetricFame Metric = iota
	MetricReSpec
	MetricSilver
	MetricFactionFlags
	MetricFactionCoins
	MetricFamePerHour
	MetricReSpecPerHour
	MetricSilverPerHour
	MetricFactionFlagsPerHour
	MetricFactionCoinsPerHour
	MetricTime
)

var metricNames = map[Metric]string{
	MetricFame:                "fame",
	MetricReSpec:              "respec",
	MetricSilver:              "silver",
	MetricFactionFlags:        "faction_flags",
	MetricFactionCoins:        "faction_coins",
	MetricFamePerHour:         "fame_per_hour",
	MetricReSpecPerHour:       "respec_per_hour",
	MetricSilverPerHour:       "silver_per_hour",
	MetricFactionFlagsPerHour: "faction_flags_per_hour",
	MetricFactionCoinsPerHour: "faction_coins_per_hour",
	MetricTime:                "time",
}

func (m Metric) String() string {
	if name, ok := metricNames[m]; ok {
		return name
	}
	return "unknown"
}

// BestFlags is the set of metrics a run holds the best value for.
type BestFlags uint16

// Has reports whether the flag for m is set.
func (f BestFlags) Has(m Metric) bool {
	return f&(1<<uint(m)) != 0
}

// Metrics lists the set flags.
func (f BestFlags) Metrics() []Metric {
	var out []Metric
	for m := MetricFame; m <= MetricTime; m++ {
		if f.Has(m) {
			out = append(out, m)
		}
	}
	return out
}

func (f *BestFlags) set(m Metric) {
	*f |= 1 << uint(m)
}

func (f *BestFlags) clear(m Metric) {
	*f &^= 1 << uint(m)
}

// Entry is the display summary of one run.
type Entry struct {
	Hash          string              `json:"hash"`
	GuidList      []uuid.UUID         `json:"guid_list"`
	MapIndex      string              `json:"map_index"`
	RunNumber     int                 `json:"run_number"`
	Status        model.RunStatus     `json:"status"`
	Faction       model.Faction       `json:"faction"`
	Mode          model.Mode          `json:"mode"`
	CityFaction   model.CityFaction   `json:"city_faction"`
	EnterTime     time.Time           `json:"enter_time"`
	EndTime       *time.Time          `json:"end_time,omitempty"`
	TotalRunTime  time.Duration       `json:"total_run_time"`
	Rewards       model.Rewards       `json:"rewards"`
	PerHour       model.Rewards       `json:"per_hour"`
	Best          BestFlags           `json:"best"`
	EventObjects  []model.EventObject `json:"event_objects"`
	Death         *model.DeathInfo    `json:"death,omitempty"`
	DiedInDungeon bool                `json:"died_in_dungeon"`

	revision uint64
}

// Value returns the value ranked for m.
func (e *Entry) Value(m Metric) float64 {
	switch m {
	case MetricFame:
		return e.Rewards.Fame
	case MetricReSpec:
		return e.Rewards.ReSpec
	case MetricSilver:
		return e.Rewards.Silver
	case MetricFactionFlags:
		return e.Rewards.FactionFlags
	case MetricFactionCoins:
		return e.Rewards.FactionCoins
	case MetricFamePerHour:
		return e.PerHour.Fame
	case MetricReSpecPerHour:
		return e.PerHour.ReSpec
	case MetricSilverPerHour:
		return e.PerHour.Silver
	case MetricFactionFlagsPerHour:
		return e.PerHour.FactionFlags
	case MetricFactionCoinsPerHour:
		return e.PerHour.FactionCoins
	case MetricTime:
		return e.TotalRunTime.Seconds()
	default:
		return 0
	}
}

// HasBossChest reports whether the run found a boss chest.
func (e *Entry) HasBossChest() bool {
	for _, obj := range e.EventObjects {
		if obj.IsBossChest {
			return true
		}
	}
	return false
}

// stale reports whether the entry must be refreshed from run.
func (e *Entry) stale(run *model.DungeonRun) bool {
	return run.Revision == 0 || e.revision != run.Revision || run.Timer.Running()
}

// setValues copies run state into the entry. Rank flags are left alone.
func (e *Entry) setValues(run *model.DungeonRun, now time.Time) {
	clone := run.Clone()
	e.revision = clone.Revision
	e.Hash = clone.Hash
	e.GuidList = clone.GuidList
	e.MapIndex = clone.MapIndex
	e.Status = clone.Status
	e.Faction = clone.Faction
	e.Mode = clone.Mode
	e.CityFaction = clone.CityFaction
	e.EnterTime = clone.EnterTime
	e.EndTime = clone.EndTime
	e.TotalRunTime = clone.Timer.Elapsed(now)
	e.Rewards = clone.Rewards
	e.PerHour = model.Rewards{
		Fame:         model.PerHour(clone.Rewards.Fame, e.TotalRunTime),
		ReSpec:       model.PerHour(clone.Rewards.ReSpec, e.TotalRunTime),
		Silver:       model.PerHour(clone.Rewards.Silver, e.TotalRunTime),
		FactionFlags: model.PerHour(clone.Rewards.FactionFlags, e.TotalRunTime),
		FactionCoins: model.PerHour(clone.Rewards.FactionCoins, e.TotalRunTime),
	}
	e.EventObjects = clone.EventObjects
	e.Death = clone.Death
	e.DiedInDungeon = clone.DiedInDungeon
}

func (e Entry) clone() Entry {
	out := e
	if e.GuidList != nil {
		out.GuidList = append(make([]uuid.UUID, 0, len(e.GuidList)), e.GuidList...)
	}
	if e.EventObjects != nil {
		out.EventObjects = append(make([]model.EventObject, 0, len(e.EventObjects)), e.EventObjects...)
	}
	return out
}

// Package model defines shared data structures.
package model

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// MapType classifies a map the player entered.
type MapType string

// Map types reported by the event decoder.
const (
	MapUnknown          MapType = "Unknown"
	MapRandomDungeon    MapType = "RandomDungeon"
	MapCorruptedDungeon MapType = "CorruptedDungeon"
	MapHellGate         MapType = "HellGate"
	MapExpedition       MapType = "Expedition"
	MapIsland           MapType = "Island"
	MapHideout          MapType = "Hideout"
	MapArena            MapType = "Arena"
)

// IsCluster reports whether maps of this type can be linked into a multi-map run.
func (t MapType) IsCluster() bool {
	switch t {
	case MapRandomDungeon, MapCorruptedDungeon, MapHellGate, MapExpedition:
		return true
	default:
		return false
	}
}

// RunStatus is the lifecycle state of a run. Active -> Done only.
type RunStatus string

// Run statuses.
const (
	StatusActive RunStatus = "Active"
	StatusDone   RunStatus = "Done"
)

// Faction of the creatures or rewards of a run.
type Faction string

// Factions.
const (
	FactionUnknown   Faction = "Unknown"
	FactionKeeper    Faction = "Keeper"
	FactionHeretic   Faction = "Heretic"
	FactionMorgana   Faction = "Morgana"
	FactionUndead    Faction = "Undead"
	FactionAvalonian Faction = "Avalonian"
	FactionCorrupted Faction = "Corrupted"
	FactionHellGate  Faction = "HellGate"
)

// Mode is the kind of dungeon. Unknown until resolved.
type Mode string

// Modes.
const (
	ModeUnknown    Mode = "Unknown"
	ModeSolo       Mode = "Solo"
	ModeStandard   Mode = "Standard"
	ModeAvalon     Mode = "Avalon"
	ModeCorrupted  Mode = "Corrupted"
	ModeHellGate   Mode = "HellGate"
	ModeExpedition Mode = "Expedition"
)

// Modes lists every resolvable mode in display order.
var Modes = []Mode{ModeSolo, ModeStandard, ModeAvalon, ModeCorrupted, ModeHellGate, ModeExpedition, ModeUnknown}

// ValueKind selects the reward accumulator a gain is added to.
type ValueKind string

// Value kinds.
const (
	ValueFame         ValueKind = "Fame"
	ValueReSpec       ValueKind = "ReSpec"
	ValueSilver       ValueKind = "Silver"
	ValueFactionFlags ValueKind = "FactionFlags"
	ValueFactionCoins ValueKind = "FactionCoins"
)

// CityFaction is the city a faction reward belongs to.
type CityFaction string

// City factions.
const (
	CityUnknown      CityFaction = "Unknown"
	CityMartlock     CityFaction = "Martlock"
	CityThetford     CityFaction = "Thetford"
	CityFortSterling CityFaction = "FortSterling"
	CityLymhurst     CityFaction = "Lymhurst"
	CityBridgewatch  CityFaction = "Bridgewatch"
	CityCaerleon     CityFaction = "Caerleon"
)

// ChestRarity grades an event object.
type ChestRarity string

// Rarities.
const (
	RarityUnknown   ChestRarity = "Unknown"
	RarityStandard  ChestRarity = "Standard"
	RarityUncommon  ChestRarity = "Uncommon"
	RarityRare      ChestRarity = "Rare"
	RarityLegendary ChestRarity = "Legendary"
)

// Rarities lists the counted rarities in ascending order.
var Rarities = []ChestRarity{RarityStandard, RarityUncommon, RarityRare, RarityLegendary}

// EventObject is a chest or shrine discovered inside a run.
type EventObject struct {
	ID          int         `json:"id"`
	UniqueName  string      `json:"unique_name"`
	IsBossChest bool        `json:"is_boss_chest"`
	Rarity      ChestRarity `json:"rarity"`
	IsOpen      bool        `json:"is_open"`
	OpenedAt    *time.Time  `json:"opened_at,omitempty"`
}

// DeathInfo records the local player's death during a run.
type DeathInfo struct {
	DiedName string `json:"died_name"`
	KilledBy string `json:"killed_by"`
}

// Rewards are the non-negative accumulators of a run.
type Rewards struct {
	Fame         float64 `json:"fame"`
	Silver       float64 `json:"silver"`
	ReSpec       float64 `json:"respec"`
	FactionFlags float64 `json:"faction_flags"`
	FactionCoins float64 `json:"faction_coins"`
}

// Value returns the accumulator for kind.
func (r Rewards) Value(kind ValueKind) float64 {
	switch kind {
	case ValueFame:
		return r.Fame
	case ValueReSpec:
		return r.ReSpec
	case ValueSilver:
		return r.Silver
	case ValueFactionFlags:
		return r.FactionFlags
	case ValueFactionCoins:
		return r.FactionCoins
	default:
		return 0
	}
}

// DungeonRun is one tracked dungeon, expedition, hellgate, corrupted dungeon or arena visit.
type DungeonRun struct {
	GuidList      []uuid.UUID   `json:"guid_list"`
	Hash          string        `json:"hash"`
	MapIndex      string        `json:"map_index"`
	Status        RunStatus     `json:"status"`
	Faction       Faction       `json:"faction"`
	Mode          Mode          `json:"mode"`
	CityFaction   CityFaction   `json:"city_faction"`
	EnterTime     time.Time     `json:"enter_time"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
	Timer         Timer         `json:"timer"`
	Rewards       Rewards       `json:"rewards"`
	EventObjects  []EventObject `json:"event_objects"`
	Death         *DeathInfo    `json:"death,omitempty"`
	DiedInDungeon bool          `json:"died_in_dungeon"`

	// Revision is bumped by the owning store on every mutation. Zero means
	// unknown.
	Revision uint64 `json:"-"`
}

// NewRun creates an active run entered at now on the given map.
func NewRun(mapIndex string, guid uuid.UUID, now time.Time) *DungeonRun {
	run := &DungeonRun{
		GuidList:    []uuid.UUID{guid},
		MapIndex:    mapIndex,
		Status:      StatusActive,
		Faction:     FactionUnknown,
		Mode:        ModeUnknown,
		CityFaction: CityUnknown,
		EnterTime:   now,
	}
	run.Hash = RunHash(guid, now)
	run.Timer.Start(now)
	return run
}

// RunHash derives the stable identity of a run from its first map and entry time.
func RunHash(first uuid.UUID, enter time.Time) string {
	var buf [24]byte
	copy(buf[:16], first[:])
	binary.BigEndian.PutUint64(buf[16:], uint64(enter.UnixNano()))
	return strconv.FormatUint(xxhash.Sum64(buf[:]), 16)
}

// Contains reports whether guid belongs to the run's cluster.
func (r *DungeonRun) Contains(guid uuid.UUID) bool {
	for _, g := range r.GuidList {
		if g == guid {
			return true
		}
	}
	return false
}

// FirstGuid returns the map the run started on.
func (r *DungeonRun) FirstGuid() (uuid.UUID, bool) {
	if len(r.GuidList) == 0 {
		return uuid.Nil, false
	}
	return r.GuidList[0], true
}

// EventObject returns the event object with id.
func (r *DungeonRun) EventObject(id int) (*EventObject, bool) {
	for i := range r.EventObjects {
		if r.EventObjects[i].ID == id {
			return &r.EventObjects[i], true
		}
	}
	return nil, false
}

// HasBossChest reports whether any discovered event object is a boss chest.
func (r *DungeonRun) HasBossChest() bool {
	for _, obj := range r.EventObjects {
		if obj.IsBossChest {
			return true
		}
	}
	return false
}

// Finish stops the timer and marks the run done. It is a no-op on done runs.
func (r *DungeonRun) Finish(now time.Time) {
	if r.Status == StatusDone {
		return
	}
	r.Timer.Stop(now)
	r.Status = StatusDone
	end := now
	r.EndTime = &end
}

// Add adds a non-negative amount to the accumulator selected by kind.
func (r *DungeonRun) Add(amount float64, kind ValueKind, city CityFaction) {
	if !(amount > 0) {
		return
	}
	switch kind {
	case ValueFame:
		r.Rewards.Fame += amount
	case ValueReSpec:
		r.Rewards.ReSpec += amount
	case ValueSilver:
		r.Rewards.Silver += amount
	case ValueFactionFlags:
		r.Rewards.FactionFlags += amount
		r.setCity(city)
	case ValueFactionCoins:
		r.Rewards.FactionCoins += amount
		r.setCity(city)
	}
}

func (r *DungeonRun) setCity(city CityFaction) {
	if city != "" && city != CityUnknown {
		r.CityFaction = city
	}
}

// Clone returns a deep copy of the run.
func (r *DungeonRun) Clone() DungeonRun {
	out := *r
	out.GuidList = append([]uuid.UUID(nil), r.GuidList...)
	out.EventObjects = make([]EventObject, len(r.EventObjects))
	for i, obj := range r.EventObjects {
		out.EventObjects[i] = obj
		if obj.OpenedAt != nil {
			t := *obj.OpenedAt
			out.EventObjects[i].OpenedAt = &t
		}
	}
	if r.EndTime != nil {
		t := *r.EndTime
		out.EndTime = &t
	}
	if r.Death != nil {
		d := *r.Death
		out.Death = &d
	}
	return out
}

// PerHour converts a reward total into a rate over the elapsed active time.
func PerHour(value float64, elapsed time.Duration) float64 {
	hours := elapsed.Hours()
	if hours <= 0 {
		return 0
	}
	return value / hours
}

// Stats summarizes runs over a time window.
type Stats struct {
	Runs         int                 `json:"runs"`
	Fame         float64             `json:"fame"`
	ReSpec       float64             `json:"respec"`
	Silver       float64             `json:"silver"`
	FactionFlags float64             `json:"faction_flags"`
	FactionCoins float64             `json:"faction_coins"`
	Chests       map[ChestRarity]int `json:"chests"`
}

// Package tracker clusters map events into dungeon runs and derives their statistics.
package tracker

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/dungeonlog/internal/gamedata"
	"github.com/verte-zerg/dungeonlog/internal/model"
)

// DefaultRetention is the maximum number of runs kept in the working set.
const DefaultRetention = 9999

// deathWindow bounds how old a run may be to receive a death notice.
const deathWindow = 24 * time.Hour

// RunStore owns the working set of runs. It is not safe for concurrent use;
// Tracker serializes access to it.
type RunStore struct {
	runs      []*model.DungeonRun
	retention int
	catalog   *gamedata.Catalog

	currentGuid *uuid.UUID
	lastMapGuid *uuid.UUID
	lastMapType model.MapType

	rev uint64
}

// NewRunStore creates an empty store keeping at most retention runs.
func NewRunStore(retention int, catalog *gamedata.Catalog) *RunStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if catalog == nil {
		catalog = gamedata.New()
	}
	return &RunStore{retention: retention, catalog: catalog, lastMapType: model.MapUnknown}
}

// Load replaces the working set with runs, newest first.
func (s *RunStore) Load(runs []model.DungeonRun) {
	s.runs = make([]*model.DungeonRun, 0, len(runs))
	for i := range runs {
		run := runs[i].Clone()
		s.touch(&run)
		s.runs = append(s.runs, &run)
	}
	sort.SliceStable(s.runs, func(i, j int) bool {
		return s.runs[i].EnterTime.After(s.runs[j].EnterTime)
	})
	s.EvictOverCapacity(s.retention)
}

// Reset drops every run and the map pointers.
func (s *RunStore) Reset() {
	s.runs = nil
	s.currentGuid = nil
	s.lastMapGuid = nil
	s.lastMapType = model.MapUnknown
}

// Len returns the number of runs in the working set.
func (s *RunStore) Len() int {
	return len(s.runs)
}

// Runs returns copies of all runs in working-set order (newest insert first).
func (s *RunStore) Runs() []model.DungeonRun {
	out := make([]model.DungeonRun, len(s.runs))
	for i, run := range s.runs {
		out[i] = run.Clone()
	}
	return out
}

// view returns shallow copies of the runs for read-only derivation. The
// slices inside still belong to the store.
func (s *RunStore) view() []model.DungeonRun {
	out := make([]model.DungeonRun, len(s.runs))
	for i, run := range s.runs {
		out[i] = *run
	}
	return out
}

// CurrentMapType returns the type of the last map entered.
func (s *RunStore) CurrentMapType() model.MapType {
	return s.lastMapType
}

// ApplyMapTransition updates the working set for a map change.
func (s *RunStore) ApplyMapTransition(mapType model.MapType, mapGuid *uuid.UUID, mapIndex string, now time.Time) {
	s.currentGuid = copyGuid(mapGuid)

	eligible := mapType.IsCluster() && mapGuid != nil
	previous := s.find(s.lastMapGuid)

	switch {
	case eligible && previous != nil && mapType != model.MapCorruptedDungeon:
		s.continueCluster(previous, *mapGuid, now)
	case eligible && previous == nil:
		for _, run := range s.runs {
			if run.Status != model.StatusDone {
				run.Finish(now)
				s.touch(run)
			}
		}
		run := model.NewRun(mapIndex, *mapGuid, now)
		applyMapDefaults(run, mapType)
		s.touch(run)
		s.runs = append([]*model.DungeonRun{run}, s.runs...)
	case !eligible && previous != nil:
		previous.Finish(now)
		s.touch(previous)
	}

	s.EvictOverCapacity(s.retention)
	s.lastMapGuid = copyGuid(mapGuid)
	s.lastMapType = mapType
}

// continueCluster links guid into the run of the previous map. A guid that
// already belongs to a run resumes that run instead.
func (s *RunStore) continueCluster(previous *model.DungeonRun, guid uuid.UUID, now time.Time) {
	run := s.find(&guid)
	if run == nil {
		previous.GuidList = append(previous.GuidList, guid)
		run = previous
	}
	if run.Status == model.StatusActive {
		run.Timer.Resume(now)
	}
	s.touch(run)
}

func applyMapDefaults(run *model.DungeonRun, mapType model.MapType) {
	switch mapType {
	case model.MapCorruptedDungeon:
		run.Faction = model.FactionCorrupted
		run.Mode = model.ModeCorrupted
	case model.MapHellGate:
		run.Faction = model.FactionHellGate
		run.Mode = model.ModeHellGate
	case model.MapExpedition:
		run.Mode = model.ModeExpedition
	}
}

// Lookup returns the run whose cluster contains guid.
func (s *RunStore) Lookup(guid uuid.UUID) (model.DungeonRun, bool) {
	run := s.find(&guid)
	if run == nil {
		return model.DungeonRun{}, false
	}
	return run.Clone(), true
}

// Current returns the run the player is in, if any.
func (s *RunStore) Current() (model.DungeonRun, bool) {
	run := s.find(s.currentGuid)
	if run == nil {
		return model.DungeonRun{}, false
	}
	return run.Clone(), true
}

// RecordEventObject adds a discovered event object to the current run.
// Duplicate ids are ignored.
func (s *RunStore) RecordEventObject(id int, uniqueName string) bool {
	run := s.find(s.currentGuid)
	if run == nil || uniqueName == "" {
		return false
	}
	if _, ok := run.EventObject(id); ok {
		return false
	}
	info := s.catalog.Lookup(uniqueName)
	run.EventObjects = append(run.EventObjects, model.EventObject{
		ID:          id,
		UniqueName:  uniqueName,
		IsBossChest: info.IsBossChest,
		Rarity:      info.Rarity,
	})
	if info.Faction != model.FactionUnknown {
		run.Faction = info.Faction
	}
	if run.Mode == model.ModeUnknown {
		run.Mode = info.Mode
	}
	s.touch(run)
	return true
}

// OpenChest marks an event object of the current run as opened.
func (s *RunStore) OpenChest(id int, now time.Time) bool {
	run := s.find(s.currentGuid)
	if run == nil {
		return false
	}
	obj, ok := run.EventObject(id)
	if !ok {
		return false
	}
	obj.IsOpen = true
	opened := now
	obj.OpenedAt = &opened
	s.touch(run)
	return true
}

// AddValue adds a reward to the current run while it is active.
func (s *RunStore) AddValue(amount float64, kind model.ValueKind, city model.CityFaction) bool {
	run := s.find(s.currentGuid)
	if run == nil || run.Status != model.StatusActive {
		return false
	}
	run.Add(amount, kind, city)
	s.touch(run)
	return true
}

// RecordDeath stores the local player's death on the current run when it was
// entered within the last 24 hours. Death info is set at most once.
func (s *RunStore) RecordDeath(localPlayer, victim, killedBy string, now time.Time) bool {
	if localPlayer == "" || victim != localPlayer {
		return false
	}
	run := s.find(s.currentGuid)
	if run == nil || run.Death != nil {
		return false
	}
	if !run.EnterTime.After(now.Add(-deathWindow)) {
		return false
	}
	run.Death = &model.DeathInfo{DiedName: victim, KilledBy: killedBy}
	run.DiedInDungeon = true
	s.touch(run)
	return true
}

// Remove deletes the run with hash.
func (s *RunStore) Remove(hash string) bool {
	return s.RemoveMany([]string{hash}) > 0
}

// RemoveMany deletes every run whose hash is listed and returns how many went.
func (s *RunStore) RemoveMany(hashes []string) int {
	if len(hashes) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	kept := s.runs[:0]
	removed := 0
	for _, run := range s.runs {
		if _, ok := set[run.Hash]; ok {
			removed++
			continue
		}
		kept = append(kept, run)
	}
	for i := len(kept); i < len(s.runs); i++ {
		s.runs[i] = nil
	}
	s.runs = kept
	return removed
}

// EvictOverCapacity removes the oldest runs by enter time until at most limit
// remain. Ties go to the run encountered first.
func (s *RunStore) EvictOverCapacity(limit int) int {
	excess := len(s.runs) - limit
	if limit < 0 || excess <= 0 {
		return 0
	}
	order := make([]int, len(s.runs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.runs[order[a]].EnterTime.Before(s.runs[order[b]].EnterTime)
	})
	drop := make(map[int]struct{}, excess)
	for _, idx := range order[:excess] {
		drop[idx] = struct{}{}
	}
	kept := make([]*model.DungeonRun, 0, limit)
	for i, run := range s.runs {
		if _, ok := drop[i]; ok {
			continue
		}
		kept = append(kept, run)
	}
	s.runs = kept
	return excess
}

func (s *RunStore) find(guid *uuid.UUID) *model.DungeonRun {
	if guid == nil {
		return nil
	}
	for _, run := range s.runs {
		if run.Contains(*guid) {
			return run
		}
	}
	return nil
}

func (s *RunStore) touch(run *model.DungeonRun) {
	s.rev++
	run.Revision = s.rev
}

func copyGuid(guid *uuid.UUID) *uuid.UUID {
	if guid == nil {
		return nil
	}
	g := *guid
	return &g
}

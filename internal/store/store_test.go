package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/dungeonlog/internal/model"
)

func sampleRuns() []model.DungeonRun {
	enter := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	done := model.NewRun("DNG-1", uuid.MustParse("0d6f5a1e-7c2b-4b8a-9f2e-3a1c5d7e9b01"), enter)
	done.GuidList = append(done.GuidList, uuid.MustParse("0d6f5a1e-7c2b-4b8a-9f2e-3a1c5d7e9b02"))
	done.Mode = model.ModeStandard
	done.Faction = model.FactionUndead
	done.Add(1500, model.ValueFame, model.CityUnknown)
	done.Add(320, model.ValueSilver, model.CityUnknown)
	done.Add(12, model.ValueFactionCoins, model.CityMartlock)
	opened := enter.Add(5 * time.Minute)
	done.EventObjects = []model.EventObject{
		{ID: 7, UniqueName: "UNDEAD_BOSS_CHEST_RARE", IsBossChest: true, Rarity: model.RarityRare, IsOpen: true, OpenedAt: &opened},
		{ID: 9, UniqueName: "UNDEAD_CHEST_STANDARD", Rarity: model.RarityStandard},
	}
	done.Death = &model.DeathInfo{DiedName: "me", KilledBy: "skeleton"}
	done.DiedInDungeon = true
	done.Finish(enter.Add(12 * time.Minute))

	active := model.NewRun("HG-1", uuid.MustParse("0d6f5a1e-7c2b-4b8a-9f2e-3a1c5d7e9b03"), enter.Add(time.Hour))
	return []model.DungeonRun{active.Clone(), done.Clone()}
}

func assertDoneRun(t *testing.T, got model.DungeonRun, want model.DungeonRun) {
	t.Helper()
	if got.Hash != want.Hash || got.MapIndex != want.MapIndex || got.Status != model.StatusDone {
		t.Fatalf("unexpected identity: %+v", got)
	}
	if len(got.GuidList) != 2 || got.GuidList[0] != want.GuidList[0] || got.GuidList[1] != want.GuidList[1] {
		t.Fatalf("unexpected guid list: %v", got.GuidList)
	}
	if got.Mode != want.Mode || got.Faction != want.Faction || got.CityFaction != model.CityMartlock {
		t.Fatalf("unexpected classification: %+v", got)
	}
	if !got.EnterTime.Equal(want.EnterTime) || got.EndTime == nil || !got.EndTime.Equal(*want.EndTime) {
		t.Fatalf("unexpected times: %v %v", got.EnterTime, got.EndTime)
	}
	if got.Timer.Elapsed(time.Time{}) != 12*time.Minute || got.Timer.Running() {
		t.Fatalf("unexpected timer: %v", got.Timer.Elapsed(time.Time{}))
	}
	if got.Rewards != want.Rewards {
		t.Fatalf("unexpected rewards: %+v", got.Rewards)
	}
	if len(got.EventObjects) != 2 {
		t.Fatalf("expected 2 event objects, got %d", len(got.EventObjects))
	}
	first := got.EventObjects[0]
	if first.ID != 7 || !first.IsBossChest || !first.IsOpen || first.Rarity != model.RarityRare || first.OpenedAt == nil {
		t.Fatalf("unexpected first event object: %+v", first)
	}
	if got.EventObjects[1].OpenedAt != nil || got.EventObjects[1].IsOpen {
		t.Fatalf("unexpected second event object: %+v", got.EventObjects[1])
	}
	if got.Death == nil || got.Death.KilledBy != "skeleton" || !got.DiedInDungeon {
		t.Fatalf("unexpected death: %+v", got.Death)
	}
}

func TestFileStoreRoundTripKeepsDoneRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.json")
	repo, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	runs := sampleRuns()
	if err := repo.Save(context.Background(), runs); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the done run, got %d", len(got))
	}
	assertDoneRun(t, got[0], runs[1])
}

func TestFileStoreMissingFile(t *testing.T) {
	repo, err := NewFileStore(filepath.Join(t.TempDir(), "runs.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	runs, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs, got %d", len(runs))
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	repo, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := repo.Load(context.Background()); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestSQLiteRoundTripKeepsDoneRuns(t *testing.T) {
	repo, err := Open(BackendSQLite, filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		if cerr := repo.Close(); cerr != nil {
			t.Fatalf("close: %v", cerr)
		}
	}()
	runs := sampleRuns()
	ctx := context.Background()
	if err := repo.Save(ctx, runs); err != nil {
		t.Fatalf("save: %v", err)
	}
	// A second save replaces the first.
	if err := repo.Save(ctx, runs); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the done run, got %d", len(got))
	}
	assertDoneRun(t, got[0], runs[1])
}

func TestSQLiteLoadOrdersBySubSecondEnterTime(t *testing.T) {
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		if cerr := repo.Close(); cerr != nil {
			t.Fatalf("close: %v", cerr)
		}
	}()
	whole := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var runs []model.DungeonRun
	for i, enter := range []time.Time{whole, whole.Add(500 * time.Millisecond), whole.Add(time.Second)} {
		run := model.NewRun("DNG", uuid.UUID{15: byte(i + 1)}, enter)
		run.Finish(enter.Add(time.Minute))
		runs = append(runs, *run)
	}
	ctx := context.Background()
	if err := repo.Save(ctx, runs); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(got))
	}
	for i, want := range []int{2, 1, 0} {
		if got[i].Hash != runs[want].Hash {
			t.Fatalf("position %d: expected run entered at %v, got %v", i, runs[want].EnterTime, got[i].EnterTime)
		}
		if !got[i].EnterTime.Equal(runs[want].EnterTime) {
			t.Fatalf("enter time changed: %v != %v", got[i].EnterTime, runs[want].EnterTime)
		}
	}
}

func TestParseTimeReadsLegacyValues(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 0, 0, 500_000_000, time.UTC)
	for _, value := range []string{"2024-05-01T10:00:00.5Z", formatTime(want)} {
		got, err := parseTime(value)
		if err != nil {
			t.Fatalf("parse %q: %v", value, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: got %v", value, got)
		}
	}
	if formatTime(want) != "2024-05-01T10:00:00.500000000Z" {
		t.Fatalf("unexpected format %q", formatTime(want))
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("redis", "x"); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

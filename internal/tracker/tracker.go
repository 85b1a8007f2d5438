package tracker

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/verte-zerg/dungeonlog/internal/event"
	"github.com/verte-zerg/dungeonlog/internal/gamedata"
	"github.com/verte-zerg/dungeonlog/internal/model"
	"github.com/verte-zerg/dungeonlog/internal/projection"
	"github.com/verte-zerg/dungeonlog/internal/store"
)

// Update is published after every change to the working set.
type Update struct {
	Day     model.Stats
	Total   model.Stats
	Changes projection.ChangeSet
	// CloseTimer is set while the player is inside a random dungeon.
	CloseTimer bool
}

// Sink receives updates. Publish is called with the tracker lock held, so it
// must not call back into the tracker synchronously.
type Sink interface {
	Publish(Update)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Update)

// Publish implements Sink.
func (f SinkFunc) Publish(u Update) { f(u) }

// Options configures a Tracker.
type Options struct {
	Player    string
	Retention int
	Catalog   *gamedata.Catalog
	Filter    model.ModeFilter
	Logger    *log.Logger
	Now       func() time.Time
	// Repo, when set, is saved after every removal that dropped a run.
	Repo      store.Repository
}

// Tracker owns the run store and the projection. All mutation goes through
// its lock, including removals requested by a view.
type Tracker struct {
	mu     sync.Mutex
	saveMu sync.Mutex
	repo   store.Repository
	store  *RunStore
	sync   *projection.Sync
	filter model.ModeFilter
	player string
	logger *log.Logger
	now    func() time.Time
	sinks  []Sink
}

// New creates a tracker with an empty working set.
func New(opts Options) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		store:  NewRunStore(opts.Retention, opts.Catalog),
		sync:   projection.NewSync(),
		filter: opts.Filter,
		player: opts.Player,
		repo:   opts.Repo,
		logger: logger,
		now:    now,
	}
}

// Subscribe adds a sink for future updates.
func (t *Tracker) Subscribe(sink Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, sink)
}

// Apply feeds one event to the store and publishes the result. It reports
// whether the event changed anything.
func (t *Tracker) Apply(ev event.Event) bool {
	if rm, ok := ev.(event.RemoveRuns); ok {
		return t.RemoveMany(rm.Hashes) > 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	at := ev.Time()
	if at.IsZero() {
		at = t.now()
	}

	changed := true
	switch e := ev.(type) {
	case event.MapTransition:
		t.store.ApplyMapTransition(e.MapType, e.MapGuid, e.MapIndex, at)
	case event.EventObjectDiscovered:
		changed = t.store.RecordEventObject(e.ID, e.UniqueName)
	case event.ChestOpened:
		changed = t.store.OpenChest(e.ID, at)
	case event.ValueGained:
		changed = t.store.AddValue(e.Amount, e.Kind, e.CityFaction)
	case event.PlayerDied:
		changed = t.store.RecordDeath(t.player, e.VictimName, e.KillerName, at)
	default:
		t.logger.Printf("WARN: ignoring event of type %s", ev.Type())
		return false
	}
	if changed {
		t.publishLocked(at)
	}
	return changed
}

// RemoveMany removes runs by hash and returns how many were removed. When a
// repository is configured the remaining runs are saved; a failed save is
// logged and the removal stands.
func (t *Tracker) RemoveMany(hashes []string) int {
	t.mu.Lock()
	removed := t.store.RemoveMany(hashes)
	if removed > 0 {
		t.publishLocked(t.now())
	}
	t.mu.Unlock()

	if removed > 0 && t.repo != nil {
		if err := t.Save(context.Background(), t.repo); err != nil {
			t.logger.Printf("ERROR: failed to save runs after removal: %v", err)
		}
	}
	return removed
}

// Remove removes one run by hash.
func (t *Tracker) Remove(hash string) bool {
	return t.RemoveMany([]string{hash}) > 0
}

// SetModeFilter changes which modes count towards statistics and show in the
// projection.
func (t *Tracker) SetModeFilter(filter model.ModeFilter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filter = filter
	t.publishLocked(t.now())
}

// ModeFilter returns the active filter.
func (t *Tracker) ModeFilter() model.ModeFilter {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filter
}

// Refresh republishes with the current time so open timers advance.
func (t *Tracker) Refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.publishLocked(t.now())
}

// Reset drops the whole working set.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Reset()
	t.publishLocked(t.now())
}

// Restore loads persisted runs. A failing or corrupt store is logged and the
// tracker starts empty. It returns the number of runs loaded.
func (t *Tracker) Restore(ctx context.Context, repo store.Repository) int {
	runs, err := repo.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			t.logger.Printf("WARN: ignoring corrupt run history: %v", err)
		} else {
			t.logger.Printf("ERROR: failed to load run history: %v", err)
		}
		runs = nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.Load(runs)
	t.publishLocked(t.now())
	return t.store.Len()
}

// Save persists the done runs of the working set. Saves are serialized and
// each one snapshots the store after the previous finished, so an older
// snapshot never overwrites a newer one.
func (t *Tracker) Save(ctx context.Context, repo store.Repository) error {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()
	runs := t.Runs()
	return repo.Save(ctx, runs)
}

// Runs returns a snapshot of the working set.
func (t *Tracker) Runs() []model.DungeonRun {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Runs()
}

// Entries returns the published projection, newest first, including entries
// hidden by the mode filter.
func (t *Tracker) Entries() []projection.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sync.Entries()
}

// Stats returns the day and total statistics under the active filter.
func (t *Tracker) Stats() (day, total model.Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	runs := t.store.view()
	now := t.now()
	return DayStats(runs, now, t.filter), TotalStats(runs, t.filter)
}

func (t *Tracker) publishLocked(now time.Time) {
	runs := t.store.view()
	update := Update{
		Day:        DayStats(runs, now, t.filter),
		Total:      TotalStats(runs, t.filter),
		Changes:    t.sync.Reconcile(runs, now, t.filter),
		CloseTimer: t.store.CurrentMapType() == model.MapRandomDungeon,
	}
	for _, sink := range t.sinks {
		sink.Publish(update)
	}
}

package tui

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/verte-zerg/dungeonlog/internal/event"
	"github.com/verte-zerg/dungeonlog/internal/model"
	"github.com/verte-zerg/dungeonlog/internal/store"
	"github.com/verte-zerg/dungeonlog/internal/tracker"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func guid(n byte) *uuid.UUID {
	g := uuid.UUID{15: n}
	return &g
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func newTestModel(t *testing.T) (*Model, *tracker.Tracker, *time.Time) {
	t.Helper()
	return newTestModelWithRepo(t, nil)
}

func newTestModelWithRepo(t *testing.T, repo store.Repository) (*Model, *tracker.Tracker, *time.Time) {
	t.Helper()
	now := t0
	tr := tracker.New(tracker.Options{
		Logger: log.New(io.Discard, "", 0),
		Now:    func() time.Time { return now },
		Repo:   repo,
	})
	sink := NewSink()
	tr.Subscribe(sink)
	m := NewModel(tr, sink)
	m.Update(tea.WindowSizeMsg{Width: 140, Height: 30})
	return m, tr, &now
}

// playRuns finishes one run per fame value, one hour apart.
func playRuns(tr *tracker.Tracker, now *time.Time, fames ...float64) {
	for i, fame := range fames {
		*now = t0.Add(time.Duration(i) * time.Hour)
		tr.Apply(event.MapTransition{MapType: model.MapRandomDungeon, MapGuid: guid(byte(i + 1)), MapIndex: "A"})
		tr.Apply(event.ValueGained{Amount: fame, Kind: model.ValueFame})
		*now = now.Add(10 * time.Minute)
		tr.Apply(event.MapTransition{MapType: model.MapUnknown})
	}
}

func TestUpdateRebuildsRowsFromSink(t *testing.T) {
	m, tr, now := newTestModel(t)
	playRuns(tr, now, 100, 300)

	_, cmd := m.Update(updatedMsg{})
	if cmd == nil {
		t.Fatalf("expected the wakeup wait to be re-armed")
	}
	if len(m.rowHashes) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(m.rowHashes))
	}
	if m.rowHashes[0] != tr.Runs()[0].Hash {
		t.Fatalf("newest run should be the first row")
	}
	if m.total.Fame != 400 {
		t.Fatalf("unexpected total fame %v", m.total.Fame)
	}
	view := m.View()
	if !strings.Contains(view, "300*") {
		t.Fatalf("best fame should be marked:\n%s", view)
	}
}

func TestCursorFollowsSelectedRun(t *testing.T) {
	m, tr, now := newTestModel(t)
	playRuns(tr, now, 100, 200)
	m.Update(updatedMsg{})
	m.runTable.SetCursor(1)
	selected := m.selectedHash()

	*now = t0.Add(5 * time.Hour)
	tr.Apply(event.MapTransition{MapType: model.MapHellGate, MapGuid: guid(9)})
	m.Update(updatedMsg{})

	if got := m.selectedHash(); got != selected {
		t.Fatalf("cursor moved off the selected run: %s != %s", got, selected)
	}
}

func TestDeleteConfirmSavesRemainingRuns(t *testing.T) {
	repo, err := store.NewFileStore(filepath.Join(t.TempDir(), "runs.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	m, tr, now := newTestModelWithRepo(t, repo)
	playRuns(tr, now, 100, 200)
	if err := tr.Save(context.Background(), repo); err != nil {
		t.Fatalf("save: %v", err)
	}
	m.Update(updatedMsg{})
	gone := m.rowHashes[0]

	m.Update(key('d'))
	_, cmd := m.Update(key('y'))
	if cmd == nil {
		t.Fatalf("expected removal command")
	}
	m.Update(cmd())

	saved, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("expected 1 saved run, got %d", len(saved))
	}
	if saved[0].Hash == gone {
		t.Fatalf("removed run %s is still on disk", gone)
	}
}

func TestDeleteConfirmRemovesMarkedRuns(t *testing.T) {
	m, tr, now := newTestModel(t)
	playRuns(tr, now, 100, 200, 300)
	m.Update(updatedMsg{})

	m.Update(key(' '))
	m.runTable.SetCursor(2)
	m.Update(key(' '))
	if len(m.marked) != 2 {
		t.Fatalf("expected 2 marked runs, got %d", len(m.marked))
	}

	m.Update(key('d'))
	if !m.confirmMode || len(m.pending) != 2 {
		t.Fatalf("expected confirm modal for 2 runs")
	}
	if !strings.Contains(m.View(), "Remove 2 run(s)?") {
		t.Fatalf("confirm modal not rendered")
	}

	_, cmd := m.Update(key('y'))
	if cmd == nil {
		t.Fatalf("expected removal command")
	}
	msg := cmd()
	removed, ok := msg.(removedMsg)
	if !ok || removed.count != 2 {
		t.Fatalf("unexpected message %#v", msg)
	}
	m.Update(msg)
	m.Update(updatedMsg{})

	if len(tr.Runs()) != 1 || len(m.rowHashes) != 1 {
		t.Fatalf("expected one run left, tracker=%d rows=%d", len(tr.Runs()), len(m.rowHashes))
	}
	if len(m.marked) != 0 {
		t.Fatalf("marks of removed runs should be dropped")
	}
	if !strings.Contains(m.status, "Removed 2") {
		t.Fatalf("unexpected status %q", m.status)
	}
}

func TestDeleteCancelKeepsRuns(t *testing.T) {
	m, tr, now := newTestModel(t)
	playRuns(tr, now, 100)
	m.Update(updatedMsg{})

	m.Update(key('d'))
	if !m.confirmMode {
		t.Fatalf("expected confirm modal for the selected run")
	}
	_, cmd := m.Update(key('n'))
	if cmd != nil || m.confirmMode {
		t.Fatalf("cancel should close the modal without a command")
	}
	if len(tr.Runs()) != 1 {
		t.Fatalf("run should be kept")
	}
}

func TestFilterInput(t *testing.T) {
	m, tr, now := newTestModel(t)
	playRuns(tr, now, 100)
	m.Update(updatedMsg{})

	m.Update(key('/'))
	if !m.filterMode {
		t.Fatalf("expected filter mode")
	}
	m.filterInput.SetValue("raid")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.filterMode || m.filterError == "" {
		t.Fatalf("unknown mode should keep the form open with an error")
	}

	m.filterInput.SetValue("hellgate")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.filterMode || cmd == nil {
		t.Fatalf("valid filter should close the form and apply")
	}
	m.Update(cmd())
	m.Update(updatedMsg{})

	if tr.ModeFilter().String() != "HellGate" || m.filter.String() != "HellGate" {
		t.Fatalf("filter not applied: %q", tr.ModeFilter().String())
	}
	if len(m.rowHashes) != 0 {
		t.Fatalf("random dungeon run should be hidden, got %d rows", len(m.rowHashes))
	}
}

func TestStatsTabRendersCards(t *testing.T) {
	m, tr, now := newTestModel(t)
	playRuns(tr, now, 1200, 800)
	m.Update(updatedMsg{})

	m.Update(key('l'))
	if m.activeTab != tabStats {
		t.Fatalf("expected stats tab")
	}
	view := m.View()
	if !containsAll(view, []string{"Last 24h", "Total", "2,000", "Fame/h per run"}) {
		t.Fatalf("stats tab missing content:\n%s", view)
	}
}

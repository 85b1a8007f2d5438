package projection

import (
	"reflect"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/dungeonlog/internal/model"
)

// OpKind is the kind of a projection change.
type OpKind string

// Change kinds.
const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpRemove OpKind = "remove"
)

// Op is one change to a projection. Remove ops carry only the hash.
type Op struct {
	Kind  OpKind `json:"kind"`
	Hash  string `json:"hash"`
	Entry *Entry `json:"entry,omitempty"`
}

// ChangeSet is an ordered batch of changes plus the resulting visible order.
// It is applied as a whole.
type ChangeSet struct {
	Ops   []Op     `json:"ops"`
	Order []string `json:"order"`
}

// Sync reconciles runs against the entries it last published and emits the
// difference as a ChangeSet. It keeps its own copies and never references a
// View.
type Sync struct {
	entries []*Entry
}

// NewSync returns a Sync with nothing published.
func NewSync() *Sync {
	return &Sync{}
}

// entryKey identifies a run across reconciles: its first map and entry time.
type entryKey struct {
	guid  uuid.UUID
	enter int64
}

func keyOf(first uuid.UUID, enter time.Time) entryKey {
	return entryKey{guid: first, enter: enter.UnixNano()}
}

// published is what an entry looked like in the last change set.
type published struct {
	number int
	best   BestFlags
}

// Reconcile matches runs to published entries by first map and entry time,
// numbers them by entry time, drops entries whose run is gone, applies the
// mode filter, orders the visible entries newest first and re-ranks them.
// Entries are only refreshed when their run's revision moved, the run has no
// revision or its timer is still running.
func (s *Sync) Reconcile(runs []model.DungeonRun, now time.Time, filter model.ModeFilter) ChangeSet {
	ordered := make([]*model.DungeonRun, 0, len(runs))
	hashes := make(map[string]struct{}, len(runs))
	for i := range runs {
		if len(runs[i].GuidList) == 0 {
			continue
		}
		ordered = append(ordered, &runs[i])
		hashes[runs[i].Hash] = struct{}{}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EnterTime.Before(ordered[j].EnterTime)
	})

	index := make(map[entryKey]*Entry, len(s.entries))
	prev := make(map[*Entry]published, len(s.entries))
	for _, e := range s.entries {
		prev[e] = published{number: e.RunNumber, best: e.Best}
		if len(e.GuidList) > 0 {
			index[keyOf(e.GuidList[0], e.EnterTime)] = e
		}
	}

	changed := make(map[*Entry]bool)
	for i, run := range ordered {
		key := keyOf(run.GuidList[0], run.EnterTime)
		entry, ok := index[key]
		switch {
		case !ok:
			entry = &Entry{}
			entry.setValues(run, now)
			s.entries = append(s.entries, entry)
			index[key] = entry
		case entry.stale(run):
			before := entry.clone()
			entry.setValues(run, now)
			before.revision = entry.revision
			if !reflect.DeepEqual(before, *entry) {
				changed[entry] = true
			}
		}
		entry.RunNumber = i + 1
	}

	var cs ChangeSet
	kept := s.entries[:0]
	for _, e := range s.entries {
		if _, ok := hashes[e.Hash]; ok {
			kept = append(kept, e)
			continue
		}
		if _, ok := prev[e]; ok {
			cs.Ops = append(cs.Ops, Op{Kind: OpRemove, Hash: e.Hash})
		}
	}
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept

	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].RunNumber > s.entries[j].RunNumber
	})
	visible := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		e.Best = 0
		if filter.Allows(e.Mode) {
			visible = append(visible, e)
		}
	}
	Rank(visible)

	for _, e := range s.entries {
		p, existed := prev[e]
		switch {
		case !existed:
			entry := e.clone()
			cs.Ops = append(cs.Ops, Op{Kind: OpAdd, Hash: e.Hash, Entry: &entry})
		case changed[e] || p.number != e.RunNumber || p.best != e.Best:
			entry := e.clone()
			cs.Ops = append(cs.Ops, Op{Kind: OpUpdate, Hash: e.Hash, Entry: &entry})
		}
	}

	cs.Order = make([]string, len(visible))
	for i, e := range visible {
		cs.Order[i] = e.Hash
	}
	return cs
}

// Entries returns copies of every published entry, newest first.
func (s *Sync) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.clone()
	}
	return out
}

// Reset forgets everything published.
func (s *Sync) Reset() ChangeSet {
	var cs ChangeSet
	for _, e := range s.entries {
		cs.Ops = append(cs.Ops, Op{Kind: OpRemove, Hash: e.Hash})
	}
	cs.Order = []string{}
	s.entries = nil
	return cs
}

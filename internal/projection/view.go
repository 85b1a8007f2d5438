package projection

import "sync"

// View is the display-side projection. It applies change sets in place so a
// pointer obtained for an entry stays valid until the entry is removed.
type View struct {
	mu      sync.RWMutex
	byHash  map[string]*Entry
	visible []*Entry
	version uint64
}

// NewView returns an empty view.
func NewView() *View {
	return &View{byHash: map[string]*Entry{}}
}

// Apply applies every op of cs and then the visible order, under one lock.
func (v *View) Apply(cs ChangeSet) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, op := range cs.Ops {
		switch op.Kind {
		case OpRemove:
			delete(v.byHash, op.Hash)
		case OpAdd, OpUpdate:
			if op.Entry == nil {
				continue
			}
			entry := op.Entry.clone()
			if existing, ok := v.byHash[op.Hash]; ok {
				*existing = entry
				continue
			}
			v.byHash[op.Hash] = &entry
		}
	}
	visible := make([]*Entry, 0, len(cs.Order))
	for _, hash := range cs.Order {
		if e, ok := v.byHash[hash]; ok {
			visible = append(visible, e)
		}
	}
	v.visible = visible
	v.version++
}

// Visible returns the visible entries in display order. The pointers are owned
// by the view; callers on other goroutines should use Snapshot.
func (v *View) Visible() []*Entry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]*Entry(nil), v.visible...)
}

// Snapshot returns copies of the visible entries in display order.
func (v *View) Snapshot() []Entry {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Entry, len(v.visible))
	for i, e := range v.visible {
		out[i] = e.clone()
	}
	return out
}

// Entry returns the entry with hash, visible or not.
func (v *View) Entry(hash string) (*Entry, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.byHash[hash]
	return e, ok
}

// Len returns the number of entries held, visible or not.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.byHash)
}

// Version increases with every applied change set.
func (v *View) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

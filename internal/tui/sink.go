package tui

import (
	"sync"

	"github.com/verte-zerg/dungeonlog/internal/model"
	"github.com/verte-zerg/dungeonlog/internal/projection"
	"github.com/verte-zerg/dungeonlog/internal/tracker"
)

// Sink receives tracker updates on the tracker's goroutine and wakes the UI.
// Wakeups coalesce: the UI always re-reads the latest state.
type Sink struct {
	view   *projection.View
	wakeup chan struct{}

	mu         sync.Mutex
	day        model.Stats
	total      model.Stats
	closeTimer bool
}

// NewSink returns a sink with an empty view.
func NewSink() *Sink {
	return &Sink{
		view:   projection.NewView(),
		wakeup: make(chan struct{}, 1),
	}
}

// Publish implements tracker.Sink.
func (s *Sink) Publish(u tracker.Update) {
	s.view.Apply(u.Changes)
	s.mu.Lock()
	s.day = u.Day
	s.total = u.Total
	s.closeTimer = u.CloseTimer
	s.mu.Unlock()
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

// View returns the projection the sink maintains.
func (s *Sink) View() *projection.View {
	return s.view
}

func (s *Sink) stats() (day, total model.Stats, closeTimer bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day, s.total, s.closeTimer
}

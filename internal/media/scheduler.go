package media

import (
	"context"
	"sync"
	"time"
)

const defaultScrollDebounce = 150 * time.Millisecond

// Item identifies one photo in the viewport order.
type Item struct {
	PhotoID     int64
	SourcePath  string
	Orientation int
}

// Scheduler turns viewport positions into thumbnail requests. Rapid
// scrolling is debounced so only the range the user settles on is
// scheduled; the margin pre-fetches rows just outside the viewport.
type Scheduler struct {
	svc      *Service
	debounce time.Duration
	margin   int

	mu      sync.Mutex
	items   []Item
	first   int
	last    int
	timer   *time.Timer
	stopped bool
}

func NewScheduler(svc *Service, margin int) *Scheduler {
	return &Scheduler{
		svc:      svc,
		debounce: defaultScrollDebounce,
		margin:   margin,
	}
}

// SetViewport records the current item order and visible index range
// [first, last]. The actual requests fire once scrolling pauses.
func (s *Scheduler) SetViewport(items []Item, first, last int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.items = items
	s.first = first
	s.last = last

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	items := s.items
	first := s.first - s.margin
	last := s.last + s.margin
	s.timer = nil
	s.mu.Unlock()

	if first < 0 {
		first = 0
	}
	if last >= len(items) {
		last = len(items) - 1
	}

	ctx := context.Background()
	for i := first; i <= last; i++ {
		s.svc.Request(ctx, items[i].PhotoID, items[i].SourcePath, items[i].Orientation)
	}
}

// Close cancels any pending debounce.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

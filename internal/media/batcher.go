package media

import (
	"sync"
	"time"

	"photosphere/internal/metrics"
)

// Event reports a completed thumbnail request. A nil Err means
// CachePath points at a valid thumbnail file.
type Event struct {
	PhotoID   int64
	CachePath string
	Err       error
}

// batcher coalesces completion events into debounced batches so a
// burst of generations produces one delivery instead of hundreds of
// per-photo callbacks.
type batcher struct {
	window  time.Duration
	deliver func([]Event)

	mu      sync.Mutex
	pending []Event
	timer   *time.Timer
	closed  bool
}

func newBatcher(window time.Duration, deliver func([]Event)) *batcher {
	return &batcher{
		window:  window,
		deliver: deliver,
	}
}

// add queues an event. The first event in an idle batcher arms the
// flush timer; later events ride along until it fires.
func (b *batcher) add(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.pending = append(b.pending, e)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
}

func (b *batcher) flush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.timer = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	metrics.ThumbnailBatchSize.Observe(float64(len(batch)))
	b.deliver(batch)
}

// close flushes anything still pending and stops accepting events.
func (b *batcher) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(batch) > 0 {
		metrics.ThumbnailBatchSize.Observe(float64(len(batch)))
		b.deliver(batch)
	}
}

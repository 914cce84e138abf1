package media

import (
	"sync"
	"testing"
	"time"
)

type batchCollector struct {
	mu      sync.Mutex
	batches [][]Event
}

func (c *batchCollector) deliver(events []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, events)
}

func (c *batchCollector) snapshot() [][]Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]Event, len(c.batches))
	copy(out, c.batches)
	return out
}

func TestBatcherCoalescesWithinWindow(t *testing.T) {
	c := &batchCollector{}
	b := newBatcher(50*time.Millisecond, c.deliver)

	b.add(Event{PhotoID: 1, CachePath: "/cache/1.jpg"})
	b.add(Event{PhotoID: 2, CachePath: "/cache/2.jpg"})
	b.add(Event{PhotoID: 3, CachePath: "/cache/3.jpg"})

	time.Sleep(200 * time.Millisecond)

	batches := c.snapshot()
	if len(batches) != 1 {
		t.Fatalf("Expected 1 batch, got %d", len(batches))
	}
	if len(batches[0]) != 3 {
		t.Errorf("Expected 3 events in batch, got %d", len(batches[0]))
	}
}

func TestBatcherStartsNewBatchAfterFlush(t *testing.T) {
	c := &batchCollector{}
	b := newBatcher(20*time.Millisecond, c.deliver)

	b.add(Event{PhotoID: 1})
	time.Sleep(100 * time.Millisecond)
	b.add(Event{PhotoID: 2})
	time.Sleep(100 * time.Millisecond)

	batches := c.snapshot()
	if len(batches) != 2 {
		t.Fatalf("Expected 2 batches, got %d", len(batches))
	}
}

func TestBatcherCloseFlushesPending(t *testing.T) {
	c := &batchCollector{}
	b := newBatcher(time.Hour, c.deliver)

	b.add(Event{PhotoID: 1})
	b.close()

	batches := c.snapshot()
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("Expected close to flush 1 event, got %v", batches)
	}

	// Events after close are dropped.
	b.add(Event{PhotoID: 2})
	time.Sleep(50 * time.Millisecond)
	if len(c.snapshot()) != 1 {
		t.Error("Expected no deliveries after close")
	}
}

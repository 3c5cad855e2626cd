package stream

import (
	"sync"

	audit "compliance/pkg/platform/audit"
)

// RingBuffer is a bounded, thread-safe FIFO of entries waiting to be
// streamed. When full, the oldest entry is dropped to make room.
type RingBuffer struct {
	mu       sync.Mutex
	entries  []audit.Entry
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int
	dropped  int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &RingBuffer{
		entries:  make([]audit.Entry, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an entry and reports whether an older one was dropped.
func (b *RingBuffer) Enqueue(entry audit.Entry) (dropped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.entries[b.tail] = audit.Entry{}
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		dropped = true
	}

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

// DequeueBatch removes up to n entries from the buffer.
func (b *RingBuffer) DequeueBatch(n int) []audit.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]audit.Entry, n)
	for i := range n {
		result[i] = b.entries[b.tail]
		b.entries[b.tail] = audit.Entry{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return result
}

// Requeue puts a batch that could not be published back at the front, ahead
// of anything enqueued since. If the buffer cannot hold all of it, the oldest
// entries of the batch are dropped and their count is returned.
func (b *RingBuffer) Requeue(batch []audit.Entry) (dropped int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if free := b.capacity - b.count; len(batch) > free {
		dropped = len(batch) - free
		batch = batch[dropped:]
		b.dropped += int64(dropped)
	}
	for i := len(batch) - 1; i >= 0; i-- {
		b.tail = (b.tail - 1 + b.capacity) % b.capacity
		b.entries[b.tail] = batch[i]
	}
	b.count += len(batch)
	return dropped
}

// Len returns the number of buffered entries.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of entries evicted by overflow.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

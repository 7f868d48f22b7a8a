package spatial

import (
	"runtime"
	"sync/atomic"
)

// CacheLineSize is the typical CPU cache line size (64 bytes on x86-64)
const CacheLineSize = 64

// Padding keeps hot counters on separate cache lines.
type Padding [CacheLineSize]byte

type queueSlot[T any] struct {
	seq  atomic.Uint64
	item T
}

// LockFreeQueue is a bounded multi-producer single-consumer ring buffer.
//
// Each slot carries a sequence number: a producer claims a position with a
// CAS on head, writes the item, then publishes it by advancing the slot
// sequence. The consumer only reads a slot once its sequence says the write
// finished, so a slow producer never exposes a half-written item.
type LockFreeQueue[T any] struct {
	_pad0 Padding
	head  atomic.Uint64 // next position to claim (producers)
	_pad1 Padding
	tail  atomic.Uint64 // next position to read (consumer)
	_pad2 Padding
	mask  uint64
	slots []queueSlot[T]
}

// NewLockFreeQueue creates a queue. capacity is rounded up to a power of 2.
func NewLockFreeQueue[T any](capacity int) *LockFreeQueue[T] {
	size := 1
	for size < capacity {
		size <<= 1
	}
	q := &LockFreeQueue[T]{
		mask:  uint64(size - 1),
		slots: make([]queueSlot[T], size),
	}
	for i := range q.slots {
		q.slots[i].seq.Store(uint64(i))
	}
	return q
}

// TryPush adds an item, returning false when the queue is full.
// Safe for concurrent producers.
func (q *LockFreeQueue[T]) TryPush(item T) bool {
	for {
		pos := q.head.Load()
		slot := &q.slots[pos&q.mask]
		seq := slot.seq.Load()

		switch {
		case seq == pos:
			if q.head.CompareAndSwap(pos, pos+1) {
				slot.item = item
				slot.seq.Store(pos + 1)
				return true
			}
		case seq < pos:
			return false // full: slot still holds an unread item from the previous lap
		}
		runtime.Gosched()
	}
}

// TryPop removes the oldest published item. Only one goroutine may pop.
func (q *LockFreeQueue[T]) TryPop() (T, bool) {
	var zero T

	pos := q.tail.Load()
	slot := &q.slots[pos&q.mask]
	if slot.seq.Load() != pos+1 {
		return zero, false
	}

	item := slot.item
	slot.item = zero
	slot.seq.Store(pos + q.mask + 1)
	q.tail.Store(pos + 1)
	return item, true
}

// Len returns the approximate number of queued items.
func (q *LockFreeQueue[T]) Len() int {
	head, tail := q.head.Load(), q.tail.Load()
	if head < tail {
		return 0
	}
	return int(head - tail)
}

// Cap returns the queue capacity.
func (q *LockFreeQueue[T]) Cap() int {
	return int(q.mask + 1)
}

// Drain pops up to maxItems items in FIFO order.
func (q *LockFreeQueue[T]) Drain(maxItems int) []T {
	var result []T
	for len(result) < maxItems {
		item, ok := q.TryPop()
		if !ok {
			break
		}
		result = append(result, item)
	}
	return result
}

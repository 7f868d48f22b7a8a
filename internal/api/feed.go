package api

import (
	"sync"

	"bond-arena/internal/classify"
)

// MoleculeFeed keeps the most recent identification records for the API.
// The broadcast loop is the only writer; HTTP handlers read.
type MoleculeFeed struct {
	mu      sync.RWMutex
	records []classify.Record
	next    int
	full    bool
}

// NewMoleculeFeed creates a feed holding at most capacity records.
func NewMoleculeFeed(capacity int) *MoleculeFeed {
	if capacity <= 0 {
		capacity = 50
	}
	return &MoleculeFeed{records: make([]classify.Record, capacity)}
}

// Add appends rec, overwriting the oldest record when full.
func (f *MoleculeFeed) Add(rec classify.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records[f.next] = rec
	f.next = (f.next + 1) % len(f.records)
	if f.next == 0 {
		f.full = true
	}
}

// Recent returns up to n records, newest first. n <= 0 returns everything.
func (f *MoleculeFeed) Recent(n int) []classify.Record {
	f.mu.RLock()
	defer f.mu.RUnlock()

	size := f.next
	if f.full {
		size = len(f.records)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]classify.Record, 0, n)
	for i := 1; i <= n; i++ {
		idx := (f.next - i + len(f.records)) % len(f.records)
		out = append(out, f.records[idx])
	}
	return out
}

// Len returns the number of stored records.
func (f *MoleculeFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.full {
		return len(f.records)
	}
	return f.next
}

package spatial

import (
	"math/rand"
	"sync"
)

// Skip list with span counts for O(log n) rank queries (Pugh 1990, the same
// layout Redis uses for sorted sets). Entries are ordered by score
// descending, then by insertion sequence so the earlier entry wins a tie.

const (
	maxLevel         = 24
	levelProbability = 0.25
)

// SkipListEntry is a scored key. Seq is assigned on insert and increases
// monotonically.
type SkipListEntry struct {
	Key   string
	Score float64
	Seq   uint64
}

type skipNode struct {
	entry SkipListEntry
	next  []*skipNode
	span  []int // nodes skipped by next[i], counting the target
}

// SkipList is a ranked set safe for concurrent use.
type SkipList struct {
	mu     sync.RWMutex
	head   *skipNode
	level  int
	length  int
	entries map[string]SkipListEntry
	nextSeq uint64
	rng     *rand.Rand
}

// NewSkipList creates an empty skip list.
func NewSkipList() *SkipList {
	return &SkipList{
		head: &skipNode{
			next: make([]*skipNode, maxLevel),
			span: make([]int, maxLevel),
		},
		level:   1,
		entries: make(map[string]SkipListEntry),
		rng:     rand.New(rand.NewSource(rand.Int63())),
	}
}

func (sl *SkipList) randomLevel() int {
	level := 1
	for level < maxLevel && sl.rng.Float64() < levelProbability {
		level++
	}
	return level
}

// before reports whether a sorts ahead of b.
func before(a, b SkipListEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Seq < b.Seq
}

// Insert adds key or moves it to a new score. A moved key takes a new
// sequence; re-inserting the same score keeps the old one.
func (sl *SkipList) Insert(key string, score float64) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if old, ok := sl.entries[key]; ok {
		if old.Score == score {
			return
		}
		sl.remove(old)
	}
	sl.nextSeq++
	e := SkipListEntry{Key: key, Score: score, Seq: sl.nextSeq}
	sl.insert(e)
	sl.entries[key] = e
}

func (sl *SkipList) insert(e SkipListEntry) {
	var update [maxLevel]*skipNode
	var rank [maxLevel]int

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		if i < sl.level-1 {
			rank[i] = rank[i+1]
		}
		for x.next[i] != nil && before(x.next[i].entry, e) {
			rank[i] += x.span[i]
			x = x.next[i]
		}
		update[i] = x
	}

	level := sl.randomLevel()
	if level > sl.level {
		for i := sl.level; i < level; i++ {
			rank[i] = 0
			update[i] = sl.head
			update[i].span[i] = sl.length
		}
		sl.level = level
	}

	node := &skipNode{
		entry: e,
		next:  make([]*skipNode, level),
		span:  make([]int, level),
	}
	for i := 0; i < level; i++ {
		node.next[i] = update[i].next[i]
		update[i].next[i] = node
		node.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = rank[0] - rank[i] + 1
	}
	for i := level; i < sl.level; i++ {
		update[i].span[i]++
	}
	sl.length++
}

// Remove deletes key. It reports whether the key was present.
func (sl *SkipList) Remove(key string) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	e, ok := sl.entries[key]
	if !ok {
		return false
	}
	sl.remove(e)
	delete(sl.entries, key)
	return true
}

// TrimTo drops the lowest ranked entries until at most n remain and
// returns them, worst first.
func (sl *SkipList) TrimTo(n int) []SkipListEntry {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	var dropped []SkipListEntry
	for sl.length > max(n, 0) {
		last := sl.atRank(sl.length)
		sl.remove(last)
		delete(sl.entries, last.Key)
		dropped = append(dropped, last)
	}
	return dropped
}

// atRank returns the entry at 1-based rank r, which must be in range.
func (sl *SkipList) atRank(r int) SkipListEntry {
	traversed := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] <= r {
			traversed += x.span[i]
			x = x.next[i]
		}
		if traversed == r {
			break
		}
	}
	return x.entry
}

func (sl *SkipList) remove(e SkipListEntry) {
	var update [maxLevel]*skipNode
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && before(x.next[i].entry, e) {
			x = x.next[i]
		}
		update[i] = x
	}
	node := x.next[0]
	if node == nil || node.entry != e {
		return
	}

	for i := 0; i < sl.level; i++ {
		if update[i].next[i] == node {
			update[i].span[i] += node.span[i] - 1
			update[i].next[i] = node.next[i]
		} else {
			update[i].span[i]--
		}
	}
	for sl.level > 1 && sl.head.next[sl.level-1] == nil {
		sl.level--
	}
	sl.length--
}

// GetRank returns the 1-based rank of key, or 0 if absent.
func (sl *SkipList) GetRank(key string) int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	e, ok := sl.entries[key]
	if !ok {
		return 0
	}

	rank := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && (before(x.next[i].entry, e) || x.next[i].entry == e) {
			rank += x.span[i]
			x = x.next[i]
		}
		if x.entry == e {
			return rank
		}
	}
	return 0
}

// GetRange returns entries with ranks in [start, end], 1-based and inclusive.
func (sl *SkipList) GetRange(start, end int) []SkipListEntry {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	start = max(start, 1)
	end = min(end, sl.length)
	if start > end {
		return nil
	}

	traversed := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && traversed+x.span[i] < start {
			traversed += x.span[i]
			x = x.next[i]
		}
	}

	out := make([]SkipListEntry, 0, end-start+1)
	for x = x.next[0]; x != nil && traversed < end; x = x.next[0] {
		traversed++
		out = append(out, x.entry)
	}
	return out
}

// GetScore returns the score for key.
func (sl *SkipList) GetScore(key string) (float64, bool) {
	e, ok := sl.Get(key)
	return e.Score, ok
}

// Get returns the entry for key.
func (sl *SkipList) Get(key string) (SkipListEntry, bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	e, ok := sl.entries[key]
	return e, ok
}

// Length returns the number of entries.
func (sl *SkipList) Length() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.length
}

// Clear removes all entries.
func (sl *SkipList) Clear() {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	for i := range sl.head.next {
		sl.head.next[i] = nil
		sl.head.span[i] = 0
	}
	sl.level = 1
	sl.length = 0
	clear(sl.entries)
}

package game

// handle encodes a 32-bit slot index in the low bits and a 32-bit generation
// in the high bits. A slot's generation increments when it is freed, so a
// handle kept after its entity was removed no longer resolves.
//
// Generations start at 1, which keeps the zero handle invalid.
type handle uint64

func newHandle(index, generation uint32) handle {
	return handle(uint64(generation)<<32 | uint64(index))
}

func (h handle) index() uint32      { return uint32(h) }
func (h handle) generation() uint32 { return uint32(h >> 32) }

// AtomID identifies an atom. Stale ids resolve to "not found".
type AtomID uint64

// BondID identifies a bond. Stale ids resolve to "not found".
type BondID uint64

// handlePool allocates generational handles with a LIFO free list.
type handlePool struct {
	generations []uint32
	live        []bool
	free        []uint32
}

func newHandlePool(capacity int) handlePool {
	return handlePool{
		generations: make([]uint32, 0, capacity),
		live:        make([]bool, 0, capacity),
		free:        make([]uint32, 0, capacity/4+1),
	}
}

func (p *handlePool) alloc() handle {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		p.live[idx] = true
		return newHandle(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 1)
	p.live = append(p.live, true)
	return newHandle(idx, 1)
}

func (p *handlePool) alive(h handle) bool {
	idx := h.index()
	if int(idx) >= len(p.generations) {
		return false
	}
	return p.live[idx] && p.generations[idx] == h.generation()
}

// release frees the slot and reports whether h was live.
func (p *handlePool) release(h handle) bool {
	if !p.alive(h) {
		return false
	}
	idx := h.index()
	p.live[idx] = false
	p.generations[idx]++
	if p.generations[idx] == 0 {
		p.generations[idx] = 1
	}
	p.free = append(p.free, idx)
	return true
}

// slots returns the number of slots ever allocated.
func (p *handlePool) slots() int { return len(p.generations) }

func (p *handlePool) reset() {
	// Generations survive a reset so handles from before it stay stale.
	for i := range p.live {
		if p.live[i] {
			p.live[i] = false
			p.generations[i]++
			if p.generations[i] == 0 {
				p.generations[i] = 1
			}
		}
	}
	p.free = p.free[:0]
	for i := len(p.generations) - 1; i >= 0; i-- {
		p.free = append(p.free, uint32(i))
	}
}

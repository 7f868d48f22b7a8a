package game

import (
	"sync/atomic"
	"time"
)

// AtomSnapshot is an immutable copy of atom state for rendering
type AtomSnapshot struct {
	ID           AtomID  `json:"id"`
	Element      Element `json:"element"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	VX           float64 `json:"vx"`
	VY           float64 `json:"vy"`
	Radius       float64 `json:"radius"`
	Scale        float64 `json:"scale"`
	Color        string  `json:"color"`
	CurrentBonds int     `json:"currentBonds"`
	Valency      int     `json:"valency"`
	Dragged      bool    `json:"dragged"`
}

// BondSnapshot is an immutable bond for rendering. Order is the index of
// this bond among the bonds linking the same pair, used to draw parallel
// lines for double and triple bonds.
type BondSnapshot struct {
	ID     BondID  `json:"id"`
	A      AtomID  `json:"a"`
	B      AtomID  `json:"b"`
	AX, AY float64 `json:"-"`
	BX, BY float64 `json:"-"`
	Order  int     `json:"order"`
	Count  int     `json:"count"` // Bonds between this pair
}

// ParticleSnapshot is an immutable particle for rendering
type ParticleSnapshot struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
	Alpha float64 `json:"alpha"`
}

// TextSnapshot is an immutable floating text
type TextSnapshot struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Text  string  `json:"text"`
	Color string  `json:"color"`
	Alpha float64 `json:"alpha"`
}

// GameSnapshot is a complete immutable world state for rendering.
// A published snapshot is never written again.
type GameSnapshot struct {
	Sequence   uint64    `json:"sequence"`
	Timestamp  time.Time `json:"timestamp"`
	TickNumber uint64    `json:"tick"`

	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Atoms     []AtomSnapshot     `json:"atoms"`
	Bonds     []BondSnapshot     `json:"bonds"`
	Particles []ParticleSnapshot `json:"particles"`
	Texts     []TextSnapshot     `json:"texts"`

	Pointer  Vec2   `json:"pointer"`
	Dragging AtomID `json:"dragging,omitempty"`

	Score         int    `json:"score"`
	Molecules     int    `json:"molecules"`
	SessionActive bool   `json:"sessionActive"`
	Player        string `json:"player,omitempty"`
	UndoDepth     int    `json:"undoDepth"`
}

// SnapshotPool hands the simulation a fresh snapshot to fill each tick and
// publishes it atomically for lock-free readers (renderer, stats, API).
//
// Each write slot is a new allocation sized from the previous one, so a slow
// reader holding an older snapshot never sees it change underneath.
type SnapshotPool struct {
	latest   atomic.Pointer[GameSnapshot]
	pending  *GameSnapshot
	sequence atomic.Uint64
	maxAtoms int
}

// NewSnapshotPool creates a pool that starts with an empty published snapshot.
func NewSnapshotPool(maxAtoms int) *SnapshotPool {
	p := &SnapshotPool{maxAtoms: maxAtoms}
	p.latest.Store(&GameSnapshot{Timestamp: time.Now()})
	return p
}

// AcquireWrite returns a snapshot to fill (producer only, called from the tick).
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	prev := p.latest.Load()
	snap := &GameSnapshot{
		Sequence:  p.sequence.Add(1),
		Timestamp: time.Now(),
		Atoms:     make([]AtomSnapshot, 0, max(len(prev.Atoms), p.maxAtoms)),
		Bonds:     make([]BondSnapshot, 0, max(len(prev.Bonds), p.maxAtoms)),
		Particles: make([]ParticleSnapshot, 0, len(prev.Particles)),
		Texts:     make([]TextSnapshot, 0, len(prev.Texts)),
	}
	p.pending = snap
	return snap
}

// PublishWrite makes the snapshot from the last AcquireWrite visible.
func (p *SnapshotPool) PublishWrite() {
	if p.pending != nil {
		p.latest.Store(p.pending)
		p.pending = nil
	}
}

// AcquireRead returns the latest published snapshot. Never nil.
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	return p.latest.Load()
}

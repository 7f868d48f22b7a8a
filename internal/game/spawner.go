package game

import (
	"math/rand"
	"time"

	"bond-arena/internal/config"
)

// Spawner adds atoms at a fixed interval while the population is below the
// cap. New atoms appear just outside a random edge, drifting inward.
type Spawner struct {
	cfg     config.SpawnConfig
	arena   config.ArenaConfig
	elapsed time.Duration
}

// NewSpawner creates a spawner.
func NewSpawner(cfg config.SpawnConfig, arena config.ArenaConfig) *Spawner {
	return &Spawner{cfg: cfg, arena: arena}
}

// Step advances the spawn clock by dt and spawns at most one atom when an
// interval has elapsed. Intervals that pass while the arena is full are not
// carried over.
func (sp *Spawner) Step(s *Store, dt time.Duration, rng *rand.Rand) (AtomID, bool) {
	sp.elapsed += dt
	if sp.elapsed < sp.cfg.Interval {
		return 0, false
	}
	sp.elapsed = 0

	if s.AtomCount() >= sp.cfg.MaxAtoms {
		return 0, false
	}
	return sp.SpawnAtEdge(s, rng), true
}

// SpawnAtEdge spawns one weighted-random atom outside a random edge.
func (sp *Spawner) SpawnAtEdge(s *Store, rng *rand.Rand) AtomID {
	w, h := sp.arena.Width, sp.arena.Height
	off := sp.cfg.EdgeOffset
	speed := sp.cfg.InwardSpeed * (0.5 + rng.Float64()*0.5)
	drift := (rng.Float64() - 0.5) * sp.cfg.InwardSpeed

	var pos, vel Vec2
	switch rng.Intn(4) {
	case 0: // top
		pos = Vec2{X: rng.Float64() * w, Y: -off}
		vel = Vec2{X: drift, Y: speed}
	case 1: // right
		pos = Vec2{X: w + off, Y: rng.Float64() * h}
		vel = Vec2{X: -speed, Y: drift}
	case 2: // bottom
		pos = Vec2{X: rng.Float64() * w, Y: h + off}
		vel = Vec2{X: drift, Y: -speed}
	default: // left
		pos = Vec2{X: -off, Y: rng.Float64() * h}
		vel = Vec2{X: speed, Y: drift}
	}
	return s.AddAtom(RandomElement(rng), pos, vel)
}

// SpawnInside spawns one weighted-random atom at a random point inside the
// arena with a small random velocity. Used to seed a new session.
func (sp *Spawner) SpawnInside(s *Store, rng *rand.Rand) AtomID {
	t := RandomElement(rng)
	r := t.Radius()
	pos := Vec2{
		X: r + rng.Float64()*(sp.arena.Width-2*r),
		Y: r + rng.Float64()*(sp.arena.Height-2*r),
	}
	vel := Vec2{
		X: (rng.Float64() - 0.5) * sp.cfg.InwardSpeed,
		Y: (rng.Float64() - 0.5) * sp.cfg.InwardSpeed,
	}
	return s.AddAtom(t, pos, vel)
}

// Reset restarts the spawn clock.
func (sp *Spawner) Reset() { sp.elapsed = 0 }

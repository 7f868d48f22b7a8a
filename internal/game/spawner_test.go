package game

import (
	"math/rand"
	"testing"
	"time"

	"bond-arena/internal/config"
)

// TestSpawnerInterval verifies one spawn per elapsed interval
func TestSpawnerInterval(t *testing.T) {
	cfg := config.DefaultSpawn()
	cfg.Interval = 100 * time.Millisecond
	sp := NewSpawner(cfg, config.DefaultArena())
	s := NewStore(cfg.MaxAtoms)
	rng := rand.New(rand.NewSource(5))

	spawned := 0
	for i := 0; i < 10; i++ {
		if _, ok := sp.Step(s, 50*time.Millisecond, rng); ok {
			spawned++
		}
	}
	if spawned != 5 {
		t.Errorf("Expected 5 spawns in 500ms, got %d", spawned)
	}
}

// TestSpawnerRespectsCap verifies the population cap
func TestSpawnerRespectsCap(t *testing.T) {
	cfg := config.DefaultSpawn()
	cfg.MaxAtoms = 3
	cfg.Interval = time.Millisecond
	sp := NewSpawner(cfg, config.DefaultArena())
	s := NewStore(cfg.MaxAtoms)
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 20; i++ {
		sp.Step(s, time.Millisecond, rng)
	}
	if s.AtomCount() != 3 {
		t.Errorf("Expected population capped at 3, got %d", s.AtomCount())
	}
}

// TestSpawnAtEdgeMovesInward verifies atoms start outside and drift in
func TestSpawnAtEdgeMovesInward(t *testing.T) {
	arena := config.DefaultArena()
	sp := NewSpawner(config.DefaultSpawn(), arena)
	s := NewStore(64)
	rng := rand.New(rand.NewSource(11))

	for i := 0; i < 50; i++ {
		a := s.Atom(sp.SpawnAtEdge(s, rng))
		outside := a.X < 0 || a.X > arena.Width || a.Y < 0 || a.Y > arena.Height
		if !outside {
			t.Fatalf("atom spawned inside the arena at (%g, %g)", a.X, a.Y)
		}
		switch {
		case a.Y < 0 && a.VY <= 0,
			a.Y > arena.Height && a.VY >= 0,
			a.X < 0 && a.VX <= 0,
			a.X > arena.Width && a.VX >= 0:
			t.Errorf("atom at (%g, %g) moving outward (%g, %g)", a.X, a.Y, a.VX, a.VY)
		}
		if a.Scale != 0 {
			t.Errorf("new atoms should start at scale 0")
		}
	}
}

// TestSpawnInsideStaysInBounds verifies seeded atoms are fully inside
func TestSpawnInsideStaysInBounds(t *testing.T) {
	arena := config.DefaultArena()
	sp := NewSpawner(config.DefaultSpawn(), arena)
	s := NewStore(64)
	rng := rand.New(rand.NewSource(12))

	for i := 0; i < 50; i++ {
		a := s.Atom(sp.SpawnInside(s, rng))
		r := a.Radius()
		if a.X < r || a.X > arena.Width-r || a.Y < r || a.Y > arena.Height-r {
			t.Fatalf("seeded atom outside bounds at (%g, %g)", a.X, a.Y)
		}
	}
}

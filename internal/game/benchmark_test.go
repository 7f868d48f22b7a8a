package game

import (
	"math/rand"
	"testing"

	"bond-arena/internal/config"
	"bond-arena/internal/game/spatial"
)

// =============================================================================
// BENCHMARK SUITE: CRITICAL PATH PERFORMANCE TESTS
// Run with: go test -bench=. -benchmem ./internal/game/...
// =============================================================================

// populate scatters n atoms at rest across the arena.
func populate(e *Engine, n int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	arena := e.Config().Arena
	elements := Elements()
	for i := 0; i < n; i++ {
		e.SpawnAtom(elements[rng.Intn(len(elements))],
			30+rng.Float64()*(arena.Width-60),
			30+rng.Float64()*(arena.Height-60))
	}
}

func benchEngine(n int) *Engine {
	cfg := DefaultEngineConfig()
	cfg.Seed = 42
	cfg.Spawn.MaxAtoms = n
	return NewEngine(cfg)
}

// -----------------------------------------------------------------------------
// ENGINE TICK BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkEngineTick_10Atoms(b *testing.B)  { benchmarkEngineTick(b, 10) }
func BenchmarkEngineTick_30Atoms(b *testing.B)  { benchmarkEngineTick(b, 30) }
func BenchmarkEngineTick_100Atoms(b *testing.B) { benchmarkEngineTick(b, 100) }
func BenchmarkEngineTick_200Atoms(b *testing.B) { benchmarkEngineTick(b, 200) }

func benchmarkEngineTick(b *testing.B, atomCount int) {
	engine := benchEngine(atomCount)
	populate(engine, atomCount, 1)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		engine.Step()
	}
}

// BenchmarkEngineTick_Dragging keeps a drag active so bond checks run
func BenchmarkEngineTick_Dragging(b *testing.B) {
	engine := benchEngine(100)
	populate(engine, 100, 2)
	held := engine.GetState().Atoms[0]
	engine.PointerDown(held.X, held.Y)
	rng := rand.New(rand.NewSource(3))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		engine.PointerMove(rng.Float64()*1280, rng.Float64()*720)
		engine.Step()
	}
}

// -----------------------------------------------------------------------------
// SNAPSHOT GENERATION BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkProduceSnapshot_30Atoms(b *testing.B)  { benchmarkSnapshot(b, 30) }
func BenchmarkProduceSnapshot_200Atoms(b *testing.B) { benchmarkSnapshot(b, 200) }

func benchmarkSnapshot(b *testing.B, atomCount int) {
	engine := benchEngine(atomCount)
	populate(engine, atomCount, 1)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		engine.mu.Lock()
		engine.produceSnapshot()
		engine.mu.Unlock()
	}
}

// -----------------------------------------------------------------------------
// STABILITY DETECTION
// -----------------------------------------------------------------------------

// BenchmarkFindStable_Chains measures the traversal over many small molecules
func BenchmarkFindStable_Chains(b *testing.B) {
	s := NewStore(300)
	for i := 0; i < 100; i++ {
		x := float64(i * 10)
		o := s.AddAtom(Oxygen, Vec2{X: x}, Vec2{})
		h1 := s.AddAtom(Hydrogen, Vec2{X: x, Y: 10}, Vec2{})
		h2 := s.AddAtom(Hydrogen, Vec2{X: x, Y: 20}, Vec2{})
		s.AddBond(o, h1)
		if i%2 == 0 {
			s.AddBond(o, h2)
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		FindStable(s, 100)
	}
}

// -----------------------------------------------------------------------------
// SPATIAL GRID BENCHMARKS
// -----------------------------------------------------------------------------

func BenchmarkSpatialGrid_Insert(b *testing.B) {
	grid := spatial.NewSpatialGrid(1280, 720, config.DefaultPhysics().GridCellSize, 200)
	rng := rand.New(rand.NewSource(1))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%200 == 0 {
			grid.Clear()
		}
		grid.Insert(uint32(i%200), rng.Float64()*1280, rng.Float64()*720)
	}
}

func BenchmarkSpatialGrid_QueryRadius(b *testing.B) {
	grid := spatial.NewSpatialGrid(1280, 720, config.DefaultPhysics().GridCellSize, 200)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		grid.Insert(uint32(i), rng.Float64()*1280, rng.Float64()*720)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		grid.QueryRadius(640, 360, 60)
	}
}

// -----------------------------------------------------------------------------
// SESSION CHURN
// -----------------------------------------------------------------------------

// BenchmarkSessionRestart measures seeding and clearing a full arena
func BenchmarkSessionRestart(b *testing.B) {
	engine := benchEngine(30)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		engine.StartSession("bench")
		engine.StopSession()
	}
}

package game

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"bond-arena/internal/config"
	"bond-arena/internal/game/spatial"
)

// hitSlop widens the pointer hit area around an atom.
const hitSlop = 4.0

// EngineConfig configures a new engine.
type EngineConfig struct {
	Arena   config.ArenaConfig
	Physics config.PhysicsConfig
	Bonding config.BondingConfig
	Spawn   config.SpawnConfig
	Session config.SessionConfig
	Limits  config.LimitsConfig
	Seed    int64 // 0 picks a time-based seed
}

// DefaultEngineConfig returns the compiled-in simulation settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfigFrom(config.Default())
}

// EngineConfigFrom extracts the simulation sections of an app config.
func EngineConfigFrom(app config.AppConfig) EngineConfig {
	return EngineConfig{
		Arena:   app.Arena,
		Physics: app.Physics,
		Bonding: app.Bonding,
		Spawn:   app.Spawn,
		Session: app.Session,
		Limits:  app.Limits,
	}
}

// Engine owns the simulation and runs it on a fixed tick.
//
// Each tick runs, in order: spawner, force integrator, bond formation for the
// dragged atom (which runs stability detection after a new bond), effects,
// then notices are delivered. Pointer input and session control take the
// same lock, so they apply between ticks.
type Engine struct {
	mu  sync.Mutex
	cfg EngineConfig
	dt  time.Duration

	store       *Store
	integrator  *Integrator
	spawner     *Spawner
	interaction InteractionSession
	undo        UndoHistory
	effects     *Effects

	pointer Vec2
	dragged AtomID // zero when nothing is held

	session   sessionState
	tickCount uint64

	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}

	callbacks Callbacks
	pending   []Notice

	snapshotPool *SnapshotPool
	eventLog     *EventLog
	leaderboard  *Leaderboard

	rng     *rand.Rand
	scratch []*Atom
}

// NewEngine creates an engine with an empty arena.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Physics.TickRate <= 0 {
		cfg.Physics.TickRate = config.DefaultPhysics().TickRate
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	capacity := max(cfg.Spawn.MaxAtoms, cfg.Session.InitialAtoms, 1)

	return &Engine{
		cfg:          cfg,
		dt:           time.Second / time.Duration(cfg.Physics.TickRate),
		store:        NewStore(capacity),
		integrator:   NewIntegrator(cfg.Physics, cfg.Arena, capacity),
		spawner:      NewSpawner(cfg.Spawn, cfg.Arena),
		interaction:  newInteractionSession(),
		effects:      NewEffects(cfg.Limits),
		snapshotPool: NewSnapshotPool(capacity),
		eventLog:     NewEventLog(),
		leaderboard:  NewLeaderboard(cfg.Limits.MaxLeaderboard),
		rng:          rand.New(rand.NewSource(seed)),
		scratch:      make([]*Atom, 0, capacity),
	}
}

// Start begins the tick loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.ticker = time.NewTicker(e.dt)
	ticker, stop := e.ticker, e.stopChan
	e.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				e.Step()
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Simulation started at %d TPS", e.cfg.Physics.TickRate)
}

// Stop stops the tick loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}
	e.running = false
	e.ticker.Stop()
	close(e.stopChan)
	log.Println("🛑 Simulation stopped")
}

// Step runs one tick and delivers its notices. The tick loop calls it; tests
// and headless runs call it directly.
func (e *Engine) Step() {
	start := time.Now()

	e.mu.Lock()
	notices := e.step()
	cb := e.callbacks
	stats := TickStats{Tick: e.tickCount, Atoms: e.store.AtomCount(), Bonds: e.store.BondCount()}
	e.mu.Unlock()

	cb.dispatch(notices)
	if cb.OnTick != nil {
		stats.Duration = time.Since(start)
		cb.OnTick(stats)
	}
}

func (e *Engine) step() []Notice {
	e.tickCount++

	if e.session.active {
		if id, ok := e.spawner.Step(e.store, e.dt, e.rng); ok {
			e.noteSpawn(id, SourceSpawner)
		}
	}

	e.integrator.Step(e.store, e.pointer)
	e.stepBonding()
	e.effects.Update()

	e.eventLog.EmitSimple(EventTypeTick, e.tickCount, "", TickPayload{
		Atoms:       e.store.AtomCount(),
		Bonds:       e.store.BondCount(),
		DeltaTimeNs: int64(e.dt),
	})

	e.produceSnapshot()
	return e.takePending()
}

// takePending hands the collected notices to the caller. A fresh slice is
// started because the caller delivers them after releasing the lock.
func (e *Engine) takePending() []Notice {
	notices := e.pending
	e.pending = nil
	return notices
}

func (e *Engine) notify(n Notice) {
	n.Tick = e.tickCount
	e.pending = append(e.pending, n)
}

// stepBonding forms at most one bond for the dragged atom.
func (e *Engine) stepBonding() {
	if e.dragged == 0 {
		return
	}
	held := e.store.Atom(e.dragged)
	if held == nil {
		e.dragged = 0
		return
	}

	cand := BondCandidate(e.store, &e.interaction, held, e.cfg.Bonding, e.scratch)
	if cand == nil {
		return
	}
	id, err := e.store.AddBond(held.ID, cand.ID)
	if err != nil {
		log.Printf("⚠️ Bond refused: %v", err)
		return
	}

	e.interaction.Add(held.ID, cand.ID)
	e.undo.Record(id)
	e.session.bondsFormed++

	e.eventLog.EmitSimple(EventTypeBondForm, e.tickCount, SourcePointer,
		BondPayload{BondID: id, A: held.ID, B: cand.ID})
	e.notify(Notice{
		Kind:   NoticeBondFormed,
		BondID: id,
		Atoms:  []AtomID{held.ID, cand.ID},
		X:      (held.X + cand.X) / 2,
		Y:      (held.Y + cand.Y) / 2,
	})

	e.resolveStability()
}

// resolveStability scores and removes every stable molecule. All molecules
// are found before any atom is removed.
func (e *Engine) resolveStability() {
	found := FindStable(e.store, e.cfg.Bonding.PointsPerAtom)
	if len(found) == 0 {
		return
	}

	var doomed []AtomID
	for i := range found {
		m := found[i]
		doomed = append(doomed, m.Atoms...)

		e.session.score += m.Points
		e.session.molecules++
		e.effects.Burst(m, e.rng)
		e.effects.AddText(m.Center.X, m.Center.Y, fmt.Sprintf("+%d", m.Points), scoreTextColor)

		e.eventLog.EmitSimple(EventTypeMolecule, e.tickCount, SourceEngine,
			MoleculePayload{Formula: m.Formula, Atoms: m.Atoms, Points: m.Points})
		e.notify(Notice{Kind: NoticeMoleculeFormed, Molecule: &m, X: m.Center.X, Y: m.Center.Y})
		e.notify(Notice{Kind: NoticeScore, Points: m.Points, X: m.Center.X, Y: m.Center.Y})
	}

	e.store.RemoveAtoms(doomed)
	if e.dragged != 0 && e.store.Atom(e.dragged) == nil {
		e.dragged = 0
	}
}

func (e *Engine) noteSpawn(id AtomID, source string) {
	a := e.store.Atom(id)
	if a == nil {
		return
	}
	e.eventLog.EmitSimple(EventTypeAtomSpawn, e.tickCount, source,
		AtomSpawnPayload{AtomID: id, Element: a.Type, X: a.X, Y: a.Y})
	e.notify(Notice{Kind: NoticeAtomSpawned, Atoms: []AtomID{id}, Element: a.Type, X: a.X, Y: a.Y})
}

// =============================================================================
// INPUT
// =============================================================================

// PointerDown starts a drag gesture. If an atom is under the pointer it is
// grabbed and stopped, and the gesture's bonded-pair set is cleared. It
// reports whether an atom was grabbed.
func (e *Engine) PointerDown(x, y float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pointer = e.clampPointer(x, y)
	e.releaseHeld()
	e.interaction.Begin()

	hit := e.hitTest(x, y)
	if hit == nil {
		return false
	}
	hit.Dragged = true
	hit.VX, hit.VY = 0, 0
	e.dragged = hit.ID
	return true
}

// PointerMove updates the drag target. The pointer is clamped to the arena.
func (e *Engine) PointerMove(x, y float64) {
	e.mu.Lock()
	e.pointer = e.clampPointer(x, y)
	e.mu.Unlock()
}

// PointerUp ends the gesture and runs the release check on the held atom.
func (e *Engine) PointerUp() {
	e.mu.Lock()
	held := e.store.Atom(e.dragged)
	e.releaseHeld()
	if held != nil {
		e.checkRelease(held)
	}
	notices := e.takePending()
	cb := e.callbacks
	e.mu.Unlock()

	cb.dispatch(notices)
}

func (e *Engine) releaseHeld() {
	if a := e.store.Atom(e.dragged); a != nil {
		a.Dragged = false
	}
	e.dragged = 0
}

func (e *Engine) checkRelease(held *Atom) {
	rej := CheckRelease(e.store, held, e.cfg.Bonding, e.rng, e.scratch)
	if rej == nil {
		return
	}
	e.session.rejections++
	e.effects.AddText(held.X, held.Y-held.Radius()-10, rej.Reason, rejectTextColor)
	e.eventLog.EmitSimple(EventTypeBondReject, e.tickCount, SourcePointer,
		RejectPayload{Released: rej.Released, Neighbor: rej.Neighbor, Reason: rej.Reason})
	e.notify(Notice{
		Kind:   NoticeBondRejected,
		Reason: rej.Reason,
		Atoms:  []AtomID{rej.Released, rej.Neighbor},
		X:      held.X,
		Y:      held.Y,
	})
}

// hitTest returns the atom nearest to (x, y) whose hit area contains it.
func (e *Engine) hitTest(x, y float64) *Atom {
	var best *Atom
	bestDist := math.Inf(1)
	for _, a := range e.store.Atoms(e.scratch[:0]) {
		d := math.Hypot(a.X-x, a.Y-y)
		if d <= a.Radius()+hitSlop && d < bestDist {
			best, bestDist = a, d
		}
	}
	return best
}

func (e *Engine) clampPointer(x, y float64) Vec2 {
	return Vec2{
		X: math.Max(0, math.Min(x, e.cfg.Arena.Width)),
		Y: math.Max(0, math.Min(y, e.cfg.Arena.Height)),
	}
}

// Undo removes the most recent bond that still exists. It reports whether a
// bond was removed; an exhausted history is a silent no-op.
func (e *Engine) Undo() bool {
	e.mu.Lock()
	b, ok := e.undo.UndoLast(e.store)
	if ok {
		e.eventLog.EmitSimple(EventTypeUndo, e.tickCount, SourcePointer,
			BondPayload{BondID: b.ID, A: b.A, B: b.B})
		n := Notice{Kind: NoticeBondUndone, BondID: b.ID, Atoms: []AtomID{b.A, b.B}}
		if a := e.store.Atom(b.A); a != nil {
			n.X, n.Y = a.X, a.Y
		}
		e.notify(n)
	}
	notices := e.takePending()
	cb := e.callbacks
	e.mu.Unlock()

	cb.dispatch(notices)
	return ok
}

// Reset clears atoms, bonds, effects, undo history and the gesture state.
// Score and session bookkeeping are left alone.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.store.Clear()
	e.undo.Clear()
	e.interaction.Begin()
	e.effects.Clear()
	e.spawner.Reset()
	e.dragged = 0
	e.pending = nil
	e.eventLog.EmitSimple(EventTypeReset, e.tickCount, SourceEngine, nil)
	e.produceSnapshot()
}

// SpawnAtom places an atom of type t at rest at (x, y), fully grown.
// Used by scripted runs and tests.
func (e *Engine) SpawnAtom(t Element, x, y float64) AtomID {
	e.mu.Lock()
	id := e.store.AddAtom(t, Vec2{X: x, Y: y}, Vec2{})
	e.store.Atom(id).Scale = 1
	e.noteSpawn(id, SourceEngine)
	notices := e.takePending()
	cb := e.callbacks
	e.mu.Unlock()

	cb.dispatch(notices)
	return id
}

// =============================================================================
// STATE ACCESS
// =============================================================================

// SetCallbacks replaces the output callbacks.
func (e *Engine) SetCallbacks(cb Callbacks) {
	e.mu.Lock()
	e.callbacks = cb
	e.mu.Unlock()
}

// GetSnapshot returns the snapshot published by the last tick (lock-free).
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshotPool.AcquireRead()
}

// GetState builds a snapshot of the current state under the lock.
func (e *Engine) GetState() GameSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	var snap GameSnapshot
	snap.Sequence = e.snapshotPool.AcquireRead().Sequence
	snap.Timestamp = time.Now()
	e.fillSnapshot(&snap)
	return snap
}

// Atom returns a copy of the atom, if it exists.
func (e *Engine) Atom(id AtomID) (AtomSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	a := e.store.Atom(id)
	if a == nil {
		return AtomSnapshot{}, false
	}
	return atomSnapshot(a), true
}

// EngineStats is a point-in-time summary for the stats endpoint.
type EngineStats struct {
	Tick      uint64            `json:"tick"`
	TickRate  int               `json:"tickRate"`
	Running   bool              `json:"running"`
	Atoms     int               `json:"atoms"`
	Bonds     int               `json:"bonds"`
	UndoDepth int               `json:"undoDepth"`
	Particles int               `json:"particles"`
	Texts     int               `json:"texts"`
	Score     int               `json:"score"`
	Molecules int               `json:"molecules"`
	Grid      spatial.GridStats `json:"grid"`
}

// Stats returns engine counters.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	particles, texts := e.effects.Counts()
	return EngineStats{
		Tick:      e.tickCount,
		TickRate:  e.cfg.Physics.TickRate,
		Running:   e.running,
		Atoms:     e.store.AtomCount(),
		Bonds:     e.store.BondCount(),
		UndoDepth: e.undo.Len(),
		Particles: particles,
		Texts:     texts,
		Score:     e.session.score,
		Molecules: e.session.molecules,
		Grid:      e.integrator.grid.Stats(),
	}
}

// Validate checks the store's bond bookkeeping.
func (e *Engine) Validate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Validate()
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// StartEventLog begins recording events to filePath (empty: memory only).
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog flushes and stops the event log.
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// Leaderboard returns the best session scores.
func (e *Engine) Leaderboard() *Leaderboard {
	return e.leaderboard
}

// EventLog returns the engine's event log.
func (e *Engine) EventLog() *EventLog {
	return e.eventLog
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	e.fillSnapshot(snap)
	e.snapshotPool.PublishWrite()
}

func atomSnapshot(a *Atom) AtomSnapshot {
	def := a.Type.Def()
	return AtomSnapshot{
		ID:           a.ID,
		Element:      a.Type,
		X:            a.X,
		Y:            a.Y,
		VX:           a.VX,
		VY:           a.VY,
		Radius:       def.Radius,
		Scale:        a.Scale,
		Color:        def.Color,
		CurrentBonds: a.CurrentBonds,
		Valency:      def.Valency,
		Dragged:      a.Dragged,
	}
}

func (e *Engine) fillSnapshot(snap *GameSnapshot) {
	snap.TickNumber = e.tickCount
	snap.Width = e.cfg.Arena.Width
	snap.Height = e.cfg.Arena.Height
	snap.Pointer = e.pointer
	snap.Dragging = e.dragged
	snap.Score = e.session.score
	snap.Molecules = e.session.molecules
	snap.SessionActive = e.session.active
	snap.Player = e.session.player
	snap.UndoDepth = e.undo.Len()

	for _, a := range e.store.Atoms(e.scratch[:0]) {
		snap.Atoms = append(snap.Atoms, atomSnapshot(a))
	}

	bonds := e.store.Bonds(nil)
	seen := make(map[pairKey]int, len(bonds))
	for _, b := range bonds {
		a, c := e.store.Atom(b.A), e.store.Atom(b.B)
		if a == nil || c == nil {
			continue
		}
		key := makePair(b.A, b.B)
		order := seen[key]
		seen[key] = order + 1
		snap.Bonds = append(snap.Bonds, BondSnapshot{
			ID:    b.ID,
			A:     b.A,
			B:     b.B,
			AX:    a.X,
			AY:    a.Y,
			BX:    c.X,
			BY:    c.Y,
			Order: order,
			Count: a.BondedTo(b.B),
		})
	}

	for i := range e.effects.particles {
		p := &e.effects.particles[i]
		snap.Particles = append(snap.Particles, ParticleSnapshot{X: p.X, Y: p.Y, Color: p.Color, Alpha: p.Alpha()})
	}
	for i := range e.effects.texts {
		t := &e.effects.texts[i]
		snap.Texts = append(snap.Texts, TextSnapshot{X: t.X, Y: t.Y, Text: t.Text, Color: t.Color, Alpha: t.Alpha()})
	}
}

package game

import (
	"log"
	"time"
)

type sessionState struct {
	active      bool
	player      string
	score       int
	molecules   int
	bondsFormed int
	rejections  int
	startTick   uint64
	started     time.Time
}

// SessionResult summarizes a finished game session.
type SessionResult struct {
	Player      string        `json:"player"`
	Score       int           `json:"score"`
	Molecules   int           `json:"molecules"`
	BondsFormed int           `json:"bondsFormed"`
	Rejections  int           `json:"rejections"`
	Ticks       uint64        `json:"ticks"`
	Duration    time.Duration `json:"duration"`
}

// StartSession resets the world, zeroes the score and seeds the arena with
// the configured number of atoms. The spawner only runs while a session is
// active. Starting over an active session discards it.
func (e *Engine) StartSession(player string) {
	e.mu.Lock()
	e.resetLocked()
	e.session = sessionState{
		active:    true,
		player:    player,
		startTick: e.tickCount,
		started:   time.Now(),
	}
	for i := 0; i < e.cfg.Session.InitialAtoms; i++ {
		id := e.spawner.SpawnInside(e.store, e.rng)
		e.noteSpawn(id, SourceSpawner)
	}
	e.eventLog.EmitSimple(EventTypeSessionStart, e.tickCount, SourceEngine, SessionPayload{Player: player})
	e.produceSnapshot()
	notices := e.takePending()
	cb := e.callbacks
	e.mu.Unlock()

	cb.dispatch(notices)
	log.Printf("🧪 Session started for %s with %d atoms", player, e.cfg.Session.InitialAtoms)
}

// StopSession ends the session, resets the world and returns the result.
// Without an active session it returns a zero result.
func (e *Engine) StopSession() SessionResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.session
	if !s.active {
		return SessionResult{}
	}
	result := SessionResult{
		Player:      s.player,
		Score:       s.score,
		Molecules:   s.molecules,
		BondsFormed: s.bondsFormed,
		Rejections:  s.rejections,
		Ticks:       e.tickCount - s.startTick,
		Duration:    time.Since(s.started),
	}

	e.eventLog.EmitSimple(EventTypeSessionStop, e.tickCount, SourceEngine,
		SessionPayload{Player: s.player, Score: s.score, Molecules: s.molecules})
	e.session = sessionState{}
	e.resetLocked()
	e.leaderboard.Record(result)

	log.Printf("🏁 Session over for %s: %d points, %d molecules", result.Player, result.Score, result.Molecules)
	return result
}

// SessionActive reports whether a session is running.
func (e *Engine) SessionActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.active
}

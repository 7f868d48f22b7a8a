package classify

import (
	"context"
	"fmt"
	"log"
	"math"
	"slices"
	"strings"
	"time"

	"bond-arena/internal/config"
	"bond-arena/internal/game"
)

// Briefing is the mission shown before a session: one molecule to aim for.
type Briefing struct {
	Mission int    `json:"mission"`
	Target  string `json:"target"` // Hill formula
	Name    string `json:"name"`
	Text    string `json:"text"`
	Source  string `json:"source"` // "anthropic" or "fallback"
}

// Hint points the player at one bond they can make right now.
type Hint struct {
	Text  string         `json:"text"`
	Atoms [2]game.AtomID `json:"atoms"`
}

// Guide writes mission briefings and in-game hints. Briefing targets cycle
// through the built-in molecule table; the remote provider, when configured,
// only rewrites the briefing text. Hints are read off the arena.
type Guide struct {
	remote   *AnthropicClassifier
	timeout  time.Duration
	missions []string
}

// NewGuide creates a guide. Without a usable anthropic provider every
// briefing comes from the built-in table.
func NewGuide(cfg config.ClassifierConfig) *Guide {
	missions := make([]string, 0, len(knownMolecules))
	for k := range knownMolecules {
		missions = append(missions, k)
	}
	slices.Sort(missions)
	g := &Guide{
		timeout:  cfg.Timeout,
		missions: missions,
	}
	if g.timeout <= 0 {
		g.timeout = config.DefaultClassifier().Timeout
	}
	if strings.EqualFold(cfg.Provider, "anthropic") {
		if c := NewAnthropicClassifier(cfg); c.Available() {
			g.remote = c
		}
	}
	return g
}

// Missions returns the number of distinct mission targets.
func (g *Guide) Missions() int { return len(g.missions) }

// Briefing returns the briefing for a 1-based mission number. Numbers past
// the table wrap around; numbers below 1 are mission 1. A failed remote call
// keeps the built-in text.
func (g *Guide) Briefing(ctx context.Context, mission int) Briefing {
	mission = max(mission, 1)
	target := g.missions[(mission-1)%len(g.missions)]
	known := knownMolecules[target]

	b := Briefing{
		Mission: mission,
		Target:  target,
		Name:    known.name,
		Text:    fmt.Sprintf("Mission %d: build %s (%s). %s", mission, known.name, target, known.fact),
		Source:  "fallback",
	}
	if g.remote == nil {
		return b
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	text, err := g.remote.sendRequest(ctx, briefingPrompt(mission, target, known.name))
	if err != nil {
		log.Printf("⚠️ Briefing for mission %d using fallback: %v", mission, err)
		return b
	}
	if text = strings.TrimSpace(text); text != "" {
		b.Text = text
		b.Source = "anthropic"
	}
	return b
}

func briefingPrompt(mission int, target, name string) string {
	return fmt.Sprintf("Write a one or two sentence, kid-friendly mission briefing for "+
		"level %d of a molecule-building game. The goal is to build %s (%s) by "+
		"dragging atoms together. Reply with the briefing text only.", mission, name, target)
}

// Hint suggests the closest pair of grown, unsaturated atoms. It reports
// false when no two atoms can bond.
func (g *Guide) Hint(snap *game.GameSnapshot) (Hint, bool) {
	if snap == nil {
		return Hint{}, false
	}

	var best [2]*game.AtomSnapshot
	bestDist := math.Inf(1)
	for i := range snap.Atoms {
		a := &snap.Atoms[i]
		if !hintable(a) {
			continue
		}
		for j := i + 1; j < len(snap.Atoms); j++ {
			b := &snap.Atoms[j]
			if !hintable(b) {
				continue
			}
			if d := math.Hypot(a.X-b.X, a.Y-b.Y); d < bestDist {
				bestDist = d
				best = [2]*game.AtomSnapshot{a, b}
			}
		}
	}
	if best[0] == nil {
		return Hint{}, false
	}

	// Name the atom with more room as the anchor.
	anchor, mover := best[0], best[1]
	if spare(mover) > spare(anchor) {
		anchor, mover = mover, anchor
	}
	free := spare(anchor)
	noun := "bonds"
	if free == 1 {
		noun = "bond"
	}
	return Hint{
		Text: fmt.Sprintf("Drag the %s onto the %s nearby. The %s still has %d free %s.",
			mover.Element.Def().Name, anchor.Element.Def().Name, anchor.Element.Def().Name, free, noun),
		Atoms: [2]game.AtomID{mover.ID, anchor.ID},
	}, true
}

func hintable(a *game.AtomSnapshot) bool {
	return a.Scale >= 0.9 && a.CurrentBonds < a.Valency
}

func spare(a *game.AtomSnapshot) int { return a.Valency - a.CurrentBonds }

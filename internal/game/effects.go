package game

import (
	"math"
	"math/rand"

	"bond-arena/internal/config"
)

const (
	particleLife    = 40 // ticks
	textLife        = 60 // ticks
	textRiseSpeed   = 0.8
	particleDrag    = 0.94
	burstPerAtom    = 8
	burstBaseSpeed  = 2.5
	rejectTextColor = "#FF6B6B"
	scoreTextColor  = "#FFD93D"
)

// Particle is a short-lived presentation dot from a molecule burst.
type Particle struct {
	X, Y   float64
	VX, VY float64
	Color  string
	Life   int
}

// Alpha returns the remaining opacity.
func (p *Particle) Alpha() float64 { return float64(p.Life) / particleLife }

// FloatingText rises and fades, e.g. "+300" or a rejection reason.
type FloatingText struct {
	X, Y  float64
	Text  string
	Color string
	Life  int
}

// Alpha returns the remaining opacity.
func (t *FloatingText) Alpha() float64 { return float64(t.Life) / textLife }

// Effects holds presentation-only state. It never influences the simulation.
type Effects struct {
	particles    []Particle
	texts        []FloatingText
	maxParticles int
	maxTexts     int
}

// NewEffects creates effect buffers capped by limits.
func NewEffects(limits config.LimitsConfig) *Effects {
	return &Effects{
		particles:    make([]Particle, 0, limits.MaxParticles),
		texts:        make([]FloatingText, 0, limits.MaxTexts),
		maxParticles: limits.MaxParticles,
		maxTexts:     limits.MaxTexts,
	}
}

// Burst scatters particles from a molecule's center in its atoms' colours.
func (fx *Effects) Burst(m Molecule, rng *rand.Rand) {
	colors := make([]string, 0, len(m.Atoms))
	for _, e := range Elements() {
		if m.Composition[e] > 0 {
			colors = append(colors, e.Def().Color)
		}
	}
	if len(colors) == 0 {
		return
	}

	n := burstPerAtom * len(m.Atoms)
	for i := 0; i < n && len(fx.particles) < fx.maxParticles; i++ {
		angle := rng.Float64() * 2 * math.Pi
		speed := burstBaseSpeed * (0.5 + rng.Float64())
		fx.particles = append(fx.particles, Particle{
			X:     m.Center.X,
			Y:     m.Center.Y,
			VX:    math.Cos(angle) * speed,
			VY:    math.Sin(angle) * speed,
			Color: colors[rng.Intn(len(colors))],
			Life:  particleLife,
		})
	}
}

// AddText adds a floating text, dropping the oldest when full.
func (fx *Effects) AddText(x, y float64, text, color string) {
	if fx.maxTexts <= 0 {
		return
	}
	if len(fx.texts) >= fx.maxTexts {
		copy(fx.texts, fx.texts[1:])
		fx.texts = fx.texts[:len(fx.texts)-1]
	}
	fx.texts = append(fx.texts, FloatingText{X: x, Y: y, Text: text, Color: color, Life: textLife})
}

// Update ages all effects by one tick, filtering expired ones in place.
func (fx *Effects) Update() {
	alive := fx.particles[:0]
	for _, p := range fx.particles {
		p.Life--
		if p.Life <= 0 {
			continue
		}
		p.X += p.VX
		p.Y += p.VY
		p.VX *= particleDrag
		p.VY *= particleDrag
		alive = append(alive, p)
	}
	fx.particles = alive

	texts := fx.texts[:0]
	for _, t := range fx.texts {
		t.Life--
		if t.Life <= 0 {
			continue
		}
		t.Y -= textRiseSpeed
		texts = append(texts, t)
	}
	fx.texts = texts
}

// Clear drops every effect.
func (fx *Effects) Clear() {
	fx.particles = fx.particles[:0]
	fx.texts = fx.texts[:0]
}

// Counts returns the live particle and text counts.
func (fx *Effects) Counts() (particles, texts int) {
	return len(fx.particles), len(fx.texts)
}

package game

import (
	"fmt"
	"math"
	"math/rand"

	"bond-arena/internal/config"
)

// pairKey is an unordered atom pair.
type pairKey struct {
	lo, hi AtomID
}

func makePair(a, b AtomID) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// InteractionSession remembers which pairs were bonded during the current
// drag gesture. A pair bonded once in a gesture is not a candidate again
// until the next pointer press, so holding two atoms together produces one
// bond, not one per tick.
type InteractionSession struct {
	bonded map[pairKey]struct{}
}

func newInteractionSession() InteractionSession {
	return InteractionSession{bonded: make(map[pairKey]struct{})}
}

// Begin starts a new gesture.
func (s *InteractionSession) Begin() { clear(s.bonded) }

// Has reports whether a and b were bonded during this gesture.
func (s *InteractionSession) Has(a, b AtomID) bool {
	_, ok := s.bonded[makePair(a, b)]
	return ok
}

// Add records a bond between a and b for this gesture.
func (s *InteractionSession) Add(a, b AtomID) { s.bonded[makePair(a, b)] = struct{}{} }

// Len returns the number of pairs bonded this gesture.
func (s *InteractionSession) Len() int { return len(s.bonded) }

// BondCandidate returns the nearest atom the dragged atom may bond with this
// tick: spare capacity on both sides, pair not yet bonded in this gesture,
// center distance below the bond distance. It returns nil when there is none.
func BondCandidate(s *Store, session *InteractionSession, dragged *Atom, cfg config.BondingConfig, scratch []*Atom) *Atom {
	if dragged == nil || dragged.Saturated() {
		return nil
	}

	var best *Atom
	bestDist := cfg.BondDistance
	for _, other := range s.Atoms(scratch[:0]) {
		if other.ID == dragged.ID || other.Saturated() {
			continue
		}
		if session.Has(dragged.ID, other.ID) {
			continue
		}
		if d := dragged.DistanceTo(other); d < bestDist {
			best, bestDist = other, d
		}
	}
	return best
}

// Rejection describes a release next to an atom the dragged atom could not
// bond with.
type Rejection struct {
	Released AtomID
	Neighbor AtomID
	Reason   string
}

// CheckRelease runs when the pointer lets go of an atom. The nearest other
// atom within the reject distance is examined:
//   - no bond of any multiplicity with it: the release is rejected, both
//     atoms are pushed apart and a Rejection describing why is returned;
//   - bonded: the released atom gets a small random nudge and nil is returned.
//
// With no atom in range nothing happens.
func CheckRelease(s *Store, released *Atom, cfg config.BondingConfig, rng *rand.Rand, scratch []*Atom) *Rejection {
	if released == nil {
		return nil
	}

	var nearest *Atom
	nearestDist := cfg.RejectDistance
	for _, other := range s.Atoms(scratch[:0]) {
		if other.ID == released.ID {
			continue
		}
		if d := released.DistanceTo(other); d < nearestDist {
			nearest, nearestDist = other, d
		}
	}
	if nearest == nil {
		return nil
	}

	if released.BondedTo(nearest.ID) > 0 {
		angle := rng.Float64() * 2 * math.Pi
		speed := rng.Float64() * cfg.ReleaseNudge
		released.VX += math.Cos(angle) * speed
		released.VY += math.Sin(angle) * speed
		return nil
	}

	dx, dy, d := separation(released, nearest)
	ux, uy := dx/d, dy/d
	released.VX -= ux * cfg.RejectImpulse
	released.VY -= uy * cfg.RejectImpulse
	nearest.VX += ux * cfg.RejectImpulse
	nearest.VY += uy * cfg.RejectImpulse

	return &Rejection{
		Released: released.ID,
		Neighbor: nearest.ID,
		Reason:   rejectionReason(released, nearest),
	}
}

// rejectionReason names the side that is at capacity, or "blocked" when
// both had room but the gesture never brought them within bonding range.
func rejectionReason(released, neighbor *Atom) string {
	switch {
	case released.Saturated() && neighbor.Saturated():
		return fmt.Sprintf("%s and %s are both full", released.Type, neighbor.Type)
	case released.Saturated():
		return fmt.Sprintf("%s is full (%d/%d)", released.Type, released.CurrentBonds, released.Valency())
	case neighbor.Saturated():
		return fmt.Sprintf("%s is full (%d/%d)", neighbor.Type, neighbor.CurrentBonds, neighbor.Valency())
	default:
		return "blocked"
	}
}

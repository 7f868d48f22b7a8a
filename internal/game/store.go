package game

import (
	"errors"
	"fmt"
	"math"
)

// Store refusals. Callers pre-check capacity, so these indicate a caller bug
// or a stale handle rather than a gameplay event.
var (
	ErrCapacityExceeded = errors.New("bond capacity exceeded")
	ErrSelfBond         = errors.New("atom cannot bond to itself")
	ErrAtomNotFound     = errors.New("atom not found")
	ErrBondNotFound     = errors.New("bond not found")
)

// Vec2 is a 2D point or velocity.
type Vec2 struct {
	X, Y float64
}

// Atom is a mobile entity in the arena.
type Atom struct {
	ID           AtomID
	Type         Element
	X, Y         float64
	VX, VY       float64
	CurrentBonds int
	Dragged      bool
	Scale        float64 // Presentation only, grows from 0 to 1 after spawning

	// bonded maps each neighbour to the number of bonds shared with it.
	bonded map[AtomID]int
}

// Valency returns the atom's bond capacity.
func (a *Atom) Valency() int { return a.Type.Valency() }

// Radius returns the atom's collision radius.
func (a *Atom) Radius() float64 { return a.Type.Radius() }

// Saturated reports whether the atom has no spare capacity.
func (a *Atom) Saturated() bool { return a.CurrentBonds >= a.Type.Valency() }

// BondedTo returns the number of bonds shared with other.
func (a *Atom) BondedTo(other AtomID) int { return a.bonded[other] }

// Neighbors appends the ids of bonded neighbours to dst.
func (a *Atom) Neighbors(dst []AtomID) []AtomID {
	for id := range a.bonded {
		dst = append(dst, id)
	}
	return dst
}

// DistanceTo returns the center distance to other.
func (a *Atom) DistanceTo(other *Atom) float64 {
	return math.Hypot(other.X-a.X, other.Y-a.Y)
}

// Bond links two distinct atoms. Several bonds may link the same pair.
type Bond struct {
	ID BondID
	A  AtomID
	B  AtomID
}

// Store owns all atoms and bonds. Every mutator keeps the bond bookkeeping
// consistent: CurrentBonds matches the bonds referencing an atom and never
// exceeds its valency, and bonds only reference live atoms.
//
// Store is not safe for concurrent use; the engine serializes access.
type Store struct {
	atomPool handlePool
	atoms    []*Atom // indexed by handle index, nil when free
	bondPool handlePool
	bonds    []*Bond

	atomCount int
	bondCount int
}

// NewStore creates an empty store sized for capacity atoms.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{
		atomPool: newHandlePool(capacity),
		atoms:    make([]*Atom, 0, capacity),
		bondPool: newHandlePool(capacity * 2),
		bonds:    make([]*Bond, 0, capacity*2),
	}
}

// AddAtom creates an atom at pos moving with vel.
func (s *Store) AddAtom(t Element, pos, vel Vec2) AtomID {
	h := s.atomPool.alloc()
	a := &Atom{
		ID:     AtomID(h),
		Type:   t,
		X:      pos.X,
		Y:      pos.Y,
		VX:     vel.X,
		VY:     vel.Y,
		bonded: make(map[AtomID]int, t.Valency()),
	}
	idx := int(h.index())
	if idx == len(s.atoms) {
		s.atoms = append(s.atoms, a)
	} else {
		s.atoms[idx] = a
	}
	s.atomCount++
	return a.ID
}

// Atom returns the atom for id, or nil if it no longer exists.
func (s *Store) Atom(id AtomID) *Atom {
	h := handle(id)
	if !s.atomPool.alive(h) {
		return nil
	}
	return s.atoms[h.index()]
}

// Bond returns the bond for id, or nil if it no longer exists.
func (s *Store) Bond(id BondID) *Bond {
	h := handle(id)
	if !s.bondPool.alive(h) {
		return nil
	}
	return s.bonds[h.index()]
}

// AtomCount returns the number of live atoms.
func (s *Store) AtomCount() int { return s.atomCount }

// BondCount returns the number of live bonds.
func (s *Store) BondCount() int { return s.bondCount }

// Atoms appends live atoms to dst in slot order.
// The pointers stay valid until the atom is removed.
func (s *Store) Atoms(dst []*Atom) []*Atom {
	for _, a := range s.atoms {
		if a != nil {
			dst = append(dst, a)
		}
	}
	return dst
}

// Bonds appends live bonds to dst in slot order.
func (s *Store) Bonds(dst []*Bond) []*Bond {
	for _, b := range s.bonds {
		if b != nil {
			dst = append(dst, b)
		}
	}
	return dst
}

// AddBond links a and b. The store is left untouched on error.
func (s *Store) AddBond(a, b AtomID) (BondID, error) {
	if a == b {
		return 0, ErrSelfBond
	}
	atomA := s.Atom(a)
	if atomA == nil {
		return 0, fmt.Errorf("%w: %d", ErrAtomNotFound, a)
	}
	atomB := s.Atom(b)
	if atomB == nil {
		return 0, fmt.Errorf("%w: %d", ErrAtomNotFound, b)
	}
	for _, atom := range [2]*Atom{atomA, atomB} {
		if atom.Saturated() {
			return 0, fmt.Errorf("%w: %s %d/%d", ErrCapacityExceeded,
				atom.Type, atom.CurrentBonds, atom.Valency())
		}
	}

	h := s.bondPool.alloc()
	bond := &Bond{ID: BondID(h), A: a, B: b}
	idx := int(h.index())
	if idx == len(s.bonds) {
		s.bonds = append(s.bonds, bond)
	} else {
		s.bonds[idx] = bond
	}
	s.bondCount++

	atomA.CurrentBonds++
	atomB.CurrentBonds++
	atomA.bonded[b]++
	atomB.bonded[a]++
	return bond.ID, nil
}

// RemoveBond deletes a bond and reports whether it existed. Endpoint counts
// are decremented and floored at zero.
func (s *Store) RemoveBond(id BondID) bool {
	bond := s.Bond(id)
	if bond == nil {
		return false
	}
	s.detachBond(bond)
	return true
}

func (s *Store) detachBond(bond *Bond) {
	if a := s.Atom(bond.A); a != nil {
		a.unlink(bond.B)
	}
	if b := s.Atom(bond.B); b != nil {
		b.unlink(bond.A)
	}
	h := handle(bond.ID)
	s.bonds[h.index()] = nil
	s.bondPool.release(h)
	s.bondCount--
}

func (a *Atom) unlink(other AtomID) {
	if a.CurrentBonds > 0 {
		a.CurrentBonds--
	}
	if n := a.bonded[other]; n > 1 {
		a.bonded[other] = n - 1
	} else {
		delete(a.bonded, other)
	}
}

// RemoveAtoms deletes the given atoms together with every bond touching them.
// Unknown ids are ignored. It returns the number of atoms and bonds removed.
func (s *Store) RemoveAtoms(ids []AtomID) (atoms, bonds int) {
	doomed := make(map[AtomID]struct{}, len(ids))
	for _, id := range ids {
		if s.Atom(id) != nil {
			doomed[id] = struct{}{}
		}
	}
	if len(doomed) == 0 {
		return 0, 0
	}

	for _, bond := range s.bonds {
		if bond == nil {
			continue
		}
		_, hitA := doomed[bond.A]
		_, hitB := doomed[bond.B]
		if hitA || hitB {
			s.detachBond(bond)
			bonds++
		}
	}

	for id := range doomed {
		h := handle(id)
		s.atoms[h.index()] = nil
		s.atomPool.release(h)
		s.atomCount--
		atoms++
	}
	return atoms, bonds
}

// Clear removes everything. Ids issued before the clear stay stale.
func (s *Store) Clear() {
	for i := range s.atoms {
		s.atoms[i] = nil
	}
	for i := range s.bonds {
		s.bonds[i] = nil
	}
	s.atomPool.reset()
	s.bondPool.reset()
	s.atomCount = 0
	s.bondCount = 0
}

// Validate checks the bond bookkeeping and returns every violation found.
func (s *Store) Validate() error {
	var errs []error

	counts := make(map[AtomID]int, s.atomCount)
	pairs := make(map[AtomID]map[AtomID]int, s.atomCount)
	liveBonds := 0
	for _, bond := range s.bonds {
		if bond == nil {
			continue
		}
		liveBonds++
		if bond.A == bond.B {
			errs = append(errs, fmt.Errorf("bond %d links atom %d to itself", bond.ID, bond.A))
		}
		if s.Atom(bond.A) == nil || s.Atom(bond.B) == nil {
			errs = append(errs, fmt.Errorf("bond %d references a missing atom", bond.ID))
			continue
		}
		counts[bond.A]++
		counts[bond.B]++
		for _, end := range [2][2]AtomID{{bond.A, bond.B}, {bond.B, bond.A}} {
			if pairs[end[0]] == nil {
				pairs[end[0]] = make(map[AtomID]int)
			}
			pairs[end[0]][end[1]]++
		}
	}
	if liveBonds != s.bondCount {
		errs = append(errs, fmt.Errorf("bond count %d, found %d live bonds", s.bondCount, liveBonds))
	}

	liveAtoms := 0
	for _, a := range s.atoms {
		if a == nil {
			continue
		}
		liveAtoms++
		if a.CurrentBonds != counts[a.ID] {
			errs = append(errs, fmt.Errorf("atom %d (%s) has currentBonds %d but %d bonds",
				a.ID, a.Type, a.CurrentBonds, counts[a.ID]))
		}
		if a.CurrentBonds < 0 || a.CurrentBonds > a.Valency() {
			errs = append(errs, fmt.Errorf("atom %d (%s) has %d bonds, valency %d",
				a.ID, a.Type, a.CurrentBonds, a.Valency()))
		}
		want := pairs[a.ID]
		if len(want) != len(a.bonded) {
			errs = append(errs, fmt.Errorf("atom %d bonded set has %d neighbours, want %d",
				a.ID, len(a.bonded), len(want)))
			continue
		}
		for other, n := range want {
			if a.bonded[other] != n {
				errs = append(errs, fmt.Errorf("atom %d multiplicity with %d is %d, want %d",
					a.ID, other, a.bonded[other], n))
			}
		}
	}
	if liveAtoms != s.atomCount {
		errs = append(errs, fmt.Errorf("atom count %d, found %d live atoms", s.atomCount, liveAtoms))
	}

	return errors.Join(errs...)
}

package game

import "sort"

// Molecule is a connected group of atoms in which every member is saturated.
type Molecule struct {
	Atoms       []AtomID    `json:"atoms"`
	Composition Composition `json:"composition"`
	Formula     string      `json:"formula"`
	Points      int         `json:"points"`
	Center      Vec2        `json:"center"`
}

// Size returns the number of atoms in the molecule.
func (m Molecule) Size() int { return len(m.Atoms) }

// FindStable walks every connected component of bonded atoms and returns
// those with at least two members, all saturated. The store is not modified;
// callers remove the atoms once the whole scan is done.
//
// Components are reported in the slot order of their first atom, and atom ids
// within a component are sorted, so the result is deterministic.
func FindStable(s *Store, pointsPerAtom int) []Molecule {
	var found []Molecule
	visited := make(map[AtomID]bool, s.AtomCount())
	var queue, component, neighbors []AtomID

	for _, start := range s.Atoms(nil) {
		if visited[start.ID] || start.CurrentBonds == 0 {
			continue
		}

		queue = append(queue[:0], start.ID)
		component = component[:0]
		visited[start.ID] = true
		stable := true

		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			a := s.Atom(id)
			if a == nil {
				continue
			}
			component = append(component, id)
			if !a.Saturated() {
				stable = false
			}
			neighbors = a.Neighbors(neighbors[:0])
			for _, neighbor := range neighbors {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}

		if !stable || len(component) < 2 {
			continue
		}
		found = append(found, newMolecule(s, component, pointsPerAtom))
	}
	return found
}

func newMolecule(s *Store, ids []AtomID, pointsPerAtom int) Molecule {
	atoms := append([]AtomID(nil), ids...)
	sort.Slice(atoms, func(i, j int) bool { return atoms[i] < atoms[j] })

	comp := make(Composition)
	var cx, cy float64
	for _, id := range atoms {
		a := s.Atom(id)
		comp[a.Type]++
		cx += a.X
		cy += a.Y
	}
	n := float64(len(atoms))

	return Molecule{
		Atoms:       atoms,
		Composition: comp,
		Formula:     comp.Formula(),
		Points:      len(atoms) * pointsPerAtom,
		Center:      Vec2{X: cx / n, Y: cy / n},
	}
}

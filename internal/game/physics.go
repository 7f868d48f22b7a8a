package game

import (
	"math"

	"bond-arena/internal/config"
	"bond-arena/internal/game/spatial"
)

// scaleGrowth is the per-tick fraction by which a new atom's scale
// approaches 1.
const scaleGrowth = 0.15

// Integrator advances atom motion by one tick.
//
// Per atom: a dragged atom follows the pointer; any other atom reflects off
// the arena edges and loses speed to friction. Positions then advance by
// velocity. Finally pair forces change velocities: bonded pairs pull toward
// the rest distance with a mass-scaled spring, unbonded pairs closer than
// their radii plus a margin push apart. Dragged atoms receive no pair forces.
//
// Pair forces only read positions, so the result does not depend on the order
// pairs are visited. The grid broad phase therefore matches the O(n²) scan.
type Integrator struct {
	physics config.PhysicsConfig
	arena   config.ArenaConfig
	grid    *spatial.SpatialGrid

	list   []*Atom
	bonds  []*Bond
	sprung map[pairKey]struct{}
}

// NewIntegrator creates an integrator. capacity sizes internal buffers.
func NewIntegrator(physics config.PhysicsConfig, arena config.ArenaConfig, capacity int) *Integrator {
	return &Integrator{
		physics: physics,
		arena:   arena,
		grid:    spatial.NewSpatialGrid(arena.Width, arena.Height, physics.GridCellSize, capacity),
		list:    make([]*Atom, 0, capacity),
		bonds:   make([]*Bond, 0, capacity*2),
		sprung:  make(map[pairKey]struct{}, capacity*2),
	}
}

// Step integrates one tick. pointer is only read for dragged atoms.
func (in *Integrator) Step(s *Store, pointer Vec2) {
	in.list = s.Atoms(in.list[:0])

	for _, a := range in.list {
		if a.Dragged {
			a.VX = (pointer.X - a.X) * in.physics.DragFollow
			a.VY = (pointer.Y - a.Y) * in.physics.DragFollow
		} else if !in.reflect(a) {
			a.VX *= in.physics.Friction
			a.VY *= in.physics.Friction
		}
		a.X += a.VX
		a.Y += a.VY
		if a.Scale < 1 {
			a.Scale += (1 - a.Scale) * scaleGrowth
			if a.Scale > 0.999 {
				a.Scale = 1
			}
		}
	}

	in.applySprings(s)
	in.applyRepulsion()
}

// reflect clamps an atom inside the arena and flips the velocity component
// pointing out of it. An atom beyond an edge that is already heading inward
// on that axis is left alone so edge spawns can drift in; reflect reports
// whether the atom is still entering, and entering atoms keep their speed.
func (in *Integrator) reflect(a *Atom) bool {
	r := a.Radius()
	w, h := in.arena.Width, in.arena.Height
	entering := false

	switch {
	case a.X < r && a.VX > 0, a.X > w-r && a.VX < 0:
		entering = true
	case a.X < r:
		a.X = r
		a.VX = math.Abs(a.VX)
	case a.X > w-r:
		a.X = w - r
		a.VX = -math.Abs(a.VX)
	}
	switch {
	case a.Y < r && a.VY > 0, a.Y > h-r && a.VY < 0:
		entering = true
	case a.Y < r:
		a.Y = r
		a.VY = math.Abs(a.VY)
	case a.Y > h-r:
		a.Y = h - r
		a.VY = -math.Abs(a.VY)
	}
	return entering
}

// applySprings pulls every bonded pair toward the rest distance. A pair
// with several bonds gets one spring.
func (in *Integrator) applySprings(s *Store) {
	clear(in.sprung)
	in.bonds = s.Bonds(in.bonds[:0])

	for _, b := range in.bonds {
		key := makePair(b.A, b.B)
		if _, done := in.sprung[key]; done {
			continue
		}
		in.sprung[key] = struct{}{}

		a, c := s.Atom(b.A), s.Atom(b.B)
		if a == nil || c == nil {
			continue
		}
		dx, dy, d := separation(a, c)
		f := in.physics.SpringK * (d - in.physics.RestDistance)
		fx, fy := dx/d*f, dy/d*f

		if !a.Dragged {
			m := a.Type.Mass()
			a.VX += fx / m
			a.VY += fy / m
		}
		if !c.Dragged {
			m := c.Type.Mass()
			c.VX -= fx / m
			c.VY -= fy / m
		}
	}
}

// applyRepulsion pushes apart unbonded atoms that overlap their margin.
func (in *Integrator) applyRepulsion() {
	in.grid.Clear()
	for i, a := range in.list {
		in.grid.Insert(uint32(i), a.X, a.Y)
	}

	margin := in.physics.RepulsionMargin
	for i, a := range in.list {
		reach := a.Radius() + maxElementRadius + margin
		for _, cand := range in.grid.QueryRadius(a.X, a.Y, reach) {
			j := int(cand)
			if j <= i {
				continue
			}
			c := in.list[j]
			if a.Dragged && c.Dragged {
				continue
			}
			if a.bonded[c.ID] > 0 {
				continue
			}

			dx, dy, d := separation(a, c)
			limit := a.Radius() + c.Radius() + margin
			if d >= limit {
				continue
			}
			push := (limit - d) * in.physics.Repulsion
			px, py := dx/d*push, dy/d*push
			if !a.Dragged {
				a.VX -= px
				a.VY -= py
			}
			if !c.Dragged {
				c.VX += px
				c.VY += py
			}
		}
	}
}

// separation returns the vector from a to b and its length. Coincident
// atoms get an arbitrary unit direction so forces stay finite.
func separation(a, b *Atom) (dx, dy, d float64) {
	dx = b.X - a.X
	dy = b.Y - a.Y
	d = math.Hypot(dx, dy)
	if d < 1e-9 {
		return 1e-9, 0, 1e-9
	}
	return dx, dy, d
}

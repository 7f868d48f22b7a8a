// Package spatial provides the broad phase index and the lock-free queue
// used around the simulation loop.
//
// The grid stores integer indices (not pointers) into a caller-owned slice,
// rebuilt every tick.
package spatial

import (
	"math"
)

// SpatialGrid buckets points into fixed-size cells so neighbour queries only
// visit nearby cells. Points outside the world bounds are clamped into the
// border cells, so atoms that drift past an edge are still found.
//
// Cell size should be at least the largest query radius divided by two;
// queries cover every cell overlapping the query square.
//
// Memory layout: cells are stored in row-major order (cells[row*cols+col])
type SpatialGrid struct {
	cellSize    float64
	invCellSize float64
	cols, rows  int
	cells       [][]uint32
	scratch     []uint32
}

// NewSpatialGrid creates a grid covering worldWidth x worldHeight.
// expected is the expected number of entries, used to preallocate cells.
func NewSpatialGrid(worldWidth, worldHeight, cellSize float64, expected int) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = math.Max(worldWidth, worldHeight)
	}
	cols := max(int(math.Ceil(worldWidth/cellSize)), 1)
	rows := max(int(math.Ceil(worldHeight/cellSize)), 1)

	cells := make([][]uint32, cols*rows)
	perCell := max(expected/len(cells), 4)
	for i := range cells {
		cells[i] = make([]uint32, 0, perCell)
	}

	return &SpatialGrid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cols:        cols,
		rows:        rows,
		cells:       cells,
		scratch:     make([]uint32, 0, 64),
	}
}

// Clear empties every cell, keeping capacity.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func (g *SpatialGrid) col(x float64) int {
	return clamp(int(math.Floor(x*g.invCellSize)), 0, g.cols-1)
}

func (g *SpatialGrid) row(y float64) int {
	return clamp(int(math.Floor(y*g.invCellSize)), 0, g.rows-1)
}

// Insert adds entry id at (x, y).
func (g *SpatialGrid) Insert(id uint32, x, y float64) {
	idx := g.row(y)*g.cols + g.col(x)
	g.cells[idx] = append(g.cells[idx], id)
}

// QueryRadius returns every id whose cell overlaps the square of half-size
// radius around (cx, cy). Candidates may lie outside the radius; callers do
// the exact distance check.
//
// The returned slice is reused by the next call.
func (g *SpatialGrid) QueryRadius(cx, cy, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	minCol, maxCol := g.col(cx-radius), g.col(cx+radius)
	minRow, maxRow := g.row(cy-radius), g.row(cy+radius)

	for row := minRow; row <= maxRow; row++ {
		base := row * g.cols
		for col := minCol; col <= maxCol; col++ {
			g.scratch = append(g.scratch, g.cells[base+col]...)
		}
	}
	return g.scratch
}

// Stats returns occupancy figures for the debug endpoint.
func (g *SpatialGrid) Stats() GridStats {
	var total, maxInCell, nonEmpty int
	for _, cell := range g.cells {
		n := len(cell)
		total += n
		maxInCell = max(maxInCell, n)
		if n > 0 {
			nonEmpty++
		}
	}

	avg := 0.0
	if nonEmpty > 0 {
		avg = float64(total) / float64(nonEmpty)
	}
	return GridStats{
		TotalCells:     len(g.cells),
		NonEmptyCells:  nonEmpty,
		TotalEntries:   total,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avg,
	}
}

// GridStats describes grid occupancy.
type GridStats struct {
	TotalCells     int     `json:"totalCells"`
	NonEmptyCells  int     `json:"nonEmptyCells"`
	TotalEntries   int     `json:"totalEntries"`
	MaxInCell      int     `json:"maxInCell"`
	AvgPerNonEmpty float64 `json:"avgPerNonEmpty"`
}

// Dimensions returns the grid dimensions.
func (g *SpatialGrid) Dimensions() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

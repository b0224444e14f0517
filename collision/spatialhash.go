// Package collision detects and resolves the self collisions of a triangle
// mesh.
//
// Every step runs, in order:
//  1. Build: the triangles are hashed in a uniform grid, using their bounds
//     inflated by the collision thickness
//  2. Query: each particle collects the closest triangles within thickness,
//     ignoring the triangles of its N-ring neighborhood
//  3. Classify: edges crossing triangles are detected, and the tangled regions
//     get flagged with a GIA color
//  4. Resolve: each contact becomes a collision spring solved with the other
//     rule constraints
//  5. Contour minimization: once after the iterations, each intersection still
//     present is pushed apart
package collision

import (
	"math"
	"slices"

	"github.com/akmonengine/silk/actor"
	"github.com/akmonengine/silk/pipeline"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxCellsPerAxis is the number of cells an inflated triangle may span along
// each axis before the cell size is increased.
const MaxCellsPerAxis = 4

// CellKey - Coordinates of a cell in the 3D grid
type CellKey struct {
	X, Y, Z int
}

// Cell - Triangles overlapping a cell, in ascending order
type Cell struct {
	triangleIndices []int
}

// SpatialHash - Uniform grid hashed into a fixed number of cells
type SpatialHash struct {
	cellSize float64
	cells    []Cell
	cellMask int

	bounds []actor.AABB // Inflated bounds of each triangle
	keys   [][]int      // Cells overlapped by each triangle
}

// NewSpatialHash - Creates a grid of cellSize cells, numCells is rounded up to
// a power of two
func NewSpatialHash(cellSize float64, numCells int) *SpatialHash {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].triangleIndices = make([]int, 0, 8)
	}

	return &SpatialHash{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

// nextPowerOfTwo - Rounds up to the next power of two
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

func (h *SpatialHash) CellSize() float64 {
	return h.cellSize
}

// SetCellSize changes the size of the cells used by the next Build.
func (h *SpatialHash) SetCellSize(cellSize float64) {
	h.cellSize = cellSize
}

// Build hashes the triangles. Bounds and cell keys are computed in parallel,
// then the triangles are inserted in ascending order so every cell stays
// sorted.
func (h *SpatialHash) Build(positions []mgl64.Vec3, triangles [][3]int, thickness float64, workers int) {
	h.Clear()
	if cap(h.bounds) < len(triangles) {
		h.bounds = make([]actor.AABB, len(triangles))
		h.keys = make([][]int, len(triangles))
	}
	h.bounds = h.bounds[:len(triangles)]
	h.keys = h.keys[:len(triangles)]

	pipeline.For(workers, len(triangles), func(t int) {
		triangle := triangles[t]
		bounds := actor.NewAABBFromPoints(positions[triangle[0]], positions[triangle[1]], positions[triangle[2]]).Thicken(thickness)
		h.bounds[t] = bounds

		keys := h.keys[t][:0]
		minCell := h.worldToCell(bounds.Min)
		maxCell := h.worldToCell(bounds.Max)
		for x := minCell.X; x <= maxCell.X; x++ {
			for y := minCell.Y; y <= maxCell.Y; y++ {
				for z := minCell.Z; z <= maxCell.Z; z++ {
					keys = append(keys, h.hashCell(CellKey{x, y, z}))
				}
			}
		}
		// Distinct cells can share a hash
		slices.Sort(keys)
		h.keys[t] = slices.Compact(keys)
	})

	for t, keys := range h.keys {
		for _, cellIdx := range keys {
			h.cells[cellIdx].triangleIndices = append(h.cells[cellIdx].triangleIndices, t)
		}
	}
}

func (h *SpatialHash) Clear() {
	for i := range h.cells {
		h.cells[i].triangleIndices = h.cells[i].triangleIndices[:0]
	}
}

// Bounds returns the inflated bounds of a triangle at the last Build.
func (h *SpatialHash) Bounds(triangle int) actor.AABB {
	return h.bounds[triangle]
}

// QueryPoint appends to dst the triangles whose inflated bounds contain the
// point, in ascending order.
func (h *SpatialHash) QueryPoint(dst []int, point mgl64.Vec3) []int {
	for _, t := range h.cells[h.hashCell(h.worldToCell(point))].triangleIndices {
		if h.bounds[t].ContainsPoint(point) {
			dst = append(dst, t)
		}
	}
	return dst
}

// QueryBounds appends to dst the triangles whose inflated bounds overlap the
// box, each once, in ascending order.
func (h *SpatialHash) QueryBounds(dst []int, bounds actor.AABB) []int {
	start := len(dst)
	minCell := h.worldToCell(bounds.Min)
	maxCell := h.worldToCell(bounds.Max)
	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				for _, t := range h.cells[h.hashCell(CellKey{x, y, z})].triangleIndices {
					if h.bounds[t].Overlaps(bounds) {
						dst = append(dst, t)
					}
				}
			}
		}
	}
	return sortUnique(dst, start)
}

// sortUnique sorts dst[start:] and removes its duplicates.
func sortUnique(dst []int, start int) []int {
	found := dst[start:]
	slices.Sort(found)
	return dst[:start+len(slices.Compact(found))]
}

// worldToCell - Converts a world position into cell coordinates
func (h *SpatialHash) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / h.cellSize)),
		Y: int(math.Floor(pos.Y() / h.cellSize)),
		Z: int(math.Floor(pos.Z() / h.cellSize)),
	}
}

// hashCell - Hashes a cell into an index of the array
func (h *SpatialHash) hashCell(key CellKey) int {
	hash := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return hash & h.cellMask
}

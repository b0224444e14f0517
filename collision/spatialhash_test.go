package collision

import (
	"math"
	"testing"

	"github.com/akmonengine/silk/actor"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestWorldToCell(t *testing.T) {
	hash := NewSpatialHash(1.0, 16)

	tests := []struct {
		name     string
		position mgl64.Vec3
		expected CellKey
	}{
		{"origin", mgl64.Vec3{0, 0, 0}, CellKey{0, 0, 0}},
		{"positive", mgl64.Vec3{1.5, 2.3, 3.7}, CellKey{1, 2, 3}},
		{"negative", mgl64.Vec3{-1.5, -2.3, -3.7}, CellKey{-2, -3, -4}},
		{"fractional", mgl64.Vec3{0.5, 0.5, 0.5}, CellKey{0, 0, 0}},
		{"large", mgl64.Vec3{100.7, -200.3, 50.1}, CellKey{100, -201, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, hash.worldToCell(tt.position))
		})
	}
}

func TestHashCell(t *testing.T) {
	hash := NewSpatialHash(1.0, 16)

	tests := []struct {
		name     string
		key      CellKey
		expected int
	}{
		{"origin", CellKey{0, 0, 0}, 0},
		{"simple", CellKey{1, 2, 3}, 6},
		{"negative", CellKey{-1, -2, -3}, 10},
		{"large", CellKey{100, 200, 300}, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := hash.hashCell(tt.key)
			assert.GreaterOrEqual(t, result, 0)
			assert.Less(t, result, len(hash.cells))
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	for n, expected := range map[int]int{-3: 1, 0: 1, 1: 1, 3: 4, 16: 16, 17: 32} {
		assert.Equal(t, expected, nextPowerOfTwo(n), "n = %d", n)
	}
}

func TestSpatialHashQueries(t *testing.T) {
	positions := []mgl64.Vec3{
		{0, 0, 0}, {1, 0, 0}, {0, 0, 1},
		{5, 5, 5}, {6, 5, 5}, {5, 5, 6},
		{0.2, 0, 0.2}, {3, 0, 0.2}, {0.2, 0, 3},
	}
	triangles := [][3]int{{0, 1, 2}, {3, 4, 5}, {6, 7, 8}}

	hash := NewSpatialHash(1.0, 8)
	hash.Build(positions, triangles, 0.1, 1)

	assert.Equal(t, []int{0, 2}, hash.QueryPoint(nil, mgl64.Vec3{0.3, 0.05, 0.3}))
	assert.Equal(t, []int{1}, hash.QueryPoint(nil, mgl64.Vec3{5.5, 5.05, 5.5}))
	assert.Empty(t, hash.QueryPoint(nil, mgl64.Vec3{0.3, 0.5, 0.3}), "outside the thickness")

	bounds := actor.NewAABBFromPoints(mgl64.Vec3{-1, -1, -1}, mgl64.Vec3{2, 1, 2})
	assert.Equal(t, []int{0, 2}, hash.QueryBounds(nil, bounds), "each triangle once")
	assert.Equal(t, []int{7, 0, 2}, hash.QueryBounds([]int{7}, bounds), "appends to dst")

	// A rebuild forgets the previous triangles
	hash.Build(positions, triangles[1:2], 0.1, 1)
	assert.Equal(t, []int{0}, hash.QueryPoint(nil, mgl64.Vec3{5.5, 5.05, 5.5}))
	assert.Empty(t, hash.QueryPoint(nil, mgl64.Vec3{0.3, 0.05, 0.3}))
}

func TestSpatialHash_SharedHashes(t *testing.T) {
	// A single hashed cell: every grid cell shares it
	positions := []mgl64.Vec3{{0, 0, 0}, {3, 0, 0}, {0, 0, 3}}
	hash := NewSpatialHash(1.0, 1)
	hash.Build(positions, [][3]int{{0, 1, 2}}, 0.1, 1)

	assert.Equal(t, []int{0}, hash.keys[0])
	assert.Equal(t, []int{0}, hash.cells[0].triangleIndices, "listed once")
	assert.Equal(t, []int{0}, hash.QueryBounds(nil, actor.NewAABBFromPoints(mgl64.Vec3{-1, -1, -1}, mgl64.Vec3{4, 1, 4})))
}

func TestCellSize(t *testing.T) {
	tests := []struct {
		name      string
		positions []mgl64.Vec3
		edges     [][2]int
		expected  float64
	}{
		{"mean edge length", []mgl64.Vec3{{0, 0, 0}, {0.1, 0, 0}, {0, 0, 0.1}}, [][2]int{{0, 1}, {0, 2}, {1, 2}}, (0.2 + 0.1*math.Sqrt2) / 3},
		{"long triangle among short edges", []mgl64.Vec3{{0, 0, 0}, {10, 0, 0}, {0, 0, 0.01}}, [][2]int{{0, 2}}, (10 + 0.02) / MaxCellsPerAxis},
		{"degenerate", []mgl64.Vec3{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}, [][2]int{{0, 1}}, 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, cellSize(tt.positions, tt.edges, [][3]int{{0, 1, 2}}, 0.01), 1e-12)
		})
	}
	assert.Equal(t, 1.0, cellSize([]mgl64.Vec3{{0, 0, 0}}, nil, nil, 0))
}

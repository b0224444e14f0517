package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8, cfg.Solver.Iterations)
	assert.Equal(t, Uniform(1), cfg.Cloth.EdgeStiffness)
	assert.Equal(t, Uniform(1000), cfg.Cloth.XPBDEdgeStiffness, "in N/m")
	assert.False(t, cfg.Cloth.UseSelfCollisions)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "cloth.toml",
			content: `
[solver]
iterations = 4
gravity = [0.0, -10.0, 0.0]

[cloth]
use_xpbd_edge_springs = true
xpbd_edge_stiffness = { low = 100.0, high = 1000.0 }
use_self_collisions = true
`,
		},
		{
			name: "yaml",
			file: "cloth.yaml",
			content: `
solver:
  iterations: 4
  gravity: [0, -10, 0]
cloth:
  use_xpbd_edge_springs: true
  xpbd_edge_stiffness: {low: 100, high: 1000}
  use_self_collisions: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, 4, cfg.Solver.Iterations)
			assert.Equal(t, [3]float64{0, -10, 0}, cfg.Solver.Gravity)
			assert.True(t, cfg.Cloth.UseXPBDEdgeSprings)
			assert.Equal(t, Range{Low: 100, High: 1000}, cfg.Cloth.XPBDEdgeStiffness)
			assert.Equal(t, Default().Cloth.EdgeStiffness, cfg.Cloth.EdgeStiffness)
			assert.True(t, cfg.Cloth.UseSelfCollisions)
			// untouched keys keep their default
			assert.Equal(t, Default().Cloth.BendingStiffness, cfg.Cloth.BendingStiffness)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unknown extension", func(t *testing.T) {
		_, err := Load(writeFile(t, "cloth.json", "{}"))
		assert.ErrorContains(t, err, "unsupported file extension")
	})

	t.Run("malformed toml", func(t *testing.T) {
		_, err := Load(writeFile(t, "cloth.toml", "[solver\niterations = "))
		assert.ErrorContains(t, err, "decoding")
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := Load(writeFile(t, "cloth.toml", "[cloth]\nbuckling_ratio = 2.0\n"))
		assert.ErrorContains(t, err, "buckling_ratio")
	})

	t.Run("edge stiffness given in N/m", func(t *testing.T) {
		_, err := Load(writeFile(t, "cloth.yaml", "cloth:\n  edge_stiffness: {low: 100, high: 1000}\n"))
		assert.ErrorContains(t, err, "edge_stiffness must be in [0, 1]")
	})
}

func TestWeightMaps(t *testing.T) {
	var empty WeightMaps
	assert.Nil(t, empty.Get(EdgeStiffness))
	assert.NotPanics(t, func() { empty.Check(3) })

	maps := WeightMaps{
		EdgeStiffness: {0, 0.5, 1},
		TetherScale:   {},
	}
	assert.Equal(t, []float64{0, 0.5, 1}, maps.Get(EdgeStiffness))
	assert.NotPanics(t, func() { maps.Check(3) })
	assert.PanicsWithValue(t, "config: weight map EdgeStiffness has 3 values, expected 4", func() { maps.Check(4) })

	assert.Equal(t, "BackstopRadius", BackstopRadius.String())
	assert.Equal(t, "Channel(200)", Channel(200).String())
}

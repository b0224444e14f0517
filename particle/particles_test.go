package particle

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd(t *testing.T) {
	var p Particles

	first := p.Add(3, 7)
	second := p.Add(2, 8)
	empty := p.Add(0, 9)

	assert.Equal(t, 0, first)
	assert.Equal(t, 3, second)
	assert.Equal(t, 5, empty)
	require.Equal(t, 5, p.Size())

	for _, s := range []int{len(p.P), len(p.V), len(p.M), len(p.InvM), len(p.Owner)} {
		assert.Equal(t, 5, s)
	}
	for i := 0; i < 5; i++ {
		assert.True(t, p.Kinematic(i), "particle %d", i)
		assert.True(t, math.IsInf(p.Mass(i), 1))
	}
	assert.Equal(t, []uint32{7, 7, 7, 8, 8}, p.Owner)
}

func TestSetMass(t *testing.T) {
	tests := []struct {
		name      string
		mass      float64
		invMass   float64
		kinematic bool
	}{
		{"regular mass", 2, 0.5, false},
		{"zero mass", 0, 0, true},
		{"negative mass", -1, 0, true},
		{"infinite mass", math.Inf(1), 0, true},
		{"not a number", math.NaN(), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Particles
			p.Add(1, 0)
			p.SetMass(0, tt.mass)

			assert.Equal(t, tt.invMass, p.InverseMass(0))
			assert.Equal(t, tt.kinematic, p.Kinematic(0))
		})
	}
}

func TestRange(t *testing.T) {
	var p Particles
	p.Add(10, 0)

	r := p.Range(2, 5)
	assert.Equal(t, 7, r.End())
	assert.True(t, r.Contains(2))
	assert.True(t, r.Contains(6))
	assert.False(t, r.Contains(7))
	assert.False(t, r.Contains(1))

	assert.NotPanics(t, func() { p.Range(10, 0) })
	assert.Panics(t, func() { p.Range(8, 3) })
	assert.Panics(t, func() { p.Range(-1, 2) })
}

func TestAccessors(t *testing.T) {
	var p Particles
	p.Add(2, 0)

	p.SetPosition(0, mgl64.Vec3{1, 2, 3})
	p.SetPredicted(0, mgl64.Vec3{4, 5, 6})
	p.SetVelocity(0, mgl64.Vec3{7, 8, 9})
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, p.Position(0))
	assert.Equal(t, mgl64.Vec3{4, 5, 6}, p.Predicted(0))
	assert.Equal(t, mgl64.Vec3{7, 8, 9}, p.Velocity(0))

	p.Reset(0, mgl64.Vec3{1, 1, 1})
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, p.Position(0))
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, p.Predicted(0))
	assert.Equal(t, mgl64.Vec3{}, p.Velocity(0))

	assert.Panics(t, func() { p.Position(2) })
}

func TestDisplace(t *testing.T) {
	var p Particles
	p.Add(2, 0)
	p.SetMass(0, 2)
	p.SetPredicted(1, mgl64.Vec3{1, 1, 1})

	p.Displace(0, mgl64.Vec3{1, 0, -2})
	p.Displace(1, mgl64.Vec3{5, 5, 5})

	assert.Equal(t, mgl64.Vec3{0.5, 0, -1}, p.Predicted(0))
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, p.Predicted(1), "kinematic particles are not written")
}

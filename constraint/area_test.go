package constraint

import (
	"testing"

	"github.com/akmonengine/silk/config"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangleArea(p []mgl64.Vec3, t [3]int) float64 {
	return 0.5 * p[t[1]].Sub(p[t[0]]).Cross(p[t[2]].Sub(p[t[0]])).Len()
}

func TestAreaSpring(t *testing.T) {
	triangle := []mgl64.Vec3{{0, 0, 0}, {2, 0, 0}, {0, 0, 2}}
	triangles := [][3]int{{0, 1, 2}}

	t.Run("at rest", func(t *testing.T) {
		p, r := newParticles(triangle, uniformMasses(3, 1))
		a := NewAreaSpring(p, r, triangles, config.Uniform(1), nil)
		require.InDelta(t, 2.0, a.RestAreas()[0], 1e-12)

		a.ApplyProperties(dt, 1)
		a.Apply(p, dt)
		assert.Equal(t, triangle, p.P)
	})

	t.Run("restores the area", func(t *testing.T) {
		p, r := newParticles(triangle, uniformMasses(3, 1))
		a := NewAreaSpring(p, r, triangles, config.Uniform(1), nil)
		p.P[1] = mgl64.Vec3{3, 0, 0}
		p.P[2] = mgl64.Vec3{0, 0, 3}

		a.ApplyProperties(dt, 1)
		for i := 0; i < 20; i++ {
			a.Apply(p, dt)
		}
		assert.InDelta(t, 2.0, triangleArea(p.P, triangles[0]), 1e-6)
	})

	t.Run("degenerate triangle", func(t *testing.T) {
		p, r := newParticles(triangle, uniformMasses(3, 1))
		a := NewAreaSpring(p, r, triangles, config.Uniform(1), nil)
		collinear := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}
		copy(p.P, collinear)

		a.ApplyProperties(dt, 1)
		a.Apply(p, dt)
		assert.Equal(t, collinear, p.P)
	})
}

func TestAxialSpring(t *testing.T) {
	// The foot of vertex 0 on edge (1, 2) lies outside the edge, the vertices
	// get rotated so the longest edge is the axis
	triangle := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {2, 0, 1}}
	triangles := [][3]int{{0, 1, 2}}

	p, r := newParticles(triangle, uniformMasses(3, 1))
	a := NewAxialSpring(p, r, triangles, config.Uniform(1), nil)
	rotated := a.Constraints()[0]
	assert.Equal(t, 1, rotated[0])
	assert.GreaterOrEqual(t, a.barycentrics[0], 0.0)
	assert.LessOrEqual(t, a.barycentrics[0], 1.0)

	a.ApplyProperties(dt, 1)
	a.Apply(p, dt)
	assert.Equal(t, triangle, p.P, "at rest")

	// Pulling the apex away from the axis, a full stiffness restores the height
	p.P[1] = mgl64.Vec3{1, 0, -1}
	a.Apply(p, dt)
	b := a.barycentrics[0]
	axis := p.P[rotated[1]].Mul(b).Add(p.P[rotated[2]].Mul(1 - b))
	assert.InDelta(t, a.restLengths[0], p.P[rotated[0]].Sub(axis).Len(), 1e-12)

	// Equal masses: the center of mass does not move
	var center mgl64.Vec3
	for i := range triangle {
		center = center.Add(p.P[i])
	}
	assertVec3InDelta(t, mgl64.Vec3{3, 0, 0}, center, 1e-12)
}

func TestAxialBarycentric(t *testing.T) {
	assert.InDelta(t, 0.5, axialBarycentric(mgl64.Vec3{0.5, 1, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, 0}), 1e-12)
	assert.InDelta(t, 1.0, axialBarycentric(mgl64.Vec3{1, 1, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 0, 0}), 1e-12)
	assert.InDelta(t, 0.5, axialBarycentric(mgl64.Vec3{1, 1, 0}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, 0}), 1e-12)
}

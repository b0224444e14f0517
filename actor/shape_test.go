package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func vec3AlmostEqual(a, b mgl64.Vec3, epsilon float64) bool {
	return math.Abs(a.X()-b.X()) <= epsilon &&
		math.Abs(a.Y()-b.Y()) <= epsilon &&
		math.Abs(a.Z()-b.Z()) <= epsilon
}

func TestSphereSignedDistance(t *testing.T) {
	sphere := &Sphere{Radius: 2}

	tests := []struct {
		name           string
		point          mgl64.Vec3
		expectedPhi    float64
		expectedNormal mgl64.Vec3
	}{
		{"outside", mgl64.Vec3{3, 0, 0}, 1, mgl64.Vec3{1, 0, 0}},
		{"on surface", mgl64.Vec3{0, -2, 0}, 0, mgl64.Vec3{0, -1, 0}},
		{"inside", mgl64.Vec3{0, 0, 0.5}, -1.5, mgl64.Vec3{0, 0, 1}},
		{"center", mgl64.Vec3{0, 0, 0}, -2, mgl64.Vec3{0, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phi, normal := sphere.SignedDistance(tt.point)
			assert.InDelta(t, tt.expectedPhi, phi, 1e-12)
			assert.True(t, vec3AlmostEqual(tt.expectedNormal, normal, 1e-12), "normal = %v", normal)
		})
	}
}

func TestBoxSignedDistance(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}

	tests := []struct {
		name           string
		point          mgl64.Vec3
		expectedPhi    float64
		expectedNormal mgl64.Vec3
	}{
		{"outside face", mgl64.Vec3{2, 0, 0}, 1, mgl64.Vec3{1, 0, 0}},
		{"outside edge", mgl64.Vec3{-4, 5, 0}, math.Sqrt(18), mgl64.Vec3{-1 / math.Sqrt2, 1 / math.Sqrt2, 0}},
		{"inside closest to y face", mgl64.Vec3{0, -1.5, 0}, -0.5, mgl64.Vec3{0, -1, 0}},
		{"inside closest to z face", mgl64.Vec3{0, 0, 2.9}, -0.1, mgl64.Vec3{0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phi, normal := box.SignedDistance(tt.point)
			assert.InDelta(t, tt.expectedPhi, phi, 1e-9)
			assert.True(t, vec3AlmostEqual(tt.expectedNormal, normal, 1e-9), "normal = %v", normal)
		})
	}
}

func TestPlaneSignedDistance(t *testing.T) {
	plane := &Plane{Normal: mgl64.Vec3{0, 1, 0}, Distance: 1}

	phi, normal := plane.SignedDistance(mgl64.Vec3{5, 0, -3})
	assert.InDelta(t, 1.0, phi, 1e-12)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, normal)

	phi, _ = plane.SignedDistance(mgl64.Vec3{0, -3, 0})
	assert.InDelta(t, -2.0, phi, 1e-12)
}

func TestBoxComputeAABBWithRotation(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}
	transform := NewTransformAt(mgl64.Vec3{0, 0, 0}, mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 1, 0}))

	box.ComputeAABB(transform)
	aabb := box.GetAABB()

	assert.InDelta(t, math.Sqrt2, aabb.Max.X(), 1e-9)
	assert.InDelta(t, 1.0, aabb.Max.Y(), 1e-9)
	assert.InDelta(t, -math.Sqrt2, aabb.Min.Z(), 1e-9)
}

func TestPlaneComputeAABB(t *testing.T) {
	plane := &Plane{Normal: mgl64.Vec3{0, 1, 0}, Distance: 0}
	plane.ComputeAABB(NewTransformAt(mgl64.Vec3{0, 2, 0}, mgl64.QuatIdent()))

	aabb := plane.GetAABB()
	assert.InDelta(t, 2.0, aabb.Max.Y(), 1e-12)
	assert.True(t, aabb.ContainsPoint(mgl64.Vec3{100, -50, 100}))
	assert.False(t, aabb.ContainsPoint(mgl64.Vec3{0, 2.5, 0}))
}

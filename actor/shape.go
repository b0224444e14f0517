package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeType represents the type of collision shape
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeBox
	ShapeTypePlane
)

// ShapeInterface is the interface that all collider shapes must implement
type ShapeInterface interface {
	Type() ShapeType
	// ComputeAABB calculates the axis-aligned bounding box for the shape
	// at the given transform
	ComputeAABB(transform Transform)
	GetAABB() AABB
	// SignedDistance returns the distance from a local space point to the
	// surface, negative inside, and the outward local normal.
	SignedDistance(point mgl64.Vec3) (float64, mgl64.Vec3)
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	HalfExtents mgl64.Vec3
	aabb        AABB
}

func (b *Box) Type() ShapeType {
	return ShapeTypeBox
}

func (b *Box) ComputeAABB(transform Transform) {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()
	aabb := EmptyAABB()
	for _, sx := range [2]float64{-hx, hx} {
		for _, sy := range [2]float64{-hy, hy} {
			for _, sz := range [2]float64{-hz, hz} {
				aabb.GrowToInclude(transform.ToWorld(mgl64.Vec3{sx, sy, sz}))
			}
		}
	}
	b.aabb = aabb
}

func (b *Box) GetAABB() AABB {
	return b.aabb
}

func (b *Box) SignedDistance(point mgl64.Vec3) (float64, mgl64.Vec3) {
	var q mgl64.Vec3
	for i := 0; i < 3; i++ {
		q[i] = math.Abs(point[i]) - b.HalfExtents[i]
	}

	// Outside: distance to the closest point of the box
	var outside mgl64.Vec3
	for i := 0; i < 3; i++ {
		if q[i] > 0 {
			outside[i] = math.Copysign(q[i], point[i])
		}
	}
	if distance := outside.Len(); distance > 0 {
		return distance, outside.Mul(1 / distance)
	}

	// Inside: the closest face is the one with the largest q
	axis := 0
	for i := 1; i < 3; i++ {
		if q[i] > q[axis] {
			axis = i
		}
	}
	var normal mgl64.Vec3
	normal[axis] = math.Copysign(1, point[axis])
	return q[axis], normal
}

// Sphere represents a spherical collision shape
type Sphere struct {
	Radius float64
	aabb   AABB
}

func (s *Sphere) Type() ShapeType {
	return ShapeTypeSphere
}

// ComputeAABB calculates the axis-aligned bounding box for the sphere
func (s *Sphere) ComputeAABB(transform Transform) {
	// Sphere AABB is not affected by rotation, only by position
	radiusVec := mgl64.Vec3{s.Radius, s.Radius, s.Radius}

	s.aabb = AABB{
		Min: transform.Position.Sub(radiusVec),
		Max: transform.Position.Add(radiusVec),
	}
}

func (s *Sphere) GetAABB() AABB {
	return s.aabb
}

func (s *Sphere) SignedDistance(point mgl64.Vec3) (float64, mgl64.Vec3) {
	length := point.Len()
	if length < 1e-12 {
		// Center of the sphere, any direction is valid
		return -s.Radius, mgl64.Vec3{0, 1, 0}
	}
	return length - s.Radius, point.Mul(1 / length)
}

// Plane represents an infinite plane collision shape
// The plane is defined by the equation: Normal · p + Distance = 0
// where Normal is the plane's normal vector (must be normalized)
// and Distance is the signed distance from the origin along the normal
type Plane struct {
	Normal   mgl64.Vec3 // Plane normal (must be normalized)
	Distance float64    // Plane constant (signed distance from origin)
	aabb     AABB
}

func (p *Plane) Type() ShapeType {
	return ShapeTypePlane
}

func (p *Plane) ComputeAABB(transform Transform) {
	const infinity = 1e10 // grande valeur pour les dimensions infinies

	// Half space below the plane, unbounded in every direction but the normal one
	min := mgl64.Vec3{-infinity, -infinity, -infinity}
	max := mgl64.Vec3{infinity, infinity, infinity}

	normal := transform.RotateToWorld(p.Normal)
	point := transform.ToWorld(p.Normal.Mul(-p.Distance))
	for i := 0; i < 3; i++ {
		if math.Abs(normal[i]) > 1-1e-9 {
			if normal[i] > 0 {
				max[i] = point[i]
			} else {
				min[i] = point[i]
			}
		}
	}

	p.aabb = AABB{Min: min, Max: max}
}

func (p *Plane) GetAABB() AABB {
	return p.aabb
}

func (p *Plane) SignedDistance(point mgl64.Vec3) (float64, mgl64.Vec3) {
	return p.Normal.Dot(point) + p.Distance, p.Normal
}

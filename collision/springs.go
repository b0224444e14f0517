package collision

import (
	"github.com/akmonengine/silk/coloring"
	"github.com/akmonengine/silk/constraint"
	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
	"github.com/go-gl/mathgl/mgl64"
)

// CollisionSprings keeps each contact particle at thickness from its
// triangle, on the side given by the contact. The contacts are colored again
// at every step.
type CollisionSprings struct {
	collisions   *TriangleMeshCollisions
	elements     [][4]int // {particle, a, b, c}
	contacts     []Contact
	colorOffsets []int

	stiffness float64 // Per iteration
	workers   int
}

// NewCollisionSprings attaches the springs to the detection, which hands them
// the contacts of each step.
func NewCollisionSprings(collisions *TriangleMeshCollisions) *CollisionSprings {
	s := &CollisionSprings{
		collisions: collisions,
		workers:    collisions.workers,
	}
	collisions.springs = s
	return s
}

func (s *CollisionSprings) SetWorkers(workers int) {
	s.workers = max(pipeline.DefaultWorkers, workers)
}

func (s *CollisionSprings) Size() int {
	return len(s.contacts)
}

func (s *CollisionSprings) ColorOffsets() []int {
	return s.colorOffsets
}

func (s *CollisionSprings) setContacts(p *particle.Particles, contacts []Contact) {
	s.elements = s.elements[:0]
	for _, contact := range contacts {
		triangle := s.collisions.mesh.Elements[contact.Triangle]
		s.elements = append(s.elements, [4]int{contact.Particle, triangle[0], triangle[1], triangle[2]})
	}

	colors := coloring.ComputeGraphColoring(s.elements, p.InvM)
	offsets, order := coloring.Reorder(s.elements, colors)
	s.colorOffsets = offsets
	s.contacts = coloring.Permute(contacts, order)
}

func (s *CollisionSprings) applyProperties(options Options, dt float64, iterations int) {
	s.stiffness = constraint.PBDStiffness(options.Stiffness, dt, iterations)
}

func (s *CollisionSprings) Init(p *particle.Particles) {}

func (s *CollisionSprings) ApplyProperties(dt float64, iterations int) {
	s.applyProperties(s.collisions.options, dt, iterations)
}

func (s *CollisionSprings) Apply(p *particle.Particles, dt float64) {
	thickness := s.collisions.options.Thickness
	friction := s.collisions.options.Friction
	pipeline.ForColors(s.workers, s.colorOffsets, func(i int) {
		contact := s.contacts[i]
		element := s.elements[i]
		triangle := [3]int{element[1], element[2], element[3]}
		normal, side := contactNormal(p, contact.Particle, triangle, contact.Barycentric, contact.Normal, contact.Side)
		depth, ok := pushOut(p, contact.Particle, triangle, contact.Barycentric, normal, side, thickness, s.stiffness)
		if ok && friction > 0 {
			applyFriction(p, contact.Particle, triangle, contact.Barycentric, normal, friction*depth)
		}
	})
}

// contactNormal returns the direction and the side a contact is solved along.
// Inside the face it is the triangle normal. On an edge or a vertex of the
// triangle, with the particle on the requested side of the plane, it is the
// direction from the closest point to the particle and the side is positive.
func contactNormal(p *particle.Particles, index int, triangle [3]int, bary, fallbackNormal mgl64.Vec3, side float64) (mgl64.Vec3, float64) {
	a, b, c := p.P[triangle[0]], p.P[triangle[1]], p.P[triangle[2]]
	normal, ok := triangleNormal(a, b, c)
	if !ok {
		normal = fallbackNormal
	}
	if onBoundary(bary) {
		offset := p.P[index].Sub(barycentricPoint(bary, a, b, c))
		if length := offset.Len(); length > epsilon && side*offset.Dot(normal) > -epsilon {
			return offset.Mul(1 / length), 1
		}
	}
	return normal, side
}

// onBoundary reports whether a closest point lies on an edge or a vertex.
func onBoundary(bary mgl64.Vec3) bool {
	return bary[0] <= epsilon || bary[1] <= epsilon || bary[2] <= epsilon
}

// pushOut moves the particle and the triangle apart along normal, so that the
// particle lies at thickness on the given side. It returns the corrected
// penetration.
func pushOut(p *particle.Particles, index int, triangle [3]int, bary, normal mgl64.Vec3, side, thickness, k float64) (float64, bool) {
	a, b, c := p.P[triangle[0]], p.P[triangle[1]], p.P[triangle[2]]
	value := side*p.P[index].Sub(barycentricPoint(bary, a, b, c)).Dot(normal) - thickness
	if value >= 0 {
		return 0, false
	}

	weight := pointTriangleWeight(p, index, triangle, bary)
	if weight < epsilon {
		return 0, false
	}

	scale := -k * value / weight
	direction := normal.Mul(side * scale)
	p.Displace(index, direction)
	for j, v := range triangle {
		p.Displace(v, direction.Mul(-bary[j]))
	}
	return -k * value, true
}

// applyFriction removes the tangential motion of the particle relative to the
// triangle since the start of the step, up to maxFriction.
func applyFriction(p *particle.Particles, index int, triangle [3]int, bary, normal mgl64.Vec3, maxFriction float64) {
	relative := p.P[index].Sub(p.X[index])
	for j, v := range triangle {
		relative = relative.Sub(p.P[v].Sub(p.X[v]).Mul(bary[j]))
	}
	tangential := relative.Sub(normal.Mul(relative.Dot(normal)))
	length := tangential.Len()
	if length < epsilon {
		return
	}

	weight := pointTriangleWeight(p, index, triangle, bary)
	if weight < epsilon {
		return
	}

	// Static friction cancels the motion, dynamic friction shortens it
	fraction := 1.0
	if length > maxFriction {
		fraction = maxFriction / length
	}
	correction := tangential.Mul(fraction / weight)
	p.Displace(index, correction.Mul(-1))
	for j, v := range triangle {
		p.Displace(v, correction.Mul(bary[j]))
	}
}

func pointTriangleWeight(p *particle.Particles, index int, triangle [3]int, bary mgl64.Vec3) float64 {
	weight := p.InvM[index]
	for j, v := range triangle {
		weight += bary[j] * bary[j] * p.InvM[v]
	}
	return weight
}

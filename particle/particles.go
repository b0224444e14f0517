// Package particle holds the flat particle arrays shared by every constraint.
package particle

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Particles is a structure of arrays. Every slice has the same length, index i
// of each slice describes particle i.
type Particles struct {
	X     []mgl64.Vec3 // Position at the start of the step
	P     []mgl64.Vec3 // Predicted position, solved during the step
	V     []mgl64.Vec3 // Velocity (m/s)
	M     []float64    // Mass, +Inf for kinematic particles
	InvM  []float64    // Inverse mass, 0 for kinematic particles
	Owner []uint32     // Id of the object that allocated the particle
}

// Range is a non-owning handle on a contiguous block of particles.
type Range struct {
	Offset int
	Size   int
}

func (r Range) End() int {
	return r.Offset + r.Size
}

// Contains reports whether the particle index belongs to the range.
func (r Range) Contains(index int) bool {
	return index >= r.Offset && index < r.End()
}

// Size returns the number of particles in the store.
func (p *Particles) Size() int {
	return len(p.X)
}

// Add grows all arrays by count particles owned by owner, and returns the index
// of the first new particle. New particles are kinematic until a mass is set.
func (p *Particles) Add(count int, owner uint32) int {
	offset := len(p.X)
	if count <= 0 {
		return offset
	}

	p.X = append(p.X, make([]mgl64.Vec3, count)...)
	p.P = append(p.P, make([]mgl64.Vec3, count)...)
	p.V = append(p.V, make([]mgl64.Vec3, count)...)
	p.InvM = append(p.InvM, make([]float64, count)...)
	p.M = append(p.M, make([]float64, count)...)
	p.Owner = append(p.Owner, make([]uint32, count)...)
	for i := offset; i < offset+count; i++ {
		p.M[i] = math.Inf(1)
		p.Owner[i] = owner
	}

	return offset
}

// Range returns a validated handle on [offset, offset+size).
func (p *Particles) Range(offset, size int) Range {
	if offset < 0 || size < 0 || offset+size > p.Size() {
		panic(fmt.Sprintf("particle: range [%d, %d) out of bounds [0, %d)", offset, offset+size, p.Size()))
	}
	return Range{Offset: offset, Size: size}
}

func (p *Particles) Position(i int) mgl64.Vec3 {
	return p.X[i]
}

func (p *Particles) SetPosition(i int, x mgl64.Vec3) {
	p.X[i] = x
}

func (p *Particles) Predicted(i int) mgl64.Vec3 {
	return p.P[i]
}

func (p *Particles) SetPredicted(i int, x mgl64.Vec3) {
	p.P[i] = x
}

func (p *Particles) Velocity(i int) mgl64.Vec3 {
	return p.V[i]
}

func (p *Particles) SetVelocity(i int, v mgl64.Vec3) {
	p.V[i] = v
}

func (p *Particles) Mass(i int) float64 {
	return p.M[i]
}

func (p *Particles) InverseMass(i int) float64 {
	return p.InvM[i]
}

// SetMass sets both the mass and the inverse mass. A non positive or infinite
// mass makes the particle kinematic.
func (p *Particles) SetMass(i int, mass float64) {
	if mass <= 0 || math.IsInf(mass, 1) || math.IsNaN(mass) {
		p.M[i] = math.Inf(1)
		p.InvM[i] = 0
		return
	}
	p.M[i] = mass
	p.InvM[i] = 1.0 / mass
}

// Kinematic reports whether the particle is driven externally.
func (p *Particles) Kinematic(i int) bool {
	return p.InvM[i] == 0
}

// Displace moves the predicted position of a dynamic particle by delta times
// its inverse mass. Kinematic particles are not written.
func (p *Particles) Displace(i int, delta mgl64.Vec3) {
	if w := p.InvM[i]; w != 0 {
		p.P[i] = p.P[i].Add(delta.Mul(w))
	}
}

// Reset places the particle at x with a zero velocity, both for the current
// and the predicted position.
func (p *Particles) Reset(i int, x mgl64.Vec3) {
	p.X[i] = x
	p.P[i] = x
	p.V[i] = mgl64.Vec3{}
}

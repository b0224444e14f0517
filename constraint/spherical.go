package constraint

import (
	"fmt"

	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxAnimationDistance bounds the max distance and backstop values, in meters.
const MaxAnimationDistance = 1e4

// animationTargets holds the animated position of each particle of a range.
// The slices are owned by the caller, who updates them in place between steps.
type animationTargets struct {
	particles particle.Range
	positions []mgl64.Vec3
	workers   int
}

func newAnimationTargets(r particle.Range, positions []mgl64.Vec3) animationTargets {
	if len(positions) != r.Size {
		panic(fmt.Sprintf("constraint: %d animation positions, expected %d", len(positions), r.Size))
	}
	return animationTargets{particles: r, positions: positions, workers: pipeline.DefaultWorkers}
}

func (a *animationTargets) SetWorkers(workers int) {
	a.workers = max(pipeline.DefaultWorkers, workers)
}

func (a *animationTargets) Size() int {
	return a.particles.Size
}

// Spherical keeps each particle within MaxDistance of its animated position.
type Spherical struct {
	animationTargets
	radius WeightedValue
}

func NewSpherical(r particle.Range, animationPositions []mgl64.Vec3, maxDistance config.Range, weightMap []float64) *Spherical {
	s := &Spherical{animationTargets: newAnimationTargets(r, animationPositions)}
	s.SetProperties(maxDistance, weightMap)
	return s
}

func (s *Spherical) SetProperties(maxDistance config.Range, weightMap []float64) {
	s.radius = NewWeightedValue(maxDistance, vertexWeights(s.particles, weightMap), 0, MaxAnimationDistance)
}

func (s *Spherical) Init(p *particle.Particles) {}

func (s *Spherical) ApplyProperties(dt float64, iterations int) {}

func (s *Spherical) Apply(p *particle.Particles, dt float64) {
	pipeline.Range(s.workers, 0, s.particles.Size, func(i int) {
		index := s.particles.Offset + i
		if p.InvM[index] == 0 {
			return
		}

		center := s.positions[i]
		direction, distance, ok := normalize(p.P[index].Sub(center))
		radius := s.radius.At(i)
		if !ok || distance <= radius {
			return
		}
		p.P[index] = center.Add(direction.Mul(radius))
	})
}

// SphericalBackstop keeps each particle outside a sphere placed behind its
// animated position, along the animated normal:
// center = position - normal*(distance + radius).
type SphericalBackstop struct {
	animationTargets
	normals  []mgl64.Vec3
	distance WeightedValue
	radius   WeightedValue
}

func NewSphericalBackstop(r particle.Range, animationPositions, animationNormals []mgl64.Vec3, distance config.Range, distanceMap []float64, radius config.Range, radiusMap []float64) *SphericalBackstop {
	if len(animationNormals) != r.Size {
		panic(fmt.Sprintf("constraint: %d animation normals, expected %d", len(animationNormals), r.Size))
	}
	s := &SphericalBackstop{
		animationTargets: newAnimationTargets(r, animationPositions),
		normals:          animationNormals,
	}
	s.SetProperties(distance, distanceMap, radius, radiusMap)
	return s
}

func (s *SphericalBackstop) SetProperties(distance config.Range, distanceMap []float64, radius config.Range, radiusMap []float64) {
	s.distance = NewWeightedValue(distance, vertexWeights(s.particles, distanceMap), -MaxAnimationDistance, MaxAnimationDistance)
	s.radius = NewWeightedValue(radius, vertexWeights(s.particles, radiusMap), 0, MaxAnimationDistance)
}

func (s *SphericalBackstop) Init(p *particle.Particles) {}

func (s *SphericalBackstop) ApplyProperties(dt float64, iterations int) {}

func (s *SphericalBackstop) Apply(p *particle.Particles, dt float64) {
	pipeline.Range(s.workers, 0, s.particles.Size, func(i int) {
		index := s.particles.Offset + i
		radius := s.radius.At(i)
		if p.InvM[index] == 0 || radius == 0 {
			return
		}

		center := s.positions[i].Sub(s.normals[i].Mul(s.distance.At(i) + radius))
		direction, distance, ok := normalize(p.P[index].Sub(center))
		if !ok {
			direction = s.normals[i]
		}
		if distance >= radius {
			return
		}
		p.P[index] = center.Add(direction.Mul(radius))
	})
}

// AnimDrive pulls each particle towards its animated position. Damping acts
// on the difference between the particle and the animation velocities.
type AnimDrive struct {
	animationTargets
	previous         []mgl64.Vec3
	motion           []mgl64.Vec3
	stiffness        WeightedValue
	damping          WeightedValue
	iteration        iterationStiffness
	dampingIteration iterationStiffness
}

func NewAnimDrive(r particle.Range, animationPositions []mgl64.Vec3, stiffness config.Range, stiffnessMap []float64, damping config.Range, dampingMap []float64) *AnimDrive {
	a := &AnimDrive{
		animationTargets: newAnimationTargets(r, animationPositions),
		previous:         append([]mgl64.Vec3(nil), animationPositions...),
		motion:           make([]mgl64.Vec3, r.Size),
	}
	a.SetProperties(stiffness, stiffnessMap, damping, dampingMap)
	return a
}

func (a *AnimDrive) SetProperties(stiffness config.Range, stiffnessMap []float64, damping config.Range, dampingMap []float64) {
	a.stiffness = NewWeightedValue(stiffness, vertexWeights(a.particles, stiffnessMap), MinStiffness, MaxStiffness)
	a.damping = NewWeightedValue(damping, vertexWeights(a.particles, dampingMap), MinStiffness, MaxStiffness)
}

// Init records how far the animation moved since the previous step.
func (a *AnimDrive) Init(p *particle.Particles) {
	for i, position := range a.positions {
		a.motion[i] = position.Sub(a.previous[i])
		a.previous[i] = position
	}
}

func (a *AnimDrive) ApplyProperties(dt float64, iterations int) {
	a.iteration.update(a.stiffness, a.particles.Size, dt, iterations)
	a.dampingIteration.update(a.damping, a.particles.Size, dt, iterations)
}

func (a *AnimDrive) Apply(p *particle.Particles, dt float64) {
	pipeline.Range(a.workers, 0, a.particles.Size, func(i int) {
		index := a.particles.Offset + i
		if p.InvM[index] == 0 {
			return
		}

		toTarget := a.positions[i].Sub(p.P[index]).Mul(a.iteration.at(i))
		relativeMotion := a.motion[i].Sub(p.P[index].Sub(p.X[index])).Mul(a.dampingIteration.at(i))
		p.P[index] = p.P[index].Add(toTarget).Add(relativeMotion)
	})
}

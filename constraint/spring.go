package constraint

import (
	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
)

// Spring keeps the distance between two particles at its rest length.
type Spring struct {
	elementSet[[2]int]
	restLengths []float64
	stiffness   WeightedValue
	iteration   iterationStiffness
}

// NewSpring creates one spring per edge, its rest length measured on the
// current positions. Every index must belong to r.
func NewSpring(p *particle.Particles, r particle.Range, edges [][2]int, stiffness config.Range, weightMap []float64) *Spring {
	set, _ := newElementSet(p, r, edges)
	s := &Spring{
		elementSet:  set,
		restLengths: restLengths(p, set.constraints),
	}
	s.SetProperties(stiffness, weightMap)
	return s
}

// SetProperties changes the stiffness, in [0, 1].
func (s *Spring) SetProperties(stiffness config.Range, weightMap []float64) {
	s.stiffness = NewWeightedValue(stiffness, s.weights(weightMap), MinStiffness, MaxStiffness)
}

func (s *Spring) RestLengths() []float64 {
	return s.restLengths
}

func (s *Spring) Init(p *particle.Particles) {}

func (s *Spring) ApplyProperties(dt float64, iterations int) {
	s.iteration.update(s.stiffness, len(s.constraints), dt, iterations)
}

func (s *Spring) Apply(p *particle.Particles, dt float64) {
	pipeline.ForColors(s.workers, s.colorOffsets, func(i int) {
		s.apply(p, i)
	})
}

func (s *Spring) apply(p *particle.Particles, i int) {
	i1, i2 := s.constraints[i][0], s.constraints[i][1]
	w1, w2 := p.InvM[i1], p.InvM[i2]
	w := w1 + w2
	if w < epsilon {
		return
	}

	direction, length, ok := normalize(p.P[i2].Sub(p.P[i1]))
	if !ok {
		return
	}

	delta := direction.Mul(s.iteration.at(i) * (length - s.restLengths[i]) / w)
	p.Displace(i1, delta)
	p.Displace(i2, delta.Mul(-1))
}

// XPBDSpring is the compliant form of Spring, with a stiffness in N/m and a
// damping ratio.
type XPBDSpring struct {
	elementSet[[2]int]
	restLengths  []float64
	stiffness    WeightedValue
	dampingRatio WeightedValue
	lambdas      Lambdas
}

func NewXPBDSpring(p *particle.Particles, r particle.Range, edges [][2]int, stiffness config.Range, stiffnessMap []float64, dampingRatio config.Range, dampingMap []float64) *XPBDSpring {
	set, _ := newElementSet(p, r, edges)
	s := &XPBDSpring{
		elementSet:  set,
		restLengths: restLengths(p, set.constraints),
		lambdas:     NewLambdas(len(set.constraints)),
	}
	s.SetProperties(stiffness, stiffnessMap, dampingRatio, dampingMap)
	return s
}

func (s *XPBDSpring) SetProperties(stiffness config.Range, stiffnessMap []float64, dampingRatio config.Range, dampingMap []float64) {
	s.stiffness = NewWeightedValue(stiffness, s.weights(stiffnessMap), XPBDMinStiffness, XPBDMaxStiffness)
	s.dampingRatio = NewWeightedValue(dampingRatio, s.weights(dampingMap), MinDampingRatio, MaxDampingRatio)
}

func (s *XPBDSpring) Stiffness() WeightedValue {
	return s.stiffness
}

func (s *XPBDSpring) RestLengths() []float64 {
	return s.restLengths
}

func (s *XPBDSpring) Init(p *particle.Particles) {
	s.lambdas.Reset()
}

// Compliance is scaled by dt² in apply. The multipliers accumulate over the
// iterations of a step, so the iteration count needs no rescaling.
func (s *XPBDSpring) ApplyProperties(dt float64, iterations int) {}

func (s *XPBDSpring) Apply(p *particle.Particles, dt float64) {
	pipeline.ForColors(s.workers, s.colorOffsets, func(i int) {
		s.apply(p, i, dt)
	})
}

func (s *XPBDSpring) apply(p *particle.Particles, i int, dt float64) {
	i1, i2 := s.constraints[i][0], s.constraints[i][1]
	w1, w2 := p.InvM[i1], p.InvM[i2]
	w := w1 + w2
	if w < epsilon {
		return
	}

	direction, length, ok := normalize(p.P[i2].Sub(p.P[i1]))
	if !ok {
		return
	}

	k := s.stiffness.At(i)
	gamma := xpbdDamping(s.dampingRatio.At(i), k, w, dt)
	relative := p.P[i2].Sub(p.X[i2]).Sub(p.P[i1].Sub(p.X[i1]))

	dLambda := xpbdDeltaLambda(length-s.restLengths[i], s.lambdas[i], alphaTilde(k, dt), gamma, direction.Dot(relative), w)
	s.lambdas[i] += dLambda

	delta := direction.Mul(dLambda)
	p.Displace(i1, delta.Mul(-1))
	p.Displace(i2, delta)
}

func restLengths(p *particle.Particles, edges [][2]int) []float64 {
	lengths := make([]float64, len(edges))
	for i, edge := range edges {
		lengths[i] = p.X[edge[1]].Sub(p.X[edge[0]]).Len()
	}
	return lengths
}

// BendingPairs returns the springs joining the two opposite vertices of each
// bending element, used for spring based bending.
func BendingPairs(elements [][4]int) [][2]int {
	pairs := make([][2]int, 0, len(elements))
	for _, element := range elements {
		if element[2] == element[3] {
			continue
		}
		pairs = append(pairs, [2]int{element[2], element[3]})
	}
	return pairs
}

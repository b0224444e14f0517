package constraint

import (
	"math"

	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
	"github.com/go-gl/mathgl/mgl64"
)

// BendingProperties describes the dihedral bending stiffness of a cloth.
// Stiffness is in [0, 1] for Bending and in N/m for the compliant kinds.
type BendingProperties struct {
	Stiffness         config.Range
	StiffnessMap      []float64
	BucklingRatio     float64
	BucklingStiffness config.Range
	BucklingMap       []float64
	DampingRatio      config.Range
	DampingMap        []float64
}

// dihedralSet holds bending elements {edge0, edge1, wing0, wing1} and their
// rest angles.
type dihedralSet struct {
	elementSet[[4]int]
	restAngles    []float64
	buckled       []bool
	bucklingRatio float64
}

func newDihedralSet(p *particle.Particles, r particle.Range, elements [][4]int) (dihedralSet, []int) {
	set, order := newElementSet(p, r, elements)
	s := dihedralSet{
		elementSet: set,
		restAngles: make([]float64, len(set.constraints)),
		buckled:    make([]bool, len(set.constraints)),
	}
	for i, element := range set.constraints {
		angle, _, ok := dihedralAngle(positions4(p.X, element))
		if ok {
			s.restAngles[i] = angle
		}
	}
	return s, order
}

func (s *dihedralSet) RestAngles() []float64 {
	return s.restAngles
}

// Buckled reports whether element i was folded past its buckling angle at the
// last Init.
func (s *dihedralSet) Buckled(i int) bool {
	return s.buckled[i]
}

// updateBuckling flags the elements folded further than
// pi - BucklingRatio*(pi - |restAngle|).
func (s *dihedralSet) updateBuckling(p *particle.Particles) {
	if s.bucklingRatio <= 0 {
		clear(s.buckled)
		return
	}
	pipeline.Range(s.workers, 0, len(s.constraints), func(i int) {
		angle, _, ok := dihedralAngle(positions4(p.P, s.constraints[i]))
		threshold := math.Pi - s.bucklingRatio*(math.Pi-math.Abs(s.restAngles[i]))
		s.buckled[i] = ok && math.Abs(angle) > threshold
	})
}

// project applies a PBD correction of stiffness k to element i.
func (s *dihedralSet) project(p *particle.Particles, i int, k float64) {
	element := s.constraints[i]
	angle, gradients, ok := dihedralAngle(positions4(p.P, element))
	if !ok {
		return
	}

	var weight float64
	for j := 0; j < 4; j++ {
		weight += p.InvM[element[j]] * gradients[j].LenSqr()
	}
	if weight < epsilon {
		return
	}

	scale := k * wrapAngle(angle-s.restAngles[i]) / weight
	for j := 0; j < 4; j++ {
		index := element[j]
		p.Displace(index, gradients[j].Mul(-scale))
	}
}

// projectCompliant applies an XPBD correction of stiffness k (N/m) to element i.
func (s *dihedralSet) projectCompliant(p *particle.Particles, i int, dt, k, dampingRatio float64, lambdas Lambdas) {
	element := s.constraints[i]
	angle, gradients, ok := dihedralAngle(positions4(p.P, element))
	if !ok {
		return
	}

	var weight, invMassSum, dampingTerm float64
	for j := 0; j < 4; j++ {
		index := element[j]
		weight += p.InvM[index] * gradients[j].LenSqr()
		invMassSum += p.InvM[index]
		dampingTerm += gradients[j].Dot(p.P[index].Sub(p.X[index]))
	}
	if weight < epsilon {
		return
	}

	gamma := xpbdDamping(dampingRatio, k, invMassSum, dt)
	dLambda := xpbdDeltaLambda(wrapAngle(angle-s.restAngles[i]), lambdas[i], alphaTilde(k, dt), gamma, dampingTerm, weight)
	lambdas[i] += dLambda

	for j := 0; j < 4; j++ {
		index := element[j]
		p.Displace(index, gradients[j].Mul(dLambda))
	}
}

// Bending is the PBD dihedral angle constraint.
type Bending struct {
	dihedralSet
	stiffness         WeightedValue
	bucklingStiffness WeightedValue
	iteration         iterationStiffness
	bucklingIteration iterationStiffness
}

// NewBending creates one constraint per element {edge0, edge1, wing0, wing1},
// as returned by mesh.TriangleMesh.UniqueAdjacentElements.
func NewBending(p *particle.Particles, r particle.Range, elements [][4]int, properties BendingProperties) *Bending {
	set, _ := newDihedralSet(p, r, elements)
	b := &Bending{dihedralSet: set}
	b.SetProperties(properties)
	return b
}

func (b *Bending) SetProperties(properties BendingProperties) {
	b.bucklingRatio = mgl64.Clamp(properties.BucklingRatio, 0, 1)
	b.stiffness = NewWeightedValue(properties.Stiffness, b.weights(properties.StiffnessMap), MinStiffness, MaxStiffness)
	b.bucklingStiffness = NewWeightedValue(properties.BucklingStiffness, b.weights(properties.BucklingMap), MinStiffness, MaxStiffness)
}

func (b *Bending) Init(p *particle.Particles) {
	b.updateBuckling(p)
}

func (b *Bending) ApplyProperties(dt float64, iterations int) {
	b.iteration.update(b.stiffness, len(b.constraints), dt, iterations)
	b.bucklingIteration.update(b.bucklingStiffness, len(b.constraints), dt, iterations)
}

func (b *Bending) Apply(p *particle.Particles, dt float64) {
	pipeline.ForColors(b.workers, b.colorOffsets, func(i int) {
		k := b.iteration.at(i)
		if b.buckled[i] {
			k = b.bucklingIteration.at(i)
		}
		b.project(p, i, k)
	})
}

// XPBDBending is the compliant dihedral angle constraint.
type XPBDBending struct {
	dihedralSet
	stiffness         WeightedValue
	bucklingStiffness WeightedValue
	dampingRatio      WeightedValue
	lambdas           Lambdas
}

func NewXPBDBending(p *particle.Particles, r particle.Range, elements [][4]int, properties BendingProperties) *XPBDBending {
	set, _ := newDihedralSet(p, r, elements)
	b := &XPBDBending{
		dihedralSet: set,
		lambdas:     NewLambdas(len(set.constraints)),
	}
	b.SetProperties(properties)
	return b
}

func (b *XPBDBending) SetProperties(properties BendingProperties) {
	b.bucklingRatio = mgl64.Clamp(properties.BucklingRatio, 0, 1)
	b.stiffness = NewWeightedValue(properties.Stiffness, b.weights(properties.StiffnessMap), XPBDMinStiffness, XPBDMaxStiffness)
	b.bucklingStiffness = NewWeightedValue(properties.BucklingStiffness, b.weights(properties.BucklingMap), XPBDMinStiffness, XPBDMaxStiffness)
	b.dampingRatio = NewWeightedValue(properties.DampingRatio, b.weights(properties.DampingMap), MinDampingRatio, MaxDampingRatio)
}

func (b *XPBDBending) Init(p *particle.Particles) {
	b.lambdas.Reset()
	b.updateBuckling(p)
}

// See XPBDSpring.ApplyProperties.
func (b *XPBDBending) ApplyProperties(dt float64, iterations int) {}

func (b *XPBDBending) Apply(p *particle.Particles, dt float64) {
	pipeline.ForColors(b.workers, b.colorOffsets, func(i int) {
		k := b.stiffness.At(i)
		if b.buckled[i] {
			k = b.bucklingStiffness.At(i)
		}
		b.projectCompliant(p, i, dt, k, b.dampingRatio.At(i), b.lambdas)
	})
}

func positions4(positions []mgl64.Vec3, element [4]int) [4]mgl64.Vec3 {
	return [4]mgl64.Vec3{positions[element[0]], positions[element[1]], positions[element[2]], positions[element[3]]}
}

// dihedralAngle returns the signed angle between the two triangles of the
// element {edge0, edge1, wing0, wing1}, 0 when flat, and its gradient with
// respect to each position. ok is false for a degenerate element.
func dihedralAngle(x [4]mgl64.Vec3) (float64, [4]mgl64.Vec3, bool) {
	e0, e1, w0, w1 := x[0], x[1], x[2], x[3]

	edge := e1.Sub(e0)
	edgeLength := edge.Len()
	n1 := w0.Sub(e0).Cross(w0.Sub(e1))
	n2 := w1.Sub(e1).Cross(w1.Sub(e0))
	n1Sqr := n1.LenSqr()
	n2Sqr := n2.LenSqr()
	if edgeLength < epsilon || n1Sqr < epsilon*epsilon || n2Sqr < epsilon*epsilon {
		return 0, [4]mgl64.Vec3{}, false
	}

	unitEdge := edge.Mul(1.0 / edgeLength)
	n1Unit := n1.Mul(1.0 / math.Sqrt(n1Sqr))
	n2Unit := n2.Mul(1.0 / math.Sqrt(n2Sqr))
	angle := math.Atan2(n1Unit.Cross(n2Unit).Dot(unitEdge), n1Unit.Dot(n2Unit))

	n1Scaled := n1.Mul(1.0 / n1Sqr)
	n2Scaled := n2.Mul(1.0 / n2Sqr)
	uWing0 := n1Scaled.Mul(edgeLength)
	uWing1 := n2Scaled.Mul(edgeLength)
	uEdge0 := n1Scaled.Mul(w0.Sub(e1).Dot(unitEdge)).Add(n2Scaled.Mul(w1.Sub(e1).Dot(unitEdge)))
	uEdge1 := n1Scaled.Mul(-w0.Sub(e0).Dot(unitEdge)).Sub(n2Scaled.Mul(w1.Sub(e0).Dot(unitEdge)))

	return angle, [4]mgl64.Vec3{uEdge0.Mul(-1), uEdge1.Mul(-1), uWing0.Mul(-1), uWing1.Mul(-1)}, true
}

// wrapAngle brings an angle back into (-pi, pi].
func wrapAngle(angle float64) float64 {
	for angle > math.Pi {
		angle -= 2 * math.Pi
	}
	for angle <= -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}

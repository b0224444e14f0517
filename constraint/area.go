package constraint

import (
	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
	"github.com/go-gl/mathgl/mgl64"
)

// AreaSpring keeps the area of each triangle at its rest value.
type AreaSpring struct {
	elementSet[[3]int]
	restAreas []float64
	stiffness WeightedValue
	iteration iterationStiffness
}

func NewAreaSpring(p *particle.Particles, r particle.Range, triangles [][3]int, stiffness config.Range, weightMap []float64) *AreaSpring {
	set, _ := newElementSet(p, r, triangles)
	a := &AreaSpring{
		elementSet: set,
		restAreas:  make([]float64, len(set.constraints)),
	}
	for i, t := range set.constraints {
		a.restAreas[i] = 0.5 * p.X[t[1]].Sub(p.X[t[0]]).Cross(p.X[t[2]].Sub(p.X[t[0]])).Len()
	}
	a.SetProperties(stiffness, weightMap)
	return a
}

func (a *AreaSpring) SetProperties(stiffness config.Range, weightMap []float64) {
	a.stiffness = NewWeightedValue(stiffness, a.weights(weightMap), MinStiffness, MaxStiffness)
}

func (a *AreaSpring) RestAreas() []float64 {
	return a.restAreas
}

func (a *AreaSpring) Init(p *particle.Particles) {}

func (a *AreaSpring) ApplyProperties(dt float64, iterations int) {
	a.iteration.update(a.stiffness, len(a.constraints), dt, iterations)
}

func (a *AreaSpring) Apply(p *particle.Particles, dt float64) {
	pipeline.ForColors(a.workers, a.colorOffsets, func(i int) {
		a.apply(p, i)
	})
}

func (a *AreaSpring) apply(p *particle.Particles, i int) {
	t := a.constraints[i]
	p1, p2, p3 := p.P[t[0]], p.P[t[1]], p.P[t[2]]

	normal, doubleArea, ok := normalize(p2.Sub(p1).Cross(p3.Sub(p1)))
	if !ok {
		return
	}

	gradients := [3]mgl64.Vec3{
		normal.Cross(p3.Sub(p2)).Mul(0.5),
		normal.Cross(p1.Sub(p3)).Mul(0.5),
		normal.Cross(p2.Sub(p1)).Mul(0.5),
	}
	var weight float64
	for j := 0; j < 3; j++ {
		weight += p.InvM[t[j]] * gradients[j].LenSqr()
	}
	if weight < epsilon {
		return
	}

	scale := a.iteration.at(i) * (0.5*doubleArea - a.restAreas[i]) / weight
	for j := 0; j < 3; j++ {
		p.Displace(t[j], gradients[j].Mul(-scale))
	}
}

// AxialSpring decomposes each triangle {p1, p2, p3} into a spring between p1
// and the point b*p2 + (1-b)*p3 of the opposite edge closest to it at rest.
type AxialSpring struct {
	elementSet[[3]int]
	barycentrics []float64
	restLengths  []float64
	stiffness    WeightedValue
	iteration    iterationStiffness
}

// NewAxialSpring rotates the vertices of every triangle so that the foot of
// the first vertex lies on the opposite edge.
func NewAxialSpring(p *particle.Particles, r particle.Range, triangles [][3]int, stiffness config.Range, weightMap []float64) *AxialSpring {
	rotated := make([][3]int, len(triangles))
	for i, t := range triangles {
		rotated[i] = rotateAxial(p.X, t)
	}

	set, _ := newElementSet(p, r, rotated)
	a := &AxialSpring{
		elementSet:   set,
		barycentrics: make([]float64, len(set.constraints)),
		restLengths:  make([]float64, len(set.constraints)),
	}
	for i, t := range set.constraints {
		b := axialBarycentric(p.X[t[0]], p.X[t[1]], p.X[t[2]])
		a.barycentrics[i] = b
		a.restLengths[i] = p.X[t[0]].Sub(p.X[t[1]].Mul(b).Add(p.X[t[2]].Mul(1 - b))).Len()
	}
	a.SetProperties(stiffness, weightMap)
	return a
}

// axialBarycentric returns b such that b*p2 + (1-b)*p3 is the projection of
// p1 on the line (p2, p3).
func axialBarycentric(p1, p2, p3 mgl64.Vec3) float64 {
	edge := p2.Sub(p3)
	lengthSqr := edge.LenSqr()
	if lengthSqr < epsilon {
		return 0.5
	}
	return p1.Sub(p3).Dot(edge) / lengthSqr
}

func rotateAxial(positions []mgl64.Vec3, t [3]int) [3]int {
	for r := 0; r < 3; r++ {
		candidate := [3]int{t[r], t[(r+1)%3], t[(r+2)%3]}
		b := axialBarycentric(positions[candidate[0]], positions[candidate[1]], positions[candidate[2]])
		if b >= 0 && b <= 1 {
			return candidate
		}
	}
	return t
}

func (a *AxialSpring) SetProperties(stiffness config.Range, weightMap []float64) {
	a.stiffness = NewWeightedValue(stiffness, a.weights(weightMap), MinStiffness, MaxStiffness)
}

func (a *AxialSpring) Init(p *particle.Particles) {}

func (a *AxialSpring) ApplyProperties(dt float64, iterations int) {
	a.iteration.update(a.stiffness, len(a.constraints), dt, iterations)
}

func (a *AxialSpring) Apply(p *particle.Particles, dt float64) {
	pipeline.ForColors(a.workers, a.colorOffsets, func(i int) {
		a.apply(p, i)
	})
}

func (a *AxialSpring) apply(p *particle.Particles, i int) {
	t := a.constraints[i]
	b := a.barycentrics[i]
	w1, w2, w3 := p.InvM[t[0]], p.InvM[t[1]], p.InvM[t[2]]
	weight := w1 + b*b*w2 + (1-b)*(1-b)*w3
	if weight < epsilon {
		return
	}

	axis := p.P[t[1]].Mul(b).Add(p.P[t[2]].Mul(1 - b))
	direction, length, ok := normalize(p.P[t[0]].Sub(axis))
	if !ok {
		return
	}

	delta := direction.Mul(a.iteration.at(i) * (length - a.restLengths[i]) / weight)
	p.Displace(t[0], delta.Mul(-1))
	p.Displace(t[1], delta.Mul(b))
	p.Displace(t[2], delta.Mul(1-b))
}

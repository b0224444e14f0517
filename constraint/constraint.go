// Package constraint implements the PBD and XPBD constraint kinds solved by
// the evolution. Every kind works on a particle.Range and reorders its
// constraints by color at construction, so that Apply can run each color in
// parallel.
package constraint

import (
	"fmt"
	"math"
	"slices"

	"github.com/akmonengine/silk/coloring"
	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// ParameterFrequency is the solver frequency (Hz) at which a PBD stiffness
	// describes the correction applied over one step.
	ParameterFrequency = 120.0

	MinStiffness = 0.0
	MaxStiffness = 1.0

	// XPBD stiffness bounds, in N/m
	XPBDMinStiffness = 1e-4
	XPBDMaxStiffness = 1e7

	MinDampingRatio = 0.0
	MaxDampingRatio = 1000.0

	epsilon = 1e-12
)

// Set is the contract shared by every constraint kind.
type Set interface {
	// Init refreshes the per step data, before the first iteration.
	Init(p *particle.Particles)
	// ApplyProperties converts the user stiffness into solver coefficients.
	ApplyProperties(dt float64, iterations int)
	// Apply projects the constraints once.
	Apply(p *particle.Particles, dt float64)
}

// WeightedValue is a [low, high] range modulated per constraint by a weight in
// [0, 1]. Without weights, every constraint uses low.
type WeightedValue struct {
	low     float64
	high    float64
	weights []float64
}

// NewWeightedValue clamps the range to [minValue, maxValue]. weights holds one
// value per constraint and can be nil.
func NewWeightedValue(r config.Range, weights []float64, minValue, maxValue float64) WeightedValue {
	return WeightedValue{
		low:     mgl64.Clamp(r.Low, minValue, maxValue),
		high:    mgl64.Clamp(r.High, minValue, maxValue),
		weights: weights,
	}
}

// At returns the value of constraint i.
func (w WeightedValue) At(i int) float64 {
	if len(w.weights) == 0 {
		return w.low
	}
	return w.low + w.weights[i]*(w.high-w.low)
}

func (w WeightedValue) Low() float64 {
	return w.low
}

func (w WeightedValue) High() float64 {
	return w.high
}

// IsUniform reports whether every constraint shares the same value.
func (w WeightedValue) IsUniform() bool {
	return len(w.weights) == 0 || w.low == w.high
}

// PBDStiffness converts a stiffness in [0, 1], defined at ParameterFrequency,
// into the stiffness of one of the iterations of a step of length dt.
func PBDStiffness(k, dt float64, iterations int) float64 {
	k = mgl64.Clamp(k, MinStiffness, MaxStiffness)
	if iterations <= 0 || dt <= 0 {
		return 0
	}
	if k >= MaxStiffness {
		return MaxStiffness
	}
	return 1 - math.Pow(1-k, dt*ParameterFrequency/float64(iterations))
}

// iterationStiffness caches the per iteration value of a PBD WeightedValue.
type iterationStiffness struct {
	value  float64
	values []float64
}

func (s *iterationStiffness) update(w WeightedValue, size int, dt float64, iterations int) {
	if w.IsUniform() {
		s.value = PBDStiffness(w.low, dt, iterations)
		s.values = nil
		return
	}
	s.values = slices.Grow(s.values[:0], size)[:size]
	for i := range s.values {
		s.values[i] = PBDStiffness(w.At(i), dt, iterations)
	}
}

func (s *iterationStiffness) at(i int) float64 {
	if s.values == nil {
		return s.value
	}
	return s.values[i]
}

// Lambdas holds the Lagrange multipliers of a compliant set.
type Lambdas []float64

func NewLambdas(size int) Lambdas {
	return make(Lambdas, size)
}

// Reset zeroes the multipliers, at the start of a step.
func (l Lambdas) Reset() {
	clear(l)
}

// elementSet holds constraints of one arity sorted by color.
type elementSet[E coloring.Element] struct {
	particles    particle.Range
	constraints  []E
	colorOffsets []int
	workers      int
}

// newElementSet validates, colors and sorts a copy of the constraints. The
// returned order maps each new position to the index in the input.
func newElementSet[E coloring.Element](p *particle.Particles, r particle.Range, constraints []E) (elementSet[E], []int) {
	elements := slices.Clone(constraints)
	for i, element := range elements {
		for k := 0; k < len(element); k++ {
			if !r.Contains(element[k]) {
				panic(fmt.Sprintf("constraint: element %d index %d out of particle range [%d, %d)", i, element[k], r.Offset, r.End()))
			}
		}
	}

	colors := coloring.ComputeGraphColoring(elements, p.InvM)
	offsets, order := coloring.Reorder(elements, colors)

	return elementSet[E]{
		particles:    r,
		constraints:  elements,
		colorOffsets: offsets,
		workers:      pipeline.DefaultWorkers,
	}, order
}

// Size returns the number of constraints.
func (s *elementSet[E]) Size() int {
	return len(s.constraints)
}

// Constraints returns the constraints, sorted by color.
func (s *elementSet[E]) Constraints() []E {
	return s.constraints
}

// ColorOffsets returns the color runs: color c spans [offsets[c], offsets[c+1]).
func (s *elementSet[E]) ColorOffsets() []int {
	return s.colorOffsets
}

// Range returns the particles the set works on.
func (s *elementSet[E]) Range() particle.Range {
	return s.particles
}

// SetWorkers sets how many goroutines Apply uses for each color.
func (s *elementSet[E]) SetWorkers(workers int) {
	s.workers = max(pipeline.DefaultWorkers, workers)
}

// weights averages a per vertex weight map over each constraint. It returns
// nil for an empty map.
func (s *elementSet[E]) weights(weightMap []float64) []float64 {
	if len(weightMap) == 0 {
		return nil
	}
	if len(weightMap) != s.particles.Size {
		panic(fmt.Sprintf("constraint: weight map has %d values, expected %d", len(weightMap), s.particles.Size))
	}

	weights := make([]float64, len(s.constraints))
	for i, element := range s.constraints {
		var sum float64
		for k := 0; k < len(element); k++ {
			sum += weightMap[element[k]-s.particles.Offset]
		}
		weights[i] = mgl64.Clamp(sum/float64(len(element)), 0, 1)
	}
	return weights
}

// vertexWeights checks and clamps a per vertex weight map, nil when empty.
func vertexWeights(r particle.Range, weightMap []float64) []float64 {
	if len(weightMap) == 0 {
		return nil
	}
	if len(weightMap) != r.Size {
		panic(fmt.Sprintf("constraint: weight map has %d values, expected %d", len(weightMap), r.Size))
	}
	weights := make([]float64, len(weightMap))
	for i, w := range weightMap {
		weights[i] = mgl64.Clamp(w, 0, 1)
	}
	return weights
}

// normalize returns the unit vector and the length of v. ok is false for a
// vector too short to have a direction.
func normalize(v mgl64.Vec3) (mgl64.Vec3, float64, bool) {
	length := v.Len()
	if length < epsilon {
		return mgl64.Vec3{}, length, false
	}
	return v.Mul(1.0 / length), length, true
}

// xpbdDamping returns the gamma term of a compliant constraint of stiffness k,
// for a damping ratio relative to the critical damping of the constraint mass.
func xpbdDamping(dampingRatio, k, invMassSum, dt float64) float64 {
	if dampingRatio <= 0 || invMassSum < epsilon {
		return 0
	}
	damping := 2 * dampingRatio * math.Sqrt(k/invMassSum)
	return damping / (k * dt)
}

// xpbdDeltaLambda solves one compliant constraint of value c.
// weight is sum(w_i * |grad_i|^2), dampingTerm is sum(grad_i . (P_i - X_i)).
func xpbdDeltaLambda(c, lambda, alphaTilde, gamma, dampingTerm, weight float64) float64 {
	denominator := (1+gamma)*weight + alphaTilde
	if denominator < epsilon {
		return 0
	}
	return (-c - alphaTilde*lambda - gamma*dampingTerm) / denominator
}

// alphaTilde returns the time scaled compliance of stiffness k.
func alphaTilde(k, dt float64) float64 {
	return 1.0 / (k * dt * dt)
}

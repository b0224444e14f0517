package constraint

import (
	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
	"github.com/go-gl/mathgl/mgl64"
)

// AnisotropicProperties are the directional stiffnesses (N/m) of a woven
// fabric: warp along the pattern U axis, weft along V, bias along diagonals.
type AnisotropicProperties struct {
	BendingProperties
	Warp    config.Range
	WarpMap []float64
	Weft    config.Range
	WeftMap []float64
	Bias    config.Range
	BiasMap []float64
}

// XPBDAnisotropicBending is a compliant dihedral constraint whose stiffness
// depends on the direction of the shared edge in the 2D pattern.
type XPBDAnisotropicBending struct {
	dihedralSet
	// Squared components of the unit pattern edge direction
	warpWeights []float64
	weftWeights []float64
	biasWeights []float64

	warp              WeightedValue
	weft              WeightedValue
	bias              WeightedValue
	bucklingStiffness WeightedValue
	dampingRatio      WeightedValue
	lambdas           Lambdas
}

// NewXPBDAnisotropicBending creates the constraints of the bending elements.
// pattern holds one 2D position per particle of r.
func NewXPBDAnisotropicBending(p *particle.Particles, r particle.Range, elements [][4]int, pattern []mgl64.Vec2, properties AnisotropicProperties) *XPBDAnisotropicBending {
	if len(pattern) != r.Size {
		panic("constraint: anisotropic bending needs one pattern position per particle")
	}

	set, _ := newDihedralSet(p, r, elements)
	b := &XPBDAnisotropicBending{
		dihedralSet: set,
		warpWeights: make([]float64, len(set.constraints)),
		weftWeights: make([]float64, len(set.constraints)),
		biasWeights: make([]float64, len(set.constraints)),
		lambdas:     NewLambdas(len(set.constraints)),
	}
	for i, element := range set.constraints {
		b.warpWeights[i], b.weftWeights[i], b.biasWeights[i] = patternWeights(pattern[element[0]-r.Offset], pattern[element[1]-r.Offset])
	}
	b.SetProperties(properties)
	return b
}

// patternWeights splits an edge direction (x, y) into warp, weft and bias
// weights: bias = 4x²y², warp = x²(1-bias), weft = y²(1-bias). A degenerate
// pattern edge bends as bias.
func patternWeights(a, b mgl64.Vec2) (float64, float64, float64) {
	direction := b.Sub(a)
	length := direction.Len()
	if length < epsilon {
		return 0, 0, 1
	}
	x2 := direction.X() * direction.X() / (length * length)
	y2 := direction.Y() * direction.Y() / (length * length)
	bias := 4 * x2 * y2
	return x2 * (1 - bias), y2 * (1 - bias), bias
}

func (b *XPBDAnisotropicBending) SetProperties(properties AnisotropicProperties) {
	b.bucklingRatio = mgl64.Clamp(properties.BucklingRatio, 0, 1)
	b.warp = NewWeightedValue(properties.Warp, b.weights(properties.WarpMap), XPBDMinStiffness, XPBDMaxStiffness)
	b.weft = NewWeightedValue(properties.Weft, b.weights(properties.WeftMap), XPBDMinStiffness, XPBDMaxStiffness)
	b.bias = NewWeightedValue(properties.Bias, b.weights(properties.BiasMap), XPBDMinStiffness, XPBDMaxStiffness)
	b.bucklingStiffness = NewWeightedValue(properties.BucklingStiffness, b.weights(properties.BucklingMap), XPBDMinStiffness, XPBDMaxStiffness)
	b.dampingRatio = NewWeightedValue(properties.DampingRatio, b.weights(properties.DampingMap), MinDampingRatio, MaxDampingRatio)
}

// Stiffness returns the stiffness of element i when not buckled.
func (b *XPBDAnisotropicBending) Stiffness(i int) float64 {
	k := b.warpWeights[i]*b.warp.At(i) + b.weftWeights[i]*b.weft.At(i) + b.biasWeights[i]*b.bias.At(i)
	return mgl64.Clamp(k, XPBDMinStiffness, XPBDMaxStiffness)
}

func (b *XPBDAnisotropicBending) Init(p *particle.Particles) {
	b.lambdas.Reset()
	b.updateBuckling(p)
}

func (b *XPBDAnisotropicBending) ApplyProperties(dt float64, iterations int) {}

func (b *XPBDAnisotropicBending) Apply(p *particle.Particles, dt float64) {
	pipeline.ForColors(b.workers, b.colorOffsets, func(i int) {
		k := b.Stiffness(i)
		if b.buckled[i] {
			k = b.bucklingStiffness.At(i)
		}
		b.projectCompliant(p, i, dt, k, b.dampingRatio.At(i), b.lambdas)
	})
}

package constraint

import (
	"math"

	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

const (
	// MaxYoungsModulus bounds the stiffness of the corotated material, in Pa.
	MaxYoungsModulus = 1e12
	MaxPoissonRatio  = 0.499
)

// CorotatedProperties describes an isotropic elastic material.
type CorotatedProperties struct {
	YoungsModulus float64
	PoissonRatio  float64
	DampingRatio  float64
}

// LameParameters converts a Young's modulus and a Poisson ratio into the Lamé
// parameters (mu, lambda).
func LameParameters(youngsModulus, poissonRatio float64) (float64, float64) {
	mu := youngsModulus / (2 * (1 + poissonRatio))
	lambda := youngsModulus * poissonRatio / ((1 + poissonRatio) * (1 - 2*poissonRatio))
	return mu, lambda
}

// XPBDCorotated is the corotated linear elasticity of tetrahedra. Each element
// solves a deviatoric multiplier, ||F - R||, then a volumetric one, det(F) - 1.
type XPBDCorotated struct {
	elementSet[[4]int]
	inverseRest  []mgl64.Mat3
	restVolumes  []float64
	mu           float64
	lambda       float64
	dampingRatio float64
	// Two multipliers per element: deviatoric then volumetric
	lambdas Lambdas
}

// NewXPBDCorotated creates one element per tetrahedron {x0, x1, x2, x3}. The
// rest shape matrix of each element is inverted once, degenerate tetrahedra
// are kept but never corrected.
func NewXPBDCorotated(p *particle.Particles, r particle.Range, tetrahedra [][4]int, properties CorotatedProperties) *XPBDCorotated {
	set, _ := newElementSet(p, r, tetrahedra)
	c := &XPBDCorotated{
		elementSet:  set,
		inverseRest: make([]mgl64.Mat3, len(set.constraints)),
		restVolumes: make([]float64, len(set.constraints)),
		lambdas:     NewLambdas(2 * len(set.constraints)),
	}
	for i, tet := range set.constraints {
		dm := shapeMatrix(p.X, tet)
		det := dm.Det()
		if math.Abs(det) < epsilon {
			continue
		}
		c.inverseRest[i] = dm.Inv()
		c.restVolumes[i] = math.Abs(det) / 6
	}
	c.SetProperties(properties)
	return c
}

func (c *XPBDCorotated) SetProperties(properties CorotatedProperties) {
	youngsModulus := mgl64.Clamp(properties.YoungsModulus, XPBDMinStiffness, MaxYoungsModulus)
	poissonRatio := mgl64.Clamp(properties.PoissonRatio, 0, MaxPoissonRatio)
	c.mu, c.lambda = LameParameters(youngsModulus, poissonRatio)
	c.dampingRatio = mgl64.Clamp(properties.DampingRatio, MinDampingRatio, MaxDampingRatio)
}

func (c *XPBDCorotated) RestVolumes() []float64 {
	return c.restVolumes
}

func (c *XPBDCorotated) Init(p *particle.Particles) {
	c.lambdas.Reset()
}

func (c *XPBDCorotated) ApplyProperties(dt float64, iterations int) {}

func (c *XPBDCorotated) Apply(p *particle.Particles, dt float64) {
	pipeline.ForColors(c.workers, c.colorOffsets, func(i int) {
		if c.restVolumes[i] == 0 {
			return
		}
		c.applyDeviatoric(p, i, dt)
		c.applyVolumetric(p, i, dt)
	})
}

// deformationGradient returns F = Ds * Dm^-1.
func (c *XPBDCorotated) deformationGradient(p *particle.Particles, i int) mgl64.Mat3 {
	return shapeMatrix(p.P, c.constraints[i]).Mul3(c.inverseRest[i])
}

func (c *XPBDCorotated) applyDeviatoric(p *particle.Particles, i int, dt float64) {
	f := c.deformationGradient(p, i)
	rotation, ok := polarRotation(f)
	if !ok {
		return
	}

	strain := f.Sub(rotation)
	value := frobeniusNorm(strain)
	if value < epsilon {
		return
	}

	k := 2 * c.mu * c.restVolumes[i]
	c.solve(p, i, dt, value, strain.Mul(1.0/value), k, 2*i)
}

func (c *XPBDCorotated) applyVolumetric(p *particle.Particles, i int, dt float64) {
	f := c.deformationGradient(p, i)
	f1, f2, f3 := f.Col(0), f.Col(1), f.Col(2)
	gradient := mgl64.Mat3FromCols(f2.Cross(f3), f3.Cross(f1), f1.Cross(f2))

	k := c.lambda * c.restVolumes[i]
	if k < epsilon {
		return
	}
	c.solve(p, i, dt, f.Det()-1, gradient, k, 2*i+1)
}

// solve applies one compliant correction given dC/dF.
func (c *XPBDCorotated) solve(p *particle.Particles, i int, dt, value float64, dCdF mgl64.Mat3, k float64, lambdaIndex int) {
	tet := c.constraints[i]

	// Particle gradients are the columns of dC/dF * Dm^-T, x0 takes minus their sum
	g := dCdF.Mul3(c.inverseRest[i].Transpose())
	gradients := [4]mgl64.Vec3{{}, g.Col(0), g.Col(1), g.Col(2)}
	gradients[0] = gradients[1].Add(gradients[2]).Add(gradients[3]).Mul(-1)

	var weight, invMassSum, dampingTerm float64
	for j := 0; j < 4; j++ {
		index := tet[j]
		weight += p.InvM[index] * gradients[j].LenSqr()
		invMassSum += p.InvM[index]
		dampingTerm += gradients[j].Dot(p.P[index].Sub(p.X[index]))
	}
	if weight < epsilon {
		return
	}

	gamma := xpbdDamping(c.dampingRatio, k, invMassSum, dt)
	dLambda := xpbdDeltaLambda(value, c.lambdas[lambdaIndex], alphaTilde(k, dt), gamma, dampingTerm, weight)
	c.lambdas[lambdaIndex] += dLambda

	for j := 0; j < 4; j++ {
		index := tet[j]
		p.Displace(index, gradients[j].Mul(dLambda))
	}
}

// shapeMatrix returns the edge matrix [x1-x0, x2-x0, x3-x0].
func shapeMatrix(positions []mgl64.Vec3, tet [4]int) mgl64.Mat3 {
	x0 := positions[tet[0]]
	return mgl64.Mat3FromCols(positions[tet[1]].Sub(x0), positions[tet[2]].Sub(x0), positions[tet[3]].Sub(x0))
}

func frobeniusNorm(m mgl64.Mat3) float64 {
	var sum float64
	for _, v := range m {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// polarRotation returns the rotation R of the polar decomposition F = R*S,
// computed from the singular value decomposition F = U*Σ*V^T as R = U*V^T.
// A reflection is turned into a rotation by flipping the last singular vector.
func polarRotation(f mgl64.Mat3) (mgl64.Mat3, bool) {
	data := make([]float64, 9)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			data[row*3+col] = f.At(row, col)
		}
	}

	var svd mat.SVD
	if !svd.Factorize(mat.NewDense(3, 3, data), mat.SVDFull) {
		return mgl64.Ident3(), false
	}
	var u, v, r mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		for row := 0; row < 3; row++ {
			u.Set(row, 2, -u.At(row, 2))
		}
		r.Mul(&u, v.T())
	}

	var rotation mgl64.Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			rotation.Set(row, col, r.At(row, col))
		}
	}
	return rotation, true
}

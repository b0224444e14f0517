package collision

import (
	"github.com/akmonengine/silk/constraint"
	"github.com/akmonengine/silk/particle"
)

// ContourMinimization runs once after the iterations. Each intersection found
// by the analysis that still exists gets one corrective displacement: the
// penetrating endpoint of the edge is pushed back to the side of the other
// endpoint.
type ContourMinimization struct {
	collisions *TriangleMeshCollisions
	resolved   int
}

func NewContourMinimization(collisions *TriangleMeshCollisions) *ContourMinimization {
	return &ContourMinimization{collisions: collisions}
}

// Resolved returns how many intersections the last Apply corrected.
func (m *ContourMinimization) Resolved() int {
	return m.resolved
}

func (m *ContourMinimization) Init(p *particle.Particles) {}

func (m *ContourMinimization) ApplyProperties(dt float64, iterations int) {}

// Apply corrects the intersections in order, the same particle can be moved by
// consecutive intersections.
func (m *ContourMinimization) Apply(p *particle.Particles, dt float64) {
	m.resolved = 0
	options := m.collisions.options
	k := constraint.PBDStiffness(options.Stiffness, dt, 1)

	for _, intersection := range m.collisions.gia.Intersections() {
		triangle := m.collisions.mesh.Elements[intersection.Triangle]
		a, b, c := p.P[triangle[0]], p.P[triangle[1]], p.P[triangle[2]]
		edge := intersection.Edge
		if _, _, ok := segmentTriangle(p.P[edge[0]], p.P[edge[1]], a, b, c); !ok {
			continue
		}
		normal, ok := triangleNormal(a, b, c)
		if !ok {
			continue
		}

		penetrating, other := edge[0], edge[1]
		if penetratingEndpoint(p, intersection, triangle) == edge[1] {
			penetrating, other = edge[1], edge[0]
		}
		side := sign(p.P[other].Sub(a).Dot(normal))
		bary := closestPointOnTriangle(p.P[penetrating], a, b, c)
		if _, moved := pushOut(p, penetrating, triangle, bary, normal, side, options.Thickness, k); moved {
			m.resolved++
		}
	}
}

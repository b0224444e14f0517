package collision

import (
	"github.com/akmonengine/silk/actor"
	"github.com/akmonengine/silk/mesh"
	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
	"github.com/go-gl/mathgl/mgl64"
)

// GIAColor flags the vertices involved in a mesh intersection.
type GIAColor uint8

const (
	GIAColorNone GIAColor = 0
	// Vertex of a triangle crossed by an edge
	GIAColorCrossed GIAColor = 1 << 0
	// Endpoint of a crossing edge that went through the triangle
	GIAColorPenetrating GIAColor = 1 << 1
	// Vertex of the region flooded from a penetrating vertex. The region is
	// tangled with the other sheet but its vertices did not cross it.
	GIAColorFlooded GIAColor = 1 << 2
)

// MaxFloodDepth bounds, in edges, the region flooded from a penetrating vertex.
const MaxFloodDepth = 4

// MaxIntersectionsPerEdge is the number of triangles an edge can be found
// crossing in one step, the lowest triangle indices are kept.
const MaxIntersectionsPerEdge = 8

// Intersection is a mesh edge crossing a mesh triangle.
type Intersection struct {
	Edge        [2]int
	Triangle    int
	T           float64    // Position of the crossing along the edge
	Barycentric mgl64.Vec3 // Position of the crossing on the triangle
}

// GIA is the global intersection analysis of a mesh: it finds the edges
// crossing triangles and colors the tangled regions around them.
type GIA struct {
	mesh          *mesh.TriangleMesh
	edges         [][2]int
	colors        []GIAColor
	intersections []Intersection
	perEdge       [][]Intersection
}

func newGIA(m *mesh.TriangleMesh) *GIA {
	edges := m.UniqueEdges()
	return &GIA{
		mesh:    m,
		edges:   edges,
		colors:  make([]GIAColor, m.NumVertices),
		perEdge: make([][]Intersection, len(edges)),
	}
}

// Color returns the flags of a particle of the mesh.
func (g *GIA) Color(index int) GIAColor {
	return g.colors[index-g.mesh.Offset]
}

// Intersections returns the edge/triangle crossings found at the last
// classification, sorted by edge.
func (g *GIA) Intersections() []Intersection {
	return g.intersections
}

// Tangled reports whether a particle went through the crossed region the
// triangle belongs to. Only such particles are pushed back through it, the
// flooded vertices keep their side.
func (g *GIA) Tangled(index int, triangle [3]int) bool {
	if g.Color(index)&GIAColorPenetrating == 0 {
		return false
	}
	for _, v := range triangle {
		if g.Color(v)&GIAColorCrossed != 0 {
			return true
		}
	}
	return false
}

func (g *GIA) reset() {
	clear(g.colors)
	g.intersections = g.intersections[:0]
}

// classify detects the intersections on the predicted positions, then floods
// the penetrating regions. The hash must hold the current triangles.
func (g *GIA) classify(p *particle.Particles, hash *SpatialHash, workers int) {
	g.reset()

	pipeline.For(workers, len(g.edges), func(e int) {
		edge := g.edges[e]
		p0, p1 := p.P[edge[0]], p.P[edge[1]]
		found := g.perEdge[e][:0]

		var candidates [64]int
		for _, t := range hash.QueryBounds(candidates[:0], actor.NewAABBFromPoints(p0, p1)) {
			triangle := g.mesh.Elements[t]
			if sharesVertex(triangle, edge[0], edge[1]) {
				continue
			}
			s, bary, ok := segmentTriangle(p0, p1, p.P[triangle[0]], p.P[triangle[1]], p.P[triangle[2]])
			if !ok {
				continue
			}
			found = append(found, Intersection{Edge: edge, Triangle: t, T: s, Barycentric: bary})
			if len(found) == MaxIntersectionsPerEdge {
				break
			}
		}
		g.perEdge[e] = found
	})

	seeds := make([]int, 0)
	for _, found := range g.perEdge {
		for _, intersection := range found {
			g.intersections = append(g.intersections, intersection)

			triangle := g.mesh.Elements[intersection.Triangle]
			for _, v := range triangle {
				g.colors[v-g.mesh.Offset] |= GIAColorCrossed
			}
			penetrating := penetratingEndpoint(p, intersection, triangle)
			g.colors[penetrating-g.mesh.Offset] |= GIAColorPenetrating
			seeds = append(seeds, penetrating)
		}
	}

	g.flood(seeds)
}

// penetratingEndpoint returns the endpoint of the edge closest to the plane of
// the triangle, the one that went through last.
func penetratingEndpoint(p *particle.Particles, intersection Intersection, triangle [3]int) int {
	a, b, c := p.P[triangle[0]], p.P[triangle[1]], p.P[triangle[2]]
	normal, ok := triangleNormal(a, b, c)
	if !ok {
		return intersection.Edge[0]
	}
	d0 := abs(p.P[intersection.Edge[0]].Sub(a).Dot(normal))
	d1 := abs(p.P[intersection.Edge[1]].Sub(a).Dot(normal))
	if d1 < d0 {
		return intersection.Edge[1]
	}
	return intersection.Edge[0]
}

// flood spreads the flooded color breadth first from the seeds, up to
// MaxFloodDepth edges, without entering crossed vertices.
func (g *GIA) flood(seeds []int) {
	depth := make(map[int]int, len(seeds))
	queue := make([]int, 0, len(seeds))
	for _, seed := range seeds {
		if _, ok := depth[seed]; !ok {
			depth[seed] = 0
			queue = append(queue, seed)
		}
	}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if depth[v] == MaxFloodDepth {
			continue
		}
		for _, n := range g.mesh.Neighbors(v) {
			if _, ok := depth[n]; ok {
				continue
			}
			if g.colors[n-g.mesh.Offset]&GIAColorCrossed != 0 {
				continue
			}
			depth[n] = depth[v] + 1
			g.colors[n-g.mesh.Offset] |= GIAColorFlooded
			queue = append(queue, n)
		}
	}
}

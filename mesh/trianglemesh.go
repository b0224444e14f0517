// Package mesh provides the read-only topology queries consumed by the solver:
// adjacency, N-ring neighborhoods, bending elements, tether paths.
package mesh

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// TriangleMesh is a triangle list over the particle range [Offset, Offset+NumVertices).
// Indices stored in Elements are particle indices.
type TriangleMesh struct {
	Elements    [][3]int
	Offset      int
	NumVertices int

	neighbors [][]int // Sorted one-ring per local vertex
	incident  [][]int // Triangles using each local vertex
}

// NewTriangleMesh builds the adjacency of the triangles. Every index must lie
// in [offset, offset+numVertices).
func NewTriangleMesh(elements [][3]int, offset, numVertices int) *TriangleMesh {
	m := &TriangleMesh{
		Elements:    elements,
		Offset:      offset,
		NumVertices: numVertices,
		neighbors:   make([][]int, numVertices),
		incident:    make([][]int, numVertices),
	}

	for t, element := range elements {
		for i := 0; i < 3; i++ {
			v := element[i]
			if v < offset || v >= offset+numVertices {
				panic(fmt.Sprintf("mesh: triangle %d index %d out of range [%d, %d)", t, v, offset, offset+numVertices))
			}
			local := v - offset
			m.incident[local] = append(m.incident[local], t)
			m.neighbors[local] = append(m.neighbors[local], element[(i+1)%3], element[(i+2)%3])
		}
	}
	for i := range m.neighbors {
		m.neighbors[i] = sortUnique(m.neighbors[i])
	}

	return m
}

func sortUnique(values []int) []int {
	if len(values) == 0 {
		return values
	}
	sort.Ints(values)
	n := 1
	for i := 1; i < len(values); i++ {
		if values[i] != values[n-1] {
			values[n] = values[i]
			n++
		}
	}
	return values[:n]
}

// Contains reports whether the particle index is a vertex of the mesh range.
func (m *TriangleMesh) Contains(vertex int) bool {
	return vertex >= m.Offset && vertex < m.Offset+m.NumVertices
}

// Neighbors returns the sorted one-ring of a vertex.
func (m *TriangleMesh) Neighbors(vertex int) []int {
	return m.neighbors[vertex-m.Offset]
}

// IncidentTriangles returns the index of the triangles using a vertex.
func (m *TriangleMesh) IncidentTriangles(vertex int) []int {
	return m.incident[vertex-m.Offset]
}

// NRing returns the sorted vertices reachable from vertex in at most n edges,
// vertex itself included.
func (m *TriangleMesh) NRing(vertex int, n int) []int {
	visited := map[int]struct{}{vertex: {}}
	frontier := []int{vertex}
	for ring := 0; ring < n && len(frontier) > 0; ring++ {
		var next []int
		for _, v := range frontier {
			for _, neighbor := range m.Neighbors(v) {
				if _, ok := visited[neighbor]; !ok {
					visited[neighbor] = struct{}{}
					next = append(next, neighbor)
				}
			}
		}
		frontier = next
	}

	ring := make([]int, 0, len(visited))
	for v := range visited {
		ring = append(ring, v)
	}
	sort.Ints(ring)
	return ring
}

// UniqueEdges returns every edge once, as an ordered pair (low, high), sorted.
func (m *TriangleMesh) UniqueEdges() [][2]int {
	var edges [][2]int
	for local, neighbors := range m.neighbors {
		v := local + m.Offset
		for _, neighbor := range neighbors {
			if neighbor > v {
				edges = append(edges, [2]int{v, neighbor})
			}
		}
	}
	return edges
}

// UniqueAdjacentElements returns one bending element per interior edge:
// {edge0, edge1, opposite0, opposite1}. Non manifold edges produce one element
// per pair of triangles sharing the edge.
func (m *TriangleMesh) UniqueAdjacentElements() [][4]int {
	edgeWings := make(map[[2]int][]int)
	var order [][2]int

	for _, element := range m.Elements {
		for i := 0; i < 3; i++ {
			a, b, c := element[i], element[(i+1)%3], element[(i+2)%3]
			key := [2]int{min(a, b), max(a, b)}
			if _, ok := edgeWings[key]; !ok {
				order = append(order, key)
			}
			edgeWings[key] = append(edgeWings[key], c)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i][0] != order[j][0] {
			return order[i][0] < order[j][0]
		}
		return order[i][1] < order[j][1]
	})

	var elements [][4]int
	for _, key := range order {
		wings := edgeWings[key]
		for i := 0; i < len(wings); i++ {
			for j := i + 1; j < len(wings); j++ {
				if wings[i] == wings[j] {
					continue
				}
				elements = append(elements, [4]int{key[0], key[1], wings[i], wings[j]})
			}
		}
	}
	return elements
}

// VertexAreas returns, for each vertex of the range, a third of the area of
// every triangle it belongs to. Indexed by local vertex.
func (m *TriangleMesh) VertexAreas(positions []mgl64.Vec3) []float64 {
	areas := make([]float64, m.NumVertices)
	for _, element := range m.Elements {
		area := TriangleArea(positions[element[0]], positions[element[1]], positions[element[2]])
		for i := 0; i < 3; i++ {
			areas[element[i]-m.Offset] += area / 3
		}
	}
	return areas
}

// TriangleArea returns the area of the triangle abc.
func TriangleArea(a, b, c mgl64.Vec3) float64 {
	return 0.5 * b.Sub(a).Cross(c.Sub(a)).Len()
}

// TriangleNormal returns the unit normal of abc, or a zero vector for a
// degenerate triangle.
func TriangleNormal(a, b, c mgl64.Vec3) mgl64.Vec3 {
	normal := b.Sub(a).Cross(c.Sub(a))
	length := normal.Len()
	if length < 1e-12 {
		return mgl64.Vec3{}
	}
	return normal.Mul(1 / length)
}

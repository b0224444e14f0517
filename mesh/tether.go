package mesh

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Tether attaches the dynamic particle End to the kinematic particle Start.
type Tether struct {
	Start      int
	End        int
	RestLength float64
}

// KinematicIslands groups the kinematic vertices of the mesh into connected
// components. Islands and their vertices are sorted by particle index.
func (m *TriangleMesh) KinematicIslands(invM []float64) [][]int {
	island := make([]int, m.NumVertices)
	for i := range island {
		island[i] = -1
	}

	var islands [][]int
	for local := 0; local < m.NumVertices; local++ {
		v := local + m.Offset
		if invM[v] != 0 || island[local] >= 0 {
			continue
		}

		id := len(islands)
		island[local] = id
		members := []int{v}
		stack := []int{v}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, neighbor := range m.Neighbors(current) {
				if invM[neighbor] != 0 || island[neighbor-m.Offset] >= 0 {
					continue
				}
				island[neighbor-m.Offset] = id
				members = append(members, neighbor)
				stack = append(stack, neighbor)
			}
		}
		sort.Ints(members)
		islands = append(islands, members)
	}
	return islands
}

// ComputeTethers attaches every dynamic vertex to its maxIslands closest
// kinematic islands. Batch k holds the tethers towards the k-th closest island
// of each vertex, so a batch never writes the same particle twice.
//
// Distances are measured along the mesh edges. With geodesic false the rest
// length is the straight line distance to the closest vertex of the island,
// the island still has to be reachable through the mesh.
func (m *TriangleMesh) ComputeTethers(positions []mgl64.Vec3, invM []float64, geodesic bool, maxIslands int) [][]Tether {
	islands := m.KinematicIslands(invM)
	if len(islands) == 0 || maxIslands <= 0 {
		return nil
	}

	// Edge weighted graph over the local vertices, plus one virtual source node
	source := int64(m.NumVertices)
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, edge := range m.UniqueEdges() {
		length := positions[edge[0]].Sub(positions[edge[1]]).Len()
		g.SetWeightedEdge(g.NewWeightedEdge(
			simple.Node(edge[0]-m.Offset),
			simple.Node(edge[1]-m.Offset),
			length,
		))
	}

	type candidate struct {
		start    int
		distance float64
	}
	candidates := make([][]candidate, m.NumVertices)

	for _, members := range islands {
		for _, v := range members {
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(source), simple.Node(v-m.Offset), 0))
		}

		shortest := path.DijkstraFrom(simple.Node(source), g)
		for local := 0; local < m.NumVertices; local++ {
			v := local + m.Offset
			if invM[v] == 0 {
				continue
			}
			nodes, distance := shortest.To(int64(local))
			if len(nodes) < 2 || math.IsInf(distance, 1) {
				continue
			}

			start := int(nodes[1].ID()) + m.Offset
			if !geodesic {
				start, distance = closestPoint(positions, members, positions[v])
			}
			candidates[local] = append(candidates[local], candidate{start: start, distance: distance})
		}

		for _, v := range members {
			g.RemoveEdge(source, int64(v-m.Offset))
		}
	}

	var batches [][]Tether
	for local, list := range candidates {
		sort.SliceStable(list, func(i, j int) bool { return list[i].distance < list[j].distance })
		for k := 0; k < len(list) && k < maxIslands; k++ {
			for len(batches) <= k {
				batches = append(batches, nil)
			}
			batches[k] = append(batches[k], Tether{
				Start:      list[k].start,
				End:        local + m.Offset,
				RestLength: list[k].distance,
			})
		}
	}
	return batches
}

func closestPoint(positions []mgl64.Vec3, members []int, target mgl64.Vec3) (int, float64) {
	best, bestDistance := -1, math.Inf(1)
	for _, v := range members {
		if distance := positions[v].Sub(target).Len(); distance < bestDistance {
			best, bestDistance = v, distance
		}
	}
	return best, bestDistance
}

package mesh

import (
	"fmt"
	"sort"
)

// TetMesh is a tetrahedron list over the particle range [Offset, Offset+NumVertices).
type TetMesh struct {
	Elements    [][4]int
	Offset      int
	NumVertices int
}

// NewTetMesh checks that every index lies in [offset, offset+numVertices).
func NewTetMesh(elements [][4]int, offset, numVertices int) *TetMesh {
	for t, element := range elements {
		for _, v := range element {
			if v < offset || v >= offset+numVertices {
				panic(fmt.Sprintf("mesh: tetrahedron %d index %d out of range [%d, %d)", t, v, offset, offset+numVertices))
			}
		}
	}
	return &TetMesh{Elements: elements, Offset: offset, NumVertices: numVertices}
}

// Surface returns the faces used by a single tetrahedron, oriented outwards
// for positively oriented tetrahedra.
func (m *TetMesh) Surface() [][3]int {
	faces := make([][3]int, 0, 4*len(m.Elements))
	for _, t := range m.Elements {
		faces = append(faces,
			[3]int{t[0], t[2], t[1]},
			[3]int{t[0], t[1], t[3]},
			[3]int{t[0], t[3], t[2]},
			[3]int{t[1], t[2], t[3]},
		)
	}

	key := func(f [3]int) [3]int {
		k := f
		sort.Ints(k[:])
		return k
	}
	counts := make(map[[3]int]int, len(faces))
	for _, f := range faces {
		counts[key(f)]++
	}

	surface := make([][3]int, 0)
	for _, f := range faces {
		if counts[key(f)] == 1 {
			surface = append(surface, f)
		}
	}
	return surface
}

// Mesh returns the tetrahedra of the grid placed at the given particle offset.
func (g TetGrid) Mesh(offset int) *TetMesh {
	elements := make([][4]int, len(g.Tetrahedra))
	for i, t := range g.Tetrahedra {
		elements[i] = [4]int{t[0] + offset, t[1] + offset, t[2] + offset, t[3] + offset}
	}
	return NewTetMesh(elements, offset, len(g.Positions))
}

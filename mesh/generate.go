package mesh

import "github.com/go-gl/mathgl/mgl64"

// Grid is a rectangular cloth panel lying in the XZ plane, with its 2D pattern
// (UV) coordinates. Triangle indices are local to the grid.
type Grid struct {
	Positions []mgl64.Vec3
	Pattern   []mgl64.Vec2
	Triangles [][3]int
}

// NewGrid creates a panel of (resX+1)*(resZ+1) vertices of size width x depth,
// its first row lying along the X axis at z = 0.
func NewGrid(resX, resZ int, width, depth float64) Grid {
	var grid Grid
	for z := 0; z <= resZ; z++ {
		for x := 0; x <= resX; x++ {
			u := float64(x) / float64(resX)
			v := float64(z) / float64(resZ)
			grid.Positions = append(grid.Positions, mgl64.Vec3{u * width, 0, v * depth})
			grid.Pattern = append(grid.Pattern, mgl64.Vec2{u * width, v * depth})
		}
	}

	index := func(x, z int) int { return z*(resX+1) + x }
	for z := 0; z < resZ; z++ {
		for x := 0; x < resX; x++ {
			// Alternate the diagonal to avoid a directional bias
			a, b, c, d := index(x, z), index(x+1, z), index(x+1, z+1), index(x, z+1)
			if (x+z)%2 == 0 {
				grid.Triangles = append(grid.Triangles, [3]int{a, c, b}, [3]int{a, d, c})
			} else {
				grid.Triangles = append(grid.Triangles, [3]int{a, d, b}, [3]int{b, d, c})
			}
		}
	}
	return grid
}

// Offset returns the triangles shifted to start at the given particle index.
func (g Grid) Offset(offset int) [][3]int {
	triangles := make([][3]int, len(g.Triangles))
	for i, t := range g.Triangles {
		triangles[i] = [3]int{t[0] + offset, t[1] + offset, t[2] + offset}
	}
	return triangles
}

// TetGrid is a box of hexahedral cells, each split into six tetrahedra.
type TetGrid struct {
	Positions  []mgl64.Vec3
	Tetrahedra [][4]int
}

// NewTetGrid creates nx*ny*nz cells of edge cellSize starting at origin.
func NewTetGrid(nx, ny, nz int, cellSize float64, origin mgl64.Vec3) TetGrid {
	var grid TetGrid
	index := func(x, y, z int) int { return (z*(ny+1)+y)*(nx+1) + x }
	for z := 0; z <= nz; z++ {
		for y := 0; y <= ny; y++ {
			for x := 0; x <= nx; x++ {
				grid.Positions = append(grid.Positions, origin.Add(mgl64.Vec3{
					float64(x) * cellSize, float64(y) * cellSize, float64(z) * cellSize,
				}))
			}
		}
	}

	// Kuhn subdivision along the main diagonal v0-v6, positively oriented
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				v := [8]int{
					index(x, y, z), index(x+1, y, z), index(x+1, y+1, z), index(x, y+1, z),
					index(x, y, z+1), index(x+1, y, z+1), index(x+1, y+1, z+1), index(x, y+1, z+1),
				}
				grid.Tetrahedra = append(grid.Tetrahedra,
					[4]int{v[0], v[1], v[2], v[6]},
					[4]int{v[0], v[2], v[3], v[6]},
					[4]int{v[0], v[3], v[7], v[6]},
					[4]int{v[0], v[7], v[4], v[6]},
					[4]int{v[0], v[4], v[5], v[6]},
					[4]int{v[0], v[5], v[1], v[6]},
				)
			}
		}
	}
	return grid
}

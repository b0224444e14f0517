package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const epsilon = 1e-12

// closestPointOnTriangle returns the barycentric coordinates (u, v, w) of the
// point u*a + v*b + w*c of the triangle closest to p.
func closestPointOnTriangle(p, a, b, c mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	ac := c.Sub(a)

	// Vertex regions
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return mgl64.Vec3{1, 0, 0}
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return mgl64.Vec3{0, 1, 0}
	}

	// Edge ab
	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return mgl64.Vec3{1 - v, v, 0}
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return mgl64.Vec3{0, 0, 1}
	}

	// Edge ac
	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return mgl64.Vec3{1 - w, 0, w}
	}

	// Edge bc
	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return mgl64.Vec3{0, 1 - w, w}
	}

	// Face
	denom := va + vb + vc
	if math.Abs(denom) < epsilon {
		return mgl64.Vec3{1.0 / 3, 1.0 / 3, 1.0 / 3}
	}
	v := vb / denom
	w := vc / denom
	return mgl64.Vec3{1 - v - w, v, w}
}

func barycentricPoint(bary mgl64.Vec3, a, b, c mgl64.Vec3) mgl64.Vec3 {
	return a.Mul(bary[0]).Add(b.Mul(bary[1])).Add(c.Mul(bary[2]))
}

// triangleNormal returns the unit normal of abc, ok is false for a degenerate
// triangle.
func triangleNormal(a, b, c mgl64.Vec3) (mgl64.Vec3, bool) {
	n := b.Sub(a).Cross(c.Sub(a))
	length := n.Len()
	if length < epsilon {
		return mgl64.Vec3{}, false
	}
	return n.Mul(1.0 / length), true
}

// segmentTriangle intersects the segment [p0, p1] with the triangle abc. It
// returns the segment parameter and the barycentric coordinates of the
// crossing point.
func segmentTriangle(p0, p1, a, b, c mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	direction := p1.Sub(p0)
	e1 := b.Sub(a)
	e2 := c.Sub(a)

	h := direction.Cross(e2)
	det := e1.Dot(h)
	if math.Abs(det) < epsilon {
		return 0, mgl64.Vec3{}, false
	}
	inv := 1.0 / det

	s := p0.Sub(a)
	u := inv * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, mgl64.Vec3{}, false
	}

	q := s.Cross(e1)
	v := inv * direction.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, mgl64.Vec3{}, false
	}

	t := inv * e2.Dot(q)
	if t < 0 || t > 1 {
		return 0, mgl64.Vec3{}, false
	}
	return t, mgl64.Vec3{1 - u - v, u, v}, true
}

func sharesVertex(triangle [3]int, vertices ...int) bool {
	for _, v := range vertices {
		if triangle[0] == v || triangle[1] == v || triangle[2] == v {
			return true
		}
	}
	return false
}

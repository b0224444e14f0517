package collision

import (
	"cmp"
	"slices"
	"sort"
	"sync/atomic"

	"github.com/akmonengine/silk/actor"
	"github.com/akmonengine/silk/mesh"
	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
	"github.com/go-gl/mathgl/mgl64"
)

// MaxContactsPerParticle is the number of triangles a particle can collide
// with in one step. Only the closest are kept.
const MaxContactsPerParticle = 8

// Contact is a particle within thickness of a triangle of the same mesh.
type Contact struct {
	Particle    int
	Triangle    int        // Index in the mesh elements
	Barycentric mgl64.Vec3 // Closest point on the triangle
	Normal      mgl64.Vec3 // Triangle normal at query time
	Distance    float64    // Distance to the closest point, signed by Normal
	Side        float64    // +1 or -1: the side of the triangle the particle is kept on
}

// Options configure the self collisions of a mesh.
type Options struct {
	Thickness        float64
	Stiffness        float64 // In [0, 1]
	Friction         float64 // Coulomb coefficient
	DisabledRings    int     // Particles closer than this many edges never collide
	UseIntersections bool    // Run the global intersection analysis
}

// TriangleMeshCollisions builds the contacts of a mesh at each step. It is an
// init stage set, CollisionSprings and ContourMinimization consume its output.
type TriangleMeshCollisions struct {
	mesh       *mesh.TriangleMesh
	hash       *SpatialHash
	options    Options
	exclusions [][]int // Sorted N-ring of each vertex, the vertex included

	slots    []Contact
	contacts []Contact
	cursor   atomic.Int64

	gia     *GIA
	springs *CollisionSprings
	workers int
}

// NewTriangleMeshCollisions precomputes the N-ring exclusions of every vertex.
func NewTriangleMeshCollisions(p *particle.Particles, m *mesh.TriangleMesh, options Options) *TriangleMeshCollisions {
	c := &TriangleMeshCollisions{
		mesh:       m,
		options:    options,
		exclusions: make([][]int, m.NumVertices),
		slots:      make([]Contact, m.NumVertices*MaxContactsPerParticle),
		gia:        newGIA(m),
		workers:    pipeline.DefaultWorkers,
	}
	for local := range c.exclusions {
		c.exclusions[local] = m.NRing(m.Offset+local, max(0, options.DisabledRings))
	}
	c.hash = NewSpatialHash(cellSize(p.X, c.gia.edges, m.Elements, options.Thickness), 2*len(m.Elements))
	return c
}

// cellSize returns the mean edge length of the mesh, at least twice the
// thickness. A deformed mesh gets larger cells, so that no inflated triangle
// spans more than MaxCellsPerAxis cells along an axis.
func cellSize(positions []mgl64.Vec3, edges [][2]int, triangles [][3]int, thickness float64) float64 {
	size := 2 * thickness
	if len(edges) > 0 {
		var total float64
		for _, e := range edges {
			total += positions[e[1]].Sub(positions[e[0]]).Len()
		}
		size = max(size, total/float64(len(edges)))
	}

	var extent float64
	for _, t := range triangles {
		bounds := actor.NewAABBFromPoints(positions[t[0]], positions[t[1]], positions[t[2]])
		d := bounds.Max.Sub(bounds.Min)
		extent = max(extent, d.X(), d.Y(), d.Z())
	}
	size = max(size, (extent+2*thickness)/MaxCellsPerAxis)

	if size < epsilon {
		return 1
	}
	return size
}

func (c *TriangleMeshCollisions) SetWorkers(workers int) {
	c.workers = max(pipeline.DefaultWorkers, workers)
	if c.springs != nil {
		c.springs.SetWorkers(c.workers)
	}
}

// SetProperties updates the thickness, stiffness and friction. The N-ring
// exclusions are kept.
func (c *TriangleMeshCollisions) SetProperties(options Options) {
	options.DisabledRings = c.options.DisabledRings
	c.options = options
}

func (c *TriangleMeshCollisions) Options() Options {
	return c.options
}

// Contacts returns the contacts found at the last Init, sorted by particle
// then triangle.
func (c *TriangleMeshCollisions) Contacts() []Contact {
	return c.contacts
}

// GIA returns the intersection analysis of the last Init.
func (c *TriangleMeshCollisions) GIA() *GIA {
	return c.gia
}

// Init runs the detection of the step, on the predicted positions.
func (c *TriangleMeshCollisions) Init(p *particle.Particles) {
	if len(c.mesh.Elements) == 0 {
		return
	}

	c.hash.SetCellSize(cellSize(p.P, c.gia.edges, c.mesh.Elements, c.options.Thickness))
	c.hash.Build(p.P, c.mesh.Elements, c.options.Thickness, c.workers)
	if c.options.UseIntersections {
		c.gia.classify(p, c.hash, c.workers)
	} else {
		c.gia.reset()
	}
	c.query(p)

	if c.springs != nil {
		c.springs.setContacts(p, c.contacts)
	}
}

func (c *TriangleMeshCollisions) ApplyProperties(dt float64, iterations int) {
	if c.springs != nil {
		c.springs.applyProperties(c.options, dt, iterations)
	}
}

// Apply does nothing, the contacts are solved by CollisionSprings.
func (c *TriangleMeshCollisions) Apply(p *particle.Particles, dt float64) {}

// query finds the contacts of every particle in parallel. Each particle
// reserves its slots through a shared cursor, the result is then sorted so the
// output does not depend on the scheduling.
func (c *TriangleMeshCollisions) query(p *particle.Particles) {
	c.cursor.Store(0)

	pipeline.For(c.workers, c.mesh.NumVertices, func(local int) {
		var candidates [64]int
		var found [MaxContactsPerParticle]Contact
		count := 0

		index := c.mesh.Offset + local
		point := p.P[index]
		for _, t := range c.hash.QueryPoint(candidates[:0], point) {
			contact, ok := c.contact(p, index, t)
			if !ok {
				continue
			}
			count = insertClosest(found[:], count, contact)
		}
		if count == 0 {
			return
		}

		start := int(c.cursor.Add(int64(count))) - count
		copy(c.slots[start:start+count], found[:count])
	})

	c.contacts = c.slots[:c.cursor.Load()]
	slices.SortFunc(c.contacts, func(a, b Contact) int {
		return cmp.Or(cmp.Compare(a.Particle, b.Particle), cmp.Compare(a.Triangle, b.Triangle))
	})
}

// contact tests a particle against a triangle.
func (c *TriangleMeshCollisions) contact(p *particle.Particles, index, t int) (Contact, bool) {
	triangle := c.mesh.Elements[t]
	if c.excluded(index, triangle) {
		return Contact{}, false
	}
	if p.InvM[index] == 0 && p.InvM[triangle[0]] == 0 && p.InvM[triangle[1]] == 0 && p.InvM[triangle[2]] == 0 {
		return Contact{}, false
	}

	a, b, v := p.P[triangle[0]], p.P[triangle[1]], p.P[triangle[2]]
	normal, ok := triangleNormal(a, b, v)
	if !ok {
		return Contact{}, false
	}
	point := p.P[index]
	bary := closestPointOnTriangle(point, a, b, v)
	offset := point.Sub(barycentricPoint(bary, a, b, v))
	if offset.Len() > c.options.Thickness {
		return Contact{}, false
	}

	distance := offset.Dot(normal)
	if onBoundary(bary) {
		distance = sign(distance) * offset.Len()
	}
	contact := Contact{
		Particle:    index,
		Triangle:    t,
		Barycentric: bary,
		Normal:      normal,
		Distance:    distance,
	}
	contact.Side = c.side(p, contact, triangle)
	return contact, true
}

// side keeps the particle on the side of the triangle it had at the start of
// the step. Tangled pairs are pushed through instead.
func (c *TriangleMeshCollisions) side(p *particle.Particles, contact Contact, triangle [3]int) float64 {
	current := sign(contact.Distance)
	if c.gia.Tangled(contact.Particle, triangle) {
		return -current
	}

	a, b, v := p.X[triangle[0]], p.X[triangle[1]], p.X[triangle[2]]
	normal, ok := triangleNormal(a, b, v)
	if !ok {
		return current
	}
	previous := p.X[contact.Particle].Sub(barycentricPoint(contact.Barycentric, a, b, v)).Dot(normal)
	if previous > -epsilon && previous < epsilon {
		return current
	}
	return sign(previous)
}

func sign(value float64) float64 {
	if value < 0 {
		return -1
	}
	return 1
}

func (c *TriangleMeshCollisions) excluded(index int, triangle [3]int) bool {
	ring := c.exclusions[index-c.mesh.Offset]
	for _, v := range triangle {
		if i := sort.SearchInts(ring, v); i < len(ring) && ring[i] == v {
			return true
		}
	}
	return false
}

// insertClosest keeps found sorted by absolute distance, dropping the farthest
// contact when full. It returns the new count.
func insertClosest(found []Contact, count int, contact Contact) int {
	distance := abs(contact.Distance)
	if count == len(found) {
		if distance >= abs(found[count-1].Distance) {
			return count
		}
		count--
	}

	i := count
	for i > 0 && abs(found[i-1].Distance) > distance {
		found[i] = found[i-1]
		i--
	}
	found[i] = contact
	return count + 1
}

func abs(value float64) float64 {
	if value < 0 {
		return -value
	}
	return value
}

package silk

import (
	"fmt"
	"log/slog"

	"github.com/akmonengine/silk/collision"
	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/constraint"
	"github.com/akmonengine/silk/mesh"
	"github.com/akmonengine/silk/particle"
	"github.com/go-gl/mathgl/mgl64"
)

// EdgeVariant is the constraint kind used on the mesh edges.
type EdgeVariant uint8

const (
	EdgeNone EdgeVariant = iota
	EdgeXPBDSpring
	EdgeSpring
)

func (v EdgeVariant) String() string {
	switch v {
	case EdgeNone:
		return "none"
	case EdgeXPBDSpring:
		return "xpbd spring"
	case EdgeSpring:
		return "spring"
	default:
		return fmt.Sprintf("EdgeVariant(%d)", uint8(v))
	}
}

// BendingVariant is the constraint kind used across the mesh edges.
type BendingVariant uint8

const (
	BendingNone BendingVariant = iota
	BendingXPBDAnisotropic
	BendingXPBD
	BendingElements
	BendingSprings
)

func (v BendingVariant) String() string {
	switch v {
	case BendingNone:
		return "none"
	case BendingXPBDAnisotropic:
		return "xpbd anisotropic bending"
	case BendingXPBD:
		return "xpbd bending"
	case BendingElements:
		return "bending elements"
	case BendingSprings:
		return "bending springs"
	default:
		return fmt.Sprintf("BendingVariant(%d)", uint8(v))
	}
}

// AreaVariant is the constraint kind used on the mesh triangles.
type AreaVariant uint8

const (
	AreaNone AreaVariant = iota
	AreaAxial
	AreaSpring
)

func (v AreaVariant) String() string {
	switch v {
	case AreaNone:
		return "none"
	case AreaAxial:
		return "axial spring"
	case AreaSpring:
		return "area spring"
	default:
		return fmt.Sprintf("AreaVariant(%d)", uint8(v))
	}
}

type candidate[V any] struct {
	variant V
	enabled bool
}

// choose returns the first enabled candidate, and the enabled candidates it
// shadows.
func choose[V any](none V, candidates ...candidate[V]) (V, []V) {
	chosen := none
	found := false
	var shadowed []V
	for _, c := range candidates {
		if !c.enabled {
			continue
		}
		if found {
			shadowed = append(shadowed, c.variant)
			continue
		}
		chosen = c.variant
		found = true
	}
	return chosen, shadowed
}

// ClothInput holds the optional per vertex data of a cloth object. Slices are
// indexed by the local vertex of the particle range.
type ClothInput struct {
	// Animated pose, updated in place by the caller between steps
	AnimationPositions []mgl64.Vec3
	AnimationNormals   []mgl64.Vec3
	// 2D pattern positions, used by the anisotropic bending
	Pattern []mgl64.Vec2
	// Tether batches. nil computes them from the mesh and the kinematic
	// particles when tethers are enabled.
	Tethers [][]mesh.Tether
	// Tetrahedra of the object, used by the corotated elasticity
	TetMesh *mesh.TetMesh
}

// stageSets are the constraint sets of one object, in registration order.
type stageSets struct {
	inits          []constraint.Set
	rules          []constraint.Set
	postCollisions []constraint.Set
}

// ClothConstraints builds the constraint sets of a cloth object from its
// configuration and registers them in the Evolution. Each feature uses the
// first enabled variant in precedence order, the others are ignored.
type ClothConstraints struct {
	evolution  *Evolution
	particles  particle.Range
	mesh       *mesh.TriangleMesh
	config     config.Cloth
	weightMaps config.WeightMaps
	input      ClothInput

	edgeVariant    EdgeVariant
	bendingVariant BendingVariant
	areaVariant    AreaVariant

	spring              *constraint.Spring
	xpbdSpring          *constraint.XPBDSpring
	bendingSprings      *constraint.Spring
	bending             *constraint.Bending
	xpbdBending         *constraint.XPBDBending
	anisotropicBending  *constraint.XPBDAnisotropicBending
	axialSpring         *constraint.AxialSpring
	areaSpring          *constraint.AreaSpring
	corotated           *constraint.XPBDCorotated
	animDrive           *constraint.AnimDrive
	maxDistance         *constraint.Spherical
	backstop            *constraint.SphericalBackstop
	tethers             *constraint.LongRange
	selfCollisions      *collision.TriangleMeshCollisions
	collisionSprings    *collision.CollisionSprings
	contourMinimization *collision.ContourMinimization

	created                                  bool
	initOffset, ruleOffset, postOffset       int
	initCount, ruleCount, postCollisionCount int
}

// NewClothConstraints checks the weight maps against the particle range. The
// masses of the particles must be set before CreateRules, the constraint
// coloring depends on which particles are kinematic.
func NewClothConstraints(e *Evolution, r particle.Range, m *mesh.TriangleMesh, cfg config.Cloth, weightMaps config.WeightMaps, input ClothInput) *ClothConstraints {
	weightMaps.Check(r.Size)
	return &ClothConstraints{
		evolution:  e,
		particles:  r,
		mesh:       m,
		config:     cfg,
		weightMaps: weightMaps,
		input:      input,
		initOffset: -1,
		ruleOffset: -1,
		postOffset: -1,
	}
}

// AssignMasses sets the mass of every vertex of the mesh from the density
// (kg/m²) and a third of the area of its triangles. Vertices without area
// become kinematic.
func AssignMasses(p *particle.Particles, m *mesh.TriangleMesh, density float64) {
	for local, area := range m.VertexAreas(p.X) {
		p.SetMass(m.Offset+local, density*area)
	}
}

func (c *ClothConstraints) EdgeVariant() EdgeVariant {
	return c.edgeVariant
}

func (c *ClothConstraints) BendingVariant() BendingVariant {
	return c.bendingVariant
}

func (c *ClothConstraints) AreaVariant() AreaVariant {
	return c.areaVariant
}

// SelfCollisions returns the self collision detection, nil when disabled.
func (c *ClothConstraints) SelfCollisions() *collision.TriangleMeshCollisions {
	return c.selfCollisions
}

// Tethers returns the long range attachments, nil when disabled.
func (c *ClothConstraints) Tethers() *constraint.LongRange {
	return c.tethers
}

func (c *ClothConstraints) hasAnimation() bool {
	return len(c.input.AnimationPositions) > 0
}

func (c *ClothConstraints) selectVariants() {
	cfg := c.config

	var edgeShadowed []EdgeVariant
	c.edgeVariant, edgeShadowed = choose(EdgeNone,
		candidate[EdgeVariant]{EdgeXPBDSpring, cfg.UseXPBDEdgeSprings},
		candidate[EdgeVariant]{EdgeSpring, !cfg.EdgeStiffness.IsZero()},
	)
	slog.Debug("cloth edges", "selected", c.edgeVariant, "shadowed", edgeShadowed)

	var bendingShadowed []BendingVariant
	c.bendingVariant, bendingShadowed = choose(BendingNone,
		candidate[BendingVariant]{BendingXPBDAnisotropic, cfg.UseXPBDBending && cfg.UseAnisotropicBending && len(c.input.Pattern) > 0},
		candidate[BendingVariant]{BendingXPBD, cfg.UseXPBDBending},
		candidate[BendingVariant]{BendingElements, cfg.UseBendingElements},
		candidate[BendingVariant]{BendingSprings, !cfg.BendingStiffness.IsZero()},
	)
	slog.Debug("cloth bending", "selected", c.bendingVariant, "shadowed", bendingShadowed)

	var areaShadowed []AreaVariant
	c.areaVariant, areaShadowed = choose(AreaNone,
		candidate[AreaVariant]{AreaAxial, cfg.UseAxialArea && !cfg.AreaStiffness.IsZero()},
		candidate[AreaVariant]{AreaSpring, !cfg.AreaStiffness.IsZero()},
	)
	slog.Debug("cloth area", "selected", c.areaVariant, "shadowed", areaShadowed)
}

// CreateRules creates the enabled constraint sets, reserves their ranges in
// the Evolution stage lists and registers them. Every set runs its Init in
// the init stage and its Apply in the rule stage, except the tethers and the
// self collision detection which only run once per step, last in the init
// stage.
func (c *ClothConstraints) CreateRules() {
	if c.created {
		panic("silk: cloth rules created twice")
	}
	c.created = true

	c.selectVariants()
	sets := c.createSets()

	c.initCount = len(sets.inits)
	c.ruleCount = len(sets.rules)
	c.postCollisionCount = len(sets.postCollisions)
	if c.initCount > 0 {
		c.initOffset = c.evolution.AddConstraintInitRange(c.initCount, true)
	}
	if c.ruleCount > 0 {
		c.ruleOffset = c.evolution.AddConstraintRuleRange(c.ruleCount, true)
	}
	if c.postCollisionCount > 0 {
		c.postOffset = c.evolution.AddPostCollisionConstraintRuleRange(c.postCollisionCount, true)
	}

	for i, set := range sets.inits {
		c.evolution.SetConstraintInit(c.initOffset+i, Stage{Set: set, Kind: StageInitialize})
	}
	for i, set := range sets.rules {
		c.evolution.SetConstraintRule(c.ruleOffset+i, Stage{Set: set, Kind: StageApply})
	}
	for i, set := range sets.postCollisions {
		c.evolution.SetPostCollisionConstraintRule(c.postOffset+i, Stage{Set: set, Kind: StageApply})
	}

	slog.Debug("cloth rules created",
		"particles", c.particles.Size,
		"inits", c.initCount,
		"rules", c.ruleCount,
		"post collision rules", c.postCollisionCount)
}

func (c *ClothConstraints) createSets() stageSets {
	var sets stageSets
	both := func(set constraint.Set) {
		sets.inits = append(sets.inits, set)
		sets.rules = append(sets.rules, set)
	}

	p := c.evolution.Particles()
	r := c.particles
	cfg := c.config
	maps := c.weightMaps

	switch c.edgeVariant {
	case EdgeXPBDSpring:
		c.xpbdSpring = constraint.NewXPBDSpring(p, r, c.mesh.UniqueEdges(),
			cfg.XPBDEdgeStiffness, maps.Get(config.EdgeStiffness),
			cfg.EdgeDampingRatio, maps.Get(config.EdgeDamping))
		both(c.xpbdSpring)
	case EdgeSpring:
		c.spring = constraint.NewSpring(p, r, c.mesh.UniqueEdges(), cfg.EdgeStiffness, maps.Get(config.EdgeStiffness))
		both(c.spring)
	case EdgeNone:
	}

	if c.bendingVariant != BendingNone {
		elements := c.mesh.UniqueAdjacentElements()
		switch c.bendingVariant {
		case BendingXPBDAnisotropic:
			c.anisotropicBending = constraint.NewXPBDAnisotropicBending(p, r, elements, c.input.Pattern, c.anisotropicProperties())
			both(c.anisotropicBending)
		case BendingXPBD:
			c.xpbdBending = constraint.NewXPBDBending(p, r, elements, c.bendingProperties())
			both(c.xpbdBending)
		case BendingElements:
			c.bending = constraint.NewBending(p, r, elements, c.bendingProperties())
			both(c.bending)
		case BendingSprings:
			c.bendingSprings = constraint.NewSpring(p, r, constraint.BendingPairs(elements), cfg.BendingStiffness, maps.Get(config.BendingStiffness))
			both(c.bendingSprings)
		case BendingNone:
		}
	}

	switch c.areaVariant {
	case AreaAxial:
		c.axialSpring = constraint.NewAxialSpring(p, r, c.mesh.Elements, cfg.AreaStiffness, maps.Get(config.AreaStiffness))
		both(c.axialSpring)
	case AreaSpring:
		c.areaSpring = constraint.NewAreaSpring(p, r, c.mesh.Elements, cfg.AreaStiffness, maps.Get(config.AreaStiffness))
		both(c.areaSpring)
	case AreaNone:
	}

	if cfg.UseCorotated {
		if c.input.TetMesh == nil {
			slog.Debug("cloth corotated elasticity enabled without tetrahedra, ignored")
		} else {
			c.corotated = constraint.NewXPBDCorotated(p, r, c.input.TetMesh.Elements, c.corotatedProperties())
			both(c.corotated)
		}
	}

	if c.hasAnimation() {
		if !cfg.AnimDriveStiffness.IsZero() || !cfg.AnimDriveDamping.IsZero() {
			c.animDrive = constraint.NewAnimDrive(r, c.input.AnimationPositions,
				cfg.AnimDriveStiffness, maps.Get(config.AnimDriveStiffness),
				cfg.AnimDriveDamping, maps.Get(config.AnimDriveDamping))
			both(c.animDrive)
		}
		if cfg.UseMaxDistance {
			c.maxDistance = constraint.NewSpherical(r, c.input.AnimationPositions, cfg.MaxDistance, maps.Get(config.MaxDistance))
			both(c.maxDistance)
		}
		if cfg.UseBackstop {
			c.backstop = constraint.NewSphericalBackstop(r, c.input.AnimationPositions, c.input.AnimationNormals,
				cfg.BackstopDistance, maps.Get(config.BackstopDistance),
				cfg.BackstopRadius, maps.Get(config.BackstopRadius))
			both(c.backstop)
		}
	} else if cfg.UseMaxDistance || cfg.UseBackstop {
		slog.Debug("cloth animation constraints enabled without animation positions, ignored")
	}

	// Once per step corrections, after everything else in the init stage
	if !cfg.TetherStiffness.IsZero() {
		batches := c.input.Tethers
		if batches == nil {
			batches = c.mesh.ComputeTethers(p.X, p.InvM, cfg.UseGeodesicTethers, cfg.MaxTetherIslands)
		}
		if len(batches) > 0 {
			c.tethers = constraint.NewLongRange(r, batches,
				cfg.TetherStiffness, maps.Get(config.TetherStiffness),
				cfg.TetherScale, maps.Get(config.TetherScale))
			sets.inits = append(sets.inits, c.tethers)
		}
	}

	if cfg.UseSelfCollisions {
		c.selfCollisions = collision.NewTriangleMeshCollisions(p, c.mesh, c.collisionOptions())
		c.collisionSprings = collision.NewCollisionSprings(c.selfCollisions)
		sets.inits = append(sets.inits, c.selfCollisions)
		sets.rules = append(sets.rules, c.collisionSprings)
		if cfg.UseSelfIntersections {
			c.contourMinimization = collision.NewContourMinimization(c.selfCollisions)
			sets.postCollisions = append(sets.postCollisions, c.contourMinimization)
		}
	}

	return sets
}

func (c *ClothConstraints) bendingProperties() constraint.BendingProperties {
	return constraint.BendingProperties{
		Stiffness:         c.config.BendingStiffness,
		StiffnessMap:      c.weightMaps.Get(config.BendingStiffness),
		BucklingRatio:     c.config.BucklingRatio,
		BucklingStiffness: c.config.BucklingStiffness,
		BucklingMap:       c.weightMaps.Get(config.BucklingStiffness),
		DampingRatio:      c.config.BendingDampingRatio,
		DampingMap:        c.weightMaps.Get(config.BendingDamping),
	}
}

func (c *ClothConstraints) anisotropicProperties() constraint.AnisotropicProperties {
	return constraint.AnisotropicProperties{
		BendingProperties: c.bendingProperties(),
		Warp:              c.config.BendingWarpStiffness,
		WarpMap:           c.weightMaps.Get(config.BendingWarpStiffness),
		Weft:              c.config.BendingWeftStiffness,
		WeftMap:           c.weightMaps.Get(config.BendingWeftStiffness),
		Bias:              c.config.BendingBiasStiffness,
		BiasMap:           c.weightMaps.Get(config.BendingBiasStiffness),
	}
}

func (c *ClothConstraints) corotatedProperties() constraint.CorotatedProperties {
	return constraint.CorotatedProperties{
		YoungsModulus: c.config.YoungsModulus,
		PoissonRatio:  c.config.PoissonRatio,
		DampingRatio:  c.config.CorotatedDampingRatio,
	}
}

func (c *ClothConstraints) collisionOptions() collision.Options {
	return collision.Options{
		Thickness:        c.config.SelfCollisionThickness,
		Stiffness:        c.config.SelfCollisionStiffness,
		Friction:         c.config.SelfCollisionFrictionCoefficient,
		DisabledRings:    c.config.SelfCollisionDisabledRings,
		UseIntersections: c.config.UseSelfIntersections,
	}
}

// Enable toggles every stage range of the object.
func (c *ClothConstraints) Enable(enable bool) {
	if c.initOffset >= 0 {
		c.evolution.ActivateConstraintInitRange(c.initOffset, enable)
	}
	if c.ruleOffset >= 0 {
		c.evolution.ActivateConstraintRuleRange(c.ruleOffset, enable)
	}
	if c.postOffset >= 0 {
		c.evolution.ActivatePostCollisionConstraintRuleRange(c.postOffset, enable)
	}
}

// SetProperties updates the stiffness, damping and distances of the created
// sets. Rest state and variants are kept: the Use flags of cfg are ignored.
func (c *ClothConstraints) SetProperties(cfg config.Cloth, weightMaps config.WeightMaps) {
	weightMaps.Check(c.particles.Size)
	c.config = cfg
	c.weightMaps = weightMaps
	maps := weightMaps

	if c.spring != nil {
		c.spring.SetProperties(cfg.EdgeStiffness, maps.Get(config.EdgeStiffness))
	}
	if c.xpbdSpring != nil {
		c.xpbdSpring.SetProperties(cfg.XPBDEdgeStiffness, maps.Get(config.EdgeStiffness), cfg.EdgeDampingRatio, maps.Get(config.EdgeDamping))
	}
	if c.bendingSprings != nil {
		c.bendingSprings.SetProperties(cfg.BendingStiffness, maps.Get(config.BendingStiffness))
	}
	if c.bending != nil {
		c.bending.SetProperties(c.bendingProperties())
	}
	if c.xpbdBending != nil {
		c.xpbdBending.SetProperties(c.bendingProperties())
	}
	if c.anisotropicBending != nil {
		c.anisotropicBending.SetProperties(c.anisotropicProperties())
	}
	if c.axialSpring != nil {
		c.axialSpring.SetProperties(cfg.AreaStiffness, maps.Get(config.AreaStiffness))
	}
	if c.areaSpring != nil {
		c.areaSpring.SetProperties(cfg.AreaStiffness, maps.Get(config.AreaStiffness))
	}
	if c.corotated != nil {
		c.corotated.SetProperties(c.corotatedProperties())
	}
	if c.animDrive != nil {
		c.animDrive.SetProperties(cfg.AnimDriveStiffness, maps.Get(config.AnimDriveStiffness), cfg.AnimDriveDamping, maps.Get(config.AnimDriveDamping))
	}
	if c.maxDistance != nil {
		c.maxDistance.SetProperties(cfg.MaxDistance, maps.Get(config.MaxDistance))
	}
	if c.backstop != nil {
		c.backstop.SetProperties(cfg.BackstopDistance, maps.Get(config.BackstopDistance), cfg.BackstopRadius, maps.Get(config.BackstopRadius))
	}
	if c.tethers != nil {
		c.tethers.SetProperties(cfg.TetherStiffness, maps.Get(config.TetherStiffness), cfg.TetherScale, maps.Get(config.TetherScale))
	}
	if c.selfCollisions != nil {
		c.selfCollisions.SetProperties(c.collisionOptions())
	}
}

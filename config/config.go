// Package config describes how a cloth object is simulated: which constraint
// kinds are enabled, their stiffness ranges, and the solver settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Range is a [Low, High] value pair. Without weight map the Low value is used,
// with a weight map w in [0, 1] the value is Low + w*(High-Low).
type Range struct {
	Low  float64 `toml:"low" yaml:"low"`
	High float64 `toml:"high" yaml:"high"`
}

// Uniform returns a range whose bounds are both v.
func Uniform(v float64) Range {
	return Range{Low: v, High: v}
}

// IsZero reports whether both bounds are zero, which disables a feature.
func (r Range) IsZero() bool {
	return r.Low == 0 && r.High == 0
}

// Solver holds the settings of the time integration.
type Solver struct {
	Iterations int        `toml:"iterations" yaml:"iterations"`
	Gravity    [3]float64 `toml:"gravity" yaml:"gravity"`
	// Linear velocity damping, 0 = no damping
	Damping float64 `toml:"damping" yaml:"damping"`
	Workers int     `toml:"workers" yaml:"workers"`
	// Particle thickness against kinematic colliders
	CollisionThickness float64 `toml:"collision_thickness" yaml:"collision_thickness"`
}

// Cloth holds the constraint options of one cloth object.
type Cloth struct {
	Density float64 `toml:"density" yaml:"density"`

	// Edges. EdgeStiffness is a [0, 1] ratio, XPBDEdgeStiffness is in N/m and
	// only read with UseXPBDEdgeSprings.
	UseXPBDEdgeSprings bool  `toml:"use_xpbd_edge_springs" yaml:"use_xpbd_edge_springs"`
	EdgeStiffness      Range `toml:"edge_stiffness" yaml:"edge_stiffness"`
	XPBDEdgeStiffness  Range `toml:"xpbd_edge_stiffness" yaml:"xpbd_edge_stiffness"`
	EdgeDampingRatio   Range `toml:"edge_damping_ratio" yaml:"edge_damping_ratio"`

	// Bending
	UseXPBDBending        bool    `toml:"use_xpbd_bending" yaml:"use_xpbd_bending"`
	UseAnisotropicBending bool    `toml:"use_anisotropic_bending" yaml:"use_anisotropic_bending"`
	UseBendingElements    bool    `toml:"use_bending_elements" yaml:"use_bending_elements"`
	BendingStiffness      Range   `toml:"bending_stiffness" yaml:"bending_stiffness"`
	BucklingStiffness     Range   `toml:"buckling_stiffness" yaml:"buckling_stiffness"`
	BucklingRatio         float64 `toml:"buckling_ratio" yaml:"buckling_ratio"`
	BendingDampingRatio   Range   `toml:"bending_damping_ratio" yaml:"bending_damping_ratio"`
	BendingWarpStiffness  Range   `toml:"bending_warp_stiffness" yaml:"bending_warp_stiffness"`
	BendingWeftStiffness  Range   `toml:"bending_weft_stiffness" yaml:"bending_weft_stiffness"`
	BendingBiasStiffness  Range   `toml:"bending_bias_stiffness" yaml:"bending_bias_stiffness"`

	// Area
	UseAxialArea  bool  `toml:"use_axial_area" yaml:"use_axial_area"`
	AreaStiffness Range `toml:"area_stiffness" yaml:"area_stiffness"`

	// Tethers (long range attachment)
	TetherStiffness    Range `toml:"tether_stiffness" yaml:"tether_stiffness"`
	TetherScale        Range `toml:"tether_scale" yaml:"tether_scale"`
	UseGeodesicTethers bool  `toml:"use_geodesic_tethers" yaml:"use_geodesic_tethers"`
	MaxTetherIslands   int   `toml:"max_tether_islands" yaml:"max_tether_islands"`

	// Animation targets
	UseMaxDistance     bool  `toml:"use_max_distance" yaml:"use_max_distance"`
	MaxDistance        Range `toml:"max_distance" yaml:"max_distance"`
	UseBackstop        bool  `toml:"use_backstop" yaml:"use_backstop"`
	BackstopDistance   Range `toml:"backstop_distance" yaml:"backstop_distance"`
	BackstopRadius     Range `toml:"backstop_radius" yaml:"backstop_radius"`
	AnimDriveStiffness Range `toml:"anim_drive_stiffness" yaml:"anim_drive_stiffness"`
	AnimDriveDamping   Range `toml:"anim_drive_damping" yaml:"anim_drive_damping"`

	// Volumetric elasticity (tetrahedral meshes)
	UseCorotated          bool    `toml:"use_corotated" yaml:"use_corotated"`
	YoungsModulus         float64 `toml:"youngs_modulus" yaml:"youngs_modulus"`
	PoissonRatio          float64 `toml:"poisson_ratio" yaml:"poisson_ratio"`
	CorotatedDampingRatio float64 `toml:"corotated_damping_ratio" yaml:"corotated_damping_ratio"`

	// Self collisions
	UseSelfCollisions                bool    `toml:"use_self_collisions" yaml:"use_self_collisions"`
	UseSelfIntersections             bool    `toml:"use_self_intersections" yaml:"use_self_intersections"`
	SelfCollisionThickness           float64 `toml:"self_collision_thickness" yaml:"self_collision_thickness"`
	SelfCollisionStiffness           float64 `toml:"self_collision_stiffness" yaml:"self_collision_stiffness"`
	SelfCollisionFrictionCoefficient float64 `toml:"self_collision_friction_coefficient" yaml:"self_collision_friction_coefficient"`
	SelfCollisionDisabledRings       int     `toml:"self_collision_disabled_rings" yaml:"self_collision_disabled_rings"`
}

// Config is the top level document of a configuration file.
type Config struct {
	Solver Solver `toml:"solver" yaml:"solver"`
	Cloth  Cloth  `toml:"cloth" yaml:"cloth"`
}

// Default returns a configuration for a light cotton-like fabric.
func Default() *Config {
	return &Config{
		Solver: Solver{
			Iterations:         8,
			Gravity:            [3]float64{0, -9.81, 0},
			Damping:            0.01,
			Workers:            1,
			CollisionThickness: 0.01,
		},
		Cloth: Cloth{
			Density:                          0.35,
			EdgeStiffness:                    Uniform(1),
			XPBDEdgeStiffness:                Uniform(1000),
			BendingStiffness:                 Uniform(0.5),
			BucklingStiffness:                Uniform(0.5),
			BucklingRatio:                    0.5,
			BendingWarpStiffness:             Uniform(100),
			BendingWeftStiffness:             Uniform(100),
			BendingBiasStiffness:             Uniform(100),
			UseBendingElements:               true,
			AreaStiffness:                    Uniform(1),
			TetherStiffness:                  Uniform(1),
			TetherScale:                      Uniform(1),
			UseGeodesicTethers:               true,
			MaxTetherIslands:                 4,
			YoungsModulus:                    1e5,
			PoissonRatio:                     0.3,
			SelfCollisionThickness:           0.01,
			SelfCollisionStiffness:           0.5,
			SelfCollisionFrictionCoefficient: 0,
			SelfCollisionDisabledRings:       2,
		},
	}
}

// Load reads a TOML or YAML file over the default configuration. The format
// is chosen from the file extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config: unsupported file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports options whose values cannot be simulated.
func (c *Config) Validate() error {
	if c.Solver.Iterations < 0 {
		return fmt.Errorf("solver.iterations must be positive, got %d", c.Solver.Iterations)
	}
	if r := c.Cloth.EdgeStiffness; r.Low < 0 || r.Low > 1 || r.High < 0 || r.High > 1 {
		return fmt.Errorf("cloth.edge_stiffness must be in [0, 1], got [%g, %g]", r.Low, r.High)
	}
	if c.Cloth.BucklingRatio < 0 || c.Cloth.BucklingRatio > 1 {
		return fmt.Errorf("cloth.buckling_ratio must be in [0, 1], got %g", c.Cloth.BucklingRatio)
	}
	if c.Cloth.PoissonRatio < 0 || c.Cloth.PoissonRatio >= 0.5 {
		return fmt.Errorf("cloth.poisson_ratio must be in [0, 0.5), got %g", c.Cloth.PoissonRatio)
	}
	if c.Cloth.SelfCollisionThickness < 0 {
		return fmt.Errorf("cloth.self_collision_thickness must be positive, got %g", c.Cloth.SelfCollisionThickness)
	}
	if c.Cloth.MaxTetherIslands < 0 {
		return fmt.Errorf("cloth.max_tether_islands must be positive, got %d", c.Cloth.MaxTetherIslands)
	}
	return nil
}

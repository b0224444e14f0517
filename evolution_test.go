package silk

import (
	"testing"

	"github.com/akmonengine/silk/actor"
	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/constraint"
	"github.com/akmonengine/silk/particle"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gravity = 9.81

func solverSettings(iterations int) config.Solver {
	return config.Solver{
		Iterations: iterations,
		Gravity:    [3]float64{0, -gravity, 0},
		Workers:    1,
	}
}

// recorder is a constraint set that logs its calls.
type recorder struct {
	name  string
	calls *[]string
}

func (r *recorder) Init(p *particle.Particles) {
	*r.calls = append(*r.calls, r.name+".Init")
}

func (r *recorder) ApplyProperties(dt float64, iterations int) {
	*r.calls = append(*r.calls, r.name+".ApplyProperties")
}

func (r *recorder) Apply(p *particle.Particles, dt float64) {
	*r.calls = append(*r.calls, r.name+".Apply")
}

func TestEvolution_StageOrder(t *testing.T) {
	var calls []string
	e := NewEvolution(solverSettings(2))
	e.AddParticleRange(1, 0, true)

	initOffset := e.AddConstraintInitRange(2, true)
	ruleOffset := e.AddConstraintRuleRange(1, true)
	postOffset := e.AddPostCollisionConstraintRuleRange(1, true)
	e.SetConstraintInit(initOffset, Stage{Set: &recorder{"a", &calls}, Kind: StageInitialize})
	e.SetConstraintInit(initOffset+1, Stage{Set: &recorder{"b", &calls}, Kind: StageInitialize})
	e.SetConstraintRule(ruleOffset, Stage{Set: &recorder{"a", &calls}, Kind: StageApply})
	e.SetPostCollisionConstraintRule(postOffset, Stage{Set: &recorder{"c", &calls}, Kind: StageApply})

	e.AdvanceOneTimeStep(1.0 / 60)

	assert.Equal(t, []string{
		"a.ApplyProperties", "a.Init",
		"b.ApplyProperties", "b.Init",
		"a.Apply", "a.Apply",
		"c.Apply",
	}, calls)
	assert.InDelta(t, 1.0/60, e.Time(), 1e-15)
}

// parallelSet records the worker count it is given.
type parallelSet struct {
	recorder
	workers int
}

func (s *parallelSet) SetWorkers(workers int) {
	s.workers = workers
}

func TestEvolution_SetWorkers(t *testing.T) {
	var calls []string
	e := NewEvolution(solverSettings(1))
	e.SetWorkers(2)

	sets := []*parallelSet{
		{recorder: recorder{"a", &calls}},
		{recorder: recorder{"b", &calls}},
		{recorder: recorder{"c", &calls}},
	}
	e.SetConstraintInit(e.AddConstraintInitRange(1, true), Stage{Set: sets[0], Kind: StageInitialize})
	e.SetConstraintRule(e.AddConstraintRuleRange(1, true), Stage{Set: sets[1], Kind: StageApply})
	e.SetPostCollisionConstraintRule(e.AddPostCollisionConstraintRuleRange(1, false), Stage{Set: sets[2], Kind: StageApply})
	for _, set := range sets {
		assert.Equal(t, 2, set.workers, "set %s at registration", set.name)
	}

	e.SetWorkers(4)
	for _, set := range sets {
		assert.Equal(t, 4, set.workers, "set %s after SetWorkers", set.name)
	}

	e.SetWorkers(0)
	assert.Equal(t, 1, e.Workers())
	for _, set := range sets {
		assert.Equal(t, 1, set.workers, "set %s", set.name)
	}
}

func TestEvolution_ActivateRanges(t *testing.T) {
	tests := []struct {
		name     string
		toggle   func(e *Evolution, offsets [3]int)
		expected []string
	}{
		{
			name:     "all active",
			toggle:   func(e *Evolution, offsets [3]int) {},
			expected: []string{"a.ApplyProperties", "a.Init", "b.ApplyProperties", "b.Init", "a.Apply", "b.Apply", "c.Apply"},
		},
		{
			name: "first init range disabled",
			toggle: func(e *Evolution, offsets [3]int) {
				e.ActivateConstraintInitRange(offsets[0], false)
			},
			expected: []string{"b.ApplyProperties", "b.Init", "a.Apply", "b.Apply", "c.Apply"},
		},
		{
			name: "rules and post collision disabled",
			toggle: func(e *Evolution, offsets [3]int) {
				e.ActivateConstraintRuleRange(offsets[1], false)
				e.ActivatePostCollisionConstraintRuleRange(offsets[2], false)
			},
			expected: []string{"a.ApplyProperties", "a.Init", "b.ApplyProperties", "b.Init"},
		},
		{
			name: "disabled then enabled again",
			toggle: func(e *Evolution, offsets [3]int) {
				e.ActivateConstraintInitRange(offsets[0], false)
				e.ActivateConstraintInitRange(offsets[0], true)
			},
			expected: []string{"a.ApplyProperties", "a.Init", "b.ApplyProperties", "b.Init", "a.Apply", "b.Apply", "c.Apply"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			a, b, c := &recorder{"a", &calls}, &recorder{"b", &calls}, &recorder{"c", &calls}

			e := NewEvolution(solverSettings(1))
			var offsets [3]int
			offsets[0] = e.AddConstraintInitRange(1, true)
			second := e.AddConstraintInitRange(1, true)
			offsets[1] = e.AddConstraintRuleRange(2, true)
			offsets[2] = e.AddPostCollisionConstraintRuleRange(1, true)
			e.SetConstraintInit(offsets[0], Stage{Set: a, Kind: StageInitialize})
			e.SetConstraintInit(second, Stage{Set: b, Kind: StageInitialize})
			e.SetConstraintRule(offsets[1], Stage{Set: a, Kind: StageApply})
			e.SetConstraintRule(offsets[1]+1, Stage{Set: b, Kind: StageApply})
			e.SetPostCollisionConstraintRule(offsets[2], Stage{Set: c, Kind: StageApply})

			tt.toggle(e, offsets)
			e.AdvanceOneTimeStep(1.0 / 60)
			assert.Equal(t, tt.expected, calls)
		})
	}
}

func TestEvolution_InactiveRangeStartsDisabled(t *testing.T) {
	var calls []string
	e := NewEvolution(solverSettings(1))
	offset := e.AddConstraintRuleRange(1, false)
	e.SetConstraintRule(offset, Stage{Set: &recorder{"a", &calls}, Kind: StageApply})

	e.AdvanceOneTimeStep(1.0 / 60)
	assert.Empty(t, calls)

	e.ActivateConstraintRuleRange(offset, true)
	e.AdvanceOneTimeStep(1.0 / 60)
	assert.Equal(t, []string{"a.Apply"}, calls)
}

func TestEvolution_RegistrationPanics(t *testing.T) {
	var calls []string
	set := &recorder{"a", &calls}

	tests := []struct {
		name string
		fn   func(e *Evolution)
	}{
		{"registered twice", func(e *Evolution) {
			offset := e.AddConstraintInitRange(1, true)
			e.SetConstraintInit(offset, Stage{Set: set, Kind: StageInitialize})
			e.SetConstraintInit(offset, Stage{Set: set, Kind: StageInitialize})
		}},
		{"out of range", func(e *Evolution) {
			offset := e.AddConstraintRuleRange(1, true)
			e.SetConstraintRule(offset+1, Stage{Set: set, Kind: StageApply})
		}},
		{"wrong kind", func(e *Evolution) {
			offset := e.AddConstraintRuleRange(1, true)
			e.SetConstraintRule(offset, Stage{Set: set, Kind: StageInitialize})
		}},
		{"nil set", func(e *Evolution) {
			offset := e.AddPostCollisionConstraintRuleRange(1, true)
			e.SetPostCollisionConstraintRule(offset, Stage{Kind: StageApply})
		}},
		{"unknown range", func(e *Evolution) {
			e.ActivateConstraintInitRange(3, false)
		}},
		{"unknown particle range", func(e *Evolution) {
			e.ActivateParticleRange(7, false)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvolution(solverSettings(1))
			assert.Panics(t, func() { tt.fn(e) })
		})
	}
}

func TestEvolution_StageAccess(t *testing.T) {
	var calls []string
	e := NewEvolution(solverSettings(1))
	e.AddConstraintInitRange(2, true)
	offset := e.AddConstraintInitRange(3, true)
	assert.Equal(t, 2, offset)
	assert.Len(t, e.ConstraintInits(), 5)
	assert.Empty(t, e.ConstraintRules())
	assert.Empty(t, e.PostCollisionConstraintRules())

	set := &recorder{"a", &calls}
	e.SetConstraintInit(offset+1, Stage{Set: set, Kind: StageInitialize})
	assert.Same(t, set, e.ConstraintInits()[3].Set)
	assert.Nil(t, e.ConstraintInits()[2].Set)
}

func TestEvolution_FreeFall(t *testing.T) {
	e := NewEvolution(solverSettings(4))
	offset := e.AddParticleRange(2, 0, true)
	p := e.Particles()
	p.Reset(offset, mgl64.Vec3{0, 10, 0})
	p.Reset(offset+1, mgl64.Vec3{1, 10, 0})
	p.SetMass(offset+1, 1)

	dt := 0.1
	e.AdvanceOneTimeStep(dt)
	e.AdvanceOneTimeStep(dt)

	// Semi implicit Euler: v1 = g dt, v2 = 2 g dt
	assert.InDelta(t, 10-3*gravity*dt*dt, p.X[offset+1].Y(), 1e-12)
	assert.InDelta(t, -2*gravity*dt, p.V[offset+1].Y(), 1e-12)
	assert.Equal(t, mgl64.Vec3{0, 10, 0}, p.X[offset], "kinematic particle")
	assert.InDelta(t, 0.2, e.Time(), 1e-15)
}

func TestEvolution_KinematicMotion(t *testing.T) {
	e := NewEvolution(solverSettings(1))
	offset := e.AddParticleRange(2, 0, true)
	p := e.Particles()
	p.Reset(offset, mgl64.Vec3{0, 0, 0})
	p.V[offset] = mgl64.Vec3{1, 0, 0}
	p.Reset(offset+1, mgl64.Vec3{0, 5, 0})

	var times []float64
	e.KinematicUpdate = func(p *particle.Particles, dt, time float64) {
		times = append(times, time)
		p.P[offset+1] = mgl64.Vec3{0, 5, time}
	}

	e.AdvanceOneTimeStep(0.5)
	e.AdvanceOneTimeStep(0.5)

	assert.Equal(t, []float64{0.5, 1}, times)
	assert.InDelta(t, 1.0, p.X[offset].X(), 1e-12, "moves along its velocity")
	assert.InDelta(t, 1.0, p.X[offset+1].Z(), 1e-12, "moved by the callback")
	assert.InDelta(t, 1.0, p.V[offset+1].Z(), 1e-12)
}

func TestEvolution_InactiveParticles(t *testing.T) {
	e := NewEvolution(solverSettings(1))
	active := e.AddParticleRange(1, 0, true)
	inactive := e.AddParticleRange(1, 1, false)
	p := e.Particles()
	p.SetMass(active, 1)
	p.SetMass(inactive, 1)

	e.AdvanceOneTimeStep(0.1)
	assert.Less(t, p.X[active].Y(), 0.0)
	assert.Equal(t, mgl64.Vec3{}, p.X[inactive])
	assert.Equal(t, uint32(1), p.Owner[inactive])

	e.ActivateParticleRange(inactive, true)
	e.AdvanceOneTimeStep(0.1)
	assert.Less(t, p.X[inactive].Y(), 0.0)
}

func TestEvolution_Damping(t *testing.T) {
	e := NewEvolution(config.Solver{Iterations: 1})
	offset := e.AddParticleRange(1, 0, true)
	p := e.Particles()
	p.SetMass(offset, 1)
	p.V[offset] = mgl64.Vec3{1, 0, 0}

	e.SetParticleRangeDamping(offset, 0.5)
	e.AdvanceOneTimeStep(1.0 / constraint.ParameterFrequency)
	assert.InDelta(t, 0.5, p.V[offset].X(), 1e-12)
}

func TestEvolution_ZeroIterations(t *testing.T) {
	var calls []string
	e := NewEvolution(solverSettings(-3))
	assert.Equal(t, 0, e.Iterations())

	offset := e.AddConstraintRuleRange(1, true)
	e.SetConstraintRule(offset, Stage{Set: &recorder{"a", &calls}, Kind: StageApply})
	e.AdvanceOneTimeStep(1.0 / 60)
	assert.Empty(t, calls)

	e.AdvanceOneTimeStep(0)
	assert.InDelta(t, 1.0/60, e.Time(), 1e-15, "a zero step does nothing")
}

func TestEvolution_SingleSpringUnderGravity(t *testing.T) {
	tests := []struct {
		name       string
		iterations int
		expected   float64
	}{
		{"no iteration falls freely", 0, -1 - gravity/3600},
		{"one iteration", 1, -1},
		{"several iterations", 8, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEvolution(solverSettings(tt.iterations))
			offset := e.AddParticleRange(2, 0, true)
			p := e.Particles()
			p.Reset(offset, mgl64.Vec3{0, 0, 0})
			p.Reset(offset+1, mgl64.Vec3{0, -1, 0})
			p.SetMass(offset+1, 1)

			spring := constraint.NewSpring(p, p.Range(offset, 2), [][2]int{{offset, offset + 1}}, config.Uniform(1), nil)
			e.SetConstraintInit(e.AddConstraintInitRange(1, true), Stage{Set: spring, Kind: StageInitialize})
			e.SetConstraintRule(e.AddConstraintRuleRange(1, true), Stage{Set: spring, Kind: StageApply})

			e.AdvanceOneTimeStep(1.0 / 60)

			assert.InDelta(t, tt.expected, p.X[offset+1].Y(), 1e-12)
			assert.Equal(t, mgl64.Vec3{0, 0, 0}, p.X[offset])
		})
	}
}

func TestEvolution_Colliders(t *testing.T) {
	settings := solverSettings(1)
	settings.CollisionThickness = 0.01
	e := NewEvolution(settings)
	offset := e.AddParticleRange(1, 0, true)
	p := e.Particles()
	p.Reset(offset, mgl64.Vec3{0, 0.5, 0})
	p.SetMass(offset, 1)

	e.AddCollider(actor.NewCollider(actor.NewTransform(), &actor.Plane{Normal: mgl64.Vec3{0, 1, 0}}))
	require.Len(t, e.Colliders(), 1)

	for range 120 {
		e.AdvanceOneTimeStep(1.0 / 60)
	}
	assert.InDelta(t, 0.01, p.X[offset].Y(), 1e-9)
	assert.InDelta(t, 0, p.V[offset].Y(), 1e-9)
}

func TestEvolution_Workers(t *testing.T) {
	e := NewEvolution(config.Solver{Workers: 0})
	assert.Equal(t, 1, e.Workers())
	e.SetWorkers(4)
	assert.Equal(t, 4, e.Workers())
}

func TestStageKind_String(t *testing.T) {
	assert.Equal(t, "initialize", StageInitialize.String())
	assert.Equal(t, "apply", StageApply.String())
	assert.Equal(t, "StageKind(9)", StageKind(9).String())
}

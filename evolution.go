// Package silk is a position based solver for deformable bodies. The Evolution
// owns the particles and advances them in time, running the constraint sets
// registered in its three stage lists.
package silk

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/akmonengine/silk/actor"
	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/constraint"
	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
	"github.com/go-gl/mathgl/mgl64"
)

// StageKind tells the Evolution which methods of a constraint set a stage runs.
type StageKind uint8

const (
	// ApplyProperties then Init, once per step
	StageInitialize StageKind = iota
	// Apply, once per iteration or once after the collisions
	StageApply
)

func (k StageKind) String() string {
	switch k {
	case StageInitialize:
		return "initialize"
	case StageApply:
		return "apply"
	default:
		return fmt.Sprintf("StageKind(%d)", uint8(k))
	}
}

// Stage is one entry of a stage list.
type Stage struct {
	Set  constraint.Set
	Kind StageKind
}

// stageList is an array of entries reserved by ranges. Ranges are toggled,
// never removed, so offsets stay valid.
type stageList struct {
	name   string
	kind   StageKind
	stages []Stage
	active []bool
	ranges map[int]int // offset -> count
}

func newStageList(name string, kind StageKind) stageList {
	return stageList{name: name, kind: kind, ranges: make(map[int]int)}
}

func (l *stageList) add(count int, active bool) int {
	offset := len(l.stages)
	l.stages = append(l.stages, make([]Stage, count)...)
	for range count {
		l.active = append(l.active, active)
	}
	l.ranges[offset] = count
	slog.Debug("stage range reserved", "stage", l.name, "offset", offset, "count", count, "active", active)
	return offset
}

func (l *stageList) activate(offset int, active bool) {
	count, ok := l.ranges[offset]
	if !ok {
		panic(fmt.Sprintf("silk: no %s range at offset %d", l.name, offset))
	}
	for i := offset; i < offset+count; i++ {
		l.active[i] = active
	}
}

func (l *stageList) set(i int, stage Stage) {
	if i < 0 || i >= len(l.stages) {
		panic(fmt.Sprintf("silk: %s index %d out of range [0, %d)", l.name, i, len(l.stages)))
	}
	if stage.Set == nil {
		panic(fmt.Sprintf("silk: nil constraint set at %s index %d", l.name, i))
	}
	if stage.Kind != l.kind {
		panic(fmt.Sprintf("silk: %s index %d expects a %s stage, got %s", l.name, i, l.kind, stage.Kind))
	}
	if l.stages[i].Set != nil {
		panic(fmt.Sprintf("silk: %s index %d registered twice", l.name, i))
	}
	l.stages[i] = stage
}

func (l *stageList) setWorkers(workers int) {
	for _, stage := range l.stages {
		if stage.Set != nil {
			setWorkers(stage.Set, workers)
		}
	}
}

// setWorkers hands the worker count to the sets solving in parallel.
func setWorkers(set constraint.Set, workers int) {
	if s, ok := set.(interface{ SetWorkers(int) }); ok {
		s.SetWorkers(workers)
	}
}

func (l *stageList) run(p *particle.Particles, dt float64, iterations int) {
	for i, stage := range l.stages {
		if !l.active[i] || stage.Set == nil {
			continue
		}
		switch stage.Kind {
		case StageInitialize:
			stage.Set.ApplyProperties(dt, iterations)
			stage.Set.Init(p)
		case StageApply:
			stage.Set.Apply(p, dt)
		}
	}
}

// particleRange is a block of particles integrated by the Evolution.
type particleRange struct {
	particle.Range
	active  bool
	damping float64
}

// Evolution advances the particles in time. A step runs, in order: the
// kinematic update, the forces and the prediction, the init stage, the rule
// stage once per iteration, the collisions against the colliders, the post
// collision stage and the velocity update.
type Evolution struct {
	// Gravity acceleration (m/s², or N/kg)
	Gravity mgl64.Vec3
	// Default damping of new particle ranges
	Damping float64
	// Distance kept between the particles and the colliders
	CollisionThickness float64
	// KinematicUpdate can move the kinematic particles, by setting their
	// predicted position, before the constraints run. time is the end of the
	// step.
	KinematicUpdate func(p *particle.Particles, dt, time float64)

	particles      particle.Particles
	particleRanges []particleRange
	colliders      []*actor.Collider

	inits          stageList
	rules          stageList
	postCollisions stageList

	iterations int
	workers    int
	time       float64
}

// NewEvolution creates an empty Evolution from the solver settings.
func NewEvolution(settings config.Solver) *Evolution {
	e := &Evolution{
		Gravity:            mgl64.Vec3(settings.Gravity),
		Damping:            settings.Damping,
		CollisionThickness: settings.CollisionThickness,
		inits:              newStageList("constraint init", StageInitialize),
		rules:              newStageList("constraint rule", StageApply),
		postCollisions:     newStageList("post collision constraint rule", StageApply),
	}
	e.SetIterations(settings.Iterations)
	e.SetWorkers(settings.Workers)
	return e
}

// Particles returns the particle store. Constraint sets only keep ranges of
// it, the store itself is passed to every call.
func (e *Evolution) Particles() *particle.Particles {
	return &e.particles
}

// AddParticleRange allocates count kinematic particles owned by owner and
// returns the offset of the first one.
func (e *Evolution) AddParticleRange(count int, owner uint32, active bool) int {
	offset := e.particles.Add(count, owner)
	e.particleRanges = append(e.particleRanges, particleRange{
		Range:   particle.Range{Offset: offset, Size: count},
		active:  active,
		damping: e.Damping,
	})
	return offset
}

func (e *Evolution) particleRange(offset int) *particleRange {
	for i := range e.particleRanges {
		if e.particleRanges[i].Offset == offset {
			return &e.particleRanges[i]
		}
	}
	panic(fmt.Sprintf("silk: no particle range at offset %d", offset))
}

// ActivateParticleRange toggles the integration of a particle range. Inactive
// particles keep their state.
func (e *Evolution) ActivateParticleRange(offset int, active bool) {
	e.particleRange(offset).active = active
}

// SetParticleRangeDamping sets the linear velocity damping of a range, in
// [0, 1].
func (e *Evolution) SetParticleRangeDamping(offset int, damping float64) {
	e.particleRange(offset).damping = mgl64.Clamp(damping, 0, 1)
}

// AddCollider adds a kinematic collider tested against every dynamic particle.
func (e *Evolution) AddCollider(collider *actor.Collider) {
	e.colliders = append(e.colliders, collider)
}

// Colliders returns the kinematic colliders.
func (e *Evolution) Colliders() []*actor.Collider {
	return e.colliders
}

func (e *Evolution) AddConstraintInitRange(count int, active bool) int {
	return e.inits.add(count, active)
}

func (e *Evolution) AddConstraintRuleRange(count int, active bool) int {
	return e.rules.add(count, active)
}

func (e *Evolution) AddPostCollisionConstraintRuleRange(count int, active bool) int {
	return e.postCollisions.add(count, active)
}

func (e *Evolution) ActivateConstraintInitRange(offset int, active bool) {
	e.inits.activate(offset, active)
}

func (e *Evolution) ActivateConstraintRuleRange(offset int, active bool) {
	e.rules.activate(offset, active)
}

func (e *Evolution) ActivatePostCollisionConstraintRuleRange(offset int, active bool) {
	e.postCollisions.activate(offset, active)
}

// ConstraintInits returns the init stage list. Entries are filled with
// SetConstraintInit.
func (e *Evolution) ConstraintInits() []Stage {
	return e.inits.stages
}

func (e *Evolution) ConstraintRules() []Stage {
	return e.rules.stages
}

func (e *Evolution) PostCollisionConstraintRules() []Stage {
	return e.postCollisions.stages
}

// SetConstraintInit registers a StageInitialize entry at a reserved index. It
// panics when the index is already registered. The set takes the current
// worker count.
func (e *Evolution) SetConstraintInit(i int, stage Stage) {
	e.inits.set(i, stage)
	setWorkers(stage.Set, e.workers)
}

// SetConstraintRule registers a StageApply entry at a reserved index.
func (e *Evolution) SetConstraintRule(i int, stage Stage) {
	e.rules.set(i, stage)
	setWorkers(stage.Set, e.workers)
}

// SetPostCollisionConstraintRule registers a StageApply entry at a reserved
// index.
func (e *Evolution) SetPostCollisionConstraintRule(i int, stage Stage) {
	e.postCollisions.set(i, stage)
	setWorkers(stage.Set, e.workers)
}

// SetIterations sets how many times the rule stage runs per step. 0 skips
// the constraints entirely.
func (e *Evolution) SetIterations(iterations int) {
	e.iterations = max(0, iterations)
}

func (e *Evolution) Iterations() int {
	return e.iterations
}

// SetWorkers changes the worker count of the solver and of every registered
// set.
func (e *Evolution) SetWorkers(workers int) {
	e.workers = max(pipeline.DefaultWorkers, workers)
	for _, l := range []*stageList{&e.inits, &e.rules, &e.postCollisions} {
		l.setWorkers(e.workers)
	}
}

func (e *Evolution) Workers() int {
	return e.workers
}

// Time returns the simulated time.
func (e *Evolution) Time() float64 {
	return e.time
}

// AdvanceOneTimeStep runs one step of dt seconds.
func (e *Evolution) AdvanceOneTimeStep(dt float64) {
	if dt <= 0 {
		return
	}
	p := &e.particles

	// Phase 1: Kinematic update
	for _, collider := range e.colliders {
		collider.Integrate(dt)
	}
	e.predictKinematic(dt)
	if e.KinematicUpdate != nil {
		e.KinematicUpdate(p, dt, e.time+dt)
	}

	// Phase 2: Forces and prediction
	e.integrate(dt)

	// Phase 3: Constraints
	e.inits.run(p, dt, e.iterations)
	for range e.iterations {
		e.rules.run(p, dt, e.iterations)
	}

	// Phase 4: Colliders, then the corrections that must see them
	e.collide()
	e.postCollisions.run(p, dt, e.iterations)

	// Phase 5: Velocity
	e.update(dt)

	e.time += dt
}

func (e *Evolution) forActiveParticles(fn func(i int)) {
	for _, r := range e.particleRanges {
		if r.active {
			pipeline.Range(e.workers, r.Offset, r.End(), fn)
		}
	}
}

// predictKinematic moves the kinematic particles along their velocity.
func (e *Evolution) predictKinematic(dt float64) {
	p := &e.particles
	e.forActiveParticles(func(i int) {
		if p.InvM[i] == 0 {
			p.P[i] = p.X[i].Add(p.V[i].Mul(dt))
		}
	})
}

// integrate applies gravity and damping to the dynamic particles and predicts
// their position.
func (e *Evolution) integrate(dt float64) {
	p := &e.particles
	for _, r := range e.particleRanges {
		if !r.active {
			continue
		}
		// Damping is given per 1/ParameterFrequency seconds
		factor := math.Pow(1-mgl64.Clamp(r.damping, 0, 1), dt*constraint.ParameterFrequency)
		pipeline.Range(e.workers, r.Offset, r.End(), func(i int) {
			if p.InvM[i] == 0 {
				return
			}
			p.V[i] = p.V[i].Add(e.Gravity.Mul(dt)).Mul(factor)
			p.P[i] = p.X[i].Add(p.V[i].Mul(dt))
		})
	}
}

// collide pushes the dynamic particles out of the colliders.
func (e *Evolution) collide() {
	if len(e.colliders) == 0 {
		return
	}
	p := &e.particles
	e.forActiveParticles(func(i int) {
		if p.InvM[i] == 0 {
			return
		}
		for _, collider := range e.colliders {
			p.P[i], _ = collider.Collide(p.X[i], p.P[i], e.CollisionThickness)
		}
	})
}

// update derives the velocities from the solved positions and commits them.
func (e *Evolution) update(dt float64) {
	p := &e.particles
	e.forActiveParticles(func(i int) {
		p.V[i] = p.P[i].Sub(p.X[i]).Mul(1.0 / dt)
		p.X[i] = p.P[i]
	})
}

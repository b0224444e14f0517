package constraint

import (
	"testing"

	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/mesh"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
)

func TestLongRange(t *testing.T) {
	tests := []struct {
		name     string
		start    mgl64.Vec3
		scale    float64
		expected mgl64.Vec3
	}{
		{"stretched tether is pulled back", mgl64.Vec3{3, 0, 0}, 1, mgl64.Vec3{1, 0, 0}},
		{"scaled rest length", mgl64.Vec3{3, 0, 0}, 1.5, mgl64.Vec3{1.5, 0, 0}},
		{"slack tether does nothing", mgl64.Vec3{0.5, 0, 0}, 1, mgl64.Vec3{0.5, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, r := newParticles([]mgl64.Vec3{{0, 0, 0}, {1, 0, 0}}, []float64{0, 1})
			batches := [][]mesh.Tether{{{Start: 0, End: 1, RestLength: 1}}}
			l := NewLongRange(r, batches, config.Uniform(1), nil, config.Uniform(tt.scale), nil)
			p.P[1] = tt.start

			l.ApplyProperties(dt, 8)
			l.Init(p)

			assertVec3InDelta(t, tt.expected, p.P[1], 1e-12)
			assert.Equal(t, mgl64.Vec3{}, p.P[0], "anchor never moves")
		})
	}
}

func TestLongRangeWeightMaps(t *testing.T) {
	p, r := newParticles([]mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, []float64{0, 1, 1})
	batches := [][]mesh.Tether{{
		{Start: 0, End: 1, RestLength: 1},
		{Start: 0, End: 2, RestLength: 1},
	}}
	// Scale goes from 1 at particle 1 to 2 at particle 2
	l := NewLongRange(r, batches, config.Uniform(1), nil, config.Range{Low: 1, High: 2}, []float64{0, 0, 1})
	p.P[1] = mgl64.Vec3{5, 0, 0}
	p.P[2] = mgl64.Vec3{0, 5, 0}

	l.ApplyProperties(dt, 1)
	l.Init(p)

	assertVec3InDelta(t, mgl64.Vec3{1, 0, 0}, p.P[1], 1e-12)
	assertVec3InDelta(t, mgl64.Vec3{0, 2, 0}, p.P[2], 1e-12)
}

func TestLongRangeIterations(t *testing.T) {
	p, r := newParticles([]mgl64.Vec3{{0, 0, 0}, {1, 0, 0}}, []float64{0, 1})
	l := NewLongRange(r, [][]mesh.Tether{{{Start: 0, End: 1, RestLength: 1}}}, config.Uniform(0.5), nil, config.Uniform(1), nil)
	l.ApplyProperties(dt, 4)

	// Four partial iterations remove as much as one fast forward
	p.P[1] = mgl64.Vec3{2, 0, 0}
	for i := 0; i < 4; i++ {
		l.Apply(p, dt)
	}
	iterated := p.P[1]

	p.P[1] = mgl64.Vec3{2, 0, 0}
	l.Init(p)
	assertVec3InDelta(t, p.P[1], iterated, 1e-12)
}

func TestLongRangeContract(t *testing.T) {
	_, r := newParticles(make([]mgl64.Vec3, 3), []float64{0, 1, 1})

	assert.Panics(t, func() {
		NewLongRange(r, [][]mesh.Tether{{{Start: 0, End: 5, RestLength: 1}}}, config.Uniform(1), nil, config.Uniform(1), nil)
	}, "out of range")
	assert.PanicsWithValue(t, "constraint: particle 1 tethered twice in batch 0", func() {
		NewLongRange(r, [][]mesh.Tether{{{Start: 0, End: 1}, {Start: 2, End: 1}}}, config.Uniform(1), nil, config.Uniform(1), nil)
	})
	assert.NotPanics(t, func() {
		NewLongRange(r, [][]mesh.Tether{{{Start: 0, End: 1}}, {{Start: 2, End: 1}}}, config.Uniform(1), nil, config.Uniform(1), nil)
	}, "same particle in two batches")
	assert.PanicsWithValue(t, "constraint: particle 2 is both a start and an end in batch 0", func() {
		NewLongRange(r, [][]mesh.Tether{{{Start: 0, End: 2}, {Start: 2, End: 1}}}, config.Uniform(1), nil, config.Uniform(1), nil)
	})
	assert.NotPanics(t, func() {
		NewLongRange(r, [][]mesh.Tether{{{Start: 0, End: 1}, {Start: 0, End: 2}}, {{Start: 1, End: 2}}}, config.Uniform(1), nil, config.Uniform(1), nil)
	}, "shared start, and an end of another batch as start")
}

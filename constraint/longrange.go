package constraint

import (
	"fmt"

	"github.com/akmonengine/silk/config"
	"github.com/akmonengine/silk/mesh"
	"github.com/akmonengine/silk/particle"
	"github.com/akmonengine/silk/pipeline"
)

// LongRange keeps every dynamic particle within a scaled rest distance of a
// kinematic anchor. Tethers only pull, they never push.
//
// Registered in the init stage it runs once per step, moving the particles
// ahead of the iterations. Registered in the rule stage it runs every
// iteration.
type LongRange struct {
	particles    particle.Range
	tethers      []mesh.Tether
	batchOffsets []int
	workers      int

	stiffness   WeightedValue
	scale       WeightedValue
	iteration   iterationStiffness
	fastForward iterationStiffness
}

// NewLongRange takes the tethers grouped in batches, each batch holding a
// particle at most once as End and never as both Start and End. Weight maps
// are indexed by the End particle.
func NewLongRange(r particle.Range, batches [][]mesh.Tether, stiffness config.Range, stiffnessMap []float64, scale config.Range, scaleMap []float64) *LongRange {
	l := &LongRange{
		particles:    r,
		batchOffsets: []int{0},
		workers:      pipeline.DefaultWorkers,
	}
	for b, batch := range batches {
		seen := make(map[int]struct{}, len(batch))
		for _, tether := range batch {
			if !r.Contains(tether.Start) || !r.Contains(tether.End) {
				panic(fmt.Sprintf("constraint: tether (%d, %d) out of particle range [%d, %d)", tether.Start, tether.End, r.Offset, r.End()))
			}
			if _, ok := seen[tether.End]; ok {
				panic(fmt.Sprintf("constraint: particle %d tethered twice in batch %d", tether.End, b))
			}
			seen[tether.End] = struct{}{}
		}
		// Ends move while the batch runs, Starts are only read
		for _, tether := range batch {
			if _, ok := seen[tether.Start]; ok {
				panic(fmt.Sprintf("constraint: particle %d is both a start and an end in batch %d", tether.Start, b))
			}
		}
		l.tethers = append(l.tethers, batch...)
		l.batchOffsets = append(l.batchOffsets, len(l.tethers))
	}
	l.SetProperties(stiffness, stiffnessMap, scale, scaleMap)
	return l
}

func (l *LongRange) SetProperties(stiffness config.Range, stiffnessMap []float64, scale config.Range, scaleMap []float64) {
	l.stiffness = NewWeightedValue(stiffness, l.endWeights(stiffnessMap), MinStiffness, MaxStiffness)
	l.scale = NewWeightedValue(scale, l.endWeights(scaleMap), 0, maxTetherScale)
}

const maxTetherScale = 10.0

func (l *LongRange) endWeights(weightMap []float64) []float64 {
	vertices := vertexWeights(l.particles, weightMap)
	if vertices == nil {
		return nil
	}
	weights := make([]float64, len(l.tethers))
	for i, tether := range l.tethers {
		weights[i] = vertices[tether.End-l.particles.Offset]
	}
	return weights
}

func (l *LongRange) Size() int {
	return len(l.tethers)
}

func (l *LongRange) Tethers() []mesh.Tether {
	return l.tethers
}

func (l *LongRange) SetWorkers(workers int) {
	l.workers = max(pipeline.DefaultWorkers, workers)
}

// Init projects every tether once with its full step stiffness.
func (l *LongRange) Init(p *particle.Particles) {
	pipeline.ForColors(l.workers, l.batchOffsets, func(i int) {
		l.apply(p, i, l.fastForward.at(i))
	})
}

func (l *LongRange) ApplyProperties(dt float64, iterations int) {
	l.iteration.update(l.stiffness, len(l.tethers), dt, iterations)
	l.fastForward.update(l.stiffness, len(l.tethers), dt, 1)
}

func (l *LongRange) Apply(p *particle.Particles, dt float64) {
	pipeline.ForColors(l.workers, l.batchOffsets, func(i int) {
		l.apply(p, i, l.iteration.at(i))
	})
}

func (l *LongRange) apply(p *particle.Particles, i int, k float64) {
	tether := l.tethers[i]
	if p.InvM[tether.End] == 0 {
		return
	}

	direction, length, ok := normalize(p.P[tether.End].Sub(p.P[tether.Start]))
	if !ok {
		return
	}
	target := tether.RestLength * l.scale.At(i)
	if length <= target {
		return
	}

	p.P[tether.End] = p.P[tether.End].Sub(direction.Mul(k * (length - target)))
}

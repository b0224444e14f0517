// Package coloring partitions constraints into color classes that can be
// solved concurrently.
//
// Two constraints of the same color never share a particle with a non zero
// inverse mass. Kinematic particles are never written by a constraint, so they
// impose nothing on the coloring.
//
// The algorithm is a greedy, particle ordered coloring:
//  1. Build, for each particle, the list of incident constraints in ascending order
//  2. Visit the particles in ascending index order
//  3. Give each incident constraint not colored yet the lowest color that is
//     unused at all of its movable particles, starting at the visited
//     particle's next free color
//  4. Record the color at every movable particle and advance their next free color
//
// The result only depends on the constraint order and the inverse masses, the
// same input always yields the same partition. Each constraint is colored once
// and each color test is a bit lookup, so the cost stays close to linear in the
// number of constraints for meshes with a bounded valence.
package coloring

import (
	"fmt"
	"sort"
)

// Element is a constraint described by the particle indices it reads and writes.
type Element interface {
	~[2]int | ~[3]int | ~[4]int
}

// colorSet is a growable bit set of colors used at a particle.
type colorSet []uint64

func (s colorSet) contains(color int) bool {
	word := color >> 6
	return word < len(s) && s[word]&(1<<(uint(color)&63)) != 0
}

func (s *colorSet) add(color int) {
	word := color >> 6
	for len(*s) <= word {
		*s = append(*s, 0)
	}
	(*s)[word] |= 1 << (uint(color) & 63)
}

// ComputeGraphColoring returns the color buckets of the elements. Each bucket
// holds element indices in ascending order, and every element index appears in
// exactly one bucket. invM is indexed by particle index.
func ComputeGraphColoring[E Element](elements []E, invM []float64) [][]int {
	if len(elements) == 0 {
		return nil
	}

	// Incident constraints per particle, stored as a compressed adjacency list
	numParticles := 0
	for _, element := range elements {
		for i := 0; i < len(element); i++ {
			numParticles = max(numParticles, element[i]+1)
		}
	}
	if numParticles > len(invM) {
		panic(fmt.Sprintf("coloring: particle index %d out of range [0, %d)", numParticles-1, len(invM)))
	}

	counts := make([]int, numParticles+1)
	for _, element := range elements {
		for i := 0; i < len(element); i++ {
			if !duplicateBefore(element, i) {
				counts[element[i]+1]++
			}
		}
	}
	for p := 1; p <= numParticles; p++ {
		counts[p] += counts[p-1]
	}
	incident := make([]int, counts[numParticles])
	cursor := append([]int(nil), counts[:numParticles]...)
	for index, element := range elements {
		for i := 0; i < len(element); i++ {
			if duplicateBefore(element, i) {
				continue
			}
			p := element[i]
			incident[cursor[p]] = index
			cursor[p]++
		}
	}

	colors := make([]int, len(elements))
	for i := range colors {
		colors[i] = -1
	}
	used := make([]colorSet, numParticles)
	next := make([]int, numParticles)
	numColors := 0

	for p := 0; p < numParticles; p++ {
		for _, index := range incident[counts[p]:counts[p+1]] {
			if colors[index] >= 0 {
				continue
			}
			element := elements[index]

			color := 0
			if invM[p] != 0 {
				color = next[p]
			}
			for !available(element, invM, used, color) {
				color++
			}

			colors[index] = color
			numColors = max(numColors, color+1)
			for i := 0; i < len(element); i++ {
				q := element[i]
				if invM[q] == 0 {
					continue
				}
				used[q].add(color)
				for used[q].contains(next[q]) {
					next[q]++
				}
			}
		}
	}

	buckets := make([][]int, numColors)
	for index, color := range colors {
		buckets[color] = append(buckets[color], index)
	}

	return buckets
}

func available[E Element](element E, invM []float64, used []colorSet, color int) bool {
	for i := 0; i < len(element); i++ {
		q := element[i]
		if invM[q] != 0 && used[q].contains(color) {
			return false
		}
	}
	return true
}

// duplicateBefore reports whether element[i] already appeared at a lower slot.
func duplicateBefore[E Element](element E, i int) bool {
	for j := 0; j < i; j++ {
		if element[j] == element[i] {
			return true
		}
	}
	return false
}

// Validate checks that colors is a partition of the element indices in which
// no two elements of a color share a movable particle.
func Validate[E Element](elements []E, invM []float64, colors [][]int) error {
	seen := make([]bool, len(elements))
	for color, bucket := range colors {
		owner := make(map[int]int)
		for _, index := range bucket {
			if index < 0 || index >= len(elements) {
				return fmt.Errorf("color %d: element index %d out of range", color, index)
			}
			if seen[index] {
				return fmt.Errorf("color %d: element %d appears more than once", color, index)
			}
			seen[index] = true

			element := elements[index]
			for i := 0; i < len(element); i++ {
				p := element[i]
				if invM[p] == 0 || duplicateBefore(element, i) {
					continue
				}
				if other, ok := owner[p]; ok {
					return fmt.Errorf("color %d: elements %d and %d share movable particle %d", color, other, index, p)
				}
				owner[p] = index
			}
		}
	}
	for index, ok := range seen {
		if !ok {
			return fmt.Errorf("element %d has no color", index)
		}
	}
	return nil
}

// Reorder sorts the elements by color in place. It returns the color offsets,
// color c spanning [offsets[c], offsets[c+1]), and the permutation applied:
// the element now at position i was at position order[i].
func Reorder[E Element](elements []E, colors [][]int) (offsets []int, order []int) {
	offsets = make([]int, 0, len(colors)+1)
	order = make([]int, 0, len(elements))
	offsets = append(offsets, 0)
	for _, bucket := range colors {
		sorted := append([]int(nil), bucket...)
		sort.Ints(sorted)
		order = append(order, sorted...)
		offsets = append(offsets, len(order))
	}

	reordered := make([]E, len(order))
	for i, index := range order {
		reordered[i] = elements[index]
	}
	copy(elements, reordered)

	return offsets, order
}

// Permute applies an order returned by Reorder to a parallel array.
func Permute[T any](values []T, order []int) []T {
	if len(values) == 0 {
		return values
	}
	permuted := make([]T, len(order))
	for i, index := range order {
		permuted[i] = values[index]
	}
	return permuted
}

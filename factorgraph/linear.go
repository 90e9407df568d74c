// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package factorgraph

import (
	"github.com/codeaudit/wolfe/sparse"
	log "github.com/sirupsen/logrus"
)

// A LinearPotential scores an assignment as the dot product of the graph's
// weight vector with the assignment's sufficient statistics (a sparse feature
// vector), plus an optional fixed base score. Assignments without statistics
// score just their base (0 by default): unlike tables there is no impossible
// sentinel, since a feature-less assignment is a legitimate zero score.
type LinearPotential struct {
	dims   []int
	stride []int
	stats  []sparse.Vector
	base   []float64 // nil until a base score is set
}

// NewLinearPotential returns a linear potential over arguments with the
// given domain sizes. All statistics start empty and all base scores at 0.
func NewLinearPotential(dims []int) *LinearPotential {
	return &LinearPotential{
		dims:   append([]int(nil), dims...),
		stride: strides(dims),
		stats:  make([]sparse.Vector, numSettings(dims)),
	}
}

// SetStats stores the sufficient statistics for one assignment, replacing
// any previous value.
func (p *LinearPotential) SetStats(setting []int, stats sparse.Vector) {
	p.stats[p.index(setting)] = stats.Clone()
}

// AddStats accumulates scale*stats into one assignment's statistics.
func (p *LinearPotential) AddStats(setting []int, stats sparse.Vector, scale float64) {
	p.stats[p.index(setting)].Add(stats, scale)
}

// AddBase adds delta to one assignment's base score.
func (p *LinearPotential) AddBase(setting []int, delta float64) {
	if p.base == nil {
		p.base = make([]float64, numSettings(p.dims))
	}
	p.base[p.index(setting)] += delta
}

// Dims implements Potential.Dims.
func (p *LinearPotential) Dims() []int {
	return p.dims
}

// Score implements Potential.Score: base plus dot(weights, stats).
func (p *LinearPotential) Score(setting []int, weights []float64) float64 {
	index := p.index(setting)
	score := p.stats[index].Dot(weights)
	if p.base != nil {
		score += p.base[index]
	}
	return score
}

// MarginalF2N implements Potential.MarginalF2N.
func (p *LinearPotential) MarginalF2N(in [][]float64, weights []float64, self int, out []float64) {
	computeF2N(p, in, weights, self, out, false)
}

// MaxMarginalF2N implements Potential.MaxMarginalF2N.
func (p *LinearPotential) MaxMarginalF2N(in [][]float64, weights []float64, self int, out []float64) {
	computeF2N(p, in, weights, self, out, true)
}

// MarginalExpectations implements Potential.MarginalExpectations,
// accumulating each assignment's statistics weighted by its belief.
func (p *LinearPotential) MarginalExpectations(in [][]float64, weights []float64, grad *sparse.Vector) float64 {
	return computeMarginalExpectations(p, in, weights, grad, p.statsAt)
}

// MaxExpectations implements Potential.MaxExpectations, accumulating the
// arg-max assignment's statistics with weight 1.
func (p *LinearPotential) MaxExpectations(in [][]float64, weights []float64, grad *sparse.Vector) (float64, []int) {
	return computeMaxExpectations(p, in, weights, grad, p.statsAt)
}

// Stats returns one assignment's sufficient statistics. The caller must not
// modify the result.
func (p *LinearPotential) Stats(setting []int) sparse.Vector {
	return p.stats[p.index(setting)]
}

// Base returns one assignment's base score.
func (p *LinearPotential) Base(setting []int) float64 {
	if p.base == nil {
		return 0
	}
	return p.base[p.index(setting)]
}

func (p *LinearPotential) statsAt(index int) *sparse.Vector {
	return &p.stats[index]
}

func (p *LinearPotential) index(setting []int) int {
	if len(setting) != len(p.dims) {
		log.Panicf("factorgraph: assignment %v doesn't match potential arguments %v", setting, p.dims)
	}
	index := 0
	for i, v := range setting {
		if v < 0 || v >= p.dims[i] {
			log.Panicf("factorgraph: assignment %v outside potential domain %v", setting, p.dims)
		}
		index += v * p.stride[i]
	}
	return index
}

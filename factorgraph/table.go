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

// A TablePotential scores assignments by dense table lookup. Entries that
// were never set score ScoreUndefined, marking those assignments impossible.
type TablePotential struct {
	dims    []int
	stride  []int
	entries []float64
}

// NewTablePotential returns a table potential over arguments with the given
// domain sizes. Every entry starts at ScoreUndefined.
func NewTablePotential(dims []int) *TablePotential {
	p := &TablePotential{
		dims:    append([]int(nil), dims...),
		stride:  strides(dims),
		entries: make([]float64, numSettings(dims)),
	}
	p.Fill(ScoreUndefined)
	return p
}

// Fill sets every entry to the given score.
func (p *TablePotential) Fill(score float64) {
	for i := range p.entries {
		p.entries[i] = score
	}
}

// Set stores the score for one assignment.
func (p *TablePotential) Set(setting []int, score float64) {
	p.entries[p.index(setting)] = score
}

// Add adds delta to one assignment's score. Adding to an unset entry leaves
// it at ScoreUndefined.
func (p *TablePotential) Add(setting []int, delta float64) {
	p.entries[p.index(setting)] += delta
}

// SetAll stores all entries at once, in increasing assignment-index order
// (last argument varying fastest). It panics if the length doesn't match the
// assignment space.
func (p *TablePotential) SetAll(scores []float64) {
	if len(scores) != len(p.entries) {
		log.Panicf("factorgraph: SetAll got %d scores for a table of %d entries",
			len(scores), len(p.entries))
	}
	copy(p.entries, scores)
}

// Dims implements Potential.Dims.
func (p *TablePotential) Dims() []int {
	return p.dims
}

// Score implements Potential.Score by table lookup; weights are ignored.
func (p *TablePotential) Score(setting []int, weights []float64) float64 {
	return p.entries[p.index(setting)]
}

// MarginalF2N implements Potential.MarginalF2N.
func (p *TablePotential) MarginalF2N(in [][]float64, weights []float64, self int, out []float64) {
	computeF2N(p, in, weights, self, out, false)
}

// MaxMarginalF2N implements Potential.MaxMarginalF2N.
func (p *TablePotential) MaxMarginalF2N(in [][]float64, weights []float64, self int, out []float64) {
	computeF2N(p, in, weights, self, out, true)
}

// MarginalExpectations implements Potential.MarginalExpectations. A table
// carries no features, so only the objective contribution is produced.
func (p *TablePotential) MarginalExpectations(in [][]float64, weights []float64, grad *sparse.Vector) float64 {
	return computeMarginalExpectations(p, in, weights, grad, nil)
}

// MaxExpectations implements Potential.MaxExpectations.
func (p *TablePotential) MaxExpectations(in [][]float64, weights []float64, grad *sparse.Vector) (float64, []int) {
	return computeMaxExpectations(p, in, weights, grad, nil)
}

func (p *TablePotential) index(setting []int) int {
	if len(setting) != len(p.dims) {
		log.Panicf("factorgraph: assignment %v doesn't match table arguments %v", setting, p.dims)
	}
	index := 0
	for i, v := range setting {
		if v < 0 || v >= p.dims[i] {
			log.Panicf("factorgraph: assignment %v outside table domain %v", setting, p.dims)
		}
		index += v * p.stride[i]
	}
	return index
}

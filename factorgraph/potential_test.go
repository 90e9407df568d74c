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
	"math"
	"testing"

	"github.com/codeaudit/wolfe/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_TablePotential_Score(t *testing.T) {
	p := NewTablePotential([]int{2, 3})
	p.Set([]int{0, 0}, 1)
	p.Set([]int{1, 2}, -4)
	assert.Equal(t, 1.0, p.Score([]int{0, 0}, nil))
	assert.Equal(t, -4.0, p.Score([]int{1, 2}, nil))
	// Unset entries read the impossible sentinel.
	assert.True(t, math.IsInf(p.Score([]int{0, 1}, nil), -1))
}

func Test_TablePotential_SetAllOrder(t *testing.T) {
	p := NewTablePotential([]int{2, 2})
	p.SetAll([]float64{1, 2, -3, 0})
	// Last argument varies fastest.
	assert.Equal(t, 1.0, p.Score([]int{0, 0}, nil))
	assert.Equal(t, 2.0, p.Score([]int{0, 1}, nil))
	assert.Equal(t, -3.0, p.Score([]int{1, 0}, nil))
	assert.Equal(t, 0.0, p.Score([]int{1, 1}, nil))
	assert.Panics(t, func() { p.SetAll([]float64{1}) })
}

func Test_TablePotential_outsideDomainPanics(t *testing.T) {
	p := NewTablePotential([]int{2})
	assert.Panics(t, func() { p.Score([]int{2}, nil) })
	assert.Panics(t, func() { p.Score([]int{0, 0}, nil) })
	assert.Panics(t, func() { p.Set([]int{-1}, 0) })
}

func Test_MarginalF2N(t *testing.T) {
	p := NewTablePotential([]int{2, 2})
	p.SetAll([]float64{1, 2, -3, 0})
	in := [][]float64{{0, 0}, {0.5, -0.5}}
	out := make([]float64, 2)
	// Message to argument 0: logsumexp over argument 1 of score + in[1].
	p.MarginalF2N(in, nil, 0, out)
	want0 := LogAdd(1+0.5, 2-0.5)
	want1 := LogAdd(-3+0.5, 0-0.5)
	shift := math.Max(want0, want1)
	assert.InDelta(t, want0-shift, out[0], 1e-12)
	assert.InDelta(t, want1-shift, out[1], 1e-12)
	// The message is normalized to max 0.
	assert.InDelta(t, 0, math.Max(out[0], out[1]), 1e-12)
}

func Test_MaxMarginalF2N(t *testing.T) {
	p := NewTablePotential([]int{2, 2})
	p.SetAll([]float64{1, 2, -3, 0})
	in := [][]float64{{0, 0}, {0, 0}}
	out := make([]float64, 2)
	p.MaxMarginalF2N(in, nil, 0, out)
	// Raw max-marginals are max(1,2)=2 and max(-3,0)=0; normalized by -2.
	assert.InDelta(t, 0, out[0], 1e-12)
	assert.InDelta(t, -2, out[1], 1e-12)
}

func Test_F2N_singleEdgeFactor(t *testing.T) {
	p := NewTablePotential([]int{3})
	p.SetAll([]float64{1, 4, 2})
	in := [][]float64{{9, 9, 9}} // self message must be ignored
	out := make([]float64, 3)
	p.MarginalF2N(in, nil, 0, out)
	assert.InDelta(t, 1-4, out[0], 1e-12)
	assert.InDelta(t, 0, out[1], 1e-12)
	assert.InDelta(t, 2-4, out[2], 1e-12)
}

func Test_F2N_emptySupport(t *testing.T) {
	p := NewTablePotential([]int{2, 2}) // nothing set: all impossible
	in := [][]float64{{0, 0}, {0, 0}}
	out := make([]float64, 2)
	p.MarginalF2N(in, nil, 0, out)
	assert.True(t, math.IsInf(out[0], -1))
	assert.True(t, math.IsInf(out[1], -1))
}

func Test_MarginalExpectations_table(t *testing.T) {
	p := NewTablePotential([]int{2})
	p.SetAll([]float64{math.Log(1), math.Log(3)})
	in := [][]float64{{0, 0}}
	contribution := p.MarginalExpectations(in, nil, nil)
	// E[score] + H(b) with b = (1/4, 3/4) equals logZ = log 4.
	assert.InDelta(t, math.Log(4), contribution, 1e-12)
}

func Test_MarginalExpectations_emptySupport(t *testing.T) {
	p := NewTablePotential([]int{2})
	in := [][]float64{{0, 0}}
	grad := sparse.Vector{}
	contribution := p.MarginalExpectations(in, nil, &grad)
	assert.True(t, math.IsInf(contribution, -1))
	assert.Equal(t, 0, grad.Len())
}

func Test_MaxExpectations_table(t *testing.T) {
	p := NewTablePotential([]int{2, 2})
	p.SetAll([]float64{1, 2, -3, 0})
	in := [][]float64{{0, 0}, {0, 0}}
	score, setting := p.MaxExpectations(in, nil, nil)
	assert.Equal(t, 2.0, score)
	assert.Equal(t, []int{0, 1}, setting)

	// Incoming messages can move the arg-max.
	in = [][]float64{{0, 0}, {0, -10}}
	score, setting = p.MaxExpectations(in, nil, nil)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, []int{0, 0}, setting)
}

func Test_LinearPotential_Score(t *testing.T) {
	p := NewLinearPotential([]int{2, 2})
	p.SetStats([]int{0, 1}, sparse.NewVector(map[int]float64{0: 1, 2: 2}))
	weights := []float64{1.5, 0, -1}
	assert.InDelta(t, 1.5-2, p.Score([]int{0, 1}, weights), 1e-12)
	assert.Equal(t, 0.0, p.Score([]int{1, 1}, weights))
	p.AddBase([]int{1, 1}, -2.5)
	assert.Equal(t, -2.5, p.Score([]int{1, 1}, weights))
}

func Test_LinearPotential_gradient(t *testing.T) {
	// One binary argument, one-hot features per value, weights (0, log 3):
	// beliefs are (1/4, 3/4) and the gradient is the feature expectation.
	p := NewLinearPotential([]int{2})
	p.SetStats([]int{0}, sparse.NewVector(map[int]float64{0: 1}))
	p.SetStats([]int{1}, sparse.NewVector(map[int]float64{1: 1}))
	weights := []float64{0, math.Log(3)}
	in := [][]float64{{0, 0}}

	grad := sparse.Vector{}
	contribution := p.MarginalExpectations(in, weights, &grad)
	assert.InDelta(t, math.Log(4), contribution, 1e-12)
	assert.InDelta(t, 0.25, grad.Get(0), 1e-12)
	assert.InDelta(t, 0.75, grad.Get(1), 1e-12)

	grad = sparse.Vector{}
	score, setting := p.MaxExpectations(in, weights, &grad)
	assert.InDelta(t, math.Log(3), score, 1e-12)
	assert.Equal(t, []int{1}, setting)
	assert.Equal(t, 0.0, grad.Get(0))
	assert.Equal(t, 1.0, grad.Get(1))
}

func Test_MaxExpectations_tieBreaksLow(t *testing.T) {
	p := NewTablePotential([]int{2, 2})
	p.SetAll([]float64{5, 5, 5, 5})
	in := [][]float64{{0, 0}, {0, 0}}
	_, setting := p.MaxExpectations(in, nil, nil)
	assert.Equal(t, []int{0, 0}, setting)
}

func Test_zeroArityPotential(t *testing.T) {
	// A factor with no edges still must work: a single empty assignment.
	p := NewTablePotential([]int{})
	p.SetAll([]float64{2.5})
	require.Equal(t, 2.5, p.Score([]int{}, nil))
	assert.InDelta(t, 2.5, p.MarginalExpectations(nil, nil, nil), 1e-12)
	score, setting := p.MaxExpectations(nil, nil, nil)
	assert.Equal(t, 2.5, score)
	assert.Empty(t, setting)
}

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

	"github.com/codeaudit/wolfe/sparse"
)

// ScoreUndefined is the score of a table entry that was never set. It marks
// the assignment as impossible: sum-product gives it zero probability mass
// and max-product never selects it while any possible assignment remains.
var ScoreUndefined = math.Inf(-1)

// A Potential is a factor's scoring function over joint assignments of the
// factor's argument variables. Scores are log-space throughout: sum-product
// adds them and aggregates with log-sum-exp, so they never leave log space.
//
// There are exactly two implementations, TablePotential and LinearPotential;
// the engine handles both through this contract and nothing else. A message
// slice in[i] is the node-to-factor message of the factor's i'th edge.
//
// The identity of an argument is its position: the i'th dimension of Dims()
// corresponds to the i'th AddEdge call on the owning factor.
type Potential interface {
	// Dims returns the domain sizes of the arguments. Callers must not
	// modify the returned slice.
	Dims() []int
	// Score returns the log-space score of the given joint assignment.
	// Implementations that don't use weights ignore them.
	Score(setting []int, weights []float64) float64
	// MarginalF2N writes the sum-product factor-to-node message for the
	// argument at position self into out: for each value v of that node,
	// the log-sum-exp over all other-argument assignments of the score
	// plus the incoming messages on the other edges. The result is
	// normalized by subtracting its maximum. in[self] is ignored.
	MarginalF2N(in [][]float64, weights []float64, self int, out []float64)
	// MaxMarginalF2N is MarginalF2N with max in place of log-sum-exp.
	MaxMarginalF2N(in [][]float64, weights []float64, self int, out []float64)
	// MarginalExpectations accumulates the factor's feature expectations
	// into grad (weighted by the factor's marginal belief, which it
	// computes from the incoming messages) and returns the factor's
	// contribution to the sum-product objective: the expected score plus
	// the entropy of the factor belief. If the factor has no possible
	// assignment the result is -Inf and grad is untouched. grad may be
	// nil to skip gradient accumulation.
	MarginalExpectations(in [][]float64, weights []float64, grad *sparse.Vector) float64
	// MaxExpectations finds the arg-max assignment given the incoming
	// messages (ties broken toward the lowest assignment index),
	// accumulates its feature vector into grad with weight 1, and returns
	// the assignment's score and the assignment itself. grad may be nil.
	MaxExpectations(in [][]float64, weights []float64, grad *sparse.Vector) (float64, []int)
}

// ImplementPotential lists the types that implement Potential. This serves as
// documentation and as a compile-time check; the engine handles no others.
var ImplementPotential = []Potential{
	&TablePotential{},
	&LinearPotential{},
}

// numSettings returns the size of the joint assignment space.
func numSettings(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// strides returns the multiplier of each dimension in the linear assignment
// index. The last dimension varies fastest, so strides[len-1] == 1.
func strides(dims []int) []int {
	s := make([]int, len(dims))
	acc := 1
	for i := len(dims) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= dims[i]
	}
	return s
}

// forEachSetting calls fn with every joint assignment of dims in increasing
// linear-index order. The setting slice is reused between calls.
func forEachSetting(dims []int, fn func(index int, setting []int)) {
	setting := make([]int, len(dims))
	n := numSettings(dims)
	for index := 0; index < n; index++ {
		fn(index, setting)
		for i := len(dims) - 1; i >= 0; i-- {
			setting[i]++
			if setting[i] < dims[i] {
				break
			}
			setting[i] = 0
		}
	}
}

// LogAdd returns log(exp(a) + exp(b)) without leaving log space.
func LogAdd(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// normalizeByMax shifts the message so its maximum entry is 0. An all
// -Inf message (empty support) is left as is; shifting it would produce NaNs.
func normalizeByMax(msg []float64) {
	max := math.Inf(-1)
	for _, v := range msg {
		if v > max {
			max = v
		}
	}
	if math.IsInf(max, -1) {
		return
	}
	for i := range msg {
		msg[i] -= max
	}
}

// scored is the slice of the Potential contract that the generic message
// routines below need.
type scored interface {
	Dims() []int
	Score(setting []int, weights []float64) float64
}

func computeF2N(p scored, in [][]float64, weights []float64, self int, out []float64, max bool) {
	for i := range out {
		out[i] = math.Inf(-1)
	}
	forEachSetting(p.Dims(), func(_ int, setting []int) {
		v := p.Score(setting, weights)
		for j := range in {
			if j != self {
				v += in[j][setting[j]]
			}
		}
		tgt := &out[setting[self]]
		if max {
			if v > *tgt {
				*tgt = v
			}
		} else {
			*tgt = LogAdd(*tgt, v)
		}
	})
	normalizeByMax(out)
}

// computeMarginalExpectations implements MarginalExpectations generically.
// statsAt returns the sufficient statistics of the given assignment index, or
// is nil for feature-free potentials.
func computeMarginalExpectations(p scored, in [][]float64, weights []float64,
	grad *sparse.Vector, statsAt func(index int) *sparse.Vector) float64 {

	dims := p.Dims()
	n := numSettings(dims)
	scores := make([]float64, n)
	unnorm := make([]float64, n)
	logZ := math.Inf(-1)
	forEachSetting(dims, func(index int, setting []int) {
		s := p.Score(setting, weights)
		v := s
		for j := range in {
			v += in[j][setting[j]]
		}
		scores[index] = s
		unnorm[index] = v
		logZ = LogAdd(logZ, v)
	})
	if math.IsInf(logZ, -1) {
		return logZ
	}
	contribution := 0.0
	for index := 0; index < n; index++ {
		belief := math.Exp(unnorm[index] - logZ)
		if belief <= 0 {
			continue
		}
		contribution += belief*scores[index] - belief*math.Log(belief)
		if grad != nil && statsAt != nil {
			if stats := statsAt(index); stats != nil {
				grad.Add(*stats, belief)
			}
		}
	}
	return contribution
}

// computeMaxExpectations implements MaxExpectations generically.
func computeMaxExpectations(p scored, in [][]float64, weights []float64,
	grad *sparse.Vector, statsAt func(index int) *sparse.Vector) (float64, []int) {

	dims := p.Dims()
	bestIndex := -1
	bestScore := 0.0
	bestValue := math.Inf(-1)
	best := make([]int, len(dims))
	forEachSetting(dims, func(index int, setting []int) {
		s := p.Score(setting, weights)
		v := s
		for j := range in {
			v += in[j][setting[j]]
		}
		if bestIndex == -1 || v > bestValue {
			bestIndex = index
			bestValue = v
			bestScore = s
			copy(best, setting)
		}
	})
	if math.IsInf(bestValue, -1) {
		// Every assignment is impossible.
		return math.Inf(-1), best
	}
	if grad != nil && statsAt != nil {
		if stats := statsAt(bestIndex); stats != nil {
			grad.Add(*stats, 1.0)
		}
	}
	return bestScore, best
}

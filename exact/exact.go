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

// Package exact computes inference results by brute-force enumeration of all
// joint assignments. It exists to check the message-passing engine in tests;
// its cost is exponential in the number of variables.
package exact

import (
	"math"

	"github.com/codeaudit/wolfe/factorgraph"
	"github.com/codeaudit/wolfe/sparse"
	log "github.com/sirupsen/logrus"
)

// forEach calls fn with every joint assignment of the graph's variables,
// in lexicographic order with the last variable varying fastest. The
// assignment slice is reused between calls.
func forEach(g *factorgraph.Graph, fn func(assignment []int)) {
	if !g.Built() {
		log.Panicf("exact: graph must be built")
	}
	n := g.NumNodes()
	assignment := make([]int, n)
	for {
		fn(assignment)
		i := n - 1
		for ; i >= 0; i-- {
			assignment[i]++
			if assignment[i] < g.Node(factorgraph.NodeID(i)).Dim {
				break
			}
			assignment[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// Score returns the total log-space score of one joint assignment: the sum
// of every factor's score of its arguments' values.
func Score(g *factorgraph.Graph, assignment []int) float64 {
	total := 0.0
	for f := 0; f < g.NumFactors(); f++ {
		factor := g.Factor(factorgraph.FactorID(f))
		setting := make([]int, len(factor.Edges))
		for j, e := range factor.Edges {
			setting[j] = assignment[g.Edge(e).Node]
		}
		total += factor.Potential.Score(setting, g.Weights)
	}
	return total
}

// LogZ returns the log partition function: log-sum-exp of every joint
// assignment's score.
func LogZ(g *factorgraph.Graph) float64 {
	logZ := math.Inf(-1)
	forEach(g, func(assignment []int) {
		logZ = factorgraph.LogAdd(logZ, Score(g, assignment))
	})
	return logZ
}

// Marginals returns each variable's marginal distribution as normalized
// log-probabilities, indexed [node][value].
func Marginals(g *factorgraph.Graph) [][]float64 {
	marginals := make([][]float64, g.NumNodes())
	for i := range marginals {
		marginals[i] = make([]float64, g.Node(factorgraph.NodeID(i)).Dim)
		for x := range marginals[i] {
			marginals[i][x] = math.Inf(-1)
		}
	}
	logZ := math.Inf(-1)
	forEach(g, func(assignment []int) {
		s := Score(g, assignment)
		logZ = factorgraph.LogAdd(logZ, s)
		for i, x := range assignment {
			marginals[i][x] = factorgraph.LogAdd(marginals[i][x], s)
		}
	})
	if !math.IsInf(logZ, -1) {
		for i := range marginals {
			for x := range marginals[i] {
				marginals[i][x] -= logZ
			}
		}
	}
	return marginals
}

// Max returns the highest-scoring joint assignment and its score. Ties break
// toward the lexicographically smallest assignment.
func Max(g *factorgraph.Graph) (float64, []int) {
	best := math.Inf(-1)
	var bestAssignment []int
	forEach(g, func(assignment []int) {
		if s := Score(g, assignment); s > best || bestAssignment == nil {
			best = s
			bestAssignment = append(bestAssignment[:0], assignment...)
		}
	})
	return best, bestAssignment
}

// Gradient returns the expected sufficient statistics under the Gibbs
// distribution: the exact value of the sum-product gradient.
func Gradient(g *factorgraph.Graph) sparse.Vector {
	logZ := LogZ(g)
	gradient := sparse.Vector{}
	if math.IsInf(logZ, -1) {
		return gradient
	}
	forEach(g, func(assignment []int) {
		p := math.Exp(Score(g, assignment) - logZ)
		if p > 0 {
			gradient.Add(Features(g, assignment), p)
		}
	})
	return gradient
}

// Features returns the summed sufficient statistics of all linear factors at
// one joint assignment: the exact value of the max-product gradient when the
// assignment is the arg-max.
func Features(g *factorgraph.Graph, assignment []int) sparse.Vector {
	features := sparse.Vector{}
	for f := 0; f < g.NumFactors(); f++ {
		factor := g.Factor(factorgraph.FactorID(f))
		linear, ok := factor.Potential.(*factorgraph.LinearPotential)
		if !ok {
			continue
		}
		setting := make([]int, len(factor.Edges))
		for j, e := range factor.Edges {
			setting[j] = assignment[g.Edge(e).Node]
		}
		features.Add(linear.Stats(setting), 1)
	}
	return features
}

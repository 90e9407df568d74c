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

package bp

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/codeaudit/wolfe/exact"
	"github.com/codeaudit/wolfe/factorgraph"
	"github.com/codeaudit/wolfe/sparse"
	"github.com/codeaudit/wolfe/util/clocks"
	"github.com/codeaudit/wolfe/util/debuglog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	debuglog.Configure(debuglog.Options{})
	os.Exit(m.Run())
}

// tables builds a graph of binary variables with one pairwise table factor
// per entry, scores given in row-major order (second variable fastest).
func tables(t *testing.T, numVars int, factors map[[2]int][]float64) *factorgraph.Graph {
	g := factorgraph.New()
	for i := 0; i < numVars; i++ {
		g.AddNode(2)
	}
	for vars, scores := range factors {
		f := g.AddFactor()
		g.AddEdge(f, factorgraph.NodeID(vars[0]))
		g.AddEdge(f, factorgraph.NodeID(vars[1]))
		p := factorgraph.NewTablePotential([]int{2, 2})
		p.SetAll(scores)
		g.SetPotential(f, p)
	}
	require.NoError(t, g.Build())
	return g
}

// linearChain builds a chain of binary variables with one linear pairwise
// factor per adjacent pair: feature 2*a+b fires for the pair value (a, b).
func linearChain(t *testing.T, numVars int, weights []float64) *factorgraph.Graph {
	g := factorgraph.New()
	for i := 0; i < numVars; i++ {
		g.AddNode(2)
	}
	for i := 0; i+1 < numVars; i++ {
		f := g.AddFactor()
		g.AddEdge(f, factorgraph.NodeID(i))
		g.AddEdge(f, factorgraph.NodeID(i+1))
		p := factorgraph.NewLinearPotential([]int{2, 2})
		for a := 0; a < 2; a++ {
			for b := 0; b < 2; b++ {
				p.SetStats([]int{a, b}, sparse.NewVector(map[int]float64{2*a + b: 1}))
			}
		}
		g.SetPotential(f, p)
	}
	require.NoError(t, g.Build())
	g.Weights = weights
	return g
}

func assertMatchesExact(t *testing.T, g *factorgraph.Graph) {
	t.Helper()
	wantValue := exact.LogZ(g)
	wantMarginals := exact.Marginals(g)
	assert.InDelta(t, wantValue, g.Value, 1e-5)
	for i, want := range wantMarginals {
		node := g.Node(factorgraph.NodeID(i))
		for x := range want {
			assert.InDelta(t, want[x], node.Belief[x], 1e-5, "node %d value %d", i, x)
		}
	}
}

func Test_Run_requiresBuiltGraph(t *testing.T) {
	g := factorgraph.New()
	g.AddNode(2)
	err := Run(context.Background(), g, Options{})
	require.Error(t, err)
	err = Run(context.Background(), nil, Options{})
	require.Error(t, err)
}

func Test_Run_negativeIterations(t *testing.T) {
	g := tables(t, 2, map[[2]int][]float64{{0, 1}: {0, 0, 0, 0}})
	err := Run(context.Background(), g, Options{MaxIterations: -1})
	require.Error(t, err)
}

func Test_Run_missingPotential(t *testing.T) {
	g := factorgraph.New()
	g.AddNode(2)
	f := g.AddFactor()
	g.AddEdge(f, 0)
	require.NoError(t, g.Build())
	err := Run(context.Background(), g, Options{})
	require.Error(t, err)
}

func Test_Run_treeChain(t *testing.T) {
	g := tables(t, 3, map[[2]int][]float64{
		{0, 1}: {0.5, -0.2, 0.3, 1.1},
		{1, 2}: {-1, 0.4, 0.9, 0.2},
	})
	require.NoError(t, Run(context.Background(), g, Options{}))
	assertMatchesExact(t, g)
}

func Test_Run_treeStar(t *testing.T) {
	g := tables(t, 4, map[[2]int][]float64{
		{0, 1}: {0.5, -0.2, 0.3, 1.1},
		{0, 2}: {-1, 0.4, 0.9, 0.2},
		{0, 3}: {0.1, 0.6, -0.7, 0.8},
	})
	require.NoError(t, Run(context.Background(), g, Options{}))
	assertMatchesExact(t, g)
}

func Test_Run_loopySquare(t *testing.T) {
	// A 4-cycle is loopy; the junction tree still gives exact results.
	g := tables(t, 4, map[[2]int][]float64{
		{0, 1}: {0.5, -0.2, 0.3, 1.1},
		{1, 2}: {-1, 0.4, 0.9, 0.2},
		{2, 3}: {0.1, 0.6, -0.7, 0.8},
		{3, 0}: {0.4, -0.5, 0.2, 0.3},
	})
	require.NoError(t, Run(context.Background(), g, Options{}))
	assertMatchesExact(t, g)
}

func Test_Run_impossibleEntries(t *testing.T) {
	// One table entry left at ScoreUndefined: that joint value gets zero
	// probability mass and the value still matches brute force.
	g := factorgraph.New()
	g.AddNode(2)
	g.AddNode(2)
	f := g.AddFactor()
	g.AddEdge(f, 0)
	g.AddEdge(f, 1)
	p := factorgraph.NewTablePotential([]int{2, 2})
	p.Set([]int{0, 0}, 0.2)
	p.Set([]int{0, 1}, -0.1)
	p.Set([]int{1, 1}, 0.5)
	g.SetPotential(f, p)
	require.NoError(t, g.Build())
	require.NoError(t, Run(context.Background(), g, Options{}))
	assertMatchesExact(t, g)
}

func Test_Run_maxProduct_singleFactor(t *testing.T) {
	g := tables(t, 2, map[[2]int][]float64{{0, 1}: {1, 2, -3, 0}})
	require.NoError(t, Run(context.Background(), g, Options{Mode: MaxProduct}))
	assert.Equal(t, 2.0, g.Value)
	assert.Equal(t, 0, g.Node(0).State)
	assert.Equal(t, 1, g.Node(1).State)
	// Max-marginals are normalized so the best value reads 0.
	assert.Equal(t, 0.0, g.Node(0).Belief[0])
	assert.Equal(t, 0.0, g.Node(1).Belief[1])
}

func Test_Run_maxProduct_linearChain(t *testing.T) {
	// Five binary variables, four pairwise factors. The best assignment is
	// (0,0,0,0,1): three (0,0) pairs at weight 1 plus one (0,1) pair at
	// weight 2, total 5. The gradient is that assignment's feature counts.
	g := linearChain(t, 5, []float64{1.0, 2.0, -3.0, 0.0})
	require.NoError(t, Run(context.Background(), g, Options{Mode: MaxProduct}))

	wantScore, wantAssignment := exact.Max(g)
	require.Equal(t, 5.0, wantScore)
	require.Equal(t, []int{0, 0, 0, 0, 1}, wantAssignment)
	assert.InDelta(t, wantScore, g.Value, 1e-9)
	for i, want := range wantAssignment {
		assert.Equal(t, want, g.Node(factorgraph.NodeID(i)).State, "node %d", i)
	}
	wantGradient := exact.Features(g, wantAssignment)
	assert.Equal(t, 3.0, wantGradient.Get(0))
	assert.Equal(t, 1.0, wantGradient.Get(1))
	assert.True(t, wantGradient.Equal(g.Gradient, 1e-9),
		"gradient %v, want %v", g.Gradient.String(), wantGradient.String())
}

func Test_Run_sumProduct_linearGradient(t *testing.T) {
	g := linearChain(t, 3, []float64{1.0, 2.5, -3.0, 0.7})
	require.NoError(t, Run(context.Background(), g, Options{}))
	assert.InDelta(t, exact.LogZ(g), g.Value, 1e-5)
	wantGradient := exact.Gradient(g)
	assert.True(t, wantGradient.Equal(g.Gradient, 1e-5),
		"gradient %v, want %v", g.Gradient.String(), wantGradient.String())
}

func Test_Run_weightsCanChangeBetweenRuns(t *testing.T) {
	g := linearChain(t, 3, []float64{1.0, 2.5, -3.0, 0.7})
	require.NoError(t, Run(context.Background(), g, Options{}))
	first := g.Value

	g.Weights = []float64{0.7, -3.0, 2.5, 1.0}
	require.NoError(t, Run(context.Background(), g, Options{}))
	assert.InDelta(t, exact.LogZ(g), g.Value, 1e-5)
	assert.NotEqual(t, first, g.Value)
}

func Test_Run_onePassIsFixedPoint(t *testing.T) {
	g := tables(t, 3, map[[2]int][]float64{
		{0, 1}: {0.5, -0.2, 0.3, 1.1},
		{1, 2}: {-1, 0.4, 0.9, 0.2},
	})
	require.NoError(t, Run(context.Background(), g, Options{MaxIterations: 1}))
	onePass := g.Value

	stats := Stats{}
	require.NoError(t, Run(context.Background(), g, Options{MaxIterations: 7, Stats: &stats}))
	assert.Equal(t, onePass, g.Value)
	// The second sweep changes nothing, so the run stops early.
	assert.Equal(t, 0.0, stats.MaxResidual)
	assert.Less(t, stats.Iterations, 7)
}

func Test_Run_isolatedNode(t *testing.T) {
	g := factorgraph.New()
	g.AddNode(3)
	require.NoError(t, g.Build())

	require.NoError(t, Run(context.Background(), g, Options{}))
	// An unconstrained variable contributes its entropy: log(3).
	assert.InDelta(t, math.Log(3), g.Value, 1e-12)
	for x := 0; x < 3; x++ {
		assert.InDelta(t, math.Log(1.0/3), g.Node(0).Belief[x], 1e-12)
	}

	require.NoError(t, Run(context.Background(), g, Options{Mode: MaxProduct}))
	assert.Equal(t, 0.0, g.Value)
	assert.Equal(t, 0, g.Node(0).State)
}

func Test_Run_noSchedule(t *testing.T) {
	g := tables(t, 3, map[[2]int][]float64{
		{0, 1}: {0.5, -0.2, 0.3, 1.1},
		{1, 2}: {-1, 0.4, 0.9, 0.2},
	})
	require.NoError(t, Run(context.Background(), g,
		Options{NoSchedule: true, MaxIterations: 50}))
	assertMatchesExact(t, g)
}

func Test_Run_selfCheck(t *testing.T) {
	g := tables(t, 3, map[[2]int][]float64{
		{0, 1}: {0.5, -0.2, 0.3, 1.1},
		{1, 2}: {-1, 0.4, 0.9, 0.2},
	})
	stats := Stats{}
	require.NoError(t, Run(context.Background(), g,
		Options{SelfCheck: true, MaxIterations: 50, Stats: &stats}))
	// On a tree the direct run converges to the same answer.
	assert.Less(t, stats.SelfCheckMismatch, 1e-6)
	assertMatchesExact(t, g)
}

func Test_Run_stats(t *testing.T) {
	g := tables(t, 2, map[[2]int][]float64{{0, 1}: {0.5, -0.2, 0.3, 1.1}})
	stats := Stats{Clock: clocks.NewMock()}
	require.NoError(t, Run(context.Background(), g, Options{Stats: &stats}))
	assert.Equal(t, 1, stats.Iterations)
	assert.Equal(t, 1, stats.MessagesSent) // one clique, one edge
	assert.Equal(t, int64(0), int64(stats.Duration))
	assert.Contains(t, stats.String(), "1 iterations")
}

func Test_Run_dumpDir(t *testing.T) {
	g := tables(t, 2, map[[2]int][]float64{{0, 1}: {0.5, -0.2, 0.3, 1.1}})
	dir := t.TempDir()
	require.NoError(t, Run(context.Background(), g, Options{DumpDir: dir}))
	for _, name := range []string{"original.dot", "junction.dot"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Contains(t, string(data), "graph factorgraph {")
	}
}

func Test_Run_recordsMetrics(t *testing.T) {
	g := tables(t, 2, map[[2]int][]float64{{0, 1}: {0.5, -0.2, 0.3, 1.1}})
	require.NoError(t, Run(context.Background(), g, Options{}))
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "wolfe_bp_runs_total")
	assert.Contains(t, names, "wolfe_bp_run_seconds")
	assert.Contains(t, names, "wolfe_bp_last_run_seconds")
}

func Test_Run_canceledContext(t *testing.T) {
	g := tables(t, 2, map[[2]int][]float64{{0, 1}: {0, 0, 0, 0}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, g, Options{})
	require.Error(t, err)
}

func Test_Mode_String(t *testing.T) {
	assert.Equal(t, "sum-product", SumProduct.String())
	assert.Equal(t, "max-product", MaxProduct.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
}

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
	"testing"

	"github.com/codeaudit/wolfe/factorgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pairwise builds a graph of binary variables with one all-zero pairwise
// table factor per listed edge.
func pairwise(t *testing.T, numVars int, edges [][2]int) *factorgraph.Graph {
	g := factorgraph.New()
	for i := 0; i < numVars; i++ {
		g.AddNode(2)
	}
	for _, e := range edges {
		f := g.AddFactor()
		g.AddEdge(f, factorgraph.NodeID(e[0]))
		g.AddEdge(f, factorgraph.NodeID(e[1]))
		p := factorgraph.NewTablePotential([]int{2, 2})
		p.Fill(0)
		g.SetPotential(f, p)
	}
	require.NoError(t, g.Build())
	return g
}

func Test_Schedule_chain(t *testing.T) {
	// n0 -e0- f0 -e1- n1 -e2- f1 -e3- n2, rooted at n0. The collect pass
	// sends e2 (depth 3) then e0 (depth 1); the distribute pass sends e1
	// (depth 2) then e3 (depth 4).
	g := pairwise(t, 3, [][2]int{{0, 1}, {1, 2}})
	order, err := Schedule(g)
	require.NoError(t, err)
	assert.Equal(t, []factorgraph.EdgeID{2, 0, 1, 3}, order)
}

func Test_Schedule_star(t *testing.T) {
	g := pairwise(t, 3, [][2]int{{0, 1}, {0, 2}})
	order, err := Schedule(g)
	require.NoError(t, err)
	// Both leafward factors sit at depth 1 from the center: upward edges
	// e0, e2 tie-break by id, then downward e1, e3.
	assert.Equal(t, []factorgraph.EdgeID{0, 2, 1, 3}, order)
}

func Test_Schedule_components(t *testing.T) {
	g := pairwise(t, 4, [][2]int{{0, 1}, {2, 3}})
	order, err := Schedule(g)
	require.NoError(t, err)
	require.Len(t, order, 4)
	seen := map[factorgraph.EdgeID]bool{}
	for _, e := range order {
		assert.False(t, seen[e])
		seen[e] = true
	}
}

func Test_Schedule_cycleErrors(t *testing.T) {
	g := pairwise(t, 4, [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}})
	_, err := Schedule(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func Test_Schedule_selfLoopErrors(t *testing.T) {
	// A factor wired twice to the same node is a two-edge cycle.
	g := factorgraph.New()
	g.AddNode(2)
	f := g.AddFactor()
	g.AddEdge(f, 0)
	g.AddEdge(f, 0)
	p := factorgraph.NewTablePotential([]int{2, 2})
	p.Fill(0)
	g.SetPotential(f, p)
	require.NoError(t, g.Build())
	_, err := Schedule(g)
	require.Error(t, err)
}

func Test_Schedule_isolatedNodes(t *testing.T) {
	g := factorgraph.New()
	g.AddNode(2)
	g.AddNode(3)
	require.NoError(t, g.Build())
	order, err := Schedule(g)
	require.NoError(t, err)
	assert.Empty(t, order)
}

func Test_naturalOrder(t *testing.T) {
	g := pairwise(t, 3, [][2]int{{0, 1}, {1, 2}})
	assert.Equal(t, []factorgraph.EdgeID{0, 1, 2, 3}, naturalOrder(g))
}

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

// Package junction converts an arbitrary (possibly loopy) factor graph into
// a tree-structured one over cliques, so that the ordinary message-passing
// machinery computes exact results on it.
//
// The derived graph encodes each clique as a single variable node whose
// domain is the Cartesian product of its members' domains. Each clique gets
// one singleton factor holding the combined potential of the original
// factors assigned to it, and each junction-tree edge becomes a pairwise
// factor scoring 0 when the two clique configurations agree on their shared
// variables and ScoreUndefined when they don't. Clique domain sizes grow
// exponentially with tree-width; this construction is correctness-focused,
// not tuned for high tree-width graphs.
package junction

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/codeaudit/wolfe/factorgraph"
	log "github.com/sirupsen/logrus"
)

// A cluster describes one derived variable node: the sorted original
// variables it covers and the mixed-radix layout of its configurations (last
// member varying fastest, matching potential tables).
type cluster struct {
	members []factorgraph.NodeID
	dims    []int
	stride  []int
}

func (c *cluster) size() int {
	n := 1
	for _, d := range c.dims {
		n *= d
	}
	return n
}

// valueAt decodes the value of the pos'th member from a configuration index.
func (c *cluster) valueAt(config, pos int) int {
	return (config / c.stride[pos]) % c.dims[pos]
}

func (c *cluster) position(v factorgraph.NodeID) int {
	for i, m := range c.members {
		if m == v {
			return i
		}
	}
	return -1
}

// A Tree is the derived tree-structured factor graph plus the mapping back
// to the original graph. The Tree owns its graph; building and running it
// leaves the original untouched until WriteBack.
type Tree struct {
	Graph *factorgraph.Graph

	clusters []cluster
	// home[v] is the cluster that original node v's belief is read from.
	home []int
}

// Build converts the original graph into a junction tree. The original must
// already be built. Variables that appear in no factor are carried over as
// their own single-member clusters, left without any factor.
func Build(orig *factorgraph.Graph) (*Tree, error) {
	if !orig.Built() {
		return nil, errors.New("junction: original graph must be built first")
	}

	moral := moralize(orig)
	cliques := maximalCliques(triangulate(moral))
	if got, want := coverage(cliques), orig.NumNodes(); got != want {
		// Elimination visits every variable, so this can't happen short of
		// a bug; it is not a user-recoverable condition.
		log.Panicf("junction: cliques cover %d of %d variables", got, want)
	}
	separators := spanningForest(cliques)

	t := &Tree{
		Graph:    factorgraph.New(),
		clusters: make([]cluster, len(cliques)),
		home:     make([]int, orig.NumNodes()),
	}
	t.Graph.Weights = orig.Weights
	for i := range t.home {
		t.home[i] = -1
	}
	for i, members := range cliques {
		c := cluster{
			members: make([]factorgraph.NodeID, len(members)),
			dims:    make([]int, len(members)),
		}
		for j, v := range members {
			c.members[j] = factorgraph.NodeID(v)
			c.dims[j] = orig.Node(factorgraph.NodeID(v)).Dim
			if t.home[v] == -1 {
				t.home[v] = i
			}
		}
		c.stride = make([]int, len(c.dims))
		acc := 1
		for j := len(c.dims) - 1; j >= 0; j-- {
			c.stride[j] = acc
			acc *= c.dims[j]
		}
		t.clusters[i] = c
		t.Graph.AddNode(c.size())
	}

	if err := t.addCliquePotentials(orig, cliques); err != nil {
		return nil, err
	}
	t.addSeparators(separators)

	if err := t.Graph.Build(); err != nil {
		return nil, fmt.Errorf("junction: building derived graph: %v", err)
	}
	log.Debugf("junction: %d variables, %d factors -> %d cliques, %d separators",
		orig.NumNodes(), orig.NumFactors(), len(cliques), len(separators))
	return t, nil
}

// addCliquePotentials assigns each original factor to the first clique
// containing all its variables and materializes one combined potential per
// clique that received any. Factors without any edge keep their own
// (edgeless) factor in the derived graph; their score is a constant that
// still belongs in the objective.
func (t *Tree) addCliquePotentials(orig *factorgraph.Graph, cliques [][]int) error {
	assigned := make([][]factorgraph.FactorID, len(cliques))
	for f := 0; f < orig.NumFactors(); f++ {
		id := factorgraph.FactorID(f)
		factor := orig.Factor(id)
		if factor.Potential == nil {
			return fmt.Errorf("junction: factor %d has no potential", f)
		}
		if len(factor.Edges) == 0 {
			df := t.Graph.AddFactor()
			t.Graph.SetPotential(df, factor.Potential)
			continue
		}
		vars := factorVars(orig, factor)
		cl := -1
		for i, clique := range cliques {
			if isSubset(vars, clique) {
				cl = i
				break
			}
		}
		if cl == -1 {
			// The factor's variables form a clique in the moral graph, so
			// some maximal clique must contain them.
			log.Panicf("junction: no clique contains factor %d over %v", f, vars)
		}
		assigned[cl] = append(assigned[cl], id)
	}

	for i, factors := range assigned {
		if len(factors) == 0 {
			continue
		}
		c := &t.clusters[i]
		potential := t.combine(orig, c, factors)
		df := t.Graph.AddFactor()
		t.Graph.AddEdge(df, factorgraph.NodeID(i))
		t.Graph.SetPotential(df, potential)
	}
	return nil
}

// combine folds the given original factors into one potential over the
// cluster's configuration space: table scores sum up, linear statistics
// merge. The result is a TablePotential unless some constituent carries
// features.
func (t *Tree) combine(orig *factorgraph.Graph, c *cluster,
	factors []factorgraph.FactorID) factorgraph.Potential {

	linear := false
	for _, f := range factors {
		if _, ok := orig.Factor(f).Potential.(*factorgraph.LinearPotential); ok {
			linear = true
			break
		}
	}

	size := c.size()
	var table *factorgraph.TablePotential
	var feats *factorgraph.LinearPotential
	if linear {
		feats = factorgraph.NewLinearPotential([]int{size})
	} else {
		table = factorgraph.NewTablePotential([]int{size})
		table.Fill(0)
	}

	config := []int{0}
	for config[0] = 0; config[0] < size; config[0]++ {
		for _, f := range factors {
			factor := orig.Factor(f)
			setting := make([]int, len(factor.Edges))
			for j, e := range factor.Edges {
				setting[j] = c.valueAt(config[0], c.position(orig.Edge(e).Node))
			}
			switch p := factor.Potential.(type) {
			case *factorgraph.TablePotential:
				score := p.Score(setting, nil)
				if linear {
					feats.AddBase(config, score)
				} else {
					table.Add(config, score)
				}
			case *factorgraph.LinearPotential:
				feats.AddStats(config, p.Stats(setting), 1)
				feats.AddBase(config, p.Base(setting))
			default:
				log.Panicf("junction: unknown potential type %T", p)
			}
		}
	}
	if linear {
		return feats
	}
	return table
}

// addSeparators wires one agreement factor per junction-tree edge. Only
// configuration pairs that agree on the shared variables are possible.
func (t *Tree) addSeparators(separators []sepCandidate) {
	for _, sep := range separators {
		ca, cb := &t.clusters[sep.a], &t.clusters[sep.b]
		shared := sharedPositions(ca, cb)
		p := factorgraph.NewTablePotential([]int{ca.size(), cb.size()})
		for ia := 0; ia < ca.size(); ia++ {
			for ib := 0; ib < cb.size(); ib++ {
				if agree(ca, cb, ia, ib, shared) {
					p.Set([]int{ia, ib}, 0)
				}
			}
		}
		f := t.Graph.AddFactor()
		t.Graph.AddEdge(f, factorgraph.NodeID(sep.a))
		t.Graph.AddEdge(f, factorgraph.NodeID(sep.b))
		t.Graph.SetPotential(f, p)
	}
}

// WriteBack copies the junction tree's inference results onto the original
// graph: value and gradient directly, and per-variable beliefs by
// marginalizing (or max-marginalizing) each variable's home clique belief.
// For max-product it also decodes each variable's arg-max state from its
// home clique's state.
func (t *Tree) WriteBack(orig *factorgraph.Graph, maxProduct bool) {
	orig.Value = t.Graph.Value
	orig.Gradient = t.Graph.Gradient.Clone()
	for v := 0; v < orig.NumNodes(); v++ {
		c := &t.clusters[t.home[v]]
		pos := c.position(factorgraph.NodeID(v))
		derived := t.Graph.Node(factorgraph.NodeID(t.home[v]))
		node := orig.Node(factorgraph.NodeID(v))
		for x := range node.Belief {
			node.Belief[x] = math.Inf(-1)
		}
		for config, b := range derived.Belief {
			x := c.valueAt(config, pos)
			if maxProduct {
				if b > node.Belief[x] {
					node.Belief[x] = b
				}
			} else {
				node.Belief[x] = factorgraph.LogAdd(node.Belief[x], b)
			}
		}
		if maxProduct {
			node.State = c.valueAt(derived.State, pos)
			// Shift the max-marginal so its best entry is 0.
			shift := node.Belief[0]
			for _, b := range node.Belief[1:] {
				if b > shift {
					shift = b
				}
			}
			if !math.IsInf(shift, -1) {
				for x := range node.Belief {
					node.Belief[x] -= shift
				}
			}
		}
	}
}

// Cliques returns the variable sets of the derived graph's cluster nodes, in
// node order. It's meant for tests and diagnostics.
func (t *Tree) Cliques() [][]factorgraph.NodeID {
	out := make([][]factorgraph.NodeID, len(t.clusters))
	for i := range t.clusters {
		out[i] = append([]factorgraph.NodeID(nil), t.clusters[i].members...)
	}
	return out
}

// factorVars returns the distinct variables of a factor, sorted.
func factorVars(g *factorgraph.Graph, f *factorgraph.Factor) []int {
	set := make(map[int]bool, len(f.Edges))
	for _, e := range f.Edges {
		set[int(g.Edge(e).Node)] = true
	}
	vars := make([]int, 0, len(set))
	for v := range set {
		vars = append(vars, v)
	}
	sort.Ints(vars)
	return vars
}

// sharedPositions lists, for every variable common to both clusters, its
// member position in each.
func sharedPositions(a, b *cluster) [][2]int {
	var shared [][2]int
	for i, v := range a.members {
		if j := b.position(v); j != -1 {
			shared = append(shared, [2]int{i, j})
		}
	}
	return shared
}

func agree(a, b *cluster, ia, ib int, shared [][2]int) bool {
	for _, s := range shared {
		if a.valueAt(ia, s[0]) != b.valueAt(ib, s[1]) {
			return false
		}
	}
	return true
}

func coverage(cliques [][]int) int {
	seen := make(map[int]bool)
	for _, c := range cliques {
		for _, v := range c {
			seen[v] = true
		}
	}
	return len(seen)
}

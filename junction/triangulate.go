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

package junction

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codeaudit/wolfe/factorgraph"
	"github.com/codeaudit/wolfe/util/cmp"
	"github.com/google/btree"
)

// moralize returns the interaction graph over the original variables: two
// variables are adjacent iff they co-occur in some factor. The adjacency is
// indexed by node id; entries for nodes in no factor are empty maps.
func moralize(g *factorgraph.Graph) []map[int]bool {
	adj := make([]map[int]bool, g.NumNodes())
	for i := range adj {
		adj[i] = make(map[int]bool)
	}
	for f := 0; f < g.NumFactors(); f++ {
		edges := g.Factor(factorgraph.FactorID(f)).Edges
		for i, ei := range edges {
			a := int(g.Edge(ei).Node)
			for _, ej := range edges[i+1:] {
				b := int(g.Edge(ej).Node)
				if a != b {
					adj[a][b] = true
					adj[b][a] = true
				}
			}
		}
	}
	return adj
}

// An elimCandidate is a btree item ordering variables by elimination cost:
// fewest fill edges first, then lowest degree, then lowest id. The id makes
// the order strict, so the whole heuristic is deterministic.
type elimCandidate struct {
	fill   int
	degree int
	node   int
}

func (c elimCandidate) Less(than btree.Item) bool {
	o := than.(elimCandidate)
	if c.fill != o.fill {
		return c.fill < o.fill
	}
	if c.degree != o.degree {
		return c.degree < o.degree
	}
	return c.node < o.node
}

func sortedNeighbors(adj []map[int]bool, v int) []int {
	nbrs := make([]int, 0, len(adj[v]))
	for u := range adj[v] {
		nbrs = append(nbrs, u)
	}
	sort.Ints(nbrs)
	return nbrs
}

func candidate(adj []map[int]bool, v int) elimCandidate {
	nbrs := sortedNeighbors(adj, v)
	fill := 0
	for i, a := range nbrs {
		for _, b := range nbrs[i+1:] {
			if !adj[a][b] {
				fill++
			}
		}
	}
	return elimCandidate{fill: fill, degree: len(nbrs), node: v}
}

// triangulate eliminates every variable in min-fill order, mutating a copy of
// the interaction graph, and returns one candidate clique per elimination:
// the variable plus its neighbors at the time it was eliminated. The
// candidates cover every variable and every interaction edge; they are not
// yet filtered down to maximal cliques.
func triangulate(moral []map[int]bool) [][]int {
	adj := make([]map[int]bool, len(moral))
	for v := range moral {
		adj[v] = make(map[int]bool, len(moral[v]))
		for u := range moral[v] {
			adj[v][u] = true
		}
	}

	frontier := btree.New(2)
	current := make([]elimCandidate, len(adj))
	for v := range adj {
		current[v] = candidate(adj, v)
		frontier.ReplaceOrInsert(current[v])
	}

	cliques := make([][]int, 0, len(adj))
	for frontier.Len() > 0 {
		v := frontier.DeleteMin().(elimCandidate).node
		nbrs := sortedNeighbors(adj, v)

		clique := append([]int{v}, nbrs...)
		sort.Ints(clique)
		cliques = append(cliques, clique)

		// Connect the neighbors pairwise and drop v from the graph.
		for i, a := range nbrs {
			for _, b := range nbrs[i+1:] {
				adj[a][b] = true
				adj[b][a] = true
			}
		}
		for _, u := range nbrs {
			delete(adj[u], v)
		}
		adj[v] = nil

		// Elimination costs changed for v's neighbors and for anything
		// adjacent to them; recompute those frontier entries.
		affected := make(map[int]bool)
		for _, u := range nbrs {
			affected[u] = true
			for w := range adj[u] {
				affected[w] = true
			}
		}
		for _, u := range sortedKeys(affected) {
			if adj[u] == nil {
				continue
			}
			frontier.Delete(current[u])
			current[u] = candidate(adj, u)
			frontier.ReplaceOrInsert(current[u])
		}
	}
	return cliques
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// cliqueKey identifies a clique by its sorted member list.
type cliqueKey []int

func (c cliqueKey) Key(b *strings.Builder) {
	for i, v := range c {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%d", v)
	}
}

// maximalCliques drops duplicates and any clique contained in another,
// preserving the elimination order among the survivors.
func maximalCliques(candidates [][]int) [][]int {
	seen := make(map[string]bool, len(candidates))
	unique := make([][]int, 0, len(candidates))
	for _, c := range candidates {
		key := cmp.GetKey(cliqueKey(c))
		if !seen[key] {
			seen[key] = true
			unique = append(unique, c)
		}
	}
	maximal := make([][]int, 0, len(unique))
	for _, c := range unique {
		subsumed := false
		for _, other := range unique {
			if len(c) < len(other) && isSubset(c, other) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			maximal = append(maximal, c)
		}
	}
	return maximal
}

// isSubset reports whether sorted slice a is contained in sorted slice b.
func isSubset(a, b []int) bool {
	i := 0
	for _, v := range b {
		if i < len(a) && a[i] == v {
			i++
		}
	}
	return i == len(a)
}

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

import "sort"

// A sepCandidate is a potential junction-tree edge between two cliques,
// weighted by the size of their shared variable set.
type sepCandidate struct {
	a, b   int
	weight int
}

// spanningForest connects the cliques into a maximum-weight spanning forest
// over separator sizes (Kruskal). Maximizing separator weight is what makes
// the result satisfy the running-intersection property. Cliques sharing no
// variables stay in separate trees. The result is deterministic: candidates
// are ordered by descending weight, then by clique indices.
func spanningForest(cliques [][]int) []sepCandidate {
	var candidates []sepCandidate
	for i := range cliques {
		for j := i + 1; j < len(cliques); j++ {
			if w := len(intersect(cliques[i], cliques[j])); w > 0 {
				candidates = append(candidates, sepCandidate{a: i, b: j, weight: w})
			}
		}
	}
	sort.Slice(candidates, func(x, y int) bool {
		cx, cy := candidates[x], candidates[y]
		if cx.weight != cy.weight {
			return cx.weight > cy.weight
		}
		if cx.a != cy.a {
			return cx.a < cy.a
		}
		return cx.b < cy.b
	})

	parent := make([]int, len(cliques))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	var chosen []sepCandidate
	for _, c := range candidates {
		ra, rb := find(c.a), find(c.b)
		if ra != rb {
			parent[ra] = rb
			chosen = append(chosen, c)
		}
	}
	return chosen
}

// intersect returns the common elements of two sorted slices, sorted.
func intersect(a, b []int) []int {
	var out []int
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

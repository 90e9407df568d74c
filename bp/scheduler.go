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
	"fmt"
	"sort"

	"github.com/codeaudit/wolfe/factorgraph"
)

// Schedule computes a message order that makes a single sweep exact on a
// tree-structured graph. Each component is rooted at its lowest-numbered
// node. The order lists every edge exactly once: first the edges whose
// factor-to-node message flows toward the root, deepest first (the collect
// pass), then the edges whose message flows away from the root, shallowest
// first (the distribute pass). Ties at equal depth break by edge id, so the
// schedule is deterministic.
//
// Schedule returns an error if the graph contains a cycle, including a
// factor wired twice to the same node.
func Schedule(g *factorgraph.Graph) ([]factorgraph.EdgeID, error) {
	type visit struct {
		isFactor bool
		id       int
		depth    int
	}
	type scheduled struct {
		depth int
		id    factorgraph.EdgeID
	}
	nodeSeen := make([]bool, g.NumNodes())
	factorSeen := make([]bool, g.NumFactors())
	edgeUsed := make([]bool, g.NumEdges())
	var upward, downward []scheduled

	for root := 0; root < g.NumNodes(); root++ {
		if nodeSeen[root] {
			continue
		}
		nodeSeen[root] = true
		queue := []visit{{id: root}}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			if v.isFactor {
				for _, e := range g.Factor(factorgraph.FactorID(v.id)).Edges {
					if edgeUsed[e] {
						continue
					}
					edgeUsed[e] = true
					n := g.Edge(e).Node
					if nodeSeen[n] {
						return nil, fmt.Errorf("bp: graph has a cycle through node %d", n)
					}
					nodeSeen[n] = true
					// The factor-to-node message on this edge points away
					// from the root.
					downward = append(downward, scheduled{depth: v.depth + 1, id: e})
					queue = append(queue, visit{id: int(n), depth: v.depth + 1})
				}
			} else {
				for _, e := range g.Node(factorgraph.NodeID(v.id)).Edges {
					if edgeUsed[e] {
						continue
					}
					edgeUsed[e] = true
					f := g.Edge(e).Factor
					if factorSeen[f] {
						return nil, fmt.Errorf("bp: graph has a cycle through factor %d", f)
					}
					factorSeen[f] = true
					// The factor-to-node message on this edge points toward
					// the root.
					upward = append(upward, scheduled{depth: v.depth + 1, id: e})
					queue = append(queue, visit{isFactor: true, id: int(f), depth: v.depth + 1})
				}
			}
		}
	}

	sort.Slice(upward, func(i, j int) bool {
		if upward[i].depth != upward[j].depth {
			return upward[i].depth > upward[j].depth
		}
		return upward[i].id < upward[j].id
	})
	sort.Slice(downward, func(i, j int) bool {
		if downward[i].depth != downward[j].depth {
			return downward[i].depth < downward[j].depth
		}
		return downward[i].id < downward[j].id
	})

	order := make([]factorgraph.EdgeID, 0, len(upward)+len(downward))
	for _, s := range upward {
		order = append(order, s.id)
	}
	for _, s := range downward {
		order = append(order, s.id)
	}
	return order, nil
}

// naturalOrder lists every edge in creation order. A sweep in this order is
// not exact in one pass; it's the degraded mode used when no schedule is
// wanted or possible.
func naturalOrder(g *factorgraph.Graph) []factorgraph.EdgeID {
	order := make([]factorgraph.EdgeID, g.NumEdges())
	for i := range order {
		order[i] = factorgraph.EdgeID(i)
	}
	return order
}

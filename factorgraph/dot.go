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
	"fmt"
	"io"
)

// WriteDot writes the bipartite structure of the graph as a Graphviz spec:
// ellipses for variable nodes, boxes for factors. It's meant for debugging;
// render it with util/graphviz or the dot tool. Write errors are ignored, per
// the graphviz package's generate contract.
func (g *Graph) WriteDot(w io.Writer) {
	fmt.Fprintln(w, "graph factorgraph {")
	for i := range g.nodes {
		fmt.Fprintf(w, "  n%d [shape=ellipse, label=\"n%d dim=%d\"];\n",
			i, i, g.nodes[i].Dim)
	}
	for i := range g.factors {
		kind := "none"
		switch g.factors[i].Potential.(type) {
		case *TablePotential:
			kind = "table"
		case *LinearPotential:
			kind = "linear"
		}
		fmt.Fprintf(w, "  f%d [shape=box, label=\"f%d %s\"];\n", i, i, kind)
	}
	for i := range g.edges {
		e := &g.edges[i]
		fmt.Fprintf(w, "  n%d -- f%d;\n", e.Node, e.Factor)
	}
	fmt.Fprintln(w, "}")
}

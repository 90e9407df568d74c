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

// Package factorgraph defines the mutable factor graph that Wolfe's belief
// propagation engine operates on: discrete variable nodes, factors wrapping a
// potential, and node-factor edges carrying message buffers.
//
// Nodes, factors, and edges live in arenas owned by the Graph and refer to
// each other by integer handles, never by pointer. Construction is
// append-only: add nodes and factors, wire edges, assign potentials, then
// call Build exactly once. After Build the structure is frozen; only message
// buffers, beliefs, and the inference results mutate.
package factorgraph

import (
	"errors"
	"fmt"

	"github.com/codeaudit/wolfe/sparse"
	log "github.com/sirupsen/logrus"
)

// NodeID is a handle to a Node within its Graph.
type NodeID int

// FactorID is a handle to a Factor within its Graph.
type FactorID int

// EdgeID is a handle to an Edge within its Graph.
type EdgeID int

// A Node is a discrete variable with domain {0, ..., Dim-1}.
type Node struct {
	ID  NodeID
	Dim int
	// Incident edges, in AddEdge call order.
	Edges []EdgeID
	// Log-space belief over the node's domain, populated by inference.
	Belief []float64
	// Arg-max value of the node, populated by max-product inference. -1
	// before inference and after sum-product runs.
	State int
}

// A Factor scores a joint assignment of its argument variables through its
// Potential.
type Factor struct {
	ID FactorID
	// Incident edges, in AddEdge call order. The i'th edge's node is the
	// potential's i'th argument; potentials rely on this ordering.
	Edges     []EdgeID
	Potential Potential
}

// An Edge records the incidence of one factor on one node, along with the
// message buffers for both directions. All message values are log-space.
type Edge struct {
	ID     EdgeID
	Node   NodeID
	Factor FactorID
	// Node-to-factor message, length Node.Dim.
	N2F []float64
	// Factor-to-node message, length Node.Dim.
	F2N []float64
	// Copy of F2N from before its latest overwrite, for residual tracking.
	OldF2N []float64
}

// A Graph owns the arenas of nodes, factors, and edges, plus the weight
// vector shared by its linear potentials and the results of the latest
// inference run.
type Graph struct {
	nodes   []Node
	factors []Factor
	edges   []Edge
	built   bool

	// Weights for linear potentials. Callers may swap or mutate this slice
	// between inference runs (training does), never during one.
	Weights []float64

	// Results of the latest inference run.
	Value    float64
	Gradient sparse.Vector
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{}
}

// AddNode appends a new variable node with the given domain size and returns
// its handle. It panics if dim < 1 or if the graph is already built.
func (g *Graph) AddNode(dim int) NodeID {
	g.mustBeMutable("AddNode")
	if dim < 1 {
		log.Panicf("factorgraph: AddNode needs dim >= 1, got %d", dim)
	}
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, Node{ID: id, Dim: dim, State: -1})
	return id
}

// AddFactor appends a new factor with no edges and no potential and returns
// its handle. Wire its arguments with AddEdge, then assign a potential with
// SetPotential.
func (g *Graph) AddFactor() FactorID {
	g.mustBeMutable("AddFactor")
	id := FactorID(len(g.factors))
	g.factors = append(g.factors, Factor{ID: id})
	return id
}

// AddEdge appends a new edge connecting the factor to the node and returns
// its handle. The order of AddEdge calls fixes the edge's position in both
// the factor's and the node's edge lists; for the factor this position is the
// argument index that its potential sees.
func (g *Graph) AddEdge(factor FactorID, node NodeID) EdgeID {
	g.mustBeMutable("AddEdge")
	g.checkFactor(factor)
	g.checkNode(node)
	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, Edge{ID: id, Node: node, Factor: factor})
	g.factors[factor].Edges = append(g.factors[factor].Edges, id)
	g.nodes[node].Edges = append(g.nodes[node].Edges, id)
	return id
}

// SetPotential assigns the factor's potential. The potential's dimensions
// must match the factor's wired edges exactly: one dimension per edge, each
// equal to the corresponding node's domain size. SetPotential panics on a
// mismatch. Assigning a potential is allowed after Build; the structure it
// must match is frozen by then anyway.
func (g *Graph) SetPotential(factor FactorID, potential Potential) {
	g.checkFactor(factor)
	f := &g.factors[factor]
	dims := potential.Dims()
	if len(dims) != len(f.Edges) {
		log.Panicf("factorgraph: factor %d has %d edges but potential takes %d arguments",
			factor, len(f.Edges), len(dims))
	}
	for i, e := range f.Edges {
		if dim := g.nodes[g.edges[e].Node].Dim; dims[i] != dim {
			log.Panicf("factorgraph: factor %d argument %d has dim %d but potential expects %d",
				factor, i, dim, dims[i])
		}
	}
	f.Potential = potential
}

// Build freezes the graph structure, fixing indices and allocating message
// and belief buffers. It must be called exactly once, after all nodes,
// factors, and edges are added and before any inference. Calling it twice is
// an error, as is a factor whose potential doesn't match its edges.
func (g *Graph) Build() error {
	if g.built {
		return errors.New("factorgraph: Build already called on this graph")
	}
	for i := range g.factors {
		f := &g.factors[i]
		if f.Potential == nil {
			continue
		}
		if got, want := len(f.Potential.Dims()), len(f.Edges); got != want {
			return fmt.Errorf("factorgraph: factor %d has %d edges but its potential takes %d arguments",
				i, want, got)
		}
	}
	for i := range g.nodes {
		n := &g.nodes[i]
		n.Belief = make([]float64, n.Dim)
	}
	for i := range g.edges {
		e := &g.edges[i]
		dim := g.nodes[e.Node].Dim
		e.N2F = make([]float64, dim)
		e.F2N = make([]float64, dim)
		e.OldF2N = make([]float64, dim)
	}
	g.built = true
	return nil
}

// Built returns true once Build has succeeded.
func (g *Graph) Built() bool {
	return g.built
}

// NumNodes returns the number of nodes.
func (g *Graph) NumNodes() int { return len(g.nodes) }

// NumFactors returns the number of factors.
func (g *Graph) NumFactors() int { return len(g.factors) }

// NumEdges returns the number of edges.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Node returns the node for the handle. The pointer stays valid until the
// next AddNode call (forever, once the graph is built). Panics if the handle
// is out of range.
func (g *Graph) Node(id NodeID) *Node {
	g.checkNode(id)
	return &g.nodes[id]
}

// Factor returns the factor for the handle. Panics if the handle is out of
// range.
func (g *Graph) Factor(id FactorID) *Factor {
	g.checkFactor(id)
	return &g.factors[id]
}

// Edge returns the edge for the handle. Panics if the handle is out of range.
func (g *Graph) Edge(id EdgeID) *Edge {
	if id < 0 || int(id) >= len(g.edges) {
		log.Panicf("factorgraph: edge %d out of range [0, %d)", id, len(g.edges))
	}
	return &g.edges[id]
}

// ResetMessages zeroes every message buffer and belief. Inference calls this
// at the start of a run so that repeated runs on the same graph start from
// the same state.
func (g *Graph) ResetMessages() {
	for i := range g.edges {
		e := &g.edges[i]
		for j := range e.N2F {
			e.N2F[j] = 0
			e.F2N[j] = 0
			e.OldF2N[j] = 0
		}
	}
	for i := range g.nodes {
		n := &g.nodes[i]
		for j := range n.Belief {
			n.Belief[j] = 0
		}
		n.State = -1
	}
}

func (g *Graph) mustBeMutable(op string) {
	if g.built {
		log.Panicf("factorgraph: %s called after Build", op)
	}
}

func (g *Graph) checkNode(id NodeID) {
	if id < 0 || int(id) >= len(g.nodes) {
		log.Panicf("factorgraph: node %d out of range [0, %d)", id, len(g.nodes))
	}
}

func (g *Graph) checkFactor(id FactorID) {
	if id < 0 || int(id) >= len(g.factors) {
		log.Panicf("factorgraph: factor %d out of range [0, %d)", id, len(g.factors))
	}
}

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

// Package bp runs belief propagation over factor graphs. Run converts the
// graph to a junction tree, passes messages over it on a two-pass schedule,
// and writes exact marginals (or max-marginals and arg-max states), the
// objective value, and the feature gradient back onto the original graph.
package bp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/codeaudit/wolfe/factorgraph"
	"github.com/codeaudit/wolfe/junction"
	"github.com/codeaudit/wolfe/sparse"
	"github.com/codeaudit/wolfe/util/clocks"
	"github.com/codeaudit/wolfe/util/graphviz"
	"github.com/codeaudit/wolfe/util/parallel"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
)

// Mode selects the message semiring.
type Mode int

const (
	// SumProduct computes marginal beliefs, log Z as the objective, and
	// feature expectations as the gradient.
	SumProduct Mode = iota
	// MaxProduct computes max-marginal beliefs, the MAP score as the
	// objective, the arg-max assignment's features as the gradient, and each
	// node's arg-max state.
	MaxProduct
)

func (m Mode) String() string {
	switch m {
	case SumProduct:
		return "sum-product"
	case MaxProduct:
		return "max-product"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// selfCheckTolerance is the largest objective difference between the
// junction run and the direct run that SelfCheck stays quiet about.
const selfCheckTolerance = 1e-6

// Options configures one inference run. The zero value runs one sum-product
// iteration on a schedule.
type Options struct {
	// MaxIterations caps the number of message sweeps. 0 means 1. On a
	// scheduled tree one sweep reaches the fixed point, so more iterations
	// only matter with NoSchedule.
	MaxIterations int
	// Mode selects sum-product or max-product.
	Mode Mode
	// NoSchedule sweeps edges in creation order instead of computing a
	// two-pass tree schedule. Results then depend on MaxIterations being
	// large enough to converge.
	NoSchedule bool
	// SelfCheck additionally runs unscheduled message passing directly on
	// the original (possibly loopy) graph and warns when its objective
	// disagrees with the junction tree's. The junction result always wins.
	SelfCheck bool
	// Stats, if non-nil, receives diagnostics about the run.
	Stats *Stats
	// DumpDir, if non-empty, receives Graphviz sources of the original graph
	// and its junction tree.
	DumpDir string
	// RenderDumps additionally renders the dumps to PNG, which needs the
	// "dot" binary on PATH.
	RenderDumps bool
}

// Run performs inference on a built graph. It builds a junction tree,
// propagates messages over it, and writes the results back onto g: Value,
// Gradient, per-node Belief, and (for max-product) per-node State. The
// graph's structure and weights are left untouched, so Run can be called
// repeatedly with updated weights.
func Run(ctx context.Context, g *factorgraph.Graph, options Options) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "bp.Run")
	defer span.Finish()
	if g == nil || !g.Built() {
		return errors.New("bp: Run needs a built graph")
	}
	if options.MaxIterations < 0 {
		return fmt.Errorf("bp: MaxIterations must be >= 0, got %d", options.MaxIterations)
	}
	if options.MaxIterations == 0 {
		options.MaxIterations = 1
	}
	stats := options.Stats
	if stats == nil {
		stats = &Stats{}
	}
	if stats.Clock == nil {
		stats.Clock = clocks.Wall
	}
	start := stats.Clock.Now()

	junkifySpan := opentracing.StartSpan("bp.junkify", opentracing.ChildOf(span.Context()))
	tree, err := junction.Build(g)
	junkifySpan.Finish()
	if err != nil {
		return err
	}
	if err := dumpGraphs(g, tree, options); err != nil {
		return err
	}

	propagateSpan := opentracing.StartSpan("bp.propagate", opentracing.ChildOf(span.Context()))
	var directValue float64
	var directGradient sparse.Vector
	if options.SelfCheck {
		// The direct run mutates only g's message buffers and results, the
		// junction run only the derived graph's; WriteBack below makes the
		// junction result authoritative either way.
		directOptions := options
		directOptions.NoSchedule = true
		err = parallel.Invoke(ctx,
			func(ctx context.Context) error {
				return run(ctx, tree.Graph, options, stats)
			},
			func(ctx context.Context) error {
				directStats := &Stats{Clock: stats.Clock}
				if err := run(ctx, g, directOptions, directStats); err != nil {
					return fmt.Errorf("bp: self-check run: %v", err)
				}
				directValue = g.Value
				directGradient = g.Gradient
				return nil
			})
	} else {
		err = run(ctx, tree.Graph, options, stats)
	}
	propagateSpan.Finish()
	if err != nil {
		return err
	}

	tree.WriteBack(g, options.Mode == MaxProduct)
	if options.SelfCheck {
		stats.SelfCheckMismatch = math.Abs(directValue - g.Value)
		if stats.SelfCheckMismatch > selfCheckTolerance ||
			!directGradient.Equal(g.Gradient, selfCheckTolerance) {
			log.Warnf("bp: self-check mismatch: junction value %v, direct value %v (Δ %v)",
				g.Value, directValue, stats.SelfCheckMismatch)
		}
	}

	stats.Duration = stats.Clock.Now().Sub(start)
	metrics.runs.Inc()
	metrics.iterations.Add(float64(stats.Iterations))
	metrics.messagesSent.Add(float64(stats.MessagesSent))
	metrics.runSeconds.Observe(stats.Duration.Seconds())
	metrics.lastRunSeconds.Set(stats.Duration.Seconds())
	log.Debugf("bp: %v run done: value %v, %s", options.Mode, g.Value, stats)
	return nil
}

// run executes the message-passing pipeline on one built graph, leaving its
// Value, Gradient, Belief, and State fields populated.
func run(ctx context.Context, g *factorgraph.Graph, options Options, stats *Stats) error {
	for f := 0; f < g.NumFactors(); f++ {
		if g.Factor(factorgraph.FactorID(f)).Potential == nil {
			return fmt.Errorf("bp: factor %d has no potential", f)
		}
	}
	g.ResetMessages()
	order := naturalOrder(g)
	if !options.NoSchedule {
		var err error
		order, err = Schedule(g)
		if err != nil {
			return err
		}
	}
	for iteration := 0; iteration < options.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		residual := sweep(g, order, options.Mode)
		stats.Iterations++
		stats.MessagesSent += len(order)
		stats.MaxResidual = residual
		if residual == 0 {
			break
		}
	}
	refreshAllN2F(g)
	computeBeliefs(g, options.Mode)
	computeResults(g, options.Mode)
	return nil
}

// sweep recomputes every scheduled factor-to-node message once, eagerly
// refreshing the sibling node-to-factor messages it depends on, and returns
// the largest message change it saw.
func sweep(g *factorgraph.Graph, order []factorgraph.EdgeID, mode Mode) float64 {
	residual := 0.0
	for _, id := range order {
		edge := g.Edge(id)
		factor := g.Factor(edge.Factor)
		self := -1
		in := make([][]float64, len(factor.Edges))
		for j, s := range factor.Edges {
			sibling := g.Edge(s)
			if s == id {
				self = j
			} else {
				refreshN2F(g, sibling)
			}
			in[j] = sibling.N2F
		}
		copy(edge.OldF2N, edge.F2N)
		if mode == MaxProduct {
			factor.Potential.MaxMarginalF2N(in, g.Weights, self, edge.F2N)
		} else {
			factor.Potential.MarginalF2N(in, g.Weights, self, edge.F2N)
		}
		for x := range edge.F2N {
			if edge.F2N[x] == edge.OldF2N[x] {
				continue
			}
			if d := math.Abs(edge.F2N[x] - edge.OldF2N[x]); d > residual {
				residual = d
			}
		}
	}
	return residual
}

// refreshN2F recomputes one node-to-factor message from the current
// factor-to-node messages on the node's other edges.
func refreshN2F(g *factorgraph.Graph, edge *factorgraph.Edge) {
	node := g.Node(edge.Node)
	for x := range edge.N2F {
		edge.N2F[x] = 0
	}
	for _, o := range node.Edges {
		if o == edge.ID {
			continue
		}
		other := g.Edge(o)
		for x := range edge.N2F {
			edge.N2F[x] += other.F2N[x]
		}
	}
	normalizeMax(edge.N2F)
}

func refreshAllN2F(g *factorgraph.Graph) {
	for e := 0; e < g.NumEdges(); e++ {
		refreshN2F(g, g.Edge(factorgraph.EdgeID(e)))
	}
}

// computeBeliefs sets every node's belief from its incoming factor-to-node
// messages: normalized log-probabilities for sum-product, max-normalized
// max-marginals for max-product.
func computeBeliefs(g *factorgraph.Graph, mode Mode) {
	for i := 0; i < g.NumNodes(); i++ {
		node := g.Node(factorgraph.NodeID(i))
		for x := range node.Belief {
			node.Belief[x] = 0
		}
		for _, e := range node.Edges {
			edge := g.Edge(e)
			for x := range node.Belief {
				node.Belief[x] += edge.F2N[x]
			}
		}
		if mode == MaxProduct {
			normalizeMax(node.Belief)
		} else {
			normalizeLogProb(node.Belief)
		}
	}
}

// computeResults sets the graph's Value and Gradient, plus arg-max States
// for max-product. Sum-product applies the tree entropy correction
// (1-degree)·H(belief) per node, which makes the value log Z on trees; nodes
// in no factor contribute log(dim) through it.
func computeResults(g *factorgraph.Graph, mode Mode) {
	value := 0.0
	gradient := sparse.Vector{}
	for i := 0; i < g.NumFactors(); i++ {
		factor := g.Factor(factorgraph.FactorID(i))
		in := make([][]float64, len(factor.Edges))
		for j, e := range factor.Edges {
			in[j] = g.Edge(e).N2F
		}
		if mode == MaxProduct {
			score, setting := factor.Potential.MaxExpectations(in, g.Weights, &gradient)
			value += score
			for j, e := range factor.Edges {
				g.Node(g.Edge(e).Node).State = setting[j]
			}
		} else {
			value += factor.Potential.MarginalExpectations(in, g.Weights, &gradient)
		}
	}
	for i := 0; i < g.NumNodes(); i++ {
		node := g.Node(factorgraph.NodeID(i))
		degree := len(node.Edges)
		if mode == MaxProduct {
			if degree == 0 {
				node.State = 0
			}
			continue
		}
		if degree != 1 {
			value += float64(1-degree) * entropy(node.Belief)
		}
	}
	g.Value = value
	g.Gradient = gradient
}

// entropy of a normalized log-probability distribution.
func entropy(belief []float64) float64 {
	h := 0.0
	for _, b := range belief {
		p := math.Exp(b)
		if p > 0 {
			h -= p * b
		}
	}
	return h
}

// normalizeMax shifts a message so its maximum entry is 0. An all -Inf
// message stays put; shifting it would produce NaNs.
func normalizeMax(msg []float64) {
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

// normalizeLogProb shifts a log-space belief so it exponentiates to a
// probability distribution. An all -Inf belief stays put.
func normalizeLogProb(belief []float64) {
	logZ := math.Inf(-1)
	for _, v := range belief {
		logZ = factorgraph.LogAdd(logZ, v)
	}
	if math.IsInf(logZ, -1) {
		return
	}
	for i := range belief {
		belief[i] -= logZ
	}
}

func dumpGraphs(g *factorgraph.Graph, tree *junction.Tree, options Options) error {
	if options.DumpDir == "" {
		return nil
	}
	for _, dump := range []struct {
		name  string
		graph *factorgraph.Graph
	}{
		{"original", g},
		{"junction", tree.Graph},
	} {
		file := filepath.Join(options.DumpDir, dump.name+".dot")
		if err := graphviz.WriteSource(file, dump.graph.WriteDot); err != nil {
			return fmt.Errorf("bp: dumping %s: %v", dump.name, err)
		}
		if options.RenderDumps {
			file = filepath.Join(options.DumpDir, dump.name+".png")
			if err := graphviz.Render(file, dump.graph.WriteDot); err != nil {
				return fmt.Errorf("bp: rendering %s: %v", dump.name, err)
			}
		}
	}
	return nil
}

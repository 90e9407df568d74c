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
	"github.com/prometheus/client_golang/prometheus"

	metricsutil "github.com/codeaudit/wolfe/util/metrics"
)

// metrics are the process-wide counters for this package. Per-run numbers
// live in Stats instead.
var metrics struct {
	runs           prometheus.Counter
	iterations     prometheus.Counter
	messagesSent   prometheus.Counter
	runSeconds     prometheus.Summary
	lastRunSeconds prometheus.Gauge
}

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics.runs = mr.NewCounter(prometheus.CounterOpts{
		Namespace: "wolfe", Subsystem: "bp",
		Name: "runs_total",
		Help: "Number of completed inference runs.",
	})
	metrics.iterations = mr.NewCounter(prometheus.CounterOpts{
		Namespace: "wolfe", Subsystem: "bp",
		Name: "iterations_total",
		Help: "Number of message sweeps across all runs.",
	})
	metrics.messagesSent = mr.NewCounter(prometheus.CounterOpts{
		Namespace: "wolfe", Subsystem: "bp",
		Name: "messages_sent_total",
		Help: "Number of factor-to-node messages computed across all runs.",
	})
	metrics.runSeconds = mr.NewSummary(prometheus.SummaryOpts{
		Namespace: "wolfe", Subsystem: "bp",
		Name:       "run_seconds",
		Help:       "Elapsed time of inference runs.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})
	metrics.lastRunSeconds = mr.NewGauge(prometheus.GaugeOpts{
		Namespace: "wolfe", Subsystem: "bp",
		Name: "last_run_seconds",
		Help: "Elapsed time of the most recent inference run.",
	})
}

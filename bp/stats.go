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
	"time"

	"github.com/codeaudit/wolfe/util/clocks"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fmtr = message.NewPrinter(language.English)

// Stats collects diagnostics about one Run. The caller owns it and may read
// it after Run returns; Run only ever adds to the counters, so the same
// Stats can accumulate over several runs.
type Stats struct {
	// Clock is the time source for Duration. Run fills in the wall clock if
	// it's nil; tests install a mock.
	Clock clocks.Source
	// Iterations counts message sweeps completed.
	Iterations int
	// MessagesSent counts factor-to-node messages computed.
	MessagesSent int
	// MaxResidual is the largest message change of the final sweep. 0 means
	// the run ended at a fixed point.
	MaxResidual float64
	// Duration is the elapsed time of the whole run, per Clock.
	Duration time.Duration
	// SelfCheckMismatch is the absolute objective difference between the
	// junction run and the direct run. Only set when Options.SelfCheck is on.
	SelfCheckMismatch float64
}

func (s *Stats) String() string {
	return fmtr.Sprintf("%d iterations, %d messages, residual %g, took %v",
		s.Iterations, s.MessagesSent, s.MaxResidual, s.Duration)
}

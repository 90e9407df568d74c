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

// Package debuglog configures the global Logrus logger the way Wolfe
// processes and tests expect it: UTC timestamps with microsecond precision
// and short caller filenames on every line.
package debuglog

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Options to Configure.
type Options struct {
	// Force colorized output even when stdout is not a TTY.
	ForceColors bool
}

// Configure installs the Wolfe log format on the standard Logrus logger and
// emits one line at info level so the setup itself is visible in the log.
func Configure(options Options) {
	log.SetFormatter(&utcFormatter{inner: &log.TextFormatter{
		ForceColors:     options.ForceColors,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000 UTC",
		CallerPrettyfier: func(frame *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", relativeFile(frame.File), frame.Line)
		},
	}})
	log.SetReportCaller(true)
	log.WithFields(log.Fields{
		"forceColors": options.ForceColors,
	}).Info("Initialized Logrus")
}

type utcFormatter struct {
	inner log.Formatter
}

func (f *utcFormatter) Format(entry *log.Entry) ([]byte, error) {
	entry.Time = entry.Time.UTC()
	return f.inner.Format(entry)
}

// relativeFile shortens an absolute source path to start at the module path,
// so log lines stay readable regardless of where the tree is checked out.
func relativeFile(file string) string {
	const marker = "github.com/codeaudit/wolfe/"
	if i := strings.LastIndex(file, marker); i >= 0 {
		return file[i:]
	}
	return filepath.Base(file)
}

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

// Package graphviz renders diagrams from dot input. It's used to visualize
// factor graphs and their junction trees while debugging inference.
package graphviz

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/codeaudit/wolfe/util/errors"
)

// dot's -T argument for each filename suffix Render understands.
var formats = map[string]string{
	".pdf": "-Tpdf",
	".png": "-Tpng",
	".svg": "-Tsvg",
}

// Render writes an image file from a Graphviz spec, invoking the "dot"
// program internally. The output format is taken from the filename suffix
// (.pdf, .png, or .svg). 'generate' should write the Graphviz spec into the
// given writer; it may safely ignore errors from the writer.
func Render(filename string, generate func(io.Writer)) error {
	format, ok := formats[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return fmt.Errorf("could not determine filetype from filename: %v", filename)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	cmd := exec.Command("dot", format)
	cmd.Stdout = file
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	go func() {
		defer stdin.Close()
		generate(stdin)
	}()
	var errOut strings.Builder
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("error executing dot: %v. Stderr: %v", err, errOut.String())
	}
	return nil
}

// WriteSource writes the Graphviz spec itself to a .dot file, without
// invoking dot. It's the fallback when only the source is wanted.
func WriteSource(filename string, generate func(io.Writer)) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	generate(w)
	return errors.Any(w.Flush(), file.Close())
}

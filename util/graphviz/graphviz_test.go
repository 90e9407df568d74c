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

package graphviz

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Render_unknownSuffix(t *testing.T) {
	err := Render(filepath.Join(t.TempDir(), "out.bogus"), func(w io.Writer) {})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "out.bogus")
	}
}

func Test_WriteSource(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "graph.dot")
	err := WriteSource(filename, func(w io.Writer) {
		fmt.Fprintln(w, "graph G { a -- b }")
	})
	require.NoError(t, err)
	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "graph G { a -- b }\n", string(data))
}

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

// Package sparse defines a sparse vector over integer feature ids. It's used
// in Wolfe for the sufficient statistics of linear potentials and for the
// feature-expectation gradient that inference produces.
package sparse

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// A Vector is a sparse vector of float64 values indexed by non-negative
// feature ids. The zero value is an empty vector, ready to use. Entries are
// kept sorted by index; entries that were never written read as 0.
type Vector struct {
	idx []int
	val []float64
}

// NewVector returns a vector holding the given (index, value) pairs. The
// pairs may be supplied in any order.
func NewVector(entries map[int]float64) Vector {
	var v Vector
	v.idx = make([]int, 0, len(entries))
	for i := range entries {
		v.idx = append(v.idx, i)
	}
	sort.Ints(v.idx)
	v.val = make([]float64, len(v.idx))
	for pos, i := range v.idx {
		v.val[pos] = entries[i]
	}
	return v
}

// Len returns the number of stored entries.
func (v *Vector) Len() int {
	return len(v.idx)
}

// Get returns the value at the given index, or 0 if the index has no entry.
func (v *Vector) Get(index int) float64 {
	pos := sort.SearchInts(v.idx, index)
	if pos < len(v.idx) && v.idx[pos] == index {
		return v.val[pos]
	}
	return 0
}

// Set stores the value at the given index, replacing any previous entry.
func (v *Vector) Set(index int, value float64) {
	pos := sort.SearchInts(v.idx, index)
	if pos < len(v.idx) && v.idx[pos] == index {
		v.val[pos] = value
		return
	}
	v.idx = append(v.idx, 0)
	copy(v.idx[pos+1:], v.idx[pos:])
	v.idx[pos] = index
	v.val = append(v.val, 0)
	copy(v.val[pos+1:], v.val[pos:])
	v.val[pos] = value
}

// AddValue adds delta to the entry at the given index.
func (v *Vector) AddValue(index int, delta float64) {
	v.Set(index, v.Get(index)+delta)
}

// Add accumulates scale*other into this vector.
func (v *Vector) Add(other Vector, scale float64) {
	for pos, i := range other.idx {
		v.AddValue(i, scale*other.val[pos])
	}
}

// Dot returns the dot product with a dense vector. Entries of the sparse
// vector at or beyond len(dense) contribute nothing.
func (v *Vector) Dot(dense []float64) float64 {
	sum := 0.0
	for pos, i := range v.idx {
		if i < len(dense) {
			sum += v.val[pos] * dense[i]
		}
	}
	return sum
}

// Entries calls fn for each stored entry in increasing index order.
func (v *Vector) Entries(fn func(index int, value float64)) {
	for pos, i := range v.idx {
		fn(i, v.val[pos])
	}
}

// Clone returns a deep copy of the vector.
func (v *Vector) Clone() Vector {
	return Vector{
		idx: append([]int(nil), v.idx...),
		val: append([]float64(nil), v.val...),
	}
}

// Equal returns true if both vectors agree on every index to within epsilon,
// false otherwise. Missing entries compare as 0.
func (v *Vector) Equal(other Vector, epsilon float64) bool {
	eq := true
	v.Entries(func(i int, value float64) {
		if math.Abs(value-other.Get(i)) > epsilon {
			eq = false
		}
	})
	other.Entries(func(i int, value float64) {
		if math.Abs(value-v.Get(i)) > epsilon {
			eq = false
		}
	})
	return eq
}

// String returns a compact "{idx: val, ...}" rendering for logs and tests.
func (v *Vector) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for pos, i := range v.idx {
		if pos > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d: %g", i, v.val[pos])
	}
	b.WriteByte('}')
	return b.String()
}

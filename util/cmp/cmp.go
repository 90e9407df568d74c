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

// Package cmp contains a string-based identity interface used to key
// heterogeneous values in maps.
package cmp

import "strings"

// A Key writes a distinct identity for the value into the given builder. Two
// values must write equal bytes if and only if they are interchangeable. The
// written key cannot change over the lifetime of the value.
type Key interface {
	Key(b *strings.Builder)
}

// GetKey returns the value's identity as a string.
func GetKey(k Key) string {
	var b strings.Builder
	k.Key(&b)
	return b.String()
}

// Copyright (c) 2017 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package collection provides ordered PV-name sets so batch selection (e.g.
// "start up at most 10000 metachannels this tick") is deterministic across
// runs instead of depending on Go's randomized map iteration order.
package collection

import (
	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"
)

// OrderedStringSet is a sorted, duplicate-free collection of PV base names.
type OrderedStringSet struct {
	set *treeset.Set
}

// NewOrderedStringSet builds an empty OrderedStringSet.
func NewOrderedStringSet() *OrderedStringSet {
	return &OrderedStringSet{set: treeset.NewWith(utils.StringComparator)}
}

// Add inserts name into the set.
func (s *OrderedStringSet) Add(name string) {
	s.set.Add(name)
}

// Size returns the number of names in the set.
func (s *OrderedStringSet) Size() int {
	return s.set.Size()
}

// Values returns the set's contents in ascending order.
func (s *OrderedStringSet) Values() []string {
	raw := s.set.Values()
	out := make([]string, len(raw))
	for i, v := range raw {
		out[i] = v.(string)
	}
	return out
}

// FirstN returns at most n names from the ascending-sorted set, or every
// name in the set if it holds fewer than n.
func (s *OrderedStringSet) FirstN(n int) []string {
	values := s.Values()
	if n >= len(values) {
		return values
	}
	return values[:n]
}

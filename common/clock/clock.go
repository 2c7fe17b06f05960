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

// Package clock is the injectable time source every periodic engine
// component takes instead of calling time.Now/time.Sleep directly, so tests
// can drive the 60s start-up barrier, the 20min disconnect period, and the
// 1s pause/resume sleep without waiting in real time.
package clock

import (
	"github.com/jonboulle/clockwork"
)

// TimeSource is the subset of clockwork.Clock the engine consumes.
type TimeSource = clockwork.Clock

// NewRealTimeSource returns a TimeSource backed by the real wall clock.
func NewRealTimeSource() TimeSource {
	return clockwork.NewRealClock()
}

// NewFakeTimeSource returns a controllable TimeSource for tests.
func NewFakeTimeSource() clockwork.FakeClock {
	return clockwork.NewFakeClock()
}

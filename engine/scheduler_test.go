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

package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/epicsarchiver/engine/common/clock"
)

func TestFixedRateScheduler_FiresAtFixedRate(t *testing.T) {
	fc := clock.NewFakeTimeSource()
	s := NewFixedRateScheduler(fc)

	var calls int64
	s.ScheduleAtFixedRate(func() {
		atomic.AddInt64(&calls, 1)
	}, 0, time.Second)

	fc.BlockUntil(1)
	for i := 0; i < 3; i++ {
		fc.Advance(time.Second)
		fc.BlockUntil(1)
	}

	// One immediate tick for the zero initial delay, then one per Advance.
	assert.Equal(t, int64(4), atomic.LoadInt64(&calls))
}

func TestFixedRateScheduler_CancelStopsFutureTicks(t *testing.T) {
	fc := clock.NewFakeTimeSource()
	s := NewFixedRateScheduler(fc)

	var calls int64
	cancel := s.ScheduleAtFixedRate(func() {
		atomic.AddInt64(&calls, 1)
	}, 0, time.Second)

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	fc.BlockUntil(1)
	cancel(false)

	// Give the cancelled goroutine a chance to observe stop(); nothing
	// should be blocked on After() anymore so no further ticks can land.
	time.Sleep(10 * time.Millisecond)
	before := atomic.LoadInt64(&calls)
	fc.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, before, atomic.LoadInt64(&calls))
}

func TestFixedRateScheduler_ShutdownRejectsNewTasks(t *testing.T) {
	fc := clock.NewFakeTimeSource()
	s := NewFixedRateScheduler(fc)
	s.Shutdown()

	var calls int64
	s.ScheduleAtFixedRate(func() { atomic.AddInt64(&calls, 1) }, 0, time.Second)

	fc.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int64(0), atomic.LoadInt64(&calls))
}

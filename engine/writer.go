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
	"context"
	"sync"
	"time"

	opentracing "github.com/opentracing/opentracing-go"
	"go.uber.org/atomic"

	"github.com/epicsarchiver/engine/common/clock"
	"github.com/epicsarchiver/engine/common/log"
	"github.com/epicsarchiver/engine/common/log/tag"
	"github.com/epicsarchiver/engine/common/metrics"
)

// Scheduler runs fn at a fixed rate, starting after the given initial
// delay. It is the minimal contract the writer and disconnect-monitor
// loops need from "the main scheduler" / "the disconnect scheduler"
// (spec.md §3, §4.C, §4.D): a single-thread periodic task runner that can
// be cancelled.
type Scheduler interface {
	ScheduleAtFixedRate(fn func(), initialDelay, period time.Duration) CancelFunc
	// Shutdown stops accepting new tasks; running tasks finish (cooperative).
	Shutdown()
	// ShutdownNow stops accepting new tasks and stops every task before its
	// next tick; a tick that is already running is not interrupted.
	ShutdownNow()
}

// CancelFunc cancels a scheduled task. mayInterrupt mirrors
// Future.cancel(mayInterruptIfRunning) from the source system.
type CancelFunc func(mayInterrupt bool)

// Writer drains every archive channel's sample buffer into its first
// storage destination (spec.md §4.C). The engine only guarantees the
// periodic invocation; the per-channel drain loop is this type's contract.
type Writer struct {
	logger        log.Logger
	metricsClient metrics.Client
	clock         clock.TimeSource

	period atomic.Duration

	secondsConsumedSum   atomic.Float64
	secondsConsumedCount atomic.Int64
}

// NewWriter constructs a Writer.
func NewWriter(logger log.Logger, metricsClient metrics.Client, ts clock.TimeSource) *Writer {
	return &Writer{logger: logger, metricsClient: metricsClient, clock: ts}
}

// AdoptPeriod lets the writer clamp/round a requested period, returning the
// actual period it will run at (spec.md §4.C: "the writer may clamp/round
// and returns the actual period"). The writer never rounds below one
// second.
func (w *Writer) AdoptPeriod(requested time.Duration) time.Duration {
	actual := requested
	if actual < time.Second {
		actual = time.Second
	}
	w.period.Store(actual)
	return actual
}

// RunOnce drains every channel in registry into its resolved storage
// destination, recording the wall-clock time consumed. Storage and
// per-channel errors are transient: logged, and only the affected channel
// is abandoned for this tick (spec.md §7).
func (w *Writer) RunOnce(ctx context.Context, registry *ChannelRegistry, cs ConfigService) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "engine.writer.tick")
	defer span.Finish()

	start := w.clock.Now()
	flushed := 0
	for _, ch := range registry.Snapshot() {
		dest, err := w.resolveDestination(ch, cs)
		if err != nil {
			w.logger.Error("writer: could not resolve storage destination",
				tag.ComponentWriter, tag.PVName(ch.Name()), tag.Error(err))
			continue
		}
		n, err := ch.FlushBuffer(ctx, dest)
		if err != nil {
			w.logger.Warn("writer: flush failed for channel",
				tag.ComponentWriter, tag.PVName(ch.Name()), tag.Error(err))
			continue
		}
		flushed += n
	}
	elapsed := w.clock.Now().Sub(start)
	w.setSecondsConsumed(elapsed.Seconds())
	w.metricsClient.RecordTimer(metrics.WriterFlushLatency, elapsed)
	w.metricsClient.IncCounter(metrics.WriterFlushCount)
	w.logger.Debug("writer: tick complete", tag.ComponentWriter, tag.Count("samples-flushed", flushed),
		tag.Duration("flush-latency-seconds", elapsed.Seconds()))
}

func (w *Writer) resolveDestination(ch ArchiveChannel, cs ConfigService) (StoragePlugin, error) {
	info, ok := cs.GetTypeInfo(baseName(ch.Name()))
	if !ok || len(info.StorageURLs) == 0 {
		return nil, &ConfigurationError{Op: "writer.resolveDestination", Reason: "no storage destination configured for " + ch.Name()}
	}
	return cs.ResolveStorageDestination(info.StorageURLs[0])
}

// setSecondsConsumed accumulates sum/count for averageSecondsConsumedByWriter.
func (w *Writer) setSecondsConsumed(seconds float64) {
	w.secondsConsumedSum.Add(seconds)
	w.secondsConsumedCount.Add(1)
}

// AverageSecondsConsumedByWriter returns sum/count, or 0 when count is 0
// (spec.md §4.C, §8 testable property 5).
func (w *Writer) AverageSecondsConsumedByWriter() float64 {
	count := w.secondsConsumedCount.Load()
	if count == 0 {
		return 0
	}
	return w.secondsConsumedSum.Load() / float64(count)
}

// FlushSynchronously drains every channel once, blocking until done, used
// by shutdown step 3 (§4.G).
func (w *Writer) FlushSynchronously(ctx context.Context, registry *ChannelRegistry, cs ConfigService) {
	w.RunOnce(ctx, registry, cs)
}

// writerController owns the scheduling decision in startWriteThread
// (spec.md §4.C): compute the default period, ask the writer to adopt it,
// lazily create the main scheduler, and schedule at a fixed rate.
type writerController struct {
	mu                 sync.Mutex
	writer             *Writer
	writePeriod        time.Duration
	writeThreadStarted atomic.Bool
	cancelTask         CancelFunc
}

func newWriterController(writer *Writer) *writerController {
	return &writerController{writer: writer}
}

// Start computes the default write period from secondsToBuffer, asks the
// writer to adopt it, schedules the periodic flush at the adopted period,
// and marks writeThreadStarted true (spec.md §4.C). If a writer task is
// already scheduled, it is left running, nothing new is scheduled, and its
// period is returned.
func (c *writerController) Start(ctx context.Context, scheduler Scheduler, registry *ChannelRegistry, cs ConfigService, secondsToBuffer time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelTask != nil {
		return c.writePeriod
	}
	actual := c.writer.AdoptPeriod(secondsToBuffer)
	c.writePeriod = actual
	c.cancelTask = scheduler.ScheduleAtFixedRate(func() {
		c.writer.RunOnce(ctx, registry, cs)
	}, 0, actual)
	c.writeThreadStarted.Store(true)
	return actual
}

// WritePeriod returns the actual period the writer is running at.
func (c *writerController) WritePeriod() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writePeriod
}

// IsWriteThreadStarted reports whether Start has run and shutdown has not
// yet reset it.
func (c *writerController) IsWriteThreadStarted() bool {
	return c.writeThreadStarted.Load()
}

// stop cancels the scheduled writer task and marks the thread as not
// started (lifecycle step 6, §4.G).
func (c *writerController) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelTask != nil {
		c.cancelTask(false)
		c.cancelTask = nil
	}
	c.writeThreadStarted.Store(false)
}

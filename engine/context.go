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

// Package engine implements the sampling/ingest core of an archiver
// appliance: the command-thread pool, the channel and controlling-PV
// registries, the writer loop, the disconnect/reconnect monitor, the
// cluster coordination client, and the event bus that ties them to the
// rest of the appliance (spec.md §1, §3).
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/epicsarchiver/engine/common/clock"
	"github.com/epicsarchiver/engine/common/log"
	"github.com/epicsarchiver/engine/common/log/tag"
	"github.com/epicsarchiver/engine/common/metrics"
)

// EngineContext is the single, explicitly-owned process resource described
// in spec.md §1/§3/§9: one value per running appliance process, built once
// by the caller (cmd/engine/main.go) and threaded by reference into every
// collaborator that needs it. There is no package-level singleton.
type EngineContext struct {
	logger        log.Logger
	metricsClient metrics.Client
	clock         clock.TimeSource
	configService ConfigService
	config        *Config

	commandThreads    *CommandThreadPool
	registry          *ChannelRegistry
	controllingPVs    *ControllingPVRegistry
	writerController  *writerController
	disconnectMonitor *DisconnectMonitor
	cluster           *ClusterClient
	eventBus          *EventBus

	mu                  sync.Mutex
	mainScheduler_      Scheduler
	disconnectScheduler Scheduler
	shutdownOnce        sync.Once
}

// Params groups the collaborators EngineContext needs from its caller
// (spec.md §1 external collaborators): the config service, a protocol
// context factory for the command-thread pool, and an optional event
// mirror.
type Params struct {
	Logger                       log.Logger
	MetricsClient                metrics.Client
	Clock                        clock.TimeSource
	ConfigService                ConfigService
	ContextFactory               ContextFactory
	ArchiveEngine                ArchiveEngine
	Mirror                       Mirror
	ClusterPollRequestsPerSecond float64
}

// NewEngineContext builds every owned subsystem from Params, reading the
// command-thread count from Config, and runs the start-up barrier before
// returning (spec.md §4.A, §6). The returned value owns all subsequent
// lifecycle decisions; no method on it is safe to call before this
// constructor returns.
func NewEngineContext(p Params) *EngineContext {
	cfg := NewConfig(p.ConfigService)

	e := &EngineContext{
		logger:        p.Logger,
		metricsClient: p.MetricsClient,
		clock:         p.Clock,
		configService: p.ConfigService,
		config:        cfg,

		registry:       NewChannelRegistry(),
		controllingPVs: NewControllingPVRegistry(),
		cluster:        NewClusterClient(p.Logger, p.MetricsClient, p.ClusterPollRequestsPerSecond),
	}

	e.commandThreads = NewCommandThreadPool(cfg.CommandThreadCount, p.ContextFactory, p.Logger, p.Clock)
	e.commandThreads.AwaitStartupBarrier()

	writer := NewWriter(p.Logger, p.MetricsClient, p.Clock)
	e.writerController = newWriterController(writer)

	e.disconnectMonitor = NewDisconnectMonitor(p.Logger, p.MetricsClient, p.Clock, e.cluster, cfg)

	e.eventBus = NewEventBus(p.Logger, p.MetricsClient, p.ConfigService, p.Mirror)
	e.eventBus.RegisterComputeMetaInfoHandler(p.ConfigService)
	if p.ArchiveEngine != nil {
		e.eventBus.RegisterStartArchivingPVHandler(p.ConfigService, p.ArchiveEngine, e.registry)
	}

	return e
}

// StartWriteThread installs the main scheduler and starts the periodic
// writer at secondsToBuffer (clamped/rounded by the writer), returning the
// actual period it adopted (spec.md §4.C, §6). Calling this a second time
// is a programmer error: the main scheduler is single-assignment
// (spec.md §3 invariant 6) and the existing installation is left
// untouched.
func (e *EngineContext) StartWriteThread(ctx context.Context, secondsToBuffer time.Duration) time.Duration {
	scheduler := e.installMainScheduler()
	return e.writerController.Start(ctx, scheduler, e.registry, e.configService, secondsToBuffer)
}

// StartDisconnectMonitor installs a dedicated scheduler for the
// disconnect/reconnect monitor, independent of the main scheduler so
// writer load cannot starve connectivity repair (spec.md §5).
func (e *EngineContext) StartDisconnectMonitor(ctx context.Context) {
	e.mu.Lock()
	if e.disconnectScheduler == nil {
		e.disconnectScheduler = NewFixedRateScheduler(e.clock)
	}
	scheduler := e.disconnectScheduler
	e.mu.Unlock()
	e.disconnectMonitor.Start(ctx, scheduler, e.registry, e.configService)
}

// mainScheduler returns the installed main scheduler, or nil if none has
// been installed yet.
func (e *EngineContext) mainScheduler() Scheduler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mainScheduler_
}

// installMainScheduler lazily constructs the single main scheduler
// instance, logging (not failing) if called again after installation
// (spec.md §3 invariant 6, §7 programmer-error category).
func (e *EngineContext) installMainScheduler() Scheduler {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mainScheduler_ != nil {
		e.logger.Error("engine context: main scheduler already installed",
			tag.ComponentLifecycle, tag.Error(&ProgrammerError{Reason: "second main scheduler installation attempted"}))
		return e.mainScheduler_
	}
	e.mainScheduler_ = NewFixedRateScheduler(e.clock)
	return e.mainScheduler_
}

// Writer returns the owned Writer, e.g. for a test to call RunOnce
// directly without waiting on the scheduler.
func (e *EngineContext) Writer() *Writer { return e.writerController.writer }

// WritePeriod returns the actual period the writer is running at.
func (e *EngineContext) WritePeriod() time.Duration { return e.writerController.WritePeriod() }

// IsWriteThreadStarted reports whether StartWriteThread has run.
func (e *EngineContext) IsWriteThreadStarted() bool { return e.writerController.IsWriteThreadStarted() }

// AssignCommandThread resolves the command-thread index a PV name should
// bind to (spec.md §4.A).
func (e *EngineContext) AssignCommandThread(pvName, iocHostName string) int {
	return e.commandThreads.AssignCommandThread(e.registry, pvName, iocHostName)
}

// GetCommandThread returns the command thread at i, or nil if out of range.
func (e *EngineContext) GetCommandThread(i int) *CommandThread {
	return e.commandThreads.GetCommandThread(i)
}

// DoesContextMatchThread verifies an incoming protocol callback is on the
// expected command thread (spec.md §4.A).
func (e *EngineContext) DoesContextMatchThread(ctx ProtocolContext, i int) bool {
	return e.commandThreads.DoesContextMatchThread(ctx, i)
}

// Registry returns the archive channel registry.
func (e *EngineContext) Registry() *ChannelRegistry { return e.registry }

// ControllingPVs returns the controlling-PV registry.
func (e *EngineContext) ControllingPVs() *ControllingPVRegistry { return e.controllingPVs }

// EventBus returns the event-bus dispatcher, e.g. for a protocol handler to
// Publish a ComputeMetaInfo or StartArchivingPV event.
func (e *EngineContext) EventBus() *EventBus { return e.eventBus }

// AverageSecondsConsumedByWriter reports the writer's running average flush
// duration (spec.md §4.C, §8 testable property 5).
func (e *EngineContext) AverageSecondsConsumedByWriter() float64 {
	return e.writerController.writer.AverageSecondsConsumedByWriter()
}

// AbortMetaInfoComputation cancels an outstanding ComputeMetaInfo call
// (spec.md §6). Delegated straight to the config service, which owns the
// in-flight computation.
func (e *EngineContext) AbortMetaInfoComputation(pvName string) {
	e.configService.AbortMetaInfoComputation(pvName)
}

// NativeChannelCount reports how many underlying protocol-library channels
// still exist for a PV base name (test-only diagnostic, spec.md §6).
func (e *EngineContext) NativeChannelCount(pvBaseName string) int {
	return e.configService.NativeChannelCount(pvBaseName)
}

// SampleBufferCapacityAdjustment returns the configured multiplier applied
// to a channel's sample buffer capacity (spec.md §6).
func (e *EngineContext) SampleBufferCapacityAdjustment() float64 {
	return e.config.SampleBufferCapacityAdjustment
}

// ForTestingOnlySetDisconnectTimeout reschedules the disconnect monitor at
// a new timeout/period, cancelling the outstanding future first (spec.md
// §6, test-only surface).
func (e *EngineContext) ForTestingOnlySetDisconnectTimeout(ctx context.Context, newValue time.Duration) {
	e.disconnectMonitor.ForTestingOnlySetDisconnectTimeout(ctx, e.registry, e.configService, newValue)
}

// Close runs the ordered shutdown sequence exactly once (spec.md §4.G).
// Calling Close more than once is a no-op after the first call completes.
func (e *EngineContext) Close(ctx context.Context) error {
	var err error
	e.shutdownOnce.Do(func() {
		err = e.shutdown(ctx)
	})
	return err
}

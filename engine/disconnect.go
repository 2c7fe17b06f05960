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

	"github.com/epicsarchiver/engine/common/clock"
	"github.com/epicsarchiver/engine/common/collection"
	"github.com/epicsarchiver/engine/common/log"
	"github.com/epicsarchiver/engine/common/log/tag"
	"github.com/epicsarchiver/engine/common/metrics"
)

// DisconnectMonitor runs the disconnect/reconnect repair loop and the
// staged metachannel start-up gate (spec.md §4.D). It owns its own
// scheduler, separate from the writer's, so writer load cannot starve
// connectivity repair (spec.md §5).
type DisconnectMonitor struct {
	logger        log.Logger
	metricsClient metrics.Client
	clock         clock.TimeSource
	cluster       *ClusterClient

	mu         sync.Mutex
	timeout    time.Duration
	period     time.Duration
	scheduler  Scheduler
	cancelTask CancelFunc
}

// NewDisconnectMonitor constructs a monitor with the configured timeout
// and period (spec.md §4.D, §6).
func NewDisconnectMonitor(logger log.Logger, metricsClient metrics.Client, ts clock.TimeSource, cluster *ClusterClient, cfg *Config) *DisconnectMonitor {
	return &DisconnectMonitor{
		logger:        logger,
		metricsClient: metricsClient,
		clock:         ts,
		cluster:       cluster,
		timeout:       time.Duration(cfg.DisconnectCheckTimeoutMinutes) * time.Minute,
		period:        time.Duration(cfg.DisconnectCheckerPeriodMinutes) * time.Minute,
	}
}

// Start schedules the monitor at a fixed rate of the configured period,
// first fire after the same delay (spec.md §4.D).
func (m *DisconnectMonitor) Start(ctx context.Context, scheduler Scheduler, registry *ChannelRegistry, cs ConfigService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduler = scheduler
	m.cancelTask = scheduler.ScheduleAtFixedRate(func() {
		m.tick(ctx, registry, cs)
	}, m.period, m.period)
}

// ForTestingOnlySetDisconnectTimeout cancels the outstanding future with
// mayInterruptIfRunning=false, updates both the timeout and the period to
// newValue (spec.md §4.D's "the two should normally track each other",
// resolved in DESIGN.md), and reschedules.
func (m *DisconnectMonitor) ForTestingOnlySetDisconnectTimeout(ctx context.Context, registry *ChannelRegistry, cs ConfigService, newValue time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelTask != nil {
		m.cancelTask(false)
	}
	m.timeout = newValue
	m.period = newValue
	m.cancelTask = m.scheduler.ScheduleAtFixedRate(func() {
		m.tick(ctx, registry, cs)
	}, m.period, m.period)
}

// stop cancels the scheduled monitor task without touching the scheduler
// itself (the scheduler gets its own forced ShutdownNow hook, §4.G).
func (m *DisconnectMonitor) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelTask != nil {
		m.cancelTask(false)
		m.cancelTask = nil
	}
}

// tick is the per-invocation algorithm in spec.md §4.D. Every top-level
// exception is caught and logged here; nothing propagates out.
func (m *DisconnectMonitor) tick(ctx context.Context, registry *ChannelRegistry, cs ConfigService) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("disconnect monitor: tick panicked", tag.ComponentDisconnectMonitor, tag.Value("panic", r))
		}
	}()

	if cs.IsShuttingDown() {
		return
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "engine.disconnect.tick")
	defer span.Finish()

	m.metricsClient.IncCounter(metrics.DisconnectTickCount)

	channels := registry.Snapshot()
	timeoutSeconds := m.timeout.Seconds()

	var stuck []ArchiveChannel
	needsMeta := collection.NewOrderedStringSet()
	needsMetaByName := make(map[string]ArchiveChannel, len(channels))

	for _, ch := range channels {
		connected := ch.IsConnected()
		switch {
		case !connected && timeoutSeconds > 0 && ch.SecondsElapsedSinceSearchRequest() > timeoutSeconds:
			stuck = append(stuck, ch)
		case connected && ch.MetaChannelsNeedStartingUp():
			needsMeta.Add(ch.Name())
			needsMetaByName[ch.Name()] = ch
		case !connected:
			m.logger.Warn("disconnect monitor: channel disconnected but not yet stuck",
				tag.ComponentDisconnectMonitor, tag.PVName(ch.Name()))
		}
	}

	m.metricsClient.AddCounter(metrics.DisconnectStuckCount, int64(len(stuck)))
	m.repairStuck(ctx, cs, stuck)
	m.gateAndStartMetachannels(ctx, cs, len(channels), len(stuck), needsMeta, needsMetaByName)
}

// repairStuck pauses then resumes each stuck channel (spec.md §4.D step 3).
// All exceptions are caught and logged per-PV; one failure never aborts the
// rest of the tick.
func (m *DisconnectMonitor) repairStuck(ctx context.Context, cs ConfigService, stuck []ArchiveChannel) {
	for _, ch := range stuck {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("disconnect monitor: repair panicked", tag.ComponentDisconnectMonitor, tag.PVName(ch.Name()), tag.Value("panic", r))
				}
			}()

			name := baseName(ch.Name())
			info, ok := cs.GetTypeInfo(name)
			if !ok || info.Paused {
				return
			}

			if err := cs.PauseArchivingPV(ctx, name); err != nil {
				m.metricsClient.IncCounter(metrics.DisconnectRepairFailures)
				m.logger.Error("disconnect monitor: pause failed", tag.ComponentDisconnectMonitor, tag.PVName(name), tag.Error(err))
				return
			}

			m.clock.Sleep(PauseResumeSleep)

			if n := cs.NativeChannelCount(name); n > 0 {
				m.logger.Warn("disconnect monitor: stray native channels remain after pause",
					tag.ComponentDisconnectMonitor, tag.PVName(name), tag.Count("native-channels", n))
			}

			if err := cs.ResumeArchivingPV(ctx, name); err != nil {
				m.metricsClient.IncCounter(metrics.DisconnectRepairFailures)
				m.logger.Error("disconnect monitor: resume failed", tag.ComponentDisconnectMonitor, tag.PVName(name), tag.Error(err))
			}
		}()
	}
}

// gateAndStartMetachannels implements spec.md §4.D step 4: skip entirely
// when the local disconnected fraction is already >= 5%, otherwise poll
// every peer and require every responding peer to also be under 5% before
// starting at most MetachannelsToStartAtATime metachannels this tick.
func (m *DisconnectMonitor) gateAndStartMetachannels(ctx context.Context, cs ConfigService, total, disconnected int, needsMeta *collection.OrderedStringSet, byName map[string]ArchiveChannel) {
	if total == 0 {
		return
	}
	localPercent := float64(disconnected) * 100.0 / float64(total)
	if localPercent >= MetachannelGatingThresholdPercent {
		m.metricsClient.IncCounter(metrics.MetachannelGatingBlocked)
		m.logger.Info("disconnect monitor: metachannel startup gated by local disconnect fraction",
			tag.ComponentDisconnectMonitor, tag.Value("local-disconnected-percent", localPercent))
		return
	}

	if allowed := m.cluster.AllPeersUnderThreshold(ctx, cs); !allowed {
		m.metricsClient.IncCounter(metrics.MetachannelGatingBlocked)
		m.logger.Info("disconnect monitor: metachannel startup gated by a peer appliance", tag.ComponentDisconnectMonitor)
		return
	}

	names := needsMeta.FirstN(MetachannelsToStartAtATime)
	for _, name := range names {
		byName[name].StartUpMetaChannels()
	}
	m.metricsClient.AddCounter(metrics.MetachannelsStarted, int64(len(names)))
	if len(names) > 0 {
		m.logger.Info("disconnect monitor: started metachannels",
			tag.ComponentDisconnectMonitor, tag.Count("started", len(names)), tag.Count("eligible", needsMeta.Size()))
	}
}

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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epicsarchiver/engine/common/clock"
)

func readyContextFactory(threadID int) ProtocolContext {
	return &fakeProtocolContext{ready: true}
}

func newTestEngineContext(cs ConfigService, fc interface {
	After(time.Duration) <-chan time.Time
	Sleep(time.Duration)
	Now() time.Time
	Since(time.Time) time.Duration
}) *EngineContext {
	return NewEngineContext(Params{
		Logger:                       noopLogger{},
		MetricsClient:                noopMetrics{},
		Clock:                        fc,
		ConfigService:                cs,
		ContextFactory:               readyContextFactory,
		ClusterPollRequestsPerSecond: 100,
	})
}

func TestNewEngineContext_RunsStartupBarrierAndWiresComputeMetaInfo(t *testing.T) {
	fc := clock.NewFakeTimeSource()
	cs := newFakeConfigService()
	cs.props[PropertyCommandThreadCount] = "3"

	ec := newTestEngineContext(cs, fc)

	assert.Equal(t, 3, ec.commandThreads.Size())
	assert.False(t, ec.IsWriteThreadStarted())

	var finished int
	ec.eventBus.Subscribe(EventMetaInfoFinished, func(ctx context.Context, evt Event) error {
		finished++
		return nil
	})
	ec.eventBus.Publish(context.Background(), Event{Type: EventComputeMetaInfo, Destination: DestinationAll, PVName: "PV1"})
	assert.Equal(t, 1, finished)
}

func TestEngineContext_StartWriteThread_AdoptsPeriodAndMarksStarted(t *testing.T) {
	fc := clock.NewFakeTimeSource()
	cs := newFakeConfigService()
	ec := newTestEngineContext(cs, fc)

	period := ec.StartWriteThread(context.Background(), 2*time.Second)

	assert.Equal(t, 2*time.Second, period)
	assert.True(t, ec.IsWriteThreadStarted())
	assert.Equal(t, 2*time.Second, ec.WritePeriod())
}

func TestEngineContext_InstallMainScheduler_SingleAssignment(t *testing.T) {
	fc := clock.NewFakeTimeSource()
	cs := newFakeConfigService()
	ec := newTestEngineContext(cs, fc)

	first := ec.installMainScheduler()
	second := ec.installMainScheduler()

	assert.Same(t, first, second, "a second installation attempt must return the existing scheduler untouched")
}

func TestEngineContext_AssignAndGetCommandThread(t *testing.T) {
	fc := clock.NewFakeTimeSource()
	cs := newFakeConfigService()
	cs.props[PropertyCommandThreadCount] = "4"
	ec := newTestEngineContext(cs, fc)

	idx := ec.AssignCommandThread("PV1", "ioc1")
	assert.GreaterOrEqual(t, idx, 0)
	assert.Less(t, idx, 4)
	assert.NotNil(t, ec.GetCommandThread(idx))
}

func TestEngineContext_SampleBufferCapacityAdjustment(t *testing.T) {
	fc := clock.NewFakeTimeSource()
	cs := newFakeConfigService()
	cs.props[PropertySampleBufferCapacityAdjustment] = "2.5"
	ec := newTestEngineContext(cs, fc)

	assert.Equal(t, 2.5, ec.SampleBufferCapacityAdjustment())
}

func TestEngineContext_EventBusWiresStartArchivingPVWhenArchiveEngineProvided(t *testing.T) {
	fc := clock.NewFakeTimeSource()
	cs := newFakeConfigService()
	cs.typeInfo["PV1"] = PVTypeInfo{PVName: "PV1", StorageURLs: []string{"mock://a"}}
	ae := &fakeArchiveEngine{channel: &fakeChannel{name: "PV1"}}

	ec := NewEngineContext(Params{
		Logger:                       noopLogger{},
		MetricsClient:                noopMetrics{},
		Clock:                        fc,
		ConfigService:                cs,
		ContextFactory:               readyContextFactory,
		ArchiveEngine:                ae,
		ClusterPollRequestsPerSecond: 100,
	})

	ec.eventBus.Publish(context.Background(), Event{Type: EventStartArchivingPV, Destination: DestinationAll, PVName: "PV1"})

	_, ok := ec.Registry().Lookup("PV1")
	assert.True(t, ok, "the archive engine's channel must land in the registry reachable through EngineContext")
}

// TestEngineContext_Close_FullShutdownSequence covers the S1 scenario end to
// end through EngineContext: after registering a batch of channels and
// controlling PVs and starting both loops, Close empties every registry,
// stops the write thread, and is idempotent on a second call.
func TestEngineContext_Close_FullShutdownSequence(t *testing.T) {
	fc := clock.NewFakeTimeSource()
	cs := newFakeConfigService()
	for i := 0; i < 10; i++ {
		cs.typeInfo[fmt.Sprintf("PV%d", i)] = PVTypeInfo{StorageURLs: []string{"mock://a"}}
	}
	ec := newTestEngineContext(cs, fc)

	for i := 0; i < 10; i++ {
		ec.Registry().Register(&fakeChannel{name: fmt.Sprintf("PV%d", i)})
	}
	ec.ControllingPVs().Register(&fakeControllingPV{name: "CTRL1"})

	ec.StartWriteThread(context.Background(), time.Second)
	ec.StartDisconnectMonitor(context.Background())
	require.True(t, ec.IsWriteThreadStarted())

	err := ec.Close(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, ec.Registry().Size())
	assert.Equal(t, 0, ec.ControllingPVs().Size())
	assert.False(t, ec.IsWriteThreadStarted())

	// Calling Close again must be a no-op, not a second teardown attempt.
	err = ec.Close(context.Background())
	assert.NoError(t, err)
}

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

	"github.com/epicsarchiver/engine/common/log"
	"github.com/epicsarchiver/engine/common/log/tag"
	"github.com/epicsarchiver/engine/common/metrics"
)

// noopLogger discards everything; tests that care about log content build
// their own small capturing logger instead.
type noopLogger struct{}

func (noopLogger) Debug(string, ...tag.Tag)     {}
func (noopLogger) Info(string, ...tag.Tag)      {}
func (noopLogger) Warn(string, ...tag.Tag)      {}
func (noopLogger) Error(string, ...tag.Tag)     {}
func (noopLogger) Fatal(string, ...tag.Tag)     {}
func (l noopLogger) WithTags(...tag.Tag) log.Logger { return l }

// noopMetrics discards every call.
type noopMetrics struct{}

func (noopMetrics) IncCounter(string)                    {}
func (noopMetrics) AddCounter(string, int64)             {}
func (noopMetrics) RecordTimer(string, time.Duration)    {}
func (noopMetrics) UpdateGauge(string, float64)          {}

var _ metrics.Client = noopMetrics{}

// fakeStoragePlugin is the StoragePlugin a fake channel flushes into.
type fakeStoragePlugin struct{ name string }

func (p *fakeStoragePlugin) Name() string { return p.name }

// fakeChannel is a minimal ArchiveChannel double: the meta-channel, Stop and
// FlushBuffer methods record how many times they were called so tests can
// assert on behavior instead of internals.
type fakeChannel struct {
	mu sync.Mutex

	name            string
	connected       bool
	secondsStuck    float64
	threadID        int
	needsMetaUp     bool
	metaUpCalls     int
	shutdownCalls   int
	stopCalls       int
	flushCalls      int
	flushedSamples  int
	flushErr        error
}

func (c *fakeChannel) Name() string                            { return c.name }
func (c *fakeChannel) IsConnected() bool                        { return c.connected }
func (c *fakeChannel) SecondsElapsedSinceSearchRequest() float64 { return c.secondsStuck }
func (c *fakeChannel) JCACommandThreadID() int                  { return c.threadID }
func (c *fakeChannel) MetaChannelsNeedStartingUp() bool          { return c.needsMetaUp }

func (c *fakeChannel) StartUpMetaChannels() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metaUpCalls++
}

func (c *fakeChannel) ShutdownMetaChannels() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdownCalls++
}

func (c *fakeChannel) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopCalls++
}

func (c *fakeChannel) FlushBuffer(ctx context.Context, dest StoragePlugin) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushCalls++
	if c.flushErr != nil {
		return 0, c.flushErr
	}
	return c.flushedSamples, nil
}

func (c *fakeChannel) metaUpCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metaUpCalls
}

// fakeConfigService is a hand-rolled ConfigService double covering every
// path the engine package exercises: installation properties, PV type info,
// storage resolution, pause/resume bookkeeping, and peer URLs.
type fakeConfigService struct {
	mu sync.Mutex

	identity   string
	props      map[string]string
	typeInfo   map[string]PVTypeInfo
	paused     map[string]bool
	peers      []string
	shutdown   bool
	nativeCnt  map[string]int
	pauseErr   error
	pauseCalls int
	resumeErr  error
	computeErr error
}

func newFakeConfigService() *fakeConfigService {
	return &fakeConfigService{
		props:     make(map[string]string),
		typeInfo:  make(map[string]PVTypeInfo),
		paused:    make(map[string]bool),
		nativeCnt: make(map[string]int),
	}
}

func (c *fakeConfigService) GetInstallationProperty(key string) (string, bool) {
	v, ok := c.props[key]
	return v, ok
}

func (c *fakeConfigService) IsShuttingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown
}

func (c *fakeConfigService) GetTypeInfo(pvBaseName string) (PVTypeInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.typeInfo[pvBaseName]
	if !ok {
		return PVTypeInfo{}, false
	}
	info.Paused = c.paused[pvBaseName]
	return info, true
}

func (c *fakeConfigService) ResolveStorageDestination(url string) (StoragePlugin, error) {
	return &fakeStoragePlugin{name: url}, nil
}

func (c *fakeConfigService) PauseArchivingPV(ctx context.Context, pvBaseName string) error {
	c.mu.Lock()
	c.pauseCalls++
	c.mu.Unlock()
	if c.pauseErr != nil {
		return c.pauseErr
	}
	c.mu.Lock()
	c.paused[pvBaseName] = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConfigService) ResumeArchivingPV(ctx context.Context, pvBaseName string) error {
	if c.resumeErr != nil {
		return c.resumeErr
	}
	c.mu.Lock()
	c.paused[pvBaseName] = false
	c.mu.Unlock()
	return nil
}

func (c *fakeConfigService) NativeChannelCount(pvBaseName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nativeCnt[pvBaseName]
}

func (c *fakeConfigService) ComputeMetaInfo(ctx context.Context, pvName string, extraFields []string) (MetaInfo, error) {
	if c.computeErr != nil {
		return MetaInfo{}, c.computeErr
	}
	return MetaInfo{PVName: pvName, ExtraFields: extraFields, Fields: map[string]string{}}, nil
}

func (c *fakeConfigService) AbortMetaInfoComputation(pvName string) {}

func (c *fakeConfigService) PeerApplianceURLs() []string {
	return c.peers
}

func (c *fakeConfigService) Identity() string { return c.identity }

func (c *fakeConfigService) isPaused(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused[name]
}

func (c *fakeConfigService) pauseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pauseCalls
}

// fakeProtocolContext is a ProtocolContext double whose readiness can be
// toggled from the test goroutine.
type fakeProtocolContext struct {
	mu    sync.Mutex
	ready bool
}

func (c *fakeProtocolContext) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *fakeProtocolContext) setReady(v bool) {
	c.mu.Lock()
	c.ready = v
	c.mu.Unlock()
}

// fakeArchiveEngine hands back a pre-built fakeChannel for every start
// request, recording which path (V3/V4) was used.
type fakeArchiveEngine struct {
	channel  ArchiveChannel
	err      error
	v3Calls  int
	v4Calls  int
}

func (e *fakeArchiveEngine) StartArchivingV3(ctx context.Context, pvName string, dest StoragePlugin) (ArchiveChannel, error) {
	e.v3Calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.channel, nil
}

func (e *fakeArchiveEngine) StartArchivingV4(ctx context.Context, pvName string, dest StoragePlugin) (ArchiveChannel, error) {
	e.v4Calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.channel, nil
}

// fakeMirror records every event it's handed.
type fakeMirror struct {
	mu     sync.Mutex
	events []Event
}

func (m *fakeMirror) Publish(ctx context.Context, evt Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *fakeMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

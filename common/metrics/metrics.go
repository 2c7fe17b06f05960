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

// Package metrics wraps tally so every engine component reports through one
// narrow Client interface instead of holding a tally.Scope directly.
package metrics

import (
	"time"

	"github.com/uber-go/tally"
)

// Metric names emitted by the engine. Kept as a flat set of constants the
// way resourceImpl.go emits metrics.RestartCount.
const (
	CommandThreadReady        = "command_thread_ready"
	CommandThreadNotReady     = "command_thread_not_ready"
	WriterFlushLatency        = "writer_flush_latency"
	WriterFlushCount          = "writer_flush_count"
	DisconnectTickCount       = "disconnect_tick_count"
	DisconnectStuckCount      = "disconnect_stuck_count"
	DisconnectRepairFailures  = "disconnect_repair_failures"
	MetachannelsStarted       = "metachannels_started"
	MetachannelGatingBlocked  = "metachannel_gating_blocked"
	ClusterPeerCallFailures   = "cluster_peer_call_failures"
	EventBusHandlerFailures   = "eventbus_handler_failures"
	EventBusConfirmationsSent = "eventbus_confirmations_sent"
)

// Client is the narrow metrics surface engine components depend on.
type Client interface {
	IncCounter(name string)
	AddCounter(name string, delta int64)
	RecordTimer(name string, d time.Duration)
	UpdateGauge(name string, value float64)
}

type tallyClient struct {
	scope tally.Scope
}

// NewClient wraps a tally.Scope as a Client.
func NewClient(scope tally.Scope) Client {
	if scope == nil {
		scope = tally.NoopScope
	}
	return &tallyClient{scope: scope}
}

func (c *tallyClient) IncCounter(name string) {
	c.scope.Counter(name).Inc(1)
}

func (c *tallyClient) AddCounter(name string, delta int64) {
	c.scope.Counter(name).Inc(delta)
}

func (c *tallyClient) RecordTimer(name string, d time.Duration) {
	c.scope.Timer(name).Record(d)
}

func (c *tallyClient) UpdateGauge(name string, value float64) {
	c.scope.Gauge(name).Update(value)
}

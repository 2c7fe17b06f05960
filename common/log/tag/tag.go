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

// Package tag builds structured logging fields shared by every engine component.
package tag

import (
	"go.uber.org/zap"
)

// Tag wraps a single structured logging field.
type Tag struct {
	field zap.Field
}

// Field returns the underlying zap field.
func (t Tag) Field() zap.Field {
	return t.field
}

// Error creates a tag for an error value.
func Error(err error) Tag {
	return Tag{zap.Error(err)}
}

// PVName creates a tag for a PV base name.
func PVName(name string) Tag {
	return Tag{zap.String("pv-name", name)}
}

// CommandThreadID creates a tag for a command-thread slot index.
func CommandThreadID(id int) Tag {
	return Tag{zap.Int("command-thread-id", id)}
}

// Appliance creates a tag for a peer appliance URL.
func Appliance(url string) Tag {
	return Tag{zap.String("appliance", url)}
}

// Component creates a tag naming the engine subsystem emitting the log line.
func Component(name string) Tag {
	return Tag{zap.String("component", name)}
}

// EventType creates a tag for an event-bus message type.
func EventType(name string) Tag {
	return Tag{zap.String("event-type", name)}
}

// Duration creates a tag for an elapsed-time value already formatted by the caller.
func Duration(name string, seconds float64) Tag {
	return Tag{zap.Float64(name, seconds)}
}

// Count creates a tag for an integer count.
func Count(name string, n int) Tag {
	return Tag{zap.Int(name, n)}
}

// Value creates a tag for an arbitrary named value.
func Value(name string, v interface{}) Tag {
	return Tag{zap.Any(name, v)}
}

var (
	// ComponentCommandThreadPool names the command-thread pool subsystem (4.A).
	ComponentCommandThreadPool = Component("command-thread-pool")
	// ComponentRegistry names the archive channel registry subsystem (4.B).
	ComponentRegistry = Component("registry")
	// ComponentWriter names the writer loop subsystem (4.C).
	ComponentWriter = Component("writer")
	// ComponentDisconnectMonitor names the disconnect/reconnect monitor subsystem (4.D).
	ComponentDisconnectMonitor = Component("disconnect-monitor")
	// ComponentClusterClient names the cluster coordination client subsystem (4.E).
	ComponentClusterClient = Component("cluster-client")
	// ComponentEventBus names the event-bus subscriber subsystem (4.F).
	ComponentEventBus = Component("event-bus")
	// ComponentLifecycle names the shutdown orchestrator subsystem (4.G).
	ComponentLifecycle = Component("lifecycle")
)

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
	"encoding/json"
	"strings"
	"sync"

	"github.com/epicsarchiver/engine/common/log"
	"github.com/epicsarchiver/engine/common/log/tag"
	"github.com/epicsarchiver/engine/common/metrics"
)

// DestinationAll matches every subscriber regardless of appliance identity
// (spec.md §4.F).
const DestinationAll = "ALL"

// Event is a single message posted on the engine's in-process event bus
// (spec.md §4.F). Destination is either DestinationAll or a specific
// appliance's Identity(); handlers ignore events addressed elsewhere.
type Event struct {
	Type        string
	Destination string
	PVName      string
	ExtraFields []string
	Payload     []byte
}

// EventHandler processes one event. A handler returning an error is logged
// and does not reach the bus again (spec.md §4.F: handler exceptions never
// re-enter the bus).
type EventHandler func(ctx context.Context, evt Event) error

// Mirror optionally forwards every published event to a cross-appliance
// transport (the Kafka mirror in messaging/kafka.go). It is nil by default;
// in-process dispatch is always the primary path (§9 design note).
type Mirror interface {
	Publish(ctx context.Context, evt Event) error
}

// EventBus is a typed, synchronous publish/dispatch point keyed by event
// type (spec.md §4.F). Subscriptions are established once at start-up;
// Publish fans an event out to every handler registered for its Type whose
// Destination matches.
type EventBus struct {
	logger        log.Logger
	metricsClient metrics.Client
	cs            ConfigService
	mirror        Mirror

	mu       sync.RWMutex
	handlers map[string][]EventHandler
}

// NewEventBus constructs an EventBus. mirror may be nil to disable
// cross-appliance forwarding.
func NewEventBus(logger log.Logger, metricsClient metrics.Client, cs ConfigService, mirror Mirror) *EventBus {
	return &EventBus{
		logger:        logger,
		metricsClient: metricsClient,
		cs:            cs,
		mirror:        mirror,
		handlers:      make(map[string][]EventHandler),
	}
}

// Subscribe registers fn for every event of the given type.
func (b *EventBus) Subscribe(eventType string, fn EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], fn)
}

// Publish dispatches evt synchronously to every subscriber whose
// Destination matches, then mirrors it if a Mirror is configured. Each
// handler's error is caught and logged; one handler failing never blocks
// the rest (spec.md §4.F, §7).
func (b *EventBus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[evt.Type]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if evt.Destination != DestinationAll && evt.Destination != b.cs.Identity() {
			continue
		}
		b.invoke(ctx, h, evt)
	}

	if b.mirror != nil {
		if err := b.mirror.Publish(ctx, evt); err != nil {
			b.logger.Warn("event bus: mirror publish failed",
				tag.ComponentEventBus, tag.EventType(evt.Type), tag.Error(err))
		}
	}
}

func (b *EventBus) invoke(ctx context.Context, h EventHandler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.metricsClient.IncCounter(metrics.EventBusHandlerFailures)
			b.logger.Error("event bus: handler panicked",
				tag.ComponentEventBus, tag.EventType(evt.Type), tag.PVName(evt.PVName), tag.Value("panic", r))
		}
	}()
	if err := h(ctx, evt); err != nil {
		b.metricsClient.IncCounter(metrics.EventBusHandlerFailures)
		b.logger.Error("event bus: handler returned error",
			tag.ComponentEventBus, tag.EventType(evt.Type), tag.PVName(evt.PVName), tag.Error(err))
	}
}

// Event types exchanged on the bus (spec.md §4.F).
const (
	EventComputeMetaInfo   = "ComputeMetaInfo"
	EventMetaInfoRequested = "MetaInfoRequested"
	EventMetaInfoFinished  = "MetaInfoFinished"
	EventStartArchivingPV  = "StartArchivingPV"
	EventStartedArchivingPV = "StartedArchivingPV"
)

// RegisterComputeMetaInfoHandler wires the ComputeMetaInfo event (spec.md
// §4.F): a base PV name computes metadata with the configured extra
// fields; a field-qualified name (e.g. "PV.HIHI") computes with an empty
// extra-field list. Success posts MetaInfoRequested synchronously then
// MetaInfoFinished once cs.ComputeMetaInfo returns.
func (b *EventBus) RegisterComputeMetaInfoHandler(cs ConfigService) {
	b.Subscribe(EventComputeMetaInfo, func(ctx context.Context, evt Event) error {
		name := evt.PVName
		extra := evt.ExtraFields
		if base, _, ok := splitFieldName(name); ok {
			name = base
			extra = nil
		}

		b.Publish(ctx, Event{Type: EventMetaInfoRequested, Destination: DestinationAll, PVName: name, ExtraFields: extra})

		info, err := cs.ComputeMetaInfo(ctx, name, extra)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(info)
		if err != nil {
			return err
		}
		b.Publish(ctx, Event{Type: EventMetaInfoFinished, Destination: DestinationAll, PVName: name, Payload: payload})
		return nil
	})
}

// RegisterStartArchivingPVHandler wires the StartArchivingPV event (spec.md
// §4.F): loads the PV's type info, resolves its first storage destination,
// picks the V3/V4 start-up path from DBRType, registers the new channel in
// registry (spec.md §2 data flow: "each new channel registers in B and is
// bound to one thread from A"), and posts StartedArchivingPV on success.
func (b *EventBus) RegisterStartArchivingPVHandler(cs ConfigService, archiveEngine ArchiveEngine, registry *ChannelRegistry) {
	b.Subscribe(EventStartArchivingPV, func(ctx context.Context, evt Event) error {
		name := baseName(evt.PVName)
		info, ok := cs.GetTypeInfo(name)
		if !ok {
			return &ConfigurationError{Op: "eventbus.StartArchivingPV", Reason: "no type info for " + name}
		}
		if len(info.StorageURLs) == 0 {
			return &ConfigurationError{Op: "eventbus.StartArchivingPV", Reason: "no storage destination configured for " + name}
		}
		dest, err := cs.ResolveStorageDestination(info.StorageURLs[0])
		if err != nil {
			return err
		}

		var ch ArchiveChannel
		switch info.DBRType {
		case DBRTypeV4:
			ch, err = archiveEngine.StartArchivingV4(ctx, name, dest)
		default:
			ch, err = archiveEngine.StartArchivingV3(ctx, name, dest)
		}
		if err != nil {
			return err
		}
		registry.Register(ch)

		b.metricsClient.IncCounter(metrics.EventBusConfirmationsSent)
		b.Publish(ctx, Event{Type: EventStartedArchivingPV, Destination: DestinationAll, PVName: name})
		return nil
	})
}

// splitFieldName splits "PV.FIELD" into ("PV", "FIELD", true), or reports
// ok=false for an unqualified PV name (spec.md §3 "base name vs
// field-qualified name").
func splitFieldName(name string) (base, field string, ok bool) {
	idx := strings.IndexByte(name, '.')
	if idx < 0 {
		return name, "", false
	}
	return name[:idx], name[idx+1:], true
}

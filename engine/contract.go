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
	"time"
)

// ArchiveChannel is the engine's contract with the per-PV subscription +
// sample-buffer + policy object (spec.md §3 "Archive channel"). The engine
// core never constructs one; it only consumes this interface.
type ArchiveChannel interface {
	Name() string
	IsConnected() bool
	SecondsElapsedSinceSearchRequest() float64
	JCACommandThreadID() int
	MetaChannelsNeedStartingUp() bool
	StartUpMetaChannels()
	ShutdownMetaChannels()
	Stop()

	// FlushBuffer drains the channel's buffered samples into storage and
	// returns the number flushed, used by the writer loop (4.C).
	FlushBuffer(ctx context.Context, dest StoragePlugin) (int, error)
}

// ProtocolContext is the engine's contract with one command thread's
// channel-access protocol context (spec.md §4.A). The zero value of an
// implementation must be usable as a "not yet initialized" sentinel.
type ProtocolContext interface {
	// Ready reports whether the underlying protocol context finished its
	// asynchronous initialization.
	Ready() bool
}

// ArchiveEngine is the external façade (spec.md §1) through which new
// channels get created in response to event-bus activity (4.F).
type ArchiveEngine interface {
	// StartArchivingV3 starts archiving a PV using the legacy DBR protocol.
	StartArchivingV3(ctx context.Context, pvName string, dest StoragePlugin) (ArchiveChannel, error)
	// StartArchivingV4 starts archiving a PV using the newer DBR protocol.
	StartArchivingV4(ctx context.Context, pvName string, dest StoragePlugin) (ArchiveChannel, error)
}

// StoragePlugin is the destination a writer flush drains samples into
// (spec.md §1 "Storage plugins"). Resolved from a plugin URL by
// ConfigService.ResolveStorageDestination.
type StoragePlugin interface {
	Name() string
}

// PVTypeInfo is the per-PV metadata the config service tracks: DBR type,
// pause state, and storage destination list.
type PVTypeInfo struct {
	PVName       string
	DBRType      DBRType
	Paused       bool
	StorageURLs  []string
	ExtraFields  []string
}

// DBRType distinguishes the DBR protocol generation used to select the
// archive-start path in the StartArchivingPV handler (spec.md §4.F).
type DBRType int

const (
	// DBRTypeV3 selects the legacy channel-access DBR protocol.
	DBRTypeV3 DBRType = iota
	// DBRTypeV4 selects the newer DBR protocol.
	DBRTypeV4
)

// ConfigService is the engine's contract with the global configuration
// service: installation properties, PV type info, and cluster membership
// (spec.md §1). It is explicitly out of scope to implement; the engine
// only depends on this narrow interface.
type ConfigService interface {
	// GetInstallationProperty returns the raw string value for key, and
	// false if the property is unset (falls back to documented defaults).
	GetInstallationProperty(key string) (string, bool)

	// IsShuttingDown reports whether the appliance is in the process of
	// shutting down, checked at the top of every disconnect-monitor tick.
	IsShuttingDown() bool

	// GetTypeInfo looks up a PV's archived type info, or false if unknown.
	GetTypeInfo(pvBaseName string) (PVTypeInfo, bool)

	// ResolveStorageDestination parses a plugin URL into a StoragePlugin.
	ResolveStorageDestination(url string) (StoragePlugin, error)

	// PauseArchivingPV pauses sampling for a PV as part of disconnect repair.
	PauseArchivingPV(ctx context.Context, pvBaseName string) error

	// ResumeArchivingPV resumes sampling for a PV as part of disconnect repair.
	ResumeArchivingPV(ctx context.Context, pvBaseName string) error

	// NativeChannelCount returns how many underlying protocol-library
	// channels still exist for a PV's base name (test-only diagnostic,
	// spec.md §6).
	NativeChannelCount(pvBaseName string) int

	// ComputeMetaInfo computes archival metadata for a PV using the given
	// extra field list, used by the ComputeMetaInfo event handler (4.F).
	ComputeMetaInfo(ctx context.Context, pvName string, extraFields []string) (MetaInfo, error)

	// AbortMetaInfoComputation cancels an outstanding ComputeMetaInfo call
	// for a PV (programmatic surface, spec.md §6).
	AbortMetaInfoComputation(pvName string)

	// PeerApplianceURLs returns the engine URLs of every peer appliance in
	// the cluster, excluding this one (used by 4.E).
	PeerApplianceURLs() []string

	// Identity returns this appliance's own destination identity, compared
	// against an event's Destination field (spec.md §4.F).
	Identity() string
}

// MetaInfo is the archival metadata computed for a PV (spec.md §4.F). The
// JSON encoding of this struct is the MetaInfoFinished event payload.
type MetaInfo struct {
	PVName      string            `json:"pvName"`
	Fields      map[string]string `json:"fields"`
	ComputedAt  time.Time         `json:"computedAt"`
	ExtraFields []string          `json:"extraFields,omitempty"`
}

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
	"strings"
	"sync"
)

// baseName strips any .FIELD suffix, so the registry key is always a PV's
// base name (spec.md §3 invariant 1).
func baseName(pvName string) string {
	if i := strings.IndexByte(pvName, '.'); i >= 0 {
		return pvName[:i]
	}
	return pvName
}

// ChannelRegistry is the concurrent base-name -> ArchiveChannel mapping
// (spec.md §4.B). A single RWMutex is enough here: writes only happen when
// a channel is created or removed (low frequency relative to lookups), and
// readers never observe a partially-constructed entry because map writes
// only become visible after the lock is released.
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[string]ArchiveChannel
}

// NewChannelRegistry constructs an empty registry.
func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{channels: make(map[string]ArchiveChannel)}
}

// Register adds ch under its base name, replacing any prior entry.
func (r *ChannelRegistry) Register(ch ArchiveChannel) {
	key := baseName(ch.Name())
	r.mu.Lock()
	r.channels[key] = ch
	r.mu.Unlock()
}

// Lookup returns the channel registered for pvName's base name.
func (r *ChannelRegistry) Lookup(pvName string) (ArchiveChannel, bool) {
	key := baseName(pvName)
	r.mu.RLock()
	ch, ok := r.channels[key]
	r.mu.RUnlock()
	return ch, ok
}

// Remove deletes the channel registered under pvName's base name.
func (r *ChannelRegistry) Remove(pvName string) {
	key := baseName(pvName)
	r.mu.Lock()
	delete(r.channels, key)
	r.mu.Unlock()
}

// Size returns the number of registered channels.
func (r *ChannelRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Snapshot returns a point-in-time copy of every registered channel. No
// ordering is guaranteed (spec.md §4.B).
func (r *ChannelRegistry) Snapshot() []ArchiveChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ArchiveChannel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

// Clear removes every registered channel, used by shutdown step 4 (§4.G).
func (r *ChannelRegistry) Clear() {
	r.mu.Lock()
	r.channels = make(map[string]ArchiveChannel)
	r.mu.Unlock()
}

// ControllingPV is a PV whose value gates archiving of other PVs
// (spec.md §3 "Controlling PV"). The engine core only needs to stop it on
// shutdown; value-gating logic itself is a policy-layer concern.
type ControllingPV interface {
	Name() string
	Stop()
}

// ControllingPVRegistry is the concurrent map of controlling PVs (§4.G).
type ControllingPVRegistry struct {
	mu  sync.RWMutex
	pvs map[string]ControllingPV
}

// NewControllingPVRegistry constructs an empty registry.
func NewControllingPVRegistry() *ControllingPVRegistry {
	return &ControllingPVRegistry{pvs: make(map[string]ControllingPV)}
}

// Register adds pv, replacing any prior entry with the same name.
func (r *ControllingPVRegistry) Register(pv ControllingPV) {
	r.mu.Lock()
	r.pvs[pv.Name()] = pv
	r.mu.Unlock()
}

// Size returns the number of registered controlling PVs.
func (r *ControllingPVRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pvs)
}

// StopAllAndClear stops every controlling PV and empties the registry
// (shutdown step 5, §4.G).
func (r *ControllingPVRegistry) StopAllAndClear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pv := range r.pvs {
		pv.Stop()
	}
	r.pvs = make(map[string]ControllingPV)
}

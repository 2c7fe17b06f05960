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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseName(t *testing.T) {
	assert.Equal(t, "PV1", baseName("PV1"))
	assert.Equal(t, "PV1", baseName("PV1.HIHI"))
	assert.Equal(t, "PV1", baseName("PV1.HIHI.NESTED"))
}

func TestChannelRegistry_RegisterLookupRemove(t *testing.T) {
	r := NewChannelRegistry()
	ch := &fakeChannel{name: "PV1"}

	_, ok := r.Lookup("PV1")
	assert.False(t, ok, "empty registry should have no entries")

	r.Register(ch)
	got, ok := r.Lookup("PV1")
	require.True(t, ok)
	assert.Same(t, ArchiveChannel(ch), got)

	// field-qualified lookups resolve through the base name.
	got, ok = r.Lookup("PV1.HIHI")
	require.True(t, ok)
	assert.Same(t, ArchiveChannel(ch), got)

	assert.Equal(t, 1, r.Size())

	r.Remove("PV1.HIHI")
	_, ok = r.Lookup("PV1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Size())
}

func TestChannelRegistry_Snapshot(t *testing.T) {
	r := NewChannelRegistry()
	for i := 0; i < 5; i++ {
		r.Register(&fakeChannel{name: string(rune('A' + i))})
	}
	snap := r.Snapshot()
	assert.Len(t, snap, 5)
	assert.Equal(t, 5, r.Size())
}

// TestChannelRegistry_ShutdownClearsRegistry covers the S1 scenario: after
// registering a large batch of PVs, a full shutdown leaves the registry
// empty (spec.md §4.G step 4).
func TestChannelRegistry_ShutdownClearsRegistry(t *testing.T) {
	r := NewChannelRegistry()
	for i := 0; i < 100; i++ {
		r.Register(&fakeChannel{name: "PV" + string(rune('0'+i%10)) + string(rune('A'+i/10))})
	}
	require.Equal(t, 100, r.Size())

	r.Clear()
	assert.Equal(t, 0, r.Size())
	assert.Empty(t, r.Snapshot())
}

func TestControllingPVRegistry_StopAllAndClear(t *testing.T) {
	r := NewControllingPVRegistry()
	stopped := make(map[string]bool)
	for _, name := range []string{"CTRL1", "CTRL2", "CTRL3"} {
		name := name
		r.Register(&fakeControllingPV{name: name, onStop: func() { stopped[name] = true }})
	}
	require.Equal(t, 3, r.Size())

	r.StopAllAndClear()

	assert.Equal(t, 0, r.Size())
	assert.True(t, stopped["CTRL1"])
	assert.True(t, stopped["CTRL2"])
	assert.True(t, stopped["CTRL3"])
}

type fakeControllingPV struct {
	name   string
	onStop func()
}

func (pv *fakeControllingPV) Name() string { return pv.name }
func (pv *fakeControllingPV) Stop() {
	if pv.onStop != nil {
		pv.onStop()
	}
}

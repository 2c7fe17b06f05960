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
	"github.com/dgryski/go-farm"
	"go.uber.org/atomic"

	"github.com/epicsarchiver/engine/common/clock"
	"github.com/epicsarchiver/engine/common/log"
	"github.com/epicsarchiver/engine/common/log/tag"
)

// CommandThread owns one protocol context; all I/O commands for channels
// bound to it are meant to be serialised onto this single slot by the
// caller (spec.md §3, §5). The context itself is an external collaborator
// reached only through the ProtocolContext contract.
type CommandThread struct {
	id      int
	ready   *atomic.Bool
	context ProtocolContext
}

// ID returns the 0-based slot index.
func (t *CommandThread) ID() int { return t.id }

// Context returns the owned protocol context, or nil if it never became
// ready within the start-up barrier.
func (t *CommandThread) Context() ProtocolContext { return t.context }

// Ready reports whether this slot's protocol context finished initializing.
func (t *CommandThread) Ready() bool { return t.ready.Load() }

// CommandThreadPool owns the N command threads configured by
// commandThreadCount (spec.md §4.A) plus the stable hash-based assignment
// of PV base names to slots.
type CommandThreadPool struct {
	threads []*CommandThread
	logger  log.Logger
	clock   clock.TimeSource
}

// ContextFactory constructs one command thread's protocol context. It is
// called once per slot at pool construction and may complete its work
// asynchronously, reporting readiness only once Ready() returns true.
type ContextFactory func(threadID int) ProtocolContext

// NewCommandThreadPool constructs n command threads, each initializing its
// protocol context via factory, mirroring "each thread constructs its own
// protocol context so that concurrent channel operations do not serialise
// on a single lock" (spec.md §4.A).
func NewCommandThreadPool(n int, factory ContextFactory, logger log.Logger, ts clock.TimeSource) *CommandThreadPool {
	pool := &CommandThreadPool{
		threads: make([]*CommandThread, n),
		logger:  logger,
		clock:   ts,
	}
	for i := 0; i < n; i++ {
		ctx := factory(i)
		pool.threads[i] = &CommandThread{
			id:      i,
			ready:   atomic.NewBool(ctx != nil && ctx.Ready()),
			context: ctx,
		}
	}
	return pool
}

// AwaitStartupBarrier polls up to CommandThreadBarrierIterations times, one
// CommandThreadBarrierInterval apart, waiting for every context to become
// ready (spec.md §4.A, §6). Slots still not ready after the barrier are
// logged as errors and their context is dropped (left nil); lookups on them
// degrade gracefully (DoesContextMatchThread's defensive true).
func (p *CommandThreadPool) AwaitStartupBarrier() {
	for iter := 0; iter < CommandThreadBarrierIterations; iter++ {
		if p.allReady() {
			return
		}
		p.clock.Sleep(CommandThreadBarrierInterval)
	}
	for _, t := range p.threads {
		if t.context != nil && t.context.Ready() {
			t.ready.Store(true)
			continue
		}
		p.logger.Error("command thread context never became ready after start-up barrier",
			tag.ComponentCommandThreadPool, tag.CommandThreadID(t.id))
		t.context = nil
		t.ready.Store(false)
	}
}

func (p *CommandThreadPool) allReady() bool {
	for _, t := range p.threads {
		ctx := t.context
		ready := ctx != nil && ctx.Ready()
		t.ready.Store(ready)
		if !ready {
			return false
		}
	}
	return true
}

// Size returns N, the configured command-thread count.
func (p *CommandThreadPool) Size() int { return len(p.threads) }

// GetCommandThread returns the 0-based command thread at i (spec.md §4.A).
func (p *CommandThreadPool) GetCommandThread(i int) *CommandThread {
	if i < 0 || i >= len(p.threads) {
		return nil
	}
	return p.threads[i]
}

// hashThreadIndex computes |farm.Fingerprint64(baseName)| mod n, the
// stable, platform-independent hash spec.md §9 calls for so reconnecting
// channels land on the same context across process restarts.
func hashThreadIndex(name string, n int) int {
	if n <= 0 {
		return 0
	}
	h := farm.Fingerprint64([]byte(name))
	return int(h % uint64(n))
}

// AssignCommandThread implements spec.md §4.A/§3 invariant 3: if a channel
// for pvName's base name is already registered, its existing command
// thread id is returned (even when pvName itself carries a field suffix);
// otherwise a fresh stable-hash assignment over the base name is returned.
func (p *CommandThreadPool) AssignCommandThread(registry *ChannelRegistry, pvName string, iocHostName string) int {
	if registry != nil {
		if ch, ok := registry.Lookup(pvName); ok {
			return ch.JCACommandThreadID()
		}
	}
	return hashThreadIndex(baseName(pvName), len(p.threads))
}

// DoesContextMatchThread verifies an incoming callback is on the expected
// context. A missing mapping (nil command thread) or a slot whose context
// never became ready within the start-up barrier defensively returns true
// rather than drop data (spec.md §4.A, §7).
func (p *CommandThreadPool) DoesContextMatchThread(ctx ProtocolContext, i int) bool {
	t := p.GetCommandThread(i)
	if t == nil {
		return true
	}
	if t.context == nil {
		return true
	}
	return t.context == ctx
}

// Shutdown tears down every command thread (lifecycle step 7, §4.G). The
// protocol context's own teardown is the caller's responsibility via
// whatever concrete type implements ProtocolContext; this pool only drops
// its references.
func (p *CommandThreadPool) Shutdown() {
	for _, t := range p.threads {
		t.context = nil
		t.ready.Store(false)
	}
}

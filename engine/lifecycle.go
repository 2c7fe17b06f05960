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

	"go.uber.org/multierr"

	"github.com/epicsarchiver/engine/common/log/tag"
)

// shutdown runs the seven best-effort teardown steps of spec.md §4.G in
// order, collecting every step's error with multierr instead of aborting
// partway through (mirroring the teacher's best-effort multi-resource
// Stop() methods). The disconnect scheduler is shut down forcibly
// (ShutdownNow) before the main scheduler is shut down cooperatively
// (Shutdown), since an in-flight disconnect tick must not block close.
func (e *EngineContext) shutdown(ctx context.Context) error {
	var err error

	err = multierr.Append(err, e.stepShutdownDisconnectScheduler())
	err = multierr.Append(err, e.stepShutdownMainScheduler())
	err = multierr.Append(err, e.stepStopMetaChannels())
	err = multierr.Append(err, e.stepFlushWriterSynchronously(ctx))
	err = multierr.Append(err, e.stepClearChannelRegistry())
	err = multierr.Append(err, e.stepStopControllingPVs())
	err = multierr.Append(err, e.stepShutdownCommandThreads())

	if err != nil {
		e.logger.Error("lifecycle: shutdown completed with errors", tag.ComponentLifecycle, tag.Error(err))
	} else {
		e.logger.Info("lifecycle: shutdown complete", tag.ComponentLifecycle)
	}
	return err
}

func (e *EngineContext) stepShutdownDisconnectScheduler() (err error) {
	defer func() { err = recoverAsError(recover()) }()
	if e.disconnectScheduler != nil {
		e.disconnectMonitor.stop()
		e.disconnectScheduler.ShutdownNow()
	}
	return nil
}

func (e *EngineContext) stepShutdownMainScheduler() (err error) {
	defer func() { err = recoverAsError(recover()) }()
	e.writerController.stop()
	e.mu.Lock()
	s := e.mainScheduler_
	e.mainScheduler_ = nil
	e.mu.Unlock()
	if s != nil {
		s.Shutdown()
	}
	return nil
}

func (e *EngineContext) stepStopMetaChannels() (err error) {
	defer func() { err = recoverAsError(recover()) }()
	for _, ch := range e.registry.Snapshot() {
		ch.ShutdownMetaChannels()
		ch.Stop()
	}
	return nil
}

func (e *EngineContext) stepFlushWriterSynchronously(ctx context.Context) (err error) {
	defer func() { err = recoverAsError(recover()) }()
	e.writerController.writer.FlushSynchronously(ctx, e.registry, e.configService)
	return nil
}

func (e *EngineContext) stepClearChannelRegistry() (err error) {
	defer func() { err = recoverAsError(recover()) }()
	e.registry.Clear()
	return nil
}

func (e *EngineContext) stepStopControllingPVs() (err error) {
	defer func() { err = recoverAsError(recover()) }()
	e.controllingPVs.StopAllAndClear()
	return nil
}

func (e *EngineContext) stepShutdownCommandThreads() (err error) {
	defer func() { err = recoverAsError(recover()) }()
	e.commandThreads.Shutdown()
	return nil
}

func recoverAsError(r interface{}) error {
	if r == nil {
		return nil
	}
	if err, ok := r.(error); ok {
		return err
	}
	return &ProgrammerError{Reason: "lifecycle.shutdown: recovered panic"}
}

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

// Package loggerimpl provides the zap-backed Logger implementation.
package loggerimpl

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/epicsarchiver/engine/common/log"
	"github.com/epicsarchiver/engine/common/log/tag"
)

type zapLogger struct {
	zap *zap.Logger
}

// NewLogger builds a Logger on top of an existing zap.Logger.
func NewLogger(zapLogger *zap.Logger) log.Logger {
	return &zapLogger{zap: zapLogger}
}

// NewDevelopment builds a Logger suitable for tests and local runs.
func NewDevelopment() log.Logger {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	return NewLogger(l)
}

func fields(tags []tag.Tag) []zap.Field {
	fs := make([]zap.Field, len(tags))
	for i, t := range tags {
		fs[i] = t.Field()
	}
	return fs
}

func (l *zapLogger) Debug(msg string, tags ...tag.Tag) { l.zap.Debug(msg, fields(tags)...) }
func (l *zapLogger) Info(msg string, tags ...tag.Tag)  { l.zap.Info(msg, fields(tags)...) }
func (l *zapLogger) Warn(msg string, tags ...tag.Tag)  { l.zap.Warn(msg, fields(tags)...) }
func (l *zapLogger) Error(msg string, tags ...tag.Tag) { l.zap.Error(msg, fields(tags)...) }
func (l *zapLogger) Fatal(msg string, tags ...tag.Tag) { l.zap.Fatal(msg, fields(tags)...) }

func (l *zapLogger) WithTags(tags ...tag.Tag) log.Logger {
	return &zapLogger{zap: l.zap.With(fields(tags)...)}
}

// throttledLogger drops Info/Debug lines once the configured rate is exceeded;
// Warn/Error/Fatal are never throttled.
type throttledLogger struct {
	base    log.Logger
	limiter *rate.Limiter
}

// RPSProperty returns the throttle rate. NewThrottledLogger reads it once, at
// construction; a later change in the value it returns does not affect an
// already-built logger.
type RPSProperty func() int

// NewThrottledLogger wraps base so that Debug/Info lines are rate-limited to
// rps() events per second, mirroring the teacher's
// loggerimpl.NewThrottledLogger(params.Logger, config.ThrottledLogRPS) call.
func NewThrottledLogger(base log.Logger, rps RPSProperty) log.Logger {
	n := rps()
	if n <= 0 {
		n = 1
	}
	return &throttledLogger{
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(n), n),
	}
}

func (l *throttledLogger) Debug(msg string, tags ...tag.Tag) {
	if l.limiter.AllowN(time.Now(), 1) {
		l.base.Debug(msg, tags...)
	}
}

func (l *throttledLogger) Info(msg string, tags ...tag.Tag) {
	if l.limiter.AllowN(time.Now(), 1) {
		l.base.Info(msg, tags...)
	}
}

func (l *throttledLogger) Warn(msg string, tags ...tag.Tag)  { l.base.Warn(msg, tags...) }
func (l *throttledLogger) Error(msg string, tags ...tag.Tag) { l.base.Error(msg, tags...) }
func (l *throttledLogger) Fatal(msg string, tags ...tag.Tag) { l.base.Fatal(msg, tags...) }

func (l *throttledLogger) WithTags(tags ...tag.Tag) log.Logger {
	return &throttledLogger{base: l.base.WithTags(tags...), limiter: l.limiter}
}

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

// Command engine is the reference process entrypoint for the sampling/ingest
// engine (SPEC_FULL.md "a cmd/engine entrypoint"): it builds one
// EngineContext value explicitly, wires it to a YAML-loaded config file, and
// tears it down on SIGINT/SIGTERM. There is no package-level engine state;
// everything this binary owns lives in main's local variables, matching
// spec.md §9's "explicit value owned by main" design note.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/config"
	"go.uber.org/zap"
	validator "gopkg.in/validator.v2"

	"github.com/epicsarchiver/engine"
	"github.com/epicsarchiver/engine/common/clock"
	"github.com/epicsarchiver/engine/common/log/loggerimpl"
	"github.com/epicsarchiver/engine/common/log/tag"
	"github.com/epicsarchiver/engine/common/metrics"
)

func main() {
	configPath := flag.String("config", "engine.yaml", "path to the engine's YAML bootstrap config")
	secondsToBuffer := flag.Duration("write-period", 30*time.Second, "default writer flush period before the writer adopts/clamps it")
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()

	bootstrap, err := loadBootstrapConfig(*configPath)
	if err != nil {
		logger.Fatal(err.Error())
	}

	engineLogger := loggerimpl.NewLogger(logger)
	metricsClient := metrics.NewClient(nil)
	timeSource := clock.NewRealTimeSource()
	configService := newFileConfigService(bootstrap)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ec := engine.NewEngineContext(engine.Params{
		Logger:                       engineLogger,
		MetricsClient:                metricsClient,
		Clock:                        timeSource,
		ConfigService:                configService,
		ContextFactory:               placeholderContextFactory,
		ClusterPollRequestsPerSecond: 5,
	})

	actualPeriod := ec.StartWriteThread(ctx, *secondsToBuffer)
	engineLogger.Info("writer started", tag.Duration("write-period-seconds", actualPeriod.Seconds()))
	ec.StartDisconnectMonitor(ctx)

	waitForShutdownSignal()
	configService.setShuttingDown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := ec.Close(shutdownCtx); err != nil {
		engineLogger.Error(err.Error())
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	return l
}

// loadBootstrapConfig loads the YAML file at path through go.uber.org/config,
// the same provider the teacher's BootstrapParams-driven config loading uses
// (SPEC_FULL.md AMBIENT STACK, "Configuration").
func loadBootstrapConfig(path string) (bootstrapConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return bootstrapConfig{}, err
	}
	defer f.Close()

	provider, err := config.NewYAML(config.Source(f))
	if err != nil {
		return bootstrapConfig{}, err
	}

	var cfg bootstrapConfig
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return bootstrapConfig{}, err
	}
	if err := validator.Validate(cfg); err != nil {
		return bootstrapConfig{}, fmt.Errorf("validate bootstrap config %s: %w", path, err)
	}
	return cfg, nil
}

// placeholderContextFactory builds an immediately-ready ProtocolContext for
// every command-thread slot. The real channel-access protocol context is
// spec.md §1's explicitly out-of-scope external collaborator; this stub
// keeps the reference binary runnable until that integration is wired in.
func placeholderContextFactory(int) engine.ProtocolContext {
	return readyContext{}
}

type readyContext struct{}

func (readyContext) Ready() bool { return true }

func waitForShutdownSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

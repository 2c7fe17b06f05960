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
	"strconv"
	"time"

	"github.com/iancoleman/strcase"
)

// Installation property keys (spec.md §6), bit-exact with the original
// dotted naming scheme.
const (
	PropertyCommandThreadCount             = "org.epics.archiverappliance.engine.epics.commandThreadCount"
	PropertyDisconnectCheckTimeoutInMinutes = "org.epics.archiverappliance.engine.util.EngineContext.disconnectCheckTimeoutInMinutes"
	PropertySampleBufferCapacityAdjustment  = "org.epics.archiverappliance.config.PVTypeInfo.sampleBufferCapacityAdjustment"
)

// Defaults, bit-exact with spec.md §6 and the Open Question decision in
// DESIGN.md (the property-fallback default of 10 wins over the
// inconsistent in-code default of 20).
const (
	DefaultCommandThreadCount             = 10
	DefaultDisconnectCheckTimeoutMinutes  = 10
	DefaultDisconnectCheckerPeriodMinutes = 20
	DefaultSampleBufferCapacityAdjustment = 1.0

	// MetachannelsToStartAtATime is METACHANNELS_TO_START_AT_A_TIME (spec.md §6).
	MetachannelsToStartAtATime = 10000

	// MetachannelGatingThresholdPercent is the disconnected-fraction gate
	// (spec.md §4.D, §6): 5.0 percent.
	MetachannelGatingThresholdPercent = 5.0

	// CommandThreadBarrierIterations and CommandThreadBarrierInterval make
	// up the 60x1s start-up barrier (spec.md §4.A, §6).
	CommandThreadBarrierIterations = 60
	CommandThreadBarrierInterval   = time.Second

	// PauseResumeSleep is the inter-step sleep between pause and resume
	// during disconnect repair (spec.md §4.D, §6).
	PauseResumeSleep = time.Second
)

// Config holds every tunable named in spec.md §6, resolved once at
// construction from ConfigService installation properties, mirroring
// NewConfig(params) in service/worker/service.go.
type Config struct {
	CommandThreadCount             int
	DisconnectCheckTimeoutMinutes  int
	DisconnectCheckerPeriodMinutes int
	SampleBufferCapacityAdjustment float64
}

// NewConfig resolves Config from cs, falling back to documented defaults
// for any property the config service does not have (spec.md §7 "a missing
// optional property falls back to the documented default").
func NewConfig(cs ConfigService) *Config {
	return &Config{
		CommandThreadCount:             getIntProperty(cs, PropertyCommandThreadCount, DefaultCommandThreadCount),
		DisconnectCheckTimeoutMinutes:  getIntProperty(cs, PropertyDisconnectCheckTimeoutInMinutes, DefaultDisconnectCheckTimeoutMinutes),
		DisconnectCheckerPeriodMinutes: DefaultDisconnectCheckerPeriodMinutes,
		SampleBufferCapacityAdjustment: getFloatProperty(cs, PropertySampleBufferCapacityAdjustment, DefaultSampleBufferCapacityAdjustment),
	}
}

func getIntProperty(cs ConfigService, key string, def int) int {
	raw, ok := cs.GetInstallationProperty(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func getFloatProperty(cs ConfigService, key string, def float64) float64 {
	raw, ok := cs.GetInstallationProperty(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

// propertyKeySuffix derives the trailing camelCase segment of an
// installation-property dotted key from a Go struct field name, used when
// generating documentation/default tables for new properties.
func propertyKeySuffix(fieldName string) string {
	return strcase.ToLowerCamel(fieldName)
}

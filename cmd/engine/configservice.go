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

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/epicsarchiver/engine"
	"github.com/epicsarchiver/engine/storage/cassandra"
	"github.com/epicsarchiver/engine/storage/sql"
)

// bootstrapConfig is the on-disk shape loaded by go.uber.org/config: the
// engine's own installation properties (spec.md §6) plus the minimal
// identity/peer/type-info data this single-process reference ConfigService
// needs. A real deployment's config service (spec.md §1, out of scope)
// would back PV type info and ComputeMetaInfo with a database and a
// cluster-wide key/value store instead of this file.
type bootstrapConfig struct {
	Identity   string            `yaml:"identity" validate:"nonzero"`
	EngineURLs []string          `yaml:"peerEngineURLs"`
	Properties map[string]string `yaml:"installationProperties"`
	PVs        []pvConfig        `yaml:"pvs"`
}

type pvConfig struct {
	Name        string   `yaml:"name" validate:"nonzero"`
	StorageURLs []string `yaml:"storageURLs"`
	ExtraFields []string `yaml:"extraFields"`
	DBRType     string   `yaml:"dbrType"`
}

// fileConfigService is a minimal, single-process engine.ConfigService
// implementation backing the reference cmd/engine binary. It resolves
// installation properties and PV type info from the loaded YAML file and
// storage destinations from plugin URLs of the form "mysql://...",
// "postgres://...", or "cassandra://host1,host2/keyspace".
type fileConfigService struct {
	identity string
	peerURLs []string
	props    map[string]string

	mu        sync.RWMutex
	typeInfo  map[string]engine.PVTypeInfo
	paused    map[string]bool
	shutdown  bool
	openSQL   map[string]*sql.Plugin
	openCassy map[string]*cassandra.Plugin
}

func newFileConfigService(cfg bootstrapConfig) *fileConfigService {
	cs := &fileConfigService{
		identity:  cfg.Identity,
		peerURLs:  cfg.EngineURLs,
		props:     cfg.Properties,
		typeInfo:  make(map[string]engine.PVTypeInfo),
		paused:    make(map[string]bool),
		openSQL:   make(map[string]*sql.Plugin),
		openCassy: make(map[string]*cassandra.Plugin),
	}
	for _, pv := range cfg.PVs {
		dbrType := engine.DBRTypeV3
		if pv.DBRType == "V4" {
			dbrType = engine.DBRTypeV4
		}
		cs.typeInfo[pv.Name] = engine.PVTypeInfo{
			PVName:      pv.Name,
			DBRType:     dbrType,
			StorageURLs: pv.StorageURLs,
			ExtraFields: pv.ExtraFields,
		}
	}
	return cs
}

func (c *fileConfigService) GetInstallationProperty(key string) (string, bool) {
	v, ok := c.props[key]
	return v, ok
}

func (c *fileConfigService) IsShuttingDown() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shutdown
}

func (c *fileConfigService) setShuttingDown() {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
}

func (c *fileConfigService) GetTypeInfo(pvBaseName string) (engine.PVTypeInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.typeInfo[pvBaseName]
	if !ok {
		return engine.PVTypeInfo{}, false
	}
	info.Paused = c.paused[pvBaseName]
	return info, true
}

// ResolveStorageDestination parses a plugin URL into a live StoragePlugin,
// reusing an already-open connection for the same URL.
func (c *fileConfigService) ResolveStorageDestination(url string) (engine.StoragePlugin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.openSQL[url]; ok {
		return p, nil
	}
	if p, ok := c.openCassy[url]; ok {
		return p, nil
	}
	if hosts, keyspace, ok := parseCassandraURL(url); ok {
		p, err := cassandra.Open(url, hosts, keyspace)
		if err != nil {
			return nil, err
		}
		c.openCassy[url] = p
		return p, nil
	}
	p, err := sql.Open(url, url)
	if err != nil {
		return nil, fmt.Errorf("resolve storage destination %q: %w", url, err)
	}
	c.openSQL[url] = p
	return p, nil
}

func (c *fileConfigService) PauseArchivingPV(_ context.Context, pvBaseName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused[pvBaseName] = true
	return nil
}

func (c *fileConfigService) ResumeArchivingPV(_ context.Context, pvBaseName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused[pvBaseName] = false
	return nil
}

func (c *fileConfigService) NativeChannelCount(_ string) int {
	return 0
}

// ComputeMetaInfo is a placeholder for the policy-layer metadata computation
// spec.md §1 lists as an out-of-scope external collaborator; the reference
// binary reports the extra fields it was asked for with no live protocol
// round-trip.
func (c *fileConfigService) ComputeMetaInfo(_ context.Context, pvName string, extraFields []string) (engine.MetaInfo, error) {
	return engine.MetaInfo{
		PVName:      pvName,
		Fields:      map[string]string{},
		ComputedAt:  time.Now(),
		ExtraFields: extraFields,
	}, nil
}

func (c *fileConfigService) AbortMetaInfoComputation(_ string) {}

func (c *fileConfigService) PeerApplianceURLs() []string {
	out := make([]string, len(c.peerURLs))
	copy(out, c.peerURLs)
	return out
}

func (c *fileConfigService) Identity() string {
	return c.identity
}

// parseCassandraURL recognizes "cassandra://host1,host2/keyspace"; any other
// scheme falls back to the sql.Open path.
func parseCassandraURL(url string) (hosts []string, keyspace string, ok bool) {
	const prefix = "cassandra://"
	if len(url) <= len(prefix) || url[:len(prefix)] != prefix {
		return nil, "", false
	}
	rest := url[len(prefix):]
	slash := -1
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			slash = i
			break
		}
	}
	if slash < 0 {
		return nil, "", false
	}
	hostList := rest[:slash]
	keyspace = rest[slash+1:]
	var out []string
	start := 0
	for i := 0; i <= len(hostList); i++ {
		if i == len(hostList) || hostList[i] == ',' {
			if i > start {
				out = append(out, hostList[start:i])
			}
			start = i + 1
		}
	}
	return out, keyspace, true
}

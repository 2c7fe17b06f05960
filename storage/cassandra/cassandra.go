// Copyright (c) 2019 Uber Technologies, Inc.
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

// Package cassandra implements a wide-column storage plugin for flushed
// sample batches (spec.md §1 "Storage plugins"), parallel in shape to
// storage/sql but batching writes through gocql's native batch statement
// instead of a SQL transaction.
package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

const insertSampleCQL = `INSERT INTO samples (pv_name, sample_time, value, severity, status) VALUES (?, ?, ?, ?, ?)`

// Sample is one archived value, the row shape written on every flush.
type Sample struct {
	PVName     string
	SampleTime time.Time
	Value      float64
	Severity   int
	Status     int
}

// Plugin is a StoragePlugin backed by a Cassandra cluster.
type Plugin struct {
	name    string
	session *gocql.Session
}

// Open connects to the Cassandra cluster named by hosts/keyspace.
func Open(name string, hosts []string, keyspace string) (*Plugin, error) {
	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 10 * time.Second

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("cassandra storage plugin %q: %w", name, err)
	}
	return &Plugin{name: name, session: session}, nil
}

// Name identifies this plugin instance for logging (engine.StoragePlugin).
func (p *Plugin) Name() string { return p.name }

// WriteSamples writes a batch of samples as a single unlogged gocql batch,
// the cluster-side analogue of storage/sql's one-transaction-per-flush.
func (p *Plugin) WriteSamples(ctx context.Context, samples []Sample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	batch := p.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	for _, s := range samples {
		batch.Query(insertSampleCQL, s.PVName, s.SampleTime, s.Value, s.Severity, s.Status)
	}

	if err := p.session.ExecuteBatch(batch); err != nil {
		return 0, fmt.Errorf("cassandra storage plugin %q: batch write: %w", p.name, err)
	}
	return len(samples), nil
}

// Close releases the underlying session.
func (p *Plugin) Close() {
	p.session.Close()
}

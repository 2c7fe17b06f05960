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

// Package sql implements a relational storage plugin for flushed sample
// batches (spec.md §1 "Storage plugins"), adapted from the query/exec
// shape of common/persistence/sql-extensions/postgres in the teacher
// repository: parameterized query constants and one Exec per write. The
// package only writes; it reads no rows back.
package sql

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	// mysql registers the "mysql" driver with database/sql.
	_ "github.com/go-sql-driver/mysql"
	// pq registers the "postgres" driver with database/sql.
	_ "github.com/lib/pq"
)

const (
	insertSampleQry = `INSERT INTO samples
 (pv_name, sample_time, value, severity, status) VALUES (?, ?, ?, ?, ?)`

	insertSampleQryPostgres = `INSERT INTO samples
 (pv_name, sample_time, value, severity, status) VALUES ($1, $2, $3, $4, $5)`
)

// Sample is one archived value, the row shape written on every flush.
type Sample struct {
	PVName     string
	SampleTime time.Time
	Value      float64
	Severity   int
	Status     int
}

// Plugin is a StoragePlugin backed by a SQL database, reachable over either
// the mysql or the postgres driver depending on the URL scheme it was
// constructed from.
type Plugin struct {
	name      string
	driver    string
	conn      *sqlx.DB
	insertQry string
}

// Open parses a storage plugin URL of the form "mysql://dsn" or
// "postgres://dsn" and opens a connection pool against it.
func Open(name, url string) (*Plugin, error) {
	driverName, dsn, err := splitDriverURL(url)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql storage plugin %q: %w", name, err)
	}

	insertQry := insertSampleQry
	if driverName == "postgres" {
		insertQry = insertSampleQryPostgres
	}

	return &Plugin{name: name, driver: driverName, conn: conn, insertQry: insertQry}, nil
}

func splitDriverURL(url string) (driver, dsn string, err error) {
	for i := 0; i+2 < len(url); i++ {
		if url[i] == ':' && url[i+1] == '/' && url[i+2] == '/' {
			return url[:i], url[i+3:], nil
		}
	}
	return "", "", fmt.Errorf("sql storage plugin: malformed URL %q, expected scheme://dsn", url)
}

// Name identifies this plugin instance for logging (engine.StoragePlugin).
func (p *Plugin) Name() string { return p.name }

// WriteSamples inserts a batch of samples in a single connection-pooled
// transaction. A failure mid-batch rolls back the whole batch; the writer
// loop treats this as a transient, per-channel error (spec.md §7).
func (p *Plugin) WriteSamples(ctx context.Context, samples []Sample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	tx, err := p.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sql storage plugin %q: begin: %w", p.name, err)
	}

	written := 0
	for _, s := range samples {
		if _, err := tx.ExecContext(ctx, p.insertQry, s.PVName, s.SampleTime, s.Value, s.Severity, s.Status); err != nil {
			_ = tx.Rollback()
			return written, fmt.Errorf("sql storage plugin %q: insert: %w", p.name, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sql storage plugin %q: commit: %w", p.name, err)
	}
	return written, nil
}

// Close releases the underlying connection pool.
func (p *Plugin) Close() error {
	return p.conn.Close()
}

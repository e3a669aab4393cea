// Copyright 2020 Ross Light
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package pgfixture

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
)

// startPollInterval is how often Start's post-start connectivity check
// retries a ping while waiting for the postmaster to accept connections.
const startPollInterval = 50 * time.Millisecond

// defaultStartTimeout bounds the post-start connectivity check when the
// caller's context carries no deadline of its own. pg_ctl start -w has
// already returned success by the time waitUntilReady runs, observing
// only the pidfile, so without a deadline here a postmaster that never
// opens its socket would hang Start forever instead of producing
// ErrStartTimeout (spec §4.D).
const defaultStartTimeout = 30 * time.Second

// Cluster is an immutable (DataDir, Runtime) handle. Multiple handles
// over the same DataDir, in this process or others, are expected and
// must coordinate through the locking in RunAndStop/RunAndDestroy
// (see coordinate.go); Cluster's own methods assume the caller already
// holds whatever lock is appropriate for the operation.
type Cluster struct {
	DataDir string
	Runtime Runtime
}

// New returns a Cluster handle over dataDir using rt. dataDir must be an
// absolute path.
func New(dataDir string, rt Runtime) Cluster {
	return Cluster{DataDir: dataDir, Runtime: rt}
}

// State reports the cluster's current derived state.
func (c Cluster) State(ctx context.Context) (ClusterState, error) {
	return Inspect(ctx, c.DataDir, c.Runtime)
}

// Create initializes an empty or absent DataDir as a new cluster. It is
// an error to call Create against an already-initialized DataDir; use
// EnsureCreated to make the call idempotent.
func (c Cluster) Create(ctx context.Context) error {
	entries, _ := os.ReadDir(c.DataDir)
	wasEmpty := len(entries) == 0
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return opErr("create", c.DataDir, err)
	}
	out, err := c.Runtime.Execute(ctx, "initdb", initdbArgs(c.DataDir), nil)
	if err != nil {
		// initdb can leave partial state behind; a half-initialized
		// DataDir must never be observable as Unused or Stopped, so we
		// remove whatever it created, leaving DataDir Absent. initdb
		// refuses a non-empty directory without writing to it, so a
		// DataDir that already had contents is left untouched.
		if wasEmpty {
			os.RemoveAll(c.DataDir)
		}
		return opErrOutput("create", c.DataDir, out, fmt.Errorf("%w: %v", ErrInitFailed, err))
	}
	return nil
}

// EnsureCreated calls Create unless the DataDir is already initialized.
func (c Cluster) EnsureCreated(ctx context.Context) error {
	state, err := c.State(ctx)
	if err != nil {
		return err
	}
	if state == Absent || state == Unused {
		return c.Create(ctx)
	}
	return nil
}

// Start brings the cluster to the Running state, auto-creating the
// DataDir first if it is Absent or Unused. Start never returns success
// without a successful post-start connectivity check: pg_ctl's own -w
// wait only observes the pidfile, not the socket actually accepting
// queries, so Start additionally pings the default database before
// declaring victory.
func (c Cluster) Start(ctx context.Context) error {
	if err := c.EnsureCreated(ctx); err != nil {
		return err
	}
	state, err := c.State(ctx)
	if err != nil {
		return err
	}
	if state == Running {
		return nil
	}

	out, err := c.Runtime.Execute(ctx, "pg_ctl",
		[]string{"start", "-D", c.DataDir, "-w", "-o", serverArgs(c.DataDir, c.Runtime.Version)}, nil)
	if err != nil {
		return opErrOutput("start", c.DataDir, out, fmt.Errorf("pg_ctl start: %w", err))
	}

	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, defaultStartTimeout)
		defer cancel()
	}
	if err := c.waitUntilReady(waitCtx); err != nil {
		return err
	}
	return nil
}

func (c Cluster) waitUntilReady(ctx context.Context) error {
	u, err := user.Current()
	if err != nil {
		return opErr("start", c.DataDir, fmt.Errorf("%w: %v", ErrStartTimeout, err))
	}
	dsn := fmt.Sprintf("host=%s user=%s dbname=postgres sslmode=disable",
		filepath.Clean(c.DataDir), u.Username)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return opErr("start", c.DataDir, fmt.Errorf("%w: %v", ErrStartTimeout, err))
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	ticker := time.NewTicker(startPollInterval)
	defer ticker.Stop()
	for {
		// A context deadline means the bounded wait for the postmaster
		// to accept connections (spec §4.D) has simply run out; that is
		// ErrStartTimeout, not an interruption, so it is checked ahead
		// of (and distinctly from) the general cancellation flag.
		if ctx.Err() == context.DeadlineExceeded {
			return opErr("start", c.DataDir, fmt.Errorf("%w: %v", ErrStartTimeout, ctx.Err()))
		}
		if checkCancelled(ctx) {
			return opErr("start", c.DataDir, ErrInterrupted)
		}
		if err := db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return opErr("start", c.DataDir, fmt.Errorf("%w: %v", ErrStartTimeout, ctx.Err()))
			}
			return opErr("start", c.DataDir, ErrInterrupted)
		case <-ticker.C:
		}
	}
}

// Stop brings a Running cluster to Stopped. It is idempotent: calling it
// against an already-Stopped (or Absent/Unused) cluster succeeds
// without running pg_ctl stop.
func (c Cluster) Stop(ctx context.Context) error {
	state, err := c.State(ctx)
	if err != nil {
		return err
	}
	if state != Running {
		return nil
	}
	out, err := c.Runtime.Execute(ctx, "pg_ctl",
		[]string{"stop", "-D", c.DataDir, "-w", "-m", "fast"}, nil)
	if err != nil {
		return opErrOutput("stop", c.DataDir, out, fmt.Errorf("%w: %v", ErrStopFailed, err))
	}
	return nil
}

// Destroy stops the cluster if running, then recursively removes
// DataDir. It is idempotent against an Absent DataDir.
func (c Cluster) Destroy(ctx context.Context) error {
	state, err := c.State(ctx)
	if err != nil {
		// A DirectoryNotEmpty or RuntimeMismatch DataDir still needs to
		// be removable — destroy wins over inspection failures.
		if err := os.RemoveAll(c.DataDir); err != nil {
			return opErr("destroy", c.DataDir, fmt.Errorf("%w: %v", ErrDestroyFailed, err))
		}
		return nil
	}
	if state == Absent {
		return nil
	}
	if state == Running {
		if err := c.Stop(ctx); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(c.DataDir); err != nil {
		return opErr("destroy", c.DataDir, fmt.Errorf("%w: %v", ErrDestroyFailed, err))
	}
	return nil
}

// Databases returns the names of every database on the cluster,
// including the two template databases, in a stable (alphabetical)
// order. The cluster must be Running.
func (c Cluster) Databases(ctx context.Context) ([]string, error) {
	db, err := c.open(ctx, "template1")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT datname FROM pg_database ORDER BY datname;`)
	if err != nil {
		return nil, opErr("databases", c.DataDir, fmt.Errorf("%w: %v", ErrConnect, err))
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, opErr("databases", c.DataDir, fmt.Errorf("%w: %v", ErrConnect, err))
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, opErr("databases", c.DataDir, fmt.Errorf("%w: %v", ErrConnect, err))
	}
	return names, nil
}

// Connect opens a connection to dbname over the UNIX socket inside
// DataDir, authenticated as the effective OS user.
func (c Cluster) Connect(ctx context.Context, dbname string) (*sql.DB, error) {
	return c.open(ctx, dbname)
}

func (c Cluster) open(ctx context.Context, dbname string) (*sql.DB, error) {
	u, err := user.Current()
	if err != nil {
		return nil, opErr("connect", c.DataDir, fmt.Errorf("%w: %v", ErrConnect, err))
	}
	dsn := fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable",
		filepath.Clean(c.DataDir), u.Username, dbname)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, opErr("connect", c.DataDir, fmt.Errorf("%w: %v", ErrConnect, err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, opErr("connect", c.DataDir, fmt.Errorf("%w: %v", ErrConnect, err))
	}
	return db, nil
}

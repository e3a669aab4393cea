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
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ClusterState is the derived, never-persisted classification of a
// DataDir at a point in time.
type ClusterState int

const (
	// Absent means the DataDir does not exist.
	Absent ClusterState = iota
	// Unused means the DataDir exists but is empty.
	Unused
	// Stopped means the DataDir is an initialized cluster and pg_ctl
	// status reports it is not running.
	Stopped
	// Running means the DataDir is an initialized cluster with a live
	// postmaster.
	Running
)

func (s ClusterState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Unused:
		return "unused"
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// pgCtlNotRunningExitCode is pg_ctl's documented exit code for
// "server is not running" (see §6: 0 success/running, 3 not running,
// anything else is an error).
const pgCtlNotRunningExitCode = 3

// Inspect classifies dataDir per spec §4.C:
//  1. missing -> Absent
//  2. present and empty -> Unused
//  3. present with PG_VERSION -> Stopped or Running, after checking the
//     version pin against runtime
//  4. present, non-empty, no PG_VERSION -> DirectoryNotEmpty error
func Inspect(ctx context.Context, dataDir string, rt Runtime) (ClusterState, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Absent, nil
		}
		return 0, opErr("inspect", dataDir, err)
	}
	if len(entries) == 0 {
		return Unused, nil
	}

	pgVersionPath := filepath.Join(dataDir, "PG_VERSION")
	contents, err := os.ReadFile(pgVersionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, opErr("inspect", dataDir, ErrDirectoryNotEmpty)
		}
		return 0, opErr("inspect", dataDir, err)
	}
	pinned := strings.TrimSpace(string(contents))
	if pinned != rt.Version.ClusterMajor() {
		return 0, opErr("inspect", dataDir,
			fmt.Errorf("%w: data directory was initialized with PostgreSQL %s, runtime is %s",
				ErrRuntimeMismatch, pinned, rt.Version.ClusterMajor()))
	}

	out, err := rt.Execute(ctx, "pg_ctl", []string{"-D", dataDir, "status"}, nil)
	switch ExitCode(err) {
	case 0:
		return Running, nil
	case pgCtlNotRunningExitCode:
		return Stopped, nil
	default:
		return 0, opErrOutput("inspect", dataDir, out, fmt.Errorf("pg_ctl status: %w", err))
	}
}

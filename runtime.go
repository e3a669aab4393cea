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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// requiredTools are the executables that must exist in a Runtime's bin
// directory for it to be usable.
var requiredTools = []string{"initdb", "pg_ctl", "postgres", "psql"}

// Runtime identifies one installed PostgreSQL distribution: a bin/
// directory containing initdb, pg_ctl, postgres, and psql, plus the
// Version that "postgres --version" reports for it.
type Runtime struct {
	BinDir  string
	Version Version
}

// FromBinDir builds a Runtime from a candidate bin/ directory. It
// verifies that all required tools exist and are executable, then runs
// "<dir>/postgres --version" to resolve the Version.
func FromBinDir(ctx context.Context, binDir string) (Runtime, error) {
	for _, tool := range requiredTools {
		path := filepath.Join(binDir, tool)
		info, err := os.Stat(path)
		if err != nil {
			return Runtime{}, opErr("runtime-probe", binDir, fmt.Errorf("%s: %w", tool, err))
		}
		if info.IsDir() || info.Mode()&0111 == 0 {
			return Runtime{}, opErr("runtime-probe", binDir, fmt.Errorf("%s: not executable", tool))
		}
	}
	out, err := exec.CommandContext(ctx, filepath.Join(binDir, "postgres"), "--version").Output()
	if err != nil {
		return Runtime{}, opErr("runtime-probe", binDir, fmt.Errorf("postgres --version: %w", err))
	}
	v, err := ParseVersion(string(out))
	if err != nil {
		return Runtime{}, opErr("runtime-probe", binDir, err)
	}
	return Runtime{BinDir: binDir, Version: v}, nil
}

// Execute runs one of the runtime's tools (e.g. "pg_ctl", "initdb") with
// the given arguments. The child's PATH is the runtime's bin/ directory
// prepended to the caller's PATH; env, if non-nil, is appended on top of
// the inherited environment (and so can override it). Stdin is closed;
// combined stdout+stderr is returned regardless of exit status.
func (r Runtime) Execute(ctx context.Context, tool string, args []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, filepath.Join(r.BinDir, tool), args...)
	cmd.Stdin = nil
	cmd.Env = append(append([]string{}, os.Environ()...), env...)
	cmd.Env = append(cmd.Env, "PATH="+r.BinDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.Bytes(), err
}

// ExitCode extracts a process exit code from an error returned by
// Execute, following pg_ctl's documented convention (0 success/running,
// 3 not running, other values are errors). Returns -1 if err does not
// carry a recognizable exit code (e.g. the binary itself could not be
// started).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

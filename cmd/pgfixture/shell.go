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

package main

import (
	"context"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/pgfixture/pgfixture"
)

// childExitError carries a child process's exit code through the
// RunAndStop body without being mistaken for a pgfixture lifecycle
// error by exitCodeFor.
type childExitError struct {
	code int
}

func (e *childExitError) Error() string {
	return "child process exited nonzero"
}

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Enter a coordinated region and run psql against the cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoordinated(cmd.Context(), []string{"psql"})
		},
	}
}

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec -- CMD [ARGS...]",
		Short: "Enter a coordinated region and run an arbitrary command against the cluster",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCoordinated(cmd.Context(), args)
		},
	}
}

// runCoordinated enters a RunAndStop region and runs argv as a
// subprocess attached to this process's stdio, with PGHOST pointed at
// the cluster's data directory. It runs argv as a child rather than
// replacing the process image (execve) specifically because the
// coordinated region's exit protocol — releasing the lock, and
// stopping the cluster if this was the last participant — has to run
// after argv finishes; an execve would never return to do that.
func runCoordinated(ctx context.Context, argv []string) error {
	pgfixture.Install()
	defer pgfixture.Uninstall()

	cluster, err := resolveCluster(ctx)
	if err != nil {
		return err
	}

	return pgfixture.RunAndStop(ctx, cluster, func(ctx context.Context) error {
		child := exec.CommandContext(ctx, argv[0], argv[1:]...)
		child.Stdin = os.Stdin
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		child.Env = append(os.Environ(), "PGHOST="+cluster.DataDir)
		err := child.Run()
		if code := pgfixture.ExitCode(err); code > 0 {
			return &childExitError{code: code}
		}
		return err
	})
}

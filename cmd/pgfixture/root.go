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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgfixture/pgfixture"
)

// config holds the flags shared by every subcommand.
var config struct {
	dataDir string
	binDir  string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pgfixture",
		Short:         "Bring up and tear down throwaway PostgreSQL clusters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&config.dataDir, "data-dir", "", "cluster data directory (required)")
	root.PersistentFlags().StringVar(&config.binDir, "runtime", "", "PostgreSQL bin/ directory (default: autodetect)")

	root.AddCommand(
		newRuntimesCmd(),
		newShellCmd(),
		newExecCmd(),
		newCreateCmd(),
		newStartCmd(),
		newStopCmd(),
		newDestroyCmd(),
	)
	return root
}

// resolveRuntime returns the explicitly-flagged runtime, or the
// discovery default if none was given.
func resolveRuntime(ctx context.Context) (pgfixture.Runtime, error) {
	if config.binDir != "" {
		return pgfixture.FromBinDir(ctx, config.binDir)
	}
	d := pgfixture.Discover(ctx, pgfixture.DefaultStrategies()...)
	rt, ok := d.Default()
	if !ok {
		return pgfixture.Runtime{}, pgfixture.ErrRuntimeNotFound
	}
	return rt, nil
}

func requireDataDir() error {
	if config.dataDir == "" {
		return errors.New("--data-dir is required")
	}
	return nil
}

func resolveCluster(ctx context.Context) (pgfixture.Cluster, error) {
	if err := requireDataDir(); err != nil {
		return pgfixture.Cluster{}, err
	}
	rt, err := resolveRuntime(ctx)
	if err != nil {
		return pgfixture.Cluster{}, err
	}
	return pgfixture.New(config.dataDir, rt), nil
}

// exitCodeFor maps an error kind to the process exit code, per spec.md
// §7's "CLI maps the error kind to an exit code category" requirement.
func exitCodeFor(err error) int {
	var childErr *childExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &childErr):
		return childErr.code
	case errors.Is(err, pgfixture.ErrRuntimeNotFound), errors.Is(err, pgfixture.ErrRuntimeMismatch), errors.Is(err, pgfixture.ErrVersionParse):
		return 2
	case errors.Is(err, pgfixture.ErrDirectoryNotEmpty):
		return 3
	case errors.Is(err, pgfixture.ErrInitFailed), errors.Is(err, pgfixture.ErrStartTimeout), errors.Is(err, pgfixture.ErrStopFailed), errors.Is(err, pgfixture.ErrDestroyFailed):
		return 4
	case errors.Is(err, pgfixture.ErrLockContended), errors.Is(err, pgfixture.ErrLockFailed):
		return 5
	case errors.Is(err, pgfixture.ErrConnect):
		return 6
	case errors.Is(err, pgfixture.ErrInterrupted):
		return 130
	default:
		return 1
	}
}

func printDiagnostics(d pgfixture.Discovery) {
	for _, diag := range d.Diagnostics {
		fmt.Printf("warning: %s: %v\n", diag.Path, diag.Err)
	}
}

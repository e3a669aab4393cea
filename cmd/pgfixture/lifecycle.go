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
	"fmt"

	"github.com/spf13/cobra"
)

// newCreateCmd, newStartCmd, newStopCmd, and newDestroyCmd are direct,
// uncoordinated single-caller lifecycle operations for scripting (spec.md
// §4.G). They do not go through RunAndStop/RunAndDestroy: a script that
// wants coordinated sharing with other callers should use `shell` or
// `exec` instead.

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Initialize the data directory as a new cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := resolveCluster(cmd.Context())
			if err != nil {
				return err
			}
			if err := cluster.EnsureCreated(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cluster.DataDir)
			return nil
		},
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the cluster, creating it first if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := resolveCluster(cmd.Context())
			if err != nil {
				return err
			}
			return cluster.Start(cmd.Context())
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := resolveCluster(cmd.Context())
			if err != nil {
				return err
			}
			return cluster.Stop(cmd.Context())
		},
	}
}

func newDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Stop (if running) and remove the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cluster, err := resolveCluster(cmd.Context())
			if err != nil {
				return err
			}
			return cluster.Destroy(cmd.Context())
		},
	}
}

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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pgfixture/pgfixture"
)

func newRuntimesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runtimes",
		Short: "List discovered PostgreSQL runtimes",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := pgfixture.Discover(cmd.Context(), pgfixture.DefaultStrategies()...)
			printDiagnostics(d)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for i, rt := range d.Runtimes {
				marker := " "
				if i == 0 {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", marker, rt.Version, rt.BinDir)
			}
			return w.Flush()
		},
	}
}

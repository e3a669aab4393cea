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
	"os"
	"path/filepath"
	"testing"
)

// fakeBinDir builds a throwaway bin/ directory whose "postgres --version"
// is a tiny shell script, so FromBinDir can resolve it without a real
// PostgreSQL installation.
func fakeBinDir(t *testing.T, version string) string {
	t.Helper()
	dir := t.TempDir()
	script := "#!/bin/sh\necho 'postgres (PostgreSQL) " + version + "'\n"
	for _, tool := range requiredTools {
		path := filepath.Join(dir, tool)
		if err := os.WriteFile(path, []byte(script), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestDiscoverOrdersPathFirstThenByVersionDescending(t *testing.T) {
	ctx := context.Background()
	pathDir := fakeBinDir(t, "12.0")
	olderPlatform := fakeBinDir(t, "11.0")
	newerPlatform := fakeBinDir(t, "16.2")

	d := Discover(ctx,
		FixtureStrategy{Dirs: []string{pathDir}},
		FixtureStrategy{Dirs: []string{olderPlatform, newerPlatform}},
	)

	if len(d.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", d.Diagnostics)
	}
	if len(d.Runtimes) != 3 {
		t.Fatalf("len(d.Runtimes) = %d; want 3", len(d.Runtimes))
	}
	if d.Runtimes[0].BinDir != pathDir {
		t.Errorf("d.Runtimes[0].BinDir = %q; want the PATH strategy's hit %q", d.Runtimes[0].BinDir, pathDir)
	}
	if d.Runtimes[1].BinDir != newerPlatform || d.Runtimes[2].BinDir != olderPlatform {
		t.Errorf("remaining runtimes not in descending version order: %+v", d.Runtimes[1:])
	}
	def, ok := d.Default()
	if !ok || def.BinDir != pathDir {
		t.Errorf("Default() = %+v, %v; want the PATH hit", def, ok)
	}
}

func TestDiscoverSkipsUnusableCandidates(t *testing.T) {
	ctx := context.Background()
	good := fakeBinDir(t, "14.1")
	broken := t.TempDir() // no executables inside: unusable

	d := Discover(ctx, FixtureStrategy{Dirs: []string{broken, good}})

	if len(d.Runtimes) != 1 || d.Runtimes[0].BinDir != good {
		t.Errorf("d.Runtimes = %+v; want only %q", d.Runtimes, good)
	}
	if len(d.Diagnostics) != 1 || d.Diagnostics[0].Path != broken {
		t.Errorf("d.Diagnostics = %+v; want one diagnostic for %q", d.Diagnostics, broken)
	}
}

func TestDiscoverDeduplicatesByPath(t *testing.T) {
	ctx := context.Background()
	dir := fakeBinDir(t, "15.3")

	d := Discover(ctx,
		FixtureStrategy{Dirs: []string{dir}},
		FixtureStrategy{Dirs: []string{dir}},
	)

	if len(d.Runtimes) != 1 {
		t.Errorf("len(d.Runtimes) = %d; want 1 (deduplicated)", len(d.Runtimes))
	}
}

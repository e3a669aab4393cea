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
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Diagnostic is a non-fatal problem encountered while probing a
// candidate runtime directory. Discovery never fails outright because
// one candidate is broken; it skips the candidate and surfaces why.
type Diagnostic struct {
	Path string
	Err  error
}

// Discovery is the result of running one or more Strategies: the
// runtimes found, in selection order (first is the default), plus any
// non-fatal problems encountered along the way.
type Discovery struct {
	Runtimes    []Runtime
	Diagnostics []Diagnostic
}

// Default returns the discovery's nominated default runtime, or false if
// none were found.
func (d Discovery) Default() (Runtime, bool) {
	if len(d.Runtimes) == 0 {
		return Runtime{}, false
	}
	return d.Runtimes[0], true
}

// Strategy enumerates candidate PostgreSQL bin/ directories. It does not
// itself decide which one is "the default" among several strategies'
// combined results — see Discover.
type Strategy interface {
	// CandidateDirs returns bin/ directories to probe, in the order this
	// strategy prefers them.
	CandidateDirs() []string
}

// PathStrategy scans $PATH for directories containing an executable
// "postgres".
type PathStrategy struct {
	// Getenv defaults to os.Getenv; overridable for tests.
	Getenv func(string) string
}

func (s PathStrategy) CandidateDirs() []string {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	name := "postgres"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	var dirs []string
	for _, dir := range filepath.SplitList(getenv("PATH")) {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil && !info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// PlatformStrategy probes well-known PostgreSQL install roots that
// PATH-based discovery typically misses: Debian/Ubuntu's
// version-suffixed packaging layout, RHEL's pgsql-* convention, and the
// Homebrew cellar on macOS.
type PlatformStrategy struct{}

func (PlatformStrategy) CandidateDirs() []string {
	var globs []string
	switch runtime.GOOS {
	case "darwin":
		globs = []string{
			"/opt/homebrew/opt/postgresql@*/bin",
			"/usr/local/opt/postgresql@*/bin",
			"/Applications/Postgres.app/Contents/Versions/*/bin",
		}
	case "linux":
		globs = []string{
			"/usr/lib/postgresql/*/bin",
			"/usr/pgsql-*/bin",
		}
	}
	var dirs []string
	for _, g := range globs {
		matches, err := filepath.Glob(g)
		if err != nil {
			continue
		}
		dirs = append(dirs, matches...)
	}
	return dirs
}

// FixtureStrategy returns a fixed, caller-supplied list of directories.
// It exists for tests that want deterministic discovery results without
// touching the real filesystem layout.
type FixtureStrategy struct {
	Dirs []string
}

func (s FixtureStrategy) CandidateDirs() []string { return s.Dirs }

// Discover runs strategies in order, probing every candidate directory
// with FromBinDir, deduplicating by canonicalized path, and ordering the
// PATH strategy's first hit ahead of everything else (it is what an
// unqualified "postgres" invocation would run), then the remainder in
// descending version order. Failures probing an individual candidate are
// recorded as Diagnostics, not returned as an error.
func Discover(ctx context.Context, strategies ...Strategy) Discovery {
	var pathDefault *Runtime
	seen := make(map[string]bool)
	var rest []Runtime
	var diags []Diagnostic

	for i, strat := range strategies {
		for _, dir := range strat.CandidateDirs() {
			canon, err := filepath.Abs(dir)
			if err != nil {
				canon = dir
			}
			canon = filepath.Clean(canon)
			if seen[canon] {
				continue
			}
			seen[canon] = true

			rt, err := FromBinDir(ctx, dir)
			if err != nil {
				diags = append(diags, Diagnostic{Path: dir, Err: err})
				logrus.WithField("bin_dir", dir).WithError(err).Warn("pgfixture: skipping unusable runtime candidate")
				continue
			}
			if i == 0 && pathDefault == nil {
				rt := rt
				pathDefault = &rt
				continue
			}
			rest = append(rest, rt)
		}
	}

	sort.SliceStable(rest, func(a, b int) bool {
		return rest[b].Version.Less(rest[a].Version)
	})

	var ordered []Runtime
	if pathDefault != nil {
		ordered = append(ordered, *pathDefault)
	}
	ordered = append(ordered, rest...)

	return Discovery{Runtimes: ordered, Diagnostics: diags}
}

// DefaultStrategies returns the strategy set Discover should normally be
// called with: PATH first (so its first hit becomes the default per
// spec), then the platform-specific well-known roots.
func DefaultStrategies() []Strategy {
	return []Strategy{PathStrategy{}, PlatformStrategy{}}
}

// String renders a Discovery as a plain-text listing with a marker for
// the default runtime, one per line: "<marker> <version>\t<bin-dir>".
func (d Discovery) String() string {
	var b strings.Builder
	for i, rt := range d.Runtimes {
		marker := "  "
		if i == 0 {
			marker = "* "
		}
		b.WriteString(marker)
		b.WriteString(rt.Version.String())
		b.WriteString("\t")
		b.WriteString(rt.BinDir)
		b.WriteString("\n")
	}
	return b.String()
}

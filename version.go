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
	"fmt"
	"regexp"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

// Version is a PostgreSQL release, as reported by `postgres --version`.
//
// Only Major and Minor are meaningful for PostgreSQL 10 and later; Patch
// is meaningful (and compared) only when Major < 10, matching the
// version-numbering scheme PostgreSQL itself switched to in the 10
// release.
type Version struct {
	Major int
	Minor int
	Patch int
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

// ParseVersion extracts a Version from the free-text output of
// `postgres --version`, which is of the form
// "postgres (PostgreSQL) X.Y[.Z][extra]". Parsing is tolerant of
// whatever surrounds the number: it looks for the first X.Y[.Z] token in
// the string.
func ParseVersion(text string) (Version, error) {
	m := versionPattern.FindStringSubmatch(text)
	if m == nil {
		return Version{}, opErr("parse-version", "", ErrVersionParse)
	}
	// Route the matched digits through semver for numeric parsing: it
	// already knows how to reject overflow and malformed components,
	// which we'd otherwise hand-roll with strconv three times over.
	patch := m[3]
	if patch == "" {
		patch = "0"
	}
	sv, err := semver.NewVersion(fmt.Sprintf("%s.%s.%s", m[1], m[2], patch))
	if err != nil {
		return Version{}, opErr("parse-version", "", fmt.Errorf("%w: %v", ErrVersionParse, err))
	}
	return Version{
		Major: int(sv.Major()),
		Minor: int(sv.Minor()),
		Patch: int(sv.Patch()),
	}, nil
}

// String renders the canonical form of v: "major.minor" for major >= 10,
// "major.minor.patch" for major < 10. Re-parsing this string yields back
// v whenever v.Patch is 0 or v.Major < 10; for major >= 10 a non-zero
// Patch is dropped (see ParseVersion).
func (v Version) String() string {
	if v.Major < 10 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compare returns -1, 0, or +1 as v is less than, equal to, or greater
// than other. Patch participates in the comparison only when both
// versions predate PostgreSQL 10; PostgreSQL itself made Patch
// meaningless for the server/tooling compatibility contract starting
// with the 10 release, so comparing it post-10 would make two
// functionally-identical versions (e.g. 14.2.1 and 14.2.9) compare
// unequal for no real reason. Minor is always compared: 14.1 sorts
// before 14.9.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return cmpInt(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return cmpInt(v.Minor, other.Minor)
	}
	if v.Major >= 10 {
		return 0
	}
	return cmpInt(v.Patch, other.Patch)
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ClusterMajor renders the major-version identifier PostgreSQL's own
// initdb writes into PG_VERSION for a cluster created by this runtime:
// "major.minor" pre-10 (e.g. "9.6"), "major" from 10 on (e.g. "14"),
// since 10+ dropped the minor component from on-disk compatibility.
func (v Version) ClusterMajor() string {
	if v.Major < 10 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return strconv.Itoa(v.Major)
}

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

import "fmt"

// unixSocketDirKey returns the postgresql.conf / -o key used to pin the
// UNIX socket directory, which PostgreSQL renamed between releases: a
// single directory pre-9.3 ("unix_socket_directory"), a comma-separated
// list from 9.3 on ("unix_socket_directories"). Scattering this
// major-version check through the operations that build server argument
// strings would bury the one thing that actually varies; it lives here
// as a single dispatch point instead (see spec.md §9's design note).
func unixSocketDirKey(v Version) string {
	if v.Major < 9 || (v.Major == 9 && v.Minor < 3) {
		return "unix_socket_directory"
	}
	return "unix_socket_directories"
}

// serverArgs builds the "-o" option string pg_ctl start passes through
// to postgres: a throwaway, local-only configuration that never binds a
// TCP port and never fsyncs, safe for ephemeral test/dev clusters only.
func serverArgs(dataDir string, v Version) string {
	return fmt.Sprintf("-c %s=%s -c listen_addresses='' -c fsync=off",
		unixSocketDirKey(v), dataDir)
}

// initdbArgs builds the initdb argument list for dataDir; it is the same
// for every runtime version. --auth is accepted
// by every supported initdb version; where the finer-grained
// --auth-host/--auth-local flags exist (9.1+) both are still just
// "trust", so we don't bother detecting that split and can use the
// coarse --auth everywhere.
func initdbArgs(dataDir string) []string {
	return []string{
		"-D", dataDir,
		"-E", "UTF8",
		"--encoding", "UTF8",
		"--auth", "trust",
	}
}

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
	"testing"
)

// testRuntime returns the host's default discovered PostgreSQL runtime,
// skipping the calling test if none is installed. Every test that
// actually starts a server goes through this, matching the posture the
// teacher's own test suite assumes (a real postgres on PATH) while
// staying runnable in environments that don't have one.
func testRuntime(t *testing.T) Runtime {
	t.Helper()
	d := Discover(context.Background(), DefaultStrategies()...)
	rt, ok := d.Default()
	if !ok {
		t.Skip("no PostgreSQL runtime found on PATH or in well-known install locations")
	}
	return rt
}

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
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestInspectAbsent(t *testing.T) {
	rt := testRuntime(t)
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	state, err := Inspect(context.Background(), dir, rt)
	if err != nil {
		t.Fatal(err)
	}
	if state != Absent {
		t.Errorf("Inspect(%q) = %v; want Absent", dir, state)
	}
}

func TestInspectUnused(t *testing.T) {
	rt := testRuntime(t)
	dir := t.TempDir()
	state, err := Inspect(context.Background(), dir, rt)
	if err != nil {
		t.Fatal(err)
	}
	if state != Unused {
		t.Errorf("Inspect(%q) = %v; want Unused", dir, state)
	}
}

func TestInspectDirectoryNotEmpty(t *testing.T) {
	rt := testRuntime(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "somefile"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Inspect(context.Background(), dir, rt)
	if !errors.Is(err, ErrDirectoryNotEmpty) {
		t.Errorf("Inspect(%q) error = %v; want ErrDirectoryNotEmpty", dir, err)
	}
}

func TestInspectRuntimeMismatch(t *testing.T) {
	rt := testRuntime(t)
	dir := t.TempDir()
	pinned := "9.6"
	if rt.Version.ClusterMajor() == pinned {
		pinned = "9.5"
	}
	if err := os.WriteFile(filepath.Join(dir, "PG_VERSION"), []byte(pinned), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := Inspect(context.Background(), dir, rt)
	if !errors.Is(err, ErrRuntimeMismatch) {
		t.Errorf("Inspect(%q) error = %v; want ErrRuntimeMismatch", dir, err)
	}
}

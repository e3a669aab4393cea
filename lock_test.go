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
	"path/filepath"
	"testing"
	"time"
)

func openTestLock(t *testing.T, dataDir string) *LockFile {
	t.Helper()
	l, err := OpenLockFile(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLockFileSharedLocksDoNotConflict(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	ctx := context.Background()

	a := openTestLock(t, dataDir)
	b := openTestLock(t, dataDir)

	if err := a.RLock(ctx); err != nil {
		t.Fatalf("a.RLock: %v", err)
	}
	if err := b.RLock(ctx); err != nil {
		t.Fatalf("b.RLock: %v", err)
	}
	if err := a.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err := b.Unlock(); err != nil {
		t.Fatal(err)
	}
}

func TestLockFileExclusiveExcludesShared(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	ctx := context.Background()

	a := openTestLock(t, dataDir)
	b := openTestLock(t, dataDir)

	if err := a.Lock(ctx); err != nil {
		t.Fatalf("a.Lock: %v", err)
	}
	defer a.Unlock()

	ctxShort, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	err := b.RLock(ctxShort)
	if !errors.Is(err, ErrInterrupted) {
		t.Errorf("b.RLock while a holds exclusive = %v; want ErrInterrupted (timed out)", err)
	}
}

func TestLockFileTryLockContendedWhenSharedHeld(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	ctx := context.Background()

	a := openTestLock(t, dataDir)
	b := openTestLock(t, dataDir)

	if err := a.RLock(ctx); err != nil {
		t.Fatalf("a.RLock: %v", err)
	}
	defer a.Unlock()

	if err := b.TryLock(ctx); err != ErrLockContended {
		t.Errorf("b.TryLock() = %v; want ErrLockContended", err)
	}
}

func TestLockFileTryLockSucceedsWhenUncontended(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	ctx := context.Background()

	a := openTestLock(t, dataDir)
	if err := a.TryLock(ctx); err != nil {
		t.Fatalf("a.TryLock: %v", err)
	}
	if err := a.Unlock(); err != nil {
		t.Fatal(err)
	}
}

func TestLockFileRemove(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	ctx := context.Background()

	a := openTestLock(t, dataDir)
	if err := a.Lock(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

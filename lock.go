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
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// lockPollInterval bounds how often a blocking lock call rechecks the
// cancellation flag between advisory-lock attempts. flock(2) blocks in
// the kernel with no way to inject a context deadline, so a blocking
// Lock/RLock is implemented as non-blocking attempts in a poll loop
// instead of one long blocking syscall.
const lockPollInterval = 20 * time.Millisecond

// LockFile is the advisory lock backing the coordination protocol in
// RunAndStop/RunAndDestroy. It lives at "<DataDir>.lock", a sibling of
// DataDir so the path stays valid even when DataDir itself is absent
// (see spec.md §6).
//
// Each OpenLockFile call opens its own file descriptor, and the lock is
// taken with flock(2) rather than fcntl's byte-range locks: fcntl
// record locks are owned by the (process, inode) pair, so two
// participants that happen to be two goroutines in the same OS process
// would silently clobber each other's lock state. flock locks are owned
// per open file description, so independent participants coordinate
// correctly whether they are separate processes or separate threads
// each holding their own *LockFile — exactly the plurality spec.md §5
// requires ("multiple threads within one process, each treated as an
// independent participant with its own lock handle").
type LockFile struct {
	path string
	f    *os.File
}

// OpenLockFile opens (creating if necessary) the lock file for dataDir.
// The returned LockFile holds no lock yet; call Lock, RLock, or TryLock.
func OpenLockFile(dataDir string) (*LockFile, error) {
	path := dataDir + ".lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, opErr("lock", dataDir, fmt.Errorf("%w: %v", ErrLockFailed, err))
	}
	return &LockFile{path: path, f: f}, nil
}

// Close releases any lock held and closes the underlying file
// descriptor. It does not remove the lock file; see Remove.
func (l *LockFile) Close() error {
	return l.f.Close()
}

// Remove deletes the lock file from disk. Callers must hold an
// exclusive lock and must call this only as the very last step of
// destroying a DataDir (see spec.md §4.E): the lock file must never be
// deleted while any participant might still be holding or waiting on
// it.
func (l *LockFile) Remove() error {
	return os.Remove(l.path)
}

func (l *LockFile) flock(ctx context.Context, how int, blocking bool) error {
	if !blocking {
		err := unix.Flock(int(l.f.Fd()), how|unix.LOCK_NB)
		if err != nil {
			if err == unix.EWOULDBLOCK {
				return ErrLockContended
			}
			return opErr("lock", l.path, fmt.Errorf("%w: %v", ErrLockFailed, err))
		}
		return nil
	}

	for {
		if checkCancelled(ctx) {
			return opErr("lock", l.path, ErrInterrupted)
		}
		err := unix.Flock(int(l.f.Fd()), how|unix.LOCK_NB)
		if err == nil {
			return nil
		}
		if err != unix.EWOULDBLOCK {
			return opErr("lock", l.path, fmt.Errorf("%w: %v", ErrLockFailed, err))
		}
		select {
		case <-ctx.Done():
			return opErr("lock", l.path, ErrInterrupted)
		case <-time.After(lockPollInterval):
		}
	}
}

// RLock acquires the lock in shared mode, blocking (subject to ctx
// cancellation and signal interruption) until it is available.
func (l *LockFile) RLock(ctx context.Context) error {
	return l.flock(ctx, unix.LOCK_SH, true)
}

// Lock acquires the lock in exclusive mode, blocking until available.
func (l *LockFile) Lock(ctx context.Context) error {
	return l.flock(ctx, unix.LOCK_EX, true)
}

// TryLock attempts to acquire the lock in exclusive mode without
// blocking. It returns ErrLockContended if another participant holds it
// in a conflicting mode.
func (l *LockFile) TryLock(ctx context.Context) error {
	return l.flock(ctx, unix.LOCK_EX, false)
}

// Unlock releases whatever mode the lock is currently held in.
func (l *LockFile) Unlock() error {
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		return opErr("lock", l.path, fmt.Errorf("%w: %v", ErrLockFailed, err))
	}
	return nil
}

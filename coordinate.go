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

import "context"

// RunAndStop ensures cluster is Running for the duration of body, then
// stops it once the last concurrent participant across this DataDir has
// left. See spec.md §4.E for the full protocol; this is the "stop on
// last out" variant.
func RunAndStop(ctx context.Context, cluster Cluster, body func(context.Context) error) error {
	return coordinate(ctx, cluster, body, false)
}

// RunAndDestroy is RunAndStop, except the last participant out destroys
// the DataDir (and the lock file itself, last) instead of merely
// stopping the server.
func RunAndDestroy(ctx context.Context, cluster Cluster, body func(context.Context) error) error {
	return coordinate(ctx, cluster, body, true)
}

// coordinate implements the enter/body/exit protocol common to
// RunAndStop and RunAndDestroy. It is a write-preferring reference count
// realized entirely through lock-upgrade contention: "currently running
// participants" is never represented as an integer anywhere on disk,
// only as however many holders the shared lock currently has.
func coordinate(ctx context.Context, cluster Cluster, body func(context.Context) error, destroy bool) (err error) {
	lock, err := OpenLockFile(cluster.DataDir)
	if err != nil {
		return err
	}
	defer lock.Close()

	if err := enter(ctx, cluster, lock); err != nil {
		return err
	}

	bodyErr := body(ctx)

	if exitErr := exit(ctx, cluster, lock, destroy); exitErr != nil {
		if bodyErr != nil {
			return bodyErr
		}
		return exitErr
	}
	return bodyErr
}

// enter acquires the lock in shared mode, then — if the cluster is not
// already Running — upgrades to exclusive, rechecks state (another
// participant may have raced ahead while we waited for the exclusive
// grant), starts the cluster if still needed, and downgrades back to
// shared before returning. The caller leaves this function holding the
// lock in shared mode.
func enter(ctx context.Context, cluster Cluster, lock *LockFile) error {
	if err := lock.RLock(ctx); err != nil {
		return err
	}

	state, err := cluster.State(ctx)
	if err != nil {
		lock.Unlock()
		return err
	}
	if state == Running {
		return nil
	}

	// Upgrade. flock(2) can't transition shared->exclusive atomically
	// without an intervening unlock, so we release and reacquire; the
	// window this opens is exactly why we recheck state below instead of
	// trusting our first observation.
	if err := lock.Unlock(); err != nil {
		return err
	}
	if err := lock.Lock(ctx); err != nil {
		return err
	}

	state, err = cluster.State(ctx)
	if err != nil {
		lock.Unlock()
		return err
	}
	if state != Running {
		if err := cluster.Start(ctx); err != nil {
			lock.Unlock()
			return err
		}
	}

	if err := lock.Unlock(); err != nil {
		return err
	}
	return lock.RLock(ctx)
}

// exit attempts a non-blocking upgrade to exclusive. Success means we
// are the last participant: run the teardown (stop or destroy) while
// still holding exclusive, so no other participant can observe a
// half-torn-down cluster, then — for destroy only — remove the lock
// file itself as the very last step. Failure (another participant holds
// shared) means we simply release our own shared hold and let whoever
// is last take over teardown.
func exit(ctx context.Context, cluster Cluster, lock *LockFile, destroy bool) error {
	err := lock.TryLock(ctx)
	if err == ErrLockContended {
		return lock.Unlock()
	}
	if err != nil {
		return err
	}

	// We hold exclusive: we are the last participant out.
	if !destroy {
		return cluster.Stop(ctx)
	}
	if err := cluster.Destroy(ctx); err != nil {
		return err
	}
	// Still holding exclusive: nobody else can have acquired the lock
	// between the destroy above and this remove, so it's safe to delete
	// the file a live participant might otherwise be blocked on.
	return lock.Remove()
}

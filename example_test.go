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

package pgfixture_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pgfixture/pgfixture"
)

func Example() {
	var t *testing.T // passed into your testing function

	ctx := context.Background()
	d := pgfixture.Discover(ctx, pgfixture.DefaultStrategies()...)
	rt, ok := d.Default()
	if !ok {
		t.Fatal(pgfixture.ErrRuntimeNotFound)
	}

	dir := filepath.Join(t.TempDir(), "data")
	cluster := pgfixture.New(dir, rt)

	// Each of your subtests can share one cluster, coordinated so the
	// last one out stops it:
	t.Run("Test1", func(t *testing.T) {
		err := pgfixture.RunAndStop(ctx, cluster, func(ctx context.Context) error {
			db, err := cluster.Connect(ctx, "postgres")
			if err != nil {
				return err
			}
			defer db.Close()
			_, err = db.ExecContext(ctx, `CREATE TABLE foo (id SERIAL PRIMARY KEY);`)
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
	})

	t.Run("Test2", func(t *testing.T) {
		err := pgfixture.RunAndDestroy(ctx, cluster, func(ctx context.Context) error {
			_, err := cluster.Databases(ctx)
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
	})
}

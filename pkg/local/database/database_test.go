/* Copyright 2025 Matsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"testing"
	"time"

	"github.com/matfinder/matsync/pkg/assert"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/pkg/errors"
)

var testNow = time.Date(2024, time.March, 4, 18, 30, 0, 0, time.UTC)

func TestMigrate(t *testing.T) {
	db := InitTestMemoryDB(t)

	pending, err := PendingMigrations(db.Conn)
	if err != nil {
		t.Fatal(errors.Wrap(err, "listing pending migrations"))
	}
	assert.Equal(t, len(pending), 0, "pending migrations mismatch")

	n, err := Migrate(db.Conn)
	if err != nil {
		t.Fatal(errors.Wrap(err, "migrating again"))
	}
	assert.Equal(t, n, 0, "migrating twice should be a no-op")
}

func TestSavepoint(t *testing.T) {
	db := InitTestMemoryDB(t)

	tx, err := db.BeginIsolated(context.Background())
	if err != nil {
		t.Fatal(errors.Wrap(err, "beginning a transaction"))
	}

	g1 := Gym{Gym: model.Gym{UUID: "a1b2c3d4-0000-4000-8000-000000000001", Name: "Kept"}}
	if err := g1.Insert(tx); err != nil {
		t.Fatal(err)
	}

	if err := tx.Savepoint("rec"); err != nil {
		t.Fatal(err)
	}
	g2 := Gym{Gym: model.Gym{UUID: "a1b2c3d4-0000-4000-8000-000000000002", Name: "Discarded"}}
	if err := g2.Insert(tx); err != nil {
		t.Fatal(err)
	}
	if err := tx.RollbackTo("rec"); err != nil {
		t.Fatal(err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatal(errors.Wrap(err, "committing"))
	}

	assert.Equal(t, MustCount(t, db, "gyms", ""), 1, "gym count mismatch")

	_, err = GetGym(db, g2.UUID)
	assert.Equal(t, errors.Cause(err), ErrNotFound, "rolled back gym should not exist")
}

func TestSubscribe(t *testing.T) {
	db := InitTestMemoryDB(t)

	events, cancel := db.Subscribe(4)
	defer cancel()

	t.Run("commit publishes", func(t *testing.T) {
		tx, err := db.Begin()
		if err != nil {
			t.Fatal(err)
		}
		tx.Announce(model.CollectionGyms, "g1", "g2")

		select {
		case <-events:
			t.Fatal("event published before commit")
		default:
		}

		if err := tx.Commit(); err != nil {
			t.Fatal(err)
		}

		select {
		case e := <-events:
			assert.Equal(t, e.Collection, model.CollectionGyms, "collection mismatch")
			assert.DeepEqual(t, e.UUIDs, []string{"g1", "g2"}, "uuids mismatch")
		default:
			t.Fatal("no event after commit")
		}
	})

	t.Run("rollback discards", func(t *testing.T) {
		tx, err := db.Begin()
		if err != nil {
			t.Fatal(err)
		}
		tx.Announce(model.CollectionReviews, "r1")

		if err := tx.Rollback(); err != nil {
			t.Fatal(err)
		}

		select {
		case e := <-events:
			t.Fatalf("unexpected event %+v", e)
		default:
		}
	})
}

func TestSubscribeCancel(t *testing.T) {
	db := InitTestMemoryDB(t)

	events, cancel := db.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-events
	assert.Equal(t, ok, false, "channel should be closed")

	db.Announce(model.CollectionGyms, "g1")
}

func TestSystem(t *testing.T) {
	db := InitTestMemoryDB(t)

	at, err := GetLastSyncAt(db)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, at.IsZero(), true, "last sync should be unset")

	if err := SetLastSyncAt(db, testNow); err != nil {
		t.Fatal(err)
	}
	if err := SetLastSyncAt(db, testNow.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	at, err = GetLastSyncAt(db)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, at.Equal(testNow.Add(time.Hour)), true, "last sync mismatch")
	assert.Equal(t, MustCount(t, db, "system", ""), 1, "system row count mismatch")
}

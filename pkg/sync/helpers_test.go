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

package sync

import (
	"context"
	"testing"
	"time"

	"github.com/matfinder/matsync/pkg/clock"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/remote"
	"github.com/matfinder/matsync/pkg/remote/document"
	"github.com/matfinder/matsync/pkg/remote/memstore"
	"github.com/matfinder/matsync/pkg/status"
	"github.com/pkg/errors"
)

const (
	gymID      = "a1b2c3d4-e5f6-4718-893a-4b5c6d7e8f90"
	otherGymID = "0f1e2d3c-4b5a-4968-8776-655443322110"
	scheduleID = "11111111-2222-4333-8444-555555555555"
	slotID     = "66666666-7777-4888-8999-aaaaaaaaaaaa"
	otherSlot  = "bbbbbbbb-cccc-4ddd-8eee-ffffffffffff"
	reviewID   = "12345678-9abc-4def-8123-456789abcdef"
)

type testEnv struct {
	db       *database.DB
	store    *memstore.Store
	clock    *clock.Mock
	recorder *status.Recorder
	syncer   *Syncer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	c := clock.NewMock()
	env := &testEnv{
		db:       database.InitTestMemoryDB(t),
		store:    memstore.New(c),
		clock:    c,
		recorder: &status.Recorder{},
	}
	env.syncer = env.newSyncer(t, env.store)

	return env
}

func (env *testEnv) newSyncer(t *testing.T, store remote.Store) *Syncer {
	t.Helper()

	s, err := New(Params{
		DB:       env.db,
		Remote:   store,
		Prober:   env.store,
		Reporter: env.recorder,
		Clock:    env.clock,
		Config:   Config{Concurrency: 4, BatchSize: 2},
	})
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating syncer"))
	}

	return s
}

func (env *testEnv) mustRun(t *testing.T) Report {
	t.Helper()

	report, err := env.syncer.Run(context.Background())
	if err != nil {
		t.Fatal(errors.Wrap(err, "running sync"))
	}

	return report
}

func (env *testEnv) seed(t *testing.T, c model.Collection, id string, v interface{}, at time.Time) {
	t.Helper()

	data, err := document.Encode(v)
	if err != nil {
		t.Fatal(errors.Wrap(err, "encoding document"))
	}

	env.store.Seed(c, remote.Document{Entry: remote.Entry{ID: id, UpdatedAt: at}, Data: data})
}

func (env *testEnv) mustCreateGym(t *testing.T, name string) database.Gym {
	t.Helper()

	g, err := database.CreateGym(env.db, env.clock.Now(), model.Gym{UUID: gymID, Name: name, Latitude: 21.3, Longitude: -157.8})
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating gym"))
	}

	return g
}

func (env *testEnv) mustCreateSchedule(t *testing.T, gymUUID string) database.WeeklySchedule {
	t.Helper()

	w, err := database.CreateSchedule(env.db, env.clock.Now(), model.WeeklySchedule{UUID: scheduleID, GymUUID: gymUUID, Day: "monday", Name: "Monday"})
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating schedule"))
	}

	return w
}

func (env *testEnv) mustCreateTimeSlot(t *testing.T, uuid, scheduleUUID string) database.TimeSlot {
	t.Helper()

	s, err := database.CreateTimeSlot(env.db, env.clock.Now(), model.TimeSlot{
		UUID:         uuid,
		ScheduleUUID: scheduleUUID,
		Time:         "18:00",
		Type:         "bjj",
		Gi:           true,
	})
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating time slot"))
	}

	return s
}

func (env *testEnv) mustCreateReview(t *testing.T, gymUUID string) database.Review {
	t.Helper()

	r, err := database.CreateReview(env.db, env.clock.Now(), model.Review{UUID: reviewID, GymUUID: gymUUID, Stars: 5, Author: "kai", Body: "great mats"})
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating review"))
	}

	return r
}

func mustGetRecord(t *testing.T, db *database.DB, c model.Collection, uuid string) database.Record {
	t.Helper()

	r, err := database.GetRecord(db, c, uuid)
	if err != nil {
		t.Fatal(errors.Wrapf(err, "getting %s %s", c, uuid))
	}

	return r
}

func collectionReport(t *testing.T, r Report, c model.Collection) CollectionReport {
	t.Helper()

	cr, ok := r.Collection(c)
	if !ok {
		t.Fatalf("no report for %s", c)
	}

	return cr
}

func gymDoc(name string) document.Gym {
	return document.Gym{
		Name:       name,
		Location:   "1 Kapiolani Blvd",
		Country:    "US",
		Latitude:   21.3,
		Longitude:  -157.8,
		GymWebsite: "https://example.com",
	}
}

// blockingStore holds List calls until released or until their context ends
type blockingStore struct {
	*memstore.Store
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore(s *memstore.Store) *blockingStore {
	return &blockingStore{
		Store:   s,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (b *blockingStore) List(ctx context.Context, c model.Collection) ([]remote.Entry, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}

	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return b.Store.List(ctx, c)
}

// racingStore runs seed before answering the first existence check
type racingStore struct {
	*memstore.Store
	seed   func()
	seeded bool
}

func (r *racingStore) Exists(ctx context.Context, c model.Collection, id string) (bool, error) {
	if !r.seeded {
		r.seeded = true
		r.seed()
	}

	return r.Store.Exists(ctx, c, id)
}

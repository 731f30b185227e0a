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


package e2e

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matfinder/matsync/pkg/clock"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/remote/client"
	"github.com/matfinder/matsync/pkg/server/controllers"
	"github.com/matfinder/matsync/pkg/server/testutils"
	"github.com/matfinder/matsync/pkg/status"
	"github.com/matfinder/matsync/pkg/sync"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	apiKey = "e2e-secret"

	gymID      = "a1b2c3d4-e5f6-4718-893a-4b5c6d7e8f90"
	scheduleID = "11111111-2222-4333-8444-555555555555"
	slotID     = "66666666-7777-4888-8999-aaaaaaaaaaaa"
	otherSlot  = "bbbbbbbb-cccc-4ddd-8eee-ffffffffffff"
	reviewID   = "12345678-9abc-4def-8123-456789abcdef"
)

// testEnv is a document server shared by any number of devices. Every
// device and the server read the same mock clock.
type testEnv struct {
	serverDB *gorm.DB
	server   *httptest.Server
	clock    *clock.Mock
}

type device struct {
	db       *database.DB
	recorder *status.Recorder
	syncer   *sync.Syncer
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	a, server := controllers.NewTestServer(t, apiKey)

	return &testEnv{
		serverDB: a.DB,
		server:   server,
		clock:    a.Clock.(*clock.Mock),
	}
}

func (env *testEnv) newClient() *client.Client {
	c := client.New(env.server.URL+"/api", apiKey)
	c.Version = "e2e"

	return c
}

func (env *testEnv) newDevice(t *testing.T) *device {
	t.Helper()

	c := env.newClient()
	d := &device{
		db:       database.InitTestMemoryDB(t),
		recorder: &status.Recorder{},
	}

	s, err := sync.New(sync.Params{
		DB:       d.db,
		Remote:   c,
		Prober:   c,
		Reporter: d.recorder,
		Clock:    env.clock,
		Config:   sync.Config{Concurrency: 4, BatchSize: 2},
	})
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating syncer"))
	}
	d.syncer = s

	return d
}

func (env *testEnv) countDocuments(t *testing.T, c model.Collection) int {
	t.Helper()

	return testutils.MustCountDocuments(t, env.serverDB, string(c))
}

func (d *device) mustSync(t *testing.T) sync.Report {
	t.Helper()

	report, err := d.syncer.Run(context.Background())
	if err != nil {
		t.Fatal(errors.Wrap(err, "running sync"))
	}
	if report.Partial() {
		t.Fatalf("sync was partial: %+v", report.Collections)
	}

	return report
}

func (d *device) count(t *testing.T, c model.Collection) int {
	t.Helper()

	table, err := database.TableName(c)
	if err != nil {
		t.Fatal(errors.Wrap(err, "resolving table"))
	}

	return database.MustCount(t, d.db, table, "")
}

func (d *device) stats(t *testing.T, c model.Collection) database.Stats {
	t.Helper()

	s, err := database.CollectionStats(d.db, c)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting stats"))
	}

	return s
}

// mustCreateGraph creates a gym with a schedule of two time slots and a review
func (d *device) mustCreateGraph(t *testing.T, now time.Time) {
	t.Helper()

	if _, err := database.CreateGym(d.db, now, model.Gym{UUID: gymID, Name: "Lotus Club", Location: "Honolulu", Latitude: 21.3, Longitude: -157.8}); err != nil {
		t.Fatal(errors.Wrap(err, "creating gym"))
	}
	if _, err := database.CreateSchedule(d.db, now, model.WeeklySchedule{UUID: scheduleID, GymUUID: gymID, Day: "monday", Name: "Monday"}); err != nil {
		t.Fatal(errors.Wrap(err, "creating schedule"))
	}
	if _, err := database.CreateTimeSlot(d.db, now, model.TimeSlot{UUID: slotID, ScheduleUUID: scheduleID, Time: "06:30", Type: "bjj", Gi: true}); err != nil {
		t.Fatal(errors.Wrap(err, "creating time slot"))
	}
	if _, err := database.CreateTimeSlot(d.db, now, model.TimeSlot{UUID: otherSlot, ScheduleUUID: scheduleID, Time: "18:00", Type: "bjj", NoGi: true}); err != nil {
		t.Fatal(errors.Wrap(err, "creating time slot"))
	}
	if _, err := database.CreateReview(d.db, now, model.Review{UUID: reviewID, GymUUID: gymID, Stars: 5, Author: "kai", Body: "great mats"}); err != nil {
		t.Fatal(errors.Wrap(err, "creating review"))
	}
}

func mustCollection(t *testing.T, r sync.Report, c model.Collection) sync.CollectionReport {
	t.Helper()

	cr, ok := r.Collection(c)
	if !ok {
		t.Fatalf("no report for %s", c)
	}

	return cr
}

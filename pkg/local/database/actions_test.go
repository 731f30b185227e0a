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
	"fmt"
	"testing"
	"time"

	"github.com/matfinder/matsync/pkg/assert"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/pkg/errors"
)

func mustCreateGym(t *testing.T, db *DB, name string) Gym {
	t.Helper()

	g, err := CreateGym(db, testNow, model.Gym{Name: name, Latitude: 37.77, Longitude: -122.41})
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating gym"))
	}

	return g
}

func mustCreateSchedule(t *testing.T, db *DB, gymUUID, day string) WeeklySchedule {
	t.Helper()

	w, err := CreateSchedule(db, testNow, model.WeeklySchedule{GymUUID: gymUUID, Day: day})
	if err != nil {
		t.Fatal(errors.Wrap(err, "creating schedule"))
	}

	return w
}

func TestCreateGym(t *testing.T) {
	db := InitTestMemoryDB(t)

	g, err := CreateGym(db, testNow, model.Gym{
		UUID:     "A1B2C3D4E5F60718293A4B5C6D7E8F90",
		Name:     "Ten Point",
		Location: "1 Main St",
		Country:  "US",
	})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, g.UUID, "a1b2c3d4-e5f6-0718-293a-4b5c6d7e8f90", "uuid should be normalized")

	got, err := GetGym(db, g.UUID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got.Name, "Ten Point", "name mismatch")
	assert.Equal(t, got.Dirty, true, "dirty mismatch")
	assert.Equal(t, got.Synced, false, "synced mismatch")
	assert.Equal(t, got.EditedAt.Equal(testNow), true, "edited_at mismatch")
	assert.Equal(t, got.CreatedAt.Equal(testNow), true, "created_at mismatch")
}

func TestCreateGym_invalid(t *testing.T) {
	db := InitTestMemoryDB(t)

	_, err := CreateGym(db, testNow, model.Gym{Name: ""})
	assert.Equal(t, errors.Cause(err), model.ErrValidation, "error mismatch")

	_, err = CreateGym(db, testNow, model.Gym{UUID: "nope", Name: "x"})
	assert.NotEqual(t, err, nil, "malformed uuid should be rejected")

	assert.Equal(t, MustCount(t, db, "gyms", ""), 0, "gym count mismatch")
}

func TestUpdateGym(t *testing.T) {
	db := InitTestMemoryDB(t)
	g := mustCreateGym(t, db, "Before")

	MustExec(t, "marking synced", db, "UPDATE gyms SET dirty = false, synced = true WHERE uuid = ?", g.UUID)

	later := testNow.Add(time.Hour)
	edit := g.Gym
	edit.Name = "After"
	if _, err := UpdateGym(db, later, edit); err != nil {
		t.Fatal(err)
	}

	got, err := GetGym(db, g.UUID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got.Name, "After", "name mismatch")
	assert.Equal(t, got.Dirty, true, "dirty mismatch")
	assert.Equal(t, got.Synced, true, "synced should be kept")
	assert.Equal(t, got.EditedAt.Equal(later), true, "edited_at mismatch")
}

func TestCreateSchedule(t *testing.T) {
	db := InitTestMemoryDB(t)
	g := mustCreateGym(t, db, "Ten Point")

	t.Run("normalizes day", func(t *testing.T) {
		w := mustCreateSchedule(t, db, g.UUID, "MON")
		assert.Equal(t, w.Day, "monday", "day mismatch")
	})

	t.Run("unknown gym", func(t *testing.T) {
		_, err := CreateSchedule(db, testNow, model.WeeklySchedule{GymUUID: "a1b2c3d4-0000-4000-8000-00000000ffff", Day: "tuesday"})
		assert.Equal(t, errors.Cause(err), ErrNotFound, "error mismatch")
	})

	t.Run("missing gym", func(t *testing.T) {
		_, err := CreateSchedule(db, testNow, model.WeeklySchedule{Day: "tuesday"})
		assert.Equal(t, errors.Cause(err), model.ErrValidation, "error mismatch")
	})
}

func TestCreateTimeSlot_duplicate(t *testing.T) {
	testCases := []struct {
		second   model.TimeSlot
		rejected bool
	}{
		{
			second:   model.TimeSlot{Time: "18:00", Type: "BJJ", Gi: true},
			rejected: true,
		},
		{
			second:   model.TimeSlot{Time: "18:00", Type: "bjj ", Gi: true},
			rejected: true,
		},
		{
			second:   model.TimeSlot{Time: "18:00", Type: "bjj", NoGi: true},
			rejected: false,
		},
		{
			second:   model.TimeSlot{Time: "19:00", Type: "bjj", Gi: true},
			rejected: false,
		},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			db := InitTestMemoryDB(t)
			g := mustCreateGym(t, db, "Ten Point")
			w := mustCreateSchedule(t, db, g.UUID, "monday")

			if _, err := CreateTimeSlot(db, testNow, model.TimeSlot{ScheduleUUID: w.UUID, Time: "18:00", Type: "bjj", Gi: true}); err != nil {
				t.Fatal(errors.Wrap(err, "creating first slot"))
			}

			second := tc.second
			second.ScheduleUUID = w.UUID
			_, err := CreateTimeSlot(db, testNow, second)

			count := MustCount(t, db, "time_slots", "schedule_uuid = ?", w.UUID)
			if tc.rejected {
				assert.Equal(t, errors.Cause(err), ErrDuplicateTimeSlot, "error mismatch")
				assert.Equal(t, count, 1, "slot count mismatch")
			} else {
				assert.Equal(t, err, nil, "unexpected error")
				assert.Equal(t, count, 2, "slot count mismatch")
			}
		})
	}
}

func TestCreateTimeSlot_otherSchedule(t *testing.T) {
	db := InitTestMemoryDB(t)
	g := mustCreateGym(t, db, "Ten Point")
	mon := mustCreateSchedule(t, db, g.UUID, "monday")
	tue := mustCreateSchedule(t, db, g.UUID, "tuesday")

	slot := model.TimeSlot{Time: "18:00", Type: "bjj", Gi: true}

	slot.ScheduleUUID = mon.UUID
	if _, err := CreateTimeSlot(db, testNow, slot); err != nil {
		t.Fatal(err)
	}
	slot.ScheduleUUID = tue.UUID
	if _, err := CreateTimeSlot(db, testNow, slot); err != nil {
		t.Fatal(errors.Wrap(err, "same signature under another schedule should be allowed"))
	}
}

func TestCreateReview(t *testing.T) {
	db := InitTestMemoryDB(t)
	g := mustCreateGym(t, db, "Ten Point")

	r, err := CreateReview(db, testNow, model.Review{GymUUID: g.UUID, Stars: 5, Body: "great", Author: "sam"})
	if err != nil {
		t.Fatal(err)
	}

	got, err := GetReview(db, r.UUID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got.Stars, 5, "stars mismatch")
	assert.Equal(t, got.Dirty, true, "dirty mismatch")

	_, err = CreateReview(db, testNow, model.Review{GymUUID: g.UUID, Stars: 6, Author: "sam"})
	assert.Equal(t, errors.Cause(err), model.ErrValidation, "error mismatch")
}

func TestDelete(t *testing.T) {
	db := InitTestMemoryDB(t)

	g := mustCreateGym(t, db, "Ten Point")
	w := mustCreateSchedule(t, db, g.UUID, "monday")
	slot, err := CreateTimeSlot(db, testNow, model.TimeSlot{ScheduleUUID: w.UUID, Time: "18:00", Type: "bjj"})
	if err != nil {
		t.Fatal(err)
	}
	r, err := CreateReview(db, testNow, model.Review{GymUUID: g.UUID, Stars: 4, Author: "sam"})
	if err != nil {
		t.Fatal(err)
	}

	// gym and schedule are on the remote, the slot and review are not
	MustExec(t, "confirming gym", db, "UPDATE gyms SET synced = true, dirty = false WHERE uuid = ?", g.UUID)
	MustExec(t, "confirming schedule", db, "UPDATE weekly_schedules SET synced = true, dirty = false WHERE uuid = ?", w.UUID)

	later := testNow.Add(time.Minute)
	if err := Delete(db, later, model.CollectionGyms, g.UUID); err != nil {
		t.Fatal(err)
	}

	gym, err := GetGym(db, g.UUID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, gym.Deleted, true, "gym should be a tombstone")
	assert.Equal(t, gym.Dirty, true, "gym should be dirty")
	assert.Equal(t, gym.EditedAt.Equal(later), true, "edited_at mismatch")

	sched, err := GetSchedule(db, w.UUID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, sched.Deleted, true, "schedule should be a tombstone")

	_, err = GetTimeSlot(db, slot.UUID)
	assert.Equal(t, errors.Cause(err), ErrNotFound, "unsynced slot should be expunged")
	_, err = GetReview(db, r.UUID)
	assert.Equal(t, errors.Cause(err), ErrNotFound, "unsynced review should be expunged")

	if err := Delete(db, later, model.CollectionGyms, g.UUID); err != nil {
		t.Fatal(errors.Wrap(err, "deleting twice"))
	}
}

func TestTimeSlotActionsDirtySchedule(t *testing.T) {
	testCases := []struct {
		name   string
		action func(db *DB, now time.Time, slot TimeSlot) error
	}{
		{
			name: "create",
			action: func(db *DB, now time.Time, slot TimeSlot) error {
				_, err := CreateTimeSlot(db, now, model.TimeSlot{ScheduleUUID: slot.ScheduleUUID, Time: "06:30", Type: "bjj"})
				return err
			},
		},
		{
			name: "update",
			action: func(db *DB, now time.Time, slot TimeSlot) error {
				s := slot.TimeSlot
				s.Time = "19:00"
				_, err := UpdateTimeSlot(db, now, s)
				return err
			},
		},
		{
			name: "delete",
			action: func(db *DB, now time.Time, slot TimeSlot) error {
				return Delete(db, now, model.CollectionTimeSlots, slot.UUID)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db := InitTestMemoryDB(t)
			g := mustCreateGym(t, db, "Ten Point")
			w := mustCreateSchedule(t, db, g.UUID, "monday")
			slot, err := CreateTimeSlot(db, testNow, model.TimeSlot{ScheduleUUID: w.UUID, Time: "18:00", Type: "bjj"})
			if err != nil {
				t.Fatal(err)
			}

			MustExec(t, "confirming schedule", db, "UPDATE weekly_schedules SET synced = true, dirty = false WHERE uuid = ?", w.UUID)
			MustExec(t, "confirming slot", db, "UPDATE time_slots SET synced = true, dirty = false WHERE uuid = ?", slot.UUID)

			later := testNow.Add(time.Minute)
			if err := tc.action(db, later, slot); err != nil {
				t.Fatal(err)
			}

			got, err := GetSchedule(db, w.UUID)
			if err != nil {
				t.Fatal(err)
			}
			assert.Equal(t, got.Dirty, true, "schedule should be dirty")
			assert.Equal(t, got.Deleted, false, "schedule should stay live")
			assert.Equal(t, got.EditedAt.Equal(later), true, "schedule edited_at mismatch")
		})
	}
}

func TestDeleteTimeSlot_stubScheduleUntouched(t *testing.T) {
	db := InitTestMemoryDB(t)
	g := mustCreateGym(t, db, "Ten Point")
	w := mustCreateSchedule(t, db, g.UUID, "monday")
	slot, err := CreateTimeSlot(db, testNow, model.TimeSlot{ScheduleUUID: w.UUID, Time: "18:00", Type: "bjj"})
	if err != nil {
		t.Fatal(err)
	}

	MustExec(t, "demoting schedule", db, "UPDATE weekly_schedules SET stub = true, synced = true, dirty = false WHERE uuid = ?", w.UUID)

	if err := Delete(db, testNow.Add(time.Minute), model.CollectionTimeSlots, slot.UUID); err != nil {
		t.Fatal(err)
	}

	got, err := GetSchedule(db, w.UUID)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, got.Dirty, false, "placeholder schedule should not be pushed")
}

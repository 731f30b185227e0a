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
	"database/sql"
	"time"

	"github.com/matfinder/matsync/pkg/model"
	"github.com/pkg/errors"
)

// Meta holds the sync bookkeeping of a local record
type Meta struct {
	// EditedAt is the time of the last local modification
	EditedAt time.Time
	// RemoteUpdatedAt is the remote version last merged or pushed
	RemoteUpdatedAt time.Time
	// Dirty is set when a local change has not been pushed
	Dirty bool
	// Synced is set once the record has been confirmed on the remote
	Synced bool
	// Deleted marks a local tombstone
	Deleted bool
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}

	return time.Unix(0, n).UTC()
}

func notFound(err error, kind, uuid string) error {
	if err == sql.ErrNoRows {
		return errors.Wrapf(ErrNotFound, "%s %s", kind, uuid)
	}

	return errors.Wrapf(err, "querying %s %s", kind, uuid)
}

// Gym is a local gym record
type Gym struct {
	model.Gym
	Meta
}

const gymColumns = `uuid, name, location, country, latitude, longitude, website, created_by, created_at,
	last_modified_by, last_modified_at, edited_at, remote_updated_at, dirty, synced, deleted, stub`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanGym(s scanner) (Gym, error) {
	var g Gym
	var createdAt, modifiedAt, editedAt, remoteAt int64

	err := s.Scan(&g.UUID, &g.Name, &g.Location, &g.Country, &g.Latitude, &g.Longitude, &g.Website,
		&g.CreatedBy, &createdAt, &g.LastModifiedBy, &modifiedAt, &editedAt, &remoteAt,
		&g.Dirty, &g.Synced, &g.Deleted, &g.Stub)
	if err != nil {
		return g, err
	}

	g.CreatedAt = fromUnix(createdAt)
	g.LastModifiedAt = fromUnix(modifiedAt)
	g.EditedAt = fromUnix(editedAt)
	g.RemoteUpdatedAt = fromUnix(remoteAt)

	return g, nil
}

// Insert inserts a new gym
func (g Gym) Insert(db *DB) error {
	_, err := db.Exec("INSERT INTO gyms ("+gymColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		g.UUID, g.Name, g.Location, g.Country, g.Latitude, g.Longitude, g.Website, g.CreatedBy, toUnix(g.CreatedAt),
		g.LastModifiedBy, toUnix(g.LastModifiedAt), toUnix(g.EditedAt), toUnix(g.RemoteUpdatedAt),
		g.Dirty, g.Synced, g.Deleted, g.Stub)
	if err != nil {
		return errors.Wrapf(err, "inserting gym with uuid %s", g.UUID)
	}

	return nil
}

// Update updates the gym with the given data
func (g Gym) Update(db *DB) error {
	_, err := db.Exec(`UPDATE gyms SET name = ?, location = ?, country = ?, latitude = ?, longitude = ?, website = ?,
		created_by = ?, created_at = ?, last_modified_by = ?, last_modified_at = ?, edited_at = ?, remote_updated_at = ?,
		dirty = ?, synced = ?, deleted = ?, stub = ? WHERE uuid = ?`,
		g.Name, g.Location, g.Country, g.Latitude, g.Longitude, g.Website, g.CreatedBy, toUnix(g.CreatedAt),
		g.LastModifiedBy, toUnix(g.LastModifiedAt), toUnix(g.EditedAt), toUnix(g.RemoteUpdatedAt),
		g.Dirty, g.Synced, g.Deleted, g.Stub, g.UUID)
	if err != nil {
		return errors.Wrapf(err, "updating the gym with uuid %s", g.UUID)
	}

	return nil
}

// GetGym returns the gym with the given uuid
func GetGym(db *DB, uuid string) (Gym, error) {
	g, err := scanGym(db.QueryRow("SELECT "+gymColumns+" FROM gyms WHERE uuid = ?", uuid))
	if err != nil {
		return g, notFound(err, "gym", uuid)
	}

	return g, nil
}

// ListGyms returns the gyms that are not deleted, ordered by name
func ListGyms(db *DB) ([]Gym, error) {
	rows, err := db.Query("SELECT " + gymColumns + " FROM gyms WHERE deleted = false ORDER BY name, uuid")
	if err != nil {
		return nil, errors.Wrap(err, "querying gyms")
	}
	defer rows.Close()

	ret := []Gym{}
	for rows.Next() {
		g, err := scanGym(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning gym")
		}

		ret = append(ret, g)
	}

	return ret, rows.Err()
}

// WeeklySchedule is a local weekly schedule record
type WeeklySchedule struct {
	model.WeeklySchedule
	Meta
}

const scheduleColumns = `uuid, gym_uuid, day, name, created_at, edited_at, remote_updated_at, dirty, synced, deleted, stub`

func scanSchedule(s scanner) (WeeklySchedule, error) {
	var w WeeklySchedule
	var createdAt, editedAt, remoteAt int64

	err := s.Scan(&w.UUID, &w.GymUUID, &w.Day, &w.Name, &createdAt, &editedAt, &remoteAt,
		&w.Dirty, &w.Synced, &w.Deleted, &w.Stub)
	if err != nil {
		return w, err
	}

	w.CreatedAt = fromUnix(createdAt)
	w.EditedAt = fromUnix(editedAt)
	w.RemoteUpdatedAt = fromUnix(remoteAt)

	return w, nil
}

// Insert inserts a new weekly schedule
func (w WeeklySchedule) Insert(db *DB) error {
	_, err := db.Exec("INSERT INTO weekly_schedules ("+scheduleColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		w.UUID, w.GymUUID, w.Day, w.Name, toUnix(w.CreatedAt), toUnix(w.EditedAt), toUnix(w.RemoteUpdatedAt),
		w.Dirty, w.Synced, w.Deleted, w.Stub)
	if err != nil {
		return errors.Wrapf(err, "inserting weekly schedule with uuid %s", w.UUID)
	}

	return nil
}

// Update updates the weekly schedule with the given data
func (w WeeklySchedule) Update(db *DB) error {
	_, err := db.Exec(`UPDATE weekly_schedules SET gym_uuid = ?, day = ?, name = ?, created_at = ?, edited_at = ?,
		remote_updated_at = ?, dirty = ?, synced = ?, deleted = ?, stub = ? WHERE uuid = ?`,
		w.GymUUID, w.Day, w.Name, toUnix(w.CreatedAt), toUnix(w.EditedAt), toUnix(w.RemoteUpdatedAt),
		w.Dirty, w.Synced, w.Deleted, w.Stub, w.UUID)
	if err != nil {
		return errors.Wrapf(err, "updating the weekly schedule with uuid %s", w.UUID)
	}

	return nil
}

// GetSchedule returns the weekly schedule with the given uuid
func GetSchedule(db *DB, uuid string) (WeeklySchedule, error) {
	w, err := scanSchedule(db.QueryRow("SELECT "+scheduleColumns+" FROM weekly_schedules WHERE uuid = ?", uuid))
	if err != nil {
		return w, notFound(err, "weekly schedule", uuid)
	}

	return w, nil
}

// ListSchedulesByGym returns the schedules of the gym that are not deleted
func ListSchedulesByGym(db *DB, gymUUID string) ([]WeeklySchedule, error) {
	rows, err := db.Query("SELECT "+scheduleColumns+" FROM weekly_schedules WHERE gym_uuid = ? AND deleted = false ORDER BY uuid", gymUUID)
	if err != nil {
		return nil, errors.Wrap(err, "querying weekly schedules")
	}
	defer rows.Close()

	ret := []WeeklySchedule{}
	for rows.Next() {
		w, err := scanSchedule(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning weekly schedule")
		}

		ret = append(ret, w)
	}

	return ret, rows.Err()
}

// TimeSlot is a local time slot record
type TimeSlot struct {
	model.TimeSlot
	Meta
}

const timeSlotColumns = `uuid, schedule_uuid, time, type, gi, no_gi, open_mat, restrictions, restriction_description,
	good_for_beginners, kids, created_at, edited_at, remote_updated_at, dirty, synced, deleted`

func scanTimeSlot(s scanner) (TimeSlot, error) {
	var t TimeSlot
	var createdAt, editedAt, remoteAt int64

	err := s.Scan(&t.UUID, &t.ScheduleUUID, &t.Time, &t.Type, &t.Gi, &t.NoGi, &t.OpenMat, &t.Restrictions,
		&t.RestrictionDescription, &t.GoodForBeginners, &t.Kids, &createdAt, &editedAt, &remoteAt,
		&t.Dirty, &t.Synced, &t.Deleted)
	if err != nil {
		return t, err
	}

	t.CreatedAt = fromUnix(createdAt)
	t.EditedAt = fromUnix(editedAt)
	t.RemoteUpdatedAt = fromUnix(remoteAt)

	return t, nil
}

// Insert inserts a new time slot
func (t TimeSlot) Insert(db *DB) error {
	_, err := db.Exec("INSERT INTO time_slots ("+timeSlotColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		t.UUID, t.ScheduleUUID, t.Time, t.Type, t.Gi, t.NoGi, t.OpenMat, t.Restrictions, t.RestrictionDescription,
		t.GoodForBeginners, t.Kids, toUnix(t.CreatedAt), toUnix(t.EditedAt), toUnix(t.RemoteUpdatedAt),
		t.Dirty, t.Synced, t.Deleted)
	if err != nil {
		return errors.Wrapf(err, "inserting time slot with uuid %s", t.UUID)
	}

	return nil
}

// Update updates the time slot with the given data
func (t TimeSlot) Update(db *DB) error {
	_, err := db.Exec(`UPDATE time_slots SET schedule_uuid = ?, time = ?, type = ?, gi = ?, no_gi = ?, open_mat = ?,
		restrictions = ?, restriction_description = ?, good_for_beginners = ?, kids = ?, created_at = ?, edited_at = ?,
		remote_updated_at = ?, dirty = ?, synced = ?, deleted = ? WHERE uuid = ?`,
		t.ScheduleUUID, t.Time, t.Type, t.Gi, t.NoGi, t.OpenMat, t.Restrictions, t.RestrictionDescription,
		t.GoodForBeginners, t.Kids, toUnix(t.CreatedAt), toUnix(t.EditedAt), toUnix(t.RemoteUpdatedAt),
		t.Dirty, t.Synced, t.Deleted, t.UUID)
	if err != nil {
		return errors.Wrapf(err, "updating the time slot with uuid %s", t.UUID)
	}

	return nil
}

// GetTimeSlot returns the time slot with the given uuid
func GetTimeSlot(db *DB, uuid string) (TimeSlot, error) {
	t, err := scanTimeSlot(db.QueryRow("SELECT "+timeSlotColumns+" FROM time_slots WHERE uuid = ?", uuid))
	if err != nil {
		return t, notFound(err, "time slot", uuid)
	}

	return t, nil
}

// ListTimeSlotsBySchedule returns the time slots of the schedule that are not deleted, ordered by time
func ListTimeSlotsBySchedule(db *DB, scheduleUUID string) ([]TimeSlot, error) {
	rows, err := db.Query("SELECT "+timeSlotColumns+" FROM time_slots WHERE schedule_uuid = ? AND deleted = false ORDER BY time, uuid", scheduleUUID)
	if err != nil {
		return nil, errors.Wrap(err, "querying time slots")
	}
	defer rows.Close()

	ret := []TimeSlot{}
	for rows.Next() {
		t, err := scanTimeSlot(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning time slot")
		}

		ret = append(ret, t)
	}

	return ret, rows.Err()
}

// FindScheduleByDay returns the uuid of the live schedule of the gym for the
// day, or an empty string if there is none. Real schedules are preferred over
// placeholders.
func FindScheduleByDay(db *DB, gymUUID, day string) (string, error) {
	var uuid string

	err := db.QueryRow("SELECT uuid FROM weekly_schedules WHERE gym_uuid = ? AND day = ? AND deleted = false ORDER BY stub, uuid LIMIT 1",
		gymUUID, model.DayName(day)).Scan(&uuid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "finding schedule by day")
	}

	return uuid, nil
}

// Review is a local review record
type Review struct {
	model.Review
	Meta
}

const reviewColumns = `uuid, gym_uuid, stars, body, author, created_at, edited_at, remote_updated_at, dirty, synced, deleted`

func scanReview(s scanner) (Review, error) {
	var r Review
	var createdAt, editedAt, remoteAt int64

	err := s.Scan(&r.UUID, &r.GymUUID, &r.Stars, &r.Body, &r.Author, &createdAt, &editedAt, &remoteAt,
		&r.Dirty, &r.Synced, &r.Deleted)
	if err != nil {
		return r, err
	}

	r.CreatedAt = fromUnix(createdAt)
	r.EditedAt = fromUnix(editedAt)
	r.RemoteUpdatedAt = fromUnix(remoteAt)

	return r, nil
}

// Insert inserts a new review
func (r Review) Insert(db *DB) error {
	_, err := db.Exec("INSERT INTO reviews ("+reviewColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.UUID, r.GymUUID, r.Stars, r.Body, r.Author, toUnix(r.CreatedAt), toUnix(r.EditedAt), toUnix(r.RemoteUpdatedAt),
		r.Dirty, r.Synced, r.Deleted)
	if err != nil {
		return errors.Wrapf(err, "inserting review with uuid %s", r.UUID)
	}

	return nil
}

// Update updates the review with the given data
func (r Review) Update(db *DB) error {
	_, err := db.Exec(`UPDATE reviews SET gym_uuid = ?, stars = ?, body = ?, author = ?, created_at = ?, edited_at = ?,
		remote_updated_at = ?, dirty = ?, synced = ?, deleted = ? WHERE uuid = ?`,
		r.GymUUID, r.Stars, r.Body, r.Author, toUnix(r.CreatedAt), toUnix(r.EditedAt), toUnix(r.RemoteUpdatedAt),
		r.Dirty, r.Synced, r.Deleted, r.UUID)
	if err != nil {
		return errors.Wrapf(err, "updating the review with uuid %s", r.UUID)
	}

	return nil
}

// GetReview returns the review with the given uuid
func GetReview(db *DB, uuid string) (Review, error) {
	r, err := scanReview(db.QueryRow("SELECT "+reviewColumns+" FROM reviews WHERE uuid = ?", uuid))
	if err != nil {
		return r, notFound(err, "review", uuid)
	}

	return r, nil
}

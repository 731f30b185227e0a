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
	"time"

	"github.com/matfinder/matsync/pkg/identity"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/pkg/errors"
)

func assignUUID(uuid string) (string, error) {
	if uuid == "" {
		return identity.New()
	}

	return identity.Normalize(uuid)
}

func requireLive(db *DB, c model.Collection, uuid string) error {
	r, err := GetRecord(db, c, uuid)
	if err != nil {
		return errors.Wrapf(err, "finding parent in %s", c)
	}
	if r.Deleted {
		return errors.Wrapf(ErrNotFound, "%s %s is deleted", c, uuid)
	}

	return nil
}

func dirtyMeta(prev Meta, now time.Time) Meta {
	return Meta{
		EditedAt:        now,
		RemoteUpdatedAt: prev.RemoteUpdatedAt,
		Dirty:           true,
		Synced:          prev.Synced,
	}
}

// touchSchedule marks a live schedule dirty so that its document is encoded
// again with the current time slots
func touchSchedule(db *DB, now time.Time, uuid string) error {
	_, err := db.Exec("UPDATE weekly_schedules SET dirty = true, edited_at = ? WHERE uuid = ? AND deleted = false AND stub = false", toUnix(now), uuid)
	if err != nil {
		return errors.Wrapf(err, "marking schedule %s dirty", uuid)
	}

	return nil
}

// CreateGym creates a gym as a local action. It is pushed on the next sync.
func CreateGym(db *DB, now time.Time, g model.Gym) (Gym, error) {
	uuid, err := assignUUID(g.UUID)
	if err != nil {
		return Gym{}, err
	}
	g.UUID = uuid
	g.Stub = false
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.LastModifiedAt = now

	if err := g.Validate(); err != nil {
		return Gym{}, err
	}

	ret := Gym{Gym: g, Meta: dirtyMeta(Meta{}, now)}
	if err := ret.Insert(db); err != nil {
		return Gym{}, err
	}

	return ret, nil
}

// UpdateGym updates a gym as a local action
func UpdateGym(db *DB, now time.Time, g model.Gym) (Gym, error) {
	prev, err := GetGym(db, g.UUID)
	if err != nil {
		return Gym{}, err
	}

	g.UUID = prev.UUID
	g.CreatedAt = prev.CreatedAt
	g.CreatedBy = prev.CreatedBy
	g.LastModifiedAt = now
	g.Stub = false

	if err := g.Validate(); err != nil {
		return Gym{}, err
	}

	ret := Gym{Gym: g, Meta: dirtyMeta(prev.Meta, now)}
	if err := ret.Update(db); err != nil {
		return Gym{}, err
	}

	return ret, nil
}

// CreateSchedule creates a weekly schedule under an existing gym
func CreateSchedule(db *DB, now time.Time, w model.WeeklySchedule) (WeeklySchedule, error) {
	uuid, err := assignUUID(w.UUID)
	if err != nil {
		return WeeklySchedule{}, err
	}
	w.UUID = uuid
	w.Stub = false
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}

	if err := w.Validate(); err != nil {
		return WeeklySchedule{}, err
	}
	if err := requireLive(db, model.CollectionGyms, w.GymUUID); err != nil {
		return WeeklySchedule{}, err
	}

	w.Day = model.DayName(w.Day)

	ret := WeeklySchedule{WeeklySchedule: w, Meta: dirtyMeta(Meta{}, now)}
	if err := ret.Insert(db); err != nil {
		return WeeklySchedule{}, err
	}

	return ret, nil
}

// UpdateSchedule updates a weekly schedule as a local action
func UpdateSchedule(db *DB, now time.Time, w model.WeeklySchedule) (WeeklySchedule, error) {
	prev, err := GetSchedule(db, w.UUID)
	if err != nil {
		return WeeklySchedule{}, err
	}

	w.UUID = prev.UUID
	w.CreatedAt = prev.CreatedAt
	w.Stub = false

	if err := w.Validate(); err != nil {
		return WeeklySchedule{}, err
	}
	if w.GymUUID != prev.GymUUID {
		if err := requireLive(db, model.CollectionGyms, w.GymUUID); err != nil {
			return WeeklySchedule{}, err
		}
	}

	w.Day = model.DayName(w.Day)

	ret := WeeklySchedule{WeeklySchedule: w, Meta: dirtyMeta(prev.Meta, now)}
	if err := ret.Update(db); err != nil {
		return WeeklySchedule{}, err
	}

	return ret, nil
}

// FindDuplicateTimeSlot returns the uuid of a live time slot under the same
// schedule with the same signature as s, other than s itself. It returns an
// empty string if there is none.
func FindDuplicateTimeSlot(db *DB, s model.TimeSlot) (string, error) {
	siblings, err := ListTimeSlotsBySchedule(db, s.ScheduleUUID)
	if err != nil {
		return "", err
	}

	for _, sib := range siblings {
		if sib.UUID == s.UUID {
			continue
		}
		if model.SameSignature(sib.TimeSlot, s) {
			return sib.UUID, nil
		}
	}

	return "", nil
}

func checkDuplicateTimeSlot(db *DB, s model.TimeSlot) error {
	dup, err := FindDuplicateTimeSlot(db, s)
	if err != nil {
		return errors.Wrap(err, "checking duplicate time slot")
	}
	if dup != "" {
		return errors.Wrapf(ErrDuplicateTimeSlot, "%s conflicts with %s", s.Signature(), dup)
	}

	return nil
}

// CreateTimeSlot creates a time slot under an existing schedule. A slot with
// the same signature as a live slot of that schedule is rejected with
// ErrDuplicateTimeSlot.
func CreateTimeSlot(db *DB, now time.Time, s model.TimeSlot) (TimeSlot, error) {
	uuid, err := assignUUID(s.UUID)
	if err != nil {
		return TimeSlot{}, err
	}
	s.UUID = uuid
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}

	if err := s.Validate(); err != nil {
		return TimeSlot{}, err
	}
	if err := requireLive(db, model.CollectionSchedules, s.ScheduleUUID); err != nil {
		return TimeSlot{}, err
	}
	if err := checkDuplicateTimeSlot(db, s); err != nil {
		return TimeSlot{}, err
	}

	ret := TimeSlot{TimeSlot: s, Meta: dirtyMeta(Meta{}, now)}
	if err := ret.Insert(db); err != nil {
		return TimeSlot{}, err
	}
	if err := touchSchedule(db, now, s.ScheduleUUID); err != nil {
		return TimeSlot{}, err
	}

	return ret, nil
}

// UpdateTimeSlot updates a time slot as a local action
func UpdateTimeSlot(db *DB, now time.Time, s model.TimeSlot) (TimeSlot, error) {
	prev, err := GetTimeSlot(db, s.UUID)
	if err != nil {
		return TimeSlot{}, err
	}

	s.UUID = prev.UUID
	s.CreatedAt = prev.CreatedAt

	if err := s.Validate(); err != nil {
		return TimeSlot{}, err
	}
	if s.ScheduleUUID != prev.ScheduleUUID {
		if err := requireLive(db, model.CollectionSchedules, s.ScheduleUUID); err != nil {
			return TimeSlot{}, err
		}
	}
	if err := checkDuplicateTimeSlot(db, s); err != nil {
		return TimeSlot{}, err
	}

	ret := TimeSlot{TimeSlot: s, Meta: dirtyMeta(prev.Meta, now)}
	if err := ret.Update(db); err != nil {
		return TimeSlot{}, err
	}
	for _, w := range []string{prev.ScheduleUUID, s.ScheduleUUID} {
		if err := touchSchedule(db, now, w); err != nil {
			return TimeSlot{}, err
		}
	}

	return ret, nil
}

// CreateReview creates a review of an existing gym
func CreateReview(db *DB, now time.Time, r model.Review) (Review, error) {
	uuid, err := assignUUID(r.UUID)
	if err != nil {
		return Review{}, err
	}
	r.UUID = uuid
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}

	if err := r.Validate(); err != nil {
		return Review{}, err
	}
	if err := requireLive(db, model.CollectionGyms, r.GymUUID); err != nil {
		return Review{}, err
	}

	ret := Review{Review: r, Meta: dirtyMeta(Meta{}, now)}
	if err := ret.Insert(db); err != nil {
		return Review{}, err
	}

	return ret, nil
}

// UpdateReview updates a review as a local action
func UpdateReview(db *DB, now time.Time, r model.Review) (Review, error) {
	prev, err := GetReview(db, r.UUID)
	if err != nil {
		return Review{}, err
	}

	r.UUID = prev.UUID
	r.GymUUID = prev.GymUUID
	r.CreatedAt = prev.CreatedAt

	if err := r.Validate(); err != nil {
		return Review{}, err
	}

	ret := Review{Review: r, Meta: dirtyMeta(prev.Meta, now)}
	if err := ret.Update(db); err != nil {
		return Review{}, err
	}

	return ret, nil
}

func childrenOf(db *DB, c model.Collection, uuid string) (map[model.Collection][]string, error) {
	var queries map[model.Collection]string

	switch c {
	case model.CollectionGyms:
		queries = map[model.Collection]string{
			model.CollectionSchedules: "SELECT uuid FROM weekly_schedules WHERE gym_uuid = ? AND deleted = false",
			model.CollectionReviews:   "SELECT uuid FROM reviews WHERE gym_uuid = ? AND deleted = false",
		}
	case model.CollectionSchedules:
		queries = map[model.Collection]string{
			model.CollectionTimeSlots: "SELECT uuid FROM time_slots WHERE schedule_uuid = ? AND deleted = false",
		}
	default:
		return nil, nil
	}

	ret := map[model.Collection][]string{}
	for child, query := range queries {
		rows, err := db.Query(query, uuid)
		if err != nil {
			return nil, errors.Wrapf(err, "querying children in %s", child)
		}

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, errors.Wrapf(err, "scanning child in %s", child)
			}
			ret[child] = append(ret[child], id)
		}
		rows.Close()
	}

	return ret, nil
}

// Delete deletes a record as a local action, along with its children. Records
// that were never confirmed on the remote are removed outright. The others
// become tombstones that the next sync mirrors to the remote.
func Delete(db *DB, now time.Time, c model.Collection, uuid string) error {
	r, err := GetRecord(db, c, uuid)
	if err != nil {
		return err
	}
	if r.Deleted {
		return nil
	}

	children, err := childrenOf(db, c, uuid)
	if err != nil {
		return err
	}
	for child, ids := range children {
		for _, id := range ids {
			if err := Delete(db, now, child, id); err != nil {
				return errors.Wrapf(err, "deleting child %s", id)
			}
		}
	}

	if c == model.CollectionTimeSlots {
		slot, err := GetTimeSlot(db, uuid)
		if err != nil {
			return err
		}
		if err := touchSchedule(db, now, slot.ScheduleUUID); err != nil {
			return err
		}
	}

	if !r.Synced {
		return Expunge(db, c, uuid)
	}

	table, err := TableName(c)
	if err != nil {
		return err
	}

	_, err = db.Exec(fmt.Sprintf("UPDATE %s SET deleted = true, dirty = true, edited_at = ? WHERE uuid = ?", table), toUnix(now), uuid)
	if err != nil {
		return errors.Wrapf(err, "marking %s %s deleted", table, uuid)
	}

	return nil
}

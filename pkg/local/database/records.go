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

	"github.com/matfinder/matsync/pkg/model"
	"github.com/pkg/errors"
)

var tables = map[model.Collection]string{
	model.CollectionGyms:      "gyms",
	model.CollectionReviews:   "reviews",
	model.CollectionSchedules: "weekly_schedules",
	model.CollectionTimeSlots: "time_slots",
}

// TableName returns the local table holding the collection
func TableName(c model.Collection) (string, error) {
	t, ok := tables[c]
	if !ok {
		return "", errors.Errorf("no table for collection '%s'", c)
	}

	return t, nil
}

// Record is the sync bookkeeping of a local record of any collection
type Record struct {
	UUID string
	Stub bool
	Meta
}

// ListRecords returns the bookkeeping of every record in the collection,
// tombstones included, ordered by uuid
func ListRecords(db *DB, c model.Collection) ([]Record, error) {
	table, err := TableName(c)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(fmt.Sprintf("SELECT uuid, stub, edited_at, remote_updated_at, dirty, synced, deleted FROM %s ORDER BY uuid", table))
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", table)
	}
	defer rows.Close()

	ret := []Record{}
	for rows.Next() {
		var r Record
		var editedAt, remoteAt int64

		if err := rows.Scan(&r.UUID, &r.Stub, &editedAt, &remoteAt, &r.Dirty, &r.Synced, &r.Deleted); err != nil {
			return nil, errors.Wrapf(err, "scanning %s", table)
		}

		r.EditedAt = fromUnix(editedAt)
		r.RemoteUpdatedAt = fromUnix(remoteAt)
		ret = append(ret, r)
	}

	return ret, rows.Err()
}

// GetRecord returns the bookkeeping of a single record
func GetRecord(db *DB, c model.Collection, uuid string) (Record, error) {
	table, err := TableName(c)
	if err != nil {
		return Record{}, err
	}

	var r Record
	var editedAt, remoteAt int64

	err = db.QueryRow(fmt.Sprintf("SELECT uuid, stub, edited_at, remote_updated_at, dirty, synced, deleted FROM %s WHERE uuid = ?", table), uuid).
		Scan(&r.UUID, &r.Stub, &editedAt, &remoteAt, &r.Dirty, &r.Synced, &r.Deleted)
	if err != nil {
		return r, notFound(err, table, uuid)
	}

	r.EditedAt = fromUnix(editedAt)
	r.RemoteUpdatedAt = fromUnix(remoteAt)

	return r, nil
}

// MarkSynced records that the local version of the record was pushed and is
// now the remote version
func MarkSynced(db *DB, c model.Collection, uuid string, remoteUpdatedAt time.Time) error {
	table, err := TableName(c)
	if err != nil {
		return err
	}

	_, err = db.Exec(fmt.Sprintf("UPDATE %s SET dirty = false, synced = true, remote_updated_at = ? WHERE uuid = ?", table),
		toUnix(remoteUpdatedAt), uuid)
	if err != nil {
		return errors.Wrapf(err, "marking %s %s synced", table, uuid)
	}

	return nil
}

// MarkConfirmed records that the record is known to exist on the remote
// without changing its dirty state
func MarkConfirmed(db *DB, c model.Collection, uuid string) error {
	table, err := TableName(c)
	if err != nil {
		return err
	}

	if _, err := db.Exec(fmt.Sprintf("UPDATE %s SET synced = true WHERE uuid = ?", table), uuid); err != nil {
		return errors.Wrapf(err, "marking %s %s confirmed", table, uuid)
	}

	return nil
}

// Expunge hard-deletes the record from the local store
func Expunge(db *DB, c model.Collection, uuid string) error {
	table, err := TableName(c)
	if err != nil {
		return err
	}

	if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE uuid = ?", table), uuid); err != nil {
		return errors.Wrapf(err, "expunging %s %s locally", table, uuid)
	}

	return nil
}

// Stats summarizes the sync state of a collection
type Stats struct {
	Total    int
	Dirty    int
	Unsynced int
	Deleted  int
	Stubs    int
}

// CollectionStats returns the sync state summary of the collection
func CollectionStats(db *DB, c model.Collection) (Stats, error) {
	table, err := TableName(c)
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	err = db.QueryRow(fmt.Sprintf(`SELECT
			count(*),
			coalesce(sum(CASE WHEN dirty THEN 1 ELSE 0 END), 0),
			coalesce(sum(CASE WHEN synced THEN 0 ELSE 1 END), 0),
			coalesce(sum(CASE WHEN deleted THEN 1 ELSE 0 END), 0),
			coalesce(sum(CASE WHEN stub THEN 1 ELSE 0 END), 0)
		FROM %s`, table)).Scan(&s.Total, &s.Dirty, &s.Unsynced, &s.Deleted, &s.Stubs)
	if err != nil {
		return s, errors.Wrapf(err, "counting %s", table)
	}

	return s, nil
}

// Stubs lists placeholder records that nothing live refers to
type Stubs struct {
	Schedules []string
	Gyms      []string
}

// Len returns the number of placeholders
func (s Stubs) Len() int {
	return len(s.Schedules) + len(s.Gyms)
}

func queryUUIDs(db *DB, query string) ([]string, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, err
		}

		uuids = append(uuids, uuid)
	}

	return uuids, rows.Err()
}

// orphanStubSchedules matches placeholder schedules without time slots
const orphanStubSchedules = `stub = true AND uuid NOT IN (SELECT schedule_uuid FROM time_slots)`

// UnreferencedStubs returns the placeholder schedules that no time slot refers
// to and the placeholder gyms that would be left unreferenced once those
// schedules are gone
func UnreferencedStubs(db *DB) (Stubs, error) {
	var ret Stubs
	var err error

	ret.Schedules, err = queryUUIDs(db, `SELECT uuid FROM weekly_schedules
		WHERE `+orphanStubSchedules+`
		ORDER BY uuid`)
	if err != nil {
		return ret, errors.Wrap(err, "querying unreferenced stub schedules")
	}

	ret.Gyms, err = queryUUIDs(db, `SELECT uuid FROM gyms
		WHERE stub = true
		AND uuid NOT IN (SELECT gym_uuid FROM reviews)
		AND uuid NOT IN (SELECT gym_uuid FROM weekly_schedules WHERE NOT (`+orphanStubSchedules+`))
		ORDER BY uuid`)
	if err != nil {
		return ret, errors.Wrap(err, "querying unreferenced stub gyms")
	}

	return ret, nil
}

// PruneStubs removes placeholder schedules and gyms that nothing live refers
// to and returns their uuids, schedules first
func PruneStubs(db *DB) ([]string, error) {
	stubs, err := UnreferencedStubs(db)
	if err != nil {
		return nil, err
	}

	var pruned []string
	for _, uuid := range stubs.Schedules {
		if err := Expunge(db, model.CollectionSchedules, uuid); err != nil {
			return nil, err
		}
		pruned = append(pruned, uuid)
	}
	for _, uuid := range stubs.Gyms {
		if err := Expunge(db, model.CollectionGyms, uuid); err != nil {
			return nil, err
		}
		pruned = append(pruned, uuid)
	}

	return pruned, nil
}

// HasLiveChildren reports whether any record that is not a tombstone refers to
// the given gym or schedule
func HasLiveChildren(db *DB, c model.Collection, uuid string) (bool, error) {
	children, err := childrenOf(db, c, uuid)
	if err != nil {
		return false, err
	}

	for _, ids := range children {
		if len(ids) > 0 {
			return true, nil
		}
	}

	return false, nil
}

// Demote turns a gym or schedule that disappeared from the remote into a
// placeholder, keeping the records that refer to it linked
func Demote(db *DB, c model.Collection, uuid string) error {
	if c != model.CollectionGyms && c != model.CollectionSchedules {
		return errors.Errorf("cannot demote a record of %s", c)
	}

	table, err := TableName(c)
	if err != nil {
		return err
	}

	if _, err := db.Exec(fmt.Sprintf("UPDATE %s SET stub = true, synced = false, dirty = false, remote_updated_at = 0 WHERE uuid = ?", table), uuid); err != nil {
		return errors.Wrapf(err, "demoting %s %s", table, uuid)
	}

	return nil
}

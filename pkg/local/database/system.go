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
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	// SystemLastSyncAt is the system key for the time the last sync run finished
	SystemLastSyncAt = "last_sync_at"
	// SystemLastSyncOutcome is the system key for the outcome of the last sync run
	SystemLastSyncOutcome = "last_sync_outcome"
)

// GetSystem returns the value of the system key and whether it is set
func GetSystem(db *DB, key string) (string, bool, error) {
	var val string

	err := db.QueryRow("SELECT value FROM system WHERE key = ?", key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "finding system key %s", key)
	}

	return val, true, nil
}

// SetSystem sets the value of the system key
func SetSystem(db *DB, key, val string) error {
	_, err := db.Exec(`INSERT INTO system (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, val)
	if err != nil {
		return errors.Wrapf(err, "setting system key %s", key)
	}

	return nil
}

// GetLastSyncAt returns the time the last sync run finished, or the zero time
func GetLastSyncAt(db *DB) (time.Time, error) {
	val, ok, err := GetSystem(db, SystemLastSyncAt)
	if err != nil || !ok {
		return time.Time{}, err
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing %s", SystemLastSyncAt)
	}

	return fromUnix(n), nil
}

// SetLastSyncAt records the time the last sync run finished
func SetLastSyncAt(db *DB, t time.Time) error {
	return SetSystem(db, SystemLastSyncAt, strconv.FormatInt(toUnix(t), 10))
}

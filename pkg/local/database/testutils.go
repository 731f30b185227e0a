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
	"fmt"
	"testing"

	"github.com/matfinder/matsync/pkg/identity"
	"github.com/pkg/errors"
)

// MustScan scans the given row and fails a test in case of any errors
func MustScan(t *testing.T, message string, row *sql.Row, args ...interface{}) {
	t.Helper()

	err := row.Scan(args...)
	if err != nil {
		t.Fatal(errors.Wrap(errors.Wrap(err, "scanning a row"), message))
	}
}

// MustExec executes the given SQL query and fails a test if an error occurs
func MustExec(t *testing.T, message string, db *DB, query string, args ...interface{}) sql.Result {
	t.Helper()

	result, err := db.Exec(query, args...)
	if err != nil {
		t.Fatal(errors.Wrap(errors.Wrap(err, "executing sql"), message))
	}

	return result
}

// InitTestMemoryDB initializes an in-memory test database with the latest schema
func InitTestMemoryDB(t *testing.T) *DB {
	t.Helper()

	id, err := identity.New()
	if err != nil {
		t.Fatal(errors.Wrap(err, "generating test database name"))
	}

	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", id))
	if err != nil {
		t.Fatal(errors.Wrap(err, "opening in-memory database"))
	}

	if _, err := Migrate(db.Conn); err != nil {
		t.Fatal(errors.Wrap(err, "migrating test database"))
	}

	t.Cleanup(func() { db.Close() })

	return db
}

// MustCount returns the number of rows in the table matching the optional
// where clause
func MustCount(t *testing.T, db *DB, table, where string, args ...interface{}) int {
	t.Helper()

	query := fmt.Sprintf("SELECT count(*) FROM %s", table)
	if where != "" {
		query = fmt.Sprintf("%s WHERE %s", query, where)
	}

	var count int
	MustScan(t, fmt.Sprintf("counting %s", table), db.QueryRow(query, args...), &count)

	return count
}

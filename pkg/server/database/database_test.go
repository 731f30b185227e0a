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
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/google/uuid"
	"github.com/matfinder/matsync/pkg/assert"
	"github.com/matfinder/matsync/pkg/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), log.LevelError)
	if err != nil {
		t.Fatal(errors.Wrap(err, "opening test database"))
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// unsortedFS wraps fstest.MapFS to return entries in reverse order
type unsortedFS struct {
	fstest.MapFS
}

func (u unsortedFS) ReadDir(name string) ([]fs.DirEntry, error) {
	entries, err := u.MapFS.ReadDir(name)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}

func TestGetDBLogLevel(t *testing.T) {
	testCases := []struct {
		level    string
		expected logger.LogLevel
	}{
		{level: log.LevelDebug, expected: logger.Info},
		{level: log.LevelInfo, expected: logger.Silent},
		{level: log.LevelWarn, expected: logger.Warn},
		{level: log.LevelError, expected: logger.Error},
		{level: "", expected: logger.Silent},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			assert.Equal(t, getDBLogLevel(tc.level), tc.expected, "log level mismatch")
		})
	}
}

func TestOpen_unknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", log.LevelError)
	assert.Equal(t, errors.Cause(err), ErrUnknownDriver, "error mismatch")
}

func TestParseMigrationFilename(t *testing.T) {
	testCases := []struct {
		name    string
		version int
		valid   bool
	}{
		{name: "001-init.sql", version: 1, valid: true},
		{name: "120-add-index.sql", version: 120, valid: true},
		{name: "001-init.txt", valid: false},
		{name: "001.sql", valid: false},
		{name: "001-.sql", valid: false},
		{name: "1-init.sql", valid: false},
		{name: "abc-init.sql", valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := parseMigrationFilename(tc.name)
			if tc.valid {
				assert.Equal(t, err, nil, "unexpected error")
				assert.Equal(t, v, tc.version, "version mismatch")
			} else {
				assert.NotEqual(t, err, nil, "expected an error")
			}
		})
	}
}

func TestMigrate_ordering(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("CREATE TABLE entries (value INTEGER)").Error; err != nil {
		t.Fatal(err)
	}

	fsys := unsortedFS{fstest.MapFS{
		"001-first.sql":  &fstest.MapFile{Data: []byte("INSERT INTO entries (value) VALUES (1);")},
		"002-second.sql": &fstest.MapFile{Data: []byte("INSERT INTO entries (value) VALUES (2);")},
		"003-third.sql":  &fstest.MapFile{Data: []byte("INSERT INTO entries (value) VALUES (3);")},
	}}

	if err := migrate(db, fsys); err != nil {
		t.Fatal(errors.Wrap(err, "migrating"))
	}
	if err := migrate(db, fsys); err != nil {
		t.Fatal(errors.Wrap(err, "migrating again"))
	}

	var values []int
	if err := db.Raw("SELECT value FROM entries ORDER BY rowid").Scan(&values).Error; err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, values, []int{1, 2, 3}, "migrations should run once, in order")
}

func TestMigrate_duplicateVersion(t *testing.T) {
	db := openTestDB(t)

	fsys := fstest.MapFS{
		"001-a.sql": &fstest.MapFile{Data: []byte("SELECT 1;")},
		"001-b.sql": &fstest.MapFile{Data: []byte("SELECT 1;")},
	}

	err := migrate(db, fsys)
	assert.NotEqual(t, err, nil, "duplicate versions should fail")
}

func TestMigrate_emptyFile(t *testing.T) {
	db := openTestDB(t)

	fsys := fstest.MapFS{
		"001-empty.sql": &fstest.MapFile{Data: []byte("  \n")},
	}

	err := migrate(db, fsys)
	assert.NotEqual(t, err, nil, "empty migration should fail")
}

func TestInit(t *testing.T) {
	db := openTestDB(t)

	if err := InitSchema(db); err != nil {
		t.Fatal(err)
	}
	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}

	var version int
	if err := db.Raw("SELECT MAX(version) FROM schema_migrations").Scan(&version).Error; err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, version, 1, "schema version mismatch")

	doc := Document{Collection: "gyms", DocID: "g1", Data: "{}"}
	if err := db.Create(&doc).Error; err != nil {
		t.Fatal(err)
	}

	dup := Document{Collection: "gyms", DocID: "g1", Data: "{}"}
	err := db.Create(&dup).Error
	assert.NotEqual(t, err, nil, "duplicate document id should violate the unique index")

	other := Document{Collection: "reviews", DocID: "g1", Data: "{}"}
	if err := db.Create(&other).Error; err != nil {
		t.Fatal(errors.Wrap(err, "same id in another collection should be allowed"))
	}
}

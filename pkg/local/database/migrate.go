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

	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
)

// MigrationTableName is the name of the table that keeps track of applied migrations
const MigrationTableName = "schema_migrations"

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "001-create-catalogue",
			Up: []string{
				`CREATE TABLE gyms
				(
					uuid text PRIMARY KEY,
					name text NOT NULL DEFAULT '',
					location text NOT NULL DEFAULT '',
					country text NOT NULL DEFAULT '',
					latitude real NOT NULL DEFAULT 0,
					longitude real NOT NULL DEFAULT 0,
					website text NOT NULL DEFAULT '',
					created_by text NOT NULL DEFAULT '',
					created_at integer NOT NULL DEFAULT 0,
					last_modified_by text NOT NULL DEFAULT '',
					last_modified_at integer NOT NULL DEFAULT 0,
					edited_at integer NOT NULL DEFAULT 0,
					remote_updated_at integer NOT NULL DEFAULT 0,
					dirty bool NOT NULL DEFAULT false,
					synced bool NOT NULL DEFAULT false,
					deleted bool NOT NULL DEFAULT false,
					stub bool NOT NULL DEFAULT false
				)`,
				`CREATE TABLE weekly_schedules
				(
					uuid text PRIMARY KEY,
					gym_uuid text NOT NULL,
					day text NOT NULL DEFAULT '',
					name text NOT NULL DEFAULT '',
					created_at integer NOT NULL DEFAULT 0,
					edited_at integer NOT NULL DEFAULT 0,
					remote_updated_at integer NOT NULL DEFAULT 0,
					dirty bool NOT NULL DEFAULT false,
					synced bool NOT NULL DEFAULT false,
					deleted bool NOT NULL DEFAULT false,
					stub bool NOT NULL DEFAULT false
				)`,
				`CREATE TABLE time_slots
				(
					uuid text PRIMARY KEY,
					schedule_uuid text NOT NULL,
					time text NOT NULL,
					type text NOT NULL DEFAULT '',
					gi bool NOT NULL DEFAULT false,
					no_gi bool NOT NULL DEFAULT false,
					open_mat bool NOT NULL DEFAULT false,
					restrictions bool NOT NULL DEFAULT false,
					restriction_description text NOT NULL DEFAULT '',
					good_for_beginners bool NOT NULL DEFAULT false,
					kids bool NOT NULL DEFAULT false,
					created_at integer NOT NULL DEFAULT 0,
					edited_at integer NOT NULL DEFAULT 0,
					remote_updated_at integer NOT NULL DEFAULT 0,
					dirty bool NOT NULL DEFAULT false,
					synced bool NOT NULL DEFAULT false,
					deleted bool NOT NULL DEFAULT false,
					stub bool NOT NULL DEFAULT false
				)`,
				`CREATE TABLE reviews
				(
					uuid text PRIMARY KEY,
					gym_uuid text NOT NULL,
					stars integer NOT NULL,
					body text NOT NULL DEFAULT '',
					author text NOT NULL DEFAULT '',
					created_at integer NOT NULL DEFAULT 0,
					edited_at integer NOT NULL DEFAULT 0,
					remote_updated_at integer NOT NULL DEFAULT 0,
					dirty bool NOT NULL DEFAULT false,
					synced bool NOT NULL DEFAULT false,
					deleted bool NOT NULL DEFAULT false,
					stub bool NOT NULL DEFAULT false
				)`,
				`CREATE TABLE system
				(
					key text PRIMARY KEY,
					value text NOT NULL
				)`,
				`CREATE INDEX idx_weekly_schedules_gym_uuid ON weekly_schedules(gym_uuid)`,
				`CREATE INDEX idx_time_slots_schedule_uuid ON time_slots(schedule_uuid)`,
				`CREATE INDEX idx_reviews_gym_uuid ON reviews(gym_uuid)`,
			},
			Down: []string{
				"DROP TABLE system",
				"DROP TABLE reviews",
				"DROP TABLE time_slots",
				"DROP TABLE weekly_schedules",
				"DROP TABLE gyms",
			},
		},
		{
			Id: "002-index-dirty",
			Up: []string{
				`CREATE INDEX idx_gyms_dirty ON gyms(dirty)`,
				`CREATE INDEX idx_weekly_schedules_dirty ON weekly_schedules(dirty)`,
				`CREATE INDEX idx_time_slots_dirty ON time_slots(dirty)`,
				`CREATE INDEX idx_reviews_dirty ON reviews(dirty)`,
			},
			Down: []string{
				"DROP INDEX idx_gyms_dirty",
				"DROP INDEX idx_weekly_schedules_dirty",
				"DROP INDEX idx_time_slots_dirty",
				"DROP INDEX idx_reviews_dirty",
			},
		},
	},
}

func migrationSet() migrate.MigrationSet {
	return migrate.MigrationSet{TableName: MigrationTableName}
}

// Migrate brings the schema up to date and returns the number of migrations applied
func Migrate(conn *sql.DB) (int, error) {
	n, err := migrationSet().Exec(conn, "sqlite3", migrations, migrate.Up)
	if err != nil {
		return n, errors.Wrap(err, "running migrations")
	}

	return n, nil
}

// PendingMigrations returns the ids of the migrations that have not been applied
func PendingMigrations(conn *sql.DB) ([]string, error) {
	planned, _, err := migrationSet().PlanMigration(conn, "sqlite3", migrations, migrate.Up, 0)
	if err != nil {
		return nil, errors.Wrap(err, "planning migrations")
	}

	ret := []string{}
	for _, m := range planned {
		ret = append(ret, m.Id)
	}

	return ret, nil
}

// OpenAndMigrate opens the database at the given path and migrates it
func OpenAndMigrate(dbPath string) (*DB, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := Migrate(db.Conn); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

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
	"os"
	"path/filepath"

	"github.com/matfinder/matsync/pkg/log"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	// DriverSQLite stores documents in a SQLite file
	DriverSQLite = "sqlite"
	// DriverPostgres stores documents in PostgreSQL
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned for an unsupported database driver
var ErrUnknownDriver = errors.New("unknown database driver")

// getDBLogLevel maps the application log level to the gorm log level
func getDBLogLevel(level string) logger.LogLevel {
	switch level {
	case log.LevelDebug:
		return logger.Info
	case log.LevelWarn:
		return logger.Warn
	case log.LevelError:
		return logger.Error
	default:
		return logger.Silent
	}
}

// InitSchema migrates database schema to reflect the latest model definition
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(&Document{}); err != nil {
		return errors.Wrap(err, "auto migrating")
	}

	return nil
}

// Open initializes the database connection. For SQLite the dsn is a file path
// and its directory is created if missing.
func Open(driver, dsn, logLevel string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(getDBLogLevel(logLevel)),
	}

	var dialector gorm.Dialector

	switch driver {
	case DriverSQLite, "":
		if dsn != ":memory:" && !isURI(dsn) {
			dir := filepath.Dir(dsn)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.Wrapf(err, "creating database directory at %s", dir)
			}
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "'%s'", driver)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "opening database connection")
	}

	return db, nil
}

func isURI(dsn string) bool {
	return len(dsn) > 5 && dsn[:5] == "file:"
}

// Init opens the database and brings its schema up to date
func Init(driver, dsn, logLevel string) (*gorm.DB, error) {
	db, err := Open(driver, dsn, logLevel)
	if err != nil {
		return nil, err
	}

	if err := InitSchema(db); err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, errors.Wrap(err, "running migrations")
	}

	return db, nil
}

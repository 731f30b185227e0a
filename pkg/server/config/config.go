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

package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/matfinder/matsync/pkg/dirs"
	"github.com/matfinder/matsync/pkg/server/database"
	"github.com/pkg/errors"
)

const (
	// AppEnvProduction represents an app environment for production.
	AppEnvProduction string = "PRODUCTION"
	// DefaultDBDir is the default directory name for server data
	DefaultDBDir = "matsync"
	// DefaultDBFilename is the default database filename
	DefaultDBFilename = "server.db"
)

var (
	// DefaultDBPath is the default path to the database file
	DefaultDBPath = filepath.Join(dirs.DataHome, DefaultDBDir, DefaultDBFilename)
)

var (
	// ErrDBMissingDSN is an error for an incomplete configuration missing the database location
	ErrDBMissingDSN = errors.New("DB DSN is empty")
	// ErrPortInvalid is an error for an incomplete configuration with invalid port
	ErrPortInvalid = errors.New("Invalid Port")
	// ErrAPIKeyMissing is an error for a production configuration without an API key
	ErrAPIKeyMissing = errors.New("API key is required in production")
)

func readBoolEnv(name string) bool {
	return os.Getenv(name) == "true"
}

// getOrEnv returns value if non-empty, otherwise env var, otherwise default
func getOrEnv(value, envKey, defaultVal string) string {
	if value != "" {
		return value
	}
	if env := os.Getenv(envKey); env != "" {
		return env
	}
	return defaultVal
}

// Config is an application configuration
type Config struct {
	AppEnv           string
	Port             string
	DBDriver         string
	DBDSN            string
	APIKey           string
	DisableRateLimit bool
	LogLevel         string
}

// Params are the configuration parameters for creating a new Config
type Params struct {
	AppEnv           string
	Port             string
	DBDriver         string
	DBDSN            string
	APIKey           string
	DisableRateLimit bool
	LogLevel         string
}

// New constructs and returns a new validated config.
// Empty string params will fall back to environment variables and defaults.
func New(p Params) (Config, error) {
	c := Config{
		AppEnv:           getOrEnv(p.AppEnv, "APP_ENV", AppEnvProduction),
		Port:             getOrEnv(p.Port, "PORT", "3001"),
		DBDriver:         getOrEnv(p.DBDriver, "DB_DRIVER", database.DriverSQLite),
		DBDSN:            getOrEnv(p.DBDSN, "DB_DSN", DefaultDBPath),
		APIKey:           getOrEnv(p.APIKey, "API_KEY", ""),
		DisableRateLimit: p.DisableRateLimit || readBoolEnv("DISABLE_RATE_LIMIT"),
		LogLevel:         getOrEnv(p.LogLevel, "LOG_LEVEL", "info"),
	}

	if err := validate(c); err != nil {
		return Config{}, err
	}

	return c, nil
}

// IsProd checks if the app environment is configured to be production.
func (c Config) IsProd() bool {
	return c.AppEnv == AppEnvProduction
}

func validate(c Config) error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port <= 0 || port > 65535 {
		return errors.Wrapf(ErrPortInvalid, "'%s'", c.Port)
	}

	switch c.DBDriver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		return errors.Wrapf(database.ErrUnknownDriver, "'%s'", c.DBDriver)
	}

	if c.DBDSN == "" {
		return ErrDBMissingDSN
	}
	if c.IsProd() && c.APIKey == "" {
		return ErrAPIKeyMissing
	}

	return nil
}

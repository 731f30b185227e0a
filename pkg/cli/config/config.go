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
	"time"

	"github.com/matfinder/matsync/pkg/cli/consts"
	"github.com/matfinder/matsync/pkg/log"
	"github.com/matfinder/matsync/pkg/sync"
	"github.com/pkg/errors"
	"github.com/robfig/cron"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultEndpoint is the document server endpoint used when none is configured
	DefaultEndpoint = "http://localhost:3001/api"
	// DefaultSchedule is the cron spec used by the watch command
	DefaultSchedule = "@every 15m"
)

// Config holds matsync configuration
type Config struct {
	Endpoint    string        `yaml:"endpoint"`
	APIKey      string        `yaml:"apiKey"`
	DBPath      string        `yaml:"dbPath,omitempty"`
	Concurrency int           `yaml:"concurrency"`
	RunTimeout  time.Duration `yaml:"runTimeout"`
	BatchSize   int           `yaml:"batchSize"`
	LogFile     string        `yaml:"logFile,omitempty"`
	LogLevel    string        `yaml:"logLevel"`
	Schedule    string        `yaml:"schedule"`
	MetricsAddr string        `yaml:"metricsAddr,omitempty"`
}

// Default returns the configuration written to a fresh config file
func Default() Config {
	d := sync.DefaultConfig()

	return Config{
		Endpoint:    DefaultEndpoint,
		Concurrency: d.Concurrency,
		RunTimeout:  d.RunTimeout,
		BatchSize:   d.BatchSize,
		LogLevel:    log.LevelInfo,
		Schedule:    DefaultSchedule,
	}
}

// GetPath returns the path to the config file inside the config home
func GetPath(configHome string) string {
	return filepath.Join(configHome, consts.DirName, consts.ConfigFilename)
}

// Read reads the config file. Keys missing from the file keep their default values.
func Read(path string) (Config, error) {
	ret := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return ret, errors.Wrap(err, "reading config file")
	}

	if err := yaml.Unmarshal(b, &ret); err != nil {
		return ret, errors.Wrap(err, "unmarshalling config")
	}

	return ret, nil
}

// Write writes the config to the config file
func Write(path string, cf Config) error {
	b, err := yaml.Marshal(cf)
	if err != nil {
		return errors.Wrap(err, "marshalling config into YAML")
	}

	if err := os.WriteFile(path, b, 0600); err != nil {
		return errors.Wrap(err, "writing the config file")
	}

	return nil
}

func validLevel(l string) bool {
	switch l {
	case log.LevelDebug, log.LevelInfo, log.LevelWarn, log.LevelError:
		return true
	}

	return false
}

// Validate checks the configuration for values the engine cannot run with
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.Concurrency < 1 {
		return errors.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.BatchSize < 1 {
		return errors.Errorf("batchSize must be at least 1, got %d", c.BatchSize)
	}
	if c.RunTimeout < 0 {
		return errors.Errorf("runTimeout must not be negative, got %s", c.RunTimeout)
	}
	if !validLevel(c.LogLevel) {
		return errors.Errorf("unknown logLevel %q", c.LogLevel)
	}
	if _, err := cron.Parse(c.Schedule); err != nil {
		return errors.Wrapf(err, "parsing schedule %q", c.Schedule)
	}

	return nil
}

// SyncConfig returns the engine configuration
func (c Config) SyncConfig() sync.Config {
	return sync.Config{
		Concurrency: c.Concurrency,
		RunTimeout:  c.RunTimeout,
		BatchSize:   c.BatchSize,
	}
}

// Redact returns a copy with secrets masked, suitable for printing
func (c Config) Redact() Config {
	if c.APIKey != "" {
		c.APIKey = "***"
	}

	return c
}

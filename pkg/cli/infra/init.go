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

// Package infra sets up the local infrastructure for matsync
package infra

import (
	"io"

	"github.com/matfinder/matsync/pkg/cli/config"
	"github.com/matfinder/matsync/pkg/cli/context"
	clilog "github.com/matfinder/matsync/pkg/cli/log"
	"github.com/matfinder/matsync/pkg/cli/utils"
	"github.com/matfinder/matsync/pkg/clock"
	"github.com/matfinder/matsync/pkg/dirs"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/log"
	"github.com/matfinder/matsync/pkg/remote/client"
	"github.com/matfinder/matsync/pkg/sync"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RunEFunc is a function type of matsync commands
type RunEFunc func(*cobra.Command, []string) error

// Options are values given on the command line that take precedence over the
// config file
type Options struct {
	DBPath   string
	Endpoint string
}

func defaultPaths() context.Paths {
	return context.Paths{
		Home:   dirs.Home,
		Config: dirs.ConfigHome,
		Data:   dirs.DataHome,
	}
}

// initConfigFile populates a new config file if it does not exist yet
func initConfigFile(path string) error {
	ok, err := utils.FileExists(path)
	if err != nil {
		return errors.Wrap(err, "checking if config exists")
	}
	if ok {
		return nil
	}

	if err := config.Write(path, config.Default()); err != nil {
		return errors.Wrap(err, "writing config")
	}

	return nil
}

func loadConfig(paths context.Paths, opts Options) (config.Config, error) {
	path := config.GetPath(paths.Config)
	if err := initConfigFile(path); err != nil {
		return config.Config{}, errors.Wrap(err, "generating the config file")
	}

	cf, err := config.Read(path)
	if err != nil {
		return cf, errors.Wrap(err, "reading config")
	}

	if opts.Endpoint != "" {
		cf.Endpoint = opts.Endpoint
	}
	if opts.DBPath != "" {
		cf.DBPath = opts.DBPath
	}
	if cf.DBPath == "" {
		cf.DBPath = context.DBPath(paths)
	}
	if cf.LogFile == "" {
		cf.LogFile = context.LogPath(paths)
	}

	if err := cf.Validate(); err != nil {
		return cf, errors.Wrap(err, "invalid config")
	}

	return cf, nil
}

// newLogWriter returns a size-rotated writer for the structured log
func newLogWriter(path string) (io.WriteCloser, error) {
	if err := utils.EnsureParentDir(path); err != nil {
		return nil, errors.Wrap(err, "creating log directory")
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
	}, nil
}

func newRegistry() (*prometheus.Registry, *sync.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	return reg, sync.NewMetrics(reg)
}

// Init initializes the matsync environment and returns a new context
func Init(versionTag string, opts Options) (*context.Ctx, error) {
	paths := defaultPaths()
	if err := context.InitDirs(paths); err != nil {
		return nil, errors.Wrap(err, "initializing directories")
	}

	return initWithPaths(versionTag, paths, opts)
}

func initWithPaths(versionTag string, paths context.Paths, opts Options) (*context.Ctx, error) {
	cf, err := loadConfig(paths, opts)
	if err != nil {
		return nil, err
	}

	w, err := newLogWriter(cf.LogFile)
	if err != nil {
		return nil, errors.Wrap(err, "opening log file")
	}
	log.SetOutput(w)
	log.SetLevel(cf.LogLevel)

	if err := utils.EnsureParentDir(cf.DBPath); err != nil {
		return nil, errors.Wrap(err, "creating database directory")
	}
	db, err := database.OpenAndMigrate(cf.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening the database")
	}

	remote := client.New(cf.Endpoint, cf.APIKey)
	remote.Version = versionTag
	reg, metrics := newRegistry()

	ctx := context.Ctx{
		Paths:     paths,
		Version:   versionTag,
		Config:    cf,
		DB:        db,
		Remote:    remote,
		Prober:    remote,
		Clock:     clock.New(),
		Registry:  reg,
		Metrics:   metrics,
		LogWriter: w,
	}

	clilog.Debug("context: %+v\n", context.Redact(ctx))
	log.WithFields(log.Fields{
		"version":  versionTag,
		"endpoint": cf.Endpoint,
		"db_path":  cf.DBPath,
	}).Debug("initialized")

	return &ctx, nil
}

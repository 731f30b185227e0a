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

package context

import (
	"io"

	"github.com/matfinder/matsync/pkg/cli/config"
	"github.com/matfinder/matsync/pkg/clock"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/remote"
	"github.com/matfinder/matsync/pkg/status"
	"github.com/matfinder/matsync/pkg/sync"
	"github.com/prometheus/client_golang/prometheus"
)

// Paths contain directory definitions
type Paths struct {
	Home   string
	Config string
	Data   string
}

// Ctx holds the information of the current runtime
type Ctx struct {
	Paths   Paths
	Version string
	Config  config.Config
	DB      *database.DB
	Remote  remote.Store
	Prober  remote.Prober
	Clock   clock.Clock

	Registry *prometheus.Registry
	Metrics  *sync.Metrics

	// LogWriter receives the structured log and is closed with the context
	LogWriter io.WriteCloser
}

// Close releases the database and the log file
func (ctx Ctx) Close() error {
	var err error
	if ctx.DB != nil {
		err = ctx.DB.Close()
	}
	if ctx.LogWriter != nil {
		if cerr := ctx.LogWriter.Close(); err == nil {
			err = cerr
		}
	}

	return err
}

// Redact replaces private information from the context with placeholder values
func Redact(ctx Ctx) Ctx {
	ctx.Config = ctx.Config.Redact()

	return ctx
}

// NewSyncer builds a syncer over the context's stores that reports to r
func (ctx Ctx) NewSyncer(r status.Reporter) (*sync.Syncer, error) {
	return sync.New(sync.Params{
		DB:       ctx.DB,
		Remote:   ctx.Remote,
		Prober:   ctx.Prober,
		Reporter: r,
		Clock:    ctx.Clock,
		Metrics:  ctx.Metrics,
		Config:   ctx.Config.SyncConfig(),
	})
}

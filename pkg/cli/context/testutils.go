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
	"testing"

	"github.com/matfinder/matsync/pkg/cli/config"
	"github.com/matfinder/matsync/pkg/clock"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/remote/memstore"
	"github.com/matfinder/matsync/pkg/sync"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// InitTestCtx initializes a test context with an in-memory database, an
// in-memory remote store and a temporary directory for all paths
func InitTestCtx(t *testing.T) Ctx {
	tmpDir := t.TempDir()
	paths := Paths{Home: tmpDir, Config: tmpDir, Data: tmpDir}
	if err := InitDirs(paths); err != nil {
		t.Fatal(errors.Wrap(err, "creating test directories"))
	}

	c := clock.NewMock()
	store := memstore.New(c)
	reg := prometheus.NewRegistry()

	return Ctx{
		Paths:    paths,
		Version:  "test",
		Config:   config.Default(),
		DB:       database.InitTestMemoryDB(t),
		Remote:   store,
		Prober:   store,
		Clock:    c,
		Registry: reg,
		Metrics:  sync.NewMetrics(reg),
	}
}

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

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/matfinder/matsync/pkg/cli/infra"
	"github.com/matfinder/matsync/pkg/cli/log"
	"github.com/pkg/errors"

	// commands
	"github.com/matfinder/matsync/pkg/cli/cmd/prune"
	"github.com/matfinder/matsync/pkg/cli/cmd/root"
	"github.com/matfinder/matsync/pkg/cli/cmd/status"
	"github.com/matfinder/matsync/pkg/cli/cmd/sync"
	"github.com/matfinder/matsync/pkg/cli/cmd/version"
	"github.com/matfinder/matsync/pkg/cli/cmd/watch"
)

// versionTag is populated during link time
var versionTag = "master"

// parseFlag extracts the value of a persistent flag from the command line
// regardless of where it appears (before or after the subcommand). Returns
// empty string if not found.
func parseFlag(args []string, name string) string {
	long := "--" + name
	for i, arg := range args {
		if strings.HasPrefix(arg, long+"=") {
			return strings.TrimPrefix(arg, long+"=")
		}
		if arg == long && i+1 < len(args) {
			return args[i+1]
		}
	}

	return ""
}

func main() {
	// The database and the client are set up before cobra parses the flags
	args := os.Args[1:]
	opts := infra.Options{
		DBPath:   parseFlag(args, "dbPath"),
		Endpoint: parseFlag(args, "endpoint"),
	}

	ctx, err := infra.Init(versionTag, opts)
	if err != nil {
		log.Errorf("%s\n", errors.Wrap(err, "initializing context").Error())
		os.Exit(1)
	}

	root.Register(sync.NewCmd(*ctx))
	root.Register(watch.NewCmd(*ctx))
	root.Register(status.NewCmd(*ctx))
	root.Register(prune.NewCmd(*ctx))
	root.Register(version.NewCmd(*ctx))

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = root.Execute(sigCtx)
	stop()
	ctx.Close()

	if err != nil {
		log.Errorf("%s\n", err.Error())
		os.Exit(1)
	}
}

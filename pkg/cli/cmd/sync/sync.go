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

package sync

import (
	"time"

	"github.com/matfinder/matsync/pkg/cli/context"
	"github.com/matfinder/matsync/pkg/cli/infra"
	"github.com/matfinder/matsync/pkg/cli/output"
	"github.com/matfinder/matsync/pkg/status"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// ErrPartial is returned when at least one collection did not fully sync
var ErrPartial = errors.New("some collections did not sync")

var example = `
  matsync sync
  matsync sync --timeout 30s`

var timeoutFlag time.Duration

// NewCmd returns a new sync command
func NewCmd(ctx context.Ctx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		Aliases: []string{"s"},
		Short:   "Reconcile the local database with the document server",
		Example: example,
		Args:    cobra.NoArgs,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.DurationVar(&timeoutFlag, "timeout", 0, "limit the run to the given duration instead of the configured runTimeout")

	return cmd
}

func newRun(ctx context.Ctx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if timeoutFlag > 0 {
			ctx.Config.RunTimeout = timeoutFlag
		}

		s, err := ctx.NewSyncer(status.Multi{output.Reporter{}, status.LogReporter{}})
		if err != nil {
			return errors.Wrap(err, "setting up the syncer")
		}

		report, err := s.Run(cmd.Context())
		output.Summary(report)
		if err != nil {
			return errors.Wrap(err, "syncing")
		}
		if report.Partial() {
			return ErrPartial
		}

		return nil
	}
}

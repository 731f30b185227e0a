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

package status

import (
	"github.com/matfinder/matsync/pkg/cli/context"
	"github.com/matfinder/matsync/pkg/cli/infra"
	"github.com/matfinder/matsync/pkg/cli/output"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// NewCmd returns a new status command
func NewCmd(ctx context.Ctx) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pending local changes and the result of the last sync",
		Args:  cobra.NoArgs,
		RunE:  newRun(ctx),
	}

	return cmd
}

func newRun(ctx context.Ctx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		lastSyncAt, err := database.GetLastSyncAt(ctx.DB)
		if err != nil {
			return errors.Wrap(err, "getting last sync time")
		}
		outcome, _, err := database.GetSystem(ctx.DB, database.SystemLastSyncOutcome)
		if err != nil {
			return errors.Wrap(err, "getting last sync outcome")
		}

		output.LastSync(lastSyncAt, ctx.Clock.Now(), outcome)

		for _, c := range model.Order() {
			s, err := database.CollectionStats(ctx.DB, c)
			if err != nil {
				return errors.Wrapf(err, "counting %s", c)
			}

			output.Stats(c, s)
		}

		return nil
	}
}

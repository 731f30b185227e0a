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

package prune

import (
	"fmt"
	"io"
	"os"

	"github.com/matfinder/matsync/pkg/cli/context"
	"github.com/matfinder/matsync/pkg/cli/infra"
	"github.com/matfinder/matsync/pkg/cli/log"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/prompt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var yesFlag bool

// NewCmd returns a new prune command
func NewCmd(ctx context.Ctx) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove placeholder gyms and schedules that nothing refers to",
		Args:  cobra.NoArgs,
		RunE:  newRun(ctx, os.Stdin),
	}

	f := cmd.Flags()
	f.BoolVarP(&yesFlag, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func confirm(in io.Reader, n int) (bool, error) {
	log.Askf("%s", prompt.FormatQuestion(question(n), false))

	ok, err := prompt.ReadYesNo(in, false)
	if err != nil {
		return false, errors.Wrap(err, "reading confirmation")
	}

	return ok, nil
}

func question(n int) string {
	if n == 1 {
		return "remove 1 placeholder?"
	}

	return fmt.Sprintf("remove %d placeholders?", n)
}

func newRun(ctx context.Ctx, in io.Reader) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		stubs, err := database.UnreferencedStubs(ctx.DB)
		if err != nil {
			return errors.Wrap(err, "finding placeholders")
		}
		if stubs.Len() == 0 {
			log.Infof("nothing to prune\n")
			return nil
		}

		for _, uuid := range stubs.Schedules {
			log.Plainf("weekly schedule %s\n", uuid)
		}
		for _, uuid := range stubs.Gyms {
			log.Plainf("gym %s\n", uuid)
		}

		if !yesFlag {
			ok, err := confirm(in, stubs.Len())
			if err != nil {
				return err
			}
			if !ok {
				log.Warnf("aborted by user\n")
				return nil
			}
		}

		pruned, err := database.PruneStubs(ctx.DB)
		if err != nil {
			return errors.Wrap(err, "pruning placeholders")
		}

		log.Successf("removed %d\n", len(pruned))

		return nil
	}
}

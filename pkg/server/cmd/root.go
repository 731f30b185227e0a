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

package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/matfinder/matsync/pkg/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var envFileFlag string

var root = &cobra.Command{
	Use:           "matserver",
	Short:         "matserver - document store for the mat finder catalogue",
	SilenceErrors: true,
	SilenceUsage:  true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnv(envFileFlag)
	},
}

func init() {
	root.PersistentFlags().StringVar(&envFileFlag, "envFile", ".env", "path to a .env file to load before reading the environment")

	root.AddCommand(newStartCmd())
	root.AddCommand(newVersionCmd())
}

// loadEnv loads variables from the file without overriding the environment.
// A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			log.WithFields(log.Fields{"path": path}).Debug("no env file")
			return nil
		}

		return errors.Wrapf(err, "loading env file %s", path)
	}

	return nil
}

// GetRoot returns the root command
func GetRoot() *cobra.Command {
	return root
}

// Execute is the main entry point for the CLI
func Execute() error {
	return root.Execute()
}

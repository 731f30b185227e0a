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

// Package dirs resolves the directories matsync keeps its files in
package dirs

import (
	"os"
	"os/user"

	"github.com/pkg/errors"
)

// envHome puts both the config and the data under one directory when set,
// taking precedence over the XDG variables
const envHome = "MATSYNC_HOME"

var (
	// Home is the home directory of the user
	Home string
	// ConfigHome is the directory under which the config file is kept
	ConfigHome string
	// DataHome is the directory under which the database and logs are kept
	DataHome string
)

func init() {
	Reload()
}

// Reload reads the environment again
func Reload() {
	initDirs()

	if dir := os.Getenv(envHome); dir != "" {
		ConfigHome = dir
		DataHome = dir
	}
}

func getHomeDir() string {
	usr, err := user.Current()
	if err != nil {
		panic(errors.Wrap(err, "getting home dir"))
	}

	return usr.HomeDir
}

func readPath(envName, defaultPath string) string {
	if dir := os.Getenv(envName); dir != "" {
		return dir
	}

	return defaultPath
}

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
	"testing"

	"github.com/matfinder/matsync/pkg/assert"
)

func TestParseFlag(t *testing.T) {
	testCases := []struct {
		args     []string
		name     string
		expected string
	}{
		{args: []string{"sync", "--dbPath=/tmp/a.db"}, name: "dbPath", expected: "/tmp/a.db"},
		{args: []string{"--dbPath", "/tmp/b.db", "status"}, name: "dbPath", expected: "/tmp/b.db"},
		{args: []string{"watch", "--endpoint", "http://x/api"}, name: "endpoint", expected: "http://x/api"},
		{args: []string{"sync", "--dbPath"}, name: "dbPath", expected: ""},
		{args: []string{"sync", "--dbPathX=/tmp/c.db"}, name: "dbPath", expected: ""},
		{args: nil, name: "dbPath", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, parseFlag(tc.args, tc.name), tc.expected, "value mismatch")
		})
	}
}

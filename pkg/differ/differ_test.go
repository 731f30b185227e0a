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

package differ

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/matfinder/matsync/pkg/assert"
)

func TestDiff(t *testing.T) {
	testCases := []struct {
		local    []string
		remote   []string
		expected Result
	}{
		{
			local:    nil,
			remote:   nil,
			expected: Result{LocalOnly: []string{}, RemoteOnly: []string{}, InBoth: []string{}},
		},
		{
			local:    []string{"c", "a", "b"},
			remote:   []string{"b", "d"},
			expected: Result{LocalOnly: []string{"a", "c"}, RemoteOnly: []string{"d"}, InBoth: []string{"b"}},
		},
		{
			local:    []string{"a", "a", "b"},
			remote:   []string{"b", "b", "c", "c"},
			expected: Result{LocalOnly: []string{"a"}, RemoteOnly: []string{"c"}, InBoth: []string{"b"}},
		},
		{
			local:    []string{"a"},
			remote:   []string{"a"},
			expected: Result{LocalOnly: []string{}, RemoteOnly: []string{}, InBoth: []string{"a"}},
		},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			result := Diff(tc.local, tc.remote)

			assert.DeepEqual(t, result, tc.expected, "result mismatch")
		})
	}
}

func TestDiff_InSync(t *testing.T) {
	assert.Equal(t, Diff([]string{"a", "b"}, []string{"b", "a", "a"}).InSync(), true, "same sets should be in sync")
	assert.Equal(t, Diff([]string{"a"}, []string{"b"}).InSync(), false, "different sets should not be in sync")
}

func randomIDs(r *rand.Rand, n int) []string {
	ret := make([]string, n)
	for i := range ret {
		ret[i] = fmt.Sprintf("id-%d", r.Intn(40))
	}

	return ret
}

func TestDiff_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		local := randomIDs(r, r.Intn(30))
		remote := randomIDs(r, r.Intn(30))

		result := Diff(local, remote)

		// local only and remote only never overlap
		remoteOnly := toSet(result.RemoteOnly)
		for _, id := range result.LocalOnly {
			if _, ok := remoteOnly[id]; ok {
				t.Fatalf("%s is both local only and remote only", id)
			}
		}

		// the three lists recover the union exactly once each
		seen := map[string]int{}
		for _, l := range [][]string{result.LocalOnly, result.RemoteOnly, result.InBoth} {
			for _, id := range l {
				seen[id]++
			}
		}

		union := toSet(append(append([]string{}, local...), remote...))
		assert.Equalf(t, len(seen), len(union), "union size mismatch")
		assert.Equalf(t, result.Len(), len(union), "result length mismatch")
		for id := range union {
			assert.Equalf(t, seen[id], 1, fmt.Sprintf("%s should appear exactly once", id))
		}

		// determinism
		assert.DeepEqual(t, Diff(local, remote), result, "diff should be deterministic")
	}
}

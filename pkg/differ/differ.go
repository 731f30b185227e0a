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

// Package differ computes which records of a collection exist only locally,
// only remotely, or in both stores. It performs no I/O.
package differ

import (
	"sort"
)

// Result is the outcome of comparing two identifier snapshots of one collection
type Result struct {
	// LocalOnly are identifiers to be uploaded
	LocalOnly []string
	// RemoteOnly are identifiers to be downloaded
	RemoteOnly []string
	// InBoth are identifiers present on both sides
	InBoth []string
}

// Len returns the number of distinct identifiers across both snapshots
func (r Result) Len() int {
	return len(r.LocalOnly) + len(r.RemoteOnly) + len(r.InBoth)
}

// InSync reports whether both snapshots hold the same identifiers
func (r Result) InSync() bool {
	return len(r.LocalOnly) == 0 && len(r.RemoteOnly) == 0
}

func toSet(ids []string) map[string]struct{} {
	ret := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		ret[id] = struct{}{}
	}

	return ret
}

func sortedKeys(m map[string]struct{}) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)

	return ret
}

// Diff compares the local and remote identifiers. Both inputs must already be
// normalized. They need not be sorted or deduplicated. The output lists are
// sorted, so the result is deterministic for a given pair of snapshots.
func Diff(local, remote []string) Result {
	localSet := toSet(local)
	remoteSet := toSet(remote)

	localOnly := map[string]struct{}{}
	inBoth := map[string]struct{}{}
	for id := range localSet {
		if _, ok := remoteSet[id]; ok {
			inBoth[id] = struct{}{}
		} else {
			localOnly[id] = struct{}{}
		}
	}

	remoteOnly := map[string]struct{}{}
	for id := range remoteSet {
		if _, ok := localSet[id]; !ok {
			remoteOnly[id] = struct{}{}
		}
	}

	return Result{
		LocalOnly:  sortedKeys(localOnly),
		RemoteOnly: sortedKeys(remoteOnly),
		InBoth:     sortedKeys(inBoth),
	}
}

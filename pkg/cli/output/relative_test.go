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

package output

import (
	"testing"
	"time"

	"github.com/matfinder/matsync/pkg/assert"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 4, 18, 30, 0, 0, time.UTC)

	testCases := []struct {
		t        time.Time
		expected string
	}{
		{t: now, expected: "just now"},
		{t: now.Add(-30 * time.Second), expected: "just now"},
		{t: now.Add(-time.Minute), expected: "1 minute ago"},
		{t: now.Add(-59 * time.Minute), expected: "59 minutes ago"},
		{t: now.Add(-3 * time.Hour), expected: "3 hours ago"},
		{t: now.Add(-25 * time.Hour), expected: "1 day ago"},
		{t: now.Add(-15 * 24 * time.Hour), expected: "2 weeks ago"},
		{t: now.Add(-60 * 24 * time.Hour), expected: "2 months ago"},
		{t: now.Add(-400 * 24 * time.Hour), expected: "1 year ago"},
		{t: now.Add(2 * 24 * time.Hour), expected: "in 2 days"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, relativeTime(tc.t, now), tc.expected, "result mismatch")
		})
	}
}

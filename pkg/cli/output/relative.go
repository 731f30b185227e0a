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
	"fmt"
	"time"
)

const (
	day  = 24 * time.Hour
	week = 7 * day
)

func pluralize(singular string, count int64) string {
	if count == 1 {
		return singular
	}

	return singular + "s"
}

// relativeTime describes t relative to now, e.g. "3 hours ago" or "in 2 days"
func relativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	past := diff >= 0
	if !past {
		diff = -diff
	}

	units := []struct {
		size time.Duration
		noun string
	}{
		{52 * week, "year"},
		{4 * week, "month"},
		{week, "week"},
		{day, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
	}

	for _, u := range units {
		n := int64(diff / u.size)
		if n < 1 {
			continue
		}

		text := fmt.Sprintf("%d %s", n, pluralize(u.noun, n))
		if past {
			return text + " ago"
		}

		return "in " + text
	}

	return "just now"
}

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

package model

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ParseDay returns the weekday named by s. Full and three-letter English names are
// accepted in any case.
func ParseDay(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return 0, errors.New("weekly schedule: day is required")
	}

	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}

	return 0, errors.Errorf("weekly schedule: unknown day '%s'", s)
}

// DayName returns the canonical name of the day s, or s unchanged if it is not a day
func DayName(s string) string {
	d, err := ParseDay(s)
	if err != nil {
		return s
	}

	return strings.ToLower(d.String())
}

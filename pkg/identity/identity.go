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

// Package identity normalizes record identifiers shared by the local and the
// remote store. The stores disagree on the textual form of a UUID (with or
// without hyphens, upper or lower case), so every comparison goes through
// Normalize first.
package identity

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInvalid is returned for identifiers that are not recoverable as a UUID
var ErrInvalid = errors.New("invalid identifier")

var (
	// scheduleNamespace scopes the ids derived from the legacy composite schedule key
	scheduleNamespace = uuid.MustParse("6f1c2a8e-3b7d-5e0a-9c41-2d8b7f3e6a10")
	// stubGymNamespace scopes the ids of placeholder gyms that have no known identity
	stubGymNamespace = uuid.MustParse("b4e9d1c7-0a52-5f3e-8d6b-91c0e2f4a7b3")
)

// Normalize returns the canonical form of the given identifier: a lower case,
// hyphenated UUID. Both "a1b2c3d4-..." and "A1B2C3D4..." forms are accepted, as are
// the braced and urn:uuid: forms.
func Normalize(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", errors.Wrap(ErrInvalid, "empty identifier")
	}

	u, err := uuid.Parse(trimmed)
	if err != nil {
		return "", errors.Wrapf(ErrInvalid, "'%s'", s)
	}

	return u.String(), nil
}

// MustNormalize is like Normalize but panics on malformed input. It is meant for
// constants and tests.
func MustNormalize(s string) string {
	id, err := Normalize(s)
	if err != nil {
		panic(err)
	}

	return id
}

// Equal reports whether a and b identify the same record. Malformed identifiers
// are never equal to anything.
func Equal(a, b string) bool {
	na, err := Normalize(a)
	if err != nil {
		return false
	}
	nb, err := Normalize(b)
	if err != nil {
		return false
	}

	return na == nb
}

// Compact returns the unhyphenated form of a valid identifier
func Compact(s string) (string, error) {
	id, err := Normalize(s)
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(id, "-", ""), nil
}

// NormalizeAll normalizes a batch of identifiers. Valid identifiers are returned
// in canonical form along with a map back to the raw form first seen for each.
// Malformed identifiers are returned separately so that callers can report them.
func NormalizeAll(ids []string) (valid []string, raw map[string]string, malformed []string) {
	raw = make(map[string]string, len(ids))

	for _, id := range ids {
		n, err := Normalize(id)
		if err != nil {
			malformed = append(malformed, id)
			continue
		}

		if _, ok := raw[n]; !ok {
			raw[n] = id
		}
		valid = append(valid, n)
	}

	return valid, raw, malformed
}

// New generates a new random identifier in canonical form
func New() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", errors.Wrap(err, "generating uuid")
	}

	return u.String(), nil
}

// ScheduleID derives the identifier of the weekly schedule for the given gym and
// day. Older clients keyed schedules by the gym name and the day; the derived id
// keeps such schedules in the same identity space as everything else.
func ScheduleID(gymKey, day string) string {
	key := strings.ToLower(strings.TrimSpace(gymKey)) + "|" + strings.ToLower(strings.TrimSpace(day))

	return uuid.NewSHA1(scheduleNamespace, []byte(key)).String()
}

// StubGymID derives the identifier of the placeholder gym synthesized for a
// schedule whose gym is unknown
func StubGymID(scheduleID string) string {
	return uuid.NewSHA1(stubGymNamespace, []byte(scheduleID)).String()
}

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

// Package document defines the typed remote representation of each record
// kind and the conversions between it and the local model.
package document

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/matfinder/matsync/pkg/identity"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/pkg/errors"
)

// Gym is the remote document of a gym
type Gym struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Location              string    `json:"location"`
	Country               string    `json:"country"`
	CreatedByUserID       string    `json:"createdByUserId"`
	CreatedTimestamp      time.Time `json:"createdTimestamp"`
	LastModifiedByUserID  string    `json:"lastModifiedByUserId"`
	LastModifiedTimestamp time.Time `json:"lastModifiedTimestamp"`
	Latitude              float64   `json:"latitude"`
	Longitude             float64   `json:"longitude"`
	GymWebsite            string    `json:"gymWebsite"`
}

// Review is the remote document of a review. The author is written under both
// name and userName; readers accept either.
type Review struct {
	ID               string    `json:"id"`
	Stars            int       `json:"stars"`
	Review           string    `json:"review"`
	Name             string    `json:"name"`
	UserName         string    `json:"userName"`
	CreatedTimestamp time.Time `json:"createdTimestamp"`
	IslandID         string    `json:"islandID"`
}

// WeeklySchedule is the remote document of a weekly schedule. It embeds a
// summary of its gym and, optionally, its time slots.
type WeeklySchedule struct {
	ID               string     `json:"id"`
	Day              string     `json:"day"`
	Name             string     `json:"name"`
	CreatedTimestamp time.Time  `json:"createdTimestamp"`
	PIsland          GymSummary `json:"pIsland"`
	MatTimes         []TimeSlot `json:"matTimes,omitempty"`
}

// TimeSlot is the remote document of a time slot
type TimeSlot struct {
	ID                     string      `json:"id"`
	Type                   string      `json:"type"`
	Time                   string      `json:"time"`
	Gi                     bool        `json:"gi"`
	NoGi                   bool        `json:"noGi"`
	OpenMat                bool        `json:"openMat"`
	Restrictions           bool        `json:"restrictions"`
	RestrictionDescription string      `json:"restrictionDescription"`
	GoodForBeginners       bool        `json:"goodForBeginners"`
	Kids                   bool        `json:"kids"`
	CreatedTimestamp       time.Time   `json:"createdTimestamp"`
	AppDayOfWeek           ScheduleRef `json:"appDayOfWeek"`
}

// GymSummary is the denormalized gym data embedded in other documents. On the
// wire it is either an object or a bare gym id.
type GymSummary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name,omitempty"`
	Location  string  `json:"location,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

type gymSummaryAlias GymSummary

// UnmarshalJSON accepts an object or a string
func (s *GymSummary) UnmarshalJSON(b []byte) error {
	if id, ok, err := unmarshalRef(b); ok || err != nil {
		*s = GymSummary{ID: id}
		return err
	}

	var a gymSummaryAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return errors.Wrap(err, "decoding gym summary")
	}
	*s = GymSummary(a)

	return nil
}

// IsZero reports whether the summary carries no information
func (s GymSummary) IsZero() bool {
	return s == GymSummary{}
}

// HasDetails reports whether the summary carries more than the gym id
func (s GymSummary) HasDetails() bool {
	return s.Name != "" || s.Location != "" || s.Country != "" || s.Latitude != 0 || s.Longitude != 0
}

// ScheduleRef is the reference from a time slot to its weekly schedule. On
// the wire it is either a bare schedule id or an embedded schedule summary.
type ScheduleRef struct {
	ID      string     `json:"id"`
	Day     string     `json:"day,omitempty"`
	Name    string     `json:"name,omitempty"`
	PIsland GymSummary `json:"pIsland"`
}

type scheduleRefAlias ScheduleRef

// UnmarshalJSON accepts an object or a string
func (r *ScheduleRef) UnmarshalJSON(b []byte) error {
	if id, ok, err := unmarshalRef(b); ok || err != nil {
		*r = ScheduleRef{ID: id}
		return err
	}

	var a scheduleRefAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return errors.Wrap(err, "decoding schedule reference")
	}
	*r = ScheduleRef(a)

	return nil
}

// MarshalJSON writes a bare id when the reference carries nothing else
func (r ScheduleRef) MarshalJSON() ([]byte, error) {
	if r.Day == "" && r.Name == "" && r.PIsland.IsZero() {
		return json.Marshal(r.ID)
	}

	return json.Marshal(scheduleRefAlias(r))
}

// HasDetails reports whether the reference embeds a schedule summary
func (r ScheduleRef) HasDetails() bool {
	return r.Day != "" || r.Name != "" || !r.PIsland.IsZero()
}

// ResolveID returns the canonical id of the referenced schedule. References
// written by older clients name the schedule by its gym and day instead.
func (r ScheduleRef) ResolveID() (string, error) {
	id, err := identity.Normalize(r.ID)
	if err == nil {
		return id, nil
	}

	if r.Day != "" && !r.PIsland.IsZero() {
		return ScheduleKeyID(r.PIsland, r.Day), nil
	}

	return "", err
}

// ScheduleKeyID derives the schedule id from the gym and day. The gym id is
// preferred as the key, falling back to the gym name.
func ScheduleKeyID(gym GymSummary, day string) string {
	key := gym.Name
	if id, err := identity.Normalize(gym.ID); err == nil {
		key = id
	}

	return identity.ScheduleID(key, model.DayName(day))
}

// unmarshalRef decodes a JSON string or null. ok is false for any other value.
func unmarshalRef(b []byte) (string, bool, error) {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", true, nil
	}
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false, nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", true, errors.Wrap(err, "decoding reference")
	}

	return strings.TrimSpace(s), true, nil
}

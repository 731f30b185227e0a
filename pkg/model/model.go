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

// Package model defines the gym catalogue object graph: gyms, their weekly
// schedules and time slots, and reviews. It has no dependencies on either store.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrValidation is returned, wrapped with the offending field, when a record is not syncable
var ErrValidation = errors.New("invalid record")

// Collection identifies one of the synchronized record kinds
type Collection string

const (
	// CollectionGyms holds Gym records
	CollectionGyms Collection = "gyms"
	// CollectionReviews holds Review records
	CollectionReviews Collection = "reviews"
	// CollectionSchedules holds WeeklySchedule records
	CollectionSchedules Collection = "weeklySchedules"
	// CollectionTimeSlots holds TimeSlot records
	CollectionTimeSlots Collection = "timeSlots"
)

// Order returns the collections in the order they must be synchronized. A parent
// collection always precedes its dependents.
func Order() []Collection {
	return []Collection{
		CollectionGyms,
		CollectionReviews,
		CollectionSchedules,
		CollectionTimeSlots,
	}
}

// ParseCollection returns the collection with the given name
func ParseCollection(s string) (Collection, error) {
	for _, c := range Order() {
		if string(c) == s {
			return c, nil
		}
	}

	return "", errors.Errorf("unknown collection '%s'", s)
}

// Label returns a human readable name for the collection
func (c Collection) Label() string {
	switch c {
	case CollectionGyms:
		return "gyms"
	case CollectionReviews:
		return "reviews"
	case CollectionSchedules:
		return "weekly schedules"
	case CollectionTimeSlots:
		return "time slots"
	}

	return string(c)
}

func invalid(kind, field string) error {
	return errors.Wrapf(ErrValidation, "%s: %s is required", kind, field)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Gym is a physical training location
type Gym struct {
	UUID           string
	Name           string
	Location       string
	Country        string
	Latitude       float64
	Longitude      float64
	Website        string
	CreatedBy      string
	CreatedAt      time.Time
	LastModifiedBy string
	LastModifiedAt time.Time
	// Stub marks a placeholder synthesized for a schedule or review whose gym has not synced yet
	Stub           bool
}

// Validate checks that the gym can be synced
func (g Gym) Validate() error {
	if blank(g.UUID) {
		return invalid("gym", "uuid")
	}
	if g.Stub {
		return nil
	}
	if blank(g.Name) {
		return invalid("gym", "name")
	}
	if g.Latitude < -90 || g.Latitude > 90 {
		return errors.Wrapf(ErrValidation, "gym: latitude %f out of range", g.Latitude)
	}
	if g.Longitude < -180 || g.Longitude > 180 {
		return errors.Wrapf(ErrValidation, "gym: longitude %f out of range", g.Longitude)
	}

	return nil
}

// WeeklySchedule is one day-of-week's class offering at a gym
type WeeklySchedule struct {
	UUID      string
	GymUUID   string
	Day       string
	Name      string
	CreatedAt time.Time
	Stub      bool
}

// Validate checks that the schedule can be synced
func (s WeeklySchedule) Validate() error {
	if blank(s.UUID) {
		return invalid("weekly schedule", "uuid")
	}
	if blank(s.GymUUID) {
		return invalid("weekly schedule", "gym")
	}
	if s.Stub {
		return nil
	}
	if _, err := ParseDay(s.Day); err != nil {
		return errors.Wrap(ErrValidation, err.Error())
	}

	return nil
}

// TimeSlot is a single class time within a weekly schedule
type TimeSlot struct {
	UUID                   string
	ScheduleUUID           string
	Time                   string
	Type                   string
	Gi                     bool
	NoGi                   bool
	OpenMat                bool
	Restrictions           bool
	RestrictionDescription string
	GoodForBeginners       bool
	Kids                   bool
	CreatedAt              time.Time
}

// Validate checks that the time slot can be synced
func (s TimeSlot) Validate() error {
	if blank(s.UUID) {
		return invalid("time slot", "uuid")
	}
	if blank(s.ScheduleUUID) {
		return invalid("time slot", "weekly schedule")
	}
	if blank(s.Time) {
		return invalid("time slot", "time")
	}
	if s.Restrictions && blank(s.RestrictionDescription) {
		return invalid("time slot", "restriction description")
	}

	return nil
}

// Signature identifies the class a time slot offers within its schedule. Two
// slots with the same signature under one schedule are duplicates.
func (s TimeSlot) Signature() string {
	return fmt.Sprintf("%s|%s|gi=%t|nogi=%t|openmat=%t",
		strings.TrimSpace(s.Time), strings.ToLower(strings.TrimSpace(s.Type)), s.Gi, s.NoGi, s.OpenMat)
}

// SameSignature reports whether a and b are duplicates of each other
func SameSignature(a, b TimeSlot) bool {
	return a.ScheduleUUID == b.ScheduleUUID && a.Signature() == b.Signature()
}

// Review is a user's rating of a gym
type Review struct {
	UUID      string
	GymUUID   string
	Stars     int
	Body      string
	Author    string
	CreatedAt time.Time
}

const (
	// MinStars is the lowest allowed rating
	MinStars = 1
	// MaxStars is the highest allowed rating
	MaxStars = 5
)

// Validate checks that the review can be synced
func (r Review) Validate() error {
	if blank(r.UUID) {
		return invalid("review", "uuid")
	}
	if blank(r.GymUUID) {
		return invalid("review", "gym")
	}
	if r.Stars < MinStars || r.Stars > MaxStars {
		return errors.Wrapf(ErrValidation, "review: stars %d out of range", r.Stars)
	}
	if blank(r.Author) {
		return invalid("review", "author")
	}

	return nil
}

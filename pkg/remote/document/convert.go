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

package document

import (
	"encoding/json"

	"github.com/matfinder/matsync/pkg/identity"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/pkg/errors"
)

// Decode decodes a document body
func Decode[T any](data []byte) (T, error) {
	var ret T
	if err := json.Unmarshal(data, &ret); err != nil {
		return ret, errors.Wrap(err, "decoding document")
	}

	return ret, nil
}

// Encode encodes a document body
func Encode(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding document")
	}

	return b, nil
}

// FromGym returns the document of a gym
func FromGym(g model.Gym) Gym {
	return Gym{
		ID:                    g.UUID,
		Name:                  g.Name,
		Location:              g.Location,
		Country:               g.Country,
		CreatedByUserID:       g.CreatedBy,
		CreatedTimestamp:      g.CreatedAt,
		LastModifiedByUserID:  g.LastModifiedBy,
		LastModifiedTimestamp: g.LastModifiedAt,
		Latitude:              g.Latitude,
		Longitude:             g.Longitude,
		GymWebsite:            g.Website,
	}
}

// Model returns the gym with the given canonical id
func (d Gym) Model(id string) model.Gym {
	return model.Gym{
		UUID:           id,
		Name:           d.Name,
		Location:       d.Location,
		Country:        d.Country,
		Latitude:       d.Latitude,
		Longitude:      d.Longitude,
		Website:        d.GymWebsite,
		CreatedBy:      d.CreatedByUserID,
		CreatedAt:      d.CreatedTimestamp.UTC(),
		LastModifiedBy: d.LastModifiedByUserID,
		LastModifiedAt: d.LastModifiedTimestamp.UTC(),
	}
}

// Summarize returns the summary of a gym embedded in other documents
func Summarize(g model.Gym) GymSummary {
	return GymSummary{
		ID:        g.UUID,
		Name:      g.Name,
		Location:  g.Location,
		Country:   g.Country,
		Latitude:  g.Latitude,
		Longitude: g.Longitude,
	}
}

// Stub returns a placeholder gym built from the summary
func (s GymSummary) Stub(id string) model.Gym {
	return model.Gym{
		UUID:      id,
		Name:      s.Name,
		Location:  s.Location,
		Country:   s.Country,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Stub:      true,
	}
}

// FromReview returns the document of a review
func FromReview(r model.Review) Review {
	return Review{
		ID:               r.UUID,
		Stars:            r.Stars,
		Review:           r.Body,
		Name:             r.Author,
		UserName:         r.Author,
		CreatedTimestamp: r.CreatedAt,
		IslandID:         r.GymUUID,
	}
}

// Model returns the review with the given canonical id
func (d Review) Model(id string) (model.Review, error) {
	gymID, err := identity.Normalize(d.IslandID)
	if err != nil {
		return model.Review{}, errors.Wrap(err, "review gym")
	}

	author := d.Name
	if author == "" {
		author = d.UserName
	}

	return model.Review{
		UUID:      id,
		GymUUID:   gymID,
		Stars:     d.Stars,
		Body:      d.Review,
		Author:    author,
		CreatedAt: d.CreatedTimestamp.UTC(),
	}, nil
}

// FromSchedule returns the document of a weekly schedule with its gym summary
// and time slots embedded
func FromSchedule(w model.WeeklySchedule, gym model.Gym, slots []model.TimeSlot) WeeklySchedule {
	ret := WeeklySchedule{
		ID:               w.UUID,
		Day:              w.Day,
		Name:             w.Name,
		CreatedTimestamp: w.CreatedAt,
		PIsland:          Summarize(gym),
	}

	for _, s := range slots {
		ret.MatTimes = append(ret.MatTimes, FromTimeSlot(s, w, gym))
	}

	return ret
}

// GymID returns the canonical id of the schedule's gym. A schedule without a
// usable gym reference gets the id of a placeholder derived from its own id.
func (d WeeklySchedule) GymID(id string) string {
	if gymID, err := identity.Normalize(d.PIsland.ID); err == nil {
		return gymID
	}

	return identity.StubGymID(id)
}

// Model returns the weekly schedule with the given canonical id
func (d WeeklySchedule) Model(id string) model.WeeklySchedule {
	return model.WeeklySchedule{
		UUID:      id,
		GymUUID:   d.GymID(id),
		Day:       model.DayName(d.Day),
		Name:      d.Name,
		CreatedAt: d.CreatedTimestamp.UTC(),
	}
}

// Ref returns the reference to a schedule embedded in time slot documents
func Ref(w model.WeeklySchedule, gym model.Gym) ScheduleRef {
	return ScheduleRef{
		ID:      w.UUID,
		Day:     w.Day,
		Name:    w.Name,
		PIsland: Summarize(gym),
	}
}

// Stub returns a placeholder schedule built from the reference
func (r ScheduleRef) Stub(id string) model.WeeklySchedule {
	gymID, err := identity.Normalize(r.PIsland.ID)
	if err != nil {
		gymID = identity.StubGymID(id)
	}

	return model.WeeklySchedule{
		UUID:    id,
		GymUUID: gymID,
		Day:     model.DayName(r.Day),
		Name:    r.Name,
		Stub:    true,
	}
}

// FromTimeSlot returns the document of a time slot referencing its schedule
func FromTimeSlot(s model.TimeSlot, w model.WeeklySchedule, gym model.Gym) TimeSlot {
	return TimeSlot{
		ID:                     s.UUID,
		Type:                   s.Type,
		Time:                   s.Time,
		Gi:                     s.Gi,
		NoGi:                   s.NoGi,
		OpenMat:                s.OpenMat,
		Restrictions:           s.Restrictions,
		RestrictionDescription: s.RestrictionDescription,
		GoodForBeginners:       s.GoodForBeginners,
		Kids:                   s.Kids,
		CreatedTimestamp:       s.CreatedAt,
		AppDayOfWeek:           Ref(w, gym),
	}
}

// Model returns the time slot with the given canonical id under the given schedule
func (d TimeSlot) Model(id, scheduleID string) model.TimeSlot {
	return model.TimeSlot{
		UUID:                   id,
		ScheduleUUID:           scheduleID,
		Time:                   d.Time,
		Type:                   d.Type,
		Gi:                     d.Gi,
		NoGi:                   d.NoGi,
		OpenMat:                d.OpenMat,
		Restrictions:           d.Restrictions,
		RestrictionDescription: d.RestrictionDescription,
		GoodForBeginners:       d.GoodForBeginners,
		Kids:                   d.Kids,
		CreatedAt:              d.CreatedTimestamp.UTC(),
	}
}

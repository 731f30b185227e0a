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

package sync

import (
	"fmt"
	"time"

	"github.com/matfinder/matsync/pkg/identity"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/log"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/remote"
	"github.com/matfinder/matsync/pkg/remote/document"
	"github.com/pkg/errors"
)

// touched identifies a local record written while merging a document
type touched struct {
	collection model.Collection
	uuid       string
}

// handler converts between the local records and the remote documents of one
// collection
type handler interface {
	// encode returns the remote document body of the local record
	encode(db *database.DB, uuid string) ([]byte, error)
	// merge writes the remote document into the local store and returns the
	// records it wrote, parents synthesized along the way included
	merge(tx *database.DB, uuid string, doc remote.Document) ([]touched, error)
}

var handlers = map[model.Collection]handler{
	model.CollectionGyms:      gymHandler{},
	model.CollectionReviews:   reviewHandler{},
	model.CollectionSchedules: scheduleHandler{},
	model.CollectionTimeSlots: timeSlotHandler{},
}

func isNotFound(err error) bool {
	return errors.Cause(err) == database.ErrNotFound
}

// invalidDocument marks a document that cannot be decoded as a validation failure
func invalidDocument(err error) error {
	return errors.Wrap(model.ErrValidation, err.Error())
}

// errMalformedReference marks a document pointing at a parent by an identifier
// that cannot be normalized. Such documents are skipped, not retried.
var errMalformedReference = errors.New("malformed reference")

func malformedReference(err error) error {
	return errors.Wrap(errMalformedReference, err.Error())
}

// mergedMeta is the bookkeeping of a record that now matches the remote version
func mergedMeta(prev database.Meta, version time.Time) database.Meta {
	return database.Meta{
		EditedAt:        prev.EditedAt,
		RemoteUpdatedAt: version,
		Synced:          true,
	}
}

// lookupGym returns the gym or, if it is missing locally, a gym carrying only the id
func lookupGym(db *database.DB, uuid string) (model.Gym, error) {
	g, err := database.GetGym(db, uuid)
	if isNotFound(err) {
		return model.Gym{UUID: uuid}, nil
	}
	if err != nil {
		return model.Gym{}, err
	}

	return g.Gym, nil
}

func lookupSchedule(db *database.DB, uuid string) (model.WeeklySchedule, error) {
	w, err := database.GetSchedule(db, uuid)
	if isNotFound(err) {
		return model.WeeklySchedule{UUID: uuid}, nil
	}
	if err != nil {
		return model.WeeklySchedule{}, err
	}

	return w.WeeklySchedule, nil
}

// ensureGym makes sure the gym exists locally, inserting a placeholder built
// from the summary if it does not
func ensureGym(tx *database.DB, uuid string, summary document.GymSummary) ([]touched, error) {
	g, err := database.GetGym(tx, uuid)
	if err == nil {
		if g.Deleted {
			return nil, errors.Wrapf(database.ErrNotFound, "gym %s is deleted locally", uuid)
		}

		return nil, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	stub := database.Gym{Gym: summary.Stub(uuid)}
	if err := stub.Insert(tx); err != nil {
		return nil, errors.Wrap(err, "inserting placeholder gym")
	}

	log.WithFields(log.Fields{"gym": uuid}).Debug("synthesized placeholder gym")

	return []touched{{model.CollectionGyms, uuid}}, nil
}

// ensureSchedule makes sure the schedule exists locally, inserting a
// placeholder built from the reference if it does not
func ensureSchedule(tx *database.DB, uuid string, ref document.ScheduleRef) ([]touched, error) {
	w, err := database.GetSchedule(tx, uuid)
	if err == nil {
		if w.Deleted {
			return nil, errors.Wrapf(database.ErrNotFound, "weekly schedule %s is deleted locally", uuid)
		}

		return nil, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	stub := ref.Stub(uuid)
	ret, err := ensureGym(tx, stub.GymUUID, ref.PIsland)
	if err != nil {
		return nil, errors.Wrap(err, "resolving gym of placeholder schedule")
	}

	row := database.WeeklySchedule{WeeklySchedule: stub}
	if err := row.Insert(tx); err != nil {
		return nil, errors.Wrap(err, "inserting placeholder weekly schedule")
	}

	log.WithFields(log.Fields{"schedule": uuid, "gym": stub.GymUUID}).Debug("synthesized placeholder weekly schedule")

	return append(ret, touched{model.CollectionSchedules, uuid}), nil
}

// resolveSchedule returns the local id of the schedule a time slot refers to.
// A reference by gym and day goes to the schedule the gym already has for that
// day, if any.
func resolveSchedule(tx *database.DB, ref document.ScheduleRef) (string, error) {
	if id, err := identity.Normalize(ref.ID); err == nil {
		return id, nil
	}

	if gymID, err := identity.Normalize(ref.PIsland.ID); err == nil && ref.Day != "" {
		id, err := database.FindScheduleByDay(tx, gymID, ref.Day)
		if err != nil {
			return "", errors.Wrap(err, "looking up schedule of the day")
		}
		if id != "" {
			return id, nil
		}
	}

	return ref.ResolveID()
}

type gymHandler struct{}

func (gymHandler) encode(db *database.DB, uuid string) ([]byte, error) {
	g, err := database.GetGym(db, uuid)
	if err != nil {
		return nil, err
	}

	return document.Encode(document.FromGym(g.Gym))
}

func (gymHandler) merge(tx *database.DB, uuid string, doc remote.Document) ([]touched, error) {
	d, err := document.Decode[document.Gym](doc.Data)
	if err != nil {
		return nil, invalidDocument(err)
	}

	g := d.Model(uuid)
	if err := g.Validate(); err != nil {
		return nil, err
	}

	prev, err := database.GetGym(tx, uuid)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	row := database.Gym{Gym: g, Meta: mergedMeta(prev.Meta, doc.UpdatedAt)}
	if err == nil {
		err = row.Update(tx)
	} else {
		err = row.Insert(tx)
	}
	if err != nil {
		return nil, err
	}

	return []touched{{model.CollectionGyms, uuid}}, nil
}

type reviewHandler struct{}

func (reviewHandler) encode(db *database.DB, uuid string) ([]byte, error) {
	r, err := database.GetReview(db, uuid)
	if err != nil {
		return nil, err
	}

	return document.Encode(document.FromReview(r.Review))
}

func (reviewHandler) merge(tx *database.DB, uuid string, doc remote.Document) ([]touched, error) {
	d, err := document.Decode[document.Review](doc.Data)
	if err != nil {
		return nil, invalidDocument(err)
	}

	r, err := d.Model(uuid)
	if err != nil {
		return nil, malformedReference(err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	ret, err := ensureGym(tx, r.GymUUID, document.GymSummary{ID: r.GymUUID})
	if err != nil {
		return nil, errors.Wrap(err, "resolving gym")
	}

	prev, err := database.GetReview(tx, uuid)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	row := database.Review{Review: r, Meta: mergedMeta(prev.Meta, doc.UpdatedAt)}
	if err == nil {
		err = row.Update(tx)
	} else {
		err = row.Insert(tx)
	}
	if err != nil {
		return nil, err
	}

	return append(ret, touched{model.CollectionReviews, uuid}), nil
}

type scheduleHandler struct{}

func (scheduleHandler) encode(db *database.DB, uuid string) ([]byte, error) {
	w, err := database.GetSchedule(db, uuid)
	if err != nil {
		return nil, err
	}

	gym, err := lookupGym(db, w.GymUUID)
	if err != nil {
		return nil, errors.Wrap(err, "getting gym")
	}

	rows, err := database.ListTimeSlotsBySchedule(db, uuid)
	if err != nil {
		return nil, errors.Wrap(err, "listing time slots")
	}
	slots := make([]model.TimeSlot, 0, len(rows))
	for _, r := range rows {
		slots = append(slots, r.TimeSlot)
	}

	return document.Encode(document.FromSchedule(w.WeeklySchedule, gym, slots))
}

func (scheduleHandler) merge(tx *database.DB, uuid string, doc remote.Document) ([]touched, error) {
	d, err := document.Decode[document.WeeklySchedule](doc.Data)
	if err != nil {
		return nil, invalidDocument(err)
	}

	w := d.Model(uuid)
	if err := w.Validate(); err != nil {
		return nil, err
	}

	ret, err := ensureGym(tx, w.GymUUID, d.PIsland)
	if err != nil {
		return nil, errors.Wrap(err, "resolving gym")
	}

	prev, err := database.GetSchedule(tx, uuid)
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	row := database.WeeklySchedule{WeeklySchedule: w, Meta: mergedMeta(prev.Meta, doc.UpdatedAt)}
	if err == nil {
		err = row.Update(tx)
	} else {
		err = row.Insert(tx)
	}
	if err != nil {
		return nil, err
	}
	ret = append(ret, touched{model.CollectionSchedules, uuid})

	for i, mt := range d.MatTimes {
		t, err := mergeMatTime(tx, uuid, i, mt, doc.UpdatedAt)
		if err != nil {
			log.WithFields(log.Fields{
				"schedule": uuid,
				"timeSlot": mt.ID,
			}).WarnWrap(err, "skipping embedded time slot")
			continue
		}

		ret = append(ret, t...)
	}

	return ret, nil
}

// mergeMatTime merges a time slot embedded in a schedule document. A failure
// rolls back the slot only.
func mergeMatTime(tx *database.DB, scheduleUUID string, i int, mt document.TimeSlot, version time.Time) ([]touched, error) {
	id, err := identity.Normalize(mt.ID)
	if err != nil {
		return nil, err
	}

	sp := fmt.Sprintf("mat_time_%d", i)
	if err := tx.Savepoint(sp); err != nil {
		return nil, err
	}

	ok, err := mergeTimeSlot(tx, mt.Model(id, scheduleUUID), version, true)
	if err != nil {
		if rbErr := tx.RollbackTo(sp); rbErr != nil {
			return nil, errors.Wrap(rbErr, err.Error())
		}

		return nil, err
	}
	if err := tx.Release(sp); err != nil {
		return nil, err
	}

	if !ok {
		return nil, nil
	}

	return []touched{{model.CollectionTimeSlots, id}}, nil
}

// mergeTimeSlot writes the time slot. An embedded copy does not overwrite
// local changes that are waiting to be pushed. It reports whether the slot
// was written.
func mergeTimeSlot(tx *database.DB, s model.TimeSlot, version time.Time, embedded bool) (bool, error) {
	if err := s.Validate(); err != nil {
		return false, err
	}

	prev, err := database.GetTimeSlot(tx, s.UUID)
	if err != nil && !isNotFound(err) {
		return false, err
	}
	exists := err == nil

	if embedded && exists && (prev.Dirty || prev.Deleted) {
		return false, nil
	}

	dup, err := database.FindDuplicateTimeSlot(tx, s)
	if err != nil {
		return false, err
	}
	if dup != "" {
		return false, errors.Wrapf(database.ErrDuplicateTimeSlot, "%s conflicts with %s", s.UUID, dup)
	}

	meta := mergedMeta(prev.Meta, version)
	if embedded {
		// confirmed against the standalone document in the time slot pass
		meta = database.Meta{EditedAt: prev.EditedAt, RemoteUpdatedAt: prev.RemoteUpdatedAt, Synced: prev.Synced}
	}

	row := database.TimeSlot{TimeSlot: s, Meta: meta}
	if exists {
		err = row.Update(tx)
	} else {
		err = row.Insert(tx)
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

type timeSlotHandler struct{}

func (timeSlotHandler) encode(db *database.DB, uuid string) ([]byte, error) {
	s, err := database.GetTimeSlot(db, uuid)
	if err != nil {
		return nil, err
	}

	w, err := lookupSchedule(db, s.ScheduleUUID)
	if err != nil {
		return nil, errors.Wrap(err, "getting weekly schedule")
	}

	gym, err := lookupGym(db, w.GymUUID)
	if err != nil {
		return nil, errors.Wrap(err, "getting gym")
	}

	return document.Encode(document.FromTimeSlot(s.TimeSlot, w, gym))
}

func (timeSlotHandler) merge(tx *database.DB, uuid string, doc remote.Document) ([]touched, error) {
	d, err := document.Decode[document.TimeSlot](doc.Data)
	if err != nil {
		return nil, invalidDocument(err)
	}

	scheduleID, err := resolveSchedule(tx, d.AppDayOfWeek)
	if err != nil {
		return nil, invalidDocument(errors.Wrap(err, "resolving weekly schedule"))
	}

	ret, err := ensureSchedule(tx, scheduleID, d.AppDayOfWeek)
	if err != nil {
		return nil, errors.Wrap(err, "resolving weekly schedule")
	}

	if _, err := mergeTimeSlot(tx, d.Model(uuid, scheduleID), doc.UpdatedAt, false); err != nil {
		return nil, err
	}

	return append(ret, touched{model.CollectionTimeSlots, uuid}), nil
}

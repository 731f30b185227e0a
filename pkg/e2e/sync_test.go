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


package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/matfinder/matsync/pkg/assert"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/status"
	"github.com/pkg/errors"
)

func mustRenameGym(t *testing.T, d *device, now time.Time, name string) {
	t.Helper()

	g, err := database.GetGym(d.db, gymID)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting gym"))
	}
	g.Gym.Name = name

	if _, err := database.UpdateGym(d.db, now, g.Gym); err != nil {
		t.Fatal(errors.Wrap(err, "updating gym"))
	}
}

func mustGymName(t *testing.T, d *device) string {
	t.Helper()

	g, err := database.GetGym(d.db, gymID)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting gym"))
	}

	return g.Name
}

// setupConverged returns two devices that share a fully synced gym graph
func setupConverged(t *testing.T) (*testEnv, *device, *device) {
	t.Helper()

	env := setupEnv(t)
	a := env.newDevice(t)
	b := env.newDevice(t)

	a.mustCreateGraph(t, env.clock.Now())
	a.mustSync(t)
	b.mustSync(t)

	return env, a, b
}

func TestSync_twoDevicesConverge(t *testing.T) {
	env := setupEnv(t)
	a := env.newDevice(t)
	b := env.newDevice(t)

	a.mustCreateGraph(t, env.clock.Now())

	report := a.mustSync(t)
	assert.Equal(t, mustCollection(t, report, model.CollectionGyms).Uploaded, 1, "gyms uploaded")
	assert.Equal(t, mustCollection(t, report, model.CollectionReviews).Uploaded, 1, "reviews uploaded")
	assert.Equal(t, mustCollection(t, report, model.CollectionSchedules).Uploaded, 1, "schedules uploaded")
	assert.Equal(t, mustCollection(t, report, model.CollectionTimeSlots).Uploaded, 2, "time slots uploaded")

	assert.Equal(t, env.countDocuments(t, model.CollectionGyms), 1, "server gym count")
	assert.Equal(t, env.countDocuments(t, model.CollectionReviews), 1, "server review count")
	assert.Equal(t, env.countDocuments(t, model.CollectionSchedules), 1, "server schedule count")
	assert.Equal(t, env.countDocuments(t, model.CollectionTimeSlots), 2, "server time slot count")

	report = b.mustSync(t)
	assert.Equal(t, mustCollection(t, report, model.CollectionGyms).Downloaded, 1, "gyms downloaded")
	assert.Equal(t, mustCollection(t, report, model.CollectionReviews).Downloaded, 1, "reviews downloaded")
	assert.Equal(t, mustCollection(t, report, model.CollectionSchedules).Downloaded, 1, "schedules downloaded")

	for _, c := range model.Order() {
		assert.Equal(t, b.count(t, c), a.count(t, c), c.Label()+" count mismatch")

		s := b.stats(t, c)
		assert.Equal(t, s.Dirty, 0, c.Label()+" dirty")
		assert.Equal(t, s.Unsynced, 0, c.Label()+" never synced")
		assert.Equal(t, s.Stubs, 0, c.Label()+" placeholders")
	}

	slot, err := database.GetTimeSlot(b.db, otherSlot)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting time slot"))
	}
	assert.Equal(t, slot.ScheduleUUID, scheduleID, "time slot schedule")
	assert.Equal(t, slot.Time, "18:00", "time slot time")
	assert.Equal(t, slot.NoGi, true, "time slot no-gi")
	assert.Equal(t, mustGymName(t, b), "Lotus Club", "gym name")
}

func TestSync_idempotent(t *testing.T) {
	env, a, b := setupConverged(t)
	env.clock.Advance(time.Minute)

	for _, d := range []*device{a, b} {
		report := d.mustSync(t)

		for _, cr := range report.Collections {
			label := cr.Collection.Label()
			assert.Equal(t, cr.Uploaded, 0, label+" uploaded")
			assert.Equal(t, cr.Downloaded, 0, label+" downloaded")
			assert.Equal(t, cr.ToDownload, 0, label+" to download")
			assert.Equal(t, cr.Deleted, 0, label+" deleted")
			assert.Equal(t, cr.Expunged, 0, label+" expunged")
		}
		assert.Equal(t, len(report.PrunedStubs), 0, "pruned placeholders")
	}
}

func TestSync_editPropagates(t *testing.T) {
	env, a, b := setupConverged(t)

	env.clock.Advance(time.Minute)
	mustRenameGym(t, a, env.clock.Now(), "Lotus Club Waikiki")

	report := a.mustSync(t)
	assert.Equal(t, mustCollection(t, report, model.CollectionGyms).Uploaded, 1, "gyms uploaded")

	report = b.mustSync(t)
	assert.Equal(t, mustCollection(t, report, model.CollectionGyms).Downloaded, 1, "gyms downloaded")
	assert.Equal(t, mustGymName(t, b), "Lotus Club Waikiki", "gym name")
}

func TestSync_laterEditWins(t *testing.T) {
	env, a, b := setupConverged(t)

	env.clock.Advance(time.Minute)
	mustRenameGym(t, a, env.clock.Now(), "Lotus Club Waikiki")
	a.mustSync(t)

	env.clock.Advance(time.Minute)
	mustRenameGym(t, b, env.clock.Now(), "Lotus BJJ")

	report := b.mustSync(t)
	assert.Equal(t, mustCollection(t, report, model.CollectionGyms).Uploaded, 1, "b should push its newer edit")

	a.mustSync(t)
	assert.Equal(t, mustGymName(t, a), "Lotus BJJ", "gym name on a")
	assert.Equal(t, mustGymName(t, b), "Lotus BJJ", "gym name on b")
}

func TestSync_staleEditLoses(t *testing.T) {
	env, a, b := setupConverged(t)

	env.clock.Advance(time.Minute)
	mustRenameGym(t, a, env.clock.Now(), "Lotus Club Waikiki")

	env.clock.Advance(time.Minute)
	mustRenameGym(t, b, env.clock.Now(), "Lotus BJJ")
	b.mustSync(t)

	env.clock.Advance(time.Minute)
	report := a.mustSync(t)
	assert.Equal(t, mustCollection(t, report, model.CollectionGyms).Uploaded, 0, "a should not push its older edit")
	assert.Equal(t, mustCollection(t, report, model.CollectionGyms).Downloaded, 1, "a should pull the newer edit")
	assert.Equal(t, mustGymName(t, a), "Lotus BJJ", "gym name on a")
	assert.Equal(t, a.stats(t, model.CollectionGyms).Dirty, 0, "a should be clean")
}

func TestSync_deletePropagates(t *testing.T) {
	env, a, b := setupConverged(t)

	env.clock.Advance(time.Minute)
	if err := database.Delete(b.db, env.clock.Now(), model.CollectionReviews, reviewID); err != nil {
		t.Fatal(errors.Wrap(err, "deleting review"))
	}

	report := b.mustSync(t)
	assert.Equal(t, mustCollection(t, report, model.CollectionReviews).Deleted, 1, "reviews deleted")
	assert.Equal(t, env.countDocuments(t, model.CollectionReviews), 0, "server review count")
	assert.Equal(t, b.count(t, model.CollectionReviews), 0, "tombstone should be gone on b")

	report = a.mustSync(t)
	assert.Equal(t, mustCollection(t, report, model.CollectionReviews).Expunged, 1, "reviews expunged")
	assert.Equal(t, a.count(t, model.CollectionReviews), 0, "review should be gone on a")
	assert.Equal(t, a.count(t, model.CollectionGyms), 1, "gym should survive on a")
}

func TestSync_deletedTimeSlotOnNewDevice(t *testing.T) {
	env, a, b := setupConverged(t)

	env.clock.Advance(time.Minute)
	if err := database.Delete(a.db, env.clock.Now(), model.CollectionTimeSlots, slotID); err != nil {
		t.Fatal(errors.Wrap(err, "deleting time slot"))
	}

	report := a.mustSync(t)
	assert.Equal(t, mustCollection(t, report, model.CollectionSchedules).Uploaded, 1, "schedules uploaded")
	assert.Equal(t, mustCollection(t, report, model.CollectionTimeSlots).Deleted, 1, "time slots deleted")
	assert.Equal(t, env.countDocuments(t, model.CollectionTimeSlots), 1, "server time slot count")

	c := env.newDevice(t)
	report = c.mustSync(t)
	assert.Equal(t, mustCollection(t, report, model.CollectionTimeSlots).Uploaded, 0, "time slots uploaded by c")
	assert.Equal(t, c.count(t, model.CollectionTimeSlots), 1, "c time slot count")
	assert.Equal(t, database.MustCount(t, c.db, "time_slots", "uuid = ?", slotID), 0, "deleted slot on c")
	assert.Equal(t, env.countDocuments(t, model.CollectionTimeSlots), 1, "server time slot count after c")

	b.mustSync(t)
	assert.Equal(t, b.count(t, model.CollectionTimeSlots), 1, "b time slot count")
	assert.Equal(t, database.MustCount(t, b.db, "time_slots", "uuid = ?", slotID), 0, "deleted slot on b")
}

func TestSync_gymDeletionCascades(t *testing.T) {
	env, a, b := setupConverged(t)

	env.clock.Advance(time.Minute)
	if err := database.Delete(b.db, env.clock.Now(), model.CollectionGyms, gymID); err != nil {
		t.Fatal(errors.Wrap(err, "deleting gym"))
	}

	b.mustSync(t)
	for _, c := range model.Order() {
		assert.Equal(t, env.countDocuments(t, c), 0, "server "+c.Label())
		assert.Equal(t, b.count(t, c), 0, "b "+c.Label())
	}

	report := a.mustSync(t)
	assert.Equal(t, len(report.PrunedStubs), 2, "pruned placeholders")
	for _, c := range model.Order() {
		assert.Equal(t, a.count(t, c), 0, "a "+c.Label())
	}
}

func TestSync_serverUnreachable(t *testing.T) {
	env := setupEnv(t)
	a := env.newDevice(t)
	a.mustCreateGraph(t, env.clock.Now())

	env.server.Close()

	report, err := a.syncer.Run(context.Background())
	if err != nil {
		t.Fatal(errors.Wrap(err, "running sync"))
	}

	assert.Equal(t, report.Postponed, true, "run should be postponed")
	assert.DeepEqual(t, a.recorder.Events(), []status.Event{status.Postponed()}, "events mismatch")
	assert.Equal(t, a.stats(t, model.CollectionGyms).Unsynced, 1, "gym should stay unsynced")

	at, err := database.GetLastSyncAt(a.db)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting last sync"))
	}
	assert.Equal(t, at.IsZero(), true, "last sync should not be recorded")
}

func TestSync_legacyIdentifiers(t *testing.T) {
	env := setupEnv(t)
	c := env.newClient()
	ctx := context.Background()

	legacyGym := "A1B2C3D4E5F64718893A4B5C6D7E8F90"
	legacyReview := "123456789ABC4DEF8123456789ABCDEF"

	if _, err := c.Put(ctx, model.CollectionGyms, legacyGym, []byte(`{"id":"`+legacyGym+`","name":"Lotus Club","latitude":21.3,"longitude":-157.8}`)); err != nil {
		t.Fatal(errors.Wrap(err, "putting gym"))
	}
	if _, err := c.Put(ctx, model.CollectionReviews, legacyReview, []byte(`{"id":"`+legacyReview+`","stars":4,"review":"solid","userName":"leilani","islandID":"`+legacyGym+`"}`)); err != nil {
		t.Fatal(errors.Wrap(err, "putting review"))
	}
	if _, err := c.Put(ctx, model.CollectionGyms, "not-an-id", []byte(`{"name":"Nowhere"}`)); err != nil {
		t.Fatal(errors.Wrap(err, "putting malformed gym"))
	}

	d := env.newDevice(t)
	report := d.mustSync(t)
	assert.Equal(t, mustCollection(t, report, model.CollectionGyms).Downloaded, 1, "gyms downloaded")
	assert.Equal(t, mustCollection(t, report, model.CollectionGyms).MalformedRemote, 1, "malformed gyms")
	assert.Equal(t, mustCollection(t, report, model.CollectionReviews).Downloaded, 1, "reviews downloaded")

	r, err := database.GetReview(d.db, reviewID)
	if err != nil {
		t.Fatal(errors.Wrap(err, "getting review"))
	}
	assert.Equal(t, r.GymUUID, gymID, "review gym should be canonical")
	assert.Equal(t, r.Author, "leilani", "review author")

	env.clock.Advance(time.Minute)
	report = d.mustSync(t)
	for _, cr := range report.Collections {
		assert.Equal(t, cr.Uploaded, 0, cr.Collection.Label()+" uploaded")
		assert.Equal(t, cr.ToDownload, 0, cr.Collection.Label()+" to download")
	}
	assert.Equal(t, env.countDocuments(t, model.CollectionGyms), 2, "legacy documents should be left in place")
}

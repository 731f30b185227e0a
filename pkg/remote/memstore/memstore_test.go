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

package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/matfinder/matsync/pkg/assert"
	"github.com/matfinder/matsync/pkg/clock"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/remote"
	"github.com/pkg/errors"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	c := clock.NewMock()
	s := New(c)

	entry, err := s.Put(ctx, model.CollectionGyms, "b", []byte(`{"name":"b"}`))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, entry.UpdatedAt.Equal(c.Now()), true, "version mismatch")

	c.Advance(time.Minute)
	if _, err := s.Put(ctx, model.CollectionGyms, "a", []byte(`{"name":"a"}`)); err != nil {
		t.Fatal(err)
	}

	entries, err := s.List(ctx, model.CollectionGyms)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, len(entries), 2, "entries length mismatch")
	assert.Equal(t, entries[0].ID, "a", "entries should be sorted")

	ok, err := s.Exists(ctx, model.CollectionGyms, "a")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, ok, true, "exists mismatch")

	doc, err := s.Get(ctx, model.CollectionGyms, "b")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, string(doc.Data), `{"name":"b"}`, "data mismatch")

	if err := s.Delete(ctx, model.CollectionGyms, "b"); err != nil {
		t.Fatal(err)
	}
	_, err = s.Get(ctx, model.CollectionGyms, "b")
	assert.Equal(t, remote.IsNotFound(err), true, "deleted document should be gone")

	err = s.Delete(ctx, model.CollectionGyms, "b")
	assert.Equal(t, remote.IsNotFound(err), true, "deleting twice should be not found")

	assert.Equal(t, s.Calls(OpPut), 2, "put calls mismatch")
	assert.Equal(t, s.TotalCalls(), 8, "total calls mismatch")
}

func TestFailures(t *testing.T) {
	ctx := context.Background()
	s := New(clock.NewMock())
	s.Seed(model.CollectionReviews, remote.Document{Entry: remote.Entry{ID: "r1"}})
	s.Seed(model.CollectionReviews, remote.Document{Entry: remote.Entry{ID: "r2"}})

	boom := errors.New("boom")
	s.FailOn(OpGet, model.CollectionReviews, "r1", boom)

	_, err := s.Get(ctx, model.CollectionReviews, "r1")
	assert.Equal(t, err, boom, "injected failure mismatch")
	_, err = s.Get(ctx, model.CollectionReviews, "r2")
	assert.Equal(t, err, nil, "other documents should succeed")

	s.FailOn(OpList, model.CollectionReviews, "", boom)
	_, err = s.List(ctx, model.CollectionReviews)
	assert.Equal(t, err, boom, "collection failure mismatch")

	s.SetOffline(true)
	assert.Equal(t, s.Ping(ctx), ErrUnavailable, "offline ping mismatch")
	_, err = s.Exists(ctx, model.CollectionReviews, "r2")
	assert.Equal(t, err, ErrUnavailable, "offline exists mismatch")
}

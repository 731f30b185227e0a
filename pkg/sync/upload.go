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
	"context"
	"time"

	"github.com/matfinder/matsync/pkg/differ"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/log"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/remote"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// pass holds the state of one collection's reconciliation
type pass struct {
	c       model.Collection
	h       handler
	records map[string]database.Record
	// remote maps canonical ids to the id as the remote store spells it
	remote   map[string]string
	versions map[string]remote.Entry
	diff     differ.Result
	// pushed are the ids uploaded during this pass, excluded from the download
	pushed map[string]bool
	report *CollectionReport
}

func (p *pass) remoteID(id string) string {
	if raw, ok := p.remote[id]; ok {
		return raw
	}

	return id
}

// upload mirrors local changes of the collection to the remote store
func (s *Syncer) upload(ctx context.Context, p *pass) {
	p.pushed = map[string]bool{}

	candidates := s.settleLocalOnly(p)
	s.uploadLocalOnly(ctx, p, candidates)
	s.pushChanged(ctx, p)
}

// settleLocalOnly handles local-only tombstones and records deleted remotely,
// and returns the ids that still need to be confirmed absent and uploaded.
// Local actions always leave a record dirty until it is pushed, so a clean
// record that was never confirmed came from an embedded copy and is never
// uploaded.
func (s *Syncer) settleLocalOnly(p *pass) []string {
	var ret []string

	for _, id := range p.diff.LocalOnly {
		r := p.records[id]
		logger := log.WithFields(log.Fields{"collection": p.c, "uuid": id})

		switch {
		case r.Deleted:
			if err := database.Expunge(s.db, p.c, id); err != nil {
				logger.ErrorWrap(err, "expunging tombstone")
				continue
			}
			p.report.Expunged++
		case r.Stub:
			continue
		case r.Synced && !r.Dirty:
			// it was on the remote and is not anymore
			if err := s.forget(p.c, id); err != nil {
				logger.ErrorWrap(err, "removing record deleted remotely")
				continue
			}
			p.report.Expunged++
		case !r.Synced && !r.Dirty:
			// only ever seen embedded in a schedule document, whose copy is stale
			if err := database.Expunge(s.db, p.c, id); err != nil {
				logger.ErrorWrap(err, "removing stale embedded copy")
				continue
			}
			logger.Debug("removed time slot missing from the remote collection")
			p.report.Expunged++
		default:
			ret = append(ret, id)
		}
	}

	return ret
}

// forget removes a record that was deleted remotely. Gyms and schedules that
// other records still refer to become placeholders instead.
func (s *Syncer) forget(c model.Collection, uuid string) error {
	if c == model.CollectionGyms || c == model.CollectionSchedules {
		ok, err := database.HasLiveChildren(s.db, c, uuid)
		if err != nil {
			return errors.Wrap(err, "checking dependent records")
		}
		if ok {
			return database.Demote(s.db, c, uuid)
		}
	}

	return database.Expunge(s.db, c, uuid)
}

type existence struct {
	found bool
	err   error
}

// uploadLocalOnly confirms concurrently that the ids are absent from the remote
// store, then uploads the ones that are
func (s *Syncer) uploadLocalOnly(ctx context.Context, p *pass, ids []string) {
	if len(ids) == 0 {
		return
	}

	results := make([]existence, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(s.config.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			found, err := s.remote.Exists(ctx, p.c, id)
			results[i] = existence{found: found, err: err}
			return nil
		})
	}
	g.Wait()

	for i, id := range ids {
		res := results[i]
		logger := log.WithFields(log.Fields{"collection": p.c, "uuid": id})

		switch {
		case res.err != nil:
			logger.WarnWrap(res.err, "checking remote document")
			p.report.UploadFailed++
		case res.found:
			// created remotely after the listing
			if err := database.MarkConfirmed(s.db, p.c, id); err != nil {
				logger.ErrorWrap(err, "marking record confirmed")
				continue
			}
			p.report.Confirmed++
		default:
			if err := s.push(ctx, p, id, id); err != nil {
				logger.WarnWrap(err, "uploading record")
				p.report.UploadFailed++
				continue
			}
			p.report.Uploaded++
		}
	}
}

// pushChanged handles records present on both sides: tombstones are deleted
// remotely and local edits that win over the remote version are uploaded
func (s *Syncer) pushChanged(ctx context.Context, p *pass) {
	for _, id := range p.diff.InBoth {
		r := p.records[id]
		v := p.versions[id].UpdatedAt
		logger := log.WithFields(log.Fields{"collection": p.c, "uuid": id})

		if r.Deleted {
			if err := s.deleteRemote(ctx, p, id); err != nil {
				logger.WarnWrap(err, "deleting remote document")
				p.report.DeleteFailed++
				continue
			}
			p.report.Deleted++
			continue
		}

		if !localWins(r, v) {
			continue
		}

		if err := s.push(ctx, p, id, p.remoteID(id)); err != nil {
			logger.WarnWrap(err, "uploading record")
			p.report.UploadFailed++
			continue
		}
		p.report.Uploaded++
	}
}

// localWins reports whether the local record should overwrite the remote
// version v. A local edit is pushed when the remote did not change since the
// last sync, or when it was made after the remote change. Ties go to the remote.
func localWins(r database.Record, v time.Time) bool {
	if !r.Dirty || r.Deleted || r.Stub {
		return false
	}

	return !v.After(r.RemoteUpdatedAt) || r.EditedAt.After(v)
}

func (s *Syncer) deleteRemote(ctx context.Context, p *pass, id string) error {
	err := s.remote.Delete(ctx, p.c, p.remoteID(id))
	if err != nil && !remote.IsNotFound(err) {
		return err
	}

	return database.Expunge(s.db, p.c, id)
}

// push uploads the local record under remoteID and marks it synced with the
// version the remote store assigned
func (s *Syncer) push(ctx context.Context, p *pass, localID, remoteID string) error {
	data, err := p.h.encode(s.db, localID)
	if err != nil {
		return errors.Wrap(err, "encoding document")
	}

	entry, err := s.remote.Put(ctx, p.c, remoteID, data)
	if err != nil {
		return errors.Wrap(err, "putting document")
	}

	if err := database.MarkSynced(s.db, p.c, localID, entry.UpdatedAt); err != nil {
		return errors.Wrap(err, "marking record synced")
	}
	p.pushed[localID] = true

	return nil
}

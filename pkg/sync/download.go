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
	"fmt"

	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/log"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/remote"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// downloadCandidates returns the ids whose remote version must be merged
// locally: every remote-only id, and the ids present on both sides whose
// remote version is newer than what the local store last saw
func downloadCandidates(p *pass) []string {
	ret := append([]string(nil), p.diff.RemoteOnly...)

	for _, id := range p.diff.InBoth {
		r := p.records[id]
		v := p.versions[id].UpdatedAt

		if r.Deleted || p.pushed[id] || localWins(r, v) {
			continue
		}
		if r.Stub || v.After(r.RemoteUpdatedAt) {
			ret = append(ret, id)
		}
	}

	return ret
}

type fetched struct {
	id  string
	doc remote.Document
	err error
}

// download merges the remote versions of the candidates into the local store
func (s *Syncer) download(ctx context.Context, p *pass) {
	ids := downloadCandidates(p)
	p.report.ToDownload = len(ids)

	for start := 0; start < len(ids); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(ids) {
			end = len(ids)
		}

		docs := s.fetch(ctx, p, ids[start:end])
		s.apply(ctx, p, docs)
	}
}

// fetch gets the documents concurrently, outside of any local transaction
func (s *Syncer) fetch(ctx context.Context, p *pass, ids []string) []fetched {
	ret := make([]fetched, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(s.config.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			doc, err := s.remote.Get(ctx, p.c, p.remoteID(id))
			ret[i] = fetched{id: id, doc: doc, err: err}
			return nil
		})
	}
	g.Wait()

	return ret
}

// apply merges a batch of documents in one isolated transaction. Each record
// is merged under its own savepoint so that a failure only undoes that record.
func (s *Syncer) apply(ctx context.Context, p *pass, docs []fetched) {
	var merged int
	var failed int

	for _, d := range docs {
		if d.err != nil {
			log.WithFields(log.Fields{"collection": p.c, "uuid": d.id}).WarnWrap(d.err, "fetching remote document")
			failed++
		}
	}

	tx, err := s.db.BeginIsolated(ctx)
	if err != nil {
		log.WithFields(log.Fields{"collection": p.c}).ErrorWrap(err, "beginning sync transaction")
		p.report.DownloadFailed += len(docs)
		return
	}

	touchedIDs := map[model.Collection][]string{}
	for i, d := range docs {
		if d.err != nil {
			continue
		}

		t, err := s.mergeOne(tx, p, i, d)
		if errors.Cause(err) == errMalformedReference {
			log.WithFields(log.Fields{"collection": p.c, "uuid": d.id}).WarnWrap(err, "skipping document with malformed reference")
			p.report.MalformedRemote++
			continue
		}
		if err != nil {
			log.WithFields(log.Fields{"collection": p.c, "uuid": d.id}).WarnWrap(err, "merging remote document")
			failed++
			continue
		}

		merged++
		for _, r := range t {
			touchedIDs[r.collection] = append(touchedIDs[r.collection], r.uuid)
		}
	}

	for _, c := range model.Order() {
		tx.Announce(c, touchedIDs[c]...)
	}

	if err := tx.Commit(); err != nil {
		log.WithFields(log.Fields{"collection": p.c}).ErrorWrap(err, "committing sync transaction")
		tx.Rollback()
		p.report.DownloadFailed += len(docs)
		return
	}

	p.report.Downloaded += merged
	p.report.DownloadFailed += failed
}

func (s *Syncer) mergeOne(tx *database.DB, p *pass, i int, d fetched) ([]touched, error) {
	sp := fmt.Sprintf("record_%d", i)
	if err := tx.Savepoint(sp); err != nil {
		return nil, err
	}

	ret, err := p.h.merge(tx, d.id, d.doc)
	if err != nil {
		if rbErr := tx.RollbackTo(sp); rbErr != nil {
			return nil, errors.Wrap(rbErr, err.Error())
		}

		return nil, err
	}

	if err := tx.Release(sp); err != nil {
		return nil, err
	}

	return ret, nil
}

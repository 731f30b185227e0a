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

// Package sync reconciles the local store with the remote document store.
// A run walks the collections in dependency order. For each collection it
// compares the identifiers of both sides, uploads local changes and merges
// remote changes into the local store.
package sync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/matfinder/matsync/pkg/clock"
	"github.com/matfinder/matsync/pkg/differ"
	"github.com/matfinder/matsync/pkg/identity"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/log"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/remote"
	"github.com/matfinder/matsync/pkg/status"
	"github.com/pkg/errors"
)

// ErrRunInProgress is returned when a run is requested while another is active
var ErrRunInProgress = errors.New("sync run already in progress")

// Config tunes a Syncer
type Config struct {
	// Concurrency bounds the remote requests issued in parallel
	Concurrency int
	// RunTimeout bounds a whole run. Zero means no limit other than the caller's context.
	RunTimeout time.Duration
	// BatchSize is the number of documents merged per local transaction
	BatchSize int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Concurrency: 8,
		RunTimeout:  5 * time.Minute,
		BatchSize:   50,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()

	if c.Concurrency < 1 {
		c.Concurrency = d.Concurrency
	}
	if c.BatchSize < 1 {
		c.BatchSize = d.BatchSize
	}
	if c.RunTimeout < 0 {
		c.RunTimeout = 0
	}

	return c
}

// Params are the dependencies of a Syncer
type Params struct {
	DB     *database.DB
	Remote remote.Store
	// Prober checks connectivity before a run. A run is never postponed without one.
	Prober   remote.Prober
	Reporter status.Reporter
	Clock    clock.Clock
	Metrics  *Metrics
	Config   Config
	// OnTransition is called on every state change
	OnTransition func(State)
}

// Syncer runs sync passes. It is safe for concurrent use but runs one pass at a time.
type Syncer struct {
	db           *database.DB
	remote       remote.Store
	prober       remote.Prober
	reporter     status.Reporter
	clock        clock.Clock
	metrics      *Metrics
	config       Config
	onTransition func(State)

	running atomic.Bool
	state   atomic.Value
}

// New returns a Syncer
func New(p Params) (*Syncer, error) {
	if p.DB == nil {
		return nil, errors.New("no local database")
	}
	if p.Remote == nil {
		return nil, errors.New("no remote store")
	}

	if p.Reporter == nil {
		p.Reporter = status.Discard
	}
	if p.Clock == nil {
		p.Clock = clock.New()
	}

	s := &Syncer{
		db:           p.DB,
		remote:       p.Remote,
		prober:       p.Prober,
		reporter:     p.Reporter,
		clock:        p.Clock,
		metrics:      p.Metrics,
		config:       p.Config.withDefaults(),
		onTransition: p.OnTransition,
	}
	s.state.Store(State{Phase: PhaseIdle})

	return s, nil
}

// State returns the current state of the syncer
func (s *Syncer) State() State {
	return s.state.Load().(State)
}

func (s *Syncer) transition(phase Phase, c model.Collection) {
	st := State{Phase: phase, Collection: c}
	s.state.Store(st)

	log.WithFields(log.Fields{"phase": phase, "collection": c}).Debug("sync state")

	if s.onTransition != nil {
		s.onTransition(st)
	}
}

// RunAsync starts a run in the background. The channel receives the outcome
// and is then closed.
func (s *Syncer) RunAsync(ctx context.Context) <-chan Outcome {
	ch := make(chan Outcome, 1)

	go func() {
		defer close(ch)

		report, err := s.Run(ctx)
		ch <- Outcome{Report: report, Err: err}
	}()

	return ch
}

// Run performs one sync run. Collection and record failures are recorded in
// the report. An error is returned when no run could start or when the run
// was cut short by its context.
func (s *Syncer) Run(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, ErrRunInProgress
	}
	defer s.running.Store(false)

	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	report := Report{StartedAt: s.clock.Now()}
	start := time.Now()

	if s.prober != nil {
		if err := s.prober.Ping(ctx); err != nil {
			log.WithFields(log.Fields{}).WarnWrap(err, "remote store unreachable, postponing sync")

			report.Postponed = true
			report.FinishedAt = s.clock.Now()
			s.reporter.Report(status.Postponed())
			s.finish(report, time.Since(start), false)

			return report, nil
		}
	}

	for _, c := range model.Order() {
		if err := ctx.Err(); err != nil {
			cr := CollectionReport{Collection: c, Err: err}
			report.Collections = append(report.Collections, cr)
			s.reportCollection(cr)
			s.metrics.observeCollection(cr)
			continue
		}

		cr := s.syncCollection(ctx, c)
		report.Collections = append(report.Collections, cr)
		s.reportCollection(cr)
		s.metrics.observeCollection(cr)
	}

	pruned, err := database.PruneStubs(s.db)
	if err != nil {
		log.WithFields(log.Fields{}).ErrorWrap(err, "pruning placeholders")
	} else if len(pruned) > 0 {
		log.WithFields(log.Fields{"count": len(pruned)}).Info("pruned unreferenced placeholders")
	}
	report.PrunedStubs = pruned
	report.FinishedAt = s.clock.Now()

	runErr := ctx.Err()
	if runErr == nil {
		if err := database.SetLastSyncAt(s.db, report.FinishedAt); err != nil {
			log.WithFields(log.Fields{}).ErrorWrap(err, "saving last sync time")
		}
	}

	s.finish(report, time.Since(start), runErr != nil)

	if runErr != nil {
		return report, errors.Wrap(runErr, "sync run interrupted")
	}

	return report, nil
}

func (s *Syncer) finish(report Report, d time.Duration, interrupted bool) {
	outcome := report.outcome()
	if interrupted {
		outcome = outcomeFailed
	}

	if err := database.SetSystem(s.db, database.SystemLastSyncOutcome, outcome); err != nil {
		log.WithFields(log.Fields{}).ErrorWrap(err, "saving sync outcome")
	}

	s.metrics.observeRun(outcome, d, report.FinishedAt)
	s.transition(PhaseDone, "")

	log.WithFields(log.Fields{
		"outcome":  outcome,
		"duration": d.String(),
	}).Info("sync run finished")
}

// reportCollection emits the terminal status events of a collection
func (s *Syncer) reportCollection(cr CollectionReport) {
	if cr.ToDownload > 0 {
		s.reporter.Report(status.Downloaded(cr.Collection, cr.Downloaded, cr.ToDownload, cr.DownloadFailed))
	}

	if cr.Failed() {
		s.reporter.Report(status.OutOfSync(cr.Collection))
	} else if cr.ToDownload == 0 {
		s.reporter.Report(status.InSync(cr.Collection))
	}
}

// syncCollection runs the pass of one collection
func (s *Syncer) syncCollection(ctx context.Context, c model.Collection) CollectionReport {
	cr := CollectionReport{Collection: c}
	logger := log.WithFields(log.Fields{"collection": c})

	s.transition(PhaseCollectionCheck, c)

	p, err := s.check(ctx, c, &cr)
	if err != nil {
		logger.ErrorWrap(err, "checking collection")
		cr.Err = err
		return cr
	}

	s.transition(PhaseDiff, c)
	p.diff = differ.Diff(keys(p.records), keys(p.remote))

	logger.WithFields(log.Fields{
		"local_only":  len(p.diff.LocalOnly),
		"remote_only": len(p.diff.RemoteOnly),
		"in_both":     len(p.diff.InBoth),
	}).Debug("compared collection")

	s.transition(PhaseUpload, c)
	s.upload(ctx, p)

	s.transition(PhaseDownload, c)
	s.download(ctx, p)

	logger.WithFields(log.Fields{
		"uploaded":        cr.Uploaded,
		"upload_failed":   cr.UploadFailed,
		"deleted":         cr.Deleted,
		"expunged":        cr.Expunged,
		"downloaded":      cr.Downloaded,
		"download_failed": cr.DownloadFailed,
	}).Info("synced collection")

	return cr
}

// check lists both sides of the collection and normalizes their identifiers.
// Malformed identifiers are left out of the reconciliation.
func (s *Syncer) check(ctx context.Context, c model.Collection, cr *CollectionReport) (*pass, error) {
	h, ok := handlers[c]
	if !ok {
		return nil, errors.Errorf("no handler for collection %s", c)
	}

	records, err := database.ListRecords(s.db, c)
	if err != nil {
		return nil, errors.Wrap(err, "listing local records")
	}

	entries, err := s.remote.List(ctx, c)
	if err != nil {
		return nil, errors.Wrap(err, "listing remote documents")
	}

	p := &pass{
		c:        c,
		h:        h,
		records:  map[string]database.Record{},
		versions: map[string]remote.Entry{},
		report:   cr,
	}

	var malformed []string
	for _, r := range records {
		id, err := identity.Normalize(r.UUID)
		if err != nil {
			malformed = append(malformed, r.UUID)
			continue
		}

		p.records[id] = r
	}
	cr.Local = len(p.records)
	cr.MalformedLocal = len(malformed)
	warnMalformed(c, "local", malformed)

	remoteIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		remoteIDs = append(remoteIDs, e.ID)
	}
	_, raw, malformed := identity.NormalizeAll(remoteIDs)
	p.remote = raw
	for _, e := range entries {
		id, err := identity.Normalize(e.ID)
		if err != nil {
			continue
		}

		if prev, ok := p.versions[id]; ok {
			log.WithFields(log.Fields{
				"collection": c,
				"uuid":       id,
				"ids":        fmt.Sprintf("%s, %s", prev.ID, e.ID),
			}).Warn("duplicate remote documents for one record")

			if !e.UpdatedAt.After(prev.UpdatedAt) {
				continue
			}
			p.remote[id] = e.ID
		}
		p.versions[id] = e
	}
	cr.Remote = len(p.versions)
	cr.MalformedRemote = len(malformed)
	warnMalformed(c, "remote", malformed)

	return p, nil
}

func warnMalformed(c model.Collection, side string, ids []string) {
	for _, id := range ids {
		log.WithFields(log.Fields{
			"collection": c,
			"side":       side,
			"id":         id,
		}).Warn("skipping record with malformed identifier")
	}
}

func keys[V any](m map[string]V) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}

	return ret
}

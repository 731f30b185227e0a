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
	"time"

	"github.com/matfinder/matsync/pkg/model"
)

// Phase is a step of the sync state machine
type Phase string

const (
	// PhaseIdle is the phase before the first run
	PhaseIdle Phase = "idle"
	// PhaseCollectionCheck lists both sides of a collection
	PhaseCollectionCheck Phase = "collection_check"
	// PhaseDiff compares the identifiers of both sides
	PhaseDiff Phase = "diff"
	// PhaseUpload pushes local changes
	PhaseUpload Phase = "upload"
	// PhaseDownload pulls remote changes
	PhaseDownload Phase = "download"
	// PhaseDone is the phase after a run ended
	PhaseDone Phase = "done"
)

// State is the position of the syncer in its state machine
type State struct {
	Phase      Phase
	Collection model.Collection
}

// CollectionReport holds the counts of one collection's pass
type CollectionReport struct {
	Collection model.Collection
	// Err is set when the pass was aborted
	Err error

	Local           int
	Remote          int
	MalformedLocal  int
	MalformedRemote int

	Uploaded     int
	UploadFailed int
	// Confirmed are local records found on the remote while confirming their absence
	Confirmed    int
	Deleted      int
	DeleteFailed int
	// Expunged are local records removed because they no longer exist remotely
	Expunged int

	ToDownload     int
	Downloaded     int
	DownloadFailed int
}

// Failed reports whether any part of the pass did not succeed
func (r CollectionReport) Failed() bool {
	return r.Err != nil || r.UploadFailed > 0 || r.DeleteFailed > 0 || r.DownloadFailed > 0
}

// Report is the result of a sync run
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	// Postponed is set when the remote store was unreachable at the start
	Postponed   bool
	Collections []CollectionReport
	// PrunedStubs are placeholder schedules and gyms removed after the run
	PrunedStubs []string
}

// Partial reports whether some collection did not fully sync
func (r Report) Partial() bool {
	for _, c := range r.Collections {
		if c.Failed() {
			return true
		}
	}

	return false
}

// Collection returns the report of the given collection
func (r Report) Collection(c model.Collection) (CollectionReport, bool) {
	for _, cr := range r.Collections {
		if cr.Collection == c {
			return cr, true
		}
	}

	return CollectionReport{}, false
}

func (r Report) outcome() string {
	switch {
	case r.Postponed:
		return outcomePostponed
	case r.Partial():
		return outcomePartial
	default:
		return outcomeCompleted
	}
}

// Outcome is the result of an asynchronous run
type Outcome struct {
	Report Report
	Err    error
}

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

// Package output provides functions to print information to the terminal
// in a consistent manner
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/matfinder/matsync/pkg/cli/log"
	"github.com/matfinder/matsync/pkg/local/database"
	"github.com/matfinder/matsync/pkg/model"
	"github.com/matfinder/matsync/pkg/status"
	"github.com/matfinder/matsync/pkg/sync"
)

const timeLayout = "Jan 2, 2006 3:04pm (MST)"

// Reporter renders status events as they are emitted
type Reporter struct{}

// Report prints the event with a symbol matching its severity
func (Reporter) Report(e status.Event) {
	switch e.Severity {
	case status.SeveritySuccess:
		log.Successf("%s\n", e.Message)
	case status.SeverityError:
		log.Errorf("%s\n", e.Message)
	default:
		log.Infof("%s\n", e.Message)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}

	return word + "s"
}

// CollectionSummary prints the non-zero counts of a collection's pass
func CollectionSummary(r sync.CollectionReport) {
	var parts []string
	add := func(n int, s string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf(s, n))
		}
	}

	add(r.Uploaded, "%d uploaded")
	add(r.Confirmed, "%d confirmed")
	add(r.Downloaded, "%d downloaded")
	add(r.Deleted, "%d deleted remotely")
	add(r.Expunged, "%d removed locally")
	add(r.UploadFailed+r.DeleteFailed+r.DownloadFailed, "%d failed")
	if m := r.MalformedLocal + r.MalformedRemote; m > 0 {
		parts = append(parts, fmt.Sprintf("%d malformed %s", m, plural(m, "identifier")))
	}

	if r.Err != nil {
		log.Errorf("%s: %s\n", r.Collection.Label(), r.Err.Error())
		return
	}
	if len(parts) == 0 {
		log.Plainf("%s: no changes\n", r.Collection.Label())
		return
	}

	log.Plainf("%s: %s\n", r.Collection.Label(), strings.Join(parts, ", "))
}

// Summary prints the result of a sync run
func Summary(r sync.Report) {
	if r.Postponed {
		return
	}

	for _, cr := range r.Collections {
		CollectionSummary(cr)
	}
	if n := len(r.PrunedStubs); n > 0 {
		log.Plainf("pruned %d %s\n", n, plural(n, "placeholder"))
	}

	d := r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond)
	if r.Partial() {
		log.Warnf("sync finished with errors in %s\n", d)
		return
	}

	log.Successf("sync finished in %s\n", d)
}

// Stats prints the local sync state of a collection
func Stats(c model.Collection, s database.Stats) {
	log.Infof("%s: %d total, %d pending, %d never synced, %d deleted, %d placeholders\n",
		c.Label(), s.Total, s.Dirty, s.Unsynced, s.Deleted, s.Stubs)
}

// LastSync prints the time and outcome of the last sync run
func LastSync(at, now time.Time, outcome string) {
	if at.IsZero() {
		log.Infof("last sync: never\n")
	} else {
		log.Infof("last sync: %s (%s)\n", at.Local().Format(timeLayout), relativeTime(at, now))
	}

	if outcome != "" {
		log.Infof("last outcome: %s\n", outcome)
	}
}

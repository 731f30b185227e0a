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

// Package status defines the coarse-grained events the sync engine emits for the
// user interface. Events carry a message and a severity, never raw error text.
package status

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/matfinder/matsync/pkg/log"
	"github.com/matfinder/matsync/pkg/model"
)

// Severity is the importance of an event
type Severity string

const (
	// SeverityInfo is a neutral progress event
	SeverityInfo Severity = "info"
	// SeveritySuccess is a terminal event for a collection that is in sync
	SeveritySuccess Severity = "success"
	// SeverityError is a terminal event for a collection that needs attention
	SeverityError Severity = "error"
)

// Event is a status update
type Event struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Reporter receives status events. Implementations must not block the caller
// for long since events are emitted from inside a sync run.
type Reporter interface {
	Report(Event)
}

// InSync returns the event for a collection that needed no changes or was fully reconciled
func InSync(c model.Collection) Event {
	return Event{
		Message:  fmt.Sprintf("%s in sync", c.Label()),
		Severity: SeveritySuccess,
	}
}

// Downloaded returns the event summarizing a download pass
func Downloaded(c model.Collection, downloaded, total, failed int) Event {
	sev := SeverityInfo
	if failed > 0 {
		sev = SeverityError
	}

	return Event{
		Message:  fmt.Sprintf("%s: downloaded %d of %d, %d failed", c.Label(), downloaded, total, failed),
		Severity: sev,
	}
}

// OutOfSync returns the event for a collection that could not be reconciled
func OutOfSync(c model.Collection) Event {
	return Event{
		Message:  fmt.Sprintf("%s out of sync, action required", c.Label()),
		Severity: SeverityError,
	}
}

// Postponed returns the event for a run skipped for lack of connectivity
func Postponed() Event {
	return Event{
		Message:  "sync postponed until the network is available",
		Severity: SeverityInfo,
	}
}

// Discard is a Reporter that drops every event
var Discard Reporter = FuncReporter(func(Event) {})

// FuncReporter adapts a function to the Reporter interface
type FuncReporter func(Event)

// Report calls f(e)
func (f FuncReporter) Report(e Event) {
	f(e)
}

// LogReporter writes events to the structured log
type LogReporter struct{}

// Report implements Reporter
func (LogReporter) Report(e Event) {
	entry := log.WithFields(log.Fields{"severity": e.Severity})

	if e.Severity == SeverityError {
		entry.Warn(e.Message)
		return
	}

	entry.Info(e.Message)
}

// Multi fans an event out to several reporters in order
type Multi []Reporter

// Report implements Reporter
func (m Multi) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

// ChanReporter delivers events asynchronously through a buffered channel. When
// the buffer is full the event is dropped and counted rather than blocking the run.
type ChanReporter struct {
	ch      chan Event
	dropped atomic.Int64
	once    sync.Once
}

// NewChanReporter returns a reporter with the given buffer size
func NewChanReporter(size int) *ChanReporter {
	if size < 1 {
		size = 1
	}

	return &ChanReporter{ch: make(chan Event, size)}
}

// Report implements Reporter
func (c *ChanReporter) Report(e Event) {
	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
	}
}

// Events returns the receive side of the channel
func (c *ChanReporter) Events() <-chan Event {
	return c.ch
}

// Dropped returns the number of events dropped because the buffer was full
func (c *ChanReporter) Dropped() int64 {
	return c.dropped.Load()
}

// Close closes the channel. Report must not be called afterwards.
func (c *ChanReporter) Close() {
	c.once.Do(func() { close(c.ch) })
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Report implements Reporter
func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	ret := make([]Event, len(r.events))
	copy(ret, r.events)

	return ret
}

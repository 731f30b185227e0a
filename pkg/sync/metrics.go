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
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeCompleted = "completed"
	outcomePartial   = "partial"
	outcomePostponed = "postponed"
	outcomeFailed    = "failed"
)

// Metrics holds the sync counters. A nil *Metrics records nothing.
type Metrics struct {
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	records        *prometheus.CounterVec
	listErrors     *prometheus.CounterVec
	malformedIDs   *prometheus.CounterVec
	lastSuccessful prometheus.Gauge
}

// NewMetrics creates the sync metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matsync",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Number of sync runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "matsync",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of sync runs that reached the remote store.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matsync",
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Number of records handled per collection, direction and result.",
		}, []string{"collection", "direction", "result"}),
		listErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matsync",
			Subsystem: "sync",
			Name:      "collection_errors_total",
			Help:      "Number of collections whose pass was aborted.",
		}, []string{"collection"}),
		malformedIDs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matsync",
			Subsystem: "sync",
			Name:      "malformed_ids_total",
			Help:      "Number of identifiers excluded from reconciliation.",
		}, []string{"collection", "side"}),
		lastSuccessful: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "matsync",
			Subsystem: "sync",
			Name:      "last_completed_timestamp_seconds",
			Help:      "Unix timestamp of the last run that completed without collection errors.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.runs, m.runDuration, m.records, m.listErrors, m.malformedIDs, m.lastSuccessful)
	}

	return m
}

const (
	directionUpload   = "upload"
	directionDownload = "download"
	directionDelete   = "delete"
	directionExpunge  = "expunge"

	resultOK     = "ok"
	resultFailed = "failed"
)

func (m *Metrics) observeRecord(c model.Collection, direction, result string, n int) {
	if m == nil || n == 0 {
		return
	}

	m.records.WithLabelValues(string(c), direction, result).Add(float64(n))
}

func (m *Metrics) observeCollection(r CollectionReport) {
	if m == nil {
		return
	}

	if r.Err != nil {
		m.listErrors.WithLabelValues(string(r.Collection)).Inc()
	}
	if r.MalformedLocal > 0 {
		m.malformedIDs.WithLabelValues(string(r.Collection), "local").Add(float64(r.MalformedLocal))
	}
	if r.MalformedRemote > 0 {
		m.malformedIDs.WithLabelValues(string(r.Collection), "remote").Add(float64(r.MalformedRemote))
	}

	m.observeRecord(r.Collection, directionUpload, resultOK, r.Uploaded)
	m.observeRecord(r.Collection, directionUpload, resultFailed, r.UploadFailed)
	m.observeRecord(r.Collection, directionDelete, resultOK, r.Deleted)
	m.observeRecord(r.Collection, directionDelete, resultFailed, r.DeleteFailed)
	m.observeRecord(r.Collection, directionDownload, resultOK, r.Downloaded)
	m.observeRecord(r.Collection, directionDownload, resultFailed, r.DownloadFailed)
	m.observeRecord(r.Collection, directionExpunge, resultOK, r.Expunged)
}

func (m *Metrics) observeRun(outcome string, d time.Duration, finishedAt time.Time) {
	if m == nil {
		return
	}

	m.runs.WithLabelValues(outcome).Inc()
	if outcome == outcomePostponed {
		return
	}

	m.runDuration.Observe(d.Seconds())
	if outcome == outcomeCompleted {
		m.lastSuccessful.Set(float64(finishedAt.Unix()))
	}
}
